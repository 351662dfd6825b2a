package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/weberc2/tidisk/pkg/config"
	"github.com/weberc2/tidisk/pkg/volume"
)

const (
	metadataConfig  = "config"
	metadataVolume  = "volume"
	metadataFs      = "fs"
	metadataObjects = "objects"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "tidisk",
		Usage: "inspect and modify TI-99/4A disk and hard disk images",
		Description: "tidisk opens sector dumps, HFE, PC99, CHD, CF7 and " +
			"partitioned images and edits the file system inside them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "image",
				Aliases: []string{"i"},
				Usage:   "the container image to operate on",
				EnvVars: []string{"TIDISK_IMAGE"},
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "the YAML configuration file",
				Value: config.File(),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error; overrides the configuration",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "force the container format instead of probing it",
			},
			&cli.BoolFlag{
				Name:  "read-only",
				Usage: "refuse every change to the image",
			},
		},
		Metadata: map[string]interface{}{metadataFs: afero.NewOsFs()},
		Before:   setup,
		Commands: append(
			volumeCommands(),
			formatCommand(),
			fetchCommand(),
			publishCommand(),
			remoteCommand(),
			mountCommand(),
			shellCommand(),
		),
	}
}

// setup loads the configuration, applies the global flags and installs the
// default logger.
func setup(ctx *cli.Context) error {
	c, err := config.Load(hostFs(ctx), ctx.String("config"))
	if err != nil {
		return err
	}
	if level := ctx.String("log-level"); level != "" {
		c.LogLevel = level
	}
	if format := ctx.String("format"); format != "" {
		c.Format = format
	}
	if ctx.Bool("read-only") {
		c.ReadOnly = true
	}
	if err := c.Validate(); err != nil {
		return err
	}
	level, err := c.Level()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(
		os.Stderr,
		&slog.HandlerOptions{Level: level},
	)))
	ctx.App.Metadata[metadataConfig] = c
	return nil
}

func settings(ctx *cli.Context) *config.Config {
	if c, ok := ctx.App.Metadata[metadataConfig].(*config.Config); ok {
		return c
	}
	c := config.Default()
	return &c
}

func hostFs(ctx *cli.Context) afero.Fs {
	if afs, ok := ctx.App.Metadata[metadataFs].(afero.Fs); ok {
		return afs
	}
	return afero.NewOsFs()
}

func imagePath(ctx *cli.Context) (string, error) {
	if path := ctx.String("image"); path != "" {
		return path, nil
	}
	return "", fmt.Errorf("no image given: pass --image or set TIDISK_IMAGE")
}

// withVolume opens the image for one command and saves it afterwards. In
// the shell the open session volume is used instead.
func withVolume(
	readOnly bool,
	f func(*volume.Volume, *cli.Context) error,
) cli.ActionFunc {
	return func(ctx *cli.Context) (err error) {
		if v, ok := ctx.App.Metadata[metadataVolume].(*volume.Volume); ok {
			return f(v, ctx)
		}
		path, err := imagePath(ctx)
		if err != nil {
			return err
		}
		c := settings(ctx)
		detect, err := c.Detect()
		if err != nil {
			return err
		}
		v, err := volume.OpenFile(hostFs(ctx), path, volume.Options{
			Detect:   detect,
			ReadOnly: readOnly || c.ReadOnly,
			AutoSave: true,
		})
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := v.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("closing `%s`: %w", path, closeErr)
			}
		}()
		return f(v, ctx)
	}
}

// args returns exactly `n` positional arguments, padding optional ones
// with empty strings.
func args(ctx *cli.Context, required, n int) ([]string, error) {
	if ctx.NArg() < required || ctx.NArg() > n {
		return nil, fmt.Errorf(
			"`%s` takes `%s`",
			ctx.Command.Name,
			ctx.Command.ArgsUsage,
		)
	}
	out := make([]string, n)
	copy(out, ctx.Args().Slice())
	return out, nil
}
