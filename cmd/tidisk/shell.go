package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/weberc2/tidisk/pkg/volume"
)

const shellPrompt = "tidisk> "

func shellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "edit the image interactively with undo and redo",
		Description: "changes stay in memory until `save`; `undo` and " +
			"`redo` step through every change made in the session",
		Action: func(ctx *cli.Context) error {
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
				ReadOnly: c.ReadOnly,
			})
			if err != nil {
				return err
			}
			defer v.Close()
			return runShell(ctx, v, bufio.NewScanner(ctx.App.Reader))
		},
	}
}

var errExit = errors.New("exit")

// shellApp runs the volume commands against the session volume `v`.
func shellApp(parent *cli.Context, v *volume.Volume) *cli.App {
	return &cli.App{
		Name:      "tidisk",
		HelpName:  "",
		Writer:    parent.App.Writer,
		ErrWriter: parent.App.ErrWriter,
		Metadata: map[string]interface{}{
			metadataConfig: settings(parent),
			metadataFs:     hostFs(parent),
			metadataVolume: v,
		},
		Commands: append(volumeCommands(), sessionCommands()...),
	}
}

func sessionCommands() []*cli.Command {
	return []*cli.Command{{
		Name:  "undo",
		Usage: "revert the last change",
		Action: withVolume(false, func(v *volume.Volume, ctx *cli.Context) error {
			return v.Undo()
		}),
	}, {
		Name:  "redo",
		Usage: "reapply the last undone change",
		Action: withVolume(false, func(v *volume.Volume, ctx *cli.Context) error {
			return v.Redo()
		}),
	}, {
		Name:  "save",
		Usage: "write the changes to the image",
		Action: withVolume(false, func(v *volume.Volume, ctx *cli.Context) error {
			return v.Save()
		}),
	}, {
		Name:  "status",
		Usage: "show whether there are unsaved changes",
		Action: withVolume(false, func(v *volume.Volume, ctx *cli.Context) error {
			return writeJSON(ctx, struct {
				Unsaved bool `json:"unsaved"`
				CanUndo bool `json:"canUndo"`
				CanRedo bool `json:"canRedo"`
			}{v.Unsaved(), v.CanUndo(), v.CanRedo()})
		}),
	}, {
		Name:    "exit",
		Aliases: []string{"quit"},
		Usage:   "leave the shell; refuses while changes are unsaved",
		Flags: []cli.Flag{&cli.BoolFlag{
			Name:  "discard",
			Usage: "leave even with unsaved changes",
		}},
		Action: withVolume(false, func(v *volume.Volume, ctx *cli.Context) error {
			if v.Unsaved() && !ctx.Bool("discard") {
				return fmt.Errorf("unsaved changes: `save` first or `exit --discard`")
			}
			return errExit
		}),
	}}
}

func runShell(ctx *cli.Context, v *volume.Volume, lines *bufio.Scanner) error {
	app := shellApp(ctx, v)
	for {
		fmt.Fprint(ctx.App.Writer, shellPrompt)
		if !lines.Scan() {
			fmt.Fprintln(ctx.App.Writer)
			if v.Unsaved() {
				fmt.Fprintln(ctx.App.ErrWriter, "discarding unsaved changes")
			}
			return lines.Err()
		}
		fields := strings.Fields(lines.Text())
		if len(fields) == 0 {
			continue
		}
		if err := app.Run(append([]string{""}, fields...)); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			fmt.Fprintf(ctx.App.ErrWriter, "error: %v\n", err)
		}
	}
}
