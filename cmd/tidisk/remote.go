package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/weberc2/tidisk/pkg/mount"
	"github.com/weberc2/tidisk/pkg/objectstore"
	"github.com/weberc2/tidisk/pkg/volume"
)

func objectStore(ctx *cli.Context) (objectstore.ObjectStore, error) {
	c := settings(ctx)
	store, ok := ctx.App.Metadata[metadataObjects].(objectstore.ObjectStore)
	if !ok {
		s3, err := objectstore.New(c.S3Region, c.S3Endpoint)
		if err != nil {
			return nil, err
		}
		store = s3
	}
	if c.Gzip {
		return &objectstore.GzipObjectStore{ObjectStore: store}, nil
	}
	return store, nil
}

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "download an image from S3",
		ArgsUsage: "s3://BUCKET/KEY HOSTFILE",
		Action: func(ctx *cli.Context) error {
			a, err := args(ctx, 2, 2)
			if err != nil {
				return err
			}
			location, err := objectstore.ParseLocation(a[0])
			if err != nil {
				return err
			}
			store, err := objectStore(ctx)
			if err != nil {
				return err
			}
			return objectstore.Fetch(store, location, hostFs(ctx), a[1], nil)
		},
	}
}

func publishCommand() *cli.Command {
	return &cli.Command{
		Name:      "publish",
		Usage:     "upload an image to S3",
		ArgsUsage: "HOSTFILE s3://BUCKET/KEY",
		Action: func(ctx *cli.Context) error {
			a, err := args(ctx, 2, 2)
			if err != nil {
				return err
			}
			location, err := objectstore.ParseLocation(a[1])
			if err != nil {
				return err
			}
			store, err := objectStore(ctx)
			if err != nil {
				return err
			}
			return objectstore.Publish(store, location, hostFs(ctx), a[0], nil)
		},
	}
}

func remoteCommand() *cli.Command {
	return &cli.Command{
		Name:  "remote",
		Usage: "manage published images",
		Subcommands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "list images under a prefix",
				ArgsUsage: "s3://BUCKET[/PREFIX]",
				Action: func(ctx *cli.Context) error {
					a, err := args(ctx, 1, 1)
					if err != nil {
						return err
					}
					prefix, err := objectstore.ParsePrefix(a[0])
					if err != nil {
						return err
					}
					store, err := objectStore(ctx)
					if err != nil {
						return err
					}
					locations, err := objectstore.Published(store, prefix)
					if err != nil {
						return err
					}
					for _, location := range locations {
						fmt.Fprintln(ctx.App.Writer, location)
					}
					return nil
				},
			},
			{
				Name:      "rm",
				Usage:     "delete a published image",
				ArgsUsage: "s3://BUCKET/KEY",
				Action: func(ctx *cli.Context) error {
					a, err := args(ctx, 1, 1)
					if err != nil {
						return err
					}
					location, err := objectstore.ParseLocation(a[0])
					if err != nil {
						return err
					}
					store, err := objectStore(ctx)
					if err != nil {
						return err
					}
					return objectstore.Unpublish(store, location, nil)
				},
			},
		},
	}
}

func mountCommand() *cli.Command {
	return &cli.Command{
		Name:      "mount",
		Usage:     "serve the volume read-only over FUSE until unmounted",
		ArgsUsage: "MOUNTPOINT",
		Flags: []cli.Flag{&cli.BoolFlag{
			Name:  "debug",
			Usage: "print FUSE debug information",
		}},
		Action: withVolume(true, func(v *volume.Volume, ctx *cli.Context) error {
			a, err := args(ctx, 1, 1)
			if err != nil {
				return err
			}
			server, err := mount.Mount(v, a[0], mount.Options{Debug: ctx.Bool("debug")})
			if err != nil {
				return err
			}
			fmt.Fprintf(ctx.App.ErrWriter, "mounted `%s` at `%s`\n", v.FS.Name, a[0])
			server.Wait()
			return nil
		}),
	}
}
