package main

import (
	"github.com/urfave/cli/v2"

	"github.com/weberc2/tidisk/pkg/volume"
)

type memberListing struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Sectors uint16 `json:"sectors"`
}

func archiveCommand() *cli.Command {
	return &cli.Command{
		Name:        "ark",
		Aliases:     []string{"archive"},
		Usage:       "commands for archive files",
		Description: "commands for archive files",
		Subcommands: []*cli.Command{{
			Name:      "new",
			Usage:     "create an empty archive file",
			ArgsUsage: "ARCHIVE",
			Flags: []cli.Flag{&cli.BoolFlag{
				Name:  "compressed",
				Usage: "compress the archive",
			}},
			Action: withVolume(false, func(v *volume.Volume, ctx *cli.Context) error {
				a, err := args(ctx, 1, 1)
				if err != nil {
					return err
				}
				return v.NewArchive(a[0], ctx.Bool("compressed"))
			}),
		}, {
			Name:      "ls",
			Aliases:   []string{"list"},
			Usage:     "list the members of an archive",
			ArgsUsage: "ARCHIVE",
			Action: withVolume(true, func(v *volume.Volume, ctx *cli.Context) error {
				a, err := args(ctx, 1, 1)
				if err != nil {
					return err
				}
				archive, err := v.Archive(a[0])
				if err != nil {
					return err
				}
				members := make([]memberListing, len(archive.Members))
				for i := range archive.Members {
					m := &archive.Members[i]
					members[i] = memberListing{
						Name:    m.Name,
						Type:    m.Flags.TypeString(m.RecordLength),
						Sectors: m.Sectors,
					}
				}
				return writeJSON(ctx, members)
			}),
		}, {
			Name:      "add",
			Usage:     "copy files into an archive",
			ArgsUsage: "ARCHIVE PATH...",
			Flags: []cli.Flag{&cli.BoolFlag{
				Name:  "overwrite",
				Usage: "replace members of the same name",
			}},
			Action: withVolume(false, func(v *volume.Volume, ctx *cli.Context) error {
				if ctx.NArg() < 2 {
					_, err := args(ctx, 2, 2)
					return err
				}
				archive := ctx.Args().First()
				for _, path := range ctx.Args().Tail() {
					if err := v.ArchiveAdd(archive, path, ctx.Bool("overwrite")); err != nil {
						return err
					}
				}
				return nil
			}),
		}, {
			Name:      "rm",
			Aliases:   []string{"remove"},
			Usage:     "remove a member from an archive",
			ArgsUsage: "ARCHIVE MEMBER",
			Action: withVolume(false, func(v *volume.Volume, ctx *cli.Context) error {
				a, err := args(ctx, 2, 2)
				if err != nil {
					return err
				}
				return v.ArchiveRemove(a[0], a[1])
			}),
		}, {
			Name:      "extract",
			Usage:     "copy an archive member out as a file",
			ArgsUsage: "ARCHIVE MEMBER [DIR]",
			Flags: []cli.Flag{&cli.BoolFlag{
				Name:  "overwrite",
				Usage: "replace an existing file",
			}},
			Action: withVolume(false, func(v *volume.Volume, ctx *cli.Context) error {
				a, err := args(ctx, 2, 3)
				if err != nil {
					return err
				}
				return v.ArchiveExtract(a[0], a[1], a[2], ctx.Bool("overwrite"))
			}),
		}},
	}
}
