package main

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	"github.com/weberc2/tidisk/pkg/encode"
	"github.com/weberc2/tidisk/pkg/export"
	"github.com/weberc2/tidisk/pkg/fs"
	"github.com/weberc2/tidisk/pkg/tifiles"
	. "github.com/weberc2/tidisk/pkg/types"
	"github.com/weberc2/tidisk/pkg/volume"
)

// volumeCommands operate on one open volume. The shell reuses them.
func volumeCommands() []*cli.Command {
	return []*cli.Command{{
		Name:        "info",
		Usage:       "show the volume name, kind and free space",
		Description: "show the volume name, kind and free space",
		Action: withVolume(true, func(v *volume.Volume, ctx *cli.Context) error {
			return writeJSON(ctx, v.Info())
		}),
	}, {
		Name:      "ls",
		Aliases:   []string{"dir", "list"},
		Usage:     "list a directory",
		ArgsUsage: "[DIR]",
		Flags:     []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "print JSON"}},
		Action: withVolume(true, func(v *volume.Volume, ctx *cli.Context) error {
			a, err := args(ctx, 0, 1)
			if err != nil {
				return err
			}
			entries, err := v.List(a[0])
			if err != nil {
				return err
			}
			if ctx.Bool("json") {
				return writeJSON(ctx, entries)
			}
			return writeListing(ctx, entries)
		}),
	}, {
		Name:      "cat",
		Usage:     "write a file's content to stdout",
		ArgsUsage: "PATH",
		Flags: []cli.Flag{&cli.BoolFlag{
			Name:  "records",
			Usage: "print one record per line",
		}},
		Action: withVolume(true, func(v *volume.Volume, ctx *cli.Context) error {
			a, err := args(ctx, 1, 1)
			if err != nil {
				return err
			}
			if !ctx.Bool("records") {
				data, err := v.ReadFile(a[0])
				if err != nil {
					return err
				}
				_, err = ctx.App.Writer.Write(data)
				return err
			}
			records, err := v.ReadRecords(a[0])
			if err != nil {
				return err
			}
			for _, record := range records {
				if _, err := fmt.Fprintf(ctx.App.Writer, "%s\n", record); err != nil {
					return err
				}
			}
			return nil
		}),
	}, {
		Name:      "get",
		Usage:     "copy a file to the host",
		ArgsUsage: "PATH HOSTFILE",
		Flags: []cli.Flag{&cli.BoolFlag{
			Name:  "tifiles",
			Usage: "keep the file type in a TIFILES header",
		}},
		Action: withVolume(true, func(v *volume.Volume, ctx *cli.Context) error {
			a, err := args(ctx, 2, 2)
			if err != nil {
				return err
			}
			var data []byte
			if ctx.Bool("tifiles") {
				data, err = v.ExportTIFiles(a[0])
			} else {
				data, err = v.ReadFile(a[0])
			}
			if err != nil {
				return err
			}
			return afero.WriteFile(hostFs(ctx), a[1], data, 0o644)
		}),
	}, {
		Name:  "put",
		Usage: "copy a host file into the volume",
		Description: "TIFILES host files keep their type and name unless " +
			"PATH names the file; other host files are stored with --type",
		ArgsUsage: "HOSTFILE [PATH]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "type",
				Usage: "PROGRAM or e.g. DIS/VAR 80; record types split the host file into lines",
				Value: "PROGRAM",
			},
			&cli.BoolFlag{Name: "overwrite", Usage: "replace an existing file"},
		},
		Action: withVolume(false, func(v *volume.Volume, ctx *cli.Context) error {
			a, err := args(ctx, 1, 2)
			if err != nil {
				return err
			}
			data, err := afero.ReadFile(hostFs(ctx), a[0])
			if err != nil {
				return err
			}
			path := a[1]
			if path == "" {
				name, err := export.VolumeName(filepath.Base(a[0]))
				if err != nil {
					return err
				}
				path = name
			}
			if tifiles.Is(data) {
				header, content, err := tifiles.Decode(data)
				if err != nil {
					return err
				}
				return v.WriteFile(
					path,
					&fs.NewFile{FileHeader: *header, Content: content},
					ctx.Bool("overwrite"),
				)
			}
			file, err := hostFile(ctx.String("type"), data)
			if err != nil {
				return err
			}
			return v.WriteFile(path, file, ctx.Bool("overwrite"))
		}),
	}, {
		Name:      "rm",
		Aliases:   []string{"del", "delete"},
		Usage:     "delete a file",
		ArgsUsage: "PATH",
		Action: withVolume(false, func(v *volume.Volume, ctx *cli.Context) error {
			a, err := args(ctx, 1, 1)
			if err != nil {
				return err
			}
			return v.Delete(a[0])
		}),
	}, {
		Name:      "mkdir",
		Aliases:   []string{"md"},
		Usage:     "create a directory",
		ArgsUsage: "PATH",
		Action: withVolume(false, func(v *volume.Volume, ctx *cli.Context) error {
			a, err := args(ctx, 1, 1)
			if err != nil {
				return err
			}
			return v.MakeDirectory(a[0])
		}),
	}, {
		Name:      "rmdir",
		Aliases:   []string{"rd"},
		Usage:     "remove a directory",
		ArgsUsage: "PATH",
		Flags: []cli.Flag{&cli.BoolFlag{
			Name:    "recursive",
			Aliases: []string{"r"},
			Usage:   "remove the directory's contents too",
		}},
		Action: withVolume(false, func(v *volume.Volume, ctx *cli.Context) error {
			a, err := args(ctx, 1, 1)
			if err != nil {
				return err
			}
			return v.RemoveDirectory(a[0], ctx.Bool("recursive"))
		}),
	}, {
		Name:      "mv",
		Aliases:   []string{"move"},
		Usage:     "move a file into another directory",
		ArgsUsage: "PATH DIR",
		Action: withVolume(false, func(v *volume.Volume, ctx *cli.Context) error {
			a, err := args(ctx, 1, 2)
			if err != nil {
				return err
			}
			return v.Move(a[0], a[1])
		}),
	}, {
		Name:      "rename",
		Aliases:   []string{"ren"},
		Usage:     "rename a file or directory",
		ArgsUsage: "PATH NEWNAME",
		Action: withVolume(false, func(v *volume.Volume, ctx *cli.Context) error {
			a, err := args(ctx, 2, 2)
			if err != nil {
				return err
			}
			return v.Rename(a[0], a[1])
		}),
	}, {
		Name:      "protect",
		Usage:     "set or clear a file's protection flag",
		ArgsUsage: "PATH",
		Flags:     []cli.Flag{&cli.BoolFlag{Name: "off", Usage: "clear the flag"}},
		Action: withVolume(false, func(v *volume.Volume, ctx *cli.Context) error {
			a, err := args(ctx, 1, 1)
			if err != nil {
				return err
			}
			return v.SetProtected(a[0], !ctx.Bool("off"))
		}),
	}, {
		Name:      "label",
		Usage:     "rename the volume",
		ArgsUsage: "NAME",
		Action: withVolume(false, func(v *volume.Volume, ctx *cli.Context) error {
			a, err := args(ctx, 1, 1)
			if err != nil {
				return err
			}
			return v.SetName(a[0])
		}),
	}, {
		Name:      "fix-records",
		Usage:     "swap the bytes of a record count written in the wrong order",
		ArgsUsage: "PATH",
		Action: withVolume(false, func(v *volume.Volume, ctx *cli.Context) error {
			a, err := args(ctx, 1, 1)
			if err != nil {
				return err
			}
			return v.FixRecordCount(a[0])
		}),
	}, {
		Name:  "check",
		Usage: "compare the allocation map with the directory tree",
		Flags: []cli.Flag{&cli.BoolFlag{
			Name:  "fix",
			Usage: "rebuild the allocation map from the directory tree",
		}},
		Action: func(ctx *cli.Context) error {
			return withVolume(!ctx.Bool("fix"), func(v *volume.Volume, ctx *cli.Context) error {
				report := v.Check()
				if _, err := fmt.Fprintln(ctx.App.Writer, report.String()); err != nil {
					return err
				}
				if report.Clean() || !ctx.Bool("fix") {
					return nil
				}
				return v.Repair()
			})(ctx)
		},
	}, {
		Name:      "export",
		Usage:     "copy a directory tree to the host",
		ArgsUsage: "HOSTDIR [DIR]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "tifiles", Usage: "write TIFILES headers"},
			&cli.BoolFlag{Name: "overwrite", Usage: "replace existing host files"},
		},
		Action: withVolume(true, func(v *volume.Volume, ctx *cli.Context) error {
			a, err := args(ctx, 1, 2)
			if err != nil {
				return err
			}
			copied, err := export.Export(v, a[1], hostFs(ctx), a[0], export.Options{
				TIFiles:   ctx.Bool("tifiles"),
				Overwrite: ctx.Bool("overwrite"),
			})
			if err != nil {
				return err
			}
			return writeJSON(ctx, copied)
		}),
	}, {
		Name:      "import",
		Usage:     "copy a host directory tree into the volume",
		ArgsUsage: "HOSTDIR [DIR]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "overwrite", Usage: "replace existing files"},
		},
		Action: withVolume(false, func(v *volume.Volume, ctx *cli.Context) error {
			a, err := args(ctx, 1, 2)
			if err != nil {
				return err
			}
			copied, err := export.Import(v, a[1], hostFs(ctx), a[0], export.Options{
				Overwrite: ctx.Bool("overwrite"),
			})
			if err != nil {
				return err
			}
			return writeJSON(ctx, copied)
		}),
	},
		archiveCommand(),
	}
}

// hostFile wraps host data as a file of type `fileType`. Record types take
// one record per line of the host data.
func hostFile(fileType string, data []byte) (*fs.NewFile, error) {
	flags, recordLength, err := ParseFileType(fileType)
	if err != nil {
		return nil, err
	}
	if flags.Program() {
		return &fs.NewFile{
			FileHeader: encode.FileHeader{
				Flags:     flags,
				EOFOffset: uint8(len(data) % int(SectorSize)),
			},
			Content: data,
		}, nil
	}
	lines := bytes.Split(bytes.TrimSuffix(data, []byte("\n")), []byte("\n"))
	if len(data) == 0 {
		lines = nil
	}
	for i := range lines {
		lines[i] = bytes.TrimSuffix(lines[i], []byte("\r"))
	}
	header := encode.FileHeader{Flags: flags, RecordLength: recordLength}
	content, err := fs.EncodeRecords(&header, lines)
	if err != nil {
		return nil, err
	}
	return &fs.NewFile{FileHeader: header, Content: content}, nil
}
