package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/weberc2/tidisk/pkg/fs"
	"github.com/weberc2/tidisk/pkg/image/detect"
	"github.com/weberc2/tidisk/pkg/image/multi"
	"github.com/weberc2/tidisk/pkg/track"
	. "github.com/weberc2/tidisk/pkg/types"
	"github.com/weberc2/tidisk/pkg/volume"
)

func formatCommand() *cli.Command {
	return &cli.Command{
		Name:  "format",
		Usage: "create a new image holding an empty file system",
		Description: "floppies take --tracks, --sides and --density; hard " +
			"disks take --sectors, --heads and --sectors-per-track",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "the volume name", Value: "BLANK"},
			&cli.StringFlag{
				Name:  "kind",
				Usage: "floppy or hd",
				Value: "floppy",
			},
			&cli.StringFlag{
				Name:  "container",
				Usage: "dump, hfe, pc99, chd or cf7",
				Value: string(detect.KindDump),
			},
			&cli.UintFlag{Name: "tracks", Value: 40},
			&cli.UintFlag{Name: "sides", Value: 2},
			&cli.UintFlag{Name: "density", Usage: "1 single (FM), 2 double (MFM)", Value: 1},
			&cli.UintFlag{Name: "sectors", Usage: "total sectors of a hard disk"},
			&cli.UintFlag{Name: "heads", Value: 4},
			&cli.UintFlag{Name: "sectors-per-track", Usage: "defaults to 9 per density step for floppies, 32 for hard disks"},
			&cli.UintFlag{Name: "sectors-per-au", Usage: "hard disk AU size; 0 picks the smallest that fits"},
			&cli.IntFlag{Name: "volumes", Usage: "CF7 volume count", Value: 1},
		},
		Action: func(ctx *cli.Context) error {
			path, err := imagePath(ctx)
			if err != nil {
				return err
			}
			params, container, err := formatParams(ctx)
			if err != nil {
				return err
			}
			v, err := volume.CreateFile(
				hostFs(ctx),
				path,
				container,
				params,
				volume.Options{
					Detect: detect.Options{BlockSectors: settings(ctx).BlockSectors},
				},
			)
			if err != nil {
				return err
			}
			info := v.Info()
			if err := v.Close(); err != nil {
				return err
			}
			return writeJSON(ctx, info)
		},
	}
}

// formatParams builds the file system and container parameters from the
// format flags.
func formatParams(ctx *cli.Context) (*fs.FormatParams, detect.CreateOptions, error) {
	kind, err := detect.ParseKind(ctx.String("container"))
	if err != nil {
		return nil, detect.CreateOptions{}, err
	}
	container := detect.CreateOptions{
		Kind:         kind,
		BlockSectors: settings(ctx).BlockSectors,
		Volumes:      ctx.Int("volumes"),
	}
	params := &fs.FormatParams{Name: ctx.String("name")}
	spt := ctx.Uint("sectors-per-track")

	switch ctx.String("kind") {
	case "floppy":
		density := ctx.Uint("density")
		if density < 1 || density > 4 {
			return nil, container, fmt.Errorf("density `%d` out of range: %w", density, UnsupportedErr)
		}
		if spt == 0 {
			spt = 9 * density
		}
		tracks, sides := ctx.Uint("tracks"), ctx.Uint("sides")
		params.Kind = fs.KindFloppy
		params.Tracks = uint8(tracks)
		params.Sides = uint8(sides)
		params.Density = uint8(density)
		params.SectorsPerTrack = uint8(spt)
		params.TotalSectors = uint32(tracks * sides * spt)

		container.Sectors = params.TotalSectors
		container.Cylinders = int(tracks)
		container.Heads = int(sides)
		container.SectorsPerTrack = int(spt)
		container.Encoding = track.FM
		if density > 1 {
			container.Encoding = track.MFM
		}
		if kind == detect.KindCF7 {
			// CF7 volumes have a fixed 40 track, 2 side, 20 sector layout
			params.Tracks, params.Sides, params.SectorsPerTrack = 40, 2, 20
			params.TotalSectors = multi.CF7Sectors
		}
	case "hd":
		if spt == 0 {
			spt = 32
		}
		heads := ctx.Uint("heads")
		total := ctx.Uint("sectors")
		if total == 0 || heads == 0 {
			return nil, container, fmt.Errorf("hard disks need --sectors and --heads: %w", UnsupportedErr)
		}
		params.Kind = fs.KindHardDisk
		params.TotalSectors = uint32(total)
		params.Heads = uint8(heads)
		params.SectorsPerTrack = uint8(spt)
		params.SectorsPerAU = uint32(ctx.Uint("sectors-per-au"))

		container.Sectors = params.TotalSectors
		container.Heads = int(heads)
		container.SectorsPerTrack = int(spt)
		container.Cylinders = int((total + heads*spt - 1) / (heads * spt))
	default:
		return nil, container, fmt.Errorf("unknown file system kind `%s`: %w", ctx.String("kind"), UnsupportedErr)
	}
	return params, container, nil
}
