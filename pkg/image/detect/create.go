package detect

import (
	"fmt"

	"github.com/weberc2/tidisk/pkg/image"
	"github.com/weberc2/tidisk/pkg/image/chd"
	"github.com/weberc2/tidisk/pkg/image/dump"
	"github.com/weberc2/tidisk/pkg/image/hfe"
	"github.com/weberc2/tidisk/pkg/image/multi"
	"github.com/weberc2/tidisk/pkg/image/pc99"
	"github.com/weberc2/tidisk/pkg/io"
	"github.com/weberc2/tidisk/pkg/track"
	. "github.com/weberc2/tidisk/pkg/types"
)

// CreateOptions describes a new, blank container. Sector dumps use Sectors;
// track images use Cylinders, Heads and Encoding; CHD images use Cylinders,
// Heads and SectorsPerTrack; CF7 images use Volumes.
type CreateOptions struct {
	Kind            Kind
	Sectors         uint32
	BlockSectors    uint32
	Cylinders       int
	Heads           int
	SectorsPerTrack int
	Encoding        track.Encoding
	HunkBytes       uint32
	Volumes         int
}

const defaultHunkBytes = 4096

// Create writes a blank container to `volume` and opens it.
func Create(volume io.Volume, options CreateOptions) (image.Format, error) {
	switch options.Kind {
	case KindDump, KindAuto:
		return dump.Create(volume, options.Sectors, options.BlockSectors)
	case KindHFE:
		return hfe.Create(volume, options.Cylinders, options.Heads, options.Encoding)
	case KindPC99:
		return pc99.Create(volume, options.Cylinders, options.Heads, options.Encoding)
	case KindCHD:
		hunkBytes := options.HunkBytes
		if hunkBytes == 0 {
			hunkBytes = defaultHunkBytes
		}
		return chd.Create(
			volume,
			chd.HardDiskGeometry{
				Cylinders:       options.Cylinders,
				Heads:           options.Heads,
				SectorsPerTrack: options.SectorsPerTrack,
			},
			hunkBytes,
		)
	case KindCF7:
		if err := multi.CreateCF7(volume, options.Volumes); err != nil {
			return nil, err
		}
		return multi.CF7Volume(volume, 0, options.BlockSectors)
	}
	return nil, fmt.Errorf("creating container kind `%s`: %w", options.Kind, UnsupportedErr)
}
