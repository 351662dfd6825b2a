// Package dump implements raw sector dump containers: sectors stored back to
// back, optionally strided as on CF7 flash cards.
package dump

import (
	"fmt"

	"github.com/weberc2/tidisk/pkg/image"
	"github.com/weberc2/tidisk/pkg/io"
	"github.com/weberc2/tidisk/pkg/math"
	. "github.com/weberc2/tidisk/pkg/types"
)

const DefaultBlockSectors uint32 = 16

type Format struct {
	volume       io.Volume
	sectors      uint32
	blockSectors uint32
	stride       int
}

// New opens a plain sector dump. The sector count follows from the volume
// size.
func New(volume io.Volume, blockSectors uint32) (*Format, error) {
	size, err := volume.Size()
	if err != nil {
		return nil, fmt.Errorf("opening sector dump: %w", err)
	}
	if size == 0 || size%SectorSize != 0 {
		return nil, fmt.Errorf(
			"opening sector dump: size `%d` is not a multiple of `%d`: %w",
			size,
			SectorSize,
			CorruptErr,
		)
	}
	return NewStrided(volume, uint32(size/SectorSize), blockSectors, 1), nil
}

// NewStrided opens a dump of `sectors` sectors where each sector occupies
// `stride*SectorSize` bytes with the payload in every `stride`th byte.
func NewStrided(
	volume io.Volume,
	sectors uint32,
	blockSectors uint32,
	stride int,
) *Format {
	if blockSectors == 0 {
		blockSectors = DefaultBlockSectors
	}
	return &Format{
		volume:       volume,
		sectors:      sectors,
		blockSectors: blockSectors,
		stride:       stride,
	}
}

// Create writes an empty dump of `sectors` sectors.
func Create(volume io.Volume, sectors uint32, blockSectors uint32) (*Format, error) {
	if err := volume.WriteAt(0, make([]byte, Byte(sectors)*SectorSize)); err != nil {
		return nil, fmt.Errorf("creating sector dump of `%d` sectors: %w", sectors, err)
	}
	return NewStrided(volume, sectors, blockSectors, 1), nil
}

func (f *Format) Name() string {
	if f.stride > 1 {
		return "strided-dump"
	}
	return "dump"
}

func (f *Format) SectorCount() uint32 { return f.sectors }

func (f *Format) Locate(sector uint32) (int, error) {
	if sector >= f.sectors {
		return 0, fmt.Errorf(
			"locating sector `%d` in `%d` sector dump: %w",
			sector,
			f.sectors,
			NotFoundErr,
		)
	}
	return int(sector / f.blockSectors), nil
}

func (f *Format) sectorBytes() Byte { return SectorSize * Byte(f.stride) }

func (f *Format) UnitPosition(unit int) (Byte, bool) {
	return Byte(unit) * Byte(f.blockSectors) * f.sectorBytes(), true
}

func (f *Format) UnitLength(unit int) Byte {
	first := uint32(unit) * f.blockSectors
	if first >= f.sectors {
		return 0
	}
	return Byte(math.Min(f.blockSectors, f.sectors-first)) * f.sectorBytes()
}

func (f *Format) Load(unit int) (image.Codec, error) {
	position, _ := f.UnitPosition(unit)
	raw := make([]byte, f.UnitLength(unit))
	if err := f.volume.ReadAt(position, raw); err != nil {
		return nil, fmt.Errorf("loading block `%d`: %w", unit, err)
	}
	return image.NewLinear(raw, uint32(unit)*f.blockSectors, f.stride)
}

func (f *Format) Store(unit int, codec image.Codec) error {
	raw, err := codec.Encode()
	if err != nil {
		return fmt.Errorf("storing block `%d`: %w", unit, err)
	}
	position, _ := f.UnitPosition(unit)
	if err := f.volume.WriteAt(position, raw); err != nil {
		return fmt.Errorf("storing block `%d`: %w", unit, err)
	}
	return nil
}

func (f *Format) Flush() error { return image.Sync(f.volume) }
