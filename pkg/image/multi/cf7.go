// Package multi addresses containers holding several file system volumes:
// CF7 flash cards with fixed-size sub-volumes and partitioned hard disk
// images. Each volume is exposed as a window of the container through
// io.OffsetVolume and decoded with an inner sector dump format.
package multi

import (
	"fmt"

	"github.com/weberc2/tidisk/pkg/image/dump"
	"github.com/weberc2/tidisk/pkg/io"
	. "github.com/weberc2/tidisk/pkg/types"
)

const (
	CF7Sectors uint32 = 1600

	// cf7Stride is the number of stored bytes per payload byte.
	cf7Stride = 2

	CF7VolumeSize = Byte(CF7Sectors) * SectorSize * cf7Stride
)

// CF7Count returns the number of sub-volumes on a CF7 card image. A partial
// trailing sub-volume is ignored.
func CF7Count(volume io.Volume) (int, error) {
	size, err := volume.Size()
	if err != nil {
		return 0, fmt.Errorf("counting cf7 volumes: %w", err)
	}
	return int(size / CF7VolumeSize), nil
}

// CF7Volume opens sub-volume `index` of a CF7 card image.
func CF7Volume(
	volume io.Volume,
	index int,
	blockSectors uint32,
) (*dump.Format, error) {
	count, err := CF7Count(volume)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= count {
		return nil, fmt.Errorf(
			"opening cf7 volume `%d` of `%d`: %w",
			index,
			count,
			NotFoundErr,
		)
	}
	return dump.NewStrided(
		io.NewOffsetVolume(volume, Byte(index)*CF7VolumeSize, CF7VolumeSize),
		CF7Sectors,
		blockSectors,
		cf7Stride,
	), nil
}

// CreateCF7 writes a blank card image with `count` sub-volumes.
func CreateCF7(volume io.Volume, count int) error {
	if err := volume.WriteAt(0, make([]byte, Byte(count)*CF7VolumeSize)); err != nil {
		return fmt.Errorf("creating cf7 image of `%d` volumes: %w", count, err)
	}
	return nil
}

// IsCF7 reports whether the first sub-volume of `volume` carries a floppy
// volume information block in its even bytes.
func IsCF7(volume io.Volume) bool {
	size, err := volume.Size()
	if err != nil || size < CF7VolumeSize || size%CF7VolumeSize != 0 {
		return false
	}
	var b [0x10 * cf7Stride]byte
	if err := volume.ReadAt(0, b[:]); err != nil {
		return false
	}
	return b[0x0D*cf7Stride] == 'D' &&
		b[0x0E*cf7Stride] == 'S' &&
		b[0x0F*cf7Stride] == 'K'
}
