package fs

import (
	"fmt"
	"time"

	"github.com/weberc2/tidisk/pkg/alloc"
	"github.com/weberc2/tidisk/pkg/encode"
	"github.com/weberc2/tidisk/pkg/math"
	. "github.com/weberc2/tidisk/pkg/types"
)

type FormatParams struct {
	Kind            Kind
	Name            string
	TotalSectors    uint32
	SectorsPerTrack uint8

	// Floppy geometry.
	Tracks  uint8
	Sides   uint8
	Density uint8

	// Hard disk geometry. A zero SectorsPerAU picks the smallest AU size
	// whose count fits the bitmap.
	Heads        uint8
	SectorsPerAU uint32
	ReservedAUs  uint16
}

const (
	maxFloppySectors  = 0xFFFF
	maxHardDiskAUSize = 16

	// The VIB stores the reserved AU count in units of 64.
	reservedAUsScale = 64
	maxReservedAUs   = 0xFF * reservedAUsScale
)

// Format writes an empty file system to `store` and opens it.
func Format(store SectorStore, params *FormatParams, options Options) (*FileSystem, error) {
	if err := encode.ValidateName(params.Name); err != nil {
		return nil, fmt.Errorf("formatting volume: %w", err)
	}
	now := time.Now
	if options.Now != nil {
		now = options.Now
	}
	var err error
	if params.Kind == KindHardDisk {
		err = formatHardDisk(store, params, encode.Truncate(now()))
	} else {
		err = formatFloppy(store, params)
	}
	if err != nil {
		return nil, fmt.Errorf("formatting %s volume `%s`: %w", params.Kind, params.Name, err)
	}
	return Open(store, options)
}

func formatFloppy(store SectorStore, params *FormatParams) error {
	total := params.TotalSectors
	if total <= floppyDataSector || total > maxFloppySectors {
		return fmt.Errorf("`%d` sectors: %w", total, UnsupportedErr)
	}
	au := FloppyAUSize(total)
	m := alloc.New(total/au, au, alloc.LSBFirst, encode.FloppyBitmapSize)
	m.Allocate(m.AUOf(floppyVIBSector))
	m.Allocate(m.AUOf(floppyIndexSector))

	var content [SectorSize]byte
	if err := encode.EncodeFDIR(&encode.FDIR{}, &content); err != nil {
		return err
	}
	if err := store.WriteSector(Sector{Number: floppyIndexSector, Content: content}); err != nil {
		return err
	}
	encode.EncodeFloppyVIB(
		&encode.FloppyVIB{
			Name:            params.Name,
			TotalSectors:    uint16(total),
			SectorsPerTrack: params.SectorsPerTrack,
			Tracks:          params.Tracks,
			Sides:           params.Sides,
			Density:         params.Density,
			Bitmap:          m.Bytes(),
		},
		&content,
	)
	return store.WriteSector(Sector{Number: floppyVIBSector, Content: content})
}

// HardDiskAUSize is the smallest AU size that lets `total` sectors fit the
// hard disk bitmap.
func HardDiskAUSize(total uint32) uint32 {
	limit := math.Min(HardDiskMaxAUs, 0xFFFF)
	au := uint32(1)
	for total/au > limit {
		au *= 2
	}
	return au
}

func formatHardDisk(store SectorStore, params *FormatParams, now time.Time) error {
	au := params.SectorsPerAU
	if au == 0 {
		au = HardDiskAUSize(params.TotalSectors)
	}
	units := params.TotalSectors / au
	if au > maxHardDiskAUSize || units > math.Min(HardDiskMaxAUs, 0xFFFF) ||
		units*au <= hdBitmapEnd+au {
		return fmt.Errorf(
			"`%d` sectors in AUs of `%d`: %w",
			params.TotalSectors,
			au,
			UnsupportedErr,
		)
	}
	reserved := uint32(params.ReservedAUs)
	if reserved == 0 {
		reserved = units / 8
	}
	reserved = math.Min(reserved, uint32(maxReservedAUs)) / reservedAUsScale * reservedAUsScale
	heads := math.Max(params.Heads, 1)

	m := alloc.New(units, au, alloc.MSBFirst, hdBitmapRegion)
	for sector := hdVIBSector; sector < hdBitmapEnd; sector += au {
		m.Allocate(m.AUOf(sector))
	}
	index, _ := m.AllocFrom(m.AUOf(hdBitmapEnd))

	var content [SectorSize]byte
	if err := encode.EncodeFDIR(&encode.FDIR{}, &content); err != nil {
		return err
	}
	if err := store.WriteSector(Sector{Number: index * au, Content: content}); err != nil {
		return err
	}
	region := m.Bytes()
	for i := uint32(0); i < hdBitmapSize; i++ {
		sector := Sector{Number: hdBitmapStart + i}
		copy(sector.Content[:], region[Byte(i)*SectorSize:])
		if err := store.WriteSector(sector); err != nil {
			return err
		}
	}
	if err := encode.EncodeHardDiskVIB(
		&encode.HardDiskVIB{
			Name:            params.Name,
			TotalAUs:        uint16(units),
			SectorsPerTrack: params.SectorsPerTrack,
			ReservedAUs:     uint16(reserved),
			SectorsPerAU:    uint8(au),
			Heads:           heads,
			Created:         now,
			FDIR:            uint16(index),
		},
		&content,
	); err != nil {
		return err
	}
	return store.WriteSector(Sector{Number: hdVIBSector, Content: content})
}
