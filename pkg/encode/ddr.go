package encode

import (
	"bytes"
	"fmt"
	"time"

	. "github.com/weberc2/tidisk/pkg/types"
)

// DDR is a hard disk directory descriptor record.
type DDR struct {
	Name            string    `json:"name"`
	TotalAUs        uint16    `json:"totalAUs"`
	SectorsPerTrack uint8     `json:"sectorsPerTrack"`
	Created         time.Time `json:"created"`
	Files           uint8     `json:"files"`
	Subdirs         uint8     `json:"subdirs"`
	FDIR            uint16    `json:"fdir"`
	Parent          uint16    `json:"parent"`
	Children        []uint16  `json:"children"`
}

var ddrMarker = []byte("DIR")

const (
	ddrMarkerStart = hdvibReservedStart
	ddrMarkerSize  = 3
	ddrMarkerEnd   = ddrMarkerStart + ddrMarkerSize
)

func EncodeDDR(ddr *DDR, b *[SectorSize]byte) error {
	if len(ddr.Children) > ChildCapacity {
		return fmt.Errorf(
			"encoding DDR `%s`: `%d` subdirectories: %w",
			ddr.Name,
			len(ddr.Children),
			CapacityExceededErr,
		)
	}
	p := b[:]
	for i := range p {
		p[i] = 0
	}
	putName(p, hdvibNameStart, ddr.Name)
	putU16(p, hdvibTotalAUsStart, ddr.TotalAUs)
	putU8(p, hdvibSectorsPerTrackStart, ddr.SectorsPerTrack)
	copy(p[ddrMarkerStart:ddrMarkerEnd], ddrMarker)
	putTimestamp(p, dirCreatedStart, ddr.Created)
	putU8(p, dirFilesStart, ddr.Files)
	putU8(p, dirSubdirsStart, ddr.Subdirs)
	putU16(p, dirFDIRStart, ddr.FDIR)
	putU16(p, dirLinkStart, ddr.Parent)
	for i, child := range ddr.Children {
		putU16(p, dirChildrenStart+Byte(i)*2, child)
	}
	return nil
}

func DecodeDDR(ddr *DDR, b *[SectorSize]byte) error {
	p := b[:]
	if marker := p[ddrMarkerStart:ddrMarkerEnd]; !bytes.Equal(marker, ddrMarker) {
		return fmt.Errorf(
			"decoding DDR: %w",
			&ErrBadSignature{Wanted: string(ddrMarker), Found: marker},
		)
	}
	name := getName(p, hdvibNameStart)
	if err := ValidateName(name); err != nil {
		return fmt.Errorf("decoding DDR: %w: %w", CorruptErr, err)
	}
	*ddr = DDR{
		Name:            name,
		TotalAUs:        getU16(p, hdvibTotalAUsStart),
		SectorsPerTrack: getU8(p, hdvibSectorsPerTrackStart),
		Created:         getTimestamp(p, dirCreatedStart),
		Files:           getU8(p, dirFilesStart),
		Subdirs:         getU8(p, dirSubdirsStart),
		FDIR:            getU16(p, dirFDIRStart),
		Parent:          getU16(p, dirLinkStart),
		Children:        getChildren(p),
	}
	return nil
}
