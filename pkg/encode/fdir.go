package encode

import (
	"fmt"

	. "github.com/weberc2/tidisk/pkg/types"
)

// FDIR is a file index sector: descriptor pointers sorted by file name.
// Floppies store FIB sector numbers; hard disks store FDR AU numbers and
// keep the owning DDR AU in the final word.
type FDIR struct {
	Entries []uint16 `json:"entries"`
	Owner   uint16   `json:"owner"`
}

const (
	fdirEntriesStart = 0
	fdirEntriesSize  = SectorSize - 2
	fdirEntriesEnd   = fdirEntriesStart + fdirEntriesSize

	fdirOwnerStart = fdirEntriesEnd

	// FDIRCapacity is the number of files one directory can hold.
	FDIRCapacity = int(fdirEntriesSize / 2)
)

func EncodeFDIR(fdir *FDIR, b *[SectorSize]byte) error {
	if len(fdir.Entries) > FDIRCapacity {
		return fmt.Errorf(
			"encoding FDIR: `%d` entries: %w",
			len(fdir.Entries),
			CapacityExceededErr,
		)
	}
	p := b[:]
	for i := range p {
		p[i] = 0
	}
	for i, entry := range fdir.Entries {
		putU16(p, fdirEntriesStart+Byte(i)*2, entry)
	}
	putU16(p, fdirOwnerStart, fdir.Owner)
	return nil
}

func DecodeFDIR(fdir *FDIR, b *[SectorSize]byte) {
	p := b[:]
	fdir.Entries = nil
	for i := Byte(0); i < fdirEntriesSize; i += 2 {
		entry := getU16(p, fdirEntriesStart+i)
		if entry == 0 {
			break
		}
		fdir.Entries = append(fdir.Entries, entry)
	}
	fdir.Owner = getU16(p, fdirOwnerStart)
}
