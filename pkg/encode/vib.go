package encode

import (
	"bytes"
	"fmt"

	. "github.com/weberc2/tidisk/pkg/types"
)

// SubdirSlot is one of the three floppy subdirectory entries in the VIB.
type SubdirSlot struct {
	Name string `json:"name"`
	FDIR uint16 `json:"fdir"`
}

// FloppyVIB is sector 0 of a floppy volume.
type FloppyVIB struct {
	Name            string        `json:"name"`
	TotalSectors    uint16        `json:"totalSectors"`
	SectorsPerTrack uint8         `json:"sectorsPerTrack"`
	Protected       bool          `json:"protected"`
	Tracks          uint8         `json:"tracks"`
	Sides           uint8         `json:"sides"`
	Density         uint8         `json:"density"`
	Subdirs         [3]SubdirSlot `json:"subdirs"`
	Bitmap          []byte        `json:"-"`
}

var floppyMarker = []byte("DSK")

const (
	vibNameStart = 0
	vibNameSize  = NameSize
	vibNameEnd   = vibNameStart + vibNameSize

	vibTotalSectorsStart = vibNameEnd
	vibTotalSectorsSize  = 2
	vibTotalSectorsEnd   = vibTotalSectorsStart + vibTotalSectorsSize

	vibSectorsPerTrackStart = vibTotalSectorsEnd
	vibSectorsPerTrackSize  = 1
	vibSectorsPerTrackEnd   = vibSectorsPerTrackStart + vibSectorsPerTrackSize

	vibMarkerStart = vibSectorsPerTrackEnd
	vibMarkerSize  = 3
	vibMarkerEnd   = vibMarkerStart + vibMarkerSize

	vibProtectionStart = vibMarkerEnd
	vibProtectionSize  = 1
	vibProtectionEnd   = vibProtectionStart + vibProtectionSize

	vibTracksStart = vibProtectionEnd
	vibTracksSize  = 1
	vibTracksEnd   = vibTracksStart + vibTracksSize

	vibSidesStart = vibTracksEnd
	vibSidesSize  = 1
	vibSidesEnd   = vibSidesStart + vibSidesSize

	vibDensityStart = vibSidesEnd
	vibDensitySize  = 1
	vibDensityEnd   = vibDensityStart + vibDensitySize

	vibSubdirsStart = vibDensityEnd
	vibSubdirSize   = NameSize + 2
	vibSubdirsSize  = 3 * vibSubdirSize
	vibSubdirsEnd   = vibSubdirsStart + vibSubdirsSize

	vibBitmapStart = vibSubdirsEnd
	vibBitmapSize  = SectorSize - vibBitmapStart
	vibBitmapEnd   = vibBitmapStart + vibBitmapSize

	// FloppyBitmapSize is the size of the floppy allocation bitmap region.
	FloppyBitmapSize = int(vibBitmapSize)

	protectedMarker = 'P'
)

// IsFloppyVIB reports whether `b` carries the floppy volume marker.
func IsFloppyVIB(b *[SectorSize]byte) bool {
	return bytes.Equal(b[vibMarkerStart:vibMarkerEnd], floppyMarker)
}

func EncodeFloppyVIB(vib *FloppyVIB, b *[SectorSize]byte) {
	p := b[:]
	for i := range p {
		p[i] = 0
	}
	putName(p, vibNameStart, vib.Name)
	putU16(p, vibTotalSectorsStart, vib.TotalSectors)
	putU8(p, vibSectorsPerTrackStart, vib.SectorsPerTrack)
	copy(p[vibMarkerStart:vibMarkerEnd], floppyMarker)
	if vib.Protected {
		putU8(p, vibProtectionStart, protectedMarker)
	} else {
		putU8(p, vibProtectionStart, ' ')
	}
	putU8(p, vibTracksStart, vib.Tracks)
	putU8(p, vibSidesStart, vib.Sides)
	putU8(p, vibDensityStart, vib.Density)
	for i, slot := range vib.Subdirs {
		start := vibSubdirsStart + Byte(i)*vibSubdirSize
		if slot.Name != "" {
			putName(p, start, slot.Name)
		}
		putU16(p, start+NameSize, slot.FDIR)
	}
	copy(p[vibBitmapStart:vibBitmapEnd], vib.Bitmap)
}

func DecodeFloppyVIB(vib *FloppyVIB, b *[SectorSize]byte) error {
	p := b[:]
	if !IsFloppyVIB(b) {
		return fmt.Errorf(
			"decoding floppy VIB: %w",
			&ErrBadSignature{
				Wanted: string(floppyMarker),
				Found:  p[vibMarkerStart:vibMarkerEnd],
			},
		)
	}
	vib.Name = getName(p, vibNameStart)
	vib.TotalSectors = getU16(p, vibTotalSectorsStart)
	vib.SectorsPerTrack = getU8(p, vibSectorsPerTrackStart)
	vib.Protected = getU8(p, vibProtectionStart) == protectedMarker
	vib.Tracks = getU8(p, vibTracksStart)
	vib.Sides = getU8(p, vibSidesStart)
	vib.Density = getU8(p, vibDensityStart)
	for i := range vib.Subdirs {
		start := vibSubdirsStart + Byte(i)*vibSubdirSize
		vib.Subdirs[i] = SubdirSlot{
			Name: getName(p, start),
			FDIR: getU16(p, start+NameSize),
		}
		if vib.Subdirs[i].FDIR == 0 {
			vib.Subdirs[i] = SubdirSlot{}
		}
	}
	vib.Bitmap = make([]byte, vibBitmapSize)
	copy(vib.Bitmap, p[vibBitmapStart:vibBitmapEnd])
	if vib.TotalSectors < 2 {
		return fmt.Errorf(
			"decoding floppy VIB: total sectors `%d`: %w",
			vib.TotalSectors,
			CorruptErr,
		)
	}
	return nil
}
