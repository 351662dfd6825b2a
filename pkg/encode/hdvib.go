package encode

import (
	"fmt"
	"time"

	. "github.com/weberc2/tidisk/pkg/types"
)

// HardDiskVIB is sector 0 of a hard disk volume.
type HardDiskVIB struct {
	Name                string    `json:"name"`
	TotalAUs            uint16    `json:"totalAUs"`
	SectorsPerTrack     uint8     `json:"sectorsPerTrack"`
	ReservedAUs         uint16    `json:"reservedAUs"`
	StepSpeed           uint8     `json:"stepSpeed"`
	ReducedWriteCurrent uint8     `json:"reducedWriteCurrent"`
	SectorsPerAU        uint8     `json:"sectorsPerAU"`
	Heads               uint8     `json:"heads"`
	WritePrecomp        uint8     `json:"writePrecomp"`
	Created             time.Time `json:"created"`
	Files               uint8     `json:"files"`
	Subdirs             uint8     `json:"subdirs"`
	FDIR                uint16    `json:"fdir"`
	Emulate             uint16    `json:"emulate"`
	Children            []uint16  `json:"children"`
}

const (
	hdvibNameStart = 0
	hdvibNameSize  = NameSize
	hdvibNameEnd   = hdvibNameStart + hdvibNameSize

	hdvibTotalAUsStart = hdvibNameEnd
	hdvibTotalAUsSize  = 2
	hdvibTotalAUsEnd   = hdvibTotalAUsStart + hdvibTotalAUsSize

	hdvibSectorsPerTrackStart = hdvibTotalAUsEnd
	hdvibSectorsPerTrackSize  = 1
	hdvibSectorsPerTrackEnd   = hdvibSectorsPerTrackStart + hdvibSectorsPerTrackSize

	hdvibReservedStart = hdvibSectorsPerTrackEnd
	hdvibReservedSize  = 1
	hdvibReservedEnd   = hdvibReservedStart + hdvibReservedSize

	hdvibStepSpeedStart = hdvibReservedEnd
	hdvibStepSpeedSize  = 1
	hdvibStepSpeedEnd   = hdvibStepSpeedStart + hdvibStepSpeedSize

	hdvibReducedWriteCurrentStart = hdvibStepSpeedEnd
	hdvibReducedWriteCurrentSize  = 1
	hdvibReducedWriteCurrentEnd   = hdvibReducedWriteCurrentStart + hdvibReducedWriteCurrentSize

	hdvibGeometryStart = hdvibReducedWriteCurrentEnd
	hdvibGeometrySize  = 1
	hdvibGeometryEnd   = hdvibGeometryStart + hdvibGeometrySize

	hdvibWritePrecompStart = hdvibGeometryEnd
	hdvibWritePrecompSize  = 1
	hdvibWritePrecompEnd   = hdvibWritePrecompStart + hdvibWritePrecompSize

	// The remaining fields are shared with DDRs.
	dirCreatedStart = hdvibWritePrecompEnd
	dirCreatedSize  = TimestampSize
	dirCreatedEnd   = dirCreatedStart + dirCreatedSize

	dirFilesStart = dirCreatedEnd
	dirFilesSize  = 1
	dirFilesEnd   = dirFilesStart + dirFilesSize

	dirSubdirsStart = dirFilesEnd
	dirSubdirsSize  = 1
	dirSubdirsEnd   = dirSubdirsStart + dirSubdirsSize

	dirFDIRStart = dirSubdirsEnd
	dirFDIRSize  = 2
	dirFDIREnd   = dirFDIRStart + dirFDIRSize

	// the emulate-file AU in the VIB; the parent DDR AU in a DDR
	dirLinkStart = dirFDIREnd
	dirLinkSize  = 2
	dirLinkEnd   = dirLinkStart + dirLinkSize

	dirChildrenStart = dirLinkEnd
	dirChildrenSize  = SectorSize - dirChildrenStart
	dirChildrenEnd   = dirChildrenStart + dirChildrenSize

	// ChildCapacity is the number of subdirectories one directory can hold.
	ChildCapacity = int(dirChildrenSize / 2)

	reservedAUsScale = 64
)

func EncodeHardDiskVIB(vib *HardDiskVIB, b *[SectorSize]byte) error {
	if len(vib.Children) > ChildCapacity {
		return fmt.Errorf(
			"encoding hard disk VIB: `%d` subdirectories: %w",
			len(vib.Children),
			CapacityExceededErr,
		)
	}
	if vib.SectorsPerAU < 1 || vib.SectorsPerAU > 16 || vib.Heads < 1 || vib.Heads > 16 {
		return fmt.Errorf(
			"encoding hard disk VIB: sectors per AU `%d`, heads `%d`: %w",
			vib.SectorsPerAU,
			vib.Heads,
			UnsupportedErr,
		)
	}
	p := b[:]
	for i := range p {
		p[i] = 0
	}
	putName(p, hdvibNameStart, vib.Name)
	putU16(p, hdvibTotalAUsStart, vib.TotalAUs)
	putU8(p, hdvibSectorsPerTrackStart, vib.SectorsPerTrack)
	putU8(p, hdvibReservedStart, uint8(vib.ReservedAUs/reservedAUsScale))
	putU8(p, hdvibStepSpeedStart, vib.StepSpeed)
	putU8(p, hdvibReducedWriteCurrentStart, vib.ReducedWriteCurrent)
	putU8(p, hdvibGeometryStart, (vib.SectorsPerAU-1)<<4|(vib.Heads-1))
	putU8(p, hdvibWritePrecompStart, vib.WritePrecomp)
	putTimestamp(p, dirCreatedStart, vib.Created)
	putU8(p, dirFilesStart, vib.Files)
	putU8(p, dirSubdirsStart, vib.Subdirs)
	putU16(p, dirFDIRStart, vib.FDIR)
	putU16(p, dirLinkStart, vib.Emulate)
	for i, child := range vib.Children {
		putU16(p, dirChildrenStart+Byte(i)*2, child)
	}
	return nil
}

func DecodeHardDiskVIB(vib *HardDiskVIB, b *[SectorSize]byte) error {
	p := b[:]
	var out HardDiskVIB
	out.Name = getName(p, hdvibNameStart)
	out.TotalAUs = getU16(p, hdvibTotalAUsStart)
	out.SectorsPerTrack = getU8(p, hdvibSectorsPerTrackStart)
	out.ReservedAUs = uint16(getU8(p, hdvibReservedStart)) * reservedAUsScale
	out.StepSpeed = getU8(p, hdvibStepSpeedStart)
	out.ReducedWriteCurrent = getU8(p, hdvibReducedWriteCurrentStart)
	geometry := getU8(p, hdvibGeometryStart)
	out.SectorsPerAU = geometry>>4 + 1
	out.Heads = geometry&0x0F + 1
	out.WritePrecomp = getU8(p, hdvibWritePrecompStart)
	out.Created = getTimestamp(p, dirCreatedStart)
	out.Files = getU8(p, dirFilesStart)
	out.Subdirs = getU8(p, dirSubdirsStart)
	out.FDIR = getU16(p, dirFDIRStart)
	out.Emulate = getU16(p, dirLinkStart)
	out.Children = getChildren(p)

	if out.TotalAUs == 0 || out.FDIR == 0 || out.FDIR >= out.TotalAUs {
		return fmt.Errorf(
			"decoding hard disk VIB: total AUs `%d`, FDIR AU `%d`: %w",
			out.TotalAUs,
			out.FDIR,
			CorruptErr,
		)
	}
	if err := ValidateName(out.Name); err != nil {
		return fmt.Errorf("decoding hard disk VIB: %w: %w", CorruptErr, err)
	}
	*vib = out
	return nil
}

func getChildren(p []byte) []uint16 {
	var children []uint16
	for i := Byte(0); i < dirChildrenSize; i += 2 {
		child := getU16(p, dirChildrenStart+i)
		if child == 0 {
			break
		}
		children = append(children, child)
	}
	return children
}
