package encode

import (
	"math/bits"
	"time"

	. "github.com/weberc2/tidisk/pkg/types"
)

// FileHeader holds the fields shared by floppy FIBs and hard disk FDRs.
type FileHeader struct {
	Name             string    `json:"name"`
	ExtRecordLength  uint16    `json:"extRecordLength"`
	Flags            FileFlags `json:"flags"`
	RecordsPerSector uint8     `json:"recordsPerSector"`
	SectorsAllocated uint16    `json:"sectorsAllocated"`
	EOFOffset        uint8     `json:"eofOffset"`
	RecordLength     uint8     `json:"recordLength"`
	RecordCount      uint16    `json:"recordCount"`
	Created          time.Time `json:"created"`
	Updated          time.Time `json:"updated"`
}

func encodeHeader(h *FileHeader, p []byte) {
	putName(p, headerNameStart, h.Name)
	putU16(p, headerExtRecordLengthStart, h.ExtRecordLength)
	putU8(p, headerFlagsStart, uint8(h.Flags))
	putU8(p, headerRecordsPerSectorStart, h.RecordsPerSector)
	putU16(p, headerSectorsAllocatedStart, h.SectorsAllocated)
	putU8(p, headerEOFOffsetStart, h.EOFOffset)
	putU8(p, headerRecordLengthStart, h.RecordLength)
	putU16LE(p, headerRecordCountStart, h.RecordCount)
	putTimestamp(p, headerCreatedStart, h.Created)
	putTimestamp(p, headerUpdatedStart, h.Updated)
}

func decodeHeader(h *FileHeader, p []byte) {
	h.Name = getName(p, headerNameStart)
	h.ExtRecordLength = getU16(p, headerExtRecordLengthStart)
	h.Flags = FileFlags(getU8(p, headerFlagsStart))
	h.RecordsPerSector = getU8(p, headerRecordsPerSectorStart)
	h.SectorsAllocated = getU16(p, headerSectorsAllocatedStart)
	h.EOFOffset = getU8(p, headerEOFOffsetStart)
	h.RecordLength = getU8(p, headerRecordLengthStart)
	h.RecordCount = getU16LE(p, headerRecordCountStart)
	h.Created = getTimestamp(p, headerCreatedStart)
	h.Updated = getTimestamp(p, headerUpdatedStart)
}

// RecordCountConsistent reports whether the level-3 record count fits the
// record geometry. Fixed files count records; variable files count the
// sectors in use.
func (h *FileHeader) RecordCountConsistent() bool {
	return recordCountFits(h, h.RecordCount)
}

// SwappedRecordCount is the record count with its two bytes exchanged.
func (h *FileHeader) SwappedRecordCount() uint16 {
	return bits.ReverseBytes16(h.RecordCount)
}

// SwapSuspected reports a record count that only makes sense with its bytes
// exchanged.
func (h *FileHeader) SwapSuspected() bool {
	return !recordCountFits(h, h.RecordCount) &&
		recordCountFits(h, h.SwappedRecordCount())
}

// RecordCountAbsurd reports a record count that cannot fit a medium of
// `totalSectors` sectors in either byte order, whatever the file's own
// allocation says.
func (h *FileHeader) RecordCountAbsurd(totalSectors uint32) bool {
	if h.Flags.Program() {
		return false
	}
	limit := totalSectors
	if !h.Flags.Variable() && h.RecordsPerSector > 0 {
		limit *= uint32(h.RecordsPerSector)
	}
	return uint32(h.RecordCount) > limit &&
		uint32(h.SwappedRecordCount()) > limit
}

func recordCountFits(h *FileHeader, count uint16) bool {
	switch {
	case h.Flags.Program():
		return true
	case h.Flags.Variable():
		return count <= h.SectorsAllocated
	case h.RecordsPerSector == 0:
		return count == 0
	default:
		return uint32(count) <=
			uint32(h.RecordsPerSector)*uint32(h.SectorsAllocated)
	}
}

const (
	headerNameStart = 0
	headerNameSize  = NameSize
	headerNameEnd   = headerNameStart + headerNameSize

	headerExtRecordLengthStart = headerNameEnd
	headerExtRecordLengthSize  = 2
	headerExtRecordLengthEnd   = headerExtRecordLengthStart + headerExtRecordLengthSize

	headerFlagsStart = headerExtRecordLengthEnd
	headerFlagsSize  = 1
	headerFlagsEnd   = headerFlagsStart + headerFlagsSize

	headerRecordsPerSectorStart = headerFlagsEnd
	headerRecordsPerSectorSize  = 1
	headerRecordsPerSectorEnd   = headerRecordsPerSectorStart + headerRecordsPerSectorSize

	headerSectorsAllocatedStart = headerRecordsPerSectorEnd
	headerSectorsAllocatedSize  = 2
	headerSectorsAllocatedEnd   = headerSectorsAllocatedStart + headerSectorsAllocatedSize

	headerEOFOffsetStart = headerSectorsAllocatedEnd
	headerEOFOffsetSize  = 1
	headerEOFOffsetEnd   = headerEOFOffsetStart + headerEOFOffsetSize

	headerRecordLengthStart = headerEOFOffsetEnd
	headerRecordLengthSize  = 1
	headerRecordLengthEnd   = headerRecordLengthStart + headerRecordLengthSize

	headerRecordCountStart = headerRecordLengthEnd
	headerRecordCountSize  = 2
	headerRecordCountEnd   = headerRecordCountStart + headerRecordCountSize

	headerCreatedStart = headerRecordCountEnd
	headerCreatedSize  = TimestampSize
	headerCreatedEnd   = headerCreatedStart + headerCreatedSize

	headerUpdatedStart = headerCreatedEnd
	headerUpdatedSize  = TimestampSize
	headerUpdatedEnd   = headerUpdatedStart + headerUpdatedSize

	// HeaderSize is where the format-specific part of a descriptor begins.
	HeaderSize = headerUpdatedEnd
)
