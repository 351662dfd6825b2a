// Package tifiles converts files to and from the TIFILES exchange format: a
// 128-byte header describing the file followed by its sectors.
package tifiles

import (
	"bytes"
	"fmt"

	"github.com/weberc2/tidisk/pkg/encode"
	"github.com/weberc2/tidisk/pkg/math"
	. "github.com/weberc2/tidisk/pkg/types"
)

var signature = []byte("\x07TIFILES")

const (
	signatureStart = 0
	signatureSize  = 8
	signatureEnd   = signatureStart + signatureSize

	sectorsStart = signatureEnd
	sectorsSize  = 2
	sectorsEnd   = sectorsStart + sectorsSize

	flagsStart = sectorsEnd
	flagsSize  = 1
	flagsEnd   = flagsStart + flagsSize

	recordsPerSectorStart = flagsEnd
	recordsPerSectorSize  = 1
	recordsPerSectorEnd   = recordsPerSectorStart + recordsPerSectorSize

	eofOffsetStart = recordsPerSectorEnd
	eofOffsetSize  = 1
	eofOffsetEnd   = eofOffsetStart + eofOffsetSize

	recordLengthStart = eofOffsetEnd
	recordLengthSize  = 1
	recordLengthEnd   = recordLengthStart + recordLengthSize

	recordCountStart = recordLengthEnd
	recordCountSize  = 2
	recordCountEnd   = recordCountStart + recordCountSize

	nameStart = recordCountEnd
	nameSize  = encode.NameSize
	nameEnd   = nameStart + nameSize

	extendedStart = nameEnd
	extendedSize  = 4
	extendedEnd   = extendedStart + extendedSize

	createdStart = extendedEnd
	createdSize  = encode.TimestampSize
	createdEnd   = createdStart + createdSize

	updatedStart = createdEnd
	updatedSize  = encode.TimestampSize
	updatedEnd   = updatedStart + updatedSize

	HeaderSize Byte = 128
)

// Is reports whether `data` starts with a TIFILES header.
func Is(data []byte) bool {
	return len(data) >= int(HeaderSize) &&
		bytes.Equal(data[signatureStart:signatureEnd], signature)
}

// Encode wraps a file's header and content. The content is padded to the
// sector count in `header`.
func Encode(header *encode.FileHeader, content []byte) []byte {
	sectors := Byte(header.SectorsAllocated)
	out := make([]byte, HeaderSize+sectors*SectorSize)
	copy(out[signatureStart:signatureEnd], signature)
	encode.PutU16(out, sectorsStart, header.SectorsAllocated)
	out[flagsStart] = uint8(header.Flags)
	out[recordsPerSectorStart] = header.RecordsPerSector
	out[eofOffsetStart] = header.EOFOffset
	out[recordLengthStart] = header.RecordLength
	encode.PutU16LE(out, recordCountStart, header.RecordCount)
	encode.PutName(out, nameStart, header.Name)
	encode.PutTimestamp(out, createdStart, header.Created)
	encode.PutTimestamp(out, updatedStart, header.Updated)
	copy(out[HeaderSize:], content[:math.Min(len(content), int(sectors*SectorSize))])
	return out
}

// Decode splits TIFILES data into the file header and its content. The name
// is empty when the header does not carry one.
func Decode(data []byte) (*encode.FileHeader, []byte, error) {
	if !Is(data) {
		found := data[:math.Min(len(data), signatureEnd)]
		return nil, nil, fmt.Errorf(
			"decoding TIFILES header: %w",
			&ErrBadSignature{Wanted: string(signature), Found: found},
		)
	}
	header := encode.FileHeader{
		SectorsAllocated: encode.GetU16(data, sectorsStart),
		Flags:            FileFlags(data[flagsStart]),
		RecordsPerSector: data[recordsPerSectorStart],
		EOFOffset:        data[eofOffsetStart],
		RecordLength:     data[recordLengthStart],
		RecordCount:      encode.GetU16LE(data, recordCountStart),
	}
	if name := encode.GetName(data, nameStart); encode.ValidateName(name) == nil {
		header.Name = name
		header.Created = encode.GetTimestamp(data, createdStart)
		header.Updated = encode.GetTimestamp(data, updatedStart)
	}
	size := Byte(header.SectorsAllocated) * SectorSize
	if HeaderSize+size > Byte(len(data)) {
		return nil, nil, fmt.Errorf(
			"decoding TIFILES `%s`: `%d` sectors in `%d` bytes: %w",
			header.Name,
			header.SectorsAllocated,
			len(data),
			CorruptErr,
		)
	}
	return &header, data[HeaderSize : HeaderSize+size], nil
}
