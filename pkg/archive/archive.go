// Package archive reads and writes archives: files whose content is a
// small directory of member files followed by the members themselves,
// optionally compressed as a whole.
package archive

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/weberc2/tidisk/pkg/encode"
	"github.com/weberc2/tidisk/pkg/math"
	. "github.com/weberc2/tidisk/pkg/types"
)

// Member is one file stored in an archive. Content is whole sectors.
type Member struct {
	Name             string    `json:"name"`
	Flags            FileFlags `json:"flags"`
	RecordsPerSector uint8     `json:"recordsPerSector"`
	Sectors          uint16    `json:"sectors"`
	EOFOffset        uint8     `json:"eofOffset"`
	RecordLength     uint8     `json:"recordLength"`
	RecordCount      uint16    `json:"recordCount"`
	Content          []byte    `json:"-"`
}

// Header converts the member's geometry into a file header.
func (m *Member) Header() encode.FileHeader {
	return encode.FileHeader{
		Name:             m.Name,
		Flags:            m.Flags,
		RecordsPerSector: m.RecordsPerSector,
		SectorsAllocated: m.Sectors,
		EOFOffset:        m.EOFOffset,
		RecordLength:     m.RecordLength,
		RecordCount:      m.RecordCount,
	}
}

// MemberOf builds a member from a file header and its content.
func MemberOf(header *encode.FileHeader, content []byte) Member {
	sectors := math.DivRoundUp(len(content), int(SectorSize))
	padded := make([]byte, sectors*int(SectorSize))
	copy(padded, content)
	return Member{
		Name:             header.Name,
		Flags:            header.Flags,
		RecordsPerSector: header.RecordsPerSector,
		Sectors:          uint16(sectors),
		EOFOffset:        header.EOFOffset,
		RecordLength:     header.RecordLength,
		RecordCount:      header.RecordCount,
		Content:          padded,
	}
}

type Archive struct {
	Members    []Member
	Compressed bool
}

var sentinel = []byte("END!")

const (
	recordNameStart = 0
	recordNameSize  = encode.NameSize
	recordNameEnd   = recordNameStart + recordNameSize

	recordFlagsStart = recordNameEnd
	recordFlagsSize  = 1
	recordFlagsEnd   = recordFlagsStart + recordFlagsSize

	recordRecordsPerSectorStart = recordFlagsEnd
	recordRecordsPerSectorSize  = 1
	recordRecordsPerSectorEnd   = recordRecordsPerSectorStart + recordRecordsPerSectorSize

	recordSectorsStart = recordRecordsPerSectorEnd
	recordSectorsSize  = 2
	recordSectorsEnd   = recordSectorsStart + recordSectorsSize

	recordEOFOffsetStart = recordSectorsEnd
	recordEOFOffsetSize  = 1
	recordEOFOffsetEnd   = recordEOFOffsetStart + recordEOFOffsetSize

	recordRecordLengthStart = recordEOFOffsetEnd
	recordRecordLengthSize  = 1
	recordRecordLengthEnd   = recordRecordLengthStart + recordRecordLengthSize

	recordRecordCountStart = recordRecordLengthEnd
	recordRecordCountSize  = 2
	recordRecordCountEnd   = recordRecordCountStart + recordRecordCountSize

	// RecordSize is the size of one directory record.
	RecordSize = recordRecordCountEnd

	// recordsPerSector directory records share a sector. The sentinel takes
	// the slot after the last record.
	recordsPerSector = int(SectorSize / RecordSize)
)

func (a *Archive) Find(name string) (*Member, int, bool) {
	for i := range a.Members {
		if a.Members[i].Name == name {
			return &a.Members[i], i, true
		}
	}
	return nil, 0, false
}

// Add appends `member`, or replaces the member of the same name when
// `overwrite` is set.
func (a *Archive) Add(member Member, overwrite bool) error {
	if err := encode.ValidateName(member.Name); err != nil {
		return fmt.Errorf("adding archive member: %w", err)
	}
	if Byte(len(member.Content)) != Byte(member.Sectors)*SectorSize {
		return fmt.Errorf(
			"adding archive member `%s`: `%d` bytes for `%d` sectors: %w",
			member.Name,
			len(member.Content),
			member.Sectors,
			CorruptErr,
		)
	}
	if _, i, ok := a.Find(member.Name); ok {
		if !overwrite {
			return fmt.Errorf("adding archive member `%s`: %w", member.Name, AlreadyExistsErr)
		}
		a.Members[i] = member
		return nil
	}
	a.Members = append(a.Members, member)
	return nil
}

func (a *Archive) Remove(name string) error {
	_, i, ok := a.Find(name)
	if !ok {
		return fmt.Errorf("removing archive member `%s`: %w", name, NotFoundErr)
	}
	a.Members = slices.Delete(a.Members, i, i+1)
	return nil
}

// Encode serializes the directory and the members, compressing the result
// when the archive is compressed.
func (a *Archive) Encode(compressor Compressor) ([]byte, error) {
	directory := math.DivRoundUp(len(a.Members)+1, recordsPerSector)
	blob := make([]byte, directory*int(SectorSize))
	for i, member := range a.Members {
		sector, slot := i/recordsPerSector, i%recordsPerSector
		start := Byte(sector)*SectorSize + Byte(slot)*RecordSize
		encodeRecord(&member, blob[start:start+RecordSize])
	}
	end := len(a.Members)
	start := Byte(end/recordsPerSector)*SectorSize + Byte(end%recordsPerSector)*RecordSize
	copy(blob[start:], sentinel)
	for _, member := range a.Members {
		blob = append(blob, member.Content...)
	}
	if !a.Compressed {
		return blob, nil
	}
	compressed, err := compressor.Compress(blob)
	if err != nil {
		return nil, err
	}
	return compressed, nil
}

// Decode parses archive content, decompressing it when it does not start
// with a directory.
func Decode(content []byte, compressor Compressor) (*Archive, error) {
	members, err := decodeBlob(content)
	if err == nil {
		return &Archive{Members: members}, nil
	}
	blob, derr := compressor.Decompress(content)
	if derr != nil {
		return nil, fmt.Errorf("decoding archive: %w", err)
	}
	if members, err = decodeBlob(blob); err != nil {
		return nil, fmt.Errorf("decoding compressed archive: %w", err)
	}
	return &Archive{Members: members, Compressed: true}, nil
}

func decodeBlob(blob []byte) ([]Member, error) {
	var members []Member
	for i := 0; ; i++ {
		sector, slot := i/recordsPerSector, i%recordsPerSector
		start := Byte(sector)*SectorSize + Byte(slot)*RecordSize
		if start+Byte(len(sentinel)) > Byte(len(blob)) {
			return nil, fmt.Errorf("directory without `%s`: %w", sentinel, CorruptErr)
		}
		if bytes.Equal(blob[start:start+Byte(len(sentinel))], sentinel) {
			break
		}
		if start+RecordSize > Byte(len(blob)) {
			return nil, fmt.Errorf("directory record `%d` truncated: %w", i, CorruptErr)
		}
		var member Member
		if err := decodeRecord(&member, blob[start:start+RecordSize]); err != nil {
			return nil, fmt.Errorf("directory record `%d`: %w", i, err)
		}
		members = append(members, member)
	}

	offset := Byte(math.DivRoundUp(len(members)+1, recordsPerSector)) * SectorSize
	for i := range members {
		size := Byte(members[i].Sectors) * SectorSize
		if offset+size > Byte(len(blob)) {
			return nil, fmt.Errorf(
				"member `%s`: `%d` sectors past the end: %w",
				members[i].Name,
				members[i].Sectors,
				CorruptErr,
			)
		}
		members[i].Content = blob[offset : offset+size]
		offset += size
	}
	return members, nil
}

func encodeRecord(m *Member, p []byte) {
	encode.PutName(p, recordNameStart, m.Name)
	p[recordFlagsStart] = uint8(m.Flags)
	p[recordRecordsPerSectorStart] = m.RecordsPerSector
	encode.PutU16(p, recordSectorsStart, m.Sectors)
	p[recordEOFOffsetStart] = m.EOFOffset
	p[recordRecordLengthStart] = m.RecordLength
	encode.PutU16LE(p, recordRecordCountStart, m.RecordCount)
}

func decodeRecord(m *Member, p []byte) error {
	m.Name = encode.GetName(p, recordNameStart)
	if err := encode.ValidateName(m.Name); err != nil {
		return fmt.Errorf("%w: %w", CorruptErr, err)
	}
	m.Flags = FileFlags(p[recordFlagsStart])
	m.RecordsPerSector = p[recordRecordsPerSectorStart]
	m.Sectors = encode.GetU16(p, recordSectorsStart)
	m.EOFOffset = p[recordEOFOffsetStart]
	m.RecordLength = p[recordRecordLengthStart]
	m.RecordCount = encode.GetU16LE(p, recordRecordCountStart)
	return nil
}
