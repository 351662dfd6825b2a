package fs

import (
	"fmt"

	"github.com/weberc2/tidisk/pkg/encode"
	. "github.com/weberc2/tidisk/pkg/types"
)

// ReadFileSector returns sector `i` of the content of `f`.
func ReadFileSector(fs *FileSystem, f *File, i uint32) (*Sector, error) {
	number, ok := Resolve(f.Extents, i)
	if !ok || i >= uint32(f.SectorsAllocated) {
		return nil, fmt.Errorf(
			"reading sector `%d` of `%s`: %w",
			i,
			f.Name,
			NotFoundErr,
		)
	}
	sector, err := fs.readSector(number)
	if err != nil {
		return nil, fmt.Errorf("reading sector `%d` of `%s`: %w", i, f.Name, err)
	}
	return sector, nil
}

// ReadContent returns every allocated sector of `f`.
func ReadContent(fs *FileSystem, f *File) ([]byte, error) {
	content := make([]byte, 0, Byte(f.SectorsAllocated)*SectorSize)
	for i := uint32(0); i < uint32(f.SectorsAllocated); i++ {
		sector, err := ReadFileSector(fs, f, i)
		if err != nil {
			return nil, err
		}
		content = append(content, sector.Content[:]...)
	}
	return content, nil
}

// Length is the number of content bytes in use. Program files end at the
// EOF offset of their last sector; other files use whole sectors.
func (f *File) Length() Byte {
	sectors := Byte(f.SectorsAllocated)
	if !f.Flags.Program() || sectors == 0 || f.EOFOffset == 0 {
		return sectors * SectorSize
	}
	return (sectors-1)*SectorSize + Byte(f.EOFOffset)
}

// ReadProgram returns the content of `f` cut to its length.
func ReadProgram(fs *FileSystem, f *File) ([]byte, error) {
	content, err := ReadContent(fs, f)
	if err != nil {
		return nil, err
	}
	return content[:f.Length()], nil
}

const variableEnd = 0xFF

// ReadRecords splits the content of a data file into its records.
func ReadRecords(fs *FileSystem, f *File) ([][]byte, error) {
	if f.Flags.Program() {
		return nil, fmt.Errorf(
			"reading records of program `%s`: %w",
			f.Name,
			UnsupportedErr,
		)
	}
	content, err := ReadContent(fs, f)
	if err != nil {
		return nil, err
	}
	records, err := DecodeRecords(&f.FileHeader, content)
	if err != nil {
		return nil, fmt.Errorf("reading records of `%s`: %w", f.Name, err)
	}
	return records, nil
}

// DecodeRecords splits sector-aligned `content` into records according to
// the geometry in `header`.
func DecodeRecords(header *encode.FileHeader, content []byte) ([][]byte, error) {
	if header.Flags.Variable() {
		return decodeVariable(header, content)
	}
	return decodeFixed(header, content)
}

func decodeFixed(header *encode.FileHeader, content []byte) ([][]byte, error) {
	length, perSector := int(header.RecordLength), int(header.RecordsPerSector)
	if length == 0 || perSector == 0 || length*perSector > int(SectorSize) {
		return nil, fmt.Errorf(
			"`%d` records of `%d` bytes per sector: %w",
			perSector,
			length,
			CorruptErr,
		)
	}
	records := make([][]byte, 0, header.RecordCount)
	for r := 0; r < int(header.RecordCount); r++ {
		start := (r/perSector)*int(SectorSize) + (r%perSector)*length
		if start+length > len(content) {
			return nil, fmt.Errorf(
				"record `%d` past the end of the file: %w",
				r,
				CorruptErr,
			)
		}
		records = append(records, content[start:start+length])
	}
	return records, nil
}

// decodeVariable reads length-prefixed records; each sector ends at a
// 0xFF length byte. The record count of a variable file counts sectors.
func decodeVariable(header *encode.FileHeader, content []byte) ([][]byte, error) {
	sectors := int(header.RecordCount)
	if sectors > len(content)/int(SectorSize) {
		return nil, fmt.Errorf(
			"`%d` sectors of records in `%d` bytes: %w",
			sectors,
			len(content),
			CorruptErr,
		)
	}
	var records [][]byte
	for s := 0; s < sectors; s++ {
		sector := content[s*int(SectorSize) : (s+1)*int(SectorSize)]
		for pos := 0; pos < len(sector); {
			n := int(sector[pos])
			if n == variableEnd {
				break
			}
			pos++
			if pos+n > len(sector) {
				return nil, fmt.Errorf(
					"record in sector `%d` overruns the sector: %w",
					s,
					CorruptErr,
				)
			}
			records = append(records, sector[pos:pos+n])
			pos += n
		}
	}
	return records, nil
}

// EncodeRecords packs `records` into sectors and fills in the record
// geometry of `header`. RecordLength and the variable flag must already be
// set; a zero RecordLength is taken as 80.
func EncodeRecords(header *encode.FileHeader, records [][]byte) ([]byte, error) {
	if header.RecordLength == 0 {
		header.RecordLength = 80
	}
	for i, record := range records {
		if len(record) > int(header.RecordLength) {
			return nil, fmt.Errorf(
				"record `%d`: `%d` bytes exceed record length `%d`: %w",
				i,
				len(record),
				header.RecordLength,
				CapacityExceededErr,
			)
		}
	}
	if header.Flags.Variable() {
		return encodeVariable(header, records), nil
	}
	return encodeFixed(header, records), nil
}

func encodeFixed(header *encode.FileHeader, records [][]byte) []byte {
	length := int(header.RecordLength)
	perSector := int(SectorSize) / length
	sectors := (len(records) + perSector - 1) / perSector
	content := make([]byte, sectors*int(SectorSize))
	for r, record := range records {
		start := (r/perSector)*int(SectorSize) + (r%perSector)*length
		copy(content[start:start+length], record)
	}
	header.RecordsPerSector = uint8(perSector)
	header.RecordCount = uint16(len(records))
	header.SectorsAllocated = uint16(sectors)
	header.EOFOffset = 0
	return content
}

func encodeVariable(header *encode.FileHeader, records [][]byte) []byte {
	var content []byte
	sector := make([]byte, 0, SectorSize)
	flush := func() {
		header.EOFOffset = uint8(len(sector))
		sector = append(sector, variableEnd)
		padded := make([]byte, SectorSize)
		copy(padded, sector)
		content = append(content, padded...)
		sector = sector[:0]
	}
	for _, record := range records {
		// One byte for the length and one for the end marker.
		if len(sector)+len(record)+2 > int(SectorSize) {
			flush()
		}
		sector = append(sector, byte(len(record)))
		sector = append(sector, record...)
	}
	if len(sector) > 0 || len(content) == 0 {
		flush()
	}
	sectors := len(content) / int(SectorSize)
	header.RecordsPerSector = uint8(int(SectorSize) / (int(header.RecordLength) + 1))
	header.RecordCount = uint16(sectors)
	header.SectorsAllocated = uint16(sectors)
	return content
}
