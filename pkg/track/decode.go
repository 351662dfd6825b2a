package track

import (
	"encoding/binary"
	"fmt"

	. "github.com/weberc2/tidisk/pkg/types"
)

// dataMarkWindow bounds the distance, in bytes, between the end of an ID
// field and its data mark.
const dataMarkWindow = 64

// SectorRecord is one sector found on a track.
type SectorRecord struct {
	Cylinder uint8
	Head     uint8
	Sector   uint8
	SizeCode uint8
	Deleted  bool
	Data     []byte

	// HeaderPos is the position just past the ID address mark; DataPos is
	// the position just past the data mark, or -1 without a data field.
	HeaderPos int
	DataPos   int

	// Err is set when the header or data field is unusable. Records with a
	// header CRC error carry no data.
	Err error
}

func (r *SectorRecord) Size() int { return 128 << r.SizeCode }

// Decode scans a whole track for sectors. A damaged field only affects its
// own record; scanning resumes right after the damaged field's mark.
func Decode(s Stream) []SectorRecord {
	var records []SectorRecord
	enc := s.Encoding()
	width := s.ByteWidth()
	for pos := 0; ; {
		headerPos, _, ok := s.FindMark(pos, s.Len(), IDAM)
		if !ok {
			break
		}

		var header [6]byte
		next, ok := s.ReadBytes(headerPos, header[:])
		if !ok {
			break
		}
		record := SectorRecord{
			Cylinder:  header[0],
			Head:      header[1],
			Sector:    header[2],
			SizeCode:  header[3],
			HeaderPos: headerPos,
			DataPos:   -1,
		}
		wanted := CRC(markPrefix(enc, IDAM), header[:4])
		if found := binary.BigEndian.Uint16(header[4:]); found != wanted {
			record.Err = &CRCErr{Field: "header", Wanted: wanted, Found: found}
			records = append(records, record)
			pos = headerPos
			continue
		}

		dataPos, mark, ok := s.FindMark(
			next,
			next+dataMarkWindow*width,
			DAM,
			DeletedDAM,
		)
		if !ok {
			record.Err = fmt.Errorf(
				"sector `%d`: data mark: %w",
				record.Sector,
				NotFoundErr,
			)
			records = append(records, record)
			pos = next
			continue
		}
		if record.SizeCode > 3 {
			record.Err = fmt.Errorf(
				"sector `%d`: size code `%d`: %w",
				record.Sector,
				record.SizeCode,
				UnsupportedErr,
			)
			records = append(records, record)
			pos = next
			continue
		}

		field := make([]byte, record.Size()+2)
		end, ok := s.ReadBytes(dataPos, field)
		if !ok {
			record.Err = fmt.Errorf(
				"sector `%d`: data field truncated: %w",
				record.Sector,
				CorruptErr,
			)
			records = append(records, record)
			break
		}
		record.Deleted = mark == DeletedDAM
		record.DataPos = dataPos
		record.Data = field[:record.Size()]
		wanted = CRC(markPrefix(enc, mark), record.Data)
		if found := binary.BigEndian.Uint16(field[record.Size():]); found != wanted {
			record.Err = &CRCErr{Field: "data", Wanted: wanted, Found: found}
		}
		records = append(records, record)
		pos = end
	}
	return records
}

// Patch rewrites the data field of `record` in place, including a fresh
// CRC, and updates the record.
func Patch(s Stream, record *SectorRecord, data []byte) error {
	if record.DataPos < 0 {
		return fmt.Errorf(
			"patching sector `%d`: no data field: %w",
			record.Sector,
			NotFoundErr,
		)
	}
	if len(data) != record.Size() {
		return fmt.Errorf(
			"patching sector `%d`: wanted `%d` bytes; found `%d`",
			record.Sector,
			record.Size(),
			len(data),
		)
	}
	mark := DAM
	if record.Deleted {
		mark = DeletedDAM
	}
	field := make([]byte, len(data)+2)
	copy(field, data)
	binary.BigEndian.PutUint16(
		field[len(data):],
		CRC(markPrefix(s.Encoding(), mark), data),
	)
	if _, err := s.WriteBytes(record.DataPos, field); err != nil {
		return fmt.Errorf("patching sector `%d`: %w", record.Sector, err)
	}
	record.Data = field[:len(data)]
	record.Err = nil
	return nil
}
