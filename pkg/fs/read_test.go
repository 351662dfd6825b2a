package fs

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/weberc2/tidisk/pkg/encode"
	. "github.com/weberc2/tidisk/pkg/types"
)

func lines(n int) [][]byte {
	records := make([][]byte, n)
	for i := range records {
		records[i] = []byte(fmt.Sprintf("%d REM LINE %d", 100+i*10, i))
	}
	return records
}

func TestRecords(t *testing.T) {
	for _, testCase := range []struct {
		name        string
		header      encode.FileHeader
		records     [][]byte
		sectors     uint16
		recordCount uint16
	}{
		{
			// Three 80-byte records fit a sector.
			name:        "fixed",
			header:      encode.FileHeader{Name: "DF80", RecordLength: 80},
			records:     lines(7),
			sectors:     3,
			recordCount: 7,
		},
		{
			// Sixteen records fill the first sector.
			name: "variable",
			header: encode.FileHeader{
				Name:         "DV80",
				Flags:        FlagVariable,
				RecordLength: 80,
			},
			records:     lines(20),
			sectors:     2,
			recordCount: 2,
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			header := testCase.header
			content, err := EncodeRecords(&header, testCase.records)
			if err != nil {
				t.Fatalf("EncodeRecords(): unexpected err: %v", err)
			}
			if header.SectorsAllocated != testCase.sectors {
				t.Fatalf(
					"EncodeRecords(): sectors: wanted `%d`; found `%d`",
					testCase.sectors,
					header.SectorsAllocated,
				)
			}
			if header.RecordCount != testCase.recordCount {
				t.Fatalf(
					"EncodeRecords(): record count: wanted `%d`; found `%d`",
					testCase.recordCount,
					header.RecordCount,
				)
			}
			if !header.RecordCountConsistent() {
				t.Fatalf("EncodeRecords(): inconsistent header `%+v`", header)
			}

			// Store the file and read the records back through the volume.
			_, fs := testFormatFloppy(t, 360)
			f, err := InsertFile(fs, Root, &NewFile{FileHeader: header, Content: content}, false)
			if err != nil {
				t.Fatalf("InsertFile(): unexpected err: %v", err)
			}
			found, err := ReadRecords(fs, f)
			if err != nil {
				t.Fatalf("ReadRecords(): unexpected err: %v", err)
			}
			if len(found) != len(testCase.records) {
				t.Fatalf(
					"ReadRecords(): wanted `%d` records; found `%d`",
					len(testCase.records),
					len(found),
				)
			}
			for i := range found {
				wanted := testCase.records[i]
				if !header.Flags.Variable() {
					wanted = append(append([]byte{}, wanted...), make([]byte, 80-len(wanted))...)
				}
				if !bytes.Equal(found[i], wanted) {
					t.Fatalf("ReadRecords(): record `%d`: wanted `%q`; found `%q`", i, wanted, found[i])
				}
			}
		})
	}
}

func TestEncodeRecordsTooLong(t *testing.T) {
	header := encode.FileHeader{Name: "DF10", RecordLength: 10}
	_, err := EncodeRecords(&header, [][]byte{[]byte("ELEVEN BYTE")})
	if !errors.Is(err, CapacityExceededErr) {
		t.Fatalf("EncodeRecords(): wanted `%v`; found `%v`", CapacityExceededErr, err)
	}
}

func TestProgramLength(t *testing.T) {
	_, fs := testFormatFloppy(t, 360)
	content := sectorsOf(3, 'P')
	f, err := InsertFile(
		fs,
		Root,
		&NewFile{
			FileHeader: encode.FileHeader{Name: "PROG", Flags: FlagProgram, EOFOffset: 0x20},
			Content:    content,
		},
		false,
	)
	if err != nil {
		t.Fatalf("InsertFile(): unexpected err: %v", err)
	}
	program, err := ReadProgram(fs, f)
	if err != nil {
		t.Fatalf("ReadProgram(): unexpected err: %v", err)
	}
	if wanted := 2*256 + 0x20; len(program) != wanted {
		t.Fatalf("ReadProgram(): wanted `%d` bytes; found `%d`", wanted, len(program))
	}
	if _, err := ReadRecords(fs, f); !errors.Is(err, UnsupportedErr) {
		t.Fatalf("ReadRecords(): wanted `%v`; found `%v`", UnsupportedErr, err)
	}
}
