package archive

import (
	"fmt"

	"github.com/weberc2/tidisk/pkg/encode"
	"github.com/weberc2/tidisk/pkg/fs"
	"github.com/weberc2/tidisk/pkg/math"
	. "github.com/weberc2/tidisk/pkg/types"
)

// Archives are stored as INT/FIX 128 files.
const (
	fileRecordLength     = 128
	fileRecordsPerSector = uint8(SectorSize / fileRecordLength)
)

// Load decodes the archive held in `f`.
func Load(fsys *fs.FileSystem, f *fs.File, compressor Compressor) (*Archive, error) {
	content, err := fs.ReadContent(fsys, f)
	if err != nil {
		return nil, fmt.Errorf("loading archive `%s`: %w", f.Name, err)
	}
	a, err := Decode(content, compressor)
	if err != nil {
		return nil, fmt.Errorf("loading archive `%s`: %w", f.Name, err)
	}
	return a, nil
}

// Store re-serializes the whole archive and writes it over the file `name`
// of `dir`.
func Store(
	fsys *fs.FileSystem,
	dir fs.DirID,
	name string,
	a *Archive,
	compressor Compressor,
) (*fs.File, error) {
	content, err := a.Encode(compressor)
	if err != nil {
		return nil, fmt.Errorf("storing archive `%s`: %w", name, err)
	}
	records := math.DivRoundUp(len(content), fileRecordLength)
	f, err := fs.InsertFile(
		fsys,
		dir,
		&fs.NewFile{
			FileHeader: encode.FileHeader{
				Name:             name,
				Flags:            FlagInternal,
				RecordLength:     fileRecordLength,
				RecordsPerSector: fileRecordsPerSector,
				RecordCount:      uint16(records),
			},
			Content: content,
		},
		true,
	)
	if err != nil {
		return nil, fmt.Errorf("storing archive `%s`: %w", name, err)
	}
	return f, nil
}

// Extract writes `member` into `dir` as an ordinary file.
func Extract(
	fsys *fs.FileSystem,
	dir fs.DirID,
	member *Member,
	overwrite bool,
) (*fs.File, error) {
	f, err := fs.InsertFile(
		fsys,
		dir,
		&fs.NewFile{FileHeader: member.Header(), Content: member.Content},
		overwrite,
	)
	if err != nil {
		return nil, fmt.Errorf("extracting archive member `%s`: %w", member.Name, err)
	}
	return f, nil
}
