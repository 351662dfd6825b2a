package fs

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/weberc2/tidisk/pkg/encode"
	. "github.com/weberc2/tidisk/pkg/types"
)

type memStore struct {
	sectors [][SectorSize]byte
}

func newMemStore(count uint32) *memStore {
	return &memStore{sectors: make([][SectorSize]byte, count)}
}

func (s *memStore) ReadSector(number uint32) (Sector, error) {
	if number >= uint32(len(s.sectors)) {
		return Sector{}, fmt.Errorf("sector `%d`: %w", number, NotFoundErr)
	}
	return Sector{Number: number, Content: s.sectors[number]}, nil
}

func (s *memStore) WriteSector(sector Sector) error {
	if sector.Number >= uint32(len(s.sectors)) {
		return fmt.Errorf("sector `%d`: %w", sector.Number, NotFoundErr)
	}
	s.sectors[sector.Number] = sector.Content
	return nil
}

var testTime = time.Date(1985, 6, 1, 12, 30, 0, 0, time.UTC)

func testOptions() Options {
	return Options{Now: func() time.Time { return testTime }}
}

func testFormatFloppy(t *testing.T, total uint32) (*memStore, *FileSystem) {
	t.Helper()
	store := newMemStore(total)
	fs, err := Format(
		store,
		&FormatParams{
			Kind:            KindFloppy,
			Name:            "TESTDISK",
			TotalSectors:    total,
			SectorsPerTrack: 9,
			Tracks:          40,
			Sides:           2,
			Density:         1,
		},
		testOptions(),
	)
	if err != nil {
		t.Fatalf("Format(): unexpected err: %v", err)
	}
	return store, fs
}

func testFormatHardDisk(t *testing.T, total, au uint32) (*memStore, *FileSystem) {
	t.Helper()
	store := newMemStore(total)
	fs, err := Format(
		store,
		&FormatParams{
			Kind:            KindHardDisk,
			Name:            "WINCHESTER",
			TotalSectors:    total,
			SectorsPerTrack: 32,
			Heads:           4,
			SectorsPerAU:    au,
		},
		testOptions(),
	)
	if err != nil {
		t.Fatalf("Format(): unexpected err: %v", err)
	}
	return store, fs
}

// sectorsOf builds `sectors` sectors whose first byte is the sector index
// and whose second byte is `tag`.
func sectorsOf(sectors int, tag byte) []byte {
	content := make([]byte, sectors*int(SectorSize))
	for i := 0; i < sectors; i++ {
		content[i*int(SectorSize)] = byte(i)
		content[i*int(SectorSize)+1] = tag
	}
	return content
}

func program(name string, content []byte) *NewFile {
	return &NewFile{
		FileHeader: encode.FileHeader{Name: name, Flags: FlagProgram},
		Content:    content,
	}
}

func reopen(t *testing.T, fs *FileSystem, store SectorStore) *FileSystem {
	t.Helper()
	if err := fs.Flush(); err != nil {
		t.Fatalf("Flush(): unexpected err: %v", err)
	}
	reopened, err := Open(store, testOptions())
	if err != nil {
		t.Fatalf("Open(): unexpected err: %v", err)
	}
	return reopened
}

func expectClean(t *testing.T, fs *FileSystem) {
	t.Helper()
	if report := Check(fs); !report.Clean() {
		t.Fatalf("Check(): wanted clean; found `%s` (%+v)", report, report)
	}
}

func expectFile(t *testing.T, fs *FileSystem, path string, wanted []byte) *File {
	t.Helper()
	_, f, err := Walk(fs, path)
	if err != nil {
		t.Fatalf("Walk(`%s`): unexpected err: %v", path, err)
	}
	if f == nil {
		t.Fatalf("Walk(`%s`): wanted a file; found a directory", path)
	}
	found, err := ReadContent(fs, f)
	if err != nil {
		t.Fatalf("ReadContent(`%s`): unexpected err: %v", path, err)
	}
	if !bytes.Equal(found, wanted) {
		t.Fatalf("ReadContent(`%s`): content differs", path)
	}
	return f
}

func TestFormat(t *testing.T) {
	for _, testCase := range []struct {
		name   string
		format func(t *testing.T) *FileSystem
		kind   Kind
		auSize uint32
		free   uint32
	}{
		{
			name: "single-sided-floppy",
			format: func(t *testing.T) *FileSystem {
				_, fs := testFormatFloppy(t, 360)
				return fs
			},
			kind:   KindFloppy,
			auSize: 1,
			free:   358,
		},
		{
			name: "high-density-floppy",
			format: func(t *testing.T) *FileSystem {
				_, fs := testFormatFloppy(t, 2880)
				return fs
			},
			kind:   KindFloppy,
			auSize: 2,
			free:   2878,
		},
		{
			name: "hard-disk",
			format: func(t *testing.T) *FileSystem {
				_, fs := testFormatHardDisk(t, 4000, 4)
				return fs
			},
			kind:   KindHardDisk,
			auSize: 4,
			// 8 AUs of VIB and bitmap plus the root file index.
			free: 4000 - 9*4,
		},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			fs := testCase.format(t)
			if fs.Kind() != testCase.kind {
				t.Fatalf("Kind(): wanted `%s`; found `%s`", testCase.kind, fs.Kind())
			}
			if fs.AUSize() != testCase.auSize {
				t.Fatalf("AUSize(): wanted `%d`; found `%d`", testCase.auSize, fs.AUSize())
			}
			if fs.FreeSectors() != testCase.free {
				t.Fatalf("FreeSectors(): wanted `%d`; found `%d`", testCase.free, fs.FreeSectors())
			}
			expectClean(t, fs)
		})
	}
}

func TestInsertFloppyPlacement(t *testing.T) {
	// Given a fresh 1600-sector floppy with one sector per AU
	store, fs := testFormatFloppy(t, 1600)

	// When a four-sector file is inserted
	content := sectorsOf(4, 'A')
	f, err := InsertFile(fs, Root, program("HELLO", content), false)
	if err != nil {
		t.Fatalf("InsertFile(): unexpected err: %v", err)
	}

	// Then the descriptor takes the first descriptor sector and the data the
	// first run at the data area
	if len(f.Descriptors) != 1 || f.Descriptors[0] != 2 {
		t.Fatalf("InsertFile(): descriptors: wanted `[2]`; found `%v`", f.Descriptors)
	}
	wanted := []Interval{{Start: 34, End: 37}}
	if fmt.Sprint(f.Extents) != fmt.Sprint(wanted) {
		t.Fatalf("InsertFile(): extents: wanted `%v`; found `%v`", wanted, f.Extents)
	}
	if f.SectorsAllocated != 4 || !f.Created.Equal(testTime) {
		t.Fatalf("InsertFile(): unexpected header `%+v`", f.FileHeader)
	}

	// And the file survives a reopen
	reopened := reopen(t, fs, store)
	found := expectFile(t, reopened, "HELLO", content)
	if fmt.Sprint(found.Extents) != fmt.Sprint(wanted) {
		t.Fatalf("Open(): extents: wanted `%v`; found `%v`", wanted, found.Extents)
	}
	expectClean(t, reopened)
}

func TestInsertNameConflicts(t *testing.T) {
	_, fs := testFormatFloppy(t, 360)
	if _, err := InsertFile(fs, Root, program("A", sectorsOf(1, 1)), false); err != nil {
		t.Fatalf("InsertFile(): unexpected err: %v", err)
	}
	if _, err := MakeDirectory(fs, Root, "DIR"); err != nil {
		t.Fatalf("MakeDirectory(): unexpected err: %v", err)
	}
	for _, testCase := range []struct {
		name      string
		overwrite bool
		wanted    error
	}{
		{name: "A", overwrite: false, wanted: AlreadyExistsErr},
		{name: "DIR", overwrite: true, wanted: AlreadyExistsErr},
		{name: "BAD.NAME", overwrite: false, wanted: InvalidNameErr},
		{name: "ELEVENCHARS", overwrite: false, wanted: InvalidNameErr},
		{name: "", overwrite: false, wanted: InvalidNameErr},
	} {
		_, err := InsertFile(fs, Root, program(testCase.name, nil), testCase.overwrite)
		if !errors.Is(err, testCase.wanted) {
			t.Fatalf(
				"InsertFile(`%s`): wanted `%v`; found `%v`",
				testCase.name,
				testCase.wanted,
				err,
			)
		}
	}
}

func TestInsertFullRollsBack(t *testing.T) {
	// Given a small floppy holding one file
	_, fs := testFormatFloppy(t, 100)
	if _, err := InsertFile(fs, Root, program("KEEP", sectorsOf(10, 1)), false); err != nil {
		t.Fatalf("InsertFile(): unexpected err: %v", err)
	}
	before := fs.Map.Snapshot()

	// When a file larger than the free space is inserted
	_, err := InsertFile(fs, Root, program("BIG", sectorsOf(90, 2)), false)

	// Then the insert fails with a data error and the map is untouched
	if !errors.Is(err, DataFullErr) || !errors.Is(err, FullErr) {
		t.Fatalf("InsertFile(): wanted `%v`; found `%v`", DataFullErr, err)
	}
	if !fs.Map.Map().Equal(before) {
		t.Fatal("InsertFile(): allocation map changed after a failed insert")
	}
	if len(fs.Root().Files) != 1 {
		t.Fatalf("InsertFile(): wanted 1 file; found `%d`", len(fs.Root().Files))
	}
	expectClean(t, fs)
}

func TestOverwrite(t *testing.T) {
	store, fs := testFormatFloppy(t, 360)
	if _, err := InsertFile(fs, Root, program("DATA", sectorsOf(20, 1)), false); err != nil {
		t.Fatalf("InsertFile(): unexpected err: %v", err)
	}
	free := fs.FreeSectors()

	replacement := sectorsOf(5, 2)
	if _, err := InsertFile(fs, Root, program("DATA", replacement), true); err != nil {
		t.Fatalf("InsertFile(overwrite): unexpected err: %v", err)
	}
	if wanted := free + 15; fs.FreeSectors() != wanted {
		t.Fatalf("FreeSectors(): wanted `%d`; found `%d`", wanted, fs.FreeSectors())
	}
	reopened := reopen(t, fs, store)
	if len(reopened.Root().Files) != 1 {
		t.Fatalf("Open(): wanted 1 file; found `%d`", len(reopened.Root().Files))
	}
	expectFile(t, reopened, "DATA", replacement)
	expectClean(t, reopened)
}

func TestDeleteFile(t *testing.T) {
	store, fs := testFormatFloppy(t, 360)
	free := fs.FreeSectors()
	for _, name := range []string{"ONE", "TWO"} {
		if _, err := InsertFile(fs, Root, program(name, sectorsOf(3, 0)), false); err != nil {
			t.Fatalf("InsertFile(`%s`): unexpected err: %v", name, err)
		}
	}
	if err := DeleteFile(fs, Root, "ONE"); err != nil {
		t.Fatalf("DeleteFile(): unexpected err: %v", err)
	}
	if err := DeleteFile(fs, Root, "ONE"); !errors.Is(err, NotFoundErr) {
		t.Fatalf("DeleteFile(): wanted `%v`; found `%v`", NotFoundErr, err)
	}
	// One descriptor and three data sectors remain in use.
	if wanted := free - 4; fs.FreeSectors() != wanted {
		t.Fatalf("FreeSectors(): wanted `%d`; found `%d`", wanted, fs.FreeSectors())
	}
	reopened := reopen(t, fs, store)
	if _, _, err := Walk(reopened, "ONE"); !errors.Is(err, NotFoundErr) {
		t.Fatalf("Walk(`ONE`): wanted `%v`; found `%v`", NotFoundErr, err)
	}
	expectFile(t, reopened, "TWO", sectorsOf(3, 0))
	expectClean(t, reopened)
}

func TestProtection(t *testing.T) {
	_, fs := testFormatFloppy(t, 360)
	f, err := InsertFile(fs, Root, program("LOCKED", sectorsOf(1, 0)), false)
	if err != nil {
		t.Fatalf("InsertFile(): unexpected err: %v", err)
	}
	if err := SetFlags(fs, f, f.Flags|FlagProtected); err != nil {
		t.Fatalf("SetFlags(): unexpected err: %v", err)
	}
	if err := DeleteFile(fs, Root, "LOCKED"); !errors.Is(err, ReadOnlyErr) {
		t.Fatalf("DeleteFile(): wanted `%v`; found `%v`", ReadOnlyErr, err)
	}
	if _, err := InsertFile(fs, Root, program("LOCKED", nil), true); !errors.Is(err, ReadOnlyErr) {
		t.Fatalf("InsertFile(overwrite): wanted `%v`; found `%v`", ReadOnlyErr, err)
	}

	fs.ReadOnly = true
	if _, err := MakeDirectory(fs, Root, "DIR"); !errors.Is(err, ReadOnlyErr) {
		t.Fatalf("MakeDirectory(): wanted `%v`; found `%v`", ReadOnlyErr, err)
	}
}

func TestRenameResorts(t *testing.T) {
	store, fs := testFormatFloppy(t, 360)
	for _, name := range []string{"ALPHA", "BRAVO", "CHARLIE"} {
		if _, err := InsertFile(fs, Root, program(name, sectorsOf(1, 0)), false); err != nil {
			t.Fatalf("InsertFile(`%s`): unexpected err: %v", name, err)
		}
	}
	if err := Rename(fs, Root, "ALPHA", "ZULU"); err != nil {
		t.Fatalf("Rename(): unexpected err: %v", err)
	}
	if err := Rename(fs, Root, "BRAVO", "CHARLIE"); !errors.Is(err, AlreadyExistsErr) {
		t.Fatalf("Rename(): wanted `%v`; found `%v`", AlreadyExistsErr, err)
	}

	reopened := reopen(t, fs, store)
	var names []string
	for _, f := range reopened.Root().Files {
		names = append(names, f.Name)
	}
	if wanted := "[BRAVO CHARLIE ZULU]"; fmt.Sprint(names) != wanted {
		t.Fatalf("Open(): wanted `%s`; found `%v`", wanted, names)
	}
}

func TestFloppySubdirectories(t *testing.T) {
	store, fs := testFormatFloppy(t, 720)
	var ids []DirID
	for _, name := range []string{"GAMES", "DOCS", "UTIL"} {
		id, err := MakeDirectory(fs, Root, name)
		if err != nil {
			t.Fatalf("MakeDirectory(`%s`): unexpected err: %v", name, err)
		}
		ids = append(ids, id)
	}
	if _, err := MakeDirectory(fs, Root, "MORE"); !errors.Is(err, CapacityExceededErr) {
		t.Fatalf("MakeDirectory(): wanted `%v`; found `%v`", CapacityExceededErr, err)
	}
	if _, err := MakeDirectory(fs, ids[0], "NESTED"); !errors.Is(err, CapacityExceededErr) {
		t.Fatalf("MakeDirectory(nested): wanted `%v`; found `%v`", CapacityExceededErr, err)
	}

	content := sectorsOf(2, 'G')
	if _, err := InsertFile(fs, ids[0], program("CHESS", content), false); err != nil {
		t.Fatalf("InsertFile(): unexpected err: %v", err)
	}
	if err := MoveFile(fs, ids[0], "CHESS", ids[2]); err != nil {
		t.Fatalf("MoveFile(): unexpected err: %v", err)
	}
	if err := Rename(fs, Root, "GAMES", "PLAY"); err != nil {
		t.Fatalf("Rename(): unexpected err: %v", err)
	}

	reopened := reopen(t, fs, store)
	var names []string
	for _, id := range reopened.Root().Subdirs {
		d, _ := reopened.Directory(id)
		names = append(names, d.Name)
	}
	if wanted := "[DOCS PLAY UTIL]"; fmt.Sprint(names) != wanted {
		t.Fatalf("Open(): subdirectories: wanted `%s`; found `%v`", wanted, names)
	}
	expectFile(t, reopened, "UTIL.CHESS", content)
	expectClean(t, reopened)
}

func TestRemoveDirectory(t *testing.T) {
	store, fs := testFormatHardDisk(t, 2000, 1)
	a, err := MakeDirectory(fs, Root, "A")
	if err != nil {
		t.Fatalf("MakeDirectory(): unexpected err: %v", err)
	}
	b, err := MakeDirectory(fs, a, "B")
	if err != nil {
		t.Fatalf("MakeDirectory(): unexpected err: %v", err)
	}
	if _, err := InsertFile(fs, b, program("FILE", sectorsOf(7, 0)), false); err != nil {
		t.Fatalf("InsertFile(): unexpected err: %v", err)
	}
	before := fs.Map.Snapshot()

	// A non-empty directory is refused without touching the map
	if err := RemoveDirectory(fs, a, false); !errors.Is(err, DirectoryNotEmptyErr) {
		t.Fatalf("RemoveDirectory(): wanted `%v`; found `%v`", DirectoryNotEmptyErr, err)
	}
	if !fs.Map.Map().Equal(before) {
		t.Fatal("RemoveDirectory(): allocation map changed after a refusal")
	}

	// A recursive removal frees everything below
	if err := RemoveDirectory(fs, a, true); err != nil {
		t.Fatalf("RemoveDirectory(recursive): unexpected err: %v", err)
	}
	if _, err := fs.Directory(b); !errors.Is(err, NotFoundErr) {
		t.Fatalf("Directory(): wanted `%v`; found `%v`", NotFoundErr, err)
	}
	if err := RemoveDirectory(fs, Root, true); !errors.Is(err, UnsupportedErr) {
		t.Fatalf("RemoveDirectory(root): wanted `%v`; found `%v`", UnsupportedErr, err)
	}
	reopened := reopen(t, fs, store)
	if len(reopened.Root().Subdirs) != 0 {
		t.Fatalf("Open(): wanted no subdirectories; found `%d`", len(reopened.Root().Subdirs))
	}
	if free := 2000 - 33; reopened.FreeSectors() != uint32(free) {
		t.Fatalf("FreeSectors(): wanted `%d`; found `%d`", free, reopened.FreeSectors())
	}
	expectClean(t, reopened)
}

func TestHardDiskNestedDirectories(t *testing.T) {
	store, fs := testFormatHardDisk(t, 4000, 2)
	a, err := MakeDirectory(fs, Root, "A")
	if err != nil {
		t.Fatalf("MakeDirectory(): unexpected err: %v", err)
	}
	b, err := MakeDirectory(fs, a, "B")
	if err != nil {
		t.Fatalf("MakeDirectory(): unexpected err: %v", err)
	}
	content := sectorsOf(9, 'N')
	if _, err := InsertFile(fs, b, program("DEEP", content), false); err != nil {
		t.Fatalf("InsertFile(): unexpected err: %v", err)
	}
	if _, err := InsertFile(fs, Root, program("TOP", content), false); err != nil {
		t.Fatalf("InsertFile(): unexpected err: %v", err)
	}

	reopened := reopen(t, fs, store)
	expectFile(t, reopened, "A.B.DEEP", content)
	expectFile(t, reopened, "TOP", content)
	id, f, err := Walk(reopened, "A.B")
	if err != nil || f != nil {
		t.Fatalf("Walk(`A.B`): unexpected result `%v`, `%v`", f, err)
	}
	if path := reopened.Path(id); path != "A.B" {
		t.Fatalf("Path(): wanted `A.B`; found `%s`", path)
	}
	expectClean(t, reopened)
}

func TestHardDiskChainedDescriptors(t *testing.T) {
	// Given a hard disk of 249 four-sector AUs: eight for the VIB and
	// bitmap, one for the root index and 240 for 120 one-AU files, each of
	// which takes a descriptor AU and a data AU
	store, fs := testFormatHardDisk(t, 249*4, 4)
	for i := 0; i < 120; i++ {
		name := fmt.Sprintf("F%03d", i)
		if _, err := InsertFile(fs, Root, program(name, sectorsOf(4, byte(i))), false); err != nil {
			t.Fatalf("InsertFile(`%s`): unexpected err: %v", name, err)
		}
	}
	if fs.FreeSectors() != 0 {
		t.Fatalf("FreeSectors(): wanted `0`; found `%d`", fs.FreeSectors())
	}

	// And every other file deleted, leaving sixty two-AU holes
	for i := 0; i < 120; i += 2 {
		if err := DeleteFile(fs, Root, fmt.Sprintf("F%03d", i)); err != nil {
			t.Fatalf("DeleteFile(): unexpected err: %v", err)
		}
	}

	// When a file filling all but one free AU is inserted
	content := sectorsOf(119*4, 'X')
	f, err := InsertFile(fs, Root, program("BIG", content), false)
	if err != nil {
		t.Fatalf("InsertFile(): unexpected err: %v", err)
	}

	// Then its sixty extents need two descriptor records sharing one AU
	if len(f.Extents) != 60 {
		t.Fatalf("InsertFile(): wanted `60` extents; found `%d`", len(f.Extents))
	}
	if len(f.Descriptors) != 2 || f.Descriptors[1] != f.Descriptors[0]+1 {
		t.Fatalf("InsertFile(): descriptors: unexpected `%v`", f.Descriptors)
	}

	// And the chain reads back after a reopen
	reopened := reopen(t, fs, store)
	found := expectFile(t, reopened, "BIG", content)
	if len(found.Extents) != 60 || len(found.Descriptors) != 2 {
		t.Fatalf(
			"Open(): wanted 60 extents in 2 descriptors; found `%d` in `%d`",
			len(found.Extents),
			len(found.Descriptors),
		)
	}
	expectClean(t, reopened)

	// And deleting it frees the shared descriptor AU once
	if err := DeleteFile(reopened, Root, "BIG"); err != nil {
		t.Fatalf("DeleteFile(): unexpected err: %v", err)
	}
	if wanted := uint32(120 * 4); reopened.FreeSectors() != wanted {
		t.Fatalf("FreeSectors(): wanted `%d`; found `%d`", wanted, reopened.FreeSectors())
	}
	expectClean(t, reopened)
}

func TestSkipsCorruptEntries(t *testing.T) {
	store, fs := testFormatFloppy(t, 360)
	for _, name := range []string{"GOOD", "BAD"} {
		if _, err := InsertFile(fs, Root, program(name, sectorsOf(1, 0)), false); err != nil {
			t.Fatalf("InsertFile(`%s`): unexpected err: %v", name, err)
		}
	}
	_, bad, _ := Walk(fs, "BAD")
	if err := fs.Flush(); err != nil {
		t.Fatalf("Flush(): unexpected err: %v", err)
	}
	store.sectors[bad.Descriptors[0]] = [SectorSize]byte{}

	reopened, err := Open(store, testOptions())
	if err != nil {
		t.Fatalf("Open(): unexpected err: %v", err)
	}
	if reopened.Skipped != 1 || len(reopened.Root().Files) != 1 {
		t.Fatalf(
			"Open(): wanted 1 file and 1 skipped; found `%d` and `%d`",
			len(reopened.Root().Files),
			reopened.Skipped,
		)
	}
	if report := Check(reopened); report.Clean() || len(report.Unclaimed) != 2 {
		t.Fatalf("Check(): wanted 2 unclaimed AUs; found `%+v`", report)
	}
	if err := Repair(reopened); err != nil {
		t.Fatalf("Repair(): unexpected err: %v", err)
	}
	if report := Check(reopened); len(report.Unclaimed) != 0 {
		t.Fatalf("Check(): wanted no unclaimed AUs after Repair(); found `%+v`", report)
	}
}

func TestOpenRejectsUnknownVolume(t *testing.T) {
	if _, err := Open(newMemStore(100), testOptions()); !errors.Is(err, CorruptErr) {
		t.Fatalf("Open(): wanted `%v`; found `%v`", CorruptErr, err)
	}
}

func TestFixRecordCount(t *testing.T) {
	_, fs := testFormatFloppy(t, 360)
	f, err := InsertFile(
		fs,
		Root,
		&NewFile{
			FileHeader: encode.FileHeader{
				Name:             "SWAPPED",
				RecordLength:     80,
				RecordsPerSector: 3,
				RecordCount:      0x0500,
			},
			Content: sectorsOf(2, 0),
		},
		false,
	)
	if err != nil {
		t.Fatalf("InsertFile(): unexpected err: %v", err)
	}
	if !f.SwapSuspected() {
		t.Fatal("SwapSuspected(): wanted true")
	}
	if err := FixRecordCount(fs, f); err != nil {
		t.Fatalf("FixRecordCount(): unexpected err: %v", err)
	}
	if f.RecordCount != 5 {
		t.Fatalf("FixRecordCount(): wanted `5`; found `%d`", f.RecordCount)
	}
	if err := FixRecordCount(fs, f); !errors.Is(err, UnsupportedErr) {
		t.Fatalf("FixRecordCount(): wanted `%v`; found `%v`", UnsupportedErr, err)
	}
}

func TestOpenRejectsAbsurdRecordCount(t *testing.T) {
	store, fs := testFormatFloppy(t, 360)
	for _, file := range []*NewFile{
		program("FINE", sectorsOf(1, 0)),
		{
			FileHeader: encode.FileHeader{
				Name:             "HUGE",
				RecordLength:     255,
				RecordsPerSector: 1,
				RecordCount:      0xFFFF,
			},
			Content: sectorsOf(1, 0),
		},
	} {
		if _, err := InsertFile(fs, Root, file, false); err != nil {
			t.Fatalf("InsertFile(`%s`): unexpected err: %v", file.Name, err)
		}
	}
	if err := fs.Flush(); err != nil {
		t.Fatalf("Flush(): unexpected err: %v", err)
	}

	if _, err := Open(store, testOptions()); !errors.Is(err, CorruptErr) {
		t.Fatalf("Open(): wanted `%v`; found `%v`", CorruptErr, err)
	}
}
