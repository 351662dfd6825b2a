package volume

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/weberc2/tidisk/pkg/cache"
	"github.com/weberc2/tidisk/pkg/encode"
	"github.com/weberc2/tidisk/pkg/fs"
	"github.com/weberc2/tidisk/pkg/image/detect"
	"github.com/weberc2/tidisk/pkg/image/dump"
	"github.com/weberc2/tidisk/pkg/io"
	. "github.com/weberc2/tidisk/pkg/types"
)

var testTime = time.Date(1985, 6, 1, 12, 30, 0, 0, time.UTC)

func floppyParams() *fs.FormatParams {
	return &fs.FormatParams{
		Name:            "WORK",
		TotalSectors:    360,
		SectorsPerTrack: 9,
		Tracks:          40,
		Sides:           1,
		Density:         1,
	}
}

func testOptions(autoSave bool) Options {
	return Options{
		Detect:   detect.Options{Kind: detect.KindDump},
		AutoSave: autoSave,
		Now:      func() time.Time { return testTime },
	}
}

// testVolume formats a 360 sector floppy dump held in memory.
func testVolume(t *testing.T, autoSave bool) (*Volume, *io.Buffer) {
	t.Helper()
	buffer := io.NewBuffer(nil)
	format, err := dump.Create(buffer, 360, dump.DefaultBlockSectors)
	require.NoError(t, err)
	v, err := Create(
		fmt.Sprintf("test://%s", t.Name()),
		format,
		floppyParams(),
		testOptions(autoSave),
	)
	require.NoError(t, err)
	return v, buffer
}

func reopen(t *testing.T, v *Volume, buffer *io.Buffer) *Volume {
	t.Helper()
	require.NoError(t, v.Close())
	v, err := Open(fmt.Sprintf("test://%s", t.Name()), buffer, testOptions(false))
	require.NoError(t, err)
	t.Cleanup(func() { v.Close() })
	return v
}

func content(sectors int, tag byte) []byte {
	p := make([]byte, sectors*int(SectorSize))
	for i := range p {
		p[i] = tag + byte(i/int(SectorSize))
	}
	return p
}

func display(sectors int, tag byte) *fs.NewFile {
	return &fs.NewFile{
		FileHeader: encode.FileHeader{
			Flags:            FlagVariable,
			RecordLength:     80,
			RecordsPerSector: 3,
			RecordCount:      uint16(sectors),
		},
		Content: content(sectors, tag),
	}
}

func names(t *testing.T, v *Volume, path string) []string {
	t.Helper()
	entries, err := v.List(path)
	require.NoError(t, err)
	found := make([]string, len(entries))
	for i := range entries {
		found[i] = entries[i].Name
	}
	return found
}

func TestCreateStartsWithoutHistory(t *testing.T) {
	v, _ := testVolume(t, false)
	defer v.Close()

	require.False(t, v.CanUndo())
	require.False(t, v.CanRedo())
	require.False(t, v.Unsaved())

	info := v.Info()
	require.Equal(t, "WORK", info.Name)
	require.Equal(t, "floppy", info.Kind)
	require.Equal(t, uint32(360), info.TotalSectors)
	require.Equal(t, uint32(358), info.FreeSectors)
	require.Equal(t, "dump", info.Format)
}

func TestUndoRedo(t *testing.T) {
	v, buffer := testVolume(t, false)

	// Given two commits
	require.NoError(t, v.WriteFile("ALPHA", display(2, 0x10), false))
	require.NoError(t, v.WriteFile("BETA", display(3, 0x20), false))
	require.Equal(t, []string{"ALPHA", "BETA"}, names(t, v, ""))
	require.True(t, v.Unsaved())

	// When both are undone
	require.NoError(t, v.Undo())
	require.Equal(t, []string{"ALPHA"}, names(t, v, ""))
	require.NoError(t, v.Undo())
	require.Empty(t, names(t, v, ""))

	// Then there is nothing left to undo
	err := v.Undo()
	require.True(t, errors.Is(err, cache.NothingToUndoErr), "found `%v`", err)
	require.Equal(t, uint32(358), v.FS.FreeSectors())

	// When both are redone and saved
	require.NoError(t, v.Redo())
	require.NoError(t, v.Redo())
	err = v.Redo()
	require.True(t, errors.Is(err, cache.NothingToRedoErr), "found `%v`", err)
	require.NoError(t, v.Save())
	require.False(t, v.Unsaved())

	// Then the container holds both files
	v = reopen(t, v, buffer)
	require.Equal(t, []string{"ALPHA", "BETA"}, names(t, v, ""))
	data, err := v.ReadFile("BETA")
	require.NoError(t, err)
	require.Equal(t, content(3, 0x20), data)
}

func TestWriteAfterUndoDropsRedo(t *testing.T) {
	v, _ := testVolume(t, false)
	defer v.Close()

	require.NoError(t, v.WriteFile("ALPHA", display(1, 1), false))
	require.NoError(t, v.WriteFile("BETA", display(1, 2), false))
	require.NoError(t, v.Undo())
	require.True(t, v.CanRedo())

	require.NoError(t, v.WriteFile("GAMMA", display(1, 3), false))
	require.False(t, v.CanRedo())
	require.Equal(t, []string{"ALPHA", "GAMMA"}, names(t, v, ""))
	require.Empty(t, v.Check().Unmarked)
}

func TestUnsavedChangesStayOffTheContainer(t *testing.T) {
	v, buffer := testVolume(t, false)
	require.NoError(t, v.WriteFile("ALPHA", display(1, 1), false))

	// Close does not save without AutoSave
	v = reopen(t, v, buffer)
	require.Empty(t, names(t, v, ""))
}

func TestAutoSave(t *testing.T) {
	v, buffer := testVolume(t, true)
	require.NoError(t, v.WriteFile("ALPHA", display(2, 1), false))
	require.False(t, v.Unsaved())

	v = reopen(t, v, buffer)
	require.Equal(t, []string{"ALPHA"}, names(t, v, ""))
}

func TestFailedOperationRollsBack(t *testing.T) {
	v, _ := testVolume(t, false)
	defer v.Close()
	require.NoError(t, v.WriteFile("SMALL", display(2, 1), false))
	free := v.FS.FreeSectors()

	err := v.WriteFile("HUGE", display(400, 0), false)
	require.True(t, errors.Is(err, FullErr), "found `%v`", err)

	require.Equal(t, free, v.FS.FreeSectors())
	require.Equal(t, []string{"SMALL"}, names(t, v, ""))
	require.True(t, v.Check().Clean())

	// The failure is not an undo step
	require.NoError(t, v.Undo())
	require.False(t, v.CanUndo())
}

func TestFixRecordCountAmendsLastCommit(t *testing.T) {
	v, _ := testVolume(t, false)
	defer v.Close()

	file := display(2, 0)
	file.Flags = 0
	file.RecordCount = 0x0500
	require.NoError(t, v.WriteFile("SWAPPED", file, false))

	entries, err := v.List("")
	require.NoError(t, err)
	require.True(t, entries[0].SwapSuspected)
	require.False(t, entries[0].BadCount)

	require.NoError(t, v.FixRecordCount("SWAPPED"))
	f, err := v.Stat("SWAPPED")
	require.NoError(t, err)
	require.Equal(t, uint16(5), f.RecordCount)

	// Given the fix shares the insert's generation, one undo reverts both
	require.NoError(t, v.Undo())
	require.False(t, v.CanUndo())
	require.Empty(t, names(t, v, ""))

	require.NoError(t, v.Redo())
	f, err = v.Stat("SWAPPED")
	require.NoError(t, err)
	require.Equal(t, uint16(5), f.RecordCount)

	err = v.FixRecordCount("SWAPPED")
	require.True(t, errors.Is(err, UnsupportedErr), "found `%v`", err)
}

func TestListFlagsBadRecordCount(t *testing.T) {
	v, _ := testVolume(t, false)
	defer v.Close()

	file := display(2, 0)
	file.Flags = 0
	file.RecordCount = 0x0101
	require.NoError(t, v.WriteFile("ODD", file, false))
	require.NoError(t, v.WriteFile("FINE", display(2, 0), false))

	entries, err := v.List("")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		require.False(t, e.SwapSuspected, e.Name)
		require.Equal(t, e.Name == "ODD", e.BadCount, e.Name)
	}
}

func TestPathOperations(t *testing.T) {
	v, _ := testVolume(t, false)
	defer v.Close()

	require.NoError(t, v.MakeDirectory("UTIL"))
	require.NoError(t, v.WriteFile("UTIL.TOOL", display(1, 1), false))
	require.Equal(t, []string{"TOOL"}, names(t, v, "UTIL"))

	entries, err := v.List("")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, entries[0].Directory)

	require.NoError(t, v.Move("UTIL.TOOL", ""))
	require.Empty(t, names(t, v, "UTIL"))
	require.NoError(t, v.Rename("TOOL", "HAMMER"))
	require.NoError(t, v.Rename("UTIL", "BIN"))
	require.Equal(t, []string{"BIN", "HAMMER"}, names(t, v, ""))

	require.NoError(t, v.SetProtected("HAMMER", true))
	err = v.Delete("HAMMER")
	require.True(t, errors.Is(err, ReadOnlyErr), "found `%v`", err)
	require.NoError(t, v.SetProtected("HAMMER", false))
	require.NoError(t, v.Delete("HAMMER"))

	require.NoError(t, v.RemoveDirectory("BIN", false))
	require.Empty(t, names(t, v, ""))
	require.Equal(t, uint32(358), v.FS.FreeSectors())

	_, err = v.List("MISSING")
	require.True(t, errors.Is(err, NotFoundErr), "found `%v`", err)
	_, err = v.ReadFile("BIN")
	require.True(t, errors.Is(err, NotFoundErr), "found `%v`", err)

	require.NoError(t, v.SetName("RENAMED"))
	require.Equal(t, "RENAMED", v.Info().Name)
}

func TestTIFiles(t *testing.T) {
	v, _ := testVolume(t, false)
	defer v.Close()
	require.NoError(t, v.WriteFile("NOTES", display(2, 7), false))

	data, err := v.ExportTIFiles("NOTES")
	require.NoError(t, err)
	require.NoError(t, v.MakeDirectory("COPY"))

	name, err := v.ImportTIFiles("COPY", "IGNORED", data, false)
	require.NoError(t, err)
	require.Equal(t, "NOTES", name)

	original, err := v.Stat("NOTES")
	require.NoError(t, err)
	imported, err := v.Stat("COPY.NOTES")
	require.NoError(t, err)
	require.Equal(t, original.Flags, imported.Flags)
	require.Equal(t, original.RecordCount, imported.RecordCount)

	copied, err := v.ReadFile("COPY.NOTES")
	require.NoError(t, err)
	require.Equal(t, content(2, 7), copied)
}

func TestArchiveOperations(t *testing.T) {
	v, _ := testVolume(t, false)
	defer v.Close()
	require.NoError(t, v.WriteFile("ALPHA", display(2, 1), false))
	require.NoError(t, v.WriteFile("BETA", display(1, 2), false))

	require.NoError(t, v.NewArchive("ARK", true))
	require.NoError(t, v.ArchiveAdd("ARK", "ALPHA", false))
	require.NoError(t, v.ArchiveAdd("ARK", "BETA", false))
	err := v.ArchiveAdd("ARK", "BETA", false)
	require.True(t, errors.Is(err, AlreadyExistsErr), "found `%v`", err)

	a, err := v.Archive("ARK")
	require.NoError(t, err)
	require.True(t, a.Compressed)
	require.Len(t, a.Members, 2)

	require.NoError(t, v.ArchiveRemove("ARK", "BETA"))
	require.NoError(t, v.Delete("ALPHA"))
	require.NoError(t, v.ArchiveExtract("ARK", "ALPHA", "", false))

	data, err := v.ReadFile("ALPHA")
	require.NoError(t, err)
	require.Equal(t, content(2, 1), data)

	a, err = v.Archive("ARK")
	require.NoError(t, err)
	require.Len(t, a.Members, 1)
	require.Equal(t, "ALPHA", a.Members[0].Name)

	err = v.ArchiveExtract("ARK", "BETA", "", true)
	require.True(t, errors.Is(err, NotFoundErr), "found `%v`", err)
}

func TestImageAttachedOnce(t *testing.T) {
	v, buffer := testVolume(t, false)
	defer v.Close()

	_, err := Open(fmt.Sprintf("test://%s", t.Name()), buffer, testOptions(false))
	require.True(t, errors.Is(err, AlreadyExistsErr), "found `%v`", err)
}

func TestReadOnly(t *testing.T) {
	v, buffer := testVolume(t, false)
	require.NoError(t, v.WriteFile("ALPHA", display(1, 1), false))
	require.NoError(t, v.Save())
	require.NoError(t, v.Close())

	options := testOptions(false)
	options.ReadOnly = true
	v, err := Open(fmt.Sprintf("test://%s", t.Name()), buffer, options)
	require.NoError(t, err)
	defer v.Close()

	err = v.Delete("ALPHA")
	require.True(t, errors.Is(err, ReadOnlyErr), "found `%v`", err)
	require.Equal(t, []string{"ALPHA"}, names(t, v, ""))
}

func TestCreateFile(t *testing.T) {
	afs := afero.NewMemMapFs()
	v, err := CreateFile(
		afs,
		"/work.dsk",
		detect.CreateOptions{Kind: detect.KindDump, Sectors: 720},
		&fs.FormatParams{
			Name:            "WORK",
			TotalSectors:    720,
			SectorsPerTrack: 9,
			Tracks:          40,
			Sides:           2,
			Density:         1,
		},
		testOptions(true),
	)
	require.NoError(t, err)
	require.NoError(t, v.WriteFile("ALPHA", display(3, 4), false))
	require.NoError(t, v.Close())

	raw, err := afero.ReadFile(afs, "/work.dsk")
	require.NoError(t, err)
	require.Len(t, raw, 720*int(SectorSize))

	v, err = OpenFile(afs, "/work.dsk", Options{})
	require.NoError(t, err)
	defer v.Close()
	data, err := v.ReadFile("ALPHA")
	require.NoError(t, err)
	require.Equal(t, content(3, 4), data)
}
