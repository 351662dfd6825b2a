package export

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/weberc2/tidisk/pkg/encode"
	"github.com/weberc2/tidisk/pkg/fs"
	"github.com/weberc2/tidisk/pkg/image/detect"
	"github.com/weberc2/tidisk/pkg/image/dump"
	"github.com/weberc2/tidisk/pkg/io"
	. "github.com/weberc2/tidisk/pkg/types"
	"github.com/weberc2/tidisk/pkg/volume"
)

func testVolume(t *testing.T, suffix string) *volume.Volume {
	t.Helper()
	format, err := dump.Create(io.NewBuffer(nil), 720, dump.DefaultBlockSectors)
	require.NoError(t, err)
	v, err := volume.Create(
		fmt.Sprintf("test://%s/%s", t.Name(), suffix),
		format,
		&fs.FormatParams{
			Name:            "EXPORT",
			TotalSectors:    720,
			SectorsPerTrack: 9,
			Tracks:          40,
			Sides:           2,
			Density:         1,
		},
		volume.Options{
			Detect: detect.Options{Kind: detect.KindDump},
			Now:    func() time.Time { return time.Date(1984, 3, 2, 10, 0, 0, 0, time.UTC) },
		},
	)
	require.NoError(t, err)
	t.Cleanup(func() { v.Close() })
	return v
}

func fill(n int, tag byte) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = tag + byte(i)
	}
	return p
}

func populate(t *testing.T, v *volume.Volume) {
	t.Helper()
	require.NoError(t, v.WriteFile("LOADER", &fs.NewFile{
		FileHeader: encode.FileHeader{Flags: FlagProgram, EOFOffset: 44},
		Content:    fill(300, 1),
	}, false))
	require.NoError(t, v.MakeDirectory("DOCS"))
	require.NoError(t, v.WriteFile("DOCS.README", &fs.NewFile{
		FileHeader: encode.FileHeader{
			Flags:            FlagVariable,
			RecordLength:     80,
			RecordsPerSector: 3,
			RecordCount:      1,
		},
		Content: fill(256, 9),
	}, false))
}

func TestHostName(t *testing.T) {
	for _, testCase := range []struct {
		name    string
		tifiles bool
		wanted  string
	}{
		{name: "LOADER", wanted: "loader"},
		{name: "MY FILE", wanted: "my-file"},
		{name: "README", tifiles: true, wanted: "readme.tfi"},
		{name: "***", wanted: "file"},
	} {
		if found := HostName(testCase.name, testCase.tifiles); found != testCase.wanted {
			t.Fatalf("HostName(`%s`): wanted `%s`; found `%s`", testCase.name, testCase.wanted, found)
		}
	}
}

func TestVolumeName(t *testing.T) {
	for _, testCase := range []struct {
		host    string
		wanted  string
		wantErr bool
	}{
		{host: "loader", wanted: "LOADER"},
		{host: "readme.tfi", wanted: "README"},
		{host: "my-file.bin", wanted: "MY_FILE"},
		{host: "averyveryverylongname.txt", wanted: "AVERYVERYV"},
		{host: ".hidden", wantErr: true},
	} {
		found, err := VolumeName(testCase.host)
		if testCase.wantErr {
			if err == nil {
				t.Fatalf("VolumeName(`%s`): wanted err; found `%s`", testCase.host, found)
			}
			continue
		}
		if err != nil {
			t.Fatalf("VolumeName(`%s`): unexpected err: %v", testCase.host, err)
		}
		if found != testCase.wanted {
			t.Fatalf("VolumeName(`%s`): wanted `%s`; found `%s`", testCase.host, testCase.wanted, found)
		}
	}
}

func TestExportRaw(t *testing.T) {
	v := testVolume(t, "source")
	populate(t, v)
	afs := afero.NewMemMapFs()

	copied, err := Export(v, "", afs, "/out", Options{})
	require.NoError(t, err)
	require.Equal(t, []Copied{
		{Path: "DOCS.README", HostPath: filepath.Join("/out", "docs", "readme")},
		{Path: "LOADER", HostPath: filepath.Join("/out", "loader")},
	}, copied)

	// programs are cut at the EOF offset
	data, err := afero.ReadFile(afs, "/out/loader")
	require.NoError(t, err)
	require.Equal(t, fill(300, 1)[:256+44], data)

	_, err = Export(v, "", afs, "/out", Options{})
	require.ErrorIs(t, err, AlreadyExistsErr)
}

func TestTIFilesRoundTrip(t *testing.T) {
	source := testVolume(t, "source")
	populate(t, source)
	afs := afero.NewMemMapFs()

	_, err := Export(source, "", afs, "/out", Options{TIFiles: true})
	require.NoError(t, err)

	target := testVolume(t, "target")
	copied, err := Import(target, "", afs, "/out", Options{})
	require.NoError(t, err)
	require.Len(t, copied, 2)

	for _, path := range []string{"LOADER", "DOCS.README"} {
		wanted, err := source.Stat(path)
		require.NoError(t, err)
		found, err := target.Stat(path)
		require.NoError(t, err)
		require.Equal(t, wanted.Flags, found.Flags, path)
		require.Equal(t, wanted.EOFOffset, found.EOFOffset, path)
		require.Equal(t, wanted.RecordCount, found.RecordCount, path)

		wantedData, err := source.ReadFile(path)
		require.NoError(t, err)
		foundData, err := target.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, wantedData, foundData, path)
	}
}

func TestImportPlainFiles(t *testing.T) {
	afs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(afs, "/in/game.bin", fill(600, 3), 0o644))
	require.NoError(t, afero.WriteFile(afs, "/in/.hidden", []byte("x"), 0o644))

	v := testVolume(t, "target")
	copied, err := Import(v, "", afs, "/in", Options{})
	require.NoError(t, err)
	require.Equal(t, []Copied{{Path: "GAME", HostPath: filepath.Join("/in", "game.bin")}}, copied)

	f, err := v.Stat("GAME")
	require.NoError(t, err)
	require.True(t, f.Flags.Program())
	data, err := v.ReadFile("GAME")
	require.NoError(t, err)
	require.Equal(t, fill(600, 3), data)
}
