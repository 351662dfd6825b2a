package archive

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/weberc2/tidisk/pkg/cache"
	"github.com/weberc2/tidisk/pkg/encode"
	"github.com/weberc2/tidisk/pkg/fs"
	"github.com/weberc2/tidisk/pkg/image"
	"github.com/weberc2/tidisk/pkg/image/dump"
	"github.com/weberc2/tidisk/pkg/io"
	. "github.com/weberc2/tidisk/pkg/types"
)

func member(name string, sectors int, fill byte) Member {
	content := make([]byte, sectors*int(SectorSize))
	for i := range content {
		content[i] = fill + byte(i/int(SectorSize))
	}
	return MemberOf(
		&encode.FileHeader{
			Name:             name,
			Flags:            FlagVariable,
			RecordLength:     80,
			RecordsPerSector: 3,
			RecordCount:      uint16(sectors),
		},
		content,
	)
}

func newFileSystem(t *testing.T) *fs.FileSystem {
	t.Helper()
	format, err := dump.Create(io.NewBuffer(nil), 360, dump.DefaultBlockSectors)
	require.NoError(t, err)
	fsys, err := fs.Format(
		cache.New(image.New(format, nil), nil),
		&fs.FormatParams{Name: "ARCHIVES", TotalSectors: 360, SectorsPerTrack: 9, Tracks: 40, Sides: 1, Density: 1},
		fs.Options{},
	)
	require.NoError(t, err)
	return fsys
}

func TestEncodeDecode(t *testing.T) {
	for _, testCase := range []struct {
		name       string
		members    int
		compressed bool
	}{
		{name: "empty", members: 0},
		{name: "three", members: 3},
		{name: "sentinel-in-second-sector", members: 14},
		{name: "compressed", members: 5, compressed: true},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			a := Archive{Compressed: testCase.compressed}
			for i := 0; i < testCase.members; i++ {
				require.NoError(t, a.Add(member(fmt.Sprintf("M%02d", i), i%3+1, byte(i)), false))
			}

			blob, err := a.Encode(LZW{})
			require.NoError(t, err)
			decoded, err := Decode(blob, LZW{})
			require.NoError(t, err)

			require.Equal(t, testCase.compressed, decoded.Compressed)
			require.Len(t, decoded.Members, testCase.members)
			for i := range a.Members {
				require.Equal(t, a.Members[i], decoded.Members[i])
			}
		})
	}
}

func TestCompressionShrinksRepetitiveContent(t *testing.T) {
	a := Archive{Compressed: true}
	require.NoError(t, a.Add(member("ZEROS", 20, 0), false))
	blob, err := a.Encode(LZW{})
	require.NoError(t, err)
	require.Less(t, len(blob), 20*int(SectorSize))
}

func TestAddRemove(t *testing.T) {
	var a Archive
	require.NoError(t, a.Add(member("ONE", 1, 'a'), false))
	require.ErrorIs(t, a.Add(member("ONE", 2, 'b'), false), AlreadyExistsErr)
	require.NoError(t, a.Add(member("ONE", 2, 'b'), true))
	require.Equal(t, uint16(2), a.Members[0].Sectors)
	require.ErrorIs(t, a.Add(member("BAD.NAME", 1, 0), false), InvalidNameErr)

	require.ErrorIs(t, a.Remove("TWO"), NotFoundErr)
	require.NoError(t, a.Remove("ONE"))
	require.Empty(t, a.Members)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode(make([]byte, 512), LZW{})
	require.ErrorIs(t, err, CorruptErr)
}

func TestStoreLoadExtract(t *testing.T) {
	// Given an archive stored as a file
	fsys := newFileSystem(t)
	a := Archive{Compressed: true}
	require.NoError(t, a.Add(member("FIRST", 2, 'f'), false))
	require.NoError(t, a.Add(member("SECOND", 1, 's'), false))
	f, err := Store(fsys, fs.Root, "BUNDLE", &a, LZW{})
	require.NoError(t, err)
	require.True(t, f.Flags.Internal())
	require.Equal(t, uint8(128), f.RecordLength)

	// When a member is removed and the archive stored again
	loaded, err := Load(fsys, f, LZW{})
	require.NoError(t, err)
	require.True(t, loaded.Compressed)
	require.NoError(t, loaded.Remove("FIRST"))
	f, err = Store(fsys, fs.Root, "BUNDLE", loaded, LZW{})
	require.NoError(t, err)

	// Then the file holds only the remaining member
	reloaded, err := Load(fsys, f, LZW{})
	require.NoError(t, err)
	require.Len(t, reloaded.Members, 1)
	require.Equal(t, "SECOND", reloaded.Members[0].Name)

	// And the member extracts as an ordinary file
	extracted, err := Extract(fsys, fs.Root, &reloaded.Members[0], false)
	require.NoError(t, err)
	content, err := fs.ReadContent(fsys, extracted)
	require.NoError(t, err)
	require.Equal(t, reloaded.Members[0].Content, content)
	require.True(t, extracted.Flags.Variable())
	require.Len(t, fsys.Root().Files, 2)
}
