package pc99

import (
	"bytes"
	"errors"
	"testing"

	"github.com/weberc2/tidisk/pkg/image"
	"github.com/weberc2/tidisk/pkg/io"
	"github.com/weberc2/tidisk/pkg/track"
	. "github.com/weberc2/tidisk/pkg/types"
)

func TestCreateWriteReopen(t *testing.T) {
	buffer := io.NewBuffer(nil)
	format, err := Create(buffer, 40, 2, track.FM)
	if err != nil {
		t.Fatalf("Create(): unexpected err: %v", err)
	}
	if size, _ := buffer.Size(); size != 80*3253 {
		t.Fatalf("size: wanted `%d`; found `%d`", 80*3253, size)
	}

	// sector 0 declares a double sided volume
	vib := make([]byte, SectorSize)
	copy(vib[0x0D:], "DSK")
	vib[0x12] = 2
	img := image.New(format, nil)
	if err := img.WriteSector(NewSector(0, vib)); err != nil {
		t.Fatalf("WriteSector(0): unexpected err: %v", err)
	}
	if err := img.WriteSector(NewSector(700, []byte("side one"))); err != nil {
		t.Fatalf("WriteSector(700): unexpected err: %v", err)
	}
	if err := img.Flush(); err != nil {
		t.Fatalf("Flush(): unexpected err: %v", err)
	}

	reopened, err := Open(buffer)
	if err != nil {
		t.Fatalf("Open(): unexpected err: %v", err)
	}
	if g := reopened.Geometry(); g.Cylinders != 40 || g.Heads != 2 || g.SectorsPerTrack != 9 {
		t.Fatalf("Geometry(): wanted `40/2/9`; found `%d/%d/%d`", g.Cylinders, g.Heads, g.SectorsPerTrack)
	}
	sector, err := image.New(reopened, nil).ReadSector(700)
	if err != nil {
		t.Fatalf("ReadSector(700): unexpected err: %v", err)
	}
	if string(sector.Content[:8]) != "side one" {
		t.Fatalf("ReadSector(700): wanted `side one`; found `%q`", sector.Content[:8])
	}

	// sector 700 is on head 1, cylinder 2 (the third track from the end)
	offset := (40 + 2) * 3253
	if !bytes.Contains(buffer.Bytes()[offset:offset+3253], []byte("side one")) {
		t.Fatal("sector 700 not stored in the track of cylinder 2 head 1")
	}
}

func TestOpen_MFM(t *testing.T) {
	buffer := io.NewBuffer(nil)
	if _, err := Create(buffer, 40, 1, track.MFM); err != nil {
		t.Fatalf("Create(): unexpected err: %v", err)
	}
	format, err := Open(buffer)
	if err != nil {
		t.Fatalf("Open(): unexpected err: %v", err)
	}
	if format.Encoding() != track.MFM || format.SectorCount() != 720 {
		t.Fatalf(
			"Open(): wanted `MFM` with `720` sectors; found `%v` with `%d`",
			format.Encoding(),
			format.SectorCount(),
		)
	}
}

func TestOpen_Unreadable(t *testing.T) {
	if _, err := Open(io.NewBuffer(make([]byte, 3253))); !errors.Is(err, UnsupportedErr) {
		t.Fatalf("Open(): wanted `%v`; found `%v`", UnsupportedErr, err)
	}
}
