package detect

import (
	"errors"
	"testing"

	"github.com/weberc2/tidisk/pkg/image/chd"
	"github.com/weberc2/tidisk/pkg/image/hfe"
	"github.com/weberc2/tidisk/pkg/image/multi"
	"github.com/weberc2/tidisk/pkg/image/pc99"
	"github.com/weberc2/tidisk/pkg/io"
	"github.com/weberc2/tidisk/pkg/track"
	. "github.com/weberc2/tidisk/pkg/types"
)

func TestProbe(t *testing.T) {
	type testCase struct {
		name   string
		build  func(t *testing.T) io.Volume
		wanted Kind
	}

	for _, tc := range []testCase{{
		name: "dump",
		build: func(t *testing.T) io.Volume {
			return io.NewBuffer(make([]byte, 360*SectorSize))
		},
		wanted: KindDump,
	}, {
		name: "hfe",
		build: func(t *testing.T) io.Volume {
			buffer := io.NewBuffer(nil)
			if _, err := hfe.Create(buffer, 2, 1, track.FM); err != nil {
				t.Fatalf("hfe.Create(): unexpected err: %v", err)
			}
			return buffer
		},
		wanted: KindHFE,
	}, {
		name: "pc99",
		build: func(t *testing.T) io.Volume {
			buffer := io.NewBuffer(nil)
			if _, err := pc99.Create(buffer, 2, 1, track.FM); err != nil {
				t.Fatalf("pc99.Create(): unexpected err: %v", err)
			}
			return buffer
		},
		wanted: KindPC99,
	}, {
		name: "chd",
		build: func(t *testing.T) io.Volume {
			buffer := io.NewBuffer(nil)
			if _, err := chd.Create(
				buffer,
				chd.HardDiskGeometry{Cylinders: 2, Heads: 2, SectorsPerTrack: 32},
				4096,
			); err != nil {
				t.Fatalf("chd.Create(): unexpected err: %v", err)
			}
			return buffer
		},
		wanted: KindCHD,
	}, {
		name: "partition",
		build: func(t *testing.T) io.Volume {
			buffer := io.NewBuffer(make([]byte, 64*SectorSize))
			if err := multi.WritePartitions(
				buffer,
				[]multi.Partition{{Start: 1, Count: 63, Name: "ONE"}},
			); err != nil {
				t.Fatalf("WritePartitions(): unexpected err: %v", err)
			}
			return buffer
		},
		wanted: KindPartition,
	}, {
		name: "cf7",
		build: func(t *testing.T) io.Volume {
			buffer := io.NewBuffer(nil)
			if err := multi.CreateCF7(buffer, 2); err != nil {
				t.Fatalf("CreateCF7(): unexpected err: %v", err)
			}
			copy(buffer.Bytes()[0x1A:], []byte{'D', 0, 'S', 0, 'K'})
			return buffer
		},
		wanted: KindCF7,
	}} {
		t.Run(tc.name, func(t *testing.T) {
			volume := tc.build(t)
			kind, err := Probe(volume)
			if err != nil {
				t.Fatalf("Probe(): unexpected err: %v", err)
			}
			if kind != tc.wanted {
				t.Fatalf("Probe(): wanted `%s`; found `%s`", tc.wanted, kind)
			}
			if _, err := Open(volume, Options{}); err != nil {
				t.Fatalf("Open(): unexpected err: %v", err)
			}
		})
	}
}

func TestProbe_Unsupported(t *testing.T) {
	if _, err := Probe(io.NewBuffer(make([]byte, 1000))); !errors.Is(err, UnsupportedErr) {
		t.Fatalf("Probe(): wanted `%v`; found `%v`", UnsupportedErr, err)
	}
}

func TestParseKind(t *testing.T) {
	if kind, err := ParseKind("chd"); err != nil || kind != KindCHD {
		t.Fatalf("ParseKind(`chd`): wanted `chd`; found `%s` (err: %v)", kind, err)
	}
	if _, err := ParseKind("d81"); !errors.Is(err, UnsupportedErr) {
		t.Fatalf("ParseKind(`d81`): wanted `%v`; found `%v`", UnsupportedErr, err)
	}
}
