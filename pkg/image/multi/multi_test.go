package multi

import (
	"errors"
	"testing"

	"github.com/weberc2/tidisk/pkg/image"
	"github.com/weberc2/tidisk/pkg/io"
	. "github.com/weberc2/tidisk/pkg/types"
)

func TestCF7Volumes(t *testing.T) {
	buffer := io.NewBuffer(nil)
	if err := CreateCF7(buffer, 3); err != nil {
		t.Fatalf("CreateCF7(): unexpected err: %v", err)
	}
	if count, err := CF7Count(buffer); err != nil || count != 3 {
		t.Fatalf("CF7Count(): wanted `3`; found `%d` (err: %v)", count, err)
	}

	format, err := CF7Volume(buffer, 1, 0)
	if err != nil {
		t.Fatalf("CF7Volume(1): unexpected err: %v", err)
	}
	img := image.New(format, nil)
	if err := img.WriteSector(NewSector(1599, []byte("end"))); err != nil {
		t.Fatalf("WriteSector(1599): unexpected err: %v", err)
	}
	if err := img.Flush(); err != nil {
		t.Fatalf("Flush(): unexpected err: %v", err)
	}

	offset := CF7VolumeSize + 1599*SectorSize*2
	raw := buffer.Bytes()[offset : offset+6]
	if raw[0] != 'e' || raw[2] != 'n' || raw[4] != 'd' || raw[1] != 0 {
		t.Fatalf("stored bytes: wanted `e.n.d.`; found `%q`", raw)
	}

	if _, err := CF7Volume(buffer, 3, 0); !errors.Is(err, NotFoundErr) {
		t.Fatalf("CF7Volume(3): wanted `%v`; found `%v`", NotFoundErr, err)
	}
}

func TestIsCF7(t *testing.T) {
	buffer := io.NewBuffer(nil)
	if err := CreateCF7(buffer, 1); err != nil {
		t.Fatalf("CreateCF7(): unexpected err: %v", err)
	}
	if IsCF7(buffer) {
		t.Fatal("IsCF7(): blank card: wanted `false`")
	}
	copy(buffer.Bytes()[0x1A:], []byte{'D', 0, 'S', 0, 'K'})
	if !IsCF7(buffer) {
		t.Fatal("IsCF7(): wanted `true`")
	}
}

func TestPartitions(t *testing.T) {
	type testCase struct {
		name       string
		partitions []Partition
		wanted     error
	}

	for _, tc := range []testCase{{
		name: "valid",
		partitions: []Partition{
			{Start: 1, Count: 100, Name: "SYSTEM"},
			{Start: 101, Count: 155, Name: "DATA"},
		},
	}, {
		name: "overlap",
		partitions: []Partition{
			{Start: 1, Count: 100, Name: "A"},
			{Start: 50, Count: 10, Name: "B"},
		},
		wanted: CorruptErr,
	}, {
		name:       "past the end",
		partitions: []Partition{{Start: 200, Count: 100, Name: "A"}},
		wanted:     CorruptErr,
	}, {
		name:       "too many",
		partitions: make([]Partition, 9),
		wanted:     CapacityExceededErr,
	}} {
		t.Run(tc.name, func(t *testing.T) {
			buffer := io.NewBuffer(make([]byte, 256*SectorSize))
			err := WritePartitions(buffer, tc.partitions)
			if tc.wanted != nil {
				if !errors.Is(err, tc.wanted) {
					t.Fatalf("WritePartitions(): wanted `%v`; found `%v`", tc.wanted, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("WritePartitions(): unexpected err: %v", err)
			}
			found, err := ReadPartitions(buffer)
			if err != nil {
				t.Fatalf("ReadPartitions(): unexpected err: %v", err)
			}
			for i := range tc.partitions {
				if found[i] != tc.partitions[i] {
					t.Fatalf(
						"ReadPartitions()[%d]: wanted `%+v`; found `%+v`",
						i,
						tc.partitions[i],
						found[i],
					)
				}
			}

			format, err := PartitionVolume(buffer, 1, 0)
			if err != nil {
				t.Fatalf("PartitionVolume(1): unexpected err: %v", err)
			}
			if format.SectorCount() != 155 {
				t.Fatalf("SectorCount(): wanted `155`; found `%d`", format.SectorCount())
			}
			img := image.New(format, nil)
			if err := img.WriteSector(NewSector(0, []byte("DATA"))); err != nil {
				t.Fatalf("WriteSector(): unexpected err: %v", err)
			}
			if err := img.Flush(); err != nil {
				t.Fatalf("Flush(): unexpected err: %v", err)
			}
			if got := string(buffer.Bytes()[101*SectorSize : 101*SectorSize+4]); got != "DATA" {
				t.Fatalf("partition sector 0: wanted `DATA`; found `%s`", got)
			}
		})
	}
}

func TestReadPartitions_TooMany(t *testing.T) {
	b := make([]byte, 16*SectorSize)
	copy(b, PartitionSignature)
	b[countStart] = 9
	if _, err := ReadPartitions(io.NewBuffer(b)); !errors.Is(err, CapacityExceededErr) {
		t.Fatalf("ReadPartitions(): wanted `%v`; found `%v`", CapacityExceededErr, err)
	}
}
