package image

import (
	"fmt"

	"github.com/weberc2/tidisk/pkg/track"
	. "github.com/weberc2/tidisk/pkg/types"
)

// Geometry describes a track-based medium. Logical sectors run up the
// cylinders of head 0 and back down the cylinders of head 1.
type Geometry struct {
	Cylinders       int
	Heads           int
	SectorsPerTrack int
}

func (g Geometry) SectorCount() uint32 {
	return uint32(g.Cylinders * g.Heads * g.SectorsPerTrack)
}

// Locate returns the cylinder, head and sector ID of a logical sector.
func (g Geometry) Locate(number uint32) (int, int, int, error) {
	if number >= g.SectorCount() {
		return 0, 0, 0, fmt.Errorf(
			"sector `%d` beyond `%d` sectors: %w",
			number,
			g.SectorCount(),
			NotFoundErr,
		)
	}
	t := int(number) / g.SectorsPerTrack
	r := int(number) % g.SectorsPerTrack
	if t < g.Cylinders {
		return t, 0, r, nil
	}
	return 2*g.Cylinders - 1 - t, 1, r, nil
}

// Logical is the inverse of Locate.
func (g Geometry) Logical(cylinder, head, r int) uint32 {
	t := cylinder
	if head == 1 {
		t = 2*g.Cylinders - 1 - cylinder
	}
	return uint32(t*g.SectorsPerTrack + r)
}

// Track is one decoded physical track.
type Track struct {
	Cylinder int
	Head     int
	Stream   track.Stream
	Records  []track.SectorRecord
}

func DecodeTrack(cylinder, head int, stream track.Stream) Track {
	return Track{
		Cylinder: cylinder,
		Head:     head,
		Stream:   stream,
		Records:  track.Decode(stream),
	}
}

// SectorsPerTrack returns the number of sectors a track carries, judging by
// the highest readable sector ID.
func (t *Track) SectorsPerTrack() int {
	spt := 0
	for i := range t.Records {
		if t.Records[i].Err == nil && int(t.Records[i].Sector) >= spt {
			spt = int(t.Records[i].Sector) + 1
		}
	}
	return spt
}

func (t *Track) record(r int) (*track.SectorRecord, error) {
	var damaged error
	for i := range t.Records {
		record := &t.Records[i]
		if int(record.Sector) != r {
			continue
		}
		if record.Err == nil {
			return record, nil
		}
		if damaged == nil {
			damaged = record.Err
		}
	}
	if damaged != nil {
		return nil, damaged
	}
	return nil, fmt.Errorf(
		"cylinder `%d` head `%d` sector ID `%d`: %w",
		t.Cylinder,
		t.Head,
		r,
		NotFoundErr,
	)
}

// Tracks is the codec of a unit made of one or more physical tracks.
type Tracks struct {
	Geometry Geometry
	Tracks   []Track

	// Raw encodes the tracks back into the unit's stored bytes.
	Raw func() ([]byte, error)
}

func (ts *Tracks) find(number uint32) (*Track, int, error) {
	cylinder, head, r, err := ts.Geometry.Locate(number)
	if err != nil {
		return nil, 0, err
	}
	for i := range ts.Tracks {
		if ts.Tracks[i].Cylinder == cylinder && ts.Tracks[i].Head == head {
			return &ts.Tracks[i], r, nil
		}
	}
	return nil, 0, fmt.Errorf(
		"sector `%d`: cylinder `%d` head `%d` not in unit: %w",
		number,
		cylinder,
		head,
		NotFoundErr,
	)
}

func (ts *Tracks) Read(number uint32) (Sector, error) {
	t, r, err := ts.find(number)
	if err != nil {
		return Sector{}, err
	}
	record, err := t.record(r)
	if err != nil {
		return Sector{}, err
	}
	if record.Size() != int(SectorSize) {
		return Sector{}, fmt.Errorf(
			"sector `%d`: `%d` byte sector: %w",
			number,
			record.Size(),
			UnsupportedErr,
		)
	}
	return NewSector(number, record.Data), nil
}

func (ts *Tracks) Write(sector Sector) error {
	t, r, err := ts.find(sector.Number)
	if err != nil {
		return err
	}
	record, err := t.record(r)
	if err != nil {
		return err
	}
	return track.Patch(t.Stream, record, sector.Content[:])
}

func (ts *Tracks) Encode() ([]byte, error) { return ts.Raw() }
