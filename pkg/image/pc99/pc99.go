// Package pc99 implements byte-level track dumps: every track is stored as
// the bytes the controller would write, address marks included, side 0
// cylinders first and then side 1.
package pc99

import (
	"bytes"
	"fmt"

	"github.com/weberc2/tidisk/pkg/image"
	"github.com/weberc2/tidisk/pkg/io"
	"github.com/weberc2/tidisk/pkg/track"
	. "github.com/weberc2/tidisk/pkg/types"
)

type Format struct {
	volume   io.Volume
	layout   track.Layout
	geometry image.Geometry
}

// Probe reports whether `volume` is laid out as whole tracks of either
// encoding with a readable first track.
func Probe(volume io.Volume) bool {
	_, err := Open(volume)
	return err == nil
}

func Open(volume io.Volume) (*Format, error) {
	size, err := volume.Size()
	if err != nil {
		return nil, fmt.Errorf("opening track dump: %w", err)
	}
	for _, layout := range []track.Layout{track.TIFM, track.TIMFM} {
		if size == 0 || size%Byte(layout.TrackBytes) != 0 {
			continue
		}
		first := make([]byte, layout.TrackBytes)
		if err := volume.ReadAt(0, first); err != nil {
			return nil, fmt.Errorf("opening track dump: %w", err)
		}
		t := image.DecodeTrack(0, 0, track.NewByteStream(first, layout.Encoding))
		spt := t.SectorsPerTrack()
		if spt == 0 {
			continue
		}
		tracks := int(size / Byte(layout.TrackBytes))
		heads := sides(&t, tracks)
		return &Format{
			volume: volume,
			layout: layout,
			geometry: image.Geometry{
				Cylinders:       tracks / heads,
				Heads:           heads,
				SectorsPerTrack: spt,
			},
		}, nil
	}
	return nil, fmt.Errorf(
		"opening track dump: `%d` bytes: no readable track: %w",
		size,
		UnsupportedErr,
	)
}

// sides takes the side count from the volume information block when it is
// readable and plausible.
func sides(first *image.Track, tracks int) int {
	for i := range first.Records {
		record := &first.Records[i]
		if record.Sector != 0 || record.Err != nil || len(record.Data) < 0x14 {
			continue
		}
		if bytes.Equal(record.Data[0x0D:0x10], []byte("DSK")) {
			if s := int(record.Data[0x12]); (s == 1 || s == 2) && tracks%s == 0 {
				return s
			}
		}
	}
	if tracks >= 80 && tracks%2 == 0 {
		return 2
	}
	return 1
}

func (f *Format) Name() string { return "pc99" }

func (f *Format) Geometry() image.Geometry { return f.geometry }

func (f *Format) Encoding() track.Encoding { return f.layout.Encoding }

func (f *Format) SectorCount() uint32 { return f.geometry.SectorCount() }

func (f *Format) Locate(sector uint32) (int, error) {
	cylinder, head, _, err := f.geometry.Locate(sector)
	if err != nil {
		return 0, err
	}
	return head*f.geometry.Cylinders + cylinder, nil
}

func (f *Format) UnitPosition(unit int) (Byte, bool) {
	return Byte(unit) * Byte(f.layout.TrackBytes), true
}

func (f *Format) UnitLength(int) Byte { return Byte(f.layout.TrackBytes) }

func (f *Format) Load(unit int) (image.Codec, error) {
	raw := make([]byte, f.layout.TrackBytes)
	position, _ := f.UnitPosition(unit)
	if err := f.volume.ReadAt(position, raw); err != nil {
		return nil, fmt.Errorf("loading track `%d`: %w", unit, err)
	}
	stream := track.NewByteStream(raw, f.layout.Encoding)
	return &image.Tracks{
		Geometry: f.geometry,
		Tracks: []image.Track{image.DecodeTrack(
			unit%f.geometry.Cylinders,
			unit/f.geometry.Cylinders,
			stream,
		)},
		Raw: func() ([]byte, error) { return stream.Bytes(), nil },
	}, nil
}

func (f *Format) Store(unit int, codec image.Codec) error {
	raw, err := codec.Encode()
	if err != nil {
		return fmt.Errorf("storing track `%d`: %w", unit, err)
	}
	position, _ := f.UnitPosition(unit)
	if err := f.volume.WriteAt(position, raw); err != nil {
		return fmt.Errorf("storing track `%d`: %w", unit, err)
	}
	return nil
}

func (f *Format) Flush() error { return image.Sync(f.volume) }

// Create writes a freshly formatted dump with blank sectors.
func Create(
	volume io.Volume,
	cylinders int,
	heads int,
	enc track.Encoding,
) (*Format, error) {
	layout := track.LayoutFor(enc)
	blank := make([][]byte, layout.SectorsPerTrack)
	for i := range blank {
		blank[i] = make([]byte, SectorSize)
	}
	for head := 0; head < heads; head++ {
		for cylinder := 0; cylinder < cylinders; cylinder++ {
			data, err := layout.Build(uint8(cylinder), uint8(head), blank)
			if err != nil {
				return nil, fmt.Errorf("creating track dump: %w", err)
			}
			unit := Byte(head*cylinders + cylinder)
			if err := volume.WriteAt(
				unit*Byte(layout.TrackBytes),
				track.RenderBytes(data),
			); err != nil {
				return nil, fmt.Errorf(
					"creating track dump: writing track `%d`: %w",
					unit,
					err,
				)
			}
		}
	}
	return &Format{
		volume: volume,
		layout: layout,
		geometry: image.Geometry{
			Cylinders:       cylinders,
			Heads:           heads,
			SectorsPerTrack: layout.SectorsPerTrack,
		},
	}, nil
}
