// Package hfe implements HxC HFE bit-accurate floppy images. Each format
// unit is one cylinder holding the cell streams of both heads.
package hfe

import (
	"fmt"
	"math/bits"

	"github.com/weberc2/tidisk/pkg/image"
	"github.com/weberc2/tidisk/pkg/io"
	"github.com/weberc2/tidisk/pkg/track"
	. "github.com/weberc2/tidisk/pkg/types"
)

type Format struct {
	volume   io.Volume
	header   Header
	tracks   []location
	geometry image.Geometry
	encoding track.Encoding
	doubled  bool
}

func Open(volume io.Volume) (*Format, error) {
	b := make([]byte, headerSize)
	if err := volume.ReadAt(0, b); err != nil {
		return nil, fmt.Errorf("opening hfe image: %w", err)
	}
	header, err := decodeHeader(b)
	if err != nil {
		return nil, fmt.Errorf("opening hfe image: %w", err)
	}

	f := Format{volume: volume, header: header}
	switch header.Encoding {
	case encodingISOIBMMFM:
		f.encoding = track.MFM
	case encodingISOIBMFM:
		f.encoding, f.doubled = track.FM, true
	default:
		return nil, fmt.Errorf(
			"opening hfe image: track encoding `0x%02X`: %w",
			header.Encoding,
			UnsupportedErr,
		)
	}
	if header.Cylinders == 0 || header.Heads == 0 || header.Heads > 2 {
		return nil, fmt.Errorf(
			"opening hfe image: `%d` cylinders, `%d` heads: %w",
			header.Cylinders,
			header.Heads,
			CorruptErr,
		)
	}

	lut := make([]byte, Byte(header.Cylinders)*lutEntry)
	if err := volume.ReadAt(Byte(header.TrackList)*blockSize, lut); err != nil {
		return nil, fmt.Errorf("opening hfe image: reading track list: %w", err)
	}
	f.tracks = make([]location, header.Cylinders)
	for i := range f.tracks {
		f.tracks[i] = location{
			Offset: uint16(lut[4*i]) | uint16(lut[4*i+1])<<8,
			Length: uint16(lut[4*i+2]) | uint16(lut[4*i+3])<<8,
		}
	}

	f.geometry = image.Geometry{
		Cylinders: int(header.Cylinders),
		Heads:     int(header.Heads),
	}
	first, err := f.loadTracks(0)
	if err != nil {
		return nil, fmt.Errorf("opening hfe image: %w", err)
	}
	spt := first.Tracks[0].SectorsPerTrack()
	if spt == 0 {
		return nil, fmt.Errorf(
			"opening hfe image: no readable sectors on cylinder 0: %w",
			NotFoundErr,
		)
	}
	f.geometry.SectorsPerTrack = spt
	return &f, nil
}

func (f *Format) Name() string { return "hfe" }

func (f *Format) Geometry() image.Geometry { return f.geometry }

func (f *Format) Encoding() track.Encoding { return f.encoding }

func (f *Format) SectorCount() uint32 { return f.geometry.SectorCount() }

func (f *Format) Locate(sector uint32) (int, error) {
	cylinder, _, _, err := f.geometry.Locate(sector)
	return cylinder, err
}

func (f *Format) UnitPosition(unit int) (Byte, bool) {
	return f.tracks[unit].position(), true
}

func (f *Format) UnitLength(unit int) Byte { return f.tracks[unit].stored() }

// side extracts one head's cells from the interleaved cylinder data,
// reversing each byte so the first cell is the most significant bit.
func side(raw []byte, head int, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		block := Byte(i) / sideChunk
		out[i] = bits.Reverse8(
			raw[block*blockSize+Byte(head)*sideChunk+Byte(i)%sideChunk],
		)
	}
	return out
}

func interleave(raw []byte, head int, cells []byte) {
	for i, c := range cells {
		block := Byte(i) / sideChunk
		raw[block*blockSize+Byte(head)*sideChunk+Byte(i)%sideChunk] =
			bits.Reverse8(c)
	}
}

func (f *Format) loadTracks(cylinder int) (*image.Tracks, error) {
	loc := f.tracks[cylinder]
	raw := make([]byte, loc.stored())
	if err := f.volume.ReadAt(loc.position(), raw); err != nil {
		return nil, fmt.Errorf("loading cylinder `%d`: %w", cylinder, err)
	}
	n := int(loc.Length) / 2

	codec := image.Tracks{Geometry: f.geometry}
	var streams []*track.CellStream
	for head := 0; head < int(f.header.Heads); head++ {
		stream, err := track.NewCellStream(
			side(raw, head, n),
			n*8,
			f.encoding,
			f.doubled,
		)
		if err != nil {
			return nil, fmt.Errorf("loading cylinder `%d`: %w", cylinder, err)
		}
		streams = append(streams, stream)
		codec.Tracks = append(codec.Tracks, image.DecodeTrack(cylinder, head, stream))
	}
	codec.Raw = func() ([]byte, error) {
		for head, stream := range streams {
			interleave(raw, head, stream.Bytes())
		}
		return raw, nil
	}
	return &codec, nil
}

func (f *Format) Load(unit int) (image.Codec, error) {
	if unit < 0 || unit >= len(f.tracks) {
		return nil, fmt.Errorf("loading cylinder `%d`: %w", unit, NotFoundErr)
	}
	return f.loadTracks(unit)
}

func (f *Format) Store(unit int, codec image.Codec) error {
	if !f.header.WriteAllowed {
		return fmt.Errorf("storing cylinder `%d`: %w", unit, ReadOnlyErr)
	}
	raw, err := codec.Encode()
	if err != nil {
		return fmt.Errorf("storing cylinder `%d`: %w", unit, err)
	}
	if err := f.volume.WriteAt(f.tracks[unit].position(), raw); err != nil {
		return fmt.Errorf("storing cylinder `%d`: %w", unit, err)
	}
	return nil
}

func (f *Format) Flush() error { return image.Sync(f.volume) }
