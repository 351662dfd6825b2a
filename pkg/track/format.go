package track

import (
	"encoding/binary"
	"fmt"

	"github.com/weberc2/tidisk/pkg/math"
	. "github.com/weberc2/tidisk/pkg/types"
)

// Layout describes how a controller formats a track.
type Layout struct {
	Encoding        Encoding
	SectorsPerTrack int
	TrackBytes      int
	Gap1            int
	SyncBytes       int
	Gap2            int
	Gap3            int
	GapByte         byte
	Interleave      []uint8
}

var (
	TIFM = Layout{
		Encoding:        FM,
		SectorsPerTrack: 9,
		TrackBytes:      3253,
		Gap1:            16,
		SyncBytes:       6,
		Gap2:            11,
		Gap3:            45,
		GapByte:         0xFF,
		Interleave:      []uint8{0, 7, 5, 3, 1, 8, 6, 4, 2},
	}

	TIMFM = Layout{
		Encoding:        MFM,
		SectorsPerTrack: 18,
		TrackBytes:      6872,
		Gap1:            40,
		SyncBytes:       12,
		Gap2:            22,
		Gap3:            24,
		GapByte:         0x4E,
		Interleave: []uint8{
			0, 11, 4, 15, 8, 1, 12, 5, 16, 9, 2, 13, 6, 17, 10, 3, 14, 7,
		},
	}
)

func LayoutFor(enc Encoding) Layout {
	if enc == MFM {
		return TIMFM
	}
	return TIFM
}

// TrackByte is one byte of a track under construction. Mark bytes are
// written with a missing clock: FM address marks, MFM A1 syncs.
type TrackByte struct {
	Value byte
	Mark  bool
}

type builder []TrackByte

func (b *builder) fill(v byte, n int) {
	for i := 0; i < n; i++ {
		*b = append(*b, TrackByte{Value: v})
	}
}

func (b *builder) bytes(p []byte) {
	for _, v := range p {
		*b = append(*b, TrackByte{Value: v})
	}
}

func (b *builder) mark(enc Encoding, mark byte) {
	if enc == MFM {
		for i := 0; i < 3; i++ {
			*b = append(*b, TrackByte{Value: mfmSync, Mark: true})
		}
		*b = append(*b, TrackByte{Value: mark})
		return
	}
	*b = append(*b, TrackByte{Value: mark, Mark: true})
}

func (b *builder) crc(p []byte) {
	var c [2]byte
	binary.BigEndian.PutUint16(c[:], CRC(p))
	b.bytes(c[:])
}

// Build lays out a formatted track holding `data` (indexed by sector ID,
// each `SectorSize` bytes) for the given cylinder and head.
func (l Layout) Build(cylinder, head uint8, data [][]byte) ([]TrackByte, error) {
	if len(data) != l.SectorsPerTrack {
		return nil, fmt.Errorf(
			"building track: wanted `%d` sectors; found `%d`",
			l.SectorsPerTrack,
			len(data),
		)
	}
	var b builder
	b.fill(l.GapByte, l.Gap1)
	for _, id := range l.Interleave {
		if len(data[id]) != int(SectorSize) {
			return nil, fmt.Errorf(
				"building track: sector `%d` has `%d` bytes",
				id,
				len(data[id]),
			)
		}
		header := []byte{cylinder, head, id, 1}
		b.fill(0, l.SyncBytes)
		b.mark(l.Encoding, IDAM)
		b.bytes(header)
		b.crc(append(markPrefix(l.Encoding, IDAM), header...))
		b.fill(l.GapByte, l.Gap2)
		b.fill(0, l.SyncBytes)
		b.mark(l.Encoding, DAM)
		b.bytes(data[id])
		b.crc(append(markPrefix(l.Encoding, DAM), data[id]...))
		b.fill(l.GapByte, l.Gap3)
	}
	if len(b) > l.TrackBytes {
		return nil, fmt.Errorf(
			"building track: `%d` bytes exceed track length `%d`: %w",
			len(b),
			l.TrackBytes,
			CapacityExceededErr,
		)
	}
	b.fill(l.GapByte, l.TrackBytes-len(b))
	return b, nil
}

// RenderBytes produces a byte-level track dump.
func RenderBytes(track []TrackByte) []byte {
	out := make([]byte, len(track))
	for i, b := range track {
		out[i] = b.Value
	}
	return out
}

// RenderCells produces a packed cell stream of exactly `cells` cells,
// repeating the final byte's encoding as filler or truncating as needed.
func RenderCells(
	track []TrackByte,
	enc Encoding,
	doubled bool,
	cells int,
) (*CellStream, error) {
	s, err := NewCellStream(
		make([]byte, math.DivRoundUp(cells, 8)),
		cells,
		enc,
		doubled,
	)
	if err != nil {
		return nil, err
	}
	scale := s.scale()
	pos := 0
	var prev byte
	emit := func(b TrackByte) {
		var c uint16
		switch {
		case enc == MFM && b.Mark:
			c = mfmSyncPattern
		case enc == MFM:
			c = mfmCells(prev, b.Value)
		case b.Mark:
			c = fmCells(fmMarkClock, b.Value)
		default:
			c = fmCells(fmNormalClock, b.Value)
		}
		prev = b.Value & 1
		for i := 0; i < 16; i++ {
			for k := 0; k < scale; k++ {
				if pos < cells {
					s.setCell(pos, c>>(15-i))
				}
				pos++
			}
		}
	}
	for _, b := range track {
		emit(b)
	}
	for pos < cells && len(track) > 0 {
		emit(TrackByte{Value: track[len(track)-1].Value})
	}
	return s, nil
}
