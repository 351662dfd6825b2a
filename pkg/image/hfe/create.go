package hfe

import (
	"fmt"

	"github.com/weberc2/tidisk/pkg/image"
	"github.com/weberc2/tidisk/pkg/io"
	"github.com/weberc2/tidisk/pkg/math"
	"github.com/weberc2/tidisk/pkg/track"
	. "github.com/weberc2/tidisk/pkg/types"
)

const (
	bitRate = 250
	rpm     = 300

	// cellsPerSide is one revolution at 500k cells per second and 300 rpm.
	cellsPerSide = 100000
)

// Create writes a freshly formatted image with blank sectors. Only the TI
// track layouts are supported, so the sectors per track follow from the
// encoding.
func Create(
	volume io.Volume,
	cylinders int,
	heads int,
	enc track.Encoding,
) (*Format, error) {
	if cylinders < 1 || cylinders > 255 || heads < 1 || heads > 2 {
		return nil, fmt.Errorf(
			"creating hfe image: `%d` cylinders, `%d` heads: %w",
			cylinders,
			heads,
			UnsupportedErr,
		)
	}
	layout := track.LayoutFor(enc)
	header := Header{
		Cylinders:    uint8(cylinders),
		Heads:        uint8(heads),
		Encoding:     encodingISOIBMMFM,
		BitRate:      bitRate,
		RPM:          rpm,
		Interface:    interfaceGenericShugart,
		TrackList:    1,
		WriteAllowed: true,
	}
	doubled := false
	cellsPerByte := 16
	if enc == track.FM {
		header.Encoding = encodingISOIBMFM
		doubled, cellsPerByte = true, 32
	}
	layout.TrackBytes = cellsPerSide / cellsPerByte

	sideBytes := Byte(cellsPerSide / 8)
	chunks := math.DivRoundUp(sideBytes, sideChunk)
	loc := location{Offset: 2, Length: uint16(2 * sideBytes)}

	b := make([]byte, 2*blockSize)
	encodeHeader(&header, b)
	lut := b[blockSize:]
	for i := range lut {
		lut[i] = 0xFF
	}
	for cylinder := 0; cylinder < cylinders; cylinder++ {
		lut[4*cylinder] = byte(loc.Offset)
		lut[4*cylinder+1] = byte(loc.Offset >> 8)
		lut[4*cylinder+2] = byte(loc.Length)
		lut[4*cylinder+3] = byte(loc.Length >> 8)
		loc.Offset += uint16(chunks)
	}
	if err := volume.WriteAt(0, b); err != nil {
		return nil, fmt.Errorf("creating hfe image: %w", err)
	}

	blank := make([][]byte, layout.SectorsPerTrack)
	for i := range blank {
		blank[i] = make([]byte, SectorSize)
	}
	for cylinder := 0; cylinder < cylinders; cylinder++ {
		raw := make([]byte, chunks*blockSize)
		for head := 0; head < heads; head++ {
			data, err := layout.Build(uint8(cylinder), uint8(head), blank)
			if err != nil {
				return nil, fmt.Errorf("creating hfe image: %w", err)
			}
			cells, err := track.RenderCells(data, enc, doubled, cellsPerSide)
			if err != nil {
				return nil, fmt.Errorf("creating hfe image: %w", err)
			}
			interleave(raw, head, cells.Bytes())
		}
		offset := (2 + Byte(cylinder)*chunks) * blockSize
		if err := volume.WriteAt(offset, raw); err != nil {
			return nil, fmt.Errorf(
				"creating hfe image: writing cylinder `%d`: %w",
				cylinder,
				err,
			)
		}
	}
	return Open(volume)
}

var _ image.Format = (*Format)(nil)
