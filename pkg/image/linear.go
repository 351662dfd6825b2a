package image

import (
	"fmt"

	. "github.com/weberc2/tidisk/pkg/types"
)

// Linear is the codec of a unit that stores its sectors back to back. Each
// sector occupies `SectorSize*Stride` bytes with the payload in every
// `Stride`th byte; the remaining bytes are preserved.
type Linear struct {
	raw    []byte
	first  uint32
	count  uint32
	stride int
}

func NewLinear(raw []byte, first uint32, stride int) (*Linear, error) {
	width := int(SectorSize) * stride
	if stride < 1 || len(raw)%width != 0 {
		return nil, fmt.Errorf(
			"decoding unit at sector `%d`: `%d` bytes is not a multiple of "+
				"`%d`: %w",
			first,
			len(raw),
			width,
			CorruptErr,
		)
	}
	return &Linear{
		raw:    raw,
		first:  first,
		count:  uint32(len(raw) / width),
		stride: stride,
	}, nil
}

func (l *Linear) offset(number uint32) (int, error) {
	if number < l.first || number-l.first >= l.count {
		return 0, fmt.Errorf(
			"sector `%d` outside unit `[%d, %d)`: %w",
			number,
			l.first,
			l.first+l.count,
			NotFoundErr,
		)
	}
	return int(number-l.first) * int(SectorSize) * l.stride, nil
}

func (l *Linear) Read(number uint32) (Sector, error) {
	offset, err := l.offset(number)
	if err != nil {
		return Sector{}, err
	}
	sector := Sector{Number: number}
	for i := range sector.Content {
		sector.Content[i] = l.raw[offset+i*l.stride]
	}
	return sector, nil
}

func (l *Linear) Write(sector Sector) error {
	offset, err := l.offset(sector.Number)
	if err != nil {
		return err
	}
	for i, b := range sector.Content {
		l.raw[offset+i*l.stride] = b
	}
	return nil
}

func (l *Linear) Encode() ([]byte, error) { return l.raw, nil }
