package track

import "fmt"

// Stream is a recorded track addressed by position. Positions are cells
// for flux streams and bytes for byte-level dumps.
type Stream interface {
	Encoding() Encoding

	Len() int

	// ByteWidth is the number of positions one encoded byte occupies.
	ByteWidth() int

	// FindMark returns the position just past the next address mark in
	// `marks` that starts in `[from, limit)`.
	FindMark(from, limit int, marks ...byte) (int, byte, bool)

	// ReadBytes decodes len(p) bytes starting at `pos` and returns the
	// position after them.
	ReadBytes(pos int, p []byte) (int, bool)

	// WriteBytes encodes `p` as plain data starting at `pos` and returns the
	// position after them.
	WriteBytes(pos int, p []byte) (int, error)
}

// CellStream is a flux cell stream, one cell per bit, first cell in the most
// significant bit of the first byte.
type CellStream struct {
	cells   []byte
	n       int
	enc     Encoding
	doubled bool
}

func NewCellStream(
	cells []byte,
	n int,
	enc Encoding,
	doubled bool,
) (*CellStream, error) {
	if n > len(cells)*8 {
		return nil, fmt.Errorf(
			"creating cell stream: `%d` cells exceed `%d` bytes",
			n,
			len(cells),
		)
	}
	if doubled && enc != FM {
		return nil, fmt.Errorf("creating cell stream: doubled `%v`: unsupported", enc)
	}
	return &CellStream{cells: cells, n: n, enc: enc, doubled: doubled}, nil
}

func (s *CellStream) Bytes() []byte { return s.cells }

func (s *CellStream) Encoding() Encoding { return s.enc }

func (s *CellStream) Len() int { return s.n }

func (s *CellStream) scale() int {
	if s.doubled {
		return 2
	}
	return 1
}

func (s *CellStream) ByteWidth() int { return 16 * s.scale() }

func (s *CellStream) cell(i int) uint64 {
	return uint64(s.cells[i>>3] >> (7 - i&7) & 1)
}

func (s *CellStream) setCell(i int, v uint16) {
	mask := byte(0x80) >> (i & 7)
	if v&1 != 0 {
		s.cells[i>>3] |= mask
	} else {
		s.cells[i>>3] &^= mask
	}
}

// pattern returns the stored cells of a mark and their count.
func (s *CellStream) pattern(mark byte) (uint64, int) {
	if s.enc == MFM {
		p := uint64(mfmSyncPattern)
		return p<<32 | p<<16 | p, 48
	}
	cells := fmCells(fmMarkClock, mark)
	if s.doubled {
		return uint64(double(cells)), 32
	}
	return uint64(cells), 16
}

func (s *CellStream) FindMark(from, limit int, marks ...byte) (int, byte, bool) {
	if from < 0 {
		from = 0
	}
	if limit > s.n {
		limit = s.n
	}

	type candidate struct {
		pattern uint64
		width   int
		mark    byte
	}
	var candidates []candidate
	width := 0
	for _, mark := range marks {
		p, w := s.pattern(mark)
		candidates = append(candidates, candidate{p, w, mark})
		if w > width {
			width = w
		}
	}

	var window uint64
	for i := from; i < s.n && i-width+1 < limit; i++ {
		window = window<<1 | s.cell(i)
		filled := i - from + 1
		for _, c := range candidates {
			start := i - c.width + 1
			if filled < c.width || start >= limit {
				continue
			}
			if window&(1<<c.width-1) != c.pattern {
				continue
			}
			if s.enc == FM {
				return i + 1, c.mark, true
			}
			// MFM: three syncs matched; the mark byte follows.
			var b [1]byte
			if _, ok := s.ReadBytes(i+1, b[:]); ok && b[0] == c.mark {
				return i + 1 + s.ByteWidth(), c.mark, true
			}
		}
	}
	return 0, 0, false
}

func (s *CellStream) ReadBytes(pos int, p []byte) (int, bool) {
	scale := s.scale()
	if pos < 0 || pos+len(p)*s.ByteWidth() > s.n {
		return pos, false
	}
	for i := range p {
		var b byte
		for bit := 0; bit < 8; bit++ {
			// data cells are the odd cells of each clock/data pair
			b = b<<1 | byte(s.cell(pos+(2*bit+1)*scale))
		}
		p[i] = b
		pos += s.ByteWidth()
	}
	return pos, true
}

func (s *CellStream) WriteBytes(pos int, p []byte) (int, error) {
	scale := s.scale()
	if pos < 0 || pos+len(p)*s.ByteWidth() > s.n {
		return pos, fmt.Errorf(
			"writing `%d` bytes at cell `%d`: past end of `%d` cell track",
			len(p),
			pos,
			s.n,
		)
	}
	for _, b := range p {
		var cells uint16
		if s.enc == MFM {
			var prev byte
			if pos > 0 {
				prev = byte(s.cell(pos - 1))
			}
			cells = mfmCells(prev, b)
		} else {
			cells = fmCells(fmNormalClock, b)
		}
		for c := 0; c < 16; c++ {
			v := cells >> (15 - c)
			for k := 0; k < scale; k++ {
				s.setCell(pos+c*scale+k, v)
			}
		}
		pos += s.ByteWidth()
	}

	// The clock cell of the next byte depends on the last data cell written.
	if s.enc == MFM && pos+1 < s.n {
		var c uint16
		if s.cell(pos-1) == 0 && s.cell(pos+1) == 0 {
			c = 1
		}
		s.setCell(pos, c)
	}
	return pos, nil
}

// ByteStream is a byte-level track dump where address marks are stored as
// plain bytes: FM marks follow zero bytes, MFM marks follow three A1 bytes.
type ByteStream struct {
	data []byte
	enc  Encoding
}

func NewByteStream(data []byte, enc Encoding) *ByteStream {
	return &ByteStream{data: data, enc: enc}
}

func (s *ByteStream) Bytes() []byte { return s.data }

func (s *ByteStream) Encoding() Encoding { return s.enc }

func (s *ByteStream) Len() int { return len(s.data) }

func (s *ByteStream) ByteWidth() int { return 1 }

func (s *ByteStream) FindMark(from, limit int, marks ...byte) (int, byte, bool) {
	if limit > len(s.data) {
		limit = len(s.data)
	}
	for i := from; i < limit; i++ {
		for _, mark := range marks {
			if s.data[i] != mark {
				continue
			}
			if s.enc == MFM {
				if i >= 3 &&
					s.data[i-1] == mfmSync &&
					s.data[i-2] == mfmSync &&
					s.data[i-3] == mfmSync {
					return i + 1, mark, true
				}
			} else if i >= 2 && s.data[i-1] == 0 && s.data[i-2] == 0 {
				return i + 1, mark, true
			}
		}
	}
	return 0, 0, false
}

func (s *ByteStream) ReadBytes(pos int, p []byte) (int, bool) {
	if pos < 0 || pos+len(p) > len(s.data) {
		return pos, false
	}
	copy(p, s.data[pos:])
	return pos + len(p), true
}

func (s *ByteStream) WriteBytes(pos int, p []byte) (int, error) {
	if pos < 0 || pos+len(p) > len(s.data) {
		return pos, fmt.Errorf(
			"writing `%d` bytes at `%d`: past end of `%d` byte track",
			len(p),
			pos,
			len(s.data),
		)
	}
	copy(s.data[pos:], p)
	return pos + len(p), nil
}
