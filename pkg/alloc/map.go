package alloc

import (
	"bytes"
	"sort"

	"github.com/weberc2/tidisk/pkg/math"
	. "github.com/weberc2/tidisk/pkg/types"
)

const bitsPerByte = 8

// BitOrder selects which bit of a bitmap byte holds the lowest-numbered AU.
type BitOrder uint8

const (
	// LSBFirst is used by floppy volumes: bit 0 of byte 0 is AU 0.
	LSBFirst BitOrder = iota

	// MSBFirst is used by hard disk volumes: bit 7 of byte 0 is AU 0.
	MSBFirst
)

// Map is an allocation bitmap over allocation units (AUs). Bits for AUs at
// or beyond the medium size are always set.
type Map struct {
	bytes  []byte
	units  uint32
	auSize uint32
	order  BitOrder
}

// New creates an empty map for `units` AUs of `auSize` sectors each.
// `regionSize` is the size in bytes of the on-disk bitmap region; zero means
// just large enough for `units`.
func New(units, auSize uint32, order BitOrder, regionSize int) *Map {
	if minSize := int(math.DivRoundUp(units, bitsPerByte)); regionSize < minSize {
		regionSize = minSize
	}
	m := &Map{
		bytes:  make([]byte, regionSize),
		units:  units,
		auSize: auSize,
		order:  order,
	}
	m.setTail()
	return m
}

// Decode wraps a copy of an on-disk bitmap region.
func Decode(region []byte, units, auSize uint32, order BitOrder) *Map {
	m := New(units, auSize, order, len(region))
	copy(m.bytes, region)
	m.setTail()
	return m
}

func (m *Map) setTail() {
	for unit := m.units; unit < uint32(len(m.bytes))*bitsPerByte; unit++ {
		m.set(unit)
	}
}

func (m *Map) Units() uint32 { return m.units }

func (m *Map) AUSize() uint32 { return m.auSize }

func (m *Map) Order() BitOrder { return m.order }

// Bytes returns a copy of the on-disk representation.
func (m *Map) Bytes() []byte {
	out := make([]byte, len(m.bytes))
	copy(out, m.bytes)
	return out
}

func (m *Map) Clone() *Map {
	return &Map{
		bytes:  m.Bytes(),
		units:  m.units,
		auSize: m.auSize,
		order:  m.order,
	}
}

func (m *Map) Equal(other *Map) bool {
	return m.units == other.units &&
		m.auSize == other.auSize &&
		m.order == other.order &&
		bytes.Equal(m.bytes, other.bytes)
}

func (m *Map) mask(unit uint32) (*byte, byte) {
	b := &m.bytes[unit/bitsPerByte]
	bit := unit % bitsPerByte
	if m.order == MSBFirst {
		return b, 0b1000_0000 >> bit
	}
	return b, 0b0000_0001 << bit
}

func (m *Map) set(unit uint32) {
	b, mask := m.mask(unit)
	*b |= mask
}

func (m *Map) Allocate(unit uint32) {
	if unit < m.units {
		m.set(unit)
	}
}

func (m *Map) Deallocate(unit uint32) {
	if unit < m.units {
		b, mask := m.mask(unit)
		*b &^= mask
	}
}

func (m *Map) IsAllocated(unit uint32) bool {
	if unit >= m.units {
		return true
	}
	b, mask := m.mask(unit)
	return *b&mask != 0
}

// CountAllocated counts the allocated AUs within the medium.
func (m *Map) CountAllocated() uint32 {
	var n uint32
	for unit := uint32(0); unit < m.units; unit++ {
		if m.IsAllocated(unit) {
			n++
		}
	}
	return n
}

func (m *Map) CountFree() uint32 { return m.units - m.CountAllocated() }

// AllocFrom allocates the first free AU at or after `hint`, wrapping around
// to the start of the medium.
func (m *Map) AllocFrom(hint uint32) (uint32, bool) {
	if hint >= m.units {
		hint = 0
	}
	for i := uint32(0); i < m.units; i++ {
		unit := (hint + i) % m.units
		if !m.IsAllocated(unit) {
			m.set(unit)
			return unit, true
		}
	}
	return 0, false
}

// AUOf returns the AU holding `sector`.
func (m *Map) AUOf(sector uint32) uint32 { return sector / m.auSize }

// SectorsOf converts an AU interval into the sector interval it covers.
func (m *Map) SectorsOf(units Interval) Interval {
	return Interval{
		Start: units.Start * m.auSize,
		End:   (units.End+1)*m.auSize - 1,
	}
}

// AllocateIntervals marks every AU touched by the sector `intervals`.
func (m *Map) AllocateIntervals(intervals []Interval) {
	for _, i := range intervals {
		for unit := m.AUOf(i.Start); unit <= m.AUOf(i.End); unit++ {
			m.Allocate(unit)
		}
	}
}

// DeallocateIntervals releases every AU touched by the sector `intervals`.
func (m *Map) DeallocateIntervals(intervals []Interval) {
	for _, i := range intervals {
		for unit := m.AUOf(i.Start); unit <= m.AUOf(i.End); unit++ {
			m.Deallocate(unit)
		}
	}
}

// RunResult classifies the outcome of FindFreeRun.
type RunResult uint8

const (
	// RunFound means a free run of exactly the requested length exists.
	RunFound RunResult = iota

	// RunEvenLonger means the first adequate run is longer than requested;
	// the returned interval covers only the requested length.
	RunEvenLonger

	// RunNotFound means no single run is long enough; the returned interval
	// is the largest free run (zero length if the medium is full).
	RunNotFound
)

func (r RunResult) String() string {
	switch r {
	case RunFound:
		return "found"
	case RunEvenLonger:
		return "even-longer"
	default:
		return "not-found"
	}
}

// FindFreeRun looks for `needed` contiguous free AUs, scanning forward from
// `hint` and then from the start of the medium up to `hint`. Intervals are in
// AUs. A request for zero AUs is never satisfied.
func (m *Map) FindFreeRun(needed, hint uint32) (Interval, RunResult) {
	if needed == 0 {
		return Interval{}, RunNotFound
	}
	if hint >= m.units {
		hint = 0
	}

	var largest Interval
	var largestLen uint32
	// [start, end) segments
	for _, segment := range [2][2]uint32{{hint, m.units}, {0, hint}} {
		end := segment[1]
		for unit := segment[0]; unit < end; {
			if m.IsAllocated(unit) {
				unit++
				continue
			}
			start := unit
			for unit < end && !m.IsAllocated(unit) {
				unit++
			}
			length := unit - start
			if length >= needed {
				run := Interval{Start: start, End: start + needed - 1}
				if length == needed {
					return run, RunFound
				}
				return run, RunEvenLonger
			}
			if length > largestLen {
				largest = Interval{Start: start, End: unit - 1}
				largestLen = length
			}
		}
	}

	if largestLen == 0 {
		return Interval{}, RunNotFound
	}
	return largest, RunNotFound
}

// FindFreeSpace finds room for `sectors` sectors, rounded up to whole AUs.
// It prefers a single run at or after `hint`; failing that it takes the
// largest run and fills the remainder with runs from the start of the medium.
// The result is sorted and in sectors. The map itself is never modified and
// `ok` is false when the medium cannot hold the request.
func (m *Map) FindFreeSpace(sectors, hint uint32) ([]Interval, bool) {
	if sectors == 0 {
		return nil, true
	}
	needed := math.DivRoundUp(sectors, m.auSize)

	if needed > m.CountFree() {
		return nil, false
	}
	run, result := m.FindFreeRun(needed, hint)
	if result != RunNotFound {
		return []Interval{m.truncate(m.SectorsOf(run), sectors)}, true
	}

	scratch := m.Clone()
	for unit := run.Start; unit <= run.End; unit++ {
		scratch.set(unit)
	}
	units := []Interval{run}
	remaining := needed - run.Len()
	for unit := uint32(0); unit < m.units && remaining > 0; {
		if scratch.IsAllocated(unit) {
			unit++
			continue
		}
		start := unit
		for unit < m.units && remaining > 0 && !scratch.IsAllocated(unit) {
			unit++
			remaining--
		}
		units = append(units, Interval{Start: start, End: unit - 1})
	}
	if remaining > 0 {
		return nil, false
	}

	sort.Slice(units, func(i, j int) bool {
		return units[i].Start < units[j].Start
	})
	out := make([]Interval, len(units))
	for i := range units {
		out[i] = m.SectorsOf(units[i])
	}
	out[len(out)-1] = m.truncate(out[len(out)-1], sectors)
	return out, true
}

// truncate trims the tail of the final interval so that the intervals cover
// exactly `sectors` sectors when the AU size does not divide it.
func (m *Map) truncate(last Interval, sectors uint32) Interval {
	if extra := math.RoundUp(sectors, m.auSize) - sectors; extra > 0 {
		last.End -= extra
	}
	return last
}
