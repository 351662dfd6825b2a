package types

import "fmt"

// Interval is an inclusive range of sector numbers.
type Interval struct {
	Start uint32 `json:"start"`
	End   uint32 `json:"end"`
}

func (i Interval) Len() uint32 { return i.End - i.Start + 1 }

func (i Interval) Contains(sector uint32) bool {
	return sector >= i.Start && sector <= i.End
}

func (i Interval) Overlaps(other Interval) bool {
	return i.Start <= other.End && other.Start <= i.End
}

func (i Interval) String() string {
	return fmt.Sprintf("[%d,%d]", i.Start, i.End)
}

// IntervalsLen returns the number of sectors covered by `intervals`.
func IntervalsLen(intervals []Interval) uint32 {
	var total uint32
	for _, i := range intervals {
		total += i.Len()
	}
	return total
}

// Resolve maps a file-relative sector index onto the absolute sector it is
// stored in.
func Resolve(intervals []Interval, logical uint32) (uint32, bool) {
	for _, i := range intervals {
		if logical < i.Len() {
			return i.Start + logical, true
		}
		logical -= i.Len()
	}
	return 0, false
}

// TrimIntervals shortens `intervals` so that they cover at most `sectors`
// sectors, dropping any interval that falls entirely beyond.
func TrimIntervals(intervals []Interval, sectors uint32) []Interval {
	var out []Interval
	for _, i := range intervals {
		if sectors == 0 {
			break
		}
		if i.Len() > sectors {
			i.End = i.Start + sectors - 1
		}
		out = append(out, i)
		sectors -= i.Len()
	}
	return out
}
