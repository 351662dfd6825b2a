package fs

import (
	"fmt"

	"github.com/weberc2/tidisk/pkg/alloc"
)

// Report lists the disagreements between the allocation map and the AUs
// the directory tree actually uses.
type Report struct {
	// Unmarked AUs are in use but free in the map.
	Unmarked []uint32 `json:"unmarked"`

	// Unclaimed AUs are allocated in the map but used by nothing.
	Unclaimed []uint32 `json:"unclaimed"`

	// Shared AUs are claimed by more than one owner.
	Shared []uint32 `json:"shared"`

	Skipped int `json:"skipped"`
}

func (r *Report) Clean() bool {
	return len(r.Unmarked) == 0 && len(r.Unclaimed) == 0 &&
		len(r.Shared) == 0 && r.Skipped == 0
}

func (r *Report) String() string {
	return fmt.Sprintf(
		"%d unmarked, %d unclaimed, %d shared, %d skipped entries",
		len(r.Unmarked),
		len(r.Unclaimed),
		len(r.Shared),
		r.Skipped,
	)
}

// claims counts the owners of every AU the directory tree uses.
func (fs *FileSystem) claims() map[uint32]int {
	claims := map[uint32]int{}
	for _, unit := range fs.layout.reserved() {
		claims[unit]++
	}
	m := fs.Map.Map()
	for _, id := range fs.Directories() {
		d := fs.dirs[id]
		for _, unit := range fs.layout.directoryAUs(d) {
			claims[unit]++
		}
		for _, f := range d.Files {
			for _, unit := range fs.descriptorAUs(f) {
				claims[unit]++
			}
			for _, extent := range f.Extents {
				for unit := m.AUOf(extent.Start); unit <= m.AUOf(extent.End); unit++ {
					claims[unit]++
				}
			}
		}
	}
	return claims
}

// Check compares the allocation map with the directory tree.
func Check(fs *FileSystem) *Report {
	report := Report{Skipped: fs.Skipped}
	claims := fs.claims()
	m := fs.Map.Map()
	for unit := uint32(0); unit < m.Units(); unit++ {
		count, allocated := claims[unit], m.IsAllocated(unit)
		switch {
		case count > 1:
			report.Shared = append(report.Shared, unit)
		case count == 1 && !allocated:
			report.Unmarked = append(report.Unmarked, unit)
		case count == 0 && allocated:
			report.Unclaimed = append(report.Unclaimed, unit)
		}
	}
	return &report
}

// Repair rebuilds the allocation map from the directory tree. Shared AUs
// stay shared; they can only be resolved by deleting one of the owners.
func Repair(fs *FileSystem) error {
	if err := fs.writable(); err != nil {
		return err
	}
	current := fs.Map.Map()
	m := alloc.New(
		current.Units(),
		current.AUSize(),
		current.Order(),
		len(current.Bytes()),
	)
	for unit := range fs.claims() {
		if unit < m.Units() {
			m.Allocate(unit)
		}
	}
	fs.Map.Replace(m)
	fs.Map.Touch()
	fs.logger.Info(
		"rebuilt allocation map",
		"allocated", m.CountAllocated(),
		"free", m.CountFree(),
	)
	return nil
}

// FreeSectors is the number of sectors in free AUs.
func (fs *FileSystem) FreeSectors() uint32 {
	m := fs.Map.Map()
	return m.CountFree() * m.AUSize()
}
