package fs

import (
	"fmt"
	"sort"

	"github.com/weberc2/tidisk/pkg/alloc"
	"github.com/weberc2/tidisk/pkg/encode"
	. "github.com/weberc2/tidisk/pkg/types"
)

// layout is the format-specific half of a file system: where the volume
// records live, how descriptor blocks and file indexes are encoded and how
// their allocation units are claimed.
type layout interface {
	alloc.MapStore

	kind() Kind
	auSize() uint32
	totalSectors() uint32
	protected() bool

	// reserved returns the AUs held by the volume records themselves.
	reserved() []uint32
	descriptorHint() uint32
	dataHint() uint32

	load(vib *Sector) error

	// ensureDescriptors grows the descriptor chain of `f` until it can
	// describe `extents` extents.
	ensureDescriptors(f *File, extents int) error
	writeFile(f *File) error

	// writeDirectory writes the file index of `d` and the record that
	// lists its subdirectories.
	writeDirectory(d *Directory) error
	makeDirectory(parent, d *Directory) error
	directoryAUs(d *Directory) []uint32
}

func (fs *FileSystem) readIndex(d *Directory) ([]uint16, error) {
	sector, err := fs.readSector(d.Index)
	if err != nil {
		return nil, fmt.Errorf(
			"reading file index at sector `%d`: %w",
			d.Index,
			err,
		)
	}
	var fdir encode.FDIR
	encode.DecodeFDIR(&fdir, &sector.Content)
	return fdir.Entries, nil
}

// scan decodes every entry of a file index into `d`. Entries that fail to
// decode are skipped and counted; a record count that cannot fit the medium
// in either byte order aborts the whole scan.
func (fs *FileSystem) scan(
	d *Directory,
	entries []uint16,
	decode func(entry uint16) (*File, error),
) error {
	total := fs.layout.totalSectors()
	for _, entry := range entries {
		f, err := decode(entry)
		if err == nil {
			if f.RecordCountAbsurd(total) {
				return fmt.Errorf(
					"scanning file `%s`: record count `%d`: %w",
					f.Name,
					f.RecordCount,
					CorruptErr,
				)
			}
			err = fs.validateFile(d, f)
		}
		if err != nil {
			fs.Skipped++
			fs.logger.Warn(
				"skipping directory entry",
				"directory", fs.Path(d.ID),
				"entry", entry,
				"err", err,
			)
			continue
		}
		if !f.RecordCountConsistent() {
			fs.logger.Warn(
				"inconsistent record count",
				"directory", fs.Path(d.ID),
				"name", f.Name,
				"count", f.RecordCount,
				"swapped", f.SwapSuspected(),
			)
		}
		f.Dir = d.ID
		d.Files = append(d.Files, f)
	}
	return nil
}

func (fs *FileSystem) validateFile(d *Directory, f *File) error {
	total := fs.layout.totalSectors()
	for _, extent := range f.Extents {
		if extent.Start > extent.End || extent.End >= total {
			return fmt.Errorf(
				"file `%s`: extent `%s` outside `%d` sectors: %w",
				f.Name,
				extent,
				total,
				CorruptErr,
			)
		}
	}
	if IntervalsLen(f.Extents) < uint32(f.SectorsAllocated) {
		return fmt.Errorf(
			"file `%s`: `%d` sectors allocated but extents cover `%d`: %w",
			f.Name,
			f.SectorsAllocated,
			IntervalsLen(f.Extents),
			CorruptErr,
		)
	}
	if fs.nameTaken(d, f.Name) {
		return fmt.Errorf("file `%s`: %w", f.Name, AlreadyExistsErr)
	}
	f.Extents = TrimIntervals(f.Extents, uint32(f.SectorsAllocated))
	return nil
}

// descriptors allocates descriptor and directory AUs from the layout's
// descriptor area first.
func (fs *FileSystem) descriptors() alloc.Allocator {
	return alloc.HintAllocator{
		Flushable: fs.Map,
		Hint:      fs.layout.descriptorHint(),
	}
}

// allocUnit claims one AU for a descriptor or directory record.
func (fs *FileSystem) allocUnit() (uint32, error) {
	unit, ok := fs.descriptors().Alloc()
	if !ok {
		return 0, fmt.Errorf("allocating descriptor: %w", DescriptorFullErr)
	}
	return unit, nil
}

// descriptorAUs returns each AU of the descriptor chain of `f` once.
func (fs *FileSystem) descriptorAUs(f *File) []uint32 {
	m := fs.Map.Map()
	seen := map[uint32]struct{}{}
	var units []uint32
	for _, sector := range f.Descriptors {
		unit := m.AUOf(sector)
		if _, ok := seen[unit]; !ok {
			seen[unit] = struct{}{}
			units = append(units, unit)
		}
	}
	sort.Slice(units, func(i, j int) bool { return units[i] < units[j] })
	return units
}

func (fs *FileSystem) releaseFile(f *File) {
	m := fs.Map.Map()
	m.DeallocateIntervals(f.Extents)
	fs.Map.Touch()
	descriptors := fs.descriptors()
	for _, unit := range fs.descriptorAUs(f) {
		descriptors.Free(unit)
	}
}

// dataAUs counts the AUs covered by `extents`.
func dataAUs(extents []Interval, auSize uint32) uint32 {
	var units uint32
	for _, extent := range extents {
		units += extent.End/auSize - extent.Start/auSize + 1
	}
	return units
}
