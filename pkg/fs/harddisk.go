package fs

import (
	"bytes"
	"fmt"

	"github.com/weberc2/tidisk/pkg/alloc"
	"github.com/weberc2/tidisk/pkg/encode"
	"github.com/weberc2/tidisk/pkg/math"
	. "github.com/weberc2/tidisk/pkg/types"
)

const (
	hdVIBSector    uint32 = 0
	hdBitmapStart  uint32 = 1
	hdBitmapSize   uint32 = 31
	hdBitmapEnd           = hdBitmapStart + hdBitmapSize
	hdBitmapRegion        = int(hdBitmapSize) * int(SectorSize)

	// HardDiskMaxAUs is the number of AUs the hard disk bitmap can
	// describe.
	HardDiskMaxAUs = uint32(hdBitmapRegion) * 8

	// MaxChain is the number of descriptor records one hard disk file may
	// chain.
	MaxChain = 8
)

type hardDisk struct {
	fs      *FileSystem
	vib     encode.HardDiskVIB
	au      uint32
	visited map[uint16]struct{}
}

func (l *hardDisk) kind() Kind           { return KindHardDisk }
func (l *hardDisk) auSize() uint32       { return l.au }
func (l *hardDisk) totalSectors() uint32 { return uint32(l.vib.TotalAUs) * l.au }
func (l *hardDisk) protected() bool      { return false }

func (l *hardDisk) reserved() []uint32 {
	var units []uint32
	for unit := hdVIBSector / l.au; unit <= (hdBitmapEnd-1)/l.au; unit++ {
		units = append(units, unit)
	}
	return units
}

func (l *hardDisk) descriptorHint() uint32 { return hdBitmapEnd / l.au }

func (l *hardDisk) dataHint() uint32 {
	if reserved := uint32(l.vib.ReservedAUs); reserved > l.descriptorHint() &&
		reserved < uint32(l.vib.TotalAUs) {
		return reserved
	}
	return l.descriptorHint()
}

func (l *hardDisk) load(vib *Sector) error {
	if err := encode.DecodeHardDiskVIB(&l.vib, &vib.Content); err != nil {
		return err
	}
	if l.vib.SectorsPerAU == 0 || l.vib.TotalAUs == 0 {
		return fmt.Errorf(
			"`%d` AUs of `%d` sectors: %w",
			l.vib.TotalAUs,
			l.vib.SectorsPerAU,
			CorruptErr,
		)
	}
	l.au = uint32(l.vib.SectorsPerAU)
	l.fs.Name = l.vib.Name

	region := make([]byte, 0, hdBitmapRegion)
	for number := hdBitmapStart; number < hdBitmapEnd; number++ {
		sector, err := l.fs.readSector(number)
		if err != nil {
			return fmt.Errorf("reading bitmap sector `%d`: %w", number, err)
		}
		region = append(region, sector.Content[:]...)
	}
	l.fs.Map = alloc.NewFlushable(
		alloc.Decode(region, uint32(l.vib.TotalAUs), l.au, alloc.MSBFirst),
		l,
	)

	root := l.fs.dirs[Root]
	root.Index = uint32(l.vib.FDIR) * l.au
	root.Created = l.vib.Created
	if l.vib.FDIR == 0 || root.Index >= l.totalSectors() {
		return fmt.Errorf("root file index `%d`: %w", l.vib.FDIR, CorruptErr)
	}
	entries, err := l.fs.readIndex(root)
	if err != nil {
		return err
	}
	if err := l.fs.scan(root, entries, l.decodeFile); err != nil {
		return err
	}
	l.visited = map[uint16]struct{}{}
	return l.loadChildren(root, l.vib.Children)
}

func (l *hardDisk) loadChildren(parent *Directory, children []uint16) error {
	for _, child := range children {
		ddr, err := l.readDDR(parent, child)
		if err != nil {
			l.fs.Skipped++
			l.fs.logger.Warn(
				"skipping subdirectory",
				"parent", l.fs.Path(parent.ID),
				"ddr", child,
				"err", err,
			)
			continue
		}
		d := Directory{
			Name:    ddr.Name,
			Parent:  parent.ID,
			Record:  uint32(child) * l.au,
			Index:   uint32(ddr.FDIR) * l.au,
			Created: ddr.Created,
		}
		entries, err := l.fs.readIndex(&d)
		if err != nil {
			l.fs.Skipped++
			l.fs.logger.Warn(
				"skipping subdirectory",
				"parent", l.fs.Path(parent.ID),
				"name", ddr.Name,
				"err", err,
			)
			continue
		}
		id := l.fs.addDirectory(&d)
		parent.Subdirs = append(parent.Subdirs, id)
		if err := l.fs.scan(&d, entries, l.decodeFile); err != nil {
			return err
		}
		if err := l.loadChildren(&d, ddr.Children); err != nil {
			return err
		}
	}
	return nil
}

func (l *hardDisk) readDDR(parent *Directory, unit uint16) (*encode.DDR, error) {
	if _, ok := l.visited[unit]; ok {
		return nil, fmt.Errorf("directory record `%d` visited twice: %w", unit, CorruptErr)
	}
	l.visited[unit] = struct{}{}
	if unit == 0 || uint32(unit) >= uint32(l.vib.TotalAUs) {
		return nil, fmt.Errorf("directory record `%d` outside the volume: %w", unit, CorruptErr)
	}
	sector, err := l.fs.readSector(uint32(unit) * l.au)
	if err != nil {
		return nil, fmt.Errorf("reading directory record `%d`: %w", unit, err)
	}
	var ddr encode.DDR
	if err := encode.DecodeDDR(&ddr, &sector.Content); err != nil {
		return nil, err
	}
	if err := encode.ValidateName(ddr.Name); err != nil {
		return nil, fmt.Errorf("%w: %w", CorruptErr, err)
	}
	if ddr.FDIR == 0 || uint32(ddr.FDIR) >= uint32(l.vib.TotalAUs) {
		return nil, fmt.Errorf("directory `%s`: file index `%d`: %w", ddr.Name, ddr.FDIR, CorruptErr)
	}
	if l.fs.nameTaken(parent, ddr.Name) {
		return nil, fmt.Errorf("subdirectory `%s`: %w", ddr.Name, AlreadyExistsErr)
	}
	return &ddr, nil
}

// decodeFile follows the descriptor chain that starts at AU `entry`.
func (l *hardDisk) decodeFile(entry uint16) (*File, error) {
	var f File
	number := uint32(entry) * l.au
	for link := 0; ; link++ {
		if link == MaxChain {
			return nil, fmt.Errorf(
				"file `%s`: more than `%d` descriptor records: %w",
				f.Name,
				MaxChain,
				CorruptErr,
			)
		}
		if number == 0 || number >= l.totalSectors() {
			return nil, fmt.Errorf(
				"descriptor `%d` outside the volume: %w",
				number,
				CorruptErr,
			)
		}
		sector, err := l.fs.readSector(number)
		if err != nil {
			return nil, fmt.Errorf("reading descriptor `%d`: %w", number, err)
		}
		var fdr encode.FDR
		if err := encode.DecodeFDR(&fdr, l.au, &sector.Content); err != nil {
			return nil, fmt.Errorf("descriptor `%d`: %w", number, err)
		}
		if link == 0 {
			f.FileHeader = fdr.FileHeader
		}
		f.Descriptors = append(f.Descriptors, number)
		f.Extents = append(f.Extents, fdr.Extents...)
		if fdr.NextAU == 0 {
			return &f, nil
		}
		number = uint32(fdr.NextAU)*l.au + uint32(fdr.NextOffset)
	}
}

// ensureDescriptors fills the sectors of the last descriptor AU before
// claiming another one.
func (l *hardDisk) ensureDescriptors(f *File, extents int) error {
	links := math.Max(1, math.DivRoundUp(extents, encode.PairCapacity))
	if links > MaxChain {
		return fmt.Errorf(
			"file `%s`: `%d` extents need `%d` descriptor records: %w",
			f.Name,
			extents,
			links,
			CapacityExceededErr,
		)
	}
	for len(f.Descriptors) < links {
		if n := len(f.Descriptors); n > 0 {
			if next := f.Descriptors[n-1] + 1; next%l.au != 0 {
				f.Descriptors = append(f.Descriptors, next)
				continue
			}
		}
		unit, err := l.fs.allocUnit()
		if err != nil {
			return err
		}
		f.Descriptors = append(f.Descriptors, unit*l.au)
	}
	return nil
}

func (l *hardDisk) writeFile(f *File) error {
	total := uint16(dataAUs(f.Extents, l.au))
	index := uint16(l.fs.dirs[f.Dir].Index / l.au)
	for i, number := range f.Descriptors {
		fdr := encode.FDR{
			FileHeader: f.FileHeader,
			TotalAUs:   total,
			FDIR:       index,
		}
		start := math.Min(i*encode.PairCapacity, len(f.Extents))
		end := math.Min(start+encode.PairCapacity, len(f.Extents))
		fdr.Extents = f.Extents[start:end]
		if i > 0 {
			prev := f.Descriptors[i-1]
			fdr.PrevAU, fdr.PrevOffset = uint16(prev/l.au), uint8(prev%l.au)
		}
		if i+1 < len(f.Descriptors) {
			next := f.Descriptors[i+1]
			fdr.NextAU, fdr.NextOffset = uint16(next/l.au), uint8(next%l.au)
		}
		var content [SectorSize]byte
		if err := encode.EncodeFDR(&fdr, l.au, &content); err != nil {
			return err
		}
		if err := l.fs.writeSector(number, &content); err != nil {
			return err
		}
	}
	return nil
}

func (l *hardDisk) children(d *Directory) []uint16 {
	children := make([]uint16, len(d.Subdirs))
	for i, id := range d.Subdirs {
		children[i] = uint16(l.fs.dirs[id].Record / l.au)
	}
	return children
}

func (l *hardDisk) writeDirectory(d *Directory) error {
	fdir := encode.FDIR{
		Entries: make([]uint16, len(d.Files)),
		Owner:   uint16(d.Record / l.au),
	}
	for i, f := range d.Files {
		fdir.Entries[i] = uint16(f.Descriptors[0] / l.au)
	}
	var content [SectorSize]byte
	if err := encode.EncodeFDIR(&fdir, &content); err != nil {
		return fmt.Errorf("writing directory `%s`: %w", l.fs.Path(d.ID), err)
	}
	if err := l.fs.writeSector(d.Index, &content); err != nil {
		return err
	}

	if d.ID == Root {
		l.vib.Name = l.fs.Name
		l.vib.Files = uint8(len(d.Files))
		l.vib.Subdirs = uint8(len(d.Subdirs))
		l.vib.Children = l.children(d)
		if err := encode.EncodeHardDiskVIB(&l.vib, &content); err != nil {
			return err
		}
		return l.fs.writeSector(hdVIBSector, &content)
	}

	ddr := encode.DDR{
		Name:            d.Name,
		TotalAUs:        l.vib.TotalAUs,
		SectorsPerTrack: l.vib.SectorsPerTrack,
		Created:         d.Created,
		Files:           uint8(len(d.Files)),
		Subdirs:         uint8(len(d.Subdirs)),
		FDIR:            uint16(d.Index / l.au),
		Parent:          uint16(l.fs.dirs[d.Parent].Record / l.au),
		Children:        l.children(d),
	}
	if err := encode.EncodeDDR(&ddr, &content); err != nil {
		return err
	}
	return l.fs.writeSector(d.Record, &content)
}

// PutMap writes the bitmap sectors whose content changed.
func (l *hardDisk) PutMap(m *alloc.Map) error {
	region := m.Bytes()
	for i := uint32(0); i < hdBitmapSize; i++ {
		var content [SectorSize]byte
		copy(content[:], region[Byte(i)*SectorSize:])
		number := hdBitmapStart + i
		if current, err := l.fs.readSector(number); err == nil &&
			bytes.Equal(current.Content[:], content[:]) {
			continue
		}
		if err := l.fs.writeSector(number, &content); err != nil {
			return fmt.Errorf("writing bitmap sector `%d`: %w", number, err)
		}
	}
	return nil
}

func (l *hardDisk) makeDirectory(parent, d *Directory) error {
	if len(parent.Subdirs) >= encode.ChildCapacity {
		return fmt.Errorf(
			"creating `%s`: `%d` subdirectories: %w",
			d.Name,
			len(parent.Subdirs),
			CapacityExceededErr,
		)
	}
	record, err := l.fs.allocUnit()
	if err != nil {
		return err
	}
	index, err := l.fs.allocUnit()
	if err != nil {
		return err
	}
	d.Record, d.Index = record*l.au, index*l.au
	return nil
}

func (l *hardDisk) directoryAUs(d *Directory) []uint32 {
	if d.ID == Root {
		return []uint32{d.Index / l.au}
	}
	return []uint32{d.Record / l.au, d.Index / l.au}
}
