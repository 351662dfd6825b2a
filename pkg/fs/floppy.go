package fs

import (
	"fmt"

	"github.com/weberc2/tidisk/pkg/alloc"
	"github.com/weberc2/tidisk/pkg/encode"
	"github.com/weberc2/tidisk/pkg/math"
	. "github.com/weberc2/tidisk/pkg/types"
)

const (
	floppyVIBSector        uint32 = 0
	floppyIndexSector      uint32 = 1
	floppyDescriptorSector uint32 = 2
	floppyDataSector       uint32 = 34

	// FloppyMaxAUs is the number of AUs the floppy bitmap can describe.
	FloppyMaxAUs uint32 = 1600

	// FloppyMaxSubdirs is the number of subdirectory slots in the VIB.
	FloppyMaxSubdirs = 3
)

// FloppyAUSize is the AU size a floppy of `total` sectors uses so that its
// AUs fit the bitmap.
func FloppyAUSize(total uint32) uint32 {
	return math.Max(1, math.DivRoundUp(total, FloppyMaxAUs))
}

type floppy struct {
	fs  *FileSystem
	vib encode.FloppyVIB
	au  uint32
}

func (l *floppy) kind() Kind           { return KindFloppy }
func (l *floppy) auSize() uint32       { return l.au }
func (l *floppy) totalSectors() uint32 { return uint32(l.vib.TotalSectors) }
func (l *floppy) protected() bool      { return l.vib.Protected }

func (l *floppy) reserved() []uint32 {
	vib, index := floppyVIBSector/l.au, floppyIndexSector/l.au
	if vib == index {
		return []uint32{vib}
	}
	return []uint32{vib, index}
}

func (l *floppy) descriptorHint() uint32 { return floppyDescriptorSector / l.au }
func (l *floppy) dataHint() uint32       { return floppyDataSector / l.au }

func (l *floppy) load(vib *Sector) error {
	if err := encode.DecodeFloppyVIB(&l.vib, &vib.Content); err != nil {
		return err
	}
	total := uint32(l.vib.TotalSectors)
	if total <= floppyIndexSector {
		return fmt.Errorf("`%d` total sectors: %w", total, CorruptErr)
	}
	l.au = FloppyAUSize(total)
	l.fs.Name = l.vib.Name
	l.fs.Map = alloc.NewFlushable(
		alloc.Decode(l.vib.Bitmap, total/l.au, l.au, alloc.LSBFirst),
		l,
	)

	root := l.fs.dirs[Root]
	root.Index = floppyIndexSector
	entries, err := l.fs.readIndex(root)
	if err != nil {
		return err
	}
	if err := l.fs.scan(root, entries, l.decodeFile); err != nil {
		return err
	}

	for _, slot := range l.vib.Subdirs {
		if slot.FDIR == 0 {
			continue
		}
		d := Directory{Name: slot.Name, Parent: Root, Index: uint32(slot.FDIR)}
		entries, err := l.subdirEntries(&d)
		if err != nil {
			l.fs.Skipped++
			l.fs.logger.Warn(
				"skipping subdirectory",
				"name", slot.Name,
				"fdir", slot.FDIR,
				"err", err,
			)
			continue
		}
		id := l.fs.addDirectory(&d)
		root.Subdirs = append(root.Subdirs, id)
		if err := l.fs.scan(&d, entries, l.decodeFile); err != nil {
			return err
		}
	}
	return nil
}

func (l *floppy) subdirEntries(d *Directory) ([]uint16, error) {
	if err := encode.ValidateName(d.Name); err != nil {
		return nil, fmt.Errorf("%w: %w", CorruptErr, err)
	}
	if d.Index >= l.totalSectors() {
		return nil, fmt.Errorf(
			"file index `%d` outside the volume: %w",
			d.Index,
			CorruptErr,
		)
	}
	if l.fs.nameTaken(l.fs.dirs[Root], d.Name) {
		return nil, fmt.Errorf("subdirectory `%s`: %w", d.Name, AlreadyExistsErr)
	}
	return l.fs.readIndex(d)
}

func (l *floppy) decodeFile(entry uint16) (*File, error) {
	number := uint32(entry)
	if number >= l.totalSectors() {
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
	var fib encode.FIB
	if err := encode.DecodeFIB(&fib, l.au, &sector.Content); err != nil {
		return nil, fmt.Errorf("descriptor `%d`: %w", number, err)
	}
	return &File{
		FileHeader:  fib.FileHeader,
		Extents:     fib.Extents,
		Descriptors: []uint32{number},
	}, nil
}

func (l *floppy) ensureDescriptors(f *File, extents int) error {
	if extents > encode.ChainCapacity {
		return fmt.Errorf(
			"file `%s`: `%d` extents exceed `%d`: %w",
			f.Name,
			extents,
			encode.ChainCapacity,
			CapacityExceededErr,
		)
	}
	if len(f.Descriptors) > 0 {
		return nil
	}
	unit, err := l.fs.allocUnit()
	if err != nil {
		return err
	}
	f.Descriptors = []uint32{unit * l.au}
	return nil
}

func (l *floppy) writeFile(f *File) error {
	var content [SectorSize]byte
	if err := encode.EncodeFIB(
		&encode.FIB{FileHeader: f.FileHeader, Extents: f.Extents},
		l.au,
		&content,
	); err != nil {
		return err
	}
	return l.fs.writeSector(f.Descriptors[0], &content)
}

func (l *floppy) writeDirectory(d *Directory) error {
	fdir := encode.FDIR{Entries: make([]uint16, len(d.Files))}
	for i, f := range d.Files {
		fdir.Entries[i] = uint16(f.Descriptors[0])
	}
	var content [SectorSize]byte
	if err := encode.EncodeFDIR(&fdir, &content); err != nil {
		return fmt.Errorf("writing directory `%s`: %w", l.fs.Path(d.ID), err)
	}
	if err := l.fs.writeSector(d.Index, &content); err != nil {
		return err
	}
	if d.ID == Root {
		return l.writeVIB(l.fs.Map.Map())
	}
	return nil
}

func (l *floppy) writeVIB(m *alloc.Map) error {
	l.vib.Subdirs = [FloppyMaxSubdirs]encode.SubdirSlot{}
	for i, id := range l.fs.dirs[Root].Subdirs {
		d := l.fs.dirs[id]
		l.vib.Subdirs[i] = encode.SubdirSlot{
			Name: d.Name,
			FDIR: uint16(d.Index),
		}
	}
	l.vib.Name = l.fs.Name
	l.vib.Bitmap = m.Bytes()
	var content [SectorSize]byte
	encode.EncodeFloppyVIB(&l.vib, &content)
	return l.fs.writeSector(floppyVIBSector, &content)
}

// PutMap writes the bitmap, which lives in the VIB.
func (l *floppy) PutMap(m *alloc.Map) error { return l.writeVIB(m) }

func (l *floppy) makeDirectory(parent, d *Directory) error {
	if parent.ID != Root {
		return fmt.Errorf(
			"creating `%s`: floppy subdirectories must be in the root: %w",
			d.Name,
			CapacityExceededErr,
		)
	}
	if len(parent.Subdirs) >= FloppyMaxSubdirs {
		return fmt.Errorf(
			"creating `%s`: `%d` subdirectories: %w",
			d.Name,
			len(parent.Subdirs),
			CapacityExceededErr,
		)
	}
	unit, err := l.fs.allocUnit()
	if err != nil {
		return err
	}
	d.Index = unit * l.au
	return nil
}

func (l *floppy) directoryAUs(d *Directory) []uint32 {
	if d.ID == Root {
		return nil
	}
	return []uint32{d.Index / l.au}
}
