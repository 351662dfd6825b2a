package fs

import (
	"fmt"
	"slices"

	"github.com/weberc2/tidisk/pkg/encode"
	"github.com/weberc2/tidisk/pkg/math"
	. "github.com/weberc2/tidisk/pkg/types"
)

// NewFile describes a file to insert. Content is zero-padded to whole
// sectors and determines the allocated sector count.
type NewFile struct {
	encode.FileHeader
	Content []byte
}

const maxFileSectors = 0xFFFF

// InsertFile writes a new file into `dir`. With `overwrite` an existing
// file of the same name is deleted first. On failure the allocation map is
// left exactly as it was.
func InsertFile(
	fs *FileSystem,
	dir DirID,
	file *NewFile,
	overwrite bool,
) (*File, error) {
	if err := fs.writable(); err != nil {
		return nil, err
	}
	d, err := fs.Directory(dir)
	if err != nil {
		return nil, err
	}
	if err := encode.ValidateName(file.Name); err != nil {
		return nil, fmt.Errorf("inserting file: %w", err)
	}
	if _, ok := fs.findSubdir(d, file.Name); ok {
		return nil, fmt.Errorf(
			"inserting file `%s`: subdirectory exists: %w",
			file.Name,
			AlreadyExistsErr,
		)
	}
	old, _, exists := d.FindFile(file.Name)
	switch {
	case exists && !overwrite:
		return nil, fmt.Errorf("inserting file `%s`: %w", file.Name, AlreadyExistsErr)
	case exists && old.Flags.Protected():
		return nil, fmt.Errorf(
			"overwriting protected file `%s`: %w",
			file.Name,
			ReadOnlyErr,
		)
	case !exists && len(d.Files) >= encode.FDIRCapacity:
		return nil, fmt.Errorf(
			"inserting file `%s`: directory holds `%d` files: %w",
			file.Name,
			len(d.Files),
			CapacityExceededErr,
		)
	}
	sectors := math.DivRoundUp(len(file.Content), int(SectorSize))
	if sectors > maxFileSectors {
		return nil, fmt.Errorf(
			"inserting file `%s`: `%d` sectors: %w",
			file.Name,
			sectors,
			CapacityExceededErr,
		)
	}

	snapshot := fs.Map.Snapshot()
	f, err := fs.insert(d, file, old, uint32(sectors))
	if err != nil {
		fs.Map.Restore(snapshot)
		return nil, fmt.Errorf("inserting file `%s`: %w", file.Name, err)
	}
	fs.logger.Debug(
		"inserted file",
		"directory", fs.Path(d.ID),
		"name", f.Name,
		"sectors", f.SectorsAllocated,
		"extents", len(f.Extents),
	)
	return f, nil
}

func (fs *FileSystem) insert(
	d *Directory,
	file *NewFile,
	old *File,
	sectors uint32,
) (*File, error) {
	if old != nil {
		fs.releaseFile(old)
	}
	f := File{FileHeader: file.FileHeader, Dir: d.ID}
	f.SectorsAllocated = uint16(sectors)
	now := fs.timestamp()
	if f.Created.IsZero() {
		f.Created = now
	}
	if f.Updated.IsZero() {
		f.Updated = now
	}

	if err := fs.layout.ensureDescriptors(&f, 0); err != nil {
		return nil, err
	}
	m := fs.Map.Map()
	extents, ok := m.FindFreeSpace(sectors, fs.layout.dataHint())
	if !ok {
		return nil, fmt.Errorf(
			"allocating `%d` sectors with `%d` free: %w",
			sectors,
			m.CountFree()*m.AUSize(),
			DataFullErr,
		)
	}
	if err := fs.layout.ensureDescriptors(&f, len(extents)); err != nil {
		return nil, err
	}
	m.AllocateIntervals(extents)
	fs.Map.Touch()
	f.Extents = extents

	for i := uint32(0); i < sectors; i++ {
		var content [SectorSize]byte
		copy(content[:], file.Content[Byte(i)*SectorSize:])
		number, _ := Resolve(f.Extents, i)
		if err := fs.writeSector(number, &content); err != nil {
			return nil, fmt.Errorf("writing sector `%d`: %w", i, err)
		}
	}
	if err := fs.layout.writeFile(&f); err != nil {
		return nil, fmt.Errorf("writing descriptor: %w", err)
	}

	files := d.Files
	d.Files = slices.DeleteFunc(slices.Clone(files), func(other *File) bool {
		return other == old
	})
	d.Files = append(d.Files, &f)
	fs.sortDirectory(d)
	if err := fs.layout.writeDirectory(d); err != nil {
		d.Files = files
		return nil, err
	}
	return &f, nil
}

// DeleteFile removes `name` from `dir` and frees its data and descriptor
// AUs.
func DeleteFile(fs *FileSystem, dir DirID, name string) error {
	if err := fs.writable(); err != nil {
		return err
	}
	d, err := fs.Directory(dir)
	if err != nil {
		return err
	}
	f, i, ok := d.FindFile(name)
	if !ok {
		return fmt.Errorf("deleting file `%s`: %w", name, NotFoundErr)
	}
	if f.Flags.Protected() {
		return fmt.Errorf("deleting protected file `%s`: %w", name, ReadOnlyErr)
	}

	snapshot := fs.Map.Snapshot()
	fs.releaseFile(f)
	files := d.Files
	d.Files = slices.Delete(slices.Clone(files), i, i+1)
	if err := fs.layout.writeDirectory(d); err != nil {
		d.Files = files
		fs.Map.Restore(snapshot)
		return fmt.Errorf("deleting file `%s`: %w", name, err)
	}
	return nil
}

// FixRecordCount rewrites a record count stored in the wrong byte order.
func FixRecordCount(fs *FileSystem, f *File) error {
	if err := fs.writable(); err != nil {
		return err
	}
	if !f.SwapSuspected() {
		return fmt.Errorf(
			"fixing record count of `%s`: `%d` is not byte-swapped: %w",
			f.Name,
			f.RecordCount,
			UnsupportedErr,
		)
	}
	count := f.RecordCount
	f.RecordCount = f.SwappedRecordCount()
	if err := fs.layout.writeFile(f); err != nil {
		f.RecordCount = count
		return fmt.Errorf("fixing record count of `%s`: %w", f.Name, err)
	}
	return nil
}

// SetFlags replaces the flags of `f`, e.g. to toggle write protection.
func SetFlags(fs *FileSystem, f *File, flags FileFlags) error {
	if err := fs.writable(); err != nil {
		return err
	}
	previous := f.Flags
	f.Flags = flags
	if err := fs.layout.writeFile(f); err != nil {
		f.Flags = previous
		return fmt.Errorf("setting flags of `%s`: %w", f.Name, err)
	}
	return nil
}
