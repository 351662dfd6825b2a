package fs

import (
	"fmt"
	"slices"

	"github.com/weberc2/tidisk/pkg/encode"
	. "github.com/weberc2/tidisk/pkg/types"
)

// MakeDirectory creates an empty subdirectory of `parent`.
func MakeDirectory(fs *FileSystem, parent DirID, name string) (DirID, error) {
	if err := fs.writable(); err != nil {
		return NoDir, err
	}
	p, err := fs.Directory(parent)
	if err != nil {
		return NoDir, err
	}
	if err := encode.ValidateName(name); err != nil {
		return NoDir, fmt.Errorf("creating directory: %w", err)
	}
	if fs.nameTaken(p, name) {
		return NoDir, fmt.Errorf("creating directory `%s`: %w", name, AlreadyExistsErr)
	}

	snapshot := fs.Map.Snapshot()
	d := Directory{Name: name, Parent: parent, Created: fs.timestamp()}
	if err := fs.layout.makeDirectory(p, &d); err != nil {
		fs.Map.Restore(snapshot)
		return NoDir, err
	}
	subdirs := p.Subdirs
	id := fs.addDirectory(&d)
	p.Subdirs = append(slices.Clone(subdirs), id)
	fs.sortDirectory(p)
	if err := fs.writeDirectories(&d, p); err != nil {
		p.Subdirs = subdirs
		fs.dirs = fs.dirs[:id]
		fs.Map.Restore(snapshot)
		return NoDir, fmt.Errorf("creating directory `%s`: %w", name, err)
	}
	return id, nil
}

func (fs *FileSystem) writeDirectories(dirs ...*Directory) error {
	for _, d := range dirs {
		if err := fs.layout.writeDirectory(d); err != nil {
			return err
		}
	}
	return nil
}

// RemoveDirectory deletes a subdirectory. A directory that is not empty is
// only removed when `recursive` is set, in which case its descendants go
// first.
func RemoveDirectory(fs *FileSystem, id DirID, recursive bool) error {
	if err := fs.writable(); err != nil {
		return err
	}
	if id == Root {
		return fmt.Errorf("removing the root directory: %w", UnsupportedErr)
	}
	d, err := fs.Directory(id)
	if err != nil {
		return err
	}
	if !recursive && (len(d.Files) > 0 || len(d.Subdirs) > 0) {
		return fmt.Errorf(
			"removing directory `%s`: `%d` files and `%d` subdirectories: %w",
			fs.Path(id),
			len(d.Files),
			len(d.Subdirs),
			DirectoryNotEmptyErr,
		)
	}
	subtree := fs.subtree(id)
	for _, sub := range subtree {
		for _, f := range fs.dirs[sub].Files {
			if f.Flags.Protected() {
				return fmt.Errorf(
					"removing directory `%s`: protected file `%s`: %w",
					fs.Path(id),
					f.Name,
					ReadOnlyErr,
				)
			}
		}
	}

	snapshot := fs.Map.Snapshot()
	descriptors := fs.descriptors()
	for _, sub := range subtree {
		dir := fs.dirs[sub]
		for _, f := range dir.Files {
			fs.releaseFile(f)
		}
		for _, unit := range fs.layout.directoryAUs(dir) {
			descriptors.Free(unit)
		}
	}

	parent := fs.dirs[d.Parent]
	subdirs := parent.Subdirs
	parent.Subdirs = slices.DeleteFunc(slices.Clone(subdirs), func(other DirID) bool {
		return other == id
	})
	if err := fs.layout.writeDirectory(parent); err != nil {
		parent.Subdirs = subdirs
		fs.Map.Restore(snapshot)
		return fmt.Errorf("removing directory `%s`: %w", fs.Path(id), err)
	}
	for _, sub := range subtree {
		fs.dirs[sub] = nil
	}
	return nil
}

// subtree lists `id` and its descendants, deepest first.
func (fs *FileSystem) subtree(id DirID) []DirID {
	var ids []DirID
	for _, sub := range fs.dirs[id].Subdirs {
		ids = append(ids, fs.subtree(sub)...)
	}
	return append(ids, id)
}

// Rename renames the file or subdirectory `name` of `dir`.
func Rename(fs *FileSystem, dir DirID, name, newName string) error {
	if err := fs.writable(); err != nil {
		return err
	}
	d, err := fs.Directory(dir)
	if err != nil {
		return err
	}
	if err := encode.ValidateName(newName); err != nil {
		return fmt.Errorf("renaming `%s`: %w", name, err)
	}
	if name == newName {
		return nil
	}
	if fs.nameTaken(d, newName) {
		return fmt.Errorf("renaming `%s` to `%s`: %w", name, newName, AlreadyExistsErr)
	}

	if f, _, ok := d.FindFile(name); ok {
		if f.Flags.Protected() {
			return fmt.Errorf("renaming protected file `%s`: %w", name, ReadOnlyErr)
		}
		f.Name = newName
		fs.sortDirectory(d)
		if err := fs.layout.writeFile(f); err == nil {
			err = fs.layout.writeDirectory(d)
		}
		if err != nil {
			f.Name = name
			fs.sortDirectory(d)
			return fmt.Errorf("renaming `%s` to `%s`: %w", name, newName, err)
		}
		return nil
	}

	sub, ok := fs.findSubdir(d, name)
	if !ok {
		return fmt.Errorf("renaming `%s`: %w", name, NotFoundErr)
	}
	sub.Name = newName
	fs.sortDirectory(d)
	if err := fs.writeDirectories(sub, d); err != nil {
		sub.Name = name
		fs.sortDirectory(d)
		return fmt.Errorf("renaming `%s` to `%s`: %w", name, newName, err)
	}
	return nil
}

// MoveFile moves the file `name` from `from` into `to`, keeping its
// descriptor and data in place.
func MoveFile(fs *FileSystem, from DirID, name string, to DirID) error {
	if err := fs.writable(); err != nil {
		return err
	}
	src, err := fs.Directory(from)
	if err != nil {
		return err
	}
	dst, err := fs.Directory(to)
	if err != nil {
		return err
	}
	f, _, ok := src.FindFile(name)
	if !ok {
		return fmt.Errorf("moving `%s`: %w", name, NotFoundErr)
	}
	if from == to {
		return nil
	}
	if fs.nameTaken(dst, name) {
		return fmt.Errorf(
			"moving `%s` to `%s`: %w",
			name,
			fs.Path(to),
			AlreadyExistsErr,
		)
	}
	if len(dst.Files) >= encode.FDIRCapacity {
		return fmt.Errorf(
			"moving `%s` to `%s`: %w",
			name,
			fs.Path(to),
			CapacityExceededErr,
		)
	}

	srcFiles, dstFiles := src.Files, dst.Files
	src.Files = slices.DeleteFunc(slices.Clone(srcFiles), func(other *File) bool {
		return other == f
	})
	dst.Files = append(slices.Clone(dstFiles), f)
	f.Dir = to
	fs.sortDirectory(dst)
	if err := fs.layout.writeFile(f); err == nil {
		err = fs.writeDirectories(src, dst)
	}
	if err != nil {
		src.Files, dst.Files = srcFiles, dstFiles
		f.Dir = from
		return fmt.Errorf("moving `%s` to `%s`: %w", name, fs.Path(to), err)
	}
	return nil
}

// SetName renames the volume.
func SetName(fs *FileSystem, name string) error {
	if err := fs.writable(); err != nil {
		return err
	}
	if err := encode.ValidateName(name); err != nil {
		return fmt.Errorf("renaming volume: %w", err)
	}
	previous := fs.Name
	fs.Name = name
	if err := fs.layout.writeDirectory(fs.Root()); err != nil {
		fs.Name = previous
		return fmt.Errorf("renaming volume: %w", err)
	}
	return nil
}
