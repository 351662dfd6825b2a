package volume

import (
	"fmt"
	"strings"
	"time"

	"github.com/weberc2/tidisk/pkg/archive"
	"github.com/weberc2/tidisk/pkg/encode"
	"github.com/weberc2/tidisk/pkg/fs"
	"github.com/weberc2/tidisk/pkg/tifiles"
	. "github.com/weberc2/tidisk/pkg/types"
)

type Info struct {
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Format       string `json:"format"`
	TotalSectors uint32 `json:"totalSectors"`
	AUSize       uint32 `json:"auSize"`
	FreeSectors  uint32 `json:"freeSectors"`
	Protected    bool   `json:"protected"`
	Skipped      int    `json:"skipped"`
	Unsaved      bool   `json:"unsaved"`
}

func (v *Volume) Info() Info {
	return Info{
		Name:         v.FS.Name,
		Kind:         v.FS.Kind().String(),
		Format:       v.Image.Format().Name(),
		TotalSectors: v.FS.TotalSectors(),
		AUSize:       v.FS.AUSize(),
		FreeSectors:  v.FS.FreeSectors(),
		Protected:    v.FS.Protected(),
		Skipped:      v.FS.Skipped,
		Unsaved:      v.Unsaved(),
	}
}

// Entry is one line of a directory listing.
type Entry struct {
	Name          string    `json:"name"`
	Directory     bool      `json:"directory"`
	Type          string    `json:"type,omitempty"`
	Sectors       uint16    `json:"sectors,omitempty"`
	Protected     bool      `json:"protected,omitempty"`
	Created       time.Time `json:"created,omitempty"`
	Updated       time.Time `json:"updated,omitempty"`
	SwapSuspected bool      `json:"swapSuspected,omitempty"`
	// BadCount marks a record count that does not fit the file's record
	// geometry in either byte order.
	BadCount bool `json:"badCount,omitempty"`
}

func fileEntry(f *fs.File) Entry {
	return Entry{
		Name:          f.Name,
		Type:          f.Flags.TypeString(f.RecordLength),
		Sectors:       f.SectorsAllocated,
		Protected:     f.Flags.Protected(),
		Created:       f.Created,
		Updated:       f.Updated,
		SwapSuspected: f.SwapSuspected(),
		BadCount:      !f.RecordCountConsistent() && !f.SwapSuspected(),
	}
}

// splitPath separates the directory part of a dotted path from its last
// component.
func splitPath(path string) (string, string) {
	if i := strings.LastIndexByte(path, encode.Separator); i >= 0 {
		return path[:i], path[i+1:]
	}
	return "", path
}

func (v *Volume) dir(path string) (fs.DirID, error) {
	id, f, err := fs.Walk(v.FS, path)
	if err != nil {
		return fs.NoDir, err
	}
	if f != nil {
		return fs.NoDir, fmt.Errorf("`%s` is a file: %w", path, NotFoundErr)
	}
	return id, nil
}

// Stat returns the file at `path`.
func (v *Volume) Stat(path string) (*fs.File, error) {
	_, f, err := fs.Walk(v.FS, path)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("`%s` is a directory: %w", path, NotFoundErr)
	}
	return f, nil
}

// List returns the subdirectories and then the files of the directory at
// `path`.
func (v *Volume) List(path string) ([]Entry, error) {
	id, err := v.dir(path)
	if err != nil {
		return nil, fmt.Errorf("listing `%s`: %w", path, err)
	}
	d, err := v.FS.Directory(id)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(d.Subdirs)+len(d.Files))
	for _, sub := range d.Subdirs {
		s, err := v.FS.Directory(sub)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{
			Name:      s.Name,
			Directory: true,
			Created:   s.Created,
		})
	}
	for _, f := range d.Files {
		entries = append(entries, fileEntry(f))
	}
	return entries, nil
}

// ReadFile returns the content of the file at `path`, cut to the EOF offset
// for programs.
func (v *Volume) ReadFile(path string) ([]byte, error) {
	f, err := v.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading `%s`: %w", path, err)
	}
	if f.Flags.Program() {
		return fs.ReadProgram(v.FS, f)
	}
	return fs.ReadContent(v.FS, f)
}

func (v *Volume) ReadRecords(path string) ([][]byte, error) {
	f, err := v.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading records of `%s`: %w", path, err)
	}
	return fs.ReadRecords(v.FS, f)
}

// WriteFile stores `file` at `path`; the last path component names the
// file.
func (v *Volume) WriteFile(path string, file *fs.NewFile, overwrite bool) error {
	parent, name := splitPath(path)
	dir, err := v.dir(parent)
	if err != nil {
		return fmt.Errorf("writing `%s`: %w", path, err)
	}
	file.Name = name
	return v.mutate(func() error {
		_, err := fs.InsertFile(v.FS, dir, file, overwrite)
		return err
	})
}

func (v *Volume) Delete(path string) error {
	parent, name := splitPath(path)
	dir, err := v.dir(parent)
	if err != nil {
		return fmt.Errorf("deleting `%s`: %w", path, err)
	}
	return v.mutate(func() error { return fs.DeleteFile(v.FS, dir, name) })
}

func (v *Volume) MakeDirectory(path string) error {
	parent, name := splitPath(path)
	dir, err := v.dir(parent)
	if err != nil {
		return fmt.Errorf("creating directory `%s`: %w", path, err)
	}
	return v.mutate(func() error {
		_, err := fs.MakeDirectory(v.FS, dir, name)
		return err
	})
}

func (v *Volume) RemoveDirectory(path string, recursive bool) error {
	dir, err := v.dir(path)
	if err != nil {
		return fmt.Errorf("removing directory `%s`: %w", path, err)
	}
	return v.mutate(func() error { return fs.RemoveDirectory(v.FS, dir, recursive) })
}

// Rename gives the file or directory at `path` the name `newName`.
func (v *Volume) Rename(path, newName string) error {
	parent, name := splitPath(path)
	dir, err := v.dir(parent)
	if err != nil {
		return fmt.Errorf("renaming `%s`: %w", path, err)
	}
	return v.mutate(func() error { return fs.Rename(v.FS, dir, name, newName) })
}

// Move moves the file at `path` into the directory at `dirPath`.
func (v *Volume) Move(path, dirPath string) error {
	parent, name := splitPath(path)
	from, err := v.dir(parent)
	if err != nil {
		return fmt.Errorf("moving `%s`: %w", path, err)
	}
	to, err := v.dir(dirPath)
	if err != nil {
		return fmt.Errorf("moving `%s`: %w", path, err)
	}
	return v.mutate(func() error { return fs.MoveFile(v.FS, from, name, to) })
}

func (v *Volume) SetName(name string) error {
	return v.mutate(func() error { return fs.SetName(v.FS, name) })
}

func (v *Volume) SetProtected(path string, protected bool) error {
	f, err := v.Stat(path)
	if err != nil {
		return fmt.Errorf("protecting `%s`: %w", path, err)
	}
	flags := f.Flags &^ FlagProtected
	if protected {
		flags |= FlagProtected
	}
	return v.mutate(func() error { return fs.SetFlags(v.FS, f, flags) })
}

// FixRecordCount swaps the bytes of a suspect record count. The fix is
// folded into the last commit rather than becoming an undo step of its own.
func (v *Volume) FixRecordCount(path string) error {
	f, err := v.Stat(path)
	if err != nil {
		return fmt.Errorf("fixing record count of `%s`: %w", path, err)
	}
	return v.amend(func() error { return fs.FixRecordCount(v.FS, f) })
}

func (v *Volume) Check() *fs.Report { return fs.Check(v.FS) }

// Repair rebuilds the allocation map from the directory tree.
func (v *Volume) Repair() error {
	return v.mutate(func() error { return fs.Repair(v.FS) })
}

// ImportTIFiles stores TIFILES `data` in the directory at `dirPath`. The
// name in the header wins over `name` unless the header has none.
func (v *Volume) ImportTIFiles(
	dirPath string,
	name string,
	data []byte,
	overwrite bool,
) (string, error) {
	header, content, err := tifiles.Decode(data)
	if err != nil {
		return "", fmt.Errorf("importing `%s`: %w", name, err)
	}
	if header.Name != "" {
		name = header.Name
	}
	path := name
	if dirPath != "" {
		path = dirPath + string(encode.Separator) + name
	}
	if err := v.WriteFile(
		path,
		&fs.NewFile{FileHeader: *header, Content: content},
		overwrite,
	); err != nil {
		return "", err
	}
	return name, nil
}

func (v *Volume) ExportTIFiles(path string) ([]byte, error) {
	f, err := v.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("exporting `%s`: %w", path, err)
	}
	content, err := fs.ReadContent(v.FS, f)
	if err != nil {
		return nil, fmt.Errorf("exporting `%s`: %w", path, err)
	}
	return tifiles.Encode(&f.FileHeader, content), nil
}

// Archive decodes the archive file at `path`.
func (v *Volume) Archive(path string) (*archive.Archive, error) {
	f, err := v.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive `%s`: %w", path, err)
	}
	return archive.Load(v.FS, f, v.compressor)
}

// updateArchive loads, changes and rewrites the archive at `path` in one
// commit.
func (v *Volume) updateArchive(path string, change func(*archive.Archive) error) error {
	parent, name := splitPath(path)
	dir, err := v.dir(parent)
	if err != nil {
		return fmt.Errorf("updating archive `%s`: %w", path, err)
	}
	a, err := v.Archive(path)
	if err != nil {
		return err
	}
	if err := change(a); err != nil {
		return fmt.Errorf("updating archive `%s`: %w", path, err)
	}
	return v.mutate(func() error {
		_, err := archive.Store(v.FS, dir, name, a, v.compressor)
		return err
	})
}

// ArchiveAdd copies the file at `source` into the archive at `path`.
func (v *Volume) ArchiveAdd(path, source string, overwrite bool) error {
	f, err := v.Stat(source)
	if err != nil {
		return fmt.Errorf("adding `%s` to archive: %w", source, err)
	}
	content, err := fs.ReadContent(v.FS, f)
	if err != nil {
		return fmt.Errorf("adding `%s` to archive: %w", source, err)
	}
	member := archive.MemberOf(&f.FileHeader, content)
	return v.updateArchive(path, func(a *archive.Archive) error {
		return a.Add(member, overwrite)
	})
}

func (v *Volume) ArchiveRemove(path, member string) error {
	return v.updateArchive(path, func(a *archive.Archive) error {
		return a.Remove(member)
	})
}

// ArchiveExtract writes member `name` of the archive at `path` into the
// directory at `dirPath`.
func (v *Volume) ArchiveExtract(path, name, dirPath string, overwrite bool) error {
	a, err := v.Archive(path)
	if err != nil {
		return err
	}
	member, _, ok := a.Find(name)
	if !ok {
		return fmt.Errorf("extracting `%s` from `%s`: %w", name, path, NotFoundErr)
	}
	dir, err := v.dir(dirPath)
	if err != nil {
		return fmt.Errorf("extracting `%s` from `%s`: %w", name, path, err)
	}
	return v.mutate(func() error {
		_, err := archive.Extract(v.FS, dir, member, overwrite)
		return err
	})
}

// NewArchive creates an empty archive file at `path`.
func (v *Volume) NewArchive(path string, compressed bool) error {
	parent, name := splitPath(path)
	dir, err := v.dir(parent)
	if err != nil {
		return fmt.Errorf("creating archive `%s`: %w", path, err)
	}
	if _, _, err := fs.Walk(v.FS, path); err == nil {
		return fmt.Errorf("creating archive `%s`: %w", path, AlreadyExistsErr)
	}
	return v.mutate(func() error {
		_, err := archive.Store(
			v.FS,
			dir,
			name,
			&archive.Archive{Compressed: compressed},
			v.compressor,
		)
		return err
	})
}
