// Package fs implements the TI disk file systems: the floppy layout with a
// sector bitmap in the volume information block, and the hard disk layout
// with directory descriptor records and chained file descriptor records.
package fs

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/weberc2/tidisk/pkg/alloc"
	"github.com/weberc2/tidisk/pkg/encode"
	. "github.com/weberc2/tidisk/pkg/types"
)

// SectorStore is where the file system reads and writes its sectors. In a
// volume this is the generation cache.
type SectorStore interface {
	ReadSector(number uint32) (Sector, error)
	WriteSector(sector Sector) error
}

type Kind uint8

const (
	KindFloppy Kind = iota
	KindHardDisk
)

func (k Kind) String() string {
	if k == KindHardDisk {
		return "hard disk"
	}
	return "floppy"
}

// DirID indexes the directory arena of a FileSystem.
type DirID int

const (
	Root  DirID = 0
	NoDir DirID = -1
)

type Directory struct {
	ID      DirID
	Name    string
	Parent  DirID
	Files   []*File
	Subdirs []DirID

	// Record is the sector of the directory descriptor record on hard
	// disks; zero for the root and for floppy subdirectories.
	Record uint32

	// Index is the sector of the file index.
	Index   uint32
	Created time.Time
}

type File struct {
	encode.FileHeader
	Extents []Interval `json:"extents"`

	// Descriptors holds the sectors of the descriptor chain, first one
	// first.
	Descriptors []uint32 `json:"descriptors"`
	Dir         DirID    `json:"-"`
}

type Options struct {
	Logger   *slog.Logger
	ReadOnly bool

	// Now stamps created and updated times; defaults to time.Now.
	Now func() time.Time
}

type FileSystem struct {
	Store    SectorStore
	Map      *alloc.Flushable
	Name     string
	ReadOnly bool

	// Skipped counts directory entries dropped during the last scan
	// because they could not be decoded.
	Skipped int

	layout layout
	dirs   []*Directory
	logger *slog.Logger
	now    func() time.Time
}

// Open reads the volume information, the allocation map and the whole
// directory tree from `store`.
func Open(store SectorStore, options Options) (*FileSystem, error) {
	fs := FileSystem{
		Store:    store,
		ReadOnly: options.ReadOnly,
		logger:   options.Logger,
		now:      options.Now,
	}
	if fs.logger == nil {
		fs.logger = slog.Default()
	}
	if fs.now == nil {
		fs.now = time.Now
	}
	if err := fs.Reload(); err != nil {
		return nil, err
	}
	return &fs, nil
}

// Reload discards the in-memory state and scans the volume again, e.g.
// after the visible generation changed.
func (fs *FileSystem) Reload() error {
	vib, err := fs.Store.ReadSector(0)
	if err != nil {
		return fmt.Errorf("opening file system: reading volume information: %w", err)
	}
	if encode.IsFloppyVIB(&vib.Content) {
		fs.layout = &floppy{fs: fs}
	} else {
		fs.layout = &hardDisk{fs: fs}
	}
	fs.dirs = []*Directory{{ID: Root, Parent: NoDir}}
	fs.Skipped = 0
	if err := fs.layout.load(&vib); err != nil {
		return fmt.Errorf("opening %s file system: %w", fs.layout.kind(), err)
	}
	fs.sortAll()
	return nil
}

func (fs *FileSystem) Kind() Kind { return fs.layout.kind() }

func (fs *FileSystem) AUSize() uint32 { return fs.layout.auSize() }

func (fs *FileSystem) TotalSectors() uint32 { return fs.layout.totalSectors() }

// Protected reports the volume-level write protection flag.
func (fs *FileSystem) Protected() bool { return fs.layout.protected() }

func (fs *FileSystem) Root() *Directory { return fs.dirs[Root] }

func (fs *FileSystem) Directory(id DirID) (*Directory, error) {
	if id < 0 || int(id) >= len(fs.dirs) || fs.dirs[id] == nil {
		return nil, fmt.Errorf("directory `%d`: %w", id, NotFoundErr)
	}
	return fs.dirs[id], nil
}

// Path returns the dotted path of a directory, empty for the root.
func (fs *FileSystem) Path(id DirID) string {
	var parts []string
	for id != Root && id != NoDir {
		dir := fs.dirs[id]
		parts = append([]string{dir.Name}, parts...)
		id = dir.Parent
	}
	return strings.Join(parts, string(encode.Separator))
}

// Flush writes the allocation map if it changed.
func (fs *FileSystem) Flush() error {
	if err := fs.Map.Flush(); err != nil {
		return fmt.Errorf("flushing allocation map: %w", err)
	}
	return nil
}

func (fs *FileSystem) writable() error {
	if fs.ReadOnly || fs.layout.protected() {
		return fmt.Errorf("volume `%s`: %w", fs.Name, ReadOnlyErr)
	}
	return nil
}

func (fs *FileSystem) readSector(number uint32) (*Sector, error) {
	sector, err := fs.Store.ReadSector(number)
	if err != nil {
		return nil, err
	}
	return &sector, nil
}

func (fs *FileSystem) writeSector(number uint32, content *[SectorSize]byte) error {
	return fs.Store.WriteSector(Sector{Number: number, Content: *content})
}

func (fs *FileSystem) timestamp() time.Time {
	return encode.Truncate(fs.now())
}

// FindFile returns the file called `name` in `dir`.
func (d *Directory) FindFile(name string) (*File, int, bool) {
	for i, f := range d.Files {
		if f.Name == name {
			return f, i, true
		}
	}
	return nil, 0, false
}

func (fs *FileSystem) findSubdir(d *Directory, name string) (*Directory, bool) {
	for _, id := range d.Subdirs {
		if fs.dirs[id].Name == name {
			return fs.dirs[id], true
		}
	}
	return nil, false
}

// FindSubdir returns the subdirectory called `name` in `dir`.
func (fs *FileSystem) FindSubdir(dir DirID, name string) (*Directory, bool) {
	d, err := fs.Directory(dir)
	if err != nil {
		return nil, false
	}
	return fs.findSubdir(d, name)
}

func (fs *FileSystem) nameTaken(d *Directory, name string) bool {
	_, _, isFile := d.FindFile(name)
	_, isDir := fs.findSubdir(d, name)
	return isFile || isDir
}

func (fs *FileSystem) sortDirectory(d *Directory) {
	sort.Slice(d.Files, func(i, j int) bool {
		return d.Files[i].Name < d.Files[j].Name
	})
	sort.Slice(d.Subdirs, func(i, j int) bool {
		return fs.dirs[d.Subdirs[i]].Name < fs.dirs[d.Subdirs[j]].Name
	})
}

func (fs *FileSystem) sortAll() {
	for _, d := range fs.dirs {
		if d != nil {
			fs.sortDirectory(d)
		}
	}
}

func (fs *FileSystem) addDirectory(d *Directory) DirID {
	d.ID = DirID(len(fs.dirs))
	fs.dirs = append(fs.dirs, d)
	return d.ID
}

// Walk resolves a dotted path to a directory and, when the last component
// names a file, to that file. The empty path is the root directory.
func Walk(fs *FileSystem, path string) (DirID, *File, error) {
	dir := Root
	if path == "" {
		return dir, nil, nil
	}
	parts := strings.Split(path, string(encode.Separator))
	for i, part := range parts {
		d := fs.dirs[dir]
		if sub, ok := fs.findSubdir(d, part); ok {
			dir = sub.ID
			continue
		}
		if f, _, ok := d.FindFile(part); ok && i == len(parts)-1 {
			return dir, f, nil
		}
		return NoDir, nil, fmt.Errorf("resolving path `%s`: `%s`: %w", path, part, NotFoundErr)
	}
	return dir, nil, nil
}

// Directories returns the IDs of all live directories, root first.
func (fs *FileSystem) Directories() []DirID {
	var ids []DirID
	var visit func(id DirID)
	visit = func(id DirID) {
		ids = append(ids, id)
		for _, sub := range fs.dirs[id].Subdirs {
			visit(sub)
		}
	}
	visit(Root)
	return ids
}
