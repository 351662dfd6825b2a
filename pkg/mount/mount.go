// Package mount serves a volume as a read-only FUSE file system.
// Directories map to directories and each file reads as its content.
package mount

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/weberc2/tidisk/pkg/encode"
	"github.com/weberc2/tidisk/pkg/volume"
)

type Options struct {
	Debug  bool
	Logger *slog.Logger
}

// Root is the mount's top-level directory.
type Root struct {
	fs.Inode

	volume *volume.Volume
	logger *slog.Logger

	// volume access is not concurrent; FUSE requests are
	lock sync.Mutex
}

var _ = (fs.NodeOnAdder)((*Root)(nil))
var _ = (fs.NodeGetattrer)((*Root)(nil))

func NewRoot(v *volume.Volume, logger *slog.Logger) *Root {
	if logger == nil {
		logger = slog.Default()
	}
	return &Root{volume: v, logger: logger}
}

// Mount serves `v` at `mountPoint` until the returned server is unmounted.
func Mount(v *volume.Volume, mountPoint string, options Options) (*fuse.Server, error) {
	root := NewRoot(v, options.Logger)
	server, err := fs.Mount(mountPoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			Debug:   options.Debug,
			FsName:  v.FS.Name,
			Name:    "tidisk",
			Options: []string{"ro"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting volume `%s` at `%s`: %w", v.FS.Name, mountPoint, err)
	}
	root.logger.Info("mounted volume", "name", v.FS.Name, "mountPoint", mountPoint)
	return server, nil
}

func (r *Root) OnAdd(ctx context.Context) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.populate(ctx, &r.Inode, "")
}

func (r *Root) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFDIR | 0o555
	return 0
}

func join(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + string(encode.Separator) + name
}

func (r *Root) populate(ctx context.Context, parent *fs.Inode, dirPath string) {
	entries, err := r.volume.List(dirPath)
	if err != nil {
		r.logger.Error("listing directory for mount", "path", dirPath, "err", err)
		return
	}
	for _, entry := range entries {
		path := join(dirPath, entry.Name)
		if entry.Directory {
			child := parent.NewPersistentInode(
				ctx,
				&dirNode{modified: entry.Created},
				fs.StableAttr{Mode: fuse.S_IFDIR},
			)
			parent.AddChild(entry.Name, child, true)
			r.populate(ctx, child, path)
			continue
		}
		f, err := r.volume.Stat(path)
		if err != nil {
			r.logger.Error("reading file for mount", "path", path, "err", err)
			continue
		}
		child := parent.NewPersistentInode(
			ctx,
			&fileNode{
				root:      r,
				path:      path,
				size:      uint64(f.Length()),
				modified:  entry.Updated,
				protected: entry.Protected,
			},
			fs.StableAttr{Mode: fuse.S_IFREG},
		)
		parent.AddChild(entry.Name, child, true)
	}
}

type dirNode struct {
	fs.Inode
	modified time.Time
}

var _ = (fs.NodeGetattrer)((*dirNode)(nil))

func (d *dirNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFDIR | 0o555
	setTimes(&out.Attr, d.modified)
	return 0
}

type fileNode struct {
	fs.Inode

	root      *Root
	path      string
	size      uint64
	modified  time.Time
	protected bool
}

var _ = (fs.NodeReader)((*fileNode)(nil))
var _ = (fs.NodeOpener)((*fileNode)(nil))
var _ = (fs.NodeGetattrer)((*fileNode)(nil))

func (f *fileNode) Open(ctx context.Context, openFlags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if openFlags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return nil, 0, syscall.EROFS
	}
	return nil, fuse.FOPEN_KEEP_CACHE, 0
}

func (f *fileNode) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFREG | 0o444
	if f.protected {
		out.Mode = fuse.S_IFREG | 0o400
	}
	out.Size = f.size
	setTimes(&out.Attr, f.modified)
	return 0
}

func (f *fileNode) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	f.root.lock.Lock()
	content, err := f.root.volume.ReadFile(f.path)
	f.root.lock.Unlock()
	if err != nil {
		f.root.logger.Error("reading mounted file", "path", f.path, "err", err)
		return nil, syscall.EIO
	}
	return fuse.ReadResultData(window(content, off, len(dest))), 0
}

// window returns at most `n` bytes of `content` from `off`.
func window(content []byte, off int64, n int) []byte {
	if off >= int64(len(content)) {
		return nil
	}
	end := off + int64(n)
	if end > int64(len(content)) {
		end = int64(len(content))
	}
	return content[off:end]
}

func setTimes(attr *fuse.Attr, t time.Time) {
	if t.IsZero() {
		return
	}
	attr.SetTimes(nil, &t, &t)
}
