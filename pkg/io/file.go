package io

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
	. "github.com/weberc2/tidisk/pkg/types"
)

// FileVolume is a Volume backed by a file on an afero file system.
type FileVolume struct {
	File afero.File
}

// OpenFile opens `path` on `fs`. The file is opened read-only when
// `readOnly` is set; writes then fail with ReadOnlyErr.
func OpenFile(fs afero.Fs, path string, readOnly bool) (*FileVolume, error) {
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := fs.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("opening volume file `%s`: %w", path, err)
	}
	return &FileVolume{File: f}, nil
}

// CreateFile creates (or truncates) `path` on `fs`.
func CreateFile(fs afero.Fs, path string) (*FileVolume, error) {
	f, err := fs.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating volume file `%s`: %w", path, err)
	}
	return &FileVolume{File: f}, nil
}

func (fv *FileVolume) Size() (Byte, error) {
	info, err := fv.File.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat volume file `%s`: %w", fv.File.Name(), err)
	}
	return Byte(info.Size()), nil
}

func (fv *FileVolume) ReadAt(offset Byte, b []byte) error {
	if _, err := fv.File.ReadAt(b, int64(offset)); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf(
			"reading `%d` bytes from `%s` at offset `%d`: %w",
			len(b),
			fv.File.Name(),
			offset,
			err,
		)
	}
	return nil
}

func (fv *FileVolume) WriteAt(offset Byte, b []byte) error {
	if _, err := fv.File.WriteAt(b, int64(offset)); err != nil {
		if errors.Is(err, os.ErrPermission) {
			err = fmt.Errorf("%w: %v", ReadOnlyErr, err)
		}
		return fmt.Errorf(
			"writing `%d` bytes to `%s` at offset `%d`: %w",
			len(b),
			fv.File.Name(),
			offset,
			err,
		)
	}
	return nil
}

func (fv *FileVolume) Sync() error { return fv.File.Sync() }

func (fv *FileVolume) Close() error { return fv.File.Close() }
