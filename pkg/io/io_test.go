package io

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/spf13/afero"
	. "github.com/weberc2/tidisk/pkg/types"
)

func TestBufferGrowsOnWrite(t *testing.T) {
	buf := NewBuffer(nil)
	if err := buf.WriteAt(10, []byte("abc")); err != nil {
		t.Fatalf("WriteAt(): unexpected err: %v", err)
	}
	if size, _ := buf.Size(); size != 13 {
		t.Fatalf("Size(): wanted `13`; found `%d`", size)
	}
	p := make([]byte, 3)
	if err := buf.ReadAt(10, p); err != nil {
		t.Fatalf("ReadAt(): unexpected err: %v", err)
	}
	if string(p) != "abc" {
		t.Fatalf("ReadAt(): wanted `abc`; found `%s`", p)
	}
	if err := buf.ReadAt(11, p); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("ReadAt() past end: wanted `%v`; found `%v`", io.ErrUnexpectedEOF, err)
	}
}

func TestOffsetVolume(t *testing.T) {
	buf := NewBuffer(make([]byte, 64))
	v := NewOffsetVolume(buf, 16, 32)
	if err := v.WriteAt(0, []byte("xy")); err != nil {
		t.Fatalf("WriteAt(): unexpected err: %v", err)
	}
	if !bytes.Equal(buf.Bytes()[16:18], []byte("xy")) {
		t.Fatalf("inner bytes: wanted `xy`; found `%s`", buf.Bytes()[16:18])
	}
	if err := v.WriteAt(31, []byte("xy")); !errors.Is(err, CapacityExceededErr) {
		t.Fatalf("WriteAt() past window: wanted `%v`; found `%v`", CapacityExceededErr, err)
	}
}

func TestFileVolume(t *testing.T) {
	fs := afero.NewMemMapFs()
	v, err := CreateFile(fs, "/disk.dsk")
	if err != nil {
		t.Fatalf("CreateFile(): unexpected err: %v", err)
	}
	defer v.Close()

	if err := v.WriteAt(256, []byte{1, 2, 3}); err != nil {
		t.Fatalf("WriteAt(): unexpected err: %v", err)
	}
	size, err := v.Size()
	if err != nil {
		t.Fatalf("Size(): unexpected err: %v", err)
	}
	if size != 259 {
		t.Fatalf("Size(): wanted `259`; found `%d`", size)
	}
	p := make([]byte, 3)
	if err := v.ReadAt(256, p); err != nil {
		t.Fatalf("ReadAt(): unexpected err: %v", err)
	}
	if !bytes.Equal(p, []byte{1, 2, 3}) {
		t.Fatalf("ReadAt(): wanted `[1 2 3]`; found `%v`", p)
	}
}
