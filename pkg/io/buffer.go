package io

import (
	"fmt"
	"io"

	. "github.com/weberc2/tidisk/pkg/types"
)

// Buffer is an in-memory Volume.
type Buffer struct {
	data []byte
}

func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

func (b *Buffer) Bytes() []byte { return b.data }

func (b *Buffer) Size() (Byte, error) { return Byte(len(b.data)), nil }

func (b *Buffer) ReadAt(offset Byte, p []byte) error {
	if offset < 0 || offset+Byte(len(p)) > Byte(len(b.data)) {
		return fmt.Errorf(
			"reading `%d` bytes from buffer of size `%d` at offset `%d`: %w",
			len(p),
			len(b.data),
			offset,
			io.ErrUnexpectedEOF,
		)
	}
	copy(p, b.data[offset:])
	return nil
}

func (b *Buffer) WriteAt(offset Byte, p []byte) error {
	if offset < 0 {
		return fmt.Errorf(
			"writing `%d` bytes to buffer at offset `%d`: negative offset",
			len(p),
			offset,
		)
	}
	if end := offset + Byte(len(p)); end > Byte(len(b.data)) {
		if end <= Byte(cap(b.data)) {
			b.data = b.data[:end]
		} else {
			data := make([]byte, end, end*2)
			copy(data, b.data)
			b.data = data
		}
	}
	copy(b.data[offset:], p)
	return nil
}
