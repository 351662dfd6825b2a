package io

import (
	"fmt"

	. "github.com/weberc2/tidisk/pkg/types"
)

// OffsetVolume exposes the window `[offset, offset+size)` of an inner volume
// as a volume of its own. Sub-volumes of multi-volume containers and
// partitions are addressed through it.
type OffsetVolume struct {
	inner  Volume
	offset Byte
	size   Byte
}

func NewOffsetVolume(inner Volume, offset, size Byte) *OffsetVolume {
	return &OffsetVolume{inner: inner, offset: offset, size: size}
}

func (v *OffsetVolume) Size() (Byte, error) { return v.size, nil }

func (v *OffsetVolume) ReadAt(offset Byte, b []byte) error {
	if err := v.check(offset, b); err != nil {
		return fmt.Errorf("reading: %w", err)
	}
	if err := v.inner.ReadAt(offset+v.offset, b); err != nil {
		return fmt.Errorf(
			"reading additional offset `%d` from base offset `%d` (total "+
				"offset `%d` bytes): %w",
			offset,
			v.offset,
			offset+v.offset,
			err,
		)
	}
	return nil
}

func (v *OffsetVolume) WriteAt(offset Byte, b []byte) error {
	if err := v.check(offset, b); err != nil {
		return fmt.Errorf("writing: %w", err)
	}
	if err := v.inner.WriteAt(offset+v.offset, b); err != nil {
		return fmt.Errorf(
			"writing additional offset `%d` from base offset `%d` (total "+
				"offset `%d` bytes): %w",
			offset,
			v.offset,
			offset+v.offset,
			err,
		)
	}
	return nil
}

func (v *OffsetVolume) check(offset Byte, b []byte) error {
	if offset < 0 || offset+Byte(len(b)) > v.size {
		return fmt.Errorf(
			"range `[%d, %d)` outside of window of size `%d`: %w",
			offset,
			offset+Byte(len(b)),
			v.size,
			CapacityExceededErr,
		)
	}
	return nil
}
