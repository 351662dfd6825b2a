package io

import (
	. "github.com/weberc2/tidisk/pkg/types"
)

type ReadAt interface {
	ReadAt(offset Byte, b []byte) error
}

type WriteAt interface {
	WriteAt(offset Byte, p []byte) error
}

type Sizer interface {
	Size() (Byte, error)
}

// Volume is a random-access backing store for a container image. Writes
// past the end grow the volume.
type Volume interface {
	ReadAt
	WriteAt
	Sizer
}
