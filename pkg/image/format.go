package image

import (
	. "github.com/weberc2/tidisk/pkg/types"
)

// Codec holds the decoded sectors of one format unit.
type Codec interface {
	Read(number uint32) (Sector, error)
	Write(sector Sector) error

	// Encode returns the raw bytes of the unit, as stored in the container.
	Encode() ([]byte, error)
}

// Format is one kind of container. It maps logical sectors onto format
// units and moves whole units between the backing store and their codecs.
type Format interface {
	Name() string
	SectorCount() uint32

	// Locate returns the unit holding `sector`.
	Locate(sector uint32) (int, error)

	// UnitPosition returns the byte offset of a unit within the backing
	// store. Units that have not been allocated yet (hunk-mapped
	// containers) are reported as absent.
	UnitPosition(unit int) (Byte, bool)
	UnitLength(unit int) Byte

	Load(unit int) (Codec, error)
	Store(unit int, codec Codec) error

	// Flush finalizes container-level metadata (checksums, headers) after
	// units have been stored.
	Flush() error
}
