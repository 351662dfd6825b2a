package types

// Byte is a byte count or a byte offset into a backing store.
type Byte int64

const (
	Kilobyte Byte = 1024
	Megabyte      = 1024 * Kilobyte
)
