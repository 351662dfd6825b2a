package encode

import (
	"encoding/binary"

	. "github.com/weberc2/tidisk/pkg/types"
)

func putU8(b []byte, start Byte, u uint8) { b[start] = u }

func getU8(b []byte, start Byte) uint8 { return b[start] }

func putU16(b []byte, start Byte, u uint16) {
	binary.BigEndian.PutUint16(b[start:start+2], u)
}

func getU16(b []byte, start Byte) uint16 {
	return binary.BigEndian.Uint16(b[start : start+2])
}

func putU16LE(b []byte, start Byte, u uint16) {
	binary.LittleEndian.PutUint16(b[start:start+2], u)
}

func getU16LE(b []byte, start Byte) uint16 {
	return binary.LittleEndian.Uint16(b[start : start+2])
}

// Exported helpers used by the container codecs.

func PutU16(b []byte, start Byte, u uint16) { putU16(b, start, u) }

func GetU16(b []byte, start Byte) uint16 { return getU16(b, start) }

func PutU16LE(b []byte, start Byte, u uint16) { putU16LE(b, start, u) }

func GetU16LE(b []byte, start Byte) uint16 { return getU16LE(b, start) }

func PutU32(b []byte, start Byte, u uint32) {
	binary.BigEndian.PutUint32(b[start:start+4], u)
}

func GetU32(b []byte, start Byte) uint32 {
	return binary.BigEndian.Uint32(b[start : start+4])
}

func PutU64(b []byte, start Byte, u uint64) {
	binary.BigEndian.PutUint64(b[start:start+8], u)
}

func GetU64(b []byte, start Byte) uint64 {
	return binary.BigEndian.Uint64(b[start : start+8])
}
