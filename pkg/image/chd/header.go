package chd

import (
	"bytes"
	"fmt"

	"github.com/weberc2/tidisk/pkg/encode"
	. "github.com/weberc2/tidisk/pkg/types"
)

const (
	Signature = "MComprHD"
	Version   = 5

	sha1Size Byte = 20
)

const (
	tagStart          Byte = 0
	tagSize           Byte = 8
	tagEnd                 = tagStart + tagSize
	lengthStart            = tagEnd
	lengthSize        Byte = 4
	lengthEnd              = lengthStart + lengthSize
	versionStart           = lengthEnd
	versionSize       Byte = 4
	versionEnd             = versionStart + versionSize
	compressorsStart       = versionEnd
	compressorsSize   Byte = 16
	compressorsEnd         = compressorsStart + compressorsSize
	logicalBytesStart      = compressorsEnd
	logicalBytesSize  Byte = 8
	logicalBytesEnd        = logicalBytesStart + logicalBytesSize
	mapOffsetStart         = logicalBytesEnd
	mapOffsetSize     Byte = 8
	mapOffsetEnd           = mapOffsetStart + mapOffsetSize
	metaOffsetStart        = mapOffsetEnd
	metaOffsetSize    Byte = 8
	metaOffsetEnd          = metaOffsetStart + metaOffsetSize
	hunkBytesStart         = metaOffsetEnd
	hunkBytesSize     Byte = 4
	hunkBytesEnd           = hunkBytesStart + hunkBytesSize
	unitBytesStart         = hunkBytesEnd
	unitBytesSize     Byte = 4
	unitBytesEnd           = unitBytesStart + unitBytesSize
	rawSHA1Start           = unitBytesEnd
	rawSHA1End             = rawSHA1Start + sha1Size
	sha1Start              = rawSHA1End
	sha1End                = sha1Start + sha1Size
	parentSHA1Start        = sha1End
	parentSHA1End          = parentSHA1Start + sha1Size

	HeaderSize = parentSHA1End
)

type Header struct {
	Version      uint32
	Compressors  [4]uint32
	LogicalBytes uint64
	MapOffset    uint64
	MetaOffset   uint64
	HunkBytes    uint32
	UnitBytes    uint32
	RawSHA1      [20]byte
	SHA1         [20]byte
	ParentSHA1   [20]byte
}

func (h *Header) Hunks() uint32 {
	return uint32((h.LogicalBytes + uint64(h.HunkBytes) - 1) / uint64(h.HunkBytes))
}

func (h *Header) compressed() bool {
	for _, c := range h.Compressors {
		if c != 0 {
			return true
		}
	}
	return false
}

func decodeHeader(b []byte) (Header, error) {
	if Byte(len(b)) < tagEnd+lengthSize+versionSize {
		return Header{}, fmt.Errorf(
			"decoding chd header: `%d` bytes: %w",
			len(b),
			CorruptErr,
		)
	}
	if !bytes.Equal(b[tagStart:tagEnd], []byte(Signature)) {
		return Header{}, fmt.Errorf(
			"decoding chd header: %w",
			&ErrBadSignature{
				Wanted: Signature,
				Found:  append([]byte(nil), b[tagStart:tagEnd]...),
			},
		)
	}
	h := Header{Version: encode.GetU32(b, versionStart)}
	if h.Version != Version {
		return Header{}, fmt.Errorf(
			"decoding chd header: version `%d`: %w",
			h.Version,
			UnsupportedErr,
		)
	}
	if length := encode.GetU32(b, lengthStart); Byte(length) != HeaderSize ||
		Byte(len(b)) < HeaderSize {
		return Header{}, fmt.Errorf(
			"decoding chd header: header length `%d`: %w",
			length,
			CorruptErr,
		)
	}
	for i := range h.Compressors {
		h.Compressors[i] = encode.GetU32(b, compressorsStart+Byte(4*i))
	}
	h.LogicalBytes = encode.GetU64(b, logicalBytesStart)
	h.MapOffset = encode.GetU64(b, mapOffsetStart)
	h.MetaOffset = encode.GetU64(b, metaOffsetStart)
	h.HunkBytes = encode.GetU32(b, hunkBytesStart)
	h.UnitBytes = encode.GetU32(b, unitBytesStart)
	copy(h.RawSHA1[:], b[rawSHA1Start:rawSHA1End])
	copy(h.SHA1[:], b[sha1Start:sha1End])
	copy(h.ParentSHA1[:], b[parentSHA1Start:parentSHA1End])
	return h, nil
}

func encodeHeader(h *Header, b []byte) {
	copy(b[tagStart:tagEnd], Signature)
	encode.PutU32(b, lengthStart, uint32(HeaderSize))
	encode.PutU32(b, versionStart, h.Version)
	for i, c := range h.Compressors {
		encode.PutU32(b, compressorsStart+Byte(4*i), c)
	}
	encode.PutU64(b, logicalBytesStart, h.LogicalBytes)
	encode.PutU64(b, mapOffsetStart, h.MapOffset)
	encode.PutU64(b, metaOffsetStart, h.MetaOffset)
	encode.PutU32(b, hunkBytesStart, h.HunkBytes)
	encode.PutU32(b, unitBytesStart, h.UnitBytes)
	copy(b[rawSHA1Start:rawSHA1End], h.RawSHA1[:])
	copy(b[sha1Start:sha1End], h.SHA1[:])
	copy(b[parentSHA1Start:parentSHA1End], h.ParentSHA1[:])
}
