package hfe

import (
	"bytes"
	"fmt"

	"github.com/weberc2/tidisk/pkg/encode"
	. "github.com/weberc2/tidisk/pkg/types"
)

const (
	Signature = "HXCPICFE"

	headerSize Byte = 512
	blockSize  Byte = 512
	sideChunk  Byte = 256
	lutEntry   Byte = 4
)

const (
	signatureStart Byte = 0
	signatureSize  Byte = 8
	signatureEnd        = signatureStart + signatureSize

	revisionStart  Byte = signatureEnd
	revisionSize   Byte = 1
	revisionEnd         = revisionStart + revisionSize
	cylindersStart      = revisionEnd
	cylindersSize  Byte = 1
	cylindersEnd        = cylindersStart + cylindersSize
	headsStart          = cylindersEnd
	headsSize      Byte = 1
	headsEnd            = headsStart + headsSize
	encodingStart       = headsEnd
	encodingSize   Byte = 1
	encodingEnd         = encodingStart + encodingSize
	bitRateStart        = encodingEnd
	bitRateSize    Byte = 2
	bitRateEnd          = bitRateStart + bitRateSize
	rpmStart            = bitRateEnd
	rpmSize        Byte = 2
	rpmEnd              = rpmStart + rpmSize
	interfaceStart      = rpmEnd
	interfaceSize  Byte = 1
	interfaceEnd        = interfaceStart + interfaceSize

	// one unused byte
	trackListStart        = interfaceEnd + 1
	trackListSize    Byte = 2
	trackListEnd          = trackListStart + trackListSize
	writeAllowedStart     = trackListEnd
	writeAllowedSize Byte = 1
	writeAllowedEnd       = writeAllowedStart + writeAllowedSize
	singleStepStart       = writeAllowedEnd
)

const (
	encodingISOIBMMFM uint8 = 0x00
	encodingISOIBMFM  uint8 = 0x02

	interfaceGenericShugart uint8 = 0x07
)

type Header struct {
	Revision     uint8
	Cylinders    uint8
	Heads        uint8
	Encoding     uint8
	BitRate      uint16
	RPM          uint16
	Interface    uint8
	TrackList    uint16
	WriteAllowed bool
}

func decodeHeader(b []byte) (Header, error) {
	if Byte(len(b)) < headerSize {
		return Header{}, fmt.Errorf(
			"decoding hfe header: wanted `%d` bytes; found `%d`: %w",
			headerSize,
			len(b),
			CorruptErr,
		)
	}
	if !bytes.Equal(b[signatureStart:signatureEnd], []byte(Signature)) {
		return Header{}, fmt.Errorf(
			"decoding hfe header: %w",
			&ErrBadSignature{
				Wanted: Signature,
				Found:  append([]byte(nil), b[signatureStart:signatureEnd]...),
			},
		)
	}
	return Header{
		Revision:     b[revisionStart],
		Cylinders:    b[cylindersStart],
		Heads:        b[headsStart],
		Encoding:     b[encodingStart],
		BitRate:      encode.GetU16LE(b, bitRateStart),
		RPM:          encode.GetU16LE(b, rpmStart),
		Interface:    b[interfaceStart],
		TrackList:    encode.GetU16LE(b, trackListStart),
		WriteAllowed: b[writeAllowedStart] != 0,
	}, nil
}

func encodeHeader(h *Header, b []byte) {
	for i := Byte(0); i < headerSize; i++ {
		b[i] = 0xFF
	}
	copy(b[signatureStart:signatureEnd], Signature)
	b[revisionStart] = h.Revision
	b[cylindersStart] = h.Cylinders
	b[headsStart] = h.Heads
	b[encodingStart] = h.Encoding
	encode.PutU16LE(b, bitRateStart, h.BitRate)
	encode.PutU16LE(b, rpmStart, h.RPM)
	b[interfaceStart] = h.Interface
	b[interfaceEnd] = 0x01
	encode.PutU16LE(b, trackListStart, h.TrackList)
	b[writeAllowedStart] = 0x00
	if h.WriteAllowed {
		b[writeAllowedStart] = 0xFF
	}
	b[singleStepStart] = 0xFF
}

// location is a cylinder's entry in the track list, in 512-byte blocks and
// bytes respectively.
type location struct {
	Offset uint16
	Length uint16
}

func (l location) position() Byte { return Byte(l.Offset) * blockSize }

// stored is the number of bytes a cylinder occupies on disk.
func (l location) stored() Byte {
	blocks := (Byte(l.Length) + blockSize - 1) / blockSize
	return blocks * blockSize
}
