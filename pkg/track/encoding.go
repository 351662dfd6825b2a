package track

import "fmt"

type Encoding uint8

const (
	FM Encoding = iota
	MFM
)

func (enc Encoding) String() string {
	switch enc {
	case FM:
		return "FM"
	case MFM:
		return "MFM"
	default:
		return fmt.Sprintf("Encoding(%d)", uint8(enc))
	}
}

const (
	IDAM       byte = 0xFE
	DAM        byte = 0xFB
	DeletedDAM byte = 0xF8

	// mfmSync is the A1 byte written with a missing clock bit.
	mfmSync        byte   = 0xA1
	mfmSyncPattern uint16 = 0x4489

	fmNormalClock byte = 0xFF
	fmMarkClock   byte = 0xC7
)

// markPrefix returns the bytes the CRC of a field introduced by `mark`
// covers before the field itself.
func markPrefix(enc Encoding, mark byte) []byte {
	if enc == MFM {
		return []byte{mfmSync, mfmSync, mfmSync, mark}
	}
	return []byte{mark}
}

// fmCells interleaves clock and data bits, clock first.
func fmCells(clock, data byte) uint16 {
	var cells uint16
	for bit := 7; bit >= 0; bit-- {
		cells = cells<<2 |
			uint16(clock>>bit&1)<<1 |
			uint16(data>>bit&1)
	}
	return cells
}

// mfmCells encodes `data` given the last data bit of the preceding byte.
func mfmCells(prev, data byte) uint16 {
	var cells uint16
	for bit := 7; bit >= 0; bit-- {
		d := data >> bit & 1
		var c byte
		if prev == 0 && d == 0 {
			c = 1
		}
		cells = cells<<2 | uint16(c)<<1 | uint16(d)
		prev = d
	}
	return cells
}

// double repeats every cell, as FM tracks are stored at twice the cell rate.
func double(cells uint16) uint32 {
	var out uint32
	for bit := 15; bit >= 0; bit-- {
		c := uint32(cells >> bit & 1)
		out = out<<2 | c<<1 | c
	}
	return out
}
