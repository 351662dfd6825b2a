package encode

import (
	"fmt"

	. "github.com/weberc2/tidisk/pkg/types"
)

const (
	tripletSize Byte = 3
	pairSize    Byte = 4

	maxTripletValue = 0x0FFF
)

// EncodeChain packs `intervals` as sector-chain triplets into `b`, zeroing
// the unused tail. Each triplet holds the run's starting AU (12 bits) and
// the file-relative index of the run's last sector (12 bits).
func EncodeChain(intervals []Interval, auSize uint32, b []byte) error {
	if capacity := len(b) / int(tripletSize); len(intervals) > capacity {
		return fmt.Errorf(
			"encoding `%d` intervals into a `%d` entry chain: %w",
			len(intervals),
			capacity,
			CapacityExceededErr,
		)
	}
	for i := range b {
		b[i] = 0
	}

	var offset uint32
	for i, interval := range intervals {
		if interval.Start%auSize != 0 {
			return fmt.Errorf(
				"encoding interval `%v`: start is not aligned to AU size `%d`",
				interval,
				auSize,
			)
		}
		start := interval.Start / auSize
		offset += interval.Len()
		end := offset - 1
		if start > maxTripletValue || end > maxTripletValue {
			return fmt.Errorf(
				"encoding interval `%v` at file offset `%d`: %w",
				interval,
				end,
				CapacityExceededErr,
			)
		}
		p := b[Byte(i)*tripletSize:]
		p[0] = byte(start)
		p[1] = byte(start>>8)&0x0F | byte(end<<4)
		p[2] = byte(end >> 4)
	}
	return nil
}

// DecodeChain unpacks sector-chain triplets, stopping at the first all-zero
// triplet.
func DecodeChain(b []byte, auSize uint32) ([]Interval, error) {
	var out []Interval
	next := uint32(0)
	for i := Byte(0); i+tripletSize <= Byte(len(b)); i += tripletSize {
		p := b[i : i+tripletSize]
		if p[0] == 0 && p[1] == 0 && p[2] == 0 {
			break
		}
		start := uint32(p[0]) | uint32(p[1]&0x0F)<<8
		end := uint32(p[1]>>4) | uint32(p[2])<<4
		if end < next {
			return out, fmt.Errorf(
				"decoding chain entry `%d`: offset `%d` precedes `%d`: %w",
				i/tripletSize,
				end,
				next,
				CorruptErr,
			)
		}
		length := end - next + 1
		out = append(out, Interval{
			Start: start * auSize,
			End:   start*auSize + length - 1,
		})
		next = end + 1
	}
	return out, nil
}

// EncodePairs packs `intervals` as (first AU, last AU) pairs into `b`,
// zeroing the unused tail.
func EncodePairs(intervals []Interval, auSize uint32, b []byte) error {
	if capacity := len(b) / int(pairSize); len(intervals) > capacity {
		return fmt.Errorf(
			"encoding `%d` intervals into `%d` AU pairs: %w",
			len(intervals),
			capacity,
			CapacityExceededErr,
		)
	}
	for i := range b {
		b[i] = 0
	}
	for i, interval := range intervals {
		first, last := interval.Start/auSize, interval.End/auSize
		if last > 0xFFFF {
			return fmt.Errorf(
				"encoding interval `%v`: AU `%d`: %w",
				interval,
				last,
				CapacityExceededErr,
			)
		}
		putU16(b, Byte(i)*pairSize, uint16(first))
		putU16(b, Byte(i)*pairSize+2, uint16(last))
	}
	return nil
}

// DecodePairs unpacks AU pairs into whole-AU sector intervals, stopping at
// the first zero pair.
func DecodePairs(b []byte, auSize uint32) ([]Interval, error) {
	var out []Interval
	for i := Byte(0); i+pairSize <= Byte(len(b)); i += pairSize {
		first, last := uint32(getU16(b, i)), uint32(getU16(b, i+2))
		if first == 0 && last == 0 {
			break
		}
		if last < first {
			return out, fmt.Errorf(
				"decoding AU pair `%d`: last AU `%d` precedes first AU `%d`: %w",
				i/pairSize,
				last,
				first,
				CorruptErr,
			)
		}
		out = append(out, Interval{
			Start: first * auSize,
			End:   (last+1)*auSize - 1,
		})
	}
	return out, nil
}
