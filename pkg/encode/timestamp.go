package encode

import (
	"time"

	. "github.com/weberc2/tidisk/pkg/types"
)

const TimestampSize Byte = 4

// Timestamps are two words: hour<<11 | minute<<5 | second/2, then
// (year%100)<<9 | month<<5 | day. Years below 80 are in the 2000s. An
// all-zero field is the zero time.
func putTimestamp(b []byte, start Byte, t time.Time) {
	if t.IsZero() {
		putU16(b, start, 0)
		putU16(b, start+2, 0)
		return
	}
	putU16(
		b,
		start,
		uint16(t.Hour())<<11|uint16(t.Minute())<<5|uint16(t.Second()/2),
	)
	putU16(
		b,
		start+2,
		uint16(t.Year()%100)<<9|uint16(t.Month())<<5|uint16(t.Day()),
	)
}

func getTimestamp(b []byte, start Byte) time.Time {
	tw, dw := getU16(b, start), getU16(b, start+2)
	if tw == 0 && dw == 0 {
		return time.Time{}
	}
	year := int(dw >> 9)
	if year < 80 {
		year += 2000
	} else {
		year += 1900
	}
	month := time.Month((dw >> 5) & 0x0F)
	if month < time.January || month > time.December {
		month = time.January
	}
	day := int(dw & 0x1F)
	if day == 0 {
		day = 1
	}
	return time.Date(
		year,
		month,
		day,
		int(tw>>11),
		int((tw>>5)&0x3F),
		int(tw&0x1F)*2,
		0,
		time.UTC,
	)
}

func PutTimestamp(b []byte, start Byte, t time.Time) { putTimestamp(b, start, t) }

func GetTimestamp(b []byte, start Byte) time.Time { return getTimestamp(b, start) }

// Truncate drops the precision a timestamp field cannot hold.
func Truncate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	b := make([]byte, TimestampSize)
	putTimestamp(b, 0, t.UTC())
	return getTimestamp(b, 0)
}
