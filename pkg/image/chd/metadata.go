package chd

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"sort"

	"github.com/weberc2/tidisk/pkg/encode"
	"github.com/weberc2/tidisk/pkg/io"
	. "github.com/weberc2/tidisk/pkg/types"
)

const (
	GeometryTag = "GDDD"

	// FlagChecksum marks metadata covered by the overall SHA1.
	FlagChecksum uint8 = 0x01

	metaTagStart    Byte = 0
	metaTagSize     Byte = 4
	metaTagEnd           = metaTagStart + metaTagSize
	metaFlagsStart       = metaTagEnd
	metaLengthStart      = metaFlagsStart + 1
	metaLengthEnd        = metaLengthStart + 3
	metaNextStart        = metaLengthEnd
	metaNextSize    Byte = 8
	metaNextEnd          = metaNextStart + metaNextSize
	metaHeaderSize       = metaNextEnd

	// maxMetadata bounds the chain walk on corrupt images.
	maxMetadata = 1024
)

type Metadata struct {
	Tag   string
	Flags uint8
	Data  []byte
}

func readMetadata(volume io.Volume, offset uint64) ([]Metadata, error) {
	var entries []Metadata
	for offset != 0 {
		if len(entries) >= maxMetadata {
			return nil, fmt.Errorf(
				"reading metadata: more than `%d` entries: %w",
				maxMetadata,
				CorruptErr,
			)
		}
		b := make([]byte, metaHeaderSize)
		if err := volume.ReadAt(Byte(offset), b); err != nil {
			return nil, fmt.Errorf("reading metadata at `%d`: %w", offset, err)
		}
		length := uint32(b[metaLengthStart])<<16 |
			uint32(b[metaLengthStart+1])<<8 |
			uint32(b[metaLengthStart+2])
		entry := Metadata{
			Tag:   string(b[metaTagStart:metaTagEnd]),
			Flags: b[metaFlagsStart],
			Data:  make([]byte, length),
		}
		if err := volume.ReadAt(Byte(offset)+metaHeaderSize, entry.Data); err != nil {
			return nil, fmt.Errorf(
				"reading metadata `%s` at `%d`: %w",
				entry.Tag,
				offset,
				err,
			)
		}
		entries = append(entries, entry)
		offset = encode.GetU64(b, metaNextStart)
	}
	return entries, nil
}

// encodeMetadata serializes `entries` as a chain starting at `offset`.
func encodeMetadata(entries []Metadata, offset uint64) []byte {
	var out []byte
	for i, entry := range entries {
		b := make([]byte, metaHeaderSize+Byte(len(entry.Data)))
		copy(b[metaTagStart:metaTagEnd], entry.Tag)
		b[metaFlagsStart] = entry.Flags
		b[metaLengthStart] = byte(len(entry.Data) >> 16)
		b[metaLengthStart+1] = byte(len(entry.Data) >> 8)
		b[metaLengthStart+2] = byte(len(entry.Data))
		if i < len(entries)-1 {
			encode.PutU64(b, metaNextStart, offset+uint64(len(out)+len(b)))
		}
		copy(b[metaHeaderSize:], entry.Data)
		out = append(out, b...)
	}
	return out
}

// overallSHA1 combines the raw data digest with the digests of the
// checksummed metadata, sorted so that entry order does not matter.
func overallSHA1(raw [20]byte, entries []Metadata) [20]byte {
	var hashes [][]byte
	for _, entry := range entries {
		if entry.Flags&FlagChecksum == 0 {
			continue
		}
		digest := sha1.Sum(entry.Data)
		hashes = append(hashes, append([]byte(entry.Tag), digest[:]...))
	}
	sort.Slice(hashes, func(i, j int) bool {
		return bytes.Compare(hashes[i], hashes[j]) < 0
	})
	h := sha1.New()
	h.Write(raw[:])
	for _, hash := range hashes {
		h.Write(hash)
	}
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

// HardDiskGeometry is the content of a GDDD entry.
type HardDiskGeometry struct {
	Cylinders       int
	Heads           int
	SectorsPerTrack int
	BytesPerSector  int
}

func (g HardDiskGeometry) String() string {
	return fmt.Sprintf(
		"CYLS:%d,HEADS:%d,SECS:%d,BPS:%d",
		g.Cylinders,
		g.Heads,
		g.SectorsPerTrack,
		g.BytesPerSector,
	)
}

func parseGeometry(data []byte) (HardDiskGeometry, error) {
	var g HardDiskGeometry
	if _, err := fmt.Sscanf(
		string(bytes.TrimRight(data, "\x00")),
		"CYLS:%d,HEADS:%d,SECS:%d,BPS:%d",
		&g.Cylinders,
		&g.Heads,
		&g.SectorsPerTrack,
		&g.BytesPerSector,
	); err != nil {
		return g, fmt.Errorf(
			"parsing geometry `%s`: %v: %w",
			data,
			err,
			CorruptErr,
		)
	}
	return g, nil
}
