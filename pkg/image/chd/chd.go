// Package chd implements uncompressed MAME CHD (v5) hard disk images. Format
// units are hunks located through the hunk map; hunks that were never
// written read as zeros and are appended on first write.
package chd

import (
	"crypto/sha1"
	"fmt"

	"github.com/weberc2/tidisk/pkg/encode"
	"github.com/weberc2/tidisk/pkg/image"
	"github.com/weberc2/tidisk/pkg/io"
	"github.com/weberc2/tidisk/pkg/math"
	. "github.com/weberc2/tidisk/pkg/types"
)

const mapEntrySize Byte = 4

type Format struct {
	volume         io.Volume
	header         Header
	hunks          []uint32
	metadata       []Metadata
	geometry       HardDiskGeometry
	sectors        uint32
	sectorsPerHunk uint32
	dirty          bool
}

func Open(volume io.Volume) (*Format, error) {
	size, err := volume.Size()
	if err != nil {
		return nil, fmt.Errorf("opening chd image: %w", err)
	}
	b := make([]byte, math.Min(size, HeaderSize))
	if err := volume.ReadAt(0, b); err != nil {
		return nil, fmt.Errorf("opening chd image: %w", err)
	}
	header, err := decodeHeader(b)
	if err != nil {
		return nil, fmt.Errorf("opening chd image: %w", err)
	}
	if header.compressed() {
		return nil, fmt.Errorf(
			"opening chd image: compressed hunks: %w",
			UnsupportedErr,
		)
	}
	if header.HunkBytes == 0 || Byte(header.HunkBytes)%SectorSize != 0 {
		return nil, fmt.Errorf(
			"opening chd image: hunk size `%d`: %w",
			header.HunkBytes,
			UnsupportedErr,
		)
	}

	f := Format{
		volume:         volume,
		header:         header,
		sectors:        uint32(header.LogicalBytes / uint64(SectorSize)),
		sectorsPerHunk: header.HunkBytes / uint32(SectorSize),
	}
	raw := make([]byte, Byte(header.Hunks())*mapEntrySize)
	if err := volume.ReadAt(Byte(header.MapOffset), raw); err != nil {
		return nil, fmt.Errorf("opening chd image: reading hunk map: %w", err)
	}
	f.hunks = make([]uint32, header.Hunks())
	for i := range f.hunks {
		f.hunks[i] = encode.GetU32(raw, Byte(i)*mapEntrySize)
	}

	if f.metadata, err = readMetadata(volume, header.MetaOffset); err != nil {
		return nil, fmt.Errorf("opening chd image: %w", err)
	}
	for _, entry := range f.metadata {
		if entry.Tag != GeometryTag {
			continue
		}
		if f.geometry, err = parseGeometry(entry.Data); err != nil {
			return nil, fmt.Errorf("opening chd image: %w", err)
		}
		if Byte(f.geometry.BytesPerSector) != SectorSize {
			return nil, fmt.Errorf(
				"opening chd image: `%d` bytes per sector: %w",
				f.geometry.BytesPerSector,
				UnsupportedErr,
			)
		}
		break
	}
	return &f, nil
}

func (f *Format) Name() string { return "chd" }

func (f *Format) Geometry() HardDiskGeometry { return f.geometry }

func (f *Format) Header() Header { return f.header }

func (f *Format) SectorCount() uint32 { return f.sectors }

func (f *Format) Locate(sector uint32) (int, error) {
	if sector >= f.sectors {
		return 0, fmt.Errorf(
			"locating sector `%d` in `%d` sector image: %w",
			sector,
			f.sectors,
			NotFoundErr,
		)
	}
	return int(sector / f.sectorsPerHunk), nil
}

func (f *Format) UnitPosition(unit int) (Byte, bool) {
	if f.hunks[unit] == 0 {
		return 0, false
	}
	return Byte(f.hunks[unit]) * Byte(f.header.HunkBytes), true
}

func (f *Format) UnitLength(int) Byte { return Byte(f.header.HunkBytes) }

func (f *Format) readHunk(unit int) ([]byte, error) {
	raw := make([]byte, f.header.HunkBytes)
	if position, present := f.UnitPosition(unit); present {
		if err := f.volume.ReadAt(position, raw); err != nil {
			return nil, fmt.Errorf("reading hunk `%d`: %w", unit, err)
		}
	}
	return raw, nil
}

func (f *Format) Load(unit int) (image.Codec, error) {
	if unit < 0 || unit >= len(f.hunks) {
		return nil, fmt.Errorf("loading hunk `%d`: %w", unit, NotFoundErr)
	}
	raw, err := f.readHunk(unit)
	if err != nil {
		return nil, err
	}
	return image.NewLinear(raw, uint32(unit)*f.sectorsPerHunk, 1)
}

// Store writes a hunk in place, or appends it when it is not allocated yet.
// An appended hunk's data is written before its map entry.
func (f *Format) Store(unit int, codec image.Codec) error {
	raw, err := codec.Encode()
	if err != nil {
		return fmt.Errorf("storing hunk `%d`: %w", unit, err)
	}
	if position, present := f.UnitPosition(unit); present {
		if err := f.volume.WriteAt(position, raw); err != nil {
			return fmt.Errorf("storing hunk `%d`: %w", unit, err)
		}
		f.dirty = true
		return nil
	}

	size, err := f.volume.Size()
	if err != nil {
		return fmt.Errorf("storing hunk `%d`: %w", unit, err)
	}
	position := math.RoundUp(size, Byte(f.header.HunkBytes))
	if err := f.volume.WriteAt(position, raw); err != nil {
		return fmt.Errorf("storing hunk `%d`: appending: %w", unit, err)
	}
	entry := uint32(position / Byte(f.header.HunkBytes))
	b := make([]byte, mapEntrySize)
	encode.PutU32(b, 0, entry)
	if err := f.volume.WriteAt(
		Byte(f.header.MapOffset)+Byte(unit)*mapEntrySize,
		b,
	); err != nil {
		return fmt.Errorf("storing hunk `%d`: updating map: %w", unit, err)
	}
	f.hunks[unit] = entry
	f.dirty = true
	return nil
}

func (f *Format) rawSHA1() ([20]byte, error) {
	h := sha1.New()
	remaining := f.header.LogicalBytes
	for unit := range f.hunks {
		raw, err := f.readHunk(unit)
		if err != nil {
			return [20]byte{}, fmt.Errorf("hashing: %w", err)
		}
		n := math.Min(remaining, uint64(len(raw)))
		h.Write(raw[:n])
		remaining -= n
	}
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// Flush refreshes the header digests after hunks were stored.
func (f *Format) Flush() error {
	if !f.dirty {
		return image.Sync(f.volume)
	}
	raw, err := f.rawSHA1()
	if err != nil {
		return fmt.Errorf("flushing chd image: %w", err)
	}
	f.header.RawSHA1 = raw
	f.header.SHA1 = overallSHA1(raw, f.metadata)
	b := make([]byte, HeaderSize)
	encodeHeader(&f.header, b)
	if err := f.volume.WriteAt(0, b); err != nil {
		return fmt.Errorf("flushing chd image: writing header: %w", err)
	}
	f.dirty = false
	return image.Sync(f.volume)
}

// Create writes an empty image with the given geometry. No hunk is
// allocated until it is first written.
func Create(
	volume io.Volume,
	geometry HardDiskGeometry,
	hunkBytes uint32,
) (*Format, error) {
	geometry.BytesPerSector = int(SectorSize)
	header := Header{
		Version: Version,
		LogicalBytes: uint64(geometry.Cylinders*geometry.Heads*
			geometry.SectorsPerTrack) * uint64(SectorSize),
		MapOffset: uint64(HeaderSize),
		HunkBytes: hunkBytes,
		UnitBytes: uint32(SectorSize),
	}
	mapBytes := Byte(header.Hunks()) * mapEntrySize
	header.MetaOffset = header.MapOffset + uint64(mapBytes)

	metadata := []Metadata{{
		Tag:   GeometryTag,
		Flags: FlagChecksum,
		Data:  append([]byte(geometry.String()), 0),
	}}
	zeros := sha1.New()
	chunk := make([]byte, SectorSize)
	for i := uint64(0); i < header.LogicalBytes; i += uint64(SectorSize) {
		zeros.Write(chunk)
	}
	copy(header.RawSHA1[:], zeros.Sum(nil))
	header.SHA1 = overallSHA1(header.RawSHA1, metadata)

	b := make([]byte, HeaderSize+mapBytes)
	encodeHeader(&header, b)
	b = append(b, encodeMetadata(metadata, header.MetaOffset)...)
	if err := volume.WriteAt(0, b); err != nil {
		return nil, fmt.Errorf("creating chd image: %w", err)
	}
	return Open(volume)
}
