package multi

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/weberc2/tidisk/pkg/encode"
	"github.com/weberc2/tidisk/pkg/image/dump"
	"github.com/weberc2/tidisk/pkg/io"
	. "github.com/weberc2/tidisk/pkg/types"
)

const (
	PartitionSignature = "PTBL"
	MaxPartitions      = 8

	signatureStart Byte = 0
	signatureSize  Byte = 4
	signatureEnd        = signatureStart + signatureSize
	countStart          = signatureEnd
	recordsStart   Byte = 0x10
	recordSize     Byte = 16

	recordStartStart Byte = 0
	recordStartSize  Byte = 4
	recordStartEnd        = recordStartStart + recordStartSize
	recordCountStart      = recordStartEnd
	recordCountSize  Byte = 4
	recordCountEnd        = recordCountStart + recordCountSize
	recordNameStart       = recordCountEnd
	recordNameSize   Byte = 8
	recordNameEnd         = recordNameStart + recordNameSize
)

type Partition struct {
	Start uint32 `json:"start"`
	Count uint32 `json:"count"`
	Name  string `json:"name"`
}

func (p *Partition) End() uint32 { return p.Start + p.Count }

// IsPartitioned reports whether sector 0 of `volume` holds a partition
// table.
func IsPartitioned(volume io.Volume) bool {
	b := make([]byte, signatureSize)
	if err := volume.ReadAt(0, b); err != nil {
		return false
	}
	return bytes.Equal(b, []byte(PartitionSignature))
}

// ReadPartitions decodes and validates the partition table in sector 0.
func ReadPartitions(volume io.Volume) ([]Partition, error) {
	size, err := volume.Size()
	if err != nil {
		return nil, fmt.Errorf("reading partition table: %w", err)
	}
	b := make([]byte, SectorSize)
	if err := volume.ReadAt(0, b); err != nil {
		return nil, fmt.Errorf("reading partition table: %w", err)
	}
	if !bytes.Equal(b[signatureStart:signatureEnd], []byte(PartitionSignature)) {
		return nil, fmt.Errorf(
			"reading partition table: %w",
			&ErrBadSignature{
				Wanted: PartitionSignature,
				Found:  append([]byte(nil), b[signatureStart:signatureEnd]...),
			},
		)
	}
	count := int(b[countStart])
	if count > MaxPartitions {
		return nil, fmt.Errorf(
			"reading partition table: `%d` partitions, at most `%d`: %w",
			count,
			MaxPartitions,
			CapacityExceededErr,
		)
	}
	partitions := make([]Partition, count)
	for i := range partitions {
		r := b[recordsStart+Byte(i)*recordSize:]
		partitions[i] = Partition{
			Start: encode.GetU32(r, recordStartStart),
			Count: encode.GetU32(r, recordCountStart),
			Name: strings.TrimRight(
				string(r[recordNameStart:recordNameEnd]),
				" \x00",
			),
		}
	}
	if err := validate(partitions, uint32(size/SectorSize)); err != nil {
		return nil, fmt.Errorf("reading partition table: %w", err)
	}
	return partitions, nil
}

func validate(partitions []Partition, sectors uint32) error {
	if len(partitions) > MaxPartitions {
		return fmt.Errorf(
			"`%d` partitions, at most `%d`: %w",
			len(partitions),
			MaxPartitions,
			CapacityExceededErr,
		)
	}
	sorted := append([]Partition(nil), partitions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	for i, p := range sorted {
		// sector 0 holds the table itself
		if p.Start == 0 || p.Count == 0 || uint64(p.Start)+uint64(p.Count) > uint64(sectors) {
			return fmt.Errorf(
				"partition `%s` `[%d, %d)` outside of `[1, %d)`: %w",
				p.Name,
				p.Start,
				uint64(p.Start)+uint64(p.Count),
				sectors,
				CorruptErr,
			)
		}
		if i > 0 && sorted[i-1].End() > p.Start {
			return fmt.Errorf(
				"partitions `%s` and `%s` overlap: %w",
				sorted[i-1].Name,
				p.Name,
				CorruptErr,
			)
		}
	}
	return nil
}

// WritePartitions writes a partition table to sector 0.
func WritePartitions(volume io.Volume, partitions []Partition) error {
	size, err := volume.Size()
	if err != nil {
		return fmt.Errorf("writing partition table: %w", err)
	}
	if err := validate(partitions, uint32(size/SectorSize)); err != nil {
		return fmt.Errorf("writing partition table: %w", err)
	}
	b := make([]byte, SectorSize)
	copy(b[signatureStart:signatureEnd], PartitionSignature)
	b[countStart] = uint8(len(partitions))
	for i, p := range partitions {
		r := b[recordsStart+Byte(i)*recordSize:]
		encode.PutU32(r, recordStartStart, p.Start)
		encode.PutU32(r, recordCountStart, p.Count)
		name := []byte(p.Name + strings.Repeat(" ", int(recordNameSize)))
		copy(r[recordNameStart:recordNameEnd], name[:recordNameSize])
	}
	if err := volume.WriteAt(0, b); err != nil {
		return fmt.Errorf("writing partition table: %w", err)
	}
	return nil
}

// PartitionVolume opens partition `index` of a partitioned image.
func PartitionVolume(
	volume io.Volume,
	index int,
	blockSectors uint32,
) (*dump.Format, error) {
	partitions, err := ReadPartitions(volume)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(partitions) {
		return nil, fmt.Errorf(
			"opening partition `%d` of `%d`: %w",
			index,
			len(partitions),
			NotFoundErr,
		)
	}
	p := partitions[index]
	return dump.NewStrided(
		io.NewOffsetVolume(
			volume,
			Byte(p.Start)*SectorSize,
			Byte(p.Count)*SectorSize,
		),
		p.Count,
		blockSectors,
		1,
	), nil
}
