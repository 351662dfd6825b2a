package encode

import (
	"bytes"
	"fmt"

	. "github.com/weberc2/tidisk/pkg/types"
)

// FDR is one link of a hard disk file descriptor chain. Every link repeats
// the file header; the extents are split across the links.
type FDR struct {
	FileHeader
	PrevAU     uint16     `json:"prevAU"`
	NextAU     uint16     `json:"nextAU"`
	PrevOffset uint8      `json:"prevOffset"`
	NextOffset uint8      `json:"nextOffset"`
	TotalAUs   uint16     `json:"totalAUs"`
	FDIR       uint16     `json:"fdir"`
	Extents    []Interval `json:"extents"`
}

var fdrMarker = []byte("FI")

const (
	fdrMarkerStart = HeaderSize
	fdrMarkerSize  = 2
	fdrMarkerEnd   = fdrMarkerStart + fdrMarkerSize

	fdrPrevAUStart = fdrMarkerEnd
	fdrPrevAUSize  = 2
	fdrPrevAUEnd   = fdrPrevAUStart + fdrPrevAUSize

	fdrNextAUStart = fdrPrevAUEnd
	fdrNextAUSize  = 2
	fdrNextAUEnd   = fdrNextAUStart + fdrNextAUSize

	fdrPrevOffsetStart = fdrNextAUEnd
	fdrPrevOffsetSize  = 1
	fdrPrevOffsetEnd   = fdrPrevOffsetStart + fdrPrevOffsetSize

	fdrNextOffsetStart = fdrPrevOffsetEnd
	fdrNextOffsetSize  = 1
	fdrNextOffsetEnd   = fdrNextOffsetStart + fdrNextOffsetSize

	fdrTotalAUsStart = fdrNextOffsetEnd
	fdrTotalAUsSize  = 2
	fdrTotalAUsEnd   = fdrTotalAUsStart + fdrTotalAUsSize

	fdrFDIRStart = fdrTotalAUsEnd
	fdrFDIRSize  = 2
	fdrFDIREnd   = fdrFDIRStart + fdrFDIRSize

	fdrPairsStart = fdrFDIREnd
	fdrPairsSize  = SectorSize - fdrPairsStart
	fdrPairsEnd   = fdrPairsStart + fdrPairsSize

	// PairCapacity is the number of extents one FDR link can describe.
	PairCapacity = int(fdrPairsSize / pairSize)
)

func EncodeFDR(fdr *FDR, auSize uint32, b *[SectorSize]byte) error {
	p := b[:]
	for i := range p {
		p[i] = 0
	}
	encodeHeader(&fdr.FileHeader, p)
	copy(p[fdrMarkerStart:fdrMarkerEnd], fdrMarker)
	putU16(p, fdrPrevAUStart, fdr.PrevAU)
	putU16(p, fdrNextAUStart, fdr.NextAU)
	putU8(p, fdrPrevOffsetStart, fdr.PrevOffset)
	putU8(p, fdrNextOffsetStart, fdr.NextOffset)
	putU16(p, fdrTotalAUsStart, fdr.TotalAUs)
	putU16(p, fdrFDIRStart, fdr.FDIR)
	if err := EncodePairs(
		fdr.Extents,
		auSize,
		p[fdrPairsStart:fdrPairsEnd],
	); err != nil {
		return fmt.Errorf("encoding FDR `%s`: %w", fdr.Name, err)
	}
	return nil
}

func DecodeFDR(fdr *FDR, auSize uint32, b *[SectorSize]byte) error {
	p := b[:]
	if marker := p[fdrMarkerStart:fdrMarkerEnd]; !bytes.Equal(marker, fdrMarker) {
		return fmt.Errorf(
			"decoding FDR: %w",
			&ErrBadSignature{Wanted: string(fdrMarker), Found: marker},
		)
	}
	var header FileHeader
	decodeHeader(&header, p)
	if err := ValidateName(header.Name); err != nil {
		return fmt.Errorf("decoding FDR: %w: %w", CorruptErr, err)
	}
	extents, err := DecodePairs(p[fdrPairsStart:fdrPairsEnd], auSize)
	if err != nil {
		return fmt.Errorf("decoding FDR `%s`: %w", header.Name, err)
	}
	fdr.FileHeader = header
	fdr.PrevAU = getU16(p, fdrPrevAUStart)
	fdr.NextAU = getU16(p, fdrNextAUStart)
	fdr.PrevOffset = getU8(p, fdrPrevOffsetStart)
	fdr.NextOffset = getU8(p, fdrNextOffsetStart)
	fdr.TotalAUs = getU16(p, fdrTotalAUsStart)
	fdr.FDIR = getU16(p, fdrFDIRStart)
	fdr.Extents = extents
	return nil
}
