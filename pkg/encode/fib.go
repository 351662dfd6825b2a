package encode

import (
	"fmt"

	. "github.com/weberc2/tidisk/pkg/types"
)

// FIB is a floppy file descriptor block.
type FIB struct {
	FileHeader
	Extents []Interval `json:"extents"`
}

const (
	fibChainStart = HeaderSize
	fibChainSize  = SectorSize - fibChainStart
	fibChainEnd   = fibChainStart + fibChainSize

	// ChainCapacity is the number of extents one FIB can describe.
	ChainCapacity = int(fibChainSize / tripletSize)
)

func EncodeFIB(fib *FIB, auSize uint32, b *[SectorSize]byte) error {
	p := b[:]
	for i := range p {
		p[i] = 0
	}
	encodeHeader(&fib.FileHeader, p)
	if err := EncodeChain(
		fib.Extents,
		auSize,
		p[fibChainStart:fibChainEnd],
	); err != nil {
		return fmt.Errorf("encoding FIB `%s`: %w", fib.Name, err)
	}
	return nil
}

func DecodeFIB(fib *FIB, auSize uint32, b *[SectorSize]byte) error {
	p := b[:]
	var header FileHeader
	decodeHeader(&header, p)
	if err := ValidateName(header.Name); err != nil {
		return fmt.Errorf("decoding FIB: %w: %w", CorruptErr, err)
	}
	extents, err := DecodeChain(p[fibChainStart:fibChainEnd], auSize)
	if err != nil {
		return fmt.Errorf("decoding FIB `%s`: %w", header.Name, err)
	}
	fib.FileHeader = header
	fib.Extents = extents
	return nil
}
