// Package detect picks the container format of a backing store.
package detect

import (
	"bytes"
	"fmt"

	"github.com/weberc2/tidisk/pkg/image"
	"github.com/weberc2/tidisk/pkg/image/chd"
	"github.com/weberc2/tidisk/pkg/image/dump"
	"github.com/weberc2/tidisk/pkg/image/hfe"
	"github.com/weberc2/tidisk/pkg/image/multi"
	"github.com/weberc2/tidisk/pkg/image/pc99"
	"github.com/weberc2/tidisk/pkg/io"
	. "github.com/weberc2/tidisk/pkg/types"
)

type Kind string

const (
	KindAuto      Kind = ""
	KindDump      Kind = "dump"
	KindHFE       Kind = "hfe"
	KindPC99      Kind = "pc99"
	KindCHD       Kind = "chd"
	KindCF7       Kind = "cf7"
	KindPartition Kind = "partition"
)

var Kinds = []Kind{KindDump, KindHFE, KindPC99, KindCHD, KindCF7, KindPartition}

func ParseKind(s string) (Kind, error) {
	if s == "" || s == "auto" {
		return KindAuto, nil
	}
	for _, kind := range Kinds {
		if string(kind) == s {
			return kind, nil
		}
	}
	return KindAuto, fmt.Errorf("parsing container kind `%s`: %w", s, UnsupportedErr)
}

type Options struct {
	Kind         Kind
	BlockSectors uint32
	CF7Volume    int
	Partition    int
}

// Probe guesses the container kind from signatures and size.
func Probe(volume io.Volume) (Kind, error) {
	size, err := volume.Size()
	if err != nil {
		return KindAuto, fmt.Errorf("probing container: %w", err)
	}
	head := make([]byte, 8)
	if size >= 8 {
		if err := volume.ReadAt(0, head); err != nil {
			return KindAuto, fmt.Errorf("probing container: %w", err)
		}
	}
	switch {
	case bytes.Equal(head, []byte(hfe.Signature)):
		return KindHFE, nil
	case bytes.Equal(head, []byte(chd.Signature)):
		return KindCHD, nil
	case multi.IsPartitioned(volume):
		return KindPartition, nil
	case multi.IsCF7(volume):
		return KindCF7, nil
	case pc99.Probe(volume):
		return KindPC99, nil
	case size > 0 && size%SectorSize == 0:
		return KindDump, nil
	}
	return KindAuto, fmt.Errorf(
		"probing container of `%d` bytes: %w",
		size,
		UnsupportedErr,
	)
}

// Open opens `volume` as the container kind named by `options`, probing it
// when no kind is given.
func Open(volume io.Volume, options Options) (image.Format, error) {
	kind := options.Kind
	if kind == KindAuto {
		var err error
		if kind, err = Probe(volume); err != nil {
			return nil, err
		}
	}
	switch kind {
	case KindDump:
		return dump.New(volume, options.BlockSectors)
	case KindHFE:
		return hfe.Open(volume)
	case KindPC99:
		return pc99.Open(volume)
	case KindCHD:
		return chd.Open(volume)
	case KindCF7:
		return multi.CF7Volume(volume, options.CF7Volume, options.BlockSectors)
	case KindPartition:
		return multi.PartitionVolume(volume, options.Partition, options.BlockSectors)
	}
	return nil, fmt.Errorf("opening container kind `%s`: %w", kind, UnsupportedErr)
}
