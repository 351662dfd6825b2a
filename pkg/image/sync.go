package image

import (
	"fmt"

	"github.com/weberc2/tidisk/pkg/io"
)

type syncer interface {
	Sync() error
}

// Sync commits the backing store to stable storage when it supports it.
func Sync(volume io.Volume) error {
	if s, ok := volume.(syncer); ok {
		if err := s.Sync(); err != nil {
			return fmt.Errorf("syncing backing store: %w", err)
		}
	}
	return nil
}
