package image

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	. "github.com/weberc2/tidisk/pkg/types"
)

const noUnit = -1

// Image drives a Format: exactly one unit is resident at a time and a dirty
// resident unit is stored before another one is loaded.
type Image struct {
	ID uuid.UUID

	format   Format
	logger   *slog.Logger
	resident int
	codec    Codec
	dirty    bool
	release  func()
}

func New(format Format, logger *slog.Logger) *Image {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New()
	return &Image{
		ID:       id,
		format:   format,
		logger:   logger.With("image", id.String(), "format", format.Name()),
		resident: noUnit,
	}
}

// Open attaches `format` to the backing store named by `identity`. Only one
// image may be attached to an identity at a time; Close detaches it.
func Open(identity string, format Format, logger *slog.Logger) (*Image, error) {
	img := New(format, logger)
	release, err := attach(identity, img.ID)
	if err != nil {
		return nil, err
	}
	img.release = release
	return img, nil
}

func (img *Image) Format() Format { return img.format }

func (img *Image) SectorCount() uint32 { return img.format.SectorCount() }

func (img *Image) ReadSector(number uint32) (Sector, error) {
	codec, err := img.load(number)
	if err != nil {
		return Sector{}, fmt.Errorf("reading sector `%d`: %w", number, err)
	}
	sector, err := codec.Read(number)
	if err != nil {
		return Sector{}, fmt.Errorf("reading sector `%d`: %w", number, err)
	}
	return sector, nil
}

// WriteSector updates the resident unit; the unit reaches the backing store
// when another unit is loaded or on Flush.
func (img *Image) WriteSector(sector Sector) error {
	codec, err := img.load(sector.Number)
	if err != nil {
		return fmt.Errorf("writing sector `%d`: %w", sector.Number, err)
	}
	if err := codec.Write(sector); err != nil {
		return fmt.Errorf("writing sector `%d`: %w", sector.Number, err)
	}
	img.dirty = true
	return nil
}

func (img *Image) load(number uint32) (Codec, error) {
	if number >= img.format.SectorCount() {
		return nil, fmt.Errorf(
			"sector `%d` beyond `%d` sectors: %w",
			number,
			img.format.SectorCount(),
			NotFoundErr,
		)
	}
	unit, err := img.format.Locate(number)
	if err != nil {
		return nil, err
	}
	if unit == img.resident {
		return img.codec, nil
	}
	if err := img.storeResident(); err != nil {
		return nil, err
	}
	codec, err := img.format.Load(unit)
	if err != nil {
		return nil, fmt.Errorf("loading unit `%d`: %w", unit, err)
	}
	img.resident, img.codec, img.dirty = unit, codec, false
	return codec, nil
}

func (img *Image) storeResident() error {
	if !img.dirty {
		return nil
	}
	if err := img.format.Store(img.resident, img.codec); err != nil {
		return fmt.Errorf("storing unit `%d`: %w", img.resident, err)
	}
	img.logger.Debug("stored unit", "unit", img.resident)
	img.dirty = false
	return nil
}

// Flush stores the resident unit if it is dirty and finalizes the container.
func (img *Image) Flush() error {
	if err := img.storeResident(); err != nil {
		return fmt.Errorf("flushing image: %w", err)
	}
	if err := img.format.Flush(); err != nil {
		return fmt.Errorf("flushing image: %w", err)
	}
	return nil
}

// Close flushes the image and detaches it from its backing identity.
func (img *Image) Close() error {
	err := img.Flush()
	if img.release != nil {
		img.release()
		img.release = nil
	}
	return err
}
