// Package volume ties a container, the generation cache and a file system
// together and exposes path-based operations that commit as a unit.
package volume

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/weberc2/tidisk/pkg/archive"
	"github.com/weberc2/tidisk/pkg/cache"
	"github.com/weberc2/tidisk/pkg/fs"
	"github.com/weberc2/tidisk/pkg/image"
	"github.com/weberc2/tidisk/pkg/image/detect"
	"github.com/weberc2/tidisk/pkg/io"
)

type Options struct {
	Detect   detect.Options
	ReadOnly bool

	// AutoSave persists every commit. Without it commits only advance the
	// generation until Save.
	AutoSave bool

	Compressor archive.Compressor
	Logger     *slog.Logger
	Now        func() time.Time
}

type Volume struct {
	// Session identifies this open volume in logs.
	Session uuid.UUID

	Image *image.Image
	Cache *cache.Cache
	FS    *fs.FileSystem

	autoSave   bool
	compressor archive.Compressor
	closer     func() error
	logger     *slog.Logger
}

func (options *Options) defaults() {
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Compressor == nil {
		options.Compressor = archive.LZW{}
	}
}

func (options *Options) fsOptions() fs.Options {
	return fs.Options{
		Logger:   options.Logger,
		ReadOnly: options.ReadOnly,
		Now:      options.Now,
	}
}

func newVolume(img *image.Image, options *Options) *Volume {
	session := uuid.New()
	return &Volume{
		Session:    session,
		Image:      img,
		Cache:      cache.New(img, options.Logger),
		autoSave:   options.AutoSave,
		compressor: options.Compressor,
		logger:     options.Logger.With("session", session.String()),
	}
}

// Open attaches `backing` under `identity`, detects its container format
// and reads its file system.
func Open(identity string, backing io.Volume, options Options) (*Volume, error) {
	options.defaults()
	format, err := detect.Open(backing, options.Detect)
	if err != nil {
		return nil, fmt.Errorf("opening volume `%s`: %w", identity, err)
	}
	img, err := image.Open(identity, format, options.Logger)
	if err != nil {
		return nil, fmt.Errorf("opening volume `%s`: %w", identity, err)
	}
	v := newVolume(img, &options)
	if v.FS, err = fs.Open(v.Cache, options.fsOptions()); err != nil {
		return nil, errors.Join(
			fmt.Errorf("opening volume `%s`: %w", identity, err),
			img.Close(),
		)
	}
	v.logger.Debug(
		"opened volume",
		"identity", identity,
		"format", format.Name(),
		"kind", v.FS.Kind().String(),
		"skipped", v.FS.Skipped,
	)
	return v, nil
}

// OpenFile opens the container file at `path`; Close closes the file.
func OpenFile(afs afero.Fs, path string, options Options) (*Volume, error) {
	file, err := io.OpenFile(afs, path, options.ReadOnly)
	if err != nil {
		return nil, fmt.Errorf("opening volume: %w", err)
	}
	v, err := Open(path, file, options)
	if err != nil {
		return nil, errors.Join(err, file.Close())
	}
	v.closer = file.Close
	return v, nil
}

// Create formats a file system on a blank container and saves it. The
// format goes straight to the image so it is not an undoable step.
func Create(
	identity string,
	format image.Format,
	params *fs.FormatParams,
	options Options,
) (*Volume, error) {
	options.defaults()
	img, err := image.Open(identity, format, options.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating volume `%s`: %w", identity, err)
	}
	fail := func(err error) (*Volume, error) {
		return nil, errors.Join(
			fmt.Errorf("creating volume `%s`: %w", identity, err),
			img.Close(),
		)
	}
	formatted, err := fs.Format(img, params, options.fsOptions())
	if err != nil {
		return fail(err)
	}
	if err := formatted.Flush(); err != nil {
		return fail(err)
	}
	if err := img.Flush(); err != nil {
		return fail(err)
	}
	v := newVolume(img, &options)
	if v.FS, err = fs.Open(v.Cache, options.fsOptions()); err != nil {
		return fail(err)
	}
	v.logger.Info(
		"created volume",
		"identity", identity,
		"format", format.Name(),
		"kind", v.FS.Kind().String(),
		"sectors", v.FS.TotalSectors(),
	)
	return v, nil
}

// CreateFile creates the container file at `path` and formats it.
func CreateFile(
	afs afero.Fs,
	path string,
	container detect.CreateOptions,
	params *fs.FormatParams,
	options Options,
) (*Volume, error) {
	file, err := io.CreateFile(afs, path)
	if err != nil {
		return nil, fmt.Errorf("creating volume: %w", err)
	}
	format, err := detect.Create(file, container)
	if err != nil {
		return nil, errors.Join(
			fmt.Errorf("creating volume `%s`: %w", path, err),
			file.Close(),
		)
	}
	v, err := Create(path, format, params, options)
	if err != nil {
		return nil, errors.Join(err, file.Close())
	}
	v.closer = file.Close
	return v, nil
}

// Commit closes the generation in progress. It persists the change when
// the volume saves automatically.
func (v *Volume) Commit() error {
	if err := v.FS.Flush(); err != nil {
		v.Rollback()
		return fmt.Errorf("committing: %w", err)
	}
	if !v.Cache.Dirty() {
		return nil
	}
	v.Cache.Advance()
	v.logger.Debug("committed", "unsaved", v.Cache.Unsaved())
	if v.autoSave {
		return v.Save()
	}
	return nil
}

// Rollback discards every uncommitted write and rereads the file system.
func (v *Volume) Rollback() {
	v.Cache.Rollback()
	if err := v.FS.Reload(); err != nil {
		v.logger.Error("reloading file system after rollback", "err", err)
	}
}

// Save writes the visible state to the container.
func (v *Volume) Save() error {
	if err := v.Cache.Persist(); err != nil {
		return fmt.Errorf("saving: %w", err)
	}
	if err := v.Image.Flush(); err != nil {
		return fmt.Errorf("saving: %w", err)
	}
	v.Cache.SetCheckpoint()
	v.logger.Debug("saved")
	return nil
}

// Unsaved reports changes the container does not hold yet.
func (v *Volume) Unsaved() bool { return v.Cache.Unsaved() }

func (v *Volume) CanUndo() bool { return v.Cache.Generations().CanUndo() }

func (v *Volume) CanRedo() bool { return v.Cache.Generations().CanRedo() }

// Undo makes the previous commit visible again.
func (v *Volume) Undo() error {
	if err := v.Cache.Retreat(); err != nil {
		return fmt.Errorf("undoing: %w", cache.NothingToUndoErr)
	}
	return v.reload("undoing")
}

// Redo reapplies the commit undone last.
func (v *Volume) Redo() error {
	if err := v.Cache.Redo(); err != nil {
		return fmt.Errorf("redoing: %w", cache.NothingToRedoErr)
	}
	return v.reload("redoing")
}

func (v *Volume) reload(doing string) error {
	if err := v.FS.Reload(); err != nil {
		return fmt.Errorf("%s: %w", doing, err)
	}
	if v.autoSave {
		return v.Save()
	}
	return nil
}

// mutate runs `op` as one commit, rolling back on failure.
func (v *Volume) mutate(op func() error) error {
	if err := op(); err != nil {
		v.Rollback()
		return err
	}
	return v.Commit()
}

// amend runs `op` and folds its writes into the last commit instead of
// opening a new one. Without a previous commit it commits normally.
func (v *Volume) amend(op func() error) error {
	if err := op(); err != nil {
		v.Rollback()
		return err
	}
	if err := v.FS.Flush(); err != nil {
		v.Rollback()
		return fmt.Errorf("amending: %w", err)
	}
	if err := v.Cache.SameGeneration(); err != nil {
		return v.Commit()
	}
	if v.autoSave {
		return v.Save()
	}
	return nil
}

// Close saves when saving automatically, then detaches the container.
func (v *Volume) Close() error {
	var err error
	if v.autoSave && v.Unsaved() {
		err = v.Save()
	}
	err = errors.Join(err, v.Image.Close())
	if v.closer != nil {
		err = errors.Join(err, v.closer())
	}
	return err
}
