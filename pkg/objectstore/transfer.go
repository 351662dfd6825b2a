package objectstore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/spf13/afero"
)

// Fetch downloads the image at `location` into the host file `path`,
// replacing it.
func Fetch(
	store ObjectStore,
	location Location,
	afs afero.Fs,
	path string,
	logger *slog.Logger,
) (err error) {
	if logger == nil {
		logger = slog.Default()
	}
	body, err := store.GetObject(location.Bucket, location.Key)
	if err != nil {
		return fmt.Errorf("fetching `%s`: %w", location, err)
	}
	defer func() { err = errors.Join(err, body.Close()) }()

	file, err := afs.Create(path)
	if err != nil {
		return fmt.Errorf("fetching `%s`: creating `%s`: %w", location, path, err)
	}
	defer func() { err = errors.Join(err, file.Close()) }()

	n, err := io.Copy(file, body)
	if err != nil {
		return fmt.Errorf("fetching `%s`: writing `%s`: %w", location, path, err)
	}
	logger.Info("fetched image", "location", location.String(), "path", path, "bytes", n)
	return nil
}

// Publish uploads the host file `path` to `location`.
func Publish(
	store ObjectStore,
	location Location,
	afs afero.Fs,
	path string,
	logger *slog.Logger,
) (err error) {
	if logger == nil {
		logger = slog.Default()
	}
	file, err := afs.Open(path)
	if err != nil {
		return fmt.Errorf("publishing `%s`: %w", path, err)
	}
	defer func() { err = errors.Join(err, file.Close()) }()

	if err := store.PutObject(location.Bucket, location.Key, file); err != nil {
		return fmt.Errorf("publishing `%s` to `%s`: %w", path, location, err)
	}
	logger.Info("published image", "location", location.String(), "path", path)
	return nil
}

// Published lists the images stored under `prefix`, ordered by key.
func Published(store ObjectStore, prefix Location) ([]Location, error) {
	keys, err := store.ListObjects(prefix.Bucket, prefix.Key)
	if err != nil {
		return nil, fmt.Errorf("listing `%s`: %w", prefix, err)
	}
	sort.Strings(keys)
	locations := make([]Location, len(keys))
	for i, key := range keys {
		locations[i] = Location{Bucket: prefix.Bucket, Key: key}
	}
	return locations, nil
}

// Unpublish deletes the image at `location`.
func Unpublish(store ObjectStore, location Location, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if err := store.DeleteObject(location.Bucket, location.Key); err != nil {
		return fmt.Errorf("unpublishing `%s`: %w", location, err)
	}
	logger.Info("unpublished image", "location", location.String())
	return nil
}
