// Package export copies directory trees between a volume and the host file
// system.
package export

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gosimple/slug"
	"github.com/spf13/afero"

	"github.com/weberc2/tidisk/pkg/encode"
	"github.com/weberc2/tidisk/pkg/fs"
	"github.com/weberc2/tidisk/pkg/tifiles"
	. "github.com/weberc2/tidisk/pkg/types"
	"github.com/weberc2/tidisk/pkg/volume"
)

// TIFilesExtension marks host files holding a TIFILES header.
const TIFilesExtension = ".tfi"

type Options struct {
	// TIFiles writes every file with a TIFILES header so that its type
	// survives the round trip. Otherwise only the content is written.
	TIFiles   bool
	Overwrite bool
	Logger    *slog.Logger
}

// Copied records one file copied between the volume and the host.
type Copied struct {
	Path     string `json:"path"`
	HostPath string `json:"hostPath"`
}

func (options *Options) logger() *slog.Logger {
	if options.Logger == nil {
		return slog.Default()
	}
	return options.Logger
}

func join(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + string(encode.Separator) + name
}

// HostName is the host file name for the volume file `name`.
func HostName(name string, tifiles bool) string {
	base := slug.Make(name)
	if base == "" {
		base = "file"
	}
	if tifiles {
		return base + TIFilesExtension
	}
	return base
}

// Export writes the tree under the volume directory `dirPath` below
// `hostDir`. Subdirectories become host directories.
func Export(
	v *volume.Volume,
	dirPath string,
	afs afero.Fs,
	hostDir string,
	options Options,
) ([]Copied, error) {
	var copied []Copied
	err := exportDir(v, dirPath, afs, hostDir, &options, &copied)
	return copied, err
}

func exportDir(
	v *volume.Volume,
	dirPath string,
	afs afero.Fs,
	hostDir string,
	options *Options,
	copied *[]Copied,
) error {
	entries, err := v.List(dirPath)
	if err != nil {
		return fmt.Errorf("exporting `%s`: %w", dirPath, err)
	}
	if err := afs.MkdirAll(hostDir, 0o755); err != nil {
		return fmt.Errorf("exporting `%s`: creating `%s`: %w", dirPath, hostDir, err)
	}

	// distinct TI names can share a slug
	used := make(map[string]struct{}, len(entries))
	unique := func(name string) string {
		candidate := name
		for i := 2; ; i++ {
			if _, taken := used[candidate]; !taken {
				used[candidate] = struct{}{}
				return candidate
			}
			ext := filepath.Ext(name)
			candidate = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), i, ext)
		}
	}

	for _, entry := range entries {
		path := join(dirPath, entry.Name)
		if entry.Directory {
			sub := filepath.Join(hostDir, unique(HostName(entry.Name, false)))
			if err := exportDir(v, path, afs, sub, options, copied); err != nil {
				return err
			}
			continue
		}

		var data []byte
		if options.TIFiles {
			data, err = v.ExportTIFiles(path)
		} else {
			data, err = v.ReadFile(path)
		}
		if err != nil {
			return fmt.Errorf("exporting `%s`: %w", path, err)
		}
		hostPath := filepath.Join(hostDir, unique(HostName(entry.Name, options.TIFiles)))
		if !options.Overwrite {
			if exists, err := afero.Exists(afs, hostPath); err != nil {
				return fmt.Errorf("exporting `%s`: %w", path, err)
			} else if exists {
				return fmt.Errorf(
					"exporting `%s`: host file `%s`: %w",
					path,
					hostPath,
					AlreadyExistsErr,
				)
			}
		}
		if err := afero.WriteFile(afs, hostPath, data, 0o644); err != nil {
			return fmt.Errorf("exporting `%s`: %w", path, err)
		}
		options.logger().Debug("exported file", "path", path, "hostPath", hostPath)
		*copied = append(*copied, Copied{Path: path, HostPath: hostPath})
	}
	return nil
}

// VolumeName derives a volume file name from a host file name: the
// extension is dropped, the rest upper-cased, separators replaced and the
// result cut to the name length.
func VolumeName(hostName string) (string, error) {
	base := strings.TrimSuffix(hostName, filepath.Ext(hostName))
	name := strings.Map(func(r rune) rune {
		switch {
		case r == encode.Separator, r == ' ', r == '-':
			return '_'
		case r > 0x7E || r < 0x20:
			return -1
		}
		return r
	}, strings.ToUpper(base))
	if len(name) > int(encode.NameSize) {
		name = name[:encode.NameSize]
	}
	if err := encode.ValidateName(name); err != nil {
		return "", fmt.Errorf("deriving volume name from `%s`: %w", hostName, err)
	}
	return name, nil
}

// Import copies the files of `hostDir` into the volume directory `dirPath`.
// TIFILES files keep their header's name and type; any other file becomes a
// program named after the host file. Host subdirectories are imported as
// volume subdirectories.
func Import(
	v *volume.Volume,
	dirPath string,
	afs afero.Fs,
	hostDir string,
	options Options,
) ([]Copied, error) {
	var copied []Copied
	err := importDir(v, dirPath, afs, hostDir, &options, &copied)
	return copied, err
}

func importDir(
	v *volume.Volume,
	dirPath string,
	afs afero.Fs,
	hostDir string,
	options *Options,
	copied *[]Copied,
) error {
	infos, err := afero.ReadDir(afs, hostDir)
	if err != nil {
		return fmt.Errorf("importing `%s`: %w", hostDir, err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	for _, info := range infos {
		hostPath := filepath.Join(hostDir, info.Name())
		name, err := VolumeName(info.Name())
		if err != nil {
			options.logger().Warn("skipping host file", "hostPath", hostPath, "err", err)
			continue
		}

		if info.IsDir() {
			path := join(dirPath, name)
			if _, _, err := fs.Walk(v.FS, path); err != nil {
				if err := v.MakeDirectory(path); err != nil {
					return fmt.Errorf("importing `%s`: %w", hostPath, err)
				}
			}
			if err := importDir(v, path, afs, hostPath, options, copied); err != nil {
				return err
			}
			continue
		}

		data, err := afero.ReadFile(afs, hostPath)
		if err != nil {
			return fmt.Errorf("importing `%s`: %w", hostPath, err)
		}
		if tifiles.Is(data) {
			if name, err = v.ImportTIFiles(dirPath, name, data, options.Overwrite); err != nil {
				return fmt.Errorf("importing `%s`: %w", hostPath, err)
			}
		} else if err := v.WriteFile(
			join(dirPath, name),
			&fs.NewFile{
				FileHeader: encode.FileHeader{
					Flags:     FlagProgram,
					EOFOffset: uint8(len(data) % int(SectorSize)),
				},
				Content: data,
			},
			options.Overwrite,
		); err != nil {
			return fmt.Errorf("importing `%s`: %w", hostPath, err)
		}
		options.logger().Debug("imported file", "path", join(dirPath, name), "hostPath", hostPath)
		*copied = append(*copied, Copied{Path: join(dirPath, name), HostPath: hostPath})
	}
	return nil
}
