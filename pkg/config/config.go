// Package config loads tidisk settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"

	"github.com/weberc2/tidisk/pkg/image/detect"
	"github.com/weberc2/tidisk/pkg/image/dump"
)

const (
	envVarPrefix = "TIDISK"
	appName      = "tidisk"
)

type Config struct {
	LogLevel     string `envconfig:"TIDISK_LOG_LEVEL"     yaml:"logLevel"`
	Format       string `envconfig:"TIDISK_FORMAT"        yaml:"format"`
	BlockSectors uint32 `envconfig:"TIDISK_BLOCK_SECTORS" yaml:"blockSectors"`
	CF7Volume    int    `envconfig:"TIDISK_CF7_VOLUME"    yaml:"cf7Volume"`
	Partition    int    `envconfig:"TIDISK_PARTITION"     yaml:"partition"`
	ReadOnly     bool   `envconfig:"TIDISK_READ_ONLY"     yaml:"readOnly"`
	S3Region     string `envconfig:"TIDISK_S3_REGION"     yaml:"s3Region"`
	S3Endpoint   string `envconfig:"TIDISK_S3_ENDPOINT"   yaml:"s3Endpoint"`
	Gzip         bool   `envconfig:"TIDISK_GZIP"          yaml:"gzip"`
}

// Default is the configuration before the file and the environment apply.
func Default() Config {
	return Config{LogLevel: "info", BlockSectors: dump.DefaultBlockSectors}
}

// File is the config file path: TIDISK_CONFIG_FILE, or tidisk.yaml under
// the user's config directory.
func File() string {
	if file := os.Getenv(envVarPrefix + "_CONFIG_FILE"); file != "" {
		return file
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, ".config", appName+".yaml")
}

// Load starts from Default, reads `file` from `afs` when it exists and then
// applies environment overrides.
func Load(afs afero.Fs, file string) (*Config, error) {
	c := Default()
	data, err := afero.ReadFile(afs, file)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading config file `%s`: %w", file, err)
		}
	} else if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshaling config file `%s`: %w", file, err)
	}

	if err := envconfig.Process(envVarPrefix, &c); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if y, e, reason := func() (string, string, string) {
		if _, err := c.Level(); err != nil {
			return "logLevel", "LOG_LEVEL", "wanted debug, info, warn or error"
		}
		if _, err := detect.ParseKind(c.Format); err != nil {
			return "format", "FORMAT", "unknown container format"
		}
		if c.BlockSectors == 0 {
			return "blockSectors", "BLOCK_SECTORS", "must be positive"
		}
		if c.CF7Volume < 0 {
			return "cf7Volume", "CF7_VOLUME", "must not be negative"
		}
		if c.Partition < 0 {
			return "partition", "PARTITION", "must not be negative"
		}
		return "", "", ""
	}(); y != "" {
		return fmt.Errorf(
			"invalid configuration: %s / %s_%s: %s",
			y,
			envVarPrefix,
			e,
			reason,
		)
	}
	return nil
}

func (c *Config) Level() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level `%s`", c.LogLevel)
}

// Detect returns the container options the configuration selects.
func (c *Config) Detect() (detect.Options, error) {
	kind, err := detect.ParseKind(c.Format)
	if err != nil {
		return detect.Options{}, err
	}
	return detect.Options{
		Kind:         kind,
		BlockSectors: c.BlockSectors,
		CF7Volume:    c.CF7Volume,
		Partition:    c.Partition,
	}, nil
}
