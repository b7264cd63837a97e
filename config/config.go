// Package config loads the YAML configuration of the treefs binary.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mwantia/treefs/data"
	"github.com/mwantia/treefs/log"
	"github.com/mwantia/treefs/mount"
	"github.com/mwantia/treefs/opener"
	"github.com/mwantia/treefs/tree"
	"github.com/mwantia/treefs/wrap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Mounts     []MountConfig    `yaml:"mounts,omitempty"`
	Operations OperationsConfig `yaml:"operations"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	File    string `yaml:"file,omitempty"`
	JSON    bool   `yaml:"json,omitempty"`
	NoColor bool   `yaml:"no_color,omitempty"`
}

// MountConfig attaches the backend described by URL at Path.
// A mount at "/" replaces the default in-memory root.
type MountConfig struct {
	Path     string `yaml:"path"`
	URL      string `yaml:"url"`
	ReadOnly bool   `yaml:"read_only,omitempty"`
}

// OperationsConfig holds defaults for copy, move and removetree.
type OperationsConfig struct {
	Workers      int    `yaml:"workers"`
	Overwrite    string `yaml:"overwrite"`
	ChunkSize    int    `yaml:"chunk_size"`
	OnError      string `yaml:"on_error"`
	PreserveTime bool   `yaml:"preserve_time,omitempty"`
}

// Default returns the configuration used without a config file.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: "warn",
		},
		Operations: OperationsConfig{
			Workers:   1,
			Overwrite: tree.OverwriteAlways.String(),
			ChunkSize: tree.DefaultChunkSize,
			OnError:   "ignore",
		},
	}
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults. Unknown fields are rejected.
func Parse(content []byte) (*Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Validate reports every invalid value at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[string]struct{}, len(c.Mounts))
	for i, mnt := range c.Mounts {
		p, err := data.Normalize(mnt.Path)
		if err != nil {
			errs = append(errs, fmt.Errorf("mounts[%d]: invalid path '%s'", i, mnt.Path))
			continue
		}
		if _, exists := seen[p.String()]; exists {
			errs = append(errs, fmt.Errorf("mounts[%d]: duplicate path '%s'", i, p))
		}
		seen[p.String()] = struct{}{}

		if _, err := opener.Parse(mnt.URL); err != nil {
			errs = append(errs, fmt.Errorf("mounts[%d]: %w", i, err))
		}
	}

	if _, err := c.TreeOptions(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Logger creates the configured logger. Terminal output goes to w; a
// configured file replaces it.
func (c *Config) Logger(name string, w io.Writer) *log.Logger {
	level, _ := log.ParseLevel(c.Log.Level)

	var logger *log.Logger
	if c.Log.File != "" {
		logger = log.NewLogger(name, level, c.Log.File, true)
	} else {
		logger = log.NewWriterLogger(name, level, w)
		logger.NoColor = c.Log.NoColor
	}
	logger.JSON = c.Log.JSON
	return logger
}

// TreeOptions converts the operation defaults into tree options.
func (c *Config) TreeOptions() ([]tree.Option, error) {
	overwrite, err := tree.ParseOverwritePolicy(c.Operations.Overwrite)
	if err != nil {
		return nil, fmt.Errorf("operations.overwrite: %w", err)
	}
	onError, err := tree.ParseErrorPolicy(c.Operations.OnError)
	if err != nil {
		return nil, fmt.Errorf("operations.on_error: %w", err)
	}
	if c.Operations.Workers < 1 {
		return nil, fmt.Errorf("operations.workers: must be at least 1")
	}
	if c.Operations.ChunkSize < 1 {
		return nil, fmt.Errorf("operations.chunk_size: must be at least 1")
	}

	return []tree.Option{
		tree.WithOverwrite(overwrite),
		tree.WithOnError(onError),
		tree.WithWorkers(c.Operations.Workers),
		tree.WithChunkSize(c.Operations.ChunkSize),
		tree.WithPreserveTime(c.Operations.PreserveTime),
	}, nil
}

// Build opens every configured backend and mounts it. Mounts are applied
// in order, so parents must come before nested mount points.
func (c *Config) Build(ctx context.Context, registry *opener.Registry, logger *log.Logger) (*mount.MountFS, error) {
	if registry == nil {
		registry = opener.Default
	}

	var root *MountConfig
	for i := range c.Mounts {
		if p, err := data.Normalize(c.Mounts[i].Path); err == nil && p.IsRoot() {
			root = &c.Mounts[i]
		}
	}

	mfs := mount.New(nil, logger)
	if root != nil {
		b, err := registry.Open(ctx, root.URL)
		if err != nil {
			return nil, fmt.Errorf("mount '/': %w", err)
		}
		if root.ReadOnly {
			b = wrap.ReadOnly(b)
		}
		mfs = mount.New(b, logger)
	}
	if err := mfs.Open(ctx); err != nil {
		return nil, err
	}

	for _, mnt := range c.Mounts {
		p, err := data.Normalize(mnt.Path)
		if err != nil {
			mfs.Close(ctx)
			return nil, err
		}
		if p.IsRoot() {
			continue
		}

		b, err := registry.Open(ctx, mnt.URL)
		if err != nil {
			mfs.Close(ctx)
			return nil, fmt.Errorf("mount '%s': %w", p, err)
		}
		// The registry already opened b; Mount opens it again, which every
		// backend treats as a no-op.
		if err := mfs.Mount(ctx, p, b, mount.WithReadOnly(mnt.ReadOnly)); err != nil {
			b.Close(ctx)
			mfs.Close(ctx)
			return nil, fmt.Errorf("mount '%s': %w", p, err)
		}
	}

	return mfs, nil
}
