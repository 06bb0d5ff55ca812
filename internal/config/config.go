// Package config loads the optional YAML configuration file.
//
// The file is checked against an embedded CUE schema before it is decoded,
// so type and enum errors are reported with the offending field path.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// ErrInvalid wraps schema and decoding failures.
var ErrInvalid = errors.New("config: invalid")

// Config holds settings shared by every command.
type Config struct {
	DBDir          string        `yaml:"db_dir"`
	Account        string        `yaml:"account"`
	Format         string        `yaml:"format"`
	LogLevel       string        `yaml:"log_level"`
	AutoSync       time.Duration `yaml:"auto_sync"`
	ReplayInterval time.Duration `yaml:"replay_interval"`
}

// Default returns the settings used when no file or flag says otherwise.
func Default() Config {
	return Config{
		DBDir:    defaultDBDir(),
		Account:  "default",
		Format:   "text",
		LogLevel: "info",
		AutoSync: 2 * time.Second,
	}
}

func defaultDBDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "embarcadero")
	}
	return ".embarcadero"
}

// Load reads path and overlays it on Default. A missing file is an error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates data and overlays it on Default.
func Parse(data []byte) (Config, error) {
	if err := Validate(data); err != nil {
		return Config{}, err
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return cfg, nil
}

// Validate checks YAML data against the configuration schema. Unknown
// fields are rejected.
func Validate(data []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := def.Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level. Unknown names map to info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
