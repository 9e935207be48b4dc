// Package project loads encdelta.toml, the per-project settings of the CLI.
package project

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"encdelta/internal/chainstore"
	"encdelta/internal/diag"
	"encdelta/internal/meta"
	"encdelta/internal/trace"
)

// Manifest is a loaded encdelta.toml.
type Manifest struct {
	Path   string
	Root   string
	Config Config
}

// Config mirrors the sections of encdelta.toml.
type Config struct {
	Runtime RuntimeConfig `toml:"runtime"`
	Emit    EmitConfig    `toml:"emit"`
	Trace   TraceConfig   `toml:"trace"`
	Store   StoreConfig   `toml:"store"`
}

// RuntimeConfig lists what the target runtime provides.
type RuntimeConfig struct {
	WellKnownAttributes []string `toml:"well_known_attributes"`
}

// EmitConfig tunes delta computation.
type EmitConfig struct {
	Order string `toml:"order"`
	Jobs  int    `toml:"jobs"`
}

// TraceConfig selects the tracer.
type TraceConfig struct {
	Level  string `toml:"level"`
	Mode   string `toml:"mode"`
	Output string `toml:"output"`
}

// StoreConfig selects where accepted generations are persisted.
type StoreConfig struct {
	Kind string `toml:"kind"`
	Path string `toml:"path"`
}

// Defaults returns the settings used when no manifest exists.
func Defaults() Config {
	return Config{
		Emit:  EmitConfig{Order: meta.OrderObserved},
		Trace: TraceConfig{Level: "off", Mode: "stream", Output: "-"},
		Store: StoreConfig{Kind: string(chainstore.KindNone)},
	}
}

// LoadManifest finds encdelta.toml above startDir and loads it. ok is false
// when there is none.
func LoadManifest(startDir string) (*Manifest, bool, error) {
	manifestPath, ok, err := FindManifest(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := LoadConfig(manifestPath)
	if err != nil {
		return nil, true, err
	}
	return &Manifest{
		Path:   manifestPath,
		Root:   filepath.Dir(manifestPath),
		Config: cfg,
	}, true, nil
}

// LoadConfig parses path over the defaults and validates every value set.
func LoadConfig(path string) (Config, error) {
	cfg := Defaults()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return Config{}, wrapIO(path, err)
		}
		return Config{}, invalid(path, "failed to parse TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, invalid(path, "unknown key %s", undecoded[0])
	}
	if md.IsDefined("emit", "order") {
		if _, err := meta.ParseOrder(cfg.Emit.Order); err != nil {
			return Config{}, invalid(path, "[emit].order: %w", err)
		}
	}
	if md.IsDefined("emit", "jobs") && cfg.Emit.Jobs < 0 {
		return Config{}, invalid(path, "[emit].jobs must not be negative")
	}
	if md.IsDefined("trace", "level") {
		if _, err := trace.ParseLevel(cfg.Trace.Level); err != nil {
			return Config{}, invalid(path, "[trace].level: %w", err)
		}
	}
	if md.IsDefined("trace", "mode") {
		if _, err := trace.ParseMode(cfg.Trace.Mode); err != nil {
			return Config{}, invalid(path, "[trace].mode: %w", err)
		}
	}
	if md.IsDefined("store", "kind") {
		kind, err := chainstore.ParseKind(cfg.Store.Kind)
		if err != nil {
			return Config{}, invalid(path, "[store].kind: %w", err)
		}
		if kind == chainstore.KindSQLite && strings.TrimSpace(cfg.Store.Path) == "" {
			return Config{}, invalid(path, "missing [store].path for sqlite store")
		}
	}
	for i, attr := range cfg.Runtime.WellKnownAttributes {
		if strings.TrimSpace(attr) == "" {
			return Config{}, invalid(path, "[runtime].well_known_attributes[%d] is empty", i)
		}
	}
	return cfg, nil
}

func wrapIO(path string, err error) error {
	return diag.Wrap(diag.IOLoadFileError, diag.At(path), err)
}

func invalid(path, format string, args ...any) error {
	return diag.Errorf(diag.PrjManifestInvalid, diag.At(path), format, args...)
}

// StorePath resolves the store path relative to the manifest directory.
func (m *Manifest) StorePath() string {
	p := m.Config.Store.Path
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Root, filepath.FromSlash(p))
}
