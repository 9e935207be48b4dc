package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"encdelta/internal/chainstore"
	"encdelta/internal/meta"
	"encdelta/internal/project"
)

// settings are the manifest values with command-line overrides applied.
type settings struct {
	manifest  *project.Manifest
	config    project.Config
	order     meta.EmissionOrder
	storeKind chainstore.Kind
	storePath string
}

func errInvalidFlag(name, value, expected string) error {
	return fmt.Errorf("invalid --%s value %q (expected %s)", name, value, expected)
}

// loadSettings reads --config or the nearest encdelta.toml and applies the
// flags the user set explicitly.
func loadSettings(cmd *cobra.Command) (*settings, error) {
	s := &settings{config: project.Defaults()}

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		cfg, err := project.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		abs, err := filepath.Abs(configPath)
		if err != nil {
			return nil, err
		}
		s.manifest = &project.Manifest{Path: abs, Root: filepath.Dir(abs), Config: cfg}
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		m, ok, err := project.LoadManifest(wd)
		if err != nil {
			return nil, err
		}
		if ok {
			s.manifest = m
		}
	}
	if s.manifest != nil {
		s.config = s.manifest.Config
		s.storePath = s.manifest.StorePath()
	} else {
		s.storePath = s.config.Store.Path
	}

	if cmd.Flags().Changed("store") {
		s.config.Store.Kind, _ = cmd.Flags().GetString("store")
	}
	if cmd.Flags().Changed("store-path") {
		s.storePath, _ = cmd.Flags().GetString("store-path")
	}
	if s.storeKind, err = chainstore.ParseKind(s.config.Store.Kind); err != nil {
		return nil, err
	}
	if s.storeKind != chainstore.KindNone && s.storePath == "" {
		return nil, fmt.Errorf("store %q needs a path (--store-path or [store].path)", s.storeKind)
	}

	if f := cmd.Flags().Lookup("order"); f != nil && f.Changed {
		s.config.Emit.Order = f.Value.String()
	}
	if s.order, err = meta.ParseOrder(s.config.Emit.Order); err != nil {
		return nil, err
	}
	if f := cmd.Flags().Lookup("jobs"); f != nil && f.Changed {
		jobs, err := cmd.Flags().GetInt("jobs")
		if err != nil {
			return nil, err
		}
		if jobs < 0 {
			return nil, errInvalidFlag("jobs", f.Value.String(), "a non-negative count")
		}
		s.config.Emit.Jobs = jobs
	}
	return s, nil
}

// openStore opens the configured chain store; nil when persistence is off.
func (s *settings) openStore() (chainstore.Store, error) {
	if s.storeKind == chainstore.KindSQLite {
		if err := os.MkdirAll(filepath.Dir(s.storePath), 0o755); err != nil {
			return nil, err
		}
	}
	return chainstore.Open(s.storeKind, s.storePath)
}
