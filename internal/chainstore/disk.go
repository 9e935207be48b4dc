package chainstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"encdelta/internal/baseline"
)

// DiskStore writes one msgpack file per generation into a directory.
// Thread-safe for concurrent access.
type DiskStore struct {
	mu  sync.RWMutex
	dir string
}

// OpenDisk creates the directory if needed. An empty dir selects
// $XDG_CACHE_HOME/encdelta/chain.
func OpenDisk(dir string) (*DiskStore, error) {
	if dir == "" {
		base := os.Getenv("XDG_CACHE_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			base = filepath.Join(home, ".cache")
		}
		dir = filepath.Join(base, "encdelta", "chain")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("chainstore: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the directory the store writes to.
func (s *DiskStore) Dir() string { return s.dir }

func (s *DiskStore) pathFor(ordinal int) string {
	return filepath.Join(s.dir, fmt.Sprintf("gen-%06d.mp", ordinal))
}

// Put writes the snapshot atomically, replacing an earlier record of the
// same generation.
func (s *DiskStore) Put(ctx context.Context, snap baseline.Snapshot) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pathFor(snap.Ordinal)
	f, err := os.CreateTemp(s.dir, "tmp-*")
	if err != nil {
		return fmt.Errorf("chainstore: %w", err)
	}
	defer func() {
		if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	}()

	if err := msgpack.NewEncoder(f).Encode(&Record{Schema: schemaVersion, Snapshot: snap}); err != nil {
		_ = f.Close()
		return fmt.Errorf("chainstore: encode generation %d: %w", snap.Ordinal, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("chainstore: %w", err)
	}
	return os.Rename(f.Name(), p)
}

// Load reads every stored generation in ordinal order.
func (s *DiskStore) Load(ctx context.Context) ([]baseline.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("chainstore: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "gen-") && strings.HasSuffix(e.Name(), ".mp") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	snaps := make([]baseline.Snapshot, 0, len(files))
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := readRecord(filepath.Join(s.dir, name))
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, rec.Snapshot)
	}
	if err := checkChain(snaps); err != nil {
		return nil, err
	}
	return snaps, nil
}

func readRecord(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("chainstore: %w", err)
	}
	defer f.Close()

	var rec Record
	if err := msgpack.NewDecoder(f).Decode(&rec); err != nil {
		return nil, fmt.Errorf("chainstore: decode %s: %w", filepath.Base(path), err)
	}
	if rec.Schema != schemaVersion {
		return nil, fmt.Errorf("chainstore: %s has schema %d, expected %d", filepath.Base(path), rec.Schema, schemaVersion)
	}
	return &rec, nil
}

// Close is a no-op; every Put is durable on return.
func (s *DiskStore) Close() error { return nil }
