// Package chainstore persists the generations of an edit session so a chain
// can be audited or restored after the process exits.
package chainstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"encdelta/internal/baseline"
)

// schemaVersion is bumped whenever the Record layout changes.
const schemaVersion uint16 = 1

// ErrChainBroken reports stored generations that do not form a chain.
var ErrChainBroken = errors.New("chainstore: stored generations do not form a chain")

// Record is the persisted form of one generation.
type Record struct {
	Schema   uint16            `msgpack:"schema"`
	Snapshot baseline.Snapshot `msgpack:"snapshot"`
}

// Store keeps one record per generation ordinal.
type Store interface {
	Put(ctx context.Context, snap baseline.Snapshot) error
	Load(ctx context.Context) ([]baseline.Snapshot, error)
	Close() error
}

// Kind selects a Store implementation.
type Kind string

const (
	KindNone   Kind = "none"
	KindDisk   Kind = "disk"
	KindSQLite Kind = "sqlite"
)

// ParseKind converts a string to Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case "", KindNone:
		return KindNone, nil
	case KindDisk, KindSQLite:
		return k, nil
	}
	return KindNone, fmt.Errorf("chainstore: invalid store kind %q (expected: none|disk|sqlite)", s)
}

// Open returns the store of the given kind at path. KindNone returns nil.
func Open(kind Kind, path string) (Store, error) {
	switch kind {
	case KindNone:
		return nil, nil
	case KindDisk:
		s, err := OpenDisk(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case KindSQLite:
		s, err := OpenSQL(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("chainstore: unknown store kind %q", kind)
}

// checkChain verifies that snaps are consecutive generations starting at 0,
// each based on the one before.
func checkChain(snaps []baseline.Snapshot) error {
	for i, s := range snaps {
		if s.Ordinal != i {
			return fmt.Errorf("%w: expected generation %d, found %d", ErrChainBroken, i, s.Ordinal)
		}
		if i > 0 && s.BaseID != snaps[i-1].EncID {
			return fmt.Errorf("%w: generation %d is based on %s, not %s", ErrChainBroken, i, s.BaseID, snaps[i-1].EncID)
		}
	}
	return nil
}
