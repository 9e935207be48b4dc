package chainstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"encdelta/internal/baseline"
)

// SQLStore keeps the chain in a SQLite database, one row per generation.
type SQLStore struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenSQL opens or creates the database at path.
func OpenSQL(path string) (*SQLStore, error) {
	if path == "" {
		return nil, fmt.Errorf("chainstore: sqlite store needs a path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("chainstore: opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("chainstore: setting busy timeout: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS generations (
		ordinal INTEGER PRIMARY KEY,
		enc_id  TEXT NOT NULL,
		base_id TEXT NOT NULL,
		schema  INTEGER NOT NULL,
		data    BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("chainstore: creating table: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Put stores the snapshot, replacing an earlier row of the same generation.
func (s *SQLStore) Put(ctx context.Context, snap baseline.Snapshot) error {
	data, err := msgpack.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("chainstore: encode generation %d: %w", snap.Ordinal, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO generations (ordinal, enc_id, base_id, schema, data) VALUES (?, ?, ?, ?, ?)",
		snap.Ordinal, snap.EncID, snap.BaseID, schemaVersion, data,
	)
	if err != nil {
		return fmt.Errorf("chainstore: saving generation %d: %w", snap.Ordinal, err)
	}
	return nil
}

// Load reads every stored generation in ordinal order.
func (s *SQLStore) Load(ctx context.Context) ([]baseline.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, "SELECT ordinal, schema, data FROM generations ORDER BY ordinal")
	if err != nil {
		return nil, fmt.Errorf("chainstore: querying generations: %w", err)
	}
	defer rows.Close()

	var snaps []baseline.Snapshot
	for rows.Next() {
		var (
			ordinal int
			schema  uint16
			data    []byte
		)
		if err := rows.Scan(&ordinal, &schema, &data); err != nil {
			return nil, fmt.Errorf("chainstore: %w", err)
		}
		if schema != schemaVersion {
			return nil, fmt.Errorf("chainstore: generation %d has schema %d, expected %d", ordinal, schema, schemaVersion)
		}
		var snap baseline.Snapshot
		if err := msgpack.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("chainstore: decode generation %d: %w", ordinal, err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chainstore: %w", err)
	}
	if err := checkChain(snaps); err != nil {
		return nil, err
	}
	return snaps, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
