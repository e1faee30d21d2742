package sharedmemory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
)

// Store is the durable, process-wide memory store. Embeddings are
// computed outside any lock (Embed is a network call); the row insert
// and its vector-index insert happen together inside one critical
// section so a reader never observes a memory row without its vector,
// or vice versa.
type Store struct {
	db       *sql.DB
	mu       sync.Mutex
	dim      int
	hasVec   bool
	embedder Embedder
	logger   *slog.Logger
}

// New opens (creating if necessary) the SQLite-backed store at path,
// loading the vec0 extension if RESEARCH_VEC0_EXTENSION_PATH is set.
func New(ctx context.Context, path string, embedder Embedder, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sharedmemory")

	registerDriver(logger)

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open shared memory database: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite3 + a single mutex-guarded writer path

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping shared memory database: %w", err)
	}

	hasVec, err := initSchema(db, embedder.Dimension(), logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:       db,
		dim:      embedder.Dimension(),
		hasVec:   hasVec,
		embedder: embedder,
		logger:   logger,
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
