// Package sqldb provides a backend storing the tree in a relational database.
//
// The layout follows two layers:
//
// Layer 1: In-memory B-tree for fast path → ID lookups (keys map)
// Layer 2: Database tables for node metadata (treefs_nodes) and file
// content split into ordered chunks (treefs_chunks)
//
// Dialects only differ in placeholders and column types, so the sqlite and
// postgres packages construct the same SQLBackend.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/mwantia/treefs/backend"
	"github.com/mwantia/treefs/data"
	"github.com/tidwall/btree"
)

// DefaultChunkSize is the size of one stored content chunk.
const DefaultChunkSize = 256 * 1024

// Dialect describes the database specific parts of the backend.
type Dialect struct {
	Name        string
	Placeholder sq.PlaceholderFormat
	Schema      []string
}

type SQLBackend struct {
	mu    sync.RWMutex
	guard *backend.Guard
	db    *sql.DB

	dialect   Dialect
	builder   sq.StatementBuilderType
	chunkSize int
	onClose   func()

	// In-memory B-tree for fast key lookups
	keys *btree.Map[string, string]
}

type SQLOption func(*SQLBackend) error

// WithChunkSize sets the size content is split into.
func WithChunkSize(size int) SQLOption {
	return func(sb *SQLBackend) error {
		if size <= 0 {
			return fmt.Errorf("invalid chunk size %d", size)
		}
		sb.chunkSize = size
		return nil
	}
}

// WithCloseHook registers fn to run after the database was closed.
func WithCloseHook(fn func()) SQLOption {
	return func(sb *SQLBackend) error {
		sb.onClose = fn
		return nil
	}
}

// NewSQLBackend wraps an opened database handle. The schema is created by Open.
func NewSQLBackend(db *sql.DB, dialect Dialect, opts ...SQLOption) (*SQLBackend, error) {
	sb := &SQLBackend{
		guard:     backend.NewGuard(),
		db:        db,
		dialect:   dialect,
		builder:   sq.StatementBuilder.PlaceholderFormat(dialect.Placeholder),
		chunkSize: DefaultChunkSize,
		keys:      btree.NewMap[string, string](0),
	}

	for _, opt := range opts {
		if err := opt(sb); err != nil {
			return nil, err
		}
	}

	return sb, nil
}

// Name returns the identifier name defined for this backend.
func (sb *SQLBackend) Name() string {
	return sb.dialect.Name
}

// DB exposes the underlying handle.
func (sb *SQLBackend) DB() *sql.DB {
	return sb.db
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (sb *SQLBackend) Open(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	// Verify database connection
	if err := sb.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range sb.dialect.Schema {
		if _, err := sb.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	if err := sb.loadKeysUnsafe(ctx); err != nil {
		return err
	}

	if _, ok := sb.keys.Get(data.Root().String()); !ok {
		root := newRow(data.Root(), true, data.DefaultDirMode)
		if err := sb.insertUnsafe(ctx, root); err != nil {
			return fmt.Errorf("failed to create root: %w", err)
		}
	}

	return nil
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (sb *SQLBackend) Close(ctx context.Context) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	sb.keys.Clear()
	err := sb.db.Close()
	if sb.onClose != nil {
		sb.onClose()
	}
	return err
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (sb *SQLBackend) GetCapabilities() *backend.Capabilities {
	return &backend.Capabilities{
		Capabilities: []backend.Capability{
			backend.CapabilityScanDir,
			backend.CapabilitySetInfo,
			backend.CapabilityAppend,
			backend.CapabilityStreaming,
		},
	}
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
