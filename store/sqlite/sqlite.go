// Package sqlite implements the graph/vector store contract on an embedded
// SQLite database with a typed schema. SQLite has no native vector index;
// similarity search scores stored embeddings with sqlite-vec's cosine
// function when the extension is loaded, and falls back to an in-memory
// cosine pass otherwise.
package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Glossick/akasha-sub002/store"
)

func init() {
	sqlite_vec.Auto()
}

// Store is the embedded backend. It satisfies store.Provider.
type Store struct {
	path      string
	dim       int
	db        *sql.DB
	vecScored bool // sqlite-vec scalar functions available
}

var _ store.Provider = (*Store)(nil)

// New creates an unconnected Store for the database file at path.
// embeddingDim is the fixed vector dimension for this deployment.
func New(path string, embeddingDim int) *Store {
	return &Store{path: path, dim: embeddingDim}
}

// Connect opens (or creates) the database and initialises the schema.
// Idempotent: a connected store is left untouched.
func (s *Store) Connect(ctx context.Context) error {
	if s.db != nil {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", s.path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s.db = db
	return nil
}

// Disconnect closes the database. Idempotent.
func (s *Store) Disconnect(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Ping is a lightweight liveness check.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("sqlite: not connected")
	}
	return s.db.PingContext(ctx)
}

// EnsureVectorIndex probes for sqlite-vec. SQLite has no native vector
// index either way; with the extension loaded the cosine scoring is pushed
// into SQL, without it the provider scans candidates and scores in memory.
// Always returns nil: absence of the extension is a degradation, not a
// failure.
func (s *Store) EnsureVectorIndex(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("sqlite: not connected")
	}
	var version string
	if err := s.db.QueryRowContext(ctx, "SELECT vec_version()").Scan(&version); err == nil {
		s.vecScored = true
	} else {
		s.vecScored = false
	}
	return nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS entities (
    id TEXT PRIMARY KEY,
    label TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    scope_id TEXT NOT NULL DEFAULT '',
    context_ids JSON,
    recorded_at TEXT,
    valid_from TEXT,
    valid_to TEXT,
    properties JSON,
    embedding BLOB
);

CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    text TEXT NOT NULL,
    text_hash TEXT NOT NULL,
    scope_id TEXT NOT NULL DEFAULT '',
    context_ids JSON,
    recorded_at TEXT,
    valid_from TEXT,
    valid_to TEXT,
    properties JSON,
    embedding BLOB,
    UNIQUE(scope_id, text_hash)
);

CREATE TABLE IF NOT EXISTS relationships (
    id TEXT PRIMARY KEY,
    rel_type TEXT NOT NULL,
    from_id TEXT NOT NULL,
    to_id TEXT NOT NULL,
    scope_id TEXT NOT NULL DEFAULT '',
    recorded_at TEXT,
    valid_from TEXT,
    valid_to TEXT,
    properties JSON,
    UNIQUE(scope_id, from_id, to_id, rel_type)
);

CREATE INDEX IF NOT EXISTS idx_entities_scope_name ON entities(scope_id, name);
CREATE INDEX IF NOT EXISTS idx_entities_scope_label ON entities(scope_id, label);
CREATE INDEX IF NOT EXISTS idx_documents_scope ON documents(scope_id);
CREATE INDEX IF NOT EXISTS idx_relationships_from ON relationships(from_id);
CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(to_id);
CREATE INDEX IF NOT EXISTS idx_relationships_scope_type ON relationships(scope_id, rel_type);
`

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func textHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// serializeFloat32 converts a float32 slice to little-endian bytes; the
// layout matches what sqlite-vec expects for its distance functions.
func serializeFloat32(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func deserializeFloat32(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

func marshalJSON(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalProps(ns sql.NullString) map[string]any {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var props map[string]any
	if err := json.Unmarshal([]byte(ns.String), &props); err != nil {
		return nil
	}
	return props
}

func unmarshalContexts(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(ns.String), &ids); err != nil {
		return nil
	}
	return ids
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// matchesFilter applies a property-equality filter in memory. Filters
// cannot be pushed into SQL for JSON property bags without an expression
// index, so listing applies them post-query.
func matchesFilter(props map[string]any, sys map[string]any, filter map[string]any) bool {
	for k, want := range filter {
		var got any
		var ok bool
		if got, ok = sys[k]; !ok {
			if props == nil {
				return false
			}
			if got, ok = props[k]; !ok {
				return false
			}
		}
		if fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}
