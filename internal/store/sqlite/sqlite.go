// Package sqlite is the embedded store backend, a SQLite file accessed
// through database/sql and mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/wesleyorama2/writebench/internal/store"
	"github.com/wesleyorama2/writebench/internal/txn"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	item_index INTEGER NOT NULL,
	payload    BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS aggregates (
	key     TEXT PRIMARY KEY,
	version INTEGER NOT NULL,
	data    BLOB NOT NULL
);`

const insertDocument = `INSERT OR REPLACE INTO documents (id, item_index, payload) VALUES (?, ?, ?)`

// defaultParams are appended to the DSN unless already present.
var defaultParams = []string{
	"_busy_timeout=30000",
	"_journal_mode=WAL",
	"_txlock=immediate",
}

// DSN appends the connection parameters the benchmark relies on.
func DSN(dsn string) string {
	var b strings.Builder
	b.WriteString(dsn)
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range defaultParams {
		key := p[:strings.IndexByte(p, '=')]
		if strings.Contains(dsn, key+"=") {
			continue
		}
		b.WriteString(sep)
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

// ErrInMemory is returned for in-memory DSNs. Every handle would open its own
// private database, so writes from one handle are invisible to the others.
var ErrInMemory = errors.New("in-memory sqlite databases are not supported")

// IsInMemory reports whether dsn names an in-memory database.
func IsInMemory(dsn string) bool {
	path, query, _ := strings.Cut(dsn, "?")
	path = strings.TrimPrefix(path, "file:")
	if path == "" || path == ":memory:" {
		return true
	}
	for _, param := range strings.Split(query, "&") {
		if param == "mode=memory" {
			return true
		}
	}
	return false
}

// Provider opens handles onto one SQLite file. Each handle has its own
// connection pool.
type Provider struct {
	name string
	dsn  string
}

// NewProvider creates a provider for the file named by dsn.
func NewProvider(name, dsn string) (*Provider, error) {
	if IsInMemory(dsn) {
		return nil, fmt.Errorf("backend %s: %w", name, ErrInMemory)
	}
	return &Provider{name: name, dsn: dsn}, nil
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Open(ctx context.Context) (store.Store, error) {
	return Open(ctx, p.dsn)
}

// Store is a handle onto a SQLite file.
type Store struct {
	db *sql.DB
}

// Open connects to dsn and creates the schema if needed.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if IsInMemory(dsn) {
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, ErrInMemory)
	}
	db, err := sql.Open("sqlite3", DSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Truncate removes every document.
func (s *Store) Truncate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents`)
	return err
}

// CountDocuments returns the number of stored documents.
func (s *Store) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

func (s *Store) OpenSession(ctx context.Context) (store.Session, error) {
	return &session{db: s.db}, nil
}

func (s *Store) OpenBulk(ctx context.Context) (store.BulkChannel, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin bulk: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertDocument)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("prepare bulk insert: %w", err)
	}
	return &bulk{tx: tx, stmt: stmt}, nil
}

func (s *Store) LoadAggregate(ctx context.Context, key string) (*store.Aggregate, error) {
	agg := &store.Aggregate{Key: key}
	err := s.db.QueryRowContext(ctx, `SELECT version, data FROM aggregates WHERE key = ?`, key).
		Scan(&agg.Version, &agg.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load %s: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return agg, nil
}

func (s *Store) PersistAggregate(ctx context.Context, agg *store.Aggregate) error {
	var (
		res sql.Result
		err error
	)
	if agg.Version == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO aggregates (key, version, data) VALUES (?, 1, ?) ON CONFLICT(key) DO NOTHING`,
			agg.Key, agg.Data)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE aggregates SET version = version + 1, data = ? WHERE key = ? AND version = ?`,
			agg.Data, agg.Key, agg.Version)
	}
	if err != nil {
		return fmt.Errorf("persist %s: %w", agg.Key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("persist %s: %w", agg.Key, err)
	}
	if n == 0 {
		return fmt.Errorf("persist %s at version %d: %w", agg.Key, agg.Version, store.ErrWriteConflict)
	}
	agg.Version++
	return nil
}

// Enlist adds a participant that votes no when the database is unreachable.
func (s *Store) Enlist(ctx context.Context, tx *txn.Transaction) error {
	return tx.Enlist(txn.NewParticipant("sqlite", txn.WithVote(func() error {
		return s.db.PingContext(ctx)
	})))
}

func (s *Store) Close() error {
	return s.db.Close()
}

// session begins its transaction on the first write so an idle session
// holds no lock.
type session struct {
	db *sql.DB
	tx *sql.Tx
}

func (s *session) Write(ctx context.Context, item store.Item) error {
	if s.db == nil {
		return store.ErrClosed
	}
	if s.tx == nil {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		s.tx = tx
	}
	if _, err := s.tx.ExecContext(ctx, insertDocument, item.ID(), item.Index, item.Payload); err != nil {
		return fmt.Errorf("write %s: %w", item.ID(), err)
	}
	return nil
}

func (s *session) Commit(ctx context.Context) error {
	if s.db == nil {
		return store.ErrClosed
	}
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *session) Close() error {
	var err error
	if s.tx != nil {
		err = s.tx.Rollback()
		s.tx = nil
	}
	s.db = nil
	return err
}

type bulk struct {
	tx   *sql.Tx
	stmt *sql.Stmt
}

func (b *bulk) Write(ctx context.Context, item store.Item) error {
	if b.tx == nil {
		return store.ErrClosed
	}
	if _, err := b.stmt.ExecContext(ctx, item.ID(), item.Index, item.Payload); err != nil {
		return fmt.Errorf("bulk write %s: %w", item.ID(), err)
	}
	return nil
}

func (b *bulk) Close() error {
	if b.tx == nil {
		return nil
	}
	tx := b.tx
	b.tx = nil
	if err := b.stmt.Close(); err != nil {
		tx.Rollback()
		return fmt.Errorf("bulk flush: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("bulk flush: %w", err)
	}
	return nil
}

var (
	_ store.Store     = (*Store)(nil)
	_ store.Enlister  = (*Store)(nil)
	_ store.Counter   = (*Store)(nil)
	_ store.Truncater = (*Store)(nil)
	_ store.Provider  = (*Provider)(nil)
)
