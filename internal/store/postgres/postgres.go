// Package postgres is the networked store backend built on pgx.
//
// Each handle owns a pgxpool.Pool. Sessions pin one pooled connection for
// their lifetime, bulk channels stream rows through COPY.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wesleyorama2/writebench/internal/store"
	"github.com/wesleyorama2/writebench/internal/txn"
)

// documents has no key on id: COPY cannot upsert, so repeated runs append.
const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT NOT NULL,
	item_index BIGINT NOT NULL,
	payload    JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS aggregates (
	key     TEXT PRIMARY KEY,
	version BIGINT NOT NULL,
	data    JSONB NOT NULL
);`

const insertDocument = `INSERT INTO documents (id, item_index, payload) VALUES ($1, $2, $3)`

var documentColumns = []string{"id", "item_index", "payload"}

// Provider opens pools against one PostgreSQL database.
type Provider struct {
	name string
	dsn  string
}

// NewProvider creates a provider for the connection string dsn.
func NewProvider(name, dsn string) *Provider {
	return &Provider{name: name, dsn: dsn}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Open(ctx context.Context) (store.Store, error) {
	return Open(ctx, p.dsn)
}

// Store is a handle onto a PostgreSQL database.
type Store struct {
	pool *pgxpool.Pool
}

// Open creates a pool for dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// CountDocuments returns the number of stored document rows.
func (s *Store) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// Truncate removes every document.
func (s *Store) Truncate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE TABLE documents`)
	return err
}

func (s *Store) OpenSession(ctx context.Context) (store.Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &session{conn: conn}, nil
}

func (s *Store) OpenBulk(ctx context.Context) (store.BulkChannel, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	b := &bulk{
		items: make(chan store.Item, 256),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(b.done)
		defer conn.Release()
		_, b.err = conn.CopyFrom(ctx, pgx.Identifier{"documents"}, documentColumns, &channelSource{items: b.items})
	}()
	return b, nil
}

func (s *Store) LoadAggregate(ctx context.Context, key string) (*store.Aggregate, error) {
	agg := &store.Aggregate{Key: key}
	err := s.pool.QueryRow(ctx, `SELECT version, data FROM aggregates WHERE key = $1`, key).
		Scan(&agg.Version, &agg.Data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("load %s: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return agg, nil
}

func (s *Store) PersistAggregate(ctx context.Context, agg *store.Aggregate) error {
	var (
		affected int64
		err      error
	)
	if agg.Version == 0 {
		tag, execErr := s.pool.Exec(ctx,
			`INSERT INTO aggregates (key, version, data) VALUES ($1, 1, $2) ON CONFLICT (key) DO NOTHING`,
			agg.Key, agg.Data)
		affected, err = tag.RowsAffected(), execErr
	} else {
		tag, execErr := s.pool.Exec(ctx,
			`UPDATE aggregates SET version = version + 1, data = $1 WHERE key = $2 AND version = $3`,
			agg.Data, agg.Key, agg.Version)
		affected, err = tag.RowsAffected(), execErr
	}
	if err != nil {
		return fmt.Errorf("persist %s: %w", agg.Key, err)
	}
	if affected == 0 {
		return fmt.Errorf("persist %s at version %d: %w", agg.Key, agg.Version, store.ErrWriteConflict)
	}
	agg.Version++
	return nil
}

// Enlist adds a participant that votes no when the server does not answer.
func (s *Store) Enlist(ctx context.Context, tx *txn.Transaction) error {
	return tx.Enlist(txn.NewParticipant("postgres", txn.WithVote(func() error {
		return s.pool.Ping(ctx)
	})))
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

type session struct {
	conn *pgxpool.Conn
	tx   pgx.Tx
}

func (s *session) Write(ctx context.Context, item store.Item) error {
	if s.conn == nil {
		return store.ErrClosed
	}
	if s.tx == nil {
		tx, err := s.conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		s.tx = tx
	}
	if _, err := s.tx.Exec(ctx, insertDocument, item.ID(), item.Index, item.Payload); err != nil {
		return fmt.Errorf("write %s: %w", item.ID(), err)
	}
	return nil
}

func (s *session) Commit(ctx context.Context) error {
	if s.conn == nil {
		return store.ErrClosed
	}
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit(ctx)
	s.tx = nil
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *session) Close() error {
	if s.conn == nil {
		return nil
	}
	var err error
	if s.tx != nil {
		err = s.tx.Rollback(context.Background())
		s.tx = nil
	}
	s.conn.Release()
	s.conn = nil
	return err
}

type bulk struct {
	items     chan store.Item
	done      chan struct{}
	err       error
	closeOnce sync.Once
}

func (b *bulk) Write(ctx context.Context, item store.Item) error {
	select {
	case <-b.done:
		if b.err != nil {
			return fmt.Errorf("bulk write: %w", b.err)
		}
		return store.ErrClosed
	default:
	}

	select {
	case b.items <- item:
		return nil
	case <-b.done:
		return fmt.Errorf("bulk write: %w", b.err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *bulk) Close() error {
	b.closeOnce.Do(func() { close(b.items) })
	<-b.done
	if b.err != nil {
		return fmt.Errorf("bulk flush: %w", b.err)
	}
	return nil
}

// channelSource feeds COPY from a channel until it is closed.
type channelSource struct {
	items <-chan store.Item
	cur   store.Item
}

func (c *channelSource) Next() bool {
	item, ok := <-c.items
	if !ok {
		return false
	}
	c.cur = item
	return true
}

func (c *channelSource) Values() ([]any, error) {
	return []any{c.cur.ID(), c.cur.Index, c.cur.Payload}, nil
}

func (c *channelSource) Err() error { return nil }

var (
	_ store.Store        = (*Store)(nil)
	_ store.Enlister     = (*Store)(nil)
	_ store.Counter      = (*Store)(nil)
	_ store.Truncater    = (*Store)(nil)
	_ store.Provider     = (*Provider)(nil)
	_ pgx.CopyFromSource = (*channelSource)(nil)
)
