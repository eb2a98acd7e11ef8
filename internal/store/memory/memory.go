// Package memory is an in-process store backend.
//
// All handles opened from one Database share its data. Aggregates carry a
// version for optimistic concurrency, documents are last-writer-wins.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/wesleyorama2/writebench/internal/store"
	"github.com/wesleyorama2/writebench/internal/txn"
)

type aggregateRow struct {
	version int64
	data    []byte
}

// Database holds the shared state of the memory backend.
type Database struct {
	mu         sync.RWMutex
	documents  map[string][]byte
	aggregates map[string]aggregateRow

	commits atomic.Int64
	async   sync.WaitGroup
}

// NewDatabase creates an empty database.
func NewDatabase() *Database {
	return &Database{
		documents:  make(map[string][]byte),
		aggregates: make(map[string]aggregateRow),
	}
}

// Len returns the number of stored documents.
func (d *Database) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.documents)
}

// Truncate removes every document. Aggregates are kept.
func (d *Database) Truncate() {
	d.mu.Lock()
	d.documents = make(map[string][]byte)
	d.mu.Unlock()
}

// Document returns the payload stored under id.
func (d *Database) Document(id string) ([]byte, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	doc, ok := d.documents[id]
	return doc, ok
}

// Commits returns how many session commits and bulk flushes were applied.
func (d *Database) Commits() int64 {
	return d.commits.Load()
}

// WaitAsync blocks until every fire-and-forget write has landed.
func (d *Database) WaitAsync() {
	d.async.Wait()
}

func (d *Database) apply(items []store.Item) {
	d.mu.Lock()
	for _, item := range items {
		d.documents[item.ID()] = item.Payload
	}
	d.mu.Unlock()
	d.commits.Add(1)
}

// Provider opens handles onto one Database.
type Provider struct {
	name string
	db   *Database
}

// NewProvider creates a provider. A nil db gets a fresh Database.
func NewProvider(name string, db *Database) *Provider {
	if db == nil {
		db = NewDatabase()
	}
	return &Provider{name: name, db: db}
}

func (p *Provider) Name() string { return p.name }

// Database exposes the shared state, mostly for tests.
func (p *Provider) Database() *Database { return p.db }

func (p *Provider) Open(ctx context.Context) (store.Store, error) {
	return Open(p.db), nil
}

// Store is a handle onto a Database.
type Store struct {
	db     *Database
	closed atomic.Bool
}

// Open returns a new handle onto db.
func Open(db *Database) *Store {
	return &Store{db: db}
}

// CountDocuments returns the number of stored documents.
func (s *Store) CountDocuments(ctx context.Context) (int64, error) {
	return int64(s.db.Len()), nil
}

// Truncate removes every document of the shared database.
func (s *Store) Truncate(ctx context.Context) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	s.db.Truncate()
	return nil
}

func (s *Store) OpenSession(ctx context.Context) (store.Session, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	return &session{db: s.db}, nil
}

func (s *Store) OpenBulk(ctx context.Context) (store.BulkChannel, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	return &bulk{db: s.db}, nil
}

func (s *Store) LoadAggregate(ctx context.Context, key string) (*store.Aggregate, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}

	s.db.mu.RLock()
	row, ok := s.db.aggregates[key]
	s.db.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("load %s: %w", key, store.ErrNotFound)
	}

	data := make([]byte, len(row.data))
	copy(data, row.data)
	return &store.Aggregate{Key: key, Version: row.version, Data: data}, nil
}

func (s *Store) PersistAggregate(ctx context.Context, agg *store.Aggregate) error {
	if s.closed.Load() {
		return store.ErrClosed
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	current := s.db.aggregates[agg.Key].version
	if current != agg.Version {
		return fmt.Errorf("persist %s: stored version %d, have %d: %w", agg.Key, current, agg.Version, store.ErrWriteConflict)
	}

	data := make([]byte, len(agg.Data))
	copy(data, agg.Data)
	s.db.aggregates[agg.Key] = aggregateRow{version: current + 1, data: data}
	agg.Version = current + 1
	return nil
}

// Enlist adds a participant that votes no once the handle is closed.
func (s *Store) Enlist(ctx context.Context, tx *txn.Transaction) error {
	p := txn.NewParticipant("memory", txn.WithVote(func() error {
		if s.closed.Load() {
			return store.ErrClosed
		}
		return nil
	}))
	return tx.Enlist(p)
}

// WriteAsync stores item on a separate goroutine and returns immediately.
func (s *Store) WriteAsync(ctx context.Context, item store.Item) {
	s.db.async.Add(1)
	go func() {
		defer s.db.async.Done()
		s.db.apply([]store.Item{item})
	}()
}

func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

type session struct {
	db      *Database
	pending []store.Item
	closed  bool
}

func (s *session) Write(ctx context.Context, item store.Item) error {
	if s.closed {
		return store.ErrClosed
	}
	s.pending = append(s.pending, item)
	return nil
}

func (s *session) Commit(ctx context.Context) error {
	if s.closed {
		return store.ErrClosed
	}
	if len(s.pending) == 0 {
		return nil
	}
	s.db.apply(s.pending)
	s.pending = s.pending[:0]
	return nil
}

func (s *session) Close() error {
	s.closed = true
	s.pending = nil
	return nil
}

type bulk struct {
	db      *Database
	pending []store.Item
	closed  bool
}

func (b *bulk) Write(ctx context.Context, item store.Item) error {
	if b.closed {
		return store.ErrClosed
	}
	b.pending = append(b.pending, item)
	return nil
}

func (b *bulk) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if len(b.pending) > 0 {
		b.db.apply(b.pending)
	}
	b.pending = nil
	return nil
}

var (
	_ store.Store       = (*Store)(nil)
	_ store.Enlister    = (*Store)(nil)
	_ store.AsyncWriter = (*Store)(nil)
	_ store.Counter     = (*Store)(nil)
	_ store.Truncater   = (*Store)(nil)
	_ store.Provider    = (*Provider)(nil)
)
