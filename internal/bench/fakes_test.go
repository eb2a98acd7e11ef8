package bench

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/writebench/internal/store"
	"github.com/wesleyorama2/writebench/internal/store/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// tickClock advances by step on every reading.
type tickClock struct {
	now  atomic.Int64
	step time.Duration
}

func newTickClock(step time.Duration) *tickClock {
	c := &tickClock{step: step}
	c.now.Store(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())
	return c
}

func (c *tickClock) Now() time.Time {
	return time.Unix(0, c.now.Add(int64(c.step))).UTC()
}

func (c *tickClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// faultyStore wraps a memory store and injects failures.
type faultyStore struct {
	*memory.Store
	sessionErr error
	commitErr  error
	// commitAfter lets that many commits through before commitErr fires.
	commitAfter int64
	commits     *atomic.Int64
}

func (s *faultyStore) OpenSession(ctx context.Context) (store.Session, error) {
	if s.sessionErr != nil {
		return nil, s.sessionErr
	}
	inner, err := s.Store.OpenSession(ctx)
	if err != nil {
		return nil, err
	}
	return &faultySession{Session: inner, store: s}, nil
}

type faultySession struct {
	store.Session
	store *faultyStore
}

func (s *faultySession) Commit(ctx context.Context) error {
	if s.store.commitErr != nil && s.store.commits.Add(1) > s.store.commitAfter {
		return s.store.commitErr
	}
	return s.Session.Commit(ctx)
}

// faultyProvider hands out faultyStores over one shared database. Only the
// handle numbered failOn (1-based) is faulty; 0 makes every handle faulty.
type faultyProvider struct {
	db       *memory.Database
	template faultyStore
	failOn   int64
	opened   atomic.Int64
	commits  atomic.Int64
}

func (p *faultyProvider) Name() string { return "faulty" }

func (p *faultyProvider) Open(ctx context.Context) (store.Store, error) {
	n := p.opened.Add(1)
	base := memory.Open(p.db)
	if p.failOn != 0 && n != p.failOn {
		return base, nil
	}
	s := p.template
	s.Store = base
	s.commits = &p.commits
	return &s, nil
}

// plainStore hides the optional capabilities of the memory store.
type plainStore struct {
	s *memory.Store
}

func (p plainStore) OpenSession(ctx context.Context) (store.Session, error) {
	return p.s.OpenSession(ctx)
}

func (p plainStore) OpenBulk(ctx context.Context) (store.BulkChannel, error) {
	return p.s.OpenBulk(ctx)
}

func (p plainStore) LoadAggregate(ctx context.Context, key string) (*store.Aggregate, error) {
	return p.s.LoadAggregate(ctx, key)
}

func (p plainStore) PersistAggregate(ctx context.Context, agg *store.Aggregate) error {
	return p.s.PersistAggregate(ctx, agg)
}

func (p plainStore) Close() error { return p.s.Close() }

var errInjected = errors.New("injected failure")
