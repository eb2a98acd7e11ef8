// Package store defines the narrow capability interface the benchmark drives.
//
// Concrete backends live in subpackages (memory, sqlite, postgres). The
// harness itself performs no locking around a Store: when several workers
// share one handle, the backend's own concurrency control is the only
// protection.
package store

import (
	"context"
	"errors"
	"strconv"

	"github.com/wesleyorama2/writebench/internal/txn"
)

var (
	// ErrNotFound is returned by LoadAggregate when the key has never been stored.
	ErrNotFound = errors.New("aggregate not found")

	// ErrWriteConflict is returned when an optimistic-concurrency check fails.
	ErrWriteConflict = errors.New("write conflict")

	// ErrClosed is returned when a closed session, bulk channel or store is used.
	ErrClosed = errors.New("store handle closed")
)

// Item is one unit of benchmark work.
type Item struct {
	Index   int64
	Payload []byte
}

// NewItem builds the item for index with the payload {"counter":<index>}.
func NewItem(index int64) Item {
	payload := make([]byte, 0, 32)
	payload = append(payload, `{"counter":`...)
	payload = strconv.AppendInt(payload, index, 10)
	payload = append(payload, '}')
	return Item{Index: index, Payload: payload}
}

// ID is the document identifier an item is stored under.
func (i Item) ID() string {
	return "documents/" + strconv.FormatInt(i.Index, 10)
}

// Aggregate is an opaque versioned value stored under a fixed key.
// Version 0 means the aggregate has not been stored yet.
type Aggregate struct {
	Key     string
	Version int64
	Data    []byte
}

// Store is a handle to a backend.
type Store interface {
	OpenSession(ctx context.Context) (Session, error)
	OpenBulk(ctx context.Context) (BulkChannel, error)

	// LoadAggregate returns ErrNotFound when key is absent.
	LoadAggregate(ctx context.Context, key string) (*Aggregate, error)

	// PersistAggregate stores agg if its Version still matches the stored
	// one and bumps agg.Version on success. A mismatch is ErrWriteConflict.
	PersistAggregate(ctx context.Context, agg *Aggregate) error

	Close() error
}

// Session buffers writes until Commit.
type Session interface {
	Write(ctx context.Context, item Item) error
	Commit(ctx context.Context) error
	Close() error
}

// BulkChannel streams writes without per-item acknowledgement. Close flushes.
type BulkChannel interface {
	Write(ctx context.Context, item Item) error
	Close() error
}

// Enlister is implemented by stores that can take part in an ambient
// two-phase-commit transaction.
type Enlister interface {
	Enlist(ctx context.Context, tx *txn.Transaction) error
}

// AsyncWriter is implemented by stores offering a fire-and-forget write path.
// Completion is never reported to the caller.
type AsyncWriter interface {
	WriteAsync(ctx context.Context, item Item)
}

// Counter is implemented by stores that can count their documents.
type Counter interface {
	CountDocuments(ctx context.Context) (int64, error)
}

// Truncater is implemented by stores that can delete every document. The
// statistics aggregate is kept.
type Truncater interface {
	Truncate(ctx context.Context) error
}

// Provider opens store handles for one configured backend. Every handle
// returned by Open refers to the same underlying data.
type Provider interface {
	Name() string
	Open(ctx context.Context) (Store, error)
}
