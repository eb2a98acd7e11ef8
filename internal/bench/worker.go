package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/wesleyorama2/writebench/internal/metrics"
	"github.com/wesleyorama2/writebench/internal/store"
	"github.com/wesleyorama2/writebench/internal/txn"
)

// WorkerState is the lifecycle state of a Worker.
type WorkerState int32

const (
	// WorkerIdle indicates the worker has not started.
	WorkerIdle WorkerState = iota
	// WorkerWaiting indicates setup is done and the worker is at the barrier.
	WorkerWaiting
	// WorkerWriting indicates the timed write phase is running.
	WorkerWriting
	// WorkerDone indicates every assigned item was written.
	WorkerDone
	// WorkerFailed indicates setup or a write failed.
	WorkerFailed
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerWaiting:
		return "waiting"
	case WorkerWriting:
		return "writing"
	case WorkerDone:
		return "done"
	case WorkerFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Worker executes a bounded loop of writes against one store handle.
// A Worker runs once.
type Worker struct {
	ID int

	metrics      *metrics.Engine
	transactions txn.Manager
	logger       *slog.Logger

	state   atomic.Int32
	written atomic.Int64
}

// NewWorker creates a worker. A nil transaction manager gets a LocalManager.
func NewWorker(id int, engine *metrics.Engine, transactions txn.Manager, logger *slog.Logger) *Worker {
	if engine == nil {
		engine = metrics.NewEngine()
	}
	if transactions == nil {
		transactions = txn.NewLocalManager()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		ID:           id,
		metrics:      engine,
		transactions: transactions,
		logger:       logger.With(slog.Int("worker", id)),
	}
}

// State returns the current worker state.
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Written returns how many items the worker has written so far.
func (w *Worker) Written() int64 {
	return w.written.Load()
}

// Run opens the worker's session or bulk channel, waits at the barrier,
// then writes every item of the assignment. A setup failure still reaches
// the barrier so the runner's ready count stays correct. Errors are not
// retried.
func (w *Worker) Run(ctx context.Context, a WorkerAssignment, barrier *Barrier, mode WriteMode) (err error) {
	if !w.state.CompareAndSwap(int32(WorkerIdle), int32(WorkerWaiting)) {
		return fmt.Errorf("worker %d already ran", w.ID)
	}
	defer func() {
		if err != nil {
			w.state.Store(int32(WorkerFailed))
			w.logger.Debug("worker failed", slog.Any("error", err))
			return
		}
		w.state.Store(int32(WorkerDone))
	}()

	write, finish, setupErr := w.setup(ctx, a.Store, mode)

	if waitErr := barrier.Wait(ctx); waitErr != nil {
		if finish != nil {
			finish(false)
		}
		return errors.Join(setupErr, fmt.Errorf("worker %d: barrier: %w", w.ID, waitErr))
	}
	if setupErr != nil {
		return fmt.Errorf("worker %d: setup: %w", w.ID, setupErr)
	}

	w.state.Store(int32(WorkerWriting))
	w.metrics.WorkerStarted()
	defer w.metrics.WorkerFinished()

	err = w.writeItems(a, write)
	if ferr := finish(err == nil); err == nil && ferr != nil {
		err = fmt.Errorf("worker %d: %w", w.ID, ferr)
	}
	return err
}

// writeFunc writes one item. finishFunc runs after the loop: commit
// reports whether pending work should be committed or flushed.
type (
	writeFunc  func(item store.Item) error
	finishFunc func(commit bool) error
)

func (w *Worker) setup(ctx context.Context, s store.Store, mode WriteMode) (writeFunc, finishFunc, error) {
	switch mode {
	case PerItemCommit:
		sess, err := s.OpenSession(ctx)
		if err != nil {
			return nil, nil, err
		}
		write := func(item store.Item) error {
			if err := sess.Write(ctx, item); err != nil {
				return err
			}
			return sess.Commit(ctx)
		}
		return write, closeOnly(sess), nil

	case BatchCommitAtEnd:
		sess, err := s.OpenSession(ctx)
		if err != nil {
			return nil, nil, err
		}
		write := func(item store.Item) error {
			return sess.Write(ctx, item)
		}
		finish := func(commit bool) error {
			var err error
			if commit {
				err = sess.Commit(ctx)
			}
			return errors.Join(err, sess.Close())
		}
		return write, finish, nil

	case BulkStreaming:
		ch, err := s.OpenBulk(ctx)
		if err != nil {
			return nil, nil, err
		}
		write := func(item store.Item) error {
			return ch.Write(ctx, item)
		}
		finish := func(bool) error {
			return ch.Close()
		}
		return write, finish, nil

	case PerItemTwoPhaseCommit:
		sess, err := s.OpenSession(ctx)
		if err != nil {
			return nil, nil, err
		}
		enlister, _ := s.(store.Enlister)
		write := func(item store.Item) error {
			return w.writeInTransaction(ctx, sess, enlister, item)
		}
		return write, closeOnly(sess), nil

	case AsyncFireAndForget:
		async, ok := s.(store.AsyncWriter)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s needs an async writer", ErrUnsupportedMode, mode)
		}
		write := func(item store.Item) error {
			async.WriteAsync(ctx, item)
			return nil
		}
		return write, func(bool) error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, mode)
	}
}

func closeOnly(sess store.Session) finishFunc {
	return func(bool) error { return sess.Close() }
}

// writeInTransaction writes and commits one item inside its own ambient
// transaction, then completes the transaction.
func (w *Worker) writeInTransaction(ctx context.Context, sess store.Session, enlister store.Enlister, item store.Item) error {
	tx := w.transactions.Begin()
	participant := txn.NewParticipant("worker-" + strconv.Itoa(w.ID) + "/" + item.ID())

	if err := tx.Enlist(participant); err != nil {
		return err
	}
	if enlister != nil {
		if err := enlister.Enlist(ctx, tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("enlist store: %w", err)
		}
	}

	if err := sess.Write(ctx, item); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := sess.Commit(ctx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Complete(ctx)
}

func (w *Worker) writeItems(a WorkerAssignment, write writeFunc) error {
	label := "worker-" + strconv.Itoa(w.ID)

	for i := 0; i < a.Documents; i++ {
		item := store.NewItem(a.Offset + int64(i))

		start := time.Now()
		err := write(item)
		w.metrics.RecordWrite(time.Since(start), label, err == nil, int64(len(item.Payload)))

		if err != nil {
			return fmt.Errorf("worker %d: item %d: %w", w.ID, item.Index, err)
		}
		w.written.Add(1)
	}
	return nil
}
