package bench

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/wesleyorama2/writebench/internal/metrics"
	"github.com/wesleyorama2/writebench/internal/store"
	"github.com/wesleyorama2/writebench/internal/store/memory"
	"github.com/wesleyorama2/writebench/internal/txn"
)

// runWorker runs one worker to completion behind its own barrier.
func runWorker(t *testing.T, w *Worker, a WorkerAssignment, mode WriteMode) error {
	t.Helper()
	b := NewBarrier(1)
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background(), a, b, mode) }()

	if err := b.AwaitReady(context.Background(), 0); err != nil {
		t.Fatalf("AwaitReady() error = %v", err)
	}
	if w.State() != WorkerWaiting {
		t.Errorf("state at barrier = %v, want %v", w.State(), WorkerWaiting)
	}
	b.Release()
	return <-done
}

func TestWorker_Modes(t *testing.T) {
	tests := []struct {
		mode        WriteMode
		wantCommits int64
	}{
		{PerItemCommit, 25},
		{BatchCommitAtEnd, 1},
		{BulkStreaming, 1},
		{PerItemTwoPhaseCommit, 25},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			db := memory.NewDatabase()
			engine := metrics.NewEngine()
			w := NewWorker(3, engine, nil, discardLogger())

			a := WorkerAssignment{WorkerID: 3, Store: memory.Open(db), Documents: 25, Offset: 100}
			if err := runWorker(t, w, a, tt.mode); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if w.State() != WorkerDone {
				t.Errorf("State() = %v, want %v", w.State(), WorkerDone)
			}
			if w.Written() != 25 {
				t.Errorf("Written() = %d, want 25", w.Written())
			}
			if db.Len() != 25 {
				t.Errorf("stored documents = %d, want 25", db.Len())
			}
			if db.Commits() != tt.wantCommits {
				t.Errorf("commits = %d, want %d", db.Commits(), tt.wantCommits)
			}
			if _, ok := db.Document("documents/124"); !ok {
				t.Error("last item of the assignment (index 124) is missing")
			}
			if _, ok := db.Document("documents/125"); ok {
				t.Error("item outside the assignment was written")
			}
			if got := engine.Latency().Count; got != 25 {
				t.Errorf("latency samples = %d, want 25", got)
			}
		})
	}
}

func TestWorker_TwoPhaseCommitCompletesEveryTransaction(t *testing.T) {
	manager := txn.NewLocalManager()
	w := NewWorker(0, nil, manager, discardLogger())
	a := WorkerAssignment{Store: memory.Open(memory.NewDatabase()), Documents: 10}

	if err := runWorker(t, w, a, PerItemTwoPhaseCommit); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	begun, committed, rolledBack := manager.Counts()
	if begun != 10 || committed != 10 || rolledBack != 0 {
		t.Errorf("Counts() = %d/%d/%d, want 10/10/0", begun, committed, rolledBack)
	}
}

func TestWorker_TwoPhaseCommitRollsBackOnCommitFailure(t *testing.T) {
	manager := txn.NewLocalManager()
	s := &faultyStore{Store: memory.Open(memory.NewDatabase()), commitErr: store.ErrWriteConflict, commitAfter: 2, commits: new(atomic.Int64)}
	w := NewWorker(0, nil, manager, discardLogger())

	err := runWorker(t, w, WorkerAssignment{Store: s, Documents: 10}, PerItemTwoPhaseCommit)
	if !errors.Is(err, store.ErrWriteConflict) {
		t.Fatalf("Run() error = %v, want ErrWriteConflict", err)
	}
	if w.State() != WorkerFailed {
		t.Errorf("State() = %v, want %v", w.State(), WorkerFailed)
	}
	if w.Written() != 2 {
		t.Errorf("Written() = %d, want 2 (no retry after the conflict)", w.Written())
	}

	_, committed, rolledBack := manager.Counts()
	if committed != 2 || rolledBack != 1 {
		t.Errorf("committed/rolledBack = %d/%d, want 2/1", committed, rolledBack)
	}
}

func TestWorker_AsyncFireAndForget(t *testing.T) {
	// Run returns before the async writes land: the elapsed time for this
	// mode does not include durable completion.
	db := memory.NewDatabase()
	w := NewWorker(0, nil, nil, discardLogger())

	if err := runWorker(t, w, WorkerAssignment{Store: memory.Open(db), Documents: 40}, AsyncFireAndForget); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	db.WaitAsync()
	if db.Len() != 40 {
		t.Errorf("stored documents = %d, want 40", db.Len())
	}
}

func TestWorker_AsyncUnsupported(t *testing.T) {
	w := NewWorker(0, nil, nil, discardLogger())
	s := plainStore{s: memory.Open(memory.NewDatabase())}

	err := runWorker(t, w, WorkerAssignment{Store: s, Documents: 1}, AsyncFireAndForget)
	if !errors.Is(err, ErrUnsupportedMode) {
		t.Errorf("Run() error = %v, want ErrUnsupportedMode", err)
	}
}

func TestWorker_SetupFailureStillReachesBarrier(t *testing.T) {
	w := NewWorker(0, nil, nil, discardLogger())
	s := &faultyStore{Store: memory.Open(memory.NewDatabase()), sessionErr: errInjected}

	// runWorker would hang in AwaitReady if the failed worker never arrived
	err := runWorker(t, w, WorkerAssignment{Store: s, Documents: 5}, BatchCommitAtEnd)
	if !errors.Is(err, errInjected) {
		t.Errorf("Run() error = %v, want injected failure", err)
	}
	if w.Written() != 0 {
		t.Errorf("Written() = %d, want 0", w.Written())
	}
}

func TestWorker_RunsOnce(t *testing.T) {
	w := NewWorker(0, nil, nil, discardLogger())
	a := WorkerAssignment{Store: memory.Open(memory.NewDatabase())}
	if err := runWorker(t, w, a, BatchCommitAtEnd); err != nil {
		t.Fatal(err)
	}
	if err := w.Run(context.Background(), a, NewBarrier(1), BatchCommitAtEnd); err == nil {
		t.Error("second Run() should fail")
	}
}
