// Package bench drives the write benchmark: it partitions a workload,
// starts workers behind a barrier, times the write phase and records one
// statistic per scenario.
package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wesleyorama2/writebench/internal/metrics"
	"github.com/wesleyorama2/writebench/internal/stats"
	"github.com/wesleyorama2/writebench/internal/store"
	"github.com/wesleyorama2/writebench/internal/txn"
)

// Recorder persists one StatRecord per completed scenario.
type Recorder interface {
	Record(ctx context.Context, rec stats.StatRecord) error
}

// Result describes a completed scenario.
type Result struct {
	Scenario Scenario
	Record   stats.StatRecord
	// Written is the number of items actually written. It can be lower
	// than Record.NumberOfDocuments when the lossy partition drops a
	// remainder.
	Written int64
	// Stored is the document count the store reported after the write
	// phase. Counted is false when the store cannot count.
	Stored  int64
	Counted bool
	// Metrics holds the write counters and the overall latency
	// distribution; WorkerLatency breaks latency down per worker.
	Metrics       metrics.Snapshot
	WorkerLatency map[string]metrics.LatencyStats
}

// Runner executes scenarios one at a time.
type Runner struct {
	provider       store.Provider
	recorder       Recorder
	clock          Clock
	logger         *slog.Logger
	partition      PartitionMode
	barrierTimeout time.Duration
	transactions   txn.Manager
	truncate       bool
	engine         *metrics.Engine
	onScenario     func(Scenario, *Result, error)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithClock replaces the clock used to time the write phase.
func WithClock(c Clock) RunnerOption {
	return func(r *Runner) { r.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithPartitionMode selects lossy or strict partitioning.
func WithPartitionMode(m PartitionMode) RunnerOption {
	return func(r *Runner) { r.partition = m }
}

// WithBarrierTimeout bounds how long the runner waits for workers to
// finish setup. Zero waits forever.
func WithBarrierTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.barrierTimeout = d }
}

// WithTransactionManager sets the ambient transaction manager used by
// two-phase-commit scenarios.
func WithTransactionManager(m txn.Manager) RunnerOption {
	return func(r *Runner) { r.transactions = m }
}

// WithTruncate deletes every stored document before each scenario, so the
// stored count of a result covers that scenario alone.
func WithTruncate(truncate bool) RunnerOption {
	return func(r *Runner) { r.truncate = truncate }
}

// WithScenarioHook registers a callback invoked after each scenario of
// RunCatalog with either its result or its error.
func WithScenarioHook(fn func(Scenario, *Result, error)) RunnerOption {
	return func(r *Runner) { r.onScenario = fn }
}

// NewRunner creates a runner that opens store handles from provider and
// records statistics through recorder.
func NewRunner(provider store.Provider, recorder Recorder, opts ...RunnerOption) *Runner {
	r := &Runner{
		provider:     provider,
		recorder:     recorder,
		clock:        RealClock{},
		logger:       slog.Default(),
		partition:    PartitionLossy,
		transactions: txn.NewLocalManager(),
		engine:       metrics.NewEngine(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScenario runs one scenario end to end. Store handles are opened and
// sessions set up before the clock starts. The runner joins every worker
// without a timeout. If any worker fails nothing is recorded and a
// *ScenarioError is returned. Scenarios of one Runner must not run
// concurrently.
func (r *Runner) RunScenario(ctx context.Context, sc Scenario, totalDocuments int) (*Result, error) {
	logger := r.logger.With(slog.String("scenario", sc.Name))
	abort := func(err error) (*Result, error) {
		return nil, &ScenarioError{Scenario: sc.Name, Err: err}
	}

	if err := sc.Validate(); err != nil {
		return abort(err)
	}
	chunks, err := Partition(totalDocuments, sc.Workers, r.partition)
	if err != nil {
		return abort(err)
	}

	stores, err := r.openStores(ctx, sc.Stores)
	if err != nil {
		return abort(err)
	}
	if r.truncate {
		if err := truncate(ctx, stores[0]); err != nil {
			r.closeStores(logger, stores)
			return abort(err)
		}
	}
	assignments := Assign(chunks, stores)

	logger.Debug("starting workers",
		slog.Int("workers", sc.Workers),
		slog.Int("stores", sc.Stores),
		slog.String("mode", sc.Mode.String()),
		slog.Int("perWorker", chunks[0]))

	engine := r.engine
	engine.Reset()
	barrier := NewBarrier(len(assignments))
	workers := make([]*Worker, len(assignments))
	errs := make([]error, len(assignments))

	var wg sync.WaitGroup
	for i, a := range assignments {
		w := NewWorker(a.WorkerID, engine, r.transactions, logger)
		workers[i] = w
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = w.Run(ctx, a, barrier, sc.Mode)
		}()
	}

	if err := barrier.AwaitReady(ctx, r.barrierTimeout); err != nil {
		logger.Debug("barrier aborted", slog.Int("arrived", barrier.Arrived()), slog.Int("workers", len(assignments)))
		barrier.Abort(err)
		wg.Wait()
		r.closeStores(logger, stores)
		return abort(err)
	}

	start := r.clock.Now()
	barrier.Release()
	wg.Wait()
	elapsed := r.clock.Since(start)

	stored, counted := r.countDocuments(ctx, logger, stores[0])
	r.closeStores(logger, stores)

	if err := errors.Join(errs...); err != nil {
		snapshot := engine.Snapshot()
		return nil, &ScenarioError{Scenario: sc.Name, Err: err, Metrics: &snapshot}
	}

	var written int64
	for _, w := range workers {
		written += w.Written()
	}

	rec := stats.NewRecord(sc.Name, int64(totalDocuments), elapsed, start)
	if err := r.recorder.Record(ctx, rec); err != nil {
		return abort(fmt.Errorf("record statistics: %w", err))
	}

	snapshot := engine.Snapshot()
	logger.Info("scenario complete",
		slog.Int64("documents", rec.NumberOfDocuments),
		slog.Int64("written", written),
		slog.Int64("failedWrites", snapshot.FailedWrites),
		slog.Int64("timeInMs", rec.ElapsedMillis),
		slog.Int64("docsPerSecond", rec.DocsPerSecond))

	return &Result{
		Scenario:      sc,
		Record:        rec,
		Written:       written,
		Stored:        stored,
		Counted:       counted,
		Metrics:       snapshot,
		WorkerLatency: engine.WorkerLatency(),
	}, nil
}

// RunCatalog runs every scenario in order. An aborted scenario is logged
// and the next one still runs. The returned error joins every abort.
func (r *Runner) RunCatalog(ctx context.Context, catalog Catalog, totalDocuments int) ([]*Result, error) {
	var (
		results []*Result
		errs    []error
	)
	for _, sc := range catalog {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		res, err := r.RunScenario(ctx, sc, totalDocuments)
		if err != nil {
			r.logger.Error("scenario aborted", slog.String("scenario", sc.Name), slog.Any("error", err))
			errs = append(errs, err)
		} else {
			results = append(results, res)
		}
		if r.onScenario != nil {
			r.onScenario(sc, res, err)
		}
	}
	return results, errors.Join(errs...)
}

func (r *Runner) openStores(ctx context.Context, n int) ([]store.Store, error) {
	stores := make([]store.Store, 0, n)
	for i := 0; i < n; i++ {
		s, err := r.provider.Open(ctx)
		if err != nil {
			r.closeStores(r.logger, stores)
			return nil, fmt.Errorf("open store %d of %d on %s: %w", i+1, n, r.provider.Name(), err)
		}
		stores = append(stores, s)
	}
	return stores, nil
}

func (r *Runner) closeStores(logger *slog.Logger, stores []store.Store) {
	for i, s := range stores {
		if err := s.Close(); err != nil {
			logger.Warn("closing store", slog.Int("store", i), slog.Any("error", err))
		}
	}
}

// countDocuments asks s for its document count. A failed count is logged
// and reported as not counted.
func (r *Runner) countDocuments(ctx context.Context, logger *slog.Logger, s store.Store) (int64, bool) {
	c, ok := s.(store.Counter)
	if !ok {
		return 0, false
	}
	n, err := c.CountDocuments(ctx)
	if err != nil {
		logger.Warn("counting documents", slog.Any("error", err))
		return 0, false
	}
	return n, true
}

func truncate(ctx context.Context, s store.Store) error {
	t, ok := s.(store.Truncater)
	if !ok {
		return errors.New("truncate: store cannot delete its documents")
	}
	if err := t.Truncate(ctx); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	return nil
}
