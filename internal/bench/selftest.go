package bench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wesleyorama2/writebench/internal/store"
	"github.com/wesleyorama2/writebench/internal/txn"
)

// SelfTestKey is the aggregate both self-test transactions update.
const SelfTestKey = "persons/oren"

// TransactionReport is the outcome of one self-test transaction.
type TransactionReport struct {
	Name          string
	TransactionID string
	Status        txn.Status
	Participants  []txn.State
	Err           error
}

type selfTestDocument struct {
	Name      string `json:"name"`
	UpdatedBy string `json:"updatedBy,omitempty"`
	Updates   int    `json:"updates"`
}

// RunCoordinationSelfTest exercises the coordination model against s. Two
// transactions load the same aggregate, meet at a barrier and both try to
// persist an update with optimistic concurrency. Each enlists two
// participants sharing a countdown. Exactly one transaction must commit;
// the other must see store.ErrWriteConflict and roll back.
func RunCoordinationSelfTest(ctx context.Context, s store.Store, manager txn.Manager, logger *slog.Logger) ([]TransactionReport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := seedSelfTest(ctx, s); err != nil {
		return nil, err
	}

	const parties = 2
	barrier := NewBarrier(parties)
	reports := make([]TransactionReport, parties)

	var wg sync.WaitGroup
	for i := 0; i < parties; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reports[i] = runSelfTestTransaction(ctx, s, manager, barrier, logger, fmt.Sprintf("tx-%d", i+1))
		}()
	}

	if err := barrier.AwaitReady(ctx, 0); err != nil {
		barrier.Abort(err)
		wg.Wait()
		return reports, err
	}
	barrier.Release()
	wg.Wait()

	var committed, conflicted int
	for _, r := range reports {
		logger.Info("self-test transaction",
			slog.String("name", r.Name),
			slog.String("id", r.TransactionID),
			slog.String("status", r.Status.String()),
			slog.Any("error", r.Err))
		switch {
		case r.Status == txn.StatusCommitted && r.Err == nil:
			committed++
		case errors.Is(r.Err, store.ErrWriteConflict) && r.Status == txn.StatusRolledBack:
			conflicted++
		}
	}
	if committed != 1 || conflicted != 1 {
		return reports, fmt.Errorf("coordination self-test: %d committed and %d conflicted, want 1 and 1", committed, conflicted)
	}
	return reports, nil
}

func seedSelfTest(ctx context.Context, s store.Store) error {
	_, err := s.LoadAggregate(ctx, SelfTestKey)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("seed %s: %w", SelfTestKey, err)
	}

	data, err := json.Marshal(selfTestDocument{Name: "oren"})
	if err != nil {
		return err
	}
	if err := s.PersistAggregate(ctx, &store.Aggregate{Key: SelfTestKey, Data: data}); err != nil {
		return fmt.Errorf("seed %s: %w", SelfTestKey, err)
	}
	return nil
}

func runSelfTestTransaction(ctx context.Context, s store.Store, manager txn.Manager, barrier *Barrier, logger *slog.Logger, name string) (report TransactionReport) {
	tx := manager.Begin()
	report = TransactionReport{Name: name, TransactionID: tx.ID}
	defer func() {
		report.Status = tx.Status()
		for _, p := range tx.Participants() {
			report.Participants = append(report.Participants, p.State())
		}
	}()

	countdown := txn.NewCountdown(2)
	setupErr := enlistSelfTestParticipants(ctx, s, tx, countdown, logger, name)

	var agg *store.Aggregate
	if setupErr == nil {
		agg, setupErr = s.LoadAggregate(ctx, SelfTestKey)
	}
	// Every transaction reaches the barrier, even after a setup failure.
	if err := barrier.Wait(ctx); err != nil {
		_ = tx.Rollback()
		report.Err = errors.Join(setupErr, err)
		return report
	}
	if setupErr != nil {
		_ = tx.Rollback()
		report.Err = setupErr
		return report
	}

	var doc selfTestDocument
	if err := json.Unmarshal(agg.Data, &doc); err != nil {
		_ = tx.Rollback()
		report.Err = fmt.Errorf("decode %s: %w", SelfTestKey, err)
		return report
	}
	doc.UpdatedBy = name
	doc.Updates++
	data, err := json.Marshal(doc)
	if err != nil {
		_ = tx.Rollback()
		report.Err = err
		return report
	}
	agg.Data = data

	if err := s.PersistAggregate(ctx, agg); err != nil {
		_ = tx.Rollback()
		report.Err = err
		return report
	}
	if err := tx.Complete(ctx); err != nil {
		report.Err = err
		return report
	}
	if err := countdown.Wait(ctx); err != nil {
		report.Err = fmt.Errorf("waiting for participants: %w", err)
	}
	return report
}

func enlistSelfTestParticipants(ctx context.Context, s store.Store, tx *txn.Transaction, countdown *txn.Countdown, logger *slog.Logger, name string) error {
	onCommit := func(participant string) {
		logger.Debug("participant committed", slog.String("participant", participant))
	}
	for i := 1; i <= 2; i++ {
		p := txn.NewParticipant(fmt.Sprintf("%s/notification-%d", name, i),
			txn.WithCountdown(countdown), txn.WithCommitHook(onCommit))
		if err := tx.Enlist(p); err != nil {
			return err
		}
	}
	if enlister, ok := s.(store.Enlister); ok {
		return enlister.Enlist(ctx, tx)
	}
	return nil
}
