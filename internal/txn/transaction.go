package txn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Status is the outcome of an ambient transaction.
type Status int32

const (
	StatusActive Status = iota
	StatusCommitted
	StatusRolledBack
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusCommitted:
		return "committed"
	case StatusRolledBack:
		return "rolled-back"
	default:
		return "unknown"
	}
}

// ErrTransactionDone is returned when enlisting in or completing a
// transaction that already finished.
var ErrTransactionDone = errors.New("transaction already completed")

// Manager begins ambient transactions. Workers receive a Manager instead of
// relying on any implicit per-goroutine transaction.
type Manager interface {
	Begin() *Transaction
}

// Transaction coordinates the participants enlisted in one unit of work.
type Transaction struct {
	ID string

	mu           sync.Mutex
	participants []*Participant
	status       Status
	completing   bool
	onFinish     func(Status)
}

// NewTransaction creates a transaction with a fresh identifier.
func NewTransaction() *Transaction {
	return &Transaction{ID: uuid.NewString()}
}

// Enlist adds a participant. Participants are prepared and committed in
// enlistment order.
func (t *Transaction) Enlist(p *Participant) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusActive || t.completing {
		return fmt.Errorf("enlist %s in %s: %w", p.Name, t.ID, ErrTransactionDone)
	}
	t.participants = append(t.participants, p)
	return nil
}

// Participants returns a copy of the enlisted participants.
func (t *Transaction) Participants() []*Participant {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Participant, len(t.participants))
	copy(out, t.participants)
	return out
}

// Status returns the transaction outcome so far.
func (t *Transaction) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Complete commits the transaction. A single participant is committed in one
// phase; otherwise every participant is prepared before any is committed, and
// the first failed prepare rolls everything back.
func (t *Transaction) Complete(ctx context.Context) error {
	participants, err := t.claim("complete")
	if err != nil {
		return err
	}

	if len(participants) == 1 {
		if err := participants[0].SinglePhaseCommit(); err != nil {
			t.rollback(participants)
			return fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		t.finish(StatusCommitted)
		return nil
	}

	for _, p := range participants {
		if err := ctx.Err(); err != nil {
			t.rollback(participants)
			return fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		if err := p.Prepare(); err != nil {
			t.rollback(participants)
			return fmt.Errorf("transaction %s: prepare: %w", t.ID, err)
		}
	}

	var errs []error
	for _, p := range participants {
		if err := p.Commit(); err != nil {
			errs = append(errs, err)
		}
	}
	t.finish(StatusCommitted)
	if len(errs) > 0 {
		return fmt.Errorf("transaction %s: commit: %w", t.ID, errors.Join(errs...))
	}
	return nil
}

// Rollback aborts the transaction and every participant that is not
// already terminal.
func (t *Transaction) Rollback() error {
	participants, err := t.claim("rollback")
	if err != nil {
		return err
	}
	t.rollback(participants)
	return nil
}

// claim marks the transaction as completing so only one Complete or
// Rollback drives the participants.
func (t *Transaction) claim(op string) ([]*Participant, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status != StatusActive || t.completing {
		return nil, fmt.Errorf("%s %s: %w", op, t.ID, ErrTransactionDone)
	}
	t.completing = true
	participants := make([]*Participant, len(t.participants))
	copy(participants, t.participants)
	return participants, nil
}

func (t *Transaction) rollback(participants []*Participant) {
	for _, p := range participants {
		if !p.State().Terminal() {
			_ = p.Rollback()
		}
	}
	t.finish(StatusRolledBack)
}

func (t *Transaction) finish(s Status) {
	t.mu.Lock()
	t.status = s
	onFinish := t.onFinish
	t.mu.Unlock()

	if onFinish != nil {
		onFinish(s)
	}
}

// LocalManager is an in-process Manager that counts outcomes.
type LocalManager struct {
	begun      atomic.Int64
	committed  atomic.Int64
	rolledBack atomic.Int64
}

// NewLocalManager creates a LocalManager.
func NewLocalManager() *LocalManager {
	return &LocalManager{}
}

// Begin starts a new ambient transaction.
func (m *LocalManager) Begin() *Transaction {
	m.begun.Add(1)
	t := NewTransaction()
	t.onFinish = func(s Status) {
		switch s {
		case StatusCommitted:
			m.committed.Add(1)
		case StatusRolledBack:
			m.rolledBack.Add(1)
		}
	}
	return t
}

// Counts returns begun, committed and rolled-back totals.
func (m *LocalManager) Counts() (begun, committed, rolledBack int64) {
	return m.begun.Load(), m.committed.Load(), m.rolledBack.Load()
}

var _ Manager = (*LocalManager)(nil)
