// Package txn models two-phase-commit enlistment for the write benchmark.
//
// A Participant is a resource enlisted in an ambient Transaction. The
// transaction drives every participant through prepare and commit (or
// rollback), independently of whatever transaction the store itself runs.
package txn

import (
	"errors"
	"fmt"
	"sync"
)

// State is the enlistment state of a Participant.
type State int32

const (
	// StateActive is the initial state: enlisted, nothing voted yet.
	StateActive State = iota
	// StatePreparing indicates prepare is in progress.
	StatePreparing
	// StatePrepared indicates the participant voted to commit.
	StatePrepared
	// StateCommitted is terminal.
	StateCommitted
	// StateRolledBack is terminal.
	StateRolledBack
	// StateInDoubt indicates the outcome is unknown after a coordinator failure.
	StateInDoubt
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StatePreparing:
		return "preparing"
	case StatePrepared:
		return "prepared"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled-back"
	case StateInDoubt:
		return "in-doubt"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateRolledBack
}

// ErrProtocol is matched by every ProtocolError.
var ErrProtocol = errors.New("coordinator protocol error")

// ProtocolError is returned when an operation is not legal in the
// participant's current state.
type ProtocolError struct {
	Participant string
	Op          string
	State       State
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("participant %s: %s not allowed in state %s", e.Participant, e.Op, e.State)
}

// Is makes errors.Is(err, ErrProtocol) work.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

// Participant is one enlisted resource with the lifecycle
// Active -> Preparing -> Prepared -> {Committed, RolledBack, InDoubt}.
type Participant struct {
	// Name identifies the participant in errors and logs.
	Name string

	mu        sync.Mutex
	state     State
	vote      func() error
	countdown *Countdown
	onCommit  func(name string)
	prepared  bool
}

// ParticipantOption configures a Participant.
type ParticipantOption func(*Participant)

// WithVote installs a function run during prepare. A non-nil error is a
// "no" vote: the participant rolls back and Prepare returns the error.
func WithVote(vote func() error) ParticipantOption {
	return func(p *Participant) {
		p.vote = vote
	}
}

// WithCountdown makes a successful prepare signal the countdown.
func WithCountdown(c *Countdown) ParticipantOption {
	return func(p *Participant) {
		p.countdown = c
	}
}

// WithCommitHook installs a function called after the participant commits,
// in either one or two phases.
func WithCommitHook(fn func(name string)) ParticipantOption {
	return func(p *Participant) {
		p.onCommit = fn
	}
}

// NewParticipant creates a participant in StateActive.
func NewParticipant(name string, opts ...ParticipantOption) *Participant {
	p := &Participant{Name: name, state: StateActive}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current state.
func (p *Participant) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Prepare asks the participant to vote. On success the participant is
// Prepared and the shared countdown, if any, is signalled.
func (p *Participant) Prepare() error {
	p.mu.Lock()
	if p.state != StateActive {
		st := p.state
		p.mu.Unlock()
		return p.protocolError("prepare", st)
	}
	p.state = StatePreparing
	p.prepared = true
	vote := p.vote
	p.mu.Unlock()

	if vote != nil {
		if err := vote(); err != nil {
			p.setState(StateRolledBack)
			return fmt.Errorf("participant %s voted no: %w", p.Name, err)
		}
	}

	p.setState(StatePrepared)
	if p.countdown != nil {
		p.countdown.Signal()
	}
	return nil
}

// Commit finishes a prepared (or in-doubt) participant.
func (p *Participant) Commit() error {
	if err := p.transition("commit", StateCommitted, StatePrepared, StateInDoubt); err != nil {
		return err
	}
	p.committed()
	return nil
}

// Rollback aborts the participant. Legal before prepare, after prepare, and
// to resolve an in-doubt outcome.
func (p *Participant) Rollback() error {
	return p.transition("rollback", StateRolledBack, StateActive, StatePrepared, StateInDoubt)
}

// ReportInDoubt records that the coordinator lost track of the outcome.
func (p *Participant) ReportInDoubt() error {
	return p.transition("in-doubt", StateInDoubt, StatePrepared)
}

// SinglePhaseCommit collapses prepare and commit into one step. It must not
// be called once Prepare has been invoked.
func (p *Participant) SinglePhaseCommit() error {
	p.mu.Lock()
	if p.prepared || p.state != StateActive {
		st := p.state
		p.mu.Unlock()
		return p.protocolError("single-phase commit", st)
	}
	p.state = StateCommitted
	p.mu.Unlock()

	p.committed()
	return nil
}

func (p *Participant) committed() {
	if p.onCommit != nil {
		p.onCommit(p.Name)
	}
}

func (p *Participant) transition(op string, to State, from ...State) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, s := range from {
		if p.state == s {
			p.state = to
			return nil
		}
	}
	return p.protocolError(op, p.state)
}

func (p *Participant) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Participant) protocolError(op string, st State) error {
	return &ProtocolError{Participant: p.Name, Op: op, State: st}
}
