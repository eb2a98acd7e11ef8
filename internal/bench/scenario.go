package bench

import (
	"fmt"
	"strings"
)

// WriteMode is the transactional strategy a worker writes with.
type WriteMode int

const (
	// PerItemCommit writes and commits every item individually on one session.
	PerItemCommit WriteMode = iota
	// BatchCommitAtEnd writes every item on one session and commits once.
	BatchCommitAtEnd
	// BulkStreaming streams items through a bulk channel flushed on close.
	BulkStreaming
	// PerItemTwoPhaseCommit wraps every item in its own ambient transaction.
	PerItemTwoPhaseCommit
	// AsyncFireAndForget hands items to the store without awaiting them.
	// Elapsed time for this mode does not cover durable completion.
	AsyncFireAndForget
)

var modeNames = map[WriteMode]string{
	PerItemCommit:         "per-item-commit",
	BatchCommitAtEnd:      "batch-commit-at-end",
	BulkStreaming:         "bulk-streaming",
	PerItemTwoPhaseCommit: "per-item-two-phase-commit",
	AsyncFireAndForget:    "async-fire-and-forget",
}

func (m WriteMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return "unknown"
}

// WriteModeNames lists every mode name in declaration order.
func WriteModeNames() []string {
	names := make([]string, 0, len(modeNames))
	for m := PerItemCommit; m <= AsyncFireAndForget; m++ {
		names = append(names, modeNames[m])
	}
	return names
}

// ParseWriteMode parses a mode name such as "bulk-streaming".
func ParseWriteMode(s string) (WriteMode, error) {
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown write mode %q (want one of %s)", s, strings.Join(WriteModeNames(), ", "))
}

// Scenario is one named strategy benchmarked as a unit.
type Scenario struct {
	Name    string
	Workers int
	Stores  int
	Mode    WriteMode
}

// UsesBulk reports whether the scenario writes through a bulk channel.
func (s Scenario) UsesBulk() bool {
	return s.Mode == BulkStreaming
}

// UsesTransactionCoordinator reports whether every write is wrapped in an
// ambient two-phase-commit transaction.
func (s Scenario) UsesTransactionCoordinator() bool {
	return s.Mode == PerItemTwoPhaseCommit
}

// Validate checks the scenario can run.
func (s Scenario) Validate() error {
	switch {
	case s.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidScenario)
	case s.Workers < 1:
		return fmt.Errorf("%w: %s: workers must be at least 1, got %d", ErrInvalidScenario, s.Name, s.Workers)
	case s.Stores < 1:
		return fmt.Errorf("%w: %s: stores must be at least 1, got %d", ErrInvalidScenario, s.Name, s.Stores)
	case s.Mode.String() == "unknown":
		return fmt.Errorf("%w: %s: unknown write mode %d", ErrInvalidScenario, s.Name, s.Mode)
	}
	return nil
}

// Catalog is the ordered list of scenarios in one benchmark run.
type Catalog []Scenario

// DefaultCatalog returns the built-in strategy matrix. threads and stores
// size the multi-worker topologies.
func DefaultCatalog(threads, stores int) Catalog {
	return Catalog{
		{Name: "documents-with-session-per-document", Workers: 1, Stores: 1, Mode: PerItemCommit},
		{Name: "documents-with-session-for-all", Workers: 1, Stores: 1, Mode: BatchCommitAtEnd},
		{Name: "documents-with-bulk-insert", Workers: 1, Stores: 1, Mode: BulkStreaming},
		{Name: "threads-sharing-one-store", Workers: threads, Stores: 1, Mode: BatchCommitAtEnd},
		{Name: "threads-each-own-store", Workers: threads, Stores: threads, Mode: BatchCommitAtEnd},
		{Name: "threads-against-stores", Workers: threads, Stores: stores, Mode: BatchCommitAtEnd},
		{Name: "two-phase-commit-per-document", Workers: 1, Stores: 1, Mode: PerItemTwoPhaseCommit},
	}
}

// Names returns the scenario names in order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, s := range c {
		names[i] = s.Name
	}
	return names
}

// Filter keeps the named scenarios, preserving catalog order. No names
// keeps everything. Unknown names are an error.
func (c Catalog) Filter(names []string) (Catalog, error) {
	if len(names) == 0 {
		return c, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	var out Catalog
	for _, s := range c {
		if wanted[s.Name] {
			out = append(out, s)
			delete(wanted, s.Name)
		}
	}
	if len(wanted) > 0 {
		unknown := make([]string, 0, len(wanted))
		for _, n := range names {
			if wanted[n] {
				unknown = append(unknown, n)
			}
		}
		return nil, fmt.Errorf("unknown scenario(s): %s", strings.Join(unknown, ", "))
	}
	return out, nil
}

// Validate checks every scenario and rejects duplicate names.
func (c Catalog) Validate() error {
	seen := make(map[string]bool, len(c))
	for _, s := range c {
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: duplicate scenario name %s", ErrInvalidScenario, s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}
