package bench

import (
	"errors"
	"fmt"

	"github.com/wesleyorama2/writebench/internal/metrics"
)

var (
	// ErrPartition is matched by every *PartitionError.
	ErrPartition = errors.New("invalid partition")

	// ErrBarrierTimeout is returned when workers do not all reach the start
	// barrier within the configured timeout.
	ErrBarrierTimeout = errors.New("start barrier timeout")

	// ErrUnsupportedMode is returned when a store lacks the capability a
	// write mode needs.
	ErrUnsupportedMode = errors.New("write mode not supported by store")

	// ErrInvalidScenario is returned for scenarios that cannot run.
	ErrInvalidScenario = errors.New("invalid scenario")
)

// PartitionError reports invalid worker or document counts.
type PartitionError struct {
	Total   int
	Workers int
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("cannot partition %d documents across %d workers", e.Total, e.Workers)
}

func (e *PartitionError) Is(target error) bool {
	return target == ErrPartition
}

// ScenarioError reports an aborted scenario. Nothing was recorded for it.
// Metrics is set when the write phase started, and counts the writes made
// before the abort.
type ScenarioError struct {
	Scenario string
	Err      error
	Metrics  *metrics.Snapshot
}

func (e *ScenarioError) Error() string {
	return fmt.Sprintf("scenario %s aborted: %v", e.Scenario, e.Err)
}

func (e *ScenarioError) Unwrap() error {
	return e.Err
}
