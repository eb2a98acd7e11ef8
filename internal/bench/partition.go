package bench

import (
	"fmt"

	"github.com/wesleyorama2/writebench/internal/store"
)

// PartitionMode selects how a remainder is handled when the document
// count does not divide evenly.
type PartitionMode int

const (
	// PartitionLossy gives every worker total/workers documents and drops
	// the remainder.
	PartitionLossy PartitionMode = iota
	// PartitionStrict hands the remainder out one document at a time to the
	// first workers.
	PartitionStrict
)

func (m PartitionMode) String() string {
	switch m {
	case PartitionLossy:
		return "lossy"
	case PartitionStrict:
		return "strict"
	default:
		return "unknown"
	}
}

// ParsePartitionMode parses "lossy" or "strict". Empty means lossy.
func ParsePartitionMode(s string) (PartitionMode, error) {
	switch s {
	case "", "lossy":
		return PartitionLossy, nil
	case "strict":
		return PartitionStrict, nil
	default:
		return PartitionLossy, fmt.Errorf("unknown partition mode %q (want lossy or strict)", s)
	}
}

// Partition splits total documents into one chunk size per worker.
func Partition(total, workers int, mode PartitionMode) ([]int, error) {
	if workers <= 0 || total < 0 {
		return nil, &PartitionError{Total: total, Workers: workers}
	}

	per := total / workers
	chunks := make([]int, workers)
	for i := range chunks {
		chunks[i] = per
	}
	if mode == PartitionStrict {
		for i := 0; i < total%workers; i++ {
			chunks[i]++
		}
	}
	return chunks, nil
}

// WorkerAssignment is everything one worker needs. It is passed
// explicitly to each goroutine.
type WorkerAssignment struct {
	WorkerID  int
	Store     store.Store
	Documents int
	// Offset is the index of the worker's first item.
	Offset int64
}

// Assign turns chunk sizes into assignments with contiguous offsets and
// store handles picked round-robin.
func Assign(chunks []int, stores []store.Store) []WorkerAssignment {
	if len(stores) == 0 {
		return nil
	}

	assignments := make([]WorkerAssignment, len(chunks))
	var offset int64
	for i, n := range chunks {
		assignments[i] = WorkerAssignment{
			WorkerID:  i,
			Store:     stores[i%len(stores)],
			Documents: n,
			Offset:    offset,
		}
		offset += int64(n)
	}
	return assignments
}
