// Package stats records one StatRecord per completed scenario into the
// statistics aggregate kept by the backend store.
package stats

import (
	"time"
)

// AggregateKey is the fixed key the statistics aggregate is stored under.
const AggregateKey = "statistics"

// StatRecord is one row of benchmark output.
type StatRecord struct {
	Description       string    `json:"description"`
	NumberOfDocuments int64     `json:"numberOfDocuments"`
	ElapsedMillis     int64     `json:"timeInMs"`
	At                time.Time `json:"at"`
	DocsPerSecond     int64     `json:"docsPerSecond"`
}

// Statistic is the aggregate holding every recorded run in order.
type Statistic struct {
	ID   string       `json:"id"`
	Runs []StatRecord `json:"runs"`
}

// DocsPerSecond returns documents*1000/elapsedMillis using integer
// division, or -1 when no time elapsed.
func DocsPerSecond(documents, elapsedMillis int64) int64 {
	if elapsedMillis == 0 {
		return -1
	}
	return documents * 1000 / elapsedMillis
}

// NewRecord builds a StatRecord and derives its throughput.
func NewRecord(description string, documents int64, elapsed time.Duration, at time.Time) StatRecord {
	ms := elapsed.Milliseconds()
	return StatRecord{
		Description:       description,
		NumberOfDocuments: documents,
		ElapsedMillis:     ms,
		At:                at,
		DocsPerSecond:     DocsPerSecond(documents, ms),
	}
}
