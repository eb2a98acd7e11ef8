package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wesleyorama2/writebench/internal/store"
)

// AggregateStore is the part of store.Store the recorder needs.
type AggregateStore interface {
	LoadAggregate(ctx context.Context, key string) (*store.Aggregate, error)
	PersistAggregate(ctx context.Context, agg *store.Aggregate) error
}

// Recorder appends StatRecords to the statistics aggregate with a
// read-append-write. It does not serialize callers. Two concurrent Record
// calls race, and the persist is versioned: the loser gets
// store.ErrWriteConflict instead of overwriting the winner's run, so a lost
// record is reported rather than silently dropped as a last-writer-wins
// store would.
type Recorder struct {
	store AggregateStore
}

// NewRecorder creates a recorder backed by s.
func NewRecorder(s AggregateStore) *Recorder {
	return &Recorder{store: s}
}

// Record appends rec to the aggregate.
func (r *Recorder) Record(ctx context.Context, rec StatRecord) error {
	stat, agg, err := r.load(ctx)
	if err != nil {
		return err
	}

	stat.Runs = append(stat.Runs, rec)
	data, err := json.Marshal(stat)
	if err != nil {
		return fmt.Errorf("encode statistics: %w", err)
	}
	agg.Data = data

	if err := r.store.PersistAggregate(ctx, agg); err != nil {
		return fmt.Errorf("record %q: %w", rec.Description, err)
	}
	return nil
}

// Runs returns every recorded run in append order.
func (r *Recorder) Runs(ctx context.Context) ([]StatRecord, error) {
	stat, _, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return stat.Runs, nil
}

// Raw returns the stored aggregate as JSON, or an empty statistic when
// nothing was recorded yet.
func (r *Recorder) Raw(ctx context.Context) ([]byte, error) {
	_, agg, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	if agg.Version == 0 {
		return json.Marshal(Statistic{ID: AggregateKey, Runs: []StatRecord{}})
	}
	return agg.Data, nil
}

func (r *Recorder) load(ctx context.Context) (*Statistic, *store.Aggregate, error) {
	agg, err := r.store.LoadAggregate(ctx, AggregateKey)
	if errors.Is(err, store.ErrNotFound) {
		return &Statistic{ID: AggregateKey}, &store.Aggregate{Key: AggregateKey}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load statistics: %w", err)
	}

	var stat Statistic
	if err := json.Unmarshal(agg.Data, &stat); err != nil {
		return nil, nil, fmt.Errorf("decode statistics: %w", err)
	}
	if stat.ID == "" {
		stat.ID = AggregateKey
	}
	return &stat, agg, nil
}
