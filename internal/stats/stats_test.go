package stats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/writebench/internal/store"
	"github.com/wesleyorama2/writebench/internal/store/memory"
)

func TestDocsPerSecond(t *testing.T) {
	tests := []struct {
		documents int64
		elapsed   int64
		want      int64
	}{
		{100, 0, -1},
		{0, 0, -1},
		{100, 1000, 100},
		{100, 3, 33333},
		{7, 2000, 3},
		{0, 50, 0},
		{1, 3, 333},
	}

	for _, tt := range tests {
		if got := DocsPerSecond(tt.documents, tt.elapsed); got != tt.want {
			t.Errorf("DocsPerSecond(%d, %d) = %d, want %d", tt.documents, tt.elapsed, got, tt.want)
		}
	}
}

func TestNewRecord(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	rec := NewRecord("bulk", 1000, 250*time.Millisecond+900*time.Microsecond, at)
	if rec.ElapsedMillis != 250 {
		t.Errorf("ElapsedMillis = %d, want 250", rec.ElapsedMillis)
	}
	if rec.DocsPerSecond != 4000 {
		t.Errorf("DocsPerSecond = %d, want 4000", rec.DocsPerSecond)
	}

	fast := NewRecord("fast", 10, 500*time.Microsecond, at)
	if fast.DocsPerSecond != -1 {
		t.Errorf("sub-millisecond DocsPerSecond = %d, want -1", fast.DocsPerSecond)
	}
}

func TestStatRecord_JSONFieldNames(t *testing.T) {
	rec := StatRecord{Description: "d", NumberOfDocuments: 1, ElapsedMillis: 2, DocsPerSecond: 3}
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, name := range []string{"description", "numberOfDocuments", "timeInMs", "at", "docsPerSecond"} {
		assert.Contains(t, fields, name)
	}
}

func TestRecorder_AppendsInOrder(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder(memory.Open(memory.NewDatabase()))

	runs, err := r.Runs(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	for _, name := range []string{"first", "second", "third"} {
		require.NoError(t, r.Record(ctx, StatRecord{Description: name, NumberOfDocuments: 10}))
	}

	runs, err = r.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "first", runs[0].Description)
	assert.Equal(t, "third", runs[2].Description)
}

func TestRecorder_StaleVersionConflicts(t *testing.T) {
	ctx := context.Background()
	db := memory.NewDatabase()
	s := memory.Open(db)
	r := NewRecorder(s)
	require.NoError(t, r.Record(ctx, StatRecord{Description: "seed"}))

	stale, err := s.LoadAggregate(ctx, AggregateKey)
	require.NoError(t, err)

	require.NoError(t, r.Record(ctx, StatRecord{Description: "winner"}))

	stale.Data = []byte(`{"id":"statistics","runs":[]}`)
	err = s.PersistAggregate(ctx, stale)
	assert.ErrorIs(t, err, store.ErrWriteConflict)

	runs, err := r.Runs(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

// racingStore persists a competing write between load and persist.
type racingStore struct {
	*memory.Store
	raced bool
}

func (s *racingStore) PersistAggregate(ctx context.Context, agg *store.Aggregate) error {
	if !s.raced {
		s.raced = true
		competitor := &store.Aggregate{Key: agg.Key, Version: agg.Version, Data: []byte(`{"runs":[]}`)}
		if err := s.Store.PersistAggregate(ctx, competitor); err != nil {
			return err
		}
	}
	return s.Store.PersistAggregate(ctx, agg)
}

func TestRecorder_ConcurrentWriterLoses(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder(&racingStore{Store: memory.Open(memory.NewDatabase())})

	err := r.Record(ctx, StatRecord{Description: "loser"})
	if !errors.Is(err, store.ErrWriteConflict) {
		t.Fatalf("Record() error = %v, want ErrWriteConflict", err)
	}
}

func TestRecorder_Raw(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder(memory.Open(memory.NewDatabase()))

	raw, err := r.Raw(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"statistics","runs":[]}`, string(raw))

	require.NoError(t, r.Record(ctx, StatRecord{Description: "one", DocsPerSecond: 42}))
	raw, err = r.Raw(ctx)
	require.NoError(t, err)

	got, err := Query(raw, "runs.0.docsPerSecond")
	require.NoError(t, err)
	assert.Equal(t, "42", got)
}

func TestQuery(t *testing.T) {
	data := []byte(`{"id":"statistics","runs":[
		{"description":"a","timeInMs":10,"docsPerSecond":100},
		{"description":"b","timeInMs":20,"docsPerSecond":null}
	]}`)

	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"id", "statistics", false},
		{"runs.#", "2", false},
		{"runs.1.description", "b", false},
		{"$.runs[0].timeInMs", "10", false},
		{"$['runs'][1]['description']", "b", false},
		{"runs.#.description", `["a","b"]`, false},
		{"runs.1.docsPerSecond", "null", false},
		{"runs.5.description", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := Query(data, tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Query(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Query(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}

	if _, err := Query(nil, "id"); err == nil {
		t.Error("Query(nil) should fail")
	}
}
