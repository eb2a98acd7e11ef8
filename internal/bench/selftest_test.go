package bench

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/writebench/internal/store"
	"github.com/wesleyorama2/writebench/internal/store/memory"
	"github.com/wesleyorama2/writebench/internal/store/sqlite"
	"github.com/wesleyorama2/writebench/internal/txn"
)

func checkSelfTestReports(t *testing.T, reports []TransactionReport) {
	t.Helper()
	require.Len(t, reports, 2)

	var committed, conflicted int
	for _, r := range reports {
		assert.NotEmpty(t, r.TransactionID)
		switch r.Status {
		case txn.StatusCommitted:
			committed++
			for _, st := range r.Participants {
				assert.Equal(t, txn.StateCommitted, st)
			}
		case txn.StatusRolledBack:
			conflicted++
			assert.True(t, errors.Is(r.Err, store.ErrWriteConflict), "loser error = %v", r.Err)
			for _, st := range r.Participants {
				assert.Equal(t, txn.StateRolledBack, st)
			}
		}
	}
	assert.Equal(t, 1, committed)
	assert.Equal(t, 1, conflicted)
}

func TestCoordinationSelfTest_Memory(t *testing.T) {
	ctx := context.Background()
	s := memory.Open(memory.NewDatabase())
	manager := txn.NewLocalManager()

	reports, err := RunCoordinationSelfTest(ctx, s, manager, discardLogger())
	require.NoError(t, err)
	checkSelfTestReports(t, reports)

	// two notifications plus the store's own participant
	for _, r := range reports {
		assert.Len(t, r.Participants, 3)
	}

	begun, committed, rolledBack := manager.Counts()
	assert.Equal(t, int64(2), begun)
	assert.Equal(t, int64(1), committed)
	assert.Equal(t, int64(1), rolledBack)

	agg, err := s.LoadAggregate(ctx, SelfTestKey)
	require.NoError(t, err)
	assert.Equal(t, int64(2), agg.Version, "seed plus exactly one update")

	// repeatable against an existing aggregate
	reports, err = RunCoordinationSelfTest(ctx, s, manager, discardLogger())
	require.NoError(t, err)
	checkSelfTestReports(t, reports)
}

func TestCoordinationSelfTest_SQLite(t *testing.T) {
	ctx := context.Background()
	s, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "dtc.db"))
	require.NoError(t, err)
	defer s.Close()

	reports, err := RunCoordinationSelfTest(ctx, s, txn.NewLocalManager(), discardLogger())
	require.NoError(t, err)
	checkSelfTestReports(t, reports)
}
