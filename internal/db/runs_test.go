package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockStore(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewWithPool(mock), mock
}

func TestTryAcquireTimeframeLock(t *testing.T) {
	store, mock := mockStore(t)
	owner := uuid.New()

	t.Run("acquired", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO pipeline_locks").
			WithArgs("1h", owner, lockStaleAfter.Seconds()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		ok, err := store.TryAcquireTimeframeLock(context.Background(), "1h", owner)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("held by another worker", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO pipeline_locks").
			WithArgs("1h", owner, lockStaleAfter.Seconds()).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))

		ok, err := store.TryAcquireTimeframeLock(context.Background(), "1h", owner)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseTimeframeLock(t *testing.T) {
	store, mock := mockStore(t)
	owner := uuid.New()

	mock.ExpectExec("UPDATE pipeline_locks").
		WithArgs("1h", owner).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.ReleaseTimeframeLock(context.Background(), "1h", owner))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRun(t *testing.T) {
	store, mock := mockStore(t)

	mock.ExpectExec("INSERT INTO computation_runs").
		WithArgs(pgxmock.AnyArg(), "1h", pgxmock.AnyArg(), RunStatusRunning).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := store.CreateRun(context.Background(), "1h")
	require.NoError(t, err)
	assert.Equal(t, "1h", run.Timeframe)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.NotEqual(t, uuid.Nil, run.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteRun(t *testing.T) {
	store, mock := mockStore(t)
	runID := uuid.New()

	mock.ExpectExec("UPDATE computation_runs").
		WithArgs(runID, RunStatusCompleted, 42).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.CompleteRun(context.Background(), runID, 42))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailRun(t *testing.T) {
	store, mock := mockStore(t)
	runID := uuid.New()

	mock.ExpectExec("UPDATE computation_runs").
		WithArgs(runID, RunStatusFailed, "exchange unreachable").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.FailRun(context.Background(), runID, "exchange unreachable"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLatestCompletedRun(t *testing.T) {
	store, mock := mockStore(t)
	runID := uuid.New()
	started := time.Now().Add(-10 * time.Minute)
	finished := time.Now()

	rows := pgxmock.NewRows([]string{
		"id", "timeframe", "started_at", "finished_at", "symbol_count", "status", "error_message",
	}).AddRow(runID, "1h", started, &finished, 50, RunStatusCompleted, (*string)(nil))

	mock.ExpectQuery("SELECT id, timeframe, started_at").
		WithArgs("1h").
		WillReturnRows(rows)

	run, err := store.GetLatestCompletedRun(context.Background(), "1h")
	require.NoError(t, err)
	assert.Equal(t, runID, run.ID)
	assert.Equal(t, 50, run.SymbolCount)
	assert.Equal(t, RunStatusCompleted, run.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
