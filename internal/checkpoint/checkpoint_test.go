package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/BountyIndexor/internal/db"
	"github.com/goran-ethernal/BountyIndexor/internal/logger"
	"github.com/goran-ethernal/BountyIndexor/internal/migrations"
	"github.com/stretchr/testify/require"
)

func setupManager(t *testing.T) (*Manager, *sql.DB) {
	t.Helper()

	database, err := db.NewSQLiteDB(filepath.Join(t.TempDir(), "checkpoint.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	log := logger.NewNopLogger()
	require.NoError(t, migrations.RunMigrations(log, database))

	return NewManager(database, nil, log), database
}

func advance(t *testing.T, m *Manager, database *sql.DB, state State) error {
	t.Helper()

	tx, err := database.BeginTx(context.Background(), nil)
	require.NoError(t, err)

	if err := m.AdvanceTx(context.Background(), tx, state); err != nil {
		require.NoError(t, tx.Rollback())
		return err
	}
	return tx.Commit()
}

func TestManager_NoCheckpoint(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	_, ok, err := m.LastProcessed(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	height, err := m.ResumeHeight(ctx, 1234)
	require.NoError(t, err)
	require.Equal(t, uint64(1234), height)
}

func TestManager_Advance(t *testing.T) {
	m, database := setupManager(t)
	ctx := context.Background()

	hash := common.HexToHash("0x01f4")
	now := time.Unix(1_700_000_000, 0)
	require.NoError(t, advance(t, m, database, State{Height: 500, BlockHash: hash, UpdatedAt: now}))

	state, ok, err := m.LastProcessed(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(500), state.Height)
	require.Equal(t, hash, state.BlockHash)
	require.Equal(t, now.Unix(), state.UpdatedAt.Unix())

	height, err := m.ResumeHeight(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(501), height)

	require.NoError(t, advance(t, m, database, State{Height: 600, BlockHash: common.HexToHash("0x0258")}))
	state, _, err = m.LastProcessed(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(600), state.Height)
}

func TestManager_AdvanceMustIncrease(t *testing.T) {
	m, database := setupManager(t)

	require.NoError(t, advance(t, m, database, State{Height: 10}))

	err := advance(t, m, database, State{Height: 10})
	require.True(t, errors.Is(err, ErrNotMonotonic))

	err = advance(t, m, database, State{Height: 9})
	require.True(t, errors.Is(err, ErrNotMonotonic))
}

func TestManager_RolledBackAdvanceIsInvisible(t *testing.T) {
	m, database := setupManager(t)
	ctx := context.Background()

	tx, err := database.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, m.AdvanceTx(ctx, tx, State{Height: 42}))
	require.NoError(t, tx.Rollback())

	_, ok, err := m.LastProcessed(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestManager_Clear(t *testing.T) {
	m, database := setupManager(t)
	ctx := context.Background()

	require.NoError(t, advance(t, m, database, State{Height: 10}))

	tx, err := database.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, m.ClearTx(ctx, tx))
	require.NoError(t, tx.Commit())

	height, err := m.ResumeHeight(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, uint64(3), height)
}
