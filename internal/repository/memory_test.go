package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/core-coin/offramp/internal/models"
)

func TestMemoryTransfers(t *testing.T) {
	db := NewMemoryDB()

	require.NoError(t, db.SaveTransfer(&models.TransferRecord{ID: "a", FromAddress: "0xAbC", Step: "validating", CreatedAt: 1}))
	require.NoError(t, db.SaveTransfer(&models.TransferRecord{ID: "a", FromAddress: "0xAbC", Step: "completed", CreatedAt: 1}))
	require.NoError(t, db.SaveTransfer(&models.TransferRecord{ID: "b", FromAddress: "0xabc", Step: "error", CreatedAt: 2}))
	require.NoError(t, db.SaveTransfer(&models.TransferRecord{ID: "c", FromAddress: "0xdef", CreatedAt: 3}))

	got, err := db.GetTransfer("a")
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Step)

	_, err = db.GetTransfer("missing")
	assert.ErrorIs(t, err, models.ErrTransferNotFound)

	list, err := db.ListTransfersByAddress("0xABC", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)

	list, err = db.ListTransfersByAddress("0xabc", 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMemoryWithdrawals(t *testing.T) {
	db := NewMemoryDB()

	missing, err := db.GetWithdrawalByTransferID("t-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, db.AddWithdrawal(&models.WithdrawalRecord{TransferID: "t-1", WithdrawalID: "wd_1", Status: models.WithdrawalStatusSubmitted}))
	got, err := db.GetWithdrawalByTransferID("t-1")
	require.NoError(t, err)
	assert.Equal(t, "wd_1", got.WithdrawalID)
	assert.NotZero(t, got.ID)
}

func TestMemorySessionLocks(t *testing.T) {
	db := NewMemoryDB()
	now := time.Unix(1_700_000_000, 0)
	db.now = func() time.Time { return now }

	ok, err := db.AcquireSessionLock("wallet:0x1", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.AcquireSessionLock("wallet:0x1", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.ReleaseSessionLock("wallet:0x1", "b"))
	ok, _ = db.AcquireSessionLock("wallet:0x1", "b", time.Minute)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = db.AcquireSessionLock("wallet:0x1", "b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, db.RemoveExpiredSessionLocks(now.Add(2*time.Minute).Unix()))
	ok, _ = db.AcquireSessionLock("wallet:0x1", "c", time.Minute)
	assert.True(t, ok)
}
