package wallets

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/garagebid/garagebid-backend/pkg/db/models"
	"github.com/garagebid/garagebid-backend/pkg/pagination"
)

func setupWalletsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	wallets := `
CREATE TABLE IF NOT EXISTS driver_wallets (
  id TEXT PRIMARY KEY,
  driver_id TEXT NOT NULL UNIQUE,
  balance NUMERIC NOT NULL DEFAULT 0,
  total_earned NUMERIC NOT NULL DEFAULT 0,
  cash_collected NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	transactions := `
CREATE TABLE IF NOT EXISTS driver_transactions (
  id TEXT PRIMARY KEY,
  wallet_id TEXT NOT NULL,
  type TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  reference_id TEXT,
  description TEXT NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(wallets).Error)
	require.NoError(t, db.Exec(transactions).Error)
	return db
}

func newWallet(t *testing.T, db *gorm.DB, driverID uuid.UUID) *models.DriverWallet {
	t.Helper()

	wallet := &models.DriverWallet{
		ID:       uuid.New(),
		DriverID: driverID,
	}
	require.NoError(t, db.Create(wallet).Error)
	return wallet
}

func newTransaction(t *testing.T, db *gorm.DB, walletID uuid.UUID, amount string, created time.Time) *models.DriverTransaction {
	t.Helper()

	txn := &models.DriverTransaction{
		ID:          uuid.New(),
		WalletID:    walletID,
		Type:        "earning",
		Amount:      dec(amount),
		Description: "test entry",
		CreatedAt:   created,
	}
	require.NoError(t, db.Create(txn).Error)
	return txn
}

func TestFindWalletByDriverID(t *testing.T) {
	db := setupWalletsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	driverID := uuid.New()
	created := newWallet(t, db, driverID)

	found, err := repo.FindWalletByDriverID(ctx, driverID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = repo.FindWalletByDriverID(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUpdateWalletAggregates(t *testing.T) {
	db := setupWalletsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	wallet := newWallet(t, db, uuid.New())

	require.NoError(t, repo.UpdateWallet(ctx, wallet.ID, map[string]any{
		"balance":      dec("42.50"),
		"total_earned": dec("42.50"),
	}))

	found, err := repo.FindWalletByDriverID(ctx, wallet.DriverID)
	require.NoError(t, err)
	assert.True(t, found.Balance.Equal(dec("42.50")), "balance %s", found.Balance)
	assert.True(t, found.TotalEarned.Equal(dec("42.50")), "total_earned %s", found.TotalEarned)
	assert.True(t, found.CashCollected.IsZero())
}

func TestListTransactionsPagination(t *testing.T) {
	db := setupWalletsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	wallet := newWallet(t, db, uuid.New())
	base := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		newTransaction(t, db, wallet.ID, "10.00", base.Add(time.Duration(i)*time.Minute))
	}

	// first page: newest first, limit+1 buffer row signals the next page
	page, err := repo.ListTransactions(ctx, wallet.ID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	cursor := pagination.EncodeCursor(pagination.Cursor{CreatedAt: page[1].CreatedAt, ID: page[1].ID})
	next, err := repo.ListTransactions(ctx, wallet.ID, pagination.Params{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.NotEmpty(t, next)
	for _, txn := range next {
		assert.True(t, txn.CreatedAt.Before(page[1].CreatedAt))
	}
}

func TestListTransactionsScopedToWallet(t *testing.T) {
	db := setupWalletsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	mine := newWallet(t, db, uuid.New())
	other := newWallet(t, db, uuid.New())
	newTransaction(t, db, mine.ID, "10.00", time.Now())
	newTransaction(t, db, other.ID, "99.00", time.Now())

	page, err := repo.ListTransactions(ctx, mine.ID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.True(t, page[0].Amount.Equal(dec("10.00")))
}
