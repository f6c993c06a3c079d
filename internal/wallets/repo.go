package wallets

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/garagebid/garagebid-backend/pkg/db/models"
	"github.com/garagebid/garagebid-backend/pkg/pagination"
)

// Repository manages persistence for driver wallets and their ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindWalletByDriverID(ctx context.Context, driverID uuid.UUID) (*models.DriverWallet, error)
	FindWalletByDriverIDForUpdate(ctx context.Context, driverID uuid.UUID) (*models.DriverWallet, error)
	CreateWallet(ctx context.Context, wallet *models.DriverWallet) error
	UpdateWallet(ctx context.Context, walletID uuid.UUID, updates map[string]any) error
	CreateTransaction(ctx context.Context, txn *models.DriverTransaction) error
	ListTransactions(ctx context.Context, walletID uuid.UUID, params pagination.Params) ([]models.DriverTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindWalletByDriverID(ctx context.Context, driverID uuid.UUID) (*models.DriverWallet, error) {
	var wallet models.DriverWallet
	err := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindWalletByDriverIDForUpdate(ctx context.Context, driverID uuid.UUID) (*models.DriverWallet, error) {
	var wallet models.DriverWallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("driver_id = ?", driverID).
		First(&wallet).Error
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) CreateWallet(ctx context.Context, wallet *models.DriverWallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repository) UpdateWallet(ctx context.Context, walletID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.DriverWallet{}).
		Where("id = ?", walletID).
		Updates(updates).Error
}

func (r *repository) CreateTransaction(ctx context.Context, txn *models.DriverTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListTransactions(ctx context.Context, walletID uuid.UUID, params pagination.Params) ([]models.DriverTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var txns []models.DriverTransaction
	if err := query.Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}
