package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/garagebid/garagebid-backend/pkg/db/models"
	"github.com/garagebid/garagebid-backend/pkg/enums"
)

// Repository manages persistence for garage payouts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payout *models.GaragePayout) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.GaragePayout, error)
	FindByOrderIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.GaragePayout, error)
	FindByIDForUpdate(ctx context.Context, payoutID uuid.UUID) (*models.GaragePayout, error)
	Update(ctx context.Context, payoutID uuid.UUID, updates map[string]any) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.GaragePayout, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payout repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payout *models.GaragePayout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.GaragePayout, error) {
	var payout models.GaragePayout
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) FindByOrderIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.GaragePayout, error) {
	var payout models.GaragePayout
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", orderID).
		First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, payoutID uuid.UUID) (*models.GaragePayout, error) {
	var payout models.GaragePayout
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", payoutID).
		First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) Update(ctx context.Context, payoutID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.GaragePayout{}).
		Where("id = ?", payoutID).
		Updates(updates).Error
}

func (r *repository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.GaragePayout, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", enums.PayoutStatusPending, now).
		Order("scheduled_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var payouts []models.GaragePayout
	if err := query.Find(&payouts).Error; err != nil {
		return nil, err
	}
	return payouts, nil
}
