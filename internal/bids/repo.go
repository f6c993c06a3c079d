package bids

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/garagebid/garagebid-backend/pkg/db/models"
	"github.com/garagebid/garagebid-backend/pkg/enums"
)

// Repository manages persistence for bids and the order rows the acceptance
// transaction creates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, bid *models.Bid) error
	FindByID(ctx context.Context, bidID uuid.UUID) (*models.Bid, error)
	FindByIDForUpdate(ctx context.Context, bidID uuid.UUID) (*models.Bid, error)
	Update(ctx context.Context, bidID uuid.UUID, updates map[string]any) error
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.Bid, error)
	ListPendingSiblings(ctx context.Context, requestID, excludeBidID uuid.UUID) ([]models.Bid, error)
	RejectBids(ctx context.Context, bidIDs []uuid.UUID) error
	CountActiveBidsByGarage(ctx context.Context, requestID, garageID uuid.UUID) (int64, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateHistory(ctx context.Context, row *models.OrderStatusHistory) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a bid repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, bid *models.Bid) error {
	return r.db.WithContext(ctx).Create(bid).Error
}

func (r *repository) FindByID(ctx context.Context, bidID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	err := r.db.WithContext(ctx).
		Where("id = ?", bidID).
		First(&bid).Error
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, bidID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", bidID).
		First(&bid).Error
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

func (r *repository) Update(ctx context.Context, bidID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("id = ?", bidID).
		Updates(updates).Error
}

func (r *repository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.Bid, error) {
	var bids []models.Bid
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("amount ASC, created_at ASC").
		Find(&bids).Error
	if err != nil {
		return nil, err
	}
	return bids, nil
}

func (r *repository) ListPendingSiblings(ctx context.Context, requestID, excludeBidID uuid.UUID) ([]models.Bid, error) {
	var bids []models.Bid
	err := r.db.WithContext(ctx).
		Where("request_id = ? AND status = ? AND id <> ?", requestID, enums.BidStatusPending, excludeBidID).
		Find(&bids).Error
	if err != nil {
		return nil, err
	}
	return bids, nil
}

func (r *repository) RejectBids(ctx context.Context, bidIDs []uuid.UUID) error {
	if len(bidIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("id IN ?", bidIDs).
		Update("status", enums.BidStatusRejected).Error
}

func (r *repository) CountActiveBidsByGarage(ctx context.Context, requestID, garageID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("request_id = ? AND garage_id = ? AND status = ?", requestID, garageID, enums.BidStatusPending).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) CreateHistory(ctx context.Context, row *models.OrderStatusHistory) error {
	return r.db.WithContext(ctx).Create(row).Error
}
