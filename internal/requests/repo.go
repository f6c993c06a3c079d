package requests

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/garagebid/garagebid-backend/pkg/db/models"
	"github.com/garagebid/garagebid-backend/pkg/enums"
	"github.com/garagebid/garagebid-backend/pkg/pagination"
)

// Repository manages persistence for part requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.PartRequest) error
	FindByID(ctx context.Context, requestID uuid.UUID) (*models.PartRequest, error)
	FindByIDForUpdate(ctx context.Context, requestID uuid.UUID) (*models.PartRequest, error)
	Update(ctx context.Context, requestID uuid.UUID, updates map[string]any) error
	ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.PartRequest, error)
	ListPendingBids(ctx context.Context, requestID uuid.UUID) ([]models.Bid, error)
	RejectPendingBids(ctx context.Context, requestID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a part request repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.PartRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindByID(ctx context.Context, requestID uuid.UUID) (*models.PartRequest, error) {
	var request models.PartRequest
	err := r.db.WithContext(ctx).
		Where("id = ?", requestID).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, requestID uuid.UUID) (*models.PartRequest, error) {
	var request models.PartRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", requestID).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) Update(ctx context.Context, requestID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.PartRequest{}).
		Where("id = ?", requestID).
		Updates(updates).Error
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.PartRequest, error) {
	query := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))
	if cursor, err := pagination.ParseCursor(params.Cursor); err == nil && cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.PartRequest
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListPendingBids(ctx context.Context, requestID uuid.UUID) ([]models.Bid, error) {
	var bids []models.Bid
	err := r.db.WithContext(ctx).
		Where("request_id = ? AND status = ?", requestID, enums.BidStatusPending).
		Find(&bids).Error
	if err != nil {
		return nil, err
	}
	return bids, nil
}

func (r *repository) RejectPendingBids(ctx context.Context, requestID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("request_id = ? AND status = ?", requestID, enums.BidStatusPending).
		Update("status", enums.BidStatusRejected).Error
}
