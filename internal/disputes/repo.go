package disputes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/garagebid/garagebid-backend/pkg/db/models"
	"github.com/garagebid/garagebid-backend/pkg/enums"
)

// Repository manages persistence for disputes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, dispute *models.Dispute) error
	FindByID(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error)
	FindByIDForUpdate(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error)
	Update(ctx context.Context, disputeID uuid.UUID, updates map[string]any) error
	ListStaleContested(ctx context.Context, cutoff time.Time) ([]models.Dispute, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a dispute repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, dispute *models.Dispute) error {
	return r.db.WithContext(ctx).Create(dispute).Error
}

func (r *repository) FindByID(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.WithContext(ctx).
		Where("id = ?", disputeID).
		First(&dispute).Error
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", disputeID).
		First(&dispute).Error
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&dispute).Error
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) Update(ctx context.Context, disputeID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("id = ?", disputeID).
		Updates(updates).Error
}

func (r *repository) ListStaleContested(ctx context.Context, cutoff time.Time) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.WithContext(ctx).
		Where("status = ? AND contested_at <= ?", enums.DisputeStatusContested, cutoff).
		Order("contested_at ASC").
		Find(&disputes).Error
	if err != nil {
		return nil, err
	}
	return disputes, nil
}
