package subscriptions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/garagebid/garagebid-backend/pkg/db/models"
	"github.com/garagebid/garagebid-backend/pkg/enums"
)

// Repository loads garages and their subscriptions for commission resolution.
type Repository interface {
	FindGarageByID(ctx context.Context, garageID uuid.UUID) (*models.Garage, error)
	FindCurrentSubscription(ctx context.Context, garageID uuid.UUID) (*models.Subscription, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a subscription repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindGarageByID(ctx context.Context, garageID uuid.UUID) (*models.Garage, error) {
	var garage models.Garage
	err := r.db.WithContext(ctx).
		Where("id = ?", garageID).
		First(&garage).Error
	if err != nil {
		return nil, err
	}
	return &garage, nil
}

func (r *repository) FindCurrentSubscription(ctx context.Context, garageID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("garage_id = ? AND status IN ?", garageID, []enums.SubscriptionStatus{
			enums.SubscriptionStatusActive,
			enums.SubscriptionStatusTrial,
		}).
		Order("started_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
