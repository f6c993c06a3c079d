package zones

import (
	"context"

	"gorm.io/gorm"

	"github.com/garagebid/garagebid-backend/pkg/db/models"
)

// Repository loads delivery zone rows.
type Repository interface {
	ListZones(ctx context.Context) ([]models.DeliveryZone, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a zone repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListZones(ctx context.Context) ([]models.DeliveryZone, error) {
	var zones []models.DeliveryZone
	err := r.db.WithContext(ctx).
		Order("radius_km ASC").
		Find(&zones).Error
	if err != nil {
		return nil, err
	}
	return zones, nil
}
