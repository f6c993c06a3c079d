package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeliveryZone is a circular pricing zone. Coordinates inside RadiusKM of the
// center resolve to the zone's fee; everything else falls back to the flat
// default.
type DeliveryZone struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string          `gorm:"column:name;not null;uniqueIndex"`
	CenterLat float64         `gorm:"column:center_lat;not null"`
	CenterLng float64         `gorm:"column:center_lng;not null"`
	RadiusKM  float64         `gorm:"column:radius_km;not null"`
	Fee       decimal.Decimal `gorm:"column:fee;type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
