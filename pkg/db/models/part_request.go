package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/garagebid/garagebid-backend/pkg/enums"
)

// PartRequest is a customer's ask for a vehicle part. Once accepted or
// cancelled only the status field may change.
type PartRequest struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID   uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	VehicleMake  string              `gorm:"column:vehicle_make;not null"`
	VehicleModel string              `gorm:"column:vehicle_model;not null"`
	VehicleYear  int                 `gorm:"column:vehicle_year;not null"`
	PartName     string              `gorm:"column:part_name;not null"`
	Description  *string             `gorm:"column:description"`
	DeliveryLat  *float64            `gorm:"column:delivery_lat"`
	DeliveryLng  *float64            `gorm:"column:delivery_lng"`
	Status       enums.RequestStatus `gorm:"column:status;type:text;not null;default:'active'"`
	Bids         []Bid               `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
