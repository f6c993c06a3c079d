package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/garagebid/garagebid-backend/pkg/enums"
)

// Driver is a courier who collects and delivers parts.
type Driver struct {
	ID                  uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                string             `gorm:"column:name;not null"`
	Phone               *string            `gorm:"column:phone"`
	Status              enums.DriverStatus `gorm:"column:status;type:text;not null;default:'offline'"`
	CompletedDeliveries int                `gorm:"column:completed_deliveries;not null;default:0"`
	CreatedAt           time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
