package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/garagebid/garagebid-backend/pkg/enums"
)

// Garage is a parts seller that bids on customer requests.
type Garage struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string               `gorm:"column:name;not null"`
	Phone          *string              `gorm:"column:phone"`
	Email          *string              `gorm:"column:email"`
	ApprovalStatus enums.ApprovalStatus `gorm:"column:approval_status;type:text;not null;default:'pending'"`
	Rating         *float64             `gorm:"column:rating"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
