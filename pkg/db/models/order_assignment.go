package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/garagebid/garagebid-backend/pkg/enums"
)

// OrderAssignment is a driver's unit of work against an order. The same
// driver status maps to different order statuses depending on Type.
type OrderAssignment struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID              `gorm:"column:order_id;type:uuid;not null"`
	DriverID    uuid.UUID              `gorm:"column:driver_id;type:uuid;not null"`
	Type        enums.AssignmentType   `gorm:"column:type;type:text;not null"`
	Status      enums.AssignmentStatus `gorm:"column:status;type:text;not null;default:'assigned'"`
	Active      bool                   `gorm:"column:active;not null;default:true"`
	AssignedAt  time.Time              `gorm:"column:assigned_at;autoCreateTime"`
	PickedUpAt  *time.Time             `gorm:"column:picked_up_at"`
	DeliveredAt *time.Time             `gorm:"column:delivered_at"`
	FailedAt    *time.Time             `gorm:"column:failed_at"`
	FailReason  *string                `gorm:"column:fail_reason"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
