package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/garagebid/garagebid-backend/pkg/enums"
)

// OrderStatusHistory is the immutable audit trail of order transitions. One
// row per transition; never updated or deleted.
type OrderStatusHistory struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID          `gorm:"column:order_id;type:uuid;not null"`
	OldStatus *enums.OrderStatus `gorm:"column:old_status;type:text"`
	NewStatus enums.OrderStatus  `gorm:"column:new_status;type:text;not null"`
	ActorID   uuid.UUID          `gorm:"column:actor_id;type:uuid;not null"`
	ActorType enums.ActorType    `gorm:"column:actor_type;type:text;not null"`
	Reason    *string            `gorm:"column:reason"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
}
