package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garagebid/garagebid-backend/pkg/enums"
)

// GaragePayout is the money owed to a garage for a completed order. At most
// one payout exists per order; disputes may hold, cancel or adjust it.
type GaragePayout struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID          `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_garage_payouts_order_id"`
	GarageID    uuid.UUID          `gorm:"column:garage_id;type:uuid;not null"`
	Amount      decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null"`
	Status      enums.PayoutStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	ScheduledAt time.Time          `gorm:"column:scheduled_at;not null"`
	ProcessedAt *time.Time         `gorm:"column:processed_at"`
	HoldReason  *string            `gorm:"column:hold_reason"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
