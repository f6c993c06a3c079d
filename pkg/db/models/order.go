package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garagebid/garagebid-backend/pkg/enums"
)

// Order is created once per accepted bid and carries the frozen financial
// snapshot computed at acceptance time. The bid_id unique index backs the
// one-order-per-bid invariant at the storage level.
type Order struct {
	ID                 uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber        string               `gorm:"column:order_number;not null;uniqueIndex"`
	BidID              uuid.UUID            `gorm:"column:bid_id;type:uuid;not null;uniqueIndex:idx_orders_bid_id"`
	RequestID          uuid.UUID            `gorm:"column:request_id;type:uuid;not null"`
	CustomerID         uuid.UUID            `gorm:"column:customer_id;type:uuid;not null"`
	GarageID           uuid.UUID            `gorm:"column:garage_id;type:uuid;not null"`
	PartPrice          decimal.Decimal      `gorm:"column:part_price;type:numeric(12,2);not null"`
	CommissionRate     decimal.Decimal      `gorm:"column:commission_rate;type:numeric(6,4);not null"`
	PlatformFee        decimal.Decimal      `gorm:"column:platform_fee;type:numeric(12,2);not null"`
	DeliveryFee        decimal.Decimal      `gorm:"column:delivery_fee;type:numeric(12,2);not null"`
	TotalAmount        decimal.Decimal      `gorm:"column:total_amount;type:numeric(12,2);not null"`
	GaragePayoutAmount decimal.Decimal      `gorm:"column:garage_payout_amount;type:numeric(12,2);not null"`
	DeliveryZoneID     *uuid.UUID           `gorm:"column:delivery_zone_id;type:uuid"`
	PaymentMethod      enums.PaymentMethod  `gorm:"column:payment_method;type:text;not null;default:'cash'"`
	DeliveryNotes      *string              `gorm:"column:delivery_notes"`
	Status             enums.OrderStatus    `gorm:"column:status;type:text;not null;default:'confirmed'"`
	DeliveredAt        *time.Time           `gorm:"column:delivered_at"`
	CompletedAt        *time.Time           `gorm:"column:completed_at"`
	StatusHistory      []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Assignments        []OrderAssignment    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
