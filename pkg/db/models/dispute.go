package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garagebid/garagebid-backend/pkg/enums"
)

// Dispute is a customer claim against a delivered order. The order_id unique
// index enforces one dispute per order.
type Dispute struct {
	ID                  uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID             uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_disputes_order_id"`
	CustomerID          uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	Reason              enums.DisputeReason `gorm:"column:reason;type:text;not null"`
	Description         *string             `gorm:"column:description"`
	PhotoURLs           []string            `gorm:"column:photo_urls;type:jsonb;serializer:json"`
	RefundAmount        decimal.Decimal     `gorm:"column:refund_amount;type:numeric(12,2);not null"`
	RestockingFee       decimal.Decimal     `gorm:"column:restocking_fee;type:numeric(12,2);not null"`
	DeliveryFeeRefunded bool                `gorm:"column:delivery_fee_refunded;not null;default:false"`
	ReturnShippingBy    string              `gorm:"column:return_shipping_by;not null"`
	Status              enums.DisputeStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	ContestedAt         *time.Time          `gorm:"column:contested_at"`
	ResolvedAt          *time.Time          `gorm:"column:resolved_at"`
	ResolutionNote      *string             `gorm:"column:resolution_note"`
	CreatedAt           time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
