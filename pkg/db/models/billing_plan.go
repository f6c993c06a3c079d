package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillingPlan defines the commission rate a subscribed garage pays.
type BillingPlan struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string          `gorm:"column:name;not null;uniqueIndex"`
	CommissionRate decimal.Decimal `gorm:"column:commission_rate;type:numeric(6,4);not null"`
	MonthlyPrice   decimal.Decimal `gorm:"column:monthly_price;type:numeric(12,2);not null;default:0"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
