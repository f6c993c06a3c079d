package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garagebid/garagebid-backend/pkg/enums"
)

// Bid is a garage's priced offer against one part request. Amount may be
// rewritten by an accepted counter offer while the bid is still pending; the
// negotiation event log keeps the price history.
type Bid struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RequestID     uuid.UUID       `gorm:"column:request_id;type:uuid;not null"`
	GarageID      uuid.UUID       `gorm:"column:garage_id;type:uuid;not null"`
	Amount        decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Condition     string          `gorm:"column:condition;not null;default:'used'"`
	WarrantyDays  int             `gorm:"column:warranty_days;not null;default:0"`
	Status        enums.BidStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	CounterOffers []CounterOffer  `gorm:"foreignKey:BidID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
