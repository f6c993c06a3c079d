package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garagebid/garagebid-backend/pkg/enums"
)

// CounterOffer is a single negotiation turn on a bid. At most one pending
// counter offer may exist per bid; round numbers strictly increase.
type CounterOffer struct {
	ID            uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BidID         uuid.UUID                `gorm:"column:bid_id;type:uuid;not null"`
	OfferedByType enums.ActorType          `gorm:"column:offered_by_type;type:text;not null"`
	OfferedByID   uuid.UUID                `gorm:"column:offered_by_id;type:uuid;not null"`
	RoundNumber   int                      `gorm:"column:round_number;not null"`
	Amount        decimal.Decimal          `gorm:"column:amount;type:numeric(12,2);not null"`
	Message       *string                  `gorm:"column:message"`
	Status        enums.CounterOfferStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	CreatedAt     time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
