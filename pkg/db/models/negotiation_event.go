package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garagebid/garagebid-backend/pkg/enums"
)

// NegotiationEvent is an append-only record of one negotiation action on a
// bid, queryable independent of the bid's current price. Never updated or
// deleted.
type NegotiationEvent struct {
	ID             uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BidID          uuid.UUID                  `gorm:"column:bid_id;type:uuid;not null"`
	CounterOfferID *uuid.UUID                 `gorm:"column:counter_offer_id;type:uuid"`
	EventType      enums.NegotiationEventType `gorm:"column:event_type;type:text;not null"`
	ActorType      enums.ActorType            `gorm:"column:actor_type;type:text;not null"`
	ActorID        uuid.UUID                  `gorm:"column:actor_id;type:uuid;not null"`
	Amount         *decimal.Decimal           `gorm:"column:amount;type:numeric(12,2)"`
	Note           *string                    `gorm:"column:note"`
	CreatedAt      time.Time                  `gorm:"column:created_at;autoCreateTime"`
}
