package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garagebid/garagebid-backend/pkg/enums"
)

// DriverTransaction is an immutable ledger entry against a driver wallet.
// Amount is signed: earnings are positive, cash collection obligations are
// negative.
type DriverTransaction struct {
	ID          uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID    uuid.UUID             `gorm:"column:wallet_id;type:uuid;not null"`
	Type        enums.TransactionType `gorm:"column:type;type:text;not null"`
	Amount      decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	ReferenceID *uuid.UUID            `gorm:"column:reference_id;type:uuid"`
	Description string                `gorm:"column:description;not null"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}
