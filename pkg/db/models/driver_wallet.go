package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DriverWallet holds a driver's running balance. The aggregate fields must
// always equal the fold of the wallet's transactions; all mutations go
// through the wallet service's AddTransaction.
type DriverWallet struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DriverID      uuid.UUID       `gorm:"column:driver_id;type:uuid;not null;uniqueIndex:idx_driver_wallets_driver_id"`
	Balance       decimal.Decimal `gorm:"column:balance;type:numeric(12,2);not null;default:0"`
	TotalEarned   decimal.Decimal `gorm:"column:total_earned;type:numeric(12,2);not null;default:0"`
	CashCollected decimal.Decimal `gorm:"column:cash_collected;type:numeric(12,2);not null;default:0"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
