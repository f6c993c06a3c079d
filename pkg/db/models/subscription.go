package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/garagebid/garagebid-backend/pkg/enums"
)

// Subscription ties a garage to a billing plan. The commission resolver only
// honors active and trial subscriptions.
type Subscription struct {
	ID        uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GarageID  uuid.UUID                `gorm:"column:garage_id;type:uuid;not null"`
	PlanID    uuid.UUID                `gorm:"column:plan_id;type:uuid;not null"`
	Status    enums.SubscriptionStatus `gorm:"column:status;type:text;not null;default:'trial'"`
	StartedAt time.Time                `gorm:"column:started_at;not null"`
	ExpiresAt *time.Time               `gorm:"column:expires_at"`
	Plan      *BillingPlan             `gorm:"foreignKey:PlanID"`
	CreatedAt time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
