package subscriptions

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/garagebid/garagebid-backend/pkg/config"
	"github.com/garagebid/garagebid-backend/pkg/db/models"
	"github.com/garagebid/garagebid-backend/pkg/enums"
	pkgerrors "github.com/garagebid/garagebid-backend/pkg/errors"
)

// CommissionResolver decides the commission rate applied when a garage's bid
// becomes an order. The resolved rate is frozen onto the order row.
type CommissionResolver interface {
	RateForGarage(ctx context.Context, garageID uuid.UUID) (decimal.Decimal, error)
}

type resolver struct {
	repo        Repository
	defaultRate decimal.Decimal
}

// NewCommissionResolver wires the resolver with its repository and the
// platform default rate.
func NewCommissionResolver(repo Repository, cfg config.MarketplaceConfig) (CommissionResolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	return &resolver{
		repo:        repo,
		defaultRate: decimal.NewFromFloat(cfg.DefaultCommissionRate),
	}, nil
}

// RateForGarage resolves in precedence order: demo garages pay nothing, a
// current subscription pays its plan rate, everyone else pays the default.
func (r *resolver) RateForGarage(ctx context.Context, garageID uuid.UUID) (decimal.Decimal, error) {
	if garageID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "garage id required")
	}

	garage, err := r.repo.FindGarageByID(ctx, garageID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "garage not found")
		}
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load garage")
	}
	if garage.ApprovalStatus == enums.ApprovalStatusDemo {
		return decimal.Zero, nil
	}

	sub, err := r.repo.FindCurrentSubscription(ctx, garageID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return r.defaultRate, nil
		}
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	if rate, ok := planRate(sub); ok {
		return rate, nil
	}
	return r.defaultRate, nil
}

func planRate(sub *models.Subscription) (decimal.Decimal, bool) {
	if sub == nil || sub.Plan == nil {
		return decimal.Zero, false
	}
	if !sub.Status.GrantsCommissionRate() {
		return decimal.Zero, false
	}
	return sub.Plan.CommissionRate, true
}
