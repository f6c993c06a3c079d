package payouts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/garagebid/garagebid-backend/internal/notifications"
	"github.com/garagebid/garagebid-backend/pkg/db/models"
	"github.com/garagebid/garagebid-backend/pkg/enums"
	pkgerrors "github.com/garagebid/garagebid-backend/pkg/errors"
	"github.com/garagebid/garagebid-backend/pkg/logger"
	"github.com/garagebid/garagebid-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service moves scheduled payouts through their lifecycle. Creation happens
// inside the order-completion transaction; release is driven by operations or
// the scheduled sweep.
type Service interface {
	Release(ctx context.Context, payoutID uuid.UUID) (*models.GaragePayout, error)
	ReleaseDue(ctx context.Context, now time.Time) (int, error)
	ForOrder(ctx context.Context, orderID uuid.UUID) (*models.GaragePayout, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	notifier notifications.Notifier
	logg     *logger.Logger
	metrics  *metrics.MarketplaceMetrics
}

// NewService wires the payout service.
func NewService(repo Repository, tx txRunner, notifier notifications.Notifier, logg *logger.Logger, mkt *metrics.MarketplaceMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payout repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &service{repo: repo, tx: tx, notifier: notifier, logg: logg, metrics: mkt}, nil
}

func (s *service) Release(ctx context.Context, payoutID uuid.UUID) (*models.GaragePayout, error) {
	if payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}

	var released *models.GaragePayout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		payout, err := repo.FindByIDForUpdate(ctx, payoutID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock payout")
		}
		if payout.Status != enums.PayoutStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("payout is %s, only pending payouts release", payout.Status))
		}

		now := time.Now().UTC()
		if err := repo.Update(ctx, payout.ID, map[string]any{
			"status":       enums.PayoutStatusProcessing,
			"processed_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release payout")
		}
		payout.Status = enums.PayoutStatusProcessing
		payout.ProcessedAt = &now
		released = payout
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncPayoutReleased()
	s.notify(ctx, released)
	return released, nil
}

// ReleaseDue releases every pending payout whose scheduled date has passed,
// one transaction per payout so a single failure cannot block the batch.
func (s *service) ReleaseDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.ListDue(ctx, now, 0)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list due payouts")
	}

	released := 0
	for _, payout := range due {
		if _, err := s.Release(ctx, payout.ID); err != nil {
			if s.logg != nil {
				s.logg.Error(ctx, fmt.Sprintf("release payout %s", payout.ID), err)
			}
			continue
		}
		released++
	}
	return released, nil
}

func (s *service) ForOrder(ctx context.Context, orderID uuid.UUID) (*models.GaragePayout, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	payout, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	return payout, nil
}

func (s *service) notify(ctx context.Context, payout *models.GaragePayout) {
	err := s.notifier.Notify(ctx, notifications.Event{
		Recipient:     payout.GarageID,
		RecipientRole: enums.ActorTypeGarage,
		Type:          notifications.EventPayoutReleased,
		Payload: map[string]any{
			"payout_id": payout.ID.String(),
			"order_id":  payout.OrderID.String(),
			"amount":    payout.Amount.String(),
		},
	})
	if err != nil && s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("notification %s failed: %v", notifications.EventPayoutReleased, err))
	}
}
