package disputes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/garagebid/garagebid-backend/internal/fees"
	"github.com/garagebid/garagebid-backend/internal/fulfillment"
	"github.com/garagebid/garagebid-backend/internal/notifications"
	"github.com/garagebid/garagebid-backend/internal/payouts"
	"github.com/garagebid/garagebid-backend/pkg/config"
	"github.com/garagebid/garagebid-backend/pkg/db"
	"github.com/garagebid/garagebid-backend/pkg/db/models"
	"github.com/garagebid/garagebid-backend/pkg/enums"
	pkgerrors "github.com/garagebid/garagebid-backend/pkg/errors"
	"github.com/garagebid/garagebid-backend/pkg/logger"
	"github.com/garagebid/garagebid-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Resolution is the operations decision on a dispute.
type Resolution string

const (
	// ResolutionRefund upholds the claim: the customer is refunded per the
	// frozen quote and the order moves to refunded.
	ResolutionRefund Resolution = "refund"
	// ResolutionReject denies the claim and closes the order as completed.
	ResolutionReject Resolution = "reject"
)

// Service covers the dispute lifecycle: customer filing, garage contest,
// operations resolution and the stale-contest sweep.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Dispute, error)
	Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error)
	Contest(ctx context.Context, disputeID, garageID uuid.UUID) (*models.Dispute, error)
	AutoResolveStale(ctx context.Context, now time.Time) (int, error)
	ForOrder(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error)
}

// CreateInput carries a customer's dispute filing.
type CreateInput struct {
	OrderID     uuid.UUID
	CustomerID  uuid.UUID
	Reason      enums.DisputeReason
	Description *string
	PhotoURLs   []string
}

// ResolveInput carries the operations decision.
type ResolveInput struct {
	DisputeID uuid.UUID
	ActorID   uuid.UUID
	Decision  Resolution
	Note      *string
}

type service struct {
	repo       Repository
	orderRepo  fulfillment.Repository
	payoutRepo payouts.Repository
	tx         txRunner
	calc       fees.Calculator
	notifier   notifications.Notifier
	logg       *logger.Logger
	metrics    *metrics.MarketplaceMetrics
	cfg        config.MarketplaceConfig
}

// NewService wires the dispute service.
func NewService(repo Repository, orderRepo fulfillment.Repository, payoutRepo payouts.Repository, tx txRunner, calc fees.Calculator, notifier notifications.Notifier, logg *logger.Logger, mkt *metrics.MarketplaceMetrics, cfg config.MarketplaceConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("dispute repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if payoutRepo == nil {
		return nil, fmt.Errorf("payout repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &service{
		repo:       repo,
		orderRepo:  orderRepo,
		payoutRepo: payoutRepo,
		tx:         tx,
		calc:       calc,
		notifier:   notifier,
		logg:       logg,
		metrics:    mkt,
		cfg:        cfg,
	}, nil
}

// Create files a customer dispute against a delivered order. The refund quote
// is frozen at filing time so later policy changes never move an open claim.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.Dispute, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if !input.Reason.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid dispute reason %q", input.Reason))
	}
	if len(input.PhotoURLs) > s.cfg.MaxDisputePhotos {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("at most %d photos per dispute", s.cfg.MaxDisputePhotos))
	}
	if err := fees.ValidateEvidence(input.Reason, len(input.PhotoURLs)); err != nil {
		return nil, err
	}

	var (
		created *models.Dispute
		garage  uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)

		order, err := orderRepo.FindOrderByIDForUpdate(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		if order.CustomerID != input.CustomerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
		}
		if order.DeliveredAt == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order has not been delivered")
		}
		if !fees.WithinDisputeWindow(*order.DeliveredAt, time.Now().UTC(), s.cfg.DisputeWindow()) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("the %dh dispute window has closed", s.cfg.DisputeWindowHours))
		}
		if !fulfillment.CanTransition(order.Status, enums.OrderStatusDisputed) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("a %s order cannot be disputed", order.Status))
		}
		if _, err := repo.FindByOrderID(ctx, order.ID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "a dispute already exists for this order")
		} else if err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing dispute")
		}

		quote, err := s.calc.QuoteRefund(input.Reason, order.PartPrice, order.DeliveryFee)
		if err != nil {
			return err
		}
		dispute := &models.Dispute{
			ID:                  uuid.New(),
			OrderID:             order.ID,
			CustomerID:          order.CustomerID,
			Reason:              input.Reason,
			Description:         input.Description,
			PhotoURLs:           input.PhotoURLs,
			RefundAmount:        quote.RefundAmount,
			RestockingFee:       quote.RestockingFee,
			DeliveryFeeRefunded: quote.DeliveryFeeRefunded,
			ReturnShippingBy:    string(quote.ReturnShippingBy),
			Status:              enums.DisputeStatusPending,
		}
		if err := repo.Create(ctx, dispute); err != nil {
			if db.IsUniqueViolation(err, "idx_disputes_order_id") {
				return pkgerrors.New(pkgerrors.CodeConflict, "a dispute already exists for this order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create dispute")
		}

		old := order.Status
		if err := orderRepo.UpdateOrder(ctx, order.ID, map[string]any{"status": enums.OrderStatusDisputed}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order disputed")
		}
		if err := orderRepo.CreateHistory(ctx, &models.OrderStatusHistory{
			ID:        uuid.New(),
			OrderID:   order.ID,
			OldStatus: &old,
			NewStatus: enums.OrderStatusDisputed,
			ActorID:   input.CustomerID,
			ActorType: enums.ActorTypeCustomer,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		if err := s.holdPayout(ctx, tx, order.ID); err != nil {
			return err
		}

		created = dispute
		garage = order.GarageID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncDisputeOpened(created.Reason.String())
	s.notify(ctx, garage, enums.ActorTypeGarage, notifications.EventDisputeOpened, map[string]any{
		"dispute_id": created.ID.String(),
		"order_id":   created.OrderID.String(),
		"reason":     created.Reason.String(),
	})
	return created, nil
}

// Resolve applies the operations decision. Refund cancels or holds the garage
// payout and moves the order to refunded; reject closes the order as completed
// and releases a held payout back to pending.
func (s *service) Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error) {
	if input.DisputeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute id required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	if input.Decision != ResolutionRefund && input.Decision != ResolutionReject {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid resolution %q", input.Decision))
	}

	resolved, customer, err := s.resolve(ctx, input.DisputeID, input.ActorID, enums.ActorTypeOperations, input.Decision, input.Note, enums.DisputeStatusResolved)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, customer, enums.ActorTypeCustomer, notifications.EventDisputeResolved, map[string]any{
		"dispute_id": resolved.ID.String(),
		"order_id":   resolved.OrderID.String(),
		"decision":   string(input.Decision),
	})
	return resolved, nil
}

// Contest lets the garage push a pending or under-review dispute to contested
// for operations review.
func (s *service) Contest(ctx context.Context, disputeID, garageID uuid.UUID) (*models.Dispute, error) {
	if disputeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute id required")
	}
	if garageID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "garage id required")
	}

	var (
		contested *models.Dispute
		customer  uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)

		dispute, err := lockDispute(ctx, repo, disputeID)
		if err != nil {
			return err
		}
		order, err := orderRepo.FindOrderByID(ctx, dispute.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.GarageID != garageID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "dispute belongs to another garage")
		}
		if dispute.Status != enums.DisputeStatusPending && dispute.Status != enums.DisputeStatusUnderReview {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("dispute is %s, only open disputes can be contested", dispute.Status))
		}

		now := time.Now().UTC()
		if err := repo.Update(ctx, dispute.ID, map[string]any{
			"status":       enums.DisputeStatusContested,
			"contested_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "contest dispute")
		}
		dispute.Status = enums.DisputeStatusContested
		dispute.ContestedAt = &now
		contested = dispute
		customer = order.CustomerID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, customer, enums.ActorTypeCustomer, notifications.EventDisputeResolved, map[string]any{
		"dispute_id": contested.ID.String(),
		"order_id":   contested.OrderID.String(),
		"decision":   "contested",
	})
	return contested, nil
}

// AutoResolveStale sweeps contested disputes whose contest has sat unreviewed
// past the configured wait and resolves each in the customer's favor, one
// transaction per dispute so a single failure cannot block the batch.
func (s *service) AutoResolveStale(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.repo.ListStaleContested(ctx, now.Add(-s.cfg.DisputeAutoResolveWait))
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale contested disputes")
	}

	note := "auto-resolved in the customer's favor after contest review window elapsed"
	var sweepErr error
	resolved := 0
	for _, dispute := range stale {
		_, customer, err := s.resolve(ctx, dispute.ID, uuid.Nil, enums.ActorTypeSystem, ResolutionRefund, &note, enums.DisputeStatusAutoResolved)
		if err != nil {
			sweepErr = multierr.Append(sweepErr, fmt.Errorf("dispute %s: %w", dispute.ID, err))
			if s.logg != nil {
				s.logg.Error(ctx, fmt.Sprintf("auto-resolve dispute %s", dispute.ID), err)
			}
			continue
		}
		s.notify(ctx, customer, enums.ActorTypeCustomer, notifications.EventDisputeResolved, map[string]any{
			"dispute_id": dispute.ID.String(),
			"order_id":   dispute.OrderID.String(),
			"decision":   string(ResolutionRefund),
		})
		resolved++
	}
	return resolved, sweepErr
}

func (s *service) ForOrder(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	dispute, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispute")
	}
	return dispute, nil
}

func (s *service) resolve(ctx context.Context, disputeID, actorID uuid.UUID, actorType enums.ActorType, decision Resolution, note *string, finalStatus enums.DisputeStatus) (*models.Dispute, uuid.UUID, error) {
	var (
		resolved *models.Dispute
		customer uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)

		dispute, err := lockDispute(ctx, repo, disputeID)
		if err != nil {
			return err
		}
		if !dispute.Status.IsOpen() {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("dispute is already %s", dispute.Status))
		}

		order, err := orderRepo.FindOrderByIDForUpdate(ctx, dispute.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}

		target := enums.OrderStatusRefunded
		if decision == ResolutionReject {
			target = enums.OrderStatusCompleted
		}
		if !fulfillment.CanTransition(order.Status, target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("a %s order cannot move to %s", order.Status, target))
		}

		now := time.Now().UTC()
		if err := repo.Update(ctx, dispute.ID, map[string]any{
			"status":          finalStatus,
			"resolved_at":     now,
			"resolution_note": note,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve dispute")
		}

		old := order.Status
		if err := orderRepo.UpdateOrder(ctx, order.ID, map[string]any{"status": target}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if err := orderRepo.CreateHistory(ctx, &models.OrderStatusHistory{
			ID:        uuid.New(),
			OrderID:   order.ID,
			OldStatus: &old,
			NewStatus: target,
			ActorID:   actorID,
			ActorType: actorType,
			Reason:    note,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		if err := s.settlePayout(ctx, tx, order.ID, decision); err != nil {
			return err
		}

		dispute.Status = finalStatus
		dispute.ResolvedAt = &now
		dispute.ResolutionNote = note
		resolved = dispute
		customer = order.CustomerID
		return nil
	})
	if err != nil {
		return nil, uuid.Nil, err
	}
	return resolved, customer, nil
}

// holdPayout parks a not-yet-released payout while the dispute is open.
func (s *service) holdPayout(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	payoutRepo := s.payoutRepo.WithTx(tx)
	payout, err := payoutRepo.FindByOrderIDForUpdate(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock payout")
	}
	if payout.Status != enums.PayoutStatusPending {
		return nil
	}
	if err := payoutRepo.Update(ctx, payout.ID, map[string]any{"status": enums.PayoutStatusOnHold}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "hold payout")
	}
	return nil
}

// settlePayout reverses or releases the garage payout according to the
// decision. Already-released payouts stay on hold for manual recovery.
func (s *service) settlePayout(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, decision Resolution) error {
	payoutRepo := s.payoutRepo.WithTx(tx)
	payout, err := payoutRepo.FindByOrderIDForUpdate(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock payout")
	}

	switch decision {
	case ResolutionRefund:
		switch payout.Status {
		case enums.PayoutStatusPending, enums.PayoutStatusOnHold:
			if err := payoutRepo.Update(ctx, payout.ID, map[string]any{"status": enums.PayoutStatusCancelled}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel payout")
			}
		case enums.PayoutStatusProcessing, enums.PayoutStatusConfirmed, enums.PayoutStatusCompleted:
			if err := payoutRepo.Update(ctx, payout.ID, map[string]any{"status": enums.PayoutStatusOnHold}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "hold released payout")
			}
		}
	case ResolutionReject:
		if payout.Status == enums.PayoutStatusOnHold {
			if err := payoutRepo.Update(ctx, payout.ID, map[string]any{"status": enums.PayoutStatusPending}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release held payout")
			}
		}
	}
	return nil
}

func (s *service) notify(ctx context.Context, recipient uuid.UUID, role enums.ActorType, eventType string, payload map[string]any) {
	err := s.notifier.Notify(ctx, notifications.Event{
		Recipient:     recipient,
		RecipientRole: role,
		Type:          eventType,
		Payload:       payload,
	})
	if err != nil && s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("notification %s failed: %v", eventType, err))
	}
}

func lockDispute(ctx context.Context, repo Repository, disputeID uuid.UUID) (*models.Dispute, error) {
	dispute, err := repo.FindByIDForUpdate(ctx, disputeID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock dispute")
	}
	return dispute, nil
}
