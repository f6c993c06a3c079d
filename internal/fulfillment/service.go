package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/garagebid/garagebid-backend/internal/fees"
	"github.com/garagebid/garagebid-backend/internal/notifications"
	"github.com/garagebid/garagebid-backend/internal/payouts"
	"github.com/garagebid/garagebid-backend/internal/wallets"
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

// Service owns order and assignment status transitions, and the side effects
// of the terminal ones.
type Service interface {
	GarageUpdateStatus(ctx context.Context, input GarageStatusInput) (*StatusChange, error)
	DriverUpdateAssignment(ctx context.Context, input AssignmentInput) (*AssignmentResult, error)
	ConfirmDelivery(ctx context.Context, input ConfirmInput) (*StatusChange, error)
	OrderDetail(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	OrderHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error)
}

type service struct {
	repo       Repository
	payoutRepo payouts.Repository
	tx         txRunner
	wallets    wallets.Service
	calc       fees.Calculator
	notifier   notifications.Notifier
	logg       *logger.Logger
	metrics    *metrics.MarketplaceMetrics
	cfg        config.MarketplaceConfig
}

// GarageStatusInput is a garage-authored order transition.
type GarageStatusInput struct {
	OrderID  uuid.UUID
	GarageID uuid.UUID
	Target   enums.OrderStatus
	Reason   *string
}

// AssignmentInput is a driver- or operations-authored assignment update.
type AssignmentInput struct {
	AssignmentID uuid.UUID
	ActorID      uuid.UUID
	ActorType    enums.ActorType
	Status       enums.AssignmentStatus
	FailReason   *string
}

// ConfirmInput is the customer's delivered → completed confirmation.
type ConfirmInput struct {
	OrderID    uuid.UUID
	CustomerID uuid.UUID
}

// StatusChange reports one applied order transition.
type StatusChange struct {
	OrderID   uuid.UUID          `json:"order_id"`
	OldStatus *enums.OrderStatus `json:"old_status"`
	NewStatus enums.OrderStatus  `json:"new_status"`
}

// AssignmentResult reports an assignment update and any order transition it
// implied. Repaired is set when an idempotent re-apply fixed an order left
// inconsistent by a prior partial failure.
type AssignmentResult struct {
	AssignmentID     uuid.UUID              `json:"assignment_id"`
	AssignmentStatus enums.AssignmentStatus `json:"assignment_status"`
	OrderStatus      enums.OrderStatus      `json:"order_status"`
	Repaired         bool                   `json:"repaired,omitempty"`
	WalletCredited   bool                   `json:"wallet_credited,omitempty"`
}

// NewService wires the fulfillment state machine service.
func NewService(repo Repository, payoutRepo payouts.Repository, tx txRunner, walletSvc wallets.Service, calc fees.Calculator, notifier notifications.Notifier, logg *logger.Logger, mkt *metrics.MarketplaceMetrics, cfg config.MarketplaceConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("fulfillment repository required")
	}
	if payoutRepo == nil {
		return nil, fmt.Errorf("payout repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if walletSvc == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &service{
		repo:       repo,
		payoutRepo: payoutRepo,
		tx:         tx,
		wallets:    walletSvc,
		calc:       calc,
		notifier:   notifier,
		logg:       logg,
		metrics:    mkt,
		cfg:        cfg,
	}, nil
}

func (s *service) GarageUpdateStatus(ctx context.Context, input GarageStatusInput) (*StatusChange, error) {
	if input.GarageID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "garage id required")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", input.Target))
	}

	var (
		change   *StatusChange
		customer uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := lockOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.GarageID != input.GarageID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another garage")
		}
		if err := GarageTransition(order.Status, input.Target); err != nil {
			return err
		}

		old := order.Status
		if err := s.applyOrderTransition(ctx, repo, order, input.Target, input.GarageID, enums.ActorTypeGarage, input.Reason); err != nil {
			return err
		}
		change = &StatusChange{OrderID: order.ID, OldStatus: &old, NewStatus: input.Target}
		customer = order.CustomerID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncOrderTransition(change.OldStatus.String(), change.NewStatus.String())
	s.notifyStatus(ctx, customer, enums.ActorTypeCustomer, change)
	return change, nil
}

func (s *service) DriverUpdateAssignment(ctx context.Context, input AssignmentInput) (*AssignmentResult, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	if input.ActorType != enums.ActorTypeDriver && input.ActorType != enums.ActorTypeOperations {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only drivers and operations update assignments")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid assignment status %q", input.Status))
	}
	if input.Status == enums.AssignmentStatusFailed && (input.FailReason == nil || *input.FailReason == "") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a fail reason is required")
	}

	var (
		result    *AssignmentResult
		delivered *deliveredOrder
		change    *StatusChange
		customer  uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		assignment, err := repo.FindAssignmentByIDForUpdate(ctx, input.AssignmentID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock assignment")
		}
		if input.ActorType == enums.ActorTypeDriver && assignment.DriverID != input.ActorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "assignment belongs to another driver")
		}

		order, err := lockOrder(ctx, repo, assignment.OrderID)
		if err != nil {
			return err
		}
		customer = order.CustomerID

		// re-applying the current status is the repair path: fix the order
		// if a prior run moved the assignment but died before the order
		// write, and never duplicate side effects
		if assignment.Status == input.Status {
			result = &AssignmentResult{
				AssignmentID:     assignment.ID,
				AssignmentStatus: assignment.Status,
				OrderStatus:      order.Status,
			}
			target, ok := DriverOrderStatus(assignment.Type, input.Status)
			if ok && order.Status != target && CanTransition(order.Status, target) {
				old := order.Status
				if err := s.applyOrderTransition(ctx, repo, order, target, input.ActorID, input.ActorType, repairNote()); err != nil {
					return err
				}
				result.OrderStatus = target
				result.Repaired = true
				change = &StatusChange{OrderID: order.ID, OldStatus: &old, NewStatus: target}
			}
			return nil
		}

		if !CanAdvanceAssignment(assignment.Status, input.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("assignment cannot move from %s to %s", assignment.Status, input.Status))
		}

		now := time.Now().UTC()
		updates := map[string]any{"status": input.Status}
		switch input.Status {
		case enums.AssignmentStatusPickedUp:
			updates["picked_up_at"] = now
		case enums.AssignmentStatusDelivered:
			updates["delivered_at"] = now
			updates["active"] = false
		case enums.AssignmentStatusFailed:
			updates["failed_at"] = now
			updates["fail_reason"] = *input.FailReason
			updates["active"] = false
		}
		if err := repo.UpdateAssignment(ctx, assignment.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update assignment")
		}

		result = &AssignmentResult{
			AssignmentID:     assignment.ID,
			AssignmentStatus: input.Status,
			OrderStatus:      order.Status,
		}

		target, ok := DriverOrderStatus(assignment.Type, input.Status)
		if ok && order.Status != target && CanTransition(order.Status, target) {
			old := order.Status
			if err := s.applyOrderTransition(ctx, repo, order, target, input.ActorID, input.ActorType, input.FailReason); err != nil {
				return err
			}
			result.OrderStatus = target
			change = &StatusChange{OrderID: order.ID, OldStatus: &old, NewStatus: target}
		}

		switch {
		// payment side effects follow the order, not the assignment: if the
		// order could not move to delivered (already disputed), the drop-off
		// is recorded but nothing is stamped or credited
		case input.Status == enums.AssignmentStatusDelivered && assignment.Type == enums.AssignmentTypeDelivery && change != nil:
			if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"delivered_at": now}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp delivery time")
			}
			if err := repo.IncrementDriverDeliveries(ctx, assignment.DriverID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment driver deliveries")
			}
			delivered = &deliveredOrder{
				driverID:       assignment.DriverID,
				orderID:        order.ID,
				orderNumber:    order.OrderNumber,
				total:          order.TotalAmount,
				cashOnDelivery: order.PaymentMethod == enums.PaymentMethodCash,
			}
		case input.Status == enums.AssignmentStatusFailed:
			if err := s.openSystemDispute(ctx, repo, order, assignment, *input.FailReason); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if change != nil {
		s.metrics.IncOrderTransition(change.OldStatus.String(), change.NewStatus.String())
		s.notifyStatus(ctx, customer, enums.ActorTypeCustomer, change)
	}

	// wallet legs run after commit in their own transactions; a failure here
	// is surfaced to the caller without undoing the recorded delivery
	if delivered != nil {
		err := s.wallets.CreditDelivery(ctx, wallets.DeliveryCreditInput{
			DriverID:       delivered.driverID,
			OrderID:        delivered.orderID,
			OrderNumber:    delivered.orderNumber,
			OrderTotal:     delivered.total,
			CashOnDelivery: delivered.cashOnDelivery,
		})
		if err != nil {
			if s.logg != nil {
				s.logg.Error(ctx, fmt.Sprintf("wallet credit for order %s", delivered.orderNumber), err)
			}
		} else {
			result.WalletCredited = true
		}
	}
	return result, nil
}

func (s *service) ConfirmDelivery(ctx context.Context, input ConfirmInput) (*StatusChange, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}

	var (
		change *StatusChange
		garage uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payoutRepo := s.payoutRepo.WithTx(tx)

		order, err := lockOrder(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if order.CustomerID != input.CustomerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
		}
		if order.Status != enums.OrderStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order is %s, only delivered orders can be completed", order.Status))
		}

		now := time.Now().UTC()
		old := order.Status
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"status":       enums.OrderStatusCompleted,
			"completed_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete order")
		}
		if err := repo.CreateHistory(ctx, &models.OrderStatusHistory{
			ID:        uuid.New(),
			OrderID:   order.ID,
			OldStatus: &old,
			NewStatus: enums.OrderStatusCompleted,
			ActorID:   input.CustomerID,
			ActorType: enums.ActorTypeCustomer,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		// at most one payout per order; the unique index backs this up
		if _, err := payoutRepo.FindByOrderID(ctx, order.ID); err == gorm.ErrRecordNotFound {
			payout := &models.GaragePayout{
				ID:          uuid.New(),
				OrderID:     order.ID,
				GarageID:    order.GarageID,
				Amount:      order.GaragePayoutAmount,
				Status:      enums.PayoutStatusPending,
				ScheduledAt: now.Add(s.cfg.PayoutDelay()),
			}
			if err := payoutRepo.Create(ctx, payout); err != nil {
				if db.IsUniqueViolation(err, "idx_garage_payouts_order_id") {
					return pkgerrors.New(pkgerrors.CodeConflict, "payout already exists for order")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
			}
		} else if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing payout")
		}

		if err := s.releaseIdleDrivers(ctx, repo, order.ID); err != nil {
			return err
		}

		change = &StatusChange{OrderID: order.ID, OldStatus: &old, NewStatus: enums.OrderStatusCompleted}
		garage = order.GarageID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncOrderTransition(change.OldStatus.String(), change.NewStatus.String())
	s.notifyStatus(ctx, garage, enums.ActorTypeGarage, change)
	return change, nil
}

func (s *service) OrderDetail(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrderByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) OrderHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	rows, err := s.repo.ListHistory(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list status history")
	}
	return rows, nil
}

type deliveredOrder struct {
	driverID       uuid.UUID
	orderID        uuid.UUID
	orderNumber    string
	total          decimal.Decimal
	cashOnDelivery bool
}

func (s *service) applyOrderTransition(ctx context.Context, repo Repository, order *models.Order, target enums.OrderStatus, actorID uuid.UUID, actorType enums.ActorType, reason *string) error {
	old := order.Status
	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"status": target}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if err := repo.CreateHistory(ctx, &models.OrderStatusHistory{
		ID:        uuid.New(),
		OrderID:   order.ID,
		OldStatus: &old,
		NewStatus: target,
		ActorID:   actorID,
		ActorType: actorType,
		Reason:    reason,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
	}
	order.Status = target
	return nil
}

// openSystemDispute records a platform-opened dispute for a failed
// assignment so operations reviews it.
func (s *service) openSystemDispute(ctx context.Context, repo Repository, order *models.Order, assignment *models.OrderAssignment, failReason string) error {
	reason := enums.DisputeReasonOther
	if assignment.Type == enums.AssignmentTypeDelivery {
		reason = enums.DisputeReasonNeverArrived
	}
	quote, err := s.calc.QuoteRefund(reason, order.PartPrice, order.DeliveryFee)
	if err != nil {
		return err
	}

	dispute := &models.Dispute{
		ID:                  uuid.New(),
		OrderID:             order.ID,
		CustomerID:          order.CustomerID,
		Reason:              reason,
		Description:         &failReason,
		RefundAmount:        quote.RefundAmount,
		RestockingFee:       quote.RestockingFee,
		DeliveryFeeRefunded: quote.DeliveryFeeRefunded,
		ReturnShippingBy:    string(quote.ReturnShippingBy),
		Status:              enums.DisputeStatusUnderReview,
	}
	if err := repo.CreateDispute(ctx, dispute); err != nil {
		if db.IsUniqueViolation(err, "idx_disputes_order_id") {
			// an earlier failure already opened one; nothing to add
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open dispute")
	}
	s.metrics.IncDisputeOpened(reason.String())
	return nil
}

// releaseIdleDrivers frees every driver on the order who has no other active
// assignment left.
func (s *service) releaseIdleDrivers(ctx context.Context, repo Repository, orderID uuid.UUID) error {
	assignments, err := repo.ListAssignmentsByOrder(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order assignments")
	}
	seen := map[uuid.UUID]bool{}
	for _, assignment := range assignments {
		if seen[assignment.DriverID] {
			continue
		}
		seen[assignment.DriverID] = true

		if assignment.Active {
			if err := repo.UpdateAssignment(ctx, assignment.ID, map[string]any{"active": false}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate assignment")
			}
		}
		busy, err := repo.CountOtherActiveAssignments(ctx, assignment.DriverID, assignment.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active assignments")
		}
		if busy == 0 {
			if err := repo.UpdateDriver(ctx, assignment.DriverID, map[string]any{
				"status": enums.DriverStatusAvailable,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release driver")
			}
		}
	}
	return nil
}

func (s *service) notifyStatus(ctx context.Context, recipient uuid.UUID, role enums.ActorType, change *StatusChange) {
	err := s.notifier.Notify(ctx, notifications.Event{
		Recipient:     recipient,
		RecipientRole: role,
		Type:          notifications.EventOrderStatusChanged,
		Payload: map[string]any{
			"order_id":   change.OrderID.String(),
			"old_status": change.OldStatus.String(),
			"new_status": change.NewStatus.String(),
		},
	})
	if err != nil && s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("notification %s failed: %v", notifications.EventOrderStatusChanged, err))
	}
}

func lockOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindOrderByIDForUpdate(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
	}
	return order, nil
}

func repairNote() *string {
	note := "repaired after partial failure"
	return &note
}
