package bids

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/garagebid/garagebid-backend/internal/fees"
	"github.com/garagebid/garagebid-backend/internal/notifications"
	"github.com/garagebid/garagebid-backend/internal/requests"
	"github.com/garagebid/garagebid-backend/internal/subscriptions"
	"github.com/garagebid/garagebid-backend/internal/zones"
	"github.com/garagebid/garagebid-backend/pkg/db"
	"github.com/garagebid/garagebid-backend/pkg/db/models"
	"github.com/garagebid/garagebid-backend/pkg/enums"
	pkgerrors "github.com/garagebid/garagebid-backend/pkg/errors"
	"github.com/garagebid/garagebid-backend/pkg/logger"
	"github.com/garagebid/garagebid-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
	WithSerializableTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

var bidConditions = []string{"new", "used", "refurbished"}

// Service covers bid submission and the acceptance transaction that turns a
// bid into an order.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*models.Bid, error)
	Accept(ctx context.Context, input AcceptInput) (*models.Order, error)
	ListForRequest(ctx context.Context, requestID uuid.UUID) ([]models.Bid, error)
}

// SubmitInput carries a garage's offer against a part request.
type SubmitInput struct {
	RequestID    uuid.UUID
	GarageID     uuid.UUID
	Amount       decimal.Decimal
	Condition    string
	WarrantyDays int
}

// AcceptInput identifies the bid a customer accepts and how they will pay.
type AcceptInput struct {
	BidID         uuid.UUID
	CustomerID    uuid.UUID
	PaymentMethod enums.PaymentMethod
	DeliveryNotes *string
}

type service struct {
	repo        Repository
	requestRepo requests.Repository
	tx          txRunner
	commission  subscriptions.CommissionResolver
	deliveryFee zones.FeeResolver
	calc        fees.Calculator
	notifier    notifications.Notifier
	logg        *logger.Logger
	metrics     *metrics.MarketplaceMetrics
}

// NewService wires the bid service.
func NewService(repo Repository, requestRepo requests.Repository, tx txRunner, commission subscriptions.CommissionResolver, deliveryFee zones.FeeResolver, calc fees.Calculator, notifier notifications.Notifier, logg *logger.Logger, mkt *metrics.MarketplaceMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("bid repository required")
	}
	if requestRepo == nil {
		return nil, fmt.Errorf("request repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if commission == nil {
		return nil, fmt.Errorf("commission resolver required")
	}
	if deliveryFee == nil {
		return nil, fmt.Errorf("delivery fee resolver required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &service{
		repo:        repo,
		requestRepo: requestRepo,
		tx:          tx,
		commission:  commission,
		deliveryFee: deliveryFee,
		calc:        calc,
		notifier:    notifier,
		logg:        logg,
		metrics:     mkt,
	}, nil
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*models.Bid, error) {
	if input.RequestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	if input.GarageID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "garage id required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bid amount must be positive")
	}
	if !validCondition(input.Condition) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("condition must be one of %s", strings.Join(bidConditions, ", ")))
	}
	if input.WarrantyDays < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "warranty days cannot be negative")
	}

	var (
		created  *models.Bid
		customer uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		requestRepo := s.requestRepo.WithTx(tx)

		request, err := requestRepo.FindByIDForUpdate(ctx, input.RequestID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock request")
		}
		if request.Status != enums.RequestStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("request is %s, bids only land on active requests", request.Status))
		}

		existing, err := repo.CountActiveBidsByGarage(ctx, request.ID, input.GarageID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count garage bids")
		}
		if existing > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "garage already has a pending bid on this request")
		}

		bid := &models.Bid{
			ID:           uuid.New(),
			RequestID:    request.ID,
			GarageID:     input.GarageID,
			Amount:       fees.Round2(input.Amount),
			Condition:    input.Condition,
			WarrantyDays: input.WarrantyDays,
			Status:       enums.BidStatusPending,
		}
		if err := repo.Create(ctx, bid); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bid")
		}

		created = bid
		customer = request.CustomerID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, customer, enums.ActorTypeCustomer, notifications.EventBidSubmitted, map[string]any{
		"bid_id":     created.ID.String(),
		"request_id": created.RequestID.String(),
		"amount":     created.Amount.String(),
	})
	return created, nil
}

// Accept runs the acceptance transaction at SERIALIZABLE isolation: lock bid
// and request, resolve the commission rate and delivery fee, freeze the
// financial snapshot on a new order, reject every sibling bid and close the
// request. Serialization failures surface as conflicts so the losing caller
// can retry or give up.
func (s *service) Accept(ctx context.Context, input AcceptInput) (*models.Order, error) {
	if input.BidID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bid id required")
	}
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	paymentMethod := input.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = enums.PaymentMethodCash
	}
	if !paymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.PaymentMethod))
	}

	var (
		order    *models.Order
		rejected []models.Bid
		winner   uuid.UUID
	)
	err := s.tx.WithSerializableTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		requestRepo := s.requestRepo.WithTx(tx)

		bid, err := repo.FindByIDForUpdate(ctx, input.BidID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "bid not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock bid")
		}
		if bid.Status != enums.BidStatusPending {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("bid is %s, another acceptance already settled it", bid.Status))
		}

		request, err := requestRepo.FindByIDForUpdate(ctx, bid.RequestID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock request")
		}
		if request.CustomerID != input.CustomerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "request belongs to another customer")
		}
		if request.Status != enums.RequestStatusActive {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("request is %s, it no longer accepts bids", request.Status))
		}

		rate, err := s.commission.RateForGarage(ctx, bid.GarageID)
		if err != nil {
			return err
		}
		deliveryFee, zoneID, err := s.resolveDeliveryFee(ctx, request)
		if err != nil {
			return err
		}

		quote := s.calc.QuoteOrder(bid.Amount, rate, deliveryFee)
		order = &models.Order{
			ID:                 uuid.New(),
			OrderNumber:        newOrderNumber(),
			BidID:              bid.ID,
			RequestID:          request.ID,
			CustomerID:         request.CustomerID,
			GarageID:           bid.GarageID,
			PartPrice:          quote.PartPrice,
			CommissionRate:     quote.Rate,
			PlatformFee:        quote.PlatformFee,
			DeliveryFee:        quote.DeliveryFee,
			TotalAmount:        quote.Total,
			GaragePayoutAmount: quote.GaragePayout,
			DeliveryZoneID:     zoneID,
			PaymentMethod:      paymentMethod,
			DeliveryNotes:      input.DeliveryNotes,
			Status:             enums.OrderStatusConfirmed,
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			if db.IsUniqueViolation(err, "idx_orders_bid_id") {
				return pkgerrors.New(pkgerrors.CodeConflict, "an order already exists for this bid")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		if err := repo.Update(ctx, bid.ID, map[string]any{"status": enums.BidStatusAccepted}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept bid")
		}

		rejected, err = repo.ListPendingSiblings(ctx, request.ID, bid.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sibling bids")
		}
		siblingIDs := make([]uuid.UUID, 0, len(rejected))
		for _, sibling := range rejected {
			siblingIDs = append(siblingIDs, sibling.ID)
		}
		if err := repo.RejectBids(ctx, siblingIDs); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject sibling bids")
		}

		if err := requestRepo.Update(ctx, request.ID, map[string]any{"status": enums.RequestStatusAccepted}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close request")
		}

		if err := repo.CreateHistory(ctx, &models.OrderStatusHistory{
			ID:        uuid.New(),
			OrderID:   order.ID,
			OldStatus: nil,
			NewStatus: enums.OrderStatusConfirmed,
			ActorID:   input.CustomerID,
			ActorType: enums.ActorTypeCustomer,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append status history")
		}

		winner = bid.GarageID
		return nil
	})
	if err != nil {
		if db.IsSerializationFailure(err) {
			s.metrics.IncBidAcceptance("conflict")
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a concurrent acceptance won, try again")
		}
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
			s.metrics.IncBidAcceptance("conflict")
		}
		return nil, err
	}

	s.metrics.IncBidAcceptance("accepted")
	s.notify(ctx, winner, enums.ActorTypeGarage, notifications.EventBidAccepted, map[string]any{
		"bid_id":       input.BidID.String(),
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
	})
	s.notify(ctx, input.CustomerID, enums.ActorTypeCustomer, notifications.EventOrderStatusChanged, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"new_status":   order.Status.String(),
	})
	for _, sibling := range rejected {
		s.notify(ctx, sibling.GarageID, enums.ActorTypeGarage, notifications.EventBidRejected, map[string]any{
			"bid_id":     sibling.ID.String(),
			"request_id": sibling.RequestID.String(),
			"reason":     "another_bid_accepted",
		})
	}
	return order, nil
}

func (s *service) ListForRequest(ctx context.Context, requestID uuid.UUID) ([]models.Bid, error) {
	if requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	bids, err := s.repo.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bids")
	}
	return bids, nil
}

func (s *service) resolveDeliveryFee(ctx context.Context, request *models.PartRequest) (decimal.Decimal, *uuid.UUID, error) {
	if request.DeliveryLat == nil || request.DeliveryLng == nil {
		return s.calc.FlatDeliveryFee(), nil, nil
	}
	fee, zoneID, err := s.deliveryFee.FeeForLocation(ctx, *request.DeliveryLat, *request.DeliveryLng)
	if err != nil {
		return decimal.Zero, nil, err
	}
	return fee, zoneID, nil
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

func validCondition(condition string) bool {
	for _, candidate := range bidConditions {
		if candidate == condition {
			return true
		}
	}
	return false
}

// newOrderNumber builds a human-readable order reference. Uniqueness is
// enforced by the order_number index; collisions are practically impossible.
func newOrderNumber() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("GB-%d", time.Now().UTC().UnixNano())
	}
	return fmt.Sprintf("GB-%s-%s", time.Now().UTC().Format("20060102"), strings.ToUpper(hex.EncodeToString(buf)))
}
