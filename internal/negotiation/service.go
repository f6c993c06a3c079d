package negotiation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/garagebid/garagebid-backend/internal/fees"
	"github.com/garagebid/garagebid-backend/internal/notifications"
	"github.com/garagebid/garagebid-backend/pkg/config"
	"github.com/garagebid/garagebid-backend/pkg/db/models"
	"github.com/garagebid/garagebid-backend/pkg/enums"
	pkgerrors "github.com/garagebid/garagebid-backend/pkg/errors"
	"github.com/garagebid/garagebid-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RespondAction is the responder's choice on a pending counter offer.
type RespondAction string

const (
	ActionAccept  RespondAction = "accept"
	ActionReject  RespondAction = "reject"
	ActionCounter RespondAction = "counter"
)

// Service runs the bounded counter-offer protocol on pending bids.
type Service interface {
	CreateCounterOffer(ctx context.Context, input CreateOfferInput) (*models.CounterOffer, error)
	RespondToCounterOffer(ctx context.Context, input RespondInput) (*RespondResult, error)
	AcceptLastGarageOffer(ctx context.Context, bidID, customerID uuid.UUID) (*models.Bid, error)
	History(ctx context.Context, bidID uuid.UUID) ([]models.NegotiationEvent, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	notifier  notifications.Notifier
	logg      *logger.Logger
	maxRounds int
}

// CreateOfferInput opens a new negotiation round on a bid.
type CreateOfferInput struct {
	BidID     uuid.UUID
	ActorID   uuid.UUID
	ActorType enums.ActorType
	Amount    decimal.Decimal
	Message   *string
}

// RespondInput answers the pending counter offer.
type RespondInput struct {
	CounterOfferID uuid.UUID
	ActorID        uuid.UUID
	ActorType      enums.ActorType
	Action         RespondAction
	Amount         decimal.Decimal
	Message        *string
}

// RespondResult reports the outcome of a response. FinalRound is set when the
// rejected offer was the last allowed round, so callers can frame the message
// accordingly.
type RespondResult struct {
	Offer      *models.CounterOffer `json:"counter_offer"`
	NewOffer   *models.CounterOffer `json:"new_counter_offer,omitempty"`
	BidAmount  decimal.Decimal      `json:"bid_amount"`
	FinalRound bool                 `json:"final_round"`
}

// NewService wires the negotiation engine.
func NewService(repo Repository, tx txRunner, notifier notifications.Notifier, logg *logger.Logger, cfg config.MarketplaceConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("negotiation repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	maxRounds := cfg.MaxNegotiationRounds
	if maxRounds <= 0 {
		return nil, fmt.Errorf("max negotiation rounds must be positive")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		notifier:  notifier,
		logg:      logg,
		maxRounds: maxRounds,
	}, nil
}

func (s *service) CreateCounterOffer(ctx context.Context, input CreateOfferInput) (*models.CounterOffer, error) {
	if err := validateProposer(input.ActorID, input.ActorType); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offer amount must be positive")
	}

	var (
		created   *models.CounterOffer
		recipient uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		bid, err := lockPendingBid(ctx, repo, input.BidID)
		if err != nil {
			return err
		}

		customerID, err := repo.FindRequestCustomerID(ctx, bid.RequestID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request customer")
		}
		if err := requireParticipant(bid, customerID, input.ActorID, input.ActorType); err != nil {
			return err
		}

		recipient = customerID
		if input.ActorType == enums.ActorTypeCustomer {
			recipient = bid.GarageID
		}

		count, err := repo.CountCounterOffers(ctx, bid.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count counter offers")
		}
		round := int(count) + 1
		if round > s.maxRounds {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("negotiation round limit of %d reached", s.maxRounds))
		}

		if _, err := repo.FindPendingCounterOffer(ctx, bid.ID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "a counter offer is already awaiting a response")
		} else if err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pending counter offer")
		}

		offer := &models.CounterOffer{
			ID:            uuid.New(),
			BidID:         bid.ID,
			OfferedByType: input.ActorType,
			OfferedByID:   input.ActorID,
			RoundNumber:   round,
			Amount:        fees.Round2(input.Amount),
			Message:       input.Message,
			Status:        enums.CounterOfferStatusPending,
		}
		if err := repo.CreateCounterOffer(ctx, offer); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert counter offer")
		}
		if err := s.logEvent(ctx, repo, bid.ID, &offer.ID, enums.NegotiationEventOfferMade, input.ActorType, input.ActorID, &offer.Amount, input.Message); err != nil {
			return err
		}

		created = offer
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyAfterCommit(ctx, notifications.Event{
		Recipient:     recipient,
		RecipientRole: counterpart(input.ActorType),
		Type:          notifications.EventCounterOfferMade,
		Payload: map[string]any{
			"bid_id":           created.BidID.String(),
			"counter_offer_id": created.ID.String(),
			"round":            created.RoundNumber,
			"amount":           created.Amount.String(),
		},
	})
	return created, nil
}

func (s *service) RespondToCounterOffer(ctx context.Context, input RespondInput) (*RespondResult, error) {
	if err := validateProposer(input.ActorID, input.ActorType); err != nil {
		return nil, err
	}
	if input.Action != ActionAccept && input.Action != ActionReject && input.Action != ActionCounter {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid action %q", input.Action))
	}
	if input.Action == ActionCounter && !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "counter amount must be positive")
	}

	var result *RespondResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		offer, err := repo.FindCounterOfferByIDForUpdate(ctx, input.CounterOfferID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "counter offer not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock counter offer")
		}
		if offer.Status != enums.CounterOfferStatusPending {
			return pkgerrors.New(pkgerrors.CodeConflict, "counter offer already processed")
		}
		if offer.OfferedByType == input.ActorType {
			return pkgerrors.New(pkgerrors.CodeForbidden, "cannot respond to your own counter offer")
		}

		bid, err := lockPendingBid(ctx, repo, offer.BidID)
		if err != nil {
			return err
		}

		customerID, err := repo.FindRequestCustomerID(ctx, bid.RequestID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request customer")
		}
		if err := requireParticipant(bid, customerID, input.ActorID, input.ActorType); err != nil {
			return err
		}

		switch input.Action {
		case ActionAccept:
			result, err = s.acceptOffer(ctx, repo, bid, offer, input)
		case ActionReject:
			result, err = s.rejectOffer(ctx, repo, bid, offer, input)
		case ActionCounter:
			result, err = s.counterOffer(ctx, repo, bid, offer, input)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifyAfterCommit(ctx, notifications.Event{
		Recipient:     result.Offer.OfferedByID,
		RecipientRole: result.Offer.OfferedByType,
		Type:          notifications.EventCounterOfferDecided,
		Payload: map[string]any{
			"bid_id":           result.Offer.BidID.String(),
			"counter_offer_id": result.Offer.ID.String(),
			"action":           string(input.Action),
			"final_round":      result.FinalRound,
		},
	})
	return result, nil
}

func (s *service) acceptOffer(ctx context.Context, repo Repository, bid *models.Bid, offer *models.CounterOffer, input RespondInput) (*RespondResult, error) {
	if err := repo.UpdateCounterOffer(ctx, offer.ID, map[string]any{
		"status": enums.CounterOfferStatusAccepted,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept counter offer")
	}
	if err := repo.UpdateBid(ctx, bid.ID, map[string]any{
		"amount": offer.Amount,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply agreed price")
	}
	offer.Status = enums.CounterOfferStatusAccepted

	if err := s.logEvent(ctx, repo, bid.ID, &offer.ID, enums.NegotiationEventOfferAccepted, input.ActorType, input.ActorID, &offer.Amount, input.Message); err != nil {
		return nil, err
	}
	if err := s.logEvent(ctx, repo, bid.ID, &offer.ID, enums.NegotiationEventPriceApplied, input.ActorType, input.ActorID, &offer.Amount, nil); err != nil {
		return nil, err
	}
	return &RespondResult{Offer: offer, BidAmount: offer.Amount}, nil
}

func (s *service) rejectOffer(ctx context.Context, repo Repository, bid *models.Bid, offer *models.CounterOffer, input RespondInput) (*RespondResult, error) {
	if err := repo.UpdateCounterOffer(ctx, offer.ID, map[string]any{
		"status": enums.CounterOfferStatusRejected,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject counter offer")
	}
	offer.Status = enums.CounterOfferStatusRejected

	if err := s.logEvent(ctx, repo, bid.ID, &offer.ID, enums.NegotiationEventOfferRejected, input.ActorType, input.ActorID, nil, input.Message); err != nil {
		return nil, err
	}
	return &RespondResult{
		Offer:      offer,
		BidAmount:  bid.Amount,
		FinalRound: offer.RoundNumber >= s.maxRounds,
	}, nil
}

func (s *service) counterOffer(ctx context.Context, repo Repository, bid *models.Bid, offer *models.CounterOffer, input RespondInput) (*RespondResult, error) {
	count, err := repo.CountCounterOffers(ctx, bid.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count counter offers")
	}
	round := int(count) + 1
	if round > s.maxRounds {
		return nil, pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("negotiation round limit of %d reached", s.maxRounds))
	}

	if err := repo.UpdateCounterOffer(ctx, offer.ID, map[string]any{
		"status": enums.CounterOfferStatusCountered,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark counter offer countered")
	}
	offer.Status = enums.CounterOfferStatusCountered

	next := &models.CounterOffer{
		ID:            uuid.New(),
		BidID:         bid.ID,
		OfferedByType: input.ActorType,
		OfferedByID:   input.ActorID,
		RoundNumber:   round,
		Amount:        fees.Round2(input.Amount),
		Message:       input.Message,
		Status:        enums.CounterOfferStatusPending,
	}
	if err := repo.CreateCounterOffer(ctx, next); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert counter offer")
	}

	if err := s.logEvent(ctx, repo, bid.ID, &offer.ID, enums.NegotiationEventOfferCountered, input.ActorType, input.ActorID, nil, nil); err != nil {
		return nil, err
	}
	if err := s.logEvent(ctx, repo, bid.ID, &next.ID, enums.NegotiationEventOfferMade, input.ActorType, input.ActorID, &next.Amount, input.Message); err != nil {
		return nil, err
	}
	return &RespondResult{Offer: offer, NewOffer: next, BidAmount: bid.Amount}, nil
}

// AcceptLastGarageOffer lets the customer settle on the garage's most recent
// price even after the round limit is exhausted. Any still-pending offer is
// force-closed as accepted.
func (s *service) AcceptLastGarageOffer(ctx context.Context, bidID, customerID uuid.UUID) (*models.Bid, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}

	var updated *models.Bid
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		bid, err := lockPendingBid(ctx, repo, bidID)
		if err != nil {
			return err
		}

		owner, err := repo.FindRequestCustomerID(ctx, bid.RequestID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request customer")
		}
		if owner != customerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "request belongs to another customer")
		}

		last, err := repo.FindLastOfferByActorType(ctx, bid.ID, enums.ActorTypeGarage)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no garage offer to accept")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load last garage offer")
		}

		if pending, err := repo.FindPendingCounterOffer(ctx, bid.ID); err == nil {
			if err := repo.UpdateCounterOffer(ctx, pending.ID, map[string]any{
				"status": enums.CounterOfferStatusAccepted,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close pending counter offer")
			}
		} else if err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check pending counter offer")
		}

		if err := repo.UpdateBid(ctx, bid.ID, map[string]any{
			"amount": last.Amount,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply agreed price")
		}
		bid.Amount = last.Amount

		if err := s.logEvent(ctx, repo, bid.ID, &last.ID, enums.NegotiationEventPriceApplied, enums.ActorTypeCustomer, customerID, &last.Amount, nil); err != nil {
			return err
		}

		updated = bid
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyAfterCommit(ctx, notifications.Event{
		Recipient:     updated.GarageID,
		RecipientRole: enums.ActorTypeGarage,
		Type:          notifications.EventCounterOfferDecided,
		Payload: map[string]any{
			"bid_id": updated.ID.String(),
			"action": string(ActionAccept),
			"amount": updated.Amount.String(),
		},
	})
	return updated, nil
}

func (s *service) History(ctx context.Context, bidID uuid.UUID) ([]models.NegotiationEvent, error) {
	if bidID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bid id required")
	}
	events, err := s.repo.ListEvents(ctx, bidID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list negotiation events")
	}
	return events, nil
}

func (s *service) logEvent(ctx context.Context, repo Repository, bidID uuid.UUID, offerID *uuid.UUID, eventType enums.NegotiationEventType, actorType enums.ActorType, actorID uuid.UUID, amount *decimal.Decimal, note *string) error {
	event := &models.NegotiationEvent{
		ID:             uuid.New(),
		BidID:          bidID,
		CounterOfferID: offerID,
		EventType:      eventType,
		ActorType:      actorType,
		ActorID:        actorID,
		Amount:         amount,
		Note:           note,
	}
	if err := repo.CreateEvent(ctx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append negotiation event")
	}
	return nil
}

func (s *service) notifyAfterCommit(ctx context.Context, event notifications.Event) {
	if err := s.notifier.Notify(ctx, event); err != nil && s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("notification %s failed: %v", event.Type, err))
	}
}

func lockPendingBid(ctx context.Context, repo Repository, bidID uuid.UUID) (*models.Bid, error) {
	if bidID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bid id required")
	}
	bid, err := repo.FindBidByIDForUpdate(ctx, bidID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bid not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock bid")
	}
	if bid.Status != enums.BidStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "bid is no longer pending")
	}
	return bid, nil
}

func validateProposer(actorID uuid.UUID, actorType enums.ActorType) error {
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	if actorType != enums.ActorTypeCustomer && actorType != enums.ActorTypeGarage {
		return pkgerrors.New(pkgerrors.CodeValidation, "only customers and garages negotiate")
	}
	return nil
}

// requireParticipant limits negotiation to the bid's garage and the owning
// request's customer.
func requireParticipant(bid *models.Bid, customerID, actorID uuid.UUID, actorType enums.ActorType) error {
	if actorType == enums.ActorTypeGarage && actorID != bid.GarageID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "bid belongs to another garage")
	}
	if actorType == enums.ActorTypeCustomer && actorID != customerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "request belongs to another customer")
	}
	return nil
}

func counterpart(actorType enums.ActorType) enums.ActorType {
	if actorType == enums.ActorTypeCustomer {
		return enums.ActorTypeGarage
	}
	return enums.ActorTypeCustomer
}
