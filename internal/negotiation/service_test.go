package negotiation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/garagebid/garagebid-backend/internal/notifications"
	"github.com/garagebid/garagebid-backend/pkg/config"
	"github.com/garagebid/garagebid-backend/pkg/db/models"
	"github.com/garagebid/garagebid-backend/pkg/enums"
	pkgerrors "github.com/garagebid/garagebid-backend/pkg/errors"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeRepository struct {
	bid        *models.Bid
	customerID uuid.UUID
	offers     []*models.CounterOffer
	events     []*models.NegotiationEvent
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) FindBidByIDForUpdate(ctx context.Context, bidID uuid.UUID) (*models.Bid, error) {
	if f.bid == nil || f.bid.ID != bidID {
		return nil, gorm.ErrRecordNotFound
	}
	return f.bid, nil
}

func (f *fakeRepository) FindRequestCustomerID(ctx context.Context, requestID uuid.UUID) (uuid.UUID, error) {
	return f.customerID, nil
}

func (f *fakeRepository) FindCounterOfferByIDForUpdate(ctx context.Context, offerID uuid.UUID) (*models.CounterOffer, error) {
	for _, offer := range f.offers {
		if offer.ID == offerID {
			return offer, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) FindPendingCounterOffer(ctx context.Context, bidID uuid.UUID) (*models.CounterOffer, error) {
	for _, offer := range f.offers {
		if offer.BidID == bidID && offer.Status == enums.CounterOfferStatusPending {
			return offer, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) FindLastOfferByActorType(ctx context.Context, bidID uuid.UUID, actorType enums.ActorType) (*models.CounterOffer, error) {
	var last *models.CounterOffer
	for _, offer := range f.offers {
		if offer.BidID == bidID && offer.OfferedByType == actorType {
			if last == nil || offer.RoundNumber > last.RoundNumber {
				last = offer
			}
		}
	}
	if last == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return last, nil
}

func (f *fakeRepository) CountCounterOffers(ctx context.Context, bidID uuid.UUID) (int64, error) {
	var count int64
	for _, offer := range f.offers {
		if offer.BidID == bidID {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepository) CreateCounterOffer(ctx context.Context, offer *models.CounterOffer) error {
	f.offers = append(f.offers, offer)
	return nil
}

func (f *fakeRepository) UpdateCounterOffer(ctx context.Context, offerID uuid.UUID, updates map[string]any) error {
	for _, offer := range f.offers {
		if offer.ID == offerID {
			if status, ok := updates["status"].(enums.CounterOfferStatus); ok {
				offer.Status = status
			}
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepository) UpdateBid(ctx context.Context, bidID uuid.UUID, updates map[string]any) error {
	if amount, ok := updates["amount"].(decimal.Decimal); ok {
		f.bid.Amount = amount
	}
	return nil
}

func (f *fakeRepository) CreateEvent(ctx context.Context, event *models.NegotiationEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeRepository) ListEvents(ctx context.Context, bidID uuid.UUID) ([]models.NegotiationEvent, error) {
	out := []models.NegotiationEvent{}
	for _, event := range f.events {
		if event.BidID == bidID {
			out = append(out, *event)
		}
	}
	return out, nil
}

func (f *fakeRepository) eventTypes() []enums.NegotiationEventType {
	types := make([]enums.NegotiationEventType, 0, len(f.events))
	for _, event := range f.events {
		types = append(types, event.EventType)
	}
	return types
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newPendingBid(amount string) *models.Bid {
	return &models.Bid{
		ID:        uuid.New(),
		RequestID: uuid.New(),
		GarageID:  uuid.New(),
		Amount:    dec(amount),
		Status:    enums.BidStatusPending,
	}
}

func newTestService(t *testing.T, repo *fakeRepository) Service {
	t.Helper()
	svc, err := NewService(repo, fakeTxRunner{}, notifications.NewNoopNotifier(), nil, config.MarketplaceConfig{
		MaxNegotiationRounds: 3,
	})
	require.NoError(t, err)
	return svc
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func TestCreateCounterOfferOpensRoundOne(t *testing.T) {
	repo := &fakeRepository{bid: newPendingBid("150"), customerID: uuid.New()}
	svc := newTestService(t, repo)

	offer, err := svc.CreateCounterOffer(context.Background(), CreateOfferInput{
		BidID:     repo.bid.ID,
		ActorID:   repo.customerID,
		ActorType: enums.ActorTypeCustomer,
		Amount:    dec("130"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, offer.RoundNumber)
	assert.Equal(t, enums.CounterOfferStatusPending, offer.Status)
	assert.Equal(t, []enums.NegotiationEventType{enums.NegotiationEventOfferMade}, repo.eventTypes())
}

func TestCreateCounterOfferRejectsSecondPending(t *testing.T) {
	repo := &fakeRepository{bid: newPendingBid("150"), customerID: uuid.New()}
	svc := newTestService(t, repo)

	_, err := svc.CreateCounterOffer(context.Background(), CreateOfferInput{
		BidID:     repo.bid.ID,
		ActorID:   repo.customerID,
		ActorType: enums.ActorTypeCustomer,
		Amount:    dec("130"),
	})
	require.NoError(t, err)

	_, err = svc.CreateCounterOffer(context.Background(), CreateOfferInput{
		BidID:     repo.bid.ID,
		ActorID:   repo.bid.GarageID,
		ActorType: enums.ActorTypeGarage,
		Amount:    dec("145"),
	})
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestNegotiationRoundLimit(t *testing.T) {
	repo := &fakeRepository{bid: newPendingBid("150"), customerID: uuid.New()}
	svc := newTestService(t, repo)
	ctx := context.Background()

	// round 1: customer offers 130
	offer, err := svc.CreateCounterOffer(ctx, CreateOfferInput{
		BidID:     repo.bid.ID,
		ActorID:   repo.customerID,
		ActorType: enums.ActorTypeCustomer,
		Amount:    dec("130"),
	})
	require.NoError(t, err)

	// round 2: garage counters 140
	result, err := svc.RespondToCounterOffer(ctx, RespondInput{
		CounterOfferID: offer.ID,
		ActorID:        repo.bid.GarageID,
		ActorType:      enums.ActorTypeGarage,
		Action:         ActionCounter,
		Amount:         dec("140"),
	})
	require.NoError(t, err)
	require.NotNil(t, result.NewOffer)
	assert.Equal(t, 2, result.NewOffer.RoundNumber)

	// round 3: customer counters 135, hitting the cap
	result, err = svc.RespondToCounterOffer(ctx, RespondInput{
		CounterOfferID: result.NewOffer.ID,
		ActorID:        repo.customerID,
		ActorType:      enums.ActorTypeCustomer,
		Action:         ActionCounter,
		Amount:         dec("135"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.NewOffer.RoundNumber)

	// a fourth round must fail from either side
	_, err = svc.RespondToCounterOffer(ctx, RespondInput{
		CounterOfferID: result.NewOffer.ID,
		ActorID:        repo.bid.GarageID,
		ActorType:      enums.ActorTypeGarage,
		Action:         ActionCounter,
		Amount:         dec("138"),
	})
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestAcceptRewritesBidAmount(t *testing.T) {
	repo := &fakeRepository{bid: newPendingBid("150"), customerID: uuid.New()}
	svc := newTestService(t, repo)
	ctx := context.Background()

	offer, err := svc.CreateCounterOffer(ctx, CreateOfferInput{
		BidID:     repo.bid.ID,
		ActorID:   repo.customerID,
		ActorType: enums.ActorTypeCustomer,
		Amount:    dec("130"),
	})
	require.NoError(t, err)

	result, err := svc.RespondToCounterOffer(ctx, RespondInput{
		CounterOfferID: offer.ID,
		ActorID:        repo.bid.GarageID,
		ActorType:      enums.ActorTypeGarage,
		Action:         ActionAccept,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.CounterOfferStatusAccepted, result.Offer.Status)
	assert.True(t, repo.bid.Amount.Equal(dec("130")), "bid price should be rewritten, got %s", repo.bid.Amount)
	assert.Contains(t, repo.eventTypes(), enums.NegotiationEventPriceApplied)
}

func TestRejectFinalRoundFraming(t *testing.T) {
	repo := &fakeRepository{bid: newPendingBid("150"), customerID: uuid.New()}
	svc := newTestService(t, repo)
	ctx := context.Background()

	// burn rounds 1 and 2
	offer, err := svc.CreateCounterOffer(ctx, CreateOfferInput{
		BidID:     repo.bid.ID,
		ActorID:   repo.customerID,
		ActorType: enums.ActorTypeCustomer,
		Amount:    dec("120"),
	})
	require.NoError(t, err)
	result, err := svc.RespondToCounterOffer(ctx, RespondInput{
		CounterOfferID: offer.ID,
		ActorID:        repo.bid.GarageID,
		ActorType:      enums.ActorTypeGarage,
		Action:         ActionCounter,
		Amount:         dec("145"),
	})
	require.NoError(t, err)
	result, err = svc.RespondToCounterOffer(ctx, RespondInput{
		CounterOfferID: result.NewOffer.ID,
		ActorID:        repo.customerID,
		ActorType:      enums.ActorTypeCustomer,
		Action:         ActionCounter,
		Amount:         dec("135"),
	})
	require.NoError(t, err)

	final, err := svc.RespondToCounterOffer(ctx, RespondInput{
		CounterOfferID: result.NewOffer.ID,
		ActorID:        repo.bid.GarageID,
		ActorType:      enums.ActorTypeGarage,
		Action:         ActionReject,
	})
	require.NoError(t, err)
	assert.True(t, final.FinalRound, "rejecting the round-3 offer should flag the final round")
	assert.True(t, repo.bid.Amount.Equal(dec("150")), "rejection must not touch the bid price")
}

func TestCannotRespondToOwnOffer(t *testing.T) {
	repo := &fakeRepository{bid: newPendingBid("150"), customerID: uuid.New()}
	svc := newTestService(t, repo)
	ctx := context.Background()

	offer, err := svc.CreateCounterOffer(ctx, CreateOfferInput{
		BidID:     repo.bid.ID,
		ActorID:   repo.customerID,
		ActorType: enums.ActorTypeCustomer,
		Amount:    dec("130"),
	})
	require.NoError(t, err)

	_, err = svc.RespondToCounterOffer(ctx, RespondInput{
		CounterOfferID: offer.ID,
		ActorID:        repo.customerID,
		ActorType:      enums.ActorTypeCustomer,
		Action:         ActionAccept,
	})
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestCounterOfferFromStrangerIsForbidden(t *testing.T) {
	repo := &fakeRepository{bid: newPendingBid("150"), customerID: uuid.New()}
	svc := newTestService(t, repo)
	ctx := context.Background()

	// a rival garage must not open rounds on someone else's bid
	_, err := svc.CreateCounterOffer(ctx, CreateOfferInput{
		BidID:     repo.bid.ID,
		ActorID:   uuid.New(),
		ActorType: enums.ActorTypeGarage,
		Amount:    dec("10"),
	})
	assertCode(t, err, pkgerrors.CodeForbidden)

	// nor may a customer who does not own the request
	_, err = svc.CreateCounterOffer(ctx, CreateOfferInput{
		BidID:     repo.bid.ID,
		ActorID:   uuid.New(),
		ActorType: enums.ActorTypeCustomer,
		Amount:    dec("130"),
	})
	assertCode(t, err, pkgerrors.CodeForbidden)
	assert.Empty(t, repo.offers, "no round may be recorded for a stranger")
	assert.Empty(t, repo.events)
}

func TestStrangerCannotRespondToCounterOffer(t *testing.T) {
	repo := &fakeRepository{bid: newPendingBid("150"), customerID: uuid.New()}
	svc := newTestService(t, repo)
	ctx := context.Background()

	offer, err := svc.CreateCounterOffer(ctx, CreateOfferInput{
		BidID:     repo.bid.ID,
		ActorID:   repo.bid.GarageID,
		ActorType: enums.ActorTypeGarage,
		Amount:    dec("140"),
	})
	require.NoError(t, err)

	_, err = svc.RespondToCounterOffer(ctx, RespondInput{
		CounterOfferID: offer.ID,
		ActorID:        uuid.New(),
		ActorType:      enums.ActorTypeCustomer,
		Action:         ActionAccept,
	})
	assertCode(t, err, pkgerrors.CodeForbidden)
	assert.True(t, repo.bid.Amount.Equal(dec("150")), "a stranger must not settle the price")
	assert.Equal(t, enums.CounterOfferStatusPending, offer.Status)
}

func TestAcceptLastGarageOfferWrongCustomer(t *testing.T) {
	repo := &fakeRepository{bid: newPendingBid("150"), customerID: uuid.New()}
	svc := newTestService(t, repo)
	ctx := context.Background()

	_, err := svc.CreateCounterOffer(ctx, CreateOfferInput{
		BidID:     repo.bid.ID,
		ActorID:   repo.bid.GarageID,
		ActorType: enums.ActorTypeGarage,
		Amount:    dec("140"),
	})
	require.NoError(t, err)

	_, err = svc.AcceptLastGarageOffer(ctx, repo.bid.ID, uuid.New())
	assertCode(t, err, pkgerrors.CodeForbidden)
	assert.True(t, repo.bid.Amount.Equal(dec("150")), "bid price must survive the rejected accept")
}

func TestNegotiationRequiresPendingBid(t *testing.T) {
	repo := &fakeRepository{bid: newPendingBid("150"), customerID: uuid.New()}
	repo.bid.Status = enums.BidStatusAccepted
	svc := newTestService(t, repo)

	_, err := svc.CreateCounterOffer(context.Background(), CreateOfferInput{
		BidID:     repo.bid.ID,
		ActorID:   repo.customerID,
		ActorType: enums.ActorTypeCustomer,
		Amount:    dec("130"),
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestAcceptLastGarageOffer(t *testing.T) {
	repo := &fakeRepository{bid: newPendingBid("150"), customerID: uuid.New()}
	svc := newTestService(t, repo)
	ctx := context.Background()

	// exhaust all three rounds, leaving the garage's 140 in round 2
	offer, err := svc.CreateCounterOffer(ctx, CreateOfferInput{
		BidID:     repo.bid.ID,
		ActorID:   repo.customerID,
		ActorType: enums.ActorTypeCustomer,
		Amount:    dec("130"),
	})
	require.NoError(t, err)
	result, err := svc.RespondToCounterOffer(ctx, RespondInput{
		CounterOfferID: offer.ID,
		ActorID:        repo.bid.GarageID,
		ActorType:      enums.ActorTypeGarage,
		Action:         ActionCounter,
		Amount:         dec("140"),
	})
	require.NoError(t, err)
	result, err = svc.RespondToCounterOffer(ctx, RespondInput{
		CounterOfferID: result.NewOffer.ID,
		ActorID:        repo.customerID,
		ActorType:      enums.ActorTypeCustomer,
		Action:         ActionCounter,
		Amount:         dec("135"),
	})
	require.NoError(t, err)

	bid, err := svc.AcceptLastGarageOffer(ctx, repo.bid.ID, repo.customerID)
	require.NoError(t, err)
	assert.True(t, bid.Amount.Equal(dec("140")), "bid should settle on the garage's last price, got %s", bid.Amount)

	// the customer's still-pending round 3 offer was force-closed
	_, err = repo.FindPendingCounterOffer(ctx, repo.bid.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAcceptLastGarageOfferWithoutGarageOffers(t *testing.T) {
	repo := &fakeRepository{bid: newPendingBid("150"), customerID: uuid.New()}
	svc := newTestService(t, repo)

	_, err := svc.AcceptLastGarageOffer(context.Background(), repo.bid.ID, repo.customerID)
	assertCode(t, err, pkgerrors.CodeNotFound)
}
