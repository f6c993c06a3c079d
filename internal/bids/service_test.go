package bids

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/garagebid/garagebid-backend/internal/fees"
	"github.com/garagebid/garagebid-backend/internal/notifications"
	"github.com/garagebid/garagebid-backend/internal/requests"
	"github.com/garagebid/garagebid-backend/pkg/config"
	"github.com/garagebid/garagebid-backend/pkg/db/models"
	"github.com/garagebid/garagebid-backend/pkg/enums"
	pkgerrors "github.com/garagebid/garagebid-backend/pkg/errors"
	"github.com/garagebid/garagebid-backend/pkg/pagination"
)

type fakeTxRunner struct {
	serializableErr error
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (f *fakeTxRunner) WithSerializableTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if f.serializableErr != nil {
		return f.serializableErr
	}
	return fn(nil)
}

type fakeBidRepo struct {
	bids    map[uuid.UUID]*models.Bid
	orders  []models.Order
	history []models.OrderStatusHistory
}

func newFakeBidRepo() *fakeBidRepo {
	return &fakeBidRepo{bids: map[uuid.UUID]*models.Bid{}}
}

func (f *fakeBidRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeBidRepo) Create(ctx context.Context, bid *models.Bid) error {
	f.bids[bid.ID] = bid
	return nil
}

func (f *fakeBidRepo) FindByID(ctx context.Context, bidID uuid.UUID) (*models.Bid, error) {
	bid, ok := f.bids[bidID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *bid
	return &copied, nil
}

func (f *fakeBidRepo) FindByIDForUpdate(ctx context.Context, bidID uuid.UUID) (*models.Bid, error) {
	return f.FindByID(ctx, bidID)
}

func (f *fakeBidRepo) Update(ctx context.Context, bidID uuid.UUID, updates map[string]any) error {
	bid, ok := f.bids[bidID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if status, ok := updates["status"]; ok {
		bid.Status = status.(enums.BidStatus)
	}
	return nil
}

func (f *fakeBidRepo) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.Bid, error) {
	var rows []models.Bid
	for _, bid := range f.bids {
		if bid.RequestID == requestID {
			rows = append(rows, *bid)
		}
	}
	return rows, nil
}

func (f *fakeBidRepo) ListPendingSiblings(ctx context.Context, requestID, excludeBidID uuid.UUID) ([]models.Bid, error) {
	var rows []models.Bid
	for _, bid := range f.bids {
		if bid.RequestID == requestID && bid.Status == enums.BidStatusPending && bid.ID != excludeBidID {
			rows = append(rows, *bid)
		}
	}
	return rows, nil
}

func (f *fakeBidRepo) RejectBids(ctx context.Context, bidIDs []uuid.UUID) error {
	for _, id := range bidIDs {
		if bid, ok := f.bids[id]; ok {
			bid.Status = enums.BidStatusRejected
		}
	}
	return nil
}

func (f *fakeBidRepo) CountActiveBidsByGarage(ctx context.Context, requestID, garageID uuid.UUID) (int64, error) {
	var count int64
	for _, bid := range f.bids {
		if bid.RequestID == requestID && bid.GarageID == garageID && bid.Status == enums.BidStatusPending {
			count++
		}
	}
	return count, nil
}

func (f *fakeBidRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	for _, existing := range f.orders {
		if existing.BidID == order.BidID {
			return errors.New("duplicate key value violates unique constraint \"idx_orders_bid_id\"")
		}
	}
	f.orders = append(f.orders, *order)
	return nil
}

func (f *fakeBidRepo) CreateHistory(ctx context.Context, row *models.OrderStatusHistory) error {
	f.history = append(f.history, *row)
	return nil
}

type fakeRequestRepo struct {
	requests map[uuid.UUID]*models.PartRequest
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{requests: map[uuid.UUID]*models.PartRequest{}}
}

func (f *fakeRequestRepo) WithTx(tx *gorm.DB) requests.Repository { return f }

func (f *fakeRequestRepo) Create(ctx context.Context, request *models.PartRequest) error {
	f.requests[request.ID] = request
	return nil
}

func (f *fakeRequestRepo) FindByID(ctx context.Context, requestID uuid.UUID) (*models.PartRequest, error) {
	request, ok := f.requests[requestID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *request
	return &copied, nil
}

func (f *fakeRequestRepo) FindByIDForUpdate(ctx context.Context, requestID uuid.UUID) (*models.PartRequest, error) {
	return f.FindByID(ctx, requestID)
}

func (f *fakeRequestRepo) Update(ctx context.Context, requestID uuid.UUID, updates map[string]any) error {
	request, ok := f.requests[requestID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if status, ok := updates["status"]; ok {
		request.Status = status.(enums.RequestStatus)
	}
	return nil
}

func (f *fakeRequestRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.PartRequest, error) {
	return nil, errors.New("not used")
}

func (f *fakeRequestRepo) ListPendingBids(ctx context.Context, requestID uuid.UUID) ([]models.Bid, error) {
	return nil, errors.New("not used")
}

func (f *fakeRequestRepo) RejectPendingBids(ctx context.Context, requestID uuid.UUID) error {
	return errors.New("not used")
}

type fakeCommission struct {
	rates map[uuid.UUID]decimal.Decimal
}

func (f *fakeCommission) RateForGarage(ctx context.Context, garageID uuid.UUID) (decimal.Decimal, error) {
	if rate, ok := f.rates[garageID]; ok {
		return rate, nil
	}
	return dec("0.15"), nil
}

type fakeFeeResolver struct {
	fee    decimal.Decimal
	zoneID *uuid.UUID
	calls  int
}

func (f *fakeFeeResolver) FeeForLocation(ctx context.Context, lat, lng float64) (decimal.Decimal, *uuid.UUID, error) {
	f.calls++
	return f.fee, f.zoneID, nil
}

type recordingNotifier struct {
	events []notifications.Event
}

func (r *recordingNotifier) Notify(ctx context.Context, event notifications.Event) error {
	r.events = append(r.events, event)
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected a typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

type fixture struct {
	svc         Service
	repo        *fakeBidRepo
	requestRepo *fakeRequestRepo
	tx          *fakeTxRunner
	commission  *fakeCommission
	feeResolver *fakeFeeResolver
	notifier    *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:        newFakeBidRepo(),
		requestRepo: newFakeRequestRepo(),
		tx:          &fakeTxRunner{},
		commission:  &fakeCommission{rates: map[uuid.UUID]decimal.Decimal{}},
		feeResolver: &fakeFeeResolver{fee: dec("25.00")},
		notifier:    &recordingNotifier{},
	}
	calc := fees.NewCalculator(config.MarketplaceConfig{
		DefaultCommissionRate: 0.15,
		FlatDeliveryFee:       15,
		DriverEarningFloor:    5,
		DriverEarningRate:     0.10,
	})
	svc, err := NewService(f.repo, f.requestRepo, f.tx, f.commission, f.feeResolver, calc, f.notifier, nil, nil)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) seedRequest(withCoords bool) *models.PartRequest {
	request := &models.PartRequest{
		ID:           uuid.New(),
		CustomerID:   uuid.New(),
		VehicleMake:  "Toyota",
		VehicleModel: "Land Cruiser",
		VehicleYear:  2019,
		PartName:     "front brake caliper",
		Status:       enums.RequestStatusActive,
	}
	if withCoords {
		lat, lng := 25.2048, 55.2708
		request.DeliveryLat = &lat
		request.DeliveryLng = &lng
	}
	f.requestRepo.requests[request.ID] = request
	return request
}

func (f *fixture) seedBid(request *models.PartRequest, amount string) *models.Bid {
	bid := &models.Bid{
		ID:        uuid.New(),
		RequestID: request.ID,
		GarageID:  uuid.New(),
		Amount:    dec(amount),
		Condition: "used",
		Status:    enums.BidStatusPending,
	}
	f.repo.bids[bid.ID] = bid
	return bid
}

func TestSubmitCreatesPendingBid(t *testing.T) {
	f := newFixture(t)
	request := f.seedRequest(false)

	bid, err := f.svc.Submit(context.Background(), SubmitInput{
		RequestID:    request.ID,
		GarageID:     uuid.New(),
		Amount:       dec("149.999"),
		Condition:    "refurbished",
		WarrantyDays: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.BidStatusPending, bid.Status)
	assert.True(t, bid.Amount.Equal(dec("150.00")), "amount rounds to 2dp, got %s", bid.Amount)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, request.CustomerID, f.notifier.events[0].Recipient)
	assert.Equal(t, notifications.EventBidSubmitted, f.notifier.events[0].Type)
}

func TestSubmitRejectsSecondPendingBidFromSameGarage(t *testing.T) {
	f := newFixture(t)
	request := f.seedRequest(false)
	existing := f.seedBid(request, "150.00")

	_, err := f.svc.Submit(context.Background(), SubmitInput{
		RequestID: request.ID,
		GarageID:  existing.GarageID,
		Amount:    dec("140.00"),
		Condition: "used",
	})
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestSubmitOnClosedRequest(t *testing.T) {
	f := newFixture(t)
	request := f.seedRequest(false)
	request.Status = enums.RequestStatusCancelled

	_, err := f.svc.Submit(context.Background(), SubmitInput{
		RequestID: request.ID,
		GarageID:  uuid.New(),
		Amount:    dec("100.00"),
		Condition: "new",
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	request := f.seedRequest(false)

	cases := []SubmitInput{
		{RequestID: uuid.Nil, GarageID: uuid.New(), Amount: dec("100"), Condition: "used"},
		{RequestID: request.ID, GarageID: uuid.Nil, Amount: dec("100"), Condition: "used"},
		{RequestID: request.ID, GarageID: uuid.New(), Amount: dec("0"), Condition: "used"},
		{RequestID: request.ID, GarageID: uuid.New(), Amount: dec("100"), Condition: "mint"},
		{RequestID: request.ID, GarageID: uuid.New(), Amount: dec("100"), Condition: "used", WarrantyDays: -1},
	}
	for _, input := range cases {
		_, err := f.svc.Submit(context.Background(), input)
		assertCode(t, err, pkgerrors.CodeValidation)
	}
}

func TestAcceptFreezesSnapshotAndClosesRequest(t *testing.T) {
	f := newFixture(t)
	zoneID := uuid.New()
	f.feeResolver.zoneID = &zoneID
	request := f.seedRequest(true)
	winner := f.seedBid(request, "150.00")
	loser := f.seedBid(request, "160.00")
	f.commission.rates[winner.GarageID] = dec("0.10")

	order, err := f.svc.Accept(context.Background(), AcceptInput{
		BidID:         winner.ID,
		CustomerID:    request.CustomerID,
		PaymentMethod: enums.PaymentMethodCard,
	})
	require.NoError(t, err)

	// 150 part, 10% commission, 25 zone fee
	assert.True(t, order.PartPrice.Equal(dec("150.00")))
	assert.True(t, order.CommissionRate.Equal(dec("0.10")))
	assert.True(t, order.PlatformFee.Equal(dec("15.00")))
	assert.True(t, order.DeliveryFee.Equal(dec("25.00")))
	assert.True(t, order.GaragePayoutAmount.Equal(dec("135.00")))
	assert.True(t, order.TotalAmount.Equal(dec("175.00")))
	require.NotNil(t, order.DeliveryZoneID)
	assert.Equal(t, zoneID, *order.DeliveryZoneID)
	assert.Equal(t, enums.OrderStatusConfirmed, order.Status)
	assert.NotEmpty(t, order.OrderNumber)

	assert.Equal(t, enums.BidStatusAccepted, f.repo.bids[winner.ID].Status)
	assert.Equal(t, enums.BidStatusRejected, f.repo.bids[loser.ID].Status)
	assert.Equal(t, enums.RequestStatusAccepted, f.requestRepo.requests[request.ID].Status)

	require.Len(t, f.repo.history, 1)
	assert.Nil(t, f.repo.history[0].OldStatus)
	assert.Equal(t, enums.OrderStatusConfirmed, f.repo.history[0].NewStatus)
	assert.Equal(t, enums.ActorTypeCustomer, f.repo.history[0].ActorType)

	// winner, customer, one rejected garage
	require.Len(t, f.notifier.events, 3)
	assert.Equal(t, notifications.EventBidAccepted, f.notifier.events[0].Type)
	assert.Equal(t, winner.GarageID, f.notifier.events[0].Recipient)
	assert.Equal(t, notifications.EventOrderStatusChanged, f.notifier.events[1].Type)
	assert.Equal(t, notifications.EventBidRejected, f.notifier.events[2].Type)
	assert.Equal(t, loser.GarageID, f.notifier.events[2].Recipient)
}

func TestAcceptWithoutCoordinatesUsesFlatFee(t *testing.T) {
	f := newFixture(t)
	request := f.seedRequest(false)
	bid := f.seedBid(request, "100.00")

	order, err := f.svc.Accept(context.Background(), AcceptInput{
		BidID:      bid.ID,
		CustomerID: request.CustomerID,
	})
	require.NoError(t, err)
	assert.True(t, order.DeliveryFee.Equal(dec("15.00")), "flat fallback, got %s", order.DeliveryFee)
	assert.Nil(t, order.DeliveryZoneID)
	assert.Equal(t, 0, f.feeResolver.calls)
	assert.Equal(t, enums.PaymentMethodCash, order.PaymentMethod)
}

func TestAcceptNonPendingBid(t *testing.T) {
	f := newFixture(t)
	request := f.seedRequest(false)
	bid := f.seedBid(request, "100.00")
	bid.Status = enums.BidStatusRejected

	_, err := f.svc.Accept(context.Background(), AcceptInput{
		BidID:      bid.ID,
		CustomerID: request.CustomerID,
	})
	assertCode(t, err, pkgerrors.CodeConflict)
	assert.Empty(t, f.repo.orders)
}

func TestAcceptWrongCustomer(t *testing.T) {
	f := newFixture(t)
	request := f.seedRequest(false)
	bid := f.seedBid(request, "100.00")

	_, err := f.svc.Accept(context.Background(), AcceptInput{
		BidID:      bid.ID,
		CustomerID: uuid.New(),
	})
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestAcceptSerializationFailureBecomesConflict(t *testing.T) {
	f := newFixture(t)
	request := f.seedRequest(false)
	bid := f.seedBid(request, "100.00")
	f.tx.serializableErr = errors.New("ERROR: could not serialize access due to concurrent update (SQLSTATE 40001)")

	_, err := f.svc.Accept(context.Background(), AcceptInput{
		BidID:      bid.ID,
		CustomerID: request.CustomerID,
	})
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestAcceptDuplicateOrderForBid(t *testing.T) {
	f := newFixture(t)
	request := f.seedRequest(false)
	bid := f.seedBid(request, "100.00")
	f.repo.orders = append(f.repo.orders, models.Order{ID: uuid.New(), BidID: bid.ID})

	_, err := f.svc.Accept(context.Background(), AcceptInput{
		BidID:      bid.ID,
		CustomerID: request.CustomerID,
	})
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestListForRequestOrdersByAmount(t *testing.T) {
	f := newFixture(t)
	request := f.seedRequest(false)
	f.seedBid(request, "150.00")
	f.seedBid(request, "120.00")

	bids, err := f.svc.ListForRequest(context.Background(), request.ID)
	require.NoError(t, err)
	assert.Len(t, bids, 2)
}
