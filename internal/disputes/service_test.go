package disputes

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/garagebid/garagebid-backend/internal/fees"
	"github.com/garagebid/garagebid-backend/internal/fulfillment"
	"github.com/garagebid/garagebid-backend/internal/notifications"
	"github.com/garagebid/garagebid-backend/internal/payouts"
	"github.com/garagebid/garagebid-backend/pkg/config"
	"github.com/garagebid/garagebid-backend/pkg/db/models"
	"github.com/garagebid/garagebid-backend/pkg/enums"
	pkgerrors "github.com/garagebid/garagebid-backend/pkg/errors"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeDisputeRepo struct {
	disputes map[uuid.UUID]*models.Dispute
	failID   uuid.UUID
}

func newFakeDisputeRepo() *fakeDisputeRepo {
	return &fakeDisputeRepo{disputes: map[uuid.UUID]*models.Dispute{}}
}

func (f *fakeDisputeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeDisputeRepo) Create(ctx context.Context, dispute *models.Dispute) error {
	for _, existing := range f.disputes {
		if existing.OrderID == dispute.OrderID {
			return errors.New("duplicate key value violates unique constraint \"idx_disputes_order_id\"")
		}
	}
	f.disputes[dispute.ID] = dispute
	return nil
}

func (f *fakeDisputeRepo) FindByID(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	dispute, ok := f.disputes[disputeID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *dispute
	return &copied, nil
}

func (f *fakeDisputeRepo) FindByIDForUpdate(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	return f.FindByID(ctx, disputeID)
}

func (f *fakeDisputeRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Dispute, error) {
	for _, dispute := range f.disputes {
		if dispute.OrderID == orderID {
			copied := *dispute
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeDisputeRepo) Update(ctx context.Context, disputeID uuid.UUID, updates map[string]any) error {
	if disputeID == f.failID {
		return errors.New("write timeout")
	}
	dispute, ok := f.disputes[disputeID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if status, ok := updates["status"]; ok {
		dispute.Status = status.(enums.DisputeStatus)
	}
	if at, ok := updates["contested_at"]; ok {
		t := at.(time.Time)
		dispute.ContestedAt = &t
	}
	if at, ok := updates["resolved_at"]; ok {
		t := at.(time.Time)
		dispute.ResolvedAt = &t
	}
	if note, ok := updates["resolution_note"]; ok {
		if n, ok := note.(*string); ok {
			dispute.ResolutionNote = n
		}
	}
	return nil
}

func (f *fakeDisputeRepo) ListStaleContested(ctx context.Context, cutoff time.Time) ([]models.Dispute, error) {
	var stale []models.Dispute
	for _, dispute := range f.disputes {
		if dispute.Status == enums.DisputeStatusContested && dispute.ContestedAt != nil && !dispute.ContestedAt.After(cutoff) {
			stale = append(stale, *dispute)
		}
	}
	return stale, nil
}

type fakeOrderRepo struct {
	orders   map[uuid.UUID]*models.Order
	history  []models.OrderStatusHistory
	disputes []models.Dispute
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[uuid.UUID]*models.Order{}}
}

func (f *fakeOrderRepo) WithTx(tx *gorm.DB) fulfillment.Repository { return f }

func (f *fakeOrderRepo) FindOrderByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (f *fakeOrderRepo) FindOrderByIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return f.FindOrderByID(ctx, orderID)
}

func (f *fakeOrderRepo) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	order, ok := f.orders[orderID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if status, ok := updates["status"]; ok {
		order.Status = status.(enums.OrderStatus)
	}
	return nil
}

func (f *fakeOrderRepo) CreateHistory(ctx context.Context, row *models.OrderStatusHistory) error {
	f.history = append(f.history, *row)
	return nil
}

func (f *fakeOrderRepo) ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	return f.history, nil
}

func (f *fakeOrderRepo) FindAssignmentByIDForUpdate(ctx context.Context, assignmentID uuid.UUID) (*models.OrderAssignment, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrderRepo) ListAssignmentsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderAssignment, error) {
	return nil, nil
}

func (f *fakeOrderRepo) UpdateAssignment(ctx context.Context, assignmentID uuid.UUID, updates map[string]any) error {
	return nil
}

func (f *fakeOrderRepo) CountOtherActiveAssignments(ctx context.Context, driverID, excludeID uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeOrderRepo) UpdateDriver(ctx context.Context, driverID uuid.UUID, updates map[string]any) error {
	return nil
}

func (f *fakeOrderRepo) IncrementDriverDeliveries(ctx context.Context, driverID uuid.UUID) error {
	return nil
}

func (f *fakeOrderRepo) CreateDispute(ctx context.Context, dispute *models.Dispute) error {
	f.disputes = append(f.disputes, *dispute)
	return nil
}

type fakePayoutRepo struct {
	payouts map[uuid.UUID]*models.GaragePayout
}

func newFakePayoutRepo() *fakePayoutRepo {
	return &fakePayoutRepo{payouts: map[uuid.UUID]*models.GaragePayout{}}
}

func (f *fakePayoutRepo) WithTx(tx *gorm.DB) payouts.Repository { return f }

func (f *fakePayoutRepo) Create(ctx context.Context, payout *models.GaragePayout) error {
	f.payouts[payout.ID] = payout
	return nil
}

func (f *fakePayoutRepo) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.GaragePayout, error) {
	for _, payout := range f.payouts {
		if payout.OrderID == orderID {
			copied := *payout
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePayoutRepo) FindByOrderIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.GaragePayout, error) {
	return f.FindByOrderID(ctx, orderID)
}

func (f *fakePayoutRepo) FindByIDForUpdate(ctx context.Context, payoutID uuid.UUID) (*models.GaragePayout, error) {
	payout, ok := f.payouts[payoutID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *payout
	return &copied, nil
}

func (f *fakePayoutRepo) Update(ctx context.Context, payoutID uuid.UUID, updates map[string]any) error {
	payout, ok := f.payouts[payoutID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if status, ok := updates["status"]; ok {
		payout.Status = status.(enums.PayoutStatus)
	}
	return nil
}

func (f *fakePayoutRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]models.GaragePayout, error) {
	return nil, nil
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
	svc        Service
	repo       *fakeDisputeRepo
	orderRepo  *fakeOrderRepo
	payoutRepo *fakePayoutRepo
	notifier   *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:       newFakeDisputeRepo(),
		orderRepo:  newFakeOrderRepo(),
		payoutRepo: newFakePayoutRepo(),
		notifier:   &recordingNotifier{},
	}
	cfg := config.MarketplaceConfig{
		DefaultCommissionRate:  0.15,
		FlatDeliveryFee:        15,
		DriverEarningFloor:     5,
		DriverEarningRate:      0.10,
		DisputeWindowHours:     48,
		MaxDisputePhotos:       5,
		PayoutDelayDays:        7,
		DisputeAutoResolveWait: 72 * time.Hour,
	}
	svc, err := NewService(f.repo, f.orderRepo, f.payoutRepo, fakeTxRunner{}, fees.NewCalculator(cfg), f.notifier, nil, nil, cfg)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) seedOrder(status enums.OrderStatus, deliveredAgo time.Duration) *models.Order {
	deliveredAt := time.Now().UTC().Add(-deliveredAgo)
	order := &models.Order{
		ID:                 uuid.New(),
		OrderNumber:        "GB-2026-000007",
		BidID:              uuid.New(),
		CustomerID:         uuid.New(),
		GarageID:           uuid.New(),
		PartPrice:          dec("150.00"),
		DeliveryFee:        dec("25.00"),
		TotalAmount:        dec("175.00"),
		GaragePayoutAmount: dec("127.50"),
		Status:             status,
		DeliveredAt:        &deliveredAt,
	}
	f.orderRepo.orders[order.ID] = order
	return order
}

func (f *fixture) seedDispute(order *models.Order, status enums.DisputeStatus) *models.Dispute {
	dispute := &models.Dispute{
		ID:           uuid.New(),
		OrderID:      order.ID,
		CustomerID:   order.CustomerID,
		Reason:       enums.DisputeReasonDamaged,
		RefundAmount: dec("175.00"),
		Status:       status,
	}
	f.repo.disputes[dispute.ID] = dispute
	return dispute
}

func (f *fixture) seedPayout(order *models.Order, status enums.PayoutStatus) *models.GaragePayout {
	payout := &models.GaragePayout{
		ID:          uuid.New(),
		OrderID:     order.ID,
		GarageID:    order.GarageID,
		Amount:      order.GaragePayoutAmount,
		Status:      status,
		ScheduledAt: time.Now().UTC().Add(6 * 24 * time.Hour),
	}
	f.payoutRepo.payouts[payout.ID] = payout
	return payout
}

func TestCreateFreezesQuoteAndHoldsPayout(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(enums.OrderStatusDelivered, 2*time.Hour)
	payout := f.seedPayout(order, enums.PayoutStatusPending)

	dispute, err := f.svc.Create(context.Background(), CreateInput{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Reason:     enums.DisputeReasonDamaged,
		PhotoURLs:  []string{"https://cdn.example/photos/1.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.DisputeStatusPending, dispute.Status)
	// damaged refunds part price plus delivery fee
	assert.True(t, dispute.RefundAmount.Equal(dec("175.00")), dispute.RefundAmount.String())
	assert.True(t, dispute.RestockingFee.IsZero())
	assert.True(t, dispute.DeliveryFeeRefunded)
	assert.Equal(t, "platform", dispute.ReturnShippingBy)

	assert.Equal(t, enums.OrderStatusDisputed, f.orderRepo.orders[order.ID].Status)
	assert.Equal(t, enums.PayoutStatusOnHold, f.payoutRepo.payouts[payout.ID].Status)

	require.Len(t, f.orderRepo.history, 1)
	assert.Equal(t, enums.OrderStatusDisputed, f.orderRepo.history[0].NewStatus)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, order.GarageID, f.notifier.events[0].Recipient)
	assert.Equal(t, notifications.EventDisputeOpened, f.notifier.events[0].Type)
}

func TestCreateRequiresPhotosForDamaged(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(enums.OrderStatusDelivered, time.Hour)

	_, err := f.svc.Create(context.Background(), CreateInput{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Reason:     enums.DisputeReasonDamaged,
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateCapsPhotoCount(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(enums.OrderStatusDelivered, time.Hour)

	photos := make([]string, 6)
	for i := range photos {
		photos[i] = fmt.Sprintf("https://cdn.example/photos/%d.jpg", i)
	}
	_, err := f.svc.Create(context.Background(), CreateInput{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Reason:     enums.DisputeReasonDamaged,
		PhotoURLs:  photos,
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateOutsideWindow(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(enums.OrderStatusDelivered, 49*time.Hour)

	_, err := f.svc.Create(context.Background(), CreateInput{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Reason:     enums.DisputeReasonNeverArrived,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
	assert.Contains(t, err.Error(), "window")
}

func TestCreateSecondDisputeConflicts(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(enums.OrderStatusDisputed, time.Hour)
	f.seedDispute(order, enums.DisputeStatusPending)

	_, err := f.svc.Create(context.Background(), CreateInput{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Reason:     enums.DisputeReasonNeverArrived,
	})
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestResolveRefundCancelsPayout(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(enums.OrderStatusDisputed, time.Hour)
	dispute := f.seedDispute(order, enums.DisputeStatusUnderReview)
	payout := f.seedPayout(order, enums.PayoutStatusOnHold)
	note := "photos confirm shipping damage"

	resolved, err := f.svc.Resolve(context.Background(), ResolveInput{
		DisputeID: dispute.ID,
		ActorID:   uuid.New(),
		Decision:  ResolutionRefund,
		Note:      &note,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.DisputeStatusResolved, resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)
	assert.Equal(t, enums.OrderStatusRefunded, f.orderRepo.orders[order.ID].Status)
	assert.Equal(t, enums.PayoutStatusCancelled, f.payoutRepo.payouts[payout.ID].Status)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, order.CustomerID, f.notifier.events[0].Recipient)
	assert.Equal(t, notifications.EventDisputeResolved, f.notifier.events[0].Type)
}

func TestResolveRefundHoldsReleasedPayout(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(enums.OrderStatusDisputed, time.Hour)
	dispute := f.seedDispute(order, enums.DisputeStatusUnderReview)
	payout := f.seedPayout(order, enums.PayoutStatusCompleted)

	_, err := f.svc.Resolve(context.Background(), ResolveInput{
		DisputeID: dispute.ID,
		ActorID:   uuid.New(),
		Decision:  ResolutionRefund,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PayoutStatusOnHold, f.payoutRepo.payouts[payout.ID].Status)
}

func TestResolveRejectRestoresPayoutAndCompletesOrder(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(enums.OrderStatusDisputed, time.Hour)
	dispute := f.seedDispute(order, enums.DisputeStatusContested)
	payout := f.seedPayout(order, enums.PayoutStatusOnHold)

	resolved, err := f.svc.Resolve(context.Background(), ResolveInput{
		DisputeID: dispute.ID,
		ActorID:   uuid.New(),
		Decision:  ResolutionReject,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.DisputeStatusResolved, resolved.Status)
	assert.Equal(t, enums.OrderStatusCompleted, f.orderRepo.orders[order.ID].Status)
	assert.Equal(t, enums.PayoutStatusPending, f.payoutRepo.payouts[payout.ID].Status)
}

func TestResolveAlreadyClosedDispute(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(enums.OrderStatusRefunded, time.Hour)
	dispute := f.seedDispute(order, enums.DisputeStatusResolved)

	_, err := f.svc.Resolve(context.Background(), ResolveInput{
		DisputeID: dispute.ID,
		ActorID:   uuid.New(),
		Decision:  ResolutionRefund,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestContestMarksDispute(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(enums.OrderStatusDisputed, time.Hour)
	dispute := f.seedDispute(order, enums.DisputeStatusPending)

	contested, err := f.svc.Contest(context.Background(), dispute.ID, order.GarageID)
	require.NoError(t, err)
	assert.Equal(t, enums.DisputeStatusContested, contested.Status)
	assert.NotNil(t, contested.ContestedAt)
}

func TestContestWrongGarage(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(enums.OrderStatusDisputed, time.Hour)
	dispute := f.seedDispute(order, enums.DisputeStatusPending)

	_, err := f.svc.Contest(context.Background(), dispute.ID, uuid.New())
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestAutoResolveStaleRefundsCustomer(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()

	staleOrder := f.seedOrder(enums.OrderStatusDisputed, 80*time.Hour)
	stale := f.seedDispute(staleOrder, enums.DisputeStatusContested)
	staleAt := now.Add(-80 * time.Hour)
	stale.ContestedAt = &staleAt
	stalePayout := f.seedPayout(staleOrder, enums.PayoutStatusOnHold)

	freshOrder := f.seedOrder(enums.OrderStatusDisputed, 10*time.Hour)
	fresh := f.seedDispute(freshOrder, enums.DisputeStatusContested)
	freshAt := now.Add(-10 * time.Hour)
	fresh.ContestedAt = &freshAt

	resolved, err := f.svc.AutoResolveStale(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)

	assert.Equal(t, enums.DisputeStatusAutoResolved, f.repo.disputes[stale.ID].Status)
	assert.Equal(t, enums.OrderStatusRefunded, f.orderRepo.orders[staleOrder.ID].Status)
	assert.Equal(t, enums.PayoutStatusCancelled, f.payoutRepo.payouts[stalePayout.ID].Status)

	assert.Equal(t, enums.DisputeStatusContested, f.repo.disputes[fresh.ID].Status)
	assert.Equal(t, enums.OrderStatusDisputed, f.orderRepo.orders[freshOrder.ID].Status)
}

func TestAutoResolveStaleContinuesPastFailures(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	staleAt := now.Add(-100 * time.Hour)

	brokenOrder := f.seedOrder(enums.OrderStatusDisputed, 100*time.Hour)
	broken := f.seedDispute(brokenOrder, enums.DisputeStatusContested)
	broken.ContestedAt = &staleAt
	f.repo.failID = broken.ID

	healthyOrder := f.seedOrder(enums.OrderStatusDisputed, 100*time.Hour)
	healthy := f.seedDispute(healthyOrder, enums.DisputeStatusContested)
	healthy.ContestedAt = &staleAt

	resolved, err := f.svc.AutoResolveStale(context.Background(), now)
	require.Error(t, err)
	assert.Equal(t, 1, resolved)
	assert.Equal(t, enums.DisputeStatusAutoResolved, f.repo.disputes[healthy.ID].Status)
}
