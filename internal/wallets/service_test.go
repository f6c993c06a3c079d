package wallets

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/garagebid/garagebid-backend/internal/fees"
	"github.com/garagebid/garagebid-backend/pkg/config"
	"github.com/garagebid/garagebid-backend/pkg/db/models"
	"github.com/garagebid/garagebid-backend/pkg/enums"
	"github.com/garagebid/garagebid-backend/pkg/pagination"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeRepository struct {
	wallet       *models.DriverWallet
	transactions []*models.DriverTransaction
	updates      []map[string]any

	lockErr   error
	createErr error
	txnErr    error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) FindWalletByDriverID(ctx context.Context, driverID uuid.UUID) (*models.DriverWallet, error) {
	if f.wallet == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.wallet, nil
}

func (f *fakeRepository) FindWalletByDriverIDForUpdate(ctx context.Context, driverID uuid.UUID) (*models.DriverWallet, error) {
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	if f.wallet == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.wallet, nil
}

func (f *fakeRepository) CreateWallet(ctx context.Context, wallet *models.DriverWallet) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.wallet = wallet
	return nil
}

func (f *fakeRepository) UpdateWallet(ctx context.Context, walletID uuid.UUID, updates map[string]any) error {
	f.updates = append(f.updates, updates)
	if balance, ok := updates["balance"].(decimal.Decimal); ok {
		f.wallet.Balance = balance
	}
	if earned, ok := updates["total_earned"].(decimal.Decimal); ok {
		f.wallet.TotalEarned = earned
	}
	if collected, ok := updates["cash_collected"].(decimal.Decimal); ok {
		f.wallet.CashCollected = collected
	}
	return nil
}

func (f *fakeRepository) CreateTransaction(ctx context.Context, txn *models.DriverTransaction) error {
	if f.txnErr != nil {
		return f.txnErr
	}
	f.transactions = append(f.transactions, txn)
	return nil
}

func (f *fakeRepository) ListTransactions(ctx context.Context, walletID uuid.UUID, params pagination.Params) ([]models.DriverTransaction, error) {
	out := make([]models.DriverTransaction, 0, len(f.transactions))
	for _, txn := range f.transactions {
		out = append(out, *txn)
	}
	return out, nil
}

func newTestService(t *testing.T, repo *fakeRepository) Service {
	t.Helper()
	calc := fees.NewCalculator(config.MarketplaceConfig{
		DriverEarningFloor: 5.00,
		DriverEarningRate:  0.10,
	})
	svc, err := NewService(repo, fakeTxRunner{}, calc)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAddTransactionCreatesWalletOnFirstUse(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(t, repo)

	driverID := uuid.New()
	txn, err := svc.AddTransaction(context.Background(), AddTransactionInput{
		DriverID:    driverID,
		Amount:      dec("17.50"),
		Type:        enums.TransactionTypeEarning,
		Description: "delivery earning",
	})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if repo.wallet == nil || repo.wallet.DriverID != driverID {
		t.Fatal("expected wallet to be created for the driver")
	}
	if !txn.Amount.Equal(dec("17.50")) {
		t.Fatalf("unexpected amount %s", txn.Amount)
	}
	if !repo.wallet.Balance.Equal(dec("17.50")) {
		t.Fatalf("balance not updated: %s", repo.wallet.Balance)
	}
	if !repo.wallet.TotalEarned.Equal(dec("17.50")) {
		t.Fatalf("total_earned not updated: %s", repo.wallet.TotalEarned)
	}
}

// lostInsertRepo simulates losing the wallet-creation race: the insert hits
// the driver unique index because a concurrent first transaction already
// created the row.
type lostInsertRepo struct {
	*fakeRepository
	creates int
}

func (f *lostInsertRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *lostInsertRepo) CreateWallet(ctx context.Context, wallet *models.DriverWallet) error {
	f.creates++
	f.fakeRepository.wallet = &models.DriverWallet{
		ID:       uuid.New(),
		DriverID: wallet.DriverID,
	}
	return errors.New(`duplicate key value violates unique constraint "idx_driver_wallets_driver_id"`)
}

func TestAddTransactionSurvivesWalletCreationRace(t *testing.T) {
	repo := &lostInsertRepo{fakeRepository: &fakeRepository{}}
	calc := fees.NewCalculator(config.MarketplaceConfig{DriverEarningFloor: 5.00, DriverEarningRate: 0.10})
	svc, err := NewService(repo, fakeTxRunner{}, calc)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	driverID := uuid.New()
	txn, err := svc.AddTransaction(context.Background(), AddTransactionInput{
		DriverID:    driverID,
		Amount:      dec("17.50"),
		Type:        enums.TransactionTypeEarning,
		Description: "delivery earning",
	})
	if err != nil {
		t.Fatalf("losing the insert race must not fail the transaction: %v", err)
	}
	if repo.creates != 1 {
		t.Fatalf("expected a single create attempt, got %d", repo.creates)
	}
	if txn.WalletID != repo.fakeRepository.wallet.ID {
		t.Fatal("transaction should land on the winner's wallet row")
	}
	if !repo.fakeRepository.wallet.Balance.Equal(dec("17.50")) {
		t.Fatalf("winner's wallet should carry the balance: %s", repo.fakeRepository.wallet.Balance)
	}
}

func TestAddTransactionCashCollection(t *testing.T) {
	repo := &fakeRepository{wallet: &models.DriverWallet{
		ID:       uuid.New(),
		DriverID: uuid.New(),
		Balance:  dec("50"),
	}}
	svc := newTestService(t, repo)

	_, err := svc.AddTransaction(context.Background(), AddTransactionInput{
		DriverID:    repo.wallet.DriverID,
		Amount:      dec("-175"),
		Type:        enums.TransactionTypeCashCollection,
		Description: "cash collected",
	})
	if err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if !repo.wallet.Balance.Equal(dec("-125")) {
		t.Fatalf("balance should go negative by the collected cash: %s", repo.wallet.Balance)
	}
	if !repo.wallet.CashCollected.Equal(dec("175")) {
		t.Fatalf("cash_collected should hold the absolute amount: %s", repo.wallet.CashCollected)
	}
	if !repo.wallet.TotalEarned.IsZero() {
		t.Fatalf("total_earned must not move on cash collection: %s", repo.wallet.TotalEarned)
	}
}

func TestAddTransactionValidation(t *testing.T) {
	svc := newTestService(t, &fakeRepository{})

	cases := []AddTransactionInput{
		{Amount: dec("5"), Type: enums.TransactionTypeEarning, Description: "x"},
		{DriverID: uuid.New(), Amount: dec("5"), Type: enums.TransactionType("bogus"), Description: "x"},
		{DriverID: uuid.New(), Amount: decimal.Zero, Type: enums.TransactionTypeEarning, Description: "x"},
		{DriverID: uuid.New(), Amount: dec("5"), Type: enums.TransactionTypeEarning},
	}
	for i, input := range cases {
		if _, err := svc.AddTransaction(context.Background(), input); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestCreditDeliveryCardOrder(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(t, repo)

	err := svc.CreditDelivery(context.Background(), DeliveryCreditInput{
		DriverID:    uuid.New(),
		OrderID:     uuid.New(),
		OrderNumber: "GB-1001",
		OrderTotal:  dec("175"),
	})
	if err != nil {
		t.Fatalf("CreditDelivery: %v", err)
	}
	if len(repo.transactions) != 1 {
		t.Fatalf("card orders record only the earning leg, got %d", len(repo.transactions))
	}
	if !repo.transactions[0].Amount.Equal(dec("17.50")) {
		t.Fatalf("earning should be 10%% of total: %s", repo.transactions[0].Amount)
	}
}

func TestCreditDeliveryCashOrder(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(t, repo)

	err := svc.CreditDelivery(context.Background(), DeliveryCreditInput{
		DriverID:       uuid.New(),
		OrderID:        uuid.New(),
		OrderNumber:    "GB-1002",
		OrderTotal:     dec("175"),
		CashOnDelivery: true,
	})
	if err != nil {
		t.Fatalf("CreditDelivery: %v", err)
	}
	if len(repo.transactions) != 2 {
		t.Fatalf("cash orders record both legs, got %d", len(repo.transactions))
	}
	if repo.transactions[1].Type != enums.TransactionTypeCashCollection {
		t.Fatalf("second leg should be cash collection, got %s", repo.transactions[1].Type)
	}
	if !repo.transactions[1].Amount.Equal(dec("-175")) {
		t.Fatalf("cash leg should owe back the full total: %s", repo.transactions[1].Amount)
	}
	if !repo.wallet.Balance.Equal(dec("-157.50")) {
		t.Fatalf("balance should fold both legs: %s", repo.wallet.Balance)
	}
}

func TestCreditDeliveryEarningFloor(t *testing.T) {
	repo := &fakeRepository{}
	svc := newTestService(t, repo)

	err := svc.CreditDelivery(context.Background(), DeliveryCreditInput{
		DriverID:    uuid.New(),
		OrderID:     uuid.New(),
		OrderNumber: "GB-1003",
		OrderTotal:  dec("20"),
	})
	if err != nil {
		t.Fatalf("CreditDelivery: %v", err)
	}
	if !repo.transactions[0].Amount.Equal(dec("5")) {
		t.Fatalf("earning should hit the 5.00 floor: %s", repo.transactions[0].Amount)
	}
}

func TestCreditDeliverySecondLegFailureKeepsFirst(t *testing.T) {
	repo := &fakeRepository{}

	// fail only the second insert
	calls := 0
	wrapped := &secondLegFailRepo{fakeRepository: repo, failAfter: 1, calls: &calls}
	calc := fees.NewCalculator(config.MarketplaceConfig{DriverEarningFloor: 5.00, DriverEarningRate: 0.10})
	svc, err := NewService(wrapped, fakeTxRunner{}, calc)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	err = svc.CreditDelivery(context.Background(), DeliveryCreditInput{
		DriverID:       uuid.New(),
		OrderID:        uuid.New(),
		OrderNumber:    "GB-1004",
		OrderTotal:     dec("175"),
		CashOnDelivery: true,
	})
	if err == nil {
		t.Fatal("expected error from failing cash leg")
	}
	if len(repo.transactions) != 1 {
		t.Fatalf("earning leg must survive the cash leg failure, got %d rows", len(repo.transactions))
	}
	if repo.transactions[0].Type != enums.TransactionTypeEarning {
		t.Fatalf("surviving row should be the earning: %s", repo.transactions[0].Type)
	}
}

type secondLegFailRepo struct {
	*fakeRepository
	failAfter int
	calls     *int
}

func (f *secondLegFailRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *secondLegFailRepo) CreateTransaction(ctx context.Context, txn *models.DriverTransaction) error {
	if *f.calls >= f.failAfter {
		return errors.New("insert failed")
	}
	*f.calls++
	return f.fakeRepository.CreateTransaction(ctx, txn)
}

func TestStatementNotFound(t *testing.T) {
	svc := newTestService(t, &fakeRepository{})
	if _, err := svc.Statement(context.Background(), uuid.New(), pagination.Params{}); err == nil {
		t.Fatal("expected not found for missing wallet")
	}
}
