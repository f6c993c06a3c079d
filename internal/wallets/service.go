package wallets

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/garagebid/garagebid-backend/internal/fees"
	"github.com/garagebid/garagebid-backend/pkg/db"
	"github.com/garagebid/garagebid-backend/pkg/db/models"
	"github.com/garagebid/garagebid-backend/pkg/enums"
	pkgerrors "github.com/garagebid/garagebid-backend/pkg/errors"
	"github.com/garagebid/garagebid-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the only mutation path for driver wallets. Every write keeps the
// wallet aggregates equal to the fold of its transactions.
type Service interface {
	AddTransaction(ctx context.Context, input AddTransactionInput) (*models.DriverTransaction, error)
	CreditDelivery(ctx context.Context, input DeliveryCreditInput) error
	Statement(ctx context.Context, driverID uuid.UUID, params pagination.Params) (*Statement, error)
}

type service struct {
	repo Repository
	tx   txRunner
	calc fees.Calculator
}

// AddTransactionInput carries one signed ledger mutation.
type AddTransactionInput struct {
	DriverID    uuid.UUID
	Amount      decimal.Decimal
	Type        enums.TransactionType
	ReferenceID *uuid.UUID
	Description string
}

// DeliveryCreditInput describes the wallet side effects of a delivered order.
type DeliveryCreditInput struct {
	DriverID       uuid.UUID
	OrderID        uuid.UUID
	OrderNumber    string
	OrderTotal     decimal.Decimal
	CashOnDelivery bool
}

// Statement is a driver-facing view of the wallet and its recent ledger.
type Statement struct {
	Wallet       *models.DriverWallet       `json:"wallet"`
	Transactions []models.DriverTransaction `json:"transactions"`
	NextCursor   *string                    `json:"next_cursor,omitempty"`
}

// NewService wires a wallet service with the required dependencies.
func NewService(repo Repository, tx txRunner, calc fees.Calculator) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, calc: calc}, nil
}

func (s *service) AddTransaction(ctx context.Context, input AddTransactionInput) (*models.DriverTransaction, error) {
	if input.DriverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", input.Type))
	}
	if input.Amount.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction amount must be non-zero")
	}
	if input.Description == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction description required")
	}

	var created *models.DriverTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		wallet, err := repo.FindWalletByDriverIDForUpdate(ctx, input.DriverID)
		if err != nil {
			if err != gorm.ErrRecordNotFound {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock wallet")
			}
			wallet = &models.DriverWallet{
				ID:       uuid.New(),
				DriverID: input.DriverID,
			}
			if err := repo.CreateWallet(ctx, wallet); err != nil {
				// a concurrent first transaction won the insert; use its row
				if !db.IsUniqueViolation(err, "idx_driver_wallets_driver_id") {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet")
				}
				wallet, err = repo.FindWalletByDriverIDForUpdate(ctx, input.DriverID)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload wallet")
				}
			}
		}

		amount := fees.Round2(input.Amount)
		txn := &models.DriverTransaction{
			ID:          uuid.New(),
			WalletID:    wallet.ID,
			Type:        input.Type,
			Amount:      amount,
			ReferenceID: input.ReferenceID,
			Description: input.Description,
		}
		if err := repo.CreateTransaction(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert wallet transaction")
		}

		updates := map[string]any{
			"balance": wallet.Balance.Add(amount),
		}
		switch input.Type {
		case enums.TransactionTypeEarning:
			updates["total_earned"] = wallet.TotalEarned.Add(amount)
		case enums.TransactionTypeCashCollection:
			updates["cash_collected"] = wallet.CashCollected.Add(amount.Abs())
		}
		if err := repo.UpdateWallet(ctx, wallet.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update wallet aggregates")
		}

		created = txn
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreditDelivery records the earning leg and, for cash orders, the collection
// leg. The legs run in separate transactions: a second-leg failure must not
// discard an already-recorded earning. The combined error tells the caller
// which leg failed.
func (s *service) CreditDelivery(ctx context.Context, input DeliveryCreditInput) error {
	if input.DriverID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	orderRef := input.OrderID
	earning := s.calc.DriverEarning(input.OrderTotal)
	if _, err := s.AddTransaction(ctx, AddTransactionInput{
		DriverID:    input.DriverID,
		Amount:      earning,
		Type:        enums.TransactionTypeEarning,
		ReferenceID: &orderRef,
		Description: fmt.Sprintf("delivery earning for order %s", input.OrderNumber),
	}); err != nil {
		return multierr.Append(nil, fmt.Errorf("earning leg: %w", err))
	}

	if !input.CashOnDelivery {
		return nil
	}

	if _, err := s.AddTransaction(ctx, AddTransactionInput{
		DriverID:    input.DriverID,
		Amount:      fees.Round2(input.OrderTotal).Neg(),
		Type:        enums.TransactionTypeCashCollection,
		ReferenceID: &orderRef,
		Description: fmt.Sprintf("cash collected for order %s", input.OrderNumber),
	}); err != nil {
		return multierr.Append(nil, fmt.Errorf("cash collection leg (earning already recorded): %w", err))
	}
	return nil
}

func (s *service) Statement(ctx context.Context, driverID uuid.UUID, params pagination.Params) (*Statement, error) {
	if driverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id required")
	}

	wallet, err := s.repo.FindWalletByDriverID(ctx, driverID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}

	txns, err := s.repo.ListTransactions(ctx, wallet.ID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet transactions")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	statement := &Statement{Wallet: wallet}
	if len(txns) > limit {
		txns = txns[:limit]
		last := txns[len(txns)-1]
		cursor := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		statement.NextCursor = &cursor
	}
	statement.Transactions = txns
	return statement, nil
}
