package requests

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
	"github.com/garagebid/garagebid-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the part request lifecycle up to the point a bid is
// accepted. Acceptance itself lives in the bids package.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.PartRequest, error)
	Cancel(ctx context.Context, requestID, customerID uuid.UUID) (*models.PartRequest, error)
	Get(ctx context.Context, requestID uuid.UUID) (*models.PartRequest, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*Page, error)
}

// CreateInput carries a new part request.
type CreateInput struct {
	CustomerID   uuid.UUID
	VehicleMake  string
	VehicleModel string
	VehicleYear  int
	PartName     string
	Description  *string
	DeliveryLat  *float64
	DeliveryLng  *float64
}

// Page is one cursor page of a customer's requests.
type Page struct {
	Requests   []models.PartRequest `json:"requests"`
	NextCursor *string              `json:"next_cursor,omitempty"`
}

type service struct {
	repo     Repository
	tx       txRunner
	notifier notifications.Notifier
	logg     *logger.Logger
}

// NewService wires the part request service.
func NewService(repo Repository, tx txRunner, notifier notifications.Notifier, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("request repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &service{repo: repo, tx: tx, notifier: notifier, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.PartRequest, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if input.VehicleMake == "" || input.VehicleModel == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vehicle make and model required")
	}
	if input.VehicleYear < 1950 || input.VehicleYear > time.Now().Year()+1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("implausible vehicle year %d", input.VehicleYear))
	}
	if input.PartName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "part name required")
	}
	if (input.DeliveryLat == nil) != (input.DeliveryLng == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery coordinates must be provided together")
	}
	if input.DeliveryLat != nil {
		if *input.DeliveryLat < -90 || *input.DeliveryLat > 90 || *input.DeliveryLng < -180 || *input.DeliveryLng > 180 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery coordinates out of range")
		}
	}

	request := &models.PartRequest{
		ID:           uuid.New(),
		CustomerID:   input.CustomerID,
		VehicleMake:  input.VehicleMake,
		VehicleModel: input.VehicleModel,
		VehicleYear:  input.VehicleYear,
		PartName:     input.PartName,
		Description:  input.Description,
		DeliveryLat:  input.DeliveryLat,
		DeliveryLng:  input.DeliveryLng,
		Status:       enums.RequestStatusActive,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create part request")
	}
	return request, nil
}

// Cancel closes an active request and rejects every bid still pending on it.
func (s *service) Cancel(ctx context.Context, requestID, customerID uuid.UUID) (*models.PartRequest, error) {
	if requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}

	var (
		cancelled *models.PartRequest
		rejected  []models.Bid
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		request, err := repo.FindByIDForUpdate(ctx, requestID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock request")
		}
		if request.CustomerID != customerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "request belongs to another customer")
		}
		if request.Status != enums.RequestStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("request is %s, only active requests cancel", request.Status))
		}

		rejected, err = repo.ListPendingBids(ctx, request.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending bids")
		}
		if err := repo.RejectPendingBids(ctx, request.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject pending bids")
		}
		if err := repo.Update(ctx, request.ID, map[string]any{"status": enums.RequestStatusCancelled}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel request")
		}

		request.Status = enums.RequestStatusCancelled
		cancelled = request
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, bid := range rejected {
		notifyErr := s.notifier.Notify(ctx, notifications.Event{
			Recipient:     bid.GarageID,
			RecipientRole: enums.ActorTypeGarage,
			Type:          notifications.EventBidRejected,
			Payload: map[string]any{
				"bid_id":     bid.ID.String(),
				"request_id": requestID.String(),
				"reason":     "request_cancelled",
			},
		})
		if notifyErr != nil && s.logg != nil {
			s.logg.Warn(ctx, fmt.Sprintf("notification %s failed: %v", notifications.EventBidRejected, notifyErr))
		}
	}
	return cancelled, nil
}

func (s *service) Get(ctx context.Context, requestID uuid.UUID) (*models.PartRequest, error) {
	if requestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id required")
	}
	request, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request")
	}
	return request, nil
}

func (s *service) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*Page, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}

	rows, err := s.repo.ListByCustomer(ctx, customerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list requests")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	page := &Page{}
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		cursor := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		page.NextCursor = &cursor
	}
	page.Requests = rows
	return page, nil
}
