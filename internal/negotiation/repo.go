package negotiation

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/garagebid/garagebid-backend/pkg/db/models"
	"github.com/garagebid/garagebid-backend/pkg/enums"
)

// Repository manages persistence for counter offers and the negotiation
// event log.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindBidByIDForUpdate(ctx context.Context, bidID uuid.UUID) (*models.Bid, error)
	FindRequestCustomerID(ctx context.Context, requestID uuid.UUID) (uuid.UUID, error)
	FindCounterOfferByIDForUpdate(ctx context.Context, offerID uuid.UUID) (*models.CounterOffer, error)
	FindPendingCounterOffer(ctx context.Context, bidID uuid.UUID) (*models.CounterOffer, error)
	FindLastOfferByActorType(ctx context.Context, bidID uuid.UUID, actorType enums.ActorType) (*models.CounterOffer, error)
	CountCounterOffers(ctx context.Context, bidID uuid.UUID) (int64, error)
	CreateCounterOffer(ctx context.Context, offer *models.CounterOffer) error
	UpdateCounterOffer(ctx context.Context, offerID uuid.UUID, updates map[string]any) error
	UpdateBid(ctx context.Context, bidID uuid.UUID, updates map[string]any) error
	CreateEvent(ctx context.Context, event *models.NegotiationEvent) error
	ListEvents(ctx context.Context, bidID uuid.UUID) ([]models.NegotiationEvent, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a negotiation repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindBidByIDForUpdate(ctx context.Context, bidID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", bidID).
		First(&bid).Error
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

func (r *repository) FindRequestCustomerID(ctx context.Context, requestID uuid.UUID) (uuid.UUID, error) {
	var request models.PartRequest
	err := r.db.WithContext(ctx).
		Select("customer_id").
		Where("id = ?", requestID).
		First(&request).Error
	if err != nil {
		return uuid.Nil, err
	}
	return request.CustomerID, nil
}

func (r *repository) FindCounterOfferByIDForUpdate(ctx context.Context, offerID uuid.UUID) (*models.CounterOffer, error) {
	var offer models.CounterOffer
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", offerID).
		First(&offer).Error
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *repository) FindPendingCounterOffer(ctx context.Context, bidID uuid.UUID) (*models.CounterOffer, error) {
	var offer models.CounterOffer
	err := r.db.WithContext(ctx).
		Where("bid_id = ? AND status = ?", bidID, enums.CounterOfferStatusPending).
		First(&offer).Error
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *repository) FindLastOfferByActorType(ctx context.Context, bidID uuid.UUID, actorType enums.ActorType) (*models.CounterOffer, error) {
	var offer models.CounterOffer
	err := r.db.WithContext(ctx).
		Where("bid_id = ? AND offered_by_type = ?", bidID, actorType).
		Order("round_number DESC").
		First(&offer).Error
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *repository) CountCounterOffers(ctx context.Context, bidID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CounterOffer{}).
		Where("bid_id = ?", bidID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) CreateCounterOffer(ctx context.Context, offer *models.CounterOffer) error {
	return r.db.WithContext(ctx).Create(offer).Error
}

func (r *repository) UpdateCounterOffer(ctx context.Context, offerID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.CounterOffer{}).
		Where("id = ?", offerID).
		Updates(updates).Error
}

func (r *repository) UpdateBid(ctx context.Context, bidID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("id = ?", bidID).
		Updates(updates).Error
}

func (r *repository) CreateEvent(ctx context.Context, event *models.NegotiationEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListEvents(ctx context.Context, bidID uuid.UUID) ([]models.NegotiationEvent, error) {
	var events []models.NegotiationEvent
	err := r.db.WithContext(ctx).
		Where("bid_id = ?", bidID).
		Order("created_at ASC, id ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
