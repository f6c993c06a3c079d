package fulfillment

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/garagebid/garagebid-backend/pkg/db/models"
)

// Repository manages persistence for orders, assignments and the status
// history trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrderByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderByIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	CreateHistory(ctx context.Context, row *models.OrderStatusHistory) error
	ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error)
	FindAssignmentByIDForUpdate(ctx context.Context, assignmentID uuid.UUID) (*models.OrderAssignment, error)
	ListAssignmentsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderAssignment, error)
	UpdateAssignment(ctx context.Context, assignmentID uuid.UUID, updates map[string]any) error
	CountOtherActiveAssignments(ctx context.Context, driverID, excludeID uuid.UUID) (int64, error)
	UpdateDriver(ctx context.Context, driverID uuid.UUID, updates map[string]any) error
	IncrementDriverDeliveries(ctx context.Context, driverID uuid.UUID) error
	CreateDispute(ctx context.Context, dispute *models.Dispute) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a fulfillment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrderByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderByIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) CreateHistory(ctx context.Context, row *models.OrderStatusHistory) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) ListHistory(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	var rows []models.OrderStatusHistory
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindAssignmentByIDForUpdate(ctx context.Context, assignmentID uuid.UUID) (*models.OrderAssignment, error) {
	var assignment models.OrderAssignment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", assignmentID).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) ListAssignmentsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderAssignment, error) {
	var assignments []models.OrderAssignment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("assigned_at ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *repository) UpdateAssignment(ctx context.Context, assignmentID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderAssignment{}).
		Where("id = ?", assignmentID).
		Updates(updates).Error
}

func (r *repository) CountOtherActiveAssignments(ctx context.Context, driverID, excludeID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderAssignment{}).
		Where("driver_id = ? AND active = ? AND id <> ?", driverID, true, excludeID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) UpdateDriver(ctx context.Context, driverID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Driver{}).
		Where("id = ?", driverID).
		Updates(updates).Error
}

func (r *repository) IncrementDriverDeliveries(ctx context.Context, driverID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Driver{}).
		Where("id = ?", driverID).
		UpdateColumn("completed_deliveries", gorm.Expr("completed_deliveries + 1")).Error
}

func (r *repository) CreateDispute(ctx context.Context, dispute *models.Dispute) error {
	return r.db.WithContext(ctx).Create(dispute).Error
}
