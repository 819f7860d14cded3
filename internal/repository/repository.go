// Package repository declares the persistence contracts the engine relies on.
// Implementations live in the memory, mongo and postgres subpackages.
package repository

import (
	"context"

	"load-request-api-server/internal/models"
)

type RequestFilter struct {
	LsrID   string
	DepotID string
	Status  models.RequestStatus
}

type AssignmentFilter struct {
	RequestID string
	TruckID   string
	Status    models.AssignmentStatus
}

type NotificationFilter struct {
	UserID    string
	RequestID string
	Status    models.NotificationStatus
}

type RequestRepository interface {
	Create(ctx context.Context, req *models.LoadRequest) error
	FindByID(ctx context.Context, requestID string) (*models.LoadRequest, error)
	List(ctx context.Context, filter RequestFilter) ([]models.LoadRequest, error)
	// Update replaces the stored request only while its status still equals
	// expected. A lost race returns errs.ErrConflict.
	Update(ctx context.Context, req *models.LoadRequest, expected models.RequestStatus) error
}

type AssignmentRepository interface {
	// Create fails with errs.ErrConflict if the request already has an assignment.
	Create(ctx context.Context, a *models.TruckAssignment) error
	FindByID(ctx context.Context, assignmentID string) (*models.TruckAssignment, error)
	FindByRequest(ctx context.Context, requestID string) (*models.TruckAssignment, error)
	List(ctx context.Context, filter AssignmentFilter) ([]models.TruckAssignment, error)
	// Update applies only while the stored status is one of expected.
	Update(ctx context.Context, a *models.TruckAssignment, expected ...models.AssignmentStatus) error
}

// LoadingLogRepository is append-only.
type LoadingLogRepository interface {
	Append(ctx context.Context, logs []models.LoadingLog) error
	ListByAssignment(ctx context.Context, assignmentID string) ([]models.LoadingLog, error)
	ListByRequest(ctx context.Context, requestID string) ([]models.LoadingLog, error)
}

type StockRepository interface {
	Get(ctx context.Context, skuID, warehouseID string) (*models.WarehouseStock, error)
	// Put provisions a stock level. Only the warehouse integration and tests call it.
	Put(ctx context.Context, s *models.WarehouseStock) error
	// Decrement atomically subtracts qty from availableQty, or returns
	// errs.ErrInsufficientStock without mutating anything when qty exceeds it.
	Decrement(ctx context.Context, skuID, warehouseID string, qty int) (*models.WarehouseStock, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	FindByID(ctx context.Context, notificationID string) (*models.Notification, error)
	List(ctx context.Context, filter NotificationFilter) ([]models.Notification, error)
	// MarkRead is idempotent.
	MarkRead(ctx context.Context, notificationID string) (*models.Notification, error)
	Delete(ctx context.Context, notificationID string) error
}

// Store groups the repositories and provides the unit of work. Repositories
// called with the ctx handed to fn take part in the transaction.
type Store interface {
	Requests() RequestRepository
	Assignments() AssignmentRepository
	LoadingLogs() LoadingLogRepository
	Stock() StockRepository
	Notifications() NotificationRepository
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	Close(ctx context.Context) error
}
