package repository

import (
	"context"
	"errors"

	"github.com/spec-kit/fleet-workorders/internal/domain"
)

// Sentinel errors returned by WorkOrderStore implementations.
var (
	ErrNotFound        = errors.New("work order not found")
	ErrVersionConflict = errors.New("work order version conflict")
	ErrDuplicateNumber = errors.New("work order number already taken")
)

// WorkOrdersTable is the table name used by stores and change feeds.
const WorkOrdersTable = "work_orders"

// WorkOrderOrder selects the listing order.
type WorkOrderOrder string

const (
	OrderUpdatedDesc   WorkOrderOrder = "updated_at"
	OrderExecutionAsc  WorkOrderOrder = "execution_order"
	OrderCreatedAtDesc WorkOrderOrder = "created_at"
)

// WorkOrderFilter captures listing parameters. A non-positive Limit returns
// every matching row.
type WorkOrderFilter struct {
	Statuses   []domain.WorkOrderStatus
	Priorities []domain.Priority
	SearchTerm *string
	OrderBy    WorkOrderOrder
	Limit      int
	Offset     int
}

// WorkOrderStore is the persisted work order table.
type WorkOrderStore interface {
	// NextSequence allocates the next number sequence value. Values are never
	// handed out twice, even when the insert using them fails.
	NextSequence(ctx context.Context) (int64, error)
	// Insert stores a new row. A taken number yields ErrDuplicateNumber.
	Insert(ctx context.Context, wo *domain.WorkOrder) error
	GetByID(ctx context.Context, id string) (*domain.WorkOrder, error)
	List(ctx context.Context, filter WorkOrderFilter) ([]domain.WorkOrder, error)
	// Update writes wo when the stored version equals expectedVersion and
	// bumps wo.Version. Otherwise it returns ErrVersionConflict, or
	// ErrNotFound when the row is gone.
	Update(ctx context.Context, wo *domain.WorkOrder, expectedVersion int64) error
	Delete(ctx context.Context, id string) (bool, error)
	Ping(ctx context.Context) error
}
