package domain

import "time"

// WorkOrderStatus enumerates lifecycle states for work orders.
type WorkOrderStatus string

const (
	StatusAwaitingMechanic WorkOrderStatus = "AWAITING_MECHANIC"
	StatusQueued           WorkOrderStatus = "QUEUED"
	StatusInService        WorkOrderStatus = "IN_SERVICE"
	StatusAwaitingAnalysis WorkOrderStatus = "AWAITING_ANALYSIS"
	StatusAwaitingApproval WorkOrderStatus = "AWAITING_APPROVAL"
	StatusAwaitingSupplier WorkOrderStatus = "AWAITING_SUPPLIER"
	StatusAwaitingParts    WorkOrderStatus = "AWAITING_PARTS"
	StatusFinished         WorkOrderStatus = "FINISHED"
	StatusCancelled        WorkOrderStatus = "CANCELLED"
)

var knownStatuses = map[WorkOrderStatus]struct{}{
	StatusAwaitingMechanic: {},
	StatusQueued:           {},
	StatusInService:        {},
	StatusAwaitingAnalysis: {},
	StatusAwaitingApproval: {},
	StatusAwaitingSupplier: {},
	StatusAwaitingParts:    {},
	StatusFinished:         {},
	StatusCancelled:        {},
}

// Valid reports whether s is one of the known statuses.
func (s WorkOrderStatus) Valid() bool {
	_, ok := knownStatuses[s]
	return ok
}

// Priority enumerates work order urgency.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Rank orders priorities for external sorting. Unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	default:
		return 0
	}
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// SubjectRef points at an entity owned by another module together with the
// display string captured when the work order was written.
type SubjectRef struct {
	ID      string
	Display string
}

// WorkOrder is the aggregate for vehicle service tickets.
type WorkOrder struct {
	ID              string
	Number          string
	Status          WorkOrderStatus
	Vehicle         SubjectRef
	Requester       SubjectRef
	Mechanic        SubjectRef
	Priority        Priority
	ReportedDefects string
	PartsServices   string
	Notes           string
	ExecutionOrder  *int
	History         []HistoryEvent
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LastEvent returns the most recent history event, if any.
func (w *WorkOrder) LastEvent() (HistoryEvent, bool) {
	if w == nil || len(w.History) == 0 {
		return HistoryEvent{}, false
	}
	return w.History[len(w.History)-1], true
}
