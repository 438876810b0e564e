package events

import (
	"time"

	"github.com/spec-kit/fleet-workorders/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventWorkOrderCreated        EventType = "work_order_created"
	EventWorkOrderUpdated        EventType = "work_order_updated"
	EventWorkOrderStatusChanged  EventType = "work_order_status_changed"
	EventWorkOrderCustodyChanged EventType = "work_order_custody_changed"
	EventWorkOrderNoteAdded      EventType = "work_order_note_added"
	EventWorkOrderHistoryAdded   EventType = "work_order_history_added"
	EventWorkOrderDeleted        EventType = "work_order_deleted"
	EventSyncConnectionFailed    EventType = "sync_connection_failed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID          string      `json:"id"`
	Type        EventType   `json:"type"`
	WorkOrderID string      `json:"work_order_id,omitempty"`
	Actor       string      `json:"actor,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	Payload     interface{} `json:"payload"`
}

// WorkOrderCreatedPayload payload.
type WorkOrderCreatedPayload struct {
	Number   string                 `json:"number"`
	Status   domain.WorkOrderStatus `json:"status"`
	Priority domain.Priority        `json:"priority"`
}

// WorkOrderUpdatedPayload payload.
type WorkOrderUpdatedPayload struct {
	Version int64 `json:"version"`
}

// WorkOrderStatusChangedPayload payload.
type WorkOrderStatusChangedPayload struct {
	OldStatus domain.WorkOrderStatus `json:"old_status"`
	NewStatus domain.WorkOrderStatus `json:"new_status"`
	Note      string                 `json:"note,omitempty"`
}

// WorkOrderCustodyChangedPayload payload.
type WorkOrderCustodyChangedPayload struct {
	Kind      domain.HistoryKind     `json:"kind"`
	From      string                 `json:"from"`
	To        string                 `json:"to"`
	OldStatus domain.WorkOrderStatus `json:"old_status"`
	NewStatus domain.WorkOrderStatus `json:"new_status"`
}

// WorkOrderNoteAddedPayload payload.
type WorkOrderNoteAddedPayload struct {
	Sector      string `json:"sector"`
	BodyPreview string `json:"body_preview"`
}

// WorkOrderHistoryAddedPayload payload.
type WorkOrderHistoryAddedPayload struct {
	Kind domain.HistoryKind `json:"kind"`
}

// SyncConnectionFailedPayload payload.
type SyncConnectionFailedPayload struct {
	Table    string `json:"table"`
	Attempts int    `json:"attempts"`
}
