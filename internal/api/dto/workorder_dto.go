package dto

import (
	"time"

	"github.com/spec-kit/fleet-workorders/internal/domain"
)

// SubjectRef references a vehicle or person owned by another module.
type SubjectRef struct {
	ID      string `json:"id"`
	Display string `json:"display"`
}

// CreateWorkOrderRequest payload.
type CreateWorkOrderRequest struct {
	Status          domain.WorkOrderStatus `json:"status"`
	Vehicle         SubjectRef             `json:"vehicle"`
	Requester       SubjectRef             `json:"requester"`
	Mechanic        SubjectRef             `json:"mechanic"`
	Priority        domain.Priority        `json:"priority"`
	ReportedDefects string                 `json:"reported_defects"`
	PartsServices   string                 `json:"parts_services"`
	Notes           string                 `json:"notes"`
	ExecutionOrder  *int                   `json:"execution_order"`
}

// UpdateWorkOrderRequest is a partial update; omitted fields stay unchanged.
type UpdateWorkOrderRequest struct {
	Status              *domain.WorkOrderStatus `json:"status"`
	Vehicle             *SubjectRef             `json:"vehicle"`
	Requester           *SubjectRef             `json:"requester"`
	Mechanic            *SubjectRef             `json:"mechanic"`
	Priority            *domain.Priority        `json:"priority"`
	ReportedDefects     *string                 `json:"reported_defects"`
	PartsServices       *string                 `json:"parts_services"`
	Notes               *string                 `json:"notes"`
	ExecutionOrder      *int                    `json:"execution_order"`
	ClearExecutionOrder bool                    `json:"clear_execution_order"`
	StatusNote          string                  `json:"status_note"`
	ExpectedVersion     *int64                  `json:"expected_version"`
}

// TransitionRequest payload for the custody handoff endpoints.
type TransitionRequest struct {
	Notes       string                 `json:"notes"`
	Origin      string                 `json:"origin"`
	Destination domain.WorkOrderStatus `json:"destination"`
}

// NoteRequest payload for POST /work-orders/:id/notes.
type NoteRequest struct {
	Text   string `json:"text"`
	Sector string `json:"sector"`
}

// HistoryEventRequest payload for POST /work-orders/:id/history.
type HistoryEventRequest struct {
	Kind          domain.HistoryKind     `json:"kind"`
	From          string                 `json:"from"`
	To            string                 `json:"to"`
	StatusAtEvent domain.WorkOrderStatus `json:"status_at_event"`
	Note          string                 `json:"note"`
}

// HistoryEventResponse is one audit trail entry.
type HistoryEventResponse struct {
	ID            string                 `json:"id"`
	Timestamp     time.Time              `json:"timestamp"`
	Kind          domain.HistoryKind     `json:"kind"`
	From          string                 `json:"from"`
	To            string                 `json:"to"`
	StatusAtEvent domain.WorkOrderStatus `json:"status_at_event"`
	Note          string                 `json:"note"`
	Actor         string                 `json:"actor,omitempty"`
}

// WorkOrderResponse is the full work order representation.
type WorkOrderResponse struct {
	ID              string                 `json:"id"`
	Number          string                 `json:"number"`
	Status          domain.WorkOrderStatus `json:"status"`
	Vehicle         SubjectRef             `json:"vehicle"`
	Requester       SubjectRef             `json:"requester"`
	Mechanic        SubjectRef             `json:"mechanic"`
	Priority        domain.Priority        `json:"priority"`
	ReportedDefects string                 `json:"reported_defects"`
	PartsServices   string                 `json:"parts_services"`
	Notes           string                 `json:"notes"`
	ExecutionOrder  *int                   `json:"execution_order"`
	History         []HistoryEventResponse `json:"history"`
	Version         int64                  `json:"version"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// WorkOrderSummary is the list representation.
type WorkOrderSummary struct {
	ID             string                 `json:"id"`
	Number         string                 `json:"number"`
	Status         domain.WorkOrderStatus `json:"status"`
	Vehicle        SubjectRef             `json:"vehicle"`
	Mechanic       SubjectRef             `json:"mechanic"`
	Priority       domain.Priority        `json:"priority"`
	ExecutionOrder *int                   `json:"execution_order"`
	HistoryLength  int                    `json:"history_length"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// ToDomainRef converts the payload reference.
func (r SubjectRef) ToDomainRef() domain.SubjectRef {
	return domain.SubjectRef{ID: r.ID, Display: r.Display}
}

// NewSubjectRef converts a domain reference.
func NewSubjectRef(r domain.SubjectRef) SubjectRef {
	return SubjectRef{ID: r.ID, Display: r.Display}
}

// NewWorkOrderResponse maps a work order for the wire.
func NewWorkOrderResponse(wo *domain.WorkOrder) WorkOrderResponse {
	history := make([]HistoryEventResponse, 0, len(wo.History))
	for _, ev := range wo.History {
		history = append(history, HistoryEventResponse{
			ID:            ev.ID,
			Timestamp:     ev.Timestamp,
			Kind:          ev.Kind,
			From:          ev.From,
			To:            ev.To,
			StatusAtEvent: ev.StatusAtEvent,
			Note:          ev.Note,
			Actor:         ev.Actor,
		})
	}
	return WorkOrderResponse{
		ID:              wo.ID,
		Number:          wo.Number,
		Status:          wo.Status,
		Vehicle:         NewSubjectRef(wo.Vehicle),
		Requester:       NewSubjectRef(wo.Requester),
		Mechanic:        NewSubjectRef(wo.Mechanic),
		Priority:        wo.Priority,
		ReportedDefects: wo.ReportedDefects,
		PartsServices:   wo.PartsServices,
		Notes:           wo.Notes,
		ExecutionOrder:  wo.ExecutionOrder,
		History:         history,
		Version:         wo.Version,
		CreatedAt:       wo.CreatedAt,
		UpdatedAt:       wo.UpdatedAt,
	}
}

// NewWorkOrderSummary maps a work order for list responses.
func NewWorkOrderSummary(wo *domain.WorkOrder) WorkOrderSummary {
	return WorkOrderSummary{
		ID:             wo.ID,
		Number:         wo.Number,
		Status:         wo.Status,
		Vehicle:        NewSubjectRef(wo.Vehicle),
		Mechanic:       NewSubjectRef(wo.Mechanic),
		Priority:       wo.Priority,
		ExecutionOrder: wo.ExecutionOrder,
		HistoryLength:  len(wo.History),
		UpdatedAt:      wo.UpdatedAt,
	}
}
