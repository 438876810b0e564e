package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/fleet-workorders/internal/domain"
)

// ErrMalformedRow is returned by DecodeRow for payloads that cannot describe a
// work order.
var ErrMalformedRow = errors.New("malformed work order row")

// historyRow is the JSONB element stored in work_orders.history.
type historyRow struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Kind          string    `json:"kind"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	StatusAtEvent string    `json:"status_at_event"`
	Note          string    `json:"note"`
	Actor         string    `json:"actor,omitempty"`
}

// workOrderRow mirrors the work_orders columns as emitted by row_to_json.
type workOrderRow struct {
	ID               string       `json:"id"`
	Number           string       `json:"number"`
	Status           string       `json:"status"`
	VehicleID        string       `json:"vehicle_id"`
	VehicleDisplay   string       `json:"vehicle_display"`
	RequesterID      string       `json:"requester_id"`
	RequesterDisplay string       `json:"requester_display"`
	MechanicID       string       `json:"mechanic_id"`
	MechanicDisplay  string       `json:"mechanic_display"`
	Priority         string       `json:"priority"`
	ReportedDefects  string       `json:"reported_defects"`
	PartsServices    string       `json:"parts_services"`
	Notes            string       `json:"notes"`
	ExecutionOrder   *int         `json:"execution_order"`
	History          []historyRow `json:"history"`
	Version          int64        `json:"version"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func toHistoryRows(events []domain.HistoryEvent) []historyRow {
	rows := make([]historyRow, 0, len(events))
	for _, ev := range events {
		rows = append(rows, historyRow{
			ID:            ev.ID,
			Timestamp:     ev.Timestamp.UTC(),
			Kind:          string(ev.Kind),
			From:          ev.From,
			To:            ev.To,
			StatusAtEvent: string(ev.StatusAtEvent),
			Note:          ev.Note,
			Actor:         ev.Actor,
		})
	}
	return rows
}

func fromHistoryRows(rows []historyRow) []domain.HistoryEvent {
	events := make([]domain.HistoryEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, domain.HistoryEvent{
			ID:            r.ID,
			Timestamp:     r.Timestamp.UTC(),
			Kind:          domain.HistoryKind(r.Kind),
			From:          r.From,
			To:            r.To,
			StatusAtEvent: domain.WorkOrderStatus(r.StatusAtEvent),
			Note:          r.Note,
			Actor:         r.Actor,
		})
	}
	return events
}

func encodeHistory(events []domain.HistoryEvent) ([]byte, error) {
	return json.Marshal(toHistoryRows(events))
}

func decodeHistory(raw []byte) ([]domain.HistoryEvent, error) {
	if len(raw) == 0 {
		return []domain.HistoryEvent{}, nil
	}
	var rows []historyRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return fromHistoryRows(rows), nil
}

func toRow(wo *domain.WorkOrder) workOrderRow {
	return workOrderRow{
		ID:               wo.ID,
		Number:           wo.Number,
		Status:           string(wo.Status),
		VehicleID:        wo.Vehicle.ID,
		VehicleDisplay:   wo.Vehicle.Display,
		RequesterID:      wo.Requester.ID,
		RequesterDisplay: wo.Requester.Display,
		MechanicID:       wo.Mechanic.ID,
		MechanicDisplay:  wo.Mechanic.Display,
		Priority:         string(wo.Priority),
		ReportedDefects:  wo.ReportedDefects,
		PartsServices:    wo.PartsServices,
		Notes:            wo.Notes,
		ExecutionOrder:   wo.ExecutionOrder,
		History:          toHistoryRows(wo.History),
		Version:          wo.Version,
		CreatedAt:        wo.CreatedAt.UTC(),
		UpdatedAt:        wo.UpdatedAt.UTC(),
	}
}

func (r workOrderRow) toDomain() *domain.WorkOrder {
	return &domain.WorkOrder{
		ID:              r.ID,
		Number:          r.Number,
		Status:          domain.WorkOrderStatus(r.Status),
		Vehicle:         domain.SubjectRef{ID: r.VehicleID, Display: r.VehicleDisplay},
		Requester:       domain.SubjectRef{ID: r.RequesterID, Display: r.RequesterDisplay},
		Mechanic:        domain.SubjectRef{ID: r.MechanicID, Display: r.MechanicDisplay},
		Priority:        domain.Priority(r.Priority),
		ReportedDefects: r.ReportedDefects,
		PartsServices:   r.PartsServices,
		Notes:           r.Notes,
		ExecutionOrder:  r.ExecutionOrder,
		History:         fromHistoryRows(r.History),
		Version:         r.Version,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

// EncodeRow renders wo in the row shape published on the change feed.
func EncodeRow(wo *domain.WorkOrder) ([]byte, error) {
	if wo == nil {
		return nil, fmt.Errorf("%w: nil work order", ErrMalformedRow)
	}
	return json.Marshal(toRow(wo))
}

// DecodeRow parses a change-feed row. A missing or null history decodes to an
// empty slice.
func DecodeRow(raw []byte) (*domain.WorkOrder, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedRow)
	}
	var row workOrderRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}
	if row.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrMalformedRow)
	}
	if row.Status == "" {
		return nil, fmt.Errorf("%w: missing status", ErrMalformedRow)
	}
	return row.toDomain(), nil
}

func cloneWorkOrder(wo *domain.WorkOrder) domain.WorkOrder {
	out := *wo
	out.History = append([]domain.HistoryEvent(nil), wo.History...)
	if out.History == nil {
		out.History = []domain.HistoryEvent{}
	}
	if wo.ExecutionOrder != nil {
		v := *wo.ExecutionOrder
		out.ExecutionOrder = &v
	}
	return out
}
