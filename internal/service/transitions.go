package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/fleet-workorders/internal/audit"
	"github.com/spec-kit/fleet-workorders/internal/domain"
	"github.com/spec-kit/fleet-workorders/internal/events"
	"github.com/spec-kit/fleet-workorders/pkg/ctxutil"
	"github.com/spec-kit/fleet-workorders/pkg/util/errorutil"
)

const (
	defaultNoteSector  = "GENERAL"
	noteLineTimeLayout = "2006-01-02 15:04"
)

// SendToWarehouse hands the vehicle from the workshop to the warehouse for
// parts analysis.
func (s *WorkOrderService) SendToWarehouse(ctx context.Context, id, notes string) (*domain.WorkOrder, error) {
	return s.handoff(ctx, id, domain.HistorySendToWarehouse,
		domain.CustodyWorkshop, domain.CustodyWarehouse, domain.StatusAwaitingAnalysis, notes)
}

// SendToPurchasing forwards a parts request for approval.
func (s *WorkOrderService) SendToPurchasing(ctx context.Context, id, notes string) (*domain.WorkOrder, error) {
	return s.handoff(ctx, id, domain.HistorySendToPurchasing,
		domain.CustodyWarehouse, domain.CustodyPurchasing, domain.StatusAwaitingApproval, notes)
}

// ReturnToShop hands the work order back to the workshop. origin defaults to
// the warehouse and destination to QUEUED.
func (s *WorkOrderService) ReturnToShop(ctx context.Context, id, notes, origin string, destination domain.WorkOrderStatus) (*domain.WorkOrder, error) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		origin = domain.CustodyWarehouse
	}
	if destination == "" {
		destination = domain.StatusQueued
	}
	return s.handoff(ctx, id, domain.HistoryReturnToShop, origin, domain.CustodyWorkshop, destination, notes)
}

// ReturnToWarehouse moves a work order from purchasing back to the warehouse.
func (s *WorkOrderService) ReturnToWarehouse(ctx context.Context, id, notes string, destination domain.WorkOrderStatus) (*domain.WorkOrder, error) {
	if destination == "" {
		return nil, errorutil.NewValidationError("destination status is required", nil)
	}
	return s.handoff(ctx, id, domain.HistoryReturnToWarehouse,
		domain.CustodyPurchasing, domain.CustodyWarehouse, destination, notes)
}

// AddNote appends a NOTE event and the matching "[timestamp] [SECTOR] text"
// line to Notes in one write. A blank sector falls back to the operator's.
func (s *WorkOrderService) AddNote(ctx context.Context, id, text, sector string) (*domain.WorkOrder, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errorutil.NewValidationError("note text is required", nil)
	}
	sector = resolveSector(ctx, sector)
	actor := actorName(ctx)

	return s.mutate(ctx, id, nil, func(current domain.WorkOrder) (domain.WorkOrder, []events.Event, error) {
		next := s.recorder.Append(current, audit.Note(sector, current.Status, text, actor))
		ev, _ := next.LastEvent()
		next.Notes = appendNoteLine(current.Notes, formatNoteLine(ev.Timestamp.Format(noteLineTimeLayout), sector, text))
		return next, []events.Event{{
			Type:        events.EventWorkOrderNoteAdded,
			WorkOrderID: current.ID,
			Actor:       actor,
			Payload: events.WorkOrderNoteAddedPayload{
				Sector:      sector,
				BodyPreview: stringPreview(text, 120),
			},
		}}, nil
	})
}

// handoff changes the status and records exactly one custody event in a
// single write.
func (s *WorkOrderService) handoff(ctx context.Context, id string, kind domain.HistoryKind, from, to string, status domain.WorkOrderStatus, notes string) (*domain.WorkOrder, error) {
	if !status.Valid() {
		return nil, errorutil.NewValidationError("unknown status", map[string]any{"status": status})
	}
	actor := actorName(ctx)

	return s.mutate(ctx, id, nil, func(current domain.WorkOrder) (domain.WorkOrder, []events.Event, error) {
		next := current
		next.Status = status
		next = s.recorder.Append(next, audit.Custody(kind, from, to, status, notes, actor))
		return next, []events.Event{{
			Type:        events.EventWorkOrderCustodyChanged,
			WorkOrderID: current.ID,
			Actor:       actor,
			Payload: events.WorkOrderCustodyChangedPayload{
				Kind:      kind,
				From:      from,
				To:        to,
				OldStatus: current.Status,
				NewStatus: status,
			},
		}}, nil
	})
}

func resolveSector(ctx context.Context, sector string) string {
	sector = strings.ToUpper(strings.TrimSpace(sector))
	if sector != "" {
		return sector
	}
	if op, ok := ctxutil.OperatorFromCtx(ctx); ok && op.Sector != "" {
		return strings.ToUpper(op.Sector)
	}
	return defaultNoteSector
}

func formatNoteLine(stamp, sector, text string) string {
	return fmt.Sprintf("[%s] [%s] %s", stamp, sector, text)
}

func appendNoteLine(notes, line string) string {
	notes = strings.TrimRight(notes, "\n")
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}
