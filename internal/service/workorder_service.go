package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/fleet-workorders/internal/audit"
	"github.com/spec-kit/fleet-workorders/internal/domain"
	"github.com/spec-kit/fleet-workorders/internal/events"
	"github.com/spec-kit/fleet-workorders/internal/numbering"
	"github.com/spec-kit/fleet-workorders/internal/repository"
	"github.com/spec-kit/fleet-workorders/pkg/ctxutil"
	"github.com/spec-kit/fleet-workorders/pkg/util/errorutil"
)

const (
	defaultUpdateRetries = 3
	defaultNumberRetries = 3
)

// WorkOrderService coordinates work order workflows.
type WorkOrderService struct {
	store         repository.WorkOrderStore
	numbers       *numbering.Generator
	recorder      *audit.Recorder
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	updateRetries int
	numberRetries int
}

// WorkOrderDependencies bundles collaborators for the work order service.
type WorkOrderDependencies struct {
	Store         repository.WorkOrderStore
	Numbers       *numbering.Generator
	Recorder      *audit.Recorder
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	UpdateRetries int
	NumberRetries int
}

// WorkOrderDraft describes a work order to create.
type WorkOrderDraft struct {
	Status          domain.WorkOrderStatus
	Vehicle         domain.SubjectRef
	Requester       domain.SubjectRef
	Mechanic        domain.SubjectRef
	Priority        domain.Priority
	ReportedDefects string
	PartsServices   string
	Notes           string
	ExecutionOrder  *int
}

// WorkOrderPatch is a partial update. Nil fields are left unchanged.
type WorkOrderPatch struct {
	Status              *domain.WorkOrderStatus
	Vehicle             *domain.SubjectRef
	Requester           *domain.SubjectRef
	Mechanic            *domain.SubjectRef
	Priority            *domain.Priority
	ReportedDefects     *string
	PartsServices       *string
	Notes               *string
	ExecutionOrder      *int
	ClearExecutionOrder bool
	// ExpectedVersion turns a concurrent modification into a Conflict
	// instead of a transparent retry.
	ExpectedVersion *int64
}

// WorkOrderListFilter describes listing parameters.
type WorkOrderListFilter struct {
	Statuses   []domain.WorkOrderStatus
	Priorities []domain.Priority
	SearchTerm *string
	OrderBy    repository.WorkOrderOrder
	Limit      int
	Offset     int
}

// NewWorkOrderService constructs the service.
func NewWorkOrderService(deps WorkOrderDependencies) *WorkOrderService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	numbers := deps.Numbers
	if numbers == nil {
		numbers = numbering.NewGenerator(numbering.DefaultPrefix, nil)
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = audit.NewRecorder(nil)
	}
	updateRetries := deps.UpdateRetries
	if updateRetries <= 0 {
		updateRetries = defaultUpdateRetries
	}
	numberRetries := deps.NumberRetries
	if numberRetries <= 0 {
		numberRetries = defaultNumberRetries
	}
	return &WorkOrderService{
		store:         deps.Store,
		numbers:       numbers,
		recorder:      recorder,
		dispatcher:    deps.Dispatcher,
		logger:        logger.Named("work_orders"),
		updateRetries: updateRetries,
		numberRetries: numberRetries,
	}
}

// Create validates the draft and persists a new work order with its creation
// event.
func (s *WorkOrderService) Create(ctx context.Context, draft WorkOrderDraft) (*domain.WorkOrder, error) {
	draft, err := normalizeDraft(draft)
	if err != nil {
		return nil, err
	}
	actor := actorName(ctx)

	for attempt := 1; attempt <= s.numberRetries; attempt++ {
		seq, err := s.store.NextSequence(ctx)
		if err != nil {
			return nil, errorutil.NewStorageError(err)
		}

		wo := domain.WorkOrder{
			ID:              uuid.NewString(),
			Number:          s.numbers.Format(seq),
			Status:          draft.Status,
			Vehicle:         draft.Vehicle,
			Requester:       draft.Requester,
			Mechanic:        draft.Mechanic,
			Priority:        draft.Priority,
			ReportedDefects: draft.ReportedDefects,
			PartsServices:   draft.PartsServices,
			Notes:           draft.Notes,
			ExecutionOrder:  draft.ExecutionOrder,
			Version:         1,
		}
		wo = s.recorder.Append(wo, audit.Creation(wo.Status, actor))
		wo.CreatedAt = wo.UpdatedAt

		err = s.store.Insert(ctx, &wo)
		if errors.Is(err, repository.ErrDuplicateNumber) {
			s.logger.Warn("work order number taken; allocating another",
				zap.String("number", wo.Number), zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, errorutil.NewStorageError(err)
		}

		s.publishEvent(ctx, events.Event{
			Type:        events.EventWorkOrderCreated,
			WorkOrderID: wo.ID,
			Actor:       actor,
			Payload: events.WorkOrderCreatedPayload{
				Number:   wo.Number,
				Status:   wo.Status,
				Priority: wo.Priority,
			},
		})
		return &wo, nil
	}
	return nil, errorutil.NewConflict("could not allocate a unique work order number", map[string]any{
		"attempts": s.numberRetries,
	})
}

// GetByID loads a single work order.
func (s *WorkOrderService) GetByID(ctx context.Context, id string) (*domain.WorkOrder, error) {
	return s.load(ctx, id)
}

// Update applies patch. A status change appends a STATUS_CHANGE event whose
// note is noteOverride, or a generated sentence when it is blank.
func (s *WorkOrderService) Update(ctx context.Context, id string, patch WorkOrderPatch, noteOverride string) (*domain.WorkOrder, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}
	actor := actorName(ctx)

	return s.mutate(ctx, id, patch.ExpectedVersion, func(current domain.WorkOrder) (domain.WorkOrder, []events.Event, error) {
		next := current
		applyPatch(&next, patch)

		var evts []events.Event
		if patch.Status != nil && *patch.Status != current.Status {
			ev := audit.StatusChange(current.Status, *patch.Status, noteOverride, actor)
			next = s.recorder.Append(next, ev)
			evts = append(evts, events.Event{
				Type:        events.EventWorkOrderStatusChanged,
				WorkOrderID: current.ID,
				Actor:       actor,
				Payload: events.WorkOrderStatusChangedPayload{
					OldStatus: current.Status,
					NewStatus: *patch.Status,
					Note:      ev.Note,
				},
			})
		} else {
			next.UpdatedAt = s.recorder.Touch(current.UpdatedAt)
		}
		evts = append(evts, events.Event{
			Type:        events.EventWorkOrderUpdated,
			WorkOrderID: current.ID,
			Actor:       actor,
		})
		return next, evts, nil
	})
}

// AppendHistoryEvent adds ev to the trail without touching the status. Only
// NOTE and CUSTODY_CHANGE events are accepted: creation belongs to Create and
// status transitions to Update and the handoff operations. The event's ID and
// Timestamp are assigned here and StatusAtEvent is the current status.
func (s *WorkOrderService) AppendHistoryEvent(ctx context.Context, id string, ev domain.HistoryEvent) (*domain.WorkOrder, error) {
	ev.ID = ""
	ev.Timestamp = time.Time{}
	switch {
	case strings.TrimSpace(string(ev.Kind)) == "":
		return nil, errorutil.NewValidationError("history event kind is required", nil)
	case !ev.Kind.Valid():
		return nil, errorutil.NewValidationError("unknown history event kind", map[string]any{"kind": ev.Kind})
	case ev.Kind == domain.HistoryCreation:
		return nil, errorutil.NewValidationError("a work order has exactly one creation event", map[string]any{"kind": ev.Kind})
	case ev.Kind.ChangesStatus():
		return nil, errorutil.NewValidationError("status transitions are recorded by update and handoff operations", map[string]any{"kind": ev.Kind})
	}
	if ev.StatusAtEvent != "" && !ev.StatusAtEvent.Valid() {
		return nil, errorutil.NewValidationError("unknown status", map[string]any{"status_at_event": ev.StatusAtEvent})
	}
	if ev.Actor == "" {
		ev.Actor = actorName(ctx)
	}

	return s.mutate(ctx, id, nil, func(current domain.WorkOrder) (domain.WorkOrder, []events.Event, error) {
		stamped := ev
		if stamped.StatusAtEvent != "" && stamped.StatusAtEvent != current.Status {
			return domain.WorkOrder{}, nil, errorutil.NewValidationError("status_at_event does not match the current status",
				map[string]any{"status_at_event": stamped.StatusAtEvent, "status": current.Status})
		}
		stamped.StatusAtEvent = current.Status
		next := s.recorder.Append(current, stamped)
		return next, []events.Event{{
			Type:        events.EventWorkOrderHistoryAdded,
			WorkOrderID: current.ID,
			Actor:       stamped.Actor,
			Payload:     events.WorkOrderHistoryAddedPayload{Kind: stamped.Kind},
		}}, nil
	})
}

// Delete removes a work order. It reports false when nothing was removed.
func (s *WorkOrderService) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		return false, errorutil.NewStorageError(err)
	}
	if removed {
		s.publishEvent(ctx, events.Event{
			Type:        events.EventWorkOrderDeleted,
			WorkOrderID: id,
			Actor:       actorName(ctx),
		})
	}
	return removed, nil
}

// ListByStatus returns every work order in any of the given statuses, most
// recently updated first.
func (s *WorkOrderService) ListByStatus(ctx context.Context, statuses ...domain.WorkOrderStatus) ([]domain.WorkOrder, error) {
	if len(statuses) == 0 {
		return nil, errorutil.NewValidationError("at least one status is required", nil)
	}
	for _, st := range statuses {
		if !st.Valid() {
			return nil, errorutil.NewValidationError("unknown status", map[string]any{"status": st})
		}
	}
	return s.List(ctx, WorkOrderListFilter{Statuses: statuses})
}

// Search matches query case-insensitively against the number, the display
// names and the status. A blank query returns everything.
func (s *WorkOrderService) Search(ctx context.Context, query string) ([]domain.WorkOrder, error) {
	query = strings.TrimSpace(query)
	filter := WorkOrderListFilter{}
	if query != "" {
		filter.SearchTerm = &query
	}
	return s.List(ctx, filter)
}

// List returns work orders matching filter.
func (s *WorkOrderService) List(ctx context.Context, filter WorkOrderListFilter) ([]domain.WorkOrder, error) {
	for _, pr := range filter.Priorities {
		if !pr.Valid() {
			return nil, errorutil.NewValidationError("unknown priority", map[string]any{"priority": pr})
		}
	}
	list, err := s.store.List(ctx, repository.WorkOrderFilter{
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		SearchTerm: filter.SearchTerm,
		OrderBy:    filter.OrderBy,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
	if err != nil {
		return nil, errorutil.NewStorageError(err)
	}
	return list, nil
}

type mutation func(current domain.WorkOrder) (domain.WorkOrder, []events.Event, error)

// mutate runs a read-modify-write under optimistic concurrency. On a version
// conflict the mutation is re-applied to the fresh row, unless the caller
// pinned expectedVersion.
func (s *WorkOrderService) mutate(ctx context.Context, id string, expectedVersion *int64, fn mutation) (*domain.WorkOrder, error) {
	for attempt := 1; ; attempt++ {
		current, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if expectedVersion != nil && current.Version != *expectedVersion {
			return nil, versionConflict(id, *expectedVersion, current.Version)
		}

		next, evts, err := fn(*current)
		if err != nil {
			return nil, err
		}
		if !audit.IsPrefix(current.History, next.History) {
			return nil, errorutil.NewInternalError(errors.New("history rewrite rejected"))
		}

		err = s.store.Update(ctx, &next, current.Version)
		switch {
		case err == nil:
			for _, ev := range evts {
				s.publishEvent(ctx, ev)
			}
			return &next, nil
		case errors.Is(err, repository.ErrVersionConflict):
			if expectedVersion != nil || attempt >= s.updateRetries {
				return nil, versionConflict(id, current.Version, -1)
			}
			s.logger.Debug("retrying after concurrent modification",
				zap.String("work_order_id", id), zap.Int("attempt", attempt))
		case errors.Is(err, repository.ErrNotFound):
			return nil, errorutil.NewNotFound("work order", map[string]any{"id": id})
		default:
			return nil, errorutil.NewStorageError(err)
		}
	}
}

func (s *WorkOrderService) load(ctx context.Context, id string) (*domain.WorkOrder, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errorutil.NewValidationError("work order id is required", nil)
	}
	wo, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errorutil.NewNotFound("work order", map[string]any{"id": id})
	}
	if err != nil {
		return nil, errorutil.NewStorageError(err)
	}
	return wo, nil
}

func (s *WorkOrderService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func versionConflict(id string, expected, actual int64) error {
	details := map[string]any{"id": id, "expected_version": expected}
	if actual >= 0 {
		details["current_version"] = actual
	}
	return errorutil.NewConflict("work order was modified concurrently", details)
}

func normalizeDraft(d WorkOrderDraft) (WorkOrderDraft, error) {
	d.Vehicle = trimRef(d.Vehicle)
	d.Requester = trimRef(d.Requester)
	d.Mechanic = trimRef(d.Mechanic)
	d.ReportedDefects = strings.TrimSpace(d.ReportedDefects)
	d.PartsServices = strings.TrimSpace(d.PartsServices)

	details := map[string]any{}
	if d.Vehicle.ID == "" {
		details["vehicle_id"] = "required"
	}
	if d.Requester.ID == "" {
		details["requester_id"] = "required"
	}
	if d.Status == "" {
		d.Status = domain.StatusAwaitingMechanic
	} else if !d.Status.Valid() {
		details["status"] = "unknown status " + string(d.Status)
	}
	if d.Priority == "" {
		d.Priority = domain.PriorityMedium
	} else if !d.Priority.Valid() {
		details["priority"] = "unknown priority " + string(d.Priority)
	}
	if d.ExecutionOrder != nil && *d.ExecutionOrder < 0 {
		details["execution_order"] = "must not be negative"
	}
	if len(details) > 0 {
		return d, errorutil.NewValidationError("invalid work order", details)
	}
	return d, nil
}

func validatePatch(p WorkOrderPatch) error {
	details := map[string]any{}
	if p.Status != nil && !p.Status.Valid() {
		details["status"] = "unknown status " + string(*p.Status)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		details["priority"] = "unknown priority " + string(*p.Priority)
	}
	if p.Vehicle != nil && strings.TrimSpace(p.Vehicle.ID) == "" {
		details["vehicle_id"] = "must not be empty"
	}
	if p.Requester != nil && strings.TrimSpace(p.Requester.ID) == "" {
		details["requester_id"] = "must not be empty"
	}
	if p.ExecutionOrder != nil && *p.ExecutionOrder < 0 {
		details["execution_order"] = "must not be negative"
	}
	if p.ExecutionOrder != nil && p.ClearExecutionOrder {
		details["execution_order"] = "cannot set and clear at once"
	}
	if len(details) > 0 {
		return errorutil.NewValidationError("invalid work order patch", details)
	}
	return nil
}

func applyPatch(wo *domain.WorkOrder, p WorkOrderPatch) {
	if p.Status != nil {
		wo.Status = *p.Status
	}
	if p.Vehicle != nil {
		wo.Vehicle = trimRef(*p.Vehicle)
	}
	if p.Requester != nil {
		wo.Requester = trimRef(*p.Requester)
	}
	if p.Mechanic != nil {
		wo.Mechanic = trimRef(*p.Mechanic)
	}
	if p.Priority != nil {
		wo.Priority = *p.Priority
	}
	if p.ReportedDefects != nil {
		wo.ReportedDefects = strings.TrimSpace(*p.ReportedDefects)
	}
	if p.PartsServices != nil {
		wo.PartsServices = strings.TrimSpace(*p.PartsServices)
	}
	if p.Notes != nil {
		wo.Notes = *p.Notes
	}
	if p.ExecutionOrder != nil {
		v := *p.ExecutionOrder
		wo.ExecutionOrder = &v
	}
	if p.ClearExecutionOrder {
		wo.ExecutionOrder = nil
	}
}

func trimRef(r domain.SubjectRef) domain.SubjectRef {
	return domain.SubjectRef{ID: strings.TrimSpace(r.ID), Display: strings.TrimSpace(r.Display)}
}

func actorName(ctx context.Context) string {
	if op, ok := ctxutil.OperatorFromCtx(ctx); ok {
		return op.Username
	}
	return ""
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
