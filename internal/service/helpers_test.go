package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/fleet-workorders/internal/audit"
	"github.com/spec-kit/fleet-workorders/internal/domain"
	"github.com/spec-kit/fleet-workorders/internal/events"
	"github.com/spec-kit/fleet-workorders/internal/numbering"
	"github.com/spec-kit/fleet-workorders/internal/repository"
	"github.com/spec-kit/fleet-workorders/pkg/ctxutil"
)

var testNow = time.Date(2026, time.March, 4, 10, 0, 0, 0, time.UTC)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) Types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, ev := range d.events {
		out = append(out, ev.Type)
	}
	return out
}

func (d *recordingDispatcher) Reset() {
	d.mu.Lock()
	d.events = nil
	d.mu.Unlock()
}

type serviceHarness struct {
	svc        *WorkOrderService
	store      *repository.MemoryStore
	clock      *clockwork.FakeClock
	dispatcher *recordingDispatcher
}

func newHarness(t *testing.T) *serviceHarness {
	t.Helper()
	store := repository.NewMemoryStore()
	h := newHarnessWithStore(t, store)
	h.store = store
	return h
}

func newHarnessWithStore(t *testing.T, store repository.WorkOrderStore) *serviceHarness {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testNow)
	dispatcher := &recordingDispatcher{}
	svc := NewWorkOrderService(WorkOrderDependencies{
		Store:      store,
		Numbers:    numbering.NewGenerator("OS", clock),
		Recorder:   audit.NewRecorder(clock),
		Dispatcher: dispatcher,
	})
	return &serviceHarness{svc: svc, clock: clock, dispatcher: dispatcher}
}

func operatorCtx() context.Context {
	return ctxutil.WithOperator(context.Background(), ctxutil.Operator{Username: "ana", Sector: "workshop"})
}

func validDraft() WorkOrderDraft {
	return WorkOrderDraft{
		Vehicle:         domain.SubjectRef{ID: "veh-1", Display: "ABC-1234 Volvo FH"},
		Requester:       domain.SubjectRef{ID: "req-1", Display: "Maria Souza"},
		ReportedDefects: "brake noise on the front axle",
	}
}

func (h *serviceHarness) create(t *testing.T, draft WorkOrderDraft) *domain.WorkOrder {
	t.Helper()
	wo, err := h.svc.Create(operatorCtx(), draft)
	require.NoError(t, err)
	return wo
}

func historyKinds(wo *domain.WorkOrder) []domain.HistoryKind {
	kinds := make([]domain.HistoryKind, 0, len(wo.History))
	for _, ev := range wo.History {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func statusPtr(s domain.WorkOrderStatus) *domain.WorkOrderStatus { return &s }

func stringPtr(s string) *string { return &s }
