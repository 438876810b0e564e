package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/fleet-workorders/internal/domain"
	"github.com/spec-kit/fleet-workorders/internal/realtime"
)

func sampleWorkOrder(id, number string, status domain.WorkOrderStatus, at time.Time) *domain.WorkOrder {
	return &domain.WorkOrder{
		ID:        id,
		Number:    number,
		Status:    status,
		Vehicle:   domain.SubjectRef{ID: "veh-" + id, Display: "Truck " + id},
		Requester: domain.SubjectRef{ID: "req-1", Display: "Ana Souza"},
		Priority:  domain.PriorityMedium,
		History: []domain.HistoryEvent{{
			ID: "ev-" + id, Timestamp: at, Kind: domain.HistoryCreation, To: string(status), StatusAtEvent: status,
		}},
		Version:   1,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestMemoryStore_InsertRejectsDuplicateNumber(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.Insert(ctx, sampleWorkOrder("a", "OS-260001", domain.StatusQueued, now)))
	err := store.Insert(ctx, sampleWorkOrder("b", "OS-260001", domain.StatusQueued, now))
	assert.ErrorIs(t, err, ErrDuplicateNumber)
}

func TestMemoryStore_NextSequenceIsUniqueUnderConcurrency(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int64]bool{}
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := store.NextSequence(context.Background())
			require.NoError(t, err)
			mu.Lock()
			seen[seq] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)
}

func TestMemoryStore_UpdateComparesVersion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.Insert(ctx, sampleWorkOrder("a", "OS-260001", domain.StatusQueued, now)))

	wo, err := store.GetByID(ctx, "a")
	require.NoError(t, err)
	wo.Status = domain.StatusInService
	require.NoError(t, store.Update(ctx, wo, 1))
	assert.Equal(t, int64(2), wo.Version)

	stale := *wo
	stale.Status = domain.StatusFinished
	err = store.Update(ctx, &stale, 1)
	assert.ErrorIs(t, err, ErrVersionConflict)

	missing := sampleWorkOrder("zzz", "OS-269999", domain.StatusQueued, now)
	assert.ErrorIs(t, store.Update(ctx, missing, 1), ErrNotFound)

	got, err := store.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInService, got.Status)
}

func TestMemoryStore_GetReturnsIsolatedCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.Insert(ctx, sampleWorkOrder("a", "OS-260001", domain.StatusQueued, now)))

	first, err := store.GetByID(ctx, "a")
	require.NoError(t, err)
	first.History[0].Note = "tampered"

	second, err := store.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, second.History[0].Note)
}

func TestMemoryStore_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.Insert(ctx, sampleWorkOrder("a", "OS-260001", domain.StatusQueued, now)))

	removed, err := store.Delete(ctx, "a")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = store.Delete(ctx, "a")
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = store.GetByID(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ListFiltersAndOrders(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	for i, status := range []domain.WorkOrderStatus{domain.StatusQueued, domain.StatusInService, domain.StatusQueued} {
		wo := sampleWorkOrder(fmt.Sprintf("w%d", i), fmt.Sprintf("OS-26000%d", i+1), status, base.Add(time.Duration(i)*time.Minute))
		order := 3 - i
		wo.ExecutionOrder = &order
		require.NoError(t, store.Insert(ctx, wo))
	}

	queued, err := store.List(ctx, WorkOrderFilter{Statuses: []domain.WorkOrderStatus{domain.StatusQueued}})
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.Equal(t, "w2", queued[0].ID, "most recently updated first")

	byExecution, err := store.List(ctx, WorkOrderFilter{OrderBy: OrderExecutionAsc})
	require.NoError(t, err)
	require.Len(t, byExecution, 3)
	assert.Equal(t, []string{"w2", "w1", "w0"}, []string{byExecution[0].ID, byExecution[1].ID, byExecution[2].ID})

	paged, err := store.List(ctx, WorkOrderFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "w1", paged[0].ID)
}

func TestMemoryStore_SearchIsCaseInsensitive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	wo := sampleWorkOrder("a", "OS-260001", domain.StatusAwaitingParts, now)
	wo.Mechanic = domain.SubjectRef{ID: "m1", Display: "Carlos Lima"}
	require.NoError(t, store.Insert(ctx, wo))
	require.NoError(t, store.Insert(ctx, sampleWorkOrder("b", "OS-260002", domain.StatusQueued, now)))

	cases := map[string]int{
		"os-26":        2,
		"carlos":       1,
		"awaiting_par": 1,
		"truck b":      1,
		"nothing-here": 0,
	}
	for term, want := range cases {
		term := term
		got, err := store.List(ctx, WorkOrderFilter{SearchTerm: &term})
		require.NoError(t, err)
		assert.Len(t, got, want, term)
	}
}

func TestMemoryStore_FeedDeliversInsertsAndUpdates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	ch := store.Open(WorkOrdersTable, "work_orders-test-1")
	defer ch.Close()
	assert.Equal(t, realtime.StatusSubscribed, <-ch.Statuses())

	require.NoError(t, store.Insert(ctx, sampleWorkOrder("a", "OS-260001", domain.StatusQueued, now)))
	wo, err := store.GetByID(ctx, "a")
	require.NoError(t, err)
	wo.Status = domain.StatusInService
	require.NoError(t, store.Update(ctx, wo, wo.Version))

	insert := <-ch.Changes()
	assert.Equal(t, realtime.ChangeInsert, insert.Type)
	decoded, err := DecodeRow(insert.Record)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusQueued, decoded.Status)

	update := <-ch.Changes()
	assert.Equal(t, realtime.ChangeUpdate, update.Type)
	decoded, err = DecodeRow(update.Record)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInService, decoded.Status)
	assert.Equal(t, int64(2), decoded.Version)
}

func TestMemoryStore_FeedUnknownTableAndDisconnect(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()

	bad := store.Open("vehicles", "vehicles-1")
	assert.Equal(t, realtime.StatusChannelError, <-bad.Statuses())

	ch := store.Open(WorkOrdersTable, "work_orders-1")
	assert.Equal(t, realtime.StatusSubscribed, <-ch.Statuses())
	store.DisconnectAll()
	assert.Equal(t, realtime.StatusClosed, <-ch.Statuses())
	ch.Close()
	ch.Close()
}

func TestMemoryStore_PingError(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	require.NoError(t, store.Ping(context.Background()))

	boom := errors.New("down")
	store.SetPingError(boom)
	assert.ErrorIs(t, store.Ping(context.Background()), boom)
}
