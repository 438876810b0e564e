package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/fleet-workorders/internal/domain"
)

const waitFor = 2 * time.Second

type fakeChannel struct {
	name     string
	changes  chan Change
	statuses chan ChannelStatus
	closed   chan struct{}
	once     sync.Once
}

func (f *fakeChannel) Name() string                   { return f.name }
func (f *fakeChannel) Changes() <-chan Change          { return f.changes }
func (f *fakeChannel) Statuses() <-chan ChannelStatus { return f.statuses }
func (f *fakeChannel) Close()                         { f.once.Do(func() { close(f.closed) }) }

func (f *fakeChannel) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// fakeFeed hands out channels the test drives by hand. Every Open is reported
// on opened, including the nil channels returned while nilOpens > 0.
type fakeFeed struct {
	opened   chan *fakeChannel
	nilOpens atomic.Int32
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{opened: make(chan *fakeChannel, 64)}
}

func (f *fakeFeed) Open(table, name string) Channel {
	if f.nilOpens.Load() > 0 {
		f.nilOpens.Add(-1)
		f.opened <- nil
		return nil
	}
	ch := &fakeChannel{
		name:     name,
		changes:  make(chan Change, 8),
		statuses: make(chan ChannelStatus, 8),
		closed:   make(chan struct{}),
	}
	f.opened <- ch
	return ch
}

type fakeOnline struct {
	ch       chan struct{}
	detached atomic.Bool
}

func (f *fakeOnline) Subscribe() (<-chan struct{}, func()) {
	return f.ch, func() { f.detached.Store(true) }
}

type testRow struct {
	ID      string                `json:"id"`
	Status  string                `json:"status"`
	History []domain.HistoryEvent `json:"history"`
}

func decodeTestRow(raw []byte) (*domain.WorkOrder, error) {
	var row testRow
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return &domain.WorkOrder{ID: row.ID, Status: domain.WorkOrderStatus(row.Status), History: row.History}, nil
}

type harness struct {
	client *Client
	feed   *fakeFeed
	clock  *clockwork.FakeClock
	online *fakeOnline
	states chan State
	delays chan time.Duration
	gaveUp chan int
	drops  chan error
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		feed:   newFakeFeed(),
		clock:  clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		online: &fakeOnline{ch: make(chan struct{}, 1)},
		states: make(chan State, 128),
		delays: make(chan time.Duration, 32),
		gaveUp: make(chan int, 4),
		drops:  make(chan error, 8),
	}
	opts := Options{
		Clock:                h.clock,
		Online:               h.online,
		OnStateChange:        func(_, to State) { h.states <- to },
		OnReconnectScheduled: func(_ int, d time.Duration) { h.delays <- d },
		OnGiveUp:             func(n int) { h.gaveUp <- n },
		OnEventDropped:       func(err error) { h.drops <- err },
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.client = NewClient(h.feed, decodeTestRow, opts)
	t.Cleanup(h.client.Stop)
	return h
}

func (h *harness) nextChannel(t *testing.T) *fakeChannel {
	t.Helper()
	select {
	case ch := <-h.feed.opened:
		return ch
	case <-time.After(waitFor):
		t.Fatal("expected the client to open a channel")
		return nil
	}
}

func (h *harness) nextDelay(t *testing.T) time.Duration {
	t.Helper()
	select {
	case d := <-h.delays:
		return d
	case <-time.After(waitFor):
		t.Fatal("expected a reconnect to be scheduled")
		return 0
	}
}

func (h *harness) waitState(t *testing.T, want State) {
	t.Helper()
	deadline := time.After(waitFor)
	for {
		select {
		case s := <-h.states:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("state %s never reached; current %s", want, h.client.State())
		}
	}
}

func (h *harness) assertNoOpen(t *testing.T) {
	t.Helper()
	select {
	case <-h.feed.opened:
		t.Fatal("unexpected channel open")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClient_SubscribeResetsAttempts(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	require.NoError(t, h.client.Start(nil, nil))

	ch := h.nextChannel(t)
	assert.Contains(t, ch.Name(), "work_orders-")
	assert.Equal(t, StateConnecting, h.client.State())

	ch.statuses <- StatusSubscribed
	h.waitState(t, StateConnected)
	assert.Equal(t, 0, h.client.Attempts())
}

func TestClient_ReconnectBackoffSchedule(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	require.NoError(t, h.client.Start(nil, nil))

	ch := h.nextChannel(t)
	for i, want := range []time.Duration{1500 * time.Millisecond, 2250 * time.Millisecond, 3375 * time.Millisecond} {
		ch.statuses <- StatusChannelError
		got := h.nextDelay(t)
		assert.Equal(t, want, got, "reconnect %d", i+1)
		assert.Equal(t, i+1, h.client.Attempts())
		assert.True(t, ch.isClosed(), "failed channel is torn down")

		h.clock.Advance(got)
		next := h.nextChannel(t)
		assert.NotEqual(t, ch.Name(), next.Name(), "channel names are unique")
		ch = next
	}

	ch.statuses <- StatusSubscribed
	h.waitState(t, StateConnected)
	assert.Equal(t, 0, h.client.Attempts())
	assert.Empty(t, h.delays)
}

func TestClient_TimedOutAndClosedAlsoReconnect(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	require.NoError(t, h.client.Start(nil, nil))

	ch := h.nextChannel(t)
	ch.statuses <- StatusSubscribed
	h.waitState(t, StateConnected)

	ch.statuses <- StatusClosed
	h.waitState(t, StateReconnecting)
	h.clock.Advance(h.nextDelay(t))

	ch = h.nextChannel(t)
	ch.statuses <- StatusTimedOut
	assert.Equal(t, 2250*time.Millisecond, h.nextDelay(t))
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(o *Options) { o.MaxAttempts = 2 })
	require.NoError(t, h.client.Start(nil, nil))

	ch := h.nextChannel(t)
	for i := 0; i < 2; i++ {
		ch.statuses <- StatusChannelError
		h.clock.Advance(h.nextDelay(t))
		ch = h.nextChannel(t)
	}
	ch.statuses <- StatusChannelError

	select {
	case n := <-h.gaveUp:
		assert.Equal(t, 2, n)
	case <-time.After(waitFor):
		t.Fatal("client never gave up")
	}
	h.waitState(t, StateGaveUp)

	// Neither timers nor the liveness check revive a client that gave up.
	h.clock.Advance(10 * time.Minute)
	h.assertNoOpen(t)
	assert.Equal(t, StateGaveUp, h.client.State())
	assert.Empty(t, h.delays)
}

func TestClient_OnlineSignalRevivesGaveUp(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(o *Options) { o.MaxAttempts = 1 })
	require.NoError(t, h.client.Start(nil, nil))

	ch := h.nextChannel(t)
	ch.statuses <- StatusChannelError
	h.clock.Advance(h.nextDelay(t))
	ch = h.nextChannel(t)
	ch.statuses <- StatusChannelError
	h.waitState(t, StateGaveUp)

	h.online.ch <- struct{}{}
	ch = h.nextChannel(t)
	h.waitState(t, StateConnecting)
	assert.Equal(t, 0, h.client.Attempts())

	ch.statuses <- StatusSubscribed
	h.waitState(t, StateConnected)
}

func TestClient_OnlineSignalIgnoredWhileReconnectPending(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	require.NoError(t, h.client.Start(nil, nil))

	ch := h.nextChannel(t)
	ch.statuses <- StatusChannelError
	delay := h.nextDelay(t)

	h.online.ch <- struct{}{}
	h.assertNoOpen(t)

	h.clock.Advance(delay)
	h.nextChannel(t)
}

func TestClient_ManualRestartFromGaveUp(t *testing.T) {
	t.Parallel()
	h := newHarness(t, func(o *Options) { o.MaxAttempts = 1 })
	require.NoError(t, h.client.Start(nil, nil))

	ch := h.nextChannel(t)
	ch.statuses <- StatusChannelError
	h.clock.Advance(h.nextDelay(t))
	h.nextChannel(t).statuses <- StatusTimedOut
	h.waitState(t, StateGaveUp)

	h.client.Restart()
	h.nextChannel(t)
	h.waitState(t, StateConnecting)
}

func TestClient_LivenessReconnectsWhenChannelMissing(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.feed.nilOpens.Store(1)
	require.NoError(t, h.client.Start(nil, nil))

	assert.Nil(t, h.nextChannel(t))
	assert.Equal(t, StateDisconnected, h.client.State())

	h.clock.Advance(60 * time.Second)
	ch := h.nextChannel(t)
	require.NotNil(t, ch)
	ch.statuses <- StatusSubscribed
	h.waitState(t, StateConnected)
}

func TestClient_StopFromGiveUpCallbackReturns(t *testing.T) {
	t.Parallel()
	returned := make(chan struct{})
	var h *harness
	h = newHarness(t, func(o *Options) {
		o.MaxAttempts = 1
		o.OnGiveUp = func(int) {
			h.client.Stop()
			close(returned)
		}
	})
	require.NoError(t, h.client.Start(nil, nil))

	ch := h.nextChannel(t)
	ch.statuses <- StatusChannelError
	h.clock.Advance(h.nextDelay(t))
	h.nextChannel(t).statuses <- StatusChannelError

	select {
	case <-returned:
	case <-time.After(waitFor):
		t.Fatal("Stop called from OnGiveUp never returned")
	}

	h.client.Stop()
	assert.True(t, h.online.detached.Load())
	assert.Equal(t, StateDisconnected, h.client.State())
}

func TestClient_StopFromHandlerReturns(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	returned := make(chan struct{})
	onInsert := func(domain.WorkOrder) {
		h.client.Stop()
		close(returned)
	}
	require.NoError(t, h.client.Start(onInsert, nil))

	ch := h.nextChannel(t)
	ch.statuses <- StatusSubscribed
	ch.changes <- Change{Type: ChangeInsert, Table: "work_orders", Record: []byte(`{"id":"wo-1","status":"QUEUED"}`)}

	select {
	case <-returned:
	case <-time.After(waitFor):
		t.Fatal("Stop called from a handler never returned")
	}

	h.client.Stop()
	assert.True(t, ch.isClosed())
}

func TestClient_StopIsIdempotent(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	require.NoError(t, h.client.Start(nil, nil))

	ch := h.nextChannel(t)
	ch.statuses <- StatusChannelError
	h.nextDelay(t)

	h.client.Stop()
	h.client.Stop()

	assert.True(t, ch.isClosed())
	assert.True(t, h.online.detached.Load())
	assert.Equal(t, StateDisconnected, h.client.State())

	h.clock.Advance(5 * time.Minute)
	h.assertNoOpen(t)
	assert.ErrorIs(t, h.client.Start(nil, nil), ErrAlreadyStarted)
}

func TestClient_StopBeforeStart(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.client.Stop()
	require.NoError(t, h.client.Start(nil, nil))
	h.client.Stop()
	h.assertNoOpen(t)
}

func TestClient_DeliversNormalizedEvents(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	inserts := make(chan domain.WorkOrder, 4)
	updates := make(chan domain.WorkOrder, 4)
	var panicked atomic.Bool
	onInsert := func(wo domain.WorkOrder) {
		if panicked.CompareAndSwap(false, true) {
			panic("handler bug")
		}
		inserts <- wo
	}
	onUpdate := func(wo domain.WorkOrder) { updates <- wo }
	require.NoError(t, h.client.Start(onInsert, onUpdate))

	ch := h.nextChannel(t)
	ch.statuses <- StatusSubscribed
	h.waitState(t, StateConnected)

	ch.changes <- Change{Type: ChangeInsert, Record: json.RawMessage(`{"id":"boom","status":"QUEUED"}`)}
	ch.changes <- Change{Type: ChangeInsert, Record: json.RawMessage(`{"id":"a","status":"QUEUED"}`)}
	ch.changes <- Change{Type: ChangeUpdate, Record: json.RawMessage(`{not json`)}
	ch.changes <- Change{Type: ChangeUpdate, Record: json.RawMessage(`{"status":"QUEUED"}`)}
	ch.changes <- Change{Type: ChangeDelete, Record: json.RawMessage(`{"id":"gone"}`)}
	ch.changes <- Change{Type: ChangeUpdate, Record: json.RawMessage(`{"id":"a","status":"IN_SERVICE","history":null}`)}

	select {
	case wo := <-inserts:
		assert.Equal(t, "a", wo.ID)
		assert.NotNil(t, wo.History)
		assert.Empty(t, wo.History)
	case <-time.After(waitFor):
		t.Fatal("insert not delivered after handler panic")
	}
	select {
	case wo := <-updates:
		assert.Equal(t, domain.StatusInService, wo.Status)
		assert.NotNil(t, wo.History)
	case <-time.After(waitFor):
		t.Fatal("update not delivered")
	}

	for i := 0; i < 2; i++ {
		select {
		case err := <-h.drops:
			assert.True(t, errors.Is(err, ErrMalformedEvent))
		case <-time.After(waitFor):
			t.Fatal("malformed event not reported")
		}
	}
	assert.Empty(t, updates)
	assert.Equal(t, StateConnected, h.client.State())
}

func TestStartSync_ReturnsIdempotentStop(t *testing.T) {
	t.Parallel()
	feed := newFakeFeed()
	stop := StartSync(feed, decodeTestRow, Options{Clock: clockwork.NewFakeClock()}, nil, nil)

	var ch *fakeChannel
	select {
	case ch = <-feed.opened:
	case <-time.After(waitFor):
		t.Fatal("channel not opened")
	}
	stop()
	stop()
	assert.True(t, ch.isClosed())
}
