package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spec-kit/fleet-workorders/internal/config"
	"github.com/spec-kit/fleet-workorders/internal/domain"
	"github.com/spec-kit/fleet-workorders/internal/events"
	"github.com/spec-kit/fleet-workorders/internal/observability"
	"github.com/spec-kit/fleet-workorders/internal/realtime"
)

// Stream message kinds published by the sync worker.
const (
	StreamInsert = "INSERT"
	StreamUpdate = "UPDATE"
	StreamState  = "SYNC_STATE"
)

// SyncDependencies bundles what the sync worker needs.
type SyncDependencies struct {
	Config     config.SyncConfig
	Feed       realtime.Feed
	Decode     realtime.Decoder
	Pinger     realtime.Pinger
	Stream     *events.Broadcaster
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Clock      clockwork.Clock
	Logger     *zap.Logger
}

// SyncWorker runs the realtime client and fans its output out to stream
// subscribers.
type SyncWorker struct {
	client *realtime.Client
	probe  *realtime.Probe
	cancel context.CancelFunc
}

// StartSyncWorker starts the sync client and, when a pinger is given, the
// back-online probe.
func StartSyncWorker(ctx context.Context, deps SyncDependencies) (*SyncWorker, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Stream == nil {
		deps.Stream = events.NewBroadcaster()
	}
	ctx, cancel := context.WithCancel(ctx)
	w := &SyncWorker{cancel: cancel}

	opts := realtime.Options{
		Table:            deps.Config.Table,
		MaxAttempts:      deps.Config.MaxAttempts,
		BaseDelay:        deps.Config.BaseDelay,
		MaxDelay:         deps.Config.MaxDelay,
		Factor:           deps.Config.Factor,
		LivenessInterval: deps.Config.LivenessInterval,
		Clock:            deps.Clock,
		Logger:           logger,
		OnStateChange: func(_, to realtime.State) {
			deps.Metrics.RecordSyncState(string(to))
			deps.Stream.Broadcast(events.StreamMessage{Kind: StreamState, Data: to})
		},
		OnReconnectScheduled: func(int, time.Duration) {
			deps.Metrics.RecordReconnect()
		},
		OnGiveUp: func(attempts int) {
			deps.Metrics.RecordGiveUp()
			if deps.Dispatcher == nil {
				return
			}
			_ = deps.Dispatcher.Publish(ctx, events.Event{
				ID:        uuid.NewString(),
				Type:      events.EventSyncConnectionFailed,
				Timestamp: time.Now().UTC(),
				Payload:   events.SyncConnectionFailedPayload{Table: deps.Config.Table, Attempts: attempts},
			})
		},
		OnEventDropped: func(error) {
			deps.Metrics.RecordDroppedEvent()
		},
	}

	if deps.Pinger != nil {
		w.probe = realtime.NewProbe(deps.Pinger, deps.Config.ProbeInterval, deps.Clock, logger)
		opts.Online = w.probe
		go w.probe.Run(ctx)
	}

	forward := func(kind string) realtime.Handler {
		return func(wo domain.WorkOrder) {
			deps.Metrics.RecordDelivered()
			deps.Stream.Broadcast(events.StreamMessage{Kind: kind, Data: wo})
		}
	}

	w.client = realtime.NewClient(deps.Feed, deps.Decode, opts)
	if err := w.client.Start(forward(StreamInsert), forward(StreamUpdate)); err != nil {
		cancel()
		return nil, err
	}
	return w, nil
}

// State returns the sync client's state.
func (w *SyncWorker) State() realtime.State {
	return w.client.State()
}

// Restart revives the client after it gave up.
func (w *SyncWorker) Restart() {
	w.client.Restart()
}

// Stop shuts the worker down. It is idempotent.
func (w *SyncWorker) Stop() {
	w.client.Stop()
	w.cancel()
}
