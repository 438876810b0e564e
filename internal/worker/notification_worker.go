package worker

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spec-kit/fleet-workorders/internal/broadcast"
	"github.com/spec-kit/fleet-workorders/internal/events"
	"github.com/spec-kit/fleet-workorders/internal/realtime"
	"github.com/spec-kit/fleet-workorders/internal/service"
)

// StreamSignal is the stream message kind for signals from other processes.
const StreamSignal = "SIGNAL"

// SignalSource delivers signals published by other processes.
type SignalSource interface {
	Listen(ctx context.Context, handle func(broadcast.Signal)) error
}

// Retry policy for the signal listener. Redis being unreachable at boot must
// not switch cross-process signals off for the life of the process.
const (
	signalRetryBase   = time.Second
	signalRetryFactor = 1.5
	signalRetryMax    = time.Minute
)

// StartNotificationWorker registers notification handlers and, when a source
// is given, relays remote signals to stream subscribers until ctx is done.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, source SignalSource, stream *events.Broadcaster, logger *zap.Logger) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if source == nil || stream == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	go relaySignals(ctx, source, stream, clockwork.NewRealClock(), logger.Named("signals"))
}

// relaySignals keeps a listener on source, re-subscribing with backoff when
// it fails or ends while ctx is still live.
func relaySignals(ctx context.Context, source SignalSource, stream *events.Broadcaster, clock clockwork.Clock, logger *zap.Logger) {
	attempt := 0
	for {
		err := source.Listen(ctx, func(s broadcast.Signal) {
			attempt = 0
			logger.Debug("signal received",
				zap.String("work_order_id", s.EntityID),
				zap.String("field", s.Field))
			stream.Broadcast(events.StreamMessage{Kind: StreamSignal, Data: s})
		})
		if ctx.Err() != nil {
			return
		}

		delay := realtime.Backoff(attempt, signalRetryBase, signalRetryFactor, signalRetryMax)
		attempt++
		if err != nil {
			logger.Error("signal listener failed; retrying", zap.Error(err), zap.Int("attempt", attempt), zap.Duration("delay", delay))
		} else {
			logger.Warn("signal listener ended; retrying", zap.Int("attempt", attempt), zap.Duration("delay", delay))
		}

		timer := clock.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		}
	}
}
