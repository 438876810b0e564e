package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/fleet-workorders/internal/broadcast"
	"github.com/spec-kit/fleet-workorders/internal/events"
)

// NotificationService forwards domain events to other processes as signals.
type NotificationService struct {
	dispatcher events.Dispatcher
	publisher  broadcast.Publisher
	logger     *zap.Logger
}

// NewNotificationService creates the service. A nil publisher drops signals.
func NewNotificationService(dispatcher events.Dispatcher, publisher broadcast.Publisher, logger *zap.Logger) *NotificationService {
	if publisher == nil {
		publisher = broadcast.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger.Named("notifications"),
	}
}

// signalFields maps event types to the field name carried by their signal.
var signalFields = map[events.EventType]string{
	events.EventWorkOrderCreated:        "created",
	events.EventWorkOrderUpdated:        "fields",
	events.EventWorkOrderStatusChanged:  "status",
	events.EventWorkOrderCustodyChanged: "custody",
	events.EventWorkOrderNoteAdded:      "notes",
	events.EventWorkOrderHistoryAdded:   "history",
	events.EventWorkOrderDeleted:        "deleted",
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for eventType := range signalFields {
		n.dispatcher.Subscribe(eventType, n.handleWorkOrderEvent)
	}
	n.dispatcher.Subscribe(events.EventSyncConnectionFailed, n.handleSyncConnectionFailed)
}

func (n *NotificationService) handleWorkOrderEvent(ctx context.Context, event events.Event) error {
	n.logger.Debug(string(event.Type),
		zap.String("work_order_id", event.WorkOrderID),
		zap.String("actor", event.Actor),
		zap.Any("payload", event.Payload))

	signal := broadcast.Signal{
		EntityID: event.WorkOrderID,
		Field:    signalFields[event.Type],
		At:       event.Timestamp,
	}
	if err := n.publisher.Publish(ctx, signal); err != nil {
		// Signals are advisory; receivers also get the change through the feed.
		n.logger.Warn("signal publish failed",
			zap.String("work_order_id", event.WorkOrderID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
	return nil
}

func (n *NotificationService) handleSyncConnectionFailed(_ context.Context, event events.Event) error {
	n.logger.Error("live work order updates are unavailable; restart sync or wait for connectivity",
		zap.Any("payload", event.Payload))
	return nil
}
