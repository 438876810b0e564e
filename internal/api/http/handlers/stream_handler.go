package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/fleet-workorders/internal/api/dto"
	"github.com/spec-kit/fleet-workorders/internal/domain"
	"github.com/spec-kit/fleet-workorders/internal/events"
	"github.com/spec-kit/fleet-workorders/internal/realtime"
	apperrors "github.com/spec-kit/fleet-workorders/pkg/util/errorutil"
)

const keepAliveInterval = 15 * time.Second

// SyncController is the part of the sync worker the API drives.
type SyncController interface {
	State() realtime.State
	Restart()
}

// StreamHandler pushes live work order changes as server-sent events.
type StreamHandler struct {
	stream *events.Broadcaster
	sync   SyncController
	logger *zap.Logger
}

// NewStreamHandler constructs handler. sync may be nil when live sync is
// disabled.
func NewStreamHandler(stream *events.Broadcaster, sync SyncController, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{stream: stream, sync: sync, logger: logger.Named("stream")}
}

// Stream GET /work-orders/stream.
func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	sub := h.stream.Subscribe()
	state := h.state()

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer h.stream.Unsubscribe(sub)
		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		if err := writeEvent(w, events.StreamMessage{Kind: "SYNC_STATE", Data: state}); err != nil {
			return
		}
		for {
			select {
			case <-sub.Done:
				return
			case msg := <-sub.Messages:
				if err := writeEvent(w, msg); err != nil {
					h.logger.Debug("stream client gone", zap.Error(err), zap.Int64("dropped", sub.Dropped()))
					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

// Status GET /sync.
func (h *StreamHandler) Status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": fiber.Map{
		"state":       h.state(),
		"subscribers": h.stream.Len(),
	}})
}

// Restart POST /sync/restart revives a sync client that gave up.
func (h *StreamHandler) Restart(c *fiber.Ctx) error {
	if h.sync == nil {
		return apperrors.NewConflict("live sync is disabled", nil)
	}
	h.sync.Restart()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"state": h.state()}})
}

func (h *StreamHandler) state() realtime.State {
	if h.sync == nil {
		return realtime.StateDisconnected
	}
	return h.sync.State()
}

// writeEvent renders one SSE frame. Work orders use the API representation.
func writeEvent(w *bufio.Writer, msg events.StreamMessage) error {
	data := msg.Data
	if wo, ok := data.(domain.WorkOrder); ok {
		data = dto.NewWorkOrderResponse(&wo)
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Kind, payload); err != nil {
		return err
	}
	return w.Flush()
}
