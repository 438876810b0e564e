package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultChannel is the Redis pub/sub channel for work order signals.
const DefaultChannel = "fleet:work-orders:signals"

// ErrInvalidSignal is returned when a signal payload cannot be used.
var ErrInvalidSignal = errors.New("invalid signal")

// Signal tells other processes that an entity changed. It carries no data;
// receivers refetch.
type Signal struct {
	EntityID string    `json:"entity_id"`
	Field    string    `json:"field"`
	At       time.Time `json:"at"`
}

// Publisher emits signals. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, signal Signal) error
}

// NopPublisher drops every signal.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Signal) error { return nil }

// EncodeSignal renders a signal for the wire.
func EncodeSignal(s Signal) ([]byte, error) {
	if s.EntityID == "" {
		return nil, fmt.Errorf("%w: missing entity id", ErrInvalidSignal)
	}
	s.At = s.At.UTC()
	return json.Marshal(s)
}

// DecodeSignal parses a wire payload.
func DecodeSignal(raw []byte) (Signal, error) {
	var s Signal
	if err := json.Unmarshal(raw, &s); err != nil {
		return Signal{}, fmt.Errorf("%w: %v", ErrInvalidSignal, err)
	}
	if s.EntityID == "" {
		return Signal{}, fmt.Errorf("%w: missing entity id", ErrInvalidSignal)
	}
	return s, nil
}
