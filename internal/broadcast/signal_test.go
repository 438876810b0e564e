package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignal_WireFormat(t *testing.T) {
	t.Parallel()
	at := time.Date(2026, 7, 2, 14, 5, 0, 0, time.FixedZone("BRT", -3*3600))

	raw, err := EncodeSignal(Signal{EntityID: "wo-1", Field: "status", At: at})
	require.NoError(t, err)
	assert.JSONEq(t, `{"entity_id":"wo-1","field":"status","at":"2026-07-02T17:05:00Z"}`, string(raw))

	decoded, err := DecodeSignal(raw)
	require.NoError(t, err)
	assert.Equal(t, "wo-1", decoded.EntityID)
	assert.True(t, decoded.At.Equal(at))
}

func TestSignal_Invalid(t *testing.T) {
	t.Parallel()
	_, err := EncodeSignal(Signal{Field: "status"})
	assert.ErrorIs(t, err, ErrInvalidSignal)

	_, err = DecodeSignal([]byte(`{"field":"status"}`))
	assert.ErrorIs(t, err, ErrInvalidSignal)

	_, err = DecodeSignal([]byte(`nope`))
	assert.ErrorIs(t, err, ErrInvalidSignal)
}

func TestNopPublisher(t *testing.T) {
	t.Parallel()
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), Signal{EntityID: "x"}))
}
