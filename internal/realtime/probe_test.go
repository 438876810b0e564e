package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

type switchPinger struct {
	mu  sync.Mutex
	err error
}

func (p *switchPinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *switchPinger) set(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func TestProbe_SignalsOnlyOnRecovery(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pinger := &switchPinger{}
	probe := NewProbe(pinger, 0, clockwork.NewFakeClock(), nil)

	signals, detach := probe.Subscribe()
	defer detach()

	assert.True(t, probe.Check(ctx))
	assert.Empty(t, signals, "healthy start does not signal")

	pinger.set(errors.New("connection refused"))
	assert.False(t, probe.Check(ctx))
	assert.False(t, probe.Check(ctx))
	assert.Empty(t, signals)

	pinger.set(nil)
	assert.True(t, probe.Check(ctx))
	assert.Len(t, signals, 1)

	assert.True(t, probe.Check(ctx))
	assert.Len(t, signals, 1, "steady state does not signal again")
}

func TestProbe_DetachedListenerIsSkipped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pinger := &switchPinger{err: errors.New("down")}
	probe := NewProbe(pinger, 0, clockwork.NewFakeClock(), nil)

	signals, detach := probe.Subscribe()
	probe.Check(ctx)
	detach()

	pinger.set(nil)
	probe.Check(ctx)
	assert.Empty(t, signals)
}
