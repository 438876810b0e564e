package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Pinger is anything whose reachability can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe pings storage periodically and signals subscribers when it becomes
// reachable again after a failure. It implements OnlineSource.
type Probe struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	clock    clockwork.Clock
	logger   *zap.Logger

	mu        sync.Mutex
	listeners map[int]chan struct{}
	nextID    int
	reachable bool
}

// NewProbe builds a probe. The first successful check after construction does
// not signal; only a failure followed by a success does.
func NewProbe(pinger Pinger, interval time.Duration, clock clockwork.Clock, logger *zap.Logger) *Probe {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Probe{
		pinger:    pinger,
		interval:  interval,
		timeout:   interval / 2,
		clock:     clock,
		logger:    logger.Named("probe"),
		listeners: map[int]chan struct{}{},
		reachable: true,
	}
}

// Subscribe registers a listener. Signals are coalesced when the listener is
// not reading.
func (p *Probe) Subscribe() (<-chan struct{}, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	ch := make(chan struct{}, 1)
	p.listeners[id] = ch
	return ch, func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Run checks reachability every interval until ctx is done.
func (p *Probe) Run(ctx context.Context) {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.Check(ctx)
		}
	}
}

// Check pings once and reports whether the target is reachable.
func (p *Probe) Check(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, p.timeout)
	err := p.pinger.Ping(pingCtx)
	cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	was := p.reachable
	p.reachable = err == nil
	switch {
	case err != nil && was:
		p.logger.Warn("storage unreachable", zap.Error(err))
	case err == nil && !was:
		p.logger.Info("storage reachable again")
		for _, ch := range p.listeners {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
	return err == nil
}
