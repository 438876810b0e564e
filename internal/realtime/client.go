package realtime

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spec-kit/fleet-workorders/internal/domain"
)

var (
	// ErrMalformedEvent marks change payloads that could not be normalized.
	ErrMalformedEvent = errors.New("malformed realtime event")
	// ErrAlreadyStarted is returned by Start on a client that was started before.
	ErrAlreadyStarted = errors.New("sync client already started")
)

// Decoder turns a change record into a work order.
type Decoder func(raw []byte) (*domain.WorkOrder, error)

// Handler receives a normalized work order.
type Handler func(domain.WorkOrder)

// OnlineSource signals that connectivity came back. The returned func
// detaches the listener.
type OnlineSource interface {
	Subscribe() (<-chan struct{}, func())
}

// Options tunes the sync client. Zero values take the defaults.
type Options struct {
	Table            string
	MaxAttempts      int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	Factor           float64
	LivenessInterval time.Duration

	Clock  clockwork.Clock
	Logger *zap.Logger
	Online OnlineSource

	OnStateChange        func(from, to State)
	OnReconnectScheduled func(attempt int, delay time.Duration)
	OnGiveUp             func(attempts int)
	OnEventDropped       func(err error)
}

// DefaultOptions returns the production reconnection policy.
func DefaultOptions() Options {
	return Options{
		Table:            "work_orders",
		MaxAttempts:      15,
		BaseDelay:        time.Second,
		MaxDelay:         60 * time.Second,
		Factor:           1.5,
		LivenessInterval: 60 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Table == "" {
		o.Table = def.Table
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = def.MaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = def.BaseDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = def.MaxDelay
	}
	if o.Factor < 1 {
		o.Factor = def.Factor
	}
	if o.LivenessInterval <= 0 {
		o.LivenessInterval = def.LivenessInterval
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Client keeps one change-feed channel open and re-establishes it with
// exponential backoff. All connection state is owned by a single goroutine;
// exported methods talk to it through channels.
type Client struct {
	feed   Feed
	decode Decoder
	opts   Options
	logger *zap.Logger
	id     string

	mu      sync.RWMutex
	state   State
	started bool

	attempts   atomic.Int64
	inCallback atomic.Bool
	quit       chan struct{}
	stopped    chan struct{}
	restart    chan struct{}
	stopOnce   sync.Once

	// owned by the run goroutine
	channel    Channel
	retryTimer clockwork.Timer
	seq        int
}

// NewClient builds a stopped client.
func NewClient(feed Feed, decode Decoder, opts Options) *Client {
	opts = opts.withDefaults()
	id := uuid.NewString()[:8]
	return &Client{
		feed:    feed,
		decode:  decode,
		opts:    opts,
		logger:  opts.Logger.Named("sync").With(zap.String("client", id), zap.String("table", opts.Table)),
		id:      id,
		state:   StateDisconnected,
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
		restart: make(chan struct{}, 1),
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Attempts returns the number of reconnects scheduled since the last
// successful subscription.
func (c *Client) Attempts() int {
	return int(c.attempts.Load())
}

// Start opens the first channel and begins delivering changes. Nil handlers
// are skipped.
func (c *Client) Start(onInsert, onUpdate Handler) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	select {
	case <-c.quit:
		close(c.stopped)
		return nil
	default:
	}

	var (
		online <-chan struct{}
		detach = func() {}
	)
	if c.opts.Online != nil {
		online, detach = c.opts.Online.Subscribe()
	}
	ticker := c.opts.Clock.NewTicker(c.opts.LivenessInterval)
	c.connect()
	go c.run(onInsert, onUpdate, ticker, online, detach)
	return nil
}

// Restart forces a fresh connection with attempts reset. It is how an
// operator revives a client that gave up.
func (c *Client) Restart() {
	select {
	case c.restart <- struct{}{}:
	default:
	}
}

// Stop tears the client down. It is idempotent and safe to call before Start.
// Called from a callback it only signals; the run loop finishes the teardown
// once the callback returns.
func (c *Client) Stop() {
	c.stopOnce.Do(func() { close(c.quit) })
	if c.inCallback.Load() {
		return
	}
	c.mu.RLock()
	started := c.started
	c.mu.RUnlock()
	if started {
		<-c.stopped
	}
}

// callback runs fn with inCallback set so a Stop from inside fn does not wait
// on the goroutine that is running it.
func (c *Client) callback(fn func()) {
	c.inCallback.Store(true)
	defer c.inCallback.Store(false)
	fn()
}

func (c *Client) run(onInsert, onUpdate Handler, ticker clockwork.Ticker, online <-chan struct{}, detach func()) {
	defer close(c.stopped)
	defer detach()
	defer ticker.Stop()

	for {
		var (
			changes  <-chan Change
			statuses <-chan ChannelStatus
			retry    <-chan time.Time
		)
		if c.channel != nil {
			changes = c.channel.Changes()
			statuses = c.channel.Statuses()
		}
		if c.retryTimer != nil {
			retry = c.retryTimer.Chan()
		}

		select {
		case <-c.quit:
			c.shutdown()
			return
		case change, ok := <-changes:
			if !ok {
				c.handleStatus(StatusClosed)
				continue
			}
			c.deliver(change, onInsert, onUpdate)
		case status, ok := <-statuses:
			if !ok {
				status = StatusClosed
			}
			c.handleStatus(status)
		case <-retry:
			c.retryTimer = nil
			c.connect()
		case <-ticker.Chan():
			c.checkLiveness()
		case <-online:
			c.handleOnline()
		case <-c.restart:
			c.logger.Info("manual restart requested")
			c.cancelRetry()
			c.attempts.Store(0)
			c.connect()
		}
	}
}

func (c *Client) connect() {
	c.teardownChannel()
	c.setState(StateConnecting)
	c.seq++
	name := fmt.Sprintf("%s-%s-%d", c.opts.Table, c.id, c.seq)
	c.channel = c.feed.Open(c.opts.Table, name)
	if c.channel == nil {
		c.logger.Error("feed returned no channel", zap.String("channel", name))
		c.setState(StateDisconnected)
		return
	}
	c.logger.Debug("channel opened", zap.String("channel", name))
}

func (c *Client) handleStatus(status ChannelStatus) {
	switch status {
	case StatusSubscribed:
		c.cancelRetry()
		c.attempts.Store(0)
		c.setState(StateConnected)
		c.logger.Info("subscribed to change feed")
	case StatusChannelError, StatusClosed, StatusTimedOut:
		c.logger.Warn("change feed channel failed", zap.String("status", string(status)))
		c.teardownChannel()
		c.scheduleReconnect()
	default:
		c.logger.Warn("ignoring unknown channel status", zap.String("status", string(status)))
	}
}

func (c *Client) scheduleReconnect() {
	if c.retryTimer != nil {
		return
	}
	attempts := int(c.attempts.Load())
	if attempts >= c.opts.MaxAttempts {
		c.setState(StateGaveUp)
		c.logger.Error("giving up on change feed", zap.Int("attempts", attempts))
		if c.opts.OnGiveUp != nil {
			c.callback(func() { c.opts.OnGiveUp(attempts) })
		}
		return
	}
	attempts++
	c.attempts.Store(int64(attempts))
	delay := Backoff(attempts, c.opts.BaseDelay, c.opts.Factor, c.opts.MaxDelay)
	c.setState(StateReconnecting)
	c.retryTimer = c.opts.Clock.NewTimer(delay)
	c.logger.Info("reconnect scheduled", zap.Int("attempt", attempts), zap.Duration("delay", delay))
	if c.opts.OnReconnectScheduled != nil {
		c.callback(func() { c.opts.OnReconnectScheduled(attempts, delay) })
	}
}

func (c *Client) checkLiveness() {
	if c.channel != nil || c.retryTimer != nil || c.State() == StateGaveUp {
		return
	}
	c.logger.Info("liveness check found no channel; reconnecting")
	c.attempts.Store(0)
	c.connect()
}

func (c *Client) handleOnline() {
	if c.channel != nil || c.retryTimer != nil {
		return
	}
	c.logger.Info("connectivity restored; reconnecting")
	c.attempts.Store(0)
	c.connect()
}

func (c *Client) shutdown() {
	c.cancelRetry()
	c.teardownChannel()
	c.setState(StateDisconnected)
}

func (c *Client) cancelRetry() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

func (c *Client) teardownChannel() {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
}

func (c *Client) setState(next State) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	c.mu.Unlock()
	if prev != next && c.opts.OnStateChange != nil {
		c.callback(func() { c.opts.OnStateChange(prev, next) })
	}
}

func (c *Client) deliver(change Change, onInsert, onUpdate Handler) {
	var handler Handler
	switch change.Type {
	case ChangeInsert:
		handler = onInsert
	case ChangeUpdate:
		handler = onUpdate
	default:
		return
	}

	wo, err := c.normalize(change.Record)
	if err != nil {
		c.logger.Warn("dropping realtime event", zap.String("type", string(change.Type)), zap.Error(err))
		if c.opts.OnEventDropped != nil {
			c.callback(func() { c.opts.OnEventDropped(err) })
		}
		return
	}
	if handler == nil {
		return
	}
	c.invoke(change.Type, handler, *wo)
}

func (c *Client) normalize(raw []byte) (*domain.WorkOrder, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty record", ErrMalformedEvent)
	}
	wo, err := c.decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if wo == nil || wo.ID == "" {
		return nil, fmt.Errorf("%w: record without id", ErrMalformedEvent)
	}
	if wo.History == nil {
		wo.History = []domain.HistoryEvent{}
	}
	return wo, nil
}

func (c *Client) invoke(kind ChangeType, handler Handler, wo domain.WorkOrder) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("realtime handler panicked",
				zap.String("type", string(kind)),
				zap.String("work_order_id", wo.ID),
				zap.Any("panic", r))
		}
	}()
	c.callback(func() { handler(wo) })
}
