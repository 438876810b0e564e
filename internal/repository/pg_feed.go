package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/fleet-workorders/internal/realtime"
)

// NotifyChannel is the pg_notify channel written by the work_orders trigger.
const NotifyChannel = "work_orders_changes"

const defaultSubscribeTimeout = 10 * time.Second

// notification is the trigger payload. Record is omitted when the row did not
// fit into a NOTIFY payload; Truncated is set instead.
type notification struct {
	Type      string          `json:"type"`
	Table     string          `json:"table"`
	ID        string          `json:"id"`
	Record    json.RawMessage `json:"record"`
	Truncated bool            `json:"truncated"`
}

// PgFeed implements realtime.Feed with LISTEN/NOTIFY on a dedicated pooled
// connection per channel.
type PgFeed struct {
	pool             *pgxpool.Pool
	store            *PostgresStore
	logger           *zap.Logger
	subscribeTimeout time.Duration
}

// NewPgFeed builds a feed. Truncated notifications are resolved through store.
func NewPgFeed(pool *pgxpool.Pool, store *PostgresStore, subscribeTimeout time.Duration, logger *zap.Logger) *PgFeed {
	if subscribeTimeout <= 0 {
		subscribeTimeout = defaultSubscribeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PgFeed{pool: pool, store: store, logger: logger.Named("pg_feed"), subscribeTimeout: subscribeTimeout}
}

// Open starts listening in the background. The outcome is reported on the
// channel's Statuses.
func (f *PgFeed) Open(table, name string) realtime.Channel {
	ctx, cancel := context.WithCancel(context.Background())
	ch := &pgChannel{
		name:     name,
		changes:  make(chan realtime.Change, 64),
		statuses: make(chan realtime.ChannelStatus, 2),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go f.listen(ctx, ch, table)
	return ch
}

func (f *PgFeed) listen(ctx context.Context, ch *pgChannel, table string) {
	defer close(ch.done)
	logger := f.logger.With(zap.String("channel", ch.name))

	subCtx, cancelSub := context.WithTimeout(ctx, f.subscribeTimeout)
	conn, err := f.pool.Acquire(subCtx)
	if err == nil {
		_, err = conn.Exec(subCtx, "LISTEN "+pgx.Identifier{NotifyChannel}.Sanitize())
		if err != nil {
			conn.Release()
		}
	}
	timedOut := errors.Is(subCtx.Err(), context.DeadlineExceeded)
	cancelSub()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Warn("subscribe failed", zap.Error(err))
		if timedOut {
			ch.signal(realtime.StatusTimedOut)
		} else {
			ch.signal(realtime.StatusChannelError)
		}
		return
	}
	defer func() {
		unlistenCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, _ = conn.Exec(unlistenCtx, "UNLISTEN *")
		conn.Release()
	}()

	ch.signal(realtime.StatusSubscribed)

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("notification wait failed", zap.Error(err))
			if conn.Conn().IsClosed() {
				ch.signal(realtime.StatusClosed)
			} else {
				ch.signal(realtime.StatusChannelError)
			}
			return
		}

		change, ok := f.resolve(ctx, logger, table, n.Payload)
		if !ok {
			continue
		}
		select {
		case ch.changes <- change:
		case <-ctx.Done():
			return
		}
	}
}

func (f *PgFeed) resolve(ctx context.Context, logger *zap.Logger, table, payload string) (realtime.Change, bool) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		logger.Warn("dropping undecodable notification", zap.Error(err))
		return realtime.Change{}, false
	}
	if n.Table != "" && n.Table != table {
		return realtime.Change{}, false
	}
	change := realtime.Change{Type: realtime.ChangeType(n.Type), Table: table, Record: n.Record}
	if n.Truncated && f.store != nil {
		wo, err := f.store.GetByID(ctx, n.ID)
		if err != nil {
			logger.Warn("re-read of truncated notification failed", zap.String("work_order_id", n.ID), zap.Error(err))
			return realtime.Change{}, false
		}
		raw, err := EncodeRow(wo)
		if err != nil {
			return realtime.Change{}, false
		}
		change.Record = raw
	}
	return change, true
}

type pgChannel struct {
	name     string
	changes  chan realtime.Change
	statuses chan realtime.ChannelStatus
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
}

func (c *pgChannel) Name() string                            { return c.name }
func (c *pgChannel) Changes() <-chan realtime.Change          { return c.changes }
func (c *pgChannel) Statuses() <-chan realtime.ChannelStatus { return c.statuses }

func (c *pgChannel) Close() {
	c.once.Do(func() {
		c.cancel()
		<-c.done
	})
}

func (c *pgChannel) signal(status realtime.ChannelStatus) {
	select {
	case c.statuses <- status:
	default:
	}
}
