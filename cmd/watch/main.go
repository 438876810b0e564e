// Command watch prints live work order changes from the change feed and,
// optionally, cross-process signals from Redis.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/fleet-workorders/internal/broadcast"
	"github.com/spec-kit/fleet-workorders/internal/config"
	"github.com/spec-kit/fleet-workorders/internal/domain"
	"github.com/spec-kit/fleet-workorders/internal/observability"
	"github.com/spec-kit/fleet-workorders/internal/persistence"
	"github.com/spec-kit/fleet-workorders/internal/realtime"
	"github.com/spec-kit/fleet-workorders/internal/repository"
)

var (
	statuses    string
	signals     bool
	maxAttempts int
)

var rootCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print live work order changes",
	Long: `watch subscribes to the work_orders change feed and prints every insert and
update, together with sync state transitions and reconnect attempts.

EXAMPLES:
  # Everything
  watch

  # Only orders waiting on parts or the supplier, plus Redis signals
  watch --status AWAITING_PARTS,AWAITING_SUPPLIER --signals`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runWatch,
}

func init() {
	rootCmd.Flags().StringVarP(&statuses, "status", "s", "", "comma-separated statuses to show; empty shows all")
	rootCmd.Flags().BoolVar(&signals, "signals", false, "also print Redis signals")
	rootCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "override SYNC_MAX_ATTEMPTS")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		os.Exit(1)
	}
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("POSTGRES_DSN is required")
	}
	if maxAttempts > 0 {
		cfg.Sync.MaxAttempts = maxAttempts
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer pg.Close()

	store := repository.NewPostgresStore(pg.Pool)
	feed := repository.NewPgFeed(pg.Pool, store, cfg.Sync.SubscribeTimeout, logger)

	out := cmd.OutOrStdout()
	show := statusFilter(statuses)
	printer := func(kind string) realtime.Handler {
		return func(wo domain.WorkOrder) {
			if !show(wo.Status) {
				return
			}
			last, _ := wo.LastEvent()
			fmt.Fprintf(out, "%-6s  number=%-10s  status=%-18s  version=%d  last=%s %s\n",
				kind, wo.Number, wo.Status, wo.Version, last.Kind, last.Note)
		}
	}

	probe := realtime.NewProbe(pg, cfg.Sync.ProbeInterval, nil, logger)
	go probe.Run(ctx)

	opts := realtime.Options{
		Table:            cfg.Sync.Table,
		MaxAttempts:      cfg.Sync.MaxAttempts,
		BaseDelay:        cfg.Sync.BaseDelay,
		MaxDelay:         cfg.Sync.MaxDelay,
		Factor:           cfg.Sync.Factor,
		LivenessInterval: cfg.Sync.LivenessInterval,
		Logger:           logger,
		Online:           probe,
		OnStateChange: func(_, to realtime.State) {
			fmt.Fprintf(out, "sync    state=%s\n", to)
		},
		OnReconnectScheduled: func(attempt int, delay time.Duration) {
			fmt.Fprintf(out, "sync    reconnect attempt=%d in %s\n", attempt, delay)
		},
		OnGiveUp: func(attempts int) {
			fmt.Fprintf(cmd.ErrOrStderr(), "watch: gave up after %d attempts; waiting for storage to come back\n", attempts)
		},
	}
	stop := realtime.StartSync(feed, repository.DecodeRow, opts, printer("INSERT"), printer("UPDATE"))
	defer stop()

	if signals {
		redis := persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		if !redis.Enabled() {
			fmt.Fprintln(cmd.ErrOrStderr(), "watch: --signals needs REDIS_ENABLED=true")
		} else {
			listener := broadcast.NewRedisPublisher(redis.Client, cfg.Redis.SignalsChannel, logger)
			go func() {
				err := listener.Listen(ctx, func(s broadcast.Signal) {
					fmt.Fprintf(out, "SIGNAL  work_order=%s  field=%s  at=%s\n", s.EntityID, s.Field, s.At.Format(time.RFC3339))
				})
				if err != nil && ctx.Err() == nil {
					logger.Warn("signal listener stopped", zap.Error(err))
				}
			}()
		}
	}

	fmt.Fprintf(out, "watching %s (ctrl-c to stop)\n", cfg.Sync.Table)
	<-ctx.Done()
	return nil
}

func statusFilter(raw string) func(domain.WorkOrderStatus) bool {
	wanted := map[domain.WorkOrderStatus]bool{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			wanted[domain.WorkOrderStatus(strings.ToUpper(part))] = true
		}
	}
	return func(s domain.WorkOrderStatus) bool {
		return len(wanted) == 0 || wanted[s]
	}
}
