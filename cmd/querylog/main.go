// Command querylog consumes diagnosis and call events from NATS and persists
// them to the SQLite log tables.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	"github.com/carfix-labs/carfix/engine/domain"
	"github.com/carfix-labs/carfix/engine/events"
	"github.com/carfix-labs/carfix/engine/sqlstore"
	"github.com/carfix-labs/carfix/pkg/metrics"
	"github.com/carfix-labs/carfix/pkg/natsutil"
)

type config struct {
	NATSURL     string
	SQLitePath  string
	Queue       string
	MetricsPort string
}

func loadConfig() config {
	return config{
		NATSURL:     envOr("NATS_URL", nats.DefaultURL),
		SQLitePath:  envOr("SQLITE_PATH", "carfix.db"),
		Queue:       envOr("QUEUE", "querylog"),
		MetricsPort: os.Getenv("METRICS_PORT"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// logWriter is the subset of sqlstore.Store the consumer needs.
type logWriter interface {
	LogQuery(ctx context.Context, l domain.QueryLog) error
	LogCall(ctx context.Context, l domain.CallLog) error
}

type consumerMetrics struct {
	persisted func(subject string) *metrics.Counter
	failed    func(subject string) *metrics.Counter
	latency   *metrics.Histogram
}

func newConsumerMetrics(reg *metrics.Registry) *consumerMetrics {
	return &consumerMetrics{
		persisted: func(subject string) *metrics.Counter {
			return reg.Counter(metrics.WithLabels("carfix_querylog_persisted_total", "subject", subject), "Events written to the log tables")
		},
		failed: func(subject string) *metrics.Counter {
			return reg.Counter(metrics.WithLabels("carfix_querylog_failed_total", "subject", subject), "Events that could not be written")
		},
		latency: reg.Histogram("carfix_querylog_write_seconds", "Log table write latency", nil),
	}
}

// persist wraps a write with metrics. The returned error is logged and the
// message dropped by natsutil.
func persist[T any](m *consumerMetrics, subject string, write func(context.Context, T) error) natsutil.Handler[T] {
	return func(ctx context.Context, v T) error {
		start := time.Now()
		err := write(ctx, v)
		m.latency.Since(start)
		if err != nil {
			m.failed(subject).Inc()
			return err
		}
		m.persisted(subject).Inc()
		return nil
	}
}

// subscribe attaches both log consumers to the queue group.
func subscribe(nc *nats.Conn, db logWriter, queue string, m *consumerMetrics, logger *slog.Logger) ([]*nats.Subscription, error) {
	qs, err := natsutil.Subscribe(nc, events.SubjectDiagnosis, queue, logger,
		persist(m, events.SubjectDiagnosis, db.LogQuery))
	if err != nil {
		return nil, err
	}
	cs, err := natsutil.Subscribe(nc, events.SubjectCall, queue, logger,
		persist(m, events.SubjectCall, db.LogCall))
	if err != nil {
		_ = qs.Unsubscribe()
		return nil, err
	}
	return []*nats.Subscription{qs, cs}, nil
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(loadConfig(), logger); err != nil {
		logger.Error("querylog exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sqlstore.Open(cfg.SQLitePath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	nc, err := natsutil.Connect(cfg.NATSURL, "carfix-querylog", logger)
	if err != nil {
		return err
	}

	reg := metrics.New()
	if _, err := subscribe(nc, db, cfg.Queue, newConsumerMetrics(reg), logger); err != nil {
		nc.Close()
		return err
	}
	logger.Info("querylog consuming", "nats", cfg.NATSURL, "queue", cfg.Queue, "db", cfg.SQLitePath)

	g, ctx := errgroup.WithContext(ctx)
	if cfg.MetricsPort != "" {
		srv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: reg.Handler(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return srv.Close()
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("draining subscriptions")
		return drain(nc, 10*time.Second)
	})
	return g.Wait()
}

// drain flushes in-flight messages before the store is closed.
func drain(nc *nats.Conn, timeout time.Duration) error {
	if err := nc.Drain(); err != nil {
		return err
	}
	deadline := time.Now().Add(timeout)
	for !nc.IsClosed() {
		if time.Now().After(deadline) {
			nc.Close()
			return errors.New("querylog: drain timed out")
		}
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}
