package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/okian/xsrledger/internal/adapters/connector"
	"github.com/okian/xsrledger/internal/adapters/http/api"
	"github.com/okian/xsrledger/internal/adapters/mq/stream"
	"github.com/okian/xsrledger/internal/adapters/repository"
	app "github.com/okian/xsrledger/internal/app"
	"github.com/okian/xsrledger/internal/config"
	"github.com/okian/xsrledger/pkg/logger"
	"github.com/okian/xsrledger/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 60 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	once := flag.Bool("once", false, "run every configured source once and exit")
	sources := flag.String("sources", "", "comma separated source names for -once; all when empty")
	flag.Parse()

	if err := logger.Init(); err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *once, splitNames(*sources)); err != nil {
		logger.Get().Error(ctx, "exiting with error", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, once bool, names []string) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	if once {
		return runOnce(ctx, svc, names, log)
	}
	return serve(ctx, cfg, svc, log)
}

// buildService picks the ledger, stream and connector from cfg.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, error) {
	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.JobQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithShardCount(cfg.ShardCount),
		app.WithPublisher(cfg.Publisher),
		app.WithSources(cfg.Sources...),
		app.WithFetcher(connector.New(
			connector.WithTimeout(cfg.HTTPTimeout),
			connector.WithKnownHosts(cfg.SFTPKnownHosts),
			connector.WithLogger(log.Named("connector")),
		)),
	}

	var store repository.Store
	if strings.EqualFold(cfg.LedgerDriver, config.DriverPostgres) {
		pg, err := repository.NewPostgresStore(ctx, cfg.LedgerDSN)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		log.Info(ctx, "using postgres ledger")
		store = pg
		opts = append(opts, app.WithStore(store))
	}

	if len(cfg.KafkaBrokers) > 0 {
		sink, err := stream.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			if store != nil {
				_ = store.Close()
			}
			return nil, fmt.Errorf("open mutation stream: %w", err)
		}
		log.Info(ctx, "publishing ledger mutations",
			logger.Strings("brokers", cfg.KafkaBrokers),
			logger.String("topic", cfg.KafkaTopic),
		)
		opts = append(opts, app.WithSink(sink))
	}

	return app.New(opts...), nil
}

func runOnce(ctx context.Context, svc *app.Service, names []string, log logger.Logger) error {
	reports, err := svc.RunAll(ctx, names...)
	for i := range reports {
		r := &reports[i]
		log.Info(ctx, "source report",
			logger.String("source_name", r.Source),
			logger.Int("inserted", r.Inserted),
			logger.Int("superseded", r.Superseded),
			logger.Int("unchanged", r.Unchanged),
			logger.Int("dropped", r.Dropped),
			logger.Int("failed", r.Failed),
		)
	}
	return err
}

func serve(ctx context.Context, cfg *config.Config, svc *app.Service, log logger.Logger) error {
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewServer(svc).Handler(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// startServiceMetricsUpdater refreshes service gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(svc *app.Service) {
	// GetStats already refreshes the job queue gauge
	stats := svc.GetStats()
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}

func splitNames(s string) []string {
	var out []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}
