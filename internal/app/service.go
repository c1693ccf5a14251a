// Package service wires connectors, normalization and the ledger into the
// ingestion workflow the HTTP API and the CLI drive.
package service

import (
	"context"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/okian/xsrledger/internal/adapters/connector"
	"github.com/okian/xsrledger/internal/adapters/mq/queue"
	"github.com/okian/xsrledger/internal/adapters/mq/stream"
	workerpool "github.com/okian/xsrledger/internal/adapters/mq/worker"
	"github.com/okian/xsrledger/internal/adapters/repository"
	"github.com/okian/xsrledger/internal/config"
	"github.com/okian/xsrledger/internal/domain/model"
	"github.com/okian/xsrledger/pkg/logger"
	"github.com/okian/xsrledger/pkg/metrics"
)

const (
	defaultQueueSize  = 16
	defaultDedupeSize = 100_000
	defaultShardCount = 32
	runnerStopTimeout = 30 * time.Second
)

// PublisherLookup resolves the source-system discriminator stamped onto
// every record as SOURCESYSTEM.
type PublisherLookup interface {
	Lookup(ctx context.Context) (string, error)
}

// StaticPublisher is a PublisherLookup with a fixed answer. An empty value
// fails every batch with ErrNoPublisher.
type StaticPublisher string

// Lookup implements PublisherLookup.
func (p StaticPublisher) Lookup(context.Context) (string, error) { return string(p), nil }

// Service runs ingestion batches and workflow jobs.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	fetcher   connector.Fetcher
	sink      stream.Sink
	publisher PublisherLookup
	pool      *workerpool.Pool
	jobs      queue.Queue
	registry  *jobRegistry
	sources   []config.Source

	// Configuration
	workerCount int
	queueSize   int
	dedupeSize  int
	shardCount  int

	// State
	started    bool
	stopRunner context.CancelFunc
	runnerDone chan struct{}

	logger logger.Logger
}

// New constructs a Service. Components not provided through options get
// in-memory defaults on Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU() * 2,
		queueSize:   defaultQueueSize,
		dedupeSize:  defaultDedupeSize,
		shardCount:  defaultShardCount,
		publisher:   StaticPublisher(""),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes missing components and starts the job runner.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting ingestion service...")

	if s.store == nil {
		s.store = repository.NewMemStore(repository.WithShardCount(s.shardCount))
		s.logger.Info(ctx, "using in-memory ledger", logger.Int("shards", s.shardCount))
	}
	if s.fetcher == nil {
		s.fetcher = connector.New(connector.WithLogger(s.logger.Named("connector")))
	}
	if s.sink == nil {
		s.sink = stream.NewLogSink(s.logger.Named("stream"))
	}
	s.pool = workerpool.NewPool(s.store,
		workerpool.WithSize(s.workerCount),
		workerpool.WithSink(s.sink),
		workerpool.WithDedupeSize(s.dedupeSize),
		workerpool.WithLogger(s.logger.Named("worker-pool")),
	)
	s.jobs = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.registry = newJobRegistry()

	// The runner outlives the Start context; Stop cancels it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.stopRunner = cancel
	s.runnerDone = make(chan struct{})
	go s.runJobs(runCtx, s.components())

	s.started = true
	s.logger.Info(ctx, "ingestion service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("sources", len(s.sources)),
	)
	return nil
}

// Stop drains queued jobs, then closes the sink and the ledger.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	jobs, done, cancel := s.jobs, s.runnerDone, s.stopRunner
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping ingestion service...")

	_ = jobs.Close()
	select {
	case <-done:
	case <-time.After(runnerStopTimeout):
		s.logger.Warn(ctx, "job runner did not drain in time")
		cancel()
		<-done
	}
	cancel()

	if err := s.sink.Close(); err != nil {
		s.logger.Error(ctx, "error closing sink", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "error closing ledger", logger.Error(err))
	}
	s.logger.Info(ctx, "ingestion service stopped")
}

// Sources returns the configured source registry.
func (s *Service) Sources() []config.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]config.Source(nil), s.sources...)
}

// IngestCreditData ingests an uploaded Course XML document through the same
// normalize, publisher and ledger path as a configured source.
func (s *Service) IngestCreditData(ctx context.Context, r io.Reader) (model.BatchReport, error) {
	c, err := s.snapshot()
	if err != nil {
		return model.BatchReport{Source: creditDataSource, Error: err.Error()}, err
	}
	return c.runCreditData(ctx, r)
}

// History returns every ledger entry of a key hash, oldest first.
func (s *Service) History(ctx context.Context, keyHash string) ([]model.LedgerEntry, error) {
	store, err := s.ledger()
	if err != nil {
		return nil, err
	}
	return store.History(ctx, keyHash)
}

// CopyToTarget mirrors source identity into target columns on every entry.
func (s *Service) CopyToTarget(ctx context.Context) (int, error) {
	store, err := s.ledger()
	if err != nil {
		return 0, err
	}
	n, err := store.CopyToTarget(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "copied ledger to target", logger.Int("rows", n))
	return n, nil
}

func (s *Service) ledger() (repository.Store, error) {
	c, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return c.store, nil
}

// components is what one batch needs, captured under the lock.
type components struct {
	store     repository.Store
	fetcher   connector.Fetcher
	publisher PublisherLookup
	pool      *workerpool.Pool
	sources   []config.Source
	logger    logger.Logger
}

// components must be called with s.mu held.
func (s *Service) components() components {
	return components{
		store:     s.store,
		fetcher:   s.fetcher,
		publisher: s.publisher,
		pool:      s.pool,
		sources:   s.sources,
		logger:    s.logger,
	}
}

func (s *Service) snapshot() (components, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return components{}, ErrNotStarted
	}
	return s.components(), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"sources":     len(s.sources),
	}
	if !s.started {
		return stats
	}

	queueLen := s.jobs.Len()
	stats["queueLength"] = queueLen
	stats["jobs"] = s.registry.len()
	metrics.UpdateJobQueueSize(queueLen)

	keys, entries, err := s.store.Count(context.Background())
	if err == nil {
		stats["ledgerKeys"] = keys
		stats["ledgerEntries"] = entries
	}
	return stats
}
