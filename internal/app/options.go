package service

import (
	"github.com/okian/xsrledger/internal/adapters/connector"
	"github.com/okian/xsrledger/internal/adapters/mq/stream"
	"github.com/okian/xsrledger/internal/adapters/repository"
	"github.com/okian/xsrledger/internal/config"
	"github.com/okian/xsrledger/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of record workers per batch.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets how many workflow jobs may wait.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds in-batch duplicate suppression.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithShardCount sets the lock shards of the default in-memory ledger.
func WithShardCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.shardCount = count
		}
	}
}

// WithStore sets the ledger. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithFetcher sets the connector used to read sources.
func WithFetcher(f connector.Fetcher) Option {
	return func(s *Service) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithSink sets where ledger mutations are published. The service closes
// it on Stop.
func WithSink(sink stream.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithPublisher sets a fixed source-system discriminator.
func WithPublisher(name string) Option {
	return func(s *Service) {
		s.publisher = StaticPublisher(name)
	}
}

// WithPublisherLookup sets how the source-system discriminator is resolved.
func WithPublisherLookup(p PublisherLookup) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithSources sets the source registry.
func WithSources(sources ...config.Source) Option {
	return func(s *Service) {
		s.sources = append([]config.Source(nil), sources...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
