package worker

import (
	"github.com/okian/xsrledger/pkg/logger"
)

// Option configures a Pool.
type Option func(*Pool)

// WithSize sets how many workers process a batch.
func WithSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.size = n
		}
	}
}

// WithSink publishes every ledger mutation to s.
func WithSink(s Publisher) Option {
	return func(p *Pool) {
		if s != nil {
			p.sink = s
		}
	}
}

// WithDedupeSize bounds how many fingerprints a batch remembers for
// duplicate suppression. Zero or negative means unbounded.
func WithDedupeSize(n int) Option {
	return func(p *Pool) {
		p.dedupeSize = n
	}
}

// WithLogger sets a custom logger for the pool and its workers.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}
