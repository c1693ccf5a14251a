package repository

import (
	"time"

	"github.com/google/uuid"
)

const defaultShardCount = 32

type options struct {
	shards int
	now    func() time.Time
	newID  func() uuid.UUID
}

func defaultOptions() *options {
	return &options{
		shards: defaultShardCount,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.New,
	}
}

// Option configures a Store.
type Option func(*options)

// WithShardCount sets how many lock shards the in-memory store uses.
func WithShardCount(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.shards = n
		}
	}
}

// WithClock overrides the time source used for created and deactivated
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator overrides entry id generation.
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(o *options) {
		if gen != nil {
			o.newID = gen
		}
	}
}
