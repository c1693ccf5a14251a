// Package stream publishes ledger mutations for downstream export stages.
package stream

import (
	"context"
	"encoding/json"
	"time"

	"github.com/okian/xsrledger/internal/domain/model"
	"github.com/okian/xsrledger/pkg/logger"
	"github.com/okian/xsrledger/pkg/metrics"
)

// Mutation is one change to the ledger: an Active insert, or an Active
// insert together with the entry it deactivated.
type Mutation struct {
	Source     string               `json:"source"`
	Kind       model.TransitionKind `json:"kind"`
	KeyHash    string               `json:"key_value_hash"`
	Entry      model.LedgerEntry    `json:"entry"`
	Previous   *model.LedgerEntry   `json:"previous,omitempty"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// FromTransition builds the mutation for tr. Unchanged transitions mutate
// nothing and yield false.
func FromTransition(source string, tr model.Transition) (Mutation, bool) {
	if tr.Kind == model.TransitionUnchanged {
		return Mutation{}, false
	}
	return Mutation{
		Source:     source,
		Kind:       tr.Kind,
		KeyHash:    tr.Entry.SourceMetadataKeyHash,
		Entry:      tr.Entry,
		Previous:   tr.Previous,
		OccurredAt: tr.Entry.CreatedAt,
	}, true
}

// Sink receives ledger mutations.
type Sink interface {
	Publish(ctx context.Context, m Mutation) error
	Close() error
}

// LogSink writes mutations to the log. Used when no broker is configured.
type LogSink struct {
	logger logger.Logger
}

// NewLogSink returns a Sink that logs at debug level.
func NewLogSink(l logger.Logger) *LogSink {
	if l == nil {
		l = logger.Get().Named("stream")
	}
	return &LogSink{logger: l}
}

// Publish implements Sink.
func (s *LogSink) Publish(ctx context.Context, m Mutation) error {
	b, err := json.Marshal(m)
	if err != nil {
		metrics.RecordStreamError()
		return err
	}
	s.logger.Debug(ctx, "ledger mutation",
		logger.String("source_name", m.Source),
		logger.String("kind", string(m.Kind)),
		logger.String("key_value_hash", m.KeyHash),
		logger.Int("bytes", len(b)),
	)
	metrics.RecordStreamPublished()
	return nil
}

// Close implements Sink.
func (s *LogSink) Close() error { return nil }
