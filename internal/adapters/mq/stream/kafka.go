package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/okian/xsrledger/internal/domain/model"
	"github.com/okian/xsrledger/pkg/metrics"
)

// ErrNoBrokers is returned when a Kafka sink is built without seed brokers.
var ErrNoBrokers = errors.New("kafka sink needs at least one broker")

// KafkaSink produces mutations to one topic, keyed by key hash so every
// version of a record lands on the same partition in order.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSink connects to brokers. Extra client options are appended.
func NewKafkaSink(brokers []string, topic string, opts ...kgo.Opt) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: topic}, nil
}

// Publish implements Sink. It waits for the broker ack.
func (s *KafkaSink) Publish(ctx context.Context, m Mutation) error {
	value, err := json.Marshal(m)
	if err != nil {
		metrics.RecordStreamError()
		return err
	}
	rec := &kgo.Record{
		Key:   []byte(m.KeyHash),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "kind", Value: []byte(m.Kind)},
			{Key: "source", Value: []byte(m.Source)},
		},
	}
	if err := s.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		metrics.RecordStreamError()
		return fmt.Errorf("produce to %s: %w", s.topic, err)
	}
	metrics.RecordStreamPublished()
	return nil
}

// Close flushes pending records and closes the client.
func (s *KafkaSink) Close() error {
	s.client.Close()
	return nil
}

// Decode parses a produced record value.
func Decode(value []byte) (Mutation, error) {
	var m Mutation
	if err := json.Unmarshal(value, &m); err != nil {
		return Mutation{}, err
	}
	if m.Kind != model.TransitionInserted && m.Kind != model.TransitionSuperseded {
		return Mutation{}, fmt.Errorf("unexpected mutation kind %q", m.Kind)
	}
	return m, nil
}
