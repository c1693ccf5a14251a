package stream_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/okian/xsrledger/internal/adapters/mq/stream"
	"github.com/okian/xsrledger/internal/domain/model"
	"github.com/okian/xsrledger/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func entry(status model.Status) model.LedgerEntry {
	return model.LedgerEntry{
		ID:                    uuid.New(),
		SourceMetadataKey:     "X1C10_ACE",
		SourceMetadataKeyHash: "kh",
		SourceMetadataHash:    "ch",
		SourceMetadata:        json.RawMessage(`{"key_val":"X1C10"}`),
		Status:                status,
		CreatedAt:             time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestFromTransition(t *testing.T) {
	Convey("Given ledger transitions", t, func() {
		Convey("When the record was unchanged", func() {
			_, ok := stream.FromTransition("ace", model.Transition{Kind: model.TransitionUnchanged, Entry: entry(model.StatusActive)})

			Convey("Then there is nothing to publish", func() {
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the record superseded another", func() {
			prev := entry(model.StatusInactive)
			m, ok := stream.FromTransition("ace", model.Transition{
				Kind:     model.TransitionSuperseded,
				Entry:    entry(model.StatusActive),
				Previous: &prev,
			})

			Convey("Then the mutation carries both entries", func() {
				So(ok, ShouldBeTrue)
				So(m.Source, ShouldEqual, "ace")
				So(m.KeyHash, ShouldEqual, "kh")
				So(m.Previous.ID, ShouldEqual, prev.ID)
				So(m.OccurredAt.Equal(m.Entry.CreatedAt), ShouldBeTrue)
			})

			Convey("And it survives a round trip through the wire form", func() {
				b, err := json.Marshal(m)
				So(err, ShouldBeNil)
				back, err := stream.Decode(b)
				So(err, ShouldBeNil)
				So(back.Entry.ID, ShouldEqual, m.Entry.ID)
				So(back.Kind, ShouldEqual, model.TransitionSuperseded)
			})
		})
	})

	Convey("Given a value that is not a mutation", t, func() {
		_, err := stream.Decode([]byte(`{"kind":"unchanged"}`))
		So(err, ShouldNotBeNil)
	})
}

func TestLogSink(t *testing.T) {
	Convey("Given a LogSink writing debug logs", t, func() {
		var buf bytes.Buffer
		So(logger.Init(logger.WithOutput(&buf), logger.WithFormat("json")), ShouldBeNil)
		So(logger.SetLevelString("debug"), ShouldBeNil)
		defer func() { _ = logger.SetLevelString("info") }()

		sink := stream.NewLogSink(nil)
		m, _ := stream.FromTransition("ace", model.Transition{Kind: model.TransitionInserted, Entry: entry(model.StatusActive)})

		Convey("When publishing", func() {
			err := sink.Publish(context.Background(), m)

			Convey("Then one log line names the key", func() {
				So(err, ShouldBeNil)
				So(buf.String(), ShouldContainSubstring, `"key_value_hash":"kh"`)
				So(buf.String(), ShouldContainSubstring, `"kind":"inserted"`)
				So(sink.Close(), ShouldBeNil)
			})
		})
	})
}

func TestKafkaSinkConfig(t *testing.T) {
	Convey("Given no brokers", t, func() {
		_, err := stream.NewKafkaSink(nil, "xsr.ledger.mutations")
		So(errors.Is(err, stream.ErrNoBrokers), ShouldBeTrue)
	})
}
