package repository_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/xsrledger/internal/adapters/repository"
	"github.com/okian/xsrledger/internal/domain/identity"
	"github.com/okian/xsrledger/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func request(keyValue, content string) repository.IngestRequest {
	return repository.IngestRequest{
		Key:         model.IdentityKey{KeyValue: keyValue, KeyValueHash: identity.Hash(keyValue)},
		ContentHash: identity.Hash(content),
		Metadata:    json.RawMessage(fmt.Sprintf(`{"content":%q}`, content)),
	}
}

// steppingClock returns a clock that advances one second per call.
func steppingClock() func() time.Time {
	var n atomic.Int64
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		return base.Add(time.Duration(n.Add(1)) * time.Second)
	}
}

func TestMemStoreTransitions(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty MemStore", t, func() {
		store := repository.NewMemStore(repository.WithClock(steppingClock()))
		defer store.Close()

		Convey("When a new key is ingested", func() {
			tr, err := store.Ingest(ctx, request("X1C10_ACE", "v1"))

			Convey("Then it is inserted as Active", func() {
				So(err, ShouldBeNil)
				So(tr.Kind, ShouldEqual, model.TransitionInserted)
				So(tr.Previous, ShouldBeNil)
				So(tr.Entry.Status, ShouldEqual, model.StatusActive)
				So(tr.Entry.SourceMetadataKey, ShouldEqual, "X1C10_ACE")
				So(tr.Entry.DeactivatedAt, ShouldBeNil)
				So(string(tr.Entry.SourceMetadata), ShouldEqual, `{"content":"v1"}`)

				keys, entries, err := store.Count(ctx)
				So(err, ShouldBeNil)
				So(keys, ShouldEqual, 1)
				So(entries, ShouldEqual, 1)
			})
		})

		Convey("When the same content is ingested again", func() {
			first, _ := store.Ingest(ctx, request("X1C10_ACE", "v1"))
			second, err := store.Ingest(ctx, request("X1C10_ACE", "v1"))

			Convey("Then nothing changes", func() {
				So(err, ShouldBeNil)
				So(second.Kind, ShouldEqual, model.TransitionUnchanged)
				So(second.Entry.ID, ShouldEqual, first.Entry.ID)

				history, err := store.History(ctx, identity.Hash("X1C10_ACE"))
				So(err, ShouldBeNil)
				So(history, ShouldHaveLength, 1)
			})
		})

		Convey("When changed content is ingested", func() {
			first, _ := store.Ingest(ctx, request("X1C10_ACE", "v1"))
			tr, err := store.Ingest(ctx, request("X1C10_ACE", "v2"))

			Convey("Then the old entry is deactivated and the new one is Active", func() {
				So(err, ShouldBeNil)
				So(tr.Kind, ShouldEqual, model.TransitionSuperseded)
				So(tr.Previous, ShouldNotBeNil)
				So(tr.Previous.ID, ShouldEqual, first.Entry.ID)
				So(tr.Previous.Status, ShouldEqual, model.StatusInactive)
				So(tr.Previous.DeactivatedAt.Equal(tr.Entry.CreatedAt), ShouldBeTrue)

				history, err := store.History(ctx, identity.Hash("X1C10_ACE"))
				So(err, ShouldBeNil)
				So(history, ShouldHaveLength, 2)
				So(history[0].Status, ShouldEqual, model.StatusInactive)
				So(history[1].Status, ShouldEqual, model.StatusActive)
				So(history[1].SourceMetadataHash, ShouldEqual, identity.Hash("v2"))

				active, err := store.Active(ctx, identity.Hash("X1C10_ACE"))
				So(err, ShouldBeNil)
				So(active.ID, ShouldEqual, tr.Entry.ID)
			})
		})

		Convey("When content flips back to an older version", func() {
			for _, v := range []string{"v1", "v2", "v1"} {
				_, err := store.Ingest(ctx, request("X1C10_ACE", v))
				So(err, ShouldBeNil)
			}

			Convey("Then a third entry is appended and history is kept", func() {
				history, _ := store.History(ctx, identity.Hash("X1C10_ACE"))
				So(history, ShouldHaveLength, 3)
				active := 0
				for _, e := range history {
					if e.Active() {
						active++
					}
				}
				So(active, ShouldEqual, 1)
				So(history[2].SourceMetadataHash, ShouldEqual, identity.Hash("v1"))
			})
		})

		Convey("When looking up an unknown key", func() {
			_, err := store.History(ctx, "missing")
			_, aerr := store.Active(ctx, "missing")

			Convey("Then ErrNotFound is returned", func() {
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				So(errors.Is(aerr, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the request has no hashes", func() {
			_, err := store.Ingest(ctx, repository.IngestRequest{})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, repository.ErrInvalidRequest), ShouldBeTrue)
			})
		})

		Convey("When a returned entry is modified by the caller", func() {
			tr, _ := store.Ingest(ctx, request("X1C10_ACE", "v1"))
			tr.Entry.SourceMetadata[0] = 'X'
			tr.Entry.Status = model.StatusInactive

			Convey("Then the stored entry is untouched", func() {
				active, err := store.Active(ctx, identity.Hash("X1C10_ACE"))
				So(err, ShouldBeNil)
				So(string(active.SourceMetadata), ShouldEqual, `{"content":"v1"}`)
			})
		})
	})
}

func TestMemStoreFailures(t *testing.T) {
	Convey("Given a closed MemStore", t, func() {
		store := repository.NewMemStore()
		So(store.Close(), ShouldBeNil)

		Convey("When ingesting", func() {
			_, err := store.Ingest(context.Background(), request("K", "v1"))

			Convey("Then a permanent StorageError is returned", func() {
				So(errors.Is(err, repository.ErrStorage), ShouldBeTrue)
				So(errors.Is(err, repository.ErrClosed), ShouldBeTrue)
				var se *repository.StorageError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Retryable(), ShouldBeFalse)
			})
		})

		Convey("When copying to target", func() {
			_, err := store.CopyToTarget(context.Background(), time.Now())

			Convey("Then retrying is pointless too", func() {
				var se *repository.StorageError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Retryable(), ShouldBeFalse)
			})
		})
	})

	Convey("Given a canceled context", t, func() {
		store := repository.NewMemStore()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Convey("When ingesting", func() {
			_, err := store.Ingest(ctx, request("K", "v1"))

			Convey("Then the StorageError is not retryable", func() {
				var se *repository.StorageError
				So(errors.As(err, &se), ShouldBeTrue)
				So(se.Retryable(), ShouldBeFalse)
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}

func TestMemStoreConcurrentIngest(t *testing.T) {
	Convey("Given many writers racing on one key with different content", t, func() {
		store := repository.NewMemStore(repository.WithShardCount(4))
		ctx := context.Background()
		const writers = 50

		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _ = store.Ingest(ctx, request("HOT_KEY", fmt.Sprintf("v%d", i)))
			}(i)
		}
		wg.Wait()

		Convey("Then exactly one entry is Active and none is lost", func() {
			history, err := store.History(ctx, identity.Hash("HOT_KEY"))
			So(err, ShouldBeNil)
			So(history, ShouldHaveLength, writers)

			active := 0
			for _, e := range history {
				if e.Active() {
					active++
				} else {
					So(e.DeactivatedAt, ShouldNotBeNil)
				}
			}
			So(active, ShouldEqual, 1)
		})
	})

	Convey("Given many writers on distinct keys", t, func() {
		store := repository.NewMemStore()
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 200; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _ = store.Ingest(ctx, request(fmt.Sprintf("K%d", i), "v1"))
			}(i)
		}
		wg.Wait()

		Convey("Then every key gets its own Active entry", func() {
			keys, entries, err := store.Count(ctx)
			So(err, ShouldBeNil)
			So(keys, ShouldEqual, 200)
			So(entries, ShouldEqual, 200)
		})
	})
}

func TestMemStoreCopyToTarget(t *testing.T) {
	Convey("Given a ledger with history", t, func() {
		store := repository.NewMemStore()
		ctx := context.Background()
		_, _ = store.Ingest(ctx, request("A", "v1"))
		_, _ = store.Ingest(ctx, request("A", "v2"))
		_, _ = store.Ingest(ctx, request("B", "v1"))

		Convey("When copying to target", func() {
			now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
			n, err := store.CopyToTarget(ctx, now)

			Convey("Then every row mirrors its source identity", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 3)

				history, _ := store.History(ctx, identity.Hash("A"))
				for _, e := range history {
					So(e.TargetMetadataKey, ShouldEqual, e.SourceMetadataKey)
					So(e.TargetMetadataKeyHash, ShouldEqual, e.SourceMetadataKeyHash)
					So(e.TargetMetadataHash, ShouldEqual, e.SourceMetadataHash)
					So(string(e.TargetMetadata), ShouldEqual, string(e.SourceMetadata))
					So(e.TransformedAt.Equal(now), ShouldBeTrue)
				}
			})
		})
	})
}

func TestStorageErrorRetryable(t *testing.T) {
	Convey("Given storage errors of different causes", t, func() {
		cases := map[string]bool{
			"transient": (&repository.StorageError{Op: "insert", Err: errors.New("connection reset")}).Retryable(),
			"closed":    (&repository.StorageError{Op: "insert", Err: repository.ErrClosed}).Retryable(),
			"canceled":  (&repository.StorageError{Op: "insert", Err: context.Canceled}).Retryable(),
			"deadline":  (&repository.StorageError{Op: "insert", Err: fmt.Errorf("lock: %w", context.DeadlineExceeded)}).Retryable(),
		}

		Convey("Then only the transient one is worth another attempt", func() {
			So(cases["transient"], ShouldBeTrue)
			So(cases["closed"], ShouldBeFalse)
			So(cases["canceled"], ShouldBeFalse)
			So(cases["deadline"], ShouldBeFalse)
		})
	})
}
