// Package worker runs record level work of a batch over a pool of
// goroutines: hashing, in-batch suppression, ledger transition and mutation
// publishing.
package worker

import (
	"context"
	"errors"
	"hash/fnv"
	"runtime"
	"strconv"
	"sync"

	"github.com/okian/xsrledger/internal/adapters/mq/stream"
	"github.com/okian/xsrledger/internal/adapters/repository"
	"github.com/okian/xsrledger/internal/domain/dedupe"
	"github.com/okian/xsrledger/internal/domain/identity"
	"github.com/okian/xsrledger/internal/domain/model"
	"github.com/okian/xsrledger/pkg/logger"
	"github.com/okian/xsrledger/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2
	defaultDedupeSize       = 100_000
	workerBacklog           = 64
)

// Ledger applies one record to the versioned ledger.
type Ledger interface {
	Ingest(ctx context.Context, req repository.IngestRequest) (model.Transition, error)
}

// Publisher receives ledger mutations.
type Publisher interface {
	Publish(ctx context.Context, m stream.Mutation) error
}

// Batch is the normalized output of one source payload.
type Batch struct {
	Source    string
	KeyFields []string
	Records   []model.NormalizedRecord
}

// Result tallies one batch. Report carries the drop and ledger counters.
type Result struct {
	Report model.BatchReport
	Drops  []model.Drop
}

// item is one record routed to a worker.
type item struct {
	id     string
	record *model.NormalizedRecord
	key    model.IdentityKey
}

// Pool processes batches. Records are routed to workers by key hash, so all
// versions of one key inside a batch reach the ledger in payload order.
type Pool struct {
	size       int
	ledger     Ledger
	sink       Publisher
	dedupeSize int
	logger     logger.Logger
}

// NewPool creates a pool writing to ledger.
func NewPool(ledger Ledger, opts ...Option) *Pool {
	p := &Pool{
		size:       runtime.NumCPU() * defaultWorkerMultiplier,
		ledger:     ledger,
		dedupeSize: defaultDedupeSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("worker-pool")
	}
	metrics.UpdateWorkerCount(p.size)
	return p
}

// Size returns the number of workers per batch.
func (p *Pool) Size() int { return p.size }

// Process runs every record of b through the ledger and waits for all of
// them. Records without a usable key are dropped. Storage failures do not
// stop the batch; they are joined into the returned error.
func (p *Pool) Process(ctx context.Context, b Batch) (Result, error) {
	agg := &aggregate{}
	seen := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(p.dedupeSize))

	lanes := make([]chan item, p.size)
	var wg sync.WaitGroup
	for i := range lanes {
		lanes[i] = make(chan item, workerBacklog)
		w := &worker{
			pool:   p,
			source: b.Source,
			seen:   seen,
			agg:    agg,
			logger: p.logger.Named("worker-" + strconv.Itoa(i)),
		}
		wg.Add(1)
		go func(in <-chan item) {
			defer wg.Done()
			w.run(ctx, in)
		}(lanes[i])
	}

dispatch:
	for i := range b.Records {
		if ctx.Err() != nil {
			break
		}
		rec := &b.Records[i]
		id := rec.Variant + ":" + rec.KeyVal
		key, err := identity.ComputeKey(rec, b.KeyFields)
		if err != nil {
			agg.drop(ctx, p.logger, b.Source, model.Drop{Reason: model.DropMissingKeyField, Identifier: id, Detail: err.Error()})
			continue
		}
		select {
		case lanes[lane(key.KeyValueHash, p.size)] <- item{id: id, record: rec, key: key}:
		case <-ctx.Done():
			break dispatch
		}
	}
	for _, l := range lanes {
		close(l)
	}
	wg.Wait()

	res, err := agg.result()
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = errors.Join(err, ctxErr)
	}
	return res, err
}

func lane(keyHash string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(keyHash))
	return int(h.Sum32() % uint32(n))
}

type worker struct {
	pool   *Pool
	source string
	seen   dedupe.Deduper
	agg    *aggregate
	logger logger.Logger
}

func (w *worker) run(ctx context.Context, in <-chan item) {
	for it := range in {
		if ctx.Err() != nil {
			continue
		}
		metrics.AddWorkerInFlight(1)
		w.process(ctx, it)
		metrics.AddWorkerInFlight(-1)
	}
}

func (w *worker) process(ctx context.Context, it item) {
	contentHash, canonical, err := identity.ContentHash(it.record)
	if err != nil {
		w.agg.drop(ctx, w.logger, w.source, model.Drop{Reason: model.DropHashFailed, Identifier: it.id, Detail: err.Error()})
		return
	}
	metrics.RecordHashComputed()
	w.logger.Debug(ctx, "hash computed",
		logger.String("source_name", w.source),
		logger.String("record", it.id),
		logger.String("key_value", it.key.KeyValue),
		logger.String("content_hash", contentHash),
	)

	fp := dedupe.Fingerprint(it.key.KeyValueHash, contentHash)
	if w.seen.SeenAndRecord(ctx, fp) {
		w.agg.drop(ctx, w.logger, w.source, model.Drop{Reason: model.DropDuplicateInBatch, Identifier: it.id})
		return
	}

	tr, err := w.pool.ledger.Ingest(ctx, repository.IngestRequest{
		Key:         it.key,
		ContentHash: contentHash,
		Metadata:    canonical,
	})
	if err != nil {
		w.seen.Unrecord(ctx, fp)
		w.agg.fail(err)
		w.logger.Error(ctx, "ledger ingest failed",
			logger.String("source_name", w.source),
			logger.String("record", it.id),
			logger.String("key_value", it.key.KeyValue),
			logger.Error(err),
		)
		return
	}
	w.agg.transition(tr.Kind)
	w.logger.Info(ctx, "transition applied",
		logger.String("source_name", w.source),
		logger.String("key_value", it.key.KeyValue),
		logger.String("kind", string(tr.Kind)),
	)

	if w.pool.sink == nil {
		return
	}
	if m, ok := stream.FromTransition(w.source, tr); ok {
		if err := w.pool.sink.Publish(ctx, m); err != nil {
			w.logger.Warn(ctx, "mutation not published",
				logger.String("source_name", w.source),
				logger.String("key_value", it.key.KeyValue),
				logger.Error(err),
			)
		}
	}
}

// aggregate collects worker results under one lock.
type aggregate struct {
	mu     sync.Mutex
	report model.BatchReport
	drops  []model.Drop
	errs   []error
}

func (a *aggregate) drop(ctx context.Context, l logger.Logger, source string, d model.Drop) {
	metrics.RecordDropped(d.Reason)
	l.Warn(ctx, "record dropped",
		logger.String("source_name", source),
		logger.String("reason", d.Reason),
		logger.String("record", d.Identifier),
		logger.String("detail", d.Detail),
	)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.report.Dropped++
	a.drops = append(a.drops, d)
}

func (a *aggregate) transition(kind model.TransitionKind) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.report.Add(kind)
}

func (a *aggregate) fail(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.report.Failed++
	a.errs = append(a.errs, err)
}

func (a *aggregate) result() (Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Result{Report: a.report, Drops: a.drops}, errors.Join(a.errs...)
}
