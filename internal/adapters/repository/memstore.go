package repository

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/xsrledger/internal/domain/model"
	"github.com/okian/xsrledger/pkg/metrics"
)

// MemStore keeps the ledger in process memory. Keys are spread over shards,
// each guarded by its own mutex, so ingests of one key are serialized while
// different keys proceed in parallel.
type MemStore struct {
	opts   *options
	shards []*shard
	closed atomic.Bool
}

type shard struct {
	mu      sync.RWMutex
	history map[string][]model.LedgerEntry // key hash -> entries, oldest first
}

// NewMemStore returns an empty in-memory ledger.
func NewMemStore(opts ...Option) *MemStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	s := &MemStore{opts: o, shards: make([]*shard, o.shards)}
	for i := range s.shards {
		s.shards[i] = &shard{history: make(map[string][]model.LedgerEntry)}
	}
	return s
}

func (s *MemStore) shardFor(keyHash string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(keyHash))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Ingest implements Store.
func (s *MemStore) Ingest(ctx context.Context, req IngestRequest) (model.Transition, error) {
	start := time.Now()
	if err := req.validate(); err != nil {
		return model.Transition{}, err
	}
	if s.closed.Load() {
		metrics.RecordLedgerError()
		return model.Transition{}, storageErr("ingest", ErrClosed)
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordLedgerError()
		return model.Transition{}, storageErr("ingest", err)
	}

	sh := s.shardFor(req.Key.KeyValueHash)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	entries := sh.history[req.Key.KeyValueHash]
	activeIdx := -1
	for i := range entries {
		if entries[i].Active() {
			activeIdx = i
			break
		}
	}
	var active *model.LedgerEntry
	if activeIdx >= 0 {
		active = &entries[activeIdx]
	}

	kind := decide(active, req)
	var tr model.Transition
	switch kind {
	case model.TransitionUnchanged:
		tr = model.Transition{Kind: kind, Entry: clone(*active)}
	case model.TransitionInserted, model.TransitionSuperseded:
		now := s.opts.now()
		if active != nil {
			active.Status = model.StatusInactive
			active.DeactivatedAt = &now
			prev := clone(*active)
			tr.Previous = &prev
		}
		e := newEntry(s.opts, req, now)
		sh.history[req.Key.KeyValueHash] = append(entries, e)
		tr.Kind = kind
		tr.Entry = clone(e)
	}
	metrics.RecordLedgerTransition(string(kind), time.Since(start).Seconds())
	return tr, nil
}

// History implements Store.
func (s *MemStore) History(_ context.Context, keyHash string) ([]model.LedgerEntry, error) {
	sh := s.shardFor(keyHash)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	entries, ok := sh.history[keyHash]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]model.LedgerEntry, len(entries))
	for i := range entries {
		out[i] = clone(entries[i])
	}
	return out, nil
}

// Active implements Store.
func (s *MemStore) Active(_ context.Context, keyHash string) (model.LedgerEntry, error) {
	sh := s.shardFor(keyHash)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	for _, e := range sh.history[keyHash] {
		if e.Active() {
			return clone(e), nil
		}
	}
	return model.LedgerEntry{}, ErrNotFound
}

// Count implements Store.
func (s *MemStore) Count(_ context.Context) (int, int, error) {
	var keys, entries int
	for _, sh := range s.shards {
		sh.mu.RLock()
		keys += len(sh.history)
		for _, h := range sh.history {
			entries += len(h)
		}
		sh.mu.RUnlock()
	}
	return keys, entries, nil
}

// CopyToTarget implements Store.
func (s *MemStore) CopyToTarget(_ context.Context, now time.Time) (int, error) {
	if s.closed.Load() {
		return 0, storageErr("copy_to_target", ErrClosed)
	}
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, h := range sh.history {
			for i := range h {
				project(&h[i], now)
				n++
			}
		}
		sh.mu.Unlock()
	}
	return n, nil
}

// Close marks the store closed. Reads keep working.
func (s *MemStore) Close() error {
	s.closed.Store(true)
	return nil
}

func project(e *model.LedgerEntry, now time.Time) {
	e.TargetMetadataKey = e.SourceMetadataKey
	e.TargetMetadataKeyHash = e.SourceMetadataKeyHash
	e.TargetMetadataHash = e.SourceMetadataHash
	e.TargetMetadata = append(json.RawMessage(nil), e.SourceMetadata...)
	t := now
	e.TransformedAt = &t
}

func clone(e model.LedgerEntry) model.LedgerEntry {
	e.SourceMetadata = append(json.RawMessage(nil), e.SourceMetadata...)
	if e.TargetMetadata != nil {
		e.TargetMetadata = append(json.RawMessage(nil), e.TargetMetadata...)
	}
	if e.DeactivatedAt != nil {
		t := *e.DeactivatedAt
		e.DeactivatedAt = &t
	}
	if e.TransformedAt != nil {
		t := *e.TransformedAt
		e.TransformedAt = &t
	}
	return e
}
