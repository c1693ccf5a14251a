// Package dedupe suppresses records that were already handed to the ledger
// with identical content.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

const defaultMaxSize = 50_000

// Deduper remembers record fingerprints.
type Deduper interface {
	// SeenAndRecord reports whether fp was already recorded and records it
	// if not. The check and the insert are atomic.
	SeenAndRecord(ctx context.Context, fp string) bool

	// Unrecord forgets fp so a later attempt is not suppressed. Used when
	// the ledger write for fp failed.
	Unrecord(ctx context.Context, fp string)

	Size() int64
}

// Fingerprint combines the identity key hash and the content hash. Two
// records with the same fingerprint would produce the same ledger outcome.
func Fingerprint(keyHash, contentHash string) string {
	return keyHash + ":" + contentHash
}

type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front is newest
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper returns a process local Deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, fp string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[fp]; ok {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}
	d.seen[fp] = d.order.PushFront(fp)
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, fp string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[fp]; ok {
		d.order.Remove(el)
		delete(d.seen, fp)
		d.size.Add(-1)
	}
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	el := d.order.Back()
	if el == nil {
		return
	}
	d.order.Remove(el)
	delete(d.seen, el.Value.(string))
	d.size.Add(-1)
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
