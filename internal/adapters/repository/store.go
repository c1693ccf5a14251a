// Package repository holds the versioned record ledger.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/okian/xsrledger/internal/domain/model"
)

// IngestRequest is one normalized record ready for the ledger.
type IngestRequest struct {
	Key         model.IdentityKey
	ContentHash string
	Metadata    json.RawMessage
}

func (r IngestRequest) validate() error {
	if r.Key.KeyValueHash == "" || r.ContentHash == "" {
		return fmt.Errorf("%w: key hash and content hash are required", ErrInvalidRequest)
	}
	return nil
}

// Store is the ledger. For every key hash at most one entry is Active and
// superseded entries are kept as Inactive forever.
type Store interface {
	// Ingest applies one record:
	//   - no entry for the key: insert Active
	//   - Active entry with the same content hash: nothing
	//   - Active entry with another content hash: flip it Inactive, insert Active
	// Concurrent ingests of the same key are serialized.
	Ingest(ctx context.Context, req IngestRequest) (model.Transition, error)

	// History returns every entry of a key, oldest first.
	// Returns ErrNotFound if the key is unknown.
	History(ctx context.Context, keyHash string) ([]model.LedgerEntry, error)

	// Active returns the current entry of a key.
	// Returns ErrNotFound if the key has no Active entry.
	Active(ctx context.Context, keyHash string) (model.LedgerEntry, error)

	// Count returns the number of keys and the total number of entries.
	Count(ctx context.Context) (keys, entries int, err error)

	// CopyToTarget mirrors source identity columns into target columns and
	// stamps the transformation time on every entry. Returns rows touched.
	CopyToTarget(ctx context.Context, now time.Time) (int, error)

	Close() error
}

// decide resolves the transition for req given the current Active entry.
func decide(active *model.LedgerEntry, req IngestRequest) model.TransitionKind {
	switch {
	case active == nil:
		return model.TransitionInserted
	case active.SourceMetadataHash == req.ContentHash:
		return model.TransitionUnchanged
	default:
		return model.TransitionSuperseded
	}
}

func newEntry(o *options, req IngestRequest, now time.Time) model.LedgerEntry {
	return model.LedgerEntry{
		ID:                    o.newID(),
		SourceMetadataKey:     req.Key.KeyValue,
		SourceMetadataKeyHash: req.Key.KeyValueHash,
		SourceMetadataHash:    req.ContentHash,
		SourceMetadata:        append(json.RawMessage(nil), req.Metadata...),
		Status:                model.StatusActive,
		CreatedAt:             now,
	}
}
