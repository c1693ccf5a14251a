package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a ledger entry.
type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

// IdentityKey is the stable business identity of a record.
type IdentityKey struct {
	KeyValue     string `json:"key_value"`
	KeyValueHash string `json:"key_value_hash"`
}

// LedgerEntry is one persisted version of a record. At most one entry per
// SourceMetadataKeyHash is Active; Inactive entries are never removed.
type LedgerEntry struct {
	ID                    uuid.UUID       `json:"id"`
	SourceMetadataKey     string          `json:"source_metadata_key"`
	SourceMetadataKeyHash string          `json:"source_metadata_key_hash"`
	SourceMetadataHash    string          `json:"source_metadata_hash"`
	SourceMetadata        json.RawMessage `json:"source_metadata"`
	Status                Status          `json:"record_lifecycle_status"`
	CreatedAt             time.Time       `json:"created_at"`
	DeactivatedAt         *time.Time      `json:"deactivated_at,omitempty"`

	// Populated by a copy-to-target pass.
	TargetMetadataKey     string          `json:"target_metadata_key,omitempty"`
	TargetMetadataKeyHash string          `json:"target_metadata_key_hash,omitempty"`
	TargetMetadataHash    string          `json:"target_metadata_hash,omitempty"`
	TargetMetadata        json.RawMessage `json:"target_metadata,omitempty"`
	TransformedAt         *time.Time      `json:"source_metadata_transformation_date,omitempty"`
}

// Active reports whether the entry is the current version.
func (e *LedgerEntry) Active() bool { return e.Status == StatusActive }

// TransitionKind names what an ingest did to the ledger.
type TransitionKind string

const (
	TransitionInserted   TransitionKind = "inserted"
	TransitionUnchanged  TransitionKind = "unchanged"
	TransitionSuperseded TransitionKind = "superseded"
)

// Transition is the outcome of one ingest. Previous is set only when an
// Active entry was superseded.
type Transition struct {
	Kind     TransitionKind `json:"kind"`
	Entry    LedgerEntry    `json:"entry"`
	Previous *LedgerEntry   `json:"previous,omitempty"`
}
