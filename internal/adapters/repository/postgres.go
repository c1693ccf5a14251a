package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/xsrledger/internal/domain/model"
	"github.com/okian/xsrledger/pkg/metrics"
)

const schema = `
CREATE TABLE IF NOT EXISTS xsr_ledger (
	id                                   UUID PRIMARY KEY,
	source_metadata_key                  TEXT NOT NULL,
	source_metadata_key_hash             TEXT NOT NULL,
	source_metadata_hash                 TEXT NOT NULL,
	source_metadata                      JSON NOT NULL,
	record_lifecycle_status              TEXT NOT NULL CHECK (record_lifecycle_status IN ('Active', 'Inactive')),
	created_at                           TIMESTAMPTZ NOT NULL,
	deactivated_at                       TIMESTAMPTZ,
	target_metadata_key                  TEXT,
	target_metadata_key_hash             TEXT,
	target_metadata_hash                 TEXT,
	target_metadata                      JSON,
	source_metadata_transformation_date  TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS xsr_ledger_one_active
	ON xsr_ledger (source_metadata_key_hash) WHERE record_lifecycle_status = 'Active';
CREATE INDEX IF NOT EXISTS xsr_ledger_history
	ON xsr_ledger (source_metadata_key_hash, created_at);
`

const entryColumns = `id, source_metadata_key, source_metadata_key_hash, source_metadata_hash,
	source_metadata, record_lifecycle_status, created_at, deactivated_at,
	COALESCE(target_metadata_key, ''), COALESCE(target_metadata_key_hash, ''),
	COALESCE(target_metadata_hash, ''), target_metadata, source_metadata_transformation_date`

// PostgresStore keeps the ledger in PostgreSQL. Ingests of one key are
// serialized with a transaction scoped advisory lock; the partial unique
// index rejects a second Active row should anything bypass it.
type PostgresStore struct {
	pool *pgxpool.Pool
	opts *options
	own  bool
}

// NewPostgresStore connects to dsn, verifies the connection and applies the
// schema.
func NewPostgresStore(ctx context.Context, dsn string, opts ...Option) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse ledger dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, storageErr("connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, storageErr("ping", err)
	}
	s, err := NewPostgresStoreFromPool(ctx, pool, opts...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.own = true
	return s, nil
}

// NewPostgresStoreFromPool uses an existing pool. Close leaves the pool open.
func NewPostgresStoreFromPool(ctx context.Context, pool *pgxpool.Pool, opts ...Option) (*PostgresStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, storageErr("migrate", err)
	}
	return &PostgresStore{pool: pool, opts: o}, nil
}

// Ingest implements Store.
func (s *PostgresStore) Ingest(ctx context.Context, req IngestRequest) (model.Transition, error) {
	start := time.Now()
	if err := req.validate(); err != nil {
		return model.Transition{}, err
	}
	tr, err := s.ingest(ctx, req)
	if err != nil {
		metrics.RecordLedgerError()
		return model.Transition{}, err
	}
	metrics.RecordLedgerTransition(string(tr.Kind), time.Since(start).Seconds())
	return tr, nil
}

func (s *PostgresStore) ingest(ctx context.Context, req IngestRequest) (model.Transition, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.Transition{}, storageErr("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	keyHash := req.Key.KeyValueHash
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, keyHash); err != nil {
		return model.Transition{}, storageErr("lock", err)
	}

	var active *model.LedgerEntry
	row := tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM xsr_ledger
		WHERE source_metadata_key_hash = $1 AND record_lifecycle_status = 'Active'
		FOR UPDATE`, keyHash)
	cur, err := scanEntry(row)
	switch {
	case err == nil:
		active = &cur
	case !errors.Is(err, pgx.ErrNoRows):
		return model.Transition{}, storageErr("select_active", err)
	}

	kind := decide(active, req)
	if kind == model.TransitionUnchanged {
		return model.Transition{Kind: kind, Entry: *active}, nil
	}

	now := s.opts.now()
	tr := model.Transition{Kind: kind}
	if active != nil {
		if _, err := tx.Exec(ctx, `UPDATE xsr_ledger
			SET record_lifecycle_status = 'Inactive', deactivated_at = $2
			WHERE id = $1`, active.ID, now); err != nil {
			return model.Transition{}, storageErr("deactivate", err)
		}
		active.Status = model.StatusInactive
		active.DeactivatedAt = &now
		tr.Previous = active
	}

	e := newEntry(s.opts, req, now)
	if _, err := tx.Exec(ctx, `INSERT INTO xsr_ledger
		(id, source_metadata_key, source_metadata_key_hash, source_metadata_hash,
		 source_metadata, record_lifecycle_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.SourceMetadataKey, e.SourceMetadataKeyHash, e.SourceMetadataHash,
		string(e.SourceMetadata), string(e.Status), e.CreatedAt); err != nil {
		return model.Transition{}, storageErr("insert", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Transition{}, storageErr("commit", err)
	}
	tr.Entry = e
	return tr, nil
}

// History implements Store.
func (s *PostgresStore) History(ctx context.Context, keyHash string) ([]model.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+entryColumns+` FROM xsr_ledger
		WHERE source_metadata_key_hash = $1
		ORDER BY created_at, record_lifecycle_status DESC`, keyHash)
	if err != nil {
		return nil, storageErr("history", err)
	}
	defer rows.Close()

	var out []model.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, storageErr("history", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("history", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// Active implements Store.
func (s *PostgresStore) Active(ctx context.Context, keyHash string) (model.LedgerEntry, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM xsr_ledger
		WHERE source_metadata_key_hash = $1 AND record_lifecycle_status = 'Active'`, keyHash)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.LedgerEntry{}, ErrNotFound
	}
	if err != nil {
		return model.LedgerEntry{}, storageErr("active", err)
	}
	return e, nil
}

// Count implements Store.
func (s *PostgresStore) Count(ctx context.Context) (int, int, error) {
	var keys, entries int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT source_metadata_key_hash), COUNT(*) FROM xsr_ledger`).Scan(&keys, &entries)
	if err != nil {
		return 0, 0, storageErr("count", err)
	}
	return keys, entries, nil
}

// CopyToTarget implements Store.
func (s *PostgresStore) CopyToTarget(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE xsr_ledger SET
		target_metadata_key = source_metadata_key,
		target_metadata_key_hash = source_metadata_key_hash,
		target_metadata_hash = source_metadata_hash,
		target_metadata = source_metadata,
		source_metadata_transformation_date = $1`, now)
	if err != nil {
		return 0, storageErr("copy_to_target", err)
	}
	return int(tag.RowsAffected()), nil
}

// Close releases the pool if the store opened it.
func (s *PostgresStore) Close() error {
	if s.own {
		s.pool.Close()
	}
	return nil
}

func scanEntry(row pgx.Row) (model.LedgerEntry, error) {
	var (
		e              model.LedgerEntry
		status         string
		source, target []byte
	)
	err := row.Scan(
		&e.ID, &e.SourceMetadataKey, &e.SourceMetadataKeyHash, &e.SourceMetadataHash,
		&source, &status, &e.CreatedAt, &e.DeactivatedAt,
		&e.TargetMetadataKey, &e.TargetMetadataKeyHash, &e.TargetMetadataHash,
		&target, &e.TransformedAt,
	)
	if err != nil {
		return model.LedgerEntry{}, err
	}
	e.Status = model.Status(status)
	e.SourceMetadata = source
	e.TargetMetadata = target
	return e, nil
}
