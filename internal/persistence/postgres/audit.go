// Package postgres keeps the ingestion audit log in PostgreSQL. Only metadata
// about each import is stored; the working set itself stays in memory.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/sitetracker/internal/tracker"
)

const schema = `CREATE TABLE IF NOT EXISTS import_log (
    import_id   BIGSERIAL PRIMARY KEY,
    source      TEXT        NOT NULL,
    name        TEXT        NOT NULL DEFAULT '',
    mode        TEXT        NOT NULL,
    lines       INTEGER     NOT NULL,
    accepted    INTEGER     NOT NULL,
    rejected    INTEGER     NOT NULL,
    total       INTEGER     NOT NULL,
    version     BIGINT      NOT NULL,
    imported_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS import_log_imported_at_idx ON import_log (imported_at DESC);`

// AuditStore records one row per ingestion.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore constructs an AuditStore.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// EnsureSchema creates the import_log table when missing.
func (s *AuditStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Record inserts the result of one ingestion.
func (s *AuditStore) Record(ctx context.Context, result tracker.ImportResult) error {
	const stmt = `INSERT INTO import_log (source, name, mode, lines, accepted, rejected, total, version, imported_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err := s.pool.Exec(ctx, stmt,
		result.Source,
		result.Name,
		result.Mode,
		result.Lines,
		result.Accepted,
		result.Rejected,
		result.Total,
		int64(result.Version),
		result.At,
	)
	return err
}

// Recent returns the latest ingestions, newest first.
func (s *AuditStore) Recent(ctx context.Context, limit int) ([]tracker.ImportResult, error) {
	const query = `SELECT source, name, mode, lines, accepted, rejected, total, version, imported_at
        FROM import_log ORDER BY imported_at DESC, import_id DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (tracker.ImportResult, error) {
		var (
			result  tracker.ImportResult
			version int64
		)
		err := row.Scan(&result.Source, &result.Name, &result.Mode, &result.Lines, &result.Accepted, &result.Rejected, &result.Total, &version, &result.At)
		result.Version = uint64(version)
		return result, err
	})
}
