package snapshot

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/talent-sync/internal/db"
	"github.com/sells-group/talent-sync/internal/model"
)

const pgSnapshotTable = "snapshot_candidates"

const pgSnapshotMigration = `
CREATE TABLE IF NOT EXISTS snapshot_candidates (
	id         TEXT PRIMARY KEY,
	position   INTEGER NOT NULL,
	status     TEXT NOT NULL,
	updated_at TIMESTAMPTZ,
	data       JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshot_candidates_position ON snapshot_candidates(position);
CREATE INDEX IF NOT EXISTS idx_snapshot_candidates_status ON snapshot_candidates(status);
`

// PostgresPersister keeps the snapshot in a Postgres table. Records are never
// removed from a snapshot, so Save upserts every record by id.
type PostgresPersister struct {
	pool db.Pool
}

// NewPostgresPersister wraps an existing pool.
func NewPostgresPersister(pool db.Pool) *PostgresPersister {
	return &PostgresPersister{pool: pool}
}

// OpenPostgresPersister connects to url and ensures the table exists.
func OpenPostgresPersister(ctx context.Context, url string) (*PostgresPersister, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: postgres connect")
	}
	p := &PostgresPersister{pool: pool}
	if err := p.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// Migrate creates the snapshot table.
func (p *PostgresPersister) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, pgSnapshotMigration)
	return eris.Wrap(err, "snapshot: postgres migrate")
}

// Close releases the pool.
func (p *PostgresPersister) Close() error {
	p.pool.Close()
	return nil
}

// Load returns the stored candidates in their saved order.
func (p *PostgresPersister) Load(ctx context.Context) ([]model.Candidate, error) {
	rows, err := p.pool.Query(ctx, `SELECT data FROM snapshot_candidates ORDER BY position`)
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: postgres query")
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "snapshot: postgres scan")
		}
		var c model.Candidate
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, eris.Wrap(err, "snapshot: postgres decode")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "snapshot: postgres rows")
}

// Save upserts every record in one transaction.
func (p *PostgresPersister) Save(ctx context.Context, records []model.Candidate) error {
	rows := make([][]any, 0, len(records))
	for i, c := range records {
		data, err := json.Marshal(c)
		if err != nil {
			return eris.Wrapf(err, "snapshot: encode %s", c.ID)
		}
		var updated any
		if !c.UpdatedAt.IsZero() {
			updated = c.UpdatedAt.UTC()
		}
		rows = append(rows, []any{c.ID, i, string(c.EnrichmentStatus), updated, data})
	}

	_, err := db.BulkUpsert(ctx, p.pool, db.UpsertConfig{
		Table:        pgSnapshotTable,
		Columns:      []string{"id", "position", "status", "updated_at", "data"},
		ConflictKeys: []string{"id"},
	}, rows)
	return eris.Wrap(err, "snapshot: postgres save")
}
