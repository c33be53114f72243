package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite" // register driver

	"github.com/sells-group/talent-sync/internal/model"
)

// SQLitePersister keeps the snapshot in a SQLite table, one JSON document
// per candidate. Save replaces the table contents inside one transaction.
type SQLitePersister struct {
	db *sql.DB
}

// NewSQLitePersister opens (or creates) the database at dsn.
func NewSQLitePersister(ctx context.Context, dsn string) (*SQLitePersister, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=FULL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "snapshot: sqlite exec %s", pragma)
		}
	}
	p := &SQLitePersister{db: db}
	if err := p.migrate(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return p, nil
}

const snapshotMigration = `
CREATE TABLE IF NOT EXISTS candidates (
	id         TEXT PRIMARY KEY,
	position   INTEGER NOT NULL,
	status     TEXT NOT NULL,
	updated_at DATETIME,
	data       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_candidates_position ON candidates(position);
CREATE INDEX IF NOT EXISTS idx_candidates_status ON candidates(status);
`

func (p *SQLitePersister) migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, snapshotMigration)
	return eris.Wrap(err, "snapshot: sqlite migrate")
}

// Close releases the database handle.
func (p *SQLitePersister) Close() error {
	return p.db.Close()
}

// Load returns the stored candidates in their saved order.
func (p *SQLitePersister) Load(ctx context.Context) ([]model.Candidate, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT data FROM candidates ORDER BY position`)
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: sqlite query")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Candidate
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "snapshot: sqlite scan")
		}
		var c model.Candidate
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, eris.Wrap(err, "snapshot: sqlite decode")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "snapshot: sqlite rows")
}

// Save replaces every stored candidate with records.
func (p *SQLitePersister) Save(ctx context.Context, records []model.Candidate) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "snapshot: sqlite begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM candidates`); err != nil {
		return eris.Wrap(err, "snapshot: sqlite clear")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO candidates (id, position, status, updated_at, data) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "snapshot: sqlite prepare")
	}
	defer stmt.Close() //nolint:errcheck

	for i, c := range records {
		data, err := json.Marshal(c)
		if err != nil {
			return eris.Wrapf(err, "snapshot: encode %s", c.ID)
		}
		var updated any
		if !c.UpdatedAt.IsZero() {
			updated = c.UpdatedAt.UTC().Format(time.RFC3339Nano)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, i, string(c.EnrichmentStatus), updated, string(data)); err != nil {
			return eris.Wrapf(err, "snapshot: sqlite insert %s", c.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "snapshot: sqlite commit")
}
