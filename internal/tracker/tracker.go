package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Update is a row of the updates table: proof that a file was applied.
type Update struct {
	ID        int64
	Filename  string
	Checksum  string
	CreatedAt time.Time
}

// RecordParams contains the fields needed to record an update as applied.
type RecordParams struct {
	Filename string
	Checksum string
}

// Tracker manages the updates table.
type Tracker struct {
	pool *pgxpool.Pool
}

// New creates a Tracker backed by the given connection pool.
func New(pool *pgxpool.Pool) *Tracker {
	return &Tracker{pool: pool}
}

// EnsureTable creates the updates table if it does not exist.
func (t *Tracker) EnsureTable(ctx context.Context) error {
	_, err := t.pool.Exec(ctx, createSchemaSQL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTableCreation, err)
	}

	return nil
}

// Exists reports whether an update file has already been applied.
func (t *Tracker) Exists(ctx context.Context, filename string) (bool, error) {
	var exists bool

	err := t.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM updates WHERE update_filename = $1)`,
		filename,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking if update %s exists: %w", filename, err)
	}

	return exists, nil
}

// Record inserts the Update row for a file. Recording the same filename
// twice keeps the first row.
func (t *Tracker) Record(ctx context.Context, p RecordParams) error {
	if p.Filename == "" {
		return ErrEmptyFilename
	}

	_, err := t.pool.Exec(ctx,
		`INSERT INTO updates (update_filename, update_checksum)
		 VALUES ($1, $2)
		 ON CONFLICT (update_filename) DO NOTHING`,
		p.Filename, p.Checksum,
	)
	if err != nil {
		return fmt.Errorf("recording update %s: %w", p.Filename, err)
	}

	return nil
}

// List returns all applied updates in the order they were recorded.
func (t *Tracker) List(ctx context.Context) ([]Update, error) {
	rows, err := t.pool.Query(ctx,
		`SELECT update_id, update_filename, update_checksum, update_created
		 FROM updates
		 ORDER BY update_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying updates: %w", err)
	}
	defer rows.Close()

	updates, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Update, error) {
		var u Update
		if scanErr := row.Scan(&u.ID, &u.Filename, &u.Checksum, &u.CreatedAt); scanErr != nil {
			return Update{}, fmt.Errorf("scanning update row: %w", scanErr)
		}

		return u, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning updates: %w", err)
	}

	return updates, nil
}
