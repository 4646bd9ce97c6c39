package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"waitroom-intake/pkg"
)

// ErrRecordNotFound is returned by GetRecord for an unknown id.
var ErrRecordNotFound = errors.New("db: record not found")

const defaultListLimit = 50

// Repository stores confirmed questionnaires in Postgres.  When Channel is
// set every insert also notifies listeners with the new record's id.
type Repository struct {
	DB      *sql.DB
	Channel string
}

// NewRepository constructs a new Repository from an existing sql.DB.
// The caller is responsible for managing the DB connection lifecycle.
func NewRepository(db *sql.DB, channel string) *Repository {
	return &Repository{DB: db, Channel: channel}
}

// Put inserts the record.  The notification is sent in the same
// transaction, so listeners only hear about committed rows.
func (r *Repository) Put(ctx context.Context, rec pkg.Record) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO survey_records (id, user_id, username, report, brief, created_at)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.UserID, rec.Username, rec.Text, rec.Brief, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("db: insert record %s: %w", rec.ID, err)
	}
	if r.Channel != "" {
		if err := notifyRecord(ctx, tx, r.Channel, rec.ID); err != nil {
			return fmt.Errorf("db: notify record %s: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("db: commit record %s: %w", rec.ID, err)
	}
	return nil
}

// ListRecords returns the newest records first.
func (r *Repository) ListRecords(ctx context.Context, limit int) ([]pkg.RecordPreview, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, user_id, username, created_at
         FROM survey_records
         ORDER BY created_at DESC
         LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("db: list records: %w", err)
	}
	defer rows.Close()
	var out []pkg.RecordPreview
	for rows.Next() {
		var p pkg.RecordPreview
		if err := rows.Scan(&p.ID, &p.UserID, &p.Username, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetRecord loads a single record by id.
func (r *Repository) GetRecord(ctx context.Context, id string) (*pkg.Record, error) {
	var rec pkg.Record
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, username, report, brief, created_at
         FROM survey_records
         WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.UserID, &rec.Username, &rec.Text, &rec.Brief, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("db: get record %s: %w", id, err)
	}
	return &rec, nil
}

// AttachBrief stores the reviewer brief on an already saved record.
func (r *Repository) AttachBrief(ctx context.Context, id, brief string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE survey_records SET brief = $2 WHERE id = $1`, id, brief)
	if err != nil {
		return fmt.Errorf("db: attach brief %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRecordNotFound
	}
	return nil
}
