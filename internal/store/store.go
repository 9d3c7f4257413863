// Package store persists tracked mattress state in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sweeney/mattress-tracker/internal/mattress"
)

const schema = `
CREATE TABLE IF NOT EXISTS mattresses (
  entry_id         TEXT PRIMARY KEY,
  mattress_name    TEXT NOT NULL,
  side_1_name      TEXT NOT NULL,
  side_2_name      TEXT NOT NULL,
  current_side     TEXT NOT NULL,
  current_rotation TEXT NOT NULL,
  last_flip_date   TEXT,
  last_rotate_date TEXT,
  updated_at       INTEGER NOT NULL
)`

// Store persists mattress state in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns the persisted state of an entry. Returns false if none is stored.
func (s *Store) Load(ctx context.Context, entryID string) (mattress.State, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT mattress_name, side_1_name, side_2_name, current_side, current_rotation,
		        last_flip_date, last_rotate_date
		   FROM mattresses WHERE entry_id = ?`, entryID)

	var (
		st                mattress.State
		side, rotation    string
		lastFlip, lastRot sql.NullString
	)
	err := row.Scan(&st.Names.Mattress, &st.Names.Side1, &st.Names.Side2, &side, &rotation, &lastFlip, &lastRot)
	if errors.Is(err, sql.ErrNoRows) {
		return mattress.State{}, false, nil
	}
	if err != nil {
		return mattress.State{}, false, fmt.Errorf("load %s: %w", entryID, err)
	}

	st.Side = mattress.Side(side)
	st.Rotation = mattress.Rotation(rotation)
	if st.LastFlip, err = nullDate(lastFlip); err != nil {
		return mattress.State{}, false, fmt.Errorf("load %s last_flip_date: %w", entryID, err)
	}
	if st.LastRotate, err = nullDate(lastRot); err != nil {
		return mattress.State{}, false, fmt.Errorf("load %s last_rotate_date: %w", entryID, err)
	}
	return st, true, nil
}

// Save upserts the state of an entry.
func (s *Store) Save(ctx context.Context, entryID string, st mattress.State) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mattresses (
		   entry_id, mattress_name, side_1_name, side_2_name,
		   current_side, current_rotation, last_flip_date, last_rotate_date, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(entry_id) DO UPDATE SET
		   mattress_name = excluded.mattress_name,
		   side_1_name = excluded.side_1_name,
		   side_2_name = excluded.side_2_name,
		   current_side = excluded.current_side,
		   current_rotation = excluded.current_rotation,
		   last_flip_date = excluded.last_flip_date,
		   last_rotate_date = excluded.last_rotate_date,
		   updated_at = excluded.updated_at`,
		entryID,
		st.Names.Mattress,
		st.Names.Side1,
		st.Names.Side2,
		string(st.Side),
		string(st.Rotation),
		nullString(st.LastFlip),
		nullString(st.LastRotate),
		s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", entryID, err)
	}
	return nil
}

// Delete removes the state of an entry. Deleting an absent entry is not an error.
func (s *Store) Delete(ctx context.Context, entryID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM mattresses WHERE entry_id = ?`, entryID); err != nil {
		return fmt.Errorf("delete %s: %w", entryID, err)
	}
	return nil
}

// EntryIDs lists every stored entry.
func (s *Store) EntryIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entry_id FROM mattresses ORDER BY entry_id`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullString(d mattress.NullDate) sql.NullString {
	return sql.NullString{String: d.String(), Valid: d.Valid}
}

func nullDate(s sql.NullString) (mattress.NullDate, error) {
	if !s.Valid {
		return mattress.NullDate{}, nil
	}
	d, err := mattress.ParseDate(s.String)
	if err != nil {
		return mattress.NullDate{}, err
	}
	return mattress.Some(d), nil
}
