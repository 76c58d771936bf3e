package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/okian/giteval/internal/domain/model"
	"github.com/okian/giteval/internal/domain/rank"
)

const usersSchema = `
CREATE TABLE IF NOT EXISTS users (
	external_identity TEXT PRIMARY KEY,
	linked_handle     TEXT NOT NULL,
	score             INTEGER NOT NULL CHECK (score >= 0),
	rank              TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_users_handle ON users (LOWER(linked_handle));
`

// SQLiteStore persists user records in a sqlite database. Durability rides
// on sqlite's journal: a successful exec means the row is committed.
type SQLiteStore struct {
	db    *sql.DB
	table *rank.Table
}

// NewSQLiteStore opens (or creates) a sqlite-backed store at path.
func NewSQLiteStore(path string, table *rank.Table) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// Single writer keeps the per-identity serialization simple.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(usersSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create users schema: %w", err)
	}
	return &SQLiteStore{db: db, table: table}, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, identity string) (model.UserRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT linked_handle, score, rank FROM users WHERE external_identity = ?`, identity)
	return s.scanRecord(row, identity)
}

// FindByHandle implements Store. Ordering by identity keeps the
// first-match rule deterministic if duplicate handles exist.
func (s *SQLiteStore) FindByHandle(ctx context.Context, handle string) (string, model.UserRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT external_identity, linked_handle, score, rank FROM users
		 WHERE LOWER(linked_handle) = LOWER(?) ORDER BY external_identity LIMIT 1`, handle)
	var (
		identity string
		rec      model.UserRecord
		sym      string
	)
	if err := row.Scan(&identity, &rec.LinkedHandle, &rec.Score, &sym); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", model.UserRecord{}, fmt.Errorf("%w: handle %s", ErrNotFound, handle)
		}
		return "", model.UserRecord{}, fmt.Errorf("query by handle: %w", err)
	}
	rec.Rank = s.normalizeRank(sym, rec.Score)
	return identity, rec, nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, identity string, rec model.UserRecord) error {
	if err := rec.Validate(s.table); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (external_identity, linked_handle, score, rank)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (external_identity) DO UPDATE SET
		   linked_handle = excluded.linked_handle,
		   score = excluded.score,
		   rank = excluded.rank`,
		identity, rec.LinkedHandle, rec.Score, string(rec.Rank))
	if err != nil {
		return fmt.Errorf("persist user %s: %w", identity, err)
	}
	return nil
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) scanRecord(row *sql.Row, identity string) (model.UserRecord, error) {
	var (
		rec model.UserRecord
		sym string
	)
	if err := row.Scan(&rec.LinkedHandle, &rec.Score, &sym); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.UserRecord{}, fmt.Errorf("%w: %s", ErrNotFound, identity)
		}
		return model.UserRecord{}, fmt.Errorf("query user %s: %w", identity, err)
	}
	rec.Rank = s.normalizeRank(sym, rec.Score)
	return rec, nil
}

// normalizeRank upgrades rows whose stored rank drifted from the rank
// derived from the score. Rank is derived state everywhere in this system.
func (s *SQLiteStore) normalizeRank(sym string, score int) rank.Symbol {
	stored := rank.Symbol(sym)
	derived := s.table.ForScore(score)
	if stored != derived {
		return derived
	}
	return stored
}
