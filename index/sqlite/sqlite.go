// Package sqlite implements index.Store on an embedded SQLite database using
// the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	_ "modernc.org/sqlite" // pure Go sqlite driver

	"github.com/hupe1980/vlogdb/index"
)

const defaultPageSize = 256

// Store is an index.Store backed by SQLite.
type Store struct {
	db       *sql.DB
	pageSize int
}

var _ index.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPageSize sets how many keys one ScanPrefix query fetches.
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, pageSize: defaultPageSize}
	for _, opt := range opts {
		opt(s)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS records (
            key TEXT PRIMARY KEY,
            "offset" INTEGER NOT NULL,
            length INTEGER NOT NULL,
            type INTEGER NOT NULL,
            pointers TEXT NOT NULL,
            args TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS members (
            key TEXT NOT NULL,
            member TEXT NOT NULL,
            PRIMARY KEY (key, member)
        );`,
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Get(ctx context.Context, key string) (index.Metadata, bool, error) {
	f := make(map[string]string, 5)
	var off, length, typ, ptrs, args string
	err := s.db.QueryRowContext(ctx,
		`SELECT CAST("offset" AS TEXT), CAST(length AS TEXT), CAST(type AS TEXT), pointers, args FROM records WHERE key = ?`,
		key).Scan(&off, &length, &typ, &ptrs, &args)
	if errors.Is(err, sql.ErrNoRows) {
		return index.Metadata{}, false, nil
	}
	if err != nil {
		return index.Metadata{}, false, err
	}
	f[index.FieldOffset] = off
	f[index.FieldLength] = length
	f[index.FieldType] = typ
	f[index.FieldPointers] = ptrs
	f[index.FieldArgs] = args

	m, err := index.MetadataFromFields(f)
	if err != nil {
		return index.Metadata{}, false, err
	}
	return m, true, nil
}

func (s *Store) Set(ctx context.Context, key string, m index.Metadata) error {
	f, err := m.Fields()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO records(key, "offset", length, type, pointers, args)
        VALUES(?, ?, ?, ?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET "offset"=excluded."offset", length=excluded.length,
            type=excluded.type, pointers=excluded.pointers, args=excluded.args`,
		key, int64(m.Offset), int64(m.Length), int64(m.Type), f[index.FieldPointers], f[index.FieldArgs])
	return err
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM records WHERE key = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) SetAdd(ctx context.Context, key, member string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO members(key, member) VALUES(?, ?)`, key, member)
	return err
}

func (s *Store) SetMembers(ctx context.Context, key string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT member FROM members WHERE key = ? ORDER BY member`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ScanPrefix pages through matching keys in key order. Each page is a
// separate query, so keys written during the scan may or may not appear.
func (s *Store) ScanPrefix(ctx context.Context, prefix string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		after, first := prefix, true
		for {
			page, err := s.scanPage(ctx, prefix, after, first)
			if err != nil {
				yield("", err)
				return
			}
			for _, k := range page {
				if !yield(k, nil) {
					return
				}
			}
			if len(page) < s.pageSize {
				return
			}
			after, first = page[len(page)-1], false
		}
	}
}

func (s *Store) scanPage(ctx context.Context, prefix, after string, inclusive bool) ([]string, error) {
	lower := "key > ?"
	if inclusive {
		lower = "key >= ?"
	}
	where, args := lower, []any{after}
	if end := index.PrefixEnd(prefix); end != "" {
		where += " AND key < ?"
		args = append(args, end)
	}
	q := `SELECT key FROM records WHERE ` + where +
		` UNION SELECT DISTINCT key FROM members WHERE ` + where +
		` ORDER BY key LIMIT ?`
	args = append(append(args, args...), s.pageSize)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	keys := make([]string, 0, s.pageSize)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	where, args := "key >= ?", []any{prefix}
	if end := index.PrefixEnd(prefix); end != "" {
		where += " AND key < ?"
		args = append(args, end)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE `+where, args...); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM members WHERE `+where, args...); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) FlushAll(ctx context.Context) error {
	return s.DeletePrefix(ctx, "")
}

func (s *Store) Close() error { return s.db.Close() }
