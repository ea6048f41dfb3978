package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codewandler/lrukv-go/ports/kv"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Store keeps every key in one row of a two-column table. Keys are stored
// as bytea so arbitrary bytes survive and ORDER BY yields byte order.
type Store struct {
	pool  *pgxpool.Pool
	table string
	owned bool

	qGet, qPut, qDelete, qIterate string
}

// NewStore uses table in the pool's database. With createIfMissing the
// table is created when absent, otherwise a missing table is an error.
func NewStore(ctx context.Context, pool *pgxpool.Pool, table string, createIfMissing bool) (*Store, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTableName, table)
	}

	ident := pgx.Identifier{table}.Sanitize()
	if createIfMissing {
		_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+ident+` (
			key   BYTEA PRIMARY KEY,
			value BYTEA NOT NULL
		)`)
		if err != nil {
			return nil, fmt.Errorf("failed to create table %s: %w", table, err)
		}
	} else {
		var exists bool
		if err := pool.QueryRow(ctx, `SELECT to_regclass($1::text) IS NOT NULL`, ident).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
		}
	}

	return &Store{
		pool:     pool,
		table:    table,
		qGet:     `SELECT value FROM ` + ident + ` WHERE key = $1`,
		qPut:     `INSERT INTO ` + ident + ` (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		qDelete:  `DELETE FROM ` + ident + ` WHERE key = $1`,
		qIterate: `SELECT key, value FROM ` + ident + ` ORDER BY key`,
	}, nil
}

// Opener connects using cfg and treats location as the table name.
func Opener(cfg Config) kv.Opener {
	return func(ctx context.Context, location string, createIfMissing bool) (kv.Store, error) {
		pool, err := Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s, err := NewStore(ctx, pool, location, createIfMissing)
		if err != nil {
			pool.Close()
			return nil, err
		}
		s.owned = true
		return s, nil
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, s.qGet, []byte(key)).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.pool.Exec(ctx, s.qPut, []byte(key), value)
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, s.qDelete, []byte(key))
	return err
}

func (s *Store) Iterate(ctx context.Context, fn func(key string, value []byte) bool) error {
	rows, err := s.pool.Query(ctx, s.qIterate)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		if v == nil {
			v = []byte{}
		}
		if !fn(string(k), v) {
			return nil
		}
	}
	return rows.Err()
}

// Close closes the pool if the store created it.
func (s *Store) Close() error {
	if s.owned {
		s.pool.Close()
	}
	return nil
}

var (
	_ kv.Store    = (*Store)(nil)
	_ kv.Iterable = (*Store)(nil)
)
