package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Config tunes the postgres pool.
type Config struct {
	DSN          string
	MaxOpen      int
	MaxIdle      int
	ConnLifetime time.Duration
}

// Pool wraps database/sql with row-map helpers, so handlers stay free of
// Scan boilerplate for simple queries.
type Pool struct {
	db *sql.DB
}

// Open connects and verifies the database.
func Open(ctx context.Context, cfg Config) (*Pool, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	if cfg.MaxOpen > 0 {
		db.SetMaxOpenConns(cfg.MaxOpen)
	}
	if cfg.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.MaxIdle)
	}
	if cfg.ConnLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	return &Pool{db: db}, nil
}

// Close releases the pool.
func (p *Pool) Close() error { return p.db.Close() }

// DB exposes the underlying handle for callers needing transactions or
// prepared statements.
func (p *Pool) DB() *sql.DB { return p.db }

// Execute runs a statement and returns the affected row count.
func (p *Pool) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db: execute: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// FetchOne returns the first row as a column-keyed map, or nil when the
// query matches nothing.
func (p *Pool) FetchOne(ctx context.Context, query string, args ...any) (map[string]any, error) {
	rows, err := p.FetchAll(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// FetchAll returns every row as a column-keyed map.
func (p *Pool) FetchAll(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("db: columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("db: scan: %w", err)
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v := raw[i]
			// pq hands back []byte for text columns.
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
