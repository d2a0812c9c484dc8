package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GoSim-25-26J-441/contagion-core/pkg/models"
)

// pgUndefinedTable is the SQLSTATE for a missing relation.
const pgUndefinedTable = "42P01"

// PostgresBackend stores one row per density key. The table name must be a
// plain identifier; config validation enforces that.
type PostgresBackend struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresBackend creates a backend on an existing pool.
func NewPostgresBackend(pool *pgxpool.Pool, table string) *PostgresBackend {
	return &PostgresBackend{pool: pool, table: table}
}

// DialPostgres opens a pool, pings it, and returns a backend that owns it.
func DialPostgres(ctx context.Context, dsn, table string) (*PostgresBackend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return NewPostgresBackend(pool, table), nil
}

// Init creates the curve table if it does not exist.
func (p *PostgresBackend) Init(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			density_key TEXT PRIMARY KEY,
			probability DOUBLE PRECISION NOT NULL
		)`, pgx.Identifier{p.table}.Sanitize()))
	if err != nil {
		return fmt.Errorf("postgres: create table %s: %w", p.table, err)
	}
	return nil
}

func (p *PostgresBackend) Read(ctx context.Context) (models.Curve, error) {
	rows, err := p.pool.Query(ctx, fmt.Sprintf(
		`SELECT density_key, probability FROM %s`, pgx.Identifier{p.table}.Sanitize()))
	if err != nil {
		return nil, p.wrapErr(err)
	}
	defer rows.Close()

	curve := make(models.Curve)
	for rows.Next() {
		var key string
		var prob float64
		if err := rows.Scan(&key, &prob); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreMalformed, err)
		}
		curve[key] = prob
	}
	if err := rows.Err(); err != nil {
		return nil, p.wrapErr(err)
	}
	if err := checkCurve(curve); err != nil {
		return nil, err
	}
	return curve, nil
}

// Write upserts every key in one transaction. Rows for keys absent from
// curve are left alone; Merge always passes the full curve.
func (p *PostgresBackend) Write(ctx context.Context, curve models.Curve) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(
		`INSERT INTO %s (density_key, probability) VALUES ($1, $2)
		 ON CONFLICT (density_key) DO UPDATE SET probability = EXCLUDED.probability`,
		pgx.Identifier{p.table}.Sanitize())

	batch := &pgx.Batch{}
	for k, v := range curve {
		batch.Queue(stmt, k, v)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return p.wrapErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (p *PostgresBackend) Close() error {
	p.pool.Close()
	return nil
}

func (p *PostgresBackend) wrapErr(err error) error {
	if isUndefinedTable(err) {
		return fmt.Errorf("%w: table %s", ErrStoreMissing, p.table)
	}
	return fmt.Errorf("postgres: %w", err)
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable
}
