package sink

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Guliveer/livetiming-connector/internal/constants"
	"github.com/Guliveer/livetiming-connector/internal/model"
)

// DB is the part of *pgxpool.Pool the Postgres sink uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Close()
}

// Postgres stores each message as one row. Duplicate messages, judged by
// their hash, are ignored.
type Postgres struct {
	db    DB
	table string
}

// OpenPostgres connects a pool to url, verifies it and creates the table.
func OpenPostgres(ctx context.Context, url, table string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	p := NewPostgres(pool, table)
	if err := p.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(db DB, table string) *Postgres {
	if table == "" {
		table = constants.DefaultStorageTable
	}
	return &Postgres{db: db, table: table}
}

// EnsureSchema creates the message table and its hash index.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ident := pgx.Identifier{p.table}.Sanitize()
	index := pgx.Identifier{p.table + "_hash_idx"}.Sanitize()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + ident + ` (
			id bigserial PRIMARY KEY,
			category text NOT NULL,
			is_streaming boolean NOT NULL,
			message jsonb,
			message_timestamp timestamptz NOT NULL,
			message_hash text NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ` + index + ` ON ` + ident + ` (message_hash)`,
	}
	for _, stmt := range stmts {
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("creating table %s: %w", p.table, err)
		}
	}
	return nil
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) insertSQL() string {
	return `INSERT INTO ` + pgx.Identifier{p.table}.Sanitize() +
		` (category, is_streaming, message, message_timestamp, message_hash)` +
		` VALUES ($1, $2, $3, $4, $5) ON CONFLICT (message_hash) DO NOTHING`
}

func (p *Postgres) Write(ctx context.Context, batch []model.LiveTimingMessage) error {
	b := &pgx.Batch{}
	sql := p.insertSQL()
	for _, m := range batch {
		b.Queue(sql, m.Category, m.IsStreaming, jsonbValue(m.Payload), m.Timestamp.UTC(), MessageHash(m))
	}
	if err := p.db.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("inserting %d messages: %w", len(batch), err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}

// MessageHash identifies a message by category, kind, timestamp and payload.
func MessageHash(m model.LiveTimingMessage) string {
	sum := md5.Sum([]byte(m.Category + "|" + strconv.FormatBool(m.IsStreaming) + "|" +
		m.Timestamp.UTC().Format(time.RFC3339Nano) + "|" + m.Payload))
	return hex.EncodeToString(sum[:])
}

// jsonbValue returns nil for an empty payload so the column stores NULL.
func jsonbValue(payload string) any {
	if payload == "" {
		return nil
	}
	return payload
}
