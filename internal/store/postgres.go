package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// Postgres keeps every record in a single table keyed by (kind, id) with the
// entity body in a JSONB column.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres opens a connection pool and waits until the database answers.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return &Postgres{db: db}, nil
}

// Migrate creates the records table if it does not exist. Idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS records (
			kind       VARCHAR(32)  NOT NULL,
			id         TEXT         NOT NULL,
			version    BIGINT       NOT NULL,
			data       JSONB        NOT NULL,
			updated_at TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			PRIMARY KEY (kind, id)
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate records: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_records_player_game
			ON records ((data->>'currentGameId'))
			WHERE kind = 'player'
	`)
	if err != nil {
		return fmt.Errorf("migrate index: %w", err)
	}
	return nil
}

func (p *Postgres) Create(ctx context.Context, rec Record) (Record, error) {
	if err := validateKey(rec.Kind, rec.ID); err != nil {
		return Record{}, err
	}

	stored := rec.Clone()
	stored.Version = 1
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO records (kind, id, version, data) VALUES ($1, $2, $3, $4)`,
		string(rec.Kind), rec.ID, stored.Version, []byte(stored.Data))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return Record{}, fmt.Errorf("%w: %s %s", ErrExists, rec.Kind, rec.ID)
		}
		return Record{}, err
	}
	return stored, nil
}

func (p *Postgres) Update(ctx context.Context, rec Record) (Record, error) {
	if err := validateKey(rec.Kind, rec.ID); err != nil {
		return Record{}, err
	}

	res, err := p.db.ExecContext(ctx,
		`UPDATE records SET data = $1, version = version + 1, updated_at = NOW()
		 WHERE kind = $2 AND id = $3 AND version = $4`,
		[]byte(rec.Data), string(rec.Kind), rec.ID, rec.Version)
	if err != nil {
		return Record{}, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return Record{}, err
	}
	if n == 0 {
		if _, getErr := p.Get(ctx, rec.Kind, rec.ID); getErr != nil {
			return Record{}, getErr
		}
		return Record{}, fmt.Errorf("%w: %s %s update based on version %d",
			ErrConflict, rec.Kind, rec.ID, rec.Version)
	}

	stored := rec.Clone()
	stored.Version = rec.Version + 1
	return stored, nil
}

func (p *Postgres) Get(ctx context.Context, kind Kind, id string) (Record, error) {
	rec := Record{Kind: kind, ID: id}
	var data []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT version, data FROM records WHERE kind = $1 AND id = $2`,
		string(kind), id).Scan(&rec.Version, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	if err != nil {
		return Record{}, err
	}
	rec.Data = data
	return rec, nil
}

func (p *Postgres) Scan(ctx context.Context, kind Kind, match func(Record) bool) ([]Record, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, version, data FROM records WHERE kind = $1 ORDER BY id`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec := Record{Kind: kind}
		var data []byte
		if err := rows.Scan(&rec.ID, &rec.Version, &data); err != nil {
			return nil, err
		}
		rec.Data = data
		if match == nil || match(rec) {
			out = append(out, rec)
		}
	}
	return out, rows.Err()
}

func (p *Postgres) Delete(ctx context.Context, kind Kind, id string) error {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM records WHERE kind = $1 AND id = $2`, string(kind), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
