package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"flatwatch/internal/model"
)

// PostgresStore persists fingerprints in the apartments table. The UNIQUE
// fingerprint column plus ON CONFLICT DO NOTHING gives the compare-and-insert
// that keeps the uniqueness invariant under concurrent source workers.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore runs the schema migration and returns a ready store.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("dedup: migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS apartments (
			fingerprint    TEXT PRIMARY KEY,
			source_id      TEXT        NOT NULL,
			external_id    TEXT        NOT NULL,
			price          BIGINT      NOT NULL,
			title          TEXT        NOT NULL,
			url            TEXT        NOT NULL,
			location       TEXT        NOT NULL DEFAULT '',
			rooms          INT         NOT NULL DEFAULT 0,
			area           TEXT        NOT NULL DEFAULT '',
			raw_attributes JSONB,
			first_seen_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_apartments_price      ON apartments(price);
		CREATE INDEX IF NOT EXISTS idx_apartments_source     ON apartments(source_id);
		CREATE INDEX IF NOT EXISTS idx_apartments_first_seen ON apartments(first_seen_at);
	`)
	return err
}

func (s *PostgresStore) Exists(ctx context.Context, fingerprint string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM apartments WHERE fingerprint = $1`, fingerprint).Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return false, &StorageError{Op: "exists", Err: err}
}

func (s *PostgresStore) Record(ctx context.Context, l model.Listing) (bool, error) {
	var rawJSON []byte
	if len(l.Attrs) > 0 {
		b, err := json.Marshal(l.Attrs)
		if err != nil {
			return false, &StorageError{Op: "record", Err: err}
		}
		rawJSON = b
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO apartments (fingerprint, source_id, external_id, price, title, url, location, rooms, area, raw_attributes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (fingerprint) DO NOTHING`,
		l.Fingerprint, l.SourceID, l.ExternalID, l.Price, l.Title, l.URL,
		l.Location, l.Rooms, l.Area, rawJSON,
	)
	if err != nil {
		return false, &StorageError{Op: "record", Err: err}
	}
	return tag.RowsAffected() > 0, nil
}

// Purge deletes records first seen before olderThan. Maintenance only.
func (s *PostgresStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM apartments WHERE first_seen_at < $1`, olderThan)
	if err != nil {
		return 0, &StorageError{Op: "purge", Err: err}
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{BySource: make(map[string]int64)}

	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE first_seen_at >= NOW() - INTERVAL '24 hours')
		FROM apartments`).Scan(&stats.Total, &stats.Last24h)
	if err != nil {
		return Stats{}, &StorageError{Op: "stats", Err: err}
	}

	rows, err := s.pool.Query(ctx,
		`SELECT source_id, COUNT(*) FROM apartments GROUP BY source_id`)
	if err != nil {
		return Stats{}, &StorageError{Op: "stats", Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var source string
		var count int64
		if err := rows.Scan(&source, &count); err != nil {
			return Stats{}, &StorageError{Op: "stats", Err: err}
		}
		stats.BySource[source] = count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, &StorageError{Op: "stats", Err: err}
	}
	return stats, nil
}
