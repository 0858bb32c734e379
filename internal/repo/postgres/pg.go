package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/pingmonitor/internal/domain"
	"github.com/hamed0406/pingmonitor/internal/repo"
)

var _ repo.StateStore = (*Store)(nil)

// Schema creates the tables used by Store.
const Schema = `
CREATE TABLE IF NOT EXISTS host_records (
  id         TEXT PRIMARY KEY,
  record     TEXT NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS monitor_settings (
  key   TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`

const intervalKey = "interval_seconds"

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New connects to dsn, retrying with exponential backoff for up to
// connectTimeout, and applies the schema.
func New(ctx context.Context, dsn string, log *zap.Logger, connectTimeout time.Duration) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if connectTimeout <= 0 {
		connectTimeout = 30 * time.Second
	}

	expback := backoff.NewExponentialBackOff()
	expback.InitialInterval = 500 * time.Millisecond
	expback.MaxInterval = 5 * time.Second

	pool, err := backoff.Retry(ctx, func() (*pgxpool.Pool, error) {
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("pgxpool.New: %w", err))
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := p.Ping(pingCtx); err != nil {
			p.Close()
			return nil, fmt.Errorf("ping: %w", err)
		}
		return p, nil
	},
		backoff.WithBackOff(expback),
		backoff.WithMaxElapsedTime(connectTimeout),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("postgres_connect_retry", zap.Error(err), zap.Duration("next", next))
		}),
	)
	if err != nil {
		return nil, err
	}

	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Load(ctx context.Context) (repo.State, error) {
	var st repo.State

	rows, err := s.pool.Query(ctx, `SELECT record FROM host_records ORDER BY id`)
	if err != nil {
		return repo.State{}, fmt.Errorf("list host records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rec string
		if err := rows.Scan(&rec); err != nil {
			return repo.State{}, fmt.Errorf("scan host record: %w", err)
		}
		st.Records = append(st.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return repo.State{}, fmt.Errorf("list host records: %w", err)
	}

	var raw string
	err = s.pool.QueryRow(ctx, `SELECT value FROM monitor_settings WHERE key = $1`, intervalKey).Scan(&raw)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return repo.State{}, fmt.Errorf("load interval: %w", err)
	default:
		n, convErr := strconv.Atoi(raw)
		if convErr != nil {
			s.log.Warn("postgres_bad_interval", zap.String("value", raw))
		}
		st.IntervalSeconds = n
	}
	return st, nil
}

// Save replaces the stored host set and interval in one transaction.
func (s *Store) Save(ctx context.Context, st repo.State) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM host_records`); err != nil {
		return fmt.Errorf("clear host records: %w", err)
	}

	now := time.Now().UTC()
	for _, rec := range st.Records {
		// The key column is only for ordering and upserts; records that do
		// not decode are stored under their raw text so nothing is lost.
		id := rec
		if h, err := domain.DecodeRecord(rec); err == nil {
			id = h.ID
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO host_records (id, record, updated_at)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (id) DO UPDATE SET record = EXCLUDED.record, updated_at = EXCLUDED.updated_at`,
			id, rec, now); err != nil {
			return fmt.Errorf("insert host record: %w", err)
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO monitor_settings (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		intervalKey, strconv.Itoa(st.IntervalSeconds)); err != nil {
		return fmt.Errorf("save interval: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
