package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"pulsemon/internal/domain"
	"pulsemon/internal/repo"
)

var _ repo.TargetStore = (*Store)(nil)
var _ repo.ResultStore = (*Store)(nil)
var _ repo.SettingsStore = (*Store)(nil)

type Store struct {
	pool      *pgxpool.Pool
	log       *zap.Logger
	retention int
}

func New(ctx context.Context, dsn string, retention int, log *zap.Logger) (*Store, error) {
	if retention < 1 {
		retention = domain.DefaultRetention
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	s := &Store{pool: pool, log: log, retention: retention}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS targets (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL DEFAULT '',
    url             TEXT NOT NULL,
    protocol        TEXT NOT NULL,
    method          TEXT NOT NULL,
    headers         JSONB NOT NULL DEFAULT '{}',
    body            TEXT NOT NULL DEFAULT '',
    expected_status INT[] NOT NULL,
    expected_text   TEXT NOT NULL DEFAULT '',
    enabled         BOOLEAN NOT NULL DEFAULT TRUE,
    timeout_seconds INT NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS probe_results (
    id            BIGSERIAL PRIMARY KEY,
    target_id     TEXT NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
    ts            TIMESTAMPTZ NOT NULL,
    status        TEXT NOT NULL,
    response_ms   BIGINT NOT NULL,
    status_code   INT,
    response_text TEXT NOT NULL DEFAULT '',
    response_size BIGINT,
    error_message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS probe_results_target_ts ON probe_results (target_id, ts DESC);
CREATE TABLE IF NOT EXISTS settings (
    id               BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (id),
    interval_minutes INT NOT NULL,
    timeout_seconds  INT NOT NULL,
    retries          INT NOT NULL,
    enabled          BOOLEAN NOT NULL
);`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// ---- TargetStore ----

func (s *Store) Add(ctx context.Context, t *domain.Target) error {
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	headers, err := json.Marshal(t.Headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO targets
		   (id, name, url, protocol, method, headers, body, expected_status,
		    expected_text, enabled, timeout_seconds, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		string(t.ID), t.Name, t.URL, string(t.Protocol), t.Method, headers, t.Body,
		t.ExpectedStatus, t.ExpectedText, t.Enabled, t.TimeoutSeconds, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, t *domain.Target) error {
	headers, err := json.Marshal(t.Headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE targets
		    SET name=$2, url=$3, protocol=$4, method=$5, headers=$6, body=$7,
		        expected_status=$8, expected_text=$9, enabled=$10, timeout_seconds=$11
		  WHERE id=$1`,
		string(t.ID), t.Name, t.URL, string(t.Protocol), t.Method, headers, t.Body,
		t.ExpectedStatus, t.ExpectedText, t.Enabled, t.TimeoutSeconds,
	)
	if err != nil {
		return fmt.Errorf("update target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

const targetCols = `id, name, url, protocol, method, headers, body, expected_status,
expected_text, enabled, timeout_seconds, created_at`

func (s *Store) List(ctx context.Context) ([]domain.Target, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+targetCols+` FROM targets ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var out []domain.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.Target, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+targetCols+` FROM targets WHERE id=$1`, string(id))
	t, err := scanTarget(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	return t, err
}

func (s *Store) Delete(ctx context.Context, id domain.TargetID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM targets WHERE id=$1`, string(id))
	if err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTarget(row rowScanner) (*domain.Target, error) {
	var (
		t       domain.Target
		id      string
		proto   string
		headers []byte
	)
	err := row.Scan(&id, &t.Name, &t.URL, &proto, &t.Method, &headers, &t.Body,
		&t.ExpectedStatus, &t.ExpectedText, &t.Enabled, &t.TimeoutSeconds, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.ID = domain.TargetID(id)
	t.Protocol = domain.Protocol(proto)
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &t.Headers); err != nil {
			return nil, fmt.Errorf("unmarshal headers: %w", err)
		}
	}
	return &t, nil
}

// ---- ResultStore ----

func (s *Store) Append(ctx context.Context, r *domain.ProbeResult) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO probe_results
		   (target_id, ts, status, response_ms, status_code, response_text,
		    response_size, error_message)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING id`,
		string(r.TargetID), r.Timestamp, string(r.Status), r.ResponseTimeMS,
		r.StatusCode, r.ResponseText, r.ResponseSize, r.ErrorMessage,
	).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}

	// Store-side trim keeps the per-target log bounded.
	_, err = s.pool.Exec(ctx,
		`DELETE FROM probe_results
		  WHERE target_id=$1
		    AND id NOT IN (
		        SELECT id FROM probe_results
		         WHERE target_id=$1
		         ORDER BY ts DESC, id DESC
		         LIMIT $2)`,
		string(r.TargetID), s.retention,
	)
	if err != nil {
		return fmt.Errorf("trim results: %w", err)
	}
	return nil
}

const resultCols = `id, target_id, ts, status, response_ms, status_code,
response_text, response_size, error_message`

func (s *Store) Recent(ctx context.Context, id domain.TargetID, limit int) ([]domain.ProbeResult, error) {
	if limit <= 0 {
		limit = s.retention
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+resultCols+`
		   FROM probe_results
		  WHERE target_id=$1
		  ORDER BY ts DESC, id DESC
		  LIMIT $2`,
		string(id), limit)
	if err != nil {
		return nil, fmt.Errorf("recent results: %w", err)
	}
	defer rows.Close()
	return collectResults(rows)
}

func (s *Store) Since(ctx context.Context, id domain.TargetID, t time.Time) ([]domain.ProbeResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+resultCols+`
		   FROM probe_results
		  WHERE target_id=$1 AND ts >= $2
		  ORDER BY ts ASC, id ASC`,
		string(id), t)
	if err != nil {
		return nil, fmt.Errorf("results since: %w", err)
	}
	defer rows.Close()
	return collectResults(rows)
}

func (s *Store) Last(ctx context.Context, id domain.TargetID) (*domain.ProbeResult, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+resultCols+`
		   FROM probe_results
		  WHERE target_id=$1
		  ORDER BY ts DESC, id DESC
		  LIMIT 1`,
		string(id))
	r, err := scanResult(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (s *Store) DeleteByTarget(ctx context.Context, id domain.TargetID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM probe_results WHERE target_id=$1`, string(id))
	if err != nil {
		return fmt.Errorf("delete results: %w", err)
	}
	return nil
}

func collectResults(rows pgx.Rows) ([]domain.ProbeResult, error) {
	var out []domain.ProbeResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanResult(row rowScanner) (*domain.ProbeResult, error) {
	var (
		r      domain.ProbeResult
		tid    string
		status string
	)
	err := row.Scan(&r.ID, &tid, &r.Timestamp, &status, &r.ResponseTimeMS,
		&r.StatusCode, &r.ResponseText, &r.ResponseSize, &r.ErrorMessage)
	if err != nil {
		return nil, err
	}
	r.TargetID = domain.TargetID(tid)
	r.Status = domain.ProbeStatus(status)
	return &r, nil
}

// ---- SettingsStore ----

func (s *Store) Load(ctx context.Context) (*domain.Settings, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT interval_minutes, timeout_seconds, retries, enabled FROM settings`)
	var out domain.Settings
	err := row.Scan(&out.IntervalMinutes, &out.TimeoutSeconds, &out.Retries, &out.Enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return &out, nil
}

func (s *Store) Save(ctx context.Context, set domain.Settings) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (id, interval_minutes, timeout_seconds, retries, enabled)
		 VALUES (TRUE, $1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		    SET interval_minutes=$1, timeout_seconds=$2, retries=$3, enabled=$4`,
		set.IntervalMinutes, set.TimeoutSeconds, set.Retries, set.Enabled,
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
