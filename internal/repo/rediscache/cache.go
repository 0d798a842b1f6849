package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pulsemon/internal/domain"
	"pulsemon/internal/repo"
)

var _ repo.ResultStore = (*Store)(nil)

// Store decorates a ResultStore with a Redis read cache. Each target's
// recent results live in a list trimmed to the retention cap (LPUSH+LTRIM),
// so the cache is a bounded ring mirroring the store-side trim. Cache
// failures are logged and degrade to the inner store; they never fail an
// append and never fabricate a result.
type Store struct {
	inner     repo.ResultStore
	client    *redis.Client
	log       *zap.Logger
	retention int
}

func New(inner repo.ResultStore, client *redis.Client, retention int, log *zap.Logger) *Store {
	if retention < 1 {
		retention = domain.DefaultRetention
	}
	return &Store{inner: inner, client: client, log: log, retention: retention}
}

func key(id domain.TargetID) string {
	return "pulsemon:results:" + string(id)
}

func (s *Store) Append(ctx context.Context, r *domain.ProbeResult) error {
	if err := s.inner.Append(ctx, r); err != nil {
		return err
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key(r.TargetID), data)
	pipe.LTrim(ctx, key(r.TargetID), 0, int64(s.retention-1))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn("result_cache_append_failed",
			zap.String("target_id", string(r.TargetID)),
			zap.Error(err),
		)
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, id domain.TargetID, limit int) ([]domain.ProbeResult, error) {
	if limit <= 0 || limit > s.retention {
		limit = s.retention
	}
	raw, err := s.client.LRange(ctx, key(id), 0, int64(limit-1)).Result()
	if err != nil || len(raw) == 0 {
		if err != nil {
			s.log.Warn("result_cache_read_failed", zap.String("target_id", string(id)), zap.Error(err))
		}
		return s.inner.Recent(ctx, id, limit)
	}

	out := make([]domain.ProbeResult, 0, len(raw))
	for _, item := range raw {
		var r domain.ProbeResult
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			s.log.Warn("result_cache_decode_failed", zap.String("target_id", string(id)), zap.Error(err))
			return s.inner.Recent(ctx, id, limit)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) Since(ctx context.Context, id domain.TargetID, t time.Time) ([]domain.ProbeResult, error) {
	// Window queries go to the source of truth; the cache only holds the
	// newest entries and cannot answer arbitrary time ranges.
	return s.inner.Since(ctx, id, t)
}

func (s *Store) Last(ctx context.Context, id domain.TargetID) (*domain.ProbeResult, error) {
	raw, err := s.client.LIndex(ctx, key(id), 0).Result()
	if err == nil && raw != "" {
		var r domain.ProbeResult
		if err := json.Unmarshal([]byte(raw), &r); err == nil {
			return &r, nil
		}
	}
	if err != nil && err != redis.Nil {
		s.log.Warn("result_cache_read_failed", zap.String("target_id", string(id)), zap.Error(err))
	}
	return s.inner.Last(ctx, id)
}

func (s *Store) DeleteByTarget(ctx context.Context, id domain.TargetID) error {
	if err := s.client.Del(ctx, key(id)).Err(); err != nil {
		s.log.Warn("result_cache_delete_failed", zap.String("target_id", string(id)), zap.Error(err))
	}
	return s.inner.DeleteByTarget(ctx, id)
}
