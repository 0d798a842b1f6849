package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pulsemon/internal/domain"
	"pulsemon/internal/repo/memory"
)

// unreachableClient points at a closed port so every cache op fails fast.
func unreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestCache_DegradesToInnerStore(t *testing.T) {
	ctx := context.Background()
	inner := memory.New(0)
	s := New(inner, unreachableClient(), 10, zap.NewNop())

	r := &domain.ProbeResult{TargetID: "T1", Timestamp: time.Now().UTC(), Status: domain.StatusSuccess}
	if err := s.Append(ctx, r); err != nil {
		t.Fatalf("append must not fail when the cache is down: %v", err)
	}

	recent, err := s.Recent(ctx, "T1", 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("want inner-store fallback result, got %d", len(recent))
	}

	last, err := s.Last(ctx, "T1")
	if err != nil || last == nil {
		t.Fatalf("last fallback: %v %v", last, err)
	}

	if err := s.DeleteByTarget(ctx, "T1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	recent, _ = s.Recent(ctx, "T1", 0)
	if len(recent) != 0 {
		t.Fatalf("cascade must reach the inner store, got %d results", len(recent))
	}
}
