package repo

import (
	"context"
	"errors"
	"time"

	"pulsemon/internal/domain"
)

// ErrNotFound is returned by Get/Update/Delete when the target is unknown.
var ErrNotFound = errors.New("not found")

// Ports (interfaces) — swap in any persistence adapter.

type TargetStore interface {
	Add(ctx context.Context, t *domain.Target) error
	Update(ctx context.Context, t *domain.Target) error
	List(ctx context.Context) ([]domain.Target, error)
	Get(ctx context.Context, id domain.TargetID) (*domain.Target, error)
	Delete(ctx context.Context, id domain.TargetID) error
}

type ResultStore interface {
	// Append adds to the target's ordered log and trims entries beyond the
	// retention cap. Appends for the same target are serialized.
	Append(ctx context.Context, r *domain.ProbeResult) error
	// Recent returns up to limit results, newest first.
	Recent(ctx context.Context, id domain.TargetID, limit int) ([]domain.ProbeResult, error)
	// Since returns results with Timestamp >= t, oldest first.
	Since(ctx context.Context, id domain.TargetID, t time.Time) ([]domain.ProbeResult, error)
	// Last returns the most recent result, or nil, nil when none exist.
	Last(ctx context.Context, id domain.TargetID) (*domain.ProbeResult, error)
	// DeleteByTarget removes the target's entire history (cascade on delete).
	DeleteByTarget(ctx context.Context, id domain.TargetID) error
}

type SettingsStore interface {
	// Load returns nil, nil when no settings have been saved yet.
	Load(ctx context.Context) (*domain.Settings, error)
	Save(ctx context.Context, s domain.Settings) error
}
