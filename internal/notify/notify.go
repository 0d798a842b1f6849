// Package notify delivers up/down transition alerts. The scheduler talks to
// a single Notifier; Multi fans one alert out to every configured channel.
package notify

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

// Multi sends to every channel and reports all delivery failures combined,
// so one broken webhook cannot hide another channel's error.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, title, text string) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, title, text))
	}
	return err
}

// Log writes alerts into the structured log. It is always part of the
// notifier chain so transitions stay visible without any webhook configured.
type Log struct {
	log *zap.Logger
}

func NewLog(l *zap.Logger) *Log {
	return &Log{log: l}
}

func (l *Log) Send(_ context.Context, title, text string) error {
	l.log.Warn("alert",
		zap.String("title", title),
		zap.String("text", text),
	)
	return nil
}
