package store

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kittclouds/mammal/pkg/mptree"
)

// Logged wraps an adapter and traces every statement it forwards.
// Errors are passed through untouched.
type Logged struct {
	next   mptree.Adapter
	logger zerolog.Logger
	level  zerolog.Level
}

// NewLogged traces statements of next on the global logger at trace level.
func NewLogged(next mptree.Adapter) *Logged {
	return NewLoggedWith(next, log.Logger, zerolog.TraceLevel)
}

// NewLoggedWith traces statements of next on logger at level.
func NewLoggedWith(next mptree.Adapter, logger zerolog.Logger, level zerolog.Level) *Logged {
	return &Logged{
		next:   next,
		logger: logger.With().Str("component", "sql").Logger(),
		level:  level,
	}
}

// Select forwards to the wrapped adapter.
func (l *Logged) Select(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	start := time.Now()
	rows, err := l.next.Select(ctx, query, args...)
	l.event(err).
		Str("op", "select").
		Str("query", compact(query)).
		Interface("args", args).
		Int("rows", len(rows)).
		Dur("took", time.Since(start)).
		Msg("statement")
	return rows, err
}

// Execute forwards to the wrapped adapter.
func (l *Logged) Execute(ctx context.Context, query string, args ...any) error {
	start := time.Now()
	err := l.next.Execute(ctx, query, args...)
	l.event(err).
		Str("op", "execute").
		Str("query", compact(query)).
		Interface("args", args).
		Dur("took", time.Since(start)).
		Msg("statement")
	return err
}

func (l *Logged) event(err error) *zerolog.Event {
	if err != nil {
		return l.logger.Warn().Err(err)
	}
	return l.logger.WithLevel(l.level)
}

// compact folds the whitespace of multi-line statements onto one line.
func compact(query string) string {
	return strings.Join(strings.Fields(query), " ")
}

var _ mptree.Adapter = (*Logged)(nil)
