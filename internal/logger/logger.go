// Package logger builds the process-wide slog.Logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
)

// Options selects the output format and the optional Sentry sink.
type Options struct {
	Level     string // debug, info, warn, error; anything else means info
	Format    string // "json" (default) or "text"
	SentryDSN string
	Release   string
}

// New returns a logger writing to w. When SentryDSN is set, error-level
// records are also sent to Sentry. The returned flush func drains pending
// Sentry events and must be called before exit.
func New(w io.Writer, opts Options) (*slog.Logger, func(), error) {
	level := ParseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{Level: level}

	var base slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		base = slog.NewTextHandler(w, handlerOpts)
	} else {
		base = slog.NewJSONHandler(w, handlerOpts)
	}

	flush := func() {}
	if opts.SentryDSN == "" {
		return slog.New(base), flush, nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:     opts.SentryDSN,
		Release: opts.Release,
	}); err != nil {
		return nil, flush, fmt.Errorf("logger.New: sentry init: %w", err)
	}
	flush = func() { sentry.Flush(2 * time.Second) }

	handler := slogmulti.Fanout(
		base,
		slogsentry.Option{Level: slog.LevelError}.NewSentryHandler(),
	)
	return slog.New(handler), flush, nil
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
