package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"trailroom-billing/internal/config"
)

// New builds the process logger. Dev mode always logs to a console writer
// at debug level or lower, and never samples.
func New(cfg config.LogConfig, dev bool) *zerolog.Logger {
	return newLogger(os.Stdout, cfg, dev)
}

func newLogger(w io.Writer, cfg config.LogConfig, dev bool) *zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if dev && level > zerolog.DebugLevel {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if dev || strings.EqualFold(cfg.Format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	l := zerolog.New(w).With().Timestamp().Str("service", "trailroom-billing").Logger()

	if cfg.Sampling && !dev {
		// warn and above are never dropped
		l = l.Sample(zerolog.LevelSampler{
			DebugSampler: &zerolog.BasicSampler{N: 100},
			InfoSampler:  &zerolog.BasicSampler{N: 10},
		})
	}
	return &l
}

type ctxKey int

const (
	keyTrace ctxKey = iota
	keyAccount
	keyPayment
)

var ctxFields = []struct {
	key  ctxKey
	name string
}{
	{keyTrace, "trace_id"},
	{keyAccount, "account_id"},
	{keyPayment, "payment_id"},
}

// With returns a child of base carrying the request-scoped ids found in ctx.
func With(ctx context.Context, base *zerolog.Logger) *zerolog.Logger {
	lc := base.With()
	for _, f := range ctxFields {
		if v, ok := ctx.Value(f.key).(string); ok && v != "" {
			lc = lc.Str(f.name, v)
		}
	}
	l := lc.Logger()
	return &l
}

// Redact keeps the first four and last two characters of a secret outside dev.
func Redact(s string, dev bool) string {
	switch {
	case dev:
		return s
	case len(s) <= 8:
		return "***"
	default:
		return s[:4] + "..." + s[len(s)-2:]
	}
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyTrace, id)
}

func WithAccountID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyAccount, id)
}

func WithPaymentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyPayment, id)
}

func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(keyTrace).(string)
	return v
}
