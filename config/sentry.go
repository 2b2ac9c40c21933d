package config

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry enables error reporting when SENTRY_DSN is set. The returned
// flush function is safe to call either way.
func InitSentry(cfg *Config) (bool, func(), error) {
	if cfg.SentryDSN == "" {
		return false, func() {}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.AppEnv,
	})
	if err != nil {
		return false, func() {}, err
	}
	return true, func() { sentry.Flush(2 * time.Second) }, nil
}

// SentryReporter forwards swallowed errors to the hub bound to the request,
// falling back to the global hub.
type SentryReporter struct{}

func (SentryReporter) Report(ctx context.Context, err error) {
	if err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.CaptureException(err)
}
