package sentryutil

import (
	"context"
	"time"

	sentry "github.com/getsentry/sentry-go"

	"github.com/cosmofolio/go-cosmofolio/env"
	"github.com/cosmofolio/go-cosmofolio/service/logger"
)

// Init sets up the sentry client from SENTRY_DSN. Reporting is a no-op when
// the DSN is unset.
func Init() {
	dsn := env.GetString("SENTRY_DSN")
	if dsn == "" {
		return
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env.GetStringOrDefault("ENV", "local"),
	}); err != nil {
		logger.For(nil).WithError(err).Warn("failed to init sentry")
	}
}

// ReportError sends err to sentry with any hub attached to ctx.
func ReportError(ctx context.Context, err error) {
	if hub := hubFor(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

func hubFor(ctx context.Context) *sentry.Hub {
	if ctx == nil {
		return nil
	}
	return sentry.GetHubFromContext(ctx)
}

// RecoverAndRaise reports a panic to sentry and then re-panics.
func RecoverAndRaise(ctx context.Context) {
	if r := recover(); r != nil {
		if hub := hubFor(ctx); hub != nil {
			hub.Recover(r)
		} else {
			sentry.CurrentHub().Recover(r)
		}
		sentry.Flush(2 * time.Second)
		panic(r)
	}
}
