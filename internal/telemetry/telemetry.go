// Package telemetry wires optional Sentry error reporting into the error
// builder. Reporting is strictly opt-in: without the configuration flag
// nothing is initialized and the error path stays on its fast path.
package telemetry

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/audiodev-go/internal/conf"
	"github.com/tphakala/audiodev-go/internal/errors"
	"github.com/tphakala/audiodev-go/internal/logging"
)

var active atomic.Bool

// Init configures the Sentry SDK from settings and registers the telemetry
// reporter with the error package. A disabled configuration is not an
// error.
func Init(settings *conf.Settings) error {
	logger := logging.ForService("telemetry")
	if logger == nil {
		logger = slog.Default()
	}
	if !settings.Sentry.Enabled {
		logger.Info("telemetry is disabled (opt-in required)")
		return nil
	}
	if settings.Sentry.Dsn == "" {
		return errors.Newf("telemetry enabled but no DSN configured").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:        settings.Sentry.Dsn,
		SampleRate: 1.0,
		Debug:      false,

		// Privacy: no stack traces, no hostname, no user identity.
		AttachStacktrace: false,
		ServerName:       "",
		Environment:      settings.Sentry.Environment,

		Release: fmt.Sprintf("audiodev-go@%s", settings.Version),

		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			event.ServerName = ""
			event.User = sentry.User{}
			return event
		},
	})
	if err != nil {
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Context("operation", "sentry_init").
			Build()
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	active.Store(true)
	logger.Info("telemetry enabled",
		"environment", settings.Sentry.Environment,
		"release", settings.Version)
	return nil
}

// Enabled reports whether telemetry was successfully initialized.
func Enabled() bool {
	return active.Load()
}

// Flush drains buffered events before shutdown. No-op when telemetry is
// not active.
func Flush(timeout time.Duration) {
	if !active.Load() {
		return
	}
	sentry.Flush(timeout)
}
