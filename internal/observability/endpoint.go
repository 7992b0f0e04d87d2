// Package observability provides Prometheus metrics functionality for monitoring the application.
// Sentry-related error telemetry is handled in the telemetry package.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/tphakala/audiodev-go/internal/conf"
	"github.com/tphakala/audiodev-go/internal/logging"
	metricspkg "github.com/tphakala/audiodev-go/internal/observability/metrics"
)

// Endpoint handles all operations related to Prometheus-compatible telemetry.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
	log           *slog.Logger
}

// NewEndpoint creates a new instance of the metrics Endpoint.
// It returns an error if the metrics endpoint is not enabled in the settings.
// The function does not create new metrics but uses the provided Metrics instance.
func NewEndpoint(settings *conf.Settings, metrics *Metrics) (*Endpoint, error) {
	if !settings.Metrics.Enabled {
		return nil, fmt.Errorf("metrics endpoint not enabled in settings")
	}

	logger := logging.ForService("observability")
	if logger == nil {
		logger = slog.Default()
	}

	return &Endpoint{
		listenAddress: settings.Metrics.Listen,
		metrics:       metrics,
		log:           logger,
	}, nil
}

// Start initializes and runs the HTTP server for the metrics endpoint.
// It sets up the routes, starts the server in a separate goroutine, and
// listens for a quit signal to shut down gracefully.
func (e *Endpoint) Start(wg *sync.WaitGroup, quitChan <-chan struct{}) {
	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)

	e.server = &http.Server{
		Addr:    e.listenAddress,
		Handler: mux,
	}

	wg.Go(func() {
		e.log.Info("Metrics endpoint starting", "address", e.listenAddress)
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.log.Error("Metrics HTTP server error", "error", err)
		}
	})

	go e.gracefulShutdown(quitChan)
}

// gracefulShutdown waits for the quit signal and shuts down the server gracefully.
func (e *Endpoint) gracefulShutdown(quitChan <-chan struct{}) {
	<-quitChan
	e.log.Info("Stopping metrics server")
	ctx, cancel := context.WithTimeout(context.Background(), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(ctx); err != nil {
		e.log.Error("Metrics server shutdown error", "error", err)
	}
}

// GetMetrics returns the Metrics instance associated with this Endpoint.
func (e *Endpoint) GetMetrics() *Metrics {
	return e.metrics
}
