// Package loopback implements the capture-to-playout loopback command.
package loopback

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/audiodev-go/internal/conf"
	"github.com/tphakala/audiodev-go/internal/devicebuffer"
	"github.com/tphakala/audiodev-go/internal/driver"
	"github.com/tphakala/audiodev-go/internal/errors"
	"github.com/tphakala/audiodev-go/internal/logging"
	"github.com/tphakala/audiodev-go/internal/observability"
	"github.com/tphakala/audiodev-go/internal/observability/metrics"
	"github.com/tphakala/audiodev-go/internal/telemetry"
	"github.com/tphakala/audiodev-go/internal/transport"
)

const bytesPerSample = 2

// Command creates the loopback command which routes captured audio back
// to the playout device through an in-memory ring.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loopback",
		Short: "Route captured audio back to the playout device",
		Long:  "Run capture and playout concurrently, feeding recorded audio into a ring buffer that playout drains. Useful for end-to-end latency and device testing.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoopback(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	return cmd
}

// setupFlags configures flags specific to the loopback command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Audio.Capture.Device, "capture-device", viper.GetString("audio.capture.device"), "Capture device name or ID, empty for system default")
	cmd.Flags().StringVar(&settings.Audio.Playout.Device, "playout-device", viper.GetString("audio.playout.device"), "Playout device name or ID, empty for system default")
	cmd.Flags().IntVar(&settings.Demo.LoopbackBufferMs, "buffer-ms", viper.GetInt("demo.loopbackbufferms"), "Loopback ring size in milliseconds of audio")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

func runLoopback(settings *conf.Settings) error {
	logger, closeLog := commandLogger(settings, "loopback")
	defer closeLog()

	capture := &settings.Audio.Capture
	playout := &settings.Audio.Playout
	// The ring moves raw bytes, so both sides must agree on the format.
	if capture.SampleRate != playout.SampleRate || capture.Channels != playout.Channels {
		return errors.Newf("capture format %d Hz/%d ch does not match playout format %d Hz/%d ch",
			capture.SampleRate, capture.Channels, playout.SampleRate, playout.Channels).
			Component("loopback").
			Category(errors.CategoryValidation).
			Build()
	}
	if settings.Demo.LoopbackBufferMs <= 0 {
		return errors.Newf("loopback buffer must be positive, got %d ms", settings.Demo.LoopbackBufferMs).
			Component("loopback").
			Category(errors.CategoryValidation).
			Build()
	}

	var wg sync.WaitGroup
	quitChan := make(chan struct{})

	var obs *observability.Metrics
	if settings.Metrics.Enabled {
		var err error
		obs, err = observability.NewMetrics()
		if err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}
		endpoint, err := observability.NewEndpoint(settings, obs)
		if err != nil {
			return fmt.Errorf("failed to create metrics endpoint: %w", err)
		}
		endpoint.Start(&wg, quitChan)
	}

	buffer := devicebuffer.New(&devicebuffer.Config{Logger: logger})
	if obs != nil {
		buffer.SetMetrics(obs.DeviceBuffer)
	}

	capacity := settings.Demo.LoopbackBufferMs * capture.SampleRate * capture.Channels * bytesPerSample / 1000
	loop, err := transport.NewLoopback(&transport.LoopbackConfig{
		Capacity: capacity,
		Logger:   logger,
		Metrics:  transportMetrics(obs),
	})
	if err != nil {
		buffer.Close()
		return err
	}
	if err := buffer.RegisterTransport(loop); err != nil {
		buffer.Close()
		return err
	}

	adapter, err := driver.NewAdapter(buffer, logger)
	if err != nil {
		buffer.Close()
		return err
	}

	if err := adapter.StartCapture(capture); err != nil {
		_ = adapter.Close()
		buffer.Close()
		return err
	}
	if err := adapter.StartPlayout(playout); err != nil {
		_ = adapter.Close()
		buffer.Close()
		return err
	}

	fmt.Printf("Loopback running at %d Hz, %d channel(s), %d ms ring. Press Ctrl+C to stop.\n",
		capture.SampleRate, capture.Channels, settings.Demo.LoopbackBufferMs)

	monitorCtrlC(quitChan)
	<-quitChan

	if err := adapter.Close(); err != nil {
		logger.Error("error closing audio devices", "error", err)
	}
	buffer.Close()
	telemetry.Flush(3 * time.Second)
	wg.Wait()
	return nil
}

func transportMetrics(obs *observability.Metrics) *metrics.TransportMetrics {
	if obs == nil {
		return nil
	}
	return obs.Transport
}

// commandLogger returns the service logger for this command, routed to the
// configured log file when file logging is enabled. The returned closer is
// safe to call in either case.
func commandLogger(settings *conf.Settings, service string) (*slog.Logger, func()) {
	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	if settings.Log.Enabled && settings.Log.Path != "" {
		logger, closeFn, err := logging.NewFileLogger(settings.Log.Path, service, level)
		if err == nil {
			return logger, func() {
				if err := closeFn(); err != nil {
					logging.Error("failed to close log file", "path", settings.Log.Path, "error", err)
				}
			}
		}
		logging.Warn("failed to open log file, logging to standard output", "path", settings.Log.Path, "error", err)
	}
	logger := logging.ForService(service)
	if logger == nil {
		logger = slog.Default()
	}
	return logger, func() {}
}

// monitorCtrlC listens for SIGINT and SIGTERM and triggers a graceful shutdown.
func monitorCtrlC(quitChan chan struct{}) {
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		<-sigChan

		fmt.Println("\nReceived shutdown signal, stopping")
		close(quitChan)
	}()
}
