// Package play implements the WAV playback command.
package play

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

// exhaustedPollInterval is how often playback checks whether the source
// has run out of audio.
const exhaustedPollInterval = 100 * time.Millisecond

// Command creates the play command which renders a WAV file to the
// playout device.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play [file.wav]",
		Short: "Play a WAV file through the playout device",
		Long:  "Decode a 16-bit PCM WAV file and render it through the configured playout device. The file argument overrides demo.file from the configuration.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				settings.Demo.File = args[0]
			}
			return runPlay(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	return cmd
}

// setupFlags configures flags specific to the play command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Audio.Playout.Device, "playout-device", viper.GetString("audio.playout.device"), "Playout device name or ID, empty for system default")
	cmd.Flags().BoolVar(&settings.Demo.Loop, "loop", viper.GetBool("demo.loop"), "Restart the file when it ends")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

func runPlay(settings *conf.Settings) error {
	logger, closeLog := commandLogger(settings, "play")
	defer closeLog()

	if settings.Demo.File == "" {
		return errors.Newf("no WAV file given, pass one as an argument or set demo.file").
			Component("play").
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

	source, err := transport.NewWavSource(&transport.WavSourceConfig{
		Path:    settings.Demo.File,
		Loop:    settings.Demo.Loop,
		Logger:  logger,
		Metrics: sourceMetrics(obs),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := source.Close(); err != nil {
			logger.Error("error closing wav source", "error", err)
		}
	}()

	buffer := devicebuffer.New(&devicebuffer.Config{Logger: logger})
	if obs != nil {
		buffer.SetMetrics(obs.DeviceBuffer)
	}
	if err := buffer.RegisterTransport(source); err != nil {
		buffer.Close()
		return err
	}

	adapter, err := driver.NewAdapter(buffer, logger)
	if err != nil {
		buffer.Close()
		return err
	}

	// The device follows the file, not the configuration, so no resampling
	// is needed anywhere in the path.
	playout := settings.Audio.Playout
	playout.SampleRate = source.SampleRate()
	playout.Channels = source.Channels()

	if err := adapter.StartPlayout(&playout); err != nil {
		_ = adapter.Close()
		buffer.Close()
		return err
	}

	fmt.Printf("Playing %s at %d Hz, %d channel(s). Press Ctrl+C to stop.\n",
		settings.Demo.File, playout.SampleRate, playout.Channels)

	monitorCtrlC(quitChan)
	waitForEnd(source, quitChan)

	if err := adapter.Close(); err != nil {
		logger.Error("error closing audio devices", "error", err)
	}
	buffer.Close()
	telemetry.Flush(3 * time.Second)
	wg.Wait()
	return nil
}

// waitForEnd blocks until the source runs dry or a shutdown is requested.
// A looping source never exhausts, so only the signal ends it.
func waitForEnd(source *transport.WavSource, quitChan chan struct{}) {
	ticker := time.NewTicker(exhaustedPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-quitChan:
			return
		case <-ticker.C:
			if source.Exhausted() {
				// Give the device a moment to drain what is already queued.
				time.Sleep(exhaustedPollInterval)
				return
			}
		}
	}
}

func sourceMetrics(obs *observability.Metrics) *metrics.TransportMetrics {
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
