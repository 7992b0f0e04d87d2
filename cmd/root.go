package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/audiodev-go/cmd/devices"
	"github.com/tphakala/audiodev-go/cmd/loopback"
	"github.com/tphakala/audiodev-go/cmd/play"
	"github.com/tphakala/audiodev-go/internal/conf"
	"github.com/tphakala/audiodev-go/internal/devicebuffer"
	"github.com/tphakala/audiodev-go/internal/logging"
	"github.com/tphakala/audiodev-go/internal/telemetry"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "audiodev",
		Short: "Audio device data path tool",
		Long:  "Bridge audio devices and application transports: list devices, run a capture-to-playout loopback or play a WAV file.",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		devices.Command(settings),
		loopback.Command(settings),
		play.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := cmd.Flags().Parse(args); err != nil {
			return err
		}
		return initialize(settings)
	}

	return rootCmd
}

// initialize applies settings that affect every subcommand.
func initialize(settings *conf.Settings) error {
	if settings.Debug {
		logging.SetLevel(slog.LevelDebug)
	}
	// Debug mode also turns on the buffer's internal consistency checks,
	// including role affinity assertions on the audio callbacks.
	devicebuffer.EnableDebugAssertions(settings.Debug)

	if err := telemetry.Init(settings); err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	return nil
}

// setupFlags defines flags that are global to the command line interface.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
	}
}
