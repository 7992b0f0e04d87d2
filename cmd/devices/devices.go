// Package devices implements the device listing command.
package devices

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/audiodev-go/internal/conf"
	"github.com/tphakala/audiodev-go/internal/driver"
)

// Command creates the devices command which lists the audio devices
// available on this system.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List available audio devices",
		Long:  "List capture and playout devices known to the audio backend. The system default device is marked with an asterisk.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevices()
		},
	}
	return cmd
}

func runDevices() error {
	captureDevices, err := driver.EnumerateCaptureDevices()
	if err != nil {
		return fmt.Errorf("failed to enumerate capture devices: %w", err)
	}
	playoutDevices, err := driver.EnumeratePlayoutDevices()
	if err != nil {
		return fmt.Errorf("failed to enumerate playout devices: %w", err)
	}

	fmt.Println("Capture devices:")
	printDevices(captureDevices)
	fmt.Println()
	fmt.Println("Playout devices:")
	printDevices(playoutDevices)
	return nil
}

func printDevices(list []driver.DeviceInfo) {
	if len(list) == 0 {
		fmt.Println("  (none found)")
		return
	}
	for _, d := range list {
		marker := " "
		if d.Default {
			marker = "*"
		}
		fmt.Printf("%s %d: %s\n", marker, d.Index, d.Name)
	}
}
