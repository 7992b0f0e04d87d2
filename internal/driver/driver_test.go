package driver

import (
	"log/slog"
	"runtime"
	"testing"

	"github.com/tphakala/audiodev-go/internal/devicebuffer"
	"github.com/tphakala/audiodev-go/internal/errors"
)

func TestBackendForPlatform(t *testing.T) {
	backend, err := getBackendForPlatform()
	switch runtime.GOOS {
	case "linux", "windows", "darwin":
		if err != nil {
			t.Fatalf("expected a backend for %s, got error: %v", runtime.GOOS, err)
		}
		_ = backend
	default:
		if err == nil {
			t.Fatalf("expected an error for unsupported platform %s", runtime.GOOS)
		}
	}
}

func TestHexToASCII(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain ascii", "68656c6c6f", "hello", false},
		{"empty", "", "", false},
		{"not hex", "zz", "", true},
		{"odd length", "686", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := hexToASCII(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("hexToASCII(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("hexToASCII(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEnumerateDevicesDoesNotPanic(t *testing.T) {
	devices, err := EnumerateCaptureDevices()
	if err != nil {
		// Expected on hosts without a working audio backend.
		t.Logf("EnumerateCaptureDevices failed (expected without audio hardware): %v", err)
		return
	}
	for _, device := range devices {
		t.Logf("capture device %d: %s (ID: %s, default: %v)", device.Index, device.Name, device.ID, device.Default)
	}
}

func TestStopBeforeStartFails(t *testing.T) {
	buffer := devicebuffer.New(&devicebuffer.Config{Logger: slog.New(slog.DiscardHandler)})
	defer buffer.Close()

	adapter, err := NewAdapter(buffer, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Logf("NewAdapter failed (expected without audio hardware): %v", err)
		return
	}
	defer adapter.Close()

	if err := adapter.StopCapture(); err == nil {
		t.Error("expected an error stopping capture that never started")
	} else if !errors.IsCategory(err, errors.CategoryState) {
		t.Errorf("expected a state error, got: %v", err)
	}
	if err := adapter.StopPlayout(); err == nil {
		t.Error("expected an error stopping playout that never started")
	}
	if adapter.CaptureActive() || adapter.PlayoutActive() {
		t.Error("no device should be active before start")
	}
}
