package driver

import (
	"encoding/hex"
	"runtime"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/audiodev-go/internal/errors"
)

// DeviceInfo describes one audio endpoint known to the platform backend.
type DeviceInfo struct {
	Index   int
	Name    string
	ID      string
	Default bool
}

// getBackendForPlatform returns the miniaudio backend for the current
// platform.
func getBackendForPlatform() (malgo.Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa, nil
	case "windows":
		return malgo.BackendWasapi, nil
	case "darwin":
		return malgo.BackendCoreaudio, nil
	default:
		return malgo.BackendNull, errors.Newf("unsupported operating system: %s", runtime.GOOS).
			Component("driver").
			Category(errors.CategoryDevice).
			Build()
	}
}

// EnumerateCaptureDevices lists the available capture endpoints.
func EnumerateCaptureDevices() ([]DeviceInfo, error) {
	return enumerateDevices(malgo.Capture)
}

// EnumeratePlayoutDevices lists the available playback endpoints.
func EnumeratePlayoutDevices() ([]DeviceInfo, error) {
	return enumerateDevices(malgo.Playback)
}

func enumerateDevices(deviceType malgo.DeviceType) ([]DeviceInfo, error) {
	backend, err := getBackendForPlatform()
	if err != nil {
		return nil, err
	}
	ctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component("driver").
			Category(errors.CategoryDevice).
			Context("operation", "init_context").
			Build()
	}
	defer func() { _ = ctx.Uninit() }()

	infos, err := ctx.Devices(deviceType)
	if err != nil {
		return nil, errors.New(err).
			Component("driver").
			Category(errors.CategoryDevice).
			Context("operation", "enumerate_devices").
			Build()
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for i := range infos {
		decodedID, err := hexToASCII(infos[i].ID.String())
		if err != nil {
			decodedID = infos[i].ID.String()
		}
		devices = append(devices, DeviceInfo{
			Index:   i,
			Name:    infos[i].Name(),
			ID:      decodedID,
			Default: infos[i].IsDefault == 1,
		})
	}
	return devices, nil
}

// selectDevice finds the endpoint matching name. An empty name, "default"
// or "sysdefault" selects the platform default. Otherwise exact name,
// decoded ID and partial name matches are tried in that order.
func selectDevice(infos []malgo.DeviceInfo, name string) (*malgo.DeviceInfo, error) {
	if name == "" || name == "default" || name == "sysdefault" {
		for i := range infos {
			if infos[i].IsDefault == 1 {
				return &infos[i], nil
			}
		}
		if len(infos) > 0 {
			return &infos[0], nil
		}
		return nil, errors.Newf("no audio devices available").
			Component("driver").
			Category(errors.CategoryDevice).
			Build()
	}

	for i := range infos {
		if infos[i].Name() == name {
			return &infos[i], nil
		}
	}
	for i := range infos {
		decodedID, err := hexToASCII(infos[i].ID.String())
		if err == nil && decodedID == name {
			return &infos[i], nil
		}
	}
	for i := range infos {
		if strings.Contains(infos[i].Name(), name) {
			return &infos[i], nil
		}
	}
	return nil, errors.Newf("no matching audio device found").
		Component("driver").
		Category(errors.CategoryDevice).
		Context("device_name", name).
		Context("available_devices", len(infos)).
		Build()
}

// hexToASCII converts a hexadecimal string to an ASCII string. Device IDs
// arrive hex encoded from the backend on some platforms.
func hexToASCII(hexStr string) (string, error) {
	decoded, err := hex.DecodeString(hexStr)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
