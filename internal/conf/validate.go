// conf/validate.go

package conf

import (
	"fmt"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateDeviceSettings("audio.capture", &settings.Audio.Capture); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateDeviceSettings("audio.playout", &settings.Audio.Playout); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateDemoSettings(&settings.Demo); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateMetricsSettings(&settings.Metrics); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateDeviceSettings(prefix string, ds *DeviceSettings) error {
	if ds.SampleRate < 8000 || ds.SampleRate > 384000 {
		return fmt.Errorf("%s.samplerate must be between 8000 and 384000, got %d", prefix, ds.SampleRate)
	}
	if ds.Channels < 1 || ds.Channels > 8 {
		return fmt.Errorf("%s.channels must be between 1 and 8, got %d", prefix, ds.Channels)
	}
	return nil
}

func validateDemoSettings(ds *DemoSettings) error {
	if ds.LoopbackBufferMs < 10 || ds.LoopbackBufferMs > 10000 {
		return fmt.Errorf("demo.loopbackbufferms must be between 10 and 10000, got %d", ds.LoopbackBufferMs)
	}
	return nil
}

func validateMetricsSettings(ms *MetricsSettings) error {
	if ms.Enabled && ms.Listen == "" {
		return fmt.Errorf("metrics.listen must be set when metrics.enabled is true")
	}
	return nil
}
