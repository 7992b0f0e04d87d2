package errors

import (
	"fmt"
	"testing"
)

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	err := fmt.Errorf("test error")
	ee := New(err).Build()

	if ee.Err.Error() != "test error" {
		t.Errorf("Expected error message 'test error', got '%s'", ee.Err.Error())
	}

	if ee.GetComponent() != ComponentUnknown {
		t.Errorf("Expected component 'unknown' in fast path, got '%s'", ee.GetComponent())
	}

	if ee.Category != CategoryGeneric {
		t.Errorf("Expected category 'generic' in fast path, got '%s'", ee.Category)
	}
}

func TestBuilderFields(t *testing.T) {
	t.Parallel()

	ee := Newf("device %s not found", "hw:1").
		Component("driver").
		Category(CategoryDevice).
		Context("device_name", "hw:1").
		Build()

	if ee.GetComponent() != "driver" {
		t.Errorf("Expected component 'driver', got '%s'", ee.GetComponent())
	}
	if ee.Category != CategoryDevice {
		t.Errorf("Expected category %q, got %q", CategoryDevice, ee.Category)
	}
	ctx := ee.GetContext()
	if ctx["device_name"] != "hw:1" {
		t.Errorf("Expected context device_name 'hw:1', got %v", ctx["device_name"])
	}
	if ee.GetTimestamp().IsZero() {
		t.Error("Expected non-zero timestamp")
	}
}

func TestCategoryMatching(t *testing.T) {
	t.Parallel()

	ee := New(fmt.Errorf("already running")).Category(CategoryConflict).Build()

	if !IsCategory(ee, CategoryConflict) {
		t.Error("IsCategory should match CategoryConflict")
	}
	if IsCategory(ee, CategoryState) {
		t.Error("IsCategory should not match CategoryState")
	}

	// Category-based Is between two enhanced errors
	other := New(fmt.Errorf("different message")).Category(CategoryConflict).Build()
	if !Is(ee, other) {
		t.Error("Is should match enhanced errors by category")
	}
}

func TestUnwrapPreservesSentinel(t *testing.T) {
	t.Parallel()

	sentinel := NewStd("sentinel")
	wrapped := New(fmt.Errorf("outer: %w", sentinel)).Category(CategoryTransport).Build()

	if !Is(wrapped, sentinel) {
		t.Error("Is should find the sentinel through the enhanced wrapper")
	}
	if Unwrap(wrapped) == nil {
		t.Error("Unwrap should return the wrapped error")
	}
}

func TestIsNotSupported(t *testing.T) {
	t.Parallel()

	ee := New(fmt.Errorf("per-channel recording")).Category(CategoryNotSupported).Build()
	if !IsNotSupported(ee) {
		t.Error("IsNotSupported should match CategoryNotSupported")
	}
	if IsNotSupported(fmt.Errorf("plain")) {
		t.Error("IsNotSupported should not match a plain error")
	}
}

type captureReporter struct {
	enabled bool
	got     []*EnhancedError
}

func (cr *captureReporter) ReportError(ee *EnhancedError) {
	cr.got = append(cr.got, ee)
	ee.MarkReported()
}

func (cr *captureReporter) IsEnabled() bool { return cr.enabled }

func TestReporterHook(t *testing.T) {
	reporter := &captureReporter{enabled: true}
	SetTelemetryReporter(reporter)
	defer SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("transport gone")).
		Component("devicebuffer").
		Category(CategoryTransport).
		Build()

	if len(reporter.got) != 1 {
		t.Fatalf("Expected 1 reported error, got %d", len(reporter.got))
	}
	if reporter.got[0] != ee {
		t.Error("Reporter should receive the built error")
	}
	if !ee.IsReported() {
		t.Error("Built error should be marked reported")
	}
}

func TestDisabledReporterSkipsReporting(t *testing.T) {
	reporter := &captureReporter{enabled: false}
	SetTelemetryReporter(reporter)
	defer SetTelemetryReporter(nil)

	New(fmt.Errorf("quiet")).Category(CategoryAudio).Build()

	if len(reporter.got) != 0 {
		t.Errorf("Disabled reporter should receive nothing, got %d", len(reporter.got))
	}
}
