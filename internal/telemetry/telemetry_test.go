package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiodev-go/internal/conf"
	"github.com/tphakala/audiodev-go/internal/errors"
)

func TestInitDisabledIsNotAnError(t *testing.T) {
	settings := &conf.Settings{}
	settings.Sentry.Enabled = false

	require.NoError(t, Init(settings))
	assert.False(t, Enabled(), "disabled telemetry must not activate")
}

func TestInitEnabledRequiresDSN(t *testing.T) {
	settings := &conf.Settings{}
	settings.Sentry.Enabled = true
	settings.Sentry.Dsn = ""

	err := Init(settings)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	assert.False(t, Enabled())
}

func TestFlushWithoutInitReturnsImmediately(t *testing.T) {
	start := time.Now()
	Flush(5 * time.Second)
	assert.Less(t, time.Since(start), time.Second, "inactive flush must not block")
}
