// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "audiodev-go")

	viper.SetDefault("audio.capture.device", "")
	viper.SetDefault("audio.capture.samplerate", 48000)
	viper.SetDefault("audio.capture.channels", 1)

	viper.SetDefault("audio.playout.device", "")
	viper.SetDefault("audio.playout.samplerate", 48000)
	viper.SetDefault("audio.playout.channels", 1)

	viper.SetDefault("demo.loopbackbufferms", 200)
	viper.SetDefault("demo.file", "")
	viper.SetDefault("demo.loop", false)

	viper.SetDefault("log.enabled", true)
	viper.SetDefault("log.path", "audiodev.log")
	viper.SetDefault("log.rotation", RotationDaily)
	viper.SetDefault("log.maxsize", 1048576)

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.listen", "localhost:9090")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.environment", "production")
}
