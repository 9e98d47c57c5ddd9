// Package config loads service configuration from a JSON file with
// sensible defaults for every key.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/shiftpulse/pulsemap/pkg/core"
)

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./pulselogs")

	viper.SetDefault("map.styleUrl", "mapbox://styles/mapbox/streets-v12")
	viper.SetDefault("map.accessToken", "")
	viper.SetDefault("map.defaultCenter.lat", 17.4065)
	viper.SetDefault("map.defaultCenter.lng", 78.4772)
	viper.SetDefault("map.defaultZoom", 11)

	viper.SetDefault("feed.url", "ws://localhost:5000/ws/pulse")
	viper.SetDefault("feed.secret", "")

	viper.SetDefault("remote.listenAddr", "")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "pulse-metrics")

	viper.SetConfigName("pulsemap.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetFloat64 returns a float config value.
func GetFloat64(key string) float64 {
	return viper.GetFloat64(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// DefaultCenter returns the configured map center.
func DefaultCenter() core.Coordinate {
	return core.Coordinate{
		Lng: viper.GetFloat64("map.defaultCenter.lng"),
		Lat: viper.GetFloat64("map.defaultCenter.lat"),
	}
}
