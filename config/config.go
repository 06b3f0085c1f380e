// Package config loads runtime configuration for the sync server and
// demo client. Values come from an optional JSON config file with
// sensible defaults; binaries may still override via flags.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/CeeLav/Astrum-sub001/shared/netconfig"
)

// Load reads configuration from framesync.cfg.json in configDir after
// installing defaults. A missing file is not an error: defaults apply.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logConsole", true)

	viper.SetDefault("server.port", 7373)
	viper.SetDefault("server.name", "Astrum Sync Server")
	viper.SetDefault("server.version", "")

	viper.SetDefault("sync.tickRate", netconfig.TickRate)
	viper.SetDefault("sync.maxPredictionAhead", netconfig.MaxPredictionAhead)
	viper.SetDefault("sync.maxBufferAhead", netconfig.MaxBufferAhead)
	viper.SetDefault("sync.defaultInputPolicy", "repeat-last")
	viper.SetDefault("sync.autoStartPlayers", 2)

	viper.SetDefault("replay.enabled", false)
	viper.SetDefault("replay.appName", "astrum-sync")

	viper.SetConfigName("framesync.cfg.json")
	viper.SetConfigType("json")
	viper.AddConfigPath(configDir)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
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

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// TickInterval derives the frame close interval from the configured
// tick rate.
func TickInterval() time.Duration {
	rate := viper.GetInt("sync.tickRate")
	if rate <= 0 {
		rate = netconfig.TickRate
	}
	return time.Second / time.Duration(rate)
}

// InputPolicy maps the configured policy name to its enum value.
// Unknown names fall back to repeat-last.
func InputPolicy() netconfig.DefaultInputPolicy {
	if viper.GetString("sync.defaultInputPolicy") == "neutral" {
		return netconfig.Neutral
	}
	return netconfig.RepeatLast
}
