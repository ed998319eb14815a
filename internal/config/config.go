// Package config loads ethwire's process-level configuration: the RPC
// transport options, the logger, and the path to an ABI JSON file to load
// at startup. Wiring follows go-server-3/internal/config/config.go's viper
// pattern — v.SetDefault per field, ETHWIRE_-prefixed env overrides, an
// optional config file — generalized from that file's Server/WebSocket/NATS
// sections to ethwire's rpc/logging sections.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"ethwire/internal/logging"
	"ethwire/pkg/rpc"
)

// Config is the top-level process configuration.
type Config struct {
	RPC     rpc.Config     `mapstructure:"rpc"`
	Logging logging.Config `mapstructure:"logging"`
	ABIPath string         `mapstructure:"abi_path"`
}

// Load reads configuration from environment variables under the ETHWIRE_
// prefix and an optional ethwire.yaml/.json config file in "." or
// "./config", falling back to the built-in defaults for anything unset.
// The RPC section is not validated here; rpc.Dial validates it, after any
// command-line overrides have been applied.
func Load() (Config, error) {
	v := viper.New()
	d := rpc.DefaultConfig()
	l := logging.DefaultConfig()

	v.SetDefault("rpc.url", d.URL)
	v.SetDefault("rpc.connect_timeout", d.ConnectTimeout)
	v.SetDefault("rpc.default_request_timeout", d.DefaultRequestTimeout)
	v.SetDefault("rpc.read_idle_timeout", d.ReadIdleTimeout)
	v.SetDefault("rpc.write_idle_timeout", d.WriteIdleTimeout)
	v.SetDefault("rpc.max_pending_requests", d.MaxPendingRequests)
	v.SetDefault("rpc.ring_buffer_size", d.RingBufferSize)
	v.SetDefault("rpc.ring_buffer_saturation_threshold", d.RingBufferSaturationThreshold)
	v.SetDefault("rpc.write_buffer_low_water_mark", d.WriteBufferLowWaterMark)
	v.SetDefault("rpc.write_buffer_high_water_mark", d.WriteBufferHighWaterMark)
	v.SetDefault("rpc.max_frame_size", d.MaxFrameSize)
	v.SetDefault("rpc.max_reconnect_attempts", d.MaxReconnectAttempts)
	v.SetDefault("rpc.backpressure_timeout", d.BackpressureTimeout)

	v.SetDefault("logging.level", l.Level)
	v.SetDefault("logging.json", l.JSON)

	v.SetDefault("abi_path", "")

	v.SetConfigName("ethwire")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("ETHWIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}
