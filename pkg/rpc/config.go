package rpc

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every option named in spec.md §6's configuration table, plus
// the TLS and auth extensions this module adds (SPEC_FULL.md "SUPPLEMENTED
// FEATURES"). mapstructure tags follow the teacher's go-server-3
// internal/config/config.go convention.
type Config struct {
	URL                           string        `mapstructure:"url"`
	ConnectTimeout                time.Duration `mapstructure:"connect_timeout"`
	DefaultRequestTimeout         time.Duration `mapstructure:"default_request_timeout"`
	ReadIdleTimeout               time.Duration `mapstructure:"read_idle_timeout"`
	WriteIdleTimeout              time.Duration `mapstructure:"write_idle_timeout"`
	MaxPendingRequests            int           `mapstructure:"max_pending_requests"`
	RingBufferSize                int           `mapstructure:"ring_buffer_size"`
	RingBufferSaturationThreshold float64       `mapstructure:"ring_buffer_saturation_threshold"`
	WriteBufferLowWaterMark       int           `mapstructure:"write_buffer_low_water_mark"`
	WriteBufferHighWaterMark      int           `mapstructure:"write_buffer_high_water_mark"`
	MaxFrameSize                  int64         `mapstructure:"max_frame_size"`
	MaxReconnectAttempts          int           `mapstructure:"max_reconnect_attempts"`
	BackpressureTimeout           time.Duration `mapstructure:"backpressure_timeout"`

	// TLSConfig and Auth are not viper-managed; they are set programmatically
	// by an embedder that holds key material, never loaded from a config file.
	TLSConfig *tls.Config `mapstructure:"-"`
	Auth      TokenSource `mapstructure:"-"`

	// OnReconnectExhausted, if set, is invoked once when the attempt budget
	// is exhausted and the connection gives up (§4.4). Not viper-managed —
	// an embedder wires this to capture a diagnostic snapshot before the
	// connection settles into Closed.
	OnReconnectExhausted func() `mapstructure:"-"`
}

// DefaultConfig returns the defaults named throughout spec.md §4.4-§4.7 and
// §6: 10 max reconnect attempts, 4096-slot ring buffer, 10% saturation
// threshold, 64 KiB default frame size.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:                10 * time.Second,
		DefaultRequestTimeout:         30 * time.Second,
		ReadIdleTimeout:               60 * time.Second,
		WriteIdleTimeout:              30 * time.Second,
		MaxPendingRequests:            8192,
		RingBufferSize:                4096,
		RingBufferSaturationThreshold: 0.10,
		WriteBufferLowWaterMark:       0,
		WriteBufferHighWaterMark:      0,
		MaxFrameSize:                  64 << 10,
		MaxReconnectAttempts:          10,
		BackpressureTimeout:           5 * time.Second,
	}
}

// Validate checks the invariants §6 calls out explicitly: a recognized
// scheme, a power-of-two ring buffer, a sane frame size ceiling, and
// low <= high water marks.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("rpc: url is required")
	}
	if !strings.HasPrefix(c.URL, "ws://") && !strings.HasPrefix(c.URL, "wss://") {
		return fmt.Errorf("rpc: url must use the ws:// or wss:// scheme, got %q", c.URL)
	}
	if c.RingBufferSize < 2 || c.RingBufferSize&(c.RingBufferSize-1) != 0 {
		return fmt.Errorf("rpc: ring_buffer_size must be a power of two >= 2, got %d", c.RingBufferSize)
	}
	if c.RingBufferSaturationThreshold <= 0 || c.RingBufferSaturationThreshold >= 1 {
		return fmt.Errorf("rpc: ring_buffer_saturation_threshold must be in (0,1), got %f", c.RingBufferSaturationThreshold)
	}
	if c.MaxFrameSize <= 0 || c.MaxFrameSize > 16<<20 {
		return fmt.Errorf("rpc: max_frame_size must be in (0, 16MiB], got %d", c.MaxFrameSize)
	}
	if c.WriteBufferLowWaterMark > c.WriteBufferHighWaterMark && c.WriteBufferHighWaterMark != 0 {
		return fmt.Errorf("rpc: write_buffer_low_water_mark (%d) exceeds high water mark (%d)", c.WriteBufferLowWaterMark, c.WriteBufferHighWaterMark)
	}
	return nil
}

// LoadConfig reads transport configuration from environment variables under
// the ETHWIRE_ prefix and an optional ethwire.yaml/.json config file,
// following go-server-3/internal/config/config.go's viper wiring.
func LoadConfig() (Config, error) {
	v := viper.New()
	d := DefaultConfig()

	v.SetDefault("connect_timeout", d.ConnectTimeout)
	v.SetDefault("default_request_timeout", d.DefaultRequestTimeout)
	v.SetDefault("read_idle_timeout", d.ReadIdleTimeout)
	v.SetDefault("write_idle_timeout", d.WriteIdleTimeout)
	v.SetDefault("max_pending_requests", d.MaxPendingRequests)
	v.SetDefault("ring_buffer_size", d.RingBufferSize)
	v.SetDefault("ring_buffer_saturation_threshold", d.RingBufferSaturationThreshold)
	v.SetDefault("write_buffer_low_water_mark", d.WriteBufferLowWaterMark)
	v.SetDefault("write_buffer_high_water_mark", d.WriteBufferHighWaterMark)
	v.SetDefault("max_frame_size", d.MaxFrameSize)
	v.SetDefault("max_reconnect_attempts", d.MaxReconnectAttempts)
	v.SetDefault("backpressure_timeout", d.BackpressureTimeout)

	v.SetConfigName("ethwire")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("ETHWIRE")
	v.AutomaticEnv()

	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("rpc: config unmarshal: %w", err)
	}
	return cfg, nil
}
