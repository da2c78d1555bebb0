package config

import "time"

// Config holds coordinator configuration values shared by the server and the
// client session layer.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	JWTSecret         string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`

	RateCapacity       int           `mapstructure:"rate_capacity" yaml:"rate_capacity"`
	RateRefillInterval time.Duration `mapstructure:"rate_refill_interval" yaml:"rate_refill_interval"`
	TypingTTL          time.Duration `mapstructure:"typing_ttl" yaml:"typing_ttl"`
	ReactionTTL        time.Duration `mapstructure:"reaction_ttl" yaml:"reaction_ttl"`
	ReconnectInterval  time.Duration `mapstructure:"reconnect_interval" yaml:"reconnect_interval"`
	ReconnectCap       int           `mapstructure:"reconnect_cap" yaml:"reconnect_cap"`
	HeartbeatInterval  time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	AttendanceInterval time.Duration `mapstructure:"attendance_interval" yaml:"attendance_interval"`
	AttendanceBaseURL  string        `mapstructure:"attendance_base_url" yaml:"attendance_base_url"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		JWTSecret:         "dev-secret-change-me",

		RateCapacity:       10,
		RateRefillInterval: 10 * time.Second,
		TypingTTL:          3 * time.Second,
		ReactionTTL:        3 * time.Second,
		ReconnectInterval:  3 * time.Second,
		ReconnectCap:       10,
		HeartbeatInterval:  30 * time.Second,
		AttendanceInterval: time.Minute,
	}
}
