package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	MaxMessageBytes     int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	TypingTTL           time.Duration `mapstructure:"typing_ttl" yaml:"typing_ttl"`
	WSMessagesPerMinute int           `mapstructure:"ws_msgs_per_minute" yaml:"ws_msgs_per_minute"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,

		DBPath: "workchat.db",

		JWTSecret:   "change-me",
		JWTIssuer:   "workchat",
		JWTAudience: "workchat",
		JWTTTL:      7 * 24 * time.Hour,

		LogLevel: "info",

		MaxMessageBytes:     32 * 1024,
		TypingTTL:           5 * time.Second,
		WSMessagesPerMinute: 600,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.DBPath != "" {
		c.DBPath = other.DBPath
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.JWTIssuer != "" {
		c.JWTIssuer = other.JWTIssuer
	}
	if other.JWTAudience != "" {
		c.JWTAudience = other.JWTAudience
	}
	if other.JWTTTL != 0 {
		c.JWTTTL = other.JWTTTL
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.TypingTTL != 0 {
		c.TypingTTL = other.TypingTTL
	}
	if other.WSMessagesPerMinute != 0 {
		c.WSMessagesPerMinute = other.WSMessagesPerMinute
	}
}
