package api

import (
	"fmt"
	"time"
)

// Config holds HTTP server configuration.
type Config struct {
	Addr         string        `yaml:"addr" mapstructure:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxBatch     int           `yaml:"max_batch" mapstructure:"max_batch"`
	Auth         AuthConfig    `yaml:"auth" mapstructure:"auth"`
}

// AuthConfig configures bearer-token authentication.
type AuthConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Secret  string `yaml:"secret" mapstructure:"secret"`
	// Method is the HMAC signing algorithm: HS256, HS384 or HS512.
	Method string        `yaml:"method" mapstructure:"method"`
	Issuer string        `yaml:"issuer" mapstructure:"issuer"`
	TTL    time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// ApplyDefaults sets defaults for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 10 << 20
	}
	if c.MaxBatch == 0 {
		c.MaxBatch = 1000
	}
	if c.Auth.Method == "" {
		c.Auth.Method = "HS256"
	}
	if c.Auth.TTL == 0 {
		c.Auth.TTL = time.Hour
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 {
		return fmt.Errorf("api: timeouts must be non-negative")
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("api.max_body_bytes must be non-negative (got: %d)", c.MaxBodyBytes)
	}
	if c.MaxBatch < 0 {
		return fmt.Errorf("api.max_batch must be non-negative (got: %d)", c.MaxBatch)
	}
	if !c.Auth.Enabled {
		return nil
	}
	if _, ok := signingMethods[c.Auth.Method]; !ok {
		return fmt.Errorf("api.auth.method must be one of HS256, HS384, HS512 (got: %s)", c.Auth.Method)
	}
	if len(c.Auth.Secret) < 32 {
		return fmt.Errorf("api.auth.secret must be at least 32 bytes when auth is enabled")
	}
	return nil
}
