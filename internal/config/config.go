// Package config loads and validates TOML configuration for the server
// and client binaries.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ServerConfig configures one process running the TCP transport acceptor,
// the HTTP API, and the background job queue.
type ServerConfig struct {
	ID   string `toml:"id"`
	Host string `toml:"host"`
	Port int    `toml:"port"`

	HTTPAddr    string   `toml:"http_addr"`
	CORSOrigins []string `toml:"cors_origins"`

	AuthMode    string `toml:"auth_mode"` // "static" or "jwt"
	StaticToken string `toml:"static_token"`
	JWTSecret   string `toml:"jwt_secret"`
	JWTIssuer   string `toml:"jwt_issuer"`

	JobWorkers int    `toml:"job_workers"`
	RedisAddr  string `toml:"redis_addr"`

	FrameMaxBytes    int `toml:"frame_max_bytes"`
	ReadDeadlineMins int `toml:"read_deadline_minutes"`
}

// ClientConfig configures one client supervisor process dialing a remote
// server's transport acceptor.
type ClientConfig struct {
	ID         string `toml:"id"`
	TargetHost string `toml:"target_host"`
	TargetPort int    `toml:"target_port"`
	Scale      int    `toml:"scale"`

	BaseDelayMS     int `toml:"base_delay_ms"`
	MaxDelaySeconds int `toml:"max_delay_seconds"`
	MaxAttempts     int `toml:"max_attempts"`

	FrameMaxBytes int `toml:"frame_max_bytes"`
}

func LoadServerConfig(path string) (ServerConfig, error) {
	var cfg ServerConfig
	if err := loadToml(path, &cfg); err != nil {
		return ServerConfig{}, err
	}
	applyServerDefaults(&cfg)
	if err := ValidateServerConfig(cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func LoadClientConfig(path string) (ClientConfig, error) {
	var cfg ClientConfig
	if err := loadToml(path, &cfg); err != nil {
		return ClientConfig{}, err
	}
	applyClientDefaults(&cfg)
	if err := ValidateClientConfig(cfg); err != nil {
		return ClientConfig{}, err
	}
	return cfg, nil
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ID == "" {
		cfg.ID = "morphgrid.server"
	}
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.AuthMode == "" {
		cfg.AuthMode = "static"
	}
	if cfg.JobWorkers <= 0 {
		cfg.JobWorkers = 4
	}
	if cfg.FrameMaxBytes <= 0 {
		cfg.FrameMaxBytes = 16 * 1024 * 1024
	}
	if cfg.ReadDeadlineMins <= 0 {
		cfg.ReadDeadlineMins = 60
	}
}

func applyClientDefaults(cfg *ClientConfig) {
	if cfg.ID == "" {
		cfg.ID = "morphgrid.client"
	}
	if cfg.Scale <= 0 {
		cfg.Scale = 1
	}
	if cfg.BaseDelayMS <= 0 {
		cfg.BaseDelayMS = 500
	}
	if cfg.MaxDelaySeconds <= 0 {
		cfg.MaxDelaySeconds = 30
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = -1
	}
	if cfg.FrameMaxBytes <= 0 {
		cfg.FrameMaxBytes = 16 * 1024 * 1024
	}
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateServerConfig(cfg ServerConfig) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("server config missing id")
	}
	if strings.TrimSpace(cfg.Host) == "" {
		return fmt.Errorf("server config missing host")
	}
	switch cfg.AuthMode {
	case "static":
		if strings.TrimSpace(cfg.StaticToken) == "" {
			return fmt.Errorf("server config: auth_mode static requires static_token")
		}
	case "jwt":
		if strings.TrimSpace(cfg.JWTSecret) == "" {
			return fmt.Errorf("server config: auth_mode jwt requires jwt_secret")
		}
	default:
		return fmt.Errorf("server config: unknown auth_mode %q", cfg.AuthMode)
	}
	return nil
}

func ValidateClientConfig(cfg ClientConfig) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return fmt.Errorf("client config missing id")
	}
	if strings.TrimSpace(cfg.TargetHost) == "" {
		return fmt.Errorf("client config missing target_host")
	}
	if cfg.TargetPort <= 0 {
		return fmt.Errorf("client config missing target_port")
	}
	if cfg.Scale < 1 {
		return fmt.Errorf("client config scale must be >= 1")
	}
	return nil
}

// ReadDeadline returns the configured per-frame read deadline.
func (cfg ServerConfig) ReadDeadline() time.Duration {
	return time.Duration(cfg.ReadDeadlineMins) * time.Minute
}

// BaseDelay and MaxDelay convert the client's millisecond/second config
// fields into the time.Duration session.Config expects.
func (cfg ClientConfig) BaseDelay() time.Duration {
	return time.Duration(cfg.BaseDelayMS) * time.Millisecond
}

func (cfg ClientConfig) MaxDelay() time.Duration {
	return time.Duration(cfg.MaxDelaySeconds) * time.Second
}
