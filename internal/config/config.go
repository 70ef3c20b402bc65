package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lawnchairsociety/tlcsview/internal/client"
)

// Config holds the viewer's configuration.
type Config struct {
	TLCS   TLCSConfig   `yaml:"tlcs"`
	Bridge BridgeConfig `yaml:"bridge"`
}

// TLCSConfig describes the relay connection.
type TLCSConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// GameID is sent with SUBSCRIBE after login. Empty means no subscription.
	GameID string `yaml:"game_id"`

	AutoReconnect bool `yaml:"auto_reconnect"`

	// ReconnectIntervalMS is the fixed delay between automatic attempts.
	// Values below one second are raised to one second.
	ReconnectIntervalMS int `yaml:"reconnect_interval_ms"`

	DialTimeoutMS       int    `yaml:"dial_timeout_ms"`
	HandshakeTimeoutMS  int    `yaml:"handshake_timeout_ms"`
	WriteTimeoutMS      int    `yaml:"write_timeout_ms"`
	KeepAliveIntervalMS int    `yaml:"keepalive_interval_ms"`
	KeepAlivePayload    string `yaml:"keepalive_payload"`
}

// BridgeConfig holds settings for the WebSocket bridge.
type BridgeConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`

	// AllowedOrigins is a list of origins allowed to connect via WebSocket.
	// Empty list enforces same-origin policy.
	// Use "*" to allow all origins.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxMessageSize is the maximum inbound WebSocket message size in bytes.
	MaxMessageSize int64 `yaml:"max_message_size"`

	// TokenHash is a bcrypt hash of the bearer token clients must present.
	// Empty disables token checks.
	TokenHash string `yaml:"token_hash"`

	// MetricsEnabled serves Prometheus metrics at /metrics.
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// MaxClients and MaxClientsPerIP cap open bridge connections.
	// Zero means unlimited.
	MaxClients      int `yaml:"max_clients"`
	MaxClientsPerIP int `yaml:"max_clients_per_ip"`

	// TokenLockout locks out addresses that keep presenting bad tokens.
	TokenLockout LockoutConfig `yaml:"token_lockout"`

	// CommandRateLimit throttles commands from each bridge client.
	CommandRateLimit RateLimitConfig `yaml:"command_rate_limit"`
}

// LockoutConfig holds bad-token lockout settings. The lockout doubles on
// every repeat up to MaxLockoutSeconds.
type LockoutConfig struct {
	MaxAttempts       int `yaml:"max_attempts"`
	LockoutSeconds    int `yaml:"lockout_seconds"`
	MaxLockoutSeconds int `yaml:"max_lockout_seconds"`
}

// RateLimitConfig holds per-client command limits.
type RateLimitConfig struct {
	Enabled          bool `yaml:"enabled"`
	MaxCommands      int  `yaml:"max_commands"`
	WindowMS         int  `yaml:"window_ms"`
	RepeatCooldownMS int  `yaml:"repeat_cooldown_ms"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		TLCS: TLCSConfig{
			Port:                1965,
			AutoReconnect:       true,
			ReconnectIntervalMS: 2000,
			DialTimeoutMS:       10000,
			HandshakeTimeoutMS:  10000,
			WriteTimeoutMS:      10000,
			KeepAliveIntervalMS: 30000,
			KeepAlivePayload:    "PING",
		},
		Bridge: BridgeConfig{
			Enabled:         false,
			Address:         "127.0.0.1:8765",
			AllowedOrigins:  []string{}, // Same-origin only by default
			MaxMessageSize:  4096,
			MetricsEnabled:  true,
			MaxClients:      16,
			MaxClientsPerIP: 8,
			TokenLockout: LockoutConfig{
				MaxAttempts:       5,
				LockoutSeconds:    30,
				MaxLockoutSeconds: 300,
			},
			CommandRateLimit: RateLimitConfig{
				Enabled:          true,
				MaxCommands:      20,
				WindowMS:         10000,
				RepeatCooldownMS: 1000,
			},
		},
	}
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, returns default config.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil // Use defaults if file doesn't exist
		}
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return DefaultConfig(), err
	}

	return config, nil
}

// LoadDotEnv loads variables from a .env file into the process environment.
// Variables already set are not overridden. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides configuration from TLCS_* and BRIDGE_* variables.
func (c *Config) ApplyEnv() error {
	if host := os.Getenv("TLCS_HOST"); host != "" {
		c.TLCS.Host = host
	}
	if port := os.Getenv("TLCS_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid TLCS_PORT %q: %w", port, err)
		}
		c.TLCS.Port = p
	}
	if username := os.Getenv("TLCS_USERNAME"); username != "" {
		c.TLCS.Username = username
	}
	if password, ok := os.LookupEnv("TLCS_PASSWORD"); ok {
		c.TLCS.Password = password
	}
	if gameID := os.Getenv("TLCS_GAME_ID"); gameID != "" {
		c.TLCS.GameID = gameID
	}
	if auto := os.Getenv("TLCS_AUTO_RECONNECT"); auto != "" {
		enabled, err := strconv.ParseBool(auto)
		if err != nil {
			return fmt.Errorf("invalid TLCS_AUTO_RECONNECT %q: %w", auto, err)
		}
		c.TLCS.AutoReconnect = enabled
	}
	if interval := os.Getenv("TLCS_RECONNECT_INTERVAL_MS"); interval != "" {
		ms, err := strconv.Atoi(interval)
		if err != nil {
			return fmt.Errorf("invalid TLCS_RECONNECT_INTERVAL_MS %q: %w", interval, err)
		}
		c.TLCS.ReconnectIntervalMS = ms
	}
	if address := os.Getenv("BRIDGE_ADDRESS"); address != "" {
		c.Bridge.Address = address
		c.Bridge.Enabled = true
	}
	if origins := os.Getenv("BRIDGE_ALLOWED_ORIGINS"); origins != "" {
		c.Bridge.AllowedOrigins = splitList(origins)
	}
	if hash := os.Getenv("BRIDGE_TOKEN_HASH"); hash != "" {
		c.Bridge.TokenHash = hash
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ConnectionConfig converts the relay settings for the client Manager.
func (c TLCSConfig) ConnectionConfig() client.ConnectionConfig {
	return client.ConnectionConfig{
		Host:              c.Host,
		Port:              c.Port,
		Username:          c.Username,
		Password:          c.Password,
		GameID:            c.GameID,
		AutoReconnect:     c.AutoReconnect,
		ReconnectInterval: millis(c.ReconnectIntervalMS),
		DialTimeout:       millis(c.DialTimeoutMS),
		HandshakeTimeout:  millis(c.HandshakeTimeoutMS),
		WriteTimeout:      millis(c.WriteTimeoutMS),
		KeepAliveInterval: millis(c.KeepAliveIntervalMS),
		KeepAlivePayload:  c.KeepAlivePayload,
	}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// IsOriginAllowed checks if the given origin is allowed based on the config.
// Returns true if:
// - AllowedOrigins contains "*" (allow all)
// - AllowedOrigins contains the exact origin
// - AllowedOrigins is empty and origin matches the request host (same-origin)
func (c *BridgeConfig) IsOriginAllowed(origin, requestHost string) bool {
	if len(c.AllowedOrigins) == 0 {
		return isSameOrigin(origin, requestHost)
	}

	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	return false
}

// isSameOrigin checks if the origin matches the request host (same-origin policy).
func isSameOrigin(origin, requestHost string) bool {
	if origin == "" {
		return true // No origin header means a non-browser client
	}

	originHost := origin
	if idx := strings.Index(origin, "://"); idx != -1 {
		originHost = origin[idx+3:]
	}
	originHost = strings.TrimSuffix(originHost, "/")

	return originHost == requestHost
}
