package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if cfg.TLCS.Port != 1965 {
		t.Errorf("expected default port 1965, got %d", cfg.TLCS.Port)
	}
	if !cfg.TLCS.AutoReconnect {
		t.Error("expected auto-reconnect on by default")
	}
	if cfg.TLCS.ReconnectIntervalMS != 2000 {
		t.Errorf("expected reconnect interval 2000ms, got %d", cfg.TLCS.ReconnectIntervalMS)
	}
	if cfg.Bridge.Enabled {
		t.Error("expected bridge disabled by default")
	}
	if len(cfg.Bridge.AllowedOrigins) != 0 {
		t.Errorf("expected empty allowed origins by default, got %v", cfg.Bridge.AllowedOrigins)
	}
	if rl := cfg.Bridge.CommandRateLimit; !rl.Enabled || rl.MaxCommands != 20 || rl.RepeatCooldownMS != 1000 {
		t.Errorf("unexpected default command rate limit %+v", rl)
	}
}

func TestLoadConfig_FileNotExists(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/tlcs.yaml")

	if err != nil {
		t.Errorf("expected no error for missing file, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config for missing file, got nil")
	}
	if cfg.TLCS.Port != 1965 {
		t.Errorf("expected default port, got %d", cfg.TLCS.Port)
	}
}

func TestLoadConfig_ValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "tlcs.yaml")

	content := `
tlcs:
  host: 10.0.0.2
  port: 1966
  username: user
  password: pw
  game_id: round3-board1
  auto_reconnect: false
  reconnect_interval_ms: 5000
bridge:
  enabled: true
  address: "127.0.0.1:9000"
  allowed_origins:
    - "http://localhost:3000"
  max_message_size: 8192
  command_rate_limit:
    enabled: false
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.TLCS.Host != "10.0.0.2" || cfg.TLCS.Port != 1966 {
		t.Errorf("expected 10.0.0.2:1966, got %s:%d", cfg.TLCS.Host, cfg.TLCS.Port)
	}
	if cfg.TLCS.AutoReconnect {
		t.Error("expected auto_reconnect false from file")
	}
	if cfg.TLCS.GameID != "round3-board1" {
		t.Errorf("expected game id round3-board1, got %q", cfg.TLCS.GameID)
	}
	// Keys absent from the file keep their defaults.
	if cfg.TLCS.KeepAliveIntervalMS != 30000 {
		t.Errorf("expected default keep-alive interval, got %d", cfg.TLCS.KeepAliveIntervalMS)
	}
	if !cfg.Bridge.Enabled || cfg.Bridge.Address != "127.0.0.1:9000" {
		t.Errorf("unexpected bridge config %+v", cfg.Bridge)
	}
	if cfg.Bridge.MaxMessageSize != 8192 {
		t.Errorf("expected max message size 8192, got %d", cfg.Bridge.MaxMessageSize)
	}
	if cfg.Bridge.CommandRateLimit.Enabled || cfg.Bridge.CommandRateLimit.WindowMS != 10000 {
		t.Errorf("unexpected command rate limit %+v", cfg.Bridge.CommandRateLimit)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "tlcs.yaml")
	if err := os.WriteFile(configPath, []byte("tlcs: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(configPath)
	if err == nil {
		t.Error("expected parse error")
	}
	if cfg == nil || cfg.TLCS.Port != 1965 {
		t.Error("expected defaults alongside a parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("TLCS_HOST", "10.0.0.2")
	t.Setenv("TLCS_PORT", "1965")
	t.Setenv("TLCS_USERNAME", "user")
	t.Setenv("TLCS_PASSWORD", "pw")
	t.Setenv("TLCS_AUTO_RECONNECT", "false")
	t.Setenv("TLCS_RECONNECT_INTERVAL_MS", "3000")
	t.Setenv("TLCS_GAME_ID", "g7")
	t.Setenv("BRIDGE_ADDRESS", ":8080")
	t.Setenv("BRIDGE_ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	if cfg.TLCS.Host != "10.0.0.2" || cfg.TLCS.Username != "user" || cfg.TLCS.Password != "pw" {
		t.Errorf("unexpected relay settings %+v", cfg.TLCS)
	}
	if cfg.TLCS.AutoReconnect {
		t.Error("expected auto-reconnect off from env")
	}
	if cfg.TLCS.ReconnectIntervalMS != 3000 || cfg.TLCS.GameID != "g7" {
		t.Errorf("unexpected relay settings %+v", cfg.TLCS)
	}
	if !cfg.Bridge.Enabled || cfg.Bridge.Address != ":8080" {
		t.Errorf("expected bridge enabled on :8080, got %+v", cfg.Bridge)
	}
	if len(cfg.Bridge.AllowedOrigins) != 2 || cfg.Bridge.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("unexpected origins %v", cfg.Bridge.AllowedOrigins)
	}
}

func TestApplyEnv_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"TLCS_PORT", "abc"},
		{"TLCS_AUTO_RECONNECT", "maybe"},
		{"TLCS_RECONNECT_INTERVAL_MS", "2s"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if err := DefaultConfig().ApplyEnv(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("expected missing .env to be ignored, got %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("TLCS_GAME_ID=from-dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TLCS_GAME_ID", "")
	os.Unsetenv("TLCS_GAME_ID")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("TLCS_GAME_ID"); got != "from-dotenv" {
		t.Errorf("TLCS_GAME_ID = %q, want from-dotenv", got)
	}
}

func TestConnectionConfig(t *testing.T) {
	cfg := DefaultConfig().TLCS
	cfg.Host = "10.0.0.2"
	cfg.Username = "user"
	cfg.Password = "pw"

	cc := cfg.ConnectionConfig()
	if cc.Host != "10.0.0.2" || cc.Port != 1965 || cc.Username != "user" || cc.Password != "pw" {
		t.Errorf("unexpected connection config %+v", cc)
	}
	if !cc.AutoReconnect || cc.ReconnectInterval != 2*time.Second {
		t.Errorf("unexpected reconnect policy %v/%v", cc.AutoReconnect, cc.ReconnectInterval)
	}
	if cc.KeepAliveInterval != 30*time.Second || cc.KeepAlivePayload != "PING" {
		t.Errorf("unexpected keep-alive %v/%q", cc.KeepAliveInterval, cc.KeepAlivePayload)
	}
	if err := cc.Validate(); err != nil {
		t.Errorf("converted config invalid: %v", err)
	}
}

func TestIsOriginAllowed_EmptyList_SameOrigin(t *testing.T) {
	cfg := BridgeConfig{
		AllowedOrigins: []string{},
	}

	if !cfg.IsOriginAllowed("", "localhost:8765") {
		t.Error("expected empty origin to be allowed (same-origin)")
	}
	if !cfg.IsOriginAllowed("http://localhost:8765", "localhost:8765") {
		t.Error("expected matching origin to be allowed (same-origin)")
	}
	if cfg.IsOriginAllowed("http://evil.com", "localhost:8765") {
		t.Error("expected different origin to be rejected (same-origin policy)")
	}
}

func TestIsOriginAllowed_Wildcard(t *testing.T) {
	cfg := BridgeConfig{
		AllowedOrigins: []string{"*"},
	}

	if !cfg.IsOriginAllowed("http://anything.com", "localhost:8765") {
		t.Error("expected wildcard to allow any origin")
	}
}

func TestIsOriginAllowed_ExactMatch(t *testing.T) {
	cfg := BridgeConfig{
		AllowedOrigins: []string{
			"https://example.com",
			"http://localhost:3000",
		},
	}

	if !cfg.IsOriginAllowed("http://localhost:3000", "localhost:8765") {
		t.Error("expected exact match to be allowed")
	}
	if cfg.IsOriginAllowed("http://evil.com", "localhost:8765") {
		t.Error("expected non-matching origin to be rejected")
	}
	if cfg.IsOriginAllowed("https://example.com:8080", "localhost:8765") {
		t.Error("expected partial match to be rejected")
	}
}

func TestIsSameOrigin(t *testing.T) {
	tests := []struct {
		origin string
		host   string
		want   bool
	}{
		{"", "localhost:8765", true},
		{"http://localhost:8765", "localhost:8765", true},
		{"http://localhost:8765/", "localhost:8765", true},
		{"https://localhost:8765", "localhost:8765", true},
		{"http://localhost:3000", "localhost:8765", false},
	}

	for _, tt := range tests {
		if got := isSameOrigin(tt.origin, tt.host); got != tt.want {
			t.Errorf("isSameOrigin(%q, %q) = %v, want %v", tt.origin, tt.host, got, tt.want)
		}
	}
}

func TestLoadConfig_SampleFile(t *testing.T) {
	cfg, err := LoadConfig("../../data/tlcs.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defaults := DefaultConfig()
	if cfg.TLCS.Port != defaults.TLCS.Port || cfg.TLCS.KeepAlivePayload != defaults.TLCS.KeepAlivePayload {
		t.Errorf("sample relay settings drifted from defaults: %+v", cfg.TLCS)
	}
	if cfg.Bridge.Address != defaults.Bridge.Address || cfg.Bridge.CommandRateLimit != defaults.Bridge.CommandRateLimit {
		t.Errorf("sample bridge settings drifted from defaults: %+v", cfg.Bridge)
	}
}
