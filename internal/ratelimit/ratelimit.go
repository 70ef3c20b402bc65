// Package ratelimit throttles commands from one bridge client: a sliding
// window caps the command rate and a cooldown refuses an identical command
// sent again too soon, such as a double-clicked Resign.
package ratelimit

import (
	"sync"
	"time"
)

// Reasons reported in CheckResult.
const (
	ReasonRate   = "rate"
	ReasonRepeat = "repeat"
)

// Config sets the limits for one Tracker. MaxCommands commands are allowed
// per TimeWindow, and the same key is refused for RepeatCooldown after it
// was accepted.
type Config struct {
	Enabled        bool
	MaxCommands    int
	TimeWindow     time.Duration
	RepeatCooldown time.Duration
}

// DefaultConfig returns the limits used by the bridge
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		MaxCommands:    20,
		TimeWindow:     10 * time.Second,
		RepeatCooldown: time.Second,
	}
}

// ConfigFromYAML creates a Config from YAML-loaded values. Zero values keep
// the defaults.
func ConfigFromYAML(enabled bool, maxCommands, windowMS, repeatCooldownMS int) Config {
	cfg := DefaultConfig()
	cfg.Enabled = enabled
	if maxCommands > 0 {
		cfg.MaxCommands = maxCommands
	}
	if windowMS > 0 {
		cfg.TimeWindow = time.Duration(windowMS) * time.Millisecond
	}
	if repeatCooldownMS > 0 {
		cfg.RepeatCooldown = time.Duration(repeatCooldownMS) * time.Millisecond
	}
	return cfg
}

// Tracker holds the recent command history of one client.
type Tracker struct {
	mu       sync.Mutex
	config   Config
	window   []time.Time          // accepted commands, oldest first
	lastSeen map[string]time.Time // key -> time accepted
}

// NewTracker creates a tracker with the given config
func NewTracker(config Config) *Tracker {
	return &Tracker{
		config:   config,
		window:   make([]time.Time, 0, config.MaxCommands),
		lastSeen: make(map[string]time.Time),
	}
}

// CheckResult contains the result of a check
type CheckResult struct {
	Allowed bool
	Reason  string        // ReasonRate or ReasonRepeat when refused
	Wait    time.Duration // How long until the command would be allowed
}

// Check decides whether the command identified by key may run now and
// records it if so.
func (t *Tracker) Check(key string) CheckResult {
	if t == nil || !t.config.Enabled {
		return CheckResult{Allowed: true}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.cleanup(now)

	if at, ok := t.lastSeen[key]; ok && now.Sub(at) < t.config.RepeatCooldown {
		return CheckResult{Reason: ReasonRepeat, Wait: at.Add(t.config.RepeatCooldown).Sub(now)}
	}
	if len(t.window) >= t.config.MaxCommands {
		return CheckResult{Reason: ReasonRate, Wait: t.window[0].Add(t.config.TimeWindow).Sub(now)}
	}

	t.window = append(t.window, now)
	t.lastSeen[key] = now

	return CheckResult{Allowed: true}
}

// cleanup drops history older than the window and keys past their cooldown.
func (t *Tracker) cleanup(now time.Time) {
	cutoff := now.Add(-t.config.TimeWindow)
	kept := t.window[:0]
	for _, at := range t.window {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	t.window = kept

	repeatCutoff := now.Add(-t.config.RepeatCooldown)
	for key, at := range t.lastSeen {
		if at.Before(repeatCutoff) {
			delete(t.lastSeen, key)
		}
	}
}

// Reset clears all tracking data
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.window = make([]time.Time, 0, t.config.MaxCommands)
	t.lastSeen = make(map[string]time.Time)
}
