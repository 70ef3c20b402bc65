package ratelimit

import (
	"fmt"
	"testing"
	"time"
)

func TestRateLimit(t *testing.T) {
	config := Config{
		Enabled:        true,
		MaxCommands:    3,
		TimeWindow:     1 * time.Second,
		RepeatCooldown: 30 * time.Second,
	}
	tracker := NewTracker(config)

	for i := 0; i < 3; i++ {
		if result := tracker.Check(fmt.Sprintf("action %d", i)); !result.Allowed {
			t.Errorf("Command %d should be allowed", i+1)
		}
	}

	result := tracker.Check("action 4")
	if result.Allowed {
		t.Error("4th command should be blocked by rate limit")
	}
	if result.Reason != ReasonRate {
		t.Errorf("Reason = %q, want %q", result.Reason, ReasonRate)
	}
	if result.Wait <= 0 || result.Wait > time.Second {
		t.Errorf("Wait = %v, want within the window", result.Wait)
	}
}

func TestRepeatDetection(t *testing.T) {
	config := Config{
		Enabled:        true,
		MaxCommands:    10,
		TimeWindow:     10 * time.Second,
		RepeatCooldown: 1 * time.Second,
	}
	tracker := NewTracker(config)

	if result := tracker.Check("action Resign"); !result.Allowed {
		t.Error("First command should be allowed")
	}

	result := tracker.Check("action Resign")
	if result.Allowed {
		t.Error("Repeated command should be blocked")
	}
	if result.Reason != ReasonRepeat {
		t.Errorf("Reason = %q, want %q", result.Reason, ReasonRepeat)
	}

	if result := tracker.Check("action OfferDraw"); !result.Allowed {
		t.Error("Different command should be allowed")
	}
}

func TestRepeatCooldownExpires(t *testing.T) {
	config := Config{
		Enabled:        true,
		MaxCommands:    10,
		TimeWindow:     10 * time.Second,
		RepeatCooldown: 50 * time.Millisecond,
	}
	tracker := NewTracker(config)

	if result := tracker.Check("disconnect"); !result.Allowed {
		t.Error("First command should be allowed")
	}

	time.Sleep(60 * time.Millisecond)

	if result := tracker.Check("disconnect"); !result.Allowed {
		t.Error("Command should be allowed after cooldown expires")
	}
}

func TestRateLimitExpires(t *testing.T) {
	config := Config{
		Enabled:        true,
		MaxCommands:    2,
		TimeWindow:     50 * time.Millisecond,
		RepeatCooldown: 10 * time.Millisecond,
	}
	tracker := NewTracker(config)

	tracker.Check("a")
	tracker.Check("b")

	if result := tracker.Check("c"); result.Allowed {
		t.Error("Should be rate limited")
	}

	time.Sleep(60 * time.Millisecond)

	if result := tracker.Check("d"); !result.Allowed {
		t.Error("Should be allowed after rate limit window expires")
	}
}

func TestDisabled(t *testing.T) {
	config := Config{
		Enabled:        false,
		MaxCommands:    1,
		TimeWindow:     10 * time.Second,
		RepeatCooldown: 30 * time.Second,
	}
	tracker := NewTracker(config)

	for i := 0; i < 10; i++ {
		if result := tracker.Check("same"); !result.Allowed {
			t.Errorf("Command %d should be allowed when limiting is disabled", i+1)
		}
	}

	var nilTracker *Tracker
	if result := nilTracker.Check("same"); !result.Allowed {
		t.Error("nil tracker should allow everything")
	}
}

func TestReset(t *testing.T) {
	config := Config{
		Enabled:        true,
		MaxCommands:    2,
		TimeWindow:     10 * time.Second,
		RepeatCooldown: 30 * time.Second,
	}
	tracker := NewTracker(config)

	tracker.Check("a")
	tracker.Check("b")
	if result := tracker.Check("c"); result.Allowed {
		t.Error("Should be rate limited")
	}

	tracker.Reset()

	if result := tracker.Check("c"); !result.Allowed {
		t.Error("Should be allowed after reset")
	}
}

func TestConfigFromYAML(t *testing.T) {
	tests := []struct {
		name                      string
		enabled                   bool
		max, windowMS, cooldownMS int
		want                      Config
	}{
		{"zeros keep defaults", true, 0, 0, 0, DefaultConfig()},
		{"overrides", true, 5, 2000, 250, Config{Enabled: true, MaxCommands: 5, TimeWindow: 2 * time.Second, RepeatCooldown: 250 * time.Millisecond}},
		{"disabled", false, 0, 0, 0, Config{Enabled: false, MaxCommands: 20, TimeWindow: 10 * time.Second, RepeatCooldown: time.Second}},
	}

	for _, tt := range tests {
		if got := ConfigFromYAML(tt.enabled, tt.max, tt.windowMS, tt.cooldownMS); got != tt.want {
			t.Errorf("%s: ConfigFromYAML() = %+v, want %+v", tt.name, got, tt.want)
		}
	}
}
