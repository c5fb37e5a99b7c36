package config

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
)

func TestLoadBookingConfig_Defaults(t *testing.T) {
	cfg := LoadBookingConfig()
	assert.Equal(t, 10*time.Minute, cfg.HoldWindow)
	assert.Equal(t, time.Minute, cfg.HoldSweepEvery)
	assert.Equal(t, 8*time.Hour, cfg.ReminderEvery)
	assert.Equal(t, 8*time.Hour, cfg.ReminderAhead)
	assert.Equal(t, 10*time.Minute, cfg.ReminderWindow)
	assert.Equal(t, time.UTC, cfg.DisplayLocation)
}

func TestLoadBookingConfig_Overrides(t *testing.T) {
	t.Setenv("BOOKING_HOLD_WINDOW", "15m")
	t.Setenv("REMINDER_AHEAD", "2h")
	t.Setenv("DISPLAY_TIMEZONE", "Europe/Berlin")

	cfg := LoadBookingConfig()
	assert.Equal(t, 15*time.Minute, cfg.HoldWindow)
	assert.Equal(t, 2*time.Hour, cfg.ReminderAhead)
	assert.Equal(t, "Europe/Berlin", cfg.DisplayLocation.String())
}

func TestLoadRateLimitConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "3")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "20s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	assert.Equal(t, 3, cfg.Capacity)
	assert.Equal(t, 1, cfg.RefillTokens)
	assert.Equal(t, 20*time.Second, cfg.RefillInterval)
	assert.Equal(t, 100*time.Second, cfg.TTL, "TTL is raised to five refill periods")
}

func TestRateLimitConfig_Normalized(t *testing.T) {
	cfg := RateLimitConfig{Capacity: -1, RefillTokens: 0}.normalized()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 1, cfg.RefillTokens)
	assert.Equal(t, time.Second, cfg.RefillInterval)
	assert.Equal(t, 5*time.Second, cfg.TTL)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_BOOL", "Yes")
	t.Setenv("X_INT", "nope")
	t.Setenv("X_DUR", "90s")
	assert.True(t, envBool("X_BOOL", false))
	assert.Equal(t, 7, envInt("X_INT", 7))
	assert.Equal(t, 90*time.Second, envDur("X_DUR", 0))
	assert.Equal(t, "d", envStr("X_UNSET_FOR_TEST", "d"))
}

func TestParseMethods(t *testing.T) {
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, parseMethods(" get, HEAD ,,"))
}
