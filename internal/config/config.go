package config // package config loads application configuration from environment variables

import (
	"os"       // os provides access to environment variables
	"strconv"  // strconv converts strings to other types
	"time"     // durations for the booking hold window and reminder sweep

	"github.com/sirupsen/logrus" // logrus reports configuration errors and halts execution
)

// Config holds the core runtime configuration values.  Each field corresponds
// to an environment variable.  Concern-specific settings (cache, rate limit,
// catalog, payment, mail, amqp) live in their own loaders.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	DBUser       string // database username
	DBPass       string // database password (optional)
	DBHost       string // database host address
	DBPort       string // database port number
	DBName       string // database name
	JWTSecret    string // secret used to verify bearer tokens
	AccessTTLMin int    // lifetime of tokens minted by cmd/devtoken
	PublicURL    string // origin of the web client, used for checkout redirects
	LogLevel     string // logrus level name
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:          must("APP_ENV"),                     // environment (dev/test/prod)
		Port:         must("APP_PORT"),                    // port to bind the HTTP server
		DBUser:       must("DB_USER"),                     // database user
		DBPass:       os.Getenv("DB_PASS"),                // database password (empty allowed)
		DBHost:       must("DB_HOST"),                     // database host
		DBPort:       must("DB_PORT"),                     // database port
		DBName:       must("DB_NAME"),                     // database name
		JWTSecret:    must("JWT_SECRET"),                  // secret used for verifying JWTs
		AccessTTLMin: envInt("ACCESS_TOKEN_TTL_MIN", 60),  // TTL for dev tokens in minutes
		PublicURL:    envStr("PUBLIC_URL", "http://localhost:5173"),
		LogLevel:     envStr("LOG_LEVEL", "info"),
	}
}

// IsDev reports whether the service runs in the local development environment.
func (c Config) IsDev() bool { return c.Env == "dev" }

// BookingConfig controls the reservation hold window and the reminder sweep.
type BookingConfig struct {
	HoldWindow      time.Duration // how long an unpaid booking keeps its seats
	ReminderEvery   time.Duration // period of the reminder sweep
	ReminderAhead   time.Duration // how far ahead of now the sweep looks
	ReminderWindow  time.Duration // width of the sweep window ending at now+ReminderAhead
	HoldSweepEvery  time.Duration // period of the overdue hold sweep
	TaskMaxAttempts int           // delivery attempts before a failed task is dropped; hold checks are never dropped
	DisplayLocation *time.Location // time zone used when formatting show times in emails
}

// LoadBookingConfig reads booking related settings.  Defaults mirror the
// product behaviour: a ten minute hold and a reminder every eight hours for
// shows starting roughly eight hours from now.
func LoadBookingConfig() BookingConfig {
	return BookingConfig{
		HoldWindow:      envDur("BOOKING_HOLD_WINDOW", 10*time.Minute),
		ReminderEvery:   envDur("REMINDER_EVERY", 8*time.Hour),
		ReminderAhead:   envDur("REMINDER_AHEAD", 8*time.Hour),
		ReminderWindow:  envDur("REMINDER_WINDOW", 10*time.Minute),
		HoldSweepEvery:  envDur("HOLD_SWEEP_EVERY", time.Minute),
		TaskMaxAttempts: envInt("TASK_MAX_ATTEMPTS", 5),
		DisplayLocation: envLocation("DISPLAY_TIMEZONE", time.UTC),
	}
}

// envLocation loads a time zone by IANA name, falling back to def when the
// variable is unset.  An unknown zone is fatal.
func envLocation(key string, def *time.Location) *time.Location {
	name := os.Getenv(key)
	if name == "" {
		return def
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		logrus.Fatalf("invalid time zone for %s: %q", key, name)
	}
	return loc
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logrus.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		logrus.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
