// Package config loads the gateway configuration from the environment so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the composition root needs to wire the
// service.
type Config struct {
	Addr string

	// Record store.
	StoreDriver string // memory | redis | postgres
	RedisURL    string
	DatabaseURL string

	// Messaging provider.
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromPhone  string
	ProviderTimeout  time.Duration

	// Notification policy.
	DailySMSLimit   int
	DuplicatePolicy string // quota_per_day | reject_on_existing

	// Detection backend.
	DetectorURL string

	// Audit.
	KafkaBrokers []string
	KafkaTopic   string

	// Inbound rate limiting.
	RateLimitRPS   float64
	RateLimitBurst int
}

// FromEnv builds a Config from environment variables with development
// defaults.
func FromEnv() Config {
	return Config{
		Addr: envOr("PLATEWATCH_ADDR", ":8080"),

		StoreDriver: envOr("STORE_DRIVER", "memory"),
		RedisURL:    os.Getenv("REDIS_URL"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromPhone:  os.Getenv("TWILIO_FROM_PHONE"),
		ProviderTimeout:  durationOr("PROVIDER_TIMEOUT", 15*time.Second),

		DailySMSLimit:   intOr("DAILY_SMS_LIMIT", 5),
		DuplicatePolicy: envOr("DUPLICATE_POLICY", "quota_per_day"),

		DetectorURL: envOr("DETECTOR_URL", "http://localhost:5003/process_video"),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOr("KAFKA_AUDIT_TOPIC", "platewatch.notifications"),

		RateLimitRPS:   floatOr("RATE_LIMIT_RPS", 0),
		RateLimitBurst: intOr("RATE_LIMIT_BURST", 20),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func floatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
