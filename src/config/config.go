package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"

var API_ENV = os.Getenv("API_ENV")

// Engine holds the marketplace rates and intervals. Business code never
// reads the environment directly; main builds one Engine and injects it
// into the services that need it.
type Engine struct {
	PlatformCommissionRate decimal.Decimal
	VATRate                decimal.Decimal
	ReservationTTL         time.Duration
	MinimumHold            time.Duration
	ReaperInterval         time.Duration
	HoldReleaseInterval    time.Duration
	BalanceCacheTTL        time.Duration
}

func DefaultEngine() Engine {
	return Engine{
		PlatformCommissionRate: decimal.NewFromFloat(0.06),
		VATRate:                decimal.NewFromFloat(0.22),
		ReservationTTL:         30 * time.Minute,
		MinimumHold:            7 * 24 * time.Hour,
		ReaperInterval:         2 * time.Minute,
		HoldReleaseInterval:    5 * time.Minute,
		BalanceCacheTTL:        30 * time.Second,
	}
}

// EngineFromEnv starts from the defaults and overrides each knob that is
// present in the environment. Invalid values are logged and skipped.
func EngineFromEnv() Engine {
	cfg := DefaultEngine()
	if v := os.Getenv("PLATFORM_COMMISSION_RATE"); v != "" {
		if rate, err := decimal.NewFromString(v); err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			log.Printf("Invalid PLATFORM_COMMISSION_RATE %q, using default\n", v)
		} else {
			cfg.PlatformCommissionRate = rate
		}
	}
	if v := os.Getenv("VAT_RATE"); v != "" {
		if rate, err := decimal.NewFromString(v); err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
			log.Printf("Invalid VAT_RATE %q, using default\n", v)
		} else {
			cfg.VATRate = rate
		}
	}
	cfg.ReservationTTL = durationFromEnv("RESERVATION_TTL", cfg.ReservationTTL)
	cfg.MinimumHold = durationFromEnv("MINIMUM_HOLD", cfg.MinimumHold)
	cfg.ReaperInterval = durationFromEnv("REAPER_INTERVAL", cfg.ReaperInterval)
	cfg.HoldReleaseInterval = durationFromEnv("HOLD_RELEASE_INTERVAL", cfg.HoldReleaseInterval)
	cfg.BalanceCacheTTL = durationFromEnv("BALANCE_CACHE_TTL", cfg.BalanceCacheTTL)
	return cfg
}

func durationFromEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("Invalid %s %q, using default\n", key, v)
		return fallback
	}
	return d
}
