package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds process-wide settings. It is built once in main and passed by
// reference; nothing reads the environment after Load returns.
type Config struct {
	Addr          string
	PostgresDSN   string
	TokenSecret   string
	TokenIssuer   string
	TokenTTL      time.Duration
	RateBurst     int
	RatePerSecond int
	MaxBodyBytes  int64
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := getenv(key, "")
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return i, nil
}

// Load reads configuration from the environment. The token secret is the only
// required value; everything else has a usable default.
func Load() (*Config, error) {
	secret := getenv("PLIXA_AUTH_SECRET", "")
	if secret == "" {
		return nil, errors.New("PLIXA_AUTH_SECRET is required")
	}

	ttlMinutes, err := getInt("PLIXA_TOKEN_TTL_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	if ttlMinutes <= 0 {
		return nil, errors.New("PLIXA_TOKEN_TTL_MINUTES must be greater than zero")
	}
	burst, err := getInt("PLIXA_RATE_BURST", 20)
	if err != nil {
		return nil, err
	}
	perSec, err := getInt("PLIXA_RATE_PER_SECOND", 10)
	if err != nil {
		return nil, err
	}

	return &Config{
		Addr:          getenv("PLIXA_ADDR", ":8080"),
		PostgresDSN:   getenv("PLIXA_PG_DSN", ""),
		TokenSecret:   secret,
		TokenIssuer:   getenv("PLIXA_TOKEN_ISSUER", "plixa"),
		TokenTTL:      time.Duration(ttlMinutes) * time.Minute,
		RateBurst:     burst,
		RatePerSecond: perSec,
		MaxBodyBytes:  1 << 20,
	}, nil
}
