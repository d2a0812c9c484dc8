package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadConfig reads a YAML file, applies .env and CONTAGION_* environment
// overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := decodeConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	// A missing .env file is not an error.
	_ = godotenv.Load()
	if err := ApplyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefaults builds a configuration from Defaults, then applies the same
// .env and environment overrides as LoadConfig.
func LoadDefaults() (*Config, error) {
	cfg := Defaults()
	_ = godotenv.Load()
	if err := ApplyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid default config: %w", err)
	}
	return &cfg, nil
}

// ApplyEnvOverrides overwrites fields whose CONTAGION_* variable is set.
// Connection secrets are expected to arrive this way rather than in YAML.
func ApplyEnvOverrides(cfg *Config) error {
	setStr(&cfg.LogLevel, "CONTAGION_LOG_LEVEL")
	setStr(&cfg.Store.Backend, "CONTAGION_STORE_BACKEND")
	setStr(&cfg.Store.Path, "CONTAGION_STORE_PATH")
	setStr(&cfg.Store.Redis.Addr, "CONTAGION_REDIS_ADDR")
	setStr(&cfg.Store.Redis.Password, "CONTAGION_REDIS_PASSWORD")
	setStr(&cfg.Store.Postgres.DSN, "CONTAGION_POSTGRES_DSN")
	setStr(&cfg.Store.S3.Endpoint, "CONTAGION_S3_ENDPOINT")
	setStr(&cfg.Store.S3.Bucket, "CONTAGION_S3_BUCKET")
	setStr(&cfg.Store.S3.AccessKey, "CONTAGION_S3_ACCESS_KEY")
	setStr(&cfg.Store.S3.SecretKey, "CONTAGION_S3_SECRET_KEY")

	if v := os.Getenv("CONTAGION_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid CONTAGION_SEED %q: %w", v, err)
		}
		cfg.Sweep.Seed = seed
	}
	return nil
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// validateConfig performs validation on the configuration
func validateConfig(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return fmt.Errorf("invalid log_format: %s (must be json or text)", cfg.LogFormat)
	}

	if err := validateNetwork(&cfg.Network); err != nil {
		return fmt.Errorf("network validation failed: %w", err)
	}
	if err := validateSweep(&cfg.Sweep); err != nil {
		return fmt.Errorf("sweep validation failed: %w", err)
	}
	if err := validateStore(&cfg.Store); err != nil {
		return fmt.Errorf("store validation failed: %w", err)
	}
	if cfg.Plot.WidthInches <= 0 || cfg.Plot.HeightInches <= 0 {
		return fmt.Errorf("plot width_inches and height_inches must be positive")
	}
	return nil
}

// validateNetwork validates the network configuration
func validateNetwork(n *Network) error {
	if n.Population <= 1 {
		return fmt.Errorf("population must be greater than 1, got %d", n.Population)
	}
	if n.Liabilities <= 0 {
		return fmt.Errorf("liabilities must be positive, got %f", n.Liabilities)
	}
	if n.InterbankAssets < 0 || n.ExternalAssets < 0 {
		return fmt.Errorf("asset values cannot be negative")
	}
	return nil
}

// validateSweep validates the sweep configuration
func validateSweep(s *Sweep) error {
	for name, v := range map[string]float64{
		"density_start": s.DensityStart,
		"density_stop":  s.DensityStop,
		"density_step":  s.DensityStep,
		"threshold":     s.Threshold,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be finite, got %f", name, v)
		}
	}
	if s.DensityStart < 0 {
		return fmt.Errorf("density_start cannot be negative, got %f", s.DensityStart)
	}
	if s.DensityStop <= s.DensityStart {
		return fmt.Errorf("density_stop (%f) must be greater than density_start (%f)", s.DensityStop, s.DensityStart)
	}
	if s.DensityStep <= 0 || math.IsInf(s.DensityStep, 0) {
		return fmt.Errorf("density_step must be positive, got %f", s.DensityStep)
	}
	if s.Iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", s.Iterations)
	}
	if s.Threshold <= 0 || s.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 (exclusive) and 1, got %f", s.Threshold)
	}
	return nil
}

// validateStore validates the persistence backend selection
func validateStore(s *Store) error {
	switch strings.ToLower(s.Backend) {
	case "file":
		if s.Path == "" {
			return fmt.Errorf("file backend requires path")
		}
	case "memory":
	case "redis":
		if s.Redis.Addr == "" || s.Redis.Key == "" {
			return fmt.Errorf("redis backend requires addr and key")
		}
	case "postgres":
		if s.Postgres.DSN == "" {
			return fmt.Errorf("postgres backend requires dsn")
		}
		if !validIdentifier(s.Postgres.Table) {
			return fmt.Errorf("invalid postgres table name %q", s.Postgres.Table)
		}
	case "s3":
		if s.S3.Bucket == "" || s.S3.Key == "" || s.S3.Region == "" {
			return fmt.Errorf("s3 backend requires bucket, key and region")
		}
	default:
		return fmt.Errorf("invalid backend: %s (must be file, memory, redis, postgres, or s3)", s.Backend)
	}
	return nil
}

// validIdentifier accepts plain SQL identifiers only, since the table name
// is interpolated into statements.
func validIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
