// Package config defines service configuration and how it is loaded.
package config

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// LogFormat is text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	Storage   StorageConfig   `koanf:"storage"`
	Redis     RedisConfig     `koanf:"redis"`
	Rating    RatingConfig    `koanf:"rating"`
	Snapshot  SnapshotConfig  `koanf:"snapshot"`
	Recompute RecomputeConfig `koanf:"recompute"`
	CORS      CORSConfig      `koanf:"cors"`

	// Aliases extend the built-in team alias table. YAML only.
	Aliases []AliasConfig `koanf:"aliases" validate:"dive"`
}

// StorageConfig selects where matches and precomputed tables live.
type StorageConfig struct {
	Driver string `koanf:"driver" validate:"oneof=memory sqlite postgres"`
	DSN    string `koanf:"dsn" validate:"required_unless=Driver memory"`

	// Seed is an optional JSON file loaded into the store at startup.
	Seed string `koanf:"seed"`
}

// RedisConfig enables the snapshot cache when URL is set.
type RedisConfig struct {
	URL        string `koanf:"url" validate:"omitempty,url"`
	TTLSeconds int    `koanf:"ttl_seconds" validate:"gte=1"`
}

// RatingConfig tunes the engine.
type RatingConfig struct {
	Start              float64 `koanf:"start" validate:"gt=0"`
	KBase              float64 `koanf:"k_base" validate:"gt=0"`
	ExcludeExhibitions bool    `koanf:"exclude_exhibitions"`
}

// SnapshotConfig bounds API snapshot sizes.
type SnapshotConfig struct {
	DefaultTopN int `koanf:"default_top_n" validate:"gte=1,ltefield=MaxTopN"`
	MaxTopN     int `koanf:"max_top_n" validate:"gte=1"`

	// ShowExhibitions keeps showmatch teams in team snapshots.
	ShowExhibitions bool `koanf:"show_exhibitions"`
}

// RecomputeConfig drives the background recompute pipeline.
type RecomputeConfig struct {
	// Schedule is a standard 5-field cron spec; empty disables it.
	Schedule  string `koanf:"schedule"`
	Workers   int    `koanf:"workers" validate:"gte=1"`
	QueueSize int    `koanf:"queue_size" validate:"gte=1"`
	FirstYear int    `koanf:"first_year" validate:"gte=1970"`
	OnStartup bool   `koanf:"on_startup"`
}

// CORSConfig lists origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// AliasConfig maps spelling variants to a canonical team name.
type AliasConfig struct {
	Canonical string   `koanf:"canonical" validate:"required"`
	Variants  []string `koanf:"variants"`
}

// New creates a Config with defaults. Context is accepted first to follow the
// project convention; it is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Addr:      ":9080",
		Storage: StorageConfig{
			Driver: "memory",
		},
		Redis: RedisConfig{
			TTLSeconds: 300,
		},
		Rating: RatingConfig{
			Start: 1500,
			KBase: 32,
		},
		Snapshot: SnapshotConfig{
			DefaultTopN: 25,
			MaxTopN:     200,
		},
		Recompute: RecomputeConfig{
			Schedule:  "0 * * * *",
			Workers:   2,
			QueueSize: 64,
			FirstYear: 2021,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validate checks field constraints and the cron schedule.
func (c *Config) Validate() error {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Recompute.Schedule != "" {
		if _, err := cron.ParseStandard(c.Recompute.Schedule); err != nil {
			return fmt.Errorf("%w: recompute.schedule: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}
