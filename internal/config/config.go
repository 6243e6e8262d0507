// Package config provides Viper-based configuration loading for the
// encounter engine.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Persistence backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// TTL expires cached snapshots; 0 keeps them until overwritten.
	TTL time.Duration `mapstructure:"ttl"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// EngineConfig holds the combat rules policy points.
type EngineConfig struct {
	// TieBreak orders equal initiatives: "insertion" or "modifier".
	TieBreak string `mapstructure:"tie_break"`
	// SavePolicy is "manual" (operator adjudicates) or "auto".
	SavePolicy string `mapstructure:"save_policy"`
	// RollLogLimit caps the in-memory roll log; 0 is unbounded.
	RollLogLimit int `mapstructure:"roll_log_limit"`
	// DiceSeed makes rolls reproducible when non-zero.
	DiceSeed uint64 `mapstructure:"dice_seed"`
}

// PersistenceConfig selects where snapshots are stored and how often.
type PersistenceConfig struct {
	Backend string `mapstructure:"backend"`
	// Cache puts Redis in front of the postgres backend.
	Cache bool `mapstructure:"cache"`
	// AutosaveInterval saves dirty combats periodically; 0 disables.
	AutosaveInterval time.Duration `mapstructure:"autosave_interval"`
	// SaveTimeout bounds a single save; 0 means no deadline.
	SaveTimeout time.Duration `mapstructure:"save_timeout"`
}

// ContentConfig locates the YAML reference data.
type ContentConfig struct {
	ConditionsDir string `mapstructure:"conditions_dir"`
	SheetsDir     string `mapstructure:"sheets_dir"`
}

// Config is the top-level application configuration.
type Config struct {
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Content     ContentConfig     `mapstructure:"content"`
}

// NeedsPostgres reports whether the configuration talks to PostgreSQL.
func (c Config) NeedsPostgres() bool {
	return c.Persistence.Backend == BackendPostgres
}

// NeedsRedis reports whether the configuration talks to Redis.
func (c Config) NeedsRedis() bool {
	return c.Persistence.Backend == BackendRedis || c.Persistence.Cache
}

// Validate checks all configuration invariants. Connection settings are only
// checked for the stores the persistence section actually uses.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validatePersistence(c.Persistence); err != nil {
		errs = append(errs, err.Error())
	}
	if c.NeedsPostgres() {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if c.NeedsRedis() {
		if err := validateRedis(c.Redis); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateEngine(c.Engine); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateRedis(r RedisConfig) error {
	var errs []string
	if r.Addr == "" {
		errs = append(errs, "redis.addr must not be empty")
	}
	if r.DB < 0 {
		errs = append(errs, fmt.Sprintf("redis.db must be >= 0, got %d", r.DB))
	}
	if r.TTL < 0 {
		errs = append(errs, "redis.ttl must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateEngine(e EngineConfig) error {
	var errs []string
	if e.TieBreak != "insertion" && e.TieBreak != "modifier" {
		errs = append(errs, fmt.Sprintf("engine.tie_break must be one of [insertion, modifier], got %q", e.TieBreak))
	}
	if e.SavePolicy != "manual" && e.SavePolicy != "auto" {
		errs = append(errs, fmt.Sprintf("engine.save_policy must be one of [manual, auto], got %q", e.SavePolicy))
	}
	if e.RollLogLimit < 0 {
		errs = append(errs, fmt.Sprintf("engine.roll_log_limit must be >= 0, got %d", e.RollLogLimit))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validatePersistence(p PersistenceConfig) error {
	var errs []string
	switch p.Backend {
	case BackendPostgres, BackendRedis, BackendMemory:
	default:
		errs = append(errs, fmt.Sprintf("persistence.backend must be one of [postgres, redis, memory], got %q", p.Backend))
	}
	if p.Cache && p.Backend != BackendPostgres {
		errs = append(errs, "persistence.cache requires the postgres backend")
	}
	if p.AutosaveInterval < 0 {
		errs = append(errs, "persistence.autosave_interval must not be negative")
	}
	if p.SaveTimeout < 0 {
		errs = append(errs, "persistence.save_timeout must not be negative")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment
// variable overrides, and validates the result. An empty path uses defaults
// and the environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	return LoadFromViper(v)
}

// NewViper returns a Viper instance with defaults and ENCOUNTER_ environment
// overrides applied, e.g. ENCOUNTER_PERSISTENCE_BACKEND.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("ENCOUNTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "encounter")
	v.SetDefault("database.password", "encounter")
	v.SetDefault("database.name", "encounter")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "0s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("engine.tie_break", "insertion")
	v.SetDefault("engine.save_policy", "manual")
	v.SetDefault("engine.roll_log_limit", 500)
	v.SetDefault("engine.dice_seed", 0)

	v.SetDefault("persistence.backend", BackendMemory)
	v.SetDefault("persistence.cache", false)
	v.SetDefault("persistence.autosave_interval", "30s")
	v.SetDefault("persistence.save_timeout", "5s")

	v.SetDefault("content.conditions_dir", "content/conditions")
	v.SetDefault("content.sheets_dir", "content/sheets")
}
