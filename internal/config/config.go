// Package config provides Viper-based configuration loading for the combat bot.
package config

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings for the run history.
type DatabaseConfig struct {
	// Enabled turns run-history persistence on.
	Enabled         bool          `mapstructure:"enabled"`
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
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// BotConfig describes the battle being farmed.
type BotConfig struct {
	// FarmingMode is the game mode category, e.g. "Raid" or "Arcarum".
	FarmingMode string `mapstructure:"farming_mode"`
	// Mission is the mission or raid name within the farming mode.
	Mission string `mapstructure:"mission"`
	// Script is the path to the combat script (.txt or .lua).
	Script string `mapstructure:"script"`
	// Debug forces debug logging and per-poll diagnostics.
	Debug bool `mapstructure:"debug"`
	// DeviceProfile selects the tap geometry table.
	DeviceProfile string `mapstructure:"device_profile"`
	// LayoutFile optionally overrides the built-in geometry tables.
	LayoutFile string `mapstructure:"layout_file"`
}

// RaidConfig holds raid-specific feature flags.
type RaidConfig struct {
	// AutoExit ends raid-like battles once TimeLimit has elapsed.
	AutoExit  bool          `mapstructure:"auto_exit"`
	TimeLimit time.Duration `mapstructure:"time_limit"`
}

// AdjustmentConfig holds combat timing adjustments.
type AdjustmentConfig struct {
	// Enabled applies ReloadWait and AttackTries; built-in values are used otherwise.
	Enabled bool `mapstructure:"enabled"`
	// ReloadWait is the pause before reloading after an attack starts.
	ReloadWait time.Duration `mapstructure:"reload_wait"`
	// AttackTries bounds the poll cycles spent waiting for an attack to resolve.
	AttackTries int `mapstructure:"attack_tries"`
}

// CombatConfig holds combat feature flags.
type CombatConfig struct {
	RefreshDuringCombat bool             `mapstructure:"refresh_during_combat"`
	ForceReload         bool             `mapstructure:"force_reload"`
	AutoQuickSummon     bool             `mapstructure:"auto_quick_summon"`
	Adjustment          AdjustmentConfig `mapstructure:"adjustment"`
	// EndLoopLimit bounds the cycles of the post-script end loop.
	EndLoopLimit int `mapstructure:"end_loop_limit"`
}

// ServerConfig holds the listen addresses of the status endpoints.
type ServerConfig struct {
	// StatusAddr serves /metrics and /healthz over HTTP. Empty disables it.
	StatusAddr string `mapstructure:"status_addr"`
	// HealthAddr serves the gRPC health service. Empty disables it.
	HealthAddr string `mapstructure:"health_addr"`
}

// SimConfig configures the simulated device used for dry runs.
type SimConfig struct {
	// Scenario is a YAML scenario file; empty uses the built-in scenario.
	Scenario string `mapstructure:"scenario"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Bot      BotConfig      `mapstructure:"bot"`
	Raid     RaidConfig     `mapstructure:"raid"`
	Combat   CombatConfig   `mapstructure:"combat"`
	Server   ServerConfig   `mapstructure:"server"`
	Sim      SimConfig      `mapstructure:"sim"`
}

// FarmingModes lists the accepted bot.farming_mode values.
var FarmingModes = []string{
	"Quest",
	"Special",
	"Coop",
	"Raid",
	"Event",
	"Event (Token Drawboxes)",
	"Rise of the Beasts",
	"Guild Wars",
	"Dread Barrage",
	"Proving Grounds",
	"Xeno Clash",
	"Arcarum",
	"Arcarum Sandbox",
	"Generic",
}

// DeviceProfiles lists the accepted bot.device_profile values.
var DeviceProfiles = []string{"phone-720p", "phone-1080p", "tablet-portrait", "tablet-landscape"}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Database.Enabled {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateBot(c.Bot); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateRaid(c.Raid); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateCombat(c.Combat); err != nil {
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

func validateBot(b BotConfig) error {
	var errs []string
	if !slices.Contains(FarmingModes, b.FarmingMode) {
		errs = append(errs, fmt.Sprintf("bot.farming_mode must be one of [%s], got %q", strings.Join(FarmingModes, ", "), b.FarmingMode))
	}
	if b.LayoutFile == "" && !slices.Contains(DeviceProfiles, b.DeviceProfile) {
		errs = append(errs, fmt.Sprintf("bot.device_profile must be one of [%s], got %q", strings.Join(DeviceProfiles, ", "), b.DeviceProfile))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateRaid(r RaidConfig) error {
	if r.AutoExit && r.TimeLimit <= 0 {
		return fmt.Errorf("raid.time_limit must be positive when raid.auto_exit is set, got %s", r.TimeLimit)
	}
	return nil
}

func validateCombat(c CombatConfig) error {
	var errs []string
	if c.Adjustment.ReloadWait < 0 {
		errs = append(errs, "combat.adjustment.reload_wait must not be negative")
	}
	if c.Adjustment.AttackTries < 1 {
		errs = append(errs, fmt.Sprintf("combat.adjustment.attack_tries must be >= 1, got %d", c.Adjustment.AttackTries))
	}
	if c.EndLoopLimit < 1 {
		errs = append(errs, fmt.Sprintf("combat.end_loop_limit must be >= 1, got %d", c.EndLoopLimit))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with AUTOCOMBAT_ prefix
	v.SetEnvPrefix("AUTOCOMBAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
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

// Defaults returns a Viper instance holding only the default values.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "autocombat")
	v.SetDefault("database.password", "autocombat")
	v.SetDefault("database.name", "autocombat")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("bot.farming_mode", "Quest")
	v.SetDefault("bot.device_profile", "phone-1080p")

	v.SetDefault("raid.auto_exit", false)
	v.SetDefault("raid.time_limit", "30m")

	v.SetDefault("combat.adjustment.enabled", false)
	v.SetDefault("combat.adjustment.reload_wait", "3s")
	v.SetDefault("combat.adjustment.attack_tries", 100)
	v.SetDefault("combat.end_loop_limit", 7200)
}

// Stats receives values written back by a finished combat session.
// It is safe for concurrent use.
type Stats struct {
	mu      sync.Mutex
	elapsed map[string]time.Duration
}

// NewStats returns an empty Stats.
func NewStats() *Stats {
	return &Stats{elapsed: make(map[string]time.Duration)}
}

// SetCombatElapsed records the elapsed combat time of the last successful
// battle for a mission.
func (s *Stats) SetCombatElapsed(mission string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elapsed[mission] = d
}

// CombatElapsed returns the last recorded elapsed time for a mission.
func (s *Stats) CombatElapsed(mission string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.elapsed[mission]
	return d, ok
}

// Missions returns the missions with a recorded elapsed time, sorted.
func (s *Stats) Missions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.elapsed))
	for m := range s.elapsed {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
