// Package observability provides logging and metrics utilities.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/autocombat/internal/config"
)

// NewLogger creates a structured logger from the given logging configuration.
//
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

// NewBotLogger builds the logger for a bot run. Debug mode overrides the
// configured level so per-poll diagnostics are emitted.
//
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewBotLogger(cfg config.Config) (*zap.Logger, error) {
	lc := cfg.Logging
	if cfg.Bot.Debug {
		lc.Level = "debug"
	}
	logger, err := NewLogger(lc)
	if err != nil {
		return nil, err
	}
	return logger.With(
		zap.String("farming_mode", cfg.Bot.FarmingMode),
		zap.String("mission", cfg.Bot.Mission),
	), nil
}
