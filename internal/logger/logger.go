package logger

import (
	"fmt"

	"crypto-portfolio-tracker/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger from the logger section of the config.
// Every entry carries the configured service name.
func NewLogger(cfg *config.Logger) (*zap.Logger, error) {
	zc, err := zapConfig(cfg)
	if err != nil {
		return nil, err
	}
	return zc.Build()
}

func zapConfig(cfg *config.Logger) (zap.Config, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return zap.Config{}, err
	}

	var zc zap.Config
	switch cfg.Format {
	case "json":
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "time"
	case "console", "":
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		// no stack traces on warnings
		zc.Development = false
	default:
		return zap.Config{}, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.DisableCaller = !cfg.Caller
	if cfg.Service != "" {
		zc.InitialFields = map[string]interface{}{"service": cfg.Service}
	}
	return zc, nil
}
