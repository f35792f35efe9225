package config

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the process logger. "console" encoding gets zap's
// development preset, anything else the production JSON preset.
func NewLogger(cfg LoggerConfig) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Encoding == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zcfg.Level = level
	}

	return zcfg.Build()
}
