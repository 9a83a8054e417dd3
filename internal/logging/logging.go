// Package logging builds the process logger.
package logging

import (
	"go.uber.org/zap"
)

// Logger is the process-wide sugared logger, set by InitLogger.
var Logger = zap.NewNop().Sugar()

// New builds a logger writing to stderr. debug lowers the level to Debug;
// jsonOutput switches from console to JSON encoding.
func New(debug, jsonOutput bool) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		cfg.Sampling = nil
	}
	cfg.Encoding = "console"
	if jsonOutput {
		cfg.Encoding = "json"
	}
	cfg.DisableStacktrace = !debug
	return cfg.Build()
}

// InitLogger builds the process logger and installs it as Logger. If the
// logger cannot be built, a no-op logger is used.
func InitLogger(debug, jsonOutput bool) *zap.Logger {
	logger, err := New(debug, jsonOutput)
	if err != nil {
		logger = zap.NewNop()
	}
	Logger = logger.Sugar()
	return logger
}
