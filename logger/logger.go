// Package logger provides structured logging for gn-proxy.
//
// This package wraps Uber's zap logger to provide high-performance,
// structured logging with configurable log levels. It initializes a global
// logger instance for use throughout the proxy.
//
// # Usage
//
// After initialization, use the global Log variable:
//
//	logger.Log.Info("access refused",
//	    zap.String("user", userID),
//	    zap.String("resource", resourceID),
//	)
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger, named "gn-proxy". It defaults to a no-op
// logger until InitLogger runs, so packages may log during early startup.
var Log = zap.NewNop()

// InitLogger builds the global logger at the given level. An unknown level
// string falls back to info. Debug level switches to a human-readable
// console encoding for local runs; other levels log JSON.
func InitLogger(level string) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zap.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if zapLevel == zap.DebugLevel {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	built, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	Log = built.Named("gn-proxy")
}
