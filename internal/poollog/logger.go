// Package poollog provides taskpool's logging collaborator: a thin
// go.uber.org/zap wrapper that recognizes the LOG_LEVEL environment
// variable, modeled on the teacher's backend/internal/infrastructure/logger
// package.
package poollog

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FromEnv builds a console-encoded zap.Logger whose level is taken from
// LOG_LEVEL (case-insensitive), defaulting to INFO when unset or
// unrecognized. TRACE maps onto zap's Debug level, since zapcore has no
// Trace level; FATAL maps onto zap's Fatal level.
func FromEnv() *zap.Logger {
	return New(os.Getenv("LOG_LEVEL"))
}

// New builds a console-encoded zap.Logger at the given named level.
func New(level string) *zap.Logger {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		parseLevel(level),
	)
	return zap.New(core, zap.AddCaller())
}

// Nop returns a logger that discards everything, used when a Pool is
// constructed without an explicit logger.
func Nop() *zap.Logger {
	return zap.NewNop()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "FATAL":
		return zapcore.FatalLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "INFO":
		return zapcore.InfoLevel
	case "DEBUG":
		return zapcore.DebugLevel
	case "TRACE":
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}
