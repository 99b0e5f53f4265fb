package util

import (
	"log"
	"os"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LevelFromEnv reads LOG_LEVEL as either a level name ("debug", "warn") or
// zap's numeric level. Anything else means info.
func LevelFromEnv() zapcore.Level {
	raw := os.Getenv("LOG_LEVEL")
	if n, err := strconv.Atoi(raw); err == nil {
		return zapcore.Level(n)
	}
	if lvl, err := zapcore.ParseLevel(raw); err == nil && raw != "" {
		return lvl
	}
	return zapcore.InfoLevel
}

// NewLoggerAt builds the JSON production logger used by every component.
func NewLoggerAt(level zapcore.Level) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.CallerKey = "ln"
	zapCfg.EncoderConfig.FunctionKey = ""
	zapCfg.EncoderConfig.LevelKey = "severity"
	zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.OutputPaths = []string{"stdout"}
	return zapCfg.Build()
}

// NewLogger builds the logger at LevelFromEnv and installs it as zap's
// global logger until the returned cleanup runs.
func NewLogger() (*zap.Logger, func()) {
	logger, err := NewLoggerAt(LevelFromEnv())
	if err != nil {
		log.Fatalf("fail to init logger, error: %v", err)
	}

	undo := zap.ReplaceGlobals(logger)

	return logger, func() {
		undo()
		_ = logger.Sync()
	}
}
