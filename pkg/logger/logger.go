// Package logger owns the process-wide zap logger. Components get children through Named.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu    sync.RWMutex
	base  *zap.Logger
	sugar *zap.SugaredLogger
)

// Init builds the process logger. env "dev" writes colored console lines, anything else JSON.
// An unparsable level keeps the environment's default.
func Init(service, env, level string) {
	cfg := configFor(env)
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := cfg.Build(
		zap.AddCaller(),
		zap.Fields(zap.String("service", service), zap.String("env", env)),
	)
	if err != nil {
		panic("logger: build: " + err.Error())
	}

	mu.Lock()
	base, sugar = l, l.Sugar()
	mu.Unlock()

	l.Info("logger.initialized", zap.Stringer("level", cfg.Level))
}

func configFor(env string) zap.Config {
	var cfg zap.Config
	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg
}

func loggers() (*zap.Logger, *zap.SugaredLogger) {
	mu.RLock()
	l, s := base, sugar
	mu.RUnlock()
	if l != nil {
		return l, s
	}
	// used before main called Init, e.g. from tests
	Init("locale-engine", "dev", "info")
	mu.RLock()
	defer mu.RUnlock()
	return base, sugar
}

// L returns the structured logger.
func L() *zap.Logger {
	l, _ := loggers()
	return l
}

// S returns the sugared logger, used by main for startup and shutdown lines.
func S() *zap.SugaredLogger {
	_, s := loggers()
	return s
}

// Named returns a child logger for one component, e.g. "geo" or "site".
func Named(component string) *zap.Logger {
	return L().Named(component)
}

// Sync flushes buffered entries. Errors from syncing stdout are not actionable.
func Sync() {
	mu.RLock()
	l := base
	mu.RUnlock()
	if l != nil {
		_ = l.Sync()
	}
}
