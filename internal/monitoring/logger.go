// Package monitoring holds the process-wide logger. Diagnostic lines go
// through Logf, which defaults to a zap console logger and may be swapped
// or muted with SetLogger.
package monitoring

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	level  = zap.NewAtomicLevelAt(zap.InfoLevel)
	sugar  = newSugared()
	caller = sugar.WithOptions(zap.AddCallerSkip(1))
)

// NewLoggerConfig returns the console logger config used by the server:
// ISO8601 timestamps, coloured levels, no stack traces.
func NewLoggerConfig() zap.Config {
	return zap.Config{
		Level:    level,
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

func newSugared() *zap.SugaredLogger {
	l, err := NewLoggerConfig().Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// Logger returns the zap logger backing the package helpers.
func Logger() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// ReplaceLogger swaps the zap logger, e.g. for an observer in tests.
func ReplaceLogger(l *zap.SugaredLogger) {
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	mu.Lock()
	sugar = l
	caller = l.WithOptions(zap.AddCallerSkip(1))
	mu.Unlock()
}

func callerLogger() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return caller
}

// SetLevel sets the minimum level: debug, info, warn or error.
func SetLevel(name string) error {
	return level.UnmarshalText([]byte(name))
}

func defaultLogf(format string, v ...interface{}) {
	callerLogger().Infof(format, v...)
}

// Logf is the package-level diagnostic logger. It defaults to the zap
// logger at info level but may be replaced by SetLogger. Tests or
// production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = defaultLogf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Debugf logs at debug level.
func Debugf(format string, v ...interface{}) {
	callerLogger().Debugf(format, v...)
}

// Warnf logs at warn level.
func Warnf(format string, v ...interface{}) {
	callerLogger().Warnf(format, v...)
}

// Errorf logs at error level.
func Errorf(format string, v ...interface{}) {
	callerLogger().Errorf(format, v...)
}
