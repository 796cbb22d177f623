package log

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu         sync.RWMutex
	logger     *zap.SugaredLogger
	loggerOnce sync.Once
	atomLevel  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// initLogger builds the default stderr logger on first use so packages can
// log before main has called Init.
func initLogger() {
	loggerOnce.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if logger != nil {
			return
		}
		l, err := buildConfig("console").Build()
		if err != nil {
			l = zap.NewNop()
		}
		logger = l.Sugar()
	})
}

func buildConfig(format string) zap.Config {
	cfg := zap.NewProductionConfig()
	cfg.Level = atomLevel
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Sampling = nil
	cfg.DisableStacktrace = true

	switch strings.ToLower(format) {
	case "json":
		cfg.Encoding = "json"
	default:
		cfg.Encoding = "console"
	}

	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

// Init replaces the global logger with one using the given encoding
// ("json" or "console") and level name.
func Init(format, level string) error {
	if err := SetLevelName(level); err != nil {
		return err
	}
	l, err := buildConfig(format).Build()
	if err != nil {
		return err
	}
	loggerOnce.Do(func() {})
	mu.Lock()
	old := logger
	logger = l.Sugar()
	mu.Unlock()
	if old != nil {
		_ = old.Sync()
	}
	return nil
}

// SetLogger swaps the underlying zap logger. Tests use this with
// zap.NewNop() or an observer core.
func SetLogger(l *zap.Logger) {
	loggerOnce.Do(func() {})
	mu.Lock()
	logger = l.Sugar()
	mu.Unlock()
}

func SetLevel(l Level) {
	switch l {
	case LevelDebug:
		atomLevel.SetLevel(zapcore.DebugLevel)
	case LevelWarn:
		atomLevel.SetLevel(zapcore.WarnLevel)
	case LevelError:
		atomLevel.SetLevel(zapcore.ErrorLevel)
	default:
		atomLevel.SetLevel(zapcore.InfoLevel)
	}
}

// SetLevelName accepts zap level names ("debug", "info", ...). Empty means info.
func SetLevelName(name string) error {
	if name == "" {
		atomLevel.SetLevel(zapcore.InfoLevel)
		return nil
	}
	return atomLevel.UnmarshalText([]byte(strings.ToLower(name)))
}

func Sync() {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		_ = l.Sync()
	}
}

func Debug(msg string, kv ...any) {
	current().Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	current().Infow(msg, kv...)
}

func Warn(msg string, kv ...any) {
	current().Warnw(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	current().Errorw(msg, extended...)
}

func current() *zap.SugaredLogger {
	initLogger()
	mu.RLock()
	defer mu.RUnlock()
	return logger
}
