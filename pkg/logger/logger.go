// Package logger provides structured logging for greenbot.
// It wraps zap with an adjustable level and optional lumberjack file rotation.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents the log level.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	// LevelFatal calls os.Exit(1) after logging.
	LevelFatal Level = "fatal"
)

// Config represents logger configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error, fatal).
	Level Level

	// OutputPath is the log file path. Empty means stdout only.
	OutputPath string

	// MaxSize is the maximum size in megabytes before rotation.
	MaxSize int

	// MaxBackups is the maximum number of rotated files to keep.
	MaxBackups int

	// MaxAge is the maximum number of days to keep rotated files.
	MaxAge int

	// Compress gzips rotated files.
	Compress bool

	// Development switches the console to a colored human-readable encoder.
	Development bool

	// EnableStacktrace adds stacktraces for Error and above.
	EnableStacktrace bool
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Level:            LevelInfo,
		OutputPath:       filepath.Join(homeDir, ".greenbot", "logs", "greenbot.log"),
		MaxSize:          100,
		MaxBackups:       3,
		MaxAge:           7,
		Compress:         true,
		EnableStacktrace: true,
	}
}

// Logger wraps zap.Logger with a runtime-adjustable level.
type Logger struct {
	*zap.Logger
	config *Config
	level  zap.AtomicLevel
	sugar  *zap.SugaredLogger
}

// New creates a new logger with the given configuration.
func New(cfg *Config) (*Logger, error) {
	zapLevel, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	level := zap.NewAtomicLevelAt(zapLevel)

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	consoleConfig := encoderConfig
	var consoleEncoder zapcore.Encoder
	if cfg.Development {
		consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEncoder = zapcore.NewConsoleEncoder(consoleConfig)
	} else {
		consoleEncoder = zapcore.NewJSONEncoder(consoleConfig)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level),
	}

	if cfg.OutputPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}

		fileWriter := &lumberjack.Logger{
			Filename:   cfg.OutputPath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(fileWriter),
			level,
		))
	}

	options := []zap.Option{zap.AddCaller()}
	if cfg.EnableStacktrace {
		options = append(options, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	if cfg.Development {
		options = append(options, zap.Development())
	}

	zapLogger := zap.New(zapcore.NewTee(cores...), options...)

	return &Logger{
		Logger: zapLogger,
		config: cfg,
		level:  level,
		sugar:  zapLogger.Sugar(),
	}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	zapLogger := zap.NewNop()
	return &Logger{
		Logger: zapLogger,
		config: &Config{Level: LevelInfo},
		level:  zap.NewAtomicLevelAt(zapcore.InfoLevel),
		sugar:  zapLogger.Sugar(),
	}
}

// Sugar returns a sugared logger.
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// WithFields returns a child logger that shares the parent's level.
func (l *Logger) WithFields(fields ...zap.Field) *Logger {
	child := l.Logger.With(fields...)
	return &Logger{
		Logger: child,
		config: l.config,
		level:  l.level,
		sugar:  child.Sugar(),
	}
}

// Named returns a child logger with the given name segment.
func (l *Logger) Named(name string) *Logger {
	child := l.Logger.Named(name)
	return &Logger{
		Logger: child,
		config: l.config,
		level:  l.level,
		sugar:  child.Sugar(),
	}
}

// SetLevel changes the minimum level of this logger and all of its children.
func (l *Logger) SetLevel(level Level) error {
	zapLevel, err := parseLevel(level)
	if err != nil {
		return err
	}
	l.level.SetLevel(zapLevel)
	return nil
}

// GetLevel returns the current minimum level.
func (l *Logger) GetLevel() Level {
	return Level(l.level.Level().String())
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.Logger.Sync()
}

// ParseLevel converts a config string into a Level.
func ParseLevel(s string) (Level, error) {
	level := Level(strings.ToLower(strings.TrimSpace(s)))
	if level == "" {
		return LevelInfo, nil
	}
	if _, err := parseLevel(level); err != nil {
		return LevelInfo, err
	}
	return level, nil
}

func parseLevel(level Level) (zapcore.Level, error) {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel, nil
	case LevelInfo, "":
		return zapcore.InfoLevel, nil
	case LevelWarn:
		return zapcore.WarnLevel, nil
	case LevelError:
		return zapcore.ErrorLevel, nil
	case LevelFatal:
		return zapcore.FatalLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}
