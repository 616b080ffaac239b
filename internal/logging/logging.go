package logging

import (
	"os"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the level and sink of the process logger.
type Options struct {
	// Level uses the LOG_LEVEL vocabulary; empty falls back to the environment.
	Level string

	// File, when set, routes logs to a rotating file instead of stderr.
	File string

	// DefaultLevel applies when neither Level nor LOG_LEVEL is set.
	DefaultLevel zapcore.Level
}

// ParseLevel maps the LOG_LEVEL vocabulary onto zap levels.
func ParseLevel(l string, fallback zapcore.Level) zapcore.Level {
	switch l {
	case "dev", "development", "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error", "production", "prod":
		return zapcore.ErrorLevel
	}
	return fallback
}

// Init builds the process logger and installs it as the zap global.
func Init(opts Options) *zap.Logger {
	levelName := opts.Level
	if levelName == "" {
		levelName = os.Getenv("LOG_LEVEL")
	}
	level := ParseLevel(levelName, opts.DefaultLevel)

	file := opts.File
	if file == "" {
		file = os.Getenv("LOG_FILE")
	}

	var sink zapcore.WriteSyncer
	if file != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		})
	} else {
		sink = zapcore.Lock(os.Stderr)
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), sink, level)
	logger := zap.New(core, zap.AddCaller())
	zap.ReplaceGlobals(logger)
	return logger
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	return cfg
}
