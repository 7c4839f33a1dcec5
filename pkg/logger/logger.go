// Package logger owns the process-wide zap logger for the curation
// service. Call Init once from main; everything else logs through the
// package-level helpers.
package logger

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "designers-bff-curation"

// Log is the process-wide logger. It defaults to a no-op logger so
// library code can log before Init runs (and under `go test`).
var Log = zap.NewNop()

// Init builds the global logger. Format "json" produces sampled,
// machine-parseable output tagged with the service name; anything else
// gets a human-readable console encoding for local runs. outputPath is
// "stdout", "stderr", or a file path opened in append mode.
func Init(level, format, outputPath string) error {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	sink, err := openSink(outputPath)
	if err != nil {
		return err
	}

	var core zapcore.Core
	if format == "json" {
		core = zapcore.NewCore(zapcore.NewJSONEncoder(jsonEncoderConfig()), sink, zapLevel)
		// Per-candidate scoring logs from the selection loop can swamp
		// the sink on large batches.
		core = zapcore.NewSamplerWithOptions(core, time.Second, 100, 10)
	} else {
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderConfig()), sink, zapLevel)
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if format == "json" {
		opts = append(opts, zap.Fields(zap.String("service", serviceName)))
	}
	Log = zap.New(core, opts...)

	return nil
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	cfg := jsonEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	cfg.StacktraceKey = zapcore.OmitKey
	return cfg
}

func openSink(outputPath string) (zapcore.WriteSyncer, error) {
	switch outputPath {
	case "", "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	default:
		file, err := os.OpenFile(outputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", outputPath, err)
		}
		return zapcore.AddSync(file), nil
	}
}

// With returns a child of the global logger carrying the given fields.
// Components that log repeatedly for one designer or batch use this to
// tag every line once.
func With(fields ...zap.Field) *zap.Logger {
	return Log.With(fields...)
}

func Info(msg string, fields ...zap.Field) {
	Log.Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	Log.Error(msg, fields...)
}

func Debug(msg string, fields ...zap.Field) {
	Log.Debug(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	Log.Warn(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	Log.Fatal(msg, fields...)
}

func Sync() {
	Log.Sync()
}
