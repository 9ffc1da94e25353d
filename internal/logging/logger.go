package logging

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger *zap.Logger

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "CANBRIDGE_LOG_LEVEL"

// LogFileEnvVar names a file that receives a copy of every log entry.
// The file is rotated by lumberjack.
const LogFileEnvVar = "CANBRIDGE_LOG_FILE"

// Options controls where and how much the logger writes.
type Options struct {
	Level     string // debug, info, warn, error; empty means silent
	File      string // optional rotating log file
	NoConsole bool   // skip stderr, for when a full-screen UI owns the terminal
}

// Initialize creates a new logger with the specified level.
// If level is empty, it checks CANBRIDGE_LOG_LEVEL environment variable.
// If neither is set, logging is disabled (silent mode).
func Initialize(level string) error {
	return InitializeWithOptions(Options{Level: level})
}

// InitializeFromEnv initializes the logger from CANBRIDGE_LOG_LEVEL and
// CANBRIDGE_LOG_FILE.
func InitializeFromEnv() error {
	return InitializeWithOptions(Options{})
}

// InitializeWithOptions builds the global logger. Console output goes to
// stderr so it never mixes with command output on stdout.
func InitializeWithOptions(opts Options) error {
	if opts.Level == "" {
		opts.Level = os.Getenv(LogLevelEnvVar)
	}
	if opts.File == "" {
		opts.File = os.Getenv(LogFileEnvVar)
	}

	if opts.Level == "" || (opts.NoConsole && opts.File == "") {
		logger = zap.NewNop()
		return nil
	}

	zapLevel, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleCfg.EncodeCaller = zapcore.ShortCallerEncoder

	var cores []zapcore.Core
	if !opts.NoConsole {
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), zapLevel))
	}

	if opts.File != "" {
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(rotator), zapLevel))
	}

	logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	return nil
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q (use debug, info, warn or error)", level)
	}
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		// Fallback to silent logger if not initialized
		logger = zap.NewNop()
	}
	return logger
}

// Named returns a child logger tagged with a component name.
func Named(component string) *zap.Logger {
	return GetLogger().WithOptions(zap.AddCallerSkip(-1)).Named(component)
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// LogHTTPExchange logs one request/response round trip against a device.
// statusCode is 0 when no response was received.
func LogHTTPExchange(method, url string, statusCode int, elapsed time.Duration, err error) {
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("url", url),
		zap.Duration("elapsed", elapsed),
	}
	if statusCode != 0 {
		fields = append(fields, zap.Int("status_code", statusCode))
	}
	if err != nil {
		Warn("Device request failed", append(fields, zap.Error(err))...)
		return
	}
	Debug("Device request completed", fields...)
}

// LogFormSubmission logs the keys sent in a configuration update.
// Values are left out because they can contain Wi-Fi credentials.
func LogFormSubmission(url string, keys []string) {
	Info("Submitting configuration changes",
		zap.String("url", url),
		zap.Strings("keys", keys),
	)
}

// LogStateChange logs a component state transition.
func LogStateChange(component, from, to string) {
	Debug("State change",
		zap.String("component", component),
		zap.String("from", from),
		zap.String("to", to),
	)
}

// LogRawBytes logs a truncated, printable view of a payload.
func LogRawBytes(label string, data []byte) {
	Debug(label,
		zap.Int("length", len(data)),
		zap.String("ascii", asciiDump(data)),
	)
}

func asciiDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	// Limit to first 256 bytes
	if len(data) > 256 {
		data = data[:256]
	}

	result := make([]byte, len(data))
	for i, b := range data {
		if b >= 32 && b <= 126 {
			result[i] = b
		} else {
			result[i] = '.'
		}
	}
	return string(result)
}

// Sync flushes any buffered log entries
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
