// Package obslog builds the process logger. Logs go to stderr so they never
// interleave with console protocol output on stdout, and optionally to a
// file as well.
package obslog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Formats accepted by New.
const (
	FormatLegacy  = "legacy"
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Config selects the level, encoding and destinations of the logger.
type Config struct {
	Level  string
	Format string
	File   string // optional, appended to
	Caller bool
}

// New builds a logger from cfg. Unknown levels fall back to info and unknown
// formats to legacy.
func New(cfg Config) (*zap.Logger, error) {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg Config, w io.Writer) (*zap.Logger, error) {
	level := ParseLevel(cfg.Level)
	format := normalizeFormat(cfg.Format)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder(format), zapcore.AddSync(w), level),
	}
	if path := strings.TrimSpace(cfg.File); path != "" {
		if err := ensureDir(filepath.Dir(path)); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoder(format), zapcore.AddSync(f), level))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	if cfg.Caller || format == FormatLegacy {
		logger = logger.WithOptions(zap.AddCaller())
	}
	return logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// ParseLevel maps a level name to a zap level, defaulting to info.
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "dpanic":
		return zapcore.DPanicLevel
	case "panic":
		return zapcore.PanicLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// ValidLevel reports whether s names a level ParseLevel knows.
func ValidLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "info", "warn", "warning", "error", "dpanic", "panic", "fatal":
		return true
	}
	return false
}

func normalizeFormat(s string) string {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case FormatJSON, FormatConsole:
		return f
	default:
		return FormatLegacy
	}
}

func encoder(format string) zapcore.Encoder {
	switch format {
	case FormatJSON:
		return zapcore.NewJSONEncoder(jsonEncoderConfig())
	case FormatConsole:
		return zapcore.NewConsoleEncoder(consoleEncoderConfig())
	default:
		return zapcore.NewConsoleEncoder(legacyEncoderConfig())
	}
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func legacyEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.ConsoleSeparator = " | "
	return cfg
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return cfg
}
