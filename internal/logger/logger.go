// Package logger provides the structured slog loggers used across the
// service. The system log is rotated with lumberjack:
//
//	<logDir>/system.log          application-level events
//	<logDir>/system-<ts>.log.gz  rotated backups
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxSizeMB  = 20
	maxBackups = 5
	maxAgeDays = 30
)

// Format names accepted by New.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// New returns a slog.Logger writing to w in the given format.
// Unknown formats fall back to JSON.
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == FormatText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// NewSystemLogger creates a logger that writes to <logDir>/system.log with
// size-based rotation. When tee is non-nil every record is also written there.
// The returned io.Closer releases the log file.
func NewSystemLogger(logDir string, level slog.Level, format string, tee io.Writer) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return nil, nil, fmt.Errorf("creating log directory %q: %w", logDir, err)
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "system.log"),
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}

	var w io.Writer = rotator
	if tee != nil {
		w = io.MultiWriter(rotator, tee)
	}
	return New(w, level, format), rotator, nil
}

// Discard returns a logger that drops every record. Useful in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
