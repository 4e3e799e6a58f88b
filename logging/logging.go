// Package logging sets up rotating file logs with an in-memory tail the UI
// can display.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/decred/slog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig configures the backend.
type LogConfig struct {
	// LogFile is the rotating log path. Empty disables file logging.
	LogFile string
	// DebugLevel is a slog level name ("debug", "info", ...).
	DebugLevel string
	// MaxLogFiles is how many rotated files to keep.
	MaxLogFiles int
	// MaxBufferLines caps the in-memory tail.
	MaxBufferLines int
	// UseStdout mirrors log output to stdout. Off while a terminal UI owns
	// the screen.
	UseStdout bool
}

// LogBackend fans log writes out to a rotating file and a bounded line
// buffer, and hands out per-subsystem loggers.
type LogBackend struct {
	backend *slog.Backend
	level   slog.Level
	rotator *lumberjack.Logger

	mu    sync.Mutex
	lines []string
	max   int
}

func NewLogBackend(cfg LogConfig) (*LogBackend, error) {
	lb := &LogBackend{
		level: slog.LevelInfo,
		max:   cfg.MaxBufferLines,
	}
	if lb.max <= 0 {
		lb.max = 1000
	}
	if cfg.DebugLevel != "" {
		lvl, ok := slog.LevelFromString(cfg.DebugLevel)
		if !ok {
			return nil, fmt.Errorf("unknown log level %q", cfg.DebugLevel)
		}
		lb.level = lvl
	}

	writers := []io.Writer{lineWriter{lb}}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o700); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		lb.rotator = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // MB
			MaxBackups: cfg.MaxLogFiles,
		}
		writers = append(writers, lb.rotator)
	}
	if cfg.UseStdout {
		writers = append(writers, os.Stdout)
	}
	lb.backend = slog.NewBackend(io.MultiWriter(writers...))
	return lb, nil
}

// Logger returns a logger for the named subsystem at the configured level.
func (lb *LogBackend) Logger(subsystem string) slog.Logger {
	l := lb.backend.Logger(subsystem)
	l.SetLevel(lb.level)
	return l
}

// LastLogLines returns up to n of the most recent log lines.
func (lb *LogBackend) LastLogLines(n int) []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if n > len(lb.lines) {
		n = len(lb.lines)
	}
	out := make([]string, n)
	copy(out, lb.lines[len(lb.lines)-n:])
	return out
}

// Close flushes and closes the rotating file.
func (lb *LogBackend) Close() error {
	if lb.rotator != nil {
		return lb.rotator.Close()
	}
	return nil
}

// lineWriter appends complete lines to the bounded tail buffer.
type lineWriter struct{ lb *LogBackend }

func (w lineWriter) Write(p []byte) (int, error) {
	lb := w.lb
	lb.mu.Lock()
	defer lb.mu.Unlock()
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		lb.lines = append(lb.lines, string(line))
	}
	if over := len(lb.lines) - lb.max; over > 0 {
		lb.lines = lb.lines[over:]
	}
	return len(p), nil
}
