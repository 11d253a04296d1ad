package utils

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

var (
	logMu   sync.RWMutex
	logger  = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logFile *os.File
)

// LogOptions configures the process-wide logger.
type LogOptions struct {
	Debug  bool
	Quiet  bool      // errors only
	Output io.Writer // default stderr
	File   string    // appended to, never truncated
}

// InitLogger points the logger at Output and, when set, at File as well.
// The returned func closes the log file.
func InitLogger(opts LogOptions) (func() error, error) {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	if opts.Quiet {
		level = slog.LevelError
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var f *os.File
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("could not create log dir: %w", err)
		}
		var err error
		f, err = os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file: %w", err)
		}
		out = io.MultiWriter(out, f)
	}

	logMu.Lock()
	prev := logFile
	logFile = f
	logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	logMu.Unlock()

	if prev != nil {
		prev.Close()
	}

	return func() error {
		logMu.Lock()
		defer logMu.Unlock()
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		if logFile == nil {
			return nil
		}
		err := logFile.Close()
		logFile = nil
		return err
	}, nil
}

// Logger returns the current logger for structured call sites.
func Logger() *slog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

func Debug(format string, a ...interface{}) {
	Logger().Debug(fmt.Sprintf(format, a...))
}

func Info(format string, a ...interface{}) {
	Logger().Info(fmt.Sprintf(format, a...))
}

func Success(format string, a ...interface{}) {
	Logger().Info(fmt.Sprintf(format, a...), "status", "ok")
}

func Warn(format string, a ...interface{}) {
	Logger().Warn(fmt.Sprintf(format, a...))
}

func Error(format string, a ...interface{}) {
	Logger().Error(fmt.Sprintf(format, a...))
}

// Section marks the start of a pipeline stage.
func Section(title string) {
	Logger().Info("══════════ "+title+" ══════════", "stage", title)
}
