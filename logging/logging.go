package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// Options selects the log level and an optional JSON log file
type Options struct {
	Debug bool
	File  string
}

// New builds a logger writing text to w and, when opts.File is set, JSON to that file.
// The returned closer releases the file.
func New(w io.Writer, opts Options) (*slog.Logger, func() error, error) {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	text := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	if opts.File == "" {
		return slog.New(text), func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory with %w", err)
	}
	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file '%s' with %w", opts.File, err)
	}
	jsonHandler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})

	return slog.New(slogmulti.Fanout(text, jsonHandler)), f.Close, nil
}

// Setup installs the logger from New as the slog default
func Setup(opts Options) (func() error, error) {
	if os.Getenv("DEBUG") != "" {
		opts.Debug = true
	}
	logger, closer, err := New(os.Stderr, opts)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return closer, nil
}
