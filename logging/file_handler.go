package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// NewFileHandler appends JSON log lines to path. The returned file must be
// closed by the caller on shutdown.
func NewFileHandler(path string, level slog.Level) (slog.Handler, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file '%s': %w", path, err)
	}
	return slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}), f, nil
}
