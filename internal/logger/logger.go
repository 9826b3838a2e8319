package logger

import (
	"io"
	"log/slog"
	"os"

	"disclosure-rag/internal/config"
)

var Logger *slog.Logger

// InitLogger initializes structured JSON logging on stdout for the server and worker
func InitLogger(cfg *config.Config) {
	initWith(cfg, os.Stdout, true)
}

// InitCLILogger logs human-readable text to w, leaving stdout to command output
func InitCLILogger(cfg *config.Config, w io.Writer) {
	initWith(cfg, w, false)
}

func initWith(cfg *config.Config, w io.Writer, json bool) {
	level := slog.LevelInfo
	if cfg.GinMode == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.GinMode == "debug" && json, // Only add source in debug mode
	}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	Logger = slog.New(handler)

	Logger.Debug("Structured logging initialized", "level", level.String())
}

// Helper functions for common log operations
func Info(msg string, args ...any) {
	if Logger != nil {
		Logger.Info(msg, args...)
	}
}

func Error(msg string, args ...any) {
	if Logger != nil {
		Logger.Error(msg, args...)
	}
}

func Debug(msg string, args ...any) {
	if Logger != nil {
		Logger.Debug(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if Logger != nil {
		Logger.Warn(msg, args...)
	}
}
