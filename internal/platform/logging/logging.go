// Package logging builds the process slog.Logger: JSON to stdout, and to a
// size-rotated file when LOG_FILE is set.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/staffline-labs/staffline-go/internal/platform/env"
)

type Config struct {
	Level      slog.Level
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

func ConfigFromEnv() (Config, error) {
	level, err := ParseLevel(env.String("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}
	maxSize, err := env.Int("LOG_MAX_SIZE_MB", 10)
	if err != nil {
		return Config{}, err
	}
	maxBackups, err := env.Int("LOG_MAX_BACKUPS", 3)
	if err != nil {
		return Config{}, err
	}
	maxAge, err := env.Int("LOG_MAX_AGE_DAYS", 28)
	if err != nil {
		return Config{}, err
	}
	compress, err := env.Bool("LOG_COMPRESS", true)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Level:      level,
		File:       strings.TrimSpace(env.String("LOG_FILE", "")),
		MaxSizeMB:  maxSize,
		MaxBackups: maxBackups,
		MaxAgeDays: maxAge,
		Compress:   compress,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.File == "" {
		return nil
	}
	if c.MaxSizeMB < 1 {
		return errors.New("LOG_MAX_SIZE_MB must be >= 1")
	}
	if c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return errors.New("LOG_MAX_BACKUPS and LOG_MAX_AGE_DAYS must be >= 0")
	}
	return nil
}

func ParseLevel(value string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return 0, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}
	return level, nil
}

// New returns the logger and a closer for the rotated file, if any.
func New(cfg Config, service string) (*slog.Logger, io.Closer) {
	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		out = io.MultiWriter(os.Stdout, rotated)
		closer = rotated
	}
	return NewWithWriter(out, cfg.Level, service), closer
}

func NewWithWriter(w io.Writer, level slog.Level, service string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	if service != "" {
		logger = logger.With("service", service)
	}
	return logger
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
