// Package logging builds the logrus logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/primis-cohort/internal/domain"
)

// New creates a logger from configuration. The returned closer releases the
// output file, if any.
func New(config domain.LoggingConfig) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if config.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	var closer io.Closer = nopCloser{}
	switch strings.ToLower(config.Output) {
	case "", "stderr":
		logger.SetOutput(os.Stderr)
	case "stdout":
		logger.SetOutput(os.Stdout)
	default:
		f, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.SetOutput(f)
		closer = f
	}

	return logger, closer, nil
}

// Discard returns a logger that writes nothing.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// Stage logs the start of a pipeline stage at Debug and returns a function
// that logs its completion with the elapsed time and extra fields.
func Stage(entry *logrus.Entry, name string) func(fields logrus.Fields) {
	start := time.Now()
	entry.WithField("stage", name).Debug("Stage started")

	return func(fields logrus.Fields) {
		e := entry.WithFields(logrus.Fields{
			"stage":       name,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if len(fields) > 0 {
			e = e.WithFields(fields)
		}
		e.Debug("Stage completed")
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
