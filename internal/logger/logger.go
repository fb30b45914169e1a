package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps zerolog.Logger with the sinks it owns
type Logger struct {
	logger   zerolog.Logger
	file     io.WriteCloser
	redactor *Redactor
}

// Config holds logger configuration
type Config struct {
	Level      string    // debug, info, warn, error
	File       string    // log file path
	Console    bool      // enable console output
	Pretty     bool      // pretty format for console
	Redaction  bool      // enable sensitive data redaction
	MaxSize    int       // max size in MB before rotation
	MaxAge     int       // max age in days
	MaxBackups int       // rotated files to keep, 0 keeps all
	Compress   bool      // gzip rotated logs
	Output     io.Writer // console destination, stderr when nil
}

// New creates a logger and installs it as the zerolog global.
func New(cfg Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer

	if cfg.Console {
		out := cfg.Output
		if out == nil {
			out = os.Stderr
		}
		if cfg.Pretty {
			out = zerolog.ConsoleWriter{
				Out:        out,
				TimeFormat: time.Kitchen,
			}
		}
		writers = append(writers, out)
	}

	var file io.WriteCloser
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxAge:     cfg.MaxAge,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
		}
		writers = append(writers, file)
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	var redactor *Redactor
	if cfg.Redaction {
		redactor = NewRedactor()
		writer = redactor.Wrap(writer)
	}

	logger := zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger()

	log.Logger = logger
	zerolog.SetGlobalLevel(level)

	return &Logger{
		logger:   logger,
		file:     file,
		redactor: redactor,
	}, nil
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Zerolog returns the underlying zerolog.Logger
func (l *Logger) Zerolog() zerolog.Logger {
	return l.logger
}

// DefaultConfig returns the CLI's logging defaults: warnings and up on the console.
func DefaultConfig() Config {
	return Config{
		Level:      "warn",
		Console:    true,
		Pretty:     true,
		Redaction:  true,
		MaxSize:    10,
		MaxAge:     7,
		MaxBackups: 5,
		Compress:   true,
	}
}
