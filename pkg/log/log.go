// Package log routes every component through one configured logrus sink,
// with optional lumberjack file rotation.
package log

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger = logrus.New()

// Config log configuration
type Config struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, text
	Output     string `mapstructure:"output"`      // stdout, file
	Filename   string `mapstructure:"filename"`    // log file path
	MaxSize    int    `mapstructure:"max_size"`    // max size of a single file (MB)
	MaxAge     int    `mapstructure:"max_age"`     // max days to keep rotated files
	MaxBackups int    `mapstructure:"max_backups"` // max number of rotated files
	Compress   bool   `mapstructure:"compress"`
}

// Init applies the configuration to the shared logger. A bad level or an
// unwritable log directory falls back to info/stdout rather than failing
// startup.
func Init(cfg Config) {
	logger.SetLevel(parseLevel(cfg.Level))
	logger.SetFormatter(formatter(cfg.Format))
	logger.SetOutput(sink(cfg))
}

func parseLevel(level string) logrus.Level {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return l
}

func formatter(format string) logrus.Formatter {
	if format == "text" {
		return &logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		}
	}
	return &logrus.JSONFormatter{TimestampFormat: time.RFC3339}
}

func sink(cfg Config) io.Writer {
	if cfg.Output != "file" || cfg.Filename == "" {
		return os.Stdout
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Filename), 0755); err != nil {
		logger.WithError(err).Warn("Log directory unavailable, falling back to stdout")
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSize,
		MaxAge:     cfg.MaxAge,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}
}

// Logger exposes the shared instance for callers that need direct access,
// like test hooks.
func Logger() *logrus.Logger {
	return logger
}

// Debug output debug log
func Debug(args ...interface{}) {
	logger.Debug(args...)
}

// Debugf formatted output debug log
func Debugf(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

// Info output info log
func Info(args ...interface{}) {
	logger.Info(args...)
}

// Infof formatted output info log
func Infof(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

// Warn output warning log
func Warn(args ...interface{}) {
	logger.Warn(args...)
}

// Warnf formatted output warning log
func Warnf(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

// Error output error log
func Error(args ...interface{}) {
	logger.Error(args...)
}

// Errorf formatted output error log
func Errorf(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

// Fatal output fatal error log and exit program
func Fatal(args ...interface{}) {
	logger.Fatal(args...)
}

// Fatalf formatted output fatal error log and exit program
func Fatalf(format string, args ...interface{}) {
	logger.Fatalf(format, args...)
}

// WithField add field
func WithField(key string, value interface{}) *logrus.Entry {
	return logger.WithField(key, value)
}

// WithFields add multiple fields
func WithFields(fields logrus.Fields) *logrus.Entry {
	return logger.WithFields(fields)
}

// WithError add error field
func WithError(err error) *logrus.Entry {
	return logger.WithError(err)
}
