package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"streaming-engine/pkg/config"
)

// Logger wraps a logrus logger together with the file it may write to.
type Logger struct {
	entry *logrus.Logger
	file  *os.File
}

var (
	globalMu     sync.RWMutex
	globalLogger = newDefaultLogger()
)

func newDefaultLogger() *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return &Logger{entry: l}
}

// NewLogger builds a logger from the log section of the configuration.
func NewLogger(cfg *config.Config) *Logger {
	l := logrus.New()
	out := &Logger{entry: l}
	if cfg == nil {
		l.SetOutput(os.Stdout)
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return out
	}

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Log.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var w io.Writer = os.Stdout
	switch strings.ToLower(cfg.Log.Output) {
	case "stderr":
		w = os.Stderr
	case "file":
		if cfg.Log.Filename != "" {
			f, err := os.OpenFile(cfg.Log.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] open log file %s failed, fallback to stdout: %v\n", cfg.Log.Filename, err)
			} else {
				out.file = f
				w = f
			}
		}
	}
	l.SetOutput(w)
	return out
}

// NewWithWriter is used by tests to capture log output.
func NewWithWriter(w io.Writer, level logrus.Level) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	l.SetLevel(level)
	return &Logger{entry: l}
}

// SetGlobalLogger replaces the package level logger.
func SetGlobalLogger(l *Logger) {
	if l == nil {
		return
	}
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// GetGlobalLogger returns the package level logger.
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// Close releases the log file when output is a file.
func (l *Logger) Close() {
	if l != nil && l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
}

// WithFields returns an entry carrying structured fields.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.entry.WithFields(logrus.Fields(fields))
}

func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.entry.WithFields(merge(fields)).Info(msg)
}

func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.entry.WithFields(merge(fields)).Warn(msg)
}

func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.entry.WithFields(merge(fields)).Error(msg)
}

func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.entry.WithFields(merge(fields)).Debug(msg)
}

func merge(fields []map[string]interface{}) logrus.Fields {
	out := logrus.Fields{}
	for _, f := range fields {
		for k, v := range f {
			out[k] = v
		}
	}
	return out
}

// package level helpers delegate to the global logger

func Infof(format string, args ...interface{})  { GetGlobalLogger().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { GetGlobalLogger().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { GetGlobalLogger().Errorf(format, args...) }
func Debugf(format string, args ...interface{}) { GetGlobalLogger().Debugf(format, args...) }

func Info(msg string, fields ...map[string]interface{})  { GetGlobalLogger().Info(msg, fields...) }
func Warn(msg string, fields ...map[string]interface{})  { GetGlobalLogger().Warn(msg, fields...) }
func Error(msg string, fields ...map[string]interface{}) { GetGlobalLogger().Error(msg, fields...) }
func Debug(msg string, fields ...map[string]interface{}) { GetGlobalLogger().Debug(msg, fields...) }

// Fatal logs and terminates the process.
func Fatal(msg string) {
	GetGlobalLogger().entry.Fatal(msg)
}
