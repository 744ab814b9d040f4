package util

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the global logger instance
var Logger = logrus.New()

func init() {
	Logger.SetOutput(os.Stderr)
	Logger.SetLevel(logrus.WarnLevel)
	SetLogFormat("text")
}

// SetLogLevel sets the logging level
func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	Logger.SetLevel(lvl)
	return nil
}

// SetLogOutput sets the log output destination
func SetLogOutput(w io.Writer) {
	Logger.SetOutput(w)
}

// SetJSONFormat enables JSON log format
func SetJSONFormat() {
	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
	})
}

// SetLogFormat selects "text" or "json" log lines.
func SetLogFormat(format string) error {
	switch format {
	case "", "text":
		Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	case "json":
		SetJSONFormat()
	default:
		return fmt.Errorf("unknown log format %q (valid: text, json)", format)
	}
	return nil
}

// WithField returns a logger with a field
func WithField(key string, value interface{}) *logrus.Entry {
	return Logger.WithField(key, value)
}

// WithFields returns a logger with multiple fields
func WithFields(fields map[string]interface{}) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithCommand returns a logger with command context
func WithCommand(command string) *logrus.Entry {
	return Logger.WithField("command", command)
}

// WithObjType returns a logger with object-type context
func WithObjType(objType string) *logrus.Entry {
	return Logger.WithField("obj_type", objType)
}

// WithMode returns a logger with CLI mode context
func WithMode(mode string) *logrus.Entry {
	return Logger.WithField("mode", mode)
}

// WithInvocation returns a logger for one command run by user in mode
func WithInvocation(command, mode, user string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{
		"command": command,
		"mode":    mode,
		"user":    user,
	})
}

// WithEntry returns a logger with running-config entry context
func WithEntry(name string) *logrus.Entry {
	return Logger.WithField("entry", name)
}

// WithBackend returns a logger naming the object store in use
func WithBackend(kind, addr string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{"backend": kind, "addr": addr})
}

// Debugf logs a formatted debug message
func Debugf(format string, args ...interface{}) {
	Logger.Debugf(format, args...)
}

// Infof logs a formatted info message
func Infof(format string, args ...interface{}) {
	Logger.Infof(format, args...)
}

// Warnf logs a formatted warning message
func Warnf(format string, args ...interface{}) {
	Logger.Warnf(format, args...)
}

// Errorf logs a formatted error message
func Errorf(format string, args ...interface{}) {
	Logger.Errorf(format, args...)
}
