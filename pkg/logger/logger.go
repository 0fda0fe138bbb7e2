package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogLevel constants
const (
	LogLevelError = "error"
	LogLevelWarn  = "warn"
	LogLevelInfo  = "info"
	LogLevelDebug = "debug"
	LogLevelTrace = "trace"
)

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// log is the shared logrus instance behind the package helpers
var log = logrus.New()

// Setup configures the shared logger from config. Unknown or empty levels
// fall back to info.
func Setup(config *LoggingConfig) {
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level := LogLevelInfo
	if config != nil && config.Level != "" {
		level = strings.ToLower(config.Level)
	}

	switch level {
	case LogLevelError:
		log.SetLevel(logrus.ErrorLevel)
	case LogLevelWarn:
		log.SetLevel(logrus.WarnLevel)
	case LogLevelDebug:
		log.SetLevel(logrus.DebugLevel)
	case LogLevelTrace:
		log.SetLevel(logrus.TraceLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	log.SetOutput(os.Stdout)
	if config != nil && config.File != "" {
		// 0600: owner read/write only
		output, err := os.OpenFile(config.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			log.Errorf("Failed to open log file %s: %v", config.File, err)
		} else {
			log.SetOutput(output)
		}
	}
}

// WithDevice returns an entry tagged with the device's display name
func WithDevice(name string) *logrus.Entry {
	return log.WithField("device", name)
}

// LogError logs error messages
func LogError(format string, args ...interface{}) {
	log.Errorf(format, args...)
}

// LogWarn logs warning messages
func LogWarn(format string, args ...interface{}) {
	log.Warnf(format, args...)
}

// LogInfo logs info messages
func LogInfo(format string, args ...interface{}) {
	log.Infof(format, args...)
}

// LogDebug logs debug messages
func LogDebug(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

// LogTrace logs trace messages
func LogTrace(format string, args ...interface{}) {
	log.Tracef(format, args...)
}

// IsDebugEnabled checks if debug logging is enabled
func IsDebugEnabled() bool {
	return log.IsLevelEnabled(logrus.DebugLevel)
}

// IsTraceEnabled checks if trace logging is enabled
func IsTraceEnabled() bool {
	return log.IsLevelEnabled(logrus.TraceLevel)
}
