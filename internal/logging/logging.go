// Package logging builds the logrus logger shared by the bot, the admin API and
// the dashboard channel.
package logging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tg_weather_bot/internal/config"
)

const serviceName = "weather-bot"

// Fields is a shorthand alias for structured log fields.
type Fields = logrus.Fields

type ctxKey struct{}

var (
	baseLogger *logrus.Entry

	fieldMap = logrus.FieldMap{
		logrus.FieldKeyTime:  "ts",
		logrus.FieldKeyMsg:   "msg",
		logrus.FieldKeyLevel: "level",
	}
)

// Setup installs the process logger: JSON in production, text in development,
// with service and env attached to every entry.
func Setup(cfg config.Config) (*logrus.Entry, error) {
	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.LogLevel)))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	baseLogger = newEntry(cfg.AppEnv, level)
	return baseLogger, nil
}

// Logger returns the process logger. Before Setup it falls back to an info
// level production logger so early boot errors are still structured.
func Logger() *logrus.Entry {
	if baseLogger == nil {
		baseLogger = newEntry(config.DefaultAppEnv, logrus.InfoLevel)
	}
	return baseLogger
}

// For returns the process logger tagged with a component name.
func For(component string) *logrus.Entry {
	return Logger().WithField("component", component)
}

// NewContext stores entry in ctx for request-scoped logging.
func NewContext(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, ctxKey{}, entry)
}

// FromContext returns the entry stored by NewContext, or fallback when ctx
// carries none. A nil fallback resolves to Logger().
func FromContext(ctx context.Context, fallback *logrus.Entry) *logrus.Entry {
	if ctx != nil {
		if entry, ok := ctx.Value(ctxKey{}).(*logrus.Entry); ok && entry != nil {
			return entry
		}
	}
	if fallback != nil {
		return fallback
	}
	return Logger()
}

// Info logs through the process logger.
func Info(msg string, fields Fields) {
	Logger().WithFields(fields).Info(msg)
}

// Error logs through the process logger.
func Error(msg string, fields Fields) {
	Logger().WithFields(fields).Error(msg)
}

func newEntry(appEnv string, level logrus.Level) *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(level)

	if appEnv == config.EnvDevelopment {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:          true,
			TimestampFormat:        time.RFC3339Nano,
			FieldMap:               fieldMap,
			DisableLevelTruncation: true,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap:        fieldMap,
		})
	}

	return logger.WithFields(Fields{
		"service": serviceName,
		"env":     appEnv,
	})
}
