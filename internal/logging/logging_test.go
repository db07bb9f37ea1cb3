package logging

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"tg_weather_bot/internal/config"
)

func useBase(t *testing.T, entry *logrus.Entry) {
	t.Helper()
	prev := baseLogger
	baseLogger = entry
	t.Cleanup(func() { baseLogger = prev })
}

func TestSetupFormatterPerEnvironment(t *testing.T) {
	tests := []struct {
		env      string
		level    string
		wantJSON bool
	}{
		{config.EnvProduction, "info", true},
		{config.EnvDevelopment, "debug", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.env, func(t *testing.T) {
			useBase(t, nil)

			entry, err := Setup(config.Config{AppEnv: tt.env, LogLevel: tt.level})
			if err != nil {
				t.Fatalf("Setup returned error: %v", err)
			}

			switch f := entry.Logger.Formatter.(type) {
			case *logrus.JSONFormatter:
				if !tt.wantJSON {
					t.Fatalf("expected text formatter in %s", tt.env)
				}
				if f.FieldMap[logrus.FieldKeyTime] != "ts" {
					t.Fatalf("expected ts time key, got %q", f.FieldMap[logrus.FieldKeyTime])
				}
			case *logrus.TextFormatter:
				if tt.wantJSON {
					t.Fatalf("expected JSON formatter in %s", tt.env)
				}
			default:
				t.Fatalf("unexpected formatter %T", f)
			}

			if entry.Data["service"] != serviceName || entry.Data["env"] != tt.env {
				t.Fatalf("expected service/env fields, got %v", entry.Data)
			}
			if Logger() != entry {
				t.Fatalf("expected Setup to install the process logger")
			}
		})
	}
}

func TestSetupRejectsInvalidLogLevel(t *testing.T) {
	useBase(t, nil)

	if _, err := Setup(config.Config{AppEnv: config.EnvDevelopment, LogLevel: "loud"}); err == nil {
		t.Fatalf("expected error for invalid log level")
	}
	if baseLogger != nil {
		t.Fatalf("base logger should remain unset after failure")
	}
}

func TestLoggerFallsBackBeforeSetup(t *testing.T) {
	useBase(t, nil)

	entry := Logger()
	if entry.Logger.GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level fallback, got %s", entry.Logger.GetLevel())
	}
	if entry.Data["env"] != config.DefaultAppEnv {
		t.Fatalf("expected default env, got %v", entry.Data["env"])
	}
}

func TestHelpersAndComponents(t *testing.T) {
	logger, hook := test.NewNullLogger()
	useBase(t, logger.WithField("service", serviceName))

	Info("started", Fields{"event": "startup"})
	Error("failed", Fields{"error": "boom"})
	For("telegram").Warn("slow")

	entries := hook.AllEntries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Level != logrus.InfoLevel || entries[0].Data["event"] != "startup" {
		t.Fatalf("unexpected info entry: %v %v", entries[0].Level, entries[0].Data)
	}
	if entries[1].Level != logrus.ErrorLevel || entries[1].Data["error"] != "boom" {
		t.Fatalf("unexpected error entry: %v %v", entries[1].Level, entries[1].Data)
	}
	if entries[2].Data["component"] != "telegram" || entries[2].Data["service"] != serviceName {
		t.Fatalf("expected component and base fields, got %v", entries[2].Data)
	}
}

func TestContextRoundTrip(t *testing.T) {
	logger, _ := test.NewNullLogger()
	base := logrus.NewEntry(logger)
	useBase(t, base)

	fallback := base.WithField("component", "api")
	if got := FromContext(context.Background(), fallback); got != fallback {
		t.Fatalf("expected fallback without stored entry")
	}
	if got := FromContext(context.Background(), nil); got != base {
		t.Fatalf("expected process logger when no fallback is given")
	}

	scoped := base.WithField("request_id", "req-1")
	ctx := NewContext(context.Background(), scoped)
	if got := FromContext(ctx, fallback); got != scoped {
		t.Fatalf("expected stored entry, got %v", got.Data)
	}
}
