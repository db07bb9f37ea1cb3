package weather

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tg_weather_bot/internal/feature/gate"
	"tg_weather_bot/internal/logging"
	"tg_weather_bot/internal/metrics"
)

// MessageInvalidCity is sent when the lookup receives a blank city.
const MessageInvalidCity = "Please provide a valid city name."

// StatusChecker is the eligibility check run before every lookup.
type StatusChecker interface {
	Check(ctx context.Context, chatID string) gate.Status
}

// Provider returns current conditions for a city.
type Provider interface {
	Current(ctx context.Context, city string) (Report, error)
}

// Service answers city queries for a chat.
type Service struct {
	gate     StatusChecker
	provider Provider
	logger   *logrus.Entry
}

// NewService constructs a lookup Service.
func NewService(checker StatusChecker, provider Provider, logger *logrus.Entry) *Service {
	if logger == nil {
		logger = logging.Logger()
	}
	return &Service{
		gate:     checker,
		provider: provider,
		logger:   logger,
	}
}

// Lookup returns the reply for a city query and whether it should be sent.
// Provider failures are logged and produce no reply.
func (s *Service) Lookup(ctx context.Context, chatID, city string) (string, bool) {
	status := s.gate.Check(ctx, chatID)
	if !status.Allowed {
		metrics.IncWeatherLookup("denied")
		return status.Message, true
	}

	city = strings.TrimSpace(city)
	if city == "" {
		metrics.IncWeatherLookup("invalid")
		return MessageInvalidCity, true
	}

	started := time.Now()
	report, err := s.provider.Current(ctx, city)
	metrics.ObserveWeatherLatency(time.Since(started))
	if err != nil {
		metrics.IncWeatherLookup("error")
		s.logger.WithFields(logging.Fields{
			"event":   "weather_lookup_failed",
			"chat_id": chatID,
			"city":    city,
			"error":   err,
		}).Error("weather provider call failed")
		return "", false
	}

	metrics.IncWeatherLookup("ok")
	s.logger.WithFields(logging.Fields{
		"event":   "weather_lookup",
		"chat_id": chatID,
		"city":    report.City,
	}).Debug("weather report fetched")

	return report.Format(), true
}
