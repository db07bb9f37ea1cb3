// Package health reports liveness of the bot's dependencies for container probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"tg_weather_bot/internal/logging"
)

const mongoPingTimeout = 2 * time.Second

// MongoChecker defines the subset of MongoDB client behavior required for health.
type MongoChecker interface {
	Ping(ctx context.Context) error
}

// PollingChecker reports whether Telegram long polling is running.
type PollingChecker interface {
	Running() bool
}

// Handler serves GET /healthz.
type Handler struct {
	mongo   MongoChecker
	polling PollingChecker
	logger  *logrus.Entry
}

type response struct {
	Status   string `json:"status"`
	Mongo    string `json:"mongo,omitempty"`
	Telegram string `json:"telegram,omitempty"`
}

// NewHandler constructs a health handler. A nil polling checker skips the
// Telegram check.
func NewHandler(mongo MongoChecker, polling PollingChecker, logger *logrus.Entry) *Handler {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Handler{
		mongo:   mongo,
		polling: polling,
		logger:  logger,
	}
}

// ServeHTTP always answers 200; degraded dependencies are reported in the body.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := response{Status: "ok"}

	if !h.mongoHealthy(r.Context()) {
		resp.Status = "degraded"
		resp.Mongo = "error"
	}

	if h.polling != nil && !h.polling.Running() {
		resp.Status = "degraded"
		resp.Telegram = "stopped"
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.WithField("event", "health_write_error").WithError(err).Error("failed to encode health response")
	}
}

func (h *Handler) mongoHealthy(ctx context.Context) bool {
	if h.mongo == nil {
		h.logger.WithField("event", "health_mongo_missing").Warn("mongo checker is not configured for health endpoint")
		return false
	}

	pingCtx, cancel := context.WithTimeout(ctx, mongoPingTimeout)
	defer cancel()

	if err := h.mongo.Ping(pingCtx); err != nil {
		h.logger.WithField("event", "health_mongo_error").WithError(err).Warn("mongo ping failed during health check")
		return false
	}

	return true
}
