package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tg_weather_bot/internal/credentials"
	"tg_weather_bot/internal/logging"
)

// MessageTokenRejected answers a Telegram token that failed verification.
const MessageTokenRejected = "Telegram API key was rejected by Telegram"

type apiKeysPayload struct {
	WeatherAPIKey  string `json:"weatherApiKey"`
	TelegramAPIKey string `json:"telegramApiKey"`
}

func (h *handlers) getAPIKeys(c *gin.Context) {
	snapshot := h.deps.Credentials.Snapshot()
	c.JSON(http.StatusOK, apiKeysPayload{
		WeatherAPIKey:  snapshot.WeatherAPIKey,
		TelegramAPIKey: snapshot.TelegramToken,
	})
}

func (h *handlers) updateAPIKeys(c *gin.Context) {
	var req apiKeysPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one API key must be provided"})
		return
	}

	err := h.deps.Credentials.Update(c.Request.Context(), credentials.Update{
		WeatherAPIKey: req.WeatherAPIKey,
		TelegramToken: req.TelegramAPIKey,
	})
	if errors.Is(err, credentials.ErrNoCredentials) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one API key must be provided"})
		return
	}
	if errors.Is(err, credentials.ErrTokenRejected) {
		logging.FromContext(c.Request.Context(), h.logger).WithFields(logging.Fields{
			"event": "api_keys_token_rejected",
			"error": err,
		}).Warn("rotated telegram token rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": MessageTokenRejected})
		return
	}
	if err != nil {
		h.failure(c, "api_keys_update_failed", err, gin.H{"error": "Failed to update API keys"})
		return
	}

	h.logger.WithFields(logging.Fields{
		"event":            "api_keys_rotated",
		"operator_id":      c.GetString(ctxOperatorID),
		"weather_rotated":  req.WeatherAPIKey != "",
		"telegram_rotated": req.TelegramAPIKey != "",
	}).Info("api keys rotated by operator")

	c.JSON(http.StatusOK, gin.H{"message": "API keys updated successfully."})
}
