package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"tg_weather_bot/internal/dashboard"
	"tg_weather_bot/internal/domain"
	"tg_weather_bot/internal/logging"
)

// MessageUserNotFound is returned when a moderation target does not exist.
const MessageUserNotFound = "User not found"

// chatRef accepts a chat id sent either as a JSON string or a number.
type chatRef string

func (r *chatRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = chatRef(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("chatId must be a string or number: %w", err)
	}
	*r = chatRef(n.String())
	return nil
}

type chatRequest struct {
	ChatID chatRef `json:"chatId" binding:"required"`
}

func (h *handlers) listUsers(c *gin.Context) {
	users, err := h.deps.Users.List(c.Request.Context())
	if err != nil {
		h.failure(c, "list_users_failed", err, gin.H{"message": "Error fetching users"})
		return
	}

	c.JSON(http.StatusOK, users)
}

func (h *handlers) userStats(c *gin.Context) {
	stats, err := h.deps.Stats.UserStats(c.Request.Context())
	if err != nil {
		h.failure(c, "user_stats_failed", err, gin.H{"message": "Error fetching user stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *handlers) blockUser(c *gin.Context) {
	h.setBlocked(c, true)
}

func (h *handlers) unblockUser(c *gin.Context) {
	h.setBlocked(c, false)
}

func (h *handlers) setBlocked(c *gin.Context, blocked bool) {
	verb, event := "unblocked", dashboard.EventUnblock
	if blocked {
		verb, event = "blocked", dashboard.EventBlock
	}

	chatID, ok := bindChatID(c)
	if !ok {
		return
	}

	user, err := h.deps.Users.SetBlocked(c.Request.Context(), chatID, blocked)
	if errors.Is(err, domain.ErrChatUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": MessageUserNotFound})
		return
	}
	if err != nil {
		action := "blocking"
		if !blocked {
			action = "unblocking"
		}
		h.failure(c, "set_blocked_failed", err, gin.H{"message": "Error " + action + " user"})
		return
	}

	h.logger.WithFields(logging.Fields{
		"event":       "chat_user_" + verb,
		"chat_id":     chatID,
		"operator_id": c.GetString(ctxOperatorID),
	}).Info("chat user moderation changed")

	h.publish(event, chatID, map[string]any{"blocked": blocked})

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("User %s %s successfully.", user.Username, verb),
		"user":    user,
	})
}

func (h *handlers) deleteUser(c *gin.Context) {
	chatID, ok := bindChatID(c)
	if !ok {
		return
	}

	user, err := h.deps.Users.Delete(c.Request.Context(), chatID)
	if errors.Is(err, domain.ErrChatUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": MessageUserNotFound})
		return
	}
	if err != nil {
		h.failure(c, "delete_user_failed", err, gin.H{"message": "Error deleting user"})
		return
	}

	h.logger.WithFields(logging.Fields{
		"event":       "chat_user_deleted",
		"chat_id":     chatID,
		"operator_id": c.GetString(ctxOperatorID),
	}).Info("chat user deleted")

	h.publish(dashboard.EventDelete, chatID, nil)

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("User %s deleted successfully.", user.Username),
	})
}

func bindChatID(c *gin.Context) (string, bool) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ChatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "chatId is required"})
		return "", false
	}
	return string(req.ChatID), true
}
