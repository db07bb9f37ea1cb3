// Package gate decides whether a chat may use the bot before any command runs.
package gate

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"tg_weather_bot/internal/domain"
	"tg_weather_bot/internal/logging"
)

// Messages returned alongside a gate decision.
const (
	MessageWelcome = "Welcome! Use /help to see available commands."
	MessageBlocked = "You are blocked from using the bot. Please contact support."
	MessageAllowed = "You are allowed to proceed."
	MessageFailure = "An error occurred while checking your status. Please try again later."
)

type userLookup interface {
	GetByChatID(ctx context.Context, chatID string) (domain.ChatUser, error)
}

// Status is the outcome of a gate check.
type Status struct {
	Allowed bool
	Message string
}

// Gate is a read-only eligibility check. Storage failures deny access.
type Gate struct {
	users  userLookup
	logger *logrus.Entry
}

// New constructs a Gate over the chat user store.
func New(users userLookup, logger *logrus.Entry) *Gate {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Gate{
		users:  users,
		logger: logger,
	}
}

// Check reports whether the chat may proceed and the message to show when it
// may not.
func (g *Gate) Check(ctx context.Context, chatID string) Status {
	if g == nil || g.users == nil {
		return Status{Allowed: false, Message: MessageFailure}
	}

	user, err := g.users.GetByChatID(ctx, chatID)
	switch {
	case errors.Is(err, domain.ErrChatUserNotFound):
		return Status{Allowed: true, Message: MessageWelcome}
	case err != nil:
		g.logger.WithFields(logging.Fields{
			"event":   "gate_check_failed",
			"chat_id": chatID,
			"error":   err,
		}).Error("failed to check chat user status")
		return Status{Allowed: false, Message: MessageFailure}
	case user.Blocked:
		g.logger.WithFields(logging.Fields{
			"event":   "gate_denied",
			"chat_id": chatID,
		}).Debug("blocked chat user denied")
		return Status{Allowed: false, Message: MessageBlocked}
	default:
		return Status{Allowed: true, Message: MessageAllowed}
	}
}
