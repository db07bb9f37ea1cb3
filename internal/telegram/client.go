// Package telegram hosts the Telegram client, intent routing, and command handlers.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_weather_bot/internal/logging"
)

type botRunner interface {
	Start(ctx context.Context)
}

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
	}

	createBot = func(token string, options ...bot.Option) (botRunner, error) {
		return bot.New(token, options...)
	}
)

// Option customizes a Client.
type Option func(*Client)

// WithUpdateHandler routes every update to h.
func WithUpdateHandler(h bot.HandlerFunc) Option {
	return func(c *Client) {
		c.handler = h
	}
}

// WithTokenChanges restarts polling with each token received on ch.
func WithTokenChanges(ch <-chan string) Option {
	return func(c *Client) {
		c.tokenChanges = ch
	}
}

// Client wraps the Telegram bot instance and restarts it when the token rotates.
type Client struct {
	mu           sync.Mutex
	bot          botRunner
	handler      bot.HandlerFunc
	tokenChanges <-chan string
	running      atomic.Bool
	logger       *logrus.Entry
}

// NewClient initializes the Telegram bot with long polling. An update handler
// is required.
func NewClient(token string, logger *logrus.Entry, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	c := &Client{logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	if c.handler == nil {
		return nil, errors.New("telegram update handler is required")
	}

	tgBot, err := createBot(strings.TrimSpace(token), c.botOptions()...)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}
	c.bot = tgBot

	return c, nil
}

// NewTokenVerifier returns a check that calls getMe with a candidate token
// without starting polling. An empty serverURL targets the public Bot API.
func NewTokenVerifier(serverURL string) func(ctx context.Context, token string) error {
	return func(ctx context.Context, token string) error {
		token = strings.TrimSpace(token)
		if token == "" {
			return errors.New("telegram token is required")
		}

		options := []bot.Option{bot.WithSkipGetMe()}
		if serverURL != "" {
			options = append(options, bot.WithServerURL(serverURL))
		}

		candidate, err := bot.New(token, options...)
		if err != nil {
			return fmt.Errorf("init telegram bot client: %w", err)
		}
		if _, err := candidate.GetMe(ctx); err != nil {
			return fmt.Errorf("telegram getMe: %w", err)
		}
		return nil
	}
}

func (c *Client) botOptions() []bot.Option {
	return []bot.Option{
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithDefaultHandler(c.handler),
		bot.WithErrorsHandler(errorHandler(c.logger)),
	}
}

// Running reports whether long polling is active.
func (c *Client) Running() bool {
	return c.running.Load()
}

// Start receives updates via long polling until the context is canceled. A
// token received from the change channel replaces the bot without stopping
// the process; a rejected token keeps the current bot.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	for {
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})

		c.mu.Lock()
		current := c.bot
		c.mu.Unlock()

		go func() {
			defer close(done)
			current.Start(runCtx)
		}()
		c.running.Store(true)

		select {
		case <-ctx.Done():
			cancel()
			<-done
			c.stopped()
			return
		case <-done:
			cancel()
			c.stopped()
			return
		case token := <-c.tokenChanges:
			cancel()
			<-done
			c.running.Store(false)
			c.rotate(token)
		}
	}
}

func (c *Client) rotate(token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}

	next, err := createBot(token, c.botOptions()...)
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event": "telegram_restart_failed",
			"error": err,
		}).Error("rotated telegram token rejected, keeping current bot")
		return
	}

	c.mu.Lock()
	c.bot = next
	c.mu.Unlock()

	c.logger.WithField("event", "telegram_restarted").Info("telegram polling restarted with rotated token")
}

func (c *Client) stopped() {
	c.running.Store(false)
	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

type updateMeta struct {
	userID     int64
	chatID     int64
	text       string
	updateType string
}

func extractUpdateMeta(update *models.Update) updateMeta {
	switch {
	case update.Message != nil:
		return updateMeta{
			userID:     userID(update.Message.From),
			chatID:     chatID(&update.Message.Chat),
			text:       strings.TrimSpace(update.Message.Text),
			updateType: "message",
		}
	default:
		return updateMeta{updateType: "unknown"}
	}
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}

func userID(user *models.User) int64 {
	if user == nil {
		return 0
	}

	return user.ID
}

func chatID(chat *models.Chat) int64 {
	if chat == nil {
		return 0
	}

	return chat.ID
}
