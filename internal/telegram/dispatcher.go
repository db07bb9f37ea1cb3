package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_weather_bot/internal/dashboard"
	"tg_weather_bot/internal/domain"
	"tg_weather_bot/internal/feature/gate"
	"tg_weather_bot/internal/logging"
	"tg_weather_bot/internal/metrics"
)

// Chat replies.
const (
	MessageAlreadySubscribed = "You are already subscribed to weather updates."
	MessageStartUnsubscribed = "You are unsubscribed from weather updates. Use /subscribe to get Weather Updates."
	MessageBotsNotAllowed    = "Bots are not allowed to subscribe."
	MessageSubscribed        = "You have successfully subscribed to weather updates."
	MessageResubscribed      = "You have successfully re-subscribed to weather updates."
	MessageSubscribeFailed   = "An error occurred while subscribing. Please try again later."
	MessageNotSubscribed     = "You are not subscribed to weather updates."
	MessageUnsubscribed      = "You have successfully unsubscribed from weather updates."
	MessageNeverSubscribed   = "You have not subscribe to get weather updates. Use /subscribe to get weather updates."
	MessageCityUnsubscribed  = "You are unsubscribed from weather updates. Use /subscribe to get weather updates."
	MessageEmptyCity         = "Please send a valid city name."
	MessageProcessingFailed  = "An error occurred while processing your request. Please try again later."

	MessageHelp = "Welcome to the Weather Bot!\n" +
		"Here are the commands you can use:\n" +
		"- /subscribe: Subscribe to the bot\n" +
		"- /unsubscribe: Unsubscribe from the bot\n" +
		"- [city]: Get weather information for a city\n" +
		"- /help: Get help with bot commands"
)

// Sender delivers a reply to a chat. *bot.Bot satisfies it.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

type statusChecker interface {
	Check(ctx context.Context, chatID string) gate.Status
}

type chatUsers interface {
	GetByChatID(ctx context.Context, chatID string) (domain.ChatUser, error)
	SetSubscribed(ctx context.Context, chatID string, subscribed bool) (domain.ChatUser, error)
}

type subscriber interface {
	Subscribe(ctx context.Context, profile domain.ChatProfile) (bool, error)
}

type weatherLookup interface {
	Lookup(ctx context.Context, chatID, city string) (string, bool)
}

type publisher interface {
	Publish(event dashboard.Event)
}

// Dependencies wires the dispatcher to storage, weather and the dashboard.
type Dependencies struct {
	Gate          statusChecker
	Users         chatUsers
	Subscriptions subscriber
	Weather       weatherLookup
	Events        publisher
}

// Dispatcher routes each inbound message to exactly one command handler.
type Dispatcher struct {
	deps   Dependencies
	logger *logrus.Entry
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(deps Dependencies, logger *logrus.Entry) *Dispatcher {
	if logger == nil {
		logger = logging.Logger()
	}
	return &Dispatcher{deps: deps, logger: logger}
}

// HandlerFunc adapts the dispatcher to the bot's default handler.
func (d *Dispatcher) HandlerFunc() bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		d.Handle(ctx, b, update)
	}
}

// Handle processes one update. Failures are logged and answered in chat; none
// propagate to the caller.
func (d *Dispatcher) Handle(ctx context.Context, sender Sender, update *models.Update) {
	if update == nil {
		return
	}

	meta := extractUpdateMeta(update)
	d.logger.WithFields(logging.Fields{
		"event":       "telegram_update",
		"update_type": meta.updateType,
		"user_id":     meta.userID,
		"chat_id":     meta.chatID,
	}).Debug("telegram update received")

	msg := update.Message
	if msg == nil {
		return
	}

	intent := ParseIntent(msg.Text)
	metrics.IncCommand(intent.Kind.String())

	c := &chatContext{
		sender: sender,
		chatID: msg.Chat.ID,
		key:    strconv.FormatInt(msg.Chat.ID, 10),
		from:   msg.From,
	}

	switch intent.Kind {
	case IntentStart:
		d.handleStart(ctx, c)
	case IntentHelp:
		d.handleHelp(ctx, c)
	case IntentSubscribe:
		d.handleSubscribe(ctx, c)
	case IntentUnsubscribe:
		d.handleUnsubscribe(ctx, c)
	case IntentCityQuery:
		d.handleCity(ctx, c, intent.City)
	default:
		d.logger.WithFields(logging.Fields{
			"event":   "telegram_unknown_command",
			"chat_id": c.key,
			"text":    strings.TrimSpace(msg.Text),
		}).Debug("ignoring unknown command")
	}
}

type chatContext struct {
	sender Sender
	chatID int64
	key    string
	from   *models.User
}

func (d *Dispatcher) handleStart(ctx context.Context, c *chatContext) {
	if !d.admit(ctx, c) {
		return
	}

	user, err := d.deps.Users.GetByChatID(ctx, c.key)
	switch {
	case errors.Is(err, domain.ErrChatUserNotFound):
		d.reply(ctx, c, gate.MessageWelcome)
	case err != nil:
		d.storageFailure(ctx, c, "start", err)
		return
	case user.Subscribed:
		d.reply(ctx, c, MessageAlreadySubscribed)
	default:
		d.reply(ctx, c, MessageStartUnsubscribed)
	}

	d.publish(dashboard.EventStart, c.key, nil)
}

func (d *Dispatcher) handleHelp(ctx context.Context, c *chatContext) {
	if !d.admit(ctx, c) {
		return
	}

	d.reply(ctx, c, MessageHelp)
	d.publish(dashboard.EventHelp, c.key, nil)
}

func (d *Dispatcher) handleSubscribe(ctx context.Context, c *chatContext) {
	if c.from != nil && c.from.IsBot {
		d.reply(ctx, c, MessageBotsNotAllowed)
		return
	}
	if !d.admit(ctx, c) {
		return
	}

	profile := domain.ChatProfile{ChatID: c.key}
	if c.from != nil {
		profile.Username = c.from.Username
		profile.FirstName = c.from.FirstName
		profile.Language = c.from.LanguageCode
	}

	created, err := d.deps.Subscriptions.Subscribe(ctx, profile)
	if err != nil {
		d.logger.WithFields(logging.Fields{
			"event":   "subscribe_failed",
			"chat_id": c.key,
			"error":   err,
		}).Error("failed to subscribe chat user")
		d.reply(ctx, c, MessageSubscribeFailed)
		return
	}

	if created {
		d.reply(ctx, c, MessageSubscribed)
	} else {
		d.reply(ctx, c, MessageResubscribed)
	}

	d.publish(dashboard.EventSubscribe, c.key, map[string]any{"subscribed": true})
}

func (d *Dispatcher) handleUnsubscribe(ctx context.Context, c *chatContext) {
	if !d.admit(ctx, c) {
		return
	}

	_, err := d.deps.Users.SetSubscribed(ctx, c.key, false)
	if errors.Is(err, domain.ErrChatUserNotFound) {
		d.reply(ctx, c, MessageNotSubscribed)
		return
	}
	if err != nil {
		d.storageFailure(ctx, c, "unsubscribe", err)
		return
	}

	d.reply(ctx, c, MessageUnsubscribed)
	d.publish(dashboard.EventUnsubscribe, c.key, map[string]any{"subscribed": false})
}

func (d *Dispatcher) handleCity(ctx context.Context, c *chatContext, city string) {
	if !d.admit(ctx, c) {
		return
	}

	user, err := d.deps.Users.GetByChatID(ctx, c.key)
	switch {
	case errors.Is(err, domain.ErrChatUserNotFound):
		d.reply(ctx, c, MessageNeverSubscribed)
		return
	case err != nil:
		d.storageFailure(ctx, c, "city", err)
		return
	case !user.Subscribed:
		d.reply(ctx, c, MessageCityUnsubscribed)
		return
	}

	if city == "" {
		d.reply(ctx, c, MessageEmptyCity)
		return
	}

	if reply, send := d.deps.Weather.Lookup(ctx, c.key, city); send {
		d.reply(ctx, c, reply)
	}
}

// admit runs the gate and answers denied chats with the gate message.
func (d *Dispatcher) admit(ctx context.Context, c *chatContext) bool {
	status := d.deps.Gate.Check(ctx, c.key)
	if !status.Allowed {
		d.reply(ctx, c, status.Message)
		return false
	}
	return true
}

func (d *Dispatcher) storageFailure(ctx context.Context, c *chatContext, command string, err error) {
	d.logger.WithFields(logging.Fields{
		"event":   "command_failed",
		"command": command,
		"chat_id": c.key,
		"error":   err,
	}).Error("chat command failed")
	d.reply(ctx, c, MessageProcessingFailed)
}

func (d *Dispatcher) publish(name, chatID string, extra map[string]any) {
	if d.deps.Events == nil {
		return
	}
	d.deps.Events.Publish(dashboard.Event{Name: name, ChatID: chatID, Extra: extra})
}

func (d *Dispatcher) reply(ctx context.Context, c *chatContext, text string) {
	if c.sender == nil {
		return
	}

	if _, err := c.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: c.chatID,
		Text:   text,
	}); err != nil {
		d.logger.WithFields(logging.Fields{
			"event":   "telegram_send_failed",
			"chat_id": c.key,
			"error":   err,
		}).Error("failed to send telegram message")
	}
}
