// Package credentials holds the live weather and Telegram credentials and
// persists rotations so they survive restarts.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tg_weather_bot/internal/logging"
)

// SettingsID is the _id of the settings document holding rotated keys.
const SettingsID = "api_keys"

var (
	// ErrNoCredentials is returned when an update carries no key at all.
	ErrNoCredentials = errors.New("at least one API key must be provided")
	// ErrTokenRejected is returned when a new Telegram token fails verification.
	ErrTokenRejected = errors.New("telegram token rejected")
)

// TokenVerifier checks a candidate Telegram token before it is stored.
type TokenVerifier func(ctx context.Context, token string) error

// Option customizes a Store.
type Option func(*Store)

// WithTokenVerifier makes Update reject Telegram tokens that fail verify.
func WithTokenVerifier(verify TokenVerifier) Option {
	return func(s *Store) {
		s.verifyToken = verify
	}
}

type settingsCollection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

type settingsDoc struct {
	WeatherAPIKey    string `bson:"weather_api_key,omitempty"`
	TelegramBotToken string `bson:"telegram_bot_token,omitempty"`
}

// Update carries the keys to rotate. Empty fields are left unchanged.
type Update struct {
	WeatherAPIKey string
	TelegramToken string
}

// Snapshot is a consistent copy of the live credentials.
type Snapshot struct {
	WeatherAPIKey string
	TelegramToken string
}

// Store is the single owner of the live credentials. Reads always observe the
// latest successful Update.
type Store struct {
	mu            sync.RWMutex
	weatherAPIKey string
	telegramToken string

	settings    settingsCollection
	verifyToken TokenVerifier
	changes     chan string
	logger      *logrus.Entry
}

// NewStore seeds the store with the environment-provided values.
func NewStore(settings settingsCollection, weatherAPIKey, telegramToken string, logger *logrus.Entry, opts ...Option) *Store {
	if logger == nil {
		logger = logging.Logger()
	}
	s := &Store{
		weatherAPIKey: strings.TrimSpace(weatherAPIKey),
		telegramToken: strings.TrimSpace(telegramToken),
		settings:      settings,
		changes:       make(chan string, 1),
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load overlays previously persisted keys on top of the seeded values.
func (s *Store) Load(ctx context.Context) error {
	if s == nil || s.settings == nil {
		return errors.New("credential store is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	var doc settingsDoc
	err := s.settings.FindOne(ctx, bson.M{"_id": SettingsID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load persisted api keys: %w", err)
	}

	s.mu.Lock()
	if doc.WeatherAPIKey != "" {
		s.weatherAPIKey = doc.WeatherAPIKey
	}
	if doc.TelegramBotToken != "" {
		s.telegramToken = doc.TelegramBotToken
	}
	s.mu.Unlock()

	s.logger.WithFields(logging.Fields{
		"event":             "credentials_loaded",
		"weather_override":  doc.WeatherAPIKey != "",
		"telegram_override": doc.TelegramBotToken != "",
	}).Info("applied persisted api keys")

	return nil
}

// WeatherAPIKey returns the current weather key.
func (s *Store) WeatherAPIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weatherAPIKey
}

// TelegramToken returns the current bot token.
func (s *Store) TelegramToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.telegramToken
}

// Snapshot returns both keys under one lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{WeatherAPIKey: s.weatherAPIKey, TelegramToken: s.telegramToken}
}

// TelegramTokenChanges delivers the new token after a rotation. Only the most
// recent pending token is kept.
func (s *Store) TelegramTokenChanges() <-chan string {
	return s.changes
}

// Update persists the provided keys and then applies them to the live store.
// A changed Telegram token is verified first; a rejected token leaves both the
// settings document and the live values untouched.
func (s *Store) Update(ctx context.Context, update Update) error {
	if s == nil || s.settings == nil {
		return errors.New("credential store is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	update.WeatherAPIKey = strings.TrimSpace(update.WeatherAPIKey)
	update.TelegramToken = strings.TrimSpace(update.TelegramToken)
	if update.WeatherAPIKey == "" && update.TelegramToken == "" {
		return ErrNoCredentials
	}

	if update.TelegramToken != "" && update.TelegramToken != s.TelegramToken() {
		if err := s.verify(ctx, update.TelegramToken); err != nil {
			return err
		}
	}

	set := bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)}
	if update.WeatherAPIKey != "" {
		set["weather_api_key"] = update.WeatherAPIKey
	}
	if update.TelegramToken != "" {
		set["telegram_bot_token"] = update.TelegramToken
	}

	// Serialize writers so the persisted and live values cannot diverge.
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.settings.UpdateOne(ctx,
		bson.M{"_id": SettingsID},
		bson.M{"$set": set},
		options.Update().SetUpsert(true),
	); err != nil {
		return fmt.Errorf("persist api keys: %w", err)
	}

	tokenChanged := update.TelegramToken != "" && update.TelegramToken != s.telegramToken
	if update.WeatherAPIKey != "" {
		s.weatherAPIKey = update.WeatherAPIKey
	}
	if update.TelegramToken != "" {
		s.telegramToken = update.TelegramToken
	}

	if tokenChanged {
		s.notify(update.TelegramToken)
	}

	s.logger.WithFields(logging.Fields{
		"event":            "credentials_updated",
		"weather_updated":  update.WeatherAPIKey != "",
		"telegram_updated": update.TelegramToken != "",
	}).Info("api keys updated")

	return nil
}

func (s *Store) verify(ctx context.Context, token string) error {
	if s.verifyToken == nil {
		return nil
	}
	if err := s.verifyToken(ctx, token); err != nil {
		s.logger.WithFields(logging.Fields{
			"event": "credentials_token_rejected",
			"error": err,
		}).Warn("telegram token failed verification")
		return fmt.Errorf("%w: %w", ErrTokenRejected, err)
	}
	return nil
}

func (s *Store) notify(token string) {
	select {
	case s.changes <- token:
	default:
		select {
		case <-s.changes:
		default:
		}
		select {
		case s.changes <- token:
		default:
		}
	}
}
