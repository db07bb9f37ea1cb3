// Package subscription records /subscribe requests as chat user upserts.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tg_weather_bot/internal/domain"
	"tg_weather_bot/internal/logging"
)

type userCollection interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// Registrar creates or reactivates a chat user in a single upsert so
// concurrent subscribes for the same chat converge on one record.
type Registrar struct {
	users  userCollection
	logger *logrus.Entry
}

// NewRegistrar constructs a Registrar for the provided users collection.
func NewRegistrar(users userCollection, logger *logrus.Entry) *Registrar {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Registrar{
		users:  users,
		logger: logger,
	}
}

// Subscribe sets subscribed=true and blocked=false for the chat, inserting a
// record with profile defaults when none exists. It reports whether the record
// was created.
func (r *Registrar) Subscribe(ctx context.Context, profile domain.ChatProfile) (bool, error) {
	if r == nil || r.users == nil {
		return false, errors.New("subscription registrar is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}

	profile = profile.WithDefaults()
	if profile.ChatID == "" {
		return false, errors.New("chat id is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{
		"$set": bson.M{
			"subscribed": true,
			"blocked":    false,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"chat_id":    profile.ChatID,
			"username":   profile.Username,
			"first_name": profile.FirstName,
			"language":   profile.Language,
			"created_at": now,
		},
	}

	result, err := r.users.UpdateOne(ctx,
		bson.M{"chat_id": profile.ChatID},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("subscribe chat user: %w", err)
	}

	created := result != nil && result.UpsertedCount > 0
	if created {
		r.logger.WithFields(logging.Fields{
			"event":   "chat_user_subscribed",
			"chat_id": profile.ChatID,
		}).Info("registered new subscriber")
		return true, nil
	}

	r.logger.WithFields(logging.Fields{
		"event":   "chat_user_resubscribed",
		"chat_id": profile.ChatID,
	}).Debug("reactivated existing subscriber")

	return false, nil
}
