// Package operator provides startup helpers for ensuring a configured dashboard
// operator account exists.
package operator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tg_weather_bot/internal/logging"
)

type operatorCollection interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// Registrar bootstraps the configured operator record.
type Registrar struct {
	operators operatorCollection
	logger    *logrus.Entry
}

// NewRegistrar constructs a Registrar for the provided operators collection.
func NewRegistrar(operators operatorCollection, logger *logrus.Entry) *Registrar {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Registrar{
		operators: operators,
		logger:    logger,
	}
}

// EnsureOperator inserts the operator when no account with the email exists.
// An existing account, including its password, is left untouched.
func (r *Registrar) EnsureOperator(ctx context.Context, email, passwordHash string) (bool, error) {
	if r == nil || r.operators == nil {
		return false, errors.New("operator registrar is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false, errors.New("operator email is required")
	}
	if passwordHash == "" {
		return false, errors.New("operator password hash is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.operators.UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{
			"$setOnInsert": bson.M{
				"_id":        primitive.NewObjectID(),
				"email":      email,
				"password":   passwordHash,
				"created_at": now,
				"updated_at": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("ensure operator: %w", err)
	}

	created := result != nil && result.UpsertedCount > 0

	r.logger.WithFields(logging.Fields{
		"event":   "operator_bootstrap",
		"email":   email,
		"created": created,
	}).Info("ensured dashboard operator")

	return created, nil
}
