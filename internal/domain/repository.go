package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type chatUserCollection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult
	FindOneAndDelete(ctx context.Context, filter interface{}, opts ...*options.FindOneAndDeleteOptions) *mongo.SingleResult
}

// ChatUserRepository reads and mutates chat users in MongoDB. Every mutation
// targets a single document keyed by chat_id.
type ChatUserRepository struct {
	collection chatUserCollection
}

// NewChatUserRepository constructs a ChatUserRepository.
func NewChatUserRepository(collection chatUserCollection) *ChatUserRepository {
	return &ChatUserRepository{collection: collection}
}

// GetByChatID fetches a chat user. A missing record yields ErrChatUserNotFound.
func (r *ChatUserRepository) GetByChatID(ctx context.Context, chatID string) (ChatUser, error) {
	if err := r.check(ctx, chatID); err != nil {
		return ChatUser{}, err
	}

	var user ChatUser
	if err := decodeSingle(r.collection.FindOne(ctx, bson.M{"chat_id": chatID}), &user, ErrChatUserNotFound); err != nil {
		return ChatUser{}, fmt.Errorf("find chat user: %w", err)
	}

	return user, nil
}

// List returns every chat user ordered by creation time.
func (r *ChatUserRepository) List(ctx context.Context) ([]ChatUser, error) {
	if r == nil || r.collection == nil {
		return nil, errors.New("chat user repository is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	cursor, err := r.collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list chat users: %w", err)
	}
	defer cursor.Close(ctx)

	users := make([]ChatUser, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode chat users: %w", err)
	}

	return users, nil
}

// SetSubscribed flips the subscription flag and returns the updated record.
func (r *ChatUserRepository) SetSubscribed(ctx context.Context, chatID string, subscribed bool) (ChatUser, error) {
	return r.setFlag(ctx, chatID, "subscribed", subscribed)
}

// SetBlocked flips the moderation flag and returns the updated record.
func (r *ChatUserRepository) SetBlocked(ctx context.Context, chatID string, blocked bool) (ChatUser, error) {
	return r.setFlag(ctx, chatID, "blocked", blocked)
}

// Delete removes the chat user and returns the deleted record.
func (r *ChatUserRepository) Delete(ctx context.Context, chatID string) (ChatUser, error) {
	if err := r.check(ctx, chatID); err != nil {
		return ChatUser{}, err
	}

	var user ChatUser
	if err := decodeSingle(r.collection.FindOneAndDelete(ctx, bson.M{"chat_id": chatID}), &user, ErrChatUserNotFound); err != nil {
		return ChatUser{}, fmt.Errorf("delete chat user: %w", err)
	}

	return user, nil
}

func (r *ChatUserRepository) setFlag(ctx context.Context, chatID, field string, value bool) (ChatUser, error) {
	if err := r.check(ctx, chatID); err != nil {
		return ChatUser{}, err
	}

	update := bson.M{"$set": bson.M{
		field:        value,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}

	result := r.collection.FindOneAndUpdate(ctx,
		bson.M{"chat_id": chatID},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var user ChatUser
	if err := decodeSingle(result, &user, ErrChatUserNotFound); err != nil {
		return ChatUser{}, fmt.Errorf("update chat user %s: %w", field, err)
	}

	return user, nil
}

func (r *ChatUserRepository) check(ctx context.Context, chatID string) error {
	if r == nil || r.collection == nil {
		return errors.New("chat user repository is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if strings.TrimSpace(chatID) == "" {
		return errors.New("chat_id is required")
	}
	return nil
}

type operatorCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// OperatorRepository persists and retrieves dashboard operators in MongoDB.
type OperatorRepository struct {
	collection operatorCollection
}

// NewOperatorRepository constructs an OperatorRepository.
func NewOperatorRepository(collection operatorCollection) *OperatorRepository {
	return &OperatorRepository{collection: collection}
}

// Create inserts an operator with populated timestamps. A duplicate email
// yields ErrOperatorExists.
func (r *OperatorRepository) Create(ctx context.Context, operator Operator) (Operator, error) {
	if r == nil || r.collection == nil {
		return Operator{}, errors.New("operator repository is not initialized")
	}
	if ctx == nil {
		return Operator{}, errors.New("context is required")
	}
	if operator.Email == "" {
		return Operator{}, errors.New("email is required")
	}
	if operator.PasswordHash == "" {
		return Operator{}, errors.New("password hash is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	if operator.ID.IsZero() {
		operator.ID = primitive.NewObjectID()
	}
	if operator.CreatedAt.IsZero() {
		operator.CreatedAt = now
	}
	operator.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, operator); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Operator{}, fmt.Errorf("insert operator: %w", ErrOperatorExists)
		}
		return Operator{}, fmt.Errorf("insert operator: %w", err)
	}

	return operator, nil
}

// GetByEmail fetches an operator by login email.
func (r *OperatorRepository) GetByEmail(ctx context.Context, email string) (Operator, error) {
	if r == nil || r.collection == nil {
		return Operator{}, errors.New("operator repository is not initialized")
	}
	if ctx == nil {
		return Operator{}, errors.New("context is required")
	}
	if email == "" {
		return Operator{}, errors.New("email is required")
	}

	var operator Operator
	if err := decodeSingle(r.collection.FindOne(ctx, bson.M{"email": email}), &operator, ErrOperatorNotFound); err != nil {
		return Operator{}, fmt.Errorf("find operator: %w", err)
	}

	return operator, nil
}

// GetByID fetches an operator by its ObjectID.
func (r *OperatorRepository) GetByID(ctx context.Context, id primitive.ObjectID) (Operator, error) {
	if r == nil || r.collection == nil {
		return Operator{}, errors.New("operator repository is not initialized")
	}
	if ctx == nil {
		return Operator{}, errors.New("context is required")
	}
	if id.IsZero() {
		return Operator{}, errors.New("operator id is required")
	}

	var operator Operator
	if err := decodeSingle(r.collection.FindOne(ctx, bson.M{"_id": id}), &operator, ErrOperatorNotFound); err != nil {
		return Operator{}, fmt.Errorf("find operator: %w", err)
	}

	return operator, nil
}

// SetCredential stores a per-operator API credential under the given field.
func (r *OperatorRepository) SetCredential(ctx context.Context, id primitive.ObjectID, field, value string) error {
	if r == nil || r.collection == nil {
		return errors.New("operator repository is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if field != OperatorFieldOpenWeatherKey && field != OperatorFieldTelegramToken {
		return fmt.Errorf("unsupported operator field %q", field)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			field:        value,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		}},
	)
	if err != nil {
		return fmt.Errorf("update operator credential: %w", err)
	}
	if result == nil || result.MatchedCount == 0 {
		return fmt.Errorf("update operator credential: %w", ErrOperatorNotFound)
	}

	return nil
}

func decodeSingle(result *mongo.SingleResult, out interface{}, notFound error) error {
	if result == nil {
		return errors.New("query returned no result")
	}
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return notFound
		}
		return err
	}
	if err := result.Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
