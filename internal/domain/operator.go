package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Operator is a dashboard login, kept apart from chat users.
type Operator struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email             string             `bson:"email" json:"email"`
	PasswordHash      string             `bson:"password" json:"-"`
	OpenWeatherAPIKey string             `bson:"open_weather_api_key,omitempty" json:"openWeatherApiKey,omitempty"`
	TelegramBotToken  string             `bson:"telegram_bot_token,omitempty" json:"telegramBotToken,omitempty"`
	CreatedAt         time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updatedAt"`
}

// Operator credential fields that can be updated per account.
const (
	OperatorFieldOpenWeatherKey = "open_weather_api_key"
	OperatorFieldTelegramToken  = "telegram_bot_token"
)
