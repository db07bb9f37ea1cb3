// Package domain defines the persisted records and their repositories.
package domain

import (
	"strings"
	"time"
)

// Profile defaults applied when Telegram omits a field.
const (
	DefaultUsername  = "Unknown"
	DefaultFirstName = "Unknown"
	DefaultLanguage  = "en"
)

// ChatUser is the subscription record kept for a single Telegram chat.
type ChatUser struct {
	ChatID     string    `bson:"chat_id" json:"chatId"`
	Username   string    `bson:"username" json:"username"`
	FirstName  string    `bson:"first_name" json:"firstName"`
	Language   string    `bson:"language" json:"language"`
	Subscribed bool      `bson:"subscribed" json:"subscribed"`
	Blocked    bool      `bson:"blocked" json:"blocked"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updatedAt"`
}

// ChatProfile carries the sender details captured on /subscribe.
type ChatProfile struct {
	ChatID    string
	Username  string
	FirstName string
	Language  string
}

// WithDefaults returns a copy with empty display fields replaced by defaults.
func (p ChatProfile) WithDefaults() ChatProfile {
	p.ChatID = strings.TrimSpace(p.ChatID)
	if strings.TrimSpace(p.Username) == "" {
		p.Username = DefaultUsername
	}
	if strings.TrimSpace(p.FirstName) == "" {
		p.FirstName = DefaultFirstName
	}
	if strings.TrimSpace(p.Language) == "" {
		p.Language = DefaultLanguage
	}
	return p
}
