// Package auth manages dashboard operator accounts and their session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"tg_weather_bot/internal/domain"
	"tg_weather_bot/internal/logging"
)

const passwordCost = 10

// Key types accepted by UpdateOperatorKey.
const (
	KeyTypeOpenWeather = "openweather"
	KeyTypeTelegram    = "telegram"
)

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenMissing       = errors.New("token is missing")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrMissingAPIKey      = errors.New("api key and key type are required")
	ErrInvalidKeyType     = errors.New("invalid key type")
)

type operatorStore interface {
	Create(ctx context.Context, operator domain.Operator) (domain.Operator, error)
	GetByEmail(ctx context.Context, email string) (domain.Operator, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (domain.Operator, error)
	SetCredential(ctx context.Context, id primitive.ObjectID, field, value string) error
}

// Claims is the session token payload.
type Claims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// Service signs up, logs in and validates dashboard operators.
type Service struct {
	operators operatorStore
	secret    []byte
	ttl       time.Duration
	validate  *validator.Validate
	now       func() time.Time
	logger    *logrus.Entry
}

// NewService constructs a Service signing HS256 tokens with secret.
func NewService(operators operatorStore, secret string, ttl time.Duration, logger *logrus.Entry) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = logging.Logger()
	}
	return &Service{
		operators: operators,
		secret:    []byte(secret),
		ttl:       ttl,
		validate:  validator.New(),
		now:       time.Now,
		logger:    logger,
	}
}

// HashPassword returns the bcrypt hash used for operator passwords.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// NormalizeEmail trims and lower-cases an email for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup creates an operator account.
func (s *Service) Signup(ctx context.Context, email, password string) (domain.Operator, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return domain.Operator{}, ErrMissingCredentials
	}
	if err := s.validate.Var(email, "email"); err != nil {
		return domain.Operator{}, ErrInvalidEmail
	}

	_, err := s.operators.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return domain.Operator{}, domain.ErrOperatorExists
	case !errors.Is(err, domain.ErrOperatorNotFound):
		return domain.Operator{}, fmt.Errorf("signup lookup: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return domain.Operator{}, err
	}

	operator, err := s.operators.Create(ctx, domain.Operator{Email: email, PasswordHash: hash})
	if err != nil {
		return domain.Operator{}, err
	}

	s.logger.WithFields(logging.Fields{
		"event":       "operator_signup",
		"operator_id": operator.ID.Hex(),
	}).Info("operator account created")

	return operator, nil
}

// Login verifies the credentials and issues a session token. Unknown emails
// and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	operator, err := s.operators.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrOperatorNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("login lookup: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(password)); err != nil {
		s.logger.WithFields(logging.Fields{
			"event":       "operator_login_failed",
			"operator_id": operator.ID.Hex(),
		}).Warn("password mismatch")
		return "", ErrInvalidCredentials
	}

	return s.IssueToken(operator.ID.Hex())
}

// IssueToken signs a session token for the operator id.
func (s *Service) IssueToken(operatorID string) (string, error) {
	now := s.now()
	claims := Claims{
		ID: operatorID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks signature and expiry and returns the operator id.
func (s *Service) ValidateToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrTokenMissing
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return "", ErrTokenExpired
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.ID == "" {
		return "", ErrTokenInvalid
	}

	return claims.ID, nil
}

// Operator loads the operator referenced by a session.
func (s *Service) Operator(ctx context.Context, operatorID string) (domain.Operator, error) {
	id, err := primitive.ObjectIDFromHex(operatorID)
	if err != nil {
		return domain.Operator{}, fmt.Errorf("operator id %q: %w", operatorID, domain.ErrOperatorNotFound)
	}
	return s.operators.GetByID(ctx, id)
}

// UpdateOperatorKey stores a per-operator credential. It does not touch the
// live bot credentials.
func (s *Service) UpdateOperatorKey(ctx context.Context, operatorID, keyType, apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" || keyType == "" {
		return ErrMissingAPIKey
	}

	var field string
	switch keyType {
	case KeyTypeOpenWeather:
		field = domain.OperatorFieldOpenWeatherKey
	case KeyTypeTelegram:
		field = domain.OperatorFieldTelegramToken
	default:
		return ErrInvalidKeyType
	}

	operator, err := s.Operator(ctx, operatorID)
	if err != nil {
		return err
	}

	if err := s.operators.SetCredential(ctx, operator.ID, field, apiKey); err != nil {
		return err
	}

	s.logger.WithFields(logging.Fields{
		"event":       "operator_key_updated",
		"operator_id": operatorID,
		"key_type":    keyType,
	}).Info("operator api key updated")

	return nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
