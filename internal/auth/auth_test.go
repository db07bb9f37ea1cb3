package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tg_weather_bot/internal/domain"
)

func newTestService(t *testing.T) (*Service, *fakeOperators) {
	t.Helper()
	hookLogger, _ := logtest.NewNullLogger()
	store := newFakeOperators()
	return NewService(store, "test-secret", time.Hour, logrus.NewEntry(hookLogger)), store
}

func TestSignupHashesPasswordAndNormalizesEmail(t *testing.T) {
	svc, store := newTestService(t)

	operator, err := svc.Signup(context.Background(), " Ops@Example.com ", "hunter2")
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}

	if operator.Email != "ops@example.com" {
		t.Fatalf("expected normalized email, got %s", operator.Email)
	}
	stored := store.byEmail["ops@example.com"]
	if stored.PasswordHash == "" || stored.PasswordHash == "hunter2" {
		t.Fatalf("expected hashed password, got %q", stored.PasswordHash)
	}
}

func TestSignupValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "", "pw"); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	if _, err := svc.Signup(ctx, "a@b.c", ""); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	if _, err := svc.Signup(ctx, "not-an-email", "pw"); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}

func TestSignupRejectsDuplicate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "dup@example.com", "pw"); err != nil {
		t.Fatalf("first Signup returned error: %v", err)
	}
	if _, err := svc.Signup(ctx, "DUP@example.com", "pw"); !errors.Is(err, domain.ErrOperatorExists) {
		t.Fatalf("expected ErrOperatorExists, got %v", err)
	}
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	operator, err := svc.Signup(ctx, "ops@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}

	token, err := svc.Login(ctx, "ops@example.com", "hunter2")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	id, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken returned error: %v", err)
	}
	if id != operator.ID.Hex() {
		t.Fatalf("expected operator id %s, got %s", operator.ID.Hex(), id)
	}

	loaded, err := svc.Operator(ctx, id)
	if err != nil {
		t.Fatalf("Operator returned error: %v", err)
	}
	if loaded.Email != store.byEmail["ops@example.com"].Email {
		t.Fatalf("unexpected operator %+v", loaded)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "ops@example.com", "hunter2"); err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}

	_, unknownErr := svc.Login(ctx, "nobody@example.com", "hunter2")
	_, wrongErr := svc.Login(ctx, "ops@example.com", "wrong")

	if !errors.Is(unknownErr, ErrInvalidCredentials) || !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v and %v", unknownErr, wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatalf("expected identical errors, got %q and %q", unknownErr, wrongErr)
	}
}

func TestValidateTokenClassifiesFailures(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.ValidateToken("  "); !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing, got %v", err)
	}

	if _, err := svc.ValidateToken("garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for garbage, got %v", err)
	}

	other := NewService(newFakeOperators(), "other-secret", time.Hour, nil)
	foreign, err := other.IssueToken(primitive.NewObjectID().Hex())
	if err != nil {
		t.Fatalf("IssueToken returned error: %v", err)
	}
	if _, err := svc.ValidateToken(foreign); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for foreign signature, got %v", err)
	}

	past := time.Now().Add(-2 * time.Hour)
	svc.now = func() time.Time { return past }
	expired, err := svc.IssueToken(primitive.NewObjectID().Hex())
	if err != nil {
		t.Fatalf("IssueToken returned error: %v", err)
	}
	svc.now = time.Now
	if _, err := svc.ValidateToken(expired); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateTokenRejectsOtherAlgorithms(t *testing.T) {
	svc, _ := newTestService(t)

	claims := Claims{
		ID: primitive.NewObjectID().Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}

	if _, err := svc.ValidateToken(unsigned); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for alg=none, got %v", err)
	}
}

func TestUpdateOperatorKey(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	operator, err := svc.Signup(ctx, "keys@example.com", "pw")
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	id := operator.ID.Hex()

	if err := svc.UpdateOperatorKey(ctx, id, "", "k"); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	if err := svc.UpdateOperatorKey(ctx, id, "slack", "k"); !errors.Is(err, ErrInvalidKeyType) {
		t.Fatalf("expected ErrInvalidKeyType, got %v", err)
	}

	if err := svc.UpdateOperatorKey(ctx, id, KeyTypeOpenWeather, "ow"); err != nil {
		t.Fatalf("UpdateOperatorKey returned error: %v", err)
	}
	if err := svc.UpdateOperatorKey(ctx, id, KeyTypeTelegram, "tg"); err != nil {
		t.Fatalf("UpdateOperatorKey returned error: %v", err)
	}

	stored := store.byEmail["keys@example.com"]
	if stored.OpenWeatherAPIKey != "ow" || stored.TelegramBotToken != "tg" {
		t.Fatalf("expected per-operator keys to be stored, got %+v", stored)
	}

	if err := svc.UpdateOperatorKey(ctx, primitive.NewObjectID().Hex(), KeyTypeTelegram, "tg"); !errors.Is(err, domain.ErrOperatorNotFound) {
		t.Fatalf("expected ErrOperatorNotFound for unknown operator, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"abc":          "",
		"Bearer ":      "",
		"":             "",
	}
	for header, want := range tests {
		if got := BearerToken(header); got != want {
			t.Fatalf("BearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

type fakeOperators struct {
	byEmail map[string]domain.Operator
}

func newFakeOperators() *fakeOperators {
	return &fakeOperators{byEmail: make(map[string]domain.Operator)}
}

func (f *fakeOperators) Create(_ context.Context, operator domain.Operator) (domain.Operator, error) {
	if _, ok := f.byEmail[operator.Email]; ok {
		return domain.Operator{}, domain.ErrOperatorExists
	}
	operator.ID = primitive.NewObjectID()
	operator.CreatedAt = time.Now().UTC()
	operator.UpdatedAt = operator.CreatedAt
	f.byEmail[operator.Email] = operator
	return operator, nil
}

func (f *fakeOperators) GetByEmail(_ context.Context, email string) (domain.Operator, error) {
	operator, ok := f.byEmail[email]
	if !ok {
		return domain.Operator{}, domain.ErrOperatorNotFound
	}
	return operator, nil
}

func (f *fakeOperators) GetByID(_ context.Context, id primitive.ObjectID) (domain.Operator, error) {
	for _, operator := range f.byEmail {
		if operator.ID == id {
			return operator, nil
		}
	}
	return domain.Operator{}, domain.ErrOperatorNotFound
}

func (f *fakeOperators) SetCredential(_ context.Context, id primitive.ObjectID, field, value string) error {
	for email, operator := range f.byEmail {
		if operator.ID != id {
			continue
		}
		switch field {
		case domain.OperatorFieldOpenWeatherKey:
			operator.OpenWeatherAPIKey = value
		case domain.OperatorFieldTelegramToken:
			operator.TelegramBotToken = value
		}
		f.byEmail[email] = operator
		return nil
	}
	return domain.ErrOperatorNotFound
}
