// Package config defines the configuration contract and handles loading and validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyTelegramToken  = "BOT_TOKEN"
	KeyWeatherAPIKey  = "WEATHER_API_KEY"
	KeyWeatherAPIURL  = "WEATHER_API_URL"
	KeyWeatherTimeout = "WEATHER_TIMEOUT"
	KeyJWTSecret      = "JWT_SECRET"
	KeySessionTTL     = "SESSION_TTL"
	KeyBaseURL        = "BASE_URL"
	KeyMongoURI       = "MONGO_URI"
	KeyMongoDB        = "MONGO_DB"
	KeyAppEnv         = "APP_ENV"
	KeyLogLevel       = "LOG_LEVEL"
	KeyHTTPPort       = "PORT"
	KeyAdminEmail     = "ADMIN_EMAIL"
	KeyAdminPassword  = "ADMIN_PASSWORD"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Defaults for optional settings.
	DefaultAppEnv         = EnvProduction
	DefaultLogLevel       = "info"
	DefaultHTTPPort       = 3001
	DefaultWeatherAPIURL  = "https://api.openweathermap.org"
	DefaultWeatherTimeout = 10 * time.Second
	DefaultSessionTTL     = time.Hour

	// Recommended database names by environment.
	DefaultMongoDBProd = "weather_bot"
	DefaultMongoDBDev  = "weather_bot_dev"
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the service.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyTelegramToken,
		Example:     "123:ABC",
		Required:    true,
		Description: "Telegram Bot Token issued by BotFather.",
		Notes:       "Overridden by a token rotated through POST /api/apikeys.",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Required:    true,
		Description: "MongoDB connection string.",
	},
	{
		Key:         KeyMongoDB,
		Example:     DefaultMongoDBProd + " / " + DefaultMongoDBDev,
		Required:    true,
		Description: "MongoDB database name.",
		Notes:       "Recommended: production=" + DefaultMongoDBProd + ", development=" + DefaultMongoDBDev + ".",
	},
	{
		Key:         KeyJWTSecret,
		Example:     "change-me",
		Required:    true,
		Description: "HMAC secret used to sign operator session tokens.",
	},
	{
		Key:         KeyWeatherAPIKey,
		Example:     "0123456789abcdef",
		Description: "OpenWeather API key.",
		Notes:       "May be left empty and set later through POST /api/apikeys.",
	},
	{
		Key:         KeyWeatherAPIURL,
		Example:     DefaultWeatherAPIURL,
		Default:     DefaultWeatherAPIURL,
		Description: "Base URL of the OpenWeather API.",
	},
	{
		Key:         KeyWeatherTimeout,
		Example:     DefaultWeatherTimeout.String(),
		Default:     DefaultWeatherTimeout.String(),
		Description: "Timeout for a single weather provider call.",
	},
	{
		Key:         KeySessionTTL,
		Example:     DefaultSessionTTL.String(),
		Default:     DefaultSessionTTL.String(),
		Description: "Lifetime of operator session tokens.",
	},
	{
		Key:         KeyBaseURL,
		Example:     "http://localhost:3000",
		Description: "Dashboard origin allowed by CORS and the live channel.",
		Notes:       "Empty allows any origin.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP port for the admin API, live channel, health and metrics.",
	},
	{
		Key:         KeyAdminEmail,
		Example:     "admin@example.com",
		Description: "Operator account created at startup when missing.",
		Notes:       "Requires " + KeyAdminPassword + ".",
	},
	{
		Key:         KeyAdminPassword,
		Example:     "s3cret",
		Description: "Password for the bootstrap operator account.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TelegramToken  string        `env:"BOT_TOKEN"`
	WeatherAPIKey  string        `env:"WEATHER_API_KEY"`
	WeatherAPIURL  string        `env:"WEATHER_API_URL" envDefault:"https://api.openweathermap.org"`
	WeatherTimeout time.Duration `env:"WEATHER_TIMEOUT" envDefault:"10s"`
	JWTSecret      string        `env:"JWT_SECRET"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	BaseURL        string        `env:"BASE_URL"`
	MongoURI       string        `env:"MONGO_URI"`
	MongoDB        string        `env:"MONGO_DB"`
	AppEnv         string        `env:"APP_ENV"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort       int           `env:"PORT" envDefault:"3001"`
	AdminEmail     string        `env:"ADMIN_EMAIL"`
	AdminPassword  string        `env:"ADMIN_PASSWORD"`
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	cfg.AppEnv = firstNonEmpty(normalizeEnv(cfg.AppEnv), appEnv)
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.WeatherAPIKey = strings.TrimSpace(cfg.WeatherAPIKey)
	cfg.WeatherAPIURL = strings.TrimRight(firstNonEmpty(cfg.WeatherAPIURL, DefaultWeatherAPIURL), "/")
	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.MongoURI = strings.TrimSpace(cfg.MongoURI)
	cfg.MongoDB = strings.TrimSpace(cfg.MongoDB)
	cfg.LogLevel = firstNonEmpty(cfg.LogLevel, DefaultLogLevel)
	cfg.AdminEmail = strings.TrimSpace(cfg.AdminEmail)

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	if cfg.TelegramToken == "" {
		missing = append(missing, KeyTelegramToken)
	}
	if cfg.MongoURI == "" {
		missing = append(missing, KeyMongoURI)
	}
	if cfg.MongoDB == "" {
		missing = append(missing, KeyMongoDB)
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, KeyJWTSecret)
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	if !strings.HasPrefix(cfg.MongoURI, "mongodb://") && !strings.HasPrefix(cfg.MongoURI, "mongodb+srv://") {
		return Config{}, fmt.Errorf("invalid %s: must start with mongodb:// or mongodb+srv://", KeyMongoURI)
	}

	if cfg.HTTPPort <= 0 {
		return Config{}, fmt.Errorf("%s must be greater than 0", KeyHTTPPort)
	}
	if cfg.WeatherTimeout <= 0 {
		return Config{}, fmt.Errorf("%s must be greater than 0", KeyWeatherTimeout)
	}
	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("%s must be greater than 0", KeySessionTTL)
	}

	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		return Config{}, fmt.Errorf("%s and %s must be set together", KeyAdminEmail, KeyAdminPassword)
	}

	return cfg, nil
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// FormatRedacted renders the configuration as key/value lines with secrets masked.
func FormatRedacted(cfg Config) string {
	lines := []string{
		"app_env: " + cfg.AppEnv,
		"log_level: " + cfg.LogLevel,
		"http_port: " + strconv.Itoa(cfg.HTTPPort),
		"base_url: " + cfg.BaseURL,
		"mongo_uri: " + redactURI(cfg.MongoURI),
		"mongo_db: " + cfg.MongoDB,
		"telegram_token: " + maskSecret(cfg.TelegramToken),
		"weather_api_key: " + maskSecret(cfg.WeatherAPIKey),
		"weather_api_url: " + cfg.WeatherAPIURL,
		"weather_timeout: " + cfg.WeatherTimeout.String(),
		"jwt_secret: " + maskSecret(cfg.JWTSecret),
		"session_ttl: " + cfg.SessionTTL.String(),
		"admin_email: " + cfg.AdminEmail,
	}

	return strings.Join(lines, "\n")
}

func maskSecret(value string) string {
	if value == "" {
		return "<unset>"
	}
	if len(value) <= 4 {
		return "...redacted"
	}
	return value[:4] + "...redacted"
}

func redactURI(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "<invalid>"
	}
	parsed.User = nil
	return parsed.String()
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
