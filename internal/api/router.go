// Package api serves the operator dashboard: chat user moderation, credential
// rotation, operator sessions and the live update channel.
package api

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tg_weather_bot/internal/credentials"
	"tg_weather_bot/internal/dashboard"
	"tg_weather_bot/internal/domain"
	"tg_weather_bot/internal/logging"
	"tg_weather_bot/internal/store"
)

// MessageGreeting is served on GET /.
const MessageGreeting = "Hello, from Bot Server!!"

type chatUserAdmin interface {
	List(ctx context.Context) ([]domain.ChatUser, error)
	SetBlocked(ctx context.Context, chatID string, blocked bool) (domain.ChatUser, error)
	Delete(ctx context.Context, chatID string) (domain.ChatUser, error)
}

type statsReader interface {
	UserStats(ctx context.Context) (store.UserStats, error)
}

type credentialStore interface {
	Snapshot() credentials.Snapshot
	Update(ctx context.Context, update credentials.Update) error
}

type operatorAuth interface {
	sessionValidator
	Signup(ctx context.Context, email, password string) (domain.Operator, error)
	Login(ctx context.Context, email, password string) (string, error)
	Operator(ctx context.Context, operatorID string) (domain.Operator, error)
	UpdateOperatorKey(ctx context.Context, operatorID, keyType, apiKey string) error
}

type publisher interface {
	Publish(event dashboard.Event)
}

// Dependencies wires the router to its collaborators. Health, Metrics and
// Live are optional.
type Dependencies struct {
	Users         chatUserAdmin
	Stats         statsReader
	Credentials   credentialStore
	Auth          operatorAuth
	Events        publisher
	Health        http.Handler
	Metrics       http.Handler
	Live          http.Handler
	AllowedOrigin string
}

type handlers struct {
	deps   Dependencies
	logger *logrus.Entry
}

// NewRouter builds the gin engine with middleware and all routes registered.
func NewRouter(deps Dependencies, logger *logrus.Entry) *gin.Engine {
	if logger == nil {
		logger = logging.Logger()
	}

	router := gin.New()
	router.Use(requestID(), requestLogger(logger), recovery(logger), cors.New(corsConfig(deps.AllowedOrigin)))

	h := &handlers{deps: deps, logger: logger}

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, MessageGreeting)
	})
	if deps.Health != nil {
		router.GET("/healthz", gin.WrapH(deps.Health))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}
	if deps.Live != nil {
		router.GET("/ws", gin.WrapH(deps.Live))
	}

	session := requireSession(deps.Auth)

	admin := router.Group("/api", session)
	{
		admin.GET("/users", h.listUsers)
		admin.GET("/users/stats", h.userStats)
		admin.POST("/block", h.blockUser)
		admin.POST("/unblock", h.unblockUser)
		admin.DELETE("/delete", h.deleteUser)
		admin.GET("/apikeys", h.getAPIKeys)
		admin.POST("/apikeys", h.updateAPIKeys)
	}

	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/signup", h.signup)
		authGroup.POST("/login", h.login)
		authGroup.GET("/dashboard", session, h.dashboardCheck)
		authGroup.POST("/dashboard", session, h.dashboardData)
		authGroup.POST("/update-api-keys", session, h.updateOperatorKey)
	}

	return router
}

func corsConfig(origin string) cors.Config {
	cfg := cors.DefaultConfig()
	if origin == "" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = []string{origin}
	}
	cfg.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Content-Type", "Authorization", "Accept", headerRequestID}
	return cfg
}

func (h *handlers) publish(name, chatID string, extra map[string]any) {
	if h.deps.Events == nil {
		return
	}
	h.deps.Events.Publish(dashboard.Event{Name: name, ChatID: chatID, Extra: extra})
}

func (h *handlers) failure(c *gin.Context, event string, err error, body gin.H) {
	logging.FromContext(c.Request.Context(), h.logger).WithFields(logging.Fields{
		"event": event,
		"error": err,
	}).Error("request handler failed")
	c.JSON(http.StatusInternalServerError, body)
}
