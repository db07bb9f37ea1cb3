package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tg_weather_bot/internal/auth"
	"tg_weather_bot/internal/logging"
	"tg_weather_bot/internal/metrics"
)

const (
	headerRequestID = "X-Request-ID"

	ctxRequestID  = "request_id"
	ctxOperatorID = "operator_id"
)

// Bearer failure replies.
const (
	MessageTokenMissing = "Access denied: Token is missing"
	MessageTokenExpired = "Token expired, please log in again"
	MessageTokenInvalid = "Access denied: Invalid token"
)

type sessionValidator interface {
	ValidateToken(token string) (string, error)
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerRequestID))
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// requestLogger stores a request-scoped entry in the request context and logs
// the outcome once the handler chain returns.
func requestLogger(logger *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		scoped := logger.WithField("request_id", c.GetString(ctxRequestID))
		c.Request = c.Request.WithContext(logging.NewContext(c.Request.Context(), scoped))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.IncHTTP(route, status)

		entry := scoped.WithFields(logging.Fields{
			"event":      "http_request",
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
		if operatorID := c.GetString(ctxOperatorID); operatorID != "" {
			entry = entry.WithField("operator_id", operatorID)
		}

		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request processed")
		}
	}
}

func recovery(logger *logrus.Entry) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.FromContext(c.Request.Context(), logger).WithFields(logging.Fields{
			"event":  "http_panic",
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"panic":  recovered,
		}).Error("panic recovered")

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Server error. Please try again later."})
	})
}

// requireSession admits requests carrying a valid operator bearer token.
func requireSession(sessions sessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": MessageTokenMissing})
			return
		}

		operatorID, err := sessions.ValidateToken(token)
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": MessageTokenExpired})
			return
		case err != nil:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": MessageTokenInvalid})
			return
		}

		c.Set(ctxOperatorID, operatorID)
		c.Next()
	}
}
