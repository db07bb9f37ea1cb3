package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"tg_weather_bot/internal/auth"
	"tg_weather_bot/internal/domain"
	"tg_weather_bot/internal/logging"
)

// MessageInvalidBody answers a body that is not valid JSON.
const MessageInvalidBody = "Invalid request body"

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type operatorKeyRequest struct {
	APIKey  string `json:"apiKey"`
	KeyType string `json:"keyType"`
}

func (h *handlers) signup(c *gin.Context) {
	var req credentialsRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	_, err := h.deps.Auth.Signup(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email and password are required"})
	case errors.Is(err, auth.ErrInvalidEmail):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid email address"})
	case errors.Is(err, domain.ErrOperatorExists):
		c.JSON(http.StatusBadRequest, gin.H{"message": "User already exists"})
	case err != nil:
		h.failure(c, "signup_failed", err, gin.H{"message": "Error creating user"})
	default:
		c.JSON(http.StatusCreated, gin.H{"message": "User created successfully"})
	}
}

func (h *handlers) login(c *gin.Context) {
	var req credentialsRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	token, err := h.deps.Auth.Login(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid Credentials!"})
	case err != nil:
		h.failure(c, "login_failed", err, gin.H{"message": "Server error. Please try again later."})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Login Successful!", "token": token})
	}
}

func (h *handlers) dashboardCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "User is authenticated"})
}

func (h *handlers) dashboardData(c *gin.Context) {
	operator, err := h.deps.Auth.Operator(c.Request.Context(), c.GetString(ctxOperatorID))
	switch {
	case errors.Is(err, domain.ErrOperatorNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": MessageUserNotFound})
	case err != nil:
		h.failure(c, "dashboard_data_failed", err, gin.H{"message": "Error fetching dashboard data"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": "Dashboard data", "user": operator.Email})
	}
}

func (h *handlers) updateOperatorKey(c *gin.Context) {
	var req operatorKeyRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}

	err := h.deps.Auth.UpdateOperatorKey(c.Request.Context(), c.GetString(ctxOperatorID), req.KeyType, req.APIKey)
	switch {
	case errors.Is(err, domain.ErrOperatorNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": MessageUserNotFound})
	case errors.Is(err, auth.ErrMissingAPIKey):
		c.JSON(http.StatusBadRequest, gin.H{"message": "API key and key type are required"})
	case errors.Is(err, auth.ErrInvalidKeyType):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid key type"})
	case err != nil:
		h.failure(c, "operator_key_update_failed", err, gin.H{"message": "Error updating API key"})
	default:
		c.JSON(http.StatusOK, gin.H{"message": req.KeyType + " API key updated successfully"})
	}
}

// bindOptionalJSON decodes the body into req. An empty body leaves req zeroed
// so the handler reports the missing fields itself.
func (h *handlers) bindOptionalJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	logging.FromContext(c.Request.Context(), h.logger).WithFields(logging.Fields{
		"event": "http_bad_body",
		"path":  c.FullPath(),
		"error": err,
	}).Warn("rejected malformed request body")
	c.JSON(http.StatusBadRequest, gin.H{"message": MessageInvalidBody})
	return false
}
