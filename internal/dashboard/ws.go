package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"tg_weather_bot/internal/auth"
	"tg_weather_bot/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// SessionValidator checks a dashboard session token and returns the operator id.
type SessionValidator interface {
	ValidateToken(token string) (string, error)
}

// Handler upgrades authenticated requests to websocket connections fed by the hub.
type Handler struct {
	hub      *Hub
	sessions SessionValidator
	upgrader websocket.Upgrader
	logger   *logrus.Entry
}

// NewHandler constructs a Handler. An empty allowedOrigin accepts any origin.
func NewHandler(hub *Hub, sessions SessionValidator, allowedOrigin string, logger *logrus.Entry) *Handler {
	if logger == nil {
		logger = logging.Logger()
	}
	allowedOrigin = strings.TrimRight(allowedOrigin, "/")

	return &Handler{
		hub:      hub,
		sessions: sessions,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || origin == "" || strings.TrimRight(origin, "/") == allowedOrigin
			},
		},
	}
}

// ServeHTTP authenticates, upgrades and streams hub frames until either side closes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := tokenFromRequest(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Access denied: Token is missing")
		return
	}

	operatorID, err := h.sessions.ValidateToken(token)
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "Token expired, please log in again")
		return
	case err != nil:
		writeError(w, http.StatusForbidden, "Access denied: Invalid token")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithFields(logging.Fields{
			"event":       "dashboard_upgrade_failed",
			"operator_id": operatorID,
			"error":       err,
		}).Warn("websocket upgrade failed")
		return
	}

	sub := h.hub.Subscribe()
	logger := h.logger.WithFields(logging.Fields{"operator_id": operatorID})
	logger.WithField("event", "dashboard_connected").Info("dashboard connected")

	done := make(chan struct{})
	go h.readLoop(conn, done)
	h.writeLoop(conn, sub, done)

	sub.Close()
	_ = conn.Close()
	logger.WithField("event", "dashboard_disconnected").Info("dashboard disconnected")
}

// readLoop drains client frames so pongs and close messages are processed.
func (h *Handler) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writeLoop(conn *websocket.Conn, sub *Subscription, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case frame, ok := <-sub.Frames():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func tokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	return auth.BearerToken(r.Header.Get("Authorization"))
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
