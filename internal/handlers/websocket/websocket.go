// internal/handlers/websocket/websocket.go
package websocket

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"tuzo-service/internal/middleware"
	"tuzo-service/internal/pkg/response"
	ws "tuzo-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler accepts browser origins from allowedOrigins; "*" allows any.
func NewWebSocketHandler(hub *ws.Hub, allowedOrigins []string, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// HandleConnection authenticates the caller and upgrades to a websocket.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	token := extractToken(c)
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "missing authentication token", nil)
		return
	}

	auth, err := h.hub.Authenticate(c.Request.Context(), token)
	switch {
	case errors.Is(err, ws.ErrNoProfile):
		response.Error(c, http.StatusForbidden, "no business or customer profile", nil)
		return
	case errors.Is(err, ws.ErrUnauthorized):
		h.logger.Debug("websocket authentication failed", zap.Error(err), zap.String("ip", c.ClientIP()))
		response.Error(c, http.StatusUnauthorized, "authentication failed", nil)
		return
	case err != nil:
		h.logger.Error("websocket authentication error", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "authentication failed", nil)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err), zap.String("ip", c.ClientIP()))
		return
	}

	client := ws.NewClient(h.hub, conn, auth)
	if err := h.hub.Register(client); err != nil {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// GetStats returns connection counts.
func (h *WebSocketHandler) GetStats(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	response.Success(c, http.StatusOK, "WebSocket stats", gin.H{
		"total_connections": h.hub.TotalClients(),
		"you_connected":     h.hub.IsUserConnected(userID),
		"timestamp":         time.Now(),
	})
}

// extractToken prefers the query parameter, which browsers can set on upgrade.
func extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
