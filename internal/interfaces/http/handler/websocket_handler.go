package handler

import (
	"net/http"
	"net/url"
	"strings"

	wsInfra "github.com/dreschagin/vitals-bridge/internal/infrastructure/notification/websocket"
	"github.com/dreschagin/vitals-bridge/internal/interfaces/http/middleware"
	"github.com/dreschagin/vitals-bridge/pkg/logger"
	"github.com/gorilla/websocket"
)

// originPolicy проверяет Origin WebSocket handshake по списку разрешенных
type originPolicy map[string]struct{}

func newOriginPolicy(allowedOrigins []string) originPolicy {
	policy := make(originPolicy, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		policy[trimmed] = struct{}{}
	}
	return policy
}

func (p originPolicy) check(r *http.Request) bool {
	if len(p) == 0 {
		return false
	}
	if _, ok := p["*"]; ok {
		return true
	}

	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}

	_, ok := p[parsed.Scheme+"://"+parsed.Host]
	return ok
}

// WebSocketHandler подключает дашборды к потоку полученных envelopes
type WebSocketHandler struct {
	hub        *wsInfra.Hub
	logger     *logger.Logger
	authConfig middleware.AuthConfig
	upgrader   websocket.Upgrader
}

// NewWebSocketHandler создает новый handler
func NewWebSocketHandler(
	hub *wsInfra.Hub,
	allowedOrigins []string,
	authConfig middleware.AuthConfig,
	logger *logger.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:        hub,
		logger:     logger,
		authConfig: authConfig,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     newOriginPolicy(allowedOrigins).check,
		},
	}
}

// HandleConnection обрабатывает новое WebSocket соединение.
// Параметр ?url= ограничивает поток одной страницей.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	if err := middleware.ValidateRequestAuth(r, h.authConfig); err != nil {
		h.logger.Warn("WebSocket unauthorized",
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)
		if h.authConfig.OnFailure != nil {
			h.authConfig.OnFailure(r.URL.Path)
		}
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", err)
		return
	}

	client := wsInfra.NewClient(h.hub, conn, strings.TrimSpace(r.URL.Query().Get("url")), h.logger)
	if !h.hub.Register(client) {
		// Hub уже остановлен (shutdown)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}

	// Запускаем pumps в отдельных goroutines
	go client.WritePump()
	go client.ReadPump()
}
