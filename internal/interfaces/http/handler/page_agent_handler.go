package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dreschagin/vitals-bridge/internal/application/port"
	"github.com/dreschagin/vitals-bridge/internal/application/usecase"
	"github.com/dreschagin/vitals-bridge/internal/domain/service"
	"github.com/dreschagin/vitals-bridge/internal/domain/valueobject"
	"github.com/dreschagin/vitals-bridge/internal/infrastructure/observer"
	"github.com/dreschagin/vitals-bridge/internal/infrastructure/remotepage"
	"github.com/dreschagin/vitals-bridge/internal/interfaces/http/middleware"
	"github.com/dreschagin/vitals-bridge/pkg/logger"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	agentHelloTimeout  = 10 * time.Second
	agentPongWait      = 60 * time.Second
	agentPingPeriod    = (agentPongWait * 9) / 10
	agentWriteWait     = 10 * time.Second
	agentDrainTimeout  = 5 * time.Second
	agentMaxFrameBytes = 1 << 20
)

// SessionGauge считает подключенные страницы
type SessionGauge interface {
	SessionOpened()
	SessionClosed()
}

type noopSessionGauge struct{}

func (noopSessionGauge) SessionOpened() {}
func (noopSessionGauge) SessionClosed() {}

// PageAgentHandler обслуживает /ws/page: агент страницы присылает hello и
// записи performance timeline, а сессия на сервере собирает из них метрики.
type PageAgentHandler struct {
	baseCtx      context.Context
	sink         port.EnvelopeSink
	trackConsole *usecase.TrackConsoleMessageUseCase
	pipeline     port.PipelineMetrics
	sessions     SessionGauge
	maxBuffered  int
	authConfig   middleware.AuthConfig
	upgrader     websocket.Upgrader
	logger       *logger.Logger
}

// NewPageAgentHandler создает handler. Отмена baseCtx закрывает все соединения агентов.
func NewPageAgentHandler(
	baseCtx context.Context,
	sink port.EnvelopeSink,
	trackConsole *usecase.TrackConsoleMessageUseCase,
	pipeline port.PipelineMetrics,
	sessions SessionGauge,
	maxBuffered int,
	allowedOrigins []string,
	authConfig middleware.AuthConfig,
	logger *logger.Logger,
) *PageAgentHandler {
	if sessions == nil {
		sessions = noopSessionGauge{}
	}
	return &PageAgentHandler{
		baseCtx:      baseCtx,
		sink:         sink,
		trackConsole: trackConsole,
		pipeline:     pipeline,
		sessions:     sessions,
		maxBuffered:  maxBuffered,
		authConfig:   authConfig,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
			CheckOrigin:     newOriginPolicy(allowedOrigins).check,
		},
		logger: logger,
	}
}

// agentConn сериализует запись в соединение: ответы read loop и ping
type agentConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *agentConn) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(agentWriteWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *agentConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(agentWriteWait))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *agentConn) sendError(message string) {
	_ = c.writeJSON(remotepage.ErrorFrame{Type: remotepage.FrameError, Error: message})
}

// HandleConnection обрабатывает одно подключение агента страницы
func (h *PageAgentHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	if err := middleware.ValidateRequestAuth(r, h.authConfig); err != nil {
		h.logger.Warn("Page agent unauthorized", "remote_addr", r.RemoteAddr)
		if h.authConfig.OnFailure != nil {
			h.authConfig.OnFailure(r.URL.Path)
		}
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Page agent upgrade failed", err)
		return
	}
	conn := &agentConn{conn: ws}
	defer ws.Close()

	// Остановка сервера закрывает соединение и прерывает read loop
	stopOnShutdown := context.AfterFunc(h.baseCtx, func() { _ = ws.Close() })
	defer stopOnShutdown()

	ws.SetReadLimit(agentMaxFrameBytes)

	// 1. Первый кадр - hello
	_ = ws.SetReadDeadline(time.Now().Add(agentHelloTimeout))
	_, data, err := ws.ReadMessage()
	if err != nil {
		h.logger.Debug("Page agent left before hello", "error", err.Error())
		return
	}
	hello, err := remotepage.ParseHello(data)
	if err != nil {
		h.logger.Warn("Rejected page agent hello", "remote_addr", r.RemoteAddr, "error", err.Error())
		conn.sendError(err.Error())
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	pageID := uuid.New().String()
	tag := strings.TrimSpace(r.URL.Query().Get("tag"))
	if tag == "" {
		tag = pageID
	}

	// 2. Собираем окружение страницы и сессию
	var target valueobject.DeliveryTarget
	console := func(ctx context.Context, message string) {
		h.handleConsole(ctx, pageID, tag, target, message)
	}
	env := remotepage.NewEnvironment(ctx, pageID, tag, hello, h.sink, console, h.logger)
	target = service.ResolvePlatform(env)

	timeline := observer.NewTimeline(h.maxBuffered)
	session := usecase.NewPageSession(pageID, env, timeline, h.pipeline, h.logger)
	if err := session.Start(ctx); err != nil {
		h.logger.Error("Failed to start page session", err, "page_id", pageID)
		conn.sendError("failed to start session")
		return
	}

	h.sessions.SessionOpened()
	defer h.sessions.SessionClosed()

	defer func() {
		// Дожидаемся отправки уже записанных entries
		timeline.Close()
		waitCtx, waitCancel := context.WithTimeout(context.Background(), agentDrainTimeout)
		defer waitCancel()
		if err := session.Wait(waitCtx); err != nil {
			h.logger.Warn("Page session did not drain in time", "page_id", pageID)
		}
	}()

	if err := conn.writeJSON(remotepage.ReadyFrame{
		Type:      remotepage.FrameReady,
		SessionID: session.ID(),
		Target:    session.Target().String(),
	}); err != nil {
		h.logger.Debug("Failed to acknowledge page agent", "page_id", pageID, "error", err.Error())
		return
	}

	// 3. Keepalive
	_ = ws.SetReadDeadline(time.Now().Add(agentPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(agentPongWait))
	})
	go h.pingLoop(ctx, conn)

	// 4. Читаем записи timeline
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("Page agent connection lost", "page_id", pageID, "error", err.Error())
			}
			break
		}
		_ = ws.SetReadDeadline(time.Now().Add(agentPongWait))

		if err := h.handleFrame(timeline, data); err != nil {
			h.logger.Warn("Rejected page agent frame", "page_id", pageID, "error", err.Error())
			conn.sendError(err.Error())
		}
	}

	h.logger.Info("Page agent disconnected", "page_id", pageID, "url", hello.URL)
}

func (h *PageAgentHandler) handleFrame(timeline *observer.Timeline, data []byte) error {
	frameType, err := remotepage.FrameType(data)
	if err != nil {
		return err
	}

	switch frameType {
	case remotepage.FrameEntries:
		entries, err := remotepage.ParseEntries(data)
		if err != nil {
			return err
		}
		return timeline.Record(entries...)
	default:
		return errors.New("unsupported frame type: " + frameType)
	}
}

// handleConsole обрабатывает строки консоли страницы. На Android envelope
// приходит именно сюда, для остальных платформ это fallback без bridge.
func (h *PageAgentHandler) handleConsole(ctx context.Context, pageID, tag string, target valueobject.DeliveryTarget, message string) {
	if !usecase.IsVitalsMessage(message) {
		h.logger.Debug("Page console", "page_id", pageID, "message", message)
		return
	}

	var err error
	if target == valueobject.Android && h.trackConsole != nil {
		_, err = h.trackConsole.Execute(ctx, tag, message)
	} else {
		err = h.sink.Deliver(ctx, port.Delivery{
			PageID:  pageID,
			Tag:     tag,
			Target:  target,
			Message: message,
		})
	}
	if err != nil {
		h.logger.Warn("Console envelope was not delivered",
			"page_id", pageID,
			"target", target.String(),
			"error", err.Error(),
		)
	}
}

func (h *PageAgentHandler) pingLoop(ctx context.Context, conn *agentConn) {
	ticker := time.NewTicker(agentPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}
