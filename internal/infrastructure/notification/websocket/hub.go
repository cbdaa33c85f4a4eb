package websocket

import (
	"context"
	"sync"

	"github.com/dreschagin/vitals-bridge/internal/application/dto"
	"github.com/dreschagin/vitals-bridge/internal/application/port"
	"github.com/dreschagin/vitals-bridge/pkg/logger"
)

const (
	MessageTypeEnvelope = "envelope"
	MessageTypeError    = "error"
)

// Hub управляет WebSocket клиентами дашборда и рассылает им полученные envelope
// Реализует интерфейс port.NotificationService
type Hub struct {
	clients map[*Client]bool

	broadcast  chan *dto.VitalsEventDTO
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu     sync.RWMutex
	logger *logger.Logger
}

var _ port.NotificationService = (*Hub)(nil)

// NewHub создает новый WebSocket hub
func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *dto.VitalsEventDTO, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run обслуживает hub до отмены ctx, затем отключает всех клиентов
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("WebSocket hub started")
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Client registered", "total_clients", total, "url_filter", client.urlFilter)

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("Client unregistered", "total_clients", total)

		case event := <-h.broadcast:
			h.deliver(event)

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.removeLocked(client)
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket hub stopped")
			return
		}
	}
}

// deliver отправляет событие подписанным клиентам; медленные клиенты отключаются
func (h *Hub) deliver(event *dto.VitalsEventDTO) {
	message := Message{Type: MessageTypeEnvelope, Data: event}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if !client.wants(event) {
			continue
		}
		select {
		case client.send <- message:
		default:
			// Канал клиента заполнен, закрываем соединение
			h.removeLocked(client)
			h.logger.Warn("Client channel full, disconnected")
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// Register регистрирует нового клиента; false если hub уже остановлен
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister удаляет клиента
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// BroadcastVitals ставит событие в очередь рассылки (реализация port.NotificationService)
func (h *Hub) BroadcastVitals(event *dto.VitalsEventDTO) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Broadcast channel full, dropping vitals event")
	}
}

// ClientCount возвращает количество подключенных клиентов (реализация port.NotificationService)
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Message представляет сообщение для отправки клиенту
type Message struct {
	Type string      `json:"type"` // "envelope" или "error"
	Data interface{} `json:"data"`
}
