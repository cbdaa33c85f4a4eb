package port

import "github.com/dreschagin/vitals-bridge/internal/application/dto"

// NotificationService рассылает полученные envelope подключенным дашбордам (Port)
// Реализация в Infrastructure слое (WebSocket Hub)
type NotificationService interface {
	// BroadcastVitals отправляет событие всем подключенным клиентам
	BroadcastVitals(event *dto.VitalsEventDTO)

	// ClientCount возвращает количество подключенных клиентов
	ClientCount() int
}
