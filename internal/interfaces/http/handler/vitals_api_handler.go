package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dreschagin/vitals-bridge/internal/application/port"
	"github.com/dreschagin/vitals-bridge/internal/application/usecase"
	"github.com/dreschagin/vitals-bridge/internal/domain/valueobject"
	"github.com/dreschagin/vitals-bridge/pkg/logger"
)

// VitalsAPIHandler обрабатывает API запросы для сохраненных метрик
type VitalsAPIHandler struct {
	getLatestUC  *usecase.GetLatestVitalsUseCase
	getHistoryUC *usecase.GetVitalsHistoryUseCase
	archive      port.EnvelopeArchive
	maxDuration  time.Duration
	logger       *logger.Logger
}

// NewVitalsAPIHandler создает новый handler; archive может быть nil
func NewVitalsAPIHandler(
	getLatestUC *usecase.GetLatestVitalsUseCase,
	getHistoryUC *usecase.GetVitalsHistoryUseCase,
	archive port.EnvelopeArchive,
	maxDuration time.Duration,
	logger *logger.Logger,
) *VitalsAPIHandler {
	if maxDuration <= 0 {
		maxDuration = 24 * time.Hour
	}

	return &VitalsAPIHandler{
		getLatestUC:  getLatestUC,
		getHistoryUC: getHistoryUC,
		archive:      archive,
		maxDuration:  maxDuration,
		logger:       logger,
	}
}

// GetLatest возвращает последние значения метрик страницы
func (h *VitalsAPIHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	url := strings.TrimSpace(r.URL.Query().Get("url"))
	if url == "" {
		http.Error(w, "Missing required parameter: url", http.StatusBadRequest)
		return
	}

	vitals, err := h.getLatestUC.Execute(r.Context(), url)
	if errors.Is(err, usecase.ErrVitalsNotFound) {
		http.Error(w, "No vitals for url", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Failed to get latest vitals", err, "url", url)
		http.Error(w, "Failed to fetch vitals", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]any{
		"url":    url,
		"vitals": vitals,
	})
}

// GetHistory возвращает историю одной метрики с агрегатами
func (h *VitalsAPIHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Получаем параметры из query string
	kindStr := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("kind")))
	durationStr := r.URL.Query().Get("duration")
	url := strings.TrimSpace(r.URL.Query().Get("url"))

	if kindStr == "" || durationStr == "" {
		http.Error(w, "Missing required parameters: kind, duration", http.StatusBadRequest)
		return
	}

	kind := valueobject.MetricKind(kindStr)
	if err := kind.Validate(); err != nil {
		http.Error(w, "Invalid metric kind", http.StatusBadRequest)
		return
	}

	duration, err := time.ParseDuration(durationStr)
	if err != nil {
		http.Error(w, "Invalid duration format", http.StatusBadRequest)
		return
	}
	if duration <= 0 || duration > h.maxDuration {
		http.Error(w, "Duration out of allowed range", http.StatusBadRequest)
		return
	}

	history, err := h.getHistoryUC.Execute(r.Context(), kind, url, duration)
	if errors.Is(err, usecase.ErrInvalidQuery) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logger.Error("Failed to get vitals history", err)
		http.Error(w, "Failed to fetch vitals", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, history)
}

// ListArchive возвращает последние заархивированные envelopes
func (h *VitalsAPIHandler) ListArchive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.archive == nil {
		http.Error(w, "Envelope archive is not configured", http.StatusServiceUnavailable)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	items, err := h.archive.List(r.Context(), r.URL.Query().Get("prefix"), limit)
	if err != nil {
		h.logger.Error("Failed to list archived envelopes", err)
		http.Error(w, "Failed to list archive", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (h *VitalsAPIHandler) writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
