package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dreschagin/vitals-bridge/internal/application/usecase"
	"github.com/dreschagin/vitals-bridge/internal/interfaces/http/middleware"
	"github.com/dreschagin/vitals-bridge/pkg/logger"
)

// ConsoleAPIHandler принимает сообщения консоли Android WebView.
// Нативное приложение пересылает сюда каждую строку onConsoleMessage.
type ConsoleAPIHandler struct {
	trackConsoleUC *usecase.TrackConsoleMessageUseCase
	maxBodyBytes   int64
	logger         *logger.Logger
}

type consoleMessageRequest struct {
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

type consoleMessageResponse struct {
	Status     string   `json:"status"`
	Records    int      `json:"records,omitempty"`
	Kinds      []string `json:"kinds,omitempty"`
	ArchiveURL string   `json:"archive_url,omitempty"`
}

func NewConsoleAPIHandler(
	trackConsoleUC *usecase.TrackConsoleMessageUseCase,
	maxBodyBytes int64,
	logger *logger.Logger,
) *ConsoleAPIHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 256 * 1024
	}
	return &ConsoleAPIHandler{
		trackConsoleUC: trackConsoleUC,
		maxBodyBytes:   maxBodyBytes,
		logger:         logger,
	}
}

// TrackMessage обрабатывает POST /api/v1/console
func (h *ConsoleAPIHandler) TrackMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	defer r.Body.Close()

	var req consoleMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "Payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Tag = strings.TrimSpace(req.Tag)

	result, err := h.trackConsoleUC.Execute(r.Context(), req.Tag, req.Message)
	switch {
	case errors.Is(err, usecase.ErrNotAnEnvelope):
		middleware.WriteJSON(w, http.StatusOK, consoleMessageResponse{Status: "ignored"})
		return
	case errors.Is(err, usecase.ErrInvalidEnvelope):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		h.logger.Error("Failed to track console message", err, "tag", req.Tag)
		http.Error(w, "Failed to store vitals", http.StatusInternalServerError)
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, consoleMessageResponse{
		Status:     "tracked",
		Records:    result.Records,
		Kinds:      result.Event.Kinds,
		ArchiveURL: result.ArchiveURL,
	})
}
