package http

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dreschagin/vitals-bridge/internal/infrastructure/observability/metrics"
	"github.com/dreschagin/vitals-bridge/internal/interfaces/http/handler"
	"github.com/dreschagin/vitals-bridge/internal/interfaces/http/middleware"
	"github.com/dreschagin/vitals-bridge/pkg/config"
	"github.com/dreschagin/vitals-bridge/pkg/logger"
)

// ReadinessCheck проверяет одну внешнюю зависимость для /readyz
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Router настраивает маршруты приложения
type Router struct {
	mux              *http.ServeMux
	vitalsAPIHandler *handler.VitalsAPIHandler
	consoleHandler   *handler.ConsoleAPIHandler
	websocketHandler *handler.WebSocketHandler
	pageAgentHandler *handler.PageAgentHandler
	metrics          *metrics.Metrics
	gatherer         prometheus.Gatherer
	readiness        []ReadinessCheck
	ingestLimiter    *middleware.IPRateLimiter
	security         config.SecurityConfig
	logger           *logger.Logger
}

// NewRouter создает новый router; metrics и gatherer могут быть nil
func NewRouter(
	vitalsAPIHandler *handler.VitalsAPIHandler,
	consoleHandler *handler.ConsoleAPIHandler,
	websocketHandler *handler.WebSocketHandler,
	pageAgentHandler *handler.PageAgentHandler,
	metrics *metrics.Metrics,
	gatherer prometheus.Gatherer,
	readiness []ReadinessCheck,
	security config.SecurityConfig,
	logger *logger.Logger,
) *Router {
	return &Router{
		mux:              http.NewServeMux(),
		vitalsAPIHandler: vitalsAPIHandler,
		consoleHandler:   consoleHandler,
		websocketHandler: websocketHandler,
		pageAgentHandler: pageAgentHandler,
		metrics:          metrics,
		gatherer:         gatherer,
		readiness:        readiness,
		security:         security,
		logger:           logger,
	}
}

// AuthConfig собирает настройки авторизации с учетом метрик
func AuthConfig(security config.SecurityConfig, m *metrics.Metrics) middleware.AuthConfig {
	cfg := middleware.AuthConfig{
		Enabled:     security.AuthEnabled,
		BearerToken: security.AuthToken,
	}
	if m != nil {
		cfg.OnFailure = func(string) { m.AuthFailures.Inc() }
	}
	return cfg
}

// Setup настраивает все маршруты
func (rt *Router) Setup() http.Handler {
	// Health endpoints are intentionally unauthenticated for probes.
	rt.mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	rt.mux.HandleFunc("/readyz", rt.ready)

	if rt.gatherer != nil {
		rt.mux.Handle("/metrics", promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{}))
	}

	authMiddleware := middleware.Auth(AuthConfig(rt.security, rt.metrics), rt.logger)

	rt.ingestLimiter = middleware.NewIPRateLimiter(rt.security.IngestRateLimit, rt.security.IngestRateBurst)
	if rt.metrics != nil {
		rt.ingestLimiter.OnDrop = func(string) { rt.metrics.RateLimitDropped.Inc() }
	}
	ingest := func(h http.HandlerFunc) http.Handler {
		return middleware.RateLimit(rt.ingestLimiter)(authMiddleware(h))
	}

	// WebSocket: дашборд и агенты страниц проверяют токен сами
	rt.mux.HandleFunc("/ws", rt.websocketHandler.HandleConnection)
	rt.mux.Handle("/ws/page", middleware.RateLimit(rt.ingestLimiter)(http.HandlerFunc(rt.pageAgentHandler.HandleConnection)))

	// Ingest
	rt.mux.Handle("/api/v1/console", ingest(rt.consoleHandler.TrackMessage))

	// Read API
	rt.mux.Handle("/api/v1/vitals/latest", authMiddleware(middleware.Compression(http.HandlerFunc(rt.vitalsAPIHandler.GetLatest))))
	rt.mux.Handle("/api/v1/vitals/history", authMiddleware(middleware.Compression(http.HandlerFunc(rt.vitalsAPIHandler.GetHistory))))
	rt.mux.Handle("/api/v1/archive", authMiddleware(middleware.Compression(http.HandlerFunc(rt.vitalsAPIHandler.ListArchive))))

	// Применяем middleware
	var handler http.Handler = rt.mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = middleware.Logger(rt.logger)(handler)
	handler = middleware.Recovery(rt.logger)(handler)

	return handler
}

// Close останавливает фоновые задачи router'а
func (rt *Router) Close() {
	if rt.ingestLimiter != nil {
		rt.ingestLimiter.Stop()
	}
}

func (rt *Router) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := make(map[string]string)
	for _, check := range rt.readiness {
		if err := check.Check(ctx); err != nil {
			failed[check.Name] = err.Error()
		}
	}

	if len(failed) > 0 {
		rt.logger.Warn("Readiness check failed", "failed", len(failed))
		middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not ready",
			"failed": failed,
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
