package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dreschagin/vitals-bridge/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewWithWriter("error", io.Discard)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
}

func TestAuth(t *testing.T) {
	var failures []string
	cfg := AuthConfig{
		Enabled:     true,
		BearerToken: "secret",
		OnFailure:   func(path string) { failures = append(failures, path) },
	}
	h := Auth(cfg, testLogger())(okHandler())

	tests := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"no token", "/api/v1/vitals/latest", "", http.StatusUnauthorized},
		{"wrong token", "/api/v1/vitals/latest", "Bearer nope", http.StatusUnauthorized},
		{"header token", "/api/v1/vitals/latest", "Bearer secret", http.StatusOK},
		{"lowercase scheme", "/api/v1/vitals/latest", "bearer secret", http.StatusOK},
		{"query token", "/ws?token=secret", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	if len(failures) != 2 {
		t.Errorf("OnFailure calls = %d, want 2", len(failures))
	}
}

func TestAuthDisabled(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if err := ValidateRequestAuth(req, AuthConfig{}); err != nil {
		t.Errorf("ValidateRequestAuth() = %v, want nil", err)
	}
	// Включенная авторизация без токена закрывает все
	if err := ValidateRequestAuth(req, AuthConfig{Enabled: true}); err != ErrUnauthorized {
		t.Errorf("ValidateRequestAuth() = %v, want ErrUnauthorized", err)
	}
}

func TestRateLimit(t *testing.T) {
	limiter := NewIPRateLimiter(0.001, 2)
	defer limiter.Stop()

	dropped := 0
	limiter.OnDrop = func(string) { dropped++ }
	h := RateLimit(limiter)(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/console", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}

	// Другой клиент имеет собственный бюджет
	req := httptest.NewRequest(http.MethodPost, "/api/v1/console", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("second client status = %d", rec.Code)
	}
}

func TestIPRateLimiterEvictsIdle(t *testing.T) {
	limiter := NewIPRateLimiter(1, 1)
	defer limiter.Stop()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.Allow("a")
	now = now.Add(10 * time.Minute)
	limiter.Allow("b")
	limiter.evictIdle()

	if limiter.Size() != 1 {
		t.Errorf("Size() = %d, want 1", limiter.Size())
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2"}, "3.3.3.3:1", "1.1.1.1"},
		{"real ip", map[string]string{"X-Real-IP": "4.4.4.4"}, "3.3.3.3:1", "4.4.4.4"},
		{"remote addr", nil, "3.3.3.3:1", "3.3.3.3"},
		{"remote without port", nil, "pipe", "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(testLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestCompression(t *testing.T) {
	h := Compression(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/vitals/latest", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("Content-Encoding = %q", rec.Header().Get("Content-Encoding"))
	}
	gz, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip.NewReader() error = %v", err)
	}
	body, _ := io.ReadAll(gz)
	if string(body) != "ok" {
		t.Errorf("body = %q", body)
	}
}

func TestCompressionSkipsWebSocket(t *testing.T) {
	h := Compression(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Upgrade", "websocket")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("Content-Encoding") != "" {
		t.Errorf("websocket upgrade must not be compressed")
	}
}
