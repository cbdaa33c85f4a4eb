package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/dreschagin/vitals-bridge/pkg/logger"
)

// Recovery перехватывает панику handler'а и отвечает 500
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// Обрыв соединения сервером, пробрасываем дальше
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.Error("Panic in HTTP handler", fmt.Errorf("%v", rec),
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
