package middleware

import (
	"net/http"
	"time"

	"github.com/Phannhothinh/chatbot-op/internal/logging"
	"github.com/Phannhothinh/chatbot-op/internal/utils"
)

// RequestLogger is the subset of logging.RequestLogger used here
type RequestLogger interface {
	LogRequest(r *http.Request)
}

var _ RequestLogger = (*logging.RequestLogger)(nil)

// statusRecorder captures the status code written by the handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// AccessLog writes every request to the access log file, when one is
// configured, and a one-line summary to the debug log.
func AccessLog(requestLogger RequestLogger) func(http.Handler) http.Handler {
	logger := utils.NewLogger("access")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requestLogger != nil {
				requestLogger.LogRequest(r)
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			logger.Debug("Request handled",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
