package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/interceptors"
	"github.com/Kocoro-lab/Shannon/go/temporalgw/internal/metrics"
)

// RateLimit rejects requests beyond rps with 429. A non-positive rps disables it.
func RateLimit(rps float64, burst int, next http.Handler) http.Handler {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			metrics.HTTPRateLimited.Inc()
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded", Kind: "rate_limited"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Instrument tags every request with an id, then counts and logs it.
func Instrument(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := interceptors.EnsureRequestID(r.Header.Get(interceptors.HTTPHeader))
		w.Header().Set(interceptors.HTTPHeader, id)
		r = r.WithContext(interceptors.WithRequestID(r.Context(), id))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		logger.Debug("HTTP request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
