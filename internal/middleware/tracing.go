package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/juicescan/internal/httputil"
	"github.com/R3E-Network/juicescan/pkg/logger"
)

// Tracing assigns each request a trace id, taken from the X-Trace-ID header
// when present, and logs the request when it completes.
func Tracing(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(httputil.TraceHeader)
			if traceID == "" {
				traceID = logger.NewTraceID()
			}
			ctx := logger.WithTraceID(r.Context(), traceID)
			w.Header().Set(httputil.TraceHeader, traceID)

			wrapped := wrap(w)
			start := time.Now()
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			log.LogRequest(ctx, r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
		})
	}
}

// Recover turns handler panics into 500 responses.
func Recover(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					if v == http.ErrAbortHandler {
						panic(v)
					}
					log.WithContext(r.Context()).WithField("panic", v).Error("handler panic")
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
