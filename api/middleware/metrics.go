package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/amerta-coffee/amerta-coffee-api/pkg/metrics"
)

// Metrics records request counts and latency per route pattern.
func Metrics(recorder *metrics.Server) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if recorder == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			recorder.Observe(r.Method, routeLabel(r), responseStatus(ww), time.Since(start))
		})
	}
}
