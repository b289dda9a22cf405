package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"schemap/internal/logger"
)

// NewRouter builds the HTTP routing tree over svc. dialect resolves the
// export quoting style per connection; the Hub's Dialect method satisfies
// it directly.
func NewRouter(svc Service, dialect DialectFunc, log *logger.Logger) http.Handler {
	h := &handlers{svc: svc, dialect: dialect, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/connections", h.listConnections)
		r.Route("/connections/{name}", func(r chi.Router) {
			r.Get("/schema", h.schema)
			r.Get("/graph", h.graph)
			r.Get("/export", h.export)
			r.Post("/refresh", h.refresh)
			r.Post("/query", h.query)
		})
	})

	return r
}

// requestLogger emits one structured log line per request.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.HTTPEvent().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
