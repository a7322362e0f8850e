package httpserver

import (
	"net/http"
	"time"

	"github.com/GoCodeAlone/baseapp"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterOptions assembles the transport around the application handler.
type RouterOptions struct {
	Logger baseapp.Logger

	// Middlewares run after the request ID and real IP middlewares, in order.
	// Locale negotiation and session loading go here.
	Middlewares []func(http.Handler) http.Handler

	// Metrics is mounted at MetricsPath when both are set. It bypasses
	// Middlewares.
	Metrics     http.Handler
	MetricsPath string
}

// NewRouter returns a chi router that hands every request except the
// metrics endpoint to app. chi itself never answers 404 or 405: the
// application's router decides what is not found.
func NewRouter(app http.Handler, opts RouterOptions) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = baseapp.NopLogger{}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))

	if opts.Metrics != nil && opts.MetricsPath != "" {
		r.Method(http.MethodGet, opts.MetricsPath, opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(opts.Middlewares...)
		r.Handle("/*", app)
		r.NotFound(app.ServeHTTP)
		r.MethodNotAllowed(app.ServeHTTP)
	})
	return r
}

func requestLogger(logger baseapp.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			kv := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"elapsed", time.Since(started),
				"request_id", middleware.GetReqID(r.Context()),
			}
			if status >= http.StatusInternalServerError {
				logger.Warn("Request failed", kv...)
				return
			}
			logger.Debug("Request", kv...)
		})
	}
}
