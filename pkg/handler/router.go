package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yumyai/genevalidator/pkg/middle"
)

func NewRouter(sctx *StatusContext) *http.ServeMux {
	mux := http.NewServeMux()

	// Error route
	mux.HandleFunc("GET /favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	mux.HandleFunc("GET /api/v1/health", sctx.HealthCheck)
	mux.HandleFunc("GET /api/v1/stats", sctx.RunStatsHandler)

	if sctx.Registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(sctx.Registry, promhttp.HandlerOpts{}))
	}

	return mux
}

// NewStatusHandler wraps the router with request ids and request logging.
func NewStatusHandler(sctx *StatusContext, log *zap.Logger) http.Handler {
	var h http.Handler = NewRouter(sctx)
	h = middle.LoggingMiddleware(log)(h)
	h = middle.RequestIDMiddleware(log)(h)
	return h
}
