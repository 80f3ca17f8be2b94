package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blockwatch/blockwatch/internal/api"
	"github.com/blockwatch/blockwatch/internal/middleware"
)

// Version is reported by /health
var Version = "dev"

// Pinger checks a dependency is reachable; *sql.DB satisfies it
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HTTPHandler serves health and metrics endpoints
type HTTPHandler struct {
	db Pinger
}

// NewHTTPHandler creates a new HTTP handler. db may be nil.
func NewHTTPHandler(db Pinger) *HTTPHandler {
	return &HTTPHandler{db: db}
}

// SetupRoutes configures health and metrics routes
func (h *HTTPHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// handleHealth reports ok, or 503 when the database does not answer
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"status":   "ok",
		"version":  Version,
		"database": "ok",
	}
	code := http.StatusOK

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	api.RespondJSON(w, code, status)
}

// RouteSetter registers its routes on a mux
type RouteSetter interface {
	SetupRoutes(mux *http.ServeMux)
}

// NewRouter mounts every handler and wraps the mux with request IDs, access
// logging, CORS, rate limiting and JWT authentication, outermost first.
// limit may be nil.
func NewRouter(cors *middleware.CORSMiddleware, limit *middleware.RateLimitMiddleware, auth *middleware.JWTAuthMiddleware, routes ...RouteSetter) http.Handler {
	mux := http.NewServeMux()
	for _, h := range routes {
		h.SetupRoutes(mux)
	}
	return middleware.RequestIDMiddleware(middleware.AccessLog(cors.Wrap(limit.Wrap(auth.Wrap(mux)))))
}
