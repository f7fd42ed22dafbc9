package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/mzelinka/attune/internal/llm"
)

const serviceName = "attune"

type RouterConfig struct {
	// OpenAIAPIKey is only inspected by the readiness probe; the model client
	// itself is injected.
	OpenAIAPIKey string
}

type Router struct {
	cfg    RouterConfig
	logger *log.Logger
	llm    llm.Client

	// Connection counters reported by /health.
	activeConns atomic.Int64
	totalConns  atomic.Int64
}

func NewRouter(cfg RouterConfig, logger *log.Logger, client llm.Client) *Router {
	return &Router{
		cfg:    cfg,
		logger: logger,
		llm:    client,
	}
}

// SessionHandler serves the websocket listener. The session endpoint sits at
// the root so clients can connect to ws://host:port without a path.
func (r *Router) SessionHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", r.handleSessionWS)
	return withSentryRecovery(mux)
}

// HealthHandler serves the probe listener, separate from session traffic.
func (r *Router) HealthHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", r.handleHealth)
	mux.HandleFunc("GET /ready", r.handleReady)
	mux.HandleFunc("GET /live", r.handleLive)
	return withSentryRecovery(withCORS(mux))
}

func (r *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"service":            serviceName,
		"active_connections": r.activeConns.Load(),
		"total_connections":  r.totalConns.Load(),
	})
}

// handleReady only checks that a credential is configured. It deliberately
// never probes the provider, so readiness stays cheap and stable.
func (r *Router) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.cfg.OpenAIAPIKey == "" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  "API key not configured",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ready",
		"service": serviceName,
	})
}

func (r *Router) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "alive",
		"service": serviceName,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// captureError sends an error to Sentry with session context.
func captureError(err error, sessionID string, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("session_id", sessionID)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}
