// Package http implements the HTTP transport (C2): a single JSON-RPC
// endpoint plus the Agent Card and skill-discovery endpoints, with
// optional bearer-token authentication applied as middleware.
package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/a2arun/pkg/a2a"
	"github.com/kadirpekel/a2arun/pkg/auth"
	"github.com/kadirpekel/a2arun/pkg/jsonrpc"
	"github.com/kadirpekel/a2arun/pkg/metrics"
	"github.com/kadirpekel/a2arun/pkg/router"
	"github.com/kadirpekel/a2arun/pkg/tracing"
)

var tracer = tracing.Tracer("a2arun.transport.http")

// Handler serves the HTTP transport's three endpoint groups.
type Handler struct {
	router  *router.Router
	card    *a2a.AgentCard
	metrics *metrics.Metrics
	logger  *slog.Logger
	auth    *auth.JWTValidator
}

// New builds the HTTP transport's chi router. validator may be nil, in
// which case no authentication is enforced. m may be nil.
func New(r *router.Router, card *a2a.AgentCard, validator *auth.JWTValidator, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{router: r, card: card, metrics: m, logger: logger, auth: validator}

	mux := chi.NewRouter()
	mux.Use(h.instrument)

	rpc := http.HandlerFunc(h.handleRPC)
	if validator != nil {
		mux.With(authMiddleware(validator)).Post("/", rpc.ServeHTTP)
	} else {
		mux.Post("/", rpc.ServeHTTP)
	}

	mux.Get("/.well-known/agent-card.json", h.handleAgentCard)
	mux.Get("/.well-known/agent.json", h.handleAgentCard)
	mux.Get("/agent-card", h.handleAgentCard)
	mux.Get("/skills", h.handleListSkills)
	mux.Get("/skills/{id}", h.handleGetSkill)
	mux.Get("/schema/*", h.handleSchema)
	mux.Get("/metrics", h.handleMetrics)

	return mux
}

// authMiddleware wraps auth.JWTValidator.HTTPMiddleware so a missing
// validator is simply not mounted, rather than every call site having to
// check for nil.
func authMiddleware(v *auth.JWTValidator) func(http.Handler) http.Handler {
	return v.HTTPMiddleware
}

func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := tracer.Start(r.Context(), "http.request", trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.path", r.URL.Path),
		))
		defer span.End()

		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", ww.status))
		h.logger.Debug("http request", "method", r.Method, "path", r.URL.Path,
			"status", ww.status, "duration", time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// handleRPC implements POST /: decode one JSON-RPC request, reject
// streaming methods (this transport is request/response only), dispatch
// and write the response.
func (h *Handler) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 8<<20))
	if err != nil {
		h.writeError(w, nil, jsonrpc.NewError(jsonrpc.CodeParseError, "failed to read request body"))
		return
	}

	req, rpcErr := jsonrpc.ParseRequest(body)
	if rpcErr != nil {
		h.writeError(w, nil, rpcErr.(*jsonrpc.Error))
		return
	}

	if jsonrpc.StreamingMethods[req.Method] {
		h.writeError(w, req.ID, jsonrpc.NewTypedError(jsonrpc.KindUnsupportedOperation,
			"use the WebSocket transport for "+req.Method))
		return
	}

	start := time.Now()
	resp := h.router.Dispatch(r.Context(), req)
	outcome := "ok"
	if resp.Error != nil {
		outcome = "error"
	}
	h.metrics.RecordRPC(req.Method, outcome, time.Since(start))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) writeError(w http.ResponseWriter, id json.RawMessage, rpcErr *jsonrpc.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(jsonrpc.NewErrorResponse(id, rpcErr))
}

// handleAgentCard serves GET /.well-known/agent-card.json and its aliases.
func (h *Handler) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.card)
}

// handleListSkills serves GET /skills.
func (h *Handler) handleListSkills(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.card.Skills)
}

// handleGetSkill serves GET /skills/{id}.
func (h *Handler) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, s := range h.card.Skills {
		if s.ID == id {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(s)
			return
		}
	}
	http.Error(w, "skill not found", http.StatusNotFound)
}

// handleSchema serves GET /schema/<method>, e.g. /schema/message/send: the
// JSON Schema for that method's params shape, so a client can validate a
// request before sending it rather than relying solely on the server to
// reject it. The method name is taken as the full wildcard tail since A2A
// method names are themselves slash-separated (message/send,
// tasks/pushNotificationConfig/set).
func (h *Handler) handleSchema(w http.ResponseWriter, r *http.Request) {
	method := chi.URLParam(r, "*")
	schema := jsonrpc.Schema(method)
	if schema == nil {
		http.Error(w, "unknown method", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(schema)
}

// handleMetrics serves the Prometheus exposition endpoint.
func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.Handler().ServeHTTP(w, r)
}
