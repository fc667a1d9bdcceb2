package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sentra/internal/policy"
	"sentra/internal/policy/metrics"
	"sentra/pkg/platform/httputil"
	"sentra/pkg/requestcontext"
)

// Handler wires policy introspection and access evaluation endpoints.
type Handler struct {
	registry  *policy.Registry
	evaluator *policy.Evaluator
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func New(registry *policy.Registry, evaluator *policy.Evaluator, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{registry: registry, evaluator: evaluator, logger: logger, metrics: m}
}

// Register mounts policy endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/policy/matrix", h.HandleMatrix)
	r.Get("/policy/personas", h.HandlePersonas)
	r.Post("/access/evaluate", h.HandleEvaluate)
}

// HandleMatrix returns the full access matrix for compliance review.
func (h *Handler) HandleMatrix(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.registry.Matrix())
}

// HandlePersonas returns persona summaries.
func (h *Handler) HandlePersonas(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.registry.ListPersonas())
}

// EvaluateRequest is the transport shape for an access check. Persona may be
// omitted, in which case the persona resolved by the auth middleware is used.
type EvaluateRequest struct {
	Persona  string `json:"persona"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// HandleEvaluate handles POST /access/evaluate requests. Denials are still
// HTTP 200 - the decision payload is the answer, not an error.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	personaKey := req.Persona
	if personaKey == "" {
		personaKey = requestcontext.PersonaKey(ctx)
	}

	decision := h.evaluator.Evaluate(personaKey, req.Resource, req.Action)

	h.logger.InfoContext(ctx, "access evaluated",
		"request_id", requestID,
		"persona", personaKey,
		"resource", req.Resource,
		"action", req.Action,
		"decision", decision.Decision,
		"reason", decision.Reason,
		"policy_key", decision.PolicyKey,
	)
	if h.metrics != nil {
		h.metrics.ObserveDecision(string(decision.Decision), string(decision.Reason), start)
	}

	httputil.WriteJSON(w, http.StatusOK, decision)
}
