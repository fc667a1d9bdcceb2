package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"sentra/internal/audit"
	"sentra/pkg/platform/httputil"
	"sentra/pkg/requestcontext"
)

// Handler wires audit recording and retrieval endpoints.
type Handler struct {
	recorder *audit.Recorder
	query    *audit.Query
	logger   *slog.Logger
}

func New(recorder *audit.Recorder, query *audit.Query, logger *slog.Logger) *Handler {
	return &Handler{recorder: recorder, query: query, logger: logger}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/audit/events", h.HandleRecord)
	r.Get("/audit/events", h.HandleList)
}

// recordRequest is the transport shape for reporting a policy event. Actor ID
// accepts either a string or a number since upstream systems disagree.
type recordRequest struct {
	PolicyKey string `json:"policyKey"`
	Persona   string `json:"persona"`
	Resource  string `json:"resource"`
	Action    string `json:"action"`
	Decision  string `json:"decision"`
	Reason    string `json:"reason"`
	Actor     struct {
		ID    any    `json:"id"`
		Type  string `json:"type"`
		Email string `json:"email"`
	} `json:"actor"`
	Request struct {
		ID         string `json:"id"`
		Path       string `json:"path"`
		Method     string `json:"method"`
		IP         string `json:"ip"`
		UserAgent  string `json:"userAgent"`
		DurationMs int64  `json:"durationMs"`
		StatusCode int    `json:"statusCode"`
	} `json:"request"`
	ResponseStatus int            `json:"responseStatus"`
	Constraints    []string       `json:"constraints"`
	Metadata       map[string]any `json:"metadata"`
	OccurredAt     string         `json:"occurredAt"`
}

// HandleRecord handles POST /audit/events. A dropped or lost event is not a
// client error: the caller gets 202 and the cause stays in our logs.
func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	record := audit.RecordRequest{
		PolicyKey: req.PolicyKey,
		Persona:   req.Persona,
		Resource:  req.Resource,
		Action:    req.Action,
		Decision:  req.Decision,
		Reason:    req.Reason,
		Actor: audit.Actor{
			ID:    stringify(req.Actor.ID),
			Type:  req.Actor.Type,
			Email: req.Actor.Email,
		},
		Request: audit.RequestInfo{
			ID:         req.Request.ID,
			Path:       req.Request.Path,
			Method:     req.Request.Method,
			IP:         req.Request.IP,
			UserAgent:  req.Request.UserAgent,
			DurationMs: req.Request.DurationMs,
			StatusCode: req.Request.StatusCode,
		},
		ResponseStatus: req.ResponseStatus,
		Constraints:    req.Constraints,
		Metadata:       req.Metadata,
	}

	// Fall back to transport-derived context when the caller omits it.
	if record.Request.ID == "" {
		record.Request.ID = requestcontext.RequestID(ctx)
	}
	if record.Request.IP == "" {
		record.Request.IP = requestcontext.ClientIP(ctx)
	}
	if record.Request.UserAgent == "" {
		record.Request.UserAgent = requestcontext.UserAgent(ctx)
	}
	if record.Actor.ID == "" {
		record.Actor.ID = requestcontext.ActorID(ctx)
	}
	if record.Actor.Email == "" {
		record.Actor.Email = requestcontext.ActorEmail(ctx)
	}
	if req.OccurredAt != "" {
		if t, err := time.Parse(time.RFC3339, req.OccurredAt); err == nil {
			record.OccurredAt = t
		}
	}

	event := h.recorder.Record(ctx, record)
	if event == nil {
		httputil.WriteJSON(w, http.StatusAccepted, map[string]any{"event": nil})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{"event": event})
}

// HandleList handles GET /audit/events with filters as query parameters.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := audit.ListParams{
		PolicyKey: q.Get("policyKey"),
		Persona:   q.Get("persona"),
		Resource:  q.Get("resource"),
		Action:    q.Get("action"),
		Decision:  q.Get("decision"),
		Search:    q.Get("search"),
		From:      q.Get("from"),
		To:        q.Get("to"),
		Limit:     atoiOrZero(q.Get("limit")),
		Offset:    atoiOrZero(q.Get("offset")),
	}

	httputil.WriteJSON(w, http.StatusOK, h.query.List(r.Context(), params))
}

// atoiOrZero degrades malformed numbers to "not specified".
func atoiOrZero(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

// stringify flattens the loosely typed actor ID. JSON numbers decode as
// float64; integral values must not pick up a trailing ".0".
func stringify(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		if typed == float64(int64(typed)) {
			return strconv.FormatInt(int64(typed), 10)
		}
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case json.Number:
		return typed.String()
	default:
		return fmt.Sprintf("%v", typed)
	}
}
