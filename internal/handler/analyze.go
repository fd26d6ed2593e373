package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/solsticehq/solstice/internal/llm"
	"github.com/solsticehq/solstice/internal/model"
	"github.com/solsticehq/solstice/internal/ratelimit"
)

// userKeyHeader lets callers bring their own Gemini key and skip the shared
// credential's rate limit.
const userKeyHeader = "x-gemini-key"

type AnalyzeHandler struct {
	llm     *llm.Client
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

func NewAnalyzeHandler(client *llm.Client, limiter *ratelimit.Limiter, logger *slog.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{llm: client, limiter: limiter, logger: logger}
}

// Analyze handles POST /api/analyze
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req llm.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.FormData == nil {
		writeError(w, http.StatusBadRequest, "formData is required")
		return
	}
	if req.Framework == "" {
		writeError(w, http.StatusBadRequest, "framework is required")
		return
	}
	if !req.Framework.Valid() {
		writeError(w, http.StatusBadRequest, "unknown framework")
		return
	}
	if req.Framework == model.FrameworkCustom && req.CustomPrompt == "" {
		writeError(w, http.StatusBadRequest, "custom framework requires customPrompt")
		return
	}

	cred := h.llm.Shared()
	if key := r.Header.Get(userKeyHeader); key != "" {
		cred = llm.UserKey(key)
	}

	result := h.limiter.Check(r.Context(), cred.Key())
	if !result.Allowed {
		writeError(w, http.StatusTooManyRequests, result.Message(time.Now()))
		return
	}

	text, err := h.llm.Analyze(r.Context(), req, cred)
	if err != nil {
		switch {
		case errors.Is(err, llm.ErrMissingKey):
			writeError(w, http.StatusUnauthorized, "no API key available; supply one in the "+userKeyHeader+" header")
		case errors.Is(err, llm.ErrInvalidKey):
			writeError(w, http.StatusUnauthorized, "the API key was rejected")
		case errors.Is(err, llm.ErrTimeout):
			writeError(w, http.StatusGatewayTimeout, "analysis timed out, please try again")
		default:
			h.logger.Error("analyze", "framework", req.Framework, "error", err)
			writeError(w, http.StatusInternalServerError, "analysis failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"framework": req.Framework,
		"analysis":  text,
	})
}
