package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/mail"

	"github.com/solsticehq/solstice/internal/checkin"
	"github.com/solsticehq/solstice/internal/model"
	"github.com/solsticehq/solstice/internal/store"
)

type CheckInHandler struct {
	subs   *store.SubscriptionStore
	tokens *checkin.TokenSigner
	dev    bool
	logger *slog.Logger
}

func NewCheckInHandler(subs *store.SubscriptionStore, tokens *checkin.TokenSigner, dev bool, logger *slog.Logger) *CheckInHandler {
	return &CheckInHandler{subs: subs, tokens: tokens, dev: dev, logger: logger}
}

type subscribeRequest struct {
	Email         string                 `json:"email"`
	Frequency     model.Frequency        `json:"frequency"`
	Frameworks    []model.Framework      `json:"frameworks"`
	Responses     model.EncryptedPayload `json:"responses"`
	AnalysisDepth model.AnalysisDepth    `json:"analysisDepth,omitempty"`
}

// validate returns per-field problems. The responses envelope is checked for
// shape only; its authenticity is the processor's concern.
func (req *subscribeRequest) validate(dev bool) map[string]string {
	problems := map[string]string{}

	addr, err := mail.ParseAddress(req.Email)
	if err != nil || addr.Address != req.Email {
		problems["email"] = "must be a valid email address"
	}
	if !req.Frequency.Valid(dev) {
		problems["frequency"] = "must be monthly or quarterly"
	}
	if len(req.Frameworks) == 0 {
		problems["frameworks"] = "at least one framework is required"
	} else {
		for _, f := range req.Frameworks {
			if !f.Valid() {
				problems["frameworks"] = "unknown framework: " + string(f)
				break
			}
		}
	}
	if err := req.Responses.Validate(); err != nil {
		problems["responses"] = err.Error()
	}
	if req.AnalysisDepth != "" && !req.AnalysisDepth.Valid() {
		problems["analysisDepth"] = "must be comprehensive, focused, or maintenance"
	}
	return problems
}

// Subscribe handles POST /api/check-ins/subscribe
func (h *CheckInHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if problems := req.validate(h.dev); len(problems) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "validation failed",
			"details": problems,
		})
		return
	}

	// Resubscribing replaces any earlier active subscription for the address
	// instead of stacking duplicates.
	existing, err := h.subs.ListByEmail(req.Email)
	if err != nil {
		h.logger.Error("subscription lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create subscription")
		return
	}
	for _, prev := range existing {
		if prev.Status != model.StatusActive {
			continue
		}
		if err := h.subs.UpdateStatus(prev.ID, model.StatusCancelled); err != nil {
			h.logger.Error("cancel superseded subscription", "subscription_id", prev.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to create subscription")
			return
		}
	}

	sub, err := h.subs.Create(req.Email, req.Frequency, req.Frameworks, req.AnalysisDepth, req.Responses)
	if err != nil {
		h.logger.Error("create subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create subscription")
		return
	}

	h.logger.Info("subscription created",
		"subscription_id", sub.ID,
		"frequency", sub.Frequency,
		"frameworks", len(sub.Frameworks),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"subscription": sub.Public(),
	})
}

// Unsubscribe handles GET /api/check-ins/unsubscribe?token=...
func (h *CheckInHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	id, err := h.tokens.Verify(token)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid or expired token")
		return
	}

	sub, err := h.subs.GetByID(id)
	if err != nil {
		h.logger.Error("unsubscribe lookup", "subscription_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to unsubscribe")
		return
	}
	if sub == nil {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}

	if sub.Status != model.StatusCancelled {
		if err := h.subs.UpdateStatus(id, model.StatusCancelled); err != nil {
			h.logger.Error("unsubscribe", "subscription_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to unsubscribe")
			return
		}
		h.logger.Info("subscription cancelled", "subscription_id", id)
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
