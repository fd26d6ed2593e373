package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/solsticehq/solstice/internal/backup"
	"github.com/solsticehq/solstice/internal/checkin"
	"github.com/solsticehq/solstice/internal/store"
)

// WorkerHandler serves the bearer-guarded endpoints an external cron hits to
// drive the check-in pipeline.
type WorkerHandler struct {
	trigger   *checkin.Trigger
	processor *checkin.Processor
	backupMgr *backup.Manager
	backups   *store.BackupStore
	logger    *slog.Logger
}

func NewWorkerHandler(trigger *checkin.Trigger, processor *checkin.Processor, backupMgr *backup.Manager, backups *store.BackupStore, logger *slog.Logger) *WorkerHandler {
	return &WorkerHandler{trigger: trigger, processor: processor, backupMgr: backupMgr, backups: backups, logger: logger}
}

// TriggerCheckIns handles GET /api/secure-worker/trigger-checkins
//
// Per-subscription failures are reported in the summary, not as an HTTP error;
// only a failure to scan at all is a 500.
func (h *WorkerHandler) TriggerCheckIns(w http.ResponseWriter, r *http.Request) {
	summary, err := h.trigger.Run(r.Context())
	if err != nil && summary.Total == 0 {
		h.logger.Error("trigger check-ins", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to scan subscriptions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"processed": summary,
	})
}

type processRequest struct {
	SubscriptionID string `json:"subscriptionId"`
}

// ProcessCheckIn handles POST /api/secure-worker/process-checkins
func (h *WorkerHandler) ProcessCheckIn(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SubscriptionID == "" {
		writeError(w, http.StatusBadRequest, "subscriptionId is required")
		return
	}

	outcome, err := h.processor.Process(r.Context(), req.SubscriptionID)
	if err != nil {
		switch {
		case errors.Is(err, checkin.ErrNotFound):
			writeError(w, http.StatusNotFound, "subscription not found")
		case errors.Is(err, checkin.ErrNotDue):
			writeError(w, http.StatusConflict, "subscription is not due for a check-in")
		default:
			h.logger.Error("process check-in", "subscription_id", req.SubscriptionID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to process check-in")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"processingTime": outcome.ProcessingTime.Milliseconds(),
		"nextCheckIn":    outcome.NextCheckIn,
	})
}

// BackupStatus handles GET /api/secure-worker/backup-status
func (h *WorkerHandler) BackupStatus(w http.ResponseWriter, r *http.Request) {
	recent, err := h.backups.List(10)
	if err != nil {
		h.logger.Error("list backups", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": h.backupMgr.Enabled(),
		"backups": recent,
	})
}
