package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/solsticehq/solstice/internal/backup"
	"github.com/solsticehq/solstice/internal/checkin"
	"github.com/solsticehq/solstice/internal/email"
	"github.com/solsticehq/solstice/internal/llm"
	"github.com/solsticehq/solstice/internal/model"
	"github.com/solsticehq/solstice/internal/store"
)

type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, prompt string, cred llm.Credential) (string, error) {
	return "Some insights.\n\nReflection questions:\n- How is it going?", nil
}

type stubSender struct {
	sent int
}

func (s *stubSender) SendCheckIn(ctx context.Context, toEmail, refID string, in email.CheckIn) error {
	s.sent++
	return nil
}

func newWorkerTest(t *testing.T) (*WorkerHandler, *store.SubscriptionStore, func() *model.Subscription) {
	t.Helper()
	db := testDB(t)
	subs := store.NewSubscriptionStore(db)
	kc := testKeychain(t)

	processor := checkin.NewProcessor(subs, kc, stubGenerator{}, &stubSender{},
		llm.UserKey("test-key"), checkin.NewTokenSigner("test-secret"), "https://solstice.test", testLogger())
	trigger := checkin.NewTrigger(subs, processor, testLogger())
	backups := store.NewBackupStore(db)
	backupMgr := backup.NewManager(backup.Config{}, db, ":memory:", backups, testLogger())
	h := NewWorkerHandler(trigger, processor, backupMgr, backups, testLogger())

	makeDue := func() *model.Subscription {
		payload, err := kc.Encrypt(map[string]any{"wordOfYear": "steady"})
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		sub, err := subs.Create("alice@example.com", model.FrequencyMonthly,
			[]model.Framework{model.FrameworkPattern}, "", *payload)
		if err != nil {
			t.Fatalf("create subscription: %v", err)
		}
		past := time.Now().UTC().Add(-time.Hour)
		if _, err := db.Exec(`UPDATE subscriptions SET next_check_in = ? WHERE id = ?`, past, sub.ID); err != nil {
			t.Fatalf("backdate subscription: %v", err)
		}
		return sub
	}
	return h, subs, makeDue
}

func TestTriggerCheckIns(t *testing.T) {
	h, _, makeDue := newWorkerTest(t)
	makeDue()
	makeDue()

	rec := httptest.NewRecorder()
	h.TriggerCheckIns(rec, httptest.NewRequest("GET", "/api/secure-worker/trigger-checkins", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp struct {
		Success   bool            `json:"success"`
		Processed checkin.Summary `json:"processed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Error("success = false")
	}
	if resp.Processed.Total != 2 || resp.Processed.Succeeded != 2 {
		t.Errorf("processed = %+v", resp.Processed)
	}
}

func TestTriggerCheckInsNothingDue(t *testing.T) {
	h, _, _ := newWorkerTest(t)

	rec := httptest.NewRecorder()
	h.TriggerCheckIns(rec, httptest.NewRequest("GET", "/api/secure-worker/trigger-checkins", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Processed checkin.Summary `json:"processed"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Processed.Total != 0 {
		t.Errorf("processed = %+v, want empty", resp.Processed)
	}
}

func postProcess(h *WorkerHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/api/secure-worker/process-checkins", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ProcessCheckIn(rec, req)
	return rec
}

func TestProcessCheckIn(t *testing.T) {
	h, subs, makeDue := newWorkerTest(t)
	sub := makeDue()

	rec := postProcess(h, `{"subscriptionId":"`+sub.ID+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp struct {
		Success        bool      `json:"success"`
		ProcessingTime int64     `json:"processingTime"`
		NextCheckIn    time.Time `json:"nextCheckIn"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Error("success = false")
	}
	if resp.NextCheckIn.Before(time.Now().UTC()) {
		t.Errorf("nextCheckIn = %v, want future", resp.NextCheckIn)
	}

	after, err := subs.GetByID(sub.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if after.LastCheckIn == nil {
		t.Error("check-in not recorded")
	}
}

func TestProcessCheckInNotFound(t *testing.T) {
	h, _, _ := newWorkerTest(t)
	rec := postProcess(h, `{"subscriptionId":"no-such-id"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestProcessCheckInNotDue(t *testing.T) {
	h, subs, _ := newWorkerTest(t)

	payload, err := testKeychain(t).Encrypt(map[string]any{"wordOfYear": "steady"})
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	sub, err := subs.Create("bob@example.com", model.FrequencyMonthly,
		[]model.Framework{model.FrameworkPattern}, "", *payload)
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}

	rec := postProcess(h, `{"subscriptionId":"`+sub.ID+`"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestBackupStatus(t *testing.T) {
	db := testDB(t)
	subs := store.NewSubscriptionStore(db)
	backups := store.NewBackupStore(db)
	backupMgr := backup.NewManager(backup.Config{}, db, ":memory:", backups, testLogger())

	processor := checkin.NewProcessor(subs, testKeychain(t), stubGenerator{}, &stubSender{},
		llm.UserKey("test-key"), checkin.NewTokenSigner("test-secret"), "https://solstice.test", testLogger())
	trigger := checkin.NewTrigger(subs, processor, testLogger())
	h := NewWorkerHandler(trigger, processor, backupMgr, backups, testLogger())

	record, err := backups.Create("backups/solstice-1.db.enc")
	if err != nil {
		t.Fatalf("create backup record: %v", err)
	}
	if err := backups.MarkCompleted(record.ID, 2048); err != nil {
		t.Fatalf("complete backup record: %v", err)
	}

	rec := httptest.NewRecorder()
	h.BackupStatus(rec, httptest.NewRequest("GET", "/api/secure-worker/backup-status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp struct {
		Enabled bool           `json:"enabled"`
		Backups []model.Backup `json:"backups"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Enabled {
		t.Error("enabled = true, want false without S3 configuration")
	}
	if len(resp.Backups) != 1 || resp.Backups[0].Status != model.BackupStatusCompleted {
		t.Errorf("backups = %+v", resp.Backups)
	}
}

func TestProcessCheckInBadRequest(t *testing.T) {
	h, _, _ := newWorkerTest(t)
	for name, body := range map[string]string{
		"bad json":   `{`,
		"missing id": `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := postProcess(h, body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}
