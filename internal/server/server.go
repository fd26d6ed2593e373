package server

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/solsticehq/solstice/internal/backup"
	"github.com/solsticehq/solstice/internal/checkin"
	"github.com/solsticehq/solstice/internal/email"
	"github.com/solsticehq/solstice/internal/handler"
	"github.com/solsticehq/solstice/internal/llm"
	"github.com/solsticehq/solstice/internal/middleware"
	"github.com/solsticehq/solstice/internal/ratelimit"
	"github.com/solsticehq/solstice/internal/secure"
	"github.com/solsticehq/solstice/internal/store"
)

// Config carries everything the server wiring needs beyond the live clients.
type Config struct {
	BaseURL      string
	WorkerSecret string
	Dev          bool
	Backup       backup.Config
	DBPath       string
	Limits       ratelimit.Limits
}

type Server struct {
	db            *sql.DB
	cfg           Config
	analyzeH      *handler.AnalyzeHandler
	checkInH      *handler.CheckInHandler
	workerH       *handler.WorkerHandler
	ipLimiter     *middleware.RateLimiter
	counterStore  *store.CounterStore
	trigger       *checkin.Trigger
	processor     *checkin.Processor
	backupManager *backup.Manager
	logger        *slog.Logger
}

func New(db *sql.DB, llmClient *llm.Client, emailClient *email.Client, keychain *secure.Keychain, cfg Config, logger *slog.Logger) *Server {
	subStore := store.NewSubscriptionStore(db)
	counterStore := store.NewCounterStore(db)
	backupStore := store.NewBackupStore(db)

	limiter := ratelimit.New(counterStore, llmClient.Shared().Key(), cfg.Limits, cfg.Dev,
		logger.With("component", "ratelimit"))
	tokens := checkin.NewTokenSigner(cfg.WorkerSecret)

	processor := checkin.NewProcessor(subStore, keychain, llmClient, emailClient,
		llmClient.Shared(), tokens, cfg.BaseURL, logger.With("component", "processor"))
	trigger := checkin.NewTrigger(subStore, processor, logger.With("component", "trigger"))

	backupMgr := backup.NewManager(cfg.Backup, db, cfg.DBPath, backupStore,
		logger.With("component", "backup"))

	return &Server{
		db:            db,
		cfg:           cfg,
		analyzeH:      handler.NewAnalyzeHandler(llmClient, limiter, logger.With("component", "analyze")),
		checkInH:      handler.NewCheckInHandler(subStore, tokens, cfg.Dev, logger.With("component", "checkin")),
		workerH:       handler.NewWorkerHandler(trigger, processor, backupMgr, backupStore, logger.With("component", "worker")),
		ipLimiter:     middleware.NewRateLimiter(),
		counterStore:  counterStore,
		trigger:       trigger,
		processor:     processor,
		backupManager: backupMgr,
		logger:        logger,
	}
}

// Trigger exposes the check-in trigger for the optional internal scheduler.
func (s *Server) Trigger() *checkin.Trigger { return s.trigger }

// BackupManager exposes the backup manager for lifecycle control.
func (s *Server) BackupManager() *backup.Manager { return s.backupManager }

// CounterStore exposes the counter store for periodic cleanup.
func (s *Server) CounterStore() *store.CounterStore { return s.counterStore }

// IPLimiter exposes the per-IP limiter for periodic cleanup.
func (s *Server) IPLimiter() *middleware.RateLimiter { return s.ipLimiter }

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	mux.HandleFunc("POST /api/analyze", s.analyzeH.Analyze)

	// Subscribe gets a light per-IP limit against drive-by abuse; the durable
	// shared-credential limiter lives inside the analyze path.
	subscribeLimit := middleware.RateLimit(s.ipLimiter, middleware.RealIP, 10, time.Minute)
	mux.Handle("POST /api/check-ins/subscribe",
		subscribeLimit(http.HandlerFunc(s.checkInH.Subscribe)))
	mux.HandleFunc("GET /api/check-ins/unsubscribe", s.checkInH.Unsubscribe)

	workerAuth := middleware.RequireSecret(s.cfg.WorkerSecret)
	mux.Handle("GET /api/secure-worker/trigger-checkins",
		workerAuth(http.HandlerFunc(s.workerH.TriggerCheckIns)))
	mux.Handle("POST /api/secure-worker/process-checkins",
		workerAuth(http.HandlerFunc(s.workerH.ProcessCheckIn)))
	mux.Handle("GET /api/secure-worker/backup-status",
		workerAuth(http.HandlerFunc(s.workerH.BackupStatus)))

	return middleware.RequestLogger(s.logger)(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
