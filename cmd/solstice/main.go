package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/solsticehq/solstice/internal/backup"
	"github.com/solsticehq/solstice/internal/checkin"
	"github.com/solsticehq/solstice/internal/database"
	"github.com/solsticehq/solstice/internal/email"
	"github.com/solsticehq/solstice/internal/llm"
	"github.com/solsticehq/solstice/internal/logging"
	"github.com/solsticehq/solstice/internal/ratelimit"
	"github.com/solsticehq/solstice/internal/secure"
	"github.com/solsticehq/solstice/internal/server"
)

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func main() {
	logger := logging.Setup(env("SOLSTICE_LOG_LEVEL", "info"), env("SOLSTICE_LOG_FORMAT", "text"))

	port := env("SOLSTICE_PORT", "8080")
	dbPath := env("SOLSTICE_DB_PATH", "solstice.db")
	dev := env("SOLSTICE_ENV", "production") == "development"

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	keychain, err := buildKeychain()
	if err != nil {
		logger.Error("configure encryption key", "error", err)
		os.Exit(1)
	}

	llmClient := llm.NewClient(llm.Config{
		SharedKey: os.Getenv("SOLSTICE_GEMINI_KEY"),
		Model:     os.Getenv("SOLSTICE_GEMINI_MODEL"),
	}, logger.With("component", "llm"))

	emailClient := email.NewClient(os.Getenv("SOLSTICE_RESEND_KEY"), env("SOLSTICE_FROM_EMAIL", "checkins@solstice.local"))
	if !emailClient.Configured() {
		logger.Warn("email client not configured, check-in delivery will fail")
	}

	cfg := server.Config{
		BaseURL:      env("SOLSTICE_BASE_URL", "http://localhost:"+port),
		WorkerSecret: os.Getenv("SOLSTICE_CRON_SECRET"),
		Dev:          dev,
		DBPath:       dbPath,
		Limits:       ratelimit.DefaultLimits,
		Backup: backup.Config{
			Endpoint:   os.Getenv("SOLSTICE_BACKUP_S3_ENDPOINT"),
			Bucket:     os.Getenv("SOLSTICE_BACKUP_S3_BUCKET"),
			Region:     env("SOLSTICE_BACKUP_S3_REGION", "auto"),
			AccessKey:  os.Getenv("SOLSTICE_BACKUP_S3_ACCESS_KEY"),
			SecretKey:  os.Getenv("SOLSTICE_BACKUP_S3_SECRET_KEY"),
			Passphrase: os.Getenv("SOLSTICE_BACKUP_PASSPHRASE"),
			Interval:   envDuration("SOLSTICE_BACKUP_INTERVAL", 24*time.Hour),
		},
	}
	if cfg.WorkerSecret == "" {
		logger.Warn("SOLSTICE_CRON_SECRET not set, worker endpoints are disabled")
	}

	srv := server.New(db, llmClient, emailClient, keychain, cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Expired rate-limit buckets accumulate until vacuumed, and the in-memory
	// per-IP limiter keeps one entry per client until swept.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := srv.CounterStore().Cleanup(time.Now()); err != nil {
					logger.Warn("counter cleanup", "error", err)
				}
				srv.IPLimiter().Cleanup()
			}
		}
	}()

	// Optional internal scheduler for deployments without an external cron.
	if interval := envDuration("SOLSTICE_SCHEDULER_INTERVAL", 0); interval > 0 {
		scheduler := checkin.NewScheduler(srv.Trigger(), interval, logger.With("component", "scheduler"))
		scheduler.Start(ctx)
		defer scheduler.Stop()
		logger.Info("internal check-in scheduler started", "interval", interval)
	}

	if srv.BackupManager().Enabled() {
		srv.BackupManager().Start(ctx)
		defer srv.BackupManager().Stop()
		logger.Info("backup manager started")
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("solstice listening", "port", port, "dev", dev)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

// buildKeychain resolves the envelope key: a raw base64 key takes precedence,
// then passphrase derivation.
func buildKeychain() (*secure.Keychain, error) {
	if key := os.Getenv("SOLSTICE_SECURE_KEY"); key != "" {
		return secure.NewKeychain(key)
	}
	return secure.NewKeychainFromPassphrase(
		os.Getenv("SOLSTICE_SECURE_PASSPHRASE"),
		os.Getenv("SOLSTICE_SECURE_SALT"),
	)
}
