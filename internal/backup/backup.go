package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/solsticehq/solstice/internal/model"
	"github.com/solsticehq/solstice/internal/store"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds backup configuration. Backups are disabled unless the bucket,
// credentials, and passphrase are all set.
type Config struct {
	Endpoint      string
	Bucket        string
	Region        string
	AccessKey     string
	SecretKey     string
	Passphrase    string
	Interval      time.Duration
	RetentionDays int
}

// Manager uploads encrypted database snapshots to S3-compatible storage. The
// snapshot is taken with VACUUM INTO, so it is consistent without stopping
// writers.
type Manager struct {
	mu     sync.RWMutex
	cfg    Config
	db     *sql.DB
	dbPath string
	store  *store.BackupStore
	client s3Client
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(cfg Config, db *sql.DB, dbPath string, bs *store.BackupStore, logger *slog.Logger) *Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}

	m := &Manager{
		cfg:    cfg,
		db:     db,
		dbPath: dbPath,
		store:  bs,
		logger: logger,
	}
	if m.configured() {
		m.client = newS3Client(cfg)
	}
	return m
}

func (m *Manager) configured() bool {
	c := m.cfg
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != "" && c.Passphrase != ""
}

// Enabled reports whether backups will run.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Start begins the periodic backup loop. No-op when backups are not configured.
func (m *Manager) Start(ctx context.Context) {
	if !m.Enabled() {
		return
	}
	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.BackupNow(ctx); err != nil {
					m.logger.Error("scheduled backup", "error", err)
				}
				if err := m.cleanup(ctx); err != nil {
					m.logger.Error("backup cleanup", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the backup loop.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// BackupNow snapshots the database, encrypts it, and uploads it.
func (m *Manager) BackupNow(ctx context.Context) (*model.Backup, error) {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client == nil {
		return nil, fmt.Errorf("backups not configured")
	}

	timestamp := time.Now().UTC().Format("2006-01-02T150405Z")
	objectKey := fmt.Sprintf("backups/solstice-%s.db.enc", timestamp)

	record, err := m.store.Create(objectKey)
	if err != nil {
		return nil, err
	}

	snapshot := filepath.Join(os.TempDir(), fmt.Sprintf("solstice-backup-%d.db", record.ID))
	defer os.Remove(snapshot)

	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, snapshot); err != nil {
		m.store.MarkFailed(record.ID, err.Error())
		return nil, fmt.Errorf("snapshot database: %w", err)
	}

	plaintext, err := os.ReadFile(snapshot)
	if err != nil {
		m.store.MarkFailed(record.ID, err.Error())
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	sealed, err := encrypt(plaintext, m.cfg.Passphrase)
	if err != nil {
		m.store.MarkFailed(record.ID, err.Error())
		return nil, fmt.Errorf("encrypt snapshot: %w", err)
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.Bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		m.store.MarkFailed(record.ID, err.Error())
		return nil, fmt.Errorf("upload snapshot: %w", err)
	}

	if err := m.store.MarkCompleted(record.ID, int64(len(sealed))); err != nil {
		return nil, err
	}

	m.logger.Info("backup uploaded", "object_key", objectKey, "size_bytes", len(sealed))
	record.Status = model.BackupStatusCompleted
	record.SizeBytes = int64(len(sealed))
	return record, nil
}

// Restore downloads and decrypts a backup object, verifies it is a SQLite
// database, and writes it to dstPath. The caller is responsible for pointing
// the application at the restored file.
func (m *Manager) Restore(ctx context.Context, objectKey, dstPath string) error {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()
	if client == nil {
		return fmt.Errorf("backups not configured")
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("download snapshot: %w", err)
	}
	defer result.Body.Close()

	sealed := new(bytes.Buffer)
	if _, err := sealed.ReadFrom(result.Body); err != nil {
		return fmt.Errorf("read snapshot body: %w", err)
	}

	plaintext, err := decrypt(sealed.Bytes(), m.cfg.Passphrase)
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(plaintext, []byte("SQLite format 3\x00")) {
		return fmt.Errorf("restored snapshot is not a SQLite database")
	}

	if err := os.WriteFile(dstPath, plaintext, 0600); err != nil {
		return fmt.Errorf("write restored database: %w", err)
	}
	return nil
}

// cleanup deletes backups past the retention window, locally and remotely.
func (m *Manager) cleanup(ctx context.Context) error {
	before := time.Now().UTC().AddDate(0, 0, -m.cfg.RetentionDays)
	keys, err := m.store.DeleteOlderThan(before)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.Bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete remote backup", "object_key", key, "error", err)
		}
	}
	return nil
}
