package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/solsticehq/solstice/internal/database"
	"github.com/solsticehq/solstice/internal/model"
	"github.com/solsticehq/solstice/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	deleted []string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[*input.Key] = data
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	data, ok := f.objects[*input.Key]
	f.mu.Unlock()
	if !ok {
		return nil, errors.New("no such key")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	delete(f.objects, *input.Key)
	f.deleted = append(f.deleted, *input.Key)
	f.mu.Unlock()
	return &s3.DeleteObjectOutput{}, nil
}

func newTestManager(t *testing.T, db *sql.DB, client s3Client) *Manager {
	t.Helper()
	cfg := Config{
		Bucket:     "solstice-backups",
		Region:     "auto",
		AccessKey:  "test-access",
		SecretKey:  "test-secret",
		Passphrase: "correct horse battery staple",
	}
	m := NewManager(cfg, db, "unused.db", store.NewBackupStore(db), testLogger())
	m.client = client
	return m
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte("not actually a database")
	sealed, err := encrypt(plaintext, "pass")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := decrypt(sealed, "pass")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("round trip mismatch: %q", got)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	sealed, err := encrypt([]byte("secret"), "pass")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := decrypt(sealed, "wrong"); err == nil {
		t.Error("expected decrypt failure with wrong passphrase")
	}
}

func TestDecryptTampered(t *testing.T) {
	sealed, err := encrypt([]byte("secret"), "pass")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	sealed[len(sealed)-1] ^= 0x01
	if _, err := decrypt(sealed, "pass"); err == nil {
		t.Error("expected decrypt failure for tampered ciphertext")
	}
}

func TestBackupNow(t *testing.T) {
	db := testDB(t)
	fake := newFakeS3()
	m := newTestManager(t, db, fake)

	record, err := m.BackupNow(context.Background())
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if record.Status != model.BackupStatusCompleted {
		t.Errorf("status = %q, want completed", record.Status)
	}

	sealed, ok := fake.objects[record.ObjectKey]
	if !ok {
		t.Fatalf("object %q not uploaded", record.ObjectKey)
	}
	if int64(len(sealed)) != record.SizeBytes {
		t.Errorf("recorded size %d, uploaded %d", record.SizeBytes, len(sealed))
	}

	plaintext, err := decrypt(sealed, "correct horse battery staple")
	if err != nil {
		t.Fatalf("decrypt uploaded snapshot: %v", err)
	}
	if !bytes.HasPrefix(plaintext, []byte("SQLite format 3\x00")) {
		t.Error("uploaded snapshot is not a SQLite database")
	}

	backups, err := store.NewBackupStore(db).List(10)
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if len(backups) != 1 || backups[0].Status != model.BackupStatusCompleted {
		t.Errorf("backups = %+v", backups)
	}
}

func TestBackupNowUploadFailure(t *testing.T) {
	db := testDB(t)
	fake := newFakeS3()
	fake.putErr = errors.New("bucket gone")
	m := newTestManager(t, db, fake)

	if _, err := m.BackupNow(context.Background()); err == nil {
		t.Fatal("expected upload error")
	}

	backups, err := store.NewBackupStore(db).List(10)
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if len(backups) != 1 || backups[0].Status != model.BackupStatusFailed {
		t.Errorf("backups = %+v, want one failed record", backups)
	}
	if backups[0].ErrorMessage == "" {
		t.Error("failure reason not recorded")
	}
}

func TestBackupNotConfigured(t *testing.T) {
	db := testDB(t)
	m := NewManager(Config{}, db, "unused.db", store.NewBackupStore(db), testLogger())
	if m.Enabled() {
		t.Error("manager enabled without credentials")
	}
	if _, err := m.BackupNow(context.Background()); err == nil {
		t.Error("expected error backing up without configuration")
	}
}

func TestRestore(t *testing.T) {
	db := testDB(t)
	fake := newFakeS3()
	m := newTestManager(t, db, fake)

	record, err := m.BackupNow(context.Background())
	if err != nil {
		t.Fatalf("backup: %v", err)
	}

	dst := filepath.Join(t.TempDir(), "restored.db")
	if err := m.Restore(context.Background(), record.ObjectKey, dst); err != nil {
		t.Fatalf("restore: %v", err)
	}

	restored, err := database.Open(dst)
	if err != nil {
		t.Fatalf("open restored database: %v", err)
	}
	defer restored.Close()
	var integrity string
	if err := restored.QueryRow("PRAGMA integrity_check").Scan(&integrity); err != nil {
		t.Fatalf("integrity check: %v", err)
	}
	if integrity != "ok" {
		t.Errorf("integrity = %q", integrity)
	}
}

func TestRestoreWrongPassphrase(t *testing.T) {
	db := testDB(t)
	fake := newFakeS3()
	m := newTestManager(t, db, fake)

	record, err := m.BackupNow(context.Background())
	if err != nil {
		t.Fatalf("backup: %v", err)
	}

	m.cfg.Passphrase = "wrong"
	dst := filepath.Join(t.TempDir(), "restored.db")
	if err := m.Restore(context.Background(), record.ObjectKey, dst); err == nil {
		t.Error("expected restore failure with wrong passphrase")
	}
}

func TestCleanup(t *testing.T) {
	db := testDB(t)
	fake := newFakeS3()
	m := newTestManager(t, db, fake)
	m.cfg.RetentionDays = 7

	bs := store.NewBackupStore(db)
	old, err := bs.Create("backups/solstice-old.db.enc")
	if err != nil {
		t.Fatalf("create record: %v", err)
	}
	past := time.Now().UTC().AddDate(0, 0, -30)
	if _, err := db.Exec(`UPDATE backups SET created_at = ? WHERE id = ?`, past, old.ID); err != nil {
		t.Fatalf("backdate record: %v", err)
	}
	fake.objects["backups/solstice-old.db.enc"] = []byte("old")

	recent, err := m.BackupNow(context.Background())
	if err != nil {
		t.Fatalf("backup: %v", err)
	}

	if err := m.cleanup(context.Background()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	if _, ok := fake.objects["backups/solstice-old.db.enc"]; ok {
		t.Error("old object not deleted from storage")
	}
	if _, ok := fake.objects[recent.ObjectKey]; !ok {
		t.Error("recent object deleted")
	}

	backups, err := bs.List(10)
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if len(backups) != 1 {
		t.Errorf("records remaining = %d, want 1", len(backups))
	}
}
