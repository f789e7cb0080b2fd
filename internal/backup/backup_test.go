package backup

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/veomenu/veomenu/internal/database"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	getErr  error
	delErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &s3NotFound{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader(string(data))),
	}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.delErr != nil {
		return nil, m.delErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) ListObjectsV2(_ context.Context, input *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var contents []types.Object
	for key := range m.objects {
		if input.Prefix == nil || strings.HasPrefix(key, *input.Prefix) {
			contents = append(contents, types.Object{Key: aws.String(key)})
		}
	}
	sort.Slice(contents, func(i, j int) bool {
		return *contents[i].Key < *contents[j].Key
	})
	return &s3.ListObjectsV2Output{Contents: contents}, nil
}

type s3NotFound struct{}

func (e *s3NotFound) Error() string { return "NoSuchKey" }

func configuredConfig() Config {
	return Config{
		S3:            S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret"},
		EncryptionKey: "backup-passphrase",
		Retention:     3,
		Interval:      time.Hour,
	}
}

func TestManagerStateLifecycle(t *testing.T) {
	// Without S3 config -> disabled
	m := NewManager(Config{}, nil, slog.Default())
	if m.Status().State != StateDisabled {
		t.Errorf("state = %q, want %q", m.Status().State, StateDisabled)
	}

	// Without an encryption key -> still disabled
	cfg := configuredConfig()
	cfg.EncryptionKey = ""
	m2 := NewManager(cfg, nil, slog.Default())
	if m2.Status().State != StateDisabled {
		t.Errorf("state = %q, want %q", m2.Status().State, StateDisabled)
	}

	// Fully configured -> idle
	m3 := NewManager(configuredConfig(), nil, slog.Default())
	if m3.Status().State != StateIdle {
		t.Errorf("state = %q, want %q", m3.Status().State, StateIdle)
	}
}

func TestManagerDisabledNoStart(t *testing.T) {
	m := NewManager(Config{}, nil, slog.Default())

	ctx := context.Background()
	m.Start(ctx) // should be a no-op for disabled state

	// Stop should not block
	m.Stop()
}

func TestRunNowUploadsEncryptedSnapshot(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	m := NewManager(configuredConfig(), db, slog.Default())
	mock := newMockS3()
	m.client = mock

	key, err := m.RunNow(context.Background())
	if err != nil {
		t.Fatalf("run backup: %v", err)
	}
	if !strings.HasPrefix(key, keyPrefix) {
		t.Errorf("key = %q, want %q prefix", key, keyPrefix)
	}
	if m.Status().State != StateIdle {
		t.Errorf("state = %q, want %q", m.Status().State, StateIdle)
	}
	if m.Status().LastBackup == nil {
		t.Error("expected LastBackup to be set")
	}

	mock.mu.Lock()
	data, ok := mock.objects[key]
	mock.mu.Unlock()
	if !ok {
		t.Fatalf("no uploaded object under %q", key)
	}

	// The upload must decrypt back into a valid database.
	dir := t.TempDir()
	encPath := filepath.Join(dir, "upload.db.enc")
	decPath := filepath.Join(dir, "restored.db")
	if err := os.WriteFile(encPath, data, 0600); err != nil {
		t.Fatalf("write upload: %v", err)
	}
	if err := DecryptFile(encPath, decPath, "backup-passphrase"); err != nil {
		t.Fatalf("decrypt upload: %v", err)
	}

	restored, err := sql.Open("sqlite", decPath)
	if err != nil {
		t.Fatalf("open restored db: %v", err)
	}
	defer restored.Close()
	var count int
	err = restored.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'users'`).Scan(&count)
	if err != nil {
		t.Fatalf("inspect restored db: %v", err)
	}
	if count != 1 {
		t.Error("restored snapshot is missing the users table")
	}
}

func TestRunNowNotConfigured(t *testing.T) {
	m := NewManager(Config{}, nil, slog.Default())
	if _, err := m.RunNow(context.Background()); err == nil {
		t.Fatal("expected error when not configured")
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	m := NewManager(configuredConfig(), nil, slog.Default())
	mock := newMockS3()
	m.client = mock

	keys := []string{
		"backups/veomenu-2026-01-01T020000Z.db.enc",
		"backups/veomenu-2026-01-02T020000Z.db.enc",
		"backups/veomenu-2026-01-03T020000Z.db.enc",
		"backups/veomenu-2026-01-04T020000Z.db.enc",
		"backups/veomenu-2026-01-05T020000Z.db.enc",
	}
	for _, key := range keys {
		mock.objects[key] = []byte("x")
	}

	if err := m.prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	mock.mu.Lock()
	defer mock.mu.Unlock()
	if len(mock.objects) != 3 {
		t.Fatalf("kept %d objects, want 3", len(mock.objects))
	}
	for _, key := range keys[2:] {
		if _, ok := mock.objects[key]; !ok {
			t.Errorf("newest key %q should have been kept", key)
		}
	}
	for _, key := range keys[:2] {
		if _, ok := mock.objects[key]; ok {
			t.Errorf("oldest key %q should have been pruned", key)
		}
	}
}

func TestPruneUnderRetention(t *testing.T) {
	m := NewManager(configuredConfig(), nil, slog.Default())
	mock := newMockS3()
	m.client = mock
	mock.objects["backups/veomenu-2026-01-01T020000Z.db.enc"] = []byte("x")

	if err := m.prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if len(mock.objects) != 1 {
		t.Errorf("kept %d objects, want 1", len(mock.objects))
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.db")
	livePath := filepath.Join(dir, "live.db")

	src, err := database.Open(srcPath)
	if err != nil {
		t.Fatalf("open source db: %v", err)
	}
	if _, err := src.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		t.Fatalf("checkpoint source db: %v", err)
	}
	src.Close()

	encPath := filepath.Join(dir, "src.db.enc")
	if err := EncryptFile(srcPath, encPath, "backup-passphrase"); err != nil {
		t.Fatalf("encrypt source: %v", err)
	}
	encData, err := os.ReadFile(encPath)
	if err != nil {
		t.Fatalf("read encrypted: %v", err)
	}

	cfg := configuredConfig()
	cfg.DBPath = livePath
	m := NewManager(cfg, nil, slog.Default())
	mock := newMockS3()
	m.client = mock
	mock.objects["backups/veomenu-2026-01-01T020000Z.db.enc"] = encData

	if err := m.Restore(context.Background(), "backups/veomenu-2026-01-01T020000Z.db.enc"); err != nil {
		t.Fatalf("restore: %v", err)
	}

	live, err := sql.Open("sqlite", livePath)
	if err != nil {
		t.Fatalf("open restored db: %v", err)
	}
	defer live.Close()
	var integrity string
	if err := live.QueryRow("PRAGMA integrity_check").Scan(&integrity); err != nil {
		t.Fatalf("integrity check: %v", err)
	}
	if integrity != "ok" {
		t.Errorf("integrity = %q, want ok", integrity)
	}
}

func TestRestoreUnknownKey(t *testing.T) {
	m := NewManager(configuredConfig(), nil, slog.Default())
	m.client = newMockS3()

	if err := m.Restore(context.Background(), "backups/missing.db.enc"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestManagerStopSafety(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	m := NewManager(configuredConfig(), db, slog.Default())
	m.client = newMockS3()

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	cancel()
	m.Stop()

	// Double stop should not panic
	m.Stop()
}
