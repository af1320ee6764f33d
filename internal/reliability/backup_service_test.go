package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	uploads map[string][]byte
	objects []ObjectInfo
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploads: make(map[string][]byte)}
}

func (f *fakeStore) Upload(ctx context.Context, key string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.uploads[key] = data
	return nil
}

func (f *fakeStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	return f.objects, nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeSnapshotter struct {
	name    string
	content string
}

func (f *fakeSnapshotter) Name() string {
	return f.name
}

func (f *fakeSnapshotter) VacuumInto(destPath string) error {
	return os.WriteFile(destPath, []byte(f.content), 0600)
}

func TestBackupUploadsArchiveAndChecksum(t *testing.T) {
	store := newFakeStore()
	svc := NewBackupService([]Snapshotter{
		&fakeSnapshotter{name: "ledger", content: "ledger-bytes"},
		&fakeSnapshotter{name: "config", content: "config-bytes"},
	}, store, 30, 3, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC) }

	require.NoError(t, svc.Backup(context.Background()))

	archiveKey := "backups/wheel-tracker-20240301-030000.tar.gz"
	archive, ok := store.uploads[archiveKey]
	require.True(t, ok, "archive not uploaded")

	checksum, ok := store.uploads[archiveKey+".sha256"]
	require.True(t, ok, "checksum not uploaded")
	assert.Contains(t, string(checksum), "wheel-tracker-20240301-030000.tar.gz")

	// The archive must contain both snapshots.
	gz, err := gzip.NewReader(bytes.NewReader(archive))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	names := make(map[string]string)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		names[header.Name] = string(data)
	}
	assert.Equal(t, "ledger-bytes", names["ledger.db"])
	assert.Equal(t, "config-bytes", names["config.db"])
}

func TestRotateKeepsMinimumRegardlessOfAge(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.objects = []ObjectInfo{
		{Key: "backups/a.tar.gz", LastModified: now.Add(-100 * 24 * time.Hour)},
		{Key: "backups/b.tar.gz", LastModified: now.Add(-90 * 24 * time.Hour)},
		{Key: "backups/c.tar.gz", LastModified: now.Add(-80 * 24 * time.Hour)},
	}

	svc := NewBackupService(nil, store, 30, 3, zerolog.Nop())
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.rotate(context.Background()))
	assert.Empty(t, store.deleted, "all three are within minKeep")
}

func TestRotateDeletesExpiredBeyondMinimum(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.objects = []ObjectInfo{
		{Key: "backups/new1.tar.gz", LastModified: now.Add(-1 * 24 * time.Hour)},
		{Key: "backups/new2.tar.gz", LastModified: now.Add(-2 * 24 * time.Hour)},
		{Key: "backups/new3.tar.gz", LastModified: now.Add(-3 * 24 * time.Hour)},
		{Key: "backups/old.tar.gz", LastModified: now.Add(-60 * 24 * time.Hour)},
		{Key: "backups/recent.tar.gz", LastModified: now.Add(-10 * 24 * time.Hour)},
	}

	svc := NewBackupService(nil, store, 30, 3, zerolog.Nop())
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.rotate(context.Background()))

	// Only the expired archive (and its checksum) goes; the 10-day-old one
	// is inside the retention window.
	assert.Equal(t, []string{"backups/old.tar.gz", "backups/old.tar.gz.sha256"}, store.deleted)
}
