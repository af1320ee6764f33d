package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const backupPrefix = "backups/"

// ObjectStore is the storage surface the backup service needs.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// Snapshotter produces a consistent point-in-time copy of one database.
type Snapshotter interface {
	Name() string
	VacuumInto(destPath string) error
}

// BackupService snapshots every database into a staging directory, packs the
// snapshots into a tar.gz with a sha256 manifest, uploads the archive, and
// rotates old backups.
type BackupService struct {
	databases     []Snapshotter
	store         ObjectStore
	retentionDays int
	minKeep       int
	log           zerolog.Logger

	// now is swappable for rotation tests.
	now func() time.Time
}

// NewBackupService creates the backup service
func NewBackupService(databases []Snapshotter, store ObjectStore, retentionDays, minKeep int, log zerolog.Logger) *BackupService {
	if minKeep < 1 {
		minKeep = 1
	}
	return &BackupService{
		databases:     databases,
		store:         store,
		retentionDays: retentionDays,
		minKeep:       minKeep,
		log:           log.With().Str("service", "backup").Logger(),
		now:           time.Now,
	}
}

// Backup runs one full backup cycle.
func (s *BackupService) Backup(ctx context.Context) error {
	staging, err := os.MkdirTemp("", "wheel-backup-*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	var snapshots []string
	for _, db := range s.databases {
		dest := filepath.Join(staging, db.Name()+".db")
		if err := db.VacuumInto(dest); err != nil {
			return fmt.Errorf("failed to snapshot %s: %w", db.Name(), err)
		}
		snapshots = append(snapshots, dest)
	}

	stamp := s.now().UTC().Format("20060102-150405")
	archiveName := fmt.Sprintf("wheel-tracker-%s.tar.gz", stamp)
	archivePath := filepath.Join(staging, archiveName)

	checksum, err := createArchive(archivePath, snapshots)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	key := backupPrefix + archiveName
	if err := s.store.Upload(ctx, key, f); err != nil {
		return err
	}
	if err := s.store.Upload(ctx, key+".sha256", strings.NewReader(checksum+"  "+archiveName+"\n")); err != nil {
		return err
	}

	s.log.Info().Str("key", key).Str("sha256", checksum).Msg("Backup uploaded")

	return s.rotate(ctx)
}

// rotate deletes archives older than the retention window while always
// keeping the newest minKeep archives regardless of age.
func (s *BackupService) rotate(ctx context.Context) error {
	objects, err := s.store.List(ctx, backupPrefix)
	if err != nil {
		return fmt.Errorf("failed to list backups for rotation: %w", err)
	}

	// Checksum sidecars follow their archive's fate.
	var archives []ObjectInfo
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, ".tar.gz") {
			archives = append(archives, obj)
		}
	}

	sort.Slice(archives, func(i, j int) bool {
		return archives[i].LastModified.After(archives[j].LastModified)
	})

	cutoff := s.now().Add(-time.Duration(s.retentionDays) * 24 * time.Hour)
	for i, obj := range archives {
		if i < s.minKeep || !obj.LastModified.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, obj.Key); err != nil {
			s.log.Warn().Str("key", obj.Key).Err(err).Msg("Failed to delete expired backup")
			continue
		}
		if err := s.store.Delete(ctx, obj.Key+".sha256"); err != nil {
			s.log.Warn().Str("key", obj.Key).Err(err).Msg("Failed to delete backup checksum")
		}
		s.log.Info().Str("key", obj.Key).Msg("Expired backup deleted")
	}
	return nil
}

// createArchive packs the snapshot files into a tar.gz and returns the
// archive's sha256 hex digest.
func createArchive(archivePath string, files []string) (string, error) {
	out, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive file: %w", err)
	}
	defer out.Close()

	hasher := sha256.New()
	gz := gzip.NewWriter(io.MultiWriter(out, hasher))
	tw := tar.NewWriter(gz)

	for _, path := range files {
		if err := addFile(tw, path); err != nil {
			return "", err
		}
	}

	if err := tw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize gzip stream: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func addFile(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	header := &tar.Header{
		Name:    filepath.Base(path),
		Mode:    0600,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header for %s: %w", path, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("failed to write %s into archive: %w", path, err)
	}
	return nil
}
