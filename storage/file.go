package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/ruteri/event-signin/interfaces"
)

// lockRetryDelay is how often a blocked writer retries the file lock.
const lockRetryDelay = 20 * time.Millisecond

// FileStore implements an attendance store on the local file system.
// The log for a secret is stored as <baseDir>/<secret>.json.
type FileStore struct {
	baseDir     string
	locks       keyedMutex
	log         *slog.Logger
	locationURI string
}

// NewFileStore creates a new file store rooted at baseDir, creating the
// directory if it doesn't exist.
func NewFileStore(baseDir string, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FileStore{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// Fetch reads the log for secret. Returns ErrLogNotFound if the file doesn't exist.
func (b *FileStore) Fetch(ctx context.Context, secret string) (*interfaces.AttendanceLog, error) {
	if err := validateSecret(secret); err != nil {
		return nil, err
	}
	return b.readLog(b.getFilePath(secret))
}

// Append adds record to the log for secret. The whole document is rewritten
// through a temporary file and renamed into place while holding both the
// in-process lock and the lock file for that secret.
func (b *FileStore) Append(ctx context.Context, secret string, record interfaces.AttendanceRecord) error {
	if err := validateSecret(secret); err != nil {
		return err
	}

	filePath := b.getFilePath(secret)

	unlock := b.locks.Lock(secret)
	defer unlock()

	fileLock := flock.New(filePath + ".lock")
	locked, err := fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", filePath, err)
	}
	if !locked {
		return fmt.Errorf("failed to lock %s", filePath)
	}
	defer fileLock.Unlock()

	attendance, err := b.readLog(filePath)
	if errors.Is(err, interfaces.ErrLogNotFound) {
		attendance = interfaces.NewAttendanceLog()
	} else if err != nil {
		return err
	}

	attendance.Attendees = append(attendance.Attendees, record)

	data, err := encodeLog(attendance)
	if err != nil {
		return err
	}

	if err := b.writeFile(filePath, data); err != nil {
		return err
	}

	b.log.Debug("Appended attendance record to file",
		slog.String("path", filePath),
		slog.Int("attendees", len(attendance.Attendees)))

	return nil
}

// Available checks if the file store is accessible by verifying the base directory exists.
func (b *FileStore) Available(ctx context.Context) bool {
	_, err := os.Stat(b.baseDir)
	if err != nil {
		b.log.Debug("File store unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this store.
func (b *FileStore) Name() string {
	return fmt.Sprintf("file-%s", filepath.Base(b.baseDir))
}

// LocationURI returns the URI that identifies this store.
func (b *FileStore) LocationURI() string {
	return b.locationURI
}

func (b *FileStore) getFilePath(secret string) string {
	return filepath.Join(b.baseDir, secret+".json")
}

func (b *FileStore) readLog(filePath string) (*interfaces.AttendanceLog, error) {
	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, interfaces.ErrLogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	attendance, err := decodeLog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return attendance, nil
}

func (b *FileStore) writeFile(filePath string, data []byte) error {
	tmp, err := os.CreateTemp(b.baseDir, "."+filepath.Base(filePath)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to chmod file: %w", err)
	}

	if err := os.Rename(tmpName, filePath); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}
