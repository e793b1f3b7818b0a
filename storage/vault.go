package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/ruteri/event-signin/interfaces"
)

// maxCASAttempts bounds how often an append is retried after losing a
// check-and-set race to another writer.
const maxCASAttempts = 5

// VaultStore implements an attendance store using the HashiCorp Vault KV v2
// secrets engine. The log for a secret is the entry <mount>/data/<path>/<secret>.
type VaultStore struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	locks       keyedMutex
	log         *slog.Logger
	locationURI string
}

// NewVaultStore creates a new Vault attendance store.
//
// Parameters:
//   - address: Vault server address (e.g. https://vault.example.com:8200)
//   - mountPath: KV v2 mount path (e.g. "secret")
//   - dataPath: Path within the mount (e.g. "signin")
//   - token: Vault token; when empty the client falls back to VAULT_TOKEN
//   - log: Structured logger for operational insights
func NewVaultStore(address, mountPath, dataPath, token string, log *slog.Logger) (*VaultStore, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.HttpClient = &http.Client{
		Timeout: 30 * time.Second,
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if token != "" {
		client.SetToken(token)
	}

	mountPath = strings.Trim(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")
	if mountPath == "" {
		return nil, errors.New("vault mount path is required")
	}

	return &VaultStore{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", strings.TrimPrefix(strings.TrimPrefix(address, "https://"), "http://"), mountPath, dataPath),
	}, nil
}

// Fetch retrieves the log for secret. Returns ErrLogNotFound if the entry
// doesn't exist or its latest version was deleted.
func (b *VaultStore) Fetch(ctx context.Context, secret string) (*interfaces.AttendanceLog, error) {
	if err := validateSecret(secret); err != nil {
		return nil, err
	}
	attendance, _, err := b.read(ctx, b.entryPath(secret))
	return attendance, err
}

// Append adds record to the log for secret. The write is conditioned on the
// version that was read; on a check-and-set conflict the log is re-read and
// the append retried.
func (b *VaultStore) Append(ctx context.Context, secret string, record interfaces.AttendanceRecord) error {
	if err := validateSecret(secret); err != nil {
		return err
	}

	start := time.Now()
	path := b.entryPath(secret)

	unlock := b.locks.Lock(secret)
	defer unlock()

	var lastErr error
	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		attendance, version, err := b.read(ctx, path)
		if errors.Is(err, interfaces.ErrLogNotFound) {
			attendance = interfaces.NewAttendanceLog()
		} else if err != nil {
			return err
		}

		attendance.Attendees = append(attendance.Attendees, record)

		_, err = b.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
			"options": map[string]interface{}{
				"cas": version,
			},
			"data": attendance,
		})
		if err == nil {
			b.log.Info("Appended attendance record in Vault",
				slog.String("path", path),
				slog.Int("attendees", len(attendance.Attendees)),
				slog.Duration("duration", time.Since(start)))
			return nil
		}

		if !isCASConflict(err) {
			b.log.Error("Failed to write to Vault",
				slog.String("path", path),
				"err", err)
			return fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
		}

		lastErr = err
		b.log.Debug("Vault check-and-set conflict, retrying",
			slog.String("path", path),
			slog.Int("attempt", attempt))
	}

	return fmt.Errorf("failed to append to %s after %d attempts: %w", path, maxCASAttempts, lastErr)
}

// Available checks if the Vault store is accessible.
// It uses the health endpoint to verify that Vault is initialized and unsealed.
func (b *VaultStore) Available(ctx context.Context) bool {
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := b.client.Sys().HealthWithContext(healthCtx)
	if err != nil {
		b.log.Debug("Vault health check failed", "err", err)
		return false
	}

	if !health.Initialized || health.Sealed {
		b.log.Debug("Vault is not available",
			slog.Bool("initialized", health.Initialized),
			slog.Bool("sealed", health.Sealed))
		return false
	}

	return true
}

// Name returns a unique identifier for this store.
func (b *VaultStore) Name() string {
	return fmt.Sprintf("vault-%s-%s", b.mountPath, b.dataPath)
}

// LocationURI returns the URI that identifies this store.
func (b *VaultStore) LocationURI() string {
	return b.locationURI
}

func (b *VaultStore) entryPath(secret string) string {
	if b.dataPath == "" {
		return fmt.Sprintf("%s/data/%s", b.mountPath, secret)
	}
	return fmt.Sprintf("%s/data/%s/%s", b.mountPath, b.dataPath, secret)
}

// read returns the log stored at path together with its KV version. A
// missing entry yields ErrLogNotFound and version 0, which is also the
// check-and-set value that only succeeds if the entry still doesn't exist.
func (b *VaultStore) read(ctx context.Context, path string) (*interfaces.AttendanceLog, int64, error) {
	secret, err := b.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		b.log.Error("Failed to read from Vault",
			slog.String("path", path),
			"err", err)
		return nil, 0, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, 0, interfaces.ErrLogNotFound
	}

	version, err := kvVersion(secret.Data["metadata"])
	if err != nil {
		return nil, 0, fmt.Errorf("invalid metadata in Vault response for %s: %w", path, err)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok || data == nil {
		// Latest version deleted: the entry exists but holds nothing.
		return nil, version, interfaces.ErrLogNotFound
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to re-encode Vault data: %w", err)
	}
	attendance, err := decodeLog(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	return attendance, version, nil
}

func kvVersion(metadata interface{}) (int64, error) {
	m, ok := metadata.(map[string]interface{})
	if !ok {
		return 0, errors.New("metadata missing")
	}
	switch v := m["version"].(type) {
	case json.Number:
		return v.Int64()
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("unexpected version type %T", v)
	}
}

func isCASConflict(err error) bool {
	var respErr *api.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusBadRequest {
		for _, e := range respErr.Errors {
			if strings.Contains(e, "check-and-set") {
				return true
			}
		}
	}
	return strings.Contains(err.Error(), "check-and-set parameter did not match")
}
