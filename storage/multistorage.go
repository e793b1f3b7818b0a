package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/ruteri/event-signin/interfaces"
)

// MultiStore implements interfaces.AttendanceStore on top of several stores,
// writing to all of them and reading from the first one that answers.
type MultiStore struct {
	stores []interfaces.AttendanceStore
	log    *slog.Logger
}

// NewMultiStore creates a new multi-store with fallback.
func NewMultiStore(stores []interfaces.AttendanceStore, logger *slog.Logger) *MultiStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &MultiStore{
		stores: stores,
		log:    logger,
	}
}

// Fetch returns the log from the first available store that has one.
// ErrLogNotFound is returned only if every store that answered reported it missing.
func (m *MultiStore) Fetch(ctx context.Context, secret string) (*interfaces.AttendanceLog, error) {
	start := time.Now()
	var errs *multierror.Error
	failed, notFound := 0, 0

	for _, store := range m.stores {
		if !store.Available(ctx) {
			m.log.Debug("Store unavailable", slog.String("store_name", store.Name()))
			continue
		}

		attendance, err := store.Fetch(ctx, secret)
		if err == nil {
			m.log.Debug("Fetched attendance log",
				slog.String("store_name", store.Name()),
				slog.Duration("duration", time.Since(start)))
			return attendance, nil
		}

		failed++
		if errors.Is(err, interfaces.ErrLogNotFound) {
			notFound++
		}
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", store.Name(), err))
		m.log.Debug("Failed to fetch from store",
			slog.String("store_name", store.Name()),
			"err", err)
	}

	if notFound > 0 && notFound == failed {
		return nil, interfaces.ErrLogNotFound
	}
	if failed == 0 {
		return nil, fmt.Errorf("no store available to fetch attendance log: %w", interfaces.ErrBackendUnavailable)
	}

	m.log.Error("All stores failed to fetch attendance log",
		slog.Int("failed_stores", failed),
		slog.Duration("duration", time.Since(start)))

	return nil, fmt.Errorf("all stores failed to fetch attendance log: %w", errs.ErrorOrNil())
}

// Append writes record to every available store. It succeeds if at least one
// store accepted the record.
func (m *MultiStore) Append(ctx context.Context, secret string, record interfaces.AttendanceRecord) error {
	start := time.Now()
	var errs *multierror.Error
	succeeded, failed := 0, 0

	for _, store := range m.stores {
		if !store.Available(ctx) {
			m.log.Debug("Store unavailable", slog.String("store_name", store.Name()))
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", store.Name(), interfaces.ErrBackendUnavailable))
			failed++
			continue
		}

		if err := store.Append(ctx, secret, record); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", store.Name(), err))
			failed++
			m.log.Warn("Failed to append to store",
				slog.String("store_name", store.Name()),
				"err", err)
			continue
		}
		succeeded++
	}

	if succeeded == 0 {
		if failed == 0 {
			return errors.New("no stores configured")
		}
		m.log.Error("All stores failed to append attendance record",
			slog.Int("failed_stores", failed),
			slog.Duration("duration", time.Since(start)))
		return fmt.Errorf("all stores failed to append attendance record: %w", errs)
	}

	if failed > 0 {
		m.log.Warn("Attendance record stored partially",
			slog.Int("succeeded", succeeded),
			slog.Int("failed", failed))
	}

	m.log.Info("Stored attendance record",
		slog.Int("stores", succeeded),
		slog.Duration("duration", time.Since(start)))

	return nil
}

// Available checks if any store is available
func (m *MultiStore) Available(ctx context.Context) bool {
	for _, store := range m.stores {
		if store.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns the name of this store
func (m *MultiStore) Name() string {
	return "multi-store"
}

// LocationURI returns a combined URI of all member stores.
func (m *MultiStore) LocationURI() string {
	var locations []string
	for _, store := range m.stores {
		locations = append(locations, store.LocationURI())
	}

	return "multi:[" + strings.Join(locations, ",") + "]"
}
