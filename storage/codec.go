package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ruteri/event-signin/interfaces"
)

// encodeLog renders a log the way it is stored on every backend: JSON
// indented with four spaces and an empty list instead of null.
func encodeLog(log *interfaces.AttendanceLog) ([]byte, error) {
	if log.Attendees == nil {
		log.Attendees = []interfaces.AttendanceRecord{}
	}
	data, err := json.MarshalIndent(log, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode attendance log: %w", err)
	}
	return append(data, '\n'), nil
}

func decodeLog(data []byte) (*interfaces.AttendanceLog, error) {
	log := interfaces.NewAttendanceLog()
	if err := json.Unmarshal(data, log); err != nil {
		return nil, fmt.Errorf("failed to decode attendance log: %w", err)
	}
	if log.Attendees == nil {
		log.Attendees = []interfaces.AttendanceRecord{}
	}
	return log, nil
}

// validateSecret rejects secrets that cannot be used as a single path element.
func validateSecret(secret string) error {
	if secret == "" || secret == "." || secret == ".." ||
		strings.ContainsAny(secret, `/\`) || filepath.Base(secret) != secret {
		return fmt.Errorf("secret %q cannot be used as a log name", secret)
	}
	return nil
}

// keyedMutex hands out one mutex per key and forgets it once nobody holds it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

// Lock blocks until key is free and returns the matching unlock function.
func (m *keyedMutex) Lock(key string) func() {
	m.mu.Lock()
	if m.locks == nil {
		m.locks = make(map[string]*keyLock)
	}
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}
