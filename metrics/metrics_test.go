package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ruteri/event-signin/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	interfaces.AttendanceStore
	err   error
	calls int
}

func (s *stubStore) Append(ctx context.Context, secret string, record interfaces.AttendanceRecord) error {
	s.calls++
	return s.err
}

func TestObserveSubmission(t *testing.T) {
	m, err := New("signin", "127.0.0.1:0")
	require.NoError(t, err)

	m.ObserveSubmission("ok")
	m.ObserveSubmission("ok")
	m.ObserveSubmission("bad_secret")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.submissions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("bad_secret")))
}

func TestInstrumentStore(t *testing.T) {
	m, err := New("signin", "127.0.0.1:0")
	require.NoError(t, err)

	inner := &stubStore{err: errors.New("boom")}
	store := m.InstrumentStore(inner)

	err = store.Append(context.Background(), "k", interfaces.AttendanceRecord{})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, testutil.CollectAndCount(m.appendDuration))
}

func TestHandler_Exposition(t *testing.T) {
	m, err := New("signin", "127.0.0.1:0")
	require.NoError(t, err)
	m.ObserveSubmission("missing_field")

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `signin_submissions_total{result="missing_field"} 1`)
	assert.Contains(t, string(body), "signin_append_duration_seconds_bucket")
}
