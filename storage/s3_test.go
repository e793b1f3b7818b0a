package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ruteri/event-signin/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves the handful of path-style S3 calls the store makes.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{bucket: bucket, objects: map[string][]byte{}}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if bucket != f.bucket {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchBucket</Code><Message>no bucket</Message></Error>`)
		return
	}

	switch {
	case r.Method == http.MethodHead && key == "":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	case r.Method == http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		f.objects[key] = data
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) object(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	return data, ok
}

func newTestS3Store(t *testing.T, bucket string) (*S3Store, *fakeS3) {
	t.Helper()
	fake := newFakeS3("attendance")
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	store, err := NewS3Store(S3Options{
		Bucket:    bucket,
		Prefix:    "events",
		Endpoint:  server.URL,
		AccessKey: "AK",
		SecretKey: "SK",
		PathStyle: true,
	}, discardLogger())
	require.NoError(t, err)
	return store, fake
}

func TestS3Store_AppendAndFetch(t *testing.T) {
	store, fake := newTestS3Store(t, "attendance")
	ctx := context.Background()

	assert.True(t, store.Available(ctx))

	_, err := store.Fetch(ctx, "H4CK1T")
	assert.ErrorIs(t, err, interfaces.ErrLogNotFound)

	require.NoError(t, store.Append(ctx, "H4CK1T", testRecord("H4CK1T", "first")))
	require.NoError(t, store.Append(ctx, "H4CK1T", testRecord("H4CK1T", "second")))

	raw, ok := fake.object("events/H4CK1T.json")
	require.True(t, ok)
	assert.Contains(t, string(raw), `"attendees": [`)

	log, err := store.Fetch(ctx, "H4CK1T")
	require.NoError(t, err)
	require.Len(t, log.Attendees, 2)
	assert.Equal(t, "first", log.Attendees[0].Name)
	assert.Equal(t, "second", log.Attendees[1].Name)
}

func TestS3Store_ConcurrentAppends(t *testing.T) {
	store, _ := newTestS3Store(t, "attendance")
	ctx := context.Background()

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Append(ctx, "busy", testRecord("busy", "x")))
		}()
	}
	wg.Wait()

	log, err := store.Fetch(ctx, "busy")
	require.NoError(t, err)
	assert.Len(t, log.Attendees, writers)
}

func TestS3Store_MissingBucket(t *testing.T) {
	store, _ := newTestS3Store(t, "nope")
	ctx := context.Background()

	assert.False(t, store.Available(ctx))
	assert.Error(t, store.Append(ctx, "key", testRecord("key", "x")))
}
