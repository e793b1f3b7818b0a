package signin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/ruteri/event-signin/interfaces"
	"github.com/ruteri/event-signin/keys"
	"github.com/ruteri/event-signin/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2016, 10, 7, 1, 4, 9, 0, time.Local)

type testEnv struct {
	dir     string
	handler *Handler
	store   *storage.FileStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	keysPath := filepath.Join(dir, "keys.json")
	require.NoError(t, os.WriteFile(keysPath, []byte(`["H4CK1T", "other"]`), 0644))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.NewFileStore(dir, logger)
	require.NoError(t, err)

	handler, err := New("", keys.NewFileSource(keysPath), store, logger)
	require.NoError(t, err)
	handler.now = func() time.Time { return fixedTime }

	return &testEnv{dir: dir, handler: handler, store: store}
}

func validForm() interfaces.SignInForm {
	return interfaces.SignInForm{
		Secret: "H4CK1T",
		Major:  "CS",
		Name:   "Dave",
		Email:  "dave@mst.edu",
	}
}

func inputValue(t *testing.T, body []byte, name string) string {
	t.Helper()
	re := regexp.MustCompile(`name="` + name + `" value="([^"]*)"`)
	m := re.FindSubmatch(body)
	require.NotNil(t, m, "input %s not found", name)
	return string(m[1])
}

func isChecked(body []byte, name string) bool {
	re := regexp.MustCompile(`name="` + name + `" value="on"\s+checked`)
	return re.Match(body)
}

func TestHandleGet_EmptyForm(t *testing.T) {
	env := newTestEnv(t)

	body, err := env.handler.HandleGet()
	require.NoError(t, err)

	for _, field := range interfaces.RequiredFields {
		assert.Empty(t, inputValue(t, body, field), field)
	}
	for _, box := range []string{interfaces.FieldAddToCCDC, interfaces.FieldAddToCDT, interfaces.FieldAddToSigSec} {
		assert.False(t, isChecked(body, box), box)
	}
	assert.NotContains(t, string(body), `class="response"`)
}

func TestHandlePost_MissingFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(f *interfaces.SignInForm)
		message string
	}{
		{name: "missing secret", mutate: func(f *interfaces.SignInForm) { f.Secret = "" }, message: "secret is required"},
		{name: "missing major", mutate: func(f *interfaces.SignInForm) { f.Major = "" }, message: "major is required"},
		{name: "missing name", mutate: func(f *interfaces.SignInForm) { f.Name = "" }, message: "name is required"},
		{name: "blank name", mutate: func(f *interfaces.SignInForm) { f.Name = "  \t " }, message: "name is required"},
		{name: "missing email", mutate: func(f *interfaces.SignInForm) { f.Email = "" }, message: "email is required"},
		{name: "first missing field wins", mutate: func(f *interfaces.SignInForm) { f.Email = ""; f.Major = "" }, message: "major is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			form := validForm()
			form.AddToCDT = true
			tt.mutate(&form)

			result, err := env.handler.HandlePost(context.Background(), form, "127.0.0.1")
			require.NoError(t, err)

			assert.Equal(t, OutcomeMissingField, result.Outcome)
			assert.Equal(t, tt.message, result.Message)
			assert.Contains(t, string(result.Body), tt.message)
			assert.Nil(t, result.Record)

			// Entered values come back pre-filled
			assert.Equal(t, form.Email, inputValue(t, result.Body, "email"))
			assert.True(t, isChecked(result.Body, interfaces.FieldAddToCDT))
			assert.False(t, isChecked(result.Body, interfaces.FieldAddToCCDC))

			_, err = env.store.Fetch(context.Background(), "H4CK1T")
			assert.ErrorIs(t, err, interfaces.ErrLogNotFound)
		})
	}
}

func TestHandlePost_UnknownSecret(t *testing.T) {
	env := newTestEnv(t)
	form := validForm()
	form.Secret = "h4ck1t"

	result, err := env.handler.HandlePost(context.Background(), form, "127.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, OutcomeBadSecret, result.Outcome)
	assert.Contains(t, string(result.Body), "The secret was not recognized")
	assert.Equal(t, "h4ck1t", inputValue(t, result.Body, "secret"))

	entries, err := os.ReadDir(env.dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, "keys.json", e.Name(), "no log file may be written")
	}
}

func TestHandlePost_Success(t *testing.T) {
	env := newTestEnv(t)
	form := validForm()
	form.AddToSigSec = true

	result, err := env.handler.HandlePost(context.Background(), form, "10.1.2.3")
	require.NoError(t, err)

	assert.Equal(t, OutcomeSignedIn, result.Outcome)
	assert.Contains(t, string(result.Body), "Successfully signed in!")
	assert.Empty(t, inputValue(t, result.Body, "name"), "success page shows an empty form")

	log, err := env.store.Fetch(context.Background(), "H4CK1T")
	require.NoError(t, err)
	require.Len(t, log.Attendees, 1)

	assert.Equal(t, interfaces.AttendanceRecord{
		Secret:      "H4CK1T",
		Major:       "CS",
		Name:        "Dave",
		Email:       "dave@mst.edu",
		AddToCCDC:   false,
		AddToCDT:    false,
		AddToSigSec: true,
		Time:        "2016-10-07 01:04:09",
		IP:          "10.1.2.3",
	}, log.Attendees[0])
	assert.Equal(t, &log.Attendees[0], result.Record)
}

func TestHandlePost_CheckboxesRecorded(t *testing.T) {
	env := newTestEnv(t)
	form := validForm()
	form.AddToCCDC = true
	form.AddToCDT = true

	_, err := env.handler.HandlePost(context.Background(), form, "127.0.0.1")
	require.NoError(t, err)

	log, err := env.store.Fetch(context.Background(), "H4CK1T")
	require.NoError(t, err)
	require.Len(t, log.Attendees, 1)
	assert.True(t, log.Attendees[0].AddToCCDC)
	assert.True(t, log.Attendees[0].AddToCDT)
	assert.False(t, log.Attendees[0].AddToSigSec)
}

func TestHandlePost_SequentialSubmissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := validForm()
	first.Name = "First"
	second := validForm()
	second.Name = "Second"

	_, err := env.handler.HandlePost(ctx, first, "127.0.0.1")
	require.NoError(t, err)
	_, err = env.handler.HandlePost(ctx, second, "127.0.0.2")
	require.NoError(t, err)

	log, err := env.store.Fetch(ctx, "H4CK1T")
	require.NoError(t, err)
	require.Len(t, log.Attendees, 2)
	assert.Equal(t, "First", log.Attendees[0].Name)
	assert.Equal(t, "Second", log.Attendees[1].Name)
	assert.Equal(t, "127.0.0.2", log.Attendees[1].IP)
}

func TestHandlePost_KeysReloaded(t *testing.T) {
	env := newTestEnv(t)
	form := validForm()
	form.Secret = "NEWKEY"

	result, err := env.handler.HandlePost(context.Background(), form, "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeBadSecret, result.Outcome)

	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "keys.json"), []byte(`["NEWKEY"]`), 0644))

	result, err = env.handler.HandlePost(context.Background(), form, "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSignedIn, result.Outcome)
}

func TestHandlePost_KeysUnreadable(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "keys.json"), []byte(`["broken`), 0644))

	_, err := env.handler.HandlePost(context.Background(), validForm(), "127.0.0.1")
	assert.Error(t, err)
}

func TestRender_EscapesValues(t *testing.T) {
	env := newTestEnv(t)
	form := interfaces.SignInForm{
		Name:  `Robert "Bobby" <Tables>`,
		Major: `a&b`,
	}

	body, err := env.handler.Render(form, `<script>alert(1)</script>`)
	require.NoError(t, err)

	assert.NotContains(t, string(body), `"Bobby"`)
	assert.NotContains(t, string(body), `<script>`)
	assert.Contains(t, inputValue(t, body, "name"), "&#34;Bobby&#34;")
	assert.Contains(t, inputValue(t, body, "major"), "a&amp;b")
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Append(ctx context.Context, secret string, record interfaces.AttendanceRecord) error {
	return m.Called(ctx, secret, record).Error(0)
}

func (m *mockStore) Fetch(ctx context.Context, secret string) (*interfaces.AttendanceLog, error) {
	args := m.Called(ctx, secret)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*interfaces.AttendanceLog), args.Error(1)
}

func (m *mockStore) Available(ctx context.Context) bool { return true }
func (m *mockStore) Name() string                       { return "mock" }
func (m *mockStore) LocationURI() string                { return "mock:" }

func TestHandlePost_StoreFailure(t *testing.T) {
	dir := t.TempDir()
	keysPath := filepath.Join(dir, "keys.json")
	require.NoError(t, os.WriteFile(keysPath, []byte(`["H4CK1T"]`), 0644))

	store := new(mockStore)
	store.On("Append", mock.Anything, "H4CK1T", mock.Anything).Return(errors.New("disk full"))

	handler, err := New("", keys.NewFileSource(keysPath), store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	_, err = handler.HandlePost(context.Background(), validForm(), "127.0.0.1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	store.AssertExpectations(t)
}

func TestNew_Failures(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := new(mockStore)

	_, err := New("", keys.NewFileSource(filepath.Join(dir, "missing.json")), store, logger)
	assert.Error(t, err, "missing key file")

	keysPath := filepath.Join(dir, "keys.json")
	require.NoError(t, os.WriteFile(keysPath, []byte(`[]`), 0644))

	_, err = New(filepath.Join(dir, "missing.html"), keys.NewFileSource(keysPath), store, logger)
	assert.Error(t, err, "missing template")

	badTmpl := filepath.Join(dir, "bad.html")
	require.NoError(t, os.WriteFile(badTmpl, []byte(`{{.Name`), 0644))
	_, err = New(badTmpl, keys.NewFileSource(keysPath), store, logger)
	assert.Error(t, err, "unparsable template")
}

func TestNew_CustomTemplate(t *testing.T) {
	dir := t.TempDir()
	keysPath := filepath.Join(dir, "keys.json")
	require.NoError(t, os.WriteFile(keysPath, []byte(`[]`), 0644))
	tmplPath := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(tmplPath, []byte(`<p>{{.Response}}|{{.Name}}|{{if .SecChecked}}sec{{end}}</p>`), 0644))

	handler, err := New(tmplPath, keys.NewFileSource(keysPath), new(mockStore), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	body, err := handler.Render(interfaces.SignInForm{Name: "Ann", AddToSigSec: true}, "hi")
	require.NoError(t, err)
	assert.Equal(t, "<p>hi|Ann|sec</p>", string(body))
}
