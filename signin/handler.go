package signin

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/ruteri/event-signin/interfaces"
)

//go:embed signin.html
var defaultTemplate string

// Messages shown above the form.
const (
	MsgSignedIn        = "Successfully signed in!"
	MsgUnknownSecret   = "The secret was not recognized"
	msgRequiredPattern = "%s is required"
)

// Outcome classifies a processed submission.
type Outcome string

const (
	OutcomeSignedIn     Outcome = "ok"
	OutcomeMissingField Outcome = "missing_field"
	OutcomeBadSecret    Outcome = "bad_secret"
)

// Result is the page produced for a submission.
type Result struct {
	Outcome Outcome
	Message string
	Body    []byte

	// Record is set when the submission was stored.
	Record *interfaces.AttendanceRecord
}

// pageData is what the template sees.
type pageData struct {
	Response string

	Secret string
	Major  string
	Name   string
	Email  string

	CCDCChecked bool
	CDTChecked  bool
	SecChecked  bool
}

// Handler serves the sign-in page.
type Handler struct {
	tmpl  *template.Template
	keys  interfaces.KeySource
	store interfaces.AttendanceStore
	log   *slog.Logger
	now   func() time.Time
}

// New creates a sign-in handler.
//
// templatePath selects the page template; the embedded default is used when
// it is empty. The key list is read once here so that a missing or malformed
// key file stops the server at startup instead of at the first submission.
func New(templatePath string, keys interfaces.KeySource, store interfaces.AttendanceStore, log *slog.Logger) (*Handler, error) {
	tmpl, err := loadTemplate(templatePath)
	if err != nil {
		return nil, err
	}

	list, err := keys.Keys(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to load secret keys: %w", err)
	}
	log.Info("Loaded secret keys", slog.Int("count", len(list)))

	return &Handler{
		tmpl:  tmpl,
		keys:  keys,
		store: store,
		log:   log,
		now:   time.Now,
	}, nil
}

func loadTemplate(path string) (*template.Template, error) {
	text := defaultTemplate
	name := "signin.html"
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read template: %w", err)
		}
		text = string(data)
		name = path
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	return tmpl, nil
}

// Render fills the template with the values of form and the response message.
func (h *Handler) Render(form interfaces.SignInForm, response string) ([]byte, error) {
	data := pageData{
		Response:    response,
		Secret:      form.Secret,
		Major:       form.Major,
		Name:        form.Name,
		Email:       form.Email,
		CCDCChecked: form.AddToCCDC,
		CDTChecked:  form.AddToCDT,
		SecChecked:  form.AddToSigSec,
	}

	var buf bytes.Buffer
	if err := h.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}
	return buf.Bytes(), nil
}

// HandleGet returns the empty form.
func (h *Handler) HandleGet() ([]byte, error) {
	return h.Render(interfaces.SignInForm{}, "")
}

// HandlePost validates a submission and, if it is acceptable, appends it to
// the attendance log of its secret.
//
// Rejected submissions are not errors: the form comes back with the values
// the user entered and a message explaining what is wrong. An error is
// returned only when the key list cannot be read or the record cannot be stored.
func (h *Handler) HandlePost(ctx context.Context, form interfaces.SignInForm, clientIP string) (*Result, error) {
	for _, field := range interfaces.RequiredFields {
		if strings.TrimSpace(form.Field(field)) == "" {
			return h.reject(form, OutcomeMissingField, fmt.Sprintf(msgRequiredPattern, field))
		}
	}

	list, err := h.keys.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reload secret keys: %w", err)
	}
	if !slices.Contains(list, form.Secret) {
		h.log.Info("Rejected sign-in with unknown secret", slog.String("ip", clientIP))
		return h.reject(form, OutcomeBadSecret, MsgUnknownSecret)
	}

	record := interfaces.AttendanceRecord{
		Secret:      form.Secret,
		Major:       form.Major,
		Name:        form.Name,
		Email:       form.Email,
		AddToCCDC:   form.AddToCCDC,
		AddToCDT:    form.AddToCDT,
		AddToSigSec: form.AddToSigSec,
		Time:        interfaces.FormatTime(h.now()),
		IP:          clientIP,
	}

	if err := h.store.Append(ctx, form.Secret, record); err != nil {
		return nil, fmt.Errorf("failed to record attendance: %w", err)
	}

	h.log.Info("Attendee signed in",
		slog.String("name", record.Name),
		slog.String("ip", record.IP),
		slog.Bool("add_to_ccdc", record.AddToCCDC),
		slog.Bool("add_to_cdt", record.AddToCDT),
		slog.Bool("add_to_sig_sec", record.AddToSigSec))

	body, err := h.Render(interfaces.SignInForm{}, MsgSignedIn)
	if err != nil {
		return nil, err
	}
	return &Result{Outcome: OutcomeSignedIn, Message: MsgSignedIn, Body: body, Record: &record}, nil
}

func (h *Handler) reject(form interfaces.SignInForm, outcome Outcome, message string) (*Result, error) {
	body, err := h.Render(form, message)
	if err != nil {
		return nil, err
	}
	return &Result{Outcome: outcome, Message: message, Body: body}, nil
}
