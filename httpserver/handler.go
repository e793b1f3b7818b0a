package httpserver

import (
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/ruteri/event-signin/interfaces"
	"github.com/ruteri/event-signin/metrics"
	"github.com/ruteri/event-signin/signin"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// Handler adapts the sign-in form to HTTP.
type Handler struct {
	signin  *signin.Handler
	metrics *metrics.MetricsServer
	log     *slog.Logger
}

// NewHandler creates a new HTTP request handler. metricsSrv may be nil.
func NewHandler(signinHandler *signin.Handler, metricsSrv *metrics.MetricsServer, log *slog.Logger) *Handler {
	return &Handler{
		signin:  signinHandler,
		metrics: metricsSrv,
		log:     log,
	}
}

// HandleForm serves the empty sign-in form.
//
// URL format: GET /
func (h *Handler) HandleForm(w http.ResponseWriter, r *http.Request) {
	body, err := h.signin.HandleGet()
	if err != nil {
		h.log.Error("Failed to render sign-in form", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeHTML(w, body)
}

// HandleSubmit processes a sign-in submission.
//
// URL format: POST /
// Request body: urlencoded form with secret, major, name, email and the
// optional add_to_ccdc, add_to_cdt, add_to_sig_sec checkboxes.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := r.ParseForm(); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.log.Warn("Failed to parse form", "err", err)
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	form := parseSignInForm(r)
	ip := clientIP(r)

	result, err := h.signin.HandlePost(r.Context(), form, ip)
	if err != nil {
		h.observe("error")
		h.log.Error("Sign-in failed", "err", err, slog.String("ip", ip))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.observe(string(result.Outcome))
	writeHTML(w, result.Body)
}

func (h *Handler) observe(result string) {
	if h.metrics != nil {
		h.metrics.ObserveSubmission(result)
	}
}

// parseSignInForm reads the first value of each text field. Checkboxes count
// as set whenever their name was submitted, whatever the value.
func parseSignInForm(r *http.Request) interfaces.SignInForm {
	values := r.PostForm
	return interfaces.SignInForm{
		Secret:      values.Get(interfaces.FieldSecret),
		Major:       values.Get(interfaces.FieldMajor),
		Name:        values.Get(interfaces.FieldName),
		Email:       values.Get(interfaces.FieldEmail),
		AddToCCDC:   values.Has(interfaces.FieldAddToCCDC),
		AddToCDT:    values.Has(interfaces.FieldAddToCDT),
		AddToSigSec: values.Has(interfaces.FieldAddToSigSec),
	}
}

// clientIP strips the port from RemoteAddr. RealIP middleware may already
// have replaced it with a bare address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeHTML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
