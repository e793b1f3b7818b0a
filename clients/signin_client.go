package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ruteri/event-signin/interfaces"
)

var responseRe = regexp.MustCompile(`(?s)<p class="response">(.*?)</p>`)

// SignInClient talks to the public listener of a sign-in server.
type SignInClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSignInClient creates a client for the server at baseURL
// (e.g., "http://localhost:8080"). The request timeout defaults to 30 seconds.
func NewSignInClient(baseURL string, timeout ...time.Duration) *SignInClient {
	clientTimeout := 30 * time.Second
	if len(timeout) > 0 {
		clientTimeout = timeout[0]
	}

	return &SignInClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: clientTimeout,
		},
	}
}

// Status queries the readiness probe and returns the reported status
// ("ready" or "not ready").
func (c *SignInClient) Status(ctx context.Context) (string, error) {
	return c.getStatus(ctx, "/readyz", http.StatusOK, http.StatusServiceUnavailable)
}

// Drain marks the server as not ready.
func (c *SignInClient) Drain(ctx context.Context) (string, error) {
	return c.getStatus(ctx, "/drain", http.StatusOK)
}

// Undrain marks the server as ready again.
func (c *SignInClient) Undrain(ctx context.Context) (string, error) {
	return c.getStatus(ctx, "/undrain", http.StatusOK)
}

func (c *SignInClient) getStatus(ctx context.Context, path string, accepted ...int) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	if !containsCode(accepted, resp.StatusCode) {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%s request failed with code %d: %s", path, resp.StatusCode, string(body))
	}

	var result struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to parse %s response: %w", path, err)
	}

	return result.Status, nil
}

// Submit posts form and returns the message the server displayed above the
// re-rendered form. A rejected submission (missing field, unknown secret) is
// not an error; callers compare the message.
func (c *SignInClient) Submit(ctx context.Context, form interfaces.SignInForm) (string, error) {
	values := url.Values{
		interfaces.FieldSecret: {form.Secret},
		interfaces.FieldMajor:  {form.Major},
		interfaces.FieldName:   {form.Name},
		interfaces.FieldEmail:  {form.Email},
	}
	for field, set := range map[string]bool{
		interfaces.FieldAddToCCDC:   form.AddToCCDC,
		interfaces.FieldAddToCDT:    form.AddToCDT,
		interfaces.FieldAddToSigSec: form.AddToSigSec,
	} {
		if set {
			values.Set(field, "on")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/", strings.NewReader(values.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read submit response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("submit request failed with code %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	m := responseRe.FindSubmatch(body)
	if m == nil {
		return "", nil
	}
	return html.UnescapeString(strings.TrimSpace(string(m[1]))), nil
}

func containsCode(codes []int, code int) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
