package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/entrhq/pagerunner/pkg/capabilities"
	"github.com/entrhq/pagerunner/pkg/logging"
	"github.com/entrhq/pagerunner/pkg/page"
	"github.com/entrhq/pagerunner/pkg/wait"
)

// w3cElementKey is the W3C element reference key.
const w3cElementKey = "element-6066-11e4-a52e-4f735466cecf"

// legacyElementKey is returned by JSON wire protocol servers.
const legacyElementKey = "ELEMENT"

// ErrNoSuchElement is returned when a locator matches nothing.
var ErrNoSuchElement = errors.New("no such element")

// WebDriverError is an error response of a WebDriver server.
type WebDriverError struct {
	Status  int
	Code    string
	Message string
}

func (e *WebDriverError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("webdriver: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("webdriver: %s (status %d): %s", e.Code, e.Status, e.Message)
}

func (e *WebDriverError) Is(target error) bool {
	return target == ErrNoSuchElement && e.Code == "no such element"
}

// RemoteOptions configures NewRemote.
type RemoteOptions struct {
	// HTTP defaults to a client with a 60s timeout.
	HTTP *http.Client
	Log  Logger
	// Web rewrites id, name and class name locators to CSS selectors,
	// the only forms W3C browser servers accept besides xpath, link text
	// and tag name. Appium sessions keep the raw strategy.
	Web bool
}

// Remote is a W3C WebDriver session.
type Remote struct {
	baseURL   string
	sessionID string
	http      *http.Client
	log       Logger
	web       bool
}

type newSessionRequest struct {
	Capabilities struct {
		AlwaysMatch map[string]any `json:"alwaysMatch"`
	} `json:"capabilities"`
}

// NewRemote starts a session on the WebDriver server at executor.
func NewRemote(ctx context.Context, executor string, caps capabilities.Map, opts RemoteOptions) (*Remote, error) {
	if opts.HTTP == nil {
		opts.HTTP = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.Log == nil {
		opts.Log = logging.Nop()
	}

	r := &Remote{
		baseURL: strings.TrimRight(executor, "/"),
		http:    opts.HTTP,
		log:     opts.Log,
		web:     opts.Web,
	}

	var req newSessionRequest
	req.Capabilities.AlwaysMatch = caps
	if req.Capabilities.AlwaysMatch == nil {
		req.Capabilities.AlwaysMatch = map[string]any{}
	}

	var resp struct {
		Value struct {
			SessionID    string         `json:"sessionId"`
			Capabilities map[string]any `json:"capabilities"`
		} `json:"value"`
		// JSON wire protocol servers answer at the top level.
		SessionID string `json:"sessionId"`
	}
	if err := r.do(ctx, http.MethodPost, "/session", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	r.sessionID = resp.Value.SessionID
	if r.sessionID == "" {
		r.sessionID = resp.SessionID
	}
	if r.sessionID == "" {
		return nil, fmt.Errorf("failed to start session: no session id in response")
	}
	r.log.Debugf("Remote session %s started.", r.sessionID)
	return r, nil
}

// SessionID returns the WebDriver session id.
func (r *Remote) SessionID() string { return r.sessionID }

// Navigate opens url.
func (r *Remote) Navigate(ctx context.Context, url string) error {
	if err := r.do(ctx, http.MethodPost, r.path("/url"), map[string]string{"url": url}, nil); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// Find returns the first element matching l.
func (r *Remote) Find(ctx context.Context, l page.Locator) (page.Element, error) {
	using, value := l.By, l.Selector
	if r.web {
		using, value = browserLocator(l)
	}
	body := map[string]string{"using": string(using), "value": value}

	var resp struct {
		Value map[string]string `json:"value"`
	}
	if err := r.do(ctx, http.MethodPost, r.path("/element"), body, &resp); err != nil {
		return nil, fmt.Errorf("find %s: %w", l, err)
	}

	id := resp.Value[w3cElementKey]
	if id == "" {
		id = resp.Value[legacyElementKey]
	}
	if id == "" {
		return nil, fmt.Errorf("find %s: %w", l, ErrNoSuchElement)
	}
	return &remoteElement{r: r, id: id}, nil
}

// browserLocator maps the strategies browser drivers reject to CSS.
func browserLocator(l page.Locator) (page.Strategy, string) {
	switch l.By {
	case page.ByID:
		return page.ByCSS, fmt.Sprintf("[id=%q]", l.Selector)
	case page.ByName:
		return page.ByCSS, fmt.Sprintf("[name=%q]", l.Selector)
	case page.ByClassName:
		return page.ByCSS, "." + l.Selector
	}
	return l.By, l.Selector
}

// WaitFor polls until the element of l reaches state.
func (r *Remote) WaitFor(ctx context.Context, l page.Locator, state page.State, timeout time.Duration) (page.Element, error) {
	opts := wait.Options{Timeout: timeout, Message: fmt.Sprintf("%s to be %s", l, state)}
	return wait.For(ctx, opts, func(ctx context.Context) (page.Element, bool, error) {
		el, err := r.Find(ctx, l)
		if errors.Is(err, ErrNoSuchElement) {
			done := state == page.StateDetached || state == page.StateHidden
			return nil, done, nil
		}
		if err != nil {
			return nil, false, err
		}

		switch state {
		case page.StateAttached:
			return el, true, nil
		case page.StateDetached:
			return nil, false, nil
		}

		visible, err := el.Visible(ctx)
		if err != nil {
			if errors.Is(err, ErrStaleElement) {
				return nil, false, wait.Ignore(err)
			}
			return nil, false, err
		}
		if state == page.StateHidden {
			return nil, !visible, nil
		}
		return el, visible, nil
	})
}

// Quit deletes the session. Calling it again is a no-op.
func (r *Remote) Quit() error {
	if r.sessionID == "" {
		return nil
	}
	if err := r.do(context.Background(), http.MethodDelete, r.path(""), nil, nil); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	r.log.Debugf("Remote session %s deleted.", r.sessionID)
	r.sessionID = ""
	return nil
}

func (r *Remote) path(suffix string) string {
	return "/session/" + r.sessionID + suffix
}

func (r *Remote) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}

func decodeError(status int, body []byte) error {
	var payload struct {
		Value struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		} `json:"value"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Value.Error == "" {
		return &WebDriverError{Status: status, Message: strings.TrimSpace(string(body))}
	}
	return &WebDriverError{Status: status, Code: payload.Value.Error, Message: payload.Value.Message}
}

// ErrStaleElement is returned when an element is no longer attached.
var ErrStaleElement = errors.New("stale element reference")

type remoteElement struct {
	r  *Remote
	id string
}

func (e *remoteElement) path(suffix string) string {
	return e.r.path("/element/" + e.id + suffix)
}

func (e *remoteElement) call(ctx context.Context, method, suffix string, body, result any) error {
	err := e.r.do(ctx, method, e.path(suffix), body, result)
	var wdErr *WebDriverError
	if errors.As(err, &wdErr) && wdErr.Code == "stale element reference" {
		return fmt.Errorf("%w: %s", ErrStaleElement, wdErr.Message)
	}
	return err
}

func (e *remoteElement) Click(ctx context.Context) error {
	return e.call(ctx, http.MethodPost, "/click", struct{}{}, nil)
}

func (e *remoteElement) Fill(ctx context.Context, value string) error {
	if err := e.call(ctx, http.MethodPost, "/clear", struct{}{}, nil); err != nil {
		return err
	}
	body := map[string]any{
		"text":  value,
		"value": strings.Split(value, ""),
	}
	return e.call(ctx, http.MethodPost, "/value", body, nil)
}

func (e *remoteElement) Text(ctx context.Context) (string, error) {
	var resp struct {
		Value string `json:"value"`
	}
	if err := e.call(ctx, http.MethodGet, "/text", nil, &resp); err != nil {
		return "", err
	}
	return resp.Value, nil
}

func (e *remoteElement) Visible(ctx context.Context) (bool, error) {
	var resp struct {
		Value bool `json:"value"`
	}
	if err := e.call(ctx, http.MethodGet, "/displayed", nil, &resp); err != nil {
		return false, err
	}
	return resp.Value, nil
}

// RedactURL hides the password of a URL carrying credentials.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
