// Package session owns one virtual user's transport state: cookie jar,
// current URL and last response body, carried across an entire journey.
package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxBodySize limits how much of a response body is retained for extraction.
const maxBodySize = 10 * 1024 * 1024 // 10MB

// Page is the surfaced result of one exchange: final URL after redirects,
// status of the last response, and the raw body for extraction.
// A non-2xx status is data, not an error; the flow decides whether it is fatal.
type Page struct {
	StatusCode int
	URL        *url.URL
	Body       []byte
}

// OK reports whether the exchange landed on a success status. Redirects are
// followed by the transport, so anything outside 2xx here is a failure.
func (p *Page) OK() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// Path returns the path of the final URL.
func (p *Page) Path() string {
	if p.URL == nil {
		return ""
	}
	return p.URL.Path
}

// BasicAuth holds credentials applied to selected requests (signup endpoints
// sit behind basic auth in some deployments).
type BasicAuth struct {
	User string
	Pass string
}

// Options configures a Session.
type Options struct {
	Timeout time.Duration // transport deadline; zero means 30s
	Auth    *BasicAuth    // only applied by VisitWithAuth
	Debug   *DebugLogger  // nil disables request/response logging
}

// Session is exclusively owned by one virtual user and is not safe for
// concurrent use. Cookies persist across Visit calls; the last page is
// retained for token re-extraction before the next submission.
type Session struct {
	ID     string
	base   *url.URL
	client *http.Client
	auth   *BasicAuth
	debug  *DebugLogger
	last   *Page
}

// New creates a Session against the target base URL with a fresh cookie jar.
func New(baseURL string, opts Options) (*Session, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", baseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Session{
		ID:   uuid.NewString(),
		base: base,
		client: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		auth:  opts.Auth,
		debug: opts.Debug,
	}, nil
}

// Visit performs one exchange: resolves ref against the base URL, sends the
// form (urlencoded for non-GET), follows redirects, and captures the final
// URL and body. Only transport-level failures return an error.
func (s *Session) Visit(ctx context.Context, method, ref string, form url.Values) (*Page, error) {
	return s.visit(ctx, method, ref, form, false)
}

// VisitWithAuth is Visit with the session's basic-auth credentials attached,
// when configured. Signup flows use this; everything else uses Visit.
func (s *Session) VisitWithAuth(ctx context.Context, method, ref string, form url.Values) (*Page, error) {
	return s.visit(ctx, method, ref, form, true)
}

func (s *Session) visit(ctx context.Context, method, ref string, form url.Values, withAuth bool) (*Page, error) {
	target, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if method != http.MethodGet && form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building %s %s: %w", method, target, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if withAuth && s.auth != nil {
		req.SetBasicAuth(s.auth.User, s.auth.Pass)
	}

	s.debug.LogRequest(s.ID, req, form)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.debug.LogError(s.ID, err.Error(), time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	_, _ = io.Copy(io.Discard, resp.Body) // drain so the connection is reused

	page := &Page{
		StatusCode: resp.StatusCode,
		URL:        resp.Request.URL,
		Body:       raw,
	}
	s.last = page

	s.debug.LogResponse(s.ID, resp, raw, time.Since(start))
	return page, nil
}

// Last returns the most recent page, or nil before the first Visit.
// Tokens must be re-extracted from here immediately before each submission;
// the session never caches extracted values.
func (s *Session) Last() *Page {
	return s.last
}

// CurrentURL returns the final URL of the most recent exchange.
func (s *Session) CurrentURL() string {
	if s.last == nil || s.last.URL == nil {
		return ""
	}
	return s.last.URL.String()
}

func (s *Session) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parsing %q: %w", ref, err)
	}
	return s.base.ResolveReference(u).String(), nil
}
