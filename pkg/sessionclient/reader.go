// Package sessionclient reads the auth service's session from a client
// process, the way a browser front end would.
package sessionclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Status of the locally known session.
type Status int

const (
	Pending Status = iota
	Authenticated
	Unauthenticated
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// User is the identity returned by get-session.
type User struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Image    string `json:"image,omitempty"`
}

// State is a snapshot of the reader.
type State struct {
	Status    Status
	User      *User
	ExpiresAt time.Time
}

type sessionResponse struct {
	Session *struct {
		UserID    string    `json:"userId"`
		ExpiresAt time.Time `json:"expiresAt"`
	} `json:"session"`
	User *User `json:"user"`
}

// Reader tracks one client's session. It never retries; callers decide when
// to Refresh.
type Reader struct {
	base     *url.URL
	basePath string
	client   *http.Client
	token    string

	mu    sync.RWMutex
	state State
}

// Option configures a Reader.
type Option func(*Reader)

// WithHTTPClient replaces the default client. A client without a cookie jar
// gets one.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Reader) { r.client = c }
}

// WithBasePath sets the auth route prefix (default /api/auth).
func WithBasePath(p string) Option {
	return func(r *Reader) { r.basePath = "/" + strings.Trim(p, "/") }
}

// WithToken sends token as a bearer credential instead of relying on cookies.
func WithToken(token string) Option {
	return func(r *Reader) { r.token = token }
}

// New returns a Reader for the service at baseURL in the Pending state.
func New(baseURL string, opts ...Option) (*Reader, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("sessionclient: invalid base url %q", baseURL)
	}
	r := &Reader{base: u, basePath: "/api/auth", state: State{Status: Pending}}
	for _, o := range opts {
		o(r)
	}
	if r.client == nil {
		r.client = &http.Client{Timeout: 10 * time.Second}
	}
	if r.client.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		r.client.Jar = jar
	}
	return r, nil
}

// CurrentSession returns the last known state.
func (r *Reader) CurrentSession() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Jar exposes the cookie jar so callers can seed a session cookie.
func (r *Reader) Jar() http.CookieJar { return r.client.Jar }

// SignInURL is the address a browser navigates to for provider sign-in.
func (r *Reader) SignInURL(provider string) string {
	return r.endpoint("/sign-in/social/" + url.PathEscape(provider))
}

// Refresh fetches the session once. A transport or decoding failure leaves
// the reader Unauthenticated and is returned.
func (r *Reader) Refresh(ctx context.Context) (State, error) {
	r.set(State{Status: Pending})

	req, err := r.request(ctx, http.MethodGet, "/get-session")
	if err != nil {
		return r.set(State{Status: Unauthenticated}), err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return r.set(State{Status: Unauthenticated}), fmt.Errorf("sessionclient: get-session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return r.set(State{Status: Unauthenticated}), statusError("get-session", resp)
	}
	var body sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return r.set(State{Status: Unauthenticated}), fmt.Errorf("sessionclient: decode session: %w", err)
	}
	if body.Session == nil || body.User == nil {
		return r.set(State{Status: Unauthenticated}), nil
	}
	return r.set(State{Status: Authenticated, User: body.User, ExpiresAt: body.Session.ExpiresAt}), nil
}

// SignOut asks the service to revoke the session, then forgets local
// credentials whatever the outcome.
func (r *Reader) SignOut(ctx context.Context) error {
	defer r.clear()

	req, err := r.request(ctx, http.MethodPost, "/sign-out")
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("sessionclient: sign-out: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError("sign-out", resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (r *Reader) clear() {
	var expired []*http.Cookie
	for _, c := range r.client.Jar.Cookies(r.base) {
		expired = append(expired, &http.Cookie{Name: c.Name, Value: "", Path: "/", MaxAge: -1})
	}
	if len(expired) > 0 {
		r.client.Jar.SetCookies(r.base, expired)
	}
	r.mu.Lock()
	r.token = ""
	r.state = State{Status: Unauthenticated}
	r.mu.Unlock()
}

func (r *Reader) set(s State) State {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	return s
}

func (r *Reader) endpoint(path string) string {
	return r.base.String() + r.basePath + path
}

func (r *Reader) request(ctx context.Context, method, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, r.endpoint(path), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	r.mu.RLock()
	token := r.token
	r.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// ErrStatus is wrapped by errors for unexpected HTTP statuses.
var ErrStatus = errors.New("unexpected status")

func statusError(op string, resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	if body.Error != "" {
		return fmt.Errorf("sessionclient: %s: %w %d (%s)", op, ErrStatus, resp.StatusCode, body.Error)
	}
	return fmt.Errorf("sessionclient: %s: %w %d", op, ErrStatus, resp.StatusCode)
}
