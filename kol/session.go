// Package kol provides an authenticated client for the Kingdom of Loathing
// website. The site has no formal API: state lives in a session cookie plus a
// per-session request token, sessions expire without warning, and the whole
// site goes down for nightly rollover. The Session type owns all of that so
// callers never deal with re-login themselves.
package kol

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/horrible-little-slime/oaf/events"
)

const (
	defaultBaseURL = "https://www.kingdomofloathing.com"
	loginEndpoint  = "login.php"
	statusEndpoint = "api.php"
	userAgent      = "oaf (KoL clan bot; github.com/horrible-little-slime/oaf)"
)

// Credentials is the full authentication state for one logged-in session:
// the session cookie header value and the server-issued request token that
// token-requiring endpoints expect as a "pwd" parameter. A successful login
// replaces the whole value; nothing ever updates it field by field.
type Credentials struct {
	Cookies      string
	PasswordHash string
}

// Empty reports whether no login has succeeded yet.
func (c Credentials) Empty() bool {
	return c.Cookies == "" && c.PasswordHash == ""
}

// Session is an authenticated connection to the KoL website shared by every
// component of the bot. It serializes logins behind one mutex and remote
// state-changing action sequences behind a second, independent mutex. Action
// sequences call back into the login path while holding their own lock, so
// the two must never be collapsed into one.
type Session struct {
	httpClient *http.Client
	baseURL    string
	username   string
	password   string

	creds atomic.Pointer[Credentials]

	loginMu  sync.Mutex
	actionMu sync.Mutex

	rollover *RolloverDetector
	bus      *events.Bus
}

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithBaseURL points the session at a different server, used by tests.
func WithBaseURL(baseURL string) SessionOption {
	return func(s *Session) {
		s.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithRolloverInterval overrides how often the rollover detector re-probes
// the site while it is down.
func WithRolloverInterval(interval time.Duration) SessionOption {
	return func(s *Session) {
		s.rollover.interval = interval
	}
}

// NewSession creates a session for the given account. No network traffic
// happens until the first request; login is lazy.
func NewSession(username, password string, bus *events.Bus, options ...SessionOption) *Session {
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		// The login handshake needs to observe the 302 and its Set-Cookie
		// headers rather than follow it.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	s := &Session{
		httpClient: httpClient,
		baseURL:    defaultBaseURL,
		username:   username,
		password:   password,
		bus:        bus,
	}
	s.rollover = NewRolloverDetector(httpClient, s.baseURL)

	for _, option := range options {
		option(s)
	}
	// Options may have moved the base URL; the detector probes the same host.
	s.rollover.baseURL = s.baseURL

	s.creds.Store(&Credentials{})
	return s
}

// Credentials returns a snapshot of the current authentication state. The
// snapshot can go stale at any moment; a stale cookie simply makes the next
// request classify as logged out and take the re-login path.
func (s *Session) Credentials() Credentials {
	return *s.creds.Load()
}

// Rollover exposes the session's rollover detector.
func (s *Session) Rollover() *RolloverDetector {
	return s.rollover
}

// EnsureLoggedIn makes sure the session holds valid credentials, performing
// the login handshake at most once regardless of how many callers ask
// concurrently. It returns false rather than an error: login failure is
// routine (rollover, transient network trouble), not exceptional.
func (s *Session) EnsureLoggedIn(ctx context.Context) bool {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()

	// A caller that queued behind another login attempt usually finds fresh
	// credentials already in place. This probe collapses the herd.
	if s.probeValid(ctx) {
		s.announceResume()
		return true
	}

	if s.rollover.Active() {
		slog.Debug("skipping login attempt, rollover in progress")
		return false
	}

	creds, err := s.handshake(ctx)
	if err != nil {
		slog.Warn("login handshake failed", "error", err)
		// Distinguish "bad password" from "site is down for rollover" so the
		// detector starts its probe loop if rollover began mid-handshake.
		s.rollover.Probe(ctx)
		return false
	}

	s.creds.Store(creds)
	slog.Info("logged in to kingdom of loathing", "username", s.username)

	s.announceResume()
	return true
}

// announceResume publishes the one-shot rollover-complete event if the
// detector observed the site come back since the last successful login.
func (s *Session) announceResume() {
	if s.rollover.ConsumeResumeSignal() {
		s.bus.Publish(events.TopicRolloverComplete, nil)
	}
}

// probeValid checks whether the current credentials still work by hitting the
// status endpoint. Validity is never cached; the probe is the source of truth.
func (s *Session) probeValid(ctx context.Context) bool {
	creds := s.Credentials()
	if creds.Empty() {
		return false
	}

	body, err := s.get(ctx, statusEndpoint, url.Values{"what": {"status"}, "for": {userAgent}}, creds.Cookies)
	if err != nil {
		return false
	}
	_, err = ParseStatus(body)
	return err == nil
}

// handshake performs the two-step login: POST credentials to the login
// endpoint expecting a redirect whose Set-Cookie headers carry the session
// cookie, then fetch the status endpoint with that cookie to obtain the
// request token.
func (s *Session) handshake(ctx context.Context) (*Credentials, error) {
	form := url.Values{
		"loggingin": {"Yup."},
		"loginname": {s.username},
		"password":  {s.password},
		"secure":    {"0"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/"+loginEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode < 300 || resp.StatusCode > 399 {
		return nil, fmt.Errorf("login returned status %d, expected a redirect", resp.StatusCode)
	}

	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return nil, fmt.Errorf("login redirect carried no session cookie")
	}
	var pairs []string
	for _, cookie := range cookies {
		pairs = append(pairs, cookie.Name+"="+cookie.Value)
	}
	cookieHeader := strings.Join(pairs, "; ")

	body, err := s.get(ctx, statusEndpoint, url.Values{"what": {"status"}, "for": {userAgent}}, cookieHeader)
	if err != nil {
		return nil, fmt.Errorf("status fetch after login failed: %w", err)
	}

	status, err := ParseStatus(body)
	if err != nil {
		return nil, fmt.Errorf("status response missing password hash: %w", err)
	}

	return &Credentials{
		Cookies:      cookieHeader,
		PasswordHash: status.PasswordHash,
	}, nil
}

// get issues a plain GET with an explicit cookie header, bypassing the
// request executor. Used by the handshake and validity probe only.
func (s *Session) get(ctx context.Context, path string, params url.Values, cookies string) (string, error) {
	u := s.baseURL + "/" + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	if cookies != "" {
		req.Header.Set("Cookie", cookies)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d from %s", resp.StatusCode, path)
	}
	return string(body), nil
}

// RunExclusive serializes a sequence of requests that changes remote state
// shared across callers, such as whitelist additions that must follow a clan
// join. The site has no locking of its own, so two interleaved sequences
// from the same account can corrupt each other. Sequences queue FIFO; the
// callback is free to issue any number of Try calls, each of which may
// acquire and release the login lock internally.
func RunExclusive[T any](ctx context.Context, s *Session, fn func(context.Context) (T, error)) (T, error) {
	s.actionMu.Lock()
	defer s.actionMu.Unlock()
	return fn(ctx)
}
