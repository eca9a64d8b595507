package kol

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Request describes one call against the site. Descriptors are built per
// call and never persisted.
type Request struct {
	// Path relative to the site root, e.g. "newchatmessages.php".
	Path string
	// Params are query parameters.
	Params url.Values
	// Body, when non-nil, makes the call a form POST.
	Body url.Values
	// NeedsPwd attaches the session's request token as a "pwd" parameter.
	NeedsPwd bool
	// LoggedOut classifies a response body as the anonymous/logged-out page.
	// The site's logged-out response shape differs by endpoint family and is
	// not guaranteed stable, so it is pluggable; nil uses LoggedOutSignature.
	LoggedOut func(body string) bool
}

// Try issues the request with the current credentials and returns the raw
// response body. A response classifying as logged out triggers one re-login
// and exactly one retry; a second consecutive auth failure means something
// deeper is wrong (rollover started mid-call, revoked account) and is not
// worth retrying. Every failure mode, transport errors included, returns the
// caller-supplied fallback rather than an error: callers treat the fallback
// as "operation did not complete" and degrade on their own terms.
func (s *Session) Try(ctx context.Context, req Request, fallback string) string {
	if s.rollover.Active() {
		return fallback
	}
	if !s.EnsureLoggedIn(ctx) {
		return fallback
	}

	loggedOut := req.LoggedOut
	if loggedOut == nil {
		loggedOut = LoggedOutSignature
	}

	body, err := s.execute(ctx, req)
	if err != nil {
		slog.Warn("request failed", "path", req.Path, "error", err)
		return fallback
	}
	if !loggedOut(body) {
		return body
	}

	// The transport succeeded but the site answered with its anonymous page:
	// the session expired between the validity probe and this call.
	slog.Debug("session expired mid-request, retrying once", "path", req.Path)
	if !s.EnsureLoggedIn(ctx) {
		return fallback
	}
	body, err = s.execute(ctx, req)
	if err != nil || loggedOut(body) {
		return fallback
	}
	return body
}

// execute performs one HTTP call with the current credential snapshot.
func (s *Session) execute(ctx context.Context, req Request) (string, error) {
	creds := s.Credentials()

	params := url.Values{}
	for key, values := range req.Params {
		params[key] = values
	}

	var body url.Values
	if req.Body != nil {
		body = url.Values{}
		for key, values := range req.Body {
			body[key] = values
		}
	}

	if req.NeedsPwd {
		if body != nil {
			body.Set("pwd", creds.PasswordHash)
		} else {
			params.Set("pwd", creds.PasswordHash)
		}
	}

	u := s.baseURL + "/" + strings.TrimPrefix(req.Path, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var httpReq *http.Request
	var err error
	if body != nil {
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(body.Encode()))
		if err == nil {
			httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		httpReq, err = http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create request for %s: %w", req.Path, err)
	}

	httpReq.Header.Set("User-Agent", userAgent)
	if creds.Cookies != "" {
		httpReq.Header.Set("Cookie", creds.Cookies)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request to %s failed: %w", req.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response from %s: %w", req.Path, err)
	}
	return string(raw), nil
}
