package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/studio/internal/shared"
)

// Login signs in through the service's login form and keeps the resulting session in the jar.
//
// The landing page is fetched first so the form post can carry the CSRF token.
func (s *StudioService) Login(ctx context.Context, username, password string) error {
	if username == "" {
		return fmt.Errorf("%w: username", shared.ErrMissingArgument)
	}

	if _, err := s.do(ctx, http.MethodGet, "/", nil); err != nil {
		return fmt.Errorf("failed to load login page: %w", err)
	}

	token := s.CSRFToken()
	if token == "" {
		return shared.ErrMissingCSRFToken
	}

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	form.Set("csrfmiddlewaretoken", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.ResolveURL("/"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", s.ResolveURL("/"))
	req.Header.Set(s.csrfHeader, token)

	resp, err := s.send(req)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", shared.ErrNotAuthenticated, strings.TrimSpace(string(resp.Body)))
	case !resp.OK():
		return newAPIError(resp.StatusCode, resp.Body)
	}
	return nil
}

// Logout ends the current session.
func (s *StudioService) Logout(ctx context.Context) error {
	_, err := s.do(ctx, http.MethodPost, "/logout/", nil)
	return err
}

// SessionCookie serializes the jar's cookies for the service origin as a Cookie header value.
func (s *StudioService) SessionCookie() string {
	cookies := s.httpClient.Jar.Cookies(s.baseURL)
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
