// Utilities for lifting a browser session out of a "Copy as cURL" command.
package shared

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	headerRegex = regexp.MustCompile(`-H\s+'([^']+)'|-H\s+"([^"]+)"`)
	cookieRegex = regexp.MustCompile(`(?:-b|--cookie)\s+'([^']+)'|(?:-b|--cookie)\s+"([^"]+)"`)
	urlRegex    = regexp.MustCompile(`curl\s+'?"?(https?://[^'"\s]+)`)
)

// CurlSession represents the headers, cookies and target origin parsed from a cURL command.
type CurlSession struct {
	Headers map[string]string
	Cookie  string
	URL     string
}

// ParseCurlFile reads a .sh file containing a cURL command and extracts the session.
func ParseCurlFile(filepath string) (*CurlSession, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}

	return ParseCurlCommand(string(content))
}

// ParseCurlCommand parses a cURL command string and extracts headers and cookies.
//
// A -b/--cookie flag wins over a Cookie header.
func ParseCurlCommand(curlCmd string) (*CurlSession, error) {
	curlCmd = strings.ReplaceAll(curlCmd, "\\\n", " ")
	curlCmd = strings.ReplaceAll(curlCmd, "\\", "")

	session := &CurlSession{Headers: make(map[string]string)}

	var headerCookie string
	for _, match := range headerRegex.FindAllStringSubmatch(curlCmd, -1) {
		line := firstNonEmpty(match[1], match[2])

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if strings.EqualFold(key, "cookie") {
			if headerCookie == "" {
				headerCookie = value
			}
			continue
		}
		session.Headers[key] = value
	}

	if m := cookieRegex.FindStringSubmatch(curlCmd); len(m) > 2 {
		session.Cookie = firstNonEmpty(m[1], m[2])
	}
	if session.Cookie == "" {
		session.Cookie = headerCookie
	}

	if m := urlRegex.FindStringSubmatch(curlCmd); len(m) > 1 {
		session.URL = m[1]
	}

	if len(session.Headers) == 0 && session.Cookie == "" {
		return nil, fmt.Errorf("%w: no headers found in curl command", ErrInvalidInput)
	}

	return session, nil
}

// CookieValue returns the value of the named cookie from the parsed Cookie header.
func (c *CurlSession) CookieValue(name string) string {
	return CookieValue(c.Cookie, name)
}

// CookieValue extracts one cookie from a "k=v; k2=v2" header value.
func CookieValue(header, name string) string {
	prefix := name + "="
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, prefix) {
			return part[len(prefix):]
		}
	}
	return ""
}

// Origin returns scheme://host of the URL the command targeted, or "" when none was found.
func (c *CurlSession) Origin() string {
	if c.URL == "" {
		return ""
	}
	scheme, rest, ok := strings.Cut(c.URL, "://")
	if !ok {
		return ""
	}
	host, _, _ := strings.Cut(rest, "/")
	return scheme + "://" + host
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
