package http

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

// =============================================================================
// AUTHENTICATION STRATEGIES
// One variant per supported tracker auth mode.
// =============================================================================

// ErrInvalidCredentialFormat is returned when credential material cannot
// be turned into a usable header (for example a cookie string with no
// name=value pair left after sanitization).
var ErrInvalidCredentialFormat = errors.New("http: invalid credential format")

// AuthConfig represents authentication configuration.
type AuthConfig interface {
	Apply(req *http.Request)
}

// NoAuth represents no authentication.
type NoAuth struct{}

func (a NoAuth) Apply(req *http.Request) {}

// CredentialAuth uses static API credentials ("user:token" Basic auth,
// the Jira Cloud email + API token scheme).
type CredentialAuth struct {
	Username string
	Token    string
}

// Apply adds the Basic auth header to the request.
func (a CredentialAuth) Apply(req *http.Request) {
	if a.Username == "" && a.Token == "" {
		return
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Token))
	req.Header.Set("Authorization", "Basic "+credentials)
}

// BearerToken uses Bearer token authentication (delegated OAuth grants).
type BearerToken struct {
	Token string
}

// Apply adds the Bearer token header to the request.
func (a BearerToken) Apply(req *http.Request) {
	if a.Token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)
}

// CookieAuth replays a browser session cookie string. Build it with
// NewCookieAuth so the raw string is sanitized exactly once.
type CookieAuth struct {
	Cookie string
}

// NewCookieAuth sanitizes a raw cookie string and wraps it as an auth
// strategy. Fails with ErrInvalidCredentialFormat when sanitization
// leaves no usable pair.
func NewCookieAuth(raw string) (CookieAuth, error) {
	cleaned, err := SanitizeCookie(raw)
	if err != nil {
		return CookieAuth{}, err
	}
	return CookieAuth{Cookie: cleaned}, nil
}

// Apply sets the Cookie header on the request.
func (a CookieAuth) Apply(req *http.Request) {
	if a.Cookie == "" {
		return
	}
	req.Header.Set("Cookie", a.Cookie)
}

// cookie attributes that are metadata rather than name=value pairs.
var cookieAttributes = map[string]bool{
	"path":     true,
	"domain":   true,
	"secure":   true,
	"httponly": true,
	"samesite": true,
	"expires":  true,
	"max-age":  true,
}

// SanitizeCookie reduces a pasted cookie string to "; "-joined
// name=value pairs. Line breaks and control characters are stripped and
// Set-Cookie attributes (Path, Domain, Secure, HttpOnly, SameSite,
// Expires, Max-Age) are dropped. Sanitizing an already-sanitized string
// is a no-op.
func SanitizeCookie(raw string) (string, error) {
	// Line breaks separate pairs when cookies are pasted from devtools.
	cleaned := strings.NewReplacer("\r", ";", "\n", ";").Replace(raw)
	cleaned = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, cleaned)

	var pairs []string
	for _, part := range strings.Split(cleaned, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, _, hasValue := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if cookieAttributes[strings.ToLower(name)] {
			continue
		}
		if !hasValue {
			// Bare attributes like Secure carry no pair.
			continue
		}
		pairs = append(pairs, part)
	}

	if len(pairs) == 0 {
		return "", ErrInvalidCredentialFormat
	}
	return strings.Join(pairs, "; "), nil
}
