package jira

import (
	"net/url"

	"github.com/scrumlens/sync-core/internal/model"
)

// Config holds one validated tracker connection, scoped to a single
// (team, project) import. Immutable per run.
type Config struct {
	// BaseURL is the tracker instance URL (e.g. https://yoursite.atlassian.net).
	BaseURL string `json:"baseUrl"`

	// Mode selects the credential variant below.
	Mode model.AuthMode `json:"authMode"`

	// Email and APIToken authenticate AuthCredential mode.
	Email    string `json:"email,omitempty"`
	APIToken string `json:"apiToken,omitempty"`

	// CookieString is the raw browser cookie string for AuthCookie mode.
	CookieString string `json:"cookieString,omitempty"`

	// AccessToken is a live delegated token for AuthOAuth mode. The
	// orchestrator resolves it from the token manager before building
	// the client.
	AccessToken string `json:"-"`

	// AccountKey identifies the stored OAuth grant backing AccessToken.
	AccountKey string `json:"accountKey,omitempty"`

	// ProjectKey is the remote project to mirror.
	ProjectKey string `json:"projectKey"`

	// TeamName scopes imported records and filters by team label.
	TeamName string `json:"teamName"`

	// ImportSince restricts fetches to records updated on or after this
	// date (YYYY-MM-DD). Optional.
	ImportSince string `json:"importSince,omitempty"`

	// FetchSize is the number of records per API request.
	FetchSize int `json:"fetchSize,omitempty"`
}

// DefaultFetchSize is the default number of records per request.
const DefaultFetchSize = 100

// MaxFetchSize is the Jira API hard limit.
const MaxFetchSize = 100

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return &ValidationError{Field: "baseUrl", Message: "required"}
	}
	if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "baseUrl", Message: "must be an http or https URL"}
	}
	if c.ProjectKey == "" {
		return &ValidationError{Field: "projectKey", Message: "required"}
	}
	switch c.Mode {
	case model.AuthCredential:
		if c.Email == "" {
			return &ValidationError{Field: "email", Message: "required for credential auth"}
		}
		if c.APIToken == "" {
			return &ValidationError{Field: "apiToken", Message: "required for credential auth"}
		}
	case model.AuthCookie:
		if c.CookieString == "" {
			return &ValidationError{Field: "cookieString", Message: "required for cookie auth"}
		}
	case model.AuthOAuth:
		if c.AccessToken == "" && c.AccountKey == "" {
			return &ValidationError{Field: "accessToken", Message: "an access token or account key is required for oauth auth"}
		}
	default:
		return &ValidationError{Field: "authMode", Message: "must be credential, cookie, or oauth"}
	}
	if c.FetchSize <= 0 {
		c.FetchSize = DefaultFetchSize
	}
	if c.FetchSize > MaxFetchSize {
		c.FetchSize = MaxFetchSize
	}
	return nil
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
