// Package oauth manages the three-legged OAuth lifecycle against the
// Atlassian identity platform: authorization hand-off, code exchange,
// encrypted storage of the grant, and transparent refresh.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	connhttp "github.com/scrumlens/sync-core/internal/connector/http"
	"github.com/scrumlens/sync-core/internal/kv"
	"github.com/scrumlens/sync-core/internal/model"
	"github.com/scrumlens/sync-core/internal/secrets"
	"github.com/scrumlens/sync-core/internal/store"
)

const (
	defaultAuthBaseURL = "https://auth.atlassian.com"
	defaultAPIBaseURL  = "https://api.atlassian.com"

	// stateTTL bounds how long an authorization hand-off may stay pending.
	stateTTL = 10 * time.Minute

	// expirySkew treats tokens about to expire as already expired, so a
	// token handed to a caller survives the request it is used for.
	expirySkew = time.Minute
)

var (
	// ErrInvalidState is returned when a callback carries a state value
	// that was never issued, already used, or expired.
	ErrInvalidState = errors.New("oauth: invalid or expired state")

	// ErrNoRefreshToken is returned when a refresh is requested for a
	// grant that was issued without offline access.
	ErrNoRefreshToken = errors.New("oauth: no refresh token stored")
)

// Config holds the registered OAuth application settings.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// Scopes requested at authorization. Defaults to Jira read access
	// plus offline_access so refresh tokens are issued.
	Scopes []string

	// AuthBaseURL and APIBaseURL override the Atlassian endpoints, for
	// tests.
	AuthBaseURL string
	APIBaseURL  string
}

// Manager drives the OAuth lifecycle. Tokens are encrypted with the
// secrets codec before they reach the credential store; plaintext
// tokens exist only in memory.
type Manager struct {
	cfg    Config
	codec  *secrets.Codec
	creds  store.CredentialStore
	states kv.Store

	authClient *connhttp.Client
	apiClient  *connhttp.Client
}

// NewManager validates the application settings and builds a manager.
func NewManager(cfg Config, codec *secrets.Codec, creds store.CredentialStore, states kv.Store) (*Manager, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("oauth: client id and secret are required")
	}
	if cfg.RedirectURI == "" {
		return nil, errors.New("oauth: redirect uri is required")
	}
	if codec == nil {
		return nil, errors.New("oauth: secrets codec is required")
	}
	if cfg.AuthBaseURL == "" {
		cfg.AuthBaseURL = defaultAuthBaseURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"read:jira-work", "read:me", "offline_access"}
	}

	return &Manager{
		cfg:    cfg,
		codec:  codec,
		creds:  creds,
		states: states,
		authClient: connhttp.NewClient(&connhttp.ClientConfig{
			BaseURL: cfg.AuthBaseURL,
		}),
		apiClient: connhttp.NewClient(&connhttp.ClientConfig{
			BaseURL: cfg.APIBaseURL,
		}),
	}, nil
}

// BeginAuthorization issues a single-use state bound to the account and
// returns the URL the user must be redirected to.
func (m *Manager) BeginAuthorization(ctx context.Context, accountKey string) (string, error) {
	if accountKey == "" {
		return "", errors.New("oauth: account key is required")
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	state := hex.EncodeToString(buf)

	if err := m.states.Put(ctx, state, []byte(accountKey), stateTTL); err != nil {
		return "", fmt.Errorf("store state: %w", err)
	}

	q := url.Values{}
	q.Set("audience", "api.atlassian.com")
	q.Set("client_id", m.cfg.ClientID)
	q.Set("scope", strings.Join(m.cfg.Scopes, " "))
	q.Set("redirect_uri", m.cfg.RedirectURI)
	q.Set("state", state)
	q.Set("response_type", "code")
	q.Set("prompt", "consent")

	return m.cfg.AuthBaseURL + "/authorize?" + q.Encode(), nil
}

// CompleteAuthorization consumes the callback. The state is validated
// and invalidated in one step, the code is exchanged for tokens, the
// user profile and site are resolved, and the grant is stored with both
// tokens encrypted.
func (m *Manager) CompleteAuthorization(ctx context.Context, state, code string) (*model.StoredCredential, error) {
	value, ok, err := m.states.Take(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("validate state: %w", err)
	}
	if !ok {
		return nil, ErrInvalidState
	}
	accountKey := string(value)

	if code == "" {
		return nil, errors.New("oauth: authorization code is required")
	}

	tok, err := m.exchange(ctx, map[string]string{
		"grant_type":    "authorization_code",
		"client_id":     m.cfg.ClientID,
		"client_secret": m.cfg.ClientSecret,
		"code":          code,
		"redirect_uri":  m.cfg.RedirectURI,
	})
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	cred := &model.StoredCredential{
		AccountKey: accountKey,
		ExpiresAt:  time.Now().UTC().Add(time.Duration(tok.ExpiresIn) * time.Second),
		Scope:      tok.Scope,
	}

	if cred.EncryptedAccessToken, err = m.codec.Encrypt(tok.AccessToken); err != nil {
		return nil, fmt.Errorf("encrypt access token: %w", err)
	}
	if tok.RefreshToken != "" {
		if cred.EncryptedRefreshToken, err = m.codec.Encrypt(tok.RefreshToken); err != nil {
			return nil, fmt.Errorf("encrypt refresh token: %w", err)
		}
	}

	profile, err := m.fetchProfile(ctx, tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	cred.DisplayName = profile.Name
	cred.Email = profile.Email

	site, err := m.resolveSite(ctx, tok.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("resolve site: %w", err)
	}
	if site == nil {
		// The grant is still stored; imports will fail until the user
		// grants the app access to a Jira site.
		log.Printf("oauth: no accessible Jira site for account %s", accountKey)
	} else {
		cred.SiteID = site.ID
		cred.SiteURL = site.URL
	}

	if err := m.creds.PutCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}
	return cred, nil
}

// ValidToken returns a usable plaintext access token for the account,
// refreshing it first when it is expired and a refresh grant exists.
// An expired grant with no refresh token yields ("", nil): the caller
// must send the user back through authorization.
func (m *Manager) ValidToken(ctx context.Context, accountKey string) (string, error) {
	cred, err := m.creds.GetCredential(ctx, accountKey)
	if err != nil {
		return "", err
	}

	if time.Now().UTC().Before(cred.ExpiresAt.Add(-expirySkew)) {
		return m.codec.Decrypt(cred.EncryptedAccessToken)
	}

	if !cred.HasRefreshToken() {
		return "", nil
	}
	return m.Refresh(ctx, accountKey)
}

// Refresh exchanges the stored refresh token for a new token pair,
// persists the rotated grant, and returns the new access token.
func (m *Manager) Refresh(ctx context.Context, accountKey string) (string, error) {
	cred, err := m.creds.GetCredential(ctx, accountKey)
	if err != nil {
		return "", err
	}
	if !cred.HasRefreshToken() {
		return "", ErrNoRefreshToken
	}

	refreshToken, err := m.codec.Decrypt(cred.EncryptedRefreshToken)
	if err != nil {
		return "", fmt.Errorf("decrypt refresh token: %w", err)
	}

	tok, err := m.exchange(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     m.cfg.ClientID,
		"client_secret": m.cfg.ClientSecret,
		"refresh_token": refreshToken,
	})
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}

	cred.ExpiresAt = time.Now().UTC().Add(time.Duration(tok.ExpiresIn) * time.Second)
	if tok.Scope != "" {
		cred.Scope = tok.Scope
	}
	if cred.EncryptedAccessToken, err = m.codec.Encrypt(tok.AccessToken); err != nil {
		return "", fmt.Errorf("encrypt access token: %w", err)
	}
	// Atlassian rotates refresh tokens; keep the old one if none came back.
	if tok.RefreshToken != "" {
		if cred.EncryptedRefreshToken, err = m.codec.Encrypt(tok.RefreshToken); err != nil {
			return "", fmt.Errorf("encrypt refresh token: %w", err)
		}
	}

	if err := m.creds.PutCredential(ctx, cred); err != nil {
		return "", fmt.Errorf("store credential: %w", err)
	}
	return tok.AccessToken, nil
}

// Revoke deletes the stored grant. Revoking an account that was never
// connected returns store.ErrNotFound.
func (m *Manager) Revoke(ctx context.Context, accountKey string) error {
	return m.creds.DeleteCredential(ctx, accountKey)
}

// Account returns the stored grant metadata without decrypting tokens.
func (m *Manager) Account(ctx context.Context, accountKey string) (*model.StoredCredential, error) {
	return m.creds.GetCredential(ctx, accountKey)
}

func (m *Manager) exchange(ctx context.Context, form map[string]string) (*tokenResponse, error) {
	resp, err := m.authClient.Post(ctx, "/oauth/token", form)
	if err != nil {
		return nil, err
	}
	var tok tokenResponse
	if err := resp.JSON(&tok); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("oauth: token response carried no access token")
	}
	return &tok, nil
}

func (m *Manager) fetchProfile(ctx context.Context, accessToken string) (*profile, error) {
	resp, err := m.apiGet(ctx, "/me", accessToken)
	if err != nil {
		return nil, err
	}
	var p profile
	if err := resp.JSON(&p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}

// resolveSite picks the first accessible site that carries a Jira
// scope. A nil site with nil error means the grant reaches no site.
func (m *Manager) resolveSite(ctx context.Context, accessToken string) (*accessibleResource, error) {
	resp, err := m.apiGet(ctx, "/oauth/token/accessible-resources", accessToken)
	if err != nil {
		return nil, err
	}
	var resources []accessibleResource
	if err := resp.JSON(&resources); err != nil {
		return nil, fmt.Errorf("decode accessible resources: %w", err)
	}
	for i := range resources {
		for _, scope := range resources[i].Scopes {
			if scope == "read:jira-work" || scope == "write:jira-work" {
				return &resources[i], nil
			}
		}
	}
	return nil, nil
}

func (m *Manager) apiGet(ctx context.Context, path, accessToken string) (*connhttp.Response, error) {
	return m.apiClient.Do(ctx, &connhttp.Request{
		Method: "GET",
		Path:   path,
		Headers: map[string]string{
			"Authorization": "Bearer " + accessToken,
		},
	})
}
