package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/scrumlens/sync-core/internal/kv"
	"github.com/scrumlens/sync-core/internal/model"
	"github.com/scrumlens/sync-core/internal/secrets"
	"github.com/scrumlens/sync-core/internal/store"
)

const testKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	Code         string `json:"code"`
	RefreshToken string `json:"refresh_token"`
}

// fixture wires a manager against stub identity endpoints.
type fixture struct {
	manager *Manager
	creds   *store.MemoryStore
	codec   *secrets.Codec

	// tokenRequests records every hit on the token endpoint.
	tokenRequests []tokenRequest
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		creds: store.NewMemoryStore(),
	}

	codec, err := secrets.NewCodec(testKey)
	if err != nil {
		t.Fatal(err)
	}
	f.codec = codec

	authServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.tokenRequests = append(f.tokenRequests, req)

		resp := map[string]any{
			"access_token":  "access-" + req.GrantType,
			"refresh_token": "refresh-" + req.GrantType,
			"expires_in":    3600,
			"scope":         "read:jira-work read:me offline_access",
			"token_type":    "Bearer",
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(authServer.Close)

	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/me":
			json.NewEncoder(w).Encode(map[string]string{
				"account_id": "acc-123",
				"name":       "Dana Developer",
				"email":      "dana@example.com",
			})
		case "/oauth/token/accessible-resources":
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": "site-0", "name": "other", "url": "https://other.example.com", "scopes": []string{"read:confluence"}},
				{"id": "site-1", "name": "main", "url": "https://main.atlassian.net", "scopes": []string{"read:jira-work"}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(apiServer.Close)

	manager, err := NewManager(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "https://app.example.com/callback",
		AuthBaseURL:  authServer.URL,
		APIBaseURL:   apiServer.URL,
	}, codec, f.creds, kv.NewMemoryStore())
	if err != nil {
		t.Fatal(err)
	}
	f.manager = manager
	return f
}

func stateFromURL(t *testing.T, authorizeURL string) string {
	t.Helper()
	u, err := url.Parse(authorizeURL)
	if err != nil {
		t.Fatal(err)
	}
	state := u.Query().Get("state")
	if state == "" {
		t.Fatal("authorize URL carries no state")
	}
	return state
}

func TestAuthorizationFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	authorizeURL, err := f.manager.BeginAuthorization(ctx, "team-1")
	if err != nil {
		t.Fatal(err)
	}

	u, err := url.Parse(authorizeURL)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	if q.Get("client_id") != "client-id" || q.Get("response_type") != "code" {
		t.Errorf("authorize query = %v", q)
	}
	if q.Get("redirect_uri") != "https://app.example.com/callback" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}

	cred, err := f.manager.CompleteAuthorization(ctx, q.Get("state"), "the-code")
	if err != nil {
		t.Fatal(err)
	}

	if cred.AccountKey != "team-1" {
		t.Errorf("account key = %q", cred.AccountKey)
	}
	if cred.DisplayName != "Dana Developer" || cred.Email != "dana@example.com" {
		t.Errorf("profile = %q / %q", cred.DisplayName, cred.Email)
	}
	if cred.SiteID != "site-1" || cred.SiteURL != "https://main.atlassian.net" {
		t.Errorf("site = %q / %q; the non-Jira site must be skipped", cred.SiteID, cred.SiteURL)
	}

	// Tokens must be stored as ciphertext only.
	if cred.EncryptedAccessToken == "access-authorization_code" {
		t.Error("access token stored in plaintext")
	}
	plain, err := f.codec.Decrypt(cred.EncryptedAccessToken)
	if err != nil {
		t.Fatal(err)
	}
	if plain != "access-authorization_code" {
		t.Errorf("decrypted access token = %q", plain)
	}

	if len(f.tokenRequests) != 1 || f.tokenRequests[0].Code != "the-code" {
		t.Errorf("token requests = %+v", f.tokenRequests)
	}
}

func TestStateIsSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	authorizeURL, err := f.manager.BeginAuthorization(ctx, "team-1")
	if err != nil {
		t.Fatal(err)
	}
	state := stateFromURL(t, authorizeURL)

	if _, err := f.manager.CompleteAuthorization(ctx, state, "the-code"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.manager.CompleteAuthorization(ctx, state, "the-code"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("replayed state: err = %v, want ErrInvalidState", err)
	}
}

func TestUnknownStateRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.CompleteAuthorization(context.Background(), "never-issued", "the-code")
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState", err)
	}
}

func TestValidToken_Unexpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedCredential(t, "team-1", "live-token", "refresh-tok", time.Now().Add(time.Hour))

	token, err := f.manager.ValidToken(ctx, "team-1")
	if err != nil {
		t.Fatal(err)
	}
	if token != "live-token" {
		t.Errorf("token = %q", token)
	}
	if len(f.tokenRequests) != 0 {
		t.Error("unexpired token triggered a refresh")
	}
}

func TestValidToken_ExpiredRefreshes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedCredential(t, "team-1", "stale-token", "refresh-tok", time.Now().Add(-time.Hour))

	token, err := f.manager.ValidToken(ctx, "team-1")
	if err != nil {
		t.Fatal(err)
	}
	if token != "access-refresh_token" {
		t.Errorf("token = %q", token)
	}
	if len(f.tokenRequests) != 1 || f.tokenRequests[0].RefreshToken != "refresh-tok" {
		t.Errorf("token requests = %+v", f.tokenRequests)
	}

	// The rotated pair must be persisted.
	cred, err := f.creds.GetCredential(ctx, "team-1")
	if err != nil {
		t.Fatal(err)
	}
	access, _ := f.codec.Decrypt(cred.EncryptedAccessToken)
	refresh, _ := f.codec.Decrypt(cred.EncryptedRefreshToken)
	if access != "access-refresh_token" || refresh != "refresh-refresh_token" {
		t.Errorf("persisted pair = %q / %q", access, refresh)
	}
	if !cred.ExpiresAt.After(time.Now()) {
		t.Error("expiry not advanced after refresh")
	}
}

func TestValidToken_ExpiredWithoutRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedCredential(t, "team-1", "stale-token", "", time.Now().Add(-time.Hour))

	token, err := f.manager.ValidToken(ctx, "team-1")
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		t.Errorf("token = %q, want empty for unrefreshable grant", token)
	}
}

func TestRefresh_NoRefreshToken(t *testing.T) {
	f := newFixture(t)
	f.seedCredential(t, "team-1", "tok", "", time.Now().Add(time.Hour))

	_, err := f.manager.Refresh(context.Background(), "team-1")
	if !errors.Is(err, ErrNoRefreshToken) {
		t.Errorf("err = %v, want ErrNoRefreshToken", err)
	}
}

func TestRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedCredential(t, "team-1", "tok", "", time.Now().Add(time.Hour))

	if err := f.manager.Revoke(ctx, "team-1"); err != nil {
		t.Fatal(err)
	}
	if err := f.manager.Revoke(ctx, "team-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("revoking absent grant: %v, want store.ErrNotFound", err)
	}
}

func (f *fixture) seedCredential(t *testing.T, accountKey, access, refresh string, expiresAt time.Time) {
	t.Helper()

	cred := &model.StoredCredential{
		AccountKey: accountKey,
		ExpiresAt:  expiresAt.UTC(),
	}
	var err error
	if cred.EncryptedAccessToken, err = f.codec.Encrypt(access); err != nil {
		t.Fatal(err)
	}
	if refresh != "" {
		if cred.EncryptedRefreshToken, err = f.codec.Encrypt(refresh); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.creds.PutCredential(context.Background(), cred); err != nil {
		t.Fatal(err)
	}
}
