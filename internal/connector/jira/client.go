// Package jira is the remote tracker client: it builds JQL queries,
// walks cursor-paginated search results, and normalizes raw records
// into the stored epic/issue shapes.
package jira

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"time"

	connhttp "github.com/scrumlens/sync-core/internal/connector/http"
	"github.com/scrumlens/sync-core/internal/model"
)

// MaxSearchPages bounds one fetch-all walk. A remote cursor that never
// terminates (or loops back on itself) stops here; the partial result
// is kept and a warning is logged.
const MaxSearchPages = 50

const searchPath = "/rest/api/3/search/jql"

// Client talks to one tracker instance with one credential.
type Client struct {
	config *Config
	http   *connhttp.Client
}

// New creates a tracker client for the given configuration.
func New(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Code: CodeInvalidConfig, Err: err}
	}

	auth, err := authFor(cfg)
	if err != nil {
		return nil, &Error{Code: CodeInvalidConfig, Err: err}
	}

	httpConfig := connhttp.DefaultClientConfig()
	httpConfig.BaseURL = cfg.BaseURL
	httpConfig.Auth = auth
	httpConfig.Headers["Accept"] = "application/json"

	return &Client{config: cfg, http: connhttp.NewClient(httpConfig)}, nil
}

// authFor picks the header strategy for the configured auth variant.
func authFor(cfg *Config) (connhttp.AuthConfig, error) {
	switch cfg.Mode {
	case model.AuthCredential:
		return connhttp.CredentialAuth{Username: cfg.Email, Token: cfg.APIToken}, nil
	case model.AuthCookie:
		return connhttp.NewCookieAuth(cfg.CookieString)
	case model.AuthOAuth:
		return connhttp.BearerToken{Token: cfg.AccessToken}, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Mode)
	}
}

// SearchPage is one page of search results.
type SearchPage struct {
	Issues     []*Issue
	NextCursor string
	IsLast     bool
}

// FetchPage issues a single search call. Failures are classified into
// the tracker error taxonomy (Unauthorized, Forbidden, Unreachable,
// Unknown with the remote status preserved).
func (c *Client) FetchPage(ctx context.Context, jql, cursor string) (*SearchPage, error) {
	query := url.Values{}
	query.Set("jql", jql)
	query.Set("maxResults", strconv.Itoa(c.config.FetchSize))
	query.Set("fields", "summary,status,priority,issuetype,assignee,reporter,parent,labels,created,updated,duedate,customfield_10015,customfield_10016,customfield_10020")
	if cursor != "" {
		query.Set("nextPageToken", cursor)
	}

	resp, err := c.http.Get(ctx, searchPath, query)
	if err != nil {
		return nil, classify(err, c.config.Mode)
	}

	var result SearchResult
	if err := resp.JSON(&result); err != nil {
		return nil, &Error{Code: CodeUnknown, Err: fmt.Errorf("decode search response: %w", err)}
	}

	return &SearchPage{
		Issues:     result.Issues,
		NextCursor: result.NextPageToken,
		IsLast:     result.IsLast,
	}, nil
}

// fetchAll walks the cursor chain for one query. An empty page or an
// absent cursor terminates the walk; MaxSearchPages is the hard
// ceiling. The second return reports whether the ceiling truncated the
// result.
func (c *Client) fetchAll(ctx context.Context, jql string) ([]*Issue, bool, error) {
	var all []*Issue
	cursor := ""
	for page := 0; page < MaxSearchPages; page++ {
		res, err := c.FetchPage(ctx, jql, cursor)
		if err != nil {
			return nil, false, err
		}
		if len(res.Issues) == 0 {
			return all, false, nil
		}
		all = append(all, res.Issues...)
		if res.IsLast || res.NextCursor == "" {
			return all, false, nil
		}
		cursor = res.NextCursor
	}
	return all, true, nil
}

// FetchEpics fetches and normalizes every epic in scope.
func (c *Client) FetchEpics(ctx context.Context) ([]model.TrackedEpic, error) {
	jql := BuildQuery(model.KindEpics, c.config)
	raw, truncated, err := c.fetchAll(ctx, jql)
	if err != nil {
		return nil, err
	}
	if truncated {
		log.Printf("jira: epic fetch for %s stopped at the %d-page ceiling, result is partial", c.config.ProjectKey, MaxSearchPages)
	}

	now := time.Now().UTC()
	epics := make([]model.TrackedEpic, 0, len(raw))
	for _, is := range raw {
		epics = append(epics, mapEpic(is, c.config, now))
	}
	return epics, nil
}

// FetchIssues fetches and normalizes every non-epic issue in scope.
func (c *Client) FetchIssues(ctx context.Context) ([]model.TrackedIssue, error) {
	jql := BuildQuery(model.KindIssues, c.config)
	raw, truncated, err := c.fetchAll(ctx, jql)
	if err != nil {
		return nil, err
	}
	if truncated {
		log.Printf("jira: issue fetch for %s stopped at the %d-page ceiling, result is partial", c.config.ProjectKey, MaxSearchPages)
	}

	now := time.Now().UTC()
	issues := make([]model.TrackedIssue, 0, len(raw))
	for _, is := range raw {
		issues = append(issues, mapIssue(is, c.config, now))
	}
	return issues, nil
}

// ConnectionStatus is the outcome of a connectivity probe.
type ConnectionStatus struct {
	OK       bool
	Message  string
	Identity string
}

// TestConnection makes a single low-cost call to validate the
// configuration before a multi-page fetch is committed to. Failures
// carry the same classification as FetchPage.
func (c *Client) TestConnection(ctx context.Context) (*ConnectionStatus, error) {
	resp, err := c.http.Get(ctx, "/rest/api/3/myself", nil)
	if err != nil {
		classified := classify(err, c.config.Mode)
		return &ConnectionStatus{OK: false, Message: classified.Error()}, classified
	}

	var me Myself
	if err := resp.JSON(&me); err != nil {
		return &ConnectionStatus{OK: true, Message: "connection successful"}, nil
	}
	return &ConnectionStatus{
		OK:       true,
		Message:  "connection successful",
		Identity: me.DisplayName,
	}, nil
}
