// Package importer orchestrates tracker imports: it resolves the saved
// configuration into live credentials, probes the connection, fetches
// and upserts epics and issues, and records every run in the audit
// history.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scrumlens/sync-core/internal/connector/jira"
	"github.com/scrumlens/sync-core/internal/model"
	"github.com/scrumlens/sync-core/internal/secrets"
	"github.com/scrumlens/sync-core/internal/store"
)

// maxReportedErrors bounds the per-result error list; the total count
// is always reported.
const maxReportedErrors = 10

// TrackerClient is the slice of the tracker connector the orchestrator
// needs. Satisfied by *jira.Client.
type TrackerClient interface {
	TestConnection(ctx context.Context) (*jira.ConnectionStatus, error)
	FetchEpics(ctx context.Context) ([]model.TrackedEpic, error)
	FetchIssues(ctx context.Context) ([]model.TrackedIssue, error)
}

// ClientFactory builds a tracker client from a resolved configuration.
type ClientFactory func(cfg *jira.Config) (TrackerClient, error)

// TokenSource yields a usable access token for an OAuth account. An
// empty token with nil error means the grant cannot be used and the
// account must be re-authorized.
type TokenSource interface {
	ValidToken(ctx context.Context, accountKey string) (string, error)
}

// ImportResult summarizes one import run for the caller. The full
// record count and terminal status live in the run history.
type ImportResult struct {
	Success         bool     `json:"success"`
	EpicsProcessed  int      `json:"epicsProcessed"`
	IssuesProcessed int      `json:"issuesProcessed"`
	Errors          []string `json:"errors,omitempty"`
	TotalErrors     int      `json:"totalErrors"`
	RunID           string   `json:"runId"`
}

// ConfigInput is an import configuration with plaintext secrets, as
// submitted by a caller. Secrets are encrypted before storage.
type ConfigInput struct {
	TeamName        string         `json:"teamName"`
	ProjectKey      string         `json:"projectKey"`
	BaseURL         string         `json:"baseUrl"`
	AuthMode        model.AuthMode `json:"authMode"`
	Email           string         `json:"email,omitempty"`
	APIToken        string         `json:"apiToken,omitempty"`
	Cookie          string         `json:"cookie,omitempty"`
	OAuthAccountKey string         `json:"oauthAccountKey,omitempty"`
	ImportSince     string         `json:"importSince,omitempty"`
}

// Orchestrator runs imports against the persistence layer.
type Orchestrator struct {
	store     store.Store
	codec     *secrets.Codec
	tokens    TokenSource
	newClient ClientFactory
}

// NewOrchestrator builds an orchestrator using the real tracker client.
func NewOrchestrator(st store.Store, codec *secrets.Codec, tokens TokenSource) *Orchestrator {
	return &Orchestrator{
		store:  st,
		codec:  codec,
		tokens: tokens,
		newClient: func(cfg *jira.Config) (TrackerClient, error) {
			return jira.New(cfg)
		},
	}
}

// SaveImportConfig encrypts the submitted secrets and stores the
// configuration for its (team, project) scope.
func (o *Orchestrator) SaveImportConfig(ctx context.Context, input *ConfigInput) error {
	if input.TeamName == "" || input.ProjectKey == "" {
		return errors.New("importer: team and project are required")
	}

	cfg := &model.ImportConfig{
		TeamName:        input.TeamName,
		ProjectKey:      input.ProjectKey,
		BaseURL:         input.BaseURL,
		AuthMode:        input.AuthMode,
		Email:           input.Email,
		OAuthAccountKey: input.OAuthAccountKey,
		ImportSince:     input.ImportSince,
	}

	var err error
	if input.APIToken != "" {
		if cfg.EncryptedAPIToken, err = o.codec.Encrypt(input.APIToken); err != nil {
			return fmt.Errorf("encrypt api token: %w", err)
		}
	}
	if input.Cookie != "" {
		if cfg.EncryptedCookie, err = o.codec.Encrypt(input.Cookie); err != nil {
			return fmt.Errorf("encrypt cookie: %w", err)
		}
	}

	return o.store.SaveConfig(ctx, cfg)
}

// GetImportConfig returns the stored configuration. Secrets stay
// encrypted; the struct's JSON shape never exposes them.
func (o *Orchestrator) GetImportConfig(ctx context.Context, team, project string) (*model.ImportConfig, error) {
	return o.store.GetConfig(ctx, team, project)
}

// GetImportHistory returns the most recent runs for a scope, newest
// first.
func (o *Orchestrator) GetImportHistory(ctx context.Context, team, project string, limit int) ([]model.ImportRun, error) {
	return o.store.ListRuns(ctx, team, project, limit)
}

// GetImportedEpics lists the mirrored epics for a scope.
func (o *Orchestrator) GetImportedEpics(ctx context.Context, team, project string) ([]model.TrackedEpic, error) {
	return o.store.ListEpics(ctx, team, project)
}

// GetImportedIssues lists the mirrored issues for a scope.
func (o *Orchestrator) GetImportedIssues(ctx context.Context, team, project string) ([]model.TrackedIssue, error) {
	return o.store.ListIssues(ctx, team, project)
}

// resolveConfig turns the stored configuration into a live tracker
// configuration, decrypting secrets and resolving the OAuth token.
func (o *Orchestrator) resolveConfig(ctx context.Context, stored *model.ImportConfig) (*jira.Config, error) {
	cfg := &jira.Config{
		BaseURL:     stored.BaseURL,
		Mode:        stored.AuthMode,
		Email:       stored.Email,
		AccountKey:  stored.OAuthAccountKey,
		ProjectKey:  stored.ProjectKey,
		TeamName:    stored.TeamName,
		ImportSince: stored.ImportSince,
	}

	var err error
	switch stored.AuthMode {
	case model.AuthCredential:
		if cfg.APIToken, err = o.codec.Decrypt(stored.EncryptedAPIToken); err != nil {
			return nil, fmt.Errorf("decrypt api token: %w", err)
		}
	case model.AuthCookie:
		if cfg.CookieString, err = o.codec.Decrypt(stored.EncryptedCookie); err != nil {
			return nil, fmt.Errorf("decrypt cookie: %w", err)
		}
	case model.AuthOAuth:
		if o.tokens == nil {
			return nil, errors.New("importer: no token source configured")
		}
		token, err := o.tokens.ValidToken(ctx, stored.OAuthAccountKey)
		if err != nil {
			return nil, fmt.Errorf("resolve access token: %w", err)
		}
		if token == "" {
			return nil, errors.New("authorization expired; reconnect the account")
		}
		cfg.AccessToken = token
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", stored.AuthMode)
	}

	return cfg, nil
}

// PerformImport executes one import run. Every run is recorded in the
// history with a terminal status; the returned result summarizes what
// happened. A failure in one entity kind does not stop the other, but
// it does mark the run failed.
func (o *Orchestrator) PerformImport(ctx context.Context, team, project string, kind model.ImportKind) (*ImportResult, error) {
	stored, err := o.store.GetConfig(ctx, team, project)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("no import configuration for %s/%s", team, project)
		}
		return nil, err
	}

	run := &model.ImportRun{
		ID:         uuid.NewString(),
		TeamName:   team,
		ProjectKey: project,
		Kind:       kind,
		Status:     model.RunStarted,
		StartedAt:  time.Now().UTC(),
	}
	if err := o.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}

	result := o.execute(ctx, run, stored, kind)

	status := model.RunCompleted
	if !result.Success {
		status = model.RunFailed
	}
	records := result.EpicsProcessed + result.IssuesProcessed
	summary := strings.Join(result.Errors, "; ")
	if err := o.store.FinishRun(ctx, run.ID, status, records, summary); err != nil {
		log.Printf("importer: finish run %s: %v", run.ID, err)
	}
	return result, nil
}

// execute does the fetch-and-upsert work for a run that already exists
// in the history. A panic anywhere below is converted into a failed
// result so the run still reaches a terminal status.
func (o *Orchestrator) execute(ctx context.Context, run *model.ImportRun, stored *model.ImportConfig, kind model.ImportKind) (result *ImportResult) {
	result = &ImportResult{RunID: run.ID}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("importer: run %s panicked: %v", run.ID, r)
			result.fail(fmt.Sprintf("internal error: %v", r))
		}
	}()

	cfg, err := o.resolveConfig(ctx, stored)
	if err != nil {
		return result.fail(err.Error())
	}

	client, err := o.newClient(cfg)
	if err != nil {
		return result.fail(err.Error())
	}

	// A cheap probe first, so a bad credential fails the run before any
	// multi-page fetch is committed to.
	if _, err := client.TestConnection(ctx); err != nil {
		return result.fail("connection test failed: " + err.Error())
	}

	var (
		mu   sync.Mutex
		errs []string
		wg   sync.WaitGroup
	)
	record := func(msg string) {
		mu.Lock()
		errs = append(errs, msg)
		mu.Unlock()
	}

	if kind == model.KindEpics || kind == model.KindFull {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := o.importEpics(ctx, client)
			result.EpicsProcessed = n
			if err != nil {
				record("epics: " + err.Error())
			}
		}()
	}
	if kind == model.KindIssues || kind == model.KindFull {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := o.importIssues(ctx, client)
			result.IssuesProcessed = n
			if err != nil {
				record("issues: " + err.Error())
			}
		}()
	}
	wg.Wait()

	result.Success = len(errs) == 0
	result.TotalErrors = len(errs)
	if len(errs) > maxReportedErrors {
		errs = errs[:maxReportedErrors]
	}
	result.Errors = errs
	return result
}

// importEpics fetches the epics in scope and upserts them one by one.
// A fetch failure processes nothing; an upsert failure stops the
// remaining records of this kind and reports how far it got.
func (o *Orchestrator) importEpics(ctx context.Context, client TrackerClient) (int, error) {
	epics, err := client.FetchEpics(ctx)
	if err != nil {
		return 0, err
	}
	for i := range epics {
		if err := o.store.UpsertEpic(ctx, &epics[i]); err != nil {
			return i, fmt.Errorf("upsert %s: %w", epics[i].Key, err)
		}
	}
	return len(epics), nil
}

func (o *Orchestrator) importIssues(ctx context.Context, client TrackerClient) (int, error) {
	issues, err := client.FetchIssues(ctx)
	if err != nil {
		return 0, err
	}
	for i := range issues {
		if err := o.store.UpsertIssue(ctx, &issues[i]); err != nil {
			return i, fmt.Errorf("upsert %s: %w", issues[i].Key, err)
		}
	}
	return len(issues), nil
}

// TestTrackerConnection resolves the stored configuration and probes
// the remote without starting a run.
func (o *Orchestrator) TestTrackerConnection(ctx context.Context, team, project string) (*jira.ConnectionStatus, error) {
	stored, err := o.store.GetConfig(ctx, team, project)
	if err != nil {
		return nil, err
	}
	cfg, err := o.resolveConfig(ctx, stored)
	if err != nil {
		return nil, err
	}
	client, err := o.newClient(cfg)
	if err != nil {
		return nil, err
	}
	return client.TestConnection(ctx)
}

func (r *ImportResult) fail(msg string) *ImportResult {
	r.Success = false
	r.Errors = append(r.Errors, msg)
	r.TotalErrors = len(r.Errors)
	return r
}
