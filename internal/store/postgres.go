package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scrumlens/sync-core/internal/model"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects a pool and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	s := &PostgresStore{db: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// NewPostgresStoreWithPool reuses an existing pool (for tests).
func NewPostgresStoreWithPool(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	s := &PostgresStore{db: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

// ensureSchema creates the required tables if they don't exist.
func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tracked_epics (
		team_name TEXT NOT NULL,
		project_key TEXT NOT NULL,
		external_key TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		assignee TEXT NOT NULL DEFAULT '',
		start_date DATE,
		due_date DATE,
		remote_created DATE,
		remote_updated DATE,
		last_imported TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (team_name, project_key, external_key)
	);

	CREATE TABLE IF NOT EXISTS tracked_issues (
		team_name TEXT NOT NULL,
		project_key TEXT NOT NULL,
		external_key TEXT NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL DEFAULT '',
		issue_type TEXT NOT NULL DEFAULT '',
		assignee TEXT NOT NULL DEFAULT '',
		reporter TEXT NOT NULL DEFAULT '',
		epic_key TEXT NOT NULL DEFAULT '',
		estimate DOUBLE PRECISION,
		sprint_name TEXT NOT NULL DEFAULT '',
		remote_created DATE,
		remote_updated DATE,
		last_imported TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (team_name, project_key, external_key)
	);

	CREATE TABLE IF NOT EXISTS import_runs (
		id TEXT PRIMARY KEY,
		team_name TEXT NOT NULL,
		project_key TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ,
		records_processed INTEGER NOT NULL DEFAULT 0,
		error_summary TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_import_runs_scope ON import_runs(team_name, project_key, started_at DESC);

	CREATE TABLE IF NOT EXISTS stored_credentials (
		account_key TEXT PRIMARY KEY,
		encrypted_access_token TEXT NOT NULL,
		encrypted_refresh_token TEXT NOT NULL DEFAULT '',
		expires_at TIMESTAMPTZ NOT NULL,
		scope TEXT NOT NULL DEFAULT '',
		site_id TEXT NOT NULL DEFAULT '',
		site_url TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS import_configs (
		team_name TEXT NOT NULL,
		project_key TEXT NOT NULL,
		base_url TEXT NOT NULL,
		auth_mode TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		encrypted_api_token TEXT NOT NULL DEFAULT '',
		encrypted_cookie TEXT NOT NULL DEFAULT '',
		oauth_account_key TEXT NOT NULL DEFAULT '',
		import_since TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (team_name, project_key)
	);
	`

	_, err := s.db.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) UpsertEpic(ctx context.Context, epic *model.TrackedEpic) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO tracked_epics
		(team_name, project_key, external_key, summary, status, assignee, start_date, due_date, remote_created, remote_updated, last_imported)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (team_name, project_key, external_key) DO UPDATE SET
			summary = EXCLUDED.summary,
			status = EXCLUDED.status,
			assignee = EXCLUDED.assignee,
			start_date = EXCLUDED.start_date,
			due_date = EXCLUDED.due_date,
			remote_created = EXCLUDED.remote_created,
			remote_updated = EXCLUDED.remote_updated,
			last_imported = EXCLUDED.last_imported
	`, epic.TeamName, epic.ProjectKey, epic.Key, epic.Summary, epic.Status, epic.Assignee,
		epic.StartDate, epic.DueDate, epic.RemoteCreated, epic.RemoteUpdated, epic.LastImported)
	if err != nil {
		return fmt.Errorf("upsert epic %s: %w", epic.Key, err)
	}
	return nil
}

func (s *PostgresStore) ListEpics(ctx context.Context, team, project string) ([]model.TrackedEpic, error) {
	rows, err := s.db.Query(ctx, `
		SELECT external_key, summary, status, assignee, start_date, due_date, remote_created, remote_updated, team_name, project_key, last_imported
		FROM tracked_epics
		WHERE team_name = $1 AND project_key = $2
		ORDER BY external_key
	`, team, project)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TrackedEpic
	for rows.Next() {
		var e model.TrackedEpic
		if err := rows.Scan(&e.Key, &e.Summary, &e.Status, &e.Assignee, &e.StartDate, &e.DueDate,
			&e.RemoteCreated, &e.RemoteUpdated, &e.TeamName, &e.ProjectKey, &e.LastImported); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertIssue(ctx context.Context, issue *model.TrackedIssue) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO tracked_issues
		(team_name, project_key, external_key, summary, status, priority, issue_type, assignee, reporter, epic_key, estimate, sprint_name, remote_created, remote_updated, last_imported)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (team_name, project_key, external_key) DO UPDATE SET
			summary = EXCLUDED.summary,
			status = EXCLUDED.status,
			priority = EXCLUDED.priority,
			issue_type = EXCLUDED.issue_type,
			assignee = EXCLUDED.assignee,
			reporter = EXCLUDED.reporter,
			epic_key = EXCLUDED.epic_key,
			estimate = EXCLUDED.estimate,
			sprint_name = EXCLUDED.sprint_name,
			remote_created = EXCLUDED.remote_created,
			remote_updated = EXCLUDED.remote_updated,
			last_imported = EXCLUDED.last_imported
	`, issue.TeamName, issue.ProjectKey, issue.Key, issue.Summary, issue.Status, issue.Priority,
		issue.IssueType, issue.Assignee, issue.Reporter, issue.EpicKey, issue.Estimate,
		issue.SprintName, issue.RemoteCreated, issue.RemoteUpdated, issue.LastImported)
	if err != nil {
		return fmt.Errorf("upsert issue %s: %w", issue.Key, err)
	}
	return nil
}

func (s *PostgresStore) ListIssues(ctx context.Context, team, project string) ([]model.TrackedIssue, error) {
	rows, err := s.db.Query(ctx, `
		SELECT external_key, summary, status, priority, issue_type, assignee, reporter, epic_key, estimate, sprint_name, remote_created, remote_updated, team_name, project_key, last_imported
		FROM tracked_issues
		WHERE team_name = $1 AND project_key = $2
		ORDER BY external_key
	`, team, project)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TrackedIssue
	for rows.Next() {
		var is model.TrackedIssue
		if err := rows.Scan(&is.Key, &is.Summary, &is.Status, &is.Priority, &is.IssueType,
			&is.Assignee, &is.Reporter, &is.EpicKey, &is.Estimate, &is.SprintName,
			&is.RemoteCreated, &is.RemoteUpdated, &is.TeamName, &is.ProjectKey, &is.LastImported); err != nil {
			return nil, err
		}
		out = append(out, is)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *model.ImportRun) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO import_runs (id, team_name, project_key, kind, status, started_at, records_processed, error_summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, run.ID, run.TeamName, run.ProjectKey, run.Kind, run.Status, run.StartedAt, run.RecordsProcessed, run.ErrorSummary)
	return err
}

func (s *PostgresStore) FinishRun(ctx context.Context, id, status string, recordsProcessed int, errorSummary string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE import_runs SET status = $2, ended_at = NOW(), records_processed = $3, error_summary = $4
		WHERE id = $1
	`, id, status, recordsProcessed, errorSummary)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, team, project string, limit int) ([]model.ImportRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, team_name, project_key, kind, status, started_at, ended_at, records_processed, error_summary
		FROM import_runs
		WHERE team_name = $1 AND project_key = $2
		ORDER BY started_at DESC
		LIMIT $3
	`, team, project, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ImportRun
	for rows.Next() {
		var r model.ImportRun
		if err := rows.Scan(&r.ID, &r.TeamName, &r.ProjectKey, &r.Kind, &r.Status,
			&r.StartedAt, &r.EndedAt, &r.RecordsProcessed, &r.ErrorSummary); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetCredential(ctx context.Context, accountKey string) (*model.StoredCredential, error) {
	var c model.StoredCredential
	err := s.db.QueryRow(ctx, `
		SELECT account_key, encrypted_access_token, encrypted_refresh_token, expires_at, scope, site_id, site_url, display_name, email, created_at, updated_at
		FROM stored_credentials WHERE account_key = $1
	`, accountKey).Scan(&c.AccountKey, &c.EncryptedAccessToken, &c.EncryptedRefreshToken, &c.ExpiresAt,
		&c.Scope, &c.SiteID, &c.SiteURL, &c.DisplayName, &c.Email, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) PutCredential(ctx context.Context, cred *model.StoredCredential) error {
	now := time.Now().UTC()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now
	_, err := s.db.Exec(ctx, `
		INSERT INTO stored_credentials
		(account_key, encrypted_access_token, encrypted_refresh_token, expires_at, scope, site_id, site_url, display_name, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (account_key) DO UPDATE SET
			encrypted_access_token = EXCLUDED.encrypted_access_token,
			encrypted_refresh_token = EXCLUDED.encrypted_refresh_token,
			expires_at = EXCLUDED.expires_at,
			scope = EXCLUDED.scope,
			site_id = EXCLUDED.site_id,
			site_url = EXCLUDED.site_url,
			display_name = EXCLUDED.display_name,
			email = EXCLUDED.email,
			updated_at = EXCLUDED.updated_at
	`, cred.AccountKey, cred.EncryptedAccessToken, cred.EncryptedRefreshToken, cred.ExpiresAt,
		cred.Scope, cred.SiteID, cred.SiteURL, cred.DisplayName, cred.Email, cred.CreatedAt, cred.UpdatedAt)
	return err
}

func (s *PostgresStore) DeleteCredential(ctx context.Context, accountKey string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM stored_credentials WHERE account_key = $1`, accountKey)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetConfig(ctx context.Context, team, project string) (*model.ImportConfig, error) {
	var c model.ImportConfig
	err := s.db.QueryRow(ctx, `
		SELECT team_name, project_key, base_url, auth_mode, email, encrypted_api_token, encrypted_cookie, oauth_account_key, import_since, updated_at
		FROM import_configs WHERE team_name = $1 AND project_key = $2
	`, team, project).Scan(&c.TeamName, &c.ProjectKey, &c.BaseURL, &c.AuthMode, &c.Email,
		&c.EncryptedAPIToken, &c.EncryptedCookie, &c.OAuthAccountKey, &c.ImportSince, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) SaveConfig(ctx context.Context, cfg *model.ImportConfig) error {
	cfg.UpdatedAt = time.Now().UTC()
	_, err := s.db.Exec(ctx, `
		INSERT INTO import_configs
		(team_name, project_key, base_url, auth_mode, email, encrypted_api_token, encrypted_cookie, oauth_account_key, import_since, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (team_name, project_key) DO UPDATE SET
			base_url = EXCLUDED.base_url,
			auth_mode = EXCLUDED.auth_mode,
			email = EXCLUDED.email,
			encrypted_api_token = EXCLUDED.encrypted_api_token,
			encrypted_cookie = EXCLUDED.encrypted_cookie,
			oauth_account_key = EXCLUDED.oauth_account_key,
			import_since = EXCLUDED.import_since,
			updated_at = EXCLUDED.updated_at
	`, cfg.TeamName, cfg.ProjectKey, cfg.BaseURL, cfg.AuthMode, cfg.Email,
		cfg.EncryptedAPIToken, cfg.EncryptedCookie, cfg.OAuthAccountKey, cfg.ImportSince, cfg.UpdatedAt)
	return err
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		s.db.Close()
	}
	return nil
}
