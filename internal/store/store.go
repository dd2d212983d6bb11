// Package store defines the persistence ports for the tracker mirror
// and provides Postgres and in-memory implementations. Epics and issues
// are upserted by external key; nothing in this package deletes them.
package store

import (
	"context"
	"errors"

	"github.com/scrumlens/sync-core/internal/model"
)

// ErrNotFound is returned when a uniquely-keyed record is absent.
var ErrNotFound = errors.New("store: record not found")

// EpicStore persists mirrored epics.
type EpicStore interface {
	// UpsertEpic matches by (team, project, external key); on match every
	// mapped field is overwritten, on miss a record is created.
	UpsertEpic(ctx context.Context, epic *model.TrackedEpic) error
	ListEpics(ctx context.Context, team, project string) ([]model.TrackedEpic, error)
}

// IssueStore persists mirrored issues.
type IssueStore interface {
	UpsertIssue(ctx context.Context, issue *model.TrackedIssue) error
	ListIssues(ctx context.Context, team, project string) ([]model.TrackedIssue, error)
}

// RunStore persists import run history. History is append-only: a run is
// created once and finished once, never deleted.
type RunStore interface {
	CreateRun(ctx context.Context, run *model.ImportRun) error

	// FinishRun moves a run to a terminal status, recording the processed
	// count and concatenated error summary.
	FinishRun(ctx context.Context, id, status string, recordsProcessed int, errorSummary string) error

	// ListRuns returns the most recent runs for a scope, newest first.
	ListRuns(ctx context.Context, team, project string, limit int) ([]model.ImportRun, error)
}

// CredentialStore persists OAuth grants, one per account key.
type CredentialStore interface {
	GetCredential(ctx context.Context, accountKey string) (*model.StoredCredential, error)
	PutCredential(ctx context.Context, cred *model.StoredCredential) error

	// DeleteCredential fails with ErrNotFound when no record exists;
	// revocation of an absent grant is an error the caller must handle.
	DeleteCredential(ctx context.Context, accountKey string) error
}

// ConfigStore persists import configuration, unique per (team, project).
type ConfigStore interface {
	GetConfig(ctx context.Context, team, project string) (*model.ImportConfig, error)
	SaveConfig(ctx context.Context, cfg *model.ImportConfig) error
}

// Store aggregates every persistence port.
type Store interface {
	EpicStore
	IssueStore
	RunStore
	CredentialStore
	ConfigStore
	Close() error
}
