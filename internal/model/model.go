// Package model defines the records persisted by the tracker mirror:
// imported epics and issues, import run history, stored OAuth
// credentials, and per-scope import configuration.
package model

import "time"

// AuthMode selects how the remote tracker is authenticated.
type AuthMode string

const (
	AuthCredential AuthMode = "credential"
	AuthCookie     AuthMode = "cookie"
	AuthOAuth      AuthMode = "oauth"
)

// ImportKind selects which entity kinds an import run covers.
type ImportKind string

const (
	KindEpics  ImportKind = "epics"
	KindIssues ImportKind = "issues"
	KindFull   ImportKind = "full"
)

// Run statuses. A run always ends in a terminal status.
const (
	RunStarted   = "started"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// TrackedEpic is a mirrored epic. The remote key is authoritative and
// unique; records are upserted by it and never deleted by an import.
type TrackedEpic struct {
	Key           string     `json:"key"`
	Summary       string     `json:"summary"`
	Status        string     `json:"status"`
	Assignee      string     `json:"assignee,omitempty"`
	StartDate     *time.Time `json:"startDate,omitempty"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	RemoteCreated *time.Time `json:"remoteCreated,omitempty"`
	RemoteUpdated *time.Time `json:"remoteUpdated,omitempty"`
	TeamName      string     `json:"teamName"`
	ProjectKey    string     `json:"projectKey"`
	LastImported  time.Time  `json:"lastImported"`
}

// TrackedIssue is a mirrored issue.
type TrackedIssue struct {
	Key           string     `json:"key"`
	Summary       string     `json:"summary"`
	Status        string     `json:"status"`
	Priority      string     `json:"priority,omitempty"`
	IssueType     string     `json:"issueType,omitempty"`
	Assignee      string     `json:"assignee,omitempty"`
	Reporter      string     `json:"reporter,omitempty"`
	EpicKey       string     `json:"epicKey,omitempty"`
	Estimate      *float64   `json:"estimate,omitempty"`
	SprintName    string     `json:"sprintName,omitempty"`
	RemoteCreated *time.Time `json:"remoteCreated,omitempty"`
	RemoteUpdated *time.Time `json:"remoteUpdated,omitempty"`
	TeamName      string     `json:"teamName"`
	ProjectKey    string     `json:"projectKey"`
	LastImported  time.Time  `json:"lastImported"`
}

// ImportRun is one execution of the import orchestrator. Created with
// status "started" and mutated exactly once to a terminal status.
type ImportRun struct {
	ID               string     `json:"id"`
	TeamName         string     `json:"teamName"`
	ProjectKey       string     `json:"projectKey"`
	Kind             ImportKind `json:"kind"`
	Status           string     `json:"status"`
	StartedAt        time.Time  `json:"startedAt"`
	EndedAt          *time.Time `json:"endedAt,omitempty"`
	RecordsProcessed int        `json:"recordsProcessed"`
	ErrorSummary     string     `json:"errorSummary,omitempty"`
}

// StoredCredential is a per-account OAuth grant. Token fields hold
// ciphertext produced by the secrets codec, never plaintext.
type StoredCredential struct {
	AccountKey            string    `json:"accountKey"`
	EncryptedAccessToken  string    `json:"-"`
	EncryptedRefreshToken string    `json:"-"`
	ExpiresAt             time.Time `json:"expiresAt"`
	Scope                 string    `json:"scope,omitempty"`
	SiteID                string    `json:"siteId,omitempty"`
	SiteURL               string    `json:"siteUrl,omitempty"`
	DisplayName           string    `json:"displayName,omitempty"`
	Email                 string    `json:"email,omitempty"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// HasRefreshToken reports whether a refresh grant is stored. An expired
// access token without one is unusable and must be re-authorized.
func (c *StoredCredential) HasRefreshToken() bool {
	return c != nil && c.EncryptedRefreshToken != ""
}

// ImportConfig is the saved import configuration for one (team, project)
// scope. Secret fields hold ciphertext from the secrets codec.
type ImportConfig struct {
	TeamName          string    `json:"teamName"`
	ProjectKey        string    `json:"projectKey"`
	BaseURL           string    `json:"baseUrl"`
	AuthMode          AuthMode  `json:"authMode"`
	Email             string    `json:"email,omitempty"`
	EncryptedAPIToken string    `json:"-"`
	EncryptedCookie   string    `json:"-"`
	OAuthAccountKey   string    `json:"oauthAccountKey,omitempty"`
	ImportSince       string    `json:"importSince,omitempty"`
	UpdatedAt         time.Time `json:"updatedAt"`
}
