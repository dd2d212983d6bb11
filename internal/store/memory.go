package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/scrumlens/sync-core/internal/model"
)

// MemoryStore implements Store in process memory. It backs tests and
// single-instance development runs.
type MemoryStore struct {
	mu          sync.Mutex
	epics       map[string]model.TrackedEpic
	issues      map[string]model.TrackedIssue
	runs        map[string]*model.ImportRun
	credentials map[string]model.StoredCredential
	configs     map[string]model.ImportConfig
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		epics:       make(map[string]model.TrackedEpic),
		issues:      make(map[string]model.TrackedIssue),
		runs:        make(map[string]*model.ImportRun),
		credentials: make(map[string]model.StoredCredential),
		configs:     make(map[string]model.ImportConfig),
	}
}

func scopeKey(team, project, key string) string {
	return team + "\x00" + project + "\x00" + key
}

func (s *MemoryStore) UpsertEpic(ctx context.Context, epic *model.TrackedEpic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epics[scopeKey(epic.TeamName, epic.ProjectKey, epic.Key)] = *epic
	return nil
}

func (s *MemoryStore) ListEpics(ctx context.Context, team, project string) ([]model.TrackedEpic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.TrackedEpic
	for _, e := range s.epics {
		if e.TeamName == team && e.ProjectKey == project {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryStore) UpsertIssue(ctx context.Context, issue *model.TrackedIssue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issues[scopeKey(issue.TeamName, issue.ProjectKey, issue.Key)] = *issue
	return nil
}

func (s *MemoryStore) ListIssues(ctx context.Context, team, project string) ([]model.TrackedIssue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.TrackedIssue
	for _, is := range s.issues {
		if is.TeamName == team && is.ProjectKey == project {
			out = append(out, is)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryStore) CreateRun(ctx context.Context, run *model.ImportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *run
	s.runs[run.ID] = &copied
	return nil
}

func (s *MemoryStore) FinishRun(ctx context.Context, id, status string, recordsProcessed int, errorSummary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	run.Status = status
	run.EndedAt = &now
	run.RecordsProcessed = recordsProcessed
	run.ErrorSummary = errorSummary
	return nil
}

func (s *MemoryStore) ListRuns(ctx context.Context, team, project string, limit int) ([]model.ImportRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ImportRun
	for _, r := range s.runs {
		if r.TeamName == team && r.ProjectKey == project {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) GetCredential(ctx context.Context, accountKey string) (*model.StoredCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.credentials[accountKey]
	if !ok {
		return nil, ErrNotFound
	}
	return &cred, nil
}

func (s *MemoryStore) PutCredential(ctx context.Context, cred *model.StoredCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials[cred.AccountKey] = *cred
	return nil
}

func (s *MemoryStore) DeleteCredential(ctx context.Context, accountKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.credentials[accountKey]; !ok {
		return ErrNotFound
	}
	delete(s.credentials, accountKey)
	return nil
}

func (s *MemoryStore) GetConfig(ctx context.Context, team, project string) (*model.ImportConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[scopeKey(team, project, "")]
	if !ok {
		return nil, ErrNotFound
	}
	return &cfg, nil
}

func (s *MemoryStore) SaveConfig(ctx context.Context, cfg *model.ImportConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[scopeKey(cfg.TeamName, cfg.ProjectKey, "")] = *cfg
	return nil
}

func (s *MemoryStore) Close() error { return nil }
