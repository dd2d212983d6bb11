package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scrumlens/sync-core/internal/model"
)

func TestMemoryStore_UpsertEpicOverwrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := &model.TrackedEpic{
		Key: "PROJ-1", Summary: "old summary", Status: "To Do",
		TeamName: "platform", ProjectKey: "PROJ", LastImported: time.Now().UTC(),
	}
	if err := s.UpsertEpic(ctx, first); err != nil {
		t.Fatal(err)
	}

	second := *first
	second.Summary = "new summary"
	second.Status = "In Progress"
	if err := s.UpsertEpic(ctx, &second); err != nil {
		t.Fatal(err)
	}

	epics, err := s.ListEpics(ctx, "platform", "PROJ")
	if err != nil {
		t.Fatal(err)
	}
	if len(epics) != 1 {
		t.Fatalf("expected 1 epic after double upsert, got %d", len(epics))
	}
	if epics[0].Summary != "new summary" || epics[0].Status != "In Progress" {
		t.Errorf("latest write did not win: %+v", epics[0])
	}
}

func TestMemoryStore_ScopeIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.UpsertIssue(ctx, &model.TrackedIssue{Key: "A-1", TeamName: "alpha", ProjectKey: "A"})
	s.UpsertIssue(ctx, &model.TrackedIssue{Key: "A-1", TeamName: "beta", ProjectKey: "A"})

	issues, err := s.ListIssues(ctx, "alpha", "A")
	if err != nil {
		t.Fatal(err)
	}
	if len(issues) != 1 {
		t.Errorf("same external key in another team leaked into scope: %d issues", len(issues))
	}
}

func TestMemoryStore_RunLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	run := &model.ImportRun{
		ID: "run-1", TeamName: "platform", ProjectKey: "PROJ",
		Kind: model.KindEpics, Status: model.RunStarted, StartedAt: time.Now().UTC(),
	}
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatal(err)
	}

	if err := s.FinishRun(ctx, "run-1", model.RunCompleted, 7, ""); err != nil {
		t.Fatal(err)
	}

	runs, err := s.ListRuns(ctx, "platform", "PROJ", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.Status != model.RunCompleted || got.RecordsProcessed != 7 {
		t.Errorf("run = %+v", got)
	}
	if got.EndedAt == nil {
		t.Error("EndedAt not set on finished run")
	}
}

func TestMemoryStore_FinishUnknownRun(t *testing.T) {
	s := NewMemoryStore()
	err := s.FinishRun(context.Background(), "no-such-run", model.RunFailed, 0, "boom")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_ListRunsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		s.CreateRun(ctx, &model.ImportRun{
			ID: string(rune('a' + i)), TeamName: "t", ProjectKey: "P",
			Status: model.RunCompleted, StartedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}

	runs, err := s.ListRuns(ctx, "t", "P", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("limit not applied: got %d runs", len(runs))
	}
	for i := 1; i < len(runs); i++ {
		if runs[i].StartedAt.After(runs[i-1].StartedAt) {
			t.Errorf("runs not newest-first at index %d", i)
		}
	}
}

func TestMemoryStore_Credentials(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.GetCredential(ctx, "acct"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetCredential on empty store: %v", err)
	}

	cred := &model.StoredCredential{AccountKey: "acct", EncryptedAccessToken: "abc:def"}
	if err := s.PutCredential(ctx, cred); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetCredential(ctx, "acct")
	if err != nil {
		t.Fatal(err)
	}
	if got.EncryptedAccessToken != "abc:def" {
		t.Errorf("token = %q", got.EncryptedAccessToken)
	}

	if err := s.DeleteCredential(ctx, "acct"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteCredential(ctx, "acct"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_Config(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.GetConfig(ctx, "t", "P"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetConfig on empty store: %v", err)
	}

	cfg := &model.ImportConfig{
		TeamName: "t", ProjectKey: "P",
		BaseURL: "https://example.atlassian.net", AuthMode: model.AuthCredential,
	}
	if err := s.SaveConfig(ctx, cfg); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetConfig(ctx, "t", "P")
	if err != nil {
		t.Fatal(err)
	}
	if got.BaseURL != cfg.BaseURL || got.AuthMode != model.AuthCredential {
		t.Errorf("config = %+v", got)
	}
}
