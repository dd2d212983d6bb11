package jira

import (
	"testing"
	"time"
)

func TestParseDay(t *testing.T) {
	got := parseDay("2026-03-04T15:23:45.000+0200")
	if got == nil {
		t.Fatal("expected a parsed day")
	}
	want := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if d := parseDay("2026-03-04"); d == nil || !d.Equal(want) {
		t.Errorf("plain date: got %v, want %v", d, want)
	}
	if parseDay("") != nil {
		t.Error("empty input should map to nil")
	}
	if parseDay("not a date") != nil {
		t.Error("unparsable input should map to nil")
	}
}

func TestLatestSprint(t *testing.T) {
	sprints := []*Sprint{
		{Name: "Sprint 12", StartDate: "2026-02-02T09:00:00Z"},
		{Name: "Sprint 14", StartDate: "2026-03-02T09:00:00Z"},
		{Name: "Sprint 13", StartDate: "2026-02-16T09:00:00Z"},
	}
	if got := latestSprint(sprints); got != "Sprint 14" {
		t.Errorf("latestSprint = %q, want Sprint 14", got)
	}
}

func TestLatestSprint_Degenerate(t *testing.T) {
	if got := latestSprint(nil); got != "" {
		t.Errorf("nil input: got %q", got)
	}
	undated := []*Sprint{{Name: "Backlog"}}
	if got := latestSprint(undated); got != "Backlog" {
		t.Errorf("undated only: got %q", got)
	}
	mixed := []*Sprint{{Name: "Backlog"}, {Name: "Sprint 9", StartDate: "2026-01-05T09:00:00Z"}}
	if got := latestSprint(mixed); got != "Sprint 9" {
		t.Errorf("dated beats undated: got %q", got)
	}
}

func TestMapIssue(t *testing.T) {
	cfg := &Config{ProjectKey: "PLAT", TeamName: "atlas"}
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	pts := 5.0

	raw := &Issue{
		Key: "PLAT-42",
		Fields: IssueFields{
			Summary:     "Fix pagination drift",
			Status:      &Status{Name: "In Progress"},
			Priority:    &Priority{Name: "High"},
			IssueType:   &IssueType{Name: "Story"},
			Assignee:    &User{DisplayName: "Dana"},
			Reporter:    &User{DisplayName: "Sam"},
			Parent:      &Issue{Key: "PLAT-7"},
			Created:     "2026-07-01T08:30:00.000+0000",
			Updated:     "2026-07-20T18:10:00.000+0000",
			StoryPoints: &pts,
			Sprints: []*Sprint{
				{Name: "Sprint 3", StartDate: "2026-06-01T09:00:00Z"},
				{Name: "Sprint 4", StartDate: "2026-07-13T09:00:00Z"},
			},
		},
	}

	got := mapIssue(raw, cfg, now)

	if got.Key != "PLAT-42" || got.Summary != "Fix pagination drift" {
		t.Errorf("identity fields: %+v", got)
	}
	if got.Status != "In Progress" || got.Priority != "High" || got.IssueType != "Story" {
		t.Errorf("scalar extraction: %+v", got)
	}
	if got.Assignee != "Dana" || got.Reporter != "Sam" {
		t.Errorf("people extraction: %+v", got)
	}
	if got.EpicKey != "PLAT-7" {
		t.Errorf("EpicKey = %q", got.EpicKey)
	}
	if got.SprintName != "Sprint 4" {
		t.Errorf("SprintName = %q", got.SprintName)
	}
	if got.Estimate == nil || *got.Estimate != 5.0 {
		t.Errorf("Estimate = %v", got.Estimate)
	}
	wantCreated := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	if got.RemoteCreated == nil || !got.RemoteCreated.Equal(wantCreated) {
		t.Errorf("RemoteCreated = %v, want %v", got.RemoteCreated, wantCreated)
	}
	if got.TeamName != "atlas" || got.ProjectKey != "PLAT" || !got.LastImported.Equal(now) {
		t.Errorf("scoping: %+v", got)
	}
}

func TestMapIssue_MissingNestedObjects(t *testing.T) {
	cfg := &Config{ProjectKey: "PLAT"}
	raw := &Issue{Key: "PLAT-1", Fields: IssueFields{Summary: "bare"}}
	got := mapIssue(raw, cfg, time.Now())
	if got.Status != "" || got.Assignee != "" || got.EpicKey != "" || got.SprintName != "" {
		t.Errorf("expected empty scalars, got %+v", got)
	}
	if got.Estimate != nil {
		t.Errorf("Estimate = %v", got.Estimate)
	}
}

func TestMapEpic(t *testing.T) {
	cfg := &Config{ProjectKey: "PLAT", TeamName: "atlas"}
	now := time.Now().UTC()
	raw := &Issue{
		Key: "PLAT-7",
		Fields: IssueFields{
			Summary:   "Q3 reliability",
			Status:    &Status{Name: "To Do"},
			Assignee:  &User{DisplayName: "Dana"},
			StartDate: "2026-07-01",
			DueDate:   "2026-09-30",
		},
	}
	got := mapEpic(raw, cfg, now)
	if got.Key != "PLAT-7" || got.Status != "To Do" || got.Assignee != "Dana" {
		t.Errorf("%+v", got)
	}
	if got.StartDate == nil || got.DueDate == nil {
		t.Fatalf("expected parsed dates, got %+v", got)
	}
	if !got.DueDate.Equal(time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("DueDate = %v", got.DueDate)
	}
	if got.TeamName != "atlas" {
		t.Errorf("TeamName = %q", got.TeamName)
	}
}
