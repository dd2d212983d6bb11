package jira

import (
	"testing"

	"github.com/scrumlens/sync-core/internal/model"
)

func TestBuildQuery(t *testing.T) {
	cfg := &Config{
		ProjectKey:  "PLAT",
		TeamName:    "atlas",
		ImportSince: "2026-01-15",
	}

	tests := []struct {
		kind model.ImportKind
		want string
	}{
		{
			kind: model.KindEpics,
			want: `project = "PLAT" AND issuetype = Epic AND labels = "atlas" AND updated >= "2026-01-15" ORDER BY created ASC`,
		},
		{
			kind: model.KindIssues,
			want: `project = "PLAT" AND issuetype != Epic AND labels = "atlas" AND updated >= "2026-01-15" ORDER BY created ASC`,
		},
	}

	for _, tt := range tests {
		if got := BuildQuery(tt.kind, cfg); got != tt.want {
			t.Errorf("BuildQuery(%s):\n got %s\nwant %s", tt.kind, got, tt.want)
		}
	}
}

func TestBuildQuery_OptionalClauses(t *testing.T) {
	cfg := &Config{ProjectKey: "OPS"}
	want := `project = "OPS" AND issuetype = Epic ORDER BY created ASC`
	if got := BuildQuery(model.KindEpics, cfg); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestBuildQuery_Deterministic(t *testing.T) {
	cfg := &Config{ProjectKey: "PLAT", TeamName: "atlas", ImportSince: "2026-01-15"}
	first := BuildQuery(model.KindIssues, cfg)
	for i := 0; i < 5; i++ {
		if got := BuildQuery(model.KindIssues, cfg); got != first {
			t.Fatalf("query changed between calls: %s vs %s", first, got)
		}
	}
}
