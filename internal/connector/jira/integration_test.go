package jira

import (
	"context"
	"os"
	"testing"

	"github.com/scrumlens/sync-core/internal/model"
)

// Environment variables for live Jira tests:
// JIRA_BASE_URL=https://yoursite.atlassian.net
// JIRA_EMAIL=your-email@domain.com
// JIRA_API_TOKEN=your-api-token
// JIRA_PROJECT_KEY=PROJ

func skipIfNoJira(t *testing.T) {
	if os.Getenv("JIRA_BASE_URL") == "" || os.Getenv("JIRA_API_TOKEN") == "" {
		t.Skip("Skipping Jira integration test: JIRA_BASE_URL or JIRA_API_TOKEN not set")
	}
}

func liveConfig() *Config {
	return &Config{
		BaseURL:    os.Getenv("JIRA_BASE_URL"),
		Mode:       model.AuthCredential,
		Email:      os.Getenv("JIRA_EMAIL"),
		APIToken:   os.Getenv("JIRA_API_TOKEN"),
		ProjectKey: os.Getenv("JIRA_PROJECT_KEY"),
		FetchSize:  50,
	}
}

func TestJira_Integration_Connection(t *testing.T) {
	skipIfNoJira(t)

	c, err := New(liveConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	status, err := c.TestConnection(context.Background())
	if err != nil {
		t.Fatalf("TestConnection failed: %v", err)
	}
	if !status.OK {
		t.Fatalf("connection not OK: %s", status.Message)
	}
	t.Logf("Connected as %s", status.Identity)
}

func TestJira_Integration_FetchEpics(t *testing.T) {
	skipIfNoJira(t)
	if os.Getenv("JIRA_PROJECT_KEY") == "" {
		t.Skip("Skipping: JIRA_PROJECT_KEY not set")
	}

	c, err := New(liveConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	epics, err := c.FetchEpics(context.Background())
	if err != nil {
		t.Fatalf("FetchEpics failed: %v", err)
	}
	t.Logf("Fetched %d epics", len(epics))
	for _, e := range epics {
		if e.Key == "" {
			t.Error("epic with empty key")
		}
	}
}
