package jira

import (
	"time"

	"github.com/scrumlens/sync-core/internal/model"
)

// jiraTime is the timestamp format used by issue date fields.
const jiraTime = "2006-01-02T15:04:05.000-0700"

// parseDay parses a remote date or timestamp and truncates it to
// calendar-day precision (UTC). Returns nil for empty or unparsable
// values.
func parseDay(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(jiraTime, s)
	if err != nil {
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return nil
		}
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &day
}

// latestSprint reduces the chronological sprint array to the most
// recent entry by start date. Entries without a parsable start date
// lose to any dated entry.
func latestSprint(sprints []*Sprint) string {
	var best *Sprint
	var bestStart time.Time
	for _, s := range sprints {
		if s == nil {
			continue
		}
		start, err := time.Parse(time.RFC3339, s.StartDate)
		if err != nil {
			if best == nil {
				best = s
			}
			continue
		}
		if best == nil || start.After(bestStart) {
			best = s
			bestStart = start
		}
	}
	if best == nil {
		return ""
	}
	return best.Name
}

// mapEpic flattens a raw epic into the stored shape.
func mapEpic(is *Issue, cfg *Config, now time.Time) model.TrackedEpic {
	f := is.Fields
	epic := model.TrackedEpic{
		Key:           is.Key,
		Summary:       f.Summary,
		StartDate:     parseDay(f.StartDate),
		DueDate:       parseDay(f.DueDate),
		RemoteCreated: parseDay(f.Created),
		RemoteUpdated: parseDay(f.Updated),
		TeamName:      cfg.TeamName,
		ProjectKey:    cfg.ProjectKey,
		LastImported:  now,
	}
	if f.Status != nil {
		epic.Status = f.Status.Name
	}
	if f.Assignee != nil {
		epic.Assignee = f.Assignee.DisplayName
	}
	return epic
}

// mapIssue flattens a raw issue into the stored shape: scalar names
// from nested objects, the sprint array reduced to its most recent
// entry, dates truncated to the day.
func mapIssue(is *Issue, cfg *Config, now time.Time) model.TrackedIssue {
	f := is.Fields
	issue := model.TrackedIssue{
		Key:           is.Key,
		Summary:       f.Summary,
		Estimate:      f.StoryPoints,
		SprintName:    latestSprint(f.Sprints),
		RemoteCreated: parseDay(f.Created),
		RemoteUpdated: parseDay(f.Updated),
		TeamName:      cfg.TeamName,
		ProjectKey:    cfg.ProjectKey,
		LastImported:  now,
	}
	if f.Status != nil {
		issue.Status = f.Status.Name
	}
	if f.Priority != nil {
		issue.Priority = f.Priority.Name
	}
	if f.IssueType != nil {
		issue.IssueType = f.IssueType.Name
	}
	if f.Assignee != nil {
		issue.Assignee = f.Assignee.DisplayName
	}
	if f.Reporter != nil {
		issue.Reporter = f.Reporter.DisplayName
	}
	if f.Parent != nil {
		issue.EpicKey = f.Parent.Key
	}
	return issue
}
