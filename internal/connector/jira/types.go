package jira

// =============================================================================
// JIRA API RESPONSE TYPES
// =============================================================================

// Issue represents a remote issue (epics included; an epic is an issue
// with issuetype Epic).
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self"`
	Fields IssueFields `json:"fields"`
}

// IssueFields contains issue field values.
type IssueFields struct {
	Summary     string     `json:"summary"`
	Status      *Status    `json:"status,omitempty"`
	Priority    *Priority  `json:"priority,omitempty"`
	IssueType   *IssueType `json:"issuetype,omitempty"`
	Assignee    *User      `json:"assignee,omitempty"`
	Reporter    *User      `json:"reporter,omitempty"`
	Parent      *Issue     `json:"parent,omitempty"`
	Labels      []string   `json:"labels,omitempty"`
	Created     string     `json:"created,omitempty"`
	Updated     string     `json:"updated,omitempty"`
	DueDate     string     `json:"duedate,omitempty"`
	StartDate   string     `json:"customfield_10015,omitempty"`
	StoryPoints *float64   `json:"customfield_10016,omitempty"`
	Sprints     []*Sprint  `json:"customfield_10020,omitempty"`
}

// Status represents an issue status.
type Status struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Priority represents an issue priority.
type Priority struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IssueType represents an issue type.
type IssueType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// User represents a tracker user.
type User struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress,omitempty"`
	Active       bool   `json:"active"`
}

// Sprint represents one entry of the chronological sprint field.
type Sprint struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	State     string `json:"state,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

// Myself is the authenticated identity returned by the probe endpoint.
type Myself struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

// =============================================================================
// SEARCH RESPONSE
// =============================================================================

// SearchResult is one page of a cursor-paginated JQL search.
type SearchResult struct {
	Issues        []*Issue `json:"issues"`
	IsLast        bool     `json:"isLast"`
	NextPageToken string   `json:"nextPageToken,omitempty"`
}
