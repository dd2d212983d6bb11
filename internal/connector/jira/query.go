package jira

import (
	"fmt"
	"strings"

	"github.com/scrumlens/sync-core/internal/model"
)

// BuildQuery returns the JQL for one entity kind. The template is
// deterministic: project key, team label, and import-since date are
// substituted as-is. Values come from validated configuration, not end
// users, so no JQL escaping is applied; a project key containing quotes
// would break the query rather than be sanitized.
func BuildQuery(kind model.ImportKind, cfg *Config) string {
	clauses := []string{fmt.Sprintf("project = %q", cfg.ProjectKey)}

	if kind == model.KindEpics {
		clauses = append(clauses, "issuetype = Epic")
	} else {
		clauses = append(clauses, "issuetype != Epic")
	}

	if cfg.TeamName != "" {
		clauses = append(clauses, fmt.Sprintf("labels = %q", cfg.TeamName))
	}
	if cfg.ImportSince != "" {
		clauses = append(clauses, fmt.Sprintf("updated >= %q", cfg.ImportSince))
	}

	return strings.Join(clauses, " AND ") + " ORDER BY created ASC"
}
