/*
Package jira imports Jira issues into planner projects and assignments.

PURPOSE:
  Talks to the Jira Cloud REST API v3 with basic auth, maps issue fields onto
  the planner's vocabulary and writes through the planning service, so
  imported data obeys the same validation as hand-entered data.

KEY CONCEPTS:
  Client:   Paginated JQL search and project listing
  mapping:  Issue type, priority, status, hours and ADF description
  Importer: Import (create projects from issues) and Sync (refresh one project)

HOURS:
  Estimated hours = story points (customfield_10016) * 8, or 8 when unset.
  Imported assignments have no resource, so they never go through
  capacity admission.

SEE ALSO:
  - api/jira.go: HTTP endpoints
  - api/scheduler.go: Periodic sync of linked projects
*/
package jira

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Credentials authenticate against one Jira site.
type Credentials struct {
	BaseURL  string `json:"jiraUrl"`
	Email    string `json:"email"`
	APIToken string `json:"apiToken"`
}

// ErrMissingCredentials is returned when a field of Credentials is empty.
var ErrMissingCredentials = errors.New("jiraUrl, email and apiToken are required")

// Validate checks that every field is set.
func (c Credentials) Validate() error {
	if c.BaseURL == "" || c.Email == "" || c.APIToken == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Or fills empty fields of c from fallback.
func (c Credentials) Or(fallback Credentials) Credentials {
	if c.BaseURL == "" {
		c.BaseURL = fallback.BaseURL
	}
	if c.Email == "" {
		c.Email = fallback.Email
	}
	if c.APIToken == "" {
		c.APIToken = fallback.APIToken
	}
	return c
}

func (c Credentials) baseURL() string { return strings.TrimRight(c.BaseURL, "/") }

// =============================================================================
// WIRE TYPES - /rest/api/3
// =============================================================================

// Project is an entry of GET /rest/api/3/project.
type Project struct {
	ID             string `json:"id"`
	Key            string `json:"key"`
	Name           string `json:"name"`
	ProjectTypeKey string `json:"projectTypeKey"`
	Style          string `json:"style"`
}

type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

// ProjectKey returns the prefix of the issue key ("ABC" for "ABC-12").
func (i Issue) ProjectKey() string {
	key, _, _ := strings.Cut(i.Key, "-")
	return key
}

type IssueFields struct {
	Summary     string          `json:"summary"`
	Description json.RawMessage `json:"description"`
	IssueType   Named           `json:"issuetype"`
	Status      Named           `json:"status"`
	Priority    *Named          `json:"priority"`
	Created     string          `json:"created"`
	Updated     string          `json:"updated"`
	DueDate     string          `json:"duedate"`
	StoryPoints *float64        `json:"customfield_10016"`
}

// Named is a Jira field carried as {"name": ...}.
type Named struct {
	Name string `json:"name"`
}

type searchPage struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// APIError is a non-2xx response from Jira.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira error: %s", e.Status)
}
