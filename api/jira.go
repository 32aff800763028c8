package api

import (
	"fmt"
	"net/http"

	"github.com/warp/capacity-planner/capacity"
	"github.com/warp/capacity-planner/jira"
)

// =============================================================================
// JIRA HANDLERS
//   GET  /api/jira/projects             Projects visible to the credentials
//   POST /api/jira/import               Create projects and assignments from issues
//   POST /api/jira/sync/{projectId}     Refresh a linked project
//
// Credentials not given in the request fall back to the configured ones.
// =============================================================================

type JiraProjectListDTO struct {
	Projects []jira.Project `json:"projects"`
	Count    int            `json:"count"`
}

type JiraImportDTO struct {
	Message     string                 `json:"message"`
	Imported    []jira.ImportedProject `json:"imported"`
	Skipped     []string               `json:"skipped"`
	TotalIssues int                    `json:"totalIssues"`
	Errors      []string               `json:"errors"`
}

type JiraSyncDTO struct {
	Message     string   `json:"message"`
	ProjectID   string   `json:"projectId"`
	ProjectCode string   `json:"projectCode"`
	Updated     int      `json:"updated"`
	Created     int      `json:"created"`
	Total       int      `json:"total"`
	Errors      []string `json:"errors"`
}

func (h *Handler) jiraUnavailable(w http.ResponseWriter) bool {
	if h.Importer == nil || h.JiraProjects == nil {
		writeFailure(w, http.StatusServiceUnavailable, "Jira integration is not configured", nil)
		return true
	}
	return false
}

func (h *Handler) ListJiraProjects(w http.ResponseWriter, r *http.Request) {
	if h.jiraUnavailable(w) {
		return
	}
	q := r.URL.Query()
	creds := jira.Credentials{
		BaseURL:  q.Get("jiraUrl"),
		Email:    q.Get("email"),
		APIToken: q.Get("apiToken"),
	}.Or(h.Importer.Defaults())
	if err := creds.Validate(); err != nil {
		h.writeError(w, r, capacity.NewValidationError("credentials", err.Error()))
		return
	}

	projects, err := h.JiraProjects.ListProjects(r.Context(), creds)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, JiraProjectListDTO{Projects: projects, Count: len(projects)})
}

func (h *Handler) ImportJira(w http.ResponseWriter, r *http.Request) {
	if h.jiraUnavailable(w) {
		return
	}
	var req jira.ImportRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Team == "" {
		req.Team = r.Header.Get(TeamHeader)
	}

	res, err := h.Importer.Import(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, JiraImportDTO{
		Message:     fmt.Sprintf("Imported %d projects", len(res.Imported)),
		Imported:    res.Imported,
		Skipped:     res.Skipped,
		TotalIssues: res.TotalIssues,
		Errors:      jira.Messages(res.Failed),
	})
}

func (h *Handler) SyncJira(w http.ResponseWriter, r *http.Request) {
	if h.jiraUnavailable(w) {
		return
	}
	id, err := pathID(r, "projectId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var creds jira.Credentials
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &creds); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	res, err := h.Importer.Sync(r.Context(), id, creds)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, JiraSyncDTO{
		Message:     "Project synced",
		ProjectID:   res.ProjectID,
		ProjectCode: res.ProjectCode,
		Updated:     res.Updated,
		Created:     res.Created,
		Total:       res.Total,
		Errors:      jira.Messages(res.Failed),
	})
}
