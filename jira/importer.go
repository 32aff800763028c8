package jira

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/capacity-planner/capacity"
	"github.com/warp/capacity-planner/planning"
)

// Planner is the part of the planning service the importer writes through.
// *planning.Service satisfies it.
type Planner interface {
	FindProjectByCodeAndTeam(ctx context.Context, code, team string) (*planning.Project, error)
	GetProject(ctx context.Context, id string) (*planning.ProjectView, error)
	CreateProject(ctx context.Context, in planning.ProjectInput) (*planning.Project, error)
	UpdateProject(ctx context.Context, id string, patch planning.ProjectPatch) (*planning.Project, error)
	CreateAssignment(ctx context.Context, in planning.AssignmentInput) (*planning.Assignment, error)
	UpdateAssignment(ctx context.Context, id string, patch planning.AssignmentPatch) (*planning.Assignment, error)
	FindAssignmentByJiraKey(ctx context.Context, projectID, issueKey string) (*planning.Assignment, error)
	ListJiraLinkedProjects(ctx context.Context) ([]planning.Project, error)
}

// Searcher runs JQL searches. *Client satisfies it.
type Searcher interface {
	SearchIssues(ctx context.Context, creds Credentials, jql string) ([]Issue, error)
}

var projectKeyPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidProjectKey reports whether key can be embedded in a JQL clause.
func ValidProjectKey(key string) bool { return projectKeyPattern.MatchString(key) }

// =============================================================================
// METRICS
// =============================================================================

type Metrics struct {
	issues *prometheus.CounterVec
}

// NewMetrics registers planner_jira_issues_total{operation} on reg when it
// is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		issues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: planning.Namespace,
			Subsystem: "jira",
			Name:      "issues_total",
			Help:      "Jira issues processed by import and sync, by operation.",
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(m.issues)
	}
	return m
}

func (m *Metrics) count(operation string) {
	if m == nil {
		return
	}
	m.issues.WithLabelValues(operation).Inc()
}

// =============================================================================
// IMPORTER
// =============================================================================

type Importer struct {
	search   Searcher
	planner  Planner
	log      *zap.Logger
	metrics  *Metrics
	defaults Credentials
}

// NewImporter returns an importer. Credentials passed to Import and Sync
// fall back to defaults field by field.
func NewImporter(search Searcher, planner Planner, log *zap.Logger, metrics *Metrics, defaults Credentials) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{search: search, planner: planner, log: log, metrics: metrics, defaults: defaults}
}

// Defaults returns the configured fallback credentials.
func (im *Importer) Defaults() Credentials { return im.defaults }

type ImportRequest struct {
	Credentials
	ProjectKeys []string `json:"projectKeys"`
	JQL         string   `json:"jqlQuery"`
	Team        string   `json:"team"`
}

type ImportedProject struct {
	ID               string `json:"id"`
	Code             string `json:"code"`
	Title            string `json:"title"`
	AssignmentsCount int    `json:"assignmentsCount"`
}

type ImportResult struct {
	Imported    []ImportedProject
	Skipped     []string
	TotalIssues int
	// Failed collects per-project and per-issue errors; nil when none.
	Failed error
}

// Import searches Jira and creates one project per issue key prefix, with
// one unassigned assignment per issue. Projects that already exist for
// the team are skipped. Failures of single projects or issues are
// collected in Failed and do not stop the import.
func (im *Importer) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	creds := req.Credentials.Or(im.defaults)
	if err := creds.Validate(); err != nil {
		return nil, capacity.NewValidationError("credentials", err.Error())
	}
	if req.Team == "" {
		return nil, capacity.NewValidationError("team", "Team is required")
	}
	jql, err := importQuery(req)
	if err != nil {
		return nil, err
	}

	issues, err := im.search.SearchIssues(ctx, creds, jql)
	if err != nil {
		return nil, fmt.Errorf("search jira issues: %w", err)
	}

	groups := make(map[string][]Issue)
	for _, is := range issues {
		groups[is.ProjectKey()] = append(groups[is.ProjectKey()], is)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := &ImportResult{TotalIssues: len(issues), Imported: []ImportedProject{}, Skipped: []string{}}
	var failed *multierror.Error
	for _, key := range keys {
		existing, err := im.planner.FindProjectByCodeAndTeam(ctx, key, req.Team)
		if err != nil {
			return nil, fmt.Errorf("find project %s: %w", key, err)
		}
		if existing != nil {
			im.log.Info("jira project already imported", zap.String("key", key), zap.String("team", req.Team))
			result.Skipped = append(result.Skipped, key)
			continue
		}

		imported, err := im.importProject(ctx, creds, key, req.Team, groups[key], &failed)
		if err != nil {
			failed = multierror.Append(failed, fmt.Errorf("project %s: %w", key, err))
			continue
		}
		result.Imported = append(result.Imported, *imported)
	}

	result.Failed = failed.ErrorOrNil()
	im.log.Info("jira import finished",
		zap.Int("issues", result.TotalIssues),
		zap.Int("imported", len(result.Imported)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Error(result.Failed))
	return result, nil
}

func importQuery(req ImportRequest) (string, error) {
	if len(req.ProjectKeys) > 0 {
		jql := ""
		for i, k := range req.ProjectKeys {
			if !ValidProjectKey(k) {
				return "", capacity.NewValidationError("projectKeys", fmt.Sprintf("Invalid project key '%s'", k))
			}
			if i > 0 {
				jql += " OR "
			}
			jql += "project = " + k
		}
		return jql, nil
	}
	if req.JQL != "" {
		return req.JQL, nil
	}
	return "", capacity.NewValidationError("projectKeys", "Either projectKeys or jqlQuery is required")
}

func (im *Importer) importProject(ctx context.Context, creds Credentials, key, team string, issues []Issue, failed **multierror.Error) (*ImportedProject, error) {
	first := issues[0].Fields
	in := planning.ProjectInput{
		Code:           key,
		Title:          key,
		Description:    fmt.Sprintf("Imported from Jira (%d issues)", len(issues)),
		Type:           MapIssueType(first.IssueType.Name),
		Priority:       MapPriority(priorityName(first)),
		Status:         MapStatus(first.Status.Name),
		Team:           team,
		JiraProjectKey: key,
		JiraURL:        creds.baseURL(),
	}
	if start, ok := ParseTime(first.Created); ok {
		in.StartDate = start.Format(capacity.DateLayout)
	}
	// A due date before the creation day is dropped rather than failing the project.
	if due, ok := ParseTime(first.DueDate); ok && due.Format(capacity.DateLayout) >= in.StartDate {
		in.EndDate = due.Format(capacity.DateLayout)
	}

	project, err := im.planner.CreateProject(ctx, in)
	if err != nil {
		return nil, err
	}

	out := &ImportedProject{ID: project.ID, Code: project.Code, Title: project.Title}
	for _, is := range issues {
		if _, err := im.planner.CreateAssignment(ctx, im.assignmentInput(project.ID, team, is)); err != nil {
			im.log.Warn("skipping jira issue", zap.String("issue", is.Key), zap.Error(err))
			im.metrics.count("failed")
			*failed = multierror.Append(*failed, fmt.Errorf("issue %s: %w", is.Key, err))
			continue
		}
		im.metrics.count("created")
		out.AssignmentsCount++
	}
	return out, nil
}

// assignmentInput maps an issue onto an unassigned daily assignment dated
// on the issue's creation day.
func (im *Importer) assignmentInput(projectID, team string, is Issue) planning.AssignmentInput {
	in := planning.AssignmentInput{
		ProjectID:    projectID,
		Title:        is.Fields.Summary,
		Description:  PlainText(is.Fields.Description),
		Team:         team,
		Hours:        im.estimate(is),
		JiraIssueKey: is.Key,
		JiraIssueID:  is.ID,
	}
	if created, ok := ParseTime(is.Fields.Created); ok {
		in.Date = created.Format(capacity.DateLayout)
	}
	return in
}

// estimate returns the issue's estimated hours, capped at the largest
// quantity an assignment may hold.
func (im *Importer) estimate(is Issue) decimal.Decimal {
	h := EstimatedHours(is.Fields)
	limit := decimal.NewFromInt(planning.MaxMonthlyHours)
	if h.GreaterThan(limit) {
		im.log.Warn("capping jira estimate",
			zap.String("issue", is.Key),
			zap.String("hours", h.String()),
			zap.String("cap", limit.String()))
		return limit
	}
	return h
}

// =============================================================================
// SYNC
// =============================================================================

type SyncResult struct {
	ProjectID   string `json:"projectId"`
	ProjectCode string `json:"projectCode"`
	Updated     int    `json:"updated"`
	Created     int    `json:"created"`
	Total       int    `json:"total"`
	Failed      error  `json:"-"`
}

// Sync refreshes the assignments of a Jira-linked project. Issues already
// imported get their title, description and hours updated; new issues are
// created.
func (im *Importer) Sync(ctx context.Context, projectID string, creds Credentials) (*SyncResult, error) {
	creds = creds.Or(im.defaults)
	if err := creds.Validate(); err != nil {
		return nil, capacity.NewValidationError("credentials", err.Error())
	}

	view, err := im.planner.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	p := view.Project
	if !p.IsJiraLinked() {
		return nil, capacity.NewValidationError("jiraProjectKey", "Project is not linked to Jira")
	}
	if !ValidProjectKey(p.JiraProjectKey) {
		return nil, capacity.NewValidationError("jiraProjectKey", fmt.Sprintf("Invalid project key '%s'", p.JiraProjectKey))
	}

	issues, err := im.search.SearchIssues(ctx, creds, "project = "+p.JiraProjectKey)
	if err != nil {
		return nil, fmt.Errorf("search jira issues: %w", err)
	}

	result := &SyncResult{ProjectID: p.ID, ProjectCode: p.Code, Total: len(issues)}
	var failed *multierror.Error
	for _, is := range issues {
		created, err := im.syncIssue(ctx, p, is)
		if err != nil {
			im.log.Warn("jira issue sync failed", zap.String("issue", is.Key), zap.Error(err))
			im.metrics.count("failed")
			failed = multierror.Append(failed, fmt.Errorf("issue %s: %w", is.Key, err))
			continue
		}
		if created {
			im.metrics.count("created")
			result.Created++
		} else {
			im.metrics.count("updated")
			result.Updated++
		}
	}

	if _, err := im.planner.UpdateProject(ctx, p.ID, planning.ProjectPatch{}); err != nil {
		return nil, fmt.Errorf("touch project: %w", err)
	}

	result.Failed = failed.ErrorOrNil()
	im.log.Info("jira project synced",
		zap.String("project", p.Code),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Error(result.Failed))
	return result, nil
}

func (im *Importer) syncIssue(ctx context.Context, p planning.Project, is Issue) (created bool, err error) {
	existing, err := im.planner.FindAssignmentByJiraKey(ctx, p.ID, is.Key)
	if err != nil {
		return false, err
	}
	if existing == nil {
		_, err := im.planner.CreateAssignment(ctx, im.assignmentInput(p.ID, p.Team, is))
		return err == nil, err
	}

	title := is.Fields.Summary
	description := PlainText(is.Fields.Description)
	hours := im.estimate(is)
	_, err = im.planner.UpdateAssignment(ctx, existing.ID, planning.AssignmentPatch{
		Title:       &title,
		Description: &description,
		Hours:       &hours,
	})
	return false, err
}

// SyncAll syncs every Jira-linked project with the default credentials.
// It returns the number of projects synced and the collected failures.
func (im *Importer) SyncAll(ctx context.Context) (int, error) {
	projects, err := im.planner.ListJiraLinkedProjects(ctx)
	if err != nil {
		return 0, fmt.Errorf("list linked projects: %w", err)
	}
	var failed *multierror.Error
	synced := 0
	for _, p := range projects {
		if ctx.Err() != nil {
			failed = multierror.Append(failed, ctx.Err())
			break
		}
		res, err := im.Sync(ctx, p.ID, Credentials{})
		if err != nil {
			failed = multierror.Append(failed, fmt.Errorf("project %s: %w", p.Code, err))
			continue
		}
		if res.Failed != nil {
			failed = multierror.Append(failed, fmt.Errorf("project %s: %w", p.Code, res.Failed))
		}
		synced++
	}
	return synced, failed.ErrorOrNil()
}

// Messages flattens an error collected by Import or Sync.
func Messages(err error) []string {
	if err == nil {
		return []string{}
	}
	if merr, ok := err.(*multierror.Error); ok {
		out := make([]string, 0, len(merr.Errors))
		for _, e := range merr.Errors {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
