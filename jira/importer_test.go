package jira_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/capacity-planner/capacity"
	"github.com/warp/capacity-planner/jira"
	"github.com/warp/capacity-planner/planning"
	"github.com/warp/capacity-planner/planning/store"
)

// fakeSearch returns canned issues and records the last query.
type fakeSearch struct {
	issues  []jira.Issue
	lastJQL string
}

func (f *fakeSearch) SearchIssues(_ context.Context, _ jira.Credentials, jql string) ([]jira.Issue, error) {
	f.lastJQL = jql
	return f.issues, nil
}

func pts(v float64) *float64 { return &v }

func issue(id, key, summary string, points *float64) jira.Issue {
	return jira.Issue{
		ID:  id,
		Key: key,
		Fields: jira.IssueFields{
			Summary:     summary,
			Description: json.RawMessage(`"from jira"`),
			IssueType:   jira.Named{Name: "Story"},
			Created:     "2025-03-04T09:30:00.000+0000",
			DueDate:     "2025-04-30",
			StoryPoints: points,
		},
	}
}

var defaults = jira.Credentials{BaseURL: "https://acme.atlassian.net", Email: "dev@example.com", APIToken: "token"}

func setupImporter(t *testing.T, issues ...jira.Issue) (*jira.Importer, *planning.Service, *fakeSearch, *prometheus.Registry) {
	t.Helper()
	svc := planning.NewService(store.NewMemory(), nil, nil)
	search := &fakeSearch{issues: issues}
	reg := prometheus.NewRegistry()
	return jira.NewImporter(search, svc, nil, jira.NewMetrics(reg), defaults), svc, search, reg
}

// =============================================================================
// IMPORT
// =============================================================================

func TestImport_GroupsIssuesByProjectKey(t *testing.T) {
	im, svc, search, _ := setupImporter(t,
		issue("1", "PLAT-1", "Login page", pts(2)),
		issue("2", "PLAT-2", "Logout", nil),
		issue("3", "OPS-7", "Rotate keys", pts(1)),
	)
	ctx := context.Background()

	// WHEN: importing two project keys for team core
	res, err := im.Import(ctx, jira.ImportRequest{ProjectKeys: []string{"PLAT", "OPS"}, Team: "core"})
	require.NoError(t, err)

	// THEN: one project per key, one assignment per issue
	assert.Equal(t, "project = PLAT OR project = OPS", search.lastJQL)
	assert.Equal(t, 3, res.TotalIssues)
	assert.NoError(t, res.Failed)
	require.Len(t, res.Imported, 2)
	assert.Equal(t, "OPS", res.Imported[0].Code)
	assert.Equal(t, 1, res.Imported[0].AssignmentsCount)
	assert.Equal(t, "PLAT", res.Imported[1].Code)
	assert.Equal(t, 2, res.Imported[1].AssignmentsCount)

	view, err := svc.GetProject(ctx, res.Imported[1].ID)
	require.NoError(t, err)
	assert.Equal(t, "PLAT", view.Project.JiraProjectKey)
	assert.Equal(t, "core", view.Project.Team)
	assert.Equal(t, "Evolutivo", view.Project.Type)
	assert.Equal(t, "2025-03-04", view.Project.StartDate.Format(capacity.DateLayout))
	assert.Equal(t, "2025-04-30", view.Project.EndDate.Format(capacity.DateLayout))
	assert.Equal(t, "24", view.TotalAssignedHours.String())

	a, err := svc.FindAssignmentByJiraKey(ctx, view.Project.ID, "PLAT-1")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.False(t, a.IsAssigned())
	assert.Equal(t, "from jira", a.Description)
	assert.Equal(t, capacity.KindDaily, a.Bucket.Kind())
}

func TestImport_SkipsExistingProjectForTeam(t *testing.T) {
	im, svc, _, _ := setupImporter(t, issue("1", "PLAT-1", "Login page", nil))
	ctx := context.Background()

	_, err := svc.CreateProject(ctx, planning.ProjectInput{Code: "PLAT", Title: "Platform", Team: "core"})
	require.NoError(t, err)

	res, err := im.Import(ctx, jira.ImportRequest{JQL: "assignee = currentUser()", Team: "core"})
	require.NoError(t, err)

	assert.Empty(t, res.Imported)
	assert.Equal(t, []string{"PLAT"}, res.Skipped)
}

func TestImport_CollectsIssueFailures(t *testing.T) {
	// GIVEN: one issue without a summary
	im, _, _, reg := setupImporter(t,
		issue("1", "PLAT-1", "Login page", nil),
		issue("2", "PLAT-2", "", nil),
	)

	res, err := im.Import(context.Background(), jira.ImportRequest{ProjectKeys: []string{"PLAT"}, Team: "core"})
	require.NoError(t, err)

	// THEN: the project is imported without the broken issue
	require.Len(t, res.Imported, 1)
	assert.Equal(t, 1, res.Imported[0].AssignmentsCount)
	msgs := jira.Messages(res.Failed)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "PLAT-2")
	expected := `
# HELP planner_jira_issues_total Jira issues processed by import and sync, by operation.
# TYPE planner_jira_issues_total counter
planner_jira_issues_total{operation="created"} 1
planner_jira_issues_total{operation="failed"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "planner_jira_issues_total"))
}

func TestImport_CapsLargeEstimates(t *testing.T) {
	// 100 points * 8 = 800 hours, above the 744 hour ceiling.
	im, svc, _, _ := setupImporter(t, issue("1", "PLAT-1", "Rewrite billing", pts(100)))
	ctx := context.Background()

	res, err := im.Import(ctx, jira.ImportRequest{ProjectKeys: []string{"PLAT"}, Team: "core"})
	require.NoError(t, err)
	assert.NoError(t, res.Failed)
	require.Len(t, res.Imported, 1)
	assert.Equal(t, 1, res.Imported[0].AssignmentsCount)

	a, err := svc.FindAssignmentByJiraKey(ctx, res.Imported[0].ID, "PLAT-1")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "744", a.Hours.String())
}

func TestImport_Rejections(t *testing.T) {
	im, _, _, _ := setupImporter(t)
	ctx := context.Background()

	cases := map[string]jira.ImportRequest{
		"team":        {ProjectKeys: []string{"PLAT"}},
		"projectKeys": {Team: "core"},
		"invalid key": {ProjectKeys: []string{"PLAT OR 1=1"}, Team: "core"},
	}
	for name, req := range cases {
		_, err := im.Import(ctx, req)
		assert.True(t, capacity.IsValidation(err), name)
	}
}

func TestImport_RequiresCredentials(t *testing.T) {
	svc := planning.NewService(store.NewMemory(), nil, nil)
	im := jira.NewImporter(&fakeSearch{}, svc, nil, nil, jira.Credentials{})

	_, err := im.Import(context.Background(), jira.ImportRequest{ProjectKeys: []string{"PLAT"}, Team: "core"})
	assert.True(t, capacity.IsValidation(err))
}

// =============================================================================
// SYNC
// =============================================================================

func TestSync_UpdatesAndCreates(t *testing.T) {
	im, svc, search, _ := setupImporter(t, issue("1", "PLAT-1", "Login page", nil))
	ctx := context.Background()

	res, err := im.Import(ctx, jira.ImportRequest{ProjectKeys: []string{"PLAT"}, Team: "core"})
	require.NoError(t, err)
	projectID := res.Imported[0].ID

	// GIVEN: PLAT-1 re-estimated and PLAT-2 new in Jira
	search.issues = []jira.Issue{
		issue("1", "PLAT-1", "Login page v2", pts(3)),
		issue("2", "PLAT-2", "Password reset", nil),
	}

	// WHEN
	sync, err := im.Sync(ctx, projectID, jira.Credentials{})
	require.NoError(t, err)

	// THEN
	assert.Equal(t, "project = PLAT", search.lastJQL)
	assert.Equal(t, 1, sync.Updated)
	assert.Equal(t, 1, sync.Created)
	assert.Equal(t, 2, sync.Total)

	a, err := svc.FindAssignmentByJiraKey(ctx, projectID, "PLAT-1")
	require.NoError(t, err)
	assert.Equal(t, "Login page v2", a.Title)
	assert.Equal(t, "24", a.Hours.String())
}

func TestSync_RejectsUnlinkedProject(t *testing.T) {
	im, svc, _, _ := setupImporter(t)
	ctx := context.Background()

	p, err := svc.CreateProject(ctx, planning.ProjectInput{Code: "LOCAL", Title: "Local only"})
	require.NoError(t, err)

	_, err = im.Sync(ctx, p.ID, jira.Credentials{})
	assert.True(t, capacity.IsValidation(err))

	_, err = im.Sync(ctx, "6f1c2a4e-0000-4000-8000-000000000000", jira.Credentials{})
	assert.True(t, planning.IsNotFound(err))
}

func TestSyncAll(t *testing.T) {
	im, _, _, _ := setupImporter(t, issue("1", "PLAT-1", "Login page", nil))
	ctx := context.Background()

	_, err := im.Import(ctx, jira.ImportRequest{ProjectKeys: []string{"PLAT"}, Team: "core"})
	require.NoError(t, err)

	synced, err := im.SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, synced)
}
