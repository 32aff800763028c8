/*
handlers_test.go - HTTP tests for the planner API

Tests for:
- Envelope shape and error mapping (400, 404, 409, 422)
- Project, resource, assignment and capacity endpoints on SQLite :memory:
- Team scoping through X-User-Team
- Reference data caching
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/capacity-planner/planning"
	"github.com/warp/capacity-planner/store/sqlite"
)

type testEnv struct {
	handler *Handler
	router  http.Handler
	store   *sqlite.Store
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(Deps{Service: planning.NewService(store, nil, nil), Health: store})
	return testEnv{handler: h, router: NewRouter(h, RouterOptions{}), store: store}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Message    string          `json:"message"`
		StatusCode int             `json:"statusCode"`
		Details    json.RawMessage `json:"details"`
	} `json:"error"`
}

func (e testEnv) do(t *testing.T, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Code != http.StatusNoContent {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func (e testEnv) createProject(t *testing.T, code, team string) ProjectDTO {
	t.Helper()
	rec, env := e.do(t, http.MethodPost, "/api/projects", map[string]any{"code": code, "title": "Project " + code, "team": team})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData[ProjectDTO](t, env)
}

func (e testEnv) createResource(t *testing.T, code string, skills ...string) ResourceDTO {
	t.Helper()
	rec, env := e.do(t, http.MethodPost, "/api/resources", map[string]any{"code": code, "name": "Resource " + code, "skills": skills})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData[ResourceDTO](t, env)
}

// =============================================================================
// PROJECTS
// =============================================================================

func TestProjects_Lifecycle(t *testing.T) {
	env := newTestEnv(t)

	// GIVEN: a project created without a team under the core team header
	rec, res := env.do(t, http.MethodPost, "/api/projects",
		map[string]any{"code": "PRJ-1", "title": "Billing", "startDate": "2025-01-01", "endDate": "2025-06-30"},
		TeamHeader, "core")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decodeData[ProjectDTO](t, res)
	assert.True(t, res.Success)
	assert.Equal(t, "core", p.Team)
	assert.Equal(t, "/api/projects/"+p.ID, rec.Header().Get("Location"))
	require.NotNil(t, p.StartDate)
	assert.Equal(t, "2025-01-01", *p.StartDate)

	env.createProject(t, "PRJ-2", "other")

	// WHEN: listing with the team header
	rec, res = env.do(t, http.MethodGet, "/api/projects", nil, TeamHeader, "core")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeData[ProjectListDTO](t, res)

	// THEN: only the team's project
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "PRJ-1", list.Projects[0].Code)

	// Update and fetch
	rec, _ = env.do(t, http.MethodPut, "/api/projects/"+p.ID, map[string]any{"title": "Billing v2"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, res = env.do(t, http.MethodGet, "/api/projects/"+p.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decodeData[ProjectDetailDTO](t, res)
	assert.Equal(t, "Billing v2", detail.Title)
	assert.Empty(t, detail.Assignments)

	// Delete
	rec, _ = env.do(t, http.MethodDelete, "/api/projects/"+p.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = env.do(t, http.MethodGet, "/api/projects/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProjects_DuplicateCodeIsConflict(t *testing.T) {
	env := newTestEnv(t)
	env.createProject(t, "PRJ-1", "core")

	rec, res := env.do(t, http.MethodPost, "/api/projects", map[string]any{"code": "PRJ-1", "title": "Again"})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, http.StatusConflict, res.Error.StatusCode)
	assert.JSONEq(t, `{"field":"code"}`, string(res.Error.Details))
}

func TestProjects_ValidationDetails(t *testing.T) {
	env := newTestEnv(t)

	rec, res := env.do(t, http.MethodPost, "/api/projects",
		map[string]any{"code": "PRJ-1", "title": "Bad", "priority": "urgent", "startDate": "2025-06-01", "endDate": "2025-01-01"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, res.Error)
	var fields []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(res.Error.Details, &fields))
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Field
	}
	assert.Contains(t, names, "priority")
	assert.Contains(t, names, "endDate")
}

func TestInvalidPathID(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/projects/abc", "/api/resources/abc", "/api/assignments/abc", "/api/capacity/abc"} {
		rec, _ := env.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestInvalidBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/projects", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// ASSIGNMENTS - admission through HTTP
// =============================================================================

func TestCreateAssignment_DailyCapacityExceeded(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject(t, "PRJ-1", "core")
	r := env.createResource(t, "R-1", "Construcción")

	// GIVEN: 6 hours on 2025-03-03
	rec, _ := env.do(t, http.MethodPost, "/api/assignments", map[string]any{
		"projectId": p.ID, "resourceId": r.ID, "title": "Morning", "date": "2025-03-03", "hours": 6,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// WHEN: proposing 3 more on the same day
	rec, res := env.do(t, http.MethodPost, "/api/assignments", map[string]any{
		"projectId": p.ID, "resourceId": r.ID, "title": "Afternoon", "date": "2025-03-03", "hours": 3,
	})

	// THEN: 422 with the rule and the breakdown
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, res.Error)
	var details struct {
		Rule      string          `json:"rule"`
		Budget    decimal.Decimal `json:"budget"`
		Assigned  decimal.Decimal `json:"assigned"`
		Available decimal.Decimal `json:"available"`
	}
	require.NoError(t, json.Unmarshal(res.Error.Details, &details))
	assert.Equal(t, "DAILY_CAPACITY_EXCEEDED", details.Rule)
	assert.Equal(t, "8", details.Budget.String())
	assert.Equal(t, "6", details.Assigned.String())
	assert.Equal(t, "2", details.Available.String())
}

func TestCreateAssignment_SkillMismatch(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject(t, "PRJ-1", "core")
	r := env.createResource(t, "R-1", "QA")

	rec, res := env.do(t, http.MethodPost, "/api/assignments", map[string]any{
		"projectId": p.ID, "resourceId": r.ID, "title": "Build", "skillName": "Construcción", "month": 3, "year": 2025, "hours": 10,
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, string(res.Error.Details), "RESOURCE_SKILL_MISMATCH")
}

func TestAssignments_CRUD(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject(t, "PRJ-1", "core")
	r := env.createResource(t, "R-1")

	rec, res := env.do(t, http.MethodPost, "/api/assignments", map[string]any{
		"projectId": p.ID, "resourceId": r.ID, "title": "Backend", "month": 3, "year": 2025, "hours": 40.5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	a := decodeData[AssignmentDTO](t, res)
	assert.Nil(t, a.Date)
	require.NotNil(t, a.Month)
	assert.Equal(t, 3, *a.Month)
	assert.Equal(t, "40.5", a.Hours.String())
	assert.Equal(t, "core", a.Team)

	// List by month matches
	rec, res = env.do(t, http.MethodGet, "/api/assignments?resourceId="+r.ID+"&month=3&year=2025", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeData[AssignmentListDTO](t, res).Count)

	// Update hours
	rec, res = env.do(t, http.MethodPut, "/api/assignments/"+a.ID, map[string]any{"hours": 20})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "20", decodeData[AssignmentDTO](t, res).Hours.String())

	// Delete
	rec, _ = env.do(t, http.MethodDelete, "/api/assignments/"+a.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = env.do(t, http.MethodGet, "/api/assignments/"+a.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateAssignment_ClearResource(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject(t, "PRJ-1", "core")
	r := env.createResource(t, "R-1")

	rec, res := env.do(t, http.MethodPost, "/api/assignments", map[string]any{
		"projectId": p.ID, "resourceId": r.ID, "title": "Backend", "month": 3, "year": 2025, "hours": 160,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	a := decodeData[AssignmentDTO](t, res)

	// An empty resource id unassigns, so the budget no longer applies.
	rec, res = env.do(t, http.MethodPut, "/api/assignments/"+a.ID, map[string]any{"resourceId": "", "hours": 200})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Nil(t, decodeData[AssignmentDTO](t, res).ResourceID)

	rec, res = env.do(t, http.MethodGet, "/api/assignments/"+a.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decodeData[AssignmentDTO](t, res).ResourceID)

	rec, res = env.do(t, http.MethodPut, "/api/assignments/"+a.ID, map[string]any{"resourceId": "not-a-uuid"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, string(res.Error.Details), "resourceId")
}

func TestListAssignments_InvalidFilter(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodGet, "/api/assignments?projectId=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/assignments?month=march", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// RESOURCES AND CAPACITY
// =============================================================================

func TestResources_ListAndDeactivate(t *testing.T) {
	env := newTestEnv(t)
	r := env.createResource(t, "R-1", "QA")
	env.createResource(t, "R-2", "Diseño")
	assert.Equal(t, "160", r.DefaultCapacity.String())
	assert.True(t, r.Active)

	rec, _ := env.do(t, http.MethodPut, "/api/resources/"+r.ID, map[string]any{"active": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, res := env.do(t, http.MethodGet, "/api/resources?active=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeData[ResourceListDTO](t, res)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "R-2", list.Resources[0].Code)

	rec, _ = env.do(t, http.MethodGet, "/api/resources?active=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResources_DuplicateCodeIsConflict(t *testing.T) {
	env := newTestEnv(t)
	env.createResource(t, "R-1")

	rec, _ := env.do(t, http.MethodPost, "/api/resources", map[string]any{"code": "R-1", "name": "Again"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateResource_ClearEmail(t *testing.T) {
	env := newTestEnv(t)
	rec, res := env.do(t, http.MethodPost, "/api/resources", map[string]any{"code": "R-1", "name": "Ana", "email": "ana@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	r := decodeData[ResourceDTO](t, res)
	assert.Equal(t, "ana@example.com", r.Email)

	rec, res = env.do(t, http.MethodPut, "/api/resources/"+r.ID, map[string]any{"email": ""})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, decodeData[ResourceDTO](t, res).Email)

	rec, res = env.do(t, http.MethodPut, "/api/resources/"+r.ID, map[string]any{"email": "nope"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid email format", res.Error.Message)
}

func TestCapacity_SetListAndReduce(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject(t, "PRJ-1", "core")
	r := env.createResource(t, "R-1")

	// GIVEN: a 100h override for March with 80h committed
	rec, res := env.do(t, http.MethodPut, "/api/capacity", map[string]any{"resourceId": r.ID, "month": 3, "year": 2025, "totalHours": 100})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := decodeData[CapacityViewDTO](t, res)
	assert.Equal(t, "100", c.TotalHours.String())

	rec, _ = env.do(t, http.MethodPost, "/api/assignments", map[string]any{
		"projectId": p.ID, "resourceId": r.ID, "title": "Work", "month": 3, "year": 2025, "hours": 80,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// WHEN: reading it back
	rec, res = env.do(t, http.MethodGet, "/api/capacity/"+c.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeData[CapacityViewDTO](t, res)
	assert.Equal(t, "80", view.AssignedHours.String())
	assert.Equal(t, "20", view.AvailableHours.String())
	assert.Equal(t, 80, view.UtilizationPercentage)

	// THEN: reducing below 80 is rejected
	rec, res = env.do(t, http.MethodPut, "/api/capacity", map[string]any{"resourceId": r.ID, "month": 3, "year": 2025, "totalHours": 70})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, string(res.Error.Details), "CAPACITY_BELOW_ASSIGNED")

	// Paginated list
	rec, res = env.do(t, http.MethodGet, "/api/capacity?resourceId="+r.ID+"&page=1&limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeData[CapacityListDTO](t, res)
	require.Len(t, list.Capacities, 1)
	assert.Equal(t, PaginationDTO{Page: 1, Limit: 10, Total: 1, TotalPages: 1}, list.Pagination)

	rec, _ = env.do(t, http.MethodGet, "/api/capacity?limit=500", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvailability(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProject(t, "PRJ-1", "core")
	r := env.createResource(t, "R-1")

	rec, _ := env.do(t, http.MethodPost, "/api/assignments", map[string]any{
		"projectId": p.ID, "resourceId": r.ID, "title": "Pairing", "date": "2025-03-03", "hours": 5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, res := env.do(t, http.MethodGet, "/api/resources/"+r.ID+"/availability?date=2025-03-03", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	daily := decodeData[AvailabilityDTO](t, res)
	assert.Equal(t, "daily", daily.Kind)
	assert.Equal(t, "3", daily.AvailableHours.String())

	// Daily hours never count against the month
	rec, res = env.do(t, http.MethodGet, "/api/resources/"+r.ID+"/availability?month=3&year=2025", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "160", decodeData[AvailabilityDTO](t, res).AvailableHours.String())

	rec, _ = env.do(t, http.MethodGet, "/api/resources/"+r.ID+"/availability?date=2025-03-03&month=3&year=2025", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// REFERENCE DATA AND HEALTH
// =============================================================================

func TestReferenceData_Cached(t *testing.T) {
	env := newTestEnv(t)

	rec, res := env.do(t, http.MethodGet, "/api/skills", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	skills := decodeData[[]SkillDTO](t, res)
	assert.Len(t, skills, len(planning.DefaultSkills))

	_, ok := env.handler.reference.Get(cacheSkills)
	assert.True(t, ok)

	rec, res = env.do(t, http.MethodGet, "/api/statuses", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	statuses := decodeData[[]StatusDTO](t, res)
	require.Len(t, statuses, len(planning.DefaultStatuses))
	assert.Equal(t, 1, statuses[0].Order)

	rec, res = env.do(t, http.MethodGet, "/api/domains", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[[]DomainDTO](t, res), len(planning.DefaultDomains))
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rec, res := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, res.Success)
}

func TestJiraEndpoints_Unconfigured(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodPost, "/api/jira/import", map[string]any{"team": "core"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
