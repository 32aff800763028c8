// Package store provides an in-memory planning.Store.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/capacity-planner/capacity"
	"github.com/warp/capacity-planner/planning"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	resources   map[string]planning.Resource
	capacities  map[capacityKey]planning.Capacity
	assignments map[string]planning.Assignment
	projects    map[string]planning.Project

	domains  []planning.Domain
	statuses []planning.Status
	skills   []planning.Skill
}

type capacityKey struct {
	ResourceID string
	Month      int
	Year       int
}

var _ planning.Store = (*Memory)(nil)

// NewMemory returns an empty store seeded with the default reference data.
func NewMemory() *Memory {
	m := &Memory{
		resources:   make(map[string]planning.Resource),
		capacities:  make(map[capacityKey]planning.Capacity),
		assignments: make(map[string]planning.Assignment),
		projects:    make(map[string]planning.Project),
	}
	for i, d := range planning.DefaultDomains {
		d.ID = i + 1
		m.domains = append(m.domains, d)
	}
	for i, s := range planning.DefaultStatuses {
		s.ID = i + 1
		m.statuses = append(m.statuses, s)
	}
	for i, s := range planning.DefaultSkills {
		s.ID = i + 1
		m.skills = append(m.skills, s)
	}
	return m
}

// =============================================================================
// RESOURCES
// =============================================================================

func (m *Memory) GetResource(_ context.Context, id string) (*planning.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.resources[id]
	if !ok {
		return nil, nil
	}
	r.Skills = append([]string(nil), r.Skills...)
	return &r, nil
}

func (m *Memory) GetResourceByCode(_ context.Context, code string) (*planning.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.resources {
		if r.Code == code {
			r.Skills = append([]string(nil), r.Skills...)
			return &r, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListResources(_ context.Context, filter planning.ResourceFilter) ([]planning.Resource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []planning.Resource
	for _, r := range m.resources {
		if filter.Match(r) {
			r.Skills = append([]string(nil), r.Skills...)
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *Memory) CreateResource(_ context.Context, r planning.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resourceCodeTaken(r.Code, r.ID) {
		return &planning.ConflictError{Entity: "Resource", Field: "code", Value: r.Code}
	}
	r.Skills = append([]string(nil), r.Skills...)
	m.resources[r.ID] = r
	return nil
}

func (m *Memory) UpdateResource(_ context.Context, r planning.Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.resources[r.ID]; !ok {
		return &planning.NotFoundError{Entity: "Resource", ID: r.ID}
	}
	if m.resourceCodeTaken(r.Code, r.ID) {
		return &planning.ConflictError{Entity: "Resource", Field: "code", Value: r.Code}
	}
	r.Skills = append([]string(nil), r.Skills...)
	m.resources[r.ID] = r
	return nil
}

func (m *Memory) resourceCodeTaken(code, selfID string) bool {
	for id, r := range m.resources {
		if r.Code == code && id != selfID {
			return true
		}
	}
	return false
}

// =============================================================================
// CAPACITIES
// =============================================================================

func (m *Memory) FindCapacity(_ context.Context, resourceID string, month capacity.Monthly) (*planning.Capacity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.capacities[capacityKey{ResourceID: resourceID, Month: int(month.Month), Year: month.Year}]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) GetCapacity(_ context.Context, id string) (*planning.Capacity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.capacities {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListCapacities(_ context.Context, filter planning.CapacityFilter, page planning.Page) ([]planning.Capacity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.filterCapacities(filter)
	start := page.Offset()
	if start >= len(all) {
		return nil, nil
	}
	end := start + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (m *Memory) CountCapacities(_ context.Context, filter planning.CapacityFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.filterCapacities(filter)), nil
}

// filterCapacities returns matches newest month first.
func (m *Memory) filterCapacities(filter planning.CapacityFilter) []planning.Capacity {
	var result []planning.Capacity
	for _, c := range m.capacities {
		if filter.Match(c) {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		if a.Month != b.Month {
			return a.Month > b.Month
		}
		return a.ResourceID < b.ResourceID
	})
	return result
}

func (m *Memory) UpsertCapacity(_ context.Context, c planning.Capacity) (planning.Capacity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := capacityKey{ResourceID: c.ResourceID, Month: c.Month, Year: c.Year}
	if existing, ok := m.capacities[k]; ok {
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
	}
	m.capacities[k] = c
	return c, nil
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

func (m *Memory) GetAssignment(_ context.Context, id string) (*planning.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assignments[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *Memory) ListAssignments(_ context.Context, filter planning.AssignmentFilter) ([]planning.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []planning.Assignment
	for _, a := range m.assignments {
		if filter.Match(a) {
			result = append(result, a)
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func sortNewestFirst(as []planning.Assignment) {
	sort.Slice(as, func(i, j int) bool {
		if !as[i].CreatedAt.Equal(as[j].CreatedAt) {
			return as[i].CreatedAt.After(as[j].CreatedAt)
		}
		return as[i].ID < as[j].ID
	})
}

func (m *Memory) SumCommittedHours(_ context.Context, resourceID string, bucket capacity.Bucket, excludeID string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := decimal.Zero
	for id, a := range m.assignments {
		if id != excludeID && a.Counts(resourceID, bucket) {
			total = total.Add(a.Hours)
		}
	}
	return total, nil
}

func (m *Memory) CreateAssignment(_ context.Context, a planning.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[a.ProjectID]; !ok {
		return &planning.NotFoundError{Entity: "Project", ID: a.ProjectID}
	}
	m.assignments[a.ID] = a
	return nil
}

func (m *Memory) UpdateAssignment(_ context.Context, a planning.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assignments[a.ID]; !ok {
		return &planning.NotFoundError{Entity: "Assignment", ID: a.ID}
	}
	m.assignments[a.ID] = a
	return nil
}

func (m *Memory) DeleteAssignment(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.assignments, id)
	return nil
}

func (m *Memory) FindAssignmentByJiraKey(_ context.Context, projectID, issueKey string) (*planning.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.assignments {
		if a.ProjectID == projectID && a.JiraIssueKey == issueKey {
			return &a, nil
		}
	}
	return nil, nil
}

// =============================================================================
// PROJECTS
// =============================================================================

func (m *Memory) GetProject(_ context.Context, id string) (*planning.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) GetProjectByCode(_ context.Context, code string) (*planning.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.projects {
		if p.Code == code {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *Memory) FindProjectByCodeAndTeam(_ context.Context, code, team string) (*planning.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.projects {
		if p.Code == code && p.Team == team {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListProjects(_ context.Context, filter planning.ProjectFilter) ([]planning.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []planning.Project
	for _, p := range m.projects {
		if filter.Match(p) {
			result = append(result, p)
		}
	}
	sortProjects(result)
	return result, nil
}

func (m *Memory) ListJiraLinkedProjects(_ context.Context) ([]planning.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []planning.Project
	for _, p := range m.projects {
		if p.IsJiraLinked() {
			result = append(result, p)
		}
	}
	sortProjects(result)
	return result, nil
}

func sortProjects(ps []planning.Project) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].CreatedAt.After(ps[j].CreatedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}

func (m *Memory) CreateProject(_ context.Context, p planning.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.projectCodeTaken(p.Code, p.ID) {
		return &planning.ConflictError{Entity: "Project", Field: "code", Value: p.Code}
	}
	m.projects[p.ID] = p
	return nil
}

func (m *Memory) UpdateProject(_ context.Context, p planning.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.ID]; !ok {
		return &planning.NotFoundError{Entity: "Project", ID: p.ID}
	}
	if m.projectCodeTaken(p.Code, p.ID) {
		return &planning.ConflictError{Entity: "Project", Field: "code", Value: p.Code}
	}
	m.projects[p.ID] = p
	return nil
}

// DeleteProject removes the project and cascades to its assignments.
func (m *Memory) DeleteProject(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.projects, id)
	for aid, a := range m.assignments {
		if a.ProjectID == id {
			delete(m.assignments, aid)
		}
	}
	return nil
}

func (m *Memory) projectCodeTaken(code, selfID string) bool {
	for id, p := range m.projects {
		if p.Code == code && id != selfID {
			return true
		}
	}
	return false
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func (m *Memory) ListDomains(_ context.Context) ([]planning.Domain, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]planning.Domain(nil), m.domains...), nil
}

func (m *Memory) ListStatuses(_ context.Context) ([]planning.Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := append([]planning.Status(nil), m.statuses...)
	sort.Slice(result, func(i, j int) bool { return result[i].Order < result[j].Order })
	return result, nil
}

func (m *Memory) ListSkills(_ context.Context) ([]planning.Skill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]planning.Skill(nil), m.skills...), nil
}
