/*
dto.go - Data Transfer Objects for API responses

PURPOSE:
  Defines the JSON structures returned to clients. Request bodies decode
  straight into the planning input types, which carry their own json and
  validate tags.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - to*DTO: Converters from planning entities

HOURS:
  Decimal hours are encoded as JSON numbers (see init).

SEE ALSO:
  - planning/inputs.go: Request bodies
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/capacity-planner/capacity"
	"github.com/warp/capacity-planner/planning"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// =============================================================================
// PROJECTS
// =============================================================================

type ProjectDTO struct {
	ID             string  `json:"id"`
	Code           string  `json:"code"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Type           string  `json:"type"`
	Priority       string  `json:"priority"`
	StartDate      *string `json:"startDate"`
	EndDate        *string `json:"endDate"`
	Status         int     `json:"status"`
	Domain         int     `json:"domain"`
	Team           string  `json:"team"`
	JiraProjectKey string  `json:"jiraProjectKey,omitempty"`
	JiraURL        string  `json:"jiraUrl,omitempty"`
	CreatedAt      string  `json:"createdAt"`
	UpdatedAt      string  `json:"updatedAt"`
}

type ProjectMetricsDTO struct {
	TotalAssignedHours     decimal.Decimal `json:"totalAssignedHours"`
	AssignedResourcesCount int             `json:"assignedResourcesCount"`
}

// ProjectDetailDTO is returned by GET /projects/{id}.
type ProjectDetailDTO struct {
	ProjectDTO
	Assignments []AssignmentDTO   `json:"assignments"`
	Metrics     ProjectMetricsDTO `json:"metrics"`
}

type ProjectListDTO struct {
	Projects []ProjectDTO `json:"projects"`
	Count    int          `json:"count"`
}

func toProjectDTO(p planning.Project) ProjectDTO {
	return ProjectDTO{
		ID:             p.ID,
		Code:           p.Code,
		Title:          p.Title,
		Description:    p.Description,
		Type:           p.Type,
		Priority:       p.Priority,
		StartDate:      datePtr(p.StartDate),
		EndDate:        datePtr(p.EndDate),
		Status:         p.Status,
		Domain:         p.Domain,
		Team:           p.Team,
		JiraProjectKey: p.JiraProjectKey,
		JiraURL:        p.JiraURL,
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      p.UpdatedAt.Format(time.RFC3339),
	}
}

func toProjectDetailDTO(v planning.ProjectView) ProjectDetailDTO {
	return ProjectDetailDTO{
		ProjectDTO:  toProjectDTO(v.Project),
		Assignments: toAssignmentDTOs(v.Assignments),
		Metrics: ProjectMetricsDTO{
			TotalAssignedHours:     v.TotalAssignedHours,
			AssignedResourcesCount: v.AssignedResourcesCount,
		},
	}
}

// =============================================================================
// RESOURCES
// =============================================================================

type ResourceDTO struct {
	ID              string          `json:"id"`
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	DefaultCapacity decimal.Decimal `json:"defaultCapacity"`
	Active          bool            `json:"active"`
	Team            string          `json:"team"`
	Skills          []string        `json:"skills"`
	CreatedAt       string          `json:"createdAt"`
	UpdatedAt       string          `json:"updatedAt"`
}

type ResourceMetricsDTO struct {
	TotalAssignedHours  decimal.Decimal `json:"totalAssignedHours"`
	ActiveProjectsCount int             `json:"activeProjectsCount"`
}

// ResourceDetailDTO is returned by GET /resources/{id}.
type ResourceDetailDTO struct {
	ResourceDTO
	Assignments []AssignmentDTO    `json:"assignments"`
	Capacities  []CapacityDTO      `json:"capacities"`
	Metrics     ResourceMetricsDTO `json:"metrics"`
}

type ResourceListDTO struct {
	Resources []ResourceDTO `json:"resources"`
	Count     int           `json:"count"`
}

// AvailabilityDTO is the remaining budget of a resource in one bucket.
type AvailabilityDTO struct {
	ResourceID     string          `json:"resourceId"`
	Kind           string          `json:"kind"`
	Bucket         string          `json:"bucket"`
	AvailableHours decimal.Decimal `json:"availableHours"`
}

func toResourceDTO(r planning.Resource) ResourceDTO {
	skills := r.Skills
	if skills == nil {
		skills = []string{}
	}
	return ResourceDTO{
		ID:              r.ID,
		Code:            r.Code,
		Name:            r.Name,
		Email:           r.Email,
		DefaultCapacity: r.DefaultCapacity,
		Active:          r.Active,
		Team:            r.Team,
		Skills:          skills,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       r.UpdatedAt.Format(time.RFC3339),
	}
}

func toResourceDetailDTO(v planning.ResourceView) ResourceDetailDTO {
	caps := make([]CapacityDTO, len(v.Capacities))
	for i, c := range v.Capacities {
		caps[i] = toCapacityDTO(c)
	}
	return ResourceDetailDTO{
		ResourceDTO: toResourceDTO(v.Resource),
		Assignments: toAssignmentDTOs(v.Assignments),
		Capacities:  caps,
		Metrics: ResourceMetricsDTO{
			TotalAssignedHours:  v.TotalAssignedHours,
			ActiveProjectsCount: v.ActiveProjectsCount,
		},
	}
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

// AssignmentDTO carries either date or month/year, never both.
type AssignmentDTO struct {
	ID           string          `json:"id"`
	ProjectID    string          `json:"projectId"`
	ResourceID   *string         `json:"resourceId"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	SkillName    string          `json:"skillName,omitempty"`
	Team         string          `json:"team"`
	Date         *string         `json:"date"`
	Month        *int            `json:"month"`
	Year         *int            `json:"year"`
	Hours        decimal.Decimal `json:"hours"`
	JiraIssueKey string          `json:"jiraIssueKey,omitempty"`
	JiraIssueID  string          `json:"jiraIssueId,omitempty"`
	CreatedAt    string          `json:"createdAt"`
	UpdatedAt    string          `json:"updatedAt"`
}

type AssignmentListDTO struct {
	Assignments []AssignmentDTO `json:"assignments"`
	Count       int             `json:"count"`
}

func toAssignmentDTO(a planning.Assignment) AssignmentDTO {
	dto := AssignmentDTO{
		ID:           a.ID,
		ProjectID:    a.ProjectID,
		Title:        a.Title,
		Description:  a.Description,
		SkillName:    a.SkillName,
		Team:         a.Team,
		Hours:        a.Hours,
		JiraIssueKey: a.JiraIssueKey,
		JiraIssueID:  a.JiraIssueID,
		CreatedAt:    a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    a.UpdatedAt.Format(time.RFC3339),
	}
	if a.IsAssigned() {
		id := a.ResourceID
		dto.ResourceID = &id
	}
	switch b := a.Bucket.(type) {
	case capacity.Daily:
		d := b.String()
		dto.Date = &d
	case capacity.Monthly:
		m, y := int(b.Month), b.Year
		dto.Month, dto.Year = &m, &y
	}
	return dto
}

func toAssignmentDTOs(as []planning.Assignment) []AssignmentDTO {
	out := make([]AssignmentDTO, len(as))
	for i, a := range as {
		out[i] = toAssignmentDTO(a)
	}
	return out
}

// =============================================================================
// CAPACITIES
// =============================================================================

type CapacityDTO struct {
	ID         string          `json:"id"`
	ResourceID string          `json:"resourceId"`
	Month      int             `json:"month"`
	Year       int             `json:"year"`
	TotalHours decimal.Decimal `json:"totalHours"`
	CreatedAt  string          `json:"createdAt"`
	UpdatedAt  string          `json:"updatedAt"`
}

// CapacityViewDTO adds the hours committed against the record.
type CapacityViewDTO struct {
	CapacityDTO
	AssignedHours         decimal.Decimal `json:"assignedHours"`
	AvailableHours        decimal.Decimal `json:"availableHours"`
	UtilizationPercentage int             `json:"utilizationPercentage"`
	Assignments           []AssignmentDTO `json:"assignments,omitempty"`
}

type PaginationDTO struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type CapacityListDTO struct {
	Capacities []CapacityViewDTO `json:"capacities"`
	Pagination PaginationDTO     `json:"pagination"`
}

func toCapacityDTO(c planning.Capacity) CapacityDTO {
	return CapacityDTO{
		ID:         c.ID,
		ResourceID: c.ResourceID,
		Month:      c.Month,
		Year:       c.Year,
		TotalHours: c.TotalHours,
		CreatedAt:  c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  c.UpdatedAt.Format(time.RFC3339),
	}
}

func toCapacityViewDTO(v planning.CapacityView) CapacityViewDTO {
	dto := CapacityViewDTO{
		CapacityDTO:           toCapacityDTO(v.Capacity),
		AssignedHours:         v.AssignedHours,
		AvailableHours:        v.AvailableHours,
		UtilizationPercentage: v.UtilizationPercentage,
	}
	if len(v.Assignments) > 0 {
		dto.Assignments = toAssignmentDTOs(v.Assignments)
	}
	return dto
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

type DomainDTO struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type StatusDTO struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

type SkillDTO struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func datePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(capacity.DateLayout)
	return &s
}
