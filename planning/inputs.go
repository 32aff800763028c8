package planning

import (
	"github.com/shopspring/decimal"

	"github.com/warp/capacity-planner/capacity"
)

// =============================================================================
// ASSIGNMENTS
// =============================================================================

// AssignmentInput creates an assignment. Exactly one of Date or
// (Month and Year) selects the bucket.
type AssignmentInput struct {
	ProjectID    string          `json:"projectId" validate:"required,uuid"`
	ResourceID   string          `json:"resourceId" validate:"omitempty,uuid"`
	Title        string          `json:"title" validate:"required,max=255"`
	Description  string          `json:"description"`
	SkillName    string          `json:"skillName" validate:"max=255"`
	Team         string          `json:"team" validate:"max=255"`
	Date         string          `json:"date"`
	Month        int             `json:"month" validate:"omitempty,min=1,max=12"`
	Year         int             `json:"year" validate:"omitempty,min=2000,max=2100"`
	Hours        decimal.Decimal `json:"hours" validate:"-"`
	JiraIssueKey string          `json:"jiraIssueKey" validate:"max=50"`
	JiraIssueID  string          `json:"jiraIssueId" validate:"max=50"`
}

// AssignmentPatch updates an assignment. Nil fields are left unchanged.
// An empty ResourceID unassigns the resource.
type AssignmentPatch struct {
	ResourceID  *string          `json:"resourceId"`
	Title       *string          `json:"title" validate:"omitempty,max=255"`
	Description *string          `json:"description"`
	SkillName   *string          `json:"skillName" validate:"omitempty,max=255"`
	Team        *string          `json:"team" validate:"omitempty,max=255"`
	Date        *string          `json:"date"`
	Month       *int             `json:"month" validate:"omitempty,min=1,max=12"`
	Year        *int             `json:"year" validate:"omitempty,min=2000,max=2100"`
	Hours       *decimal.Decimal `json:"hours" validate:"-"`
}

// =============================================================================
// CAPACITIES
// =============================================================================

// CapacityInput sets the monthly budget of a resource.
type CapacityInput struct {
	ResourceID string          `json:"resourceId" validate:"required,uuid"`
	Month      int             `json:"month" validate:"required,min=1,max=12"`
	Year       int             `json:"year" validate:"required,min=2000,max=2100"`
	TotalHours decimal.Decimal `json:"totalHours" validate:"-"`
}

// Bucket returns the monthly bucket the input targets.
func (in CapacityInput) Bucket() capacity.Monthly {
	return capacity.Monthly{Month: monthOf(in.Month), Year: in.Year}
}

// =============================================================================
// RESOURCES
// =============================================================================

// ResourceInput creates a resource. DefaultCapacity defaults to 160 and
// Active to true.
type ResourceInput struct {
	Code            string           `json:"code" validate:"required,max=50"`
	Name            string           `json:"name" validate:"required,max=255"`
	Email           string           `json:"email" validate:"omitempty,email,max=255"`
	DefaultCapacity *decimal.Decimal `json:"defaultCapacity" validate:"-"`
	Active          *bool            `json:"active"`
	Team            string           `json:"team" validate:"max=255"`
	Skills          []string         `json:"skills" validate:"omitempty,dive,required"`
}

// ResourcePatch updates a resource. Nil fields are left unchanged; a
// non-nil Skills replaces the skill set.
type ResourcePatch struct {
	Code            *string          `json:"code" validate:"omitempty,max=50"`
	Name            *string          `json:"name" validate:"omitempty,max=255"`
	Email           *string          `json:"email"`
	DefaultCapacity *decimal.Decimal `json:"defaultCapacity" validate:"-"`
	Active          *bool            `json:"active"`
	Team            *string          `json:"team" validate:"omitempty,max=255"`
	Skills          []string         `json:"skills" validate:"omitempty,dive,required"`
}

// =============================================================================
// PROJECTS
// =============================================================================

// ProjectInput creates a project. Dates are YYYY-MM-DD or RFC 3339.
type ProjectInput struct {
	Code           string `json:"code" validate:"required,max=50"`
	Title          string `json:"title" validate:"required,max=255"`
	Description    string `json:"description"`
	Type           string `json:"type" validate:"omitempty,oneof=Proyecto Evolutivo"`
	Priority       string `json:"priority" validate:"omitempty,oneof=muy-alta alta media baja muy-baja"`
	StartDate      string `json:"startDate"`
	EndDate        string `json:"endDate"`
	Status         int    `json:"status" validate:"min=0"`
	Domain         int    `json:"domain" validate:"min=0"`
	Team           string `json:"team" validate:"max=255"`
	JiraProjectKey string `json:"jiraProjectKey" validate:"max=50"`
	JiraURL        string `json:"jiraUrl" validate:"omitempty,url"`
}

// ProjectPatch updates a project. Nil fields are left unchanged; an empty
// date string clears the date.
type ProjectPatch struct {
	Code        *string `json:"code" validate:"omitempty,max=50"`
	Title       *string `json:"title" validate:"omitempty,max=255"`
	Description *string `json:"description"`
	Type        *string `json:"type" validate:"omitempty,oneof=Proyecto Evolutivo"`
	Priority    *string `json:"priority" validate:"omitempty,oneof=muy-alta alta media baja muy-baja"`
	StartDate   *string `json:"startDate"`
	EndDate     *string `json:"endDate"`
	Status      *int    `json:"status" validate:"omitempty,min=0"`
	Domain      *int    `json:"domain" validate:"omitempty,min=0"`
	Team        *string `json:"team" validate:"omitempty,max=255"`
}
