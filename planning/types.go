/*
Package planning holds the planner's entities and the service that applies
business rules to them.

PURPOSE:
  Projects, Resources, Assignments and Capacities are persisted by a Store
  (see store.go). The Service reads the state an admission depends on,
  delegates the decision to the capacity package, and writes on success.

KEY CONCEPTS IN THIS FILE (types.go):
  - Resource:   a person with a monthly default capacity and a skill set
  - Capacity:   an explicit per-month budget override for a resource
  - Assignment: hours of work on a project, in a daily or monthly bucket
  - Project:    a unit of work, optionally linked to a Jira project
  - Domain / Status / Skill: seeded reference data

HOURS:
  All hour quantities are decimal.Decimal, matching DECIMAL columns.

SEE ALSO:
  - service.go: Operations and rule enforcement
  - store.go: Persistence ports
  - capacity/: Admission checker
*/
package planning

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/capacity-planner/capacity"
)

// DefaultCapacityHours is the monthly capacity given to new resources.
const DefaultCapacityHours = 160

// MaxMonthlyHours bounds hour fields (31 days * 24 hours).
const MaxMonthlyHours = 744

// =============================================================================
// RESOURCE
// =============================================================================

// Resource is a person who can be assigned hours. Resources are never
// deleted, only deactivated.
type Resource struct {
	ID              string
	Code            string
	Name            string
	Email           string
	DefaultCapacity decimal.Decimal
	Active          bool
	Team            string
	Skills          []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Admission returns the view the capacity checker needs.
func (r Resource) Admission() capacity.Resource {
	return capacity.Resource{
		ID:              r.ID,
		Name:            r.Name,
		Active:          r.Active,
		DefaultCapacity: r.DefaultCapacity,
		Skills:          r.Skills,
	}
}

// =============================================================================
// CAPACITY
// =============================================================================

// Capacity overrides a resource's default capacity for one month.
// At most one exists per (ResourceID, Month, Year).
type Capacity struct {
	ID         string
	ResourceID string
	Month      int
	Year       int
	TotalHours decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Bucket returns the monthly bucket of the record.
func (c Capacity) Bucket() capacity.Monthly {
	return capacity.Monthly{Month: time.Month(c.Month), Year: c.Year}
}

// Override converts the record for the admission checker.
func (c *Capacity) Override() *capacity.Capacity {
	if c == nil {
		return nil
	}
	return &capacity.Capacity{
		ResourceID: c.ResourceID,
		Month:      c.Month,
		Year:       c.Year,
		TotalHours: c.TotalHours,
	}
}

// =============================================================================
// ASSIGNMENT
// =============================================================================

// Assignment commits hours of a resource (or nobody) to a project.
type Assignment struct {
	ID           string
	ProjectID    string
	ResourceID   string // empty when unassigned
	Title        string
	Description  string
	SkillName    string
	Team         string
	Bucket       capacity.Bucket
	Hours        decimal.Decimal
	JiraIssueKey string
	JiraIssueID  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAssigned reports whether a resource is attached.
func (a Assignment) IsAssigned() bool { return a.ResourceID != "" }

// =============================================================================
// PROJECT
// =============================================================================

// Project types.
const (
	ProjectTypeProject   = "Proyecto"
	ProjectTypeEvolutive = "Evolutivo"
)

// ProjectPriorities lists the accepted priorities, highest first.
var ProjectPriorities = []string{"muy-alta", "alta", "media", "baja", "muy-baja"}

// Project is a unit of planned work.
type Project struct {
	ID             string
	Code           string
	Title          string
	Description    string
	Type           string
	Priority       string
	StartDate      *time.Time
	EndDate        *time.Time
	Status         int
	Domain         int
	Team           string
	JiraProjectKey string
	JiraURL        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsJiraLinked reports whether the project can be synced from Jira.
func (p Project) IsJiraLinked() bool { return p.JiraProjectKey != "" }

// =============================================================================
// REFERENCE DATA
// =============================================================================

type Domain struct {
	ID          int
	Name        string
	Description string
}

type Status struct {
	ID    int
	Name  string
	Order int
}

type Skill struct {
	ID          int
	Name        string
	Description string
}

// =============================================================================
// VIEWS - Entities with derived metrics
// =============================================================================

// CapacityView is a capacity record with the hours committed against it.
type CapacityView struct {
	Capacity
	AssignedHours         decimal.Decimal
	AvailableHours        decimal.Decimal
	UtilizationPercentage int
	Assignments           []Assignment
}

// ResourceView is a resource with its assignment metrics.
type ResourceView struct {
	Resource
	Assignments         []Assignment
	Capacities          []Capacity
	TotalAssignedHours  decimal.Decimal
	ActiveProjectsCount int
}

// ProjectView is a project with its assignment metrics.
type ProjectView struct {
	Project
	Assignments            []Assignment
	TotalAssignedHours     decimal.Decimal
	AssignedResourcesCount int
}

// Utilization returns assigned/total as a rounded percentage, 0 when total is 0.
func Utilization(assigned, total decimal.Decimal) int {
	if !total.IsPositive() {
		return 0
	}
	pct, _ := assigned.Div(total).Mul(decimal.NewFromInt(100)).Float64()
	return int(math.Round(pct))
}

// SumHours totals the hours of assignments.
func SumHours(assignments []Assignment) decimal.Decimal {
	total := decimal.Zero
	for _, a := range assignments {
		total = total.Add(a.Hours)
	}
	return total
}
