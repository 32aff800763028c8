/*
store.go - Persistence ports for the planning service

PURPOSE:
  Defines the interface between the planning rules and the database.
  Different implementations can use SQLite or in-memory storage.

KEY INTERFACES:
  ResourceStore:   Resources and their skill sets
  CapacityStore:   Monthly capacity overrides
  AssignmentStore: Assignments and committed-hour sums
  ProjectStore:    Projects, including Jira-linked lookups
  ReferenceStore:  Seeded domains, statuses and skills
  Store:           All of the above

LOOKUP CONTRACT:
  Get/Find methods return (nil, nil) when the row does not exist. The
  service turns that into a NotFoundError; stores never do.

CONFLICTS:
  Writes that violate a unique key (resource code, project code) return a
  *ConflictError naming the field.

COMMITTED HOURS:
  SumCommittedHours sums the hours of every assignment of a resource whose
  bucket equals the given one. Daily and monthly buckets never mix: a daily
  assignment in March does not count against the March monthly budget.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - planning/store/memory.go: In-memory for testing

SEE ALSO:
  - service.go: Uses these ports
*/
package planning

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/capacity-planner/capacity"
)

// =============================================================================
// FILTERS
// =============================================================================

// ResourceFilter narrows ListResources. Zero values match everything.
type ResourceFilter struct {
	Active *bool
	Skill  string
}

// CapacityFilter narrows ListCapacities. Zero values match everything.
type CapacityFilter struct {
	ResourceID string
	Month      int
	Year       int
}

// AssignmentFilter narrows ListAssignments. Month and Year match monthly
// buckets directly and daily buckets by the month of their date.
type AssignmentFilter struct {
	ProjectID  string
	ResourceID string
	Month      int
	Year       int
}

// ProjectFilter narrows ListProjects. Zero values match everything.
type ProjectFilter struct {
	Type     string
	Priority string
	Team     string
	Status   *int
	Domain   *int
}

// =============================================================================
// PAGINATION
// =============================================================================

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

// Page selects a window of a listing. Page is 1-based.
type Page struct {
	Page  int
	Limit int
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int { return (p.Page - 1) * p.Limit }

// Normalize fills in defaults and rejects out of range values.
func (p Page) Normalize() (Page, error) {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.Limit == 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Page < 1 {
		return p, capacity.NewValidationError("page", "Page must be at least 1")
	}
	if p.Limit < 1 || p.Limit > MaxPageLimit {
		return p, capacity.NewValidationError("limit", "Limit must be between 1 and 100")
	}
	return p, nil
}

// PageResult is one page of a listing.
type PageResult[T any] struct {
	Items      []T
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

func newPageResult[T any](items []T, total int, p Page) PageResult[T] {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return PageResult[T]{Items: items, Total: total, Page: p.Page, Limit: p.Limit, TotalPages: pages}
}

// =============================================================================
// PORTS
// =============================================================================

// ResourceStore persists resources. Skills are stored with the resource
// and replaced wholesale by UpdateResource.
type ResourceStore interface {
	GetResource(ctx context.Context, id string) (*Resource, error)
	GetResourceByCode(ctx context.Context, code string) (*Resource, error)
	ListResources(ctx context.Context, filter ResourceFilter) ([]Resource, error)
	CreateResource(ctx context.Context, r Resource) error
	UpdateResource(ctx context.Context, r Resource) error
}

// CapacityStore persists monthly capacity overrides.
type CapacityStore interface {
	// FindCapacity returns the override for (resourceID, month), or nil.
	FindCapacity(ctx context.Context, resourceID string, month capacity.Monthly) (*Capacity, error)
	GetCapacity(ctx context.Context, id string) (*Capacity, error)
	ListCapacities(ctx context.Context, filter CapacityFilter, page Page) ([]Capacity, error)
	CountCapacities(ctx context.Context, filter CapacityFilter) (int, error)

	// UpsertCapacity creates or replaces the override for
	// (ResourceID, Month, Year) and returns the stored record.
	UpsertCapacity(ctx context.Context, c Capacity) (Capacity, error)
}

// AssignmentStore persists assignments.
type AssignmentStore interface {
	GetAssignment(ctx context.Context, id string) (*Assignment, error)
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error)

	// SumCommittedHours totals the hours of resourceID in bucket, skipping
	// the assignment with excludeID (pass "" to skip nothing).
	SumCommittedHours(ctx context.Context, resourceID string, bucket capacity.Bucket, excludeID string) (decimal.Decimal, error)

	CreateAssignment(ctx context.Context, a Assignment) error
	UpdateAssignment(ctx context.Context, a Assignment) error
	DeleteAssignment(ctx context.Context, id string) error

	// FindAssignmentByJiraKey returns the assignment of projectID imported
	// from the given issue, or nil.
	FindAssignmentByJiraKey(ctx context.Context, projectID, issueKey string) (*Assignment, error)
}

// ProjectStore persists projects. DeleteProject removes the project's
// assignments as well.
type ProjectStore interface {
	GetProject(ctx context.Context, id string) (*Project, error)
	GetProjectByCode(ctx context.Context, code string) (*Project, error)
	FindProjectByCodeAndTeam(ctx context.Context, code, team string) (*Project, error)
	ListProjects(ctx context.Context, filter ProjectFilter) ([]Project, error)
	ListJiraLinkedProjects(ctx context.Context) ([]Project, error)
	CreateProject(ctx context.Context, p Project) error
	UpdateProject(ctx context.Context, p Project) error
	DeleteProject(ctx context.Context, id string) error
}

// ReferenceStore reads seeded reference data.
type ReferenceStore interface {
	ListDomains(ctx context.Context) ([]Domain, error)
	ListStatuses(ctx context.Context) ([]Status, error) // ordered by Order
	ListSkills(ctx context.Context) ([]Skill, error)
}

// Store is everything the Service needs.
type Store interface {
	ResourceStore
	CapacityStore
	AssignmentStore
	ProjectStore
	ReferenceStore
}
