/*
service.go - Planning operations and rule enforcement

PURPOSE:
  The Service is the only writer of planning entities. Every write that
  commits a resource's hours goes through admit(), which reads fresh state
  from the Store and asks capacity.CheckAdmission for a decision.

ADMISSION FLOW (create/update assignment):
  1. Validate input, resolve the bucket (date XOR month/year)
  2. Project must exist
  3. No resource: skip capacity checks
  4. Resource must exist and be active
  5. Skill guard (when the assignment names a skill)
  6. Read override (monthly only) and committed hours, excluding the
     assignment being updated
  7. CheckAdmission; write on success

CONCURRENCY:
  Steps 6 and 7 are not atomic. Two concurrent admissions for the same
  resource and bucket can both read the same committed sum and both be
  admitted, overcommitting the bucket. Callers needing strict enforcement
  must serialise writes per resource.

SEE ALSO:
  - capacity/admission.go: The decision rule
  - store.go: Persistence ports
*/
package planning

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/capacity-planner/capacity"
)

// Service orchestrates lookups, the capacity checker and writes.
type Service struct {
	store   Store
	log     *zap.Logger
	metrics *Metrics

	now   func() time.Time
	newID func() string
}

// NewService creates a Service. log and metrics may be nil.
func NewService(store Store, log *zap.Logger, metrics *Metrics) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:   store,
		log:     log,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// =============================================================================
// ADMISSION
// =============================================================================

// admit enforces eligibility, skill and capacity rules for a. excludeID is
// the ID of the assignment being replaced, or "".
func (s *Service) admit(ctx context.Context, a Assignment, excludeID string) error {
	if !a.IsAssigned() {
		return nil
	}

	res, err := s.store.GetResource(ctx, a.ResourceID)
	if err != nil {
		return fmt.Errorf("get resource: %w", err)
	}
	if res == nil {
		return notFound("Resource", a.ResourceID)
	}
	view := res.Admission()
	if !view.Active {
		err := &capacity.InactiveResourceError{ResourceID: res.ID, Name: res.Name}
		s.metrics.observe(a.Bucket, capacity.Decision{}, err)
		return err
	}
	if err := capacity.CheckSkill(view, a.SkillName); err != nil {
		s.metrics.observe(a.Bucket, capacity.Decision{}, err)
		return err
	}

	var override *capacity.Capacity
	if m, ok := a.Bucket.(capacity.Monthly); ok {
		c, err := s.store.FindCapacity(ctx, a.ResourceID, m)
		if err != nil {
			return fmt.Errorf("find capacity: %w", err)
		}
		override = c.Override()
	}

	committed, err := s.store.SumCommittedHours(ctx, a.ResourceID, a.Bucket, excludeID)
	if err != nil {
		return fmt.Errorf("sum committed hours: %w", err)
	}

	d, err := capacity.CheckAdmission(view, a.Bucket, override, a.Hours, committed)
	s.metrics.observe(a.Bucket, d, err)
	if err != nil {
		s.log.Info("assignment rejected",
			zap.String("resource_id", a.ResourceID),
			zap.Stringer("bucket", a.Bucket),
			zap.String("requested", a.Hours.String()),
			zap.String("committed", committed.String()),
			zap.Error(err))
		return err
	}
	return nil
}

// admissionChanged reports whether next differs from cur in a way that
// affects capacity.
func admissionChanged(cur, next Assignment) bool {
	return cur.ResourceID != next.ResourceID ||
		cur.SkillName != next.SkillName ||
		!cur.Hours.Equal(next.Hours) ||
		!capacity.SameBucket(cur.Bucket, next.Bucket)
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

// CreateAssignment validates, admits and stores a new assignment.
func (s *Service) CreateAssignment(ctx context.Context, in AssignmentInput) (*Assignment, error) {
	bucket, err := in.validate()
	if err != nil {
		return nil, err
	}
	project, err := s.store.GetProject(ctx, in.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if project == nil {
		return nil, notFound("Project", in.ProjectID)
	}

	now := s.now()
	a := Assignment{
		ID:           s.newID(),
		ProjectID:    in.ProjectID,
		ResourceID:   in.ResourceID,
		Title:        in.Title,
		Description:  in.Description,
		SkillName:    in.SkillName,
		Team:         in.Team,
		Bucket:       bucket,
		Hours:        in.Hours,
		JiraIssueKey: in.JiraIssueKey,
		JiraIssueID:  in.JiraIssueID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if a.Team == "" {
		a.Team = project.Team
	}

	if err := s.admit(ctx, a, ""); err != nil {
		return nil, err
	}
	if err := s.store.CreateAssignment(ctx, a); err != nil {
		return nil, fmt.Errorf("create assignment: %w", err)
	}
	s.log.Debug("assignment created",
		zap.String("id", a.ID),
		zap.String("project_id", a.ProjectID),
		zap.Stringer("bucket", a.Bucket))
	return &a, nil
}

// UpdateAssignment merges patch over the stored assignment. When the
// resource, skill, bucket or hours change, the result is re-admitted with
// the assignment's own hours excluded from the committed sum.
func (s *Service) UpdateAssignment(ctx context.Context, id string, patch AssignmentPatch) (*Assignment, error) {
	cur, err := s.GetAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := patch.apply(*cur)
	if err != nil {
		return nil, err
	}
	if admissionChanged(*cur, next) {
		if err := s.admit(ctx, next, id); err != nil {
			return nil, err
		}
	}

	next.UpdatedAt = s.now()
	if err := s.store.UpdateAssignment(ctx, next); err != nil {
		return nil, fmt.Errorf("update assignment: %w", err)
	}
	return &next, nil
}

// DeleteAssignment removes an assignment.
func (s *Service) DeleteAssignment(ctx context.Context, id string) error {
	if _, err := s.GetAssignment(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteAssignment(ctx, id); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

func (s *Service) GetAssignment(ctx context.Context, id string) (*Assignment, error) {
	a, err := s.store.GetAssignment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	if a == nil {
		return nil, notFound("Assignment", id)
	}
	return a, nil
}

func (s *Service) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error) {
	return s.store.ListAssignments(ctx, filter)
}

// FindAssignmentByJiraKey returns the assignment of projectID imported from
// issueKey, or nil.
func (s *Service) FindAssignmentByJiraKey(ctx context.Context, projectID, issueKey string) (*Assignment, error) {
	return s.store.FindAssignmentByJiraKey(ctx, projectID, issueKey)
}

// =============================================================================
// CAPACITIES
// =============================================================================

// SetCapacity creates or replaces a monthly capacity override. The new
// total may not drop below the hours already assigned in that month.
func (s *Service) SetCapacity(ctx context.Context, in CapacityInput) (*CapacityView, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	res, err := s.store.GetResource(ctx, in.ResourceID)
	if err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}
	if res == nil {
		return nil, notFound("Resource", in.ResourceID)
	}
	if !res.Active {
		return nil, &capacity.InactiveResourceError{ResourceID: res.ID, Name: res.Name}
	}

	bucket := in.Bucket()
	committed, err := s.store.SumCommittedHours(ctx, res.ID, bucket, "")
	if err != nil {
		return nil, fmt.Errorf("sum committed hours: %w", err)
	}
	if err := capacity.CheckCapacityReduction(bucket, in.TotalHours, committed); err != nil {
		s.log.Info("capacity change rejected",
			zap.String("resource_id", res.ID),
			zap.Stringer("bucket", bucket),
			zap.Error(err))
		return nil, err
	}

	now := s.now()
	stored, err := s.store.UpsertCapacity(ctx, Capacity{
		ID:         s.newID(),
		ResourceID: res.ID,
		Month:      in.Month,
		Year:       in.Year,
		TotalHours: in.TotalHours,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert capacity: %w", err)
	}
	return &CapacityView{
		Capacity:              stored,
		AssignedHours:         committed,
		AvailableHours:        stored.TotalHours.Sub(committed),
		UtilizationPercentage: Utilization(committed, stored.TotalHours),
	}, nil
}

// GetCapacity returns a capacity record with its monthly assignments.
func (s *Service) GetCapacity(ctx context.Context, id string) (*CapacityView, error) {
	c, err := s.store.GetCapacity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get capacity: %w", err)
	}
	if c == nil {
		return nil, notFound("Capacity", id)
	}
	view, err := s.capacityView(ctx, *c)
	if err != nil {
		return nil, err
	}

	all, err := s.store.ListAssignments(ctx, AssignmentFilter{ResourceID: c.ResourceID, Month: c.Month, Year: c.Year})
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	for _, a := range all {
		if a.Bucket.Kind() == capacity.KindMonthly {
			view.Assignments = append(view.Assignments, a)
		}
	}
	return &view, nil
}

// ListCapacities returns one page of capacity records with their metrics.
func (s *Service) ListCapacities(ctx context.Context, filter CapacityFilter, page Page) (PageResult[CapacityView], error) {
	page, err := page.Normalize()
	if err != nil {
		return PageResult[CapacityView]{}, err
	}
	records, err := s.store.ListCapacities(ctx, filter, page)
	if err != nil {
		return PageResult[CapacityView]{}, fmt.Errorf("list capacities: %w", err)
	}
	total, err := s.store.CountCapacities(ctx, filter)
	if err != nil {
		return PageResult[CapacityView]{}, fmt.Errorf("count capacities: %w", err)
	}

	views := make([]CapacityView, 0, len(records))
	for _, c := range records {
		v, err := s.capacityView(ctx, c)
		if err != nil {
			return PageResult[CapacityView]{}, err
		}
		views = append(views, v)
	}
	return newPageResult(views, total, page), nil
}

func (s *Service) capacityView(ctx context.Context, c Capacity) (CapacityView, error) {
	assigned, err := s.store.SumCommittedHours(ctx, c.ResourceID, c.Bucket(), "")
	if err != nil {
		return CapacityView{}, fmt.Errorf("sum committed hours: %w", err)
	}
	return CapacityView{
		Capacity:              c,
		AssignedHours:         assigned,
		AvailableHours:        c.TotalHours.Sub(assigned),
		UtilizationPercentage: Utilization(assigned, c.TotalHours),
	}, nil
}

// =============================================================================
// RESOURCES
// =============================================================================

func (s *Service) CreateResource(ctx context.Context, in ResourceInput) (*Resource, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.checkSkills(ctx, in.Skills); err != nil {
		return nil, err
	}
	if err := s.checkResourceCode(ctx, in.Code, ""); err != nil {
		return nil, err
	}

	now := s.now()
	r := Resource{
		ID:              s.newID(),
		Code:            in.Code,
		Name:            in.Name,
		Email:           in.Email,
		DefaultCapacity: decimal.NewFromInt(DefaultCapacityHours),
		Active:          true,
		Team:            in.Team,
		Skills:          in.Skills,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.DefaultCapacity != nil {
		r.DefaultCapacity = *in.DefaultCapacity
	}
	if in.Active != nil {
		r.Active = *in.Active
	}
	if err := s.store.CreateResource(ctx, r); err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}
	return &r, nil
}

// UpdateResource applies patch. Deactivation keeps existing assignments;
// it only blocks new admissions.
func (s *Service) UpdateResource(ctx context.Context, id string, patch ResourcePatch) (*Resource, error) {
	cur, err := s.getResource(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := patch.apply(*cur)
	if err != nil {
		return nil, err
	}
	if patch.Skills != nil {
		if err := s.checkSkills(ctx, next.Skills); err != nil {
			return nil, err
		}
	}
	if next.Code != cur.Code {
		if err := s.checkResourceCode(ctx, next.Code, id); err != nil {
			return nil, err
		}
	}

	next.UpdatedAt = s.now()
	if err := s.store.UpdateResource(ctx, next); err != nil {
		return nil, fmt.Errorf("update resource: %w", err)
	}
	return &next, nil
}

// GetResource returns a resource with its assignments, capacities and
// assignment metrics.
func (s *Service) GetResource(ctx context.Context, id string) (*ResourceView, error) {
	r, err := s.getResource(ctx, id)
	if err != nil {
		return nil, err
	}
	assignments, err := s.store.ListAssignments(ctx, AssignmentFilter{ResourceID: id})
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	capacities, err := s.store.ListCapacities(ctx, CapacityFilter{ResourceID: id}, Page{Page: 1, Limit: MaxPageLimit})
	if err != nil {
		return nil, fmt.Errorf("list capacities: %w", err)
	}

	projects := make(map[string]struct{})
	for _, a := range assignments {
		projects[a.ProjectID] = struct{}{}
	}
	return &ResourceView{
		Resource:            *r,
		Assignments:         assignments,
		Capacities:          capacities,
		TotalAssignedHours:  SumHours(assignments),
		ActiveProjectsCount: len(projects),
	}, nil
}

func (s *Service) ListResources(ctx context.Context, filter ResourceFilter) ([]Resource, error) {
	return s.store.ListResources(ctx, filter)
}

func (s *Service) getResource(ctx context.Context, id string) (*Resource, error) {
	r, err := s.store.GetResource(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}
	if r == nil {
		return nil, notFound("Resource", id)
	}
	return r, nil
}

func (s *Service) checkResourceCode(ctx context.Context, code, selfID string) error {
	existing, err := s.store.GetResourceByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("get resource by code: %w", err)
	}
	if existing != nil && existing.ID != selfID {
		return &ConflictError{Entity: "Resource", Field: "code", Value: code}
	}
	return nil
}

// checkSkills rejects skill names missing from the reference data.
func (s *Service) checkSkills(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	known, err := s.store.ListSkills(ctx)
	if err != nil {
		return fmt.Errorf("list skills: %w", err)
	}
	set := make(map[string]struct{}, len(known))
	for _, sk := range known {
		set[sk.Name] = struct{}{}
	}
	var f fieldErrors
	for _, n := range names {
		if _, ok := set[n]; !ok {
			f.add("skills", fmt.Sprintf("Unknown skill '%s'", n))
		}
	}
	return f.err()
}

// =============================================================================
// PROJECTS
// =============================================================================

func (s *Service) CreateProject(ctx context.Context, in ProjectInput) (*Project, error) {
	start, end, err := in.validate()
	if err != nil {
		return nil, err
	}
	if err := s.checkProjectCode(ctx, in.Code, ""); err != nil {
		return nil, err
	}

	now := s.now()
	p := Project{
		ID:             s.newID(),
		Code:           in.Code,
		Title:          in.Title,
		Description:    in.Description,
		Type:           in.Type,
		Priority:       in.Priority,
		StartDate:      start,
		EndDate:        end,
		Status:         in.Status,
		Domain:         in.Domain,
		Team:           in.Team,
		JiraProjectKey: in.JiraProjectKey,
		JiraURL:        in.JiraURL,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	s.log.Debug("project created", zap.String("id", p.ID), zap.String("code", p.Code))
	return &p, nil
}

func (s *Service) UpdateProject(ctx context.Context, id string, patch ProjectPatch) (*Project, error) {
	cur, err := s.getProject(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := patch.apply(*cur)
	if err != nil {
		return nil, err
	}
	if next.Code != cur.Code {
		if err := s.checkProjectCode(ctx, next.Code, id); err != nil {
			return nil, err
		}
	}
	next.UpdatedAt = s.now()
	if err := s.store.UpdateProject(ctx, next); err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	return &next, nil
}

// DeleteProject removes a project and its assignments.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.getProject(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// GetProject returns a project with its assignments and metrics.
func (s *Service) GetProject(ctx context.Context, id string) (*ProjectView, error) {
	p, err := s.getProject(ctx, id)
	if err != nil {
		return nil, err
	}
	assignments, err := s.store.ListAssignments(ctx, AssignmentFilter{ProjectID: id})
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	resources := make(map[string]struct{})
	for _, a := range assignments {
		if a.IsAssigned() {
			resources[a.ResourceID] = struct{}{}
		}
	}
	return &ProjectView{
		Project:                *p,
		Assignments:            assignments,
		TotalAssignedHours:     SumHours(assignments),
		AssignedResourcesCount: len(resources),
	}, nil
}

func (s *Service) ListProjects(ctx context.Context, filter ProjectFilter) ([]Project, error) {
	return s.store.ListProjects(ctx, filter)
}

// FindProjectByCodeAndTeam returns the project with code owned by team, or nil.
func (s *Service) FindProjectByCodeAndTeam(ctx context.Context, code, team string) (*Project, error) {
	return s.store.FindProjectByCodeAndTeam(ctx, code, team)
}

// ListJiraLinkedProjects returns every project with a Jira project key.
func (s *Service) ListJiraLinkedProjects(ctx context.Context) ([]Project, error) {
	return s.store.ListJiraLinkedProjects(ctx)
}

func (s *Service) getProject(ctx context.Context, id string) (*Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	if p == nil {
		return nil, notFound("Project", id)
	}
	return p, nil
}

func (s *Service) checkProjectCode(ctx context.Context, code, selfID string) error {
	existing, err := s.store.GetProjectByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("get project by code: %w", err)
	}
	if existing != nil && existing.ID != selfID {
		return &ConflictError{Entity: "Project", Field: "code", Value: code}
	}
	return nil
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func (s *Service) ListDomains(ctx context.Context) ([]Domain, error) {
	return s.store.ListDomains(ctx)
}

func (s *Service) ListStatuses(ctx context.Context) ([]Status, error) {
	return s.store.ListStatuses(ctx)
}

func (s *Service) ListSkills(ctx context.Context) ([]Skill, error) {
	return s.store.ListSkills(ctx)
}

// Available returns the hours left for a resource in bucket, for callers
// that want to show headroom before proposing an assignment.
func (s *Service) Available(ctx context.Context, resourceID string, bucket capacity.Bucket) (decimal.Decimal, error) {
	r, err := s.getResource(ctx, resourceID)
	if err != nil {
		return decimal.Zero, err
	}
	var override *capacity.Capacity
	if m, ok := bucket.(capacity.Monthly); ok {
		c, err := s.store.FindCapacity(ctx, resourceID, m)
		if err != nil {
			return decimal.Zero, fmt.Errorf("find capacity: %w", err)
		}
		override = c.Override()
	}
	budget, err := capacity.ResolveBudget(r.Admission(), bucket, override)
	if err != nil {
		return decimal.Zero, err
	}
	committed, err := s.store.SumCommittedHours(ctx, resourceID, bucket, "")
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum committed hours: %w", err)
	}
	return budget.Sub(committed), nil
}
