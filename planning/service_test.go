package planning_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/capacity-planner/capacity"
	"github.com/warp/capacity-planner/planning"
	"github.com/warp/capacity-planner/planning/store"
)

func hours(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

type fixture struct {
	svc      *planning.Service
	store    *store.Memory
	project  *planning.Project
	resource *planning.Resource
}

func setup(t *testing.T) fixture {
	t.Helper()
	mem := store.NewMemory()
	svc := planning.NewService(mem, nil, nil)
	ctx := context.Background()

	project, err := svc.CreateProject(ctx, planning.ProjectInput{Code: "PRJ-1", Title: "Billing revamp", Team: "core"})
	require.NoError(t, err)
	resource, err := svc.CreateResource(ctx, planning.ResourceInput{
		Code:   "R-1",
		Name:   "Ana",
		Skills: []string{"Construcción", "QA"},
	})
	require.NoError(t, err)
	return fixture{svc: svc, store: mem, project: project, resource: resource}
}

func (f fixture) monthly(h int64) planning.AssignmentInput {
	return planning.AssignmentInput{
		ProjectID:  f.project.ID,
		ResourceID: f.resource.ID,
		Title:      "Backend work",
		Month:      3,
		Year:       2025,
		Hours:      hours(h),
	}
}

func (f fixture) daily(date string, h int64) planning.AssignmentInput {
	return planning.AssignmentInput{
		ProjectID:  f.project.ID,
		ResourceID: f.resource.ID,
		Title:      "Pairing",
		Date:       date,
		Hours:      hours(h),
	}
}

// =============================================================================
// CREATE ASSIGNMENT
// =============================================================================

func TestCreateAssignment_MonthlyDefaultCapacity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// GIVEN: 150 of the default 160 hours committed in March
	_, err := f.svc.CreateAssignment(ctx, f.monthly(150))
	require.NoError(t, err)

	// WHEN: proposing 11 more
	_, err = f.svc.CreateAssignment(ctx, f.monthly(11))

	// THEN: rejected with the monthly breakdown
	var monthly *capacity.MonthlyCapacityExceededError
	require.ErrorAs(t, err, &monthly)
	assert.True(t, monthly.Available.Equal(hours(10)))

	// AND: exactly the remaining 10 fit
	a, err := f.svc.CreateAssignment(ctx, f.monthly(10))
	require.NoError(t, err)
	assert.Equal(t, capacity.Monthly{Month: time.March, Year: 2025}, a.Bucket)
	assert.Equal(t, "core", a.Team, "team defaults to the project's")
}

func TestCreateAssignment_CapacityOverride(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.SetCapacity(ctx, planning.CapacityInput{ResourceID: f.resource.ID, Month: 3, Year: 2025, TotalHours: hours(100)})
	require.NoError(t, err)

	_, err = f.svc.CreateAssignment(ctx, f.monthly(90))
	require.NoError(t, err)
	_, err = f.svc.CreateAssignment(ctx, f.monthly(11))
	assert.ErrorIs(t, err, capacity.ErrCapacityExceeded)

	// April still uses the default capacity.
	april := f.monthly(150)
	april.Month = 4
	_, err = f.svc.CreateAssignment(ctx, april)
	assert.NoError(t, err)
}

func TestCreateAssignment_DailyBudget(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.CreateAssignment(ctx, f.daily("2025-03-01", 5))
	require.NoError(t, err)

	_, err = f.svc.CreateAssignment(ctx, f.daily("2025-03-01", 4))
	var daily *capacity.DailyCapacityExceededError
	require.ErrorAs(t, err, &daily)
	assert.True(t, daily.Available.Equal(hours(3)))

	// Another day is a separate bucket.
	_, err = f.svc.CreateAssignment(ctx, f.daily("2025-03-02", 8))
	assert.NoError(t, err)

	// Daily hours do not count against the monthly budget.
	_, err = f.svc.CreateAssignment(ctx, f.monthly(160))
	assert.NoError(t, err)
}

func TestCreateAssignment_DailyAcceptsTimestamp(t *testing.T) {
	f := setup(t)
	a, err := f.svc.CreateAssignment(context.Background(), f.daily("2025-03-01T15:04:05Z", 2))
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", a.Bucket.String())
}

func TestCreateAssignment_UnassignedSkipsCapacity(t *testing.T) {
	f := setup(t)
	in := f.monthly(500)
	in.ResourceID = ""

	a, err := f.svc.CreateAssignment(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, a.IsAssigned())
}

func TestCreateAssignment_InactiveResource(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inactive := false
	_, err := f.svc.UpdateResource(ctx, f.resource.ID, planning.ResourcePatch{Active: &inactive})
	require.NoError(t, err)

	_, err = f.svc.CreateAssignment(ctx, f.monthly(1))
	assert.ErrorIs(t, err, capacity.ErrInactiveResource)
}

func TestCreateAssignment_SkillMismatch(t *testing.T) {
	f := setup(t)
	in := f.monthly(10)
	in.SkillName = "Project Management"

	_, err := f.svc.CreateAssignment(context.Background(), in)
	var mismatch *capacity.SkillMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "Resource 'Ana' does not have the skill 'Project Management'", err.Error())

	in.SkillName = "QA"
	_, err = f.svc.CreateAssignment(context.Background(), in)
	assert.NoError(t, err)
}

func TestCreateAssignment_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		alter func(*planning.AssignmentInput)
		field string
	}{
		{"both buckets", func(in *planning.AssignmentInput) { in.Date = "2025-03-01" }, "date"},
		{"no bucket", func(in *planning.AssignmentInput) { in.Month, in.Year = 0, 0 }, "date"},
		{"month only", func(in *planning.AssignmentInput) { in.Year = 0 }, "date"},
		{"zero hours", func(in *planning.AssignmentInput) { in.Hours = decimal.Zero }, "hours"},
		{"too many hours", func(in *planning.AssignmentInput) { in.Hours = hours(745) }, "hours"},
		{"month out of range", func(in *planning.AssignmentInput) { in.Month = 13 }, "month"},
		{"missing title", func(in *planning.AssignmentInput) { in.Title = "" }, "title"},
		{"bad project id", func(in *planning.AssignmentInput) { in.ProjectID = "not-a-uuid" }, "projectId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.monthly(10)
			tt.alter(&in)
			_, err := f.svc.CreateAssignment(ctx, in)

			var verr *capacity.ValidationError
			require.ErrorAs(t, err, &verr)
			fields := make([]string, len(verr.Fields))
			for i, fe := range verr.Fields {
				fields[i] = fe.Field
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestCreateAssignment_MissingReferences(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	in := f.monthly(1)
	in.ProjectID = "7f0c9a52-3d55-4a3a-9a51-1b1f6e0c1d11"
	_, err := f.svc.CreateAssignment(ctx, in)
	assert.True(t, planning.IsNotFound(err))

	in = f.monthly(1)
	in.ResourceID = "7f0c9a52-3d55-4a3a-9a51-1b1f6e0c1d11"
	_, err = f.svc.CreateAssignment(ctx, in)
	var nf *planning.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Resource", nf.Entity)
}

// =============================================================================
// UPDATE ASSIGNMENT
// =============================================================================

func TestUpdateAssignment_ExcludesOwnHours(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// GIVEN: the month fully booked by one assignment
	a, err := f.svc.CreateAssignment(ctx, f.monthly(160))
	require.NoError(t, err)

	// WHEN: re-submitting the same hours
	same := hours(160)
	_, err = f.svc.UpdateAssignment(ctx, a.ID, planning.AssignmentPatch{Hours: &same})
	// THEN: it passes
	assert.NoError(t, err)

	// AND: shrinking passes, growing does not
	less := hours(120)
	_, err = f.svc.UpdateAssignment(ctx, a.ID, planning.AssignmentPatch{Hours: &less})
	assert.NoError(t, err)
	more := hours(161)
	_, err = f.svc.UpdateAssignment(ctx, a.ID, planning.AssignmentPatch{Hours: &more})
	assert.ErrorIs(t, err, capacity.ErrCapacityExceeded)

	stored, err := f.svc.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, stored.Hours.Equal(hours(120)))
}

func TestUpdateAssignment_MoveBucket(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.CreateAssignment(ctx, f.daily("2025-03-02", 6))
	require.NoError(t, err)
	a, err := f.svc.CreateAssignment(ctx, f.daily("2025-03-01", 6))
	require.NoError(t, err)

	// Moving to a day that already has 6 hours overflows.
	day := "2025-03-02"
	_, err = f.svc.UpdateAssignment(ctx, a.ID, planning.AssignmentPatch{Date: &day})
	assert.ErrorIs(t, err, capacity.ErrCapacityExceeded)

	// Moving to a monthly bucket is allowed.
	month, year := 3, 2025
	moved, err := f.svc.UpdateAssignment(ctx, a.ID, planning.AssignmentPatch{Month: &month, Year: &year})
	require.NoError(t, err)
	assert.Equal(t, capacity.KindMonthly, moved.Bucket.Kind())
}

func TestUpdateAssignment_TitleOnlySkipsAdmission(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	a, err := f.svc.CreateAssignment(ctx, f.monthly(10))
	require.NoError(t, err)
	inactive := false
	_, err = f.svc.UpdateResource(ctx, f.resource.ID, planning.ResourcePatch{Active: &inactive})
	require.NoError(t, err)

	title := "Renamed"
	updated, err := f.svc.UpdateAssignment(ctx, a.ID, planning.AssignmentPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)

	more := hours(11)
	_, err = f.svc.UpdateAssignment(ctx, a.ID, planning.AssignmentPatch{Hours: &more})
	assert.ErrorIs(t, err, capacity.ErrInactiveResource)
}

func TestUpdateAssignment_Unassign(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	a, err := f.svc.CreateAssignment(ctx, f.monthly(160))
	require.NoError(t, err)
	none := ""
	more := hours(200)
	updated, err := f.svc.UpdateAssignment(ctx, a.ID, planning.AssignmentPatch{ResourceID: &none, Hours: &more})
	require.NoError(t, err)
	assert.False(t, updated.IsAssigned())
}

func TestDeleteAssignment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	a, err := f.svc.CreateAssignment(ctx, f.monthly(160))
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteAssignment(ctx, a.ID))

	_, err = f.svc.GetAssignment(ctx, a.ID)
	assert.True(t, planning.IsNotFound(err))
	assert.True(t, planning.IsNotFound(f.svc.DeleteAssignment(ctx, a.ID)))

	// Freed hours are available again.
	_, err = f.svc.CreateAssignment(ctx, f.monthly(160))
	assert.NoError(t, err)
}

// =============================================================================
// CAPACITIES
// =============================================================================

func TestSetCapacity_ReductionGuard(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.CreateAssignment(ctx, f.monthly(90))
	require.NoError(t, err)

	_, err = f.svc.SetCapacity(ctx, planning.CapacityInput{ResourceID: f.resource.ID, Month: 3, Year: 2025, TotalHours: hours(85)})
	var below *capacity.CapacityBelowAssignedError
	require.ErrorAs(t, err, &below)
	assert.Equal(t, "Cannot set capacity to 85 hours. Resource already has 90 hours assigned for 3/2025", err.Error())

	view, err := f.svc.SetCapacity(ctx, planning.CapacityInput{ResourceID: f.resource.ID, Month: 3, Year: 2025, TotalHours: hours(120)})
	require.NoError(t, err)
	assert.True(t, view.AssignedHours.Equal(hours(90)))
	assert.True(t, view.AvailableHours.Equal(hours(30)))
	assert.Equal(t, 75, view.UtilizationPercentage)
}

func TestSetCapacity_UpsertKeepsID(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	in := planning.CapacityInput{ResourceID: f.resource.ID, Month: 5, Year: 2025, TotalHours: hours(100)}

	first, err := f.svc.SetCapacity(ctx, in)
	require.NoError(t, err)
	in.TotalHours = hours(140)
	second, err := f.svc.SetCapacity(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	got, err := f.svc.GetCapacity(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalHours.Equal(hours(140)))
	assert.Equal(t, 0, got.UtilizationPercentage)
}

func TestSetCapacity_InactiveResource(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inactive := false
	_, err := f.svc.UpdateResource(ctx, f.resource.ID, planning.ResourcePatch{Active: &inactive})
	require.NoError(t, err)

	_, err = f.svc.SetCapacity(ctx, planning.CapacityInput{ResourceID: f.resource.ID, Month: 3, Year: 2025, TotalHours: hours(100)})
	assert.Equal(t, capacity.RuleInactiveResource, capacity.RuleOf(err))
}

func TestGetCapacity_ListsMonthlyAssignments(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	view, err := f.svc.SetCapacity(ctx, planning.CapacityInput{ResourceID: f.resource.ID, Month: 3, Year: 2025, TotalHours: hours(100)})
	require.NoError(t, err)
	_, err = f.svc.CreateAssignment(ctx, f.monthly(40))
	require.NoError(t, err)
	_, err = f.svc.CreateAssignment(ctx, f.daily("2025-03-04", 8))
	require.NoError(t, err)

	got, err := f.svc.GetCapacity(ctx, view.ID)
	require.NoError(t, err)
	assert.Len(t, got.Assignments, 1)
	assert.True(t, got.AssignedHours.Equal(hours(40)))
	assert.Equal(t, 40, got.UtilizationPercentage)

	_, err = f.svc.GetCapacity(ctx, "7f0c9a52-3d55-4a3a-9a51-1b1f6e0c1d11")
	assert.True(t, planning.IsNotFound(err))
}

func TestListCapacities_Pagination(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	for m := 1; m <= 5; m++ {
		_, err := f.svc.SetCapacity(ctx, planning.CapacityInput{ResourceID: f.resource.ID, Month: m, Year: 2025, TotalHours: hours(100)})
		require.NoError(t, err)
	}

	page, err := f.svc.ListCapacities(ctx, planning.CapacityFilter{ResourceID: f.resource.ID}, planning.Page{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, 3, page.Items[0].Month, "newest month first")

	defaults, err := f.svc.ListCapacities(ctx, planning.CapacityFilter{}, planning.Page{})
	require.NoError(t, err)
	assert.Equal(t, planning.DefaultPageLimit, defaults.Limit)

	_, err = f.svc.ListCapacities(ctx, planning.CapacityFilter{}, planning.Page{Page: 1, Limit: 101})
	assert.True(t, capacity.IsValidation(err))
}

func TestAvailable(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.CreateAssignment(ctx, f.monthly(60))
	require.NoError(t, err)

	left, err := f.svc.Available(ctx, f.resource.ID, capacity.Monthly{Month: time.March, Year: 2025})
	require.NoError(t, err)
	assert.True(t, left.Equal(hours(100)))

	left, err = f.svc.Available(ctx, f.resource.ID, capacity.NewDaily(2025, time.March, 1))
	require.NoError(t, err)
	assert.True(t, left.Equal(hours(8)))
}

// =============================================================================
// RESOURCES AND PROJECTS
// =============================================================================

func TestCreateResource_Defaults(t *testing.T) {
	f := setup(t)
	assert.True(t, f.resource.Active)
	assert.True(t, f.resource.DefaultCapacity.Equal(hours(160)))
}

func TestCreateResource_Rejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.CreateResource(ctx, planning.ResourceInput{Code: "R-1", Name: "Other"})
	var conflict *planning.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "code", conflict.Field)

	_, err = f.svc.CreateResource(ctx, planning.ResourceInput{Code: "R-2", Name: "Bo", Skills: []string{"Juggling"}})
	assert.True(t, capacity.IsValidation(err))

	over := hours(745)
	_, err = f.svc.CreateResource(ctx, planning.ResourceInput{Code: "R-3", Name: "Cy", DefaultCapacity: &over})
	assert.True(t, capacity.IsValidation(err))

	_, err = f.svc.CreateResource(ctx, planning.ResourceInput{Code: "R-4", Name: "Di", Email: "not-an-email"})
	var verr *capacity.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Fields[0].Field)
}

func TestGetResource_Metrics(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	other, err := f.svc.CreateProject(ctx, planning.ProjectInput{Code: "PRJ-2", Title: "Other"})
	require.NoError(t, err)
	_, err = f.svc.CreateAssignment(ctx, f.monthly(30))
	require.NoError(t, err)
	in := f.monthly(20)
	in.ProjectID = other.ID
	_, err = f.svc.CreateAssignment(ctx, in)
	require.NoError(t, err)

	view, err := f.svc.GetResource(ctx, f.resource.ID)
	require.NoError(t, err)
	assert.True(t, view.TotalAssignedHours.Equal(hours(50)))
	assert.Equal(t, 2, view.ActiveProjectsCount)
	assert.Len(t, view.Assignments, 2)
}

func TestProjectLifecycle(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.CreateProject(ctx, planning.ProjectInput{Code: "PRJ-1", Title: "Duplicate"})
	assert.True(t, planning.IsConflict(err))

	_, err = f.svc.CreateProject(ctx, planning.ProjectInput{Code: "PRJ-9", Title: "Dates", StartDate: "2025-05-01", EndDate: "2025-04-01"})
	assert.True(t, capacity.IsValidation(err))

	_, err = f.svc.CreateProject(ctx, planning.ProjectInput{Code: "PRJ-9", Title: "Priority", Priority: "urgent"})
	assert.True(t, capacity.IsValidation(err))

	_, err = f.svc.CreateAssignment(ctx, f.monthly(10))
	require.NoError(t, err)
	view, err := f.svc.GetProject(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.AssignedResourcesCount)
	assert.True(t, view.TotalAssignedHours.Equal(hours(10)))

	title := "Billing revamp v2"
	updated, err := f.svc.UpdateProject(ctx, f.project.ID, planning.ProjectPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)

	require.NoError(t, f.svc.DeleteProject(ctx, f.project.ID))
	left, err := f.svc.ListAssignments(ctx, planning.AssignmentFilter{ResourceID: f.resource.ID})
	require.NoError(t, err)
	assert.Empty(t, left, "assignments are removed with their project")
}

func TestReferenceData(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	statuses, err := f.svc.ListStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 7)
	assert.Equal(t, "Idea", statuses[0].Name)
	assert.Equal(t, "Finalizado", statuses[6].Name)

	skills, err := f.svc.ListSkills(ctx)
	require.NoError(t, err)
	assert.Len(t, skills, 6)
}

// =============================================================================
// CONCURRENCY - read-check-write is not atomic
// =============================================================================

// barrierStore holds every SumCommittedHours caller until all expected
// callers have read, forcing both admissions to see the same sum.
type barrierStore struct {
	*store.Memory
	arrived sync.WaitGroup
}

func (b *barrierStore) SumCommittedHours(ctx context.Context, resourceID string, bucket capacity.Bucket, excludeID string) (decimal.Decimal, error) {
	sum, err := b.Memory.SumCommittedHours(ctx, resourceID, bucket, excludeID)
	b.arrived.Done()
	b.arrived.Wait()
	return sum, err
}

func TestConcurrentAdmissions_CanOvercommit(t *testing.T) {
	ctx := context.Background()
	bs := &barrierStore{Memory: store.NewMemory()}
	svc := planning.NewService(bs, nil, nil)

	project, err := svc.CreateProject(ctx, planning.ProjectInput{Code: "PRJ-1", Title: "Race"})
	require.NoError(t, err)
	resource, err := svc.CreateResource(ctx, planning.ResourceInput{Code: "R-1", Name: "Ana"})
	require.NoError(t, err)

	// GIVEN: two 5 hour admissions on the same 8 hour day
	bs.arrived.Add(2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateAssignment(ctx, planning.AssignmentInput{
				ProjectID:  project.ID,
				ResourceID: resource.ID,
				Title:      "Concurrent",
				Date:       "2025-03-01",
				Hours:      hours(5),
			})
		}(i)
	}
	wg.Wait()

	// THEN: both read 0 committed, both are admitted
	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])

	// AND: the day is overcommitted (10 > 8)
	total, err := bs.Memory.SumCommittedHours(ctx, resource.ID, capacity.NewDaily(2025, time.March, 1), "")
	require.NoError(t, err)
	assert.True(t, total.Equal(hours(10)))
}

func TestSequentialAdmissions_AreEnforced(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.CreateAssignment(ctx, f.daily("2025-03-01", 5))
	require.NoError(t, err)
	_, err = f.svc.CreateAssignment(ctx, f.daily("2025-03-01", 5))
	assert.True(t, errors.Is(err, capacity.ErrCapacityExceeded))
}
