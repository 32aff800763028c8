package capacity_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/capacity-planner/capacity"
)

func hours(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func activeResource() capacity.Resource {
	return capacity.Resource{
		ID:              "res-1",
		Name:            "Ana",
		Active:          true,
		DefaultCapacity: hours(160),
		Skills:          []string{"Construcción", "QA"},
	}
}

var march2025 = capacity.Monthly{Month: time.March, Year: 2025}

// =============================================================================
// MONTHLY BUCKET
// =============================================================================

func TestCheckAdmission_Monthly_DefaultCapacityBoundary(t *testing.T) {
	// GIVEN: no Capacity record, defaultCapacity 160, 150 already committed
	// WHEN: proposing exactly the 10 hours left
	// THEN: admitted
	d, err := capacity.CheckAdmission(activeResource(), march2025, nil, hours(10), hours(150))
	require.NoError(t, err)
	assert.True(t, d.Admitted)
	assert.True(t, d.Budget.Equal(hours(160)))
	assert.True(t, d.Available.Equal(hours(10)))
	assert.True(t, d.Remaining().IsZero())
}

func TestCheckAdmission_Monthly_OneHourOver(t *testing.T) {
	d, err := capacity.CheckAdmission(activeResource(), march2025, nil, hours(11), hours(150))
	require.Error(t, err)
	assert.False(t, d.Admitted)
	assert.ErrorIs(t, err, capacity.ErrCapacityExceeded)

	var monthly *capacity.MonthlyCapacityExceededError
	require.ErrorAs(t, err, &monthly)
	assert.True(t, monthly.Available.Equal(hours(10)))
	assert.True(t, monthly.Requested.Equal(hours(11)))
	assert.True(t, monthly.Assigned.Equal(hours(150)))
	assert.Equal(t, march2025, monthly.Bucket)
	assert.Equal(t, capacity.RuleCapacityExceeded, capacity.RuleOf(err))
	assert.Equal(t,
		"Assignment would exceed monthly resource capacity for 3/2025. Available: 10 hours, Requested: 11 hours, Assigned: 150 hours",
		err.Error())
}

func TestCheckAdmission_Monthly_OverrideWins(t *testing.T) {
	override := &capacity.Capacity{ResourceID: "res-1", Month: 3, Year: 2025, TotalHours: hours(100)}

	d, err := capacity.CheckAdmission(activeResource(), march2025, override, hours(10), hours(90))
	require.NoError(t, err)
	assert.True(t, d.Budget.Equal(hours(100)))

	_, err = capacity.CheckAdmission(activeResource(), march2025, override, hours(11), hours(90))
	assert.ErrorIs(t, err, capacity.ErrCapacityExceeded)
}

func TestCheckAdmission_Monthly_MismatchedOverride(t *testing.T) {
	override := &capacity.Capacity{ResourceID: "res-1", Month: 4, Year: 2025, TotalHours: hours(100)}
	_, err := capacity.CheckAdmission(activeResource(), march2025, override, hours(1), hours(0))
	assert.True(t, capacity.IsValidation(err))
}

// =============================================================================
// DAILY BUCKET
// =============================================================================

func TestCheckAdmission_Daily_Exceeded(t *testing.T) {
	day := capacity.NewDaily(2025, time.March, 1)

	_, err := capacity.CheckAdmission(activeResource(), day, nil, hours(4), hours(5))
	require.Error(t, err)

	var daily *capacity.DailyCapacityExceededError
	require.ErrorAs(t, err, &daily)
	assert.True(t, daily.Available.Equal(hours(3)))
	assert.True(t, daily.Budget.Equal(hours(8)))
	assert.Equal(t, capacity.RuleDailyCapacityExceeded, daily.Rule())
	assert.Equal(t,
		"Assignment would exceed daily resource capacity for 2025-03-01. Available: 3 hours, Requested: 4 hours, Assigned: 5 hours",
		err.Error())
}

func TestCheckAdmission_Daily_IgnoresCapacityRecord(t *testing.T) {
	// A 200 hour override for the month must not lift the 8 hour day.
	day := capacity.NewDaily(2025, time.March, 1)
	override := &capacity.Capacity{ResourceID: "res-1", Month: 3, Year: 2025, TotalHours: hours(200)}

	d, err := capacity.CheckAdmission(activeResource(), day, override, hours(8), hours(0))
	require.NoError(t, err)
	assert.True(t, d.Budget.Equal(hours(8)))

	_, err = capacity.CheckAdmission(activeResource(), day, override, hours(9), hours(0))
	assert.ErrorIs(t, err, capacity.ErrCapacityExceeded)
}

func TestDailyBudget_Fixed(t *testing.T) {
	b := capacity.DailyBudget()
	assert.True(t, b.Equal(hours(8)))

	// Arithmetic on a returned value leaves later budgets untouched.
	_ = b.Add(hours(100))
	assert.True(t, capacity.DailyBudget().Equal(hours(8)))

	budget, err := capacity.ResolveBudget(activeResource(), capacity.NewDaily(2025, time.March, 3), nil)
	require.NoError(t, err)
	assert.True(t, budget.Equal(capacity.DailyBudget()))
}

func TestCheckAdmission_Daily_FractionalHours(t *testing.T) {
	day := capacity.NewDaily(2025, time.March, 3)
	half := decimal.RequireFromString("0.5")

	_, err := capacity.CheckAdmission(activeResource(), day, nil, half, decimal.RequireFromString("7.5"))
	assert.NoError(t, err)

	_, err = capacity.CheckAdmission(activeResource(), day, nil, half, decimal.RequireFromString("7.75"))
	assert.Error(t, err)
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestCheckAdmission_AdmitIffWithinAvailable(t *testing.T) {
	res := activeResource()
	for committed := int64(0); committed <= 160; committed += 20 {
		for proposed := int64(1); proposed <= 170; proposed += 13 {
			_, err := capacity.CheckAdmission(res, march2025, nil, hours(proposed), hours(committed))
			if committed+proposed <= 160 {
				assert.NoError(t, err, "committed=%d proposed=%d", committed, proposed)
				continue
			}
			var monthly *capacity.MonthlyCapacityExceededError
			if assert.ErrorAs(t, err, &monthly, "committed=%d proposed=%d", committed, proposed) {
				assert.True(t, monthly.Available.Equal(hours(160-committed)))
			}
		}
	}
}

func TestCheckAdmission_Idempotent(t *testing.T) {
	res := activeResource()
	d1, err1 := capacity.CheckAdmission(res, march2025, nil, hours(11), hours(150))
	d2, err2 := capacity.CheckAdmission(res, march2025, nil, hours(11), hours(150))
	assert.Equal(t, d1, d2)
	assert.Equal(t, err1.Error(), err2.Error())
}

// =============================================================================
// GUARDS
// =============================================================================

func TestCheckAdmission_InactiveResource(t *testing.T) {
	res := activeResource()
	res.Active = false

	// Rejected even for hours that would otherwise fit.
	_, err := capacity.CheckAdmission(res, march2025, nil, hours(1), hours(0))
	assert.ErrorIs(t, err, capacity.ErrInactiveResource)
	assert.True(t, capacity.IsBusinessRule(err))
	assert.Equal(t, capacity.RuleInactiveResource, capacity.RuleOf(err))
}

func TestCheckAdmission_NonPositiveHours(t *testing.T) {
	for _, h := range []decimal.Decimal{decimal.Zero, hours(-3)} {
		_, err := capacity.CheckAdmission(activeResource(), march2025, nil, h, hours(0))
		assert.True(t, capacity.IsValidation(err))
		assert.False(t, capacity.IsBusinessRule(err))
	}
}

func TestCheckAdmission_NilBucket(t *testing.T) {
	_, err := capacity.CheckAdmission(activeResource(), nil, nil, hours(1), hours(0))
	var verr *capacity.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "bucket", verr.Fields[0].Field)
}

func TestCheckSkill(t *testing.T) {
	res := activeResource()
	assert.NoError(t, capacity.CheckSkill(res, ""))
	assert.NoError(t, capacity.CheckSkill(res, "QA"))

	err := capacity.CheckSkill(res, "PM")
	var mismatch *capacity.SkillMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "Ana", mismatch.Resource)
	assert.Equal(t, "PM", mismatch.Skill)
	assert.Equal(t, "Resource 'Ana' does not have the skill 'PM'", err.Error())
}

func TestCheckCapacityReduction(t *testing.T) {
	// below committed fails
	err := capacity.CheckCapacityReduction(march2025, hours(85), hours(90))
	var below *capacity.CapacityBelowAssignedError
	require.ErrorAs(t, err, &below)
	assert.True(t, below.Current.Equal(hours(85)))
	assert.True(t, below.Committed.Equal(hours(90)))
	assert.Equal(t, "Cannot set capacity to 85 hours. Resource already has 90 hours assigned for 3/2025", err.Error())

	// exactly committed passes
	assert.NoError(t, capacity.CheckCapacityReduction(march2025, hours(90), hours(90)))
	// increase passes
	assert.NoError(t, capacity.CheckCapacityReduction(march2025, hours(300), hours(90)))
	// negative is a validation error
	assert.True(t, capacity.IsValidation(capacity.CheckCapacityReduction(march2025, hours(-1), hours(0))))
}

func TestBucketFormatting(t *testing.T) {
	d, err := capacity.ParseDaily("2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", d.String())
	assert.Equal(t, capacity.KindDaily, d.Kind())
	assert.Equal(t, "3/2025", capacity.MonthOf(d).String())

	_, err = capacity.ParseDaily("01/03/2025")
	assert.Error(t, err)

	later := capacity.DailyOf(time.Date(2025, 3, 1, 17, 30, 0, 0, time.UTC))
	assert.True(t, capacity.SameBucket(d, later))
	assert.False(t, capacity.SameBucket(d, capacity.MonthOf(d)))
}
