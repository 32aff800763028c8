/*
admission.go - Budget resolution and the admission rule

PURPOSE:
  Decides whether proposed hours fit a resource's budget for a bucket.

BUDGET RESOLUTION:
  Daily(date)          -> 8 hours, regardless of any Capacity record
  Monthly(month, year) -> Capacity.TotalHours if an override exists for
                          (resource, month, year), else Resource.DefaultCapacity

DECISION RULE:
  admit iff committed + proposed <= budget (boundary inclusive)

  committed is the sum of hours already assigned to the resource in the
  bucket, EXCLUDING the assignment being evaluated. On update the caller
  drops the assignment's own prior hours so no-op and shrinking updates pass.

PURITY:
  No I/O and no state. Calling twice with the same inputs yields the same
  result. Callers must pass a freshly read committed sum; the
  read-check-write sequence around this function is not atomic.

EXAMPLE:
  res := capacity.Resource{ID: "r1", Active: true, DefaultCapacity: decimal.NewFromInt(160)}
  d, err := capacity.CheckAdmission(res, capacity.Monthly{Month: 3, Year: 2025}, nil, hours(10), hours(150))
  // d.Admitted == true, d.Available == 10

SEE ALSO:
  - errors.go: Rejection types
  - planning/service.go: Resolves inputs from storage and calls this
*/
package capacity

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUTS
// =============================================================================

// Resource is the view of a resource the checker needs.
type Resource struct {
	ID              string
	Name            string
	Active          bool
	DefaultCapacity decimal.Decimal // monthly hours when no Capacity override exists
	Skills          []string
}

// HasSkill reports whether the resource declares skill.
func (r Resource) HasSkill(skill string) bool {
	for _, s := range r.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

// Capacity is an explicit monthly budget override for one resource.
type Capacity struct {
	ResourceID string
	Month      int
	Year       int
	TotalHours decimal.Decimal
}

// Matches reports whether the override applies to resourceID in bucket m.
func (c Capacity) Matches(resourceID string, m Monthly) bool {
	return c.ResourceID == resourceID && c.Month == int(m.Month) && c.Year == m.Year
}

// =============================================================================
// DECISION
// =============================================================================

// Decision is the outcome of an admission check.
type Decision struct {
	Admitted  bool
	Bucket    Bucket
	Budget    decimal.Decimal
	Committed decimal.Decimal
	Requested decimal.Decimal
	Available decimal.Decimal // Budget - Committed, before the request
}

// Remaining is what is left in the bucket if the request is admitted.
func (d Decision) Remaining() decimal.Decimal {
	return d.Available.Sub(d.Requested)
}

// =============================================================================
// BUDGET RESOLUTION
// =============================================================================

// ResolveBudget returns the hour budget of res in bucket.
// override is ignored for daily buckets.
func ResolveBudget(res Resource, bucket Bucket, override *Capacity) (decimal.Decimal, error) {
	switch b := bucket.(type) {
	case Daily:
		return DailyBudget(), nil
	case Monthly:
		if override == nil {
			return res.DefaultCapacity, nil
		}
		if !override.Matches(res.ID, b) {
			return decimal.Zero, NewValidationError("capacity", "capacity record does not match resource and month")
		}
		return override.TotalHours, nil
	default:
		return decimal.Zero, NewValidationError("bucket", "Either date or (month and year) is required")
	}
}

// =============================================================================
// ADMISSION
// =============================================================================

// CheckAdmission decides whether proposed hours fit res's budget in bucket,
// given committed hours already assigned there.
func CheckAdmission(res Resource, bucket Bucket, override *Capacity, proposed, committed decimal.Decimal) (Decision, error) {
	if bucket == nil {
		return Decision{}, NewValidationError("bucket", "Either date or (month and year) is required")
	}
	if !proposed.IsPositive() {
		return Decision{}, NewValidationError("hours", "hours must be greater than 0")
	}
	if !res.Active {
		return Decision{}, &InactiveResourceError{ResourceID: res.ID, Name: res.Name}
	}

	budget, err := ResolveBudget(res, bucket, override)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{
		Bucket:    bucket,
		Budget:    budget,
		Committed: committed,
		Requested: proposed,
		Available: budget.Sub(committed),
	}
	if committed.Add(proposed).LessThanOrEqual(budget) {
		d.Admitted = true
		return d, nil
	}

	bd := Breakdown{Budget: budget, Assigned: committed, Requested: proposed, Available: d.Available}
	if b, ok := bucket.(Daily); ok {
		return d, &DailyCapacityExceededError{Bucket: b, Breakdown: bd}
	}
	return d, &MonthlyCapacityExceededError{Bucket: bucket.(Monthly), Breakdown: bd}
}

// CheckSkill fails when skill is set and res does not declare it.
func CheckSkill(res Resource, skill string) error {
	if skill == "" || res.HasSkill(skill) {
		return nil
	}
	return &SkillMismatchError{Resource: res.Name, Skill: skill}
}

// CheckCapacityReduction guards setting a monthly budget to newTotal while
// committed hours are already assigned. Increasing always passes.
func CheckCapacityReduction(bucket Monthly, newTotal, committed decimal.Decimal) error {
	if newTotal.IsNegative() {
		return NewValidationError("totalHours", "Total hours must be non-negative")
	}
	if newTotal.LessThan(committed) {
		return &CapacityBelowAssignedError{Bucket: bucket, Current: newTotal, Committed: committed}
	}
	return nil
}
