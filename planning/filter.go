package planning

import (
	"github.com/warp/capacity-planner/capacity"
)

// Match reports whether r passes the filter.
func (f ResourceFilter) Match(r Resource) bool {
	if f.Active != nil && r.Active != *f.Active {
		return false
	}
	if f.Skill != "" && !r.Admission().HasSkill(f.Skill) {
		return false
	}
	return true
}

// Match reports whether c passes the filter.
func (f CapacityFilter) Match(c Capacity) bool {
	return (f.ResourceID == "" || c.ResourceID == f.ResourceID) &&
		(f.Month == 0 || c.Month == f.Month) &&
		(f.Year == 0 || c.Year == f.Year)
}

// Match reports whether a passes the filter.
func (f AssignmentFilter) Match(a Assignment) bool {
	if f.ProjectID != "" && a.ProjectID != f.ProjectID {
		return false
	}
	if f.ResourceID != "" && a.ResourceID != f.ResourceID {
		return false
	}
	if f.Month == 0 && f.Year == 0 {
		return true
	}
	m := BucketMonth(a.Bucket)
	return (f.Month == 0 || int(m.Month) == f.Month) && (f.Year == 0 || m.Year == f.Year)
}

// Match reports whether p passes the filter.
func (f ProjectFilter) Match(p Project) bool {
	return (f.Type == "" || p.Type == f.Type) &&
		(f.Priority == "" || p.Priority == f.Priority) &&
		(f.Team == "" || p.Team == f.Team) &&
		(f.Status == nil || p.Status == *f.Status) &&
		(f.Domain == nil || p.Domain == *f.Domain)
}

// BucketMonth returns the month a bucket falls in.
func BucketMonth(b capacity.Bucket) capacity.Monthly {
	switch x := b.(type) {
	case capacity.Daily:
		return capacity.MonthOf(x)
	case capacity.Monthly:
		return x
	}
	return capacity.Monthly{}
}

// Counts reports whether a contributes to the committed hours of
// resourceID in bucket.
func (a Assignment) Counts(resourceID string, bucket capacity.Bucket) bool {
	return a.ResourceID == resourceID && a.ResourceID != "" && capacity.SameBucket(a.Bucket, bucket)
}
