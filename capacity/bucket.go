/*
Package capacity decides whether a proposed assignment of hours fits a
resource's budget.

PURPOSE:
  This package is the business-rule kernel of the planner. It knows nothing
  about storage or HTTP: callers resolve the resource, the optional capacity
  override and the hours already committed, and the checker returns a
  Decision or a typed rejection.

KEY CONCEPTS IN THIS FILE (bucket.go):
  - Bucket:  the time unit capacity is evaluated over
  - Daily:   a single calendar date (fixed 8 hour budget)
  - Monthly: a month+year pair (budget from Capacity or DefaultCapacity)

INVARIANT:
  An assignment is either daily or monthly, never both. Bucket is a closed
  set of types; only this package can add variants.

USAGE:
  b := capacity.NewDaily(2025, time.March, 1)
  m := capacity.Monthly{Month: time.March, Year: 2025}
  fmt.Println(b, m) // 2025-03-01 3/2025

SEE ALSO:
  - admission.go: Budget resolution and admission rule
  - errors.go: Rejection types
*/
package capacity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// dailyBudgetHours is the fixed budget of a Daily bucket.
const dailyBudgetHours = 8

// DailyBudget returns the fixed budget of a Daily bucket.
func DailyBudget() decimal.Decimal { return decimal.NewFromInt(dailyBudgetHours) }

// DateLayout is the ISO date format used for daily buckets.
const DateLayout = "2006-01-02"

// =============================================================================
// BUCKET - Tagged variant: Daily | Monthly
// =============================================================================

// BucketKind names the two bucket variants.
type BucketKind string

const (
	KindDaily   BucketKind = "daily"
	KindMonthly BucketKind = "monthly"
)

// Bucket is the time granularity capacity is evaluated over.
// Only Daily and Monthly implement it.
type Bucket interface {
	Kind() BucketKind
	String() string
	bucket()
}

// Daily is a single calendar date. The time of day is ignored.
type Daily struct {
	Date time.Time
}

// NewDaily builds a Daily bucket at UTC midnight.
func NewDaily(year int, month time.Month, day int) Daily {
	return Daily{Date: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DailyOf truncates t to its calendar date.
func DailyOf(t time.Time) Daily {
	return Daily{Date: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseDaily parses an ISO date (YYYY-MM-DD).
func ParseDaily(s string) (Daily, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Daily{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return Daily{Date: t}, nil
}

func (d Daily) Kind() BucketKind { return KindDaily }
func (d Daily) String() string   { return d.Date.Format(DateLayout) }
func (Daily) bucket()            {}

// Equal compares calendar dates.
func (d Daily) Equal(other Daily) bool { return d.String() == other.String() }

// Monthly is a (month, year) pair.
type Monthly struct {
	Month time.Month
	Year  int
}

func (m Monthly) Kind() BucketKind { return KindMonthly }
func (m Monthly) String() string   { return fmt.Sprintf("%d/%d", int(m.Month), m.Year) }
func (Monthly) bucket()            {}

// MonthOf returns the monthly bucket containing a daily one.
func MonthOf(d Daily) Monthly {
	return Monthly{Month: d.Date.Month(), Year: d.Date.Year()}
}

// SameBucket reports whether a and b denote the same bucket.
func SameBucket(a, b Bucket) bool {
	switch x := a.(type) {
	case Daily:
		y, ok := b.(Daily)
		return ok && x.Equal(y)
	case Monthly:
		y, ok := b.(Monthly)
		return ok && x == y
	}
	return false
}
