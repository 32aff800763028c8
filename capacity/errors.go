/*
errors.go - Error taxonomy for admission decisions

PURPOSE:
  Every rejection is an expected, user-actionable outcome. Each kind is a
  structured type carrying the figures needed to build the message, and each
  unwraps to a sentinel so callers can branch with errors.Is.

ERROR KINDS:
  ValidationError               malformed input (400)
  InactiveResourceError         resource not eligible (422)
  SkillMismatchError            resource lacks required skill (422)
  DailyCapacityExceededError    daily budget exceeded (422)
  MonthlyCapacityExceededError  monthly budget exceeded (422)
  CapacityBelowAssignedError    capacity lowered below committed hours (422)

RULE CODES:
  Business-rule errors expose Rule() so the HTTP layer can report a stable
  code next to the message.
*/
package capacity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation            = errors.New("validation failed")
	ErrInactiveResource      = errors.New("inactive resource")
	ErrSkillMismatch         = errors.New("resource skill mismatch")
	ErrCapacityExceeded      = errors.New("capacity exceeded")
	ErrCapacityBelowAssigned = errors.New("capacity below assigned hours")
)

// Rule codes reported alongside business-rule rejections.
const (
	RuleDailyCapacityExceeded = "DAILY_CAPACITY_EXCEEDED"
	RuleCapacityExceeded      = "CAPACITY_EXCEEDED"
	RuleSkillMismatch         = "RESOURCE_SKILL_MISMATCH"
	RuleInactiveResource      = "INACTIVE_RESOURCE"
	RuleCapacityBelowAssigned = "CAPACITY_BELOW_ASSIGNED"
)

// RuleError is implemented by every business-rule rejection.
type RuleError interface {
	error
	Rule() string
}

// =============================================================================
// VALIDATION
// =============================================================================

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Message: message,
		Fields:  []FieldError{{Field: field, Message: message}},
	}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) <= 1 {
		return e.Message
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// =============================================================================
// BUSINESS RULES
// =============================================================================

// InactiveResourceError is returned for any admission against an inactive resource.
type InactiveResourceError struct {
	ResourceID string
	Name       string
}

func (e *InactiveResourceError) Error() string {
	return "Cannot assign inactive resource to project"
}
func (e *InactiveResourceError) Unwrap() error { return ErrInactiveResource }
func (e *InactiveResourceError) Rule() string  { return RuleInactiveResource }

// SkillMismatchError names the resource and the skill it lacks.
type SkillMismatchError struct {
	Resource string
	Skill    string
}

func (e *SkillMismatchError) Error() string {
	return fmt.Sprintf("Resource '%s' does not have the skill '%s'", e.Resource, e.Skill)
}
func (e *SkillMismatchError) Unwrap() error { return ErrSkillMismatch }
func (e *SkillMismatchError) Rule() string  { return RuleSkillMismatch }

// Breakdown is the numeric detail of a capacity rejection.
type Breakdown struct {
	Budget    decimal.Decimal
	Assigned  decimal.Decimal // committed hours, excluding the evaluated assignment
	Requested decimal.Decimal
	Available decimal.Decimal // Budget - Assigned
}

// DailyCapacityExceededError rejects an assignment over the 8 hour day.
type DailyCapacityExceededError struct {
	Bucket Daily
	Breakdown
}

func (e *DailyCapacityExceededError) Error() string {
	return fmt.Sprintf(
		"Assignment would exceed daily resource capacity for %s. Available: %s hours, Requested: %s hours, Assigned: %s hours",
		e.Bucket, e.Available, e.Requested, e.Assigned)
}
func (e *DailyCapacityExceededError) Unwrap() error { return ErrCapacityExceeded }
func (e *DailyCapacityExceededError) Rule() string  { return RuleDailyCapacityExceeded }

// MonthlyCapacityExceededError rejects an assignment over the monthly budget.
type MonthlyCapacityExceededError struct {
	Bucket Monthly
	Breakdown
}

func (e *MonthlyCapacityExceededError) Error() string {
	return fmt.Sprintf(
		"Assignment would exceed monthly resource capacity for %s. Available: %s hours, Requested: %s hours, Assigned: %s hours",
		e.Bucket, e.Available, e.Requested, e.Assigned)
}
func (e *MonthlyCapacityExceededError) Unwrap() error { return ErrCapacityExceeded }
func (e *MonthlyCapacityExceededError) Rule() string  { return RuleCapacityExceeded }

// CapacityBelowAssignedError rejects lowering a monthly budget below what is committed.
type CapacityBelowAssignedError struct {
	Bucket    Monthly
	Current   decimal.Decimal // the proposed new total
	Committed decimal.Decimal
}

func (e *CapacityBelowAssignedError) Error() string {
	return fmt.Sprintf("Cannot set capacity to %s hours. Resource already has %s hours assigned for %s",
		e.Current, e.Committed, e.Bucket)
}
func (e *CapacityBelowAssignedError) Unwrap() error { return ErrCapacityBelowAssigned }
func (e *CapacityBelowAssignedError) Rule() string  { return RuleCapacityBelowAssigned }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsBusinessRule returns true for policy rejections (HTTP 422).
func IsBusinessRule(err error) bool {
	var re RuleError
	return errors.As(err, &re)
}

// IsValidation returns true for malformed input (HTTP 400).
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// RuleOf returns the rule code of err, or "" when err is not a business rule.
func RuleOf(err error) string {
	var re RuleError
	if errors.As(err, &re) {
		return re.Rule()
	}
	return ""
}
