package planning

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/warp/capacity-planner/capacity"
)

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// =============================================================================
// FIELD ERROR COLLECTION
// =============================================================================

type fieldErrors []capacity.FieldError

func (f *fieldErrors) add(field, message string) {
	*f = append(*f, capacity.FieldError{Field: field, Message: message})
}

// err returns nil when nothing was collected.
func (f fieldErrors) err() error {
	switch len(f) {
	case 0:
		return nil
	case 1:
		return &capacity.ValidationError{Message: f[0].Message, Fields: f}
	default:
		return &capacity.ValidationError{Message: "Validation failed", Fields: f}
	}
}

// checkStruct runs the struct tags of s and collects the failures.
func checkStruct(s any) (fieldErrors, error) {
	err := validate.Struct(s)
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, fmt.Errorf("validate %T: %w", s, err)
	}
	fields := make(fieldErrors, 0, len(verrs))
	for _, fe := range verrs {
		fields.add(fe.Field(), fieldMessage(fe.Field(), fe))
	}
	return fields, nil
}

// checkVar runs tag against a non-empty optional value. An empty value
// clears the field and is never checked.
func (f *fieldErrors) checkVar(field string, value *string, tag string) {
	if value == nil || *value == "" {
		return
	}
	var verrs validator.ValidationErrors
	if err := validate.Var(*value, tag); errors.As(err, &verrs) {
		for _, fe := range verrs {
			f.add(field, fieldMessage(field, fe))
		}
	}
}

func fieldMessage(name string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be %s characters or less", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "email":
		return "Invalid email format"
	case "uuid":
		return fmt.Sprintf("Invalid %s format", name)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url":
		return name + " must be a valid URL"
	}
	return name + " is invalid"
}

// =============================================================================
// MANUAL CHECKS - decimals, dates, bucket selection
// =============================================================================

// checkHours validates an hour quantity in (0, 744], or [0, 744] when
// allowZero is set.
func (f *fieldErrors) checkHours(field string, h decimal.Decimal, allowZero bool) {
	switch {
	case h.IsNegative() || (!allowZero && h.IsZero()):
		if allowZero {
			f.add(field, field+" must be non-negative")
		} else {
			f.add(field, field+" must be greater than 0")
		}
	case h.GreaterThan(decimal.NewFromInt(MaxMonthlyHours)):
		f.add(field, field+" must be at most 744")
	}
}

func (f *fieldErrors) checkNotBlank(field string, s *string) {
	if s != nil && strings.TrimSpace(*s) == "" {
		f.add(field, field+" is required")
	}
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the
// UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(capacity.DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return capacity.DailyOf(t.UTC()).Date, nil
}

func (f *fieldErrors) parseDate(field, s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := ParseDate(s)
	if err != nil {
		f.add(field, "Invalid "+field+" format")
		return nil
	}
	return &t
}

// selectBucket picks the bucket from a date or a month/year pair.
func (f *fieldErrors) selectBucket(date string, month, year int) capacity.Bucket {
	hasMonth := month != 0 || year != 0
	switch {
	case date != "" && hasMonth:
		f.add("date", "Provide either date or (month and year), not both")
	case date != "":
		if t := f.parseDate("date", date); t != nil {
			return capacity.DailyOf(*t)
		}
	case month != 0 && year != 0:
		return capacity.Monthly{Month: monthOf(month), Year: year}
	default:
		f.add("date", "Either date or (month and year) is required")
	}
	return nil
}

// SelectBucket validates a date or month/year pair taken from a query.
func SelectBucket(date string, month, year int) (capacity.Bucket, error) {
	var f fieldErrors
	if month < 0 || month > 12 {
		f.add("month", "month must be between 1 and 12")
	}
	if year != 0 && (year < 2000 || year > 2100) {
		f.add("year", "year must be between 2000 and 2100")
	}
	b := f.selectBucket(date, month, year)
	return b, f.err()
}

func monthOf(m int) time.Month { return time.Month(m) }

// =============================================================================
// INPUT VALIDATION
// =============================================================================

func (in AssignmentInput) validate() (capacity.Bucket, error) {
	f, err := checkStruct(in)
	if err != nil {
		return nil, err
	}
	f.checkHours("hours", in.Hours, false)
	bucket := f.selectBucket(in.Date, in.Month, in.Year)
	return bucket, f.err()
}

// apply merges the patch over a and returns the result.
func (p AssignmentPatch) apply(a Assignment) (Assignment, error) {
	f, err := checkStruct(p)
	if err != nil {
		return a, err
	}
	f.checkNotBlank("title", p.Title)
	f.checkVar("resourceId", p.ResourceID, "uuid")
	if p.Hours != nil {
		f.checkHours("hours", *p.Hours, false)
		a.Hours = *p.Hours
	}

	date := ""
	if p.Date != nil {
		date = *p.Date
	}
	month, year := 0, 0
	if p.Month != nil || p.Year != nil {
		// Fill the missing half from a monthly bucket being edited.
		if cur, ok := a.Bucket.(capacity.Monthly); ok {
			month, year = int(cur.Month), cur.Year
		}
		if p.Month != nil {
			month = *p.Month
		}
		if p.Year != nil {
			year = *p.Year
		}
	}
	if date != "" || month != 0 || year != 0 {
		if b := f.selectBucket(date, month, year); b != nil {
			a.Bucket = b
		}
	}

	if p.ResourceID != nil {
		a.ResourceID = *p.ResourceID
	}
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
	if p.SkillName != nil {
		a.SkillName = *p.SkillName
	}
	if p.Team != nil {
		a.Team = *p.Team
	}
	return a, f.err()
}

func (in CapacityInput) validate() error {
	f, err := checkStruct(in)
	if err != nil {
		return err
	}
	f.checkHours("totalHours", in.TotalHours, true)
	return f.err()
}

func (in ResourceInput) validate() error {
	f, err := checkStruct(in)
	if err != nil {
		return err
	}
	if in.DefaultCapacity != nil {
		f.checkHours("defaultCapacity", *in.DefaultCapacity, true)
	}
	return f.err()
}

func (p ResourcePatch) apply(r Resource) (Resource, error) {
	f, err := checkStruct(p)
	if err != nil {
		return r, err
	}
	f.checkNotBlank("code", p.Code)
	f.checkNotBlank("name", p.Name)
	f.checkVar("email", p.Email, "email,max=255")
	if p.DefaultCapacity != nil {
		f.checkHours("defaultCapacity", *p.DefaultCapacity, true)
		r.DefaultCapacity = *p.DefaultCapacity
	}
	if p.Code != nil {
		r.Code = *p.Code
	}
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Email != nil {
		r.Email = *p.Email
	}
	if p.Active != nil {
		r.Active = *p.Active
	}
	if p.Team != nil {
		r.Team = *p.Team
	}
	if p.Skills != nil {
		r.Skills = p.Skills
	}
	return r, f.err()
}

func (in ProjectInput) validate() (start, end *time.Time, err error) {
	f, err := checkStruct(in)
	if err != nil {
		return nil, nil, err
	}
	start = f.parseDate("startDate", in.StartDate)
	end = f.parseDate("endDate", in.EndDate)
	f.checkDateRange(start, end)
	return start, end, f.err()
}

func (f *fieldErrors) checkDateRange(start, end *time.Time) {
	if start != nil && end != nil && end.Before(*start) {
		f.add("endDate", "End date must be after or equal to start date")
	}
}

func (p ProjectPatch) apply(pr Project) (Project, error) {
	f, err := checkStruct(p)
	if err != nil {
		return pr, err
	}
	f.checkNotBlank("code", p.Code)
	f.checkNotBlank("title", p.Title)
	if p.StartDate != nil {
		pr.StartDate = f.parseDate("startDate", *p.StartDate)
	}
	if p.EndDate != nil {
		pr.EndDate = f.parseDate("endDate", *p.EndDate)
	}
	f.checkDateRange(pr.StartDate, pr.EndDate)

	if p.Code != nil {
		pr.Code = *p.Code
	}
	if p.Title != nil {
		pr.Title = *p.Title
	}
	if p.Description != nil {
		pr.Description = *p.Description
	}
	if p.Type != nil {
		pr.Type = *p.Type
	}
	if p.Priority != nil {
		pr.Priority = *p.Priority
	}
	if p.Status != nil {
		pr.Status = *p.Status
	}
	if p.Domain != nil {
		pr.Domain = *p.Domain
	}
	if p.Team != nil {
		pr.Team = *p.Team
	}
	return pr, f.err()
}
