package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/capacity-planner/capacity"
	"github.com/warp/capacity-planner/planning"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries runs every statement of the store against q without locking.
// It implements planning.Store so WithTx can hand it to callers.
type queries struct {
	q querier
}

var _ planning.Store = (*queries)(nil)

// timeLayout is fixed width so TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// =============================================================================
// RESOURCES
// =============================================================================

const resourceColumns = `id, code, name, email, default_capacity, active, team, created_at, updated_at`

func (s *queries) GetResource(ctx context.Context, id string) (*planning.Resource, error) {
	return s.getResource(ctx, "SELECT "+resourceColumns+" FROM resources WHERE id = ?", id)
}

func (s *queries) GetResourceByCode(ctx context.Context, code string) (*planning.Resource, error) {
	return s.getResource(ctx, "SELECT "+resourceColumns+" FROM resources WHERE code = ?", code)
}

func (s *queries) getResource(ctx context.Context, query string, arg any) (*planning.Resource, error) {
	list, err := s.queryResources(ctx, query, arg)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func (s *queries) ListResources(ctx context.Context, filter planning.ResourceFilter) ([]planning.Resource, error) {
	var (
		where []string
		args  []any
	)
	if filter.Active != nil {
		where = append(where, "active = ?")
		args = append(args, *filter.Active)
	}
	if filter.Skill != "" {
		where = append(where, "id IN (SELECT resource_id FROM resource_skills WHERE skill_name = ?)")
		args = append(args, filter.Skill)
	}
	query := "SELECT " + resourceColumns + " FROM resources" + whereClause(where) + " ORDER BY name ASC"
	return s.queryResources(ctx, query, args...)
}

// queryResources reads every row before loading skills, so a single
// connection is never asked to serve two open result sets.
func (s *queries) queryResources(ctx context.Context, query string, args ...any) ([]planning.Resource, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	var resources []planning.Resource
	for rows.Next() {
		var (
			r                    planning.Resource
			email                sql.NullString
			defaultCapacity      string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&r.ID, &r.Code, &r.Name, &email, &defaultCapacity, &r.Active, &r.Team, &createdAt, &updatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		r.Email = email.String
		if r.DefaultCapacity, err = parseDecimal(defaultCapacity); err != nil {
			rows.Close()
			return nil, fmt.Errorf("resource %s default capacity: %w", r.ID, err)
		}
		r.CreatedAt = parseTime(createdAt)
		r.UpdatedAt = parseTime(updatedAt)
		resources = append(resources, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range resources {
		skills, err := s.loadSkills(ctx, resources[i].ID)
		if err != nil {
			return nil, err
		}
		resources[i].Skills = skills
	}
	return resources, nil
}

func (s *queries) loadSkills(ctx context.Context, resourceID string) ([]string, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT skill_name FROM resource_skills WHERE resource_id = ? ORDER BY skill_name", resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query skills: %w", err)
	}
	defer rows.Close()
	var skills []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		skills = append(skills, name)
	}
	return skills, rows.Err()
}

func (s *queries) CreateResource(ctx context.Context, r planning.Resource) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO resources (`+resourceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Code, r.Name, nullString(r.Email), r.DefaultCapacity.String(), r.Active, r.Team,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		return constraintError(err, "Resource")
	}
	return s.replaceSkills(ctx, r.ID, r.Skills)
}

func (s *queries) UpdateResource(ctx context.Context, r planning.Resource) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE resources
		SET code = ?, name = ?, email = ?, default_capacity = ?, active = ?, team = ?, updated_at = ?
		WHERE id = ?`,
		r.Code, r.Name, nullString(r.Email), r.DefaultCapacity.String(), r.Active, r.Team,
		formatTime(r.UpdatedAt), r.ID,
	)
	if err != nil {
		return constraintError(err, "Resource")
	}
	if err := requireRow(res, "Resource", r.ID); err != nil {
		return err
	}
	return s.replaceSkills(ctx, r.ID, r.Skills)
}

func (s *queries) replaceSkills(ctx context.Context, resourceID string, skills []string) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM resource_skills WHERE resource_id = ?", resourceID); err != nil {
		return fmt.Errorf("failed to clear skills: %w", err)
	}
	for _, name := range skills {
		if _, err := s.q.ExecContext(ctx,
			"INSERT OR IGNORE INTO resource_skills (resource_id, skill_name) VALUES (?, ?)",
			resourceID, name,
		); err != nil {
			return fmt.Errorf("failed to save skill %q: %w", name, err)
		}
	}
	return nil
}

// =============================================================================
// CAPACITIES
// =============================================================================

const capacityColumns = `id, resource_id, month, year, total_hours, created_at, updated_at`

func (s *queries) FindCapacity(ctx context.Context, resourceID string, month capacity.Monthly) (*planning.Capacity, error) {
	return s.getCapacity(ctx,
		"SELECT "+capacityColumns+" FROM capacities WHERE resource_id = ? AND month = ? AND year = ?",
		resourceID, int(month.Month), month.Year)
}

func (s *queries) GetCapacity(ctx context.Context, id string) (*planning.Capacity, error) {
	return s.getCapacity(ctx, "SELECT "+capacityColumns+" FROM capacities WHERE id = ?", id)
}

func (s *queries) getCapacity(ctx context.Context, query string, args ...any) (*planning.Capacity, error) {
	list, err := s.queryCapacities(ctx, query, args...)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func capacityWhere(filter planning.CapacityFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if filter.ResourceID != "" {
		where = append(where, "resource_id = ?")
		args = append(args, filter.ResourceID)
	}
	if filter.Month != 0 {
		where = append(where, "month = ?")
		args = append(args, filter.Month)
	}
	if filter.Year != 0 {
		where = append(where, "year = ?")
		args = append(args, filter.Year)
	}
	return whereClause(where), args
}

func (s *queries) ListCapacities(ctx context.Context, filter planning.CapacityFilter, page planning.Page) ([]planning.Capacity, error) {
	where, args := capacityWhere(filter)
	query := "SELECT " + capacityColumns + " FROM capacities" + where +
		" ORDER BY year DESC, month DESC, resource_id ASC LIMIT ? OFFSET ?"
	return s.queryCapacities(ctx, query, append(args, page.Limit, page.Offset())...)
}

func (s *queries) CountCapacities(ctx context.Context, filter planning.CapacityFilter) (int, error) {
	where, args := capacityWhere(filter)
	var n int
	err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM capacities"+where, args...).Scan(&n)
	return n, err
}

func (s *queries) queryCapacities(ctx context.Context, query string, args ...any) ([]planning.Capacity, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query capacities: %w", err)
	}
	defer rows.Close()

	var capacities []planning.Capacity
	for rows.Next() {
		var (
			c                    planning.Capacity
			total                string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&c.ID, &c.ResourceID, &c.Month, &c.Year, &total, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan capacity: %w", err)
		}
		if c.TotalHours, err = parseDecimal(total); err != nil {
			return nil, fmt.Errorf("capacity %s total hours: %w", c.ID, err)
		}
		c.CreatedAt = parseTime(createdAt)
		c.UpdatedAt = parseTime(updatedAt)
		capacities = append(capacities, c)
	}
	return capacities, rows.Err()
}

// UpsertCapacity keeps the ID and created_at of an existing override.
func (s *queries) UpsertCapacity(ctx context.Context, c planning.Capacity) (planning.Capacity, error) {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO capacities (`+capacityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (resource_id, month, year)
		DO UPDATE SET total_hours = excluded.total_hours, updated_at = excluded.updated_at`,
		c.ID, c.ResourceID, c.Month, c.Year, c.TotalHours.String(),
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	if err != nil {
		return planning.Capacity{}, constraintError(err, "Capacity")
	}
	stored, err := s.FindCapacity(ctx, c.ResourceID, c.Bucket())
	if err != nil {
		return planning.Capacity{}, err
	}
	if stored == nil {
		return planning.Capacity{}, fmt.Errorf("capacity %s vanished after upsert", c.Bucket())
	}
	return *stored, nil
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

const assignmentColumns = `id, project_id, resource_id, title, description, skill_name, team,
	date, month, year, hours, jira_issue_key, jira_issue_id, created_at, updated_at`

func (s *queries) GetAssignment(ctx context.Context, id string) (*planning.Assignment, error) {
	return s.getAssignment(ctx, "SELECT "+assignmentColumns+" FROM assignments WHERE id = ?", id)
}

func (s *queries) FindAssignmentByJiraKey(ctx context.Context, projectID, issueKey string) (*planning.Assignment, error) {
	return s.getAssignment(ctx,
		"SELECT "+assignmentColumns+" FROM assignments WHERE project_id = ? AND jira_issue_key = ?",
		projectID, issueKey)
}

func (s *queries) getAssignment(ctx context.Context, query string, args ...any) (*planning.Assignment, error) {
	list, err := s.queryAssignments(ctx, query, args...)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func (s *queries) ListAssignments(ctx context.Context, filter planning.AssignmentFilter) ([]planning.Assignment, error) {
	var (
		where []string
		args  []any
	)
	if filter.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.ResourceID != "" {
		where = append(where, "resource_id = ?")
		args = append(args, filter.ResourceID)
	}
	// Daily assignments match by the month of their date.
	if filter.Month != 0 {
		where = append(where, "COALESCE(month, CAST(strftime('%m', date) AS INTEGER)) = ?")
		args = append(args, filter.Month)
	}
	if filter.Year != 0 {
		where = append(where, "COALESCE(year, CAST(strftime('%Y', date) AS INTEGER)) = ?")
		args = append(args, filter.Year)
	}
	query := "SELECT " + assignmentColumns + " FROM assignments" + whereClause(where) +
		" ORDER BY created_at DESC, id ASC"
	return s.queryAssignments(ctx, query, args...)
}

func (s *queries) queryAssignments(ctx context.Context, query string, args ...any) ([]planning.Assignment, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []planning.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func scanAssignment(rows *sql.Rows) (planning.Assignment, error) {
	var (
		a                    planning.Assignment
		resourceID           sql.NullString
		date                 sql.NullString
		month, year          sql.NullInt64
		hours                string
		jiraKey, jiraID      sql.NullString
		createdAt, updatedAt string
	)
	err := rows.Scan(
		&a.ID, &a.ProjectID, &resourceID, &a.Title, &a.Description, &a.SkillName, &a.Team,
		&date, &month, &year, &hours, &jiraKey, &jiraID, &createdAt, &updatedAt,
	)
	if err != nil {
		return a, fmt.Errorf("failed to scan assignment: %w", err)
	}

	if date.Valid {
		d, err := capacity.ParseDaily(date.String)
		if err != nil {
			return a, fmt.Errorf("assignment %s: %w", a.ID, err)
		}
		a.Bucket = d
	} else {
		a.Bucket = capacity.Monthly{Month: time.Month(month.Int64), Year: int(year.Int64)}
	}
	a.ResourceID = resourceID.String
	if a.Hours, err = parseDecimal(hours); err != nil {
		return a, fmt.Errorf("assignment %s hours: %w", a.ID, err)
	}
	a.JiraIssueKey = jiraKey.String
	a.JiraIssueID = jiraID.String
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return a, nil
}

// bucketColumns returns the date, month and year column values of b.
func bucketColumns(b capacity.Bucket) (date sql.NullString, month, year sql.NullInt64, err error) {
	switch x := b.(type) {
	case capacity.Daily:
		return sql.NullString{String: x.String(), Valid: true}, month, year, nil
	case capacity.Monthly:
		return date, sql.NullInt64{Int64: int64(x.Month), Valid: true}, sql.NullInt64{Int64: int64(x.Year), Valid: true}, nil
	}
	return date, month, year, fmt.Errorf("unsupported bucket %T", b)
}

// SumCommittedHours sums in Go so decimal hours stay exact.
func (s *queries) SumCommittedHours(ctx context.Context, resourceID string, bucket capacity.Bucket, excludeID string) (decimal.Decimal, error) {
	var (
		query string
		args  []any
	)
	switch b := bucket.(type) {
	case capacity.Daily:
		query = "SELECT hours FROM assignments WHERE resource_id = ? AND date = ? AND id <> ?"
		args = []any{resourceID, b.String(), excludeID}
	case capacity.Monthly:
		query = "SELECT hours FROM assignments WHERE resource_id = ? AND date IS NULL AND month = ? AND year = ? AND id <> ?"
		args = []any{resourceID, int(b.Month), b.Year, excludeID}
	default:
		return decimal.Zero, fmt.Errorf("unsupported bucket %T", bucket)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum hours: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return decimal.Zero, err
		}
		d, err := parseDecimal(h)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to sum hours: %w", err)
		}
		total = total.Add(d)
	}
	return total, rows.Err()
}

func (s *queries) CreateAssignment(ctx context.Context, a planning.Assignment) error {
	date, month, year, err := bucketColumns(a.Bucket)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO assignments (`+assignmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ProjectID, nullString(a.ResourceID), a.Title, a.Description, a.SkillName, a.Team,
		date, month, year, a.Hours.String(), nullString(a.JiraIssueKey), nullString(a.JiraIssueID),
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if err != nil {
		return constraintError(err, "Assignment")
	}
	return nil
}

func (s *queries) UpdateAssignment(ctx context.Context, a planning.Assignment) error {
	date, month, year, err := bucketColumns(a.Bucket)
	if err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE assignments
		SET resource_id = ?, title = ?, description = ?, skill_name = ?, team = ?,
		    date = ?, month = ?, year = ?, hours = ?, jira_issue_key = ?, jira_issue_id = ?, updated_at = ?
		WHERE id = ?`,
		nullString(a.ResourceID), a.Title, a.Description, a.SkillName, a.Team,
		date, month, year, a.Hours.String(), nullString(a.JiraIssueKey), nullString(a.JiraIssueID),
		formatTime(a.UpdatedAt), a.ID,
	)
	if err != nil {
		return constraintError(err, "Assignment")
	}
	return requireRow(res, "Assignment", a.ID)
}

func (s *queries) DeleteAssignment(ctx context.Context, id string) error {
	_, err := s.q.ExecContext(ctx, "DELETE FROM assignments WHERE id = ?", id)
	return err
}

// =============================================================================
// PROJECTS
// =============================================================================

const projectColumns = `id, code, title, description, type, priority, start_date, end_date,
	status, domain, team, jira_project_key, jira_url, created_at, updated_at`

func (s *queries) GetProject(ctx context.Context, id string) (*planning.Project, error) {
	return s.getProject(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = ?", id)
}

func (s *queries) GetProjectByCode(ctx context.Context, code string) (*planning.Project, error) {
	return s.getProject(ctx, "SELECT "+projectColumns+" FROM projects WHERE code = ?", code)
}

func (s *queries) FindProjectByCodeAndTeam(ctx context.Context, code, team string) (*planning.Project, error) {
	return s.getProject(ctx, "SELECT "+projectColumns+" FROM projects WHERE code = ? AND team = ?", code, team)
}

func (s *queries) getProject(ctx context.Context, query string, args ...any) (*planning.Project, error) {
	list, err := s.queryProjects(ctx, query, args...)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func (s *queries) ListProjects(ctx context.Context, filter planning.ProjectFilter) ([]planning.Project, error) {
	var (
		where []string
		args  []any
	)
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.Priority != "" {
		where = append(where, "priority = ?")
		args = append(args, filter.Priority)
	}
	if filter.Team != "" {
		where = append(where, "team = ?")
		args = append(args, filter.Team)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Domain != nil {
		where = append(where, "domain = ?")
		args = append(args, *filter.Domain)
	}
	query := "SELECT " + projectColumns + " FROM projects" + whereClause(where) + " ORDER BY created_at DESC, id ASC"
	return s.queryProjects(ctx, query, args...)
}

func (s *queries) ListJiraLinkedProjects(ctx context.Context) ([]planning.Project, error) {
	return s.queryProjects(ctx,
		"SELECT "+projectColumns+" FROM projects WHERE jira_project_key IS NOT NULL AND jira_project_key <> '' ORDER BY created_at DESC, id ASC")
}

func (s *queries) queryProjects(ctx context.Context, query string, args ...any) ([]planning.Project, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []planning.Project
	for rows.Next() {
		var (
			p                    planning.Project
			start, end           sql.NullString
			jiraKey, jiraURL     sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(
			&p.ID, &p.Code, &p.Title, &p.Description, &p.Type, &p.Priority, &start, &end,
			&p.Status, &p.Domain, &p.Team, &jiraKey, &jiraURL, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		p.StartDate = parseDate(start)
		p.EndDate = parseDate(end)
		p.JiraProjectKey = jiraKey.String
		p.JiraURL = jiraURL.String
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *queries) CreateProject(ctx context.Context, p planning.Project) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Code, p.Title, p.Description, p.Type, p.Priority, formatDate(p.StartDate), formatDate(p.EndDate),
		p.Status, p.Domain, p.Team, nullString(p.JiraProjectKey), nullString(p.JiraURL),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return constraintError(err, "Project")
	}
	return nil
}

func (s *queries) UpdateProject(ctx context.Context, p planning.Project) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE projects
		SET code = ?, title = ?, description = ?, type = ?, priority = ?, start_date = ?, end_date = ?,
		    status = ?, domain = ?, team = ?, jira_project_key = ?, jira_url = ?, updated_at = ?
		WHERE id = ?`,
		p.Code, p.Title, p.Description, p.Type, p.Priority, formatDate(p.StartDate), formatDate(p.EndDate),
		p.Status, p.Domain, p.Team, nullString(p.JiraProjectKey), nullString(p.JiraURL),
		formatTime(p.UpdatedAt), p.ID,
	)
	if err != nil {
		return constraintError(err, "Project")
	}
	return requireRow(res, "Project", p.ID)
}

func (s *queries) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.q.ExecContext(ctx, "DELETE FROM assignments WHERE project_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete project assignments: %w", err)
	}
	_, err := s.q.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	return err
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func (s *queries) ListDomains(ctx context.Context) ([]planning.Domain, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT id, name, description FROM domains ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []planning.Domain
	for rows.Next() {
		var d planning.Domain
		if err := rows.Scan(&d.ID, &d.Name, &d.Description); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *queries) ListStatuses(ctx context.Context) ([]planning.Status, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT id, name, sort_order FROM statuses ORDER BY sort_order")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []planning.Status
	for rows.Next() {
		var st planning.Status
		if err := rows.Scan(&st.ID, &st.Name, &st.Order); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *queries) ListSkills(ctx context.Context) ([]planning.Skill, error) {
	rows, err := s.q.QueryContext(ctx, "SELECT id, name, description FROM skills ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []planning.Skill
	for rows.Next() {
		var sk planning.Skill
		if err := rows.Scan(&sk.ID, &sk.Name, &sk.Description); err != nil {
			return nil, err
		}
		out = append(out, sk)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q", s)
	}
	return d, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func formatDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(capacity.DateLayout), Valid: true}
}

func parseDate(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(capacity.DateLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func requireRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &planning.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

// constraintError maps SQLite constraint violations onto planning errors.
// "UNIQUE constraint failed: projects.code" becomes a ConflictError on code.
func constraintError(err error, entity string) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code != sqlite3.ErrConstraint {
		return fmt.Errorf("failed to write %s: %w", strings.ToLower(entity), err)
	}
	msg := sqliteErr.Error()
	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		field := "id"
		if i := strings.LastIndex(msg, "."); i >= 0 {
			field = msg[i+1:]
		}
		return &planning.ConflictError{Entity: entity, Field: field}
	case sqlite3.ErrConstraintForeignKey:
		return &planning.NotFoundError{Entity: "Referenced entity"}
	}
	return fmt.Errorf("failed to write %s: %w", strings.ToLower(entity), err)
}
