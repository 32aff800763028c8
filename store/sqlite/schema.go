package sqlite

import (
	"context"
	"fmt"

	"github.com/warp/capacity-planner/planning"
)

const schema = `
	-- Resources (never deleted, only deactivated)
	CREATE TABLE IF NOT EXISTS resources (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT,
		default_capacity TEXT NOT NULL DEFAULT '160',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		team TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_resources_code ON resources(code);

	CREATE TABLE IF NOT EXISTS resource_skills (
		resource_id TEXT NOT NULL REFERENCES resources(id) ON DELETE CASCADE,
		skill_name TEXT NOT NULL,
		PRIMARY KEY (resource_id, skill_name)
	);

	-- Capacities (monthly overrides of default_capacity)
	CREATE TABLE IF NOT EXISTS capacities (
		id TEXT PRIMARY KEY,
		resource_id TEXT NOT NULL REFERENCES resources(id),
		month INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
		year INTEGER NOT NULL CHECK (year BETWEEN 2000 AND 2100),
		total_hours TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_capacities_resource_month
		ON capacities(resource_id, month, year);

	-- Projects
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL DEFAULT '',
		start_date TEXT,
		end_date TEXT,
		status INTEGER NOT NULL DEFAULT 0,
		domain INTEGER NOT NULL DEFAULT 0,
		team TEXT NOT NULL DEFAULT '',
		jira_project_key TEXT,
		jira_url TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_code ON projects(code);
	CREATE INDEX IF NOT EXISTS idx_projects_code_team ON projects(code, team);

	-- Assignments: exactly one of date, or (month, year)
	CREATE TABLE IF NOT EXISTS assignments (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		resource_id TEXT REFERENCES resources(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		skill_name TEXT NOT NULL DEFAULT '',
		team TEXT NOT NULL DEFAULT '',
		date TEXT,
		month INTEGER,
		year INTEGER,
		hours TEXT NOT NULL CHECK (CAST(hours AS REAL) > 0),
		jira_issue_key TEXT,
		jira_issue_id TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (
			(date IS NOT NULL AND month IS NULL AND year IS NULL) OR
			(date IS NULL AND month IS NOT NULL AND year IS NOT NULL)
		)
	);

	-- Committed-hours lookups (hot path of every admission)
	CREATE INDEX IF NOT EXISTS idx_assignments_resource_date
		ON assignments(resource_id, date) WHERE date IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_assignments_resource_month
		ON assignments(resource_id, year, month) WHERE date IS NULL;
	CREATE INDEX IF NOT EXISTS idx_assignments_project
		ON assignments(project_id);
	CREATE INDEX IF NOT EXISTS idx_assignments_jira
		ON assignments(project_id, jira_issue_key) WHERE jira_issue_key IS NOT NULL;

	-- Reference data
	CREATE TABLE IF NOT EXISTS domains (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS statuses (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		sort_order INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS skills (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT ''
	);
`

// migrate creates the database schema and seeds reference data.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	return s.seed(ctx)
}

// seed inserts the default reference rows. Existing rows are left alone.
func (s *Store) seed(ctx context.Context) error {
	for i, d := range planning.DefaultDomains {
		if _, err := s.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO domains (id, name, description) VALUES (?, ?, ?)",
			i+1, d.Name, d.Description,
		); err != nil {
			return fmt.Errorf("seed domain %q: %w", d.Name, err)
		}
	}
	for i, st := range planning.DefaultStatuses {
		if _, err := s.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO statuses (id, name, sort_order) VALUES (?, ?, ?)",
			i+1, st.Name, st.Order,
		); err != nil {
			return fmt.Errorf("seed status %q: %w", st.Name, err)
		}
	}
	for i, sk := range planning.DefaultSkills {
		if _, err := s.db.ExecContext(ctx,
			"INSERT OR IGNORE INTO skills (id, name, description) VALUES (?, ?, ?)",
			i+1, sk.Name, sk.Description,
		); err != nil {
			return fmt.Errorf("seed skill %q: %w", sk.Name, err)
		}
	}
	return nil
}
