/*
Package sqlite provides a SQLite-backed implementation of planning.Store.

PURPOSE:
  Persists resources, capacities, projects, assignments and the seeded
  reference data. The same statements run on the pooled connection and
  inside a transaction: every query lives on queries (queries.go), which
  wraps either a *sql.DB or a *sql.Tx.

KEY TABLES:
  resources / resource_skills: resources and their skill names
  capacities:                  monthly overrides, unique per (resource, month, year)
  projects:                    projects, unique code
  assignments:                 hours in a daily (date) or monthly (month, year) bucket
  domains, statuses, skills:   reference data, seeded on migrate

BUCKET COLUMNS:
  A CHECK constraint allows either date, or month and year, never both.

DECIMALS:
  Hours are stored as TEXT and summed in Go with shopspring/decimal, so
  committed totals never pass through floating point.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety of single operations. The planning
  service's read-check-write sequence spans several calls and is not
  serialised here.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/planner.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := planning.NewService(store, logger, metrics)

MIGRATION:
  Schema is auto-migrated on New(). Seeding is idempotent.

SEE ALSO:
  - planning/store.go: Interface definitions
  - planning/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/warp/capacity-planner/capacity"
	"github.com/warp/capacity-planner/planning"
)

// Store implements planning.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ planning.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection, for health endpoints.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) q() *queries { return &queries{q: s.db} }

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes fn within a database transaction. The planning.Store
// passed to fn must not be used after fn returns.
func (s *Store) WithTx(ctx context.Context, fn func(tx planning.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withTxLocked(ctx, fn)
}

func (s *Store) withTxLocked(ctx context.Context, fn func(tx planning.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// =============================================================================
// RESOURCES
// =============================================================================

func (s *Store) GetResource(ctx context.Context, id string) (*planning.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().GetResource(ctx, id)
}

func (s *Store) GetResourceByCode(ctx context.Context, code string) (*planning.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().GetResourceByCode(ctx, code)
}

func (s *Store) ListResources(ctx context.Context, filter planning.ResourceFilter) ([]planning.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListResources(ctx, filter)
}

// CreateResource writes the resource row and its skills atomically.
func (s *Store) CreateResource(ctx context.Context, r planning.Resource) error {
	return s.WithTx(ctx, func(tx planning.Store) error {
		return tx.CreateResource(ctx, r)
	})
}

// UpdateResource replaces the resource row and its skills atomically.
func (s *Store) UpdateResource(ctx context.Context, r planning.Resource) error {
	return s.WithTx(ctx, func(tx planning.Store) error {
		return tx.UpdateResource(ctx, r)
	})
}

// =============================================================================
// CAPACITIES
// =============================================================================

func (s *Store) FindCapacity(ctx context.Context, resourceID string, month capacity.Monthly) (*planning.Capacity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().FindCapacity(ctx, resourceID, month)
}

func (s *Store) GetCapacity(ctx context.Context, id string) (*planning.Capacity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().GetCapacity(ctx, id)
}

func (s *Store) ListCapacities(ctx context.Context, filter planning.CapacityFilter, page planning.Page) ([]planning.Capacity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListCapacities(ctx, filter, page)
}

func (s *Store) CountCapacities(ctx context.Context, filter planning.CapacityFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().CountCapacities(ctx, filter)
}

func (s *Store) UpsertCapacity(ctx context.Context, c planning.Capacity) (planning.Capacity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stored planning.Capacity
	err := s.withTxLocked(ctx, func(tx planning.Store) error {
		var err error
		stored, err = tx.UpsertCapacity(ctx, c)
		return err
	})
	return stored, err
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

func (s *Store) GetAssignment(ctx context.Context, id string) (*planning.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().GetAssignment(ctx, id)
}

func (s *Store) ListAssignments(ctx context.Context, filter planning.AssignmentFilter) ([]planning.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListAssignments(ctx, filter)
}

func (s *Store) SumCommittedHours(ctx context.Context, resourceID string, bucket capacity.Bucket, excludeID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().SumCommittedHours(ctx, resourceID, bucket, excludeID)
}

func (s *Store) CreateAssignment(ctx context.Context, a planning.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().CreateAssignment(ctx, a)
}

func (s *Store) UpdateAssignment(ctx context.Context, a planning.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().UpdateAssignment(ctx, a)
}

func (s *Store) DeleteAssignment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().DeleteAssignment(ctx, id)
}

func (s *Store) FindAssignmentByJiraKey(ctx context.Context, projectID, issueKey string) (*planning.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().FindAssignmentByJiraKey(ctx, projectID, issueKey)
}

// =============================================================================
// PROJECTS
// =============================================================================

func (s *Store) GetProject(ctx context.Context, id string) (*planning.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().GetProject(ctx, id)
}

func (s *Store) GetProjectByCode(ctx context.Context, code string) (*planning.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().GetProjectByCode(ctx, code)
}

func (s *Store) FindProjectByCodeAndTeam(ctx context.Context, code, team string) (*planning.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().FindProjectByCodeAndTeam(ctx, code, team)
}

func (s *Store) ListProjects(ctx context.Context, filter planning.ProjectFilter) ([]planning.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListProjects(ctx, filter)
}

func (s *Store) ListJiraLinkedProjects(ctx context.Context) ([]planning.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListJiraLinkedProjects(ctx)
}

func (s *Store) CreateProject(ctx context.Context, p planning.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().CreateProject(ctx, p)
}

func (s *Store) UpdateProject(ctx context.Context, p planning.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q().UpdateProject(ctx, p)
}

// DeleteProject removes the project and its assignments atomically.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(tx planning.Store) error {
		return tx.DeleteProject(ctx, id)
	})
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func (s *Store) ListDomains(ctx context.Context) ([]planning.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListDomains(ctx)
}

func (s *Store) ListStatuses(ctx context.Context) ([]planning.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListStatuses(ctx)
}

func (s *Store) ListSkills(ctx context.Context) ([]planning.Skill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q().ListSkills(ctx)
}
