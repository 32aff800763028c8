/*
handlers.go - HTTP API handlers for the capacity planner

PURPOSE:
  Exposes the planning service via REST API. Handles HTTP request/response
  and JSON serialization, and delegates every rule to planning.Service.

ENDPOINTS:
  Projects:
    GET    /api/projects               List projects (type, status, domain, priority)
    POST   /api/projects               Create project
    GET    /api/projects/{id}          Project with assignments and metrics
    PUT    /api/projects/{id}          Update project
    DELETE /api/projects/{id}          Delete project and its assignments

  Resources:     see resources.go
  Assignments:   see assignments.go
  Capacity:      see capacity.go
  Reference:     see reference.go
  Jira:          see jira.go

TEAMS:
  The X-User-Team header scopes project listings and is the default team
  of created projects.

REQUEST FLOW:
  1. Parse path ids (UUIDs) and query parameters
  2. Decode the body into a planning input type
  3. Call the service
  4. Serialize a DTO inside the envelope
  5. Map errors (response.go)

SECURITY NOTE:
  No authentication. The team header is trusted as sent.

SEE ALSO:
  - dto.go: Response data structures
  - response.go: Envelope and error mapping
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/warp/capacity-planner/capacity"
	"github.com/warp/capacity-planner/jira"
	"github.com/warp/capacity-planner/planning"
)

// TeamHeader carries the caller's team.
const TeamHeader = "X-User-Team"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// JiraProjectLister lists projects of a Jira site. *jira.Client satisfies it.
type JiraProjectLister interface {
	ListProjects(ctx context.Context, creds jira.Credentials) ([]jira.Project, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of a Handler. Importer, JiraProjects and
// Health are optional; the endpoints that need them answer 503 without.
type Deps struct {
	Service      *planning.Service
	Importer     *jira.Importer
	JiraProjects JiraProjectLister
	Health       Pinger
	Log          *zap.Logger
	// CacheTTL bounds how long reference data is served from memory.
	CacheTTL time.Duration
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service      *planning.Service
	Importer     *jira.Importer
	JiraProjects JiraProjectLister
	Health       Pinger
	Log          *zap.Logger

	reference *cache.Cache
}

// NewHandler creates a handler from d.
func NewHandler(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	ttl := d.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Handler{
		Service:      d.Service,
		Importer:     d.Importer,
		JiraProjects: d.JiraProjects,
		Health:       d.Health,
		Log:          log,
		reference:    cache.New(ttl, 2*ttl),
	}
}

// =============================================================================
// PROJECT HANDLERS
// =============================================================================

// ListProjects returns the projects of the caller's team.
// GET /api/projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := planning.ProjectFilter{
		Type:     q.Get("type"),
		Priority: q.Get("priority"),
		Team:     r.Header.Get(TeamHeader),
	}
	var err error
	if filter.Status, err = queryIntPtr(r, "status"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if filter.Domain, err = queryIntPtr(r, "domain"); err != nil {
		h.writeError(w, r, err)
		return
	}

	projects, err := h.Service.ListProjects(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]ProjectDTO, len(projects))
	for i, p := range projects {
		dtos[i] = toProjectDTO(p)
	}
	writeData(w, http.StatusOK, ProjectListDTO{Projects: dtos, Count: len(dtos)})
}

// GetProject returns a project with its assignments.
// GET /api/projects/{id}
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.Service.GetProject(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toProjectDetailDTO(*view))
}

// CreateProject creates a project.
// POST /api/projects
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var in planning.ProjectInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if in.Team == "" {
		in.Team = r.Header.Get(TeamHeader)
	}

	p, err := h.Service.CreateProject(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/projects/"+p.ID)
	writeData(w, http.StatusCreated, toProjectDTO(*p))
}

// UpdateProject applies a partial update.
// PUT /api/projects/{id}
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var patch planning.ProjectPatch
	if err := decodeJSON(r, &patch); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.Service.UpdateProject(r.Context(), id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toProjectDTO(*p))
}

// DeleteProject removes a project and its assignments.
// DELETE /api/projects/{id}
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Service.DeleteProject(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HEALTH
// =============================================================================

// Healthz pings the store.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health.Ping(r.Context()); err != nil {
			h.Log.Warn("health check failed", zap.Error(err))
			writeFailure(w, http.StatusServiceUnavailable, "Database unavailable", nil)
			return
		}
	}
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// pathID returns the UUID path parameter name.
func pathID(r *http.Request, name string) (string, error) {
	id := chi.URLParam(r, name)
	if _, err := uuid.Parse(id); err != nil {
		return "", capacity.NewValidationError(name, "Invalid "+name+" format")
	}
	return id, nil
}

// queryInt parses an optional integer query parameter; 0 when absent.
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, capacity.NewValidationError(name, name+" must be an integer")
	}
	return n, nil
}

func queryIntPtr(r *http.Request, name string) (*int, error) {
	if r.URL.Query().Get(name) == "" {
		return nil, nil
	}
	n, err := queryInt(r, name)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// queryUUID returns an optional UUID query parameter.
func queryUUID(r *http.Request, name string) (string, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", nil
	}
	if _, err := uuid.Parse(v); err != nil {
		return "", capacity.NewValidationError(name, "Invalid "+name+" format")
	}
	return v, nil
}
