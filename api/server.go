/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the frontend, X-User-Team allowed

ROUTE GROUPS:
  /api/projects/*       Projects
  /api/resources/*      Resources and availability
  /api/assignments/*    Assignments (capacity-checked)
  /api/capacity/*       Monthly capacity overrides
  /api/domains|statuses|skills  Reference data
  /api/jira/*           Jira import and sync
  /healthz              Store ping
  /metrics              Prometheus exposition

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultAllowedOrigins are used when RouterOptions.AllowedOrigins is empty.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

type RouterOptions struct {
	AllowedOrigins []string
	// Metrics serves /metrics when set, typically promhttp.HandlerFor.
	Metrics http.Handler
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", TeamHeader},
		ExposedHeaders:   []string{"Location"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Healthz)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)
			r.Post("/", h.CreateProject)
			r.Get("/{id}", h.GetProject)
			r.Put("/{id}", h.UpdateProject)
			r.Delete("/{id}", h.DeleteProject)
		})

		r.Route("/resources", func(r chi.Router) {
			r.Get("/", h.ListResources)
			r.Post("/", h.CreateResource)
			r.Get("/{id}", h.GetResource)
			r.Put("/{id}", h.UpdateResource)
			r.Get("/{id}/availability", h.GetAvailability)
		})

		r.Route("/assignments", func(r chi.Router) {
			r.Get("/", h.ListAssignments)
			r.Post("/", h.CreateAssignment)
			r.Get("/{id}", h.GetAssignment)
			r.Put("/{id}", h.UpdateAssignment)
			r.Delete("/{id}", h.DeleteAssignment)
		})

		r.Route("/capacity", func(r chi.Router) {
			r.Get("/", h.ListCapacities)
			r.Put("/", h.SetCapacity)
			r.Get("/{id}", h.GetCapacity)
		})

		r.Get("/domains", h.ListDomains)
		r.Get("/statuses", h.ListStatuses)
		r.Get("/skills", h.ListSkills)

		r.Route("/jira", func(r chi.Router) {
			r.Get("/projects", h.ListJiraProjects)
			r.Post("/import", h.ImportJira)
			r.Post("/sync/{projectId}", h.SyncJira)
		})
	})

	return r
}
