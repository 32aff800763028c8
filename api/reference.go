package api

import (
	"context"
	"net/http"

	"github.com/patrickmn/go-cache"
)

// =============================================================================
// REFERENCE DATA - seeded domains, statuses and skills, cached per TTL
// =============================================================================

const (
	cacheDomains  = "domains"
	cacheStatuses = "statuses"
	cacheSkills   = "skills"
)

// cached returns the value under key, loading and storing it on a miss.
func cached[T any](ctx context.Context, c *cache.Cache, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	if v, ok := c.Get(key); ok {
		return v.([]T), nil
	}
	items, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.Set(key, items, cache.DefaultExpiration)
	return items, nil
}

// ListDomains GET /api/domains
func (h *Handler) ListDomains(w http.ResponseWriter, r *http.Request) {
	domains, err := cached(r.Context(), h.reference, cacheDomains, h.Service.ListDomains)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]DomainDTO, len(domains))
	for i, d := range domains {
		dtos[i] = DomainDTO{ID: d.ID, Name: d.Name, Description: d.Description}
	}
	writeData(w, http.StatusOK, dtos)
}

// ListStatuses GET /api/statuses
func (h *Handler) ListStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := cached(r.Context(), h.reference, cacheStatuses, h.Service.ListStatuses)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]StatusDTO, len(statuses))
	for i, s := range statuses {
		dtos[i] = StatusDTO{ID: s.ID, Name: s.Name, Order: s.Order}
	}
	writeData(w, http.StatusOK, dtos)
}

// ListSkills GET /api/skills
func (h *Handler) ListSkills(w http.ResponseWriter, r *http.Request) {
	skills, err := cached(r.Context(), h.reference, cacheSkills, h.Service.ListSkills)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]SkillDTO, len(skills))
	for i, s := range skills {
		dtos[i] = SkillDTO{ID: s.ID, Name: s.Name, Description: s.Description}
	}
	writeData(w, http.StatusOK, dtos)
}
