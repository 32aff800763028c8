package api

import (
	"net/http"

	"github.com/warp/capacity-planner/planning"
)

// =============================================================================
// CAPACITY HANDLERS
//   GET /api/capacity       Paginated list (resourceId, month, year, page, limit)
//   PUT /api/capacity       Upsert the budget of (resourceId, month, year)
//   GET /api/capacity/{id}  Detail with monthly assignments
// =============================================================================

func (h *Handler) ListCapacities(w http.ResponseWriter, r *http.Request) {
	var (
		filter planning.CapacityFilter
		page   planning.Page
		err    error
	)
	if filter.ResourceID, err = queryUUID(r, "resourceId"); err != nil {
		h.writeError(w, r, err)
		return
	}
	params := []struct {
		name string
		dst  *int
	}{
		{"month", &filter.Month},
		{"year", &filter.Year},
		{"page", &page.Page},
		{"limit", &page.Limit},
	}
	for _, p := range params {
		if *p.dst, err = queryInt(r, p.name); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	res, err := h.Service.ListCapacities(r.Context(), filter, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]CapacityViewDTO, len(res.Items))
	for i, v := range res.Items {
		dtos[i] = toCapacityViewDTO(v)
	}
	writeData(w, http.StatusOK, CapacityListDTO{
		Capacities: dtos,
		Pagination: PaginationDTO{Page: res.Page, Limit: res.Limit, Total: res.Total, TotalPages: res.TotalPages},
	})
}

func (h *Handler) GetCapacity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.Service.GetCapacity(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toCapacityViewDTO(*view))
}

// SetCapacity rejects a total below the hours already committed.
func (h *Handler) SetCapacity(w http.ResponseWriter, r *http.Request) {
	var in planning.CapacityInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.Service.SetCapacity(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toCapacityViewDTO(*view))
}
