package api

import (
	"net/http"
	"strconv"

	"github.com/warp/capacity-planner/capacity"
	"github.com/warp/capacity-planner/planning"
)

// =============================================================================
// RESOURCE HANDLERS
//   GET  /api/resources                    List (active, skill)
//   POST /api/resources                    Create
//   GET  /api/resources/{id}               Detail with assignments and metrics
//   PUT  /api/resources/{id}               Update (deactivate with active=false)
//   GET  /api/resources/{id}/availability  Remaining hours (date | month&year)
// =============================================================================

func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	filter := planning.ResourceFilter{Skill: r.URL.Query().Get("skill")}
	if v := r.URL.Query().Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, r, capacity.NewValidationError("active", "active must be true or false"))
			return
		}
		filter.Active = &active
	}

	resources, err := h.Service.ListResources(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	dtos := make([]ResourceDTO, len(resources))
	for i, res := range resources {
		dtos[i] = toResourceDTO(res)
	}
	writeData(w, http.StatusOK, ResourceListDTO{Resources: dtos, Count: len(dtos)})
}

func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.Service.GetResource(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toResourceDetailDTO(*view))
}

func (h *Handler) CreateResource(w http.ResponseWriter, r *http.Request) {
	var in planning.ResourceInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Service.CreateResource(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/resources/"+res.ID)
	writeData(w, http.StatusCreated, toResourceDTO(*res))
}

func (h *Handler) UpdateResource(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var patch planning.ResourcePatch
	if err := decodeJSON(r, &patch); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.Service.UpdateResource(r.Context(), id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toResourceDTO(*res))
}

// GetAvailability reports the hours a resource has left in a bucket.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	month, err := queryInt(r, "month")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	year, err := queryInt(r, "year")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	bucket, err := planning.SelectBucket(r.URL.Query().Get("date"), month, year)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	available, err := h.Service.Available(r.Context(), id, bucket)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, AvailabilityDTO{
		ResourceID:     id,
		Kind:           string(bucket.Kind()),
		Bucket:         bucket.String(),
		AvailableHours: available,
	})
}
