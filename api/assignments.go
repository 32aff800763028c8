package api

import (
	"net/http"

	"github.com/warp/capacity-planner/planning"
)

// =============================================================================
// ASSIGNMENT HANDLERS
//   GET    /api/assignments       List (projectId, resourceId, month, year)
//   POST   /api/assignments       Create, subject to capacity admission
//   GET    /api/assignments/{id}
//   PUT    /api/assignments/{id}  Update, re-admitted when hours/bucket/resource/skill change
//   DELETE /api/assignments/{id}
// =============================================================================

func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	var (
		filter planning.AssignmentFilter
		err    error
	)
	if filter.ProjectID, err = queryUUID(r, "projectId"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if filter.ResourceID, err = queryUUID(r, "resourceId"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if filter.Month, err = queryInt(r, "month"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if filter.Year, err = queryInt(r, "year"); err != nil {
		h.writeError(w, r, err)
		return
	}

	assignments, err := h.Service.ListAssignments(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, AssignmentListDTO{Assignments: toAssignmentDTOs(assignments), Count: len(assignments)})
}

func (h *Handler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.Service.GetAssignment(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toAssignmentDTO(*a))
}

func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var in planning.AssignmentInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.Service.CreateAssignment(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/assignments/"+a.ID)
	writeData(w, http.StatusCreated, toAssignmentDTO(*a))
}

func (h *Handler) UpdateAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var patch planning.AssignmentPatch
	if err := decodeJSON(r, &patch); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.Service.UpdateAssignment(r.Context(), id, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toAssignmentDTO(*a))
}

func (h *Handler) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Service.DeleteAssignment(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
