/*
response.go - JSON envelope and error mapping

PURPOSE:
  Every endpoint answers with the same envelope so clients handle one
  shape:

    {"success": true,  "data": ...}
    {"success": false, "error": {"message": ..., "statusCode": ..., "details": ...}}

ERROR MAPPING:
  - 400: capacity.ValidationError (details = field list)
  - 404: planning.NotFoundError
  - 409: planning.ConflictError (details = {"field": ...})
  - 422: business rules (details = {"rule": CODE, ...breakdown})
  - 502: jira.APIError
  - 500: anything else, logged

SEE ALSO:
  - capacity/errors.go: Validation and rule taxonomy
  - planning/errors.go: NotFound and Conflict
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/warp/capacity-planner/capacity"
	"github.com/warp/capacity-planner/jira"
	"github.com/warp/capacity-planner/planning"
)

// Envelope wraps every response body.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	Details    any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, message string, details any) {
	writeJSON(w, status, Envelope{Error: &ErrorBody{Message: message, StatusCode: status, Details: details}})
}

// writeError maps err onto a status code. Unclassified errors are logged
// and reported without their text.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *capacity.ValidationError
		notFound   *planning.NotFoundError
		conflict   *planning.ConflictError
		jiraErr    *jira.APIError
	)
	switch {
	case errors.As(err, &validation):
		writeFailure(w, http.StatusBadRequest, validation.Message, validation.Fields)
	case errors.As(err, &notFound):
		writeFailure(w, http.StatusNotFound, notFound.Error(), nil)
	case errors.As(err, &conflict):
		writeFailure(w, http.StatusConflict, conflict.Error(), map[string]string{"field": conflict.Field})
	case capacity.IsBusinessRule(err):
		writeFailure(w, http.StatusUnprocessableEntity, err.Error(), ruleDetails(err))
	case errors.As(err, &jiraErr):
		writeFailure(w, http.StatusBadGateway, jiraErr.Error(), map[string]any{"status": jiraErr.StatusCode, "body": jiraErr.Body})
	default:
		h.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeFailure(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}

func ruleDetails(err error) map[string]any {
	details := map[string]any{"rule": capacity.RuleOf(err)}
	var b *capacity.Breakdown
	var daily *capacity.DailyCapacityExceededError
	var monthly *capacity.MonthlyCapacityExceededError
	switch {
	case errors.As(err, &daily):
		b = &daily.Breakdown
	case errors.As(err, &monthly):
		b = &monthly.Breakdown
	}
	if b != nil {
		details["budget"] = b.Budget
		details["assigned"] = b.Assigned
		details["requested"] = b.Requested
		details["available"] = b.Available
	}
	return details
}

// decodeJSON reads the request body into v.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return capacity.NewValidationError("body", "Request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return capacity.NewValidationError("body", "Invalid request body")
	}
	return nil
}
