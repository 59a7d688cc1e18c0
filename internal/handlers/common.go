package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/agentpay/backoffice/internal/models"
	"github.com/agentpay/backoffice/internal/services"
)

// decodeJSON reads one strict JSON object into dst: body capped at 1 MB,
// unknown fields rejected, trailing content rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("request body must only contain a single JSON object")
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleServiceError maps service-layer errors onto HTTP statuses. Unknown
// errors become an opaque 500.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case services.IsValidationError(err):
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, services.ErrInvalidCredentials):
		services.SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
	case errors.Is(err, services.ErrNotBoundToAgent):
		services.SendErrorResponse(w, "User is not bound to an agent", http.StatusForbidden, nil)
	case errors.Is(err, services.ErrNotFound):
		services.SendErrorResponse(w, "Not found", http.StatusNotFound, nil)
	case errors.Is(err, services.ErrConflict):
		services.SendErrorResponse(w, "Duplicate operation", http.StatusConflict, nil)
	default:
		services.SendErrorResponse(w, "An internal error occurred", http.StatusInternalServerError, nil)
	}
}

// outcomeStatus maps a workflow outcome to a status code. Skipped means the
// precondition failed, reported as a conflict; everything else is success.
func outcomeStatus(out models.Outcome) int {
	switch out.Code {
	case models.OutcomeCreated:
		return http.StatusCreated
	case models.OutcomeSkipped:
		return http.StatusConflict
	default:
		return http.StatusOK
	}
}

func callerID(r *http.Request) string {
	id, _ := r.Context().Value("userID").(string)
	return id
}

func callerRole(r *http.Request) models.Role {
	role, _ := r.Context().Value("userRole").(models.Role)
	return role
}
