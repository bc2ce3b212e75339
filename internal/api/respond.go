package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"task-calendar/internal/logging"
	"task-calendar/internal/repository"
	"task-calendar/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Logger.Errorf("Event ID: HTTP_ENCODE_FAILED, Description: %v", err)
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}

func writeMessage(w http.ResponseWriter, status int, success bool, message string) {
	writeJSON(w, status, map[string]any{"success": success, "message": message})
}

// writeError maps service errors onto status codes. Ownership mismatches are
// plain 404s, indistinguishable from missing records.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if problems, ok := service.AsValidation(err); ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "validation failed",
			"errors":  problems,
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrNotFound):
		writeMessage(w, http.StatusNotFound, false, "resource not found")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, false, err.Error())
	default:
		var storeErr *repository.StoreError
		if errors.As(err, &storeErr) {
			logging.Logger.Errorf("Event ID: STORE_ERROR, Description: %s %s failed in %s: %v", r.Method, r.URL.Path, storeErr.Op, storeErr.Err)
		} else {
			logging.Logger.Errorf("Event ID: INTERNAL_ERROR, Description: %s %s: %v", r.Method, r.URL.Path, err)
		}
		writeMessage(w, http.StatusInternalServerError, false, "internal server error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return service.ValidationErrors{{Field: "body", Message: fmt.Sprintf("invalid JSON: %v", err)}}
	}
	return nil
}
