package web

import (
	"encoding/json"
	"net/http"

	"kcl-stores/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

func statusForCode(code string) int {
	switch code {
	case core.CodeValidation:
		return http.StatusBadRequest
	case core.CodeNotFound:
		return http.StatusNotFound
	case core.CodeForbidden:
		return http.StatusForbidden
	case core.CodeStateConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a core error onto an HTTP response. Persistence failures
// are logged with their cause by the handler layer but answered with a
// generic message; the driver detail stays out of the response body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if de, ok := core.AsDomainError(err); ok {
		msg := de.Message
		if de.Code == core.CodePersistence {
			msg = "internal server error"
		}
		writeErrorMessage(w, r, statusForCode(de.Code), de.Code, msg)
		return
	}
	writeErrorMessage(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

func writeErrorMessage(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{
		Error:     msg,
		Code:      code,
		RequestID: requestIDFrom(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
