package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"stock-ledger/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
	Available *int   `json:"available,omitempty"`
	Requested *int   `json:"requested,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorResponse(w, status, errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	})
}

func writeErrorResponse(w http.ResponseWriter, status int, resp errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeServiceError maps a ledger error to its HTTP status. Shortfalls carry the
// available and requested quantities so clients can offer a partial allocation.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.Kind(err)
	resp := errorResponse{
		Error:     err.Error(),
		Code:      kind,
		RequestID: requestIDFromContext(r.Context()),
	}

	status := http.StatusInternalServerError
	switch kind {
	case core.KindInsufficientStock:
		var insufficient *core.InsufficientStockError
		if errors.As(err, &insufficient) {
			resp.Available = &insufficient.Available
			resp.Requested = &insufficient.Requested
		}
		status = http.StatusBadRequest
	case core.KindInvalidArgument:
		status = http.StatusBadRequest
	case core.KindNotFound:
		status = http.StatusNotFound
	case core.KindCanceled:
		status = http.StatusRequestTimeout
	case core.KindConfiguration:
		status = http.StatusInternalServerError
	default:
		resp.Error = "internal server error"
	}
	writeErrorResponse(w, status, resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
