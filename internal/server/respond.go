package server

import (
	"encoding/json"
	"net/http"

	"schemap/internal/errs"
)

// apiResponse is the envelope for every JSON response.
type apiResponse struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Status: "success", Data: data})
}

// writeError maps the error's kind to an HTTP status. Internal detail stays
// in the logs; the client sees the error message only.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errs.IsNotFound(err):
		status = http.StatusNotFound
	case errs.IsInvalidInput(err):
		status = http.StatusBadRequest
	case errs.IsPermissionDenied(err), errs.IsCatalogAccess(err):
		status = http.StatusForbidden
	case errs.IsTimeout(err):
		status = http.StatusGatewayTimeout
	case errs.IsConnectionFailed(err):
		status = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Status: "error", Error: err.Error()})
}
