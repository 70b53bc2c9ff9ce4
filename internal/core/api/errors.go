package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/meritkeeper/meritkeeper/internal/types"
)

// Sentinel-to-status mapping:
// validation and oversized payloads are the caller's fault (400),
// missing resources are 404, authoring defects in a stored schema are 422,
// everything else (storage, pipeline) is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrValidation), errors.Is(err, types.ErrPayloadTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrConfiguration), errors.Is(err, types.ErrChainTooLong):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
