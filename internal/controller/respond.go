package controller

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	appErrors "github.com/michaelschiller-mdm-solutions/content-scheduler/internal/errors"
)

// envelope is the JSON shape of every response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func respond(w http.ResponseWriter, status int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: true, Data: data, Message: message})
}

// respondError maps domain errors to status codes: malformed input and
// invalid-state operations are the client's fault, everything else is ours.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if appErrors.IsValidation(err) || errors.Is(err, appErrors.ErrNotFoundOrInvalidState) || errors.Is(err, appErrors.ErrInvalidTransition) {
		status = http.StatusBadRequest
	}
	var blocked *appErrors.ConflictBlockedError
	if errors.As(err, &blocked) {
		status = http.StatusConflict
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: false, Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, appErrors.NewValidationError("invalid request body: %v", err))
		return false
	}
	return true
}

// decodeOptionalBody tolerates an empty or missing body.
func decodeOptionalBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
