package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"gemini-batch-ocr/internal/domain"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEmptyPool):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrBatchInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrTooManyImages),
		errors.Is(err, domain.ErrNoImages),
		errors.Is(err, domain.ErrUnsupportedImage):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRateLimited),
		errors.Is(err, domain.ErrCredentialsExhausted):
		return http.StatusTooManyRequests
	default:
		var re *domain.RemoteError
		if errors.As(err, &re) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Internal errors are not echoed.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logFor(r).Error().Err(err).Msg("request failed")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
