package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"

	"ctsmirror/internal/domain"
	"ctsmirror/internal/poll"
	"ctsmirror/internal/secrets"
	"ctsmirror/internal/store"
)

type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}

// writeErr maps domain errors onto status codes.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *domain.ValidationError
		nf *domain.NotFoundError
		pe *domain.ParseError
	)
	switch {
	case errors.As(err, &ve):
		WriteError(w, r, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.As(err, &pe):
		WriteError(w, r, http.StatusBadRequest, "parse_error", err.Error())
	case errors.As(err, &nf):
		WriteError(w, r, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, poll.ErrRunInProgress):
		WriteError(w, r, http.StatusConflict, "run_in_progress", err.Error())
	case errors.Is(err, secrets.ErrNoCredentials):
		WriteError(w, r, http.StatusPreconditionFailed, "no_credentials", err.Error())
	case errors.Is(err, store.ErrLocked):
		WriteError(w, r, http.StatusServiceUnavailable, "locked", err.Error())
	default:
		WriteError(w, r, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
