package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/wolfeidau/storefront/internal/apperr"
	"github.com/wolfeidau/storefront/internal/store"
)

const maxBodyBytes = 1 << 20

// problem is an RFC 7807 problem details document.
type problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// errBadRequest marks a body that could not be decoded at all.
var errBadRequest = errors.New("bad request")

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeProblem renders err as a problem document. Internal errors never leak their message.
func writeProblem(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := log.Ctx(r.Context())

	detail := apperr.Detail(err)
	switch {
	case errors.Is(err, store.ErrIsolationViolation), errors.Is(err, store.ErrTenantNotBound):
		logger.Error().Err(err).Msg("Tenant context missing for tenant-scoped write")
		detail = ""
	case status == http.StatusInternalServerError:
		logger.Error().Err(err).Msg("Request failed")
		detail = ""
	case status == http.StatusBadRequest:
		detail = err.Error()
	case status == http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", `Bearer`)
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem{
		Type:     "about:blank",
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	if status == 0 {
		status = http.StatusOK
	}
	if body == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

// decodeJSON reads a JSON request body into v, rejecting unknown fields and trailing data.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: invalid request body: trailing data", errBadRequest)
	}
	return nil
}
