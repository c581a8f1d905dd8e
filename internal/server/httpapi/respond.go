package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/patientportal/internal/common"
)

const maxBodyBytes = 1 << 20

type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, body envelope) {
	if body == nil {
		body = envelope{}
	}
	body["success"] = true
	writeJSON(w, http.StatusOK, body)
}

func writeFailure(w http.ResponseWriter, status int, msg string, extra envelope) {
	body := envelope{"success": false, "error": msg}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// statusFor maps service errors onto HTTP status codes and client-safe
// messages. Only invalid-input errors echo their text.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrorInvalidInput):
		msg := strings.TrimPrefix(err.Error(), common.ErrorInvalidInput.Error()+": ")
		return http.StatusBadRequest, msg
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, common.ErrorUpstream):
		return http.StatusBadGateway, "the assistant is unavailable, please try again"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		loggerFrom(r.Context(), h.logger).Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeFailure(w, status, msg, nil)
}

// decodeJSON reads a JSON body of at most 1 MiB into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body", common.ErrorInvalidInput)
	}
	return nil
}
