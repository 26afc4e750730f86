package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/5g-empower/empower-runtime-sub001/errors"
)

// Error is the body of every failed request.
type Error struct {
	Code    int    `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}

// validation failures that are not classified at their origin
var badRequest = []error{
	errors.ErrAlreadyExists,
	errors.ErrInvalidData,
	errors.ErrInvalidAddress,
	errors.ErrInvalidDSCP,
	errors.ErrDefaultSlice,
	errors.ErrDuplicateBSSID,
	errors.ErrInvalidState,
	errors.ErrMissingParam,
	errors.ErrUnknownModule,
	errors.ErrUnknownApp,
	errors.ErrDeviceOffline,
	errors.ErrTenantNotMember,
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, errors.ErrNotFound) && !errors.IsInvalid(err):
		return http.StatusNotFound
	case errors.IsInvalid(err):
		return http.StatusBadRequest
	}
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			"method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "error", err)
		msg = "internal server error"
	} else {
		h.logger.Debug("Request rejected", "path", r.URL.Path, "status", code, "error", err)
	}
	if code == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="empower"`)
	}
	h.writeStatus(w, r, code, msg)
}

func (h *Handler) writeStatus(w http.ResponseWriter, _ *http.Request, code int, msg string) {
	writeValue(w, code, Error{Code: code, Reason: http.StatusText(code), Message: msg})
}

func writeValue(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		code = http.StatusInternalServerError
		body = []byte(`{"code":500,"reason":"Internal Server Error"}`)
	}
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func created(w http.ResponseWriter, r *http.Request, location string, v any) {
	w.Header().Set("Location", location)
	if v == nil {
		w.WriteHeader(http.StatusCreated)
		return
	}
	writeValue(w, http.StatusCreated, v)
}

func noContent(w http.ResponseWriter) { w.WriteHeader(http.StatusNoContent) }

// decode reads a JSON body of at most MaxRequestSize bytes into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestSize)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return errors.Invalidf(errors.ErrInvalidData, "request body exceeds %d bytes", MaxRequestSize)
		case errors.Is(err, io.EOF):
			return errors.Invalidf(errors.ErrInvalidData, "empty request body")
		}
		return errors.Invalidf(errors.ErrInvalidData, "malformed request body: %s", strings.TrimPrefix(err.Error(), "json: "))
	}
	return nil
}

// decodeRaw reads a body that may be empty, as module and app parameters.
func decodeRaw(w http.ResponseWriter, r *http.Request) (json.RawMessage, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestSize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, errors.Invalidf(errors.ErrInvalidData, "read request body: %v", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid(body) {
		return nil, errors.Invalidf(errors.ErrInvalidData, "malformed request body")
	}
	return body, nil
}

func path(format string, args ...any) string {
	return Prefix + fmt.Sprintf(format, args...)
}

func notFound(what string, key any) error {
	return fmt.Errorf("%s %v: %w", what, key, errors.ErrNotFound)
}
