package feeds

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/5g-empower/empower-runtime-sub001/controller"
	"github.com/5g-empower/empower-runtime-sub001/errors"
)

// MaxDocumentSize bounds a single CSV upload.
const MaxDocumentSize = 64 << 10

// Handler serves the feed ingest endpoint.
type Handler struct {
	ctrl   *controller.Controller
	logger *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the parent logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler builds the ingest router.
func NewHandler(ctrl *controller.Controller, opts ...Option) http.Handler {
	h := &Handler{ctrl: ctrl, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "feeds")

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))
	r.Put("/v2/feeds/{id}.csv", h.update)
	return r
}

// Reading is one record of an uploaded document.
type Reading struct {
	Datastream string
	Value      float64
}

// Parse reads (datastream,current_value) records. Blank lines are skipped.
func Parse(r io.Reader) ([]Reading, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true
	var out []Reading
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, errors.Invalidf(errors.ErrParsingFailed, "csv: %v", err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, errors.Invalidf(errors.ErrParsingFailed, "datastream %q value %q", rec[0], rec[1])
		}
		out = append(out, Reading{Datastream: strings.TrimSpace(rec[0]), Value: v})
	}
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		h.fail(w, r, errors.Invalidf(errors.ErrInvalidData, "feed id %q", chi.URLParam(r, "id")))
		return
	}
	readings, err := Parse(http.MaxBytesReader(w, r.Body, MaxDocumentSize))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if len(readings) == 0 {
		h.fail(w, r, errors.Invalidf(errors.ErrMissingParam, "empty document"))
		return
	}
	last := readings[len(readings)-1]
	if err := h.ctrl.UpdateFeeds(r.Context(), map[int]float64{id: last.Value}); err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Debug("Feed updated", "feed", id, "datastream", last.Datastream, "value", last.Value)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, errors.ErrNotFound):
		code = http.StatusNotFound
	case errors.IsInvalid(err):
		code = http.StatusBadRequest
	}
	if code == http.StatusInternalServerError {
		h.logger.Error("Feed update failed", "path", r.URL.Path, "error", err)
	}
	http.Error(w, fmt.Sprintf("%d %s: %v", code, http.StatusText(code), err), code)
}
