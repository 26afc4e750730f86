package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/5g-empower/empower-runtime-sub001/controller"
	"github.com/5g-empower/empower-runtime-sub001/health"
	"github.com/5g-empower/empower-runtime-sub001/metric"
	"github.com/5g-empower/empower-runtime-sub001/persistence"
	"github.com/5g-empower/empower-runtime-sub001/pkg/cache"
)

// Prefix is the mount point of every route.
const Prefix = "/api/v1"

// MaxRequestSize bounds request bodies.
const MaxRequestSize = 1 << 20

// HealthFunc reports the health of the whole controller.
type HealthFunc func(ctx context.Context) health.Status

// Handler is the REST surface of one controller.
type Handler struct {
	ctrl        *controller.Controller
	logger      *slog.Logger
	corsOrigins []string
	health      HealthFunc
	timeout     time.Duration

	credentialTTL time.Duration
	metrics       *metric.MetricsRegistry
	credentials   *cache.Cache[*persistence.Account]
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

// WithCORSOrigins enables CORS for origins. "*" allows any origin.
func WithCORSOrigins(origins []string) Option {
	return func(h *Handler) { h.corsOrigins = origins }
}

// WithHealth replaces the controller probe served at /health.
func WithHealth(fn HealthFunc) Option {
	return func(h *Handler) { h.health = fn }
}

// WithTimeout bounds the time a request may wait for the event loop.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

// WithCredentialTTL sets how long verified credentials are remembered. Zero
// checks the password hash on every request.
func WithCredentialTTL(d time.Duration) Option {
	return func(h *Handler) { h.credentialTTL = d }
}

// WithMetrics exports the credential cache counters.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(h *Handler) { h.metrics = registry }
}

// NewHandler builds the router.
func NewHandler(ctrl *controller.Controller, opts ...Option) http.Handler {
	h := &Handler{
		ctrl:          ctrl,
		logger:        slog.Default(),
		health:        ctrl.Health,
		timeout:       10 * time.Second,
		credentialTTL: time.Minute,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "api")
	if h.credentialTTL > 0 {
		c, err := cache.New[*persistence.Account](256, h.credentialTTL,
			cache.WithMetrics[*persistence.Account](h.metrics, "api_credentials"))
		if err != nil {
			h.logger.Warn("Credential cache disabled", "error", err)
		} else {
			h.credentials = c
		}
	}
	return h.routes()
}

func (h *Handler) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLog)
	r.Use(middleware.Timeout(h.timeout))
	if len(h.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.corsOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"Location"},
			MaxAge:         3600,
		}))
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeStatus(w, r, http.StatusNotFound, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeStatus(w, r, http.StatusMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path)
	})

	r.Route(Prefix, func(r chi.Router) {
		r.Get("/health", h.getHealth)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			r.Route("/accounts", func(r chi.Router) {
				r.Get("/", h.listAccounts)
				r.With(h.adminOnly).Post("/", h.createAccount)
				r.Get("/{username}", h.getAccount)
				r.Put("/{username}", h.updateAccount)
				r.With(h.adminOnly).Delete("/{username}", h.deleteAccount)
			})

			r.Route("/{acl:allow|deny}", func(r chi.Router) {
				r.Get("/", h.listACL)
				r.With(h.adminOnly).Post("/", h.addACL)
				r.Get("/{addr}", h.getACL)
				r.With(h.adminOnly).Delete("/{addr}", h.removeACL)
			})

			r.Route("/{kind:wtps|vbses|cpps}", func(r chi.Router) {
				r.Get("/", h.listDevices)
				r.With(h.adminOnly).Post("/", h.createDevice)
				r.Get("/{addr}", h.getDevice)
				r.With(h.adminOnly).Delete("/{addr}", h.deleteDevice)
			})

			r.Route("/feeds", func(r chi.Router) {
				r.Get("/", h.listFeeds)
				r.With(h.adminOnly).Post("/", h.createFeed)
				r.Get("/{feed}", h.getFeed)
				r.With(h.adminOnly).Delete("/{feed}", h.deleteFeed)
			})

			r.Route("/imsi2mac", func(r chi.Router) {
				r.Get("/", h.listIMSI)
				r.With(h.adminOnly).Post("/", h.createIMSI)
				r.Get("/{imsi}", h.getIMSI)
				r.With(h.adminOnly).Put("/{imsi}", h.putIMSI)
				r.With(h.adminOnly).Delete("/{imsi}", h.deleteIMSI)
			})

			r.Get("/modules", h.listModuleTypes)
			r.Get("/apps", h.listAppTypes)

			r.Route("/tenants", func(r chi.Router) {
				r.Get("/", h.listTenants)
				r.Post("/", h.createTenant)
				r.Route("/{tenant}", func(r chi.Router) {
					r.Use(h.tenantAccess)
					r.Get("/", h.getTenant)
					r.Delete("/", h.deleteTenant)

					r.Get("/{kind:wtps|vbses|cpps}", h.listMembers)
					r.Post("/{kind:wtps|vbses|cpps}", h.addMember)
					r.Delete("/{kind:wtps|vbses|cpps}/{addr}", h.removeMember)

					r.Get("/lvaps", h.listLVAPs)
					r.Get("/lvaps/{addr}", h.getLVAP)
					r.Put("/lvaps/{addr}", h.updateLVAP)
					r.Delete("/lvaps/{addr}", h.deleteLVAP)

					r.Get("/vaps", h.listVAPs)
					r.Get("/vaps/{addr}", h.getVAP)

					r.Get("/ues", h.listUEs)
					r.Get("/ues/{ue}", h.getUE)
					r.Put("/ues/{ue}", h.updateUE)

					r.Get("/slices", h.listSlices)
					r.Post("/slices", h.createSlice)
					r.Get("/slices/{dscp}", h.getSlice)
					r.Put("/slices/{dscp}", h.updateSlice)
					r.Delete("/slices/{dscp}", h.deleteSlice)

					r.Get("/endpoints", h.listEndpoints)
					r.Post("/endpoints", h.createEndpoint)
					r.Get("/endpoints/{endpoint}", h.getEndpoint)
					r.Delete("/endpoints/{endpoint}", h.deleteEndpoint)

					r.Get("/trs", h.listTrafficRules)
					r.Post("/trs", h.createTrafficRule)
					r.Get("/trs/{match}", h.getTrafficRule)
					r.Delete("/trs/{match}", h.deleteTrafficRule)

					r.Get("/modules", h.listModuleTypes)
					r.Get("/modules/{type}", h.listModules)
					r.Post("/modules/{type}", h.addModule)
					r.Get("/modules/{type}/{id}", h.getModule)
					r.Delete("/modules/{type}/{id}", h.removeModule)

					r.Get("/apps", h.listApps)
					r.Post("/apps", h.startApp)
					r.Get("/apps/{name}", h.getApp)
					r.Delete("/apps/{name}", h.stopApp)
				})
			})
		})
	})
	return r
}

func (h *Handler) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (h *Handler) getHealth(w http.ResponseWriter, r *http.Request) {
	st := h.health(r.Context())
	code := http.StatusOK
	if st.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	writeValue(w, code, st)
}

// view runs fn on the event loop and writes its result, serialized there.
func (h *Handler) view(w http.ResponseWriter, r *http.Request, fn func(*controller.State) (any, error)) {
	var body []byte
	err := h.ctrl.View(r.Context(), func(s *controller.State) error {
		v, err := fn(s)
		if err != nil {
			return err
		}
		body, err = json.Marshal(v)
		return err
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}
