package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/5g-empower/empower-runtime-sub001/controller"
	"github.com/5g-empower/empower-runtime-sub001/errors"
)

func (h *Handler) listModuleTypes(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, func(s *controller.State) (any, error) {
		return s.Modules.Registrations(), nil
	})
}

func (h *Handler) listAppTypes(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, func(s *controller.State) (any, error) {
		return s.Apps.Registrations(), nil
	})
}

func moduleIDParam(r *http.Request) (uint32, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		return 0, errors.Invalidf(errors.ErrInvalidData, "module id %q", chi.URLParam(r, "id"))
	}
	return uint32(id), nil
}

func (h *Handler) listModules(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r.Context())
	typ := chi.URLParam(r, "type")
	h.view(w, r, func(s *controller.State) (any, error) {
		if _, ok := s.Modules.Worker(typ); !ok {
			return nil, notFound("module type", typ)
		}
		return s.Modules.Modules(typ, tenant), nil
	})
}

func (h *Handler) getModule(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r.Context())
	typ := chi.URLParam(r, "type")
	id, err := moduleIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.view(w, r, func(s *controller.State) (any, error) {
		m, ok := s.Modules.Module(typ, tenant, id)
		if !ok {
			return nil, notFound("module", id)
		}
		return m, nil
	})
}

// addModule loads a module. Posting parameters equivalent to a running
// module returns that module with 200 instead of 201.
func (h *Handler) addModule(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r.Context())
	typ := chi.URLParam(r, "type")
	params, err := decodeRaw(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, isNew, err := h.ctrl.AddModule(r.Context(), typ, tenant, params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	location := path("/tenants/%s/modules/%s/%d", tenant, typ, id)
	body := map[string]uint32{"module_id": id}
	if !isNew {
		w.Header().Set("Location", location)
		writeValue(w, http.StatusOK, body)
		return
	}
	created(w, r, location, body)
}

func (h *Handler) removeModule(w http.ResponseWriter, r *http.Request) {
	id, err := moduleIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.ctrl.RemoveModule(r.Context(), chi.URLParam(r, "type"), tenantFrom(r.Context()), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	noContent(w)
}

// Apps

type appRequest struct {
	Name   string          `json:"name"`
	Params json.RawMessage `json:"params"`
}

func (h *Handler) listApps(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r.Context())
	h.view(w, r, func(s *controller.State) (any, error) {
		return s.Apps.Instances(tenant), nil
	})
}

func (h *Handler) getApp(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r.Context())
	name := chi.URLParam(r, "name")
	h.view(w, r, func(s *controller.State) (any, error) {
		inst, ok := s.Apps.Instance(tenant, name)
		if !ok {
			return nil, notFound("app", name)
		}
		return inst, nil
	})
}

func (h *Handler) startApp(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r.Context())
	var req appRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Name == "" {
		h.writeError(w, r, errors.Invalidf(errors.ErrMissingParam, "name"))
		return
	}
	if len(req.Params) == 0 {
		req.Params = json.RawMessage(`{}`)
	}
	inst, err := h.ctrl.StartApp(r.Context(), tenant, req.Name, req.Params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	created(w, r, path("/tenants/%s/apps/%s", tenant, inst.Name), inst)
}

func (h *Handler) stopApp(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.StopApp(r.Context(), tenantFrom(r.Context()), chi.URLParam(r, "name")); err != nil {
		h.writeError(w, r, err)
		return
	}
	noContent(w)
}
