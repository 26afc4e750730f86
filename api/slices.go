package api

import (
	"net/http"
	"net/url"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/controller"
	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
)

func dscpParam(r *http.Request) (datatypes.DSCP, error) {
	return datatypes.ParseDSCP(chi.URLParam(r, "dscp"))
}

func tenantSlice(s *controller.State, tenant uuid.UUID, dscp datatypes.DSCP) (*runtime.Slice, error) {
	t, ok := s.Runtime.Tenant(tenant)
	if !ok {
		return nil, notFound("tenant", tenant)
	}
	sl, ok := t.Slices[dscp]
	if !ok {
		return nil, notFound("slice", dscp)
	}
	return sl, nil
}

func (h *Handler) listSlices(w http.ResponseWriter, r *http.Request) {
	id := tenantFrom(r.Context())
	h.view(w, r, func(s *controller.State) (any, error) {
		t, ok := s.Runtime.Tenant(id)
		if !ok {
			return nil, notFound("tenant", id)
		}
		return t.SortedSlices(), nil
	})
}

func (h *Handler) getSlice(w http.ResponseWriter, r *http.Request) {
	id := tenantFrom(r.Context())
	dscp, err := dscpParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.view(w, r, func(s *controller.State) (any, error) {
		return tenantSlice(s, id, dscp)
	})
}

// decodeSlice reads a slice descriptor. Properties missing from the body
// keep their defaults.
func decodeSlice(w http.ResponseWriter, r *http.Request) (*runtime.Slice, error) {
	s := runtime.NewSlice(runtime.DefaultDSCP)
	if err := decode(w, r, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (h *Handler) createSlice(w http.ResponseWriter, r *http.Request) {
	id := tenantFrom(r.Context())
	s, err := decodeSlice(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.ctrl.CreateSlice(r.Context(), id, s); err != nil {
		h.writeError(w, r, err)
		return
	}
	created(w, r, path("/tenants/%s/slices/%s", id, s.DSCP), nil)
}

// updateSlice replaces the properties of the slice named in the path. A
// DSCP in the body is ignored.
func (h *Handler) updateSlice(w http.ResponseWriter, r *http.Request) {
	id := tenantFrom(r.Context())
	dscp, err := dscpParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	s, err := decodeSlice(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	s.DSCP = dscp
	if err := h.ctrl.UpdateSlice(r.Context(), id, s); err != nil {
		h.writeError(w, r, err)
		return
	}
	noContent(w)
}

func (h *Handler) deleteSlice(w http.ResponseWriter, r *http.Request) {
	dscp, err := dscpParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.ctrl.DeleteSlice(r.Context(), tenantFrom(r.Context()), dscp); err != nil {
		h.writeError(w, r, err)
		return
	}
	noContent(w)
}

// Traffic rules

type trafficRuleRequest struct {
	Match datatypes.Match `json:"match"`
	DSCP  datatypes.DSCP  `json:"dscp"`
	Label string          `json:"label"`
}

// matchParam reads {match}, which is the path escaped canonical match.
func matchParam(r *http.Request) (datatypes.Match, error) {
	raw, err := url.PathUnescape(chi.URLParam(r, "match"))
	if err != nil {
		return nil, errors.Invalidf(errors.ErrInvalidData, "match %q", chi.URLParam(r, "match"))
	}
	return datatypes.ParseMatch(raw)
}

func (h *Handler) listTrafficRules(w http.ResponseWriter, r *http.Request) {
	id := tenantFrom(r.Context())
	h.view(w, r, func(s *controller.State) (any, error) {
		t, ok := s.Runtime.Tenant(id)
		if !ok {
			return nil, notFound("tenant", id)
		}
		out := make([]*runtime.TrafficRule, 0, len(t.TrafficRules))
		for _, tr := range t.TrafficRules {
			out = append(out, tr)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Match.Key() < out[j].Match.Key() })
		return out, nil
	})
}

func (h *Handler) getTrafficRule(w http.ResponseWriter, r *http.Request) {
	id := tenantFrom(r.Context())
	m, err := matchParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.view(w, r, func(s *controller.State) (any, error) {
		t, ok := s.Runtime.Tenant(id)
		if !ok {
			return nil, notFound("tenant", id)
		}
		tr, ok := t.TrafficRules[m.Key()]
		if !ok {
			return nil, notFound("traffic rule", m)
		}
		return tr, nil
	})
}

func (h *Handler) createTrafficRule(w http.ResponseWriter, r *http.Request) {
	id := tenantFrom(r.Context())
	var req trafficRuleRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	tr := &runtime.TrafficRule{Match: req.Match, DSCP: req.DSCP, Label: req.Label}
	if err := h.ctrl.CreateTrafficRule(r.Context(), id, tr); err != nil {
		h.writeError(w, r, err)
		return
	}
	created(w, r, path("/tenants/%s/trs/%s", id, url.PathEscape(tr.Match.Key())), nil)
}

func (h *Handler) deleteTrafficRule(w http.ResponseWriter, r *http.Request) {
	m, err := matchParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.ctrl.DeleteTrafficRule(r.Context(), tenantFrom(r.Context()), m); err != nil {
		h.writeError(w, r, err)
		return
	}
	noContent(w)
}

// Endpoints

type endpointRequest struct {
	ID    uuid.UUID              `json:"endpoint_id"`
	Label string                 `json:"label"`
	DPID  datatypes.DPID         `json:"dpid"`
	Ports []*runtime.VirtualPort `json:"ports"`
}

func endpointParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "endpoint"))
	if err != nil {
		return uuid.Nil, errors.Invalidf(errors.ErrInvalidData, "endpoint id %q", chi.URLParam(r, "endpoint"))
	}
	return id, nil
}

func (h *Handler) listEndpoints(w http.ResponseWriter, r *http.Request) {
	id := tenantFrom(r.Context())
	h.view(w, r, func(s *controller.State) (any, error) {
		t, ok := s.Runtime.Tenant(id)
		if !ok {
			return nil, notFound("tenant", id)
		}
		out := make([]*runtime.Endpoint, 0, len(t.Endpoints))
		for _, e := range t.Endpoints {
			out = append(out, e)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
		return out, nil
	})
}

func (h *Handler) getEndpoint(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r.Context())
	id, err := endpointParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.view(w, r, func(s *controller.State) (any, error) {
		t, ok := s.Runtime.Tenant(tenant)
		if !ok {
			return nil, notFound("tenant", tenant)
		}
		e, ok := t.Endpoints[id]
		if !ok {
			return nil, notFound("endpoint", id)
		}
		return e, nil
	})
}

func (h *Handler) createEndpoint(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r.Context())
	var req endpointRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	e := &runtime.Endpoint{ID: req.ID, Label: req.Label, DPID: req.DPID, Ports: make(map[uint16]*runtime.VirtualPort, len(req.Ports))}
	for _, p := range req.Ports {
		if p == nil {
			continue
		}
		if _, dup := e.Ports[p.PortID]; dup {
			h.writeError(w, r, errors.Invalidf(errors.ErrAlreadyExists, "virtual port %d", p.PortID))
			return
		}
		e.Ports[p.PortID] = p
	}
	id, err := h.ctrl.CreateEndpoint(r.Context(), tenant, e)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	created(w, r, path("/tenants/%s/endpoints/%s", tenant, id), map[string]uuid.UUID{"endpoint_id": id})
}

func (h *Handler) deleteEndpoint(w http.ResponseWriter, r *http.Request) {
	id, err := endpointParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.ctrl.DeleteEndpoint(r.Context(), tenantFrom(r.Context()), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	noContent(w)
}
