package api

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/controller"
	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
)

type deviceRequest struct {
	Addr  datatypes.EtherAddress `json:"addr"`
	Label string                 `json:"label"`
}

func (h *Handler) listDevices(w http.ResponseWriter, r *http.Request) {
	kind, err := runtime.ParseDeviceKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.view(w, r, func(s *controller.State) (any, error) {
		switch kind {
		case runtime.KindWTP:
			return s.Runtime.WTPs(), nil
		case runtime.KindVBS:
			return s.Runtime.VBSes(), nil
		default:
			return s.Runtime.CPPs(), nil
		}
	})
}

func (h *Handler) getDevice(w http.ResponseWriter, r *http.Request) {
	kind, err := runtime.ParseDeviceKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	addr, err := addrParam(r, "addr")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.view(w, r, func(s *controller.State) (any, error) {
		d, ok := deviceOf(s.Runtime, kind, addr)
		if !ok {
			return nil, notFound(string(kind), addr)
		}
		return d, nil
	})
}

func (h *Handler) createDevice(w http.ResponseWriter, r *http.Request) {
	kind, err := runtime.ParseDeviceKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req deviceRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Addr.IsZero() {
		h.writeError(w, r, errors.Invalidf(errors.ErrMissingParam, "addr"))
		return
	}
	if err := h.ctrl.CreateDevice(r.Context(), kind, req.Addr, req.Label); err != nil {
		h.writeError(w, r, err)
		return
	}
	created(w, r, path("/%s/%s", chi.URLParam(r, "kind"), req.Addr), nil)
}

func (h *Handler) deleteDevice(w http.ResponseWriter, r *http.Request) {
	kind, err := runtime.ParseDeviceKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	addr, err := addrParam(r, "addr")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.ctrl.DeleteDevice(r.Context(), kind, addr); err != nil {
		h.writeError(w, r, err)
		return
	}
	noContent(w)
}

// LVAPView adds the block ownership of an LVAP to its JSON form.
type LVAPView struct {
	*runtime.LVAP
	WTP      datatypes.EtherAddress  `json:"wtp"`
	Downlink *runtime.ResourceBlock  `json:"downlink,omitempty"`
	Uplink   []runtime.ResourceBlock `json:"uplink"`
	Pending  bool                    `json:"handover_pending"`
}

func newLVAPView(l *runtime.LVAP) LVAPView {
	v := LVAPView{LVAP: l, WTP: l.WTP(), Uplink: l.Uplink(), Pending: l.HandoverPending()}
	if b, ok := l.Downlink(); ok {
		v.Downlink = &b
	}
	return v
}

type lvapRequest struct {
	WTP datatypes.EtherAddress `json:"wtp"`
}

// tenantLVAP returns the LVAP of sta if it belongs to tenant.
func tenantLVAP(s *controller.State, tenant uuid.UUID, sta datatypes.EtherAddress) (*runtime.LVAP, error) {
	t, ok := s.Runtime.Tenant(tenant)
	if !ok {
		return nil, notFound("tenant", tenant)
	}
	l, ok := t.LVAPs[sta]
	if !ok {
		return nil, notFound("lvap", sta)
	}
	return l, nil
}

func (h *Handler) listLVAPs(w http.ResponseWriter, r *http.Request) {
	id := tenantFrom(r.Context())
	h.view(w, r, func(s *controller.State) (any, error) {
		t, ok := s.Runtime.Tenant(id)
		if !ok {
			return nil, notFound("tenant", id)
		}
		out := make([]LVAPView, 0, len(t.LVAPs))
		for _, sta := range sortedKeys(t.LVAPs) {
			out = append(out, newLVAPView(t.LVAPs[sta]))
		}
		return out, nil
	})
}

func (h *Handler) getLVAP(w http.ResponseWriter, r *http.Request) {
	id := tenantFrom(r.Context())
	sta, err := addrParam(r, "addr")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.view(w, r, func(s *controller.State) (any, error) {
		l, err := tenantLVAP(s, id, sta)
		if err != nil {
			return nil, err
		}
		return newLVAPView(l), nil
	})
}

// updateLVAP hands the station over to the WTP named in the body.
func (h *Handler) updateLVAP(w http.ResponseWriter, r *http.Request) {
	id := tenantFrom(r.Context())
	sta, err := addrParam(r, "addr")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req lvapRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.WTP.IsZero() {
		h.writeError(w, r, errors.Invalidf(errors.ErrMissingParam, "wtp"))
		return
	}
	err = h.ctrl.View(r.Context(), func(s *controller.State) error {
		if _, err := tenantLVAP(s, id, sta); err != nil {
			return err
		}
		t, _ := s.Runtime.Tenant(id)
		if !t.HasMember(runtime.KindWTP, req.WTP) {
			return errors.Invalidf(errors.ErrTenantNotMember, "wtp %s is not in tenant %s", req.WTP, t.Name)
		}
		return nil
	})
	if err == nil {
		err = h.ctrl.HandoverLVAP(r.Context(), sta, req.WTP)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	noContent(w)
}

func (h *Handler) deleteLVAP(w http.ResponseWriter, r *http.Request) {
	id := tenantFrom(r.Context())
	sta, err := addrParam(r, "addr")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	err = h.ctrl.View(r.Context(), func(s *controller.State) error {
		_, err := tenantLVAP(s, id, sta)
		return err
	})
	if err == nil {
		err = h.ctrl.RemoveLVAP(r.Context(), sta)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	noContent(w)
}

func (h *Handler) listVAPs(w http.ResponseWriter, r *http.Request) {
	id := tenantFrom(r.Context())
	h.view(w, r, func(s *controller.State) (any, error) {
		t, ok := s.Runtime.Tenant(id)
		if !ok {
			return nil, notFound("tenant", id)
		}
		out := make([]*runtime.VAP, 0, len(t.VAPs))
		for _, bssid := range sortedKeys(t.VAPs) {
			out = append(out, t.VAPs[bssid])
		}
		return out, nil
	})
}

func (h *Handler) getVAP(w http.ResponseWriter, r *http.Request) {
	id := tenantFrom(r.Context())
	bssid, err := addrParam(r, "addr")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.view(w, r, func(s *controller.State) (any, error) {
		t, ok := s.Runtime.Tenant(id)
		if !ok {
			return nil, notFound("tenant", id)
		}
		vap, ok := t.VAPs[bssid]
		if !ok {
			return nil, notFound("vap", bssid)
		}
		return vap, nil
	})
}

// UEs

type ueRequest struct {
	Cell  *runtime.CellRef `json:"cell"`
	Slice *datatypes.DSCP  `json:"slice"`
}

func ueParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "ue"))
	if err != nil {
		return uuid.Nil, errors.Invalidf(errors.ErrInvalidData, "ue id %q", chi.URLParam(r, "ue"))
	}
	return id, nil
}

func tenantUE(s *controller.State, tenant, id uuid.UUID) (*runtime.UE, error) {
	t, ok := s.Runtime.Tenant(tenant)
	if !ok {
		return nil, notFound("tenant", tenant)
	}
	u, ok := t.UEs[id]
	if !ok {
		return nil, notFound("ue", id)
	}
	return u, nil
}

func (h *Handler) listUEs(w http.ResponseWriter, r *http.Request) {
	id := tenantFrom(r.Context())
	h.view(w, r, func(s *controller.State) (any, error) {
		t, ok := s.Runtime.Tenant(id)
		if !ok {
			return nil, notFound("tenant", id)
		}
		out := make([]*runtime.UE, 0, len(t.UEs))
		for _, u := range t.UEs {
			out = append(out, u)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
		return out, nil
	})
}

func (h *Handler) getUE(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r.Context())
	id, err := ueParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.view(w, r, func(s *controller.State) (any, error) {
		return tenantUE(s, tenant, id)
	})
}

// updateUE moves a UE to another slice, another cell, or both. The slice
// change is applied first; a rejected handover leaves it in place.
func (h *Handler) updateUE(w http.ResponseWriter, r *http.Request) {
	tenant := tenantFrom(r.Context())
	id, err := ueParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req ueRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Cell == nil && req.Slice == nil {
		h.writeError(w, r, errors.Invalidf(errors.ErrMissingParam, "cell or slice"))
		return
	}
	err = h.ctrl.View(r.Context(), func(s *controller.State) error {
		if _, err := tenantUE(s, tenant, id); err != nil {
			return err
		}
		if req.Slice != nil {
			if err := s.Runtime.CheckSetUESlice(id, *req.Slice); err != nil {
				return err
			}
		}
		if req.Cell != nil {
			return s.Runtime.CheckHandoverUE(id, *req.Cell)
		}
		return nil
	})
	if err == nil && req.Slice != nil {
		err = h.ctrl.SetUESlice(r.Context(), id, *req.Slice)
	}
	if err == nil && req.Cell != nil {
		err = h.ctrl.SetUECell(r.Context(), id, *req.Cell)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	noContent(w)
}

func sortedKeys[V any](m map[datatypes.EtherAddress]V) []datatypes.EtherAddress {
	out := make([]datatypes.EtherAddress, 0, len(m))
	for a := range m {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
