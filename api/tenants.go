package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/controller"
	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
)

// TenantView is the JSON form of a tenant.
type TenantView struct {
	*runtime.Tenant
	WTPs      []datatypes.EtherAddress `json:"wtps"`
	VBSes     []datatypes.EtherAddress `json:"vbses"`
	CPPs      []datatypes.EtherAddress `json:"cpps"`
	Slices    []*runtime.Slice         `json:"slices"`
	LVAPs     int                      `json:"lvaps"`
	VAPs      int                      `json:"vaps"`
	UEs       int                      `json:"ues"`
	Endpoints int                      `json:"endpoints"`
}

func newTenantView(t *runtime.Tenant) TenantView {
	return TenantView{
		Tenant:    t,
		WTPs:      t.SortedMembers(runtime.KindWTP),
		VBSes:     t.SortedMembers(runtime.KindVBS),
		CPPs:      t.SortedMembers(runtime.KindCPP),
		Slices:    t.SortedSlices(),
		LVAPs:     len(t.LVAPs),
		VAPs:      len(t.VAPs),
		UEs:       len(t.UEs),
		Endpoints: len(t.Endpoints),
	}
}

type tenantRequest struct {
	ID          uuid.UUID        `json:"tenant_id"`
	Name        datatypes.SSID   `json:"tenant_name"`
	Description string           `json:"desc"`
	Owner       string           `json:"owner"`
	BSSIDType   string           `json:"bssid_type"`
	PLMN        datatypes.PLMNID `json:"plmn_id"`
}

type memberRequest struct {
	Addr datatypes.EtherAddress `json:"addr"`
}

func (h *Handler) listTenants(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, func(s *controller.State) (any, error) {
		tenants := s.Runtime.Tenants()
		out := make([]TenantView, 0, len(tenants))
		for _, t := range tenants {
			out = append(out, newTenantView(t))
		}
		return out, nil
	})
}

func (h *Handler) getTenant(w http.ResponseWriter, r *http.Request) {
	id := tenantFrom(r.Context())
	h.view(w, r, func(s *controller.State) (any, error) {
		t, ok := s.Runtime.Tenant(id)
		if !ok {
			return nil, notFound("tenant", id)
		}
		return newTenantView(t), nil
	})
}

// createTenant registers a tenant. Accounts other than admins always own
// the tenants they create.
func (h *Handler) createTenant(w http.ResponseWriter, r *http.Request) {
	var req tenantRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Name == "" {
		h.writeError(w, r, errors.Invalidf(errors.ErrMissingParam, "tenant_name"))
		return
	}
	a, _ := AccountFrom(r.Context())
	if req.Owner == "" || !a.IsAdmin() {
		req.Owner = a.Username
	}
	id, err := h.ctrl.CreateTenant(r.Context(), controller.TenantRequest{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Owner:       req.Owner,
		BSSIDType:   req.BSSIDType,
		PLMN:        req.PLMN,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	created(w, r, path("/tenants/%s", id), map[string]uuid.UUID{"tenant_id": id})
}

func (h *Handler) deleteTenant(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.DeleteTenant(r.Context(), tenantFrom(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	noContent(w)
}

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	id := tenantFrom(r.Context())
	kind, err := runtime.ParseDeviceKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.view(w, r, func(s *controller.State) (any, error) {
		t, ok := s.Runtime.Tenant(id)
		if !ok {
			return nil, notFound("tenant", id)
		}
		out := make([]any, 0, len(t.Members(kind)))
		for _, addr := range t.SortedMembers(kind) {
			if d, ok := deviceOf(s.Runtime, kind, addr); ok {
				out = append(out, d)
			}
		}
		return out, nil
	})
}

func (h *Handler) addMember(w http.ResponseWriter, r *http.Request) {
	id := tenantFrom(r.Context())
	kind, err := runtime.ParseDeviceKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req memberRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Addr.IsZero() {
		h.writeError(w, r, errors.Invalidf(errors.ErrMissingParam, "addr"))
		return
	}
	if err := h.ctrl.AddTenantDevice(r.Context(), id, kind, req.Addr); err != nil {
		h.writeError(w, r, err)
		return
	}
	created(w, r, path("/tenants/%s/%s/%s", id, chi.URLParam(r, "kind"), req.Addr), nil)
}

func (h *Handler) removeMember(w http.ResponseWriter, r *http.Request) {
	id := tenantFrom(r.Context())
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
	if err := h.ctrl.RemoveTenantDevice(r.Context(), id, kind, addr); err != nil {
		h.writeError(w, r, err)
		return
	}
	noContent(w)
}

func addrParam(r *http.Request, name string) (datatypes.EtherAddress, error) {
	return datatypes.ParseEtherAddress(chi.URLParam(r, name))
}

// deviceOf returns the concrete device so that kind specific fields are
// serialized.
func deviceOf(rt *runtime.Runtime, kind runtime.DeviceKind, addr datatypes.EtherAddress) (any, bool) {
	switch kind {
	case runtime.KindWTP:
		return rt.WTP(addr)
	case runtime.KindVBS:
		return rt.VBS(addr)
	default:
		return rt.CPP(addr)
	}
}
