package api

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/5g-empower/empower-runtime-sub001/controller"
	"github.com/5g-empower/empower-runtime-sub001/datatypes"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/persistence"
	"github.com/5g-empower/empower-runtime-sub001/runtime"
)

type accountRequest struct {
	Username string           `json:"username"`
	Password string           `json:"password"`
	Name     string           `json:"name"`
	Surname  string           `json:"surname"`
	Email    string           `json:"email"`
	Role     persistence.Role `json:"role"`
}

// listAccounts returns every account to admins and only their own to
// everybody else.
func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	a, _ := AccountFrom(r.Context())
	if !a.IsAdmin() {
		writeValue(w, http.StatusOK, []*persistence.Account{a})
		return
	}
	accounts, err := h.ctrl.Session().Accounts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Username < accounts[j].Username })
	writeValue(w, http.StatusOK, accounts)
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	a, _ := AccountFrom(r.Context())
	if !canEditAccount(a, username) {
		h.writeError(w, r, errors.ErrForbidden)
		return
	}
	acc, err := h.ctrl.Session().Account(r.Context(), username)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeValue(w, http.StatusOK, acc)
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Role == "" {
		req.Role = persistence.RoleUser
	}
	acc := persistence.Account{
		Username: req.Username,
		Name:     req.Name,
		Surname:  req.Surname,
		Email:    req.Email,
		Role:     req.Role,
	}
	if err := h.ctrl.Session().CreateAccount(r.Context(), acc, req.Password); err != nil {
		h.writeError(w, r, err)
		return
	}
	created(w, r, path("/accounts/%s", acc.Username), nil)
}

// updateAccount changes the profile and, when given, the password. Only
// admins may change a role.
func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	a, _ := AccountFrom(r.Context())
	if !canEditAccount(a, username) {
		h.writeError(w, r, errors.ErrForbidden)
		return
	}
	var req accountRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	cur, err := h.ctrl.Session().Account(r.Context(), username)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Role != "" && req.Role != cur.Role && !a.IsAdmin() {
		h.writeError(w, r, errors.ErrForbidden)
		return
	}
	next := *cur
	if req.Name != "" {
		next.Name = req.Name
	}
	if req.Surname != "" {
		next.Surname = req.Surname
	}
	if req.Email != "" {
		next.Email = req.Email
	}
	if req.Role != "" {
		next.Role = req.Role
	}
	if err := h.ctrl.Session().UpdateAccount(r.Context(), next, req.Password); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.forget(username)
	noContent(w)
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if a, _ := AccountFrom(r.Context()); a.Username == username {
		h.writeError(w, r, errors.Invalidf(errors.ErrInvalidData, "an account cannot delete itself"))
		return
	}
	if err := h.ctrl.Session().DeleteAccount(r.Context(), username); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.forget(username)
	noContent(w)
}

// ACL

type aclRequest struct {
	Addr  datatypes.EtherAddress `json:"addr"`
	Label string                 `json:"label"`
}

func isAllow(r *http.Request) bool { return chi.URLParam(r, "acl") == "allow" }

func aclOf(rt *runtime.Runtime, allow bool) []*runtime.ACLEntry {
	if allow {
		return rt.Allowed()
	}
	return rt.Denied()
}

func (h *Handler) listACL(w http.ResponseWriter, r *http.Request) {
	allow := isAllow(r)
	h.view(w, r, func(s *controller.State) (any, error) {
		return aclOf(s.Runtime, allow), nil
	})
}

func (h *Handler) getACL(w http.ResponseWriter, r *http.Request) {
	allow := isAllow(r)
	addr, err := addrParam(r, "addr")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.view(w, r, func(s *controller.State) (any, error) {
		for _, e := range aclOf(s.Runtime, allow) {
			if e.Addr == addr {
				return e, nil
			}
		}
		return nil, notFound("acl entry", addr)
	})
}

func (h *Handler) addACL(w http.ResponseWriter, r *http.Request) {
	var req aclRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Addr.IsZero() {
		h.writeError(w, r, errors.Invalidf(errors.ErrMissingParam, "addr"))
		return
	}
	if err := h.ctrl.AddACL(r.Context(), isAllow(r), req.Addr, req.Label); err != nil {
		h.writeError(w, r, err)
		return
	}
	created(w, r, path("/%s/%s", chi.URLParam(r, "acl"), req.Addr), nil)
}

func (h *Handler) removeACL(w http.ResponseWriter, r *http.Request) {
	addr, err := addrParam(r, "addr")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.ctrl.RemoveACL(r.Context(), isAllow(r), addr); err != nil {
		h.writeError(w, r, err)
		return
	}
	noContent(w)
}

// Feeds

type feedRequest struct {
	ID    int                    `json:"id"`
	Label string                 `json:"label"`
	Addr  datatypes.EtherAddress `json:"addr"`
}

func feedParam(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "feed"))
	if err != nil {
		return 0, errors.Invalidf(errors.ErrInvalidData, "feed id %q", chi.URLParam(r, "feed"))
	}
	return id, nil
}

func (h *Handler) listFeeds(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, func(s *controller.State) (any, error) {
		return s.Runtime.Feeds(), nil
	})
}

func (h *Handler) getFeed(w http.ResponseWriter, r *http.Request) {
	id, err := feedParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.view(w, r, func(s *controller.State) (any, error) {
		f, ok := s.Runtime.Feed(id)
		if !ok {
			return nil, notFound("feed", id)
		}
		return f, nil
	})
}

func (h *Handler) createFeed(w http.ResponseWriter, r *http.Request) {
	var req feedRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.ctrl.CreateFeed(r.Context(), runtime.Feed{ID: req.ID, Label: req.Label, Addr: req.Addr}); err != nil {
		h.writeError(w, r, err)
		return
	}
	created(w, r, path("/feeds/%d", req.ID), nil)
}

func (h *Handler) deleteFeed(w http.ResponseWriter, r *http.Request) {
	id, err := feedParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.ctrl.DeleteFeed(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	noContent(w)
}

// IMSI to MAC mappings

type imsiRequest struct {
	IMSI string                 `json:"imsi"`
	Addr datatypes.EtherAddress `json:"addr"`
}

func (h *Handler) listIMSI(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, func(s *controller.State) (any, error) {
		out := make([]persistence.IMSIMapping, 0, len(s.IMSI))
		for imsi, addr := range s.IMSI {
			out = append(out, persistence.IMSIMapping{IMSI: imsi, Addr: addr})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].IMSI < out[j].IMSI })
		return out, nil
	})
}

func (h *Handler) getIMSI(w http.ResponseWriter, r *http.Request) {
	imsi := chi.URLParam(r, "imsi")
	addr, err := h.ctrl.IMSIMapping(r.Context(), imsi)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeValue(w, http.StatusOK, persistence.IMSIMapping{IMSI: imsi, Addr: addr})
}

func (h *Handler) createIMSI(w http.ResponseWriter, r *http.Request) {
	var req imsiRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.ctrl.PutIMSIMapping(r.Context(), req.IMSI, req.Addr); err != nil {
		h.writeError(w, r, err)
		return
	}
	created(w, r, path("/imsi2mac/%s", req.IMSI), nil)
}

func (h *Handler) putIMSI(w http.ResponseWriter, r *http.Request) {
	var req imsiRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.ctrl.PutIMSIMapping(r.Context(), chi.URLParam(r, "imsi"), req.Addr); err != nil {
		h.writeError(w, r, err)
		return
	}
	noContent(w)
}

func (h *Handler) deleteIMSI(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.DeleteIMSIMapping(r.Context(), chi.URLParam(r, "imsi")); err != nil {
		h.writeError(w, r, err)
		return
	}
	noContent(w)
}
