package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/5g-empower/empower-runtime-sub001/controller"
	"github.com/5g-empower/empower-runtime-sub001/errors"
	"github.com/5g-empower/empower-runtime-sub001/persistence"
)

type ctxKey int

const (
	accountKey ctxKey = iota
	tenantKey
)

// AccountFrom returns the authenticated account of the request.
func AccountFrom(ctx context.Context) (*persistence.Account, bool) {
	a, ok := ctx.Value(accountKey).(*persistence.Account)
	return a, ok
}

func tenantFrom(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(tenantKey).(uuid.UUID)
	return id
}

func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if !ok {
			h.writeError(w, r, errors.ErrUnauthorized)
			return
		}
		a, err := h.verify(r.Context(), user, password)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accountKey, a)))
	})
}

// verify checks credentials against the store unless the same pair was
// accepted within the credential ttl.
func (h *Handler) verify(ctx context.Context, user, password string) (*persistence.Account, error) {
	if h.credentials == nil {
		return persistence.Authenticate(ctx, h.ctrl.Session(), user, password)
	}
	sum := sha256.Sum256([]byte(user + "\x00" + password))
	key := hex.EncodeToString(sum[:])
	if a, ok := h.credentials.Get(key); ok {
		return a, nil
	}
	a, err := persistence.Authenticate(ctx, h.ctrl.Session(), user, password)
	if err != nil {
		return nil, err
	}
	_, _ = h.credentials.Set(key, a)
	return a, nil
}

// forget drops the cached credentials of username.
func (h *Handler) forget(username string) {
	if h.credentials == nil {
		return
	}
	h.credentials.DeleteFunc(func(_ string, a *persistence.Account) bool { return a.Username == username })
}

func (h *Handler) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a, _ := AccountFrom(r.Context()); a == nil || !a.IsAdmin() {
			h.writeError(w, r, errors.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// tenantAccess resolves {tenant}. Every account may read a tenant; only
// admins and the owner may change it.
func (h *Handler) tenantAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "tenant"))
		if err != nil {
			h.writeError(w, r, errors.Invalidf(errors.ErrInvalidData, "tenant id %q", chi.URLParam(r, "tenant")))
			return
		}
		a, _ := AccountFrom(r.Context())
		err = h.ctrl.View(r.Context(), func(s *controller.State) error {
			t, ok := s.Runtime.Tenant(id)
			if !ok {
				return notFound("tenant", id)
			}
			if !readOnly(r) && !a.IsAdmin() && t.Owner != a.Username {
				return errors.ErrForbidden
			}
			return nil
		})
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tenantKey, id)))
	})
}

// canEditAccount reports whether a may change username.
func canEditAccount(a *persistence.Account, username string) bool {
	return a.IsAdmin() || a.Username == username
}

func readOnly(r *http.Request) bool {
	return r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions
}
