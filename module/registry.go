package module

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/5g-empower/empower-runtime-sub001/errors"
)

// Factory builds a module from its JSON parameters. It validates the
// parameters and performs no I/O.
type Factory func(raw json.RawMessage) (Module, error)

// Registration describes a module type.
type Registration struct {
	Name        string        `json:"name"`
	Kind        Kind          `json:"kind"`
	Protocol    string        `json:"protocol"`
	Description string        `json:"description"`
	Required    []string      `json:"required"`
	Every       time.Duration `json:"-"`
	Factory     Factory       `json:"-"`
}

// Registry is the table of module types, keyed by name.
type Registry struct {
	types map[string]*Registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*Registration)}
}

// Register adds a module type. Names are unique.
func (r *Registry) Register(reg Registration) error {
	if reg.Name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "module name validation")
	}
	if reg.Factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "Register", "factory function validation")
	}
	switch reg.Kind {
	case KindSingle, KindPeriodic, KindScheduled, KindTrigger:
	default:
		return errors.WrapInvalid(fmt.Errorf("module %q has kind %q", reg.Name, reg.Kind), "Registry", "Register", "kind validation")
	}
	if _, exists := r.types[reg.Name]; exists {
		return errors.WrapInvalid(fmt.Errorf("module type %q is already registered", reg.Name), "Registry", "Register", "duplicate type check")
	}
	r.types[reg.Name] = &reg
	return nil
}

// Lookup returns the registration of name.
func (r *Registry) Lookup(name string) (*Registration, bool) {
	reg, ok := r.types[name]
	return reg, ok
}

// Registrations lists every type by name.
func (r *Registry) Registrations() []*Registration {
	out := make([]*Registration, 0, len(r.types))
	for _, reg := range r.types {
		out = append(out, reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
