package service

import (
	"sort"
	"sync"

	"github.com/5g-empower/empower-runtime-sub001/errors"
)

// Registry maps service names to constructors. RegisterAll fills it with
// the listeners and exporters of the controller.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewServiceRegistry creates an empty registry.
func NewServiceRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds constructor under name. Names are unique.
func (r *Registry) Register(name string, constructor Constructor) error {
	switch {
	case name == "":
		return errors.WrapInvalid(errors.ErrMissingConfig, "Registry", "Register", "service name cannot be empty")
	case constructor == nil:
		return errors.WrapInvalid(errors.ErrMissingConfig, "Registry", "Register", "nil constructor for "+name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.constructors[name]; dup {
		return errors.WrapInvalid(errors.ErrAlreadyExists, "Registry", "Register", "service "+name)
	}
	r.constructors[name] = constructor
	return nil
}

// Constructor looks name up.
func (r *Registry) Constructor(name string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.constructors[name]
	return c, ok
}

// Services lists the registered names in order.
func (r *Registry) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
