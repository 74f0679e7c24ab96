package suite

import (
	"fmt"
	"sync"
)

// Registry maps suite names to suites, keeping declaration order. It is built
// once when a page loads and read by the connector for the page's lifetime.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	suites map[string]*Suite
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{suites: make(map[string]*Suite)}
}

// Register adds s. Duplicate names and invalid suites are configuration errors.
func (r *Registry) Register(s *Suite) error {
	if s == nil {
		return fmt.Errorf("register: %w", errNilSuite)
	}
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.suites[s.Name]; exists {
		return duplicateError(s.Name)
	}
	r.suites[s.Name] = s
	r.order = append(r.order, s.Name)
	return nil
}

// RegisterAll registers every suite, stopping at the first error.
func (r *Registry) RegisterAll(suites ...*Suite) error {
	for _, s := range suites {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the suite registered under name.
func (r *Registry) Lookup(name string) (*Suite, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.suites[name]
	return s, ok
}

// Names returns suite names in declaration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Tags maps each suite that declares tags to a copy of them.
func (r *Registry) Tags() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var tags map[string][]string
	for _, name := range r.order {
		s := r.suites[name]
		if len(s.Tags) == 0 {
			continue
		}
		if tags == nil {
			tags = make(map[string][]string)
		}
		tags[name] = append([]string(nil), s.Tags...)
	}
	return tags
}

// Len returns the number of registered suites.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
