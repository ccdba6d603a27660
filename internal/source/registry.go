// Package source holds the connection source registry and turns configuration
// settings into admitted descriptors.
package source

import (
	"fmt"
	"sync"

	"github.com/guillermoBallester/txscope/internal/core/domain"
)

// Registry is the ordered list of admitted descriptors. It is replaced
// wholesale by Reset; readers always see a complete list.
type Registry struct {
	mu   sync.RWMutex
	list []domain.Descriptor
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Reset replaces the list with a copy of descriptors.
func (r *Registry) Reset(descriptors []domain.Descriptor) {
	list := make([]domain.Descriptor, len(descriptors))
	copy(list, descriptors)

	r.mu.Lock()
	r.list = list
	r.mu.Unlock()
}

// Sources returns a copy of the current list.
func (r *Registry) Sources() []domain.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Descriptor, len(r.list))
	copy(out, r.list)
	return out
}

// Default returns the first registered descriptor.
func (r *Registry) Default() (domain.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.list) == 0 {
		return domain.Descriptor{}, domain.ErrNoSources
	}
	return r.list[0], nil
}

// Lookup finds a descriptor by alias.
func (r *Registry) Lookup(alias string) (domain.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.list {
		if d.Alias == alias {
			return d, nil
		}
	}
	return domain.Descriptor{}, fmt.Errorf("%w: %q", domain.ErrSourceNotFound, alias)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.list)
}
