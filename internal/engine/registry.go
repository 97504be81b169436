package engine

import (
	"sort"
	"sync"

	"github.com/efreitasn/venue/internal/domain"
)

// SecurityRegistry is a thread-safe map of isin → Security.
type SecurityRegistry struct {
	mu         sync.RWMutex
	securities map[string]*Security
}

// NewSecurityRegistry creates an empty SecurityRegistry.
func NewSecurityRegistry() *SecurityRegistry {
	return &SecurityRegistry{
		securities: make(map[string]*Security),
	}
}

// Add registers a security. It returns domain.ErrSecurityAlreadyExists
// if the isin is taken.
func (r *SecurityRegistry) Add(sec *Security) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.securities[sec.isin]; exists {
		return domain.ErrSecurityAlreadyExists
	}
	r.securities[sec.isin] = sec
	return nil
}

// Get returns the security for isin or domain.ErrSecurityNotFound.
func (r *SecurityRegistry) Get(isin string) (*Security, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sec, ok := r.securities[isin]
	if !ok {
		return nil, domain.ErrSecurityNotFound
	}
	return sec, nil
}

// List returns every registered security ordered by isin.
func (r *SecurityRegistry) List() []*Security {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Security, 0, len(r.securities))
	for _, sec := range r.securities {
		out = append(out, sec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].isin < out[j].isin })
	return out
}
