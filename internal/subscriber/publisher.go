package subscriber

import (
	"strings"
	"sync"

	"dexpricer/internal/dex"
)

// PublisherRegistry is the set of chain addresses whose logs the
// synchronizer consumes, each optionally annotated with the decode params
// its protocol needs. Safe for concurrent use: registration arrives from the
// HTTP surface while the synchronizer reads.
type PublisherRegistry struct {
	mu     sync.RWMutex
	params map[string]*dex.Params
}

func NewPublisherRegistry() *PublisherRegistry {
	return &PublisherRegistry{params: make(map[string]*dex.Params)}
}

// Register records an address (case-insensitively) with its decode params.
// It returns false and is a no-op when the address is already registered.
func (r *PublisherRegistry) Register(address string, params *dex.Params) bool {
	key := strings.ToLower(address)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.params[key]; ok {
		return false
	}
	r.params[key] = params
	return true
}

// IsRegistered reports whether the address has been registered.
func (r *PublisherRegistry) IsRegistered(address string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.params[strings.ToLower(address)]
	return ok
}

// Params returns the decode params registered for an address, which may be
// nil, and whether the address is registered at all.
func (r *PublisherRegistry) Params(address string) (*dex.Params, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	params, ok := r.params[strings.ToLower(address)]
	return params, ok
}
