package gatewayapi

import (
	"fmt"
	"sync"

	"github.com/rustexchange/matchd/internal/wire"
)

// ClientRegistry resolves a market tag to the wire.Client that talks to
// that market's engine process, lazily dialing on first use and
// caching the result — grounded on the original rustex-api's per-market
// routing table in SPEC_FULL.md's DOMAIN STACK, rebuilt on the custom
// wire fabric instead of the teacher's gRPC proxy.
type ClientRegistry struct {
	mu      sync.Mutex
	routes  map[string]string
	clients map[string]*wire.Client
}

// NewClientRegistry builds a registry from market -> engine address.
func NewClientRegistry(routes map[string]string) *ClientRegistry {
	return &ClientRegistry{
		routes:  routes,
		clients: make(map[string]*wire.Client),
	}
}

// Get returns the wire.Client for market, or an error if the market
// isn't configured via {MARKET}_RPC_MATCH_SERVER.
func (r *ClientRegistry) Get(market string) (*wire.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[market]; ok {
		return c, nil
	}
	addr, ok := r.routes[market]
	if !ok {
		return nil, fmt.Errorf("gatewayapi: no route configured for market %q", market)
	}
	c, err := wire.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("gatewayapi: dial %q for market %q: %w", addr, market, err)
	}
	r.clients[market] = c
	return c, nil
}

// Markets lists every market this registry knows a route for.
func (r *ClientRegistry) Markets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.routes))
	for m := range r.routes {
		out = append(out, m)
	}
	return out
}
