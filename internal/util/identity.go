package util

import (
	"math/rand"
	"sync"
)

// IdentityPool hands out a user agent per outbound request
type IdentityPool struct {
	mu     sync.Mutex
	agents []string
	pick   func(n int) int
}

// NewIdentityPool creates a pool over agents. Blank entries are dropped;
// an empty pool falls back to fallback.
func NewIdentityPool(agents []string, fallback string) *IdentityPool {
	kept := make([]string, 0, len(agents))
	for _, a := range agents {
		if a != "" {
			kept = append(kept, a)
		}
	}
	if len(kept) == 0 {
		kept = append(kept, fallback)
	}
	return &IdentityPool{agents: kept, pick: rand.Intn}
}

// Next returns a randomly chosen user agent
func (p *IdentityPool) Next() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.agents) == 1 {
		return p.agents[0]
	}
	return p.agents[p.pick(len(p.agents))]
}

// Agents returns a copy of the pool
func (p *IdentityPool) Agents() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.agents))
	copy(out, p.agents)
	return out
}
