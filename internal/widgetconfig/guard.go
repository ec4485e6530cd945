package widgetconfig

import (
	"fmt"
	"sync"
)

// InitGuard remembers which mounts have been instantiated in this process so
// a mount is never booted twice. One guard is created at startup and passed
// to whatever creates widgets.
type InitGuard struct {
	mu      sync.Mutex
	claimed map[string]struct{}
	booted  bool
}

func NewInitGuard() *InitGuard {
	return &InitGuard{claimed: make(map[string]struct{})}
}

// Claim reserves id. It fails if id was already claimed.
func (g *InitGuard) Claim(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.claimed[id]; ok {
		return fmt.Errorf("widget %q already initialized", id)
	}
	g.claimed[id] = struct{}{}
	return nil
}

// Release frees id so it can be instantiated again.
func (g *InitGuard) Release(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claimed, id)
}

// Boot reports true exactly once: the first caller does page-level setup.
func (g *InitGuard) Boot() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.booted {
		return false
	}
	g.booted = true
	return true
}
