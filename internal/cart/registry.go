package cart

import "sync"

// Registry keeps one cart per browser session
type Registry struct {
	mu    sync.Mutex
	carts map[string]*Cart
}

func NewRegistry() *Registry {
	return &Registry{carts: make(map[string]*Cart)}
}

// Get returns the session's cart, creating an empty one on first use
func (r *Registry) Get(sessionID string) *Cart {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.carts[sessionID]
	if !ok {
		c = New()
		r.carts[sessionID] = c
	}
	return c
}

// Drop forgets the session's cart
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, sessionID)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.carts)
}
