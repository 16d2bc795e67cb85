package lenz

import "sync"

// registry holds subscriber callbacks in registration order with
// cancellation by identity. Invocation iterates a snapshot so handlers
// may register or cancel subscriptions reentrantly.
type registry[F any] struct {
	mu     sync.Mutex
	subs   []registered[F]
	nextID int
}

type registered[F any] struct {
	id int
	fn F
}

// add registers fn and returns a cancel func. Cancel is idempotent.
func (r *registry[F]) add(fn F) (cancel func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs = append(r.subs, registered[F]{id: id, fn: fn})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, s := range r.subs {
			if s.id == id {
				r.subs = append(r.subs[:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

// snapshot returns the registered callbacks in registration order.
func (r *registry[F]) snapshot() []F {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.subs) == 0 {
		return nil
	}
	out := make([]F, len(r.subs))
	for i, s := range r.subs {
		out[i] = s.fn
	}
	return out
}
