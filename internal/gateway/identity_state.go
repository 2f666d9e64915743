package gateway

import "sync"

// IdentityState holds a session's current identity and fans changes out to
// listeners. Adapters embed it to implement OnIdentityChange.
type IdentityState struct {
	// deliverMu keeps notifications in the order of the Set calls.
	deliverMu sync.Mutex

	mu        sync.Mutex
	current   *Identity
	nextID    int
	listeners map[int]IdentityListener
}

func (s *IdentityState) Current() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyIdentity(s.current)
}

// Set replaces the identity and notifies every listener on the caller
// goroutine. Listeners must not call Set.
func (s *IdentityState) Set(id *Identity) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	s.current = copyIdentity(id)
	fns := make([]IdentityListener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(copyIdentity(id))
	}
}

func (s *IdentityState) OnIdentityChange(fn IdentityListener) func() {
	s.deliverMu.Lock()
	s.mu.Lock()
	if s.listeners == nil {
		s.listeners = make(map[int]IdentityListener)
	}
	key := s.nextID
	s.nextID++
	s.listeners[key] = fn
	cur := copyIdentity(s.current)
	s.mu.Unlock()

	fn(cur)
	s.deliverMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, key)
			s.mu.Unlock()
		})
	}
}

func copyIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}
