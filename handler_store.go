package asock

import "github.com/karagenc/actionsocket/internal/sync"

// Ordered list of handlers. Handlers registered with once
// are removed the first time getAll returns them.
type handlerStore[T any] struct {
	mu      sync.Mutex
	entries []*handlerEntry[T]
}

type handlerEntry[T any] struct {
	handler T
	once    bool
}

func newHandlerStore[T any]() *handlerStore[T] {
	return new(handlerStore[T])
}

func (s *handlerStore[T]) add(handler T, once bool) *handlerEntry[T] {
	e := &handlerEntry[T]{handler: handler, once: once}
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
	return e
}

func (s *handlerStore[T]) on(handler T) *handlerEntry[T] { return s.add(handler, false) }

func (s *handlerStore[T]) once(handler T) *handlerEntry[T] { return s.add(handler, true) }

// Remove a single registration. Returns false if it was already removed.
func (s *handlerStore[T]) off(e *handlerEntry[T]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, entry := range s.entries {
		if entry == e {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (s *handlerStore[T]) offAll() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
}

func (s *handlerStore[T]) getAll() (handlers []T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) == 0 {
		return nil
	}
	handlers = make([]T, 0, len(s.entries))
	remaining := s.entries[:0:0]
	for _, e := range s.entries {
		handlers = append(handlers, e.handler)
		if !e.once {
			remaining = append(remaining, e)
		}
	}
	s.entries = remaining
	return
}

func (s *handlerStore[T]) forEach(f func(handler T)) {
	for _, handler := range s.getAll() {
		f(handler)
	}
}
