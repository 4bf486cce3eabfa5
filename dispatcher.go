package asock

import "github.com/karagenc/actionsocket/internal/sync"

// Event name to subscribers, in subscription order.
// Duplicates are allowed.
type eventRegistry struct {
	mu     sync.Mutex
	events map[string]*handlerStore[*eventHandler]
}

func newEventRegistry() *eventRegistry {
	return &eventRegistry{events: make(map[string]*handlerStore[*eventHandler])}
}

func (r *eventRegistry) on(event string, handler *eventHandler, once bool) *Subscription {
	r.mu.Lock()
	store, ok := r.events[event]
	if !ok {
		store = newHandlerStore[*eventHandler]()
		r.events[event] = store
	}
	r.mu.Unlock()

	return &Subscription{
		event: event,
		store: store,
		entry: store.add(handler, once),
	}
}

func (r *eventRegistry) off(event string) {
	r.mu.Lock()
	store, ok := r.events[event]
	delete(r.events, event)
	r.mu.Unlock()
	if ok {
		store.offAll()
	}
}

func (r *eventRegistry) offAll() {
	r.mu.Lock()
	events := r.events
	r.events = make(map[string]*handlerStore[*eventHandler])
	r.mu.Unlock()
	for _, store := range events {
		store.offAll()
	}
}

func (r *eventRegistry) handlers(event string) []*eventHandler {
	r.mu.Lock()
	store, ok := r.events[event]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return store.getAll()
}

// Handle of a single On/Once registration.
type Subscription struct {
	event string
	store *handlerStore[*eventHandler]
	entry *handlerEntry[*eventHandler]
}

func (s *Subscription) Event() string { return s.event }

// Off removes this registration only. It returns false if it was
// already removed (by Off, OffEvent, OffAll or a once delivery).
func (s *Subscription) Off() bool {
	return s.store.off(s.entry)
}
