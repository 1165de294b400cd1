package document

import "sync"

// EventKind identifies the kind of document event.
type EventKind int

const (
	// EventChange indicates the document text changed.
	EventChange EventKind = iota

	// EventSave indicates the document was saved.
	EventSave

	// EventClose indicates the document was closed.
	EventClose

	// EventScroll indicates the viewport scrolled.
	EventScroll

	// EventCursor indicates the cursor moved.
	EventCursor
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventChange:
		return "change"
	case EventSave:
		return "save"
	case EventClose:
		return "close"
	case EventScroll:
		return "scroll"
	case EventCursor:
		return "cursor"
	default:
		return "unknown"
	}
}

// Event is a document state change delivered to subscribers.
type Event struct {
	Kind EventKind
	Doc  Identity
}

// Observer is called when a document event occurs.
type Observer func(Event)

// Subscription is an active observer registration.
type Subscription struct {
	id   uint64
	feed *Feed
}

// Unsubscribe removes this subscription from its feed.
func (s *Subscription) Unsubscribe() {
	if s.feed != nil {
		s.feed.remove(s.id)
	}
}

// Feed delivers document events to registered observers.
// Delivery is synchronous, in subscription order.
type Feed struct {
	mu        sync.RWMutex
	observers map[uint64]Observer
	order     []uint64
	nextID    uint64
}

// NewFeed creates an empty event feed.
func NewFeed() *Feed {
	return &Feed{observers: make(map[uint64]Observer)}
}

// Subscribe registers an observer for all events on this feed.
func (f *Feed) Subscribe(fn Observer) *Subscription {
	if fn == nil {
		return &Subscription{}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := f.nextID
	f.observers[id] = fn
	f.order = append(f.order, id)

	return &Subscription{id: id, feed: f}
}

// Publish delivers an event to all observers.
func (f *Feed) Publish(ev Event) {
	f.mu.RLock()
	observers := make([]Observer, 0, len(f.order))
	for _, id := range f.order {
		if fn, ok := f.observers[id]; ok {
			observers = append(observers, fn)
		}
	}
	f.mu.RUnlock()

	// Observers run outside the lock so they may subscribe or unsubscribe.
	for _, fn := range observers {
		fn(ev)
	}
}

// remove drops a subscription by id.
func (f *Feed) remove(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.observers, id)
	for i, oid := range f.order {
		if oid == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

// Count returns the number of active subscriptions.
func (f *Feed) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.observers)
}
