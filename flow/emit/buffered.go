package emit

import "sync"

// BufferedEmitter stores events in memory, organized by session, and
// provides query access for debugging, tests, and post-hoc analysis.
//
// All events are kept until cleared; for long-running production
// deployments prefer a persistent backend or periodic Clear calls.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // sessionID -> events
}

// HistoryFilter narrows History results. Set fields combine with AND.
type HistoryFilter struct {
	Node    string // filter by node (empty = any)
	Msg     string // filter by message (empty = any)
	MinStep *int   // inclusive lower bound (nil = none)
	MaxStep *int   // inclusive upper bound (nil = none)
}

// NewBufferedEmitter creates an empty BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: make(map[string][]Event)}
}

// Emit stores the event. Safe for concurrent use.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[event.SessionID] = append(b.events[event.SessionID], event)
}

// History returns a copy of all events for a session in emission order.
func (b *BufferedEmitter) History(sessionID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.events[sessionID]
	out := make([]Event, len(events))
	copy(out, events)
	return out
}

// HistoryWithFilter returns the session's events matching the filter.
func (b *BufferedEmitter) HistoryWithFilter(sessionID string, f HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	for _, ev := range b.events[sessionID] {
		if f.Node != "" && ev.Node != f.Node {
			continue
		}
		if f.Msg != "" && ev.Msg != f.Msg {
			continue
		}
		if f.MinStep != nil && ev.Step < *f.MinStep {
			continue
		}
		if f.MaxStep != nil && ev.Step > *f.MaxStep {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Clear drops all events for a session.
func (b *BufferedEmitter) Clear(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.events, sessionID)
}

// ClearAll drops every buffered event.
func (b *BufferedEmitter) ClearAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = make(map[string][]Event)
}
