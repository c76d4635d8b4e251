package emit

// Emitter receives observability events from workflow execution.
//
// Implementations should be non-blocking, thread-safe, and resilient:
// a slow or failing backend must never stall or crash the workflow.
// Common patterns are buffering, filtering, and fan-out to multiple
// backends.
type Emitter interface {
	// Emit sends one event to the configured backend. Emit must not
	// panic; errors are handled internally.
	Emit(event Event)
}

// MultiEmitter fans events out to several backends in order.
type MultiEmitter []Emitter

// Emit implements Emitter.
func (m MultiEmitter) Emit(event Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(event)
		}
	}
}
