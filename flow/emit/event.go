// Package emit provides pluggable observability for workflow execution.
package emit

// Event is an observability event emitted while a workflow instance
// advances: node completions, suspensions, resumes, terminal transitions.
type Event struct {
	// SessionID identifies the workflow instance.
	SessionID string

	// Step is the 1-indexed execution step within this invocation.
	// Zero for instance-level events (created, resumed, completed).
	Step int

	// Node is the node that produced this event. Empty for
	// instance-level events.
	Node string

	// Msg names the event ("node_completed", "suspended", ...).
	Msg string

	// Meta carries additional structured data. Common keys:
	//   - "status": checkpoint status after the event
	//   - "version": checkpoint version written
	//   - "duration_ms": node execution duration
	//   - "error": error details
	Meta map[string]interface{}
}

// Event messages emitted by the executor.
const (
	MsgSessionCreated = "session_created"
	MsgNodeCompleted  = "node_completed"
	MsgSuspended      = "suspended"
	MsgResumed        = "resumed"
	MsgCompleted      = "completed"
	MsgFailed         = "failed"
)
