package flow

import "context"

// Node is a processing unit in the workflow graph. It receives the
// current state, performs work (possibly calling external collaborators),
// and returns a partial update plus an optional routing hint.
//
// Contract:
//   - Nodes never mutate the received state or any shared process state;
//     all effects go through the returned Update or idempotent tools.
//   - Nodes must be idempotent with respect to re-execution on identical
//     input state: the executor re-runs the current node after crash
//     recovery if the post-execution checkpoint was not persisted.
//   - Domain-level problems (no matching drivers, empty result sets) are
//     not errors: encode them as a populated "errors" entry plus a
//     response and terminate normally. Err is reserved for
//     infrastructure failures (store down, collaborator unreachable),
//     which fail the instance.
type Node interface {
	Execute(ctx context.Context, st State) NodeResult
}

// NodeResult is the output of one node execution.
type NodeResult struct {
	// Update is the partial state change to merge. May be nil.
	Update Update

	// Next is an optional routing hint. The zero value defers to the
	// graph's fixed edge or router for this node.
	Next Next

	// Err is an infrastructure-level failure. Setting it moves the
	// instance to FAILED.
	Err error
}

// Next is a node's routing hint.
//
// Hints take precedence over graph edges and routers. Suspension is only
// meaningful for nodes whose successor is router-determined: the router
// is re-invoked on resume with the approval decision folded into state.
type Next struct {
	// To routes directly to the named node.
	To string

	// Suspend stops execution at this node pending an approval decision.
	// The update must set a pending action.
	Suspend bool

	// Terminal stops execution and completes the instance.
	Terminal bool
}

// Goto returns a hint routing to the named node.
func Goto(node string) Next {
	return Next{To: node}
}

// Stop returns a hint that completes the instance.
func Stop() Next {
	return Next{Terminal: true}
}

// Suspend returns a hint that suspends the instance at an approval gate.
func Suspend() Next {
	return Next{Suspend: true}
}

// NodeFunc adapts a plain function to the Node interface.
type NodeFunc func(ctx context.Context, st State) NodeResult

// Execute implements Node.
func (f NodeFunc) Execute(ctx context.Context, st State) NodeResult {
	return f(ctx, st)
}
