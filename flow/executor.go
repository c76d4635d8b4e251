package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fleetops/dispatchflow/flow/emit"
)

// Input carries a new user message into a workflow instance.
type Input struct {
	OrgID          string
	UserID         string
	ConversationID string
	Message        string
}

// Result is the caller-facing outcome of an Advance or Resume call.
type Result struct {
	SessionID        string         `json:"session_id"`
	Status           Status         `json:"status"`
	ResponseText     string         `json:"response_text"`
	ResponseData     map[string]any `json:"response_data,omitempty"`
	RequiresApproval bool           `json:"requires_approval"`
	ApprovalPrompt   string         `json:"approval_prompt,omitempty"`
	ApprovalType     string         `json:"approval_type,omitempty"`
	Errors           []StateError   `json:"errors,omitempty"`
	NodeHistory      []string       `json:"node_history,omitempty"`
}

// GraphInfo is the read-only introspection surface for diagnostics.
type GraphInfo struct {
	Entry   string   `json:"entry"`
	Nodes   []string `json:"nodes"`
	Version string   `json:"version"`
}

// Options configures Executor behavior. Zero values are valid.
type Options struct {
	// MaxSteps bounds node executions per invocation to break routing
	// loops. 0 uses DefaultMaxSteps.
	MaxSteps int

	// Metrics receives Prometheus observations. Optional.
	Metrics *Metrics
}

// DefaultMaxSteps is the per-invocation step budget when none is set.
const DefaultMaxSteps = 64

// Executor drives workflow instances through an immutable Graph,
// persisting a checkpoint after every step via atomic compare-and-swap.
//
// Each Advance or Resume call runs synchronously on the caller's
// goroutine; the executor spawns no background workers. Different
// sessions execute fully in parallel with no shared mutable state beyond
// the checkpoint store. A suspended instance holds no in-process
// resource: suspension is a persisted status, not a blocked call.
type Executor struct {
	graph   *Graph
	store   CheckpointStore
	emitter emit.Emitter
	opts    Options
}

// NewExecutor creates an Executor. The emitter may be nil.
func NewExecutor(g *Graph, st CheckpointStore, emitter emit.Emitter, opts Options) (*Executor, error) {
	if g == nil {
		return nil, fmt.Errorf("graph is required")
	}
	if st == nil {
		return nil, fmt.Errorf("checkpoint store is required")
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	return &Executor{graph: g, store: st, emitter: emitter, opts: opts}, nil
}

// GraphInfo exposes the node set and topology version.
func (e *Executor) GraphInfo() GraphInfo {
	return GraphInfo{
		Entry:   e.graph.Entry(),
		Nodes:   e.graph.Nodes(),
		Version: e.graph.Version(),
	}
}

// Advance feeds a user message into the session's workflow instance and
// runs it until a terminal node or an approval gate.
//
// A new session id creates a fresh instance. A RUNNING checkpoint means a
// previous invocation was interrupted before reaching a resting status;
// the message is folded into state and execution continues from the
// persisted position (nodes are idempotent, so re-running the current
// node is safe). A SUSPENDED instance rejects new messages with
// ErrAwaitingApproval; terminal instances reject with ErrSessionTerminal.
func (e *Executor) Advance(ctx context.Context, sessionID string, in Input) (Result, error) {
	if sessionID == "" {
		return Result{}, fmt.Errorf("session id is required")
	}

	cp, err := e.store.Load(ctx, sessionID)
	switch {
	case errors.Is(err, ErrNotFound):
		cp = Checkpoint{
			SessionID:   sessionID,
			Version:     0,
			Status:      StatusRunning,
			CurrentNode: e.graph.Entry(),
			State: State{
				OrgID:          in.OrgID,
				UserID:         in.UserID,
				ConversationID: in.ConversationID,
				SessionID:      sessionID,
				UserMessage:    in.Message,
				History:        []string{in.Message},
			},
		}
		e.emit(emit.Event{SessionID: sessionID, Msg: emit.MsgSessionCreated})
	case err != nil:
		return Result{}, fmt.Errorf("load checkpoint: %w", err)
	default:
		if cp.Status.Terminal() {
			return resultFrom(cp), fmt.Errorf("%w: session %s is %s", ErrSessionTerminal, sessionID, cp.Status)
		}
		if cp.Status == StatusSuspended {
			return resultFrom(cp), fmt.Errorf("%w: session %s", ErrAwaitingApproval, sessionID)
		}
		// Interrupted RUNNING instance: fold the message and re-drive
		// from the persisted position.
		if in.Message != "" {
			st, mergeErr := cp.State.Merge(Update{
				KeyUserMessage: in.Message,
				KeyHistory:     in.Message,
			})
			if mergeErr != nil {
				return Result{}, mergeErr
			}
			cp.State = st
		}
	}

	return e.run(ctx, &cp)
}

// Resume supplies the approval decision for a suspended session and
// continues execution from the suspension point.
//
// The decision is folded into state and persisted before any further
// node runs, then the suspended node's router is re-invoked with the
// updated state: the decision, not the graph topology, selects whether
// the gated action proceeds.
func (e *Executor) Resume(ctx context.Context, sessionID string, approved bool) (Result, error) {
	cp, err := e.store.Load(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return Result{}, fmt.Errorf("%w: %s", ErrNoSuchSession, sessionID)
	}
	if err != nil {
		return Result{}, fmt.Errorf("load checkpoint: %w", err)
	}

	if cp.Status != StatusSuspended {
		if cp.State.Approved != nil {
			return resultFrom(cp), fmt.Errorf("%w: session %s", ErrAlreadyResolved, sessionID)
		}
		return resultFrom(cp), fmt.Errorf("%w: session %s is not suspended", ErrNoSuchSession, sessionID)
	}

	st, err := cp.State.Merge(Update{
		KeyApproved:         approved,
		KeyRequiresApproval: false,
	})
	if err != nil {
		return Result{}, err
	}
	cp.State = st
	cp.Status = StatusRunning

	// Persisting the fold first makes the decision durable and, through
	// CAS, serializes racing Resume calls: exactly one proceeds.
	if err := e.persist(ctx, &cp); err != nil {
		return resultFrom(cp), err
	}
	e.emit(emit.Event{
		SessionID: sessionID,
		Node:      cp.CurrentNode,
		Msg:       emit.MsgResumed,
		Meta:      map[string]interface{}{"approved": approved},
	})
	if e.opts.Metrics != nil {
		e.opts.Metrics.IncResumes(approved)
	}

	router, ok := e.graph.router(cp.CurrentNode)
	if !ok {
		return e.fail(ctx, &cp, cp.CurrentNode,
			fmt.Errorf("%w: suspension point %q has no router", ErrRouting, cp.CurrentNode))
	}
	next := router(cp.State)
	if next == End {
		return e.complete(ctx, &cp)
	}
	if _, known := e.graph.Node(next); !known {
		return e.fail(ctx, &cp, cp.CurrentNode,
			fmt.Errorf("%w: router for %q returned unknown node %q", ErrRouting, cp.CurrentNode, next))
	}

	cp.CurrentNode = next
	return e.run(ctx, &cp)
}

// run is the execution loop. It owns all checkpoint writes for the
// invocation; any CAS conflict aborts with ErrConflict and leaves the
// stored checkpoint at its last-good version.
func (e *Executor) run(ctx context.Context, cp *Checkpoint) (Result, error) {
	step := 0
	for {
		step++
		if step > e.opts.MaxSteps {
			return e.fail(ctx, cp, cp.CurrentNode, ErrMaxSteps)
		}
		if err := ctx.Err(); err != nil {
			return resultFrom(*cp), err
		}

		name := cp.CurrentNode
		node, ok := e.graph.Node(name)
		if !ok {
			return e.fail(ctx, cp, name,
				fmt.Errorf("%w: node %q not registered", ErrRouting, name))
		}

		start := time.Now()
		res := node.Execute(ctx, cp.State)
		elapsed := time.Since(start)

		if res.Err != nil {
			if e.opts.Metrics != nil {
				e.opts.Metrics.ObserveNode(name, elapsed, "error")
			}
			return e.fail(ctx, cp, name, res.Err)
		}
		if e.opts.Metrics != nil {
			e.opts.Metrics.ObserveNode(name, elapsed, "success")
		}

		merged, err := cp.State.Merge(res.Update)
		if err != nil {
			return e.fail(ctx, cp, name, err)
		}
		merged.NodeHistory = append(merged.NodeHistory, name)
		cp.State = merged

		e.emit(emit.Event{
			SessionID: cp.SessionID,
			Step:      step,
			Node:      name,
			Msg:       emit.MsgNodeCompleted,
			Meta:      map[string]interface{}{"duration_ms": elapsed.Milliseconds()},
		})

		if res.Next.Suspend || cp.State.RequiresApproval {
			return e.suspend(ctx, cp, name)
		}

		next, err := e.resolveNext(name, res.Next, cp.State)
		if err != nil {
			return e.fail(ctx, cp, name, err)
		}
		if next == End {
			return e.complete(ctx, cp)
		}

		cp.CurrentNode = next
		cp.Status = StatusRunning
		if err := e.persist(ctx, cp); err != nil {
			return resultFrom(*cp), err
		}
	}
}

func (e *Executor) resolveNext(name string, hint Next, st State) (string, error) {
	switch {
	case hint.Terminal:
		return End, nil
	case hint.To != "":
		if hint.To == End {
			return End, nil
		}
		if _, known := e.graph.Node(hint.To); !known {
			return "", fmt.Errorf("%w: node %q routed to unknown node %q", ErrRouting, name, hint.To)
		}
		return hint.To, nil
	default:
		return e.graph.next(name, st)
	}
}

// suspend parks the instance at the approval gate. The current node stays
// at the suspending node so Resume can re-invoke its router.
func (e *Executor) suspend(ctx context.Context, cp *Checkpoint, name string) (Result, error) {
	if cp.State.PendingAction == nil {
		return e.fail(ctx, cp, name,
			fmt.Errorf("%w: approval requested without a pending action", ErrSchema))
	}

	cp.Status = StatusSuspended
	if err := e.persist(ctx, cp); err != nil {
		return resultFrom(*cp), err
	}
	e.emit(emit.Event{
		SessionID: cp.SessionID,
		Node:      name,
		Msg:       emit.MsgSuspended,
		Meta:      map[string]interface{}{"approval_type": cp.State.ApprovalType},
	})
	if e.opts.Metrics != nil {
		e.opts.Metrics.IncSuspensions()
	}
	return resultFrom(*cp), nil
}

func (e *Executor) complete(ctx context.Context, cp *Checkpoint) (Result, error) {
	cp.Status = StatusCompleted
	if err := e.persist(ctx, cp); err != nil {
		return resultFrom(*cp), err
	}
	e.emit(emit.Event{SessionID: cp.SessionID, Msg: emit.MsgCompleted})
	if e.opts.Metrics != nil {
		e.opts.Metrics.IncTerminal(StatusCompleted)
	}
	return resultFrom(*cp), nil
}

// fail records the cause into state, persists FAILED, and returns a
// best-effort result alongside the error. If even the FAILED write loses
// a CAS race the stored checkpoint is left as the winner wrote it.
func (e *Executor) fail(ctx context.Context, cp *Checkpoint, name string, cause error) (Result, error) {
	cp.State.Errors = append(cp.State.Errors, StateError{
		Node:    name,
		Code:    CodeNodeFailure,
		Message: cause.Error(),
	})
	cp.Status = StatusFailed
	if err := e.persist(ctx, cp); err != nil {
		return resultFrom(*cp), errors.Join(cause, err)
	}
	e.emit(emit.Event{
		SessionID: cp.SessionID,
		Node:      name,
		Msg:       emit.MsgFailed,
		Meta:      map[string]interface{}{"error": cause.Error()},
	})
	if e.opts.Metrics != nil {
		e.opts.Metrics.IncTerminal(StatusFailed)
	}
	return resultFrom(*cp), fmt.Errorf("node %s: %w", name, cause)
}

// persist writes the checkpoint at version+1 through compare-and-swap.
func (e *Executor) persist(ctx context.Context, cp *Checkpoint) error {
	expected := cp.Version
	cp.Version++
	cp.UpdatedAt = time.Now().UTC()

	err := e.store.CompareAndSwap(ctx, cp.SessionID, expected, *cp)
	if err == nil {
		return nil
	}
	cp.Version = expected
	if errors.Is(err, ErrVersionConflict) {
		if e.opts.Metrics != nil {
			e.opts.Metrics.IncConflicts()
		}
		return fmt.Errorf("%w: session %s at version %d", ErrConflict, cp.SessionID, expected)
	}
	return fmt.Errorf("persist checkpoint: %w", err)
}

func (e *Executor) emit(ev emit.Event) {
	if e.emitter != nil {
		e.emitter.Emit(ev)
	}
}

func resultFrom(cp Checkpoint) Result {
	r := Result{
		SessionID:        cp.SessionID,
		Status:           cp.Status,
		ResponseText:     cp.State.ResponseText,
		ResponseData:     cp.State.ResponseData,
		RequiresApproval: cp.State.RequiresApproval,
		ApprovalType:     cp.State.ApprovalType,
		Errors:           cp.State.Errors,
		NodeHistory:      cp.State.NodeHistory,
	}
	if cp.Status == StatusSuspended {
		r.ApprovalPrompt = cp.State.ResponseText
	}
	return r
}
