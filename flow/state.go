// Package flow provides the durable, resumable workflow execution engine:
// a directed graph of named nodes driven by an executor that checkpoints
// state after every step and can suspend for out-of-band human approval.
package flow

import (
	"encoding/json"
	"fmt"
)

// maxHistory bounds the retained message history per session.
// Older entries are dropped from the front; most recent is last.
const maxHistory = 20

// Status is the lifecycle state of a workflow instance.
type Status string

const (
	// StatusRunning means the executor is (or may be) actively advancing
	// the instance. A persisted RUNNING checkpoint with no in-flight call
	// indicates an interrupted execution that is safe to re-drive.
	StatusRunning Status = "RUNNING"

	// StatusSuspended means the instance stopped at an approval gate and
	// is waiting for a Resume call. No in-process resource is held.
	StatusSuspended Status = "SUSPENDED"

	// StatusCompleted is terminal: the instance reached End.
	StatusCompleted Status = "COMPLETED"

	// StatusFailed is terminal: an unrecoverable error stopped the instance.
	StatusFailed Status = "FAILED"
)

// Terminal reports whether the status admits no further execution.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// PendingAction describes a side effect awaiting human confirmation.
// The ID doubles as the idempotency key for the downstream gateway, so a
// retried resume can never execute the action twice.
type PendingAction struct {
	// ID is a unique identifier for this action instance.
	ID string `json:"id"`

	// Kind names the action type (e.g. "sms", "push").
	Kind string `json:"kind"`

	// Payload is the action body, opaque to the executor.
	Payload map[string]any `json:"payload,omitempty"`
}

// StateError is a recoverable, non-fatal problem recorded during execution.
// Errors degrade the response; they never abort the graph.
type StateError struct {
	Node    string `json:"node"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes recorded into State.Errors.
const (
	// CodeClassificationFallback marks a degraded intent classification
	// (collaborator unavailable, heuristic fallback used).
	CodeClassificationFallback = "classification_fallback"

	// CodeDomainError marks a domain-level condition such as "no drivers
	// match criteria". The workflow still terminates normally.
	CodeDomainError = "domain_error"

	// CodeNodeFailure marks the infrastructure failure that moved the
	// instance to FAILED.
	CodeNodeFailure = "node_failure"
)

// State is the record carried through the graph. It is the single source
// of truth for a workflow instance and is immutable by convention: nodes
// never mutate it, they return an Update that the executor merges.
type State struct {
	// Identity. SessionID is the sole checkpoint key and never changes for
	// the lifetime of an instance.
	OrgID          string `json:"org_id"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	SessionID      string `json:"session_id"`

	// Input.
	UserMessage string   `json:"user_message"`
	History     []string `json:"history,omitempty"`

	// Routing.
	Intent     string         `json:"intent,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	Params     map[string]any `json:"params,omitempty"`

	// Domain context: payloads produced by domain nodes, opaque to the
	// executor, typed per node.
	Domain map[string]json.RawMessage `json:"domain,omitempty"`

	// Approval gate.
	RequiresApproval bool           `json:"requires_approval,omitempty"`
	ApprovalType     string         `json:"approval_type,omitempty"`
	PendingAction    *PendingAction `json:"pending_action,omitempty"`
	Approved         *bool          `json:"approved,omitempty"` // nil until resolved

	// Output.
	ResponseText string         `json:"response_text,omitempty"`
	ResponseData map[string]any `json:"response_data,omitempty"`
	Errors       []StateError   `json:"errors,omitempty"`
	NodeHistory  []string       `json:"node_history,omitempty"`
}

// Update is the partial state change returned by a node. Keys are the
// state field names below; unknown keys or wrongly typed values are a
// node-contract bug and fail the merge with ErrSchema.
//
// "errors", "history" and "node_history" are append-type: their values are
// concatenated onto the existing slices. Every other key replaces the
// previous value. Unspecified fields retain their prior values.
type Update map[string]any

// Update keys accepted by Merge.
const (
	KeyUserMessage      = "user_message"
	KeyHistory          = "history"
	KeyIntent           = "intent"
	KeyConfidence       = "confidence"
	KeyParams           = "params"
	KeyDomain           = "domain"
	KeyRequiresApproval = "requires_approval"
	KeyApprovalType     = "approval_type"
	KeyPendingAction    = "pending_action"
	KeyApproved         = "approved"
	KeyResponseText     = "response_text"
	KeyResponseData     = "response_data"
	KeyErrors           = "errors"
	KeyNodeHistory      = "node_history"
)

// Merge folds an Update into a copy of the state and returns the copy.
// It is total and side effect free: the receiver is never modified, and a
// failed merge leaves no partial result.
func (s State) Merge(u Update) (State, error) {
	out := s.clone()

	for key, val := range u {
		if err := out.apply(key, val); err != nil {
			return State{}, err
		}
	}
	return out, nil
}

func (s *State) apply(key string, val any) error {
	switch key {
	case KeyUserMessage:
		v, ok := val.(string)
		if !ok {
			return schemaErr(key, "string", val)
		}
		s.UserMessage = v
	case KeyHistory:
		v, ok := toStringSlice(val)
		if !ok {
			return schemaErr(key, "[]string", val)
		}
		s.History = append(s.History, v...)
		if len(s.History) > maxHistory {
			s.History = s.History[len(s.History)-maxHistory:]
		}
	case KeyIntent:
		v, ok := val.(string)
		if !ok {
			return schemaErr(key, "string", val)
		}
		s.Intent = v
	case KeyConfidence:
		v, ok := toFloat(val)
		if !ok {
			return schemaErr(key, "float64", val)
		}
		s.Confidence = v
	case KeyParams:
		v, ok := val.(map[string]any)
		if !ok {
			return schemaErr(key, "map[string]any", val)
		}
		s.Params = v
	case KeyDomain:
		v, ok := val.(map[string]json.RawMessage)
		if !ok {
			return schemaErr(key, "map[string]json.RawMessage", val)
		}
		if s.Domain == nil {
			s.Domain = make(map[string]json.RawMessage, len(v))
		}
		for k, raw := range v {
			s.Domain[k] = raw
		}
	case KeyRequiresApproval:
		v, ok := val.(bool)
		if !ok {
			return schemaErr(key, "bool", val)
		}
		s.RequiresApproval = v
	case KeyApprovalType:
		v, ok := val.(string)
		if !ok {
			return schemaErr(key, "string", val)
		}
		s.ApprovalType = v
	case KeyPendingAction:
		switch v := val.(type) {
		case *PendingAction:
			s.PendingAction = v
		case nil:
			s.PendingAction = nil
		default:
			return schemaErr(key, "*PendingAction", val)
		}
	case KeyApproved:
		switch v := val.(type) {
		case *bool:
			s.Approved = v
		case bool:
			s.Approved = &v
		case nil:
			s.Approved = nil
		default:
			return schemaErr(key, "*bool", val)
		}
	case KeyResponseText:
		v, ok := val.(string)
		if !ok {
			return schemaErr(key, "string", val)
		}
		s.ResponseText = v
	case KeyResponseData:
		v, ok := val.(map[string]any)
		if !ok {
			return schemaErr(key, "map[string]any", val)
		}
		if s.ResponseData == nil {
			s.ResponseData = make(map[string]any, len(v))
		}
		for k, item := range v {
			s.ResponseData[k] = item
		}
	case KeyErrors:
		switch v := val.(type) {
		case []StateError:
			s.Errors = append(s.Errors, v...)
		case StateError:
			s.Errors = append(s.Errors, v)
		default:
			return schemaErr(key, "[]StateError", val)
		}
	case KeyNodeHistory:
		v, ok := toStringSlice(val)
		if !ok {
			return schemaErr(key, "[]string", val)
		}
		s.NodeHistory = append(s.NodeHistory, v...)
	default:
		return fmt.Errorf("%w: unknown update key %q", ErrSchema, key)
	}
	return nil
}

// clone returns a deep-enough copy: slices and maps are duplicated so that
// appends and key writes on the copy never alias the original.
func (s State) clone() State {
	out := s

	out.History = append([]string(nil), s.History...)
	out.NodeHistory = append([]string(nil), s.NodeHistory...)
	out.Errors = append([]StateError(nil), s.Errors...)

	if s.Params != nil {
		out.Params = make(map[string]any, len(s.Params))
		for k, v := range s.Params {
			out.Params[k] = v
		}
	}
	if s.Domain != nil {
		out.Domain = make(map[string]json.RawMessage, len(s.Domain))
		for k, v := range s.Domain {
			out.Domain[k] = v
		}
	}
	if s.ResponseData != nil {
		out.ResponseData = make(map[string]any, len(s.ResponseData))
		for k, v := range s.ResponseData {
			out.ResponseData[k] = v
		}
	}
	if s.Approved != nil {
		v := *s.Approved
		out.Approved = &v
	}
	if s.PendingAction != nil {
		pa := *s.PendingAction
		if s.PendingAction.Payload != nil {
			pa.Payload = make(map[string]any, len(s.PendingAction.Payload))
			for k, v := range s.PendingAction.Payload {
				pa.Payload[k] = v
			}
		}
		out.PendingAction = &pa
	}
	return out
}

// DomainPayload marshals v for carrying in the opaque domain context.
// Use inside a node:
//
//	raw, err := flow.DomainPayload(plan)
//	update[flow.KeyDomain] = map[string]json.RawMessage{"active_plan": raw}
func DomainPayload(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal domain payload: %w", err)
	}
	return json.RawMessage(data), nil
}

// UnmarshalDomain decodes a domain payload previously stored under key.
// Returns false if the key is absent.
func (s State) UnmarshalDomain(key string, v any) (bool, error) {
	raw, ok := s.Domain[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("unmarshal domain payload %q: %w", key, err)
	}
	return true, nil
}

func schemaErr(key, want string, got any) error {
	return fmt.Errorf("%w: key %q expects %s, got %T", ErrSchema, key, want, got)
}

func toStringSlice(val any) ([]string, bool) {
	switch v := val.(type) {
	case []string:
		return v, true
	case string:
		return []string{v}, true
	default:
		return nil, false
	}
}

func toFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
