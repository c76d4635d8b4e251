// Package intent classifies user messages into dispatch intents.
//
// The workflow's entry router consumes a Classifier; LLM-backed
// implementations (Anthropic, OpenAI, Google) are expected to fail
// sometimes, so the router always keeps a deterministic Heuristic as
// fallback.
package intent

import "context"

// Known intents produced by classifiers. Domain nodes are registered per
// intent; anything else routes to the default responder.
const (
	Selection     = "selection"     // pick drivers for a plan
	Communication = "communication" // notify drivers (approval-gated)
	Compliance    = "compliance"    // hours/compliance questions
	PlanQuery     = "plan_query"    // questions about the active plan
	Unknown       = "unknown"
)

// DegradedConfidence is the ceiling reported when classification fell
// back to the local heuristic. Anything at or below this value signals a
// degraded classification to downstream consumers.
const DegradedConfidence = 0.3

// Result is a classification outcome. Intent is never empty.
type Result struct {
	Intent     string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Params     map[string]any `json:"params,omitempty"`
}

// Classifier turns a user message plus bounded history into an intent.
//
// Implementations must bound their own call latency (the executor does
// not enforce per-node timeouts) and should return an error rather than
// a fabricated intent when the backend misbehaves; the router handles
// the fallback.
type Classifier interface {
	Classify(ctx context.Context, message string, history []string) (Result, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, message string, history []string) (Result, error)

// Classify implements Classifier.
func (f ClassifierFunc) Classify(ctx context.Context, message string, history []string) (Result, error) {
	return f(ctx, message, history)
}
