package dispatch

import (
	"context"

	"github.com/fleetops/dispatchflow/dispatch/intent"
	"github.com/fleetops/dispatchflow/flow"
)

// RouterNode classifies the user message and records the intent into
// state. It never suspends and never fails the instance: when the
// configured classifier errors out it falls back to the deterministic
// heuristic and records a classification_fallback entry, so downstream
// nodes always see a non-empty intent.
type RouterNode struct {
	classifier intent.Classifier
	fallback   intent.Classifier
}

// NewRouterNode creates the router. classifier may be nil; the heuristic
// then handles everything directly (without a fallback entry).
func NewRouterNode(classifier intent.Classifier) *RouterNode {
	return &RouterNode{
		classifier: classifier,
		fallback:   intent.NewHeuristic(),
	}
}

// Execute implements flow.Node.
func (n *RouterNode) Execute(ctx context.Context, st flow.State) flow.NodeResult {
	update := flow.Update{}

	res, err := n.classify(ctx, st)
	if err != nil {
		// Heuristic never fails, so this is the degraded path, not an
		// infrastructure failure.
		res, _ = n.fallback.Classify(ctx, st.UserMessage, st.History)
		update[flow.KeyErrors] = flow.StateError{
			Node:    NodeRouter,
			Code:    flow.CodeClassificationFallback,
			Message: "classifier unavailable, heuristic fallback used: " + err.Error(),
		}
	}
	if res.Intent == "" {
		res.Intent = intent.Unknown
	}

	update[flow.KeyIntent] = res.Intent
	update[flow.KeyConfidence] = res.Confidence
	if len(res.Params) > 0 {
		update[flow.KeyParams] = res.Params
	}
	return flow.NodeResult{Update: update}
}

func (n *RouterNode) classify(ctx context.Context, st flow.State) (intent.Result, error) {
	if n.classifier == nil {
		return n.fallback.Classify(ctx, st.UserMessage, st.History)
	}
	return n.classifier.Classify(ctx, st.UserMessage, st.History)
}
