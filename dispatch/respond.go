package dispatch

import (
	"context"

	"github.com/fleetops/dispatchflow/flow"
)

// RespondNode is the terminal responder. Every path through the graph
// ends here; it fills in a response when no upstream node produced one
// and phrases the denial of a cancelled notification.
type RespondNode struct{}

// NewRespondNode creates the responder.
func NewRespondNode() *RespondNode {
	return &RespondNode{}
}

// Execute implements flow.Node.
func (n *RespondNode) Execute(_ context.Context, st flow.State) flow.NodeResult {
	update := flow.Update{}

	switch {
	case st.Approved != nil && !*st.Approved && st.PendingAction != nil:
		update[flow.KeyResponseText] = "Understood, the notification was not sent."
	case st.ResponseText == "":
		update[flow.KeyResponseText] = "I can help with driver selection, notifications, compliance questions, and plan status. What do you need?"
	}

	return flow.NodeResult{Update: update}
}
