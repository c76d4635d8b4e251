package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fleetops/dispatchflow/dispatch/drivers"
	"github.com/fleetops/dispatchflow/flow"
)

// ApprovalTypeNotification is the approval category raised by the
// communication gate.
const ApprovalTypeNotification = "driver_notification"

// CommunicationNode prepares a driver notification and suspends the
// instance for human approval. The action is built here but not sent;
// only an approved resume reaches the send node.
//
// Recipients come from the active plan when one exists, otherwise the
// org's full available pool.
type CommunicationNode struct {
	repo drivers.Repository
}

// NewCommunicationNode creates the communication gate node.
func NewCommunicationNode(repo drivers.Repository) *CommunicationNode {
	return &CommunicationNode{repo: repo}
}

// Execute implements flow.Node.
func (n *CommunicationNode) Execute(ctx context.Context, st flow.State) flow.NodeResult {
	recipients, source, err := n.recipients(ctx, st)
	if err != nil {
		return flow.NodeResult{Err: err}
	}

	if len(recipients) == 0 {
		return flow.NodeResult{Update: flow.Update{
			flow.KeyErrors: flow.StateError{
				Node:    NodeCommunication,
				Code:    flow.CodeDomainError,
				Message: "no recipients for notification",
			},
			flow.KeyResponseText: "There is nobody to notify right now.",
		}}
	}

	action := &flow.PendingAction{
		ID:   uuid.NewString(),
		Kind: ApprovalTypeNotification,
		Payload: map[string]any{
			"message":    st.UserMessage,
			"recipients": recipients,
			"source":     source,
		},
	}

	prompt := fmt.Sprintf("Send this notification to %d drivers (%s)? Reply with an approval decision.",
		len(recipients), source)

	return flow.NodeResult{
		Update: flow.Update{
			flow.KeyRequiresApproval: true,
			flow.KeyApprovalType:     ApprovalTypeNotification,
			flow.KeyPendingAction:    action,
			flow.KeyResponseText:     prompt,
		},
		Next: flow.Suspend(),
	}
}

// recipients resolves driver ids from the active plan, falling back to
// the whole available pool.
func (n *CommunicationNode) recipients(ctx context.Context, st flow.State) ([]string, string, error) {
	var plan Plan
	ok, err := st.UnmarshalDomain(domainActivePlan, &plan)
	if err != nil {
		return nil, "", err
	}
	if ok && len(plan.Drivers) > 0 {
		ids := make([]string, len(plan.Drivers))
		for i, d := range plan.Drivers {
			ids[i] = d.ID
		}
		return ids, "active plan", nil
	}

	pool, err := n.repo.List(ctx, drivers.Query{OrgID: st.OrgID})
	if err != nil {
		return nil, "", fmt.Errorf("list drivers: %w", err)
	}
	ids := make([]string, len(pool))
	for i, d := range pool {
		ids[i] = d.ID
	}
	return ids, "all available drivers", nil
}
