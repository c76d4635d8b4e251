package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fleetops/dispatchflow/dispatch/notify"
	"github.com/fleetops/dispatchflow/flow"
)

// SendNotificationNode performs the approved notification exactly once.
//
// At-most-once across crash recovery and resume retries rests on two
// layers: the delivered action id recorded in response data short-circuits
// a re-run of this node, and the gateway de-duplicates on the action id
// (sent as the idempotency key) if the crash landed between the send and
// the next checkpoint.
type SendNotificationNode struct {
	gateway notify.Gateway
}

// NewSendNotificationNode creates the send node.
func NewSendNotificationNode(gateway notify.Gateway) *SendNotificationNode {
	return &SendNotificationNode{gateway: gateway}
}

// Execute implements flow.Node.
func (n *SendNotificationNode) Execute(ctx context.Context, st flow.State) flow.NodeResult {
	if st.PendingAction == nil {
		return flow.NodeResult{Err: fmt.Errorf("send reached without a pending action")}
	}

	if delivered, _ := st.ResponseData["delivered_action_id"].(string); delivered == st.PendingAction.ID {
		return flow.NodeResult{}
	}

	payload, err := json.Marshal(st.PendingAction.Payload)
	if err != nil {
		return flow.NodeResult{Err: fmt.Errorf("encode action payload: %w", err)}
	}

	delivery, err := n.gateway.Send(ctx, notify.Action{
		ID:      st.PendingAction.ID,
		Kind:    st.PendingAction.Kind,
		OrgID:   st.OrgID,
		Payload: payload,
	})
	if err != nil {
		return flow.NodeResult{Err: fmt.Errorf("send notification: %w", err)}
	}

	return flow.NodeResult{Update: flow.Update{
		flow.KeyResponseText: fmt.Sprintf("Notification sent to %d drivers.", delivery.Recipients),
		flow.KeyResponseData: map[string]any{
			"delivered_action_id": delivery.ActionID,
			"recipients":          delivery.Recipients,
		},
	}}
}
