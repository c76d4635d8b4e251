// Package dispatch implements the conversational dispatch workflow: a
// router node classifies each message, domain nodes plan driver
// assignments, answer compliance and plan questions, and send driver
// notifications behind a human approval gate, and a terminal responder
// shapes the reply.
package dispatch

import (
	"fmt"

	"github.com/fleetops/dispatchflow/dispatch/drivers"
	"github.com/fleetops/dispatchflow/dispatch/intent"
	"github.com/fleetops/dispatchflow/dispatch/notify"
	"github.com/fleetops/dispatchflow/flow"
)

// Node names in the dispatch graph.
const (
	NodeRouter        = "router"
	NodePlanning      = "planning"
	NodeCompliance    = "compliance"
	NodeCommunication = "communication"
	NodePlanQuery     = "plan_query"
	NodeSend          = "send_notification"
	NodeRespond       = "respond"
)

// Domain context keys written by dispatch nodes.
const (
	domainActivePlan = "active_plan"
	domainCompliance = "compliance_report"
)

// Deps are the collaborators the dispatch graph needs. Classifier may be
// nil, in which case the heuristic handles all classification.
type Deps struct {
	Classifier intent.Classifier
	Drivers    drivers.Repository
	Gateway    notify.Gateway
}

// BuildGraph wires the dispatch topology:
//
//	router -(intent)-> planning ----------> respond -> End
//	                   compliance --------> respond
//	                   plan_query --------> respond
//	                   communication -(approval gate)
//	                        |-- approved --> send_notification -> respond
//	                        |-- denied ----> respond
func BuildGraph(deps Deps) (*flow.Graph, error) {
	if deps.Drivers == nil {
		return nil, fmt.Errorf("drivers repository is required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("notify gateway is required")
	}

	return flow.NewGraph().
		Add(NodeRouter, NewRouterNode(deps.Classifier)).
		Add(NodePlanning, NewPlanningNode(deps.Drivers)).
		Add(NodeCompliance, NewComplianceNode(deps.Drivers)).
		Add(NodeCommunication, NewCommunicationNode(deps.Drivers)).
		Add(NodePlanQuery, NewPlanQueryNode()).
		Add(NodeSend, NewSendNotificationNode(deps.Gateway)).
		Add(NodeRespond, NewRespondNode()).
		SetEntry(NodeRouter).
		Route(NodeRouter, IntentRouter).
		Connect(NodePlanning, NodeRespond).
		Connect(NodeCompliance, NodeRespond).
		Connect(NodePlanQuery, NodeRespond).
		Route(NodeCommunication, ApprovalRouter).
		Connect(NodeSend, NodeRespond).
		Connect(NodeRespond, flow.End).
		Build()
}

// IntentRouter maps the classified intent to its domain node. Anything
// unrecognized goes to the terminal responder; a missing handler is a
// conversational shortfall, never a workflow failure.
func IntentRouter(st flow.State) string {
	switch st.Intent {
	case intent.Selection:
		return NodePlanning
	case intent.Compliance:
		return NodeCompliance
	case intent.Communication:
		return NodeCommunication
	case intent.PlanQuery:
		return NodePlanQuery
	default:
		return NodeRespond
	}
}

// ApprovalRouter picks the successor of the communication gate once the
// decision has been folded into state. Only an explicit approval reaches
// the send node; nil or false falls through to the responder.
func ApprovalRouter(st flow.State) string {
	if st.Approved != nil && *st.Approved {
		return NodeSend
	}
	return NodeRespond
}
