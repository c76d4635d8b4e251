package dispatch

import (
	"context"
	"fmt"

	"github.com/fleetops/dispatchflow/flow"
)

// PlanQueryNode answers questions about the active selection plan by
// reading it back from the domain context. It performs no repository or
// gateway calls; the checkpointed plan is the source of truth.
type PlanQueryNode struct{}

// NewPlanQueryNode creates the plan-query node.
func NewPlanQueryNode() *PlanQueryNode {
	return &PlanQueryNode{}
}

// Execute implements flow.Node. Having no plan on record is a normal
// answer, not an error; only a corrupt domain payload fails the instance.
func (n *PlanQueryNode) Execute(_ context.Context, st flow.State) flow.NodeResult {
	var plan Plan
	ok, err := st.UnmarshalDomain(domainActivePlan, &plan)
	if err != nil {
		return flow.NodeResult{Err: fmt.Errorf("read active plan: %w", err)}
	}
	if !ok {
		return flow.NodeResult{Update: flow.Update{
			flow.KeyResponseText: "There is no active selection plan. Ask me to select drivers to create one.",
		}}
	}

	text := fmt.Sprintf("The active plan %s has %d drivers.", plan.PlanID, len(plan.Drivers))
	if plan.Requested > 0 {
		text = fmt.Sprintf("The active plan %s has %d of the %d requested drivers.",
			plan.PlanID, len(plan.Drivers), plan.Requested)
	}

	return flow.NodeResult{Update: flow.Update{
		flow.KeyResponseText: text,
		flow.KeyResponseData: planResponseData(plan),
	}}
}
