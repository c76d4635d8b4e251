package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fleetops/dispatchflow/dispatch/drivers"
	"github.com/fleetops/dispatchflow/flow"
)

// Plan is the selection result carried in the domain context under
// "active_plan". Later turns (communication, plan queries) read it back.
type Plan struct {
	PlanID    string         `json:"plan_id"`
	Drivers   []PlanDriver   `json:"drivers"`
	Requested int            `json:"requested"`
	CreatedAt time.Time      `json:"created_at"`
	Params    map[string]any `json:"params,omitempty"`
}

// PlanDriver is one selected driver with its selection score.
type PlanDriver struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// PlanningNode selects and ranks drivers for the requested assignment.
//
// An empty match is a domain condition: the node records a domain_error
// entry and a plain-language response, and the workflow still completes.
// Only repository failures fail the instance.
type PlanningNode struct {
	repo drivers.Repository
}

// NewPlanningNode creates the planning node.
func NewPlanningNode(repo drivers.Repository) *PlanningNode {
	return &PlanningNode{repo: repo}
}

// Execute implements flow.Node.
func (n *PlanningNode) Execute(ctx context.Context, st flow.State) flow.NodeResult {
	q := drivers.Query{OrgID: st.OrgID}
	if count, ok := paramInt(st.Params, "count"); ok {
		q.Limit = count
	}
	if region, ok := st.Params["region"].(string); ok {
		q.Region = region
	}

	pool, err := n.repo.List(ctx, q)
	if err != nil {
		return flow.NodeResult{Err: fmt.Errorf("list drivers: %w", err)}
	}

	if len(pool) == 0 {
		return flow.NodeResult{Update: flow.Update{
			flow.KeyErrors: flow.StateError{
				Node:    NodePlanning,
				Code:    flow.CodeDomainError,
				Message: "no available drivers match the request",
			},
			flow.KeyResponseText: "No available drivers match your request right now.",
		}}
	}

	now := time.Now().UTC()
	plan := Plan{
		PlanID:    uuid.NewString(),
		Requested: q.Limit,
		CreatedAt: now,
		Params:    st.Params,
	}
	for _, d := range pool {
		plan.Drivers = append(plan.Drivers, PlanDriver{
			ID:    d.ID,
			Name:  d.Name,
			Score: drivers.Score(d, now),
		})
	}

	raw, err := flow.DomainPayload(plan)
	if err != nil {
		return flow.NodeResult{Err: err}
	}

	text := fmt.Sprintf("Selected %d drivers for the plan.", len(plan.Drivers))
	if q.Limit > 0 && len(plan.Drivers) < q.Limit {
		text = fmt.Sprintf("Only %d of the requested %d drivers are available; selected all of them.",
			len(plan.Drivers), q.Limit)
	}

	return flow.NodeResult{Update: flow.Update{
		flow.KeyDomain:       map[string]json.RawMessage{domainActivePlan: raw},
		flow.KeyResponseText: text,
		flow.KeyResponseData: planResponseData(plan),
	}}
}

// planResponseData shapes a plan for the caller-facing result: the
// ranked selection itself, not just its size. Shared with the plan-query
// node so both report the plan the same way.
func planResponseData(plan Plan) map[string]any {
	return map[string]any{
		"plan_id":      plan.PlanID,
		"driver_count": len(plan.Drivers),
		"drivers":      plan.Drivers,
	}
}

func paramInt(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
