package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fleetops/dispatchflow/dispatch/drivers"
	"github.com/fleetops/dispatchflow/flow"
)

// ComplianceReport summarizes weekly-hours standing for the org's pool,
// carried in the domain context under "compliance_report".
type ComplianceReport struct {
	Limit        float64  `json:"limit"`
	OverLimit    []string `json:"over_limit,omitempty"`
	NearLimit    []string `json:"near_limit,omitempty"` // above 80% of the limit
	DriversTotal int      `json:"drivers_total"`
}

// ComplianceNode answers driving-hours questions against the weekly
// hours accumulated per driver.
type ComplianceNode struct {
	repo drivers.Repository
}

// NewComplianceNode creates the compliance node.
func NewComplianceNode(repo drivers.Repository) *ComplianceNode {
	return &ComplianceNode{repo: repo}
}

// Execute implements flow.Node.
func (n *ComplianceNode) Execute(ctx context.Context, st flow.State) flow.NodeResult {
	hours, err := n.repo.WeeklyHours(ctx, st.OrgID)
	if err != nil {
		return flow.NodeResult{Err: fmt.Errorf("weekly hours: %w", err)}
	}

	report := ComplianceReport{
		Limit:        drivers.MaxWeeklyHours,
		DriversTotal: len(hours),
	}
	for id, h := range hours {
		switch {
		case h > drivers.MaxWeeklyHours:
			report.OverLimit = append(report.OverLimit, id)
		case h > drivers.MaxWeeklyHours*0.8:
			report.NearLimit = append(report.NearLimit, id)
		}
	}
	sort.Strings(report.OverLimit)
	sort.Strings(report.NearLimit)

	raw, err := flow.DomainPayload(report)
	if err != nil {
		return flow.NodeResult{Err: err}
	}

	var text string
	switch {
	case len(report.OverLimit) > 0:
		text = fmt.Sprintf("%d of %d drivers are over the %.0f hour weekly limit; %d more are approaching it.",
			len(report.OverLimit), report.DriversTotal, report.Limit, len(report.NearLimit))
	case len(report.NearLimit) > 0:
		text = fmt.Sprintf("No drivers are over the %.0f hour weekly limit, but %d of %d are approaching it.",
			report.Limit, len(report.NearLimit), report.DriversTotal)
	default:
		text = fmt.Sprintf("All %d drivers are within the %.0f hour weekly limit.",
			report.DriversTotal, report.Limit)
	}

	return flow.NodeResult{Update: flow.Update{
		flow.KeyDomain:       map[string]json.RawMessage{domainCompliance: raw},
		flow.KeyResponseText: text,
		flow.KeyResponseData: map[string]any{
			"over_limit": len(report.OverLimit),
			"near_limit": len(report.NearLimit),
		},
	}}
}
