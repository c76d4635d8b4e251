package intent

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// Heuristic is a deterministic keyword classifier.
//
// It exists for two reasons: as the fallback when an LLM classifier
// errors out, and as the only classifier in tests and offline
// deployments. Confidence never exceeds DegradedConfidence so callers
// can tell a heuristic result from a model result.
type Heuristic struct{}

// NewHeuristic creates a Heuristic classifier.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

var countPattern = regexp.MustCompile(`\b(\d+)\s+(?:driver|drivers|vehicle|vehicles|truck|trucks)\b`)

// keywordRules are checked in order; the first intent with a keyword hit
// wins. Communication outranks selection because "notify the selected
// drivers" mentions both.
var keywordRules = []struct {
	intent   string
	keywords []string
}{
	{Communication, []string{"notify", "message", "tell", "send", "alert", "inform", "text "}},
	{Selection, []string{"select", "assign", "pick", "choose", "find driver", "need driver", "staff"}},
	{Compliance, []string{"hours", "compliance", "legal", "limit", "rest period", "overtime", "violation"}},
	{PlanQuery, []string{"plan", "schedule", "roster", "who is", "status", "show me"}},
}

// Classify implements Classifier. It never fails.
func (h *Heuristic) Classify(_ context.Context, message string, _ []string) (Result, error) {
	lower := strings.ToLower(message)

	res := Result{Intent: Unknown, Confidence: 0.1}
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				res.Intent = rule.intent
				res.Confidence = DegradedConfidence
				break
			}
		}
		if res.Intent != Unknown {
			break
		}
	}

	if m := countPattern.FindStringSubmatch(lower); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			if res.Params == nil {
				res.Params = make(map[string]any)
			}
			res.Params["count"] = n
		}
	}
	return res, nil
}
