package workflow

import "sort"

// MatchRule returns the chain of the highest-priority active rule whose
// conditions all hold for req, or fallback when none does. Rules with equal
// priority keep their relative input order.
func MatchRule(req RequestAttributes, rules []Rule, fallback ApprovalChain) ApprovalChain {
	if rule, ok := Match(req, rules); ok {
		return rule.ApprovalLevels.Clone()
	}
	return fallback.Clone()
}

// Match reports the first satisfied rule in evaluation order.
func Match(req RequestAttributes, rules []Rule) (Rule, bool) {
	for _, rule := range evaluationOrder(rules) {
		if len(Failing(rule.Conditions.Predicates(), req)) == 0 {
			return rule, true
		}
	}
	return Rule{}, false
}

func evaluationOrder(rules []Rule) []Rule {
	active := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		if rule.IsActive {
			active = append(active, rule)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority > active[j].Priority
	})
	return active
}

type RuleTrace struct {
	RuleID     string          `json:"ruleId"`
	Name       string          `json:"name"`
	Priority   int             `json:"priority"`
	Active     bool            `json:"active"`
	Considered bool            `json:"considered"`
	Matched    bool            `json:"matched"`
	Failed     []PredicateKind `json:"failed,omitempty"`
}

// Explain walks rules the way Match does and records why each one did or
// did not apply. Inactive rules are listed last and never considered.
func Explain(req RequestAttributes, rules []Rule) []RuleTrace {
	ordered := evaluationOrder(rules)
	traces := make([]RuleTrace, 0, len(rules))
	matched := false
	for _, rule := range ordered {
		trace := RuleTrace{RuleID: rule.ID, Name: rule.Name, Priority: rule.Priority, Active: true}
		if !matched {
			trace.Considered = true
			trace.Failed = Failing(rule.Conditions.Predicates(), req)
			trace.Matched = len(trace.Failed) == 0
			matched = trace.Matched
		}
		traces = append(traces, trace)
	}
	for _, rule := range rules {
		if !rule.IsActive {
			traces = append(traces, RuleTrace{RuleID: rule.ID, Name: rule.Name, Priority: rule.Priority})
		}
	}
	return traces
}
