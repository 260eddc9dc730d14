package workflow

import (
	"strings"

	"github.com/shopspring/decimal"
)

type PredicateKind string

const (
	KindRoleIn        PredicateKind = "role_in"
	KindLeaveTypeIn   PredicateKind = "leave_type_in"
	KindDepartmentIn  PredicateKind = "department_in"
	KindDayCountRange PredicateKind = "day_count_range"
)

// Predicate is one compiled condition. Values is set for the *_in kinds,
// the bounds for day_count_range. Both bounds are exclusive.
type Predicate struct {
	Kind        PredicateKind    `json:"kind"`
	Values      []string         `json:"values,omitempty"`
	GreaterThan *decimal.Decimal `json:"greaterThan,omitempty"`
	LessThan    *decimal.Decimal `json:"lessThan,omitempty"`
}

// Predicates compiles conditions. Empty sets and absent bounds produce no
// predicate, so an empty Conditions matches every request.
func (c Conditions) Predicates() []Predicate {
	var preds []Predicate
	if values := normalizeSet(c.Roles); len(values) > 0 {
		preds = append(preds, Predicate{Kind: KindRoleIn, Values: values})
	}
	if values := normalizeSet(c.LeaveTypes); len(values) > 0 {
		preds = append(preds, Predicate{Kind: KindLeaveTypeIn, Values: values})
	}
	if values := normalizeSet(c.Departments); len(values) > 0 {
		preds = append(preds, Predicate{Kind: KindDepartmentIn, Values: values})
	}
	if c.DaysGreaterThan != nil || c.DaysLessThan != nil {
		preds = append(preds, Predicate{Kind: KindDayCountRange, GreaterThan: c.DaysGreaterThan, LessThan: c.DaysLessThan})
	}
	return preds
}

func Evaluate(p Predicate, req RequestAttributes) bool {
	switch p.Kind {
	case KindRoleIn:
		return containsFold(p.Values, req.Role)
	case KindLeaveTypeIn:
		return containsFold(p.Values, req.LeaveTypeCode)
	case KindDepartmentIn:
		return containsFold(p.Values, req.Department)
	case KindDayCountRange:
		if p.GreaterThan != nil && !req.DayCount.GreaterThan(*p.GreaterThan) {
			return false
		}
		if p.LessThan != nil && !req.DayCount.LessThan(*p.LessThan) {
			return false
		}
		return true
	default:
		return false
	}
}

// Failing returns the kinds of the predicates req does not satisfy.
func Failing(preds []Predicate, req RequestAttributes) []PredicateKind {
	var failed []PredicateKind
	for _, p := range preds {
		if !Evaluate(p, req) {
			failed = append(failed, p.Kind)
		}
	}
	return failed
}

func normalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = normalizeValue(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func normalizeValue(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

func containsFold(values []string, candidate string) bool {
	candidate = normalizeValue(candidate)
	if candidate == "" {
		return false
	}
	for _, v := range values {
		if v == candidate {
			return true
		}
	}
	return false
}
