package workflow

import (
	"fmt"
	"strings"
)

const (
	MaxPriority   = 10000
	maxNameLength = 200
)

// Normalize trims free text and upper-cases level roles so they line up with
// directory entries.
func Normalize(rule Rule) Rule {
	rule.Name = strings.TrimSpace(rule.Name)
	rule.Description = strings.TrimSpace(rule.Description)
	levels := make(ApprovalChain, len(rule.ApprovalLevels))
	for i, level := range rule.ApprovalLevels {
		levels[i] = ApprovalLevel{Role: normalizeRole(level.Role), Required: level.Required}
	}
	rule.ApprovalLevels = levels
	return rule
}

func Validate(rule Rule) error {
	var issues []FieldIssue
	add := func(field, reason string) {
		issues = append(issues, FieldIssue{Field: field, Reason: reason})
	}

	if strings.TrimSpace(rule.Name) == "" {
		add("name", "is required")
	} else if len(rule.Name) > maxNameLength {
		add("name", fmt.Sprintf("must be at most %d characters", maxNameLength))
	}
	if len(rule.ApprovalLevels) == 0 {
		add("approvalLevels", "must contain at least one level")
	}
	for i, level := range rule.ApprovalLevels {
		if strings.TrimSpace(level.Role) == "" {
			add(fmt.Sprintf("approvalLevels[%d].role", i), "is required")
		}
	}
	if rule.Priority > MaxPriority || rule.Priority < -MaxPriority {
		add("priority", fmt.Sprintf("must be between %d and %d", -MaxPriority, MaxPriority))
	}

	gt, lt := rule.Conditions.DaysGreaterThan, rule.Conditions.DaysLessThan
	if gt != nil && gt.IsNegative() {
		add("conditions.daysGreaterThan", "must not be negative")
	}
	if lt != nil && !lt.IsPositive() {
		add("conditions.daysLessThan", "must be positive")
	}
	if gt != nil && lt != nil && !gt.LessThan(*lt) {
		add("conditions.daysGreaterThan", "must be less than daysLessThan")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
