package workflow

import (
	"errors"
	"strings"
)

var (
	ErrNotFound    = errors.New("workflow rule not found")
	ErrRuleInUse   = errors.New("workflow rule is referenced by open approvals")
	ErrInvalidRule = errors.New("invalid workflow rule")
)

type FieldIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError lists every problem found in a rule. It matches
// ErrInvalidRule with errors.Is.
type ValidationError struct {
	Issues []FieldIssue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.Field+" "+issue.Reason)
	}
	return "invalid workflow rule: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRule }
