package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueFields(t *testing.T, err error) []string {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	fields := make([]string, 0, len(verr.Issues))
	for _, issue := range verr.Issues {
		fields = append(fields, issue.Field)
	}
	return fields
}

func TestValidateAcceptsMinimalRule(t *testing.T) {
	assert.NoError(t, Validate(Rule{Name: "Default", ApprovalLevels: ChainFromRoles([]string{"MANAGER"})}))
}

func TestValidateRequiresNameAndLevels(t *testing.T) {
	err := Validate(Rule{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalidRule)
	assert.ElementsMatch(t, []string{"name", "approvalLevels"}, issueFields(t, err))
}

func TestValidateLevelRoles(t *testing.T) {
	err := Validate(Rule{Name: "x", ApprovalLevels: ApprovalChain{{Role: "HR"}, {Role: " "}}})
	assert.Equal(t, []string{"approvalLevels[1].role"}, issueFields(t, err))
}

func TestValidateDayBounds(t *testing.T) {
	err := Validate(Rule{Name: "x", ApprovalLevels: ChainFromRoles([]string{"HR"}), Conditions: Conditions{DaysGreaterThan: dec(5), DaysLessThan: dec(5)}})
	assert.Contains(t, issueFields(t, err), "conditions.daysGreaterThan")

	err = Validate(Rule{Name: "x", ApprovalLevels: ChainFromRoles([]string{"HR"}), Conditions: Conditions{DaysGreaterThan: dec(-1)}})
	assert.Contains(t, issueFields(t, err), "conditions.daysGreaterThan")
}

func TestValidatePriorityRange(t *testing.T) {
	err := Validate(Rule{Name: "x", ApprovalLevels: ChainFromRoles([]string{"HR"}), Priority: MaxPriority + 1})
	assert.Equal(t, []string{"priority"}, issueFields(t, err))
}

func TestNormalize(t *testing.T) {
	rule := Normalize(Rule{Name: "  Long leave ", ApprovalLevels: ApprovalChain{{Role: " hr ", Required: true}}})
	assert.Equal(t, "Long leave", rule.Name)
	assert.Equal(t, "HR", rule.ApprovalLevels[0].Role)
}

func TestNewRuleDefaultsToActive(t *testing.T) {
	assert.True(t, NewRule(RulePatch{}).IsActive)

	inactive := false
	assert.False(t, NewRule(RulePatch{IsActive: &inactive}).IsActive)
}
