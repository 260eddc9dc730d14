package escalation

import (
	"errors"
	"strings"
	"time"

	"leaveflow/internal/domain/directory"
)

var ErrInvalidConfig = errors.New("invalid escalation settings")

// Config holds one tenant's escalation settings. It is passed explicitly to
// the timer on every evaluation.
type Config struct {
	Enabled                bool       `json:"enabled"`
	EscalationTimeoutHours int        `json:"escalationTimeoutHours"`
	MaxEscalationLevels    int        `json:"maxEscalationLevels"`
	AutoApproveAfterMax    bool       `json:"autoApproveAfterMax"`
	ReminderHours          int        `json:"reminderHours"`
	SkipAbsentApprovers    bool       `json:"skipAbsentApprovers"`
	SkipIfDelegated        bool       `json:"skipIfDelegated"`
	UpdatedAt              *time.Time `json:"updatedAt,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:                true,
		EscalationTimeoutHours: 48,
		MaxEscalationLevels:    2,
		AutoApproveAfterMax:    false,
		ReminderHours:          24,
		SkipAbsentApprovers:    true,
		SkipIfDelegated:        true,
	}
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.EscalationTimeoutHours) * time.Hour
}

func (c Config) ReminderLead() time.Duration {
	return time.Duration(c.ReminderHours) * time.Hour
}

func (c Config) Policy() directory.Policy {
	return directory.Policy{SkipIfDelegated: c.SkipIfDelegated, SkipAbsent: c.SkipAbsentApprovers}
}

type FieldIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type ValidationError struct {
	Issues []FieldIssue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.Field+" "+issue.Reason)
	}
	return "invalid escalation settings: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidConfig }

func (c Config) Validate() error {
	var issues []FieldIssue
	if c.EscalationTimeoutHours < 1 {
		issues = append(issues, FieldIssue{Field: "escalationTimeoutHours", Reason: "must be at least 1"})
	}
	if c.MaxEscalationLevels < 0 {
		issues = append(issues, FieldIssue{Field: "maxEscalationLevels", Reason: "must not be negative"})
	}
	if c.ReminderHours < 0 {
		issues = append(issues, FieldIssue{Field: "reminderHours", Reason: "must not be negative"})
	} else if c.EscalationTimeoutHours >= 1 && c.ReminderHours >= c.EscalationTimeoutHours {
		issues = append(issues, FieldIssue{Field: "reminderHours", Reason: "must be less than escalationTimeoutHours"})
	}
	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

type ConfigPatch struct {
	Enabled                *bool `json:"enabled"`
	EscalationTimeoutHours *int  `json:"escalationTimeoutHours"`
	MaxEscalationLevels    *int  `json:"maxEscalationLevels"`
	AutoApproveAfterMax    *bool `json:"autoApproveAfterMax"`
	ReminderHours          *int  `json:"reminderHours"`
	SkipAbsentApprovers    *bool `json:"skipAbsentApprovers"`
	SkipIfDelegated        *bool `json:"skipIfDelegated"`
}

func (p ConfigPatch) Apply(c Config) Config {
	if p.Enabled != nil {
		c.Enabled = *p.Enabled
	}
	if p.EscalationTimeoutHours != nil {
		c.EscalationTimeoutHours = *p.EscalationTimeoutHours
	}
	if p.MaxEscalationLevels != nil {
		c.MaxEscalationLevels = *p.MaxEscalationLevels
	}
	if p.AutoApproveAfterMax != nil {
		c.AutoApproveAfterMax = *p.AutoApproveAfterMax
	}
	if p.ReminderHours != nil {
		c.ReminderHours = *p.ReminderHours
	}
	if p.SkipAbsentApprovers != nil {
		c.SkipAbsentApprovers = *p.SkipAbsentApprovers
	}
	if p.SkipIfDelegated != nil {
		c.SkipIfDelegated = *p.SkipIfDelegated
	}
	return c
}
