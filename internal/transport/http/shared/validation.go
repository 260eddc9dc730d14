package shared

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"leaveflow/internal/transport/http/api"
)

// FieldIssue is one rejected input field. Responses list them under
// details.fields.
type FieldIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Validator collects every problem in a payload so a single 400 reports
// them all.
type Validator struct {
	issues []FieldIssue
}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Add(field, reason string) {
	v.issues = append(v.issues, FieldIssue{Field: field, Reason: reason})
}

func (v *Validator) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "is required")
		return false
	}
	return true
}

// OneOf accepts a blank value or one of allowed, ignoring case.
func (v *Validator) OneOf(field, value string, allowed ...string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	for _, candidate := range allowed {
		if strings.EqualFold(value, candidate) {
			return
		}
	}
	v.Add(field, "must be one of "+strings.Join(allowed, ", "))
}

// Email accepts a blank value or something shaped like local@domain.
func (v *Validator) Email(field, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	at := strings.LastIndex(value, "@")
	if at <= 0 || at == len(value)-1 || strings.ContainsAny(value, " \t") {
		v.Add(field, "must be an email address")
	}
}

// Date parses a required YYYY-MM-DD day or RFC3339 timestamp.
func (v *Validator) Date(field, raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		v.Add(field, "is required")
		return time.Time{}
	}
	if parsed, err := time.Parse(time.DateOnly, raw); err == nil {
		return parsed
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed
	}
	v.Add(field, "must be a date (YYYY-MM-DD) or RFC3339 timestamp")
	return time.Time{}
}

// Timestamp parses an optional RFC3339 value and returns fallback when raw
// is blank.
func (v *Validator) Timestamp(field, raw string, fallback time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		v.Add(field, "must be an RFC3339 timestamp")
		return fallback
	}
	return parsed
}

// NotBefore flags both fields when end precedes start. Zero times were
// already reported by Date and are skipped.
func (v *Validator) NotBefore(startField string, start time.Time, endField string, end time.Time) {
	if start.IsZero() || end.IsZero() || !end.Before(start) {
		return
	}
	v.Add(startField, "must be on or before "+endField)
	v.Add(endField, "must be on or after "+startField)
}

// Reject writes a validation_error response when any issue was collected.
func (v *Validator) Reject(w http.ResponseWriter, requestID string) bool {
	if len(v.issues) == 0 {
		return false
	}
	RejectIssues(w, requestID, v.issues)
	return true
}

// RejectIssues writes issues found by a domain layer, sorted by field.
func RejectIssues(w http.ResponseWriter, requestID string, issues []FieldIssue) {
	sorted := append([]FieldIssue(nil), issues...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Field < sorted[j].Field })
	api.FailWithDetails(w, http.StatusBadRequest, "validation_error", "payload validation failed",
		map[string]any{"fields": sorted}, requestID)
}
