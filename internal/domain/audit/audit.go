package audit

import (
	"context"
	"encoding/json"
	"time"
)

const (
	ActionRuleCreate        = "workflow_rule.create"
	ActionRuleUpdate        = "workflow_rule.update"
	ActionRuleActivate      = "workflow_rule.activate"
	ActionRuleDeactivate    = "workflow_rule.deactivate"
	ActionRuleDelete        = "workflow_rule.delete"
	ActionEscalationUpdate  = "escalation_settings.update"
	ActionEscalationSweep   = "escalation.sweep"
	ActionApprovalSubmit    = "approval.submit"
	ActionApprovalApprove   = "approval.approve"
	ActionApprovalReject    = "approval.reject"
	ActionApproverSave      = "approver.save"
	ActionApproverDelete    = "approver.delete"
	ActionDelegationCreate  = "delegation.create"
	ActionDelegationRevoke  = "delegation.revoke"
	ActionAbsenceCreate     = "absence.create"
	ActionAbsenceDelete     = "absence.delete"
	ActionNotificationsSave = "notification_settings.update"
)

// Entity types recorded against audit events.
const (
	EntityWorkflowRule         = "workflow_rule"
	EntityEscalationSettings   = "escalation_settings"
	EntityEscalationSweep      = "escalation_sweep"
	EntityApproval             = "approval"
	EntityApprover             = "approver"
	EntityDelegation           = "delegation"
	EntityAbsence              = "absence"
	EntityNotificationSettings = "notification_settings"
)

// EntityTypes lists every entity type in the order the API documents them.
var EntityTypes = []string{
	EntityWorkflowRule, EntityEscalationSettings, EntityEscalationSweep, EntityApproval,
	EntityApprover, EntityDelegation, EntityAbsence, EntityNotificationSettings,
}

type Event struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actorId"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	RequestID  string          `json:"requestId"`
	IP         string          `json:"ip"`
	CreatedAt  time.Time       `json:"createdAt"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

// Filter narrows a listing. Zero fields match everything; Since is
// inclusive and Until exclusive.
type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	ActorUser  string
	Since      time.Time
	Until      time.Time
}

type StoreAPI interface {
	Insert(ctx context.Context, tenantID string, evt Event) error
	Count(ctx context.Context, tenantID string, filter Filter) (int, error)
	List(ctx context.Context, tenantID string, filter Filter, includeDetails bool, limit, offset int) ([]Event, error)
}

type Service struct {
	store StoreAPI
}

func New(store StoreAPI) *Service {
	return &Service{store: store}
}

func (s *Service) Record(ctx context.Context, tenantID, actorID, action, entityType, entityID, requestID, ip string, before, after any) error {
	evt := Event{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		RequestID:  requestID,
		IP:         ip,
	}
	if before != nil {
		payload, err := json.Marshal(before)
		if err != nil {
			return err
		}
		evt.Before = payload
	}
	if after != nil {
		payload, err := json.Marshal(after)
		if err != nil {
			return err
		}
		evt.After = payload
	}
	return s.store.Insert(ctx, tenantID, evt)
}

func (s *Service) Count(ctx context.Context, tenantID string, filter Filter) (int, error) {
	return s.store.Count(ctx, tenantID, filter)
}

func (s *Service) List(ctx context.Context, tenantID string, filter Filter, includeDetails bool, limit, offset int) ([]Event, error) {
	return s.store.List(ctx, tenantID, filter, includeDetails, limit, offset)
}
