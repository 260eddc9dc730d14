package workflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	store     StoreAPI
	approvals OpenApprovalCounter
	fallback  ApprovalChain
}

// NewService wires the rule store. fallback is the chain used when no
// active rule matches a request.
func NewService(store StoreAPI, approvals OpenApprovalCounter, fallback ApprovalChain) *Service {
	return &Service{store: store, approvals: approvals, fallback: fallback.Clone()}
}

func (s *Service) Fallback() ApprovalChain {
	return s.fallback.Clone()
}

func (s *Service) ListRules(ctx context.Context, tenantID string) ([]Rule, error) {
	return s.store.ListRules(ctx, tenantID)
}

func (s *Service) GetRule(ctx context.Context, tenantID, ruleID string) (Rule, error) {
	if _, err := uuid.Parse(ruleID); err != nil {
		return Rule{}, ErrNotFound
	}
	return s.store.GetRule(ctx, tenantID, ruleID)
}

func (s *Service) CreateRule(ctx context.Context, tenantID string, rule Rule) (Rule, error) {
	rule = Normalize(rule)
	if err := Validate(rule); err != nil {
		return Rule{}, err
	}
	created, err := s.store.CreateRule(ctx, tenantID, rule)
	if err != nil {
		return Rule{}, fmt.Errorf("create rule: %w", err)
	}
	return created, nil
}

func (s *Service) UpdateRule(ctx context.Context, tenantID, ruleID string, patch RulePatch) (Rule, error) {
	current, err := s.GetRule(ctx, tenantID, ruleID)
	if err != nil {
		return Rule{}, err
	}
	next := Normalize(patch.Apply(current))
	if err := Validate(next); err != nil {
		return Rule{}, err
	}
	return s.store.UpdateRule(ctx, tenantID, next)
}

// SetActive is idempotent: activating an active rule returns it unchanged.
func (s *Service) SetActive(ctx context.Context, tenantID, ruleID string, active bool) (Rule, error) {
	current, err := s.GetRule(ctx, tenantID, ruleID)
	if err != nil {
		return Rule{}, err
	}
	if current.IsActive == active {
		return current, nil
	}
	return s.store.SetActive(ctx, tenantID, ruleID, active)
}

func (s *Service) DeleteRule(ctx context.Context, tenantID, ruleID string) error {
	if _, err := s.GetRule(ctx, tenantID, ruleID); err != nil {
		return err
	}
	if s.approvals != nil {
		open, err := s.approvals.CountOpenByRule(ctx, tenantID, ruleID)
		if err != nil {
			return fmt.Errorf("count open approvals: %w", err)
		}
		if open > 0 {
			return ErrRuleInUse
		}
	}
	return s.store.DeleteRule(ctx, tenantID, ruleID)
}

// Resolve picks the approval chain for a request.
func (s *Service) Resolve(ctx context.Context, tenantID string, req RequestAttributes) (Resolution, error) {
	rules, err := s.store.ListRules(ctx, tenantID)
	if err != nil {
		return Resolution{}, fmt.Errorf("list rules: %w", err)
	}
	return s.resolve(req, rules), nil
}

func (s *Service) resolve(req RequestAttributes, rules []Rule) Resolution {
	if rule, ok := Match(req, rules); ok {
		return Resolution{
			RuleID:                  rule.ID,
			RuleName:                rule.Name,
			Chain:                   rule.ApprovalLevels.Clone(),
			SkipDuplicateSignatures: rule.SkipDuplicateSignatures,
		}
	}
	return Resolution{Chain: s.fallback.Clone(), Fallback: true}
}

type TestResult struct {
	Resolution Resolution  `json:"resolution"`
	Trace      []RuleTrace `json:"trace"`
}

// Test resolves req and explains the decision without side effects.
func (s *Service) Test(ctx context.Context, tenantID string, req RequestAttributes) (TestResult, error) {
	rules, err := s.store.ListRules(ctx, tenantID)
	if err != nil {
		return TestResult{}, fmt.Errorf("list rules: %w", err)
	}
	return TestResult{Resolution: s.resolve(req, rules), Trace: Explain(req, rules)}, nil
}
