package lifecycle

import (
	"github.com/sitewright/sitewright/pkg/models"
)

// DecisionType classifies what the reaction engine decided.
type DecisionType string

const (
	// DecisionRetry re-runs the specialist with a narrower scope.
	DecisionRetry DecisionType = "retry"
	// DecisionInject adds an instruction to the specialist's next prompt.
	DecisionInject DecisionType = "inject"
	// DecisionEscalate surfaces a clarification message to the user.
	DecisionEscalate DecisionType = "escalate"
)

// Decision is one corrective action produced by rule evaluation.
type Decision struct {
	// RuleID identifies the rule that fired.
	RuleID string `json:"rule_id"`
	// Agent is the specialist the decision applies to.
	Agent string `json:"agent"`
	// Type classifies the corrective action.
	Type DecisionType `json:"type"`
	// Instruction carries the narrowed scope, injected text, or
	// user-facing message, depending on Type.
	Instruction string `json:"instruction"`
}

// PrecedencePolicy controls how many matching rules may fire per trigger.
// Rule precedence is deliberately configurable rather than hardcoded to
// declaration order.
type PrecedencePolicy string

const (
	// PrecedenceAll fires every matching rule and returns the full
	// decision list in declaration order.
	PrecedenceAll PrecedencePolicy = "all"
	// PrecedenceFirst stops after the first rule that yields a decision.
	PrecedenceFirst PrecedencePolicy = "first"
)

// Engine evaluates reaction rules against specialist terminal states.
type Engine struct {
	rules  []models.ReactionRule
	policy PrecedencePolicy
}

// NewEngine creates an Engine over the given rule set. An empty policy
// defaults to PrecedenceAll.
func NewEngine(rules []models.ReactionRule, policy PrecedencePolicy) *Engine {
	if policy == "" {
		policy = PrecedenceAll
	}
	return &Engine{rules: rules, policy: policy}
}

// Rules returns the engine's rule set.
func (e *Engine) Rules() []models.ReactionRule {
	return e.rules
}

// Evaluate runs every enabled rule matching the trigger against the
// record and returns the resulting decisions.
//
// Retry rules fire while retries <= MaxRetries; escalate rules fire once
// retries exceed MaxRetries; inject rules fire whenever matched. Under
// PrecedenceFirst only the first decision is returned.
func (e *Engine) Evaluate(trigger models.ReactionTrigger, rec models.SpecialistLifecycleRecord) []Decision {
	var decisions []Decision

	for _, rule := range e.rules {
		if !rule.Enabled || rule.Trigger != trigger {
			continue
		}

		decision, fired := evaluateRule(rule, rec)
		if !fired {
			continue
		}
		decisions = append(decisions, decision)
		if e.policy == PrecedenceFirst {
			break
		}
	}

	return decisions
}

// evaluateRule applies one rule's retry-count gate and returns its decision.
func evaluateRule(rule models.ReactionRule, rec models.SpecialistLifecycleRecord) (Decision, bool) {
	decision := Decision{
		RuleID:      rule.ID,
		Agent:       rec.Agent,
		Instruction: rule.Instruction,
	}

	switch rule.Action {
	case models.ActionRetryNarrowScope:
		if rec.Retries > rule.MaxRetries {
			return Decision{}, false
		}
		decision.Type = DecisionRetry
		return decision, true

	case models.ActionInjectInstruction:
		decision.Type = DecisionInject
		return decision, true

	case models.ActionEscalateClarification:
		if rec.Retries <= rule.MaxRetries {
			return Decision{}, false
		}
		decision.Type = DecisionEscalate
		return decision, true

	default:
		return Decision{}, false
	}
}

// DefaultRules returns the built-in rule set: one retry and one escalate
// rule for each of the failed and no-changes triggers. The stalled trigger
// ships with no default rule.
func DefaultRules() []models.ReactionRule {
	return []models.ReactionRule{
		{
			ID:          "retry-failed",
			Enabled:     true,
			Trigger:     models.TriggerSpecialistFailed,
			Action:      models.ActionRetryNarrowScope,
			MaxRetries:  1,
			Instruction: "Retry with a narrower scope: edit only the files named in the task and make the smallest change that satisfies it.",
		},
		{
			ID:          "escalate-failed",
			Enabled:     true,
			Trigger:     models.TriggerSpecialistFailed,
			Action:      models.ActionEscalateClarification,
			MaxRetries:  1,
			Instruction: "The specialist kept failing on this task. Can you clarify what should change, or pick a smaller part to start with?",
		},
		{
			ID:          "retry-no-changes",
			Enabled:     true,
			Trigger:     models.TriggerSpecialistNoChanges,
			Action:      models.ActionRetryNarrowScope,
			MaxRetries:  1,
			Instruction: "The previous attempt proposed no edits. Focus on the single most relevant file and propose a concrete change.",
		},
		{
			ID:          "escalate-no-changes",
			Enabled:     true,
			Trigger:     models.TriggerSpecialistNoChanges,
			Action:      models.ActionEscalateClarification,
			MaxRetries:  1,
			Instruction: "No changes were produced after retrying. Should this part of the request be skipped, or described differently?",
		},
	}
}
