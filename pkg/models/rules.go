package models

// ReactionTrigger identifies the specialist terminal condition a rule
// responds to.
type ReactionTrigger string

const (
	// TriggerSpecialistFailed fires when a specialist ends in failed state.
	TriggerSpecialistFailed ReactionTrigger = "specialist.failed"
	// TriggerSpecialistNoChanges fires when a specialist completes with
	// zero changes.
	TriggerSpecialistNoChanges ReactionTrigger = "specialist.no_changes"
	// TriggerSpecialistStalled is reserved for timeout-derived conditions.
	// No default rule binds it; it is an explicit extension point.
	TriggerSpecialistStalled ReactionTrigger = "specialist.stalled"
)

// Valid returns true if the trigger is a known value.
func (t ReactionTrigger) Valid() bool {
	switch t {
	case TriggerSpecialistFailed, TriggerSpecialistNoChanges, TriggerSpecialistStalled:
		return true
	default:
		return false
	}
}

// ReactionAction is the corrective action a rule prescribes.
type ReactionAction string

const (
	// ActionRetryNarrowScope retries the specialist with a narrower
	// scope instruction, bounded by the rule's MaxRetries.
	ActionRetryNarrowScope ReactionAction = "retry_with_narrow_scope"
	// ActionInjectInstruction appends an instruction to the specialist's
	// next prompt. Inject rules fire whenever matched, independent of
	// retry count.
	ActionInjectInstruction ReactionAction = "inject_instruction"
	// ActionEscalateClarification surfaces a user-facing clarification
	// message once retries are exhausted.
	ActionEscalateClarification ReactionAction = "escalate_clarification"
)

// Valid returns true if the action is a known value.
func (a ReactionAction) Valid() bool {
	switch a {
	case ActionRetryNarrowScope, ActionInjectInstruction, ActionEscalateClarification:
		return true
	default:
		return false
	}
}

// ReactionRule is a declarative policy mapping a specialist terminal state
// to a corrective action.
type ReactionRule struct {
	// ID is the unique rule identifier.
	ID string `json:"id" mapstructure:"id"`
	// Enabled gates rule evaluation; disabled rules never fire.
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	// Trigger is the condition this rule responds to.
	Trigger ReactionTrigger `json:"trigger" mapstructure:"trigger"`
	// Action is the corrective action to take.
	Action ReactionAction `json:"action" mapstructure:"action"`
	// MaxRetries bounds retry actions: a retry rule fires only while
	// retries <= MaxRetries, an escalate rule only once retries exceed it.
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`
	// Instruction is the text carried by the decision: the narrowed scope
	// for retries, the injected text for inject rules, or the user-facing
	// message for escalations.
	Instruction string `json:"instruction" mapstructure:"instruction"`
}
