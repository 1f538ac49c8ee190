// Package coordinator drives a task from instruction to reviewed changes:
// budget the context, route, fan out to specialists, react to failures,
// resolve conflicts, gate the result, and record the outcome.
package coordinator

import (
	"context"
	"fmt"

	"github.com/sitewright/sitewright/internal/budget"
	"github.com/sitewright/sitewright/internal/lifecycle"
	"github.com/sitewright/sitewright/internal/llm"
	"github.com/sitewright/sitewright/internal/logging"
	"github.com/sitewright/sitewright/internal/memory"
	"github.com/sitewright/sitewright/internal/review"
	"github.com/sitewright/sitewright/internal/specialist"
	"github.com/sitewright/sitewright/pkg/models"
)

const (
	// defaultTokenCeiling bounds the file context sent to any one model call.
	defaultTokenCeiling = 4000
	// defaultMaxRounds bounds delegation rounds, including reaction-driven
	// retries. The reaction engine decides what to do; this decides when to
	// stop doing it.
	defaultMaxRounds = 3
)

// ErrCancelled is returned when the task's context is cancelled. No
// conflict resolution runs and no outcome is stored.
var ErrCancelled = fmt.Errorf("task cancelled")

// Coordinator owns the end-to-end execution of one task.
type Coordinator struct {
	completer llm.Completer
	registry  *specialist.Registry
	engine    *lifecycle.Engine
	gate      *review.Gate
	store     *memory.Store
	retriever *memory.Retriever
	backfill  *memory.Backfiller
	logger    *logging.SessionLogger

	tokenCeiling  int
	maxRounds     int
	projectID     string
	priorityFiles map[string]bool
	retrieveOpts  memory.RetrieveOptions
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMemory wires the outcome store, retriever and backfill queue.
func WithMemory(store *memory.Store, retriever *memory.Retriever, backfill *memory.Backfiller) Option {
	return func(c *Coordinator) {
		c.store = store
		c.retriever = retriever
		c.backfill = backfill
	}
}

// WithReviewGate sets the pre-apply review gate.
func WithReviewGate(gate *review.Gate) Option {
	return func(c *Coordinator) { c.gate = gate }
}

// WithReactionEngine sets the reaction rule engine.
func WithReactionEngine(engine *lifecycle.Engine) Option {
	return func(c *Coordinator) { c.engine = engine }
}

// WithLogger sets the session logger.
func WithLogger(logger *logging.SessionLogger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithTokenCeiling sets the context budget ceiling in tokens.
func WithTokenCeiling(ceiling int) Option {
	return func(c *Coordinator) { c.tokenCeiling = ceiling }
}

// WithMaxRounds bounds delegation rounds per task.
func WithMaxRounds(n int) Option {
	return func(c *Coordinator) { c.maxRounds = n }
}

// WithProjectID sets the project scope for memory operations.
func WithProjectID(id string) Option {
	return func(c *Coordinator) { c.projectID = id }
}

// WithPriorityFiles marks file IDs that are budgeted before all others.
func WithPriorityFiles(ids []string) Option {
	return func(c *Coordinator) {
		c.priorityFiles = make(map[string]bool, len(ids))
		for _, id := range ids {
			c.priorityFiles[id] = true
		}
	}
}

// WithRetrieveOptions tunes memory retrieval.
func WithRetrieveOptions(opts memory.RetrieveOptions) Option {
	return func(c *Coordinator) { c.retrieveOpts = opts }
}

// New creates a Coordinator over a model client and specialist registry.
func New(completer llm.Completer, registry *specialist.Registry, opts ...Option) *Coordinator {
	c := &Coordinator{
		completer:    completer,
		registry:     registry,
		engine:       lifecycle.NewEngine(lifecycle.DefaultRules(), lifecycle.PrecedenceAll),
		gate:         review.NewGate(nil),
		logger:       logging.NopLogger(),
		tokenCeiling: defaultTokenCeiling,
		maxRounds:    defaultMaxRounds,
		retrieveOpts: memory.DefaultRetrieveOptions(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Escalation is a user-facing message produced when reactions gave up on
// a specialist.
type Escalation struct {
	// Agent is the specialist that was escalated.
	Agent string
	// Message is the user-facing clarification request.
	Message string
	// LastError is the specialist's final failure reason, if any.
	LastError string
	// SuggestedAction is the concrete next step for the user.
	SuggestedAction string
}

// Result is the outcome of one coordinated task.
type Result struct {
	// Strategy is the routing decision that was executed.
	Strategy Strategy
	// Reasoning is the router's justification.
	Reasoning string
	// ClarificationOptions is populated when Strategy is clarify; nothing
	// else runs in that case.
	ClarificationOptions []models.ClarificationOption
	// Delegations lists the sub-task assignments issued under delegate and
	// hybrid strategies, one per specialist with at least one bound file.
	Delegations []models.Delegation
	// Changes are the accepted, reviewed changes ready to apply.
	Changes []models.CodeChange
	// Rejected are changes discarded by conflict resolution.
	Rejected []models.CodeChange
	// Review is the gate's verdict over the accepted changes.
	Review review.Review
	// Escalations lists specialists that exhausted their reactions.
	Escalations []Escalation
	// Lifecycle is the final per-specialist state.
	Lifecycle []models.SpecialistLifecycleRecord
	// Outcome classifies the overall result.
	Outcome models.OutcomeStatus
}

// Run executes one task end to end. selections optionally resolves
// conflicts explicitly (file name to winning change ID); nil accepts the
// first-submitted change per conflicted file.
func (c *Coordinator) Run(ctx context.Context, task models.Task, selections map[string]string) (*Result, error) {
	task.Files = budget.Fit(task.Files, budget.Options{
		Ceiling:     c.tokenCeiling,
		PriorityIDs: c.priorityFiles,
	})

	c.attachMemoryContext(ctx, &task)

	routing, err := c.route(ctx, task)
	if err != nil {
		return nil, err
	}
	c.logger.Log("coordinator", "routed %q as %s (%v)", models.CapSummary(task.Instruction),
		routing.Strategy, routing.Specialists)

	result := &Result{Strategy: routing.Strategy, Reasoning: routing.Reasoning}

	if routing.Strategy == StrategyClarify {
		result.ClarificationOptions = routing.Options
		result.Outcome = models.OutcomePartial
		return result, nil
	}

	result.Delegations = c.delegationsFor(task, routing)

	tracker := lifecycle.NewTracker()
	proposed, escalations := c.runRounds(ctx, task, routing, tracker)
	result.Escalations = escalations
	result.Lifecycle = tracker.Records()

	if ctx.Err() != nil {
		return result, ErrCancelled
	}

	resolution := c.resolveConflicts(proposed, selections)
	result.Rejected = resolution.Rejected

	result.Review = c.gate.Run(ctx, task, resolution.Accepted)
	if result.Review.Approved {
		result.Changes = resolution.Accepted
		for i := range result.Changes {
			result.Changes[i].Status = models.ChangeStatusApproved
		}
	}

	result.Outcome = classifyOutcome(result)

	if ctx.Err() != nil {
		return result, ErrCancelled
	}
	c.recordOutcome(task, result, tracker)

	return result, nil
}

// attachMemoryContext fills task.MemoryContext from past outcomes.
// Retrieval trouble is logged and ignored.
func (c *Coordinator) attachMemoryContext(ctx context.Context, task *models.Task) {
	if c.retriever == nil || task.MemoryContext != "" {
		return
	}
	outcomes, err := c.retriever.RetrieveSimilar(ctx, c.projectID, task.Instruction, c.retrieveOpts)
	if err != nil {
		c.logger.Log("memory", "retrieval failed: %v", err)
		return
	}
	task.MemoryContext = memory.FormatForPrompt(outcomes, timeNow(), c.retrieveOpts)
}

// recordOutcome stores the task outcome and queues its embedding.
// Best-effort: storage failure is logged, never surfaced.
func (c *Coordinator) recordOutcome(task models.Task, result *Result, tracker *lifecycle.Tracker) {
	if c.store == nil {
		return
	}

	outcome := &models.TaskOutcome{
		ProjectID:    c.projectID,
		TaskSummary:  models.CapSummary(task.Instruction),
		Strategy:     string(result.Strategy),
		Outcome:      result.Outcome,
		FilesChanged: changedFileNames(result.Changes),
		ToolSequence: agentSequence(tracker.Records()),
	}
	if err := c.store.SaveOutcome(outcome); err != nil {
		c.logger.Log("memory", "outcome save failed: %v", err)
		return
	}
	if c.backfill != nil {
		c.backfill.Enqueue(outcome)
	}

	// A successful task reinforces the preferences that were in play.
	if result.Outcome == models.OutcomeSuccess {
		for category, pref := range task.Preferences {
			if _, err := c.store.ObservePreference(c.projectID, category, pref); err != nil {
				c.logger.Log("memory", "preference observation failed: %v", err)
			}
		}
	}
}

// classifyOutcome consults the lifecycle records as well as the
// escalation list: a specialist that settled in failed or
// completed_no_changes is an unresolved failure even when no escalate
// rule fired.
func classifyOutcome(result *Result) models.OutcomeStatus {
	anyFailed := false
	anyIdle := false
	for _, rec := range result.Lifecycle {
		switch rec.State {
		case models.SpecialistFailed:
			anyFailed = true
		case models.SpecialistCompletedNoChanges:
			anyIdle = true
		}
	}

	switch {
	case len(result.Changes) == 0 && (len(result.Escalations) > 0 || anyFailed || anyIdle):
		return models.OutcomeFailure
	case !result.Review.Approved || len(result.Escalations) > 0 || anyFailed:
		return models.OutcomePartial
	default:
		return models.OutcomeSuccess
	}
}

func changedFileNames(changes []models.CodeChange) []string {
	seen := make(map[string]bool)
	var names []string
	for _, c := range changes {
		if !seen[c.FileName] {
			seen[c.FileName] = true
			names = append(names, c.FileName)
		}
	}
	return names
}

func agentSequence(records []models.SpecialistLifecycleRecord) []string {
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Agent)
	}
	return names
}
