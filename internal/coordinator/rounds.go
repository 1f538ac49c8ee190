package coordinator

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sitewright/sitewright/internal/conflict"
	"github.com/sitewright/sitewright/internal/lifecycle"
	"github.com/sitewright/sitewright/internal/specialist"
	"github.com/sitewright/sitewright/pkg/models"
)

// timeNow is a test hook.
var timeNow = time.Now

// coordinatorAgent names the coordinator's own generalist worker in
// lifecycle records under self_handle and hybrid strategies.
const coordinatorAgent = "coordinator"

// runRounds fans the task out to the routed workers and drives the
// retry/inject/escalate loop until every worker settles or the round
// budget runs out. All proposed changes across rounds are returned in
// submission order.
func (c *Coordinator) runRounds(ctx context.Context, task models.Task, routing Routing, tracker *lifecycle.Tracker) ([]models.CodeChange, []Escalation) {
	workers := c.buildWorkers(task, routing)

	pending := make([]string, 0, len(workers))
	for _, agent := range workerOrder(routing) {
		if _, ok := workers[agent]; ok {
			pending = append(pending, agent)
		}
	}

	extras := make(map[string]string)
	var all []models.CodeChange
	var escalations []Escalation

	for round := 0; round < c.maxRounds && len(pending) > 0; round++ {
		if ctx.Err() != nil {
			return all, escalations
		}

		results := make([]specialist.Result, len(pending))
		errs := make([]error, len(pending))

		g, gctx := errgroup.WithContext(ctx)
		for i, agent := range pending {
			tracker.Enqueue(agent)
			i, agent := i, agent
			g.Go(func() error {
				tracker.MarkRunning(agent)
				results[i], errs[i] = workers[agent].Execute(gctx, task, extras[agent])
				// A worker failure settles through the lifecycle, it must
				// not cancel sibling workers.
				return nil
			})
		}
		g.Wait()

		var next []string
		for i, agent := range pending {
			if errs[i] != nil {
				tracker.MarkFailed(agent, errs[i].Error())
				c.logger.Log("coordinator", "%s failed: %v", agent, errs[i])
			} else {
				all = append(all, results[i].Changes...)
				tracker.MarkCompleted(agent, len(results[i].Changes))
			}

			rec, _ := tracker.Record(agent)
			trigger, ok := lifecycle.TriggerFor(rec.State)
			if !ok {
				continue
			}

			decisions := c.engine.Evaluate(trigger, rec)

			// A terminal failure with no matching rule at all still has to
			// reach the user.
			if len(decisions) == 0 && rec.State == models.SpecialistFailed {
				escalations = append(escalations, Escalation{
					Agent:           agent,
					Message:         "The specialist failed and no recovery rule applies. Review the error and rephrase or split the task.",
					LastError:       rec.LastError,
					SuggestedAction: suggestedAction(rec),
				})
			}

			retry := false
			escalated := false
			var injected []string
			for _, d := range decisions {
				switch d.Type {
				case lifecycle.DecisionRetry:
					retry = true
					if d.Instruction != "" {
						injected = append(injected, d.Instruction)
					}
				case lifecycle.DecisionInject:
					if d.Instruction != "" {
						injected = append(injected, d.Instruction)
					}
				case lifecycle.DecisionEscalate:
					escalated = true
					escalations = append(escalations, Escalation{
						Agent:           agent,
						Message:         d.Instruction,
						LastError:       rec.LastError,
						SuggestedAction: suggestedAction(rec),
					})
				}
			}

			if retry {
				if round < c.maxRounds-1 {
					tracker.IncrementRetry(agent)
					extras[agent] = strings.Join(injected, "\n")
					next = append(next, agent)
				} else if !escalated {
					// The rules wanted another attempt but the round limit is
					// spent; the failure surfaces instead of vanishing.
					escalations = append(escalations, Escalation{
						Agent:           agent,
						Message:         "The specialist was still failing when the round limit was reached. Can you clarify the task, or pick a smaller part to start with?",
						LastError:       rec.LastError,
						SuggestedAction: suggestedAction(rec),
					})
				}
			}
		}
		pending = next
	}

	return all, escalations
}

// buildWorkers assembles the worker set for the routing decision. Under
// self_handle and hybrid the coordinator fields its own generalist worker
// over every file type in the task.
func (c *Coordinator) buildWorkers(task models.Task, routing Routing) map[string]*specialist.Worker {
	workers := make(map[string]*specialist.Worker)

	if routing.Strategy == StrategySelfHandle || routing.Strategy == StrategyHybrid {
		workers[coordinatorAgent] = specialist.NewWorker(
			newGeneralistCapability(task), c.completer)
	}
	if routing.Strategy == StrategyDelegate || routing.Strategy == StrategyHybrid {
		for _, name := range routing.Specialists {
			if cap, ok := c.registry.Lookup(name); ok {
				workers[name] = specialist.NewWorker(cap, c.completer)
			}
		}
	}
	return workers
}

func workerOrder(routing Routing) []string {
	var order []string
	if routing.Strategy == StrategySelfHandle || routing.Strategy == StrategyHybrid {
		order = append(order, coordinatorAgent)
	}
	order = append(order, routing.Specialists...)
	return order
}

// delegationsFor derives the sub-task assignments implied by the routing
// decision: one per routed specialist, scoped to the files its domain
// tags bind. Specialists with nothing to edit get no delegation.
func (c *Coordinator) delegationsFor(task models.Task, routing Routing) []models.Delegation {
	if routing.Strategy != StrategyDelegate && routing.Strategy != StrategyHybrid {
		return nil
	}

	var out []models.Delegation
	for _, name := range routing.Specialists {
		cap, ok := c.registry.Lookup(name)
		if !ok {
			continue
		}
		tags := make(map[string]bool, len(cap.DomainTags()))
		for _, t := range cap.DomainTags() {
			tags[strings.ToLower(t)] = true
		}
		var files []string
		for _, f := range task.Files {
			if tags[strings.ToLower(f.FileType)] {
				files = append(files, f.FileName)
			}
		}
		if len(files) == 0 {
			continue
		}
		out = append(out, models.Delegation{
			Agent: name,
			Task:  task.Instruction,
			Files: files,
		})
	}
	return out
}

func (c *Coordinator) resolveConflicts(changes []models.CodeChange, selections map[string]string) conflict.Resolution {
	conflicts := conflict.Detect(changes)
	if len(conflicts) > 0 {
		c.logger.Log("coordinator", "%d conflicted file(s)", len(conflicts))
	}
	return conflict.Resolve(changes, selections)
}

// suggestedAction maps a specialist's final state to a concrete next step
// surfaced alongside the escalation.
func suggestedAction(rec models.SpecialistLifecycleRecord) string {
	switch {
	case rec.State == models.SpecialistCompletedNoChanges:
		return "point the task at the specific file or element to change"
	case strings.Contains(rec.LastError, string(models.ErrParse)):
		return "rephrase the request in simpler terms and try again"
	case strings.Contains(rec.LastError, string(models.ErrTimeout)):
		return "try again, or split the task into smaller pieces"
	default:
		return "review the error and adjust the task before retrying"
	}
}

// generalistCapability lets the coordinator edit any file type present in
// the task when it handles work itself.
type generalistCapability struct {
	tags []string
}

func newGeneralistCapability(task models.Task) generalistCapability {
	types := task.FileTypes()
	tags := make([]string, 0, len(types))
	for t := range types {
		tags = append(tags, strings.ToLower(t))
	}
	sort.Strings(tags)
	return generalistCapability{tags: tags}
}

func (g generalistCapability) Name() string         { return coordinatorAgent }
func (g generalistCapability) DomainTags() []string { return g.tags }

func (g generalistCapability) Description() string {
	return "Coordinator generalist for edits too small to delegate."
}

func (g generalistCapability) SystemPrompt() string {
	return `You are the coordinator of a website editing system, handling a
small task directly instead of delegating it. Make the minimal edit the
task asks for and nothing more.

Respond with a single JSON object:
{
  "analysis": "brief explanation of your approach",
  "changes": [
    {
      "file_name": "exact file name from the task",
      "reasoning": "why this change",
      "patches": [{"search": "exact text to find", "replace": "replacement text"}],
      "confidence": 0.8
    }
  ]
}
Each patch search string must match the file content exactly, including
whitespace. Return an empty changes array if no edits are needed.`
}
