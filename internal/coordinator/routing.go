package coordinator

import (
	"context"
	"fmt"
	"strings"

	"github.com/sitewright/sitewright/internal/llm"
	"github.com/sitewright/sitewright/pkg/models"
)

// Strategy is the coordinator's chosen execution path for a task.
type Strategy string

const (
	// StrategySelfHandle means the coordinator edits files itself.
	StrategySelfHandle Strategy = "self_handle"
	// StrategyDelegate means specialists do all the editing.
	StrategyDelegate Strategy = "delegate"
	// StrategyHybrid combines coordinator edits with delegation.
	StrategyHybrid Strategy = "hybrid"
	// StrategyClarify means the task is too ambiguous to route and the
	// user must pick among clarification options.
	StrategyClarify Strategy = "clarify"
)

// routeDecision is the wire shape of the routing call.
type routeDecision struct {
	Decision    string   `json:"decision"`
	Specialists []string `json:"specialists"`
	Reasoning   string   `json:"reasoning"`
	Options     []struct {
		Label       string `json:"label"`
		Detail      string `json:"detail"`
		Recommended bool   `json:"recommended"`
		Reason      string `json:"reason"`
	} `json:"options"`
}

const (
	minClarificationOptions = 2
	maxClarificationOptions = 5
)

const routingSystemPrompt = `You route website editing tasks. Decide whether
to handle the task directly, delegate it to domain specialists, or do both.
Choose "clarify" only when the task is genuinely ambiguous and proceeding
would risk doing the wrong work.

Respond with a single JSON object:
{
  "decision": "self_handle|delegate|hybrid|clarify",
  "specialists": ["templates", "scripts", "styles", "config"],
  "reasoning": "one sentence",
  "options": [
    {"label": "...", "detail": "...", "recommended": true, "reason": "..."}
  ]
}
Rules: "self_handle" is for trivial single-file edits. "delegate" lists
only specialists whose file types the task actually touches. "clarify"
must include 2 to 5 options, exactly one of them recommended.`

// Routing is the validated outcome of the routing call.
type Routing struct {
	// Strategy is the chosen execution path.
	Strategy Strategy
	// Specialists are the specialists to engage, in routing order.
	Specialists []string
	// Reasoning is the router's one-line justification.
	Reasoning string
	// Options holds clarification options when Strategy is clarify.
	Options []models.ClarificationOption
	// Workflow is the advisory template that matched, if any.
	Workflow *WorkflowTemplate
}

// route asks the model for a strategy. A parse failure gets one corrective
// re-ask; a second failure surfaces as PARSE_ERROR.
func (c *Coordinator) route(ctx context.Context, task models.Task) (Routing, error) {
	workflow := MatchWorkflow(task.Instruction)
	user := buildRoutingPrompt(task, workflow, c.registry.Names())

	raw, err := c.completer.Complete(ctx, routingSystemPrompt, user)
	if err != nil {
		return Routing{}, models.NewWorkerError(models.ErrTool, "coordinator", err)
	}

	decision, err := llm.Decode[routeDecision](raw)
	if err != nil {
		raw, err = c.completer.Complete(ctx, routingSystemPrompt,
			user+"\n\nYour previous response was not valid JSON. Respond with only the JSON object.")
		if err != nil {
			return Routing{}, models.NewWorkerError(models.ErrTool, "coordinator", err)
		}
		decision, err = llm.Decode[routeDecision](raw)
		if err != nil {
			return Routing{}, err
		}
	}

	return c.validateRouting(decision, task, workflow)
}

func (c *Coordinator) validateRouting(decision routeDecision, task models.Task, workflow *WorkflowTemplate) (Routing, error) {
	routing := Routing{
		Strategy:  Strategy(decision.Decision),
		Reasoning: decision.Reasoning,
		Workflow:  workflow,
	}

	switch routing.Strategy {
	case StrategySelfHandle:
		return routing, nil

	case StrategyDelegate, StrategyHybrid:
		routing.Specialists = c.usableSpecialists(decision.Specialists, task)
		if len(routing.Specialists) == 0 {
			// Nothing to delegate to; the coordinator does it alone.
			routing.Strategy = StrategySelfHandle
		}
		return routing, nil

	case StrategyClarify:
		for _, o := range decision.Options {
			routing.Options = append(routing.Options, models.ClarificationOption{
				Label:       o.Label,
				Detail:      o.Detail,
				Recommended: o.Recommended,
				Reason:      o.Reason,
			})
		}
		if len(routing.Options) < minClarificationOptions {
			return Routing{}, models.NewWorkerError(models.ErrParse, "coordinator",
				fmt.Errorf("clarification needs at least %d options, got %d",
					minClarificationOptions, len(routing.Options)))
		}
		if len(routing.Options) > maxClarificationOptions {
			routing.Options = routing.Options[:maxClarificationOptions]
		}
		return routing, nil

	default:
		return Routing{}, models.NewWorkerError(models.ErrParse, "coordinator",
			fmt.Errorf("unknown routing decision %q", decision.Decision))
	}
}

// usableSpecialists keeps routed specialists that exist in the registry
// and have at least one bound file in the task, deduplicated in order.
func (c *Coordinator) usableSpecialists(names []string, task models.Task) []string {
	types := make(map[string]bool)
	for ft := range task.FileTypes() {
		types[strings.ToLower(ft)] = true
	}

	seen := make(map[string]bool)
	var usable []string
	for _, name := range names {
		if seen[name] {
			continue
		}
		cap, ok := c.registry.Lookup(name)
		if !ok {
			continue
		}
		for _, tag := range cap.DomainTags() {
			if types[tag] {
				seen[name] = true
				usable = append(usable, name)
				break
			}
		}
	}
	return usable
}

func buildRoutingPrompt(task models.Task, workflow *WorkflowTemplate, available []string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "## Task\n%s\n", task.Instruction)
	fmt.Fprintf(&sb, "\n## Available specialists\n%s\n", strings.Join(available, ", "))

	sb.WriteString("\n## Files\n")
	for _, f := range task.Files {
		fmt.Fprintf(&sb, "- %s (%s, %d chars)\n", f.FileName, f.FileType, len(f.Content))
	}

	if workflow != nil {
		fmt.Fprintf(&sb, "\n## Workflow hint (advisory)\nThis looks like a %q task. ", workflow.Name)
		fmt.Fprintf(&sb, "Typical lineup: required %s", strings.Join(workflow.Required, ", "))
		if len(workflow.Optional) > 0 {
			fmt.Fprintf(&sb, "; optional %s", strings.Join(workflow.Optional, ", "))
		}
		sb.WriteString(".\n")
	}

	if task.MemoryContext != "" {
		fmt.Fprintf(&sb, "\n## Past outcomes\n%s\n", task.MemoryContext)
	}

	return sb.String()
}
