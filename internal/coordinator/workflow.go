package coordinator

import "strings"

// WorkflowTemplate is a known task shape with a suggested specialist
// lineup. Matches are advisory: they bias the routing prompt but the
// router may still choose differently.
type WorkflowTemplate struct {
	// Name identifies the workflow.
	Name string
	// Keywords trigger the match; any hit counts.
	Keywords []string
	// Required specialists are essential to the workflow.
	Required []string
	// Optional specialists commonly help but are not essential.
	Optional []string
}

// builtinWorkflows is the static workflow table, ordered most specific
// first. The first template with a keyword hit wins.
var builtinWorkflows = []WorkflowTemplate{
	{
		Name:     "restyle",
		Keywords: []string{"color", "colour", "font", "spacing", "restyle", "theme", "dark mode", "style"},
		Required: []string{"styles"},
		Optional: []string{"templates"},
	},
	{
		Name:     "new-section",
		Keywords: []string{"add a section", "new section", "add section", "hero", "footer", "header", "landing"},
		Required: []string{"templates", "styles"},
		Optional: []string{"scripts", "config"},
	},
	{
		Name:     "content-update",
		Keywords: []string{"copy", "text", "wording", "headline", "tagline", "rename"},
		Required: []string{"templates"},
		Optional: []string{"config"},
	},
	{
		Name:     "behavior",
		Keywords: []string{"click", "animation", "scroll", "interactive", "form validation", "toggle"},
		Required: []string{"scripts"},
		Optional: []string{"templates", "styles"},
	},
	{
		Name:     "configuration",
		Keywords: []string{"config", "settings", "metadata", "seo", "analytics"},
		Required: []string{"config"},
		Optional: []string{"templates"},
	},
}

// MatchWorkflow returns the first workflow template whose keywords appear
// in the instruction, or nil when nothing matches.
func MatchWorkflow(instruction string) *WorkflowTemplate {
	lower := strings.ToLower(instruction)
	for i := range builtinWorkflows {
		for _, kw := range builtinWorkflows[i].Keywords {
			if strings.Contains(lower, kw) {
				return &builtinWorkflows[i]
			}
		}
	}
	return nil
}

// Specialists returns the combined required and optional lineup.
func (w *WorkflowTemplate) Specialists() []string {
	out := make([]string, 0, len(w.Required)+len(w.Optional))
	out = append(out, w.Required...)
	out = append(out, w.Optional...)
	return out
}
