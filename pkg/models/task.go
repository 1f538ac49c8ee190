package models

// Task is a single user instruction plus its context bundle. Tasks are
// request-scoped: created per invocation and discarded after the round.
type Task struct {
	// Instruction is the user's natural-language request.
	Instruction string `json:"instruction"`
	// Files are the candidate files for this task.
	Files []FileContext `json:"files"`
	// Preferences holds user preference key/value pairs injected into prompts.
	Preferences map[string]string `json:"preferences,omitempty"`
	// DependencyContext is an optional description of project dependencies.
	DependencyContext string `json:"dependency_context,omitempty"`
	// DesignContext is an optional description of the project's design system.
	DesignContext string `json:"design_context,omitempty"`
	// DOMContext is an optional rendered-DOM snapshot description.
	DOMContext string `json:"dom_context,omitempty"`
	// MemoryContext is the formatted block of relevant past outcomes.
	MemoryContext string `json:"memory_context,omitempty"`
}

// FileNames returns the names of all files in the task context.
func (t Task) FileNames() []string {
	names := make([]string, 0, len(t.Files))
	for _, f := range t.Files {
		names = append(names, f.FileName)
	}
	return names
}

// FileTypes returns the set of distinct file types present in the context.
func (t Task) FileTypes() map[string]bool {
	types := make(map[string]bool, len(t.Files))
	for _, f := range t.Files {
		if f.FileType != "" {
			types[f.FileType] = true
		}
	}
	return types
}

// ClarificationOption is one structured choice presented to the user when
// a request is genuinely ambiguous. Options are emitted as data for the
// presentation layer, never as formatted markup.
type ClarificationOption struct {
	// Label is the short option text.
	Label string `json:"label"`
	// Detail optionally expands on what choosing the option means.
	Detail string `json:"detail,omitempty"`
	// Recommended marks the coordinator's suggested choice.
	Recommended bool `json:"recommended,omitempty"`
	// Reason is the one-line justification for a recommended option.
	Reason string `json:"reason,omitempty"`
}
