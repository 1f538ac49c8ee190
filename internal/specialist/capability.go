// Package specialist implements domain-bound workers that turn a task and
// a set of files into proposed code changes. Each specialist owns a set
// of file types and only ever sees or edits files of those types.
package specialist

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Capability describes what a specialist can do. The coordinator consults
// capabilities for routing; workers consult them for prompt construction.
type Capability interface {
	// Name returns the specialist identifier, e.g. "styles".
	Name() string
	// DomainTags returns the file types this specialist owns,
	// e.g. ["css", "scss"]. Tags are lowercase extensions without dots.
	DomainTags() []string
	// Description returns a one-line summary used in routing prompts.
	Description() string
	// SystemPrompt returns the full system prompt for this domain.
	SystemPrompt() string
}

// profile is the static capability table entry behind the built-in
// specialists.
type profile struct {
	name        string
	tags        []string
	description string
	guidance    string
}

func (p profile) Name() string         { return p.name }
func (p profile) DomainTags() []string { return p.tags }
func (p profile) Description() string  { return p.description }

func (p profile) SystemPrompt() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are the %s specialist for a website project. ", p.name)
	fmt.Fprintf(&sb, "You only edit %s files.\n\n", strings.Join(p.tags, "/"))
	sb.WriteString(p.guidance)
	sb.WriteString("\n\n")
	sb.WriteString(responseContract)
	return sb.String()
}

// responseContract is the shared output format every specialist must
// follow. Parsing failures are recoverable; the worker re-asks once with
// a corrective instruction.
const responseContract = `Respond with a single JSON object:
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

// builtinProfiles is the static capability table. Registries are built
// from it explicitly at startup; there is no import-time registration.
var builtinProfiles = []profile{
	{
		name:        "templates",
		tags:        []string{"html", "hbs"},
		description: "Edits page structure and markup: HTML documents and Handlebars templates.",
		guidance: `Keep markup semantic and accessible. Preserve existing Handlebars
expressions and partial references unless the task asks to change them.
Every img element needs a meaningful alt attribute. Do not inline styles
or scripts; those belong to the styles and scripts specialists.`,
	},
	{
		name:        "scripts",
		tags:        []string{"js", "ts"},
		description: "Edits client-side behavior: JavaScript and TypeScript sources.",
		guidance: `Match the conventions already present in the file (module style,
semicolons, quoting). Do not introduce new dependencies or build steps.
Keep DOM selectors in sync with the markup the task provides as context.`,
	},
	{
		name:        "styles",
		tags:        []string{"css", "scss"},
		description: "Edits presentation: CSS and SCSS stylesheets.",
		guidance: `Reuse existing custom properties and mixins before inventing new
ones. Match the selector naming scheme already in the file. Avoid
!important unless the file already relies on it.`,
	},
	{
		name:        "config",
		tags:        []string{"json", "yaml"},
		description: "Edits site configuration and data files: JSON and YAML.",
		guidance: `Output must remain parseable in the file's own format. Preserve key
order and comments where the format allows. Keys referenced by templates
must not be renamed or removed without the task explicitly asking.`,
	},
}

// Registry maps specialist names and file types to capabilities. Safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Capability
	byTag  map[string]Capability
}

// NewRegistry builds a registry holding the built-in specialists.
func NewRegistry() *Registry {
	r := &Registry{
		byName: make(map[string]Capability),
		byTag:  make(map[string]Capability),
	}
	for _, p := range builtinProfiles {
		r.Register(p)
	}
	return r
}

// Register adds a capability, replacing any previous binding of its name
// or domain tags.
func (r *Registry) Register(c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[c.Name()] = c
	for _, tag := range c.DomainTags() {
		r.byTag[strings.ToLower(tag)] = c
	}
}

// Lookup returns the capability registered under name.
func (r *Registry) Lookup(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[name]
	return c, ok
}

// ForFileType returns the capability owning the given file type.
func (r *Registry) ForFileType(fileType string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byTag[strings.ToLower(fileType)]
	return c, ok
}

// Names returns all registered specialist names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
