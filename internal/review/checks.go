// Package review implements the pre-apply gate for proposed changes:
// deterministic structural checks first, then an LLM reviewer pass, with
// approval requiring zero error-severity issues.
package review

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sitewright/sitewright/pkg/models"
)

// Severity grades a review issue.
type Severity string

const (
	// SeverityError blocks approval.
	SeverityError Severity = "error"
	// SeverityWarning is surfaced but does not block.
	SeverityWarning Severity = "warning"
	// SeverityInfo is advisory only.
	SeverityInfo Severity = "info"
)

// Issue is a single finding against a proposed change.
type Issue struct {
	// FileName is the file the issue was found in.
	FileName string `json:"file_name"`
	// Severity grades the issue.
	Severity Severity `json:"severity"`
	// Message describes the problem.
	Message string `json:"message"`
	// Source is "structural" or "reviewer".
	Source string `json:"source"`
}

var (
	imgTagRe = regexp.MustCompile(`(?i)<img\b[^>]*>`)
	altRe    = regexp.MustCompile(`(?i)\balt\s*=`)
	// hbsRefRe matches simple Handlebars value references like {{title}} or
	// {{site.name}}. Block helpers and partials are skipped.
	hbsRefRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][\w.]*)\s*\}\}`)
)

// StructuralCheck runs the deterministic checks for one change against
// the full set of files in play. Checks never call a model; every issue
// they raise is reproducible.
func StructuralCheck(change models.CodeChange, files []models.FileContext, allChanges []models.CodeChange) []Issue {
	var issues []Issue

	fileType := fileTypeOf(change, files)
	switch fileType {
	case "json":
		issues = append(issues, checkJSON(change)...)
	case "yaml", "yml":
		issues = append(issues, checkYAML(change)...)
	case "html", "hbs":
		issues = append(issues, checkImageAlts(change)...)
	}

	if fileType == "json" || fileType == "yaml" || fileType == "yml" {
		issues = append(issues, checkRemovedTemplateKeys(change, fileType, files, allChanges)...)
	}

	return issues
}

func fileTypeOf(change models.CodeChange, files []models.FileContext) string {
	for _, f := range files {
		if f.FileName == change.FileName {
			return strings.ToLower(f.FileType)
		}
	}
	if i := strings.LastIndex(change.FileName, "."); i >= 0 {
		return strings.ToLower(change.FileName[i+1:])
	}
	return ""
}

func checkJSON(change models.CodeChange) []Issue {
	if json.Valid([]byte(change.ProposedContent)) {
		return nil
	}
	return []Issue{{
		FileName: change.FileName,
		Severity: SeverityError,
		Message:  "proposed content is not valid JSON",
		Source:   "structural",
	}}
}

func checkYAML(change models.CodeChange) []Issue {
	var out any
	if err := yaml.Unmarshal([]byte(change.ProposedContent), &out); err != nil {
		return []Issue{{
			FileName: change.FileName,
			Severity: SeverityError,
			Message:  fmt.Sprintf("proposed content is not valid YAML: %v", err),
			Source:   "structural",
		}}
	}
	return nil
}

// checkImageAlts flags img elements without an alt attribute.
func checkImageAlts(change models.CodeChange) []Issue {
	var issues []Issue
	for _, tag := range imgTagRe.FindAllString(change.ProposedContent, -1) {
		if !altRe.MatchString(tag) {
			issues = append(issues, Issue{
				FileName: change.FileName,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("img element without alt attribute: %s", truncateTag(tag)),
				Source:   "structural",
			})
		}
	}
	return issues
}

func truncateTag(tag string) string {
	if len(tag) > 60 {
		return tag[:57] + "..."
	}
	return tag
}

// checkRemovedTemplateKeys flags config keys that a change removes while
// a template in the same round still references them.
func checkRemovedTemplateKeys(change models.CodeChange, fileType string, files []models.FileContext, allChanges []models.CodeChange) []Issue {
	before := topLevelKeys(change.OriginalContent, fileType)
	after := topLevelKeys(change.ProposedContent, fileType)
	if before == nil || after == nil {
		return nil
	}

	var removed []string
	for key := range before {
		if !after[key] {
			removed = append(removed, key)
		}
	}
	if len(removed) == 0 {
		return nil
	}

	refs := templateRefs(files, allChanges)
	var issues []Issue
	for _, key := range removed {
		for ref, refFile := range refs {
			if ref == key || strings.HasPrefix(ref, key+".") {
				issues = append(issues, Issue{
					FileName: change.FileName,
					Severity: SeverityError,
					Message: fmt.Sprintf("removes key %q still referenced by %s as {{%s}}",
						key, refFile, ref),
					Source: "structural",
				})
				break
			}
		}
	}
	return issues
}

func topLevelKeys(content, fileType string) map[string]bool {
	var m map[string]any
	if fileType == "json" {
		if err := json.Unmarshal([]byte(content), &m); err != nil {
			return nil
		}
	} else {
		if err := yaml.Unmarshal([]byte(content), &m); err != nil {
			return nil
		}
	}

	keys := make(map[string]bool, len(m))
	for k := range m {
		keys[k] = true
	}
	return keys
}

// templateRefs gathers Handlebars references across template files,
// preferring the proposed content when a template is also being changed.
func templateRefs(files []models.FileContext, allChanges []models.CodeChange) map[string]string {
	proposed := make(map[string]string)
	for _, c := range allChanges {
		proposed[c.FileName] = c.ProposedContent
	}

	refs := make(map[string]string)
	for _, f := range files {
		ft := strings.ToLower(f.FileType)
		if ft != "hbs" && ft != "html" {
			continue
		}
		content := f.Content
		if p, ok := proposed[f.FileName]; ok {
			content = p
		}
		for _, m := range hbsRefRe.FindAllStringSubmatch(content, -1) {
			if _, seen := refs[m[1]]; !seen {
				refs[m[1]] = f.FileName
			}
		}
	}
	return refs
}
