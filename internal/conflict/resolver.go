// Package conflict detects and resolves multi-author collisions within one
// coordinator round. A conflict is two or more proposed changes targeting
// the same file.
package conflict

import (
	"github.com/sitewright/sitewright/pkg/models"
)

// Conflict is one file with multiple proposed changes. Changes retain
// submission order; the first-submitted change is the default pre-selection.
type Conflict struct {
	// FileName is the contested file.
	FileName string `json:"file_name"`
	// Changes are the competing proposals in submission order.
	Changes []models.CodeChange `json:"changes"`
	// SelectedID is the currently selected change, defaulting to the
	// first-submitted one.
	SelectedID string `json:"selected_id"`
}

// Resolution is the outcome of resolving a round's changes. Rejected
// changes are excluded from the apply pipeline; this is the only path by
// which a proposed change is discarded without being a failure.
type Resolution struct {
	// Accepted holds the surviving changes in submission order.
	Accepted []models.CodeChange
	// Rejected holds the discarded changes, marked rejected.
	Rejected []models.CodeChange
}

// Detect groups changes by file name and returns one Conflict per file
// with two or more proposals, in order of first submission.
func Detect(changes []models.CodeChange) []Conflict {
	byFile := make(map[string][]models.CodeChange)
	var order []string
	for _, c := range changes {
		if _, seen := byFile[c.FileName]; !seen {
			order = append(order, c.FileName)
		}
		byFile[c.FileName] = append(byFile[c.FileName], c)
	}

	var conflicts []Conflict
	for _, name := range order {
		group := byFile[name]
		if len(group) < 2 {
			continue
		}
		conflicts = append(conflicts, Conflict{
			FileName:   name,
			Changes:    group,
			SelectedID: group[0].ID,
		})
	}
	return conflicts
}

// Resolve applies explicit per-file selections: selections maps file name
// to the winning change ID. Conflicting files without a selection fall back
// to the first-submitted change. Non-conflicting changes always survive.
func Resolve(changes []models.CodeChange, selections map[string]string) Resolution {
	winners := make(map[string]string)
	for _, conflict := range Detect(changes) {
		winner := conflict.SelectedID
		if id, ok := selections[conflict.FileName]; ok && containsID(conflict.Changes, id) {
			winner = id
		}
		winners[conflict.FileName] = winner
	}

	var res Resolution
	for _, c := range changes {
		winner, contested := winners[c.FileName]
		if !contested || c.ID == winner {
			res.Accepted = append(res.Accepted, c)
			continue
		}
		c.Status = models.ChangeStatusRejected
		res.Rejected = append(res.Rejected, c)
	}
	return res
}

// ResolveAll bulk auto-resolves every conflict: the first-submitted change
// per file is kept, all later proposals are rejected.
func ResolveAll(changes []models.CodeChange) Resolution {
	return Resolve(changes, nil)
}

// containsID reports whether any change in the group carries the ID.
func containsID(changes []models.CodeChange, id string) bool {
	for _, c := range changes {
		if c.ID == id {
			return true
		}
	}
	return false
}
