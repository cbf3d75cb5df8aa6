// Package reorganize moves extraction folders to their account-identifier
// destinations once a normalization pass has finished.
package reorganize

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/kimhsiao/recordkit/internal/errors"
	"github.com/kimhsiao/recordkit/internal/logging"
	"github.com/kimhsiao/recordkit/internal/models"
	"github.com/kimhsiao/recordkit/internal/parser"
)

// Plan accumulates rename entries during a pass. The zero value is not usable.
type Plan struct {
	entries map[string]models.FolderRenameEntry
	order   []string
}

// NewPlan returns an empty plan.
func NewPlan() *Plan {
	return &Plan{entries: make(map[string]models.FolderRenameEntry)}
}

// EntryFor builds the rename entry for a text record written from folder.
// It returns false when the record carries no identifier and is not billing,
// since such a folder has no destination of its own.
func EntryFor(folder string, rec *models.TextRecord) (models.FolderRenameEntry, bool) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		abs = filepath.Clean(folder)
	}
	if rec.AccountIdentifier == "" && !rec.IsBilling {
		return models.FolderRenameEntry{}, false
	}
	return models.FolderRenameEntry{
		Source:       abs,
		Target:       filepath.Join(filepath.Dir(abs), rec.AccountIdentifier),
		IsMessaging:  rec.IsMessaging,
		IsBilling:    rec.IsBilling,
		TextFileName: rec.FileName,
	}, true
}

// Add records e. A later entry for the same source replaces the earlier one.
func (p *Plan) Add(e models.FolderRenameEntry) {
	if _, ok := p.entries[e.Source]; !ok {
		p.order = append(p.order, e.Source)
	}
	p.entries[e.Source] = e
}

// Len returns the number of distinct sources.
func (p *Plan) Len() int { return len(p.order) }

// Entries returns the entries in insertion order.
func (p *Plan) Entries() []models.FolderRenameEntry {
	out := make([]models.FolderRenameEntry, 0, len(p.order))
	for _, src := range p.order {
		out = append(out, p.entries[src])
	}
	return out
}

// Destination resolves the final folder for e. Billing exports get a sibling
// folder named after their text file so several of them never share a
// target, even when the record carries no identifier.
func Destination(e models.FolderRenameEntry) string {
	if e.IsBilling {
		return filepath.Join(filepath.Dir(e.Source), strings.TrimSuffix(e.TextFileName, ".txt"))
	}
	return e.Target
}

// Outcome reports what happened to one source folder.
type Outcome struct {
	Entry       models.FolderRenameEntry
	Destination string
	Merged      bool
	Err         error
}

// Apply performs every move. Deeper sources go first so that moving a parent
// never invalidates a pending child path. Failures are logged per folder and
// never stop the remaining moves.
func (p *Plan) Apply() []Outcome {
	entries := p.Entries()
	sort.SliceStable(entries, func(i, j int) bool {
		return depth(entries[i].Source) > depth(entries[j].Source)
	})

	claimed := make(map[string]string)
	outcomes := make([]Outcome, 0, len(entries))
	for _, e := range entries {
		dest := Destination(e)
		if prev, ok := claimed[dest]; ok && prev != e.Source {
			logging.Warn("destination shared by several exports, merging", map[string]interface{}{
				"destination": dest,
				"source":      e.Source,
				"previous":    prev,
			})
		}
		claimed[dest] = e.Source

		out := Outcome{Entry: e, Destination: dest}
		out.Merged, out.Err = move(e.Source, dest)
		if out.Err == nil && e.IsMessaging && !e.IsBilling {
			if err := os.MkdirAll(filepath.Join(dest, parser.BillingFolder), 0755); err != nil {
				out.Err = apperrors.Wrap(apperrors.ErrFolderMove, "create billing folder in "+dest, err)
			}
		}
		if out.Err != nil {
			logging.Error("folder move failed", out.Err, map[string]interface{}{"source": e.Source, "destination": dest})
		} else {
			logging.Info("folder moved", map[string]interface{}{"source": e.Source, "destination": dest, "merged": out.Merged})
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

func depth(path string) int {
	return strings.Count(filepath.Clean(path), string(os.PathSeparator))
}
