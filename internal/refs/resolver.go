// Package refs extracts and resolves inline mentions of project files and
// tasks in chat text.
package refs

import (
	"context"
	"sort"
	"strings"

	"github.com/forgeproj/forge/models"
	"github.com/forgeproj/forge/store"
)

// Match is one detected mention, with byte offsets into the scanned text.
type Match struct {
	Type  models.ReferenceType
	Name  string
	Start int
	End   int
}

// candidate pairs a known name with its reference type.
type candidate struct {
	name string
	typ  models.ReferenceType
}

// Detector finds literal occurrences of known artifact and task names in
// free text. Detection stores only (type, name) pairs; resolving a mention
// to a live entity happens later, when the user follows it.
type Detector struct {
	candidates []candidate
}

// NewDetector builds a detector over the given names. Longer names are
// matched first, so "Overview-Spec.md" wins over "Spec.md" on overlapping
// text.
func NewDetector(artifactNames, taskTitles []string) *Detector {
	d := &Detector{}
	for _, name := range artifactNames {
		if name != "" {
			d.candidates = append(d.candidates, candidate{name: name, typ: models.RefFile})
		}
	}
	for _, title := range taskTitles {
		if title != "" {
			d.candidates = append(d.candidates, candidate{name: title, typ: models.RefTask})
		}
	}
	sort.SliceStable(d.candidates, func(i, j int) bool {
		return len(d.candidates[i].name) > len(d.candidates[j].name)
	})
	return d
}

// boundaryByte reports whether b extends an identifier-like run. A match
// flanked by such a byte is a substring of a longer token, not a mention.
func boundaryByte(b byte) bool {
	return b >= 'a' && b <= 'z' ||
		b >= 'A' && b <= 'Z' ||
		b >= '0' && b <= '9' ||
		b == '-'
}

// Detect scans text and returns non-overlapping matches in order of
// appearance.
func (d *Detector) Detect(text string) []Match {
	if text == "" || len(d.candidates) == 0 {
		return nil
	}

	claimed := make([]bool, len(text))
	var matches []Match

	for _, c := range d.candidates {
		from := 0
		for {
			i := strings.Index(text[from:], c.name)
			if i < 0 {
				break
			}
			start := from + i
			end := start + len(c.name)
			from = start + 1

			if start > 0 && boundaryByte(text[start-1]) {
				continue
			}
			if end < len(text) && boundaryByte(text[end]) {
				continue
			}
			if regionClaimed(claimed, start, end) {
				continue
			}
			for j := start; j < end; j++ {
				claimed[j] = true
			}
			matches = append(matches, Match{Type: c.typ, Name: c.name, Start: start, End: end})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Start < matches[j].Start })
	return matches
}

// References is Detect reduced to the persisted form.
func (d *Detector) References(text string) []models.Reference {
	matches := d.Detect(text)
	if len(matches) == 0 {
		return nil
	}
	refs := make([]models.Reference, 0, len(matches))
	seen := make(map[models.Reference]bool)
	for _, m := range matches {
		ref := models.Reference{Type: m.Type, Name: m.Name}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	return refs
}

// Annotate rewrites detected mentions as [[file:Name]] / [[task:Name]]
// markers so downstream renderers can deep-link them. Unmentioned text is
// passed through unchanged.
func (d *Detector) Annotate(text string) string {
	matches := d.Detect(text)
	if len(matches) == 0 {
		return text
	}

	var sb strings.Builder
	sb.Grow(len(text) + len(matches)*10)
	last := 0
	for _, m := range matches {
		sb.WriteString(text[last:m.Start])
		sb.WriteString("[[")
		sb.WriteString(string(m.Type))
		sb.WriteString(":")
		sb.WriteString(m.Name)
		sb.WriteString("]]")
		last = m.End
	}
	sb.WriteString(text[last:])
	return sb.String()
}

func regionClaimed(claimed []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if claimed[i] {
			return true
		}
	}
	return false
}

// Resolved is the click-time result for a reference.
type Resolved struct {
	Artifact *models.Artifact
	Task     *models.Task
}

// Resolver looks references up against live project state at the moment
// the user follows them. A rename between detection and click simply
// yields ErrNotFound; stored references are never patched up.
type Resolver struct {
	store     store.ProjectStore
	projectID string
}

func NewResolver(st store.ProjectStore, projectID string) *Resolver {
	return &Resolver{store: st, projectID: projectID}
}

// Resolve maps a reference to the current entity with that name. Returns
// store.ErrNotFound when nothing carries the name anymore.
func (r *Resolver) Resolve(ctx context.Context, ref models.Reference) (Resolved, error) {
	switch ref.Type {
	case models.RefFile:
		artifact, err := r.store.GetArtifactByName(ctx, r.projectID, ref.Name)
		if err != nil {
			return Resolved{}, err
		}
		return Resolved{Artifact: &artifact}, nil
	case models.RefTask:
		tasks, err := r.store.ListTasks(ctx, r.projectID)
		if err != nil {
			return Resolved{}, err
		}
		for i := range tasks {
			if tasks[i].Title == ref.Name {
				return Resolved{Task: &tasks[i]}, nil
			}
		}
		return Resolved{}, store.ErrNotFound
	default:
		return Resolved{}, store.ErrNotFound
	}
}

// DetectorForProject builds a detector from the project's current
// artifact and task names.
func DetectorForProject(ctx context.Context, st store.ProjectStore, projectID string) (*Detector, error) {
	artifacts, err := st.ListArtifacts(ctx, projectID)
	if err != nil {
		return nil, err
	}
	tasks, err := st.ListTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		names = append(names, a.Name)
	}
	titles := make([]string, 0, len(tasks))
	for _, t := range tasks {
		titles = append(titles, t.Title)
	}
	return NewDetector(names, titles), nil
}
