// Package diffview renders line diffs for document review. The review
// surface only needs three line classes, so the output is deliberately
// simpler than a unified diff.
package diffview

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Line is one rendered diff row. OldLine and NewLine are 1-based and only
// set for the side the line exists on.
type Line struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	OldLine int    `json:"old_line,omitempty"`
	NewLine int    `json:"new_line,omitempty"`
}

const (
	LineContext = "context"
	LineAdded   = "added"
	LineRemoved = "removed"
)

// MaxLines caps the combined size of documents diffed for display. Beyond
// it the review UI falls back to a "too large to preview" notice.
const MaxLines = 5000

// Render produces the line diff between the live document and the proposed
// content, using line-level resolution.
func Render(before, after string) []Line {
	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var lines []Line
	oldLine := 1
	newLine := 1
	for _, d := range diffs {
		chunk := strings.Split(d.Text, "\n")
		if len(chunk) > 0 && chunk[len(chunk)-1] == "" {
			chunk = chunk[:len(chunk)-1]
		}
		for _, text := range chunk {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				lines = append(lines, Line{Type: LineContext, Text: text, OldLine: oldLine, NewLine: newLine})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				lines = append(lines, Line{Type: LineRemoved, Text: text, OldLine: oldLine})
				oldLine++
			case diffmatchpatch.DiffInsert:
				lines = append(lines, Line{Type: LineAdded, Text: text, NewLine: newLine})
				newLine++
			}
		}
	}
	return lines
}

// RenderWithLimit is Render with a size guard. The second return is true
// when the documents exceed maxLines combined and no diff was produced.
func RenderWithLimit(before, after string, maxLines int) ([]Line, bool) {
	if maxLines <= 0 {
		maxLines = MaxLines
	}
	if lineCount(before)+lineCount(after) > maxLines {
		return nil, true
	}
	return Render(before, after), false
}

// Stats counts added and removed lines for a compact review header.
func Stats(lines []Line) (added, removed int) {
	for _, l := range lines {
		switch l.Type {
		case LineAdded:
			added++
		case LineRemoved:
			removed++
		}
	}
	return added, removed
}

func lineCount(value string) int {
	if value == "" {
		return 0
	}
	return strings.Count(value, "\n") + 1
}
