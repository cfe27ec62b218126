// Package control implements the engine's Output & Control Plane (§4.4):
// the capture loop, change detection, auto-accept heuristics, the
// bulldoze continuation state machine, and the command queue drain.
package control

import (
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Fingerprint names a cheap pane-content hash. Nothing in this package
// computes one: Changed compares the full captured text instead.
type Fingerprint string

// Changed reports whether current and previous panes differ.
func Changed(previous, current string) bool {
	return previous != current
}

// LineDiff computes a line-level diff between previous and current pane
// captures, returning only the inserted lines (the new content a worker
// has produced since the last capture).
func LineDiff(previous, current string) []string {
	if previous == current {
		return nil
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(previous, current)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var inserted []string
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffInsert {
			for _, line := range splitNonEmptyLines(d.Text) {
				inserted = append(inserted, line)
			}
		}
	}
	return inserted
}

func splitNonEmptyLines(text string) []string {
	var lines []string
	start := 0
	for i, r := range text {
		if r == '\n' {
			if line := text[start:i]; line != "" {
				lines = append(lines, line)
			}
			start = i + 1
		}
	}
	if rest := text[start:]; rest != "" {
		lines = append(lines, rest)
	}
	return lines
}
