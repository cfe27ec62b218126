package control

import (
	"fmt"
	"os"
	"path/filepath"
)

// BulldozeStateFile is the persistent markdown continuation record a
// bulldoze-mode worker's prompts reference and amend across cycles (§4.4):
// "Current / Backlog / Completed / Learnings" plus a compaction counter.
type BulldozeStateFile struct {
	Current   string
	Backlog   []string
	Completed []string
	Learnings []string
}

// BulldozeStatePath returns the canonical path for a worker's bulldoze
// state file (§6: "<workingDir>/tmp/bulldoze-state-<id>.md").
func BulldozeStatePath(workingDir, workerID string) string {
	return filepath.Join(workingDir, "tmp", fmt.Sprintf("bulldoze-state-%s.md", workerID))
}

// WriteBulldozeStateFile atomically (re)writes a worker's bulldoze state
// file, recording the current compaction count alongside the four
// sections.
func WriteBulldozeStateFile(workingDir, workerID string, f BulldozeStateFile, compactionCount int) error {
	path := BulldozeStatePath(workingDir, workerID)
	content := renderBulldozeStateFile(f, compactionCount)
	return writeFileAtomic(path, []byte(content))
}

// RemoveBulldozeStateFile deletes a worker's bulldoze state file, a no-op
// if it does not exist (§4.6 TeardownWorker: "clear its bulldoze state
// file").
func RemoveBulldozeStateFile(workingDir, workerID string) error {
	path := BulldozeStatePath(workingDir, workerID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("control: removing %s: %w", path, err)
	}
	return nil
}

func renderBulldozeStateFile(f BulldozeStateFile, compactionCount int) string {
	out := "# Bulldoze State\n\n"
	out += "## Current\n\n" + f.Current + "\n\n"
	out += "## Backlog\n\n" + renderBulletList(f.Backlog) + "\n"
	out += "## Completed\n\n" + renderBulletList(f.Completed) + "\n"
	out += "## Learnings\n\n" + renderBulletList(f.Learnings) + "\n"
	out += fmt.Sprintf("Compaction Count: %d\n", compactionCount)
	return out
}

func renderBulletList(items []string) string {
	if len(items) == 0 {
		return "(none)\n"
	}
	out := ""
	for _, item := range items {
		out += "- " + item + "\n"
	}
	return out
}

// writeFileAtomic writes content to path via a temp file in the same
// directory followed by rename, so a reader never observes a partial write
// (mirrored from the engine's persistence layer, as in templates.Writer).
func writeFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("control: creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".strategos-bulldoze-*")
	if err != nil {
		return fmt.Errorf("control: creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("control: writing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("control: closing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("control: renaming %s to %s: %w", tmpPath, path, err)
	}
	return nil
}
