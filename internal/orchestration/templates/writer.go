// Package templates generates and maintains the per-worker rules files that
// steer a backend AI CLI's behavior (role, delegation limits, project
// conventions) and watches them for tampering (§4.2, §6).
package templates

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"text/template"

	"github.com/strategos/strategos/internal/orchestration/worker"
)

// Data is the template context passed to a worker's rules file.
type Data struct {
	WorkerID  string
	Label     string
	Role      Role
	Project   string
	TaskID    string
	Backend   worker.Backend
	DependsOn []string
}

// rulesMarkdownTemplate renders a worker's Data plus its role's YAML-
// described RuleSections (mission, operational authority, endpoint
// reference) to Markdown.
const rulesMarkdownTemplate = `# Strategos worker rules: {{.Data.WorkerID}}

Role: {{if .Data.Role}}{{.Data.Role}}{{else}}worker{{end}}
Label: {{.Data.Label}}
Project: {{.Data.Project}}
{{- if .Data.TaskID}}
Task: {{.Data.TaskID}}
{{- end}}
{{- if .Data.DependsOn}}
Depends on: {{range .Data.DependsOn}}{{.}} {{end}}
{{- end}}

## Mission

{{.Sections.Mission}}

## Operational authority

{{range .Sections.OperationalAuthority}}- {{.}}
{{end}}
## Endpoint reference

{{range .Sections.EndpointReference}}- **{{.Name}}**: {{.Description}}
{{end}}
Do not edit this file. It is regenerated by the orchestration engine.
`

const geminiSharedTemplate = `# Strategos shared Gemini rules

This project is managed by the Strategos orchestration engine. Workers must
not modify files under .claude/rules or GEMINI-strategos-worker-*.md.
`

var rulesTmpl = template.Must(template.New("worker-rules").Parse(rulesMarkdownTemplate))

// rulesView is the combined template context: spawn-time Data plus the
// role's YAML-described sections.
type rulesView struct {
	Data     Data
	Sections RuleSections
}

// Writer generates rules files for workers, serializing writes per project
// so two concurrent spawns in the same project never interleave.
type Writer struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewWriter creates an empty Writer.
func NewWriter() *Writer {
	return &Writer{locks: make(map[string]*sync.Mutex)}
}

// PruneLocks drops every per-project lock whose project is not present in
// liveProjects, reclaiming memory for projects with no live worker left
// (§4.5 periodic cleanup sweep).
func (w *Writer) PruneLocks(liveProjects map[string]bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for project := range w.locks {
		if !liveProjects[project] {
			delete(w.locks, project)
		}
	}
}

func (w *Writer) projectLock(project string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	l, ok := w.locks[project]
	if !ok {
		l = &sync.Mutex{}
		w.locks[project] = l
	}
	return l
}

// ClaudeRulesPath returns the canonical path for a Claude worker's rules
// file within projectDir (§6: ".claude/rules/strategos-worker-<id>.md").
func ClaudeRulesPath(projectDir, workerID string) string {
	return filepath.Join(projectDir, ".claude", "rules", fmt.Sprintf("strategos-worker-%s.md", workerID))
}

// GeminiRulesPath returns the canonical path for a Gemini worker's rules
// file within projectDir (§6: "GEMINI-strategos-worker-<id>.md").
func GeminiRulesPath(projectDir, workerID string) string {
	return filepath.Join(projectDir, fmt.Sprintf("GEMINI-strategos-worker-%s.md", workerID))
}

// GeminiSharedPath returns the canonical path for a project's shared
// Gemini rules file.
func GeminiSharedPath(projectDir string) string {
	return filepath.Join(projectDir, "GEMINI.md")
}

// Write renders and atomically writes data's rules file(s) into projectDir,
// serialized per project. Claude workers get a single rules file; Gemini
// workers get both their own file and the project-shared GEMINI.md.
func (w *Writer) Write(projectDir string, data Data) error {
	lock := w.projectLock(projectDir)
	lock.Lock()
	defer lock.Unlock()

	switch data.Backend {
	case worker.BackendGemini:
		if err := w.renderAtomic(GeminiRulesPath(projectDir, data.WorkerID), data); err != nil {
			return err
		}
		return writeAtomic(GeminiSharedPath(projectDir), []byte(geminiSharedTemplate))
	default:
		return w.renderAtomic(ClaudeRulesPath(projectDir, data.WorkerID), data)
	}
}

func (w *Writer) renderAtomic(path string, data Data) error {
	view := rulesView{Data: data, Sections: SectionsFor(data.Role)}
	var buf bytes.Buffer
	if err := rulesTmpl.Execute(&buf, view); err != nil {
		return fmt.Errorf("templates: rendering %s: %w", path, err)
	}
	return writeAtomic(path, buf.Bytes())
}

// writeAtomic writes content to path via a temp file in the same directory
// followed by rename, so a reader never observes a partial write (§6,
// mirrored from the engine's persistence layer).
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("templates: creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".strategos-tmpl-*")
	if err != nil {
		return fmt.Errorf("templates: creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("templates: writing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("templates: closing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("templates: renaming %s to %s: %w", tmpPath, path, err)
	}
	return nil
}

// Remove deletes a worker's rules file(s), a no-op for paths that do not
// exist.
func (w *Writer) Remove(projectDir, workerID string, backend worker.Backend) error {
	lock := w.projectLock(projectDir)
	lock.Lock()
	defer lock.Unlock()

	var path string
	switch backend {
	case worker.BackendGemini:
		path = GeminiRulesPath(projectDir, workerID)
	default:
		path = ClaudeRulesPath(projectDir, workerID)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("templates: removing %s: %w", path, err)
	}
	return nil
}
