package templates

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/strategos/strategos/internal/log"
)

// TamperWatcher monitors a project's rules directory for out-of-band edits,
// removals, or renames and reports the affected file basenames, debounced
// per file so a burst of writes collapses into one notification.
type TamperWatcher struct {
	fsWatcher *fsnotify.Watcher
	debounce  time.Duration
	onTamper  chan string
	done      chan struct{}
}

// NewTamperWatcher creates a TamperWatcher with the given debounce interval
// (0 uses 200ms).
func NewTamperWatcher(debounce time.Duration) (*TamperWatcher, error) {
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("templates: creating fsnotify watcher: %w", err)
	}
	return &TamperWatcher{
		fsWatcher: fsw,
		debounce:  debounce,
		onTamper:  make(chan string, 16),
		done:      make(chan struct{}),
	}, nil
}

// Watch begins monitoring projectDir's .claude/rules directory (creating it
// first via the caller's Writer is assumed). Returns a channel of affected
// file basenames.
func (t *TamperWatcher) Watch(projectDir string) (<-chan string, error) {
	dir := filepath.Join(projectDir, ".claude", "rules")
	if err := t.fsWatcher.Add(dir); err != nil {
		return nil, fmt.Errorf("templates: watching %s: %w", dir, err)
	}
	go t.loop()
	return t.onTamper, nil
}

// Stop terminates the watcher.
func (t *TamperWatcher) Stop() error {
	close(t.done)
	return t.fsWatcher.Close()
}

func (t *TamperWatcher) loop() {
	pending := make(map[string]*time.Timer)

	for {
		select {
		case event, ok := <-t.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			base := filepath.Base(event.Name)
			if timer, exists := pending[base]; exists {
				timer.Stop()
			}
			pending[base] = time.AfterFunc(t.debounce, func() {
				select {
				case t.onTamper <- base:
				default:
				}
			})

		case err, ok := <-t.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Default().Warn(log.CatTemplates, "rules file watcher error", "error", err.Error())

		case <-t.done:
			for _, timer := range pending {
				timer.Stop()
			}
			return
		}
	}
}
