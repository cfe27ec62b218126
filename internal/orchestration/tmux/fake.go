package tmux

import (
	"context"
	"sync"
)

var _ Client = (*Fake)(nil)

// Fake is an in-memory Client used by tests of components that drive
// tmux (control, health, lifecycle) without a real tmux server.
type Fake struct {
	mu       sync.Mutex
	sessions map[string]*fakeSession

	// NewSessionErr, when set, is returned by every NewSession call.
	NewSessionErr error
}

type fakeSession struct {
	workingDir  string
	command     string
	sentKeys    []string
	pane        string
	cols, rows  int
	paneCommand string
}

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{sessions: make(map[string]*fakeSession)}
}

func (f *Fake) NewSession(_ context.Context, sessionName, workingDir, command string) error {
	if f.NewSessionErr != nil {
		return f.NewSessionErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[sessionName] = &fakeSession{workingDir: workingDir, command: command}
	return nil
}

func (f *Fake) HasSession(_ context.Context, sessionName string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[sessionName]
	return ok, nil
}

func (f *Fake) KillSession(_ context.Context, sessionName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sessionName)
	return nil
}

func (f *Fake) SendKeys(_ context.Context, sessionName, input string, enter bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionName]
	if !ok {
		return errSessionNotFound(sessionName)
	}
	entry := input
	if enter {
		entry += "\n"
	}
	s.sentKeys = append(s.sentKeys, entry)
	return nil
}

func (f *Fake) CapturePane(_ context.Context, sessionName string, _ int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionName]
	if !ok {
		return "", errSessionNotFound(sessionName)
	}
	return s.pane, nil
}

// SetPane lets a test script what CapturePane should return next.
func (f *Fake) SetPane(sessionName, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[sessionName]; ok {
		s.pane = content
	}
}

func (f *Fake) ResizeWindow(_ context.Context, sessionName string, cols, rows int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionName]
	if !ok {
		return errSessionNotFound(sessionName)
	}
	s.cols, s.rows = cols, rows
	return nil
}

func (f *Fake) ListSessions(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sessions))
	for name := range f.sessions {
		out = append(out, name)
	}
	return out, nil
}

func (f *Fake) DisplayMessage(_ context.Context, sessionName, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionName]
	if !ok {
		return "", errSessionNotFound(sessionName)
	}
	return s.paneCommand, nil
}

// SetPaneCommand lets a test script what DisplayMessage's
// "#{pane_current_command}" lookup should return for sessionName, e.g.
// simulating a bare login shell left behind by a crashed backend.
func (f *Fake) SetPaneCommand(sessionName, cmd string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[sessionName]; ok {
		s.paneCommand = cmd
	}
}

// SentKeys returns every input SendKeys has recorded for sessionName, in
// order, for test assertions.
func (f *Fake) SentKeys(sessionName string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionName]
	if !ok {
		return nil
	}
	return append([]string(nil), s.sentKeys...)
}

type sessionNotFoundError string

func (e sessionNotFoundError) Error() string { return "tmux: no such session: " + string(e) }

func errSessionNotFound(name string) error { return sessionNotFoundError(name) }
