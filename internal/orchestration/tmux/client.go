// Package tmux wraps the tmux command-line protocol the engine drives every
// worker session through: creating, capturing, feeding keys to, and tearing
// down panes (§4.4, §5). Nothing outside this package invokes the tmux
// binary directly.
package tmux

import "context"

// Client is the multiplexer protocol surface the rest of the engine depends
// on. A real implementation shells out to the tmux binary; tests substitute
// a fake.
type Client interface {
	NewSession(ctx context.Context, sessionName, workingDir, command string) error
	HasSession(ctx context.Context, sessionName string) (bool, error)
	KillSession(ctx context.Context, sessionName string) error
	SendKeys(ctx context.Context, sessionName, input string, enter bool) error
	CapturePane(ctx context.Context, sessionName string, scrollbackLines int) (string, error)
	ResizeWindow(ctx context.Context, sessionName string, cols, rows int) error
	ListSessions(ctx context.Context) ([]string, error)
	DisplayMessage(ctx context.Context, sessionName, format string) (string, error)
}
