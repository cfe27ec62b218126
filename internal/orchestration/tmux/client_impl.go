package tmux

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/strategos/strategos/internal/paths"
)

// DefaultTimeout bounds every tmux invocation (§5: "30s timeout").
const DefaultTimeout = 30 * time.Second

// DefaultScrollbackLines is the capture-pane history depth when a caller
// does not specify one (§4.4: "-S -500").
const DefaultScrollbackLines = 500

var _ Client = (*RealClient)(nil)

// RealClient shells out to the system tmux binary.
type RealClient struct {
	// Timeout overrides DefaultTimeout when non-zero. Intended for tests.
	Timeout time.Duration
}

// NewRealClient creates a RealClient using DefaultTimeout.
func NewRealClient() *RealClient {
	return &RealClient{Timeout: DefaultTimeout}
}

func (c *RealClient) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c *RealClient) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	//nolint:gosec // G204: args are fixed, caller-controlled only via validated session names.
	cmd := exec.CommandContext(ctx, "tmux", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("tmux %s: %w", strings.Join(args, " "), ctx.Err())
		}
		stderrStr := strings.TrimSpace(stderr.String())
		if stderrStr != "" {
			return "", fmt.Errorf("tmux %s: %s", strings.Join(args, " "), stderrStr)
		}
		return "", fmt.Errorf("tmux %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimRight(stdout.String(), "\n"), nil
}

func validateSessionName(name string) error {
	if !paths.ValidSessionName(name) {
		return fmt.Errorf("tmux: invalid session name %q", name)
	}
	return nil
}

// NewSession starts a detached session named sessionName in workingDir
// running command.
func (c *RealClient) NewSession(ctx context.Context, sessionName, workingDir, command string) error {
	if err := validateSessionName(sessionName); err != nil {
		return err
	}
	_, err := c.run(ctx, "new-session", "-d", "-s", sessionName, "-c", workingDir, command)
	return err
}

// HasSession reports whether sessionName currently exists.
func (c *RealClient) HasSession(ctx context.Context, sessionName string) (bool, error) {
	if err := validateSessionName(sessionName); err != nil {
		return false, err
	}
	_, err := c.run(ctx, "has-session", "-t", sessionName)
	if err != nil {
		// tmux exits non-zero (no stderr text in some versions) when the
		// session is simply absent; treat any failure here as "not found"
		// rather than surfacing a spurious error to callers.
		return false, nil
	}
	return true, nil
}

// KillSession terminates sessionName, a no-op if it does not exist.
func (c *RealClient) KillSession(ctx context.Context, sessionName string) error {
	if err := validateSessionName(sessionName); err != nil {
		return err
	}
	exists, err := c.HasSession(ctx, sessionName)
	if err != nil || !exists {
		return err
	}
	_, err = c.run(ctx, "kill-session", "-t", sessionName)
	return err
}

// SendKeys feeds input into sessionName's active pane. When enter is true
// an Enter keystroke follows the literal text.
func (c *RealClient) SendKeys(ctx context.Context, sessionName, input string, enter bool) error {
	if err := validateSessionName(sessionName); err != nil {
		return err
	}
	args := []string{"send-keys", "-t", sessionName, "-l", input}
	if _, err := c.run(ctx, args...); err != nil {
		return err
	}
	if enter {
		_, err := c.run(ctx, "send-keys", "-t", sessionName, "Enter")
		return err
	}
	return nil
}

// CapturePane returns the visible pane content plus scrollbackLines of
// history (with escape sequences retained, per §4.4's diff/fingerprint
// stage which needs raw text -- stripping happens in textutil downstream).
func (c *RealClient) CapturePane(ctx context.Context, sessionName string, scrollbackLines int) (string, error) {
	if err := validateSessionName(sessionName); err != nil {
		return "", err
	}
	if scrollbackLines <= 0 {
		scrollbackLines = DefaultScrollbackLines
	}
	return c.run(ctx, "capture-pane", "-p", "-e", "-t", sessionName, "-S", "-"+strconv.Itoa(scrollbackLines))
}

// ResizeWindow sets sessionName's window dimensions.
func (c *RealClient) ResizeWindow(ctx context.Context, sessionName string, cols, rows int) error {
	if err := validateSessionName(sessionName); err != nil {
		return err
	}
	_, err := c.run(ctx, "resize-window", "-t", sessionName, "-x", strconv.Itoa(cols), "-y", strconv.Itoa(rows))
	return err
}

// ListSessions returns every currently live tmux session name.
func (c *RealClient) ListSessions(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, "list-sessions", "-F", "#S")
	if err != nil {
		// No server running yields an error with no sessions; treat as empty.
		return nil, nil
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// DisplayMessage evaluates a tmux format string against sessionName (used
// for pane-dead detection, pid lookup, etc.).
func (c *RealClient) DisplayMessage(ctx context.Context, sessionName, format string) (string, error) {
	if err := validateSessionName(sessionName); err != nil {
		return "", err
	}
	return c.run(ctx, "display-message", "-p", "-t", sessionName, format)
}
