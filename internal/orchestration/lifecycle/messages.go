package lifecycle

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/strategos/strategos/internal/log"
	"github.com/strategos/strategos/internal/orchestration/worker"
)

// newRalphToken generates an opaque token identifying the Ralph adoption
// signal endpoint for a single worker (§4.6 step 7).
func newRalphToken() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// scheduleInitialMessage delays the worker's first pane input by
// InitialMessageDelay (§4.6 step 6).
func (e *Engine) scheduleInitialMessage(w *worker.Worker, task *TaskSpec) {
	id := w.ID
	msg := initialMessage(w, task)
	t := time.AfterFunc(InitialMessageDelay, func() {
		e.deliverMessage(id, msg)
	})
	e.addTimer(id, t)
}

// scheduleRalphReminder schedules the Ralph adoption reminder pointing at
// workerID's signal endpoint after delay (§4.6 step 7).
func (e *Engine) scheduleRalphReminder(workerID string, delay time.Duration) {
	t := time.AfterFunc(delay, func() {
		e.deliverMessage(workerID, "Reminder: report Ralph progress via your signal endpoint.")
	})
	e.addTimer(workerID, t)
}

func (e *Engine) deliverMessage(workerID, message string) {
	w, ok := e.registry.Get(workerID)
	if !ok || w.Status != worker.StatusRunning {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.tmux.SendKeys(ctx, w.SessionName, message, true); err != nil {
		e.logger.Warn(log.CatLifecycle, "delayed message delivery failed", "workerId", workerID, "error", err.Error())
	}
}

// initialMessage builds the worker's first input: "Awaiting orders" for a
// GENERAL with no task, or the escaped structured task message otherwise
// (§4.6 step 6).
func initialMessage(w *worker.Worker, task *TaskSpec) string {
	if task == nil {
		if w.IsProtected() {
			return "Awaiting orders."
		}
		return fmt.Sprintf("You have been spawned as %s with no assigned task.", w.Label)
	}
	return formatTaskMessage(*task)
}

// formatTaskMessage renders a structured task description as plain text,
// escaping control characters so the message cannot inject extra pane
// commands when delivered via a literal keystroke send (§4.6 step 6).
func formatTaskMessage(t TaskSpec) string {
	var b strings.Builder
	b.WriteString("Purpose: ")
	b.WriteString(escapeMessageText(t.Purpose))
	b.WriteString("\n")

	writeList(&b, "Success criteria", t.SuccessCriteria)
	writeList(&b, "Key steps", t.KeySteps)
	writeList(&b, "Constraints", t.Constraints)

	return strings.TrimRight(b.String(), "\n")
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(heading)
	b.WriteString(":\n")
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(escapeMessageText(item))
		b.WriteString("\n")
	}
}

// escapeMessageText strips carriage returns and control characters from a
// caller-supplied string so a malicious task field cannot smuggle an extra
// newline-terminated command into the delivered message.
func escapeMessageText(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r':
			b.WriteRune(' ')
		case r < 0x20:
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
