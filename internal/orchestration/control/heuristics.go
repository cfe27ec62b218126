package control

import (
	"path/filepath"
	"regexp"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// AutoAcceptCooloff bounds how often the same prompt match re-triggers
// auto-accept for a given worker, preventing a feedback loop if the CLI
// keeps re-rendering the same confirmation prompt (§4.4: "6s cooloff").
const AutoAcceptCooloff = 6 * time.Second

// autoAcceptPatterns matches the confirmation prompts Claude/Gemini CLIs
// render when waiting on a (y/n)-style approval.
var autoAcceptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)do you want to proceed\?`),
	regexp.MustCompile(`(?i)\(y/n\)\s*$`),
	regexp.MustCompile(`(?i)press enter to continue`),
}

// toolInvocationPattern matches a backend CLI's tool-invocation banner when
// the tool is an editor, writer, or notebook tool -- a GENERAL worker
// (read-only tier) should never be doing implementation work itself (§4.2,
// §4.4 role-violation sentinel).
var toolInvocationPattern = regexp.MustCompile(`(?i)●\s*(Edit|MultiEdit|Write|NotebookEdit|NotebookWrite)\(`)

// shellCommandPattern matches a backend CLI's tool-invocation banner for a
// shell command, capturing the invoked command name so it can be checked
// against commanderSafeCommands (§4.4).
var shellCommandPattern = regexp.MustCompile(`(?i)●\s*Bash\(\s*(\S+)`)

// commanderSafeCommands allow-lists shell commands a GENERAL worker may run
// directly without it counting as a role violation (§4.4).
var commanderSafeCommands = map[string]bool{
	"git":  true,
	"curl": true,
	"ls":   true,
	"cat":  true,
	"jq":   true,
}

// rateLimitPattern matches the CLI's own rate-limit / context-compaction
// banner text.
var rateLimitPattern = regexp.MustCompile(`(?i)(rate limit|usage limit|context (window|compaction))`)

// idlePromptPattern matches a backend CLI's resting shell/agent prompt,
// a candidate for bulldoze continuation once the active-indicator check
// below also fails to match (§4.4).
var idlePromptPattern = regexp.MustCompile(`(?i)(^|\n)\s*(>|\$|Human:)\s*$`)

// activeIndicatorPattern matches words the CLI prints while it is still
// working, used to suppress bulldoze continuation during real activity
// (§4.4: "active: words like Thinking, Building, Compiling").
var activeIndicatorPattern = regexp.MustCompile(`(?i)\b(thinking|building|compiling|running|analyzing|generating)\b`)

// MatchesIdlePrompt reports whether output looks like a resting CLI prompt
// with no active-work indicator present, i.e. a candidate for bulldoze
// continuation.
func MatchesIdlePrompt(output string) bool {
	return idlePromptPattern.MatchString(output) && !activeIndicatorPattern.MatchString(output)
}

// Dedup gates auto-accept triggers per worker so the same prompt text does
// not re-fire within AutoAcceptCooloff.
type Dedup struct {
	cache *gocache.Cache
}

// NewDedup creates a Dedup using go-cache's sweep-based expiry.
func NewDedup() *Dedup {
	return &Dedup{cache: gocache.New(AutoAcceptCooloff, AutoAcceptCooloff*2)}
}

// ShouldFire reports whether key (typically workerID+promptHash) is allowed
// to fire now, registering it under the cooloff if so.
func (d *Dedup) ShouldFire(key string) bool {
	if _, found := d.cache.Get(key); found {
		return false
	}
	d.cache.Set(key, struct{}{}, gocache.DefaultExpiration)
	return true
}

// MatchesAutoAccept reports whether line looks like a CLI confirmation
// prompt eligible for auto-accept.
func MatchesAutoAccept(line string) bool {
	for _, re := range autoAcceptPatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// MatchesRoleViolation reports whether line shows a GENERAL worker
// invoking an editor/writer/notebook tool, or running a shell command that
// is not on the commander-safe allow-list (§4.2, §4.4, §8: "a GENERAL
// worker whose pane tail contains '● Edit(foo.js)'"). Callers are
// responsible for gating this to GENERAL (protected) workers only.
func MatchesRoleViolation(line string) bool {
	if toolInvocationPattern.MatchString(line) {
		return true
	}
	m := shellCommandPattern.FindStringSubmatch(line)
	if m == nil {
		return false
	}
	return !commanderSafeCommands[filepath.Base(m[1])]
}

// MatchesRateLimit reports whether line indicates the backend CLI hit a
// rate limit or triggered context compaction.
func MatchesRateLimit(line string) bool {
	return rateLimitPattern.MatchString(line)
}
