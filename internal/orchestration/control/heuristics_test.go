package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchesAutoAccept(t *testing.T) {
	assert.True(t, MatchesAutoAccept("Do you want to proceed?"))
	assert.True(t, MatchesAutoAccept("Overwrite file? (y/n)"))
	assert.False(t, MatchesAutoAccept("just some output"))
}

func TestMatchesRoleViolation(t *testing.T) {
	assert.True(t, MatchesRoleViolation("● Edit(foo.js)"))
	assert.True(t, MatchesRoleViolation("● Write(notes.md)"))
	assert.True(t, MatchesRoleViolation("● NotebookEdit(analysis.ipynb)"))
	assert.False(t, MatchesRoleViolation("implementing feature"))
	assert.False(t, MatchesRoleViolation("GENERAL: taking over"))
}

func TestMatchesRoleViolationShellCommands(t *testing.T) {
	assert.True(t, MatchesRoleViolation("● Bash(npm install)"), "implementation command is a violation")
	assert.False(t, MatchesRoleViolation("● Bash(git status)"), "commander-safe command is not a violation")
	assert.False(t, MatchesRoleViolation("● Bash(curl https://example.com)"))
	assert.False(t, MatchesRoleViolation("● Bash(jq .field file.json)"))
}

func TestMatchesRateLimit(t *testing.T) {
	assert.True(t, MatchesRateLimit("You have hit your usage limit"))
	assert.True(t, MatchesRateLimit("Context window compaction in progress"))
	assert.False(t, MatchesRateLimit("normal output"))
}

func TestDedupShouldFireOncePerCooloff(t *testing.T) {
	d := NewDedup()
	assert.True(t, d.ShouldFire("k1"))
	assert.False(t, d.ShouldFire("k1"))
	assert.True(t, d.ShouldFire("k2"))
}
