package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsProtectedMatchesGeneralPrefix(t *testing.T) {
	w := &Worker{Label: "GENERAL: coordinator"}
	assert.True(t, w.IsProtected())

	w = &Worker{Label: "general: lowercase"}
	assert.True(t, w.IsProtected())

	w = &Worker{Label: "CAPTAIN: build feature"}
	assert.False(t, w.IsProtected())
}

func TestAddChildNoDuplicatesNoSelfRef(t *testing.T) {
	w := &Worker{ID: "abc"}
	w.AddChild("child1")
	w.AddChild("child1")
	w.AddChild("abc")
	w.AddChild("")
	w.AddChild("child2")

	assert.Equal(t, []string{"child1", "child2"}, w.ChildWorkerIDs)
}

func TestRemoveChildSplicesAndRecordsHistory(t *testing.T) {
	w := &Worker{ID: "abc", ChildWorkerIDs: []string{"c1", "c2", "c3"}}
	w.RemoveChild("c2")

	assert.Equal(t, []string{"c1", "c3"}, w.ChildWorkerIDs)
	assert.Equal(t, []string{"c2"}, w.ChildWorkerHistory)

	// Removing again is a no-op on the list, and history has no duplicates.
	w.ChildWorkerIDs = append(w.ChildWorkerIDs, "c2")
	w.RemoveChild("c2")
	assert.Equal(t, []string{"c1", "c3"}, w.ChildWorkerIDs)
	assert.Equal(t, []string{"c2"}, w.ChildWorkerHistory)
}

func TestRemoveChildAbsentLeavesListAndRecordsHistory(t *testing.T) {
	w := &Worker{ID: "abc", ChildWorkerIDs: []string{"c1"}}
	w.RemoveChild("nope")
	assert.Equal(t, []string{"c1"}, w.ChildWorkerIDs)
	assert.Equal(t, []string{"nope"}, w.ChildWorkerHistory)
}

func TestNewIDIsShortAndOpaque(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		assert.NotEmpty(t, id)
		assert.Less(t, len(id), 16)
		assert.False(t, seen[id], "NewID produced a duplicate")
		seen[id] = true
		for _, r := range id {
			assert.Contains(t, idAlphabet, string(r))
		}
	}
}

func TestSessionNameForDerivesFromID(t *testing.T) {
	assert.Equal(t, "strategos-abc123", SessionNameFor("abc123"))
}
