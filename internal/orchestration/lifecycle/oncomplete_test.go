package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strategos/strategos/internal/orchestration/worker"
)

func TestStripSensitiveRecursiveRemovesNestedKeys(t *testing.T) {
	in := map[string]any{
		"label": "ok",
		"token": "shh",
		"nested": map[string]any{
			"apiKey": "shh",
			"fine":   "ok",
		},
	}
	out := stripSensitiveRecursive(in)

	assert.Equal(t, "ok", out["label"])
	assert.NotContains(t, out, "token")
	nested, ok := out["nested"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, nested, "apiKey")
	assert.Equal(t, "ok", nested["fine"])

	assert.Contains(t, in, "token", "input map must not be mutated")
}

func TestValidateWebhookURLRejectsNonHTTPScheme(t *testing.T) {
	_, err := validateWebhookURL("ftp://example.com/hook")
	assert.Error(t, err)
}

func TestValidateWebhookURLRejectsLoopback(t *testing.T) {
	_, err := validateWebhookURL("http://127.0.0.1:8080/hook")
	assert.Error(t, err)
}

func TestValidateWebhookURLRejectsMetadataHost(t *testing.T) {
	_, err := validateWebhookURL("http://169.254.169.254/latest/meta-data")
	assert.Error(t, err)
}

func TestValidateWebhookURLRejectsBlockedHostname(t *testing.T) {
	_, err := validateWebhookURL("http://metadata.google.internal/computeMetadata/v1")
	assert.Error(t, err)
}

func TestDispatchEmitActionRejectsUnknownPrefix(t *testing.T) {
	h := newHarness(t)
	w := &worker.Worker{ID: "w1"}
	h.registry.Put(w)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := h.bus.Subscribe(ctx)

	h.engine.dispatchEmitAction("w1", OnCompleteAction{Kind: "emit", Event: "danger:escape"})

	select {
	case env := <-sub:
		t.Fatalf("expected disallowed event prefix to be rejected, got %v", env.Payload.Topic)
	default:
	}
}

func TestDispatchOnCompleteSpawnsFollowupWorker(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	w := &worker.Worker{ID: "w1", WorkingDir: h.cfg.TheaRoot}
	h.registry.Put(w)

	h.engine.dispatchOnComplete(ctx, w, OnCompleteAction{
		Kind:         "spawn",
		SpawnProject: ".",
		SpawnLabel:   "PRIVATE: followup",
	})

	found := false
	for _, got := range h.registry.All() {
		if got.Label == "PRIVATE: followup" {
			found = true
		}
	}
	assert.True(t, found)
}
