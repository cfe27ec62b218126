package lifecycle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/strategos/strategos/internal/log"
	"github.com/strategos/strategos/internal/orchestration/events"
	"github.com/strategos/strategos/internal/orchestration/worker"
)

// WebhookTimeout bounds every onComplete webhook call (§5: "Webhook calls
// time out at 10s").
const WebhookTimeout = 10 * time.Second

// sensitivePayloadKeys are stripped recursively from any onComplete emit
// or webhook payload before it leaves the process (§4.6, §9).
var sensitivePayloadKeys = map[string]bool{
	"ralphToken": true,
	"apiKey":     true,
	"password":   true,
	"secret":     true,
	"token":      true,
	"credential": true,
}

// stripSensitiveRecursive removes sensitivePayloadKeys from m and every
// nested map, returning a new map so the caller's copy is untouched.
func stripSensitiveRecursive(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sensitivePayloadKeys[k] {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			v = stripSensitiveRecursive(nested)
		}
		out[k] = v
	}
	return out
}

// dispatchOnComplete runs the onComplete action recorded for a
// just-completed worker (§4.6: "spawn | webhook | emit").
func (e *Engine) dispatchOnComplete(ctx context.Context, w *worker.Worker, action OnCompleteAction) {
	switch action.Kind {
	case "spawn":
		if _, err := e.Spawn(ctx, action.SpawnProject, action.SpawnLabel, action.SpawnOptions); err != nil {
			e.logger.Warn(log.CatLifecycle, "onComplete spawn failed", "workerId", w.ID, "error", err.Error())
		}
	case "webhook":
		e.dispatchWebhook(ctx, w.ID, action)
	case "emit":
		e.dispatchEmitAction(w.ID, action)
	default:
		e.logger.Warn(log.CatLifecycle, "onComplete action has unknown kind", "workerId", w.ID, "kind", action.Kind)
	}
}

// blockedHostSuffixes are cloud metadata / link-local hostnames the
// webhook validator refuses regardless of how they resolve (§4.6).
var blockedHostSuffixes = []string{"metadata.google.internal"}

// validateWebhookURL enforces the onComplete webhook contract: http(s)
// only, and a host that does not resolve to loopback, link-local, private
// ranges, or a known cloud metadata address (§4.6 SSRF guard).
func validateWebhookURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: parsing webhook url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("lifecycle: webhook scheme %q not allowed", u.Scheme)
	}

	host := u.Hostname()
	for _, blocked := range blockedHostSuffixes {
		if strings.EqualFold(host, blocked) {
			return nil, fmt.Errorf("lifecycle: webhook host %q is blocked", host)
		}
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: resolving webhook host: %w", err)
	}
	for _, ip := range ips {
		if isDisallowedWebhookIP(ip) {
			return nil, fmt.Errorf("lifecycle: webhook host %q resolves to a disallowed address", host)
		}
	}
	return u, nil
}

// metadataIP is the well-known cloud-metadata link-local address (AWS,
// GCP, Azure all serve it) that a webhook target must never resolve to.
var metadataIP = net.ParseIP("169.254.169.254")

func isDisallowedWebhookIP(ip net.IP) bool {
	if ip.Equal(metadataIP) {
		return true
	}
	return ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsPrivate()
}

func (e *Engine) dispatchWebhook(ctx context.Context, workerID string, action OnCompleteAction) {
	u, err := validateWebhookURL(action.URL)
	if err != nil {
		e.logger.Warn(log.CatLifecycle, "onComplete webhook rejected", "workerId", workerID, "error", err.Error())
		return
	}

	method := strings.ToUpper(action.Method)
	if method != http.MethodPost && method != http.MethodPut {
		e.logger.Warn(log.CatLifecycle, "onComplete webhook method not allowed", "workerId", workerID, "method", action.Method)
		return
	}

	body, err := json.Marshal(stripSensitiveRecursive(action.Payload))
	if err != nil {
		e.logger.Warn(log.CatLifecycle, "onComplete webhook payload encoding failed", "workerId", workerID, "error", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(ctx, WebhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		e.logger.Warn(log.CatLifecycle, "onComplete webhook request build failed", "workerId", workerID, "error", err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		e.logger.Warn(log.CatLifecycle, "onComplete webhook call failed", "workerId", workerID, "error", err.Error())
		return
	}
	_ = resp.Body.Close()
}

// emitEventPrefixes are the only topic prefixes an onComplete "emit"
// action may publish under (§4.6).
var emitEventPrefixes = []string{"worker:", "custom:", "app:"}

func (e *Engine) dispatchEmitAction(workerID string, action OnCompleteAction) {
	valid := false
	for _, prefix := range emitEventPrefixes {
		if strings.HasPrefix(action.Event, prefix) {
			valid = true
			break
		}
	}
	if !valid {
		e.logger.Warn(log.CatLifecycle, "onComplete emit event name rejected", "workerId", workerID, "event", action.Event)
		return
	}

	w, ok := e.registry.Get(workerID)
	if !ok {
		return
	}
	e.emit(events.Topic(action.Event), w, stripSensitiveRecursive(action.Payload))
}
