package tracing

import "go.opentelemetry.io/otel/attribute"

// Span attribute keys, matching the teacher's dotted semantic-convention
// style (worker.id, not workerID).
const (
	AttrWorkerID    = "worker.id"
	AttrWorkerLabel = "worker.label"
	AttrProject     = "worker.project"
	AttrWorkflowID  = "worker.workflow_id"
	AttrReason      = "lifecycle.reason"
)

// Span name prefixes for the two instrumented components.
const (
	SpanPrefixLifecycle = "lifecycle."
	SpanPrefixControl   = "control."
)

func serviceNameAttr(name string) attribute.KeyValue {
	return attribute.String("service.name", name)
}
