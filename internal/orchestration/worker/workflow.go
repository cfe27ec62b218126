package worker

// WorkflowStatus is the aggregate state of a Workflow grouping (§3).
type WorkflowStatus string

// Workflow aggregate states.
const (
	WorkflowStatusActive   WorkflowStatus = "active"
	WorkflowStatusComplete WorkflowStatus = "completed"
)

// Workflow groups a set of related workers working a declared task list
// (§3).
type Workflow struct {
	ID     string
	Name   string
	Tasks  []string
	Status WorkflowStatus

	WorkerIDs    []string
	TaskToWorker map[string]string
}

// NewWorkflow creates an empty, active Workflow.
func NewWorkflow(id, name string, tasks []string) *Workflow {
	return &Workflow{
		ID:           id,
		Name:         name,
		Tasks:        append([]string(nil), tasks...),
		Status:       WorkflowStatusActive,
		TaskToWorker: make(map[string]string),
	}
}

// AddWorker records workerID (for task, if given) as part of the workflow,
// idempotently.
func (wf *Workflow) AddWorker(workerID, task string) {
	found := false
	for _, id := range wf.WorkerIDs {
		if id == workerID {
			found = true
			break
		}
	}
	if !found {
		wf.WorkerIDs = append(wf.WorkerIDs, workerID)
	}
	if task != "" {
		wf.TaskToWorker[task] = workerID
	}
}

// IsComplete reports whether the workflow satisfies its completion rule:
// every known worker is completed, and at least as many workers as tasks
// have been recorded (§3: "workerIds.length >= tasks.length").
func (wf *Workflow) IsComplete(isWorkerCompleted func(id string) bool) bool {
	if len(wf.WorkerIDs) < len(wf.Tasks) {
		return false
	}
	for _, id := range wf.WorkerIDs {
		if !isWorkerCompleted(id) {
			return false
		}
	}
	return true
}
