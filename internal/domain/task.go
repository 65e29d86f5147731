package domain

// TaskRequest is the conductor's hand-off to the planner. It is consumed
// once and never persisted.
type TaskRequest struct {
	Description          string `json:"description"`
	SessionID            string `json:"sessionId"`
	OriginatingMessageID string `json:"originatingMessageId,omitempty"`
	RequiresConfirmation bool   `json:"requiresConfirmation,omitempty"`
}

// ToolInvocation is one entry in a step's ordered tool-call log.
type ToolInvocation struct {
	Tool   string `json:"tool"`
	Input  string `json:"input"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// StepResult is the outcome of executing a single step.
type StepResult struct {
	StepIndex   int              `json:"stepIndex"`
	Output      string           `json:"output,omitempty"`
	Invocations []ToolInvocation `json:"invocations,omitempty"`
	Error       string           `json:"error,omitempty"`
	Status      StepStatus       `json:"status"`
}

// TaskStatus is the aggregate outcome of a plan execution.
type TaskStatus string

const (
	TaskSuccess TaskStatus = "success"
	TaskPartial TaskStatus = "partial"
	TaskFailed  TaskStatus = "failed"
)

// TaskResult aggregates the step results of one worker invocation.
type TaskResult struct {
	PlanID  string       `json:"planId"`
	Steps   []StepResult `json:"steps"`
	Status  TaskStatus   `json:"status"`
	Summary string       `json:"summary,omitempty"`
	Draft   *DraftAction `json:"draft,omitempty"`
}

// DraftAction is an unsent, user-reviewable payload for an irreversible
// email operation. It exists only between the worker producing it and the
// conductor presenting it for confirmation.
type DraftAction struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	TaskID  string `json:"taskId,omitempty"`
}
