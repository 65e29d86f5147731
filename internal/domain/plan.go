package domain

// StepStatus is the execution state of a single plan step.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepDone    StepStatus = "done"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// CapabilityAskUser is the reserved capability the planner emits when a task
// description is empty or too ambiguous to plan. The worker never executes
// it; the conductor surfaces the step's instruction as a question.
const CapabilityAskUser = "ask_user"

// Step is one unit of a plan. DependsOn may only reference earlier steps.
type Step struct {
	Index                int        `json:"index"`
	Instruction          string     `json:"instruction"`
	Capability           string     `json:"capability,omitempty"`
	Args                 map[string]any `json:"args,omitempty"`
	DependsOn            []int      `json:"dependsOn,omitempty"`
	RequiresConfirmation bool       `json:"requiresConfirmation,omitempty"`
	Status               StepStatus `json:"status"`
}

// Plan is an ordered, dependency-checked sequence of steps produced by the
// planner for a single worker invocation. The structure is immutable; only
// step statuses change during execution.
type Plan struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Steps       []Step `json:"steps"`
}

// IsAskUser reports whether the plan is a single clarifying question.
func (p *Plan) IsAskUser() bool {
	return len(p.Steps) == 1 && p.Steps[0].Capability == CapabilityAskUser
}
