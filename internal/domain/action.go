package domain

// ActionKind enumerates the conductor's possible decisions for a turn.
type ActionKind string

const (
	ActionDirectReply  ActionKind = "direct_reply"
	ActionDelegate     ActionKind = "delegate"
	ActionPresentDraft ActionKind = "present_draft"
	ActionSuppress     ActionKind = "suppress"
)

// ConductorAction is the conductor's decision for one inbound turn. Exactly
// one of the payload fields is set, selected by Kind.
type ConductorAction struct {
	Kind   ActionKind   `json:"kind"`
	Reply  string       `json:"reply,omitempty"`  // direct_reply
	Task   *TaskRequest `json:"task,omitempty"`   // delegate
	Draft  *DraftAction `json:"draft,omitempty"`  // present_draft
	Reason string       `json:"reason,omitempty"` // suppress
}

// DirectReply builds a direct-reply action.
func DirectReply(text string) ConductorAction {
	return ConductorAction{Kind: ActionDirectReply, Reply: text}
}

// Delegate builds a delegate action carrying a task request.
func Delegate(req TaskRequest) ConductorAction {
	return ConductorAction{Kind: ActionDelegate, Task: &req}
}

// PresentDraft builds a confirmation-gated draft presentation.
func PresentDraft(d DraftAction) ConductorAction {
	return ConductorAction{Kind: ActionPresentDraft, Draft: &d}
}

// Suppress builds a suppression with a reason for the log.
func Suppress(reason string) ConductorAction {
	return ConductorAction{Kind: ActionSuppress, Reason: reason}
}
