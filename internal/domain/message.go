// Package domain holds the core data model shared across valet subsystems.
package domain

import "time"

// Message roles. Specialist marks scheduler-originated pseudo-input so
// transcripts can distinguish it from real user turns.
const (
	RoleUser       = "user"
	RoleAssistant  = "assistant"
	RoleSpecialist = "specialist"
)

// Message is a single stored turn in a conversation. Messages are immutable
// once stored; ordering within a session is (timestamp, sequence).
type Message struct {
	ID        string     `json:"id"`
	SessionID string     `json:"sessionId"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Seq       int64      `json:"seq"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
}

// ToolCall records a tool invocation attached to a message.
type ToolCall struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Input  string `json:"input"`  // JSON string
	Output string `json:"output"` // JSON string
}

// TurnKind distinguishes real user input from scheduler-synthesized input.
type TurnKind string

const (
	TurnUser    TurnKind = "user"
	TurnTrigger TurnKind = "trigger"
)

// InboundTurn is new input entering the conductor. Fired triggers re-enter
// through the same path as user messages, tagged with TurnTrigger so the
// conductor's suppression rule applies.
type InboundTurn struct {
	SessionID string    `json:"sessionId"`
	Body      string    `json:"body"`
	Kind      TurnKind  `json:"kind"`
	TriggerID string    `json:"triggerId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
