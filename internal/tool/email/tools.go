package email

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/soyeahso/valet/internal/tool"
)

// Capability names registered by this package.
const (
	ToolFetch   = "email.fetch"
	ToolSearch  = "email.search"
	ToolProfile = "email.profile"
	ToolSend    = "email.send"
)

// RegisterAll adds the email capabilities backed by the given provider.
func RegisterAll(reg *tool.Registry, p Provider) {
	reg.Register(&fetchTool{p: p})
	reg.Register(&searchTool{p: p})
	reg.Register(&profileTool{p: p})
	reg.Register(&sendTool{p: p})
}

type fetchTool struct{ p Provider }

func (t *fetchTool) Name() string { return ToolFetch }
func (t *fetchTool) Description() string {
	return "Fetch recent emails from the inbox, optionally filtered by a query."
}
func (t *fetchTool) SideEffect() tool.SideEffect { return tool.SideEffectReadOnly }
func (t *fetchTool) InputSchema() string {
	return `{"type":"object","properties":{"query":{"type":"string","description":"Filter text; empty for most recent"},"max_results":{"type":"integer","description":"Maximum messages to return","default":10}}}`
}

func (t *fetchTool) Invoke(ctx context.Context, input string) (string, error) {
	var args struct {
		Query      string `json:"query"`
		MaxResults int    `json:"max_results"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return "", err
	}
	if args.MaxResults <= 0 {
		args.MaxResults = 10
	}
	emails, err := t.p.Fetch(ctx, args.Query, args.MaxResults)
	if err != nil {
		return "", err
	}
	return marshalResult(map[string]any{"count": len(emails), "emails": emails})
}

type searchTool struct{ p Provider }

func (t *searchTool) Name() string { return ToolSearch }
func (t *searchTool) Description() string {
	return "Search the inbox for emails matching a query string."
}
func (t *searchTool) SideEffect() tool.SideEffect { return tool.SideEffectReadOnly }
func (t *searchTool) InputSchema() string {
	return `{"type":"object","properties":{"query":{"type":"string","description":"Search text"}},"required":["query"]}`
}

func (t *searchTool) Invoke(ctx context.Context, input string) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return "", err
	}
	if args.Query == "" {
		return "", fmt.Errorf("query is required")
	}
	emails, err := t.p.Search(ctx, args.Query)
	if err != nil {
		return "", err
	}
	return marshalResult(map[string]any{"count": len(emails), "emails": emails})
}

type profileTool struct{ p Provider }

func (t *profileTool) Name() string { return ToolProfile }
func (t *profileTool) Description() string {
	return "Get the connected mailbox address and message count."
}
func (t *profileTool) SideEffect() tool.SideEffect { return tool.SideEffectReadOnly }
func (t *profileTool) InputSchema() string {
	return `{"type":"object","properties":{}}`
}

func (t *profileTool) Invoke(ctx context.Context, input string) (string, error) {
	profile, err := t.p.Profile(ctx)
	if err != nil {
		return "", err
	}
	return marshalResult(profile)
}

type sendTool struct{ p Provider }

func (t *sendTool) Name() string { return ToolSend }
func (t *sendTool) Description() string {
	return "Send an email. Irreversible; requires user confirmation of a draft first."
}
func (t *sendTool) SideEffect() tool.SideEffect { return tool.SideEffectIrreversible }
func (t *sendTool) InputSchema() string {
	return `{"type":"object","properties":{"to":{"type":"string","description":"Recipient address"},"subject":{"type":"string"},"body":{"type":"string"}},"required":["to","subject","body"]}`
}

func (t *sendTool) Invoke(ctx context.Context, input string) (string, error) {
	var args struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return "", err
	}
	if args.To == "" {
		return "", fmt.Errorf("to is required")
	}
	if err := t.p.Send(ctx, args.To, args.Subject, args.Body); err != nil {
		return "", err
	}
	return marshalResult(map[string]any{"sent": true, "to": args.To, "subject": args.Subject})
}

func decodeArgs(input string, v any) error {
	if input == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(input), v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func marshalResult(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	return string(data), nil
}
