// Package texttool exposes model-backed text capabilities: summarize,
// analyze, and extract. Each is a thin prompt around the completion client.
package texttool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soyeahso/valet/internal/llm"
	"github.com/soyeahso/valet/internal/tool"
)

// Capability names registered by this package.
const (
	ToolSummarize = "text.summarize"
	ToolAnalyze   = "text.analyze"
	ToolExtract   = "text.extract"
)

// RegisterAll adds the text capabilities backed by the given client.
func RegisterAll(reg *tool.Registry, client llm.Client, model string) {
	reg.Register(&summarizeTool{client: client, model: model})
	reg.Register(&analyzeTool{client: client, model: model})
	reg.Register(&extractTool{client: client, model: model})
}

type summarizeTool struct {
	client llm.Client
	model  string
}

func (t *summarizeTool) Name() string                { return ToolSummarize }
func (t *summarizeTool) SideEffect() tool.SideEffect { return tool.SideEffectReadOnly }
func (t *summarizeTool) Description() string {
	return "Summarize text in a bounded number of words."
}
func (t *summarizeTool) InputSchema() string {
	return `{"type":"object","properties":{"text":{"type":"string"},"max_words":{"type":"integer","default":200}},"required":["text"]}`
}

func (t *summarizeTool) Invoke(ctx context.Context, input string) (string, error) {
	var args struct {
		Text     string `json:"text"`
		MaxWords int    `json:"max_words"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.MaxWords <= 0 {
		args.MaxWords = 200
	}
	system := fmt.Sprintf("Summarize the user's text in at most %d words. Reply with the summary only.", args.MaxWords)
	return t.complete(ctx, system, args.Text)
}

func (t *summarizeTool) complete(ctx context.Context, system, text string) (string, error) {
	return complete(ctx, t.client, t.model, system, text)
}

type analyzeTool struct {
	client llm.Client
	model  string
}

func (t *analyzeTool) Name() string                { return ToolAnalyze }
func (t *analyzeTool) SideEffect() tool.SideEffect { return tool.SideEffectReadOnly }
func (t *analyzeTool) Description() string {
	return "Analyze text for a stated purpose and report findings."
}
func (t *analyzeTool) InputSchema() string {
	return `{"type":"object","properties":{"text":{"type":"string"},"task":{"type":"string","description":"What to analyze for"}},"required":["text","task"]}`
}

func (t *analyzeTool) Invoke(ctx context.Context, input string) (string, error) {
	var args struct {
		Text string `json:"text"`
		Task string `json:"task"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	system := "Analyze the user's text for the stated task. Be concise and factual."
	prompt := fmt.Sprintf("Task: %s\n\nText:\n%s", args.Task, args.Text)
	return complete(ctx, t.client, t.model, system, prompt)
}

type extractTool struct {
	client llm.Client
	model  string
}

func (t *extractTool) Name() string                { return ToolExtract }
func (t *extractTool) SideEffect() tool.SideEffect { return tool.SideEffectReadOnly }
func (t *extractTool) Description() string {
	return "Extract named fields from text as a JSON object; missing fields come back empty."
}
func (t *extractTool) InputSchema() string {
	return `{"type":"object","properties":{"text":{"type":"string"},"fields":{"type":"array","items":{"type":"string"}}},"required":["text","fields"]}`
}

func (t *extractTool) Invoke(ctx context.Context, input string) (string, error) {
	var args struct {
		Text   string   `json:"text"`
		Fields []string `json:"fields"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	system := fmt.Sprintf(
		"Extract these fields from the user's text: %s. Reply with a single JSON object mapping each field to its value, using \"\" when absent.",
		strings.Join(args.Fields, ", "),
	)
	return complete(ctx, t.client, t.model, system, args.Text)
}

func complete(ctx context.Context, client llm.Client, model, system, text string) (string, error) {
	resp, err := client.Complete(ctx, llm.CompletionRequest{
		Model:    model,
		System:   system,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: text}},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}
