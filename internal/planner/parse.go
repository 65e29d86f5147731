package planner

import (
	"encoding/json"
	"fmt"
	"strings"
)

// planStep is the wire shape the model is asked to emit.
type planStep struct {
	Instruction string         `json:"instruction"`
	Capability  string         `json:"capability"`
	Args        map[string]any `json:"args"`
	DependsOn   []int          `json:"depends_on"`
}

// parseSteps pulls the plan object out of the model's reply. Models wrap
// JSON in prose or code fences often enough that strict unmarshalling of
// the whole reply is a losing game; take the outermost braces instead.
func parseSteps(content string) ([]planStep, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in plan output")
	}

	var wire struct {
		Steps []planStep `json:"steps"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &wire); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	return wire.Steps, nil
}
