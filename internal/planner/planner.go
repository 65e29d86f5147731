// Package planner decomposes a task description into an ordered,
// tool-bounded execution plan for the worker.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/soyeahso/valet/internal/domain"
	"github.com/soyeahso/valet/internal/llm"
	"github.com/soyeahso/valet/internal/logging"
	"github.com/soyeahso/valet/internal/tool"
)

// PlanningError reports a failed planning attempt. It is non-fatal: the
// conductor surfaces it as a failed delegate.
type PlanningError struct {
	Reason string
	Err    error
}

func (e *PlanningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("planning failed: %s: %v", e.Reason, e.Err)
	}
	return "planning failed: " + e.Reason
}

func (e *PlanningError) Unwrap() error { return e.Err }

// Planner turns task requests into plans using a completion model, then
// validates the result structurally.
type Planner struct {
	client llm.Client
	model  string
	log    *logging.Logger
}

// New creates a planner using the given completion client.
func New(client llm.Client, model string, log *logging.Logger) *Planner {
	return &Planner{client: client, model: model, log: log.Sub("planner")}
}

// Plan produces an execution plan for the task. An empty or fully ambiguous
// description, or an empty capability set for a non-empty task, yields a
// single ask_user step instead of an error. Structural violations in the
// model's output (forward or cyclic dependencies, unknown capabilities)
// are a PlanningError.
func (p *Planner) Plan(ctx context.Context, req domain.TaskRequest, caps []tool.Definition) (*domain.Plan, error) {
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		return askUserPlan(req, "What would you like me to do?"), nil
	}
	if len(caps) == 0 {
		return askUserPlan(req, fmt.Sprintf(
			"I don't have any capabilities available to do this right now: %s. Can you clarify what you need?", desc)), nil
	}

	resp, err := p.client.Complete(ctx, llm.CompletionRequest{
		Model:  p.model,
		System: buildPlannerPrompt(caps),
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "Task: " + desc},
		},
	})
	if err != nil {
		return nil, &PlanningError{Reason: "completion call failed", Err: err}
	}

	steps, err := parseSteps(resp.Content)
	if err != nil {
		// Unparseable output degrades to a single general-analysis step
		// when that capability exists, rather than failing the task.
		p.log.Warn().Err(err).Msg("unparseable plan output, using fallback step")
		if fallback := fallbackPlan(req, caps); fallback != nil {
			return fallback, nil
		}
		return nil, &PlanningError{Reason: "unparseable plan output", Err: err}
	}
	if len(steps) == 0 {
		return nil, &PlanningError{Reason: "plan produced zero steps"}
	}

	plan, err := finishPlan(req, steps, caps)
	if err != nil {
		return nil, err
	}

	p.log.Info().
		Str("planId", plan.ID).
		Int("steps", len(plan.Steps)).
		Msg("plan created")
	return plan, nil
}

// askUserPlan builds the single clarifying-question plan.
func askUserPlan(req domain.TaskRequest, question string) *domain.Plan {
	return &domain.Plan{
		ID:          uuid.New().String(),
		Description: req.Description,
		Steps: []domain.Step{{
			Index:       0,
			Instruction: question,
			Capability:  domain.CapabilityAskUser,
			Status:      domain.StepPending,
		}},
	}
}

// fallbackPlan wraps the whole task in one text.analyze step, if available.
func fallbackPlan(req domain.TaskRequest, caps []tool.Definition) *domain.Plan {
	for _, c := range caps {
		if c.Name == "text.analyze" {
			args := map[string]any{"text": req.Description, "task": "handle this user request"}
			return &domain.Plan{
				ID:          uuid.New().String(),
				Description: req.Description,
				Steps: []domain.Step{{
					Index:       0,
					Instruction: "Process the request with general analysis",
					Capability:  c.Name,
					Args:        args,
					Status:      domain.StepPending,
				}},
			}
		}
	}
	return nil
}

// finishPlan validates dependencies, merges redundant steps, and stamps
// confirmation flags from capability side-effect classes.
func finishPlan(req domain.TaskRequest, steps []planStep, caps []tool.Definition) (*domain.Plan, error) {
	sideEffects := make(map[string]tool.SideEffect, len(caps))
	for _, c := range caps {
		sideEffects[c.Name] = c.SideEffect
	}

	out := make([]domain.Step, 0, len(steps))
	for i, s := range steps {
		if s.Capability != domain.CapabilityAskUser {
			if _, ok := sideEffects[s.Capability]; !ok {
				return nil, &PlanningError{Reason: fmt.Sprintf("step %d references unknown capability %q", i, s.Capability)}
			}
		}
		for _, dep := range s.DependsOn {
			if dep < 0 || dep >= i {
				return nil, &PlanningError{Reason: fmt.Sprintf("step %d has invalid dependency on step %d", i, dep)}
			}
		}
		out = append(out, domain.Step{
			Index:                i,
			Instruction:          s.Instruction,
			Capability:           s.Capability,
			Args:                 s.Args,
			DependsOn:            append([]int(nil), s.DependsOn...),
			RequiresConfirmation: sideEffects[s.Capability] == tool.SideEffectIrreversible,
			Status:               domain.StepPending,
		})
	}

	out = mergeSteps(out)

	return &domain.Plan{
		ID:          uuid.New().String(),
		Description: req.Description,
		Steps:       out,
	}, nil
}

// mergeSteps collapses consecutive steps that share a capability, have equal
// dependency sets, and identical args, preferring the minimal step count.
// Indices and dependency references are rewritten afterwards.
func mergeSteps(steps []domain.Step) []domain.Step {
	if len(steps) < 2 {
		return steps
	}

	remap := make([]int, len(steps)) // old index → new index
	var kept []domain.Step

	for i, s := range steps {
		if len(kept) > 0 {
			prev := &kept[len(kept)-1]
			if s.Capability == prev.Capability &&
				!dependsOn(s.DependsOn, i-1) &&
				equalIntSets(s.DependsOn, prev.DependsOn) &&
				equalArgs(s.Args, prev.Args) {
				prev.Instruction = prev.Instruction + "; " + s.Instruction
				remap[i] = len(kept) - 1
				continue
			}
		}
		remap[i] = len(kept)
		kept = append(kept, s)
	}

	// Rewrite indices and dependency references against the kept order.
	// DependsOn still holds pre-merge indices at this point.
	for i := range kept {
		kept[i].Index = i
		seen := make(map[int]bool)
		var deps []int
		for _, d := range kept[i].DependsOn {
			nd := remap[d]
			if nd != i && !seen[nd] {
				seen[nd] = true
				deps = append(deps, nd)
			}
		}
		kept[i].DependsOn = deps
	}
	return kept
}

func dependsOn(deps []int, idx int) bool {
	for _, d := range deps {
		if d == idx {
			return true
		}
	}
	return false
}

func equalIntSets(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[int]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if !set[v] {
			return false
		}
	}
	return true
}

func equalArgs(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	return string(aj) == string(bj)
}
