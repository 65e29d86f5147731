// Package worker executes plans step by step: dependency-ordered, with a
// bounded tool-calling loop per step and bounded retries. Irreversible
// steps produce drafts instead of invoking their tool.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/soyeahso/valet/internal/domain"
	"github.com/soyeahso/valet/internal/llm"
	"github.com/soyeahso/valet/internal/logging"
	"github.com/soyeahso/valet/internal/tool"
	"github.com/soyeahso/valet/internal/tool/email"
)

// StepExecutionError reports a step that could not be completed after all
// retries. It is non-fatal to the plan; the step is marked failed.
type StepExecutionError struct {
	StepIndex int
	Reason    string
	Err       error
}

func (e *StepExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("step %d: %s: %v", e.StepIndex, e.Reason, e.Err)
	}
	return fmt.Sprintf("step %d: %s", e.StepIndex, e.Reason)
}

func (e *StepExecutionError) Unwrap() error { return e.Err }

// Worker executes plans against the capability registry.
type Worker struct {
	registry *tool.Registry
	client   llm.Client
	model    string
	log      *logging.Logger

	maxToolCalls int // per-step tool loop bound
	maxRetries   int // per-step retry bound
	maxSteps     int // plan size bound
}

// Options bound the execution loops. Zero values take defaults.
type Options struct {
	MaxToolCallsPerStep int
	MaxStepRetries      int
	MaxSteps            int
}

// New creates a worker. The client drives per-step tool loops and the final
// summary; the registry supplies the capabilities.
func New(registry *tool.Registry, client llm.Client, model string, opts Options, log *logging.Logger) *Worker {
	if opts.MaxToolCallsPerStep <= 0 {
		opts.MaxToolCallsPerStep = 5
	}
	if opts.MaxStepRetries <= 0 {
		opts.MaxStepRetries = 3
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 20
	}
	return &Worker{
		registry:     registry,
		client:       client,
		model:        model,
		log:          log.Sub("worker"),
		maxToolCalls: opts.MaxToolCallsPerStep,
		maxRetries:   opts.MaxStepRetries,
		maxSteps:     opts.MaxSteps,
	}
}

// Execute runs the plan's steps in index order, which is a valid topological
// order because dependencies may only reference earlier steps. A step whose
// dependency failed or was skipped is skipped. Steps flagged for
// confirmation never invoke their tool; they produce a DraftAction instead.
func (w *Worker) Execute(ctx context.Context, plan *domain.Plan, sessionID string) (*domain.TaskResult, error) {
	if plan.IsAskUser() {
		return &domain.TaskResult{
			PlanID:  plan.ID,
			Status:  domain.TaskSuccess,
			Summary: plan.Steps[0].Instruction,
			Steps: []domain.StepResult{{
				StepIndex: 0,
				Output:    plan.Steps[0].Instruction,
				Status:    domain.StepDone,
			}},
		}, nil
	}
	if len(plan.Steps) > w.maxSteps {
		return nil, &StepExecutionError{Reason: fmt.Sprintf("plan has %d steps, limit is %d", len(plan.Steps), w.maxSteps)}
	}

	result := &domain.TaskResult{PlanID: plan.ID}
	outputs := make(map[int]string, len(plan.Steps))
	statuses := make(map[int]domain.StepStatus, len(plan.Steps))

	for _, step := range plan.Steps {
		if blocked(step, statuses) {
			statuses[step.Index] = domain.StepSkipped
			result.Steps = append(result.Steps, domain.StepResult{
				StepIndex: step.Index,
				Status:    domain.StepSkipped,
				Error:     "skipped: dependency did not succeed",
			})
			continue
		}

		args := resolveArgs(step.Args, outputs, sessionID)
		instruction := resolvePlaceholders(step.Instruction, outputs)

		if step.RequiresConfirmation {
			// One draft per execution; the conductor can only hold one
			// pending confirmation per session. Further irreversible steps
			// wait for a follow-up request.
			if result.Draft != nil {
				statuses[step.Index] = domain.StepSkipped
				result.Steps = append(result.Steps, domain.StepResult{
					StepIndex: step.Index,
					Status:    domain.StepSkipped,
					Error:     "skipped: another action is already awaiting confirmation",
				})
				continue
			}
			draft := draftFromArgs(args, plan.ID)
			result.Draft = draft
			statuses[step.Index] = domain.StepDone
			out := fmt.Sprintf("Draft prepared for %s (subject: %s). Awaiting confirmation before sending.", draft.To, draft.Subject)
			outputs[step.Index] = out
			result.Steps = append(result.Steps, domain.StepResult{
				StepIndex: step.Index,
				Output:    out,
				Status:    domain.StepDone,
			})
			continue
		}

		sr := w.runStepWithRetries(ctx, step, instruction, args, outputs, sessionID)
		statuses[step.Index] = sr.Status
		if sr.Status == domain.StepDone {
			outputs[step.Index] = sr.Output
		}
		result.Steps = append(result.Steps, sr)
	}

	result.Status = aggregate(result.Steps)
	result.Summary = w.summarize(ctx, plan, result)

	w.log.Info().
		Str("planId", plan.ID).
		Str("status", string(result.Status)).
		Int("steps", len(result.Steps)).
		Msg("plan executed")
	return result, nil
}

// ExecuteConfirmed sends a previously presented draft. This is the one-step
// re-entry path taken after an explicit affirmative turn; it is the only
// place an irreversible email send is invoked.
func (w *Worker) ExecuteConfirmed(ctx context.Context, draft *domain.DraftAction) (string, error) {
	input, err := json.Marshal(map[string]string{
		"to":      draft.To,
		"subject": draft.Subject,
		"body":    draft.Body,
	})
	if err != nil {
		return "", fmt.Errorf("encoding draft: %w", err)
	}
	out, err := w.registry.InvokeConfirmed(ctx, email.ToolSend, string(input))
	if err != nil {
		return "", fmt.Errorf("sending confirmed draft: %w", err)
	}
	w.log.Info().Str("to", draft.To).Msg("confirmed draft sent")
	return out, nil
}

// runStepWithRetries retries a failed step, appending the previous error to
// the prompt so the next attempt can correct course.
func (w *Worker) runStepWithRetries(ctx context.Context, step domain.Step, instruction string, args map[string]any, outputs map[int]string, sessionID string) domain.StepResult {
	var lastErr error
	var invocations []domain.ToolInvocation

	for attempt := 0; attempt < w.maxRetries; attempt++ {
		out, inv, err := w.runStep(ctx, step, instruction, args, outputs, sessionID, lastErr)
		invocations = append(invocations, inv...)
		if err == nil {
			return domain.StepResult{
				StepIndex:   step.Index,
				Output:      out,
				Invocations: invocations,
				Status:      domain.StepDone,
			}
		}
		lastErr = err
		w.log.Warn().Err(err).Int("step", step.Index).Int("attempt", attempt+1).Msg("step attempt failed")
	}

	return domain.StepResult{
		StepIndex:   step.Index,
		Invocations: invocations,
		Error:       (&StepExecutionError{StepIndex: step.Index, Reason: "retries exhausted", Err: lastErr}).Error(),
		Status:      domain.StepFailed,
	}
}

// runStep drives one bounded tool loop. The model sees only the step's
// capability; it either calls the tool or answers directly. Exceeding the
// loop bound is an error.
func (w *Worker) runStep(ctx context.Context, step domain.Step, instruction string, args map[string]any, outputs map[int]string, sessionID string, prevErr error) (string, []domain.ToolInvocation, error) {
	def, ok := w.registry.Get(step.Capability)
	if !ok {
		return "", nil, &StepExecutionError{StepIndex: step.Index, Reason: "capability not registered: " + step.Capability}
	}

	var user strings.Builder
	fmt.Fprintf(&user, "Step: %s\n", instruction)
	if len(args) > 0 {
		argJSON, _ := json.Marshal(args)
		fmt.Fprintf(&user, "Planned arguments: %s\n", argJSON)
	}
	if prevErr != nil {
		fmt.Fprintf(&user, "The previous attempt failed with: %v\nAdjust and try again.\n", prevErr)
	}

	messages := []llm.Message{{Role: llm.RoleUser, Content: user.String()}}
	tools := []llm.ToolDefinition{{
		Name:        def.Name(),
		Description: def.Description(),
		InputSchema: def.InputSchema(),
	}}

	var invocations []domain.ToolInvocation
	for i := 0; i < w.maxToolCalls; i++ {
		resp, err := w.client.Complete(ctx, llm.CompletionRequest{
			Model:    w.model,
			System:   stepSystemPrompt,
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return "", invocations, err
		}
		if len(resp.ToolCalls) == 0 {
			out := strings.TrimSpace(resp.Content)
			if out == "" && len(invocations) > 0 {
				out = invocations[len(invocations)-1].Output
			}
			return out, invocations, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			// The model may echo planned arguments verbatim, placeholders
			// included.
			input := injectSessionID(resolveCallArguments(call.Arguments, outputs), sessionID)
			out, invErr := w.registry.Invoke(ctx, call.Name, input)
			inv := domain.ToolInvocation{Tool: call.Name, Input: input, Output: out}
			reply := out
			if invErr != nil {
				inv.Error = invErr.Error()
				reply = "error: " + invErr.Error()
			}
			invocations = append(invocations, inv)
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    reply,
				ToolCallID: call.ID,
			})
		}
	}

	return "", invocations, &StepExecutionError{StepIndex: step.Index, Reason: "tool loop exhausted"}
}

const stepSystemPrompt = `You execute one step of a larger plan. Use the provided tool to carry out the step, then report the outcome in one or two sentences. If the planned arguments are sufficient, call the tool with them directly. Do not invent results.`

// summarize asks the model for a short user-facing result summary, falling
// back to a deterministic one when the call fails.
func (w *Worker) summarize(ctx context.Context, plan *domain.Plan, result *domain.TaskResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task: %s\n\nStep outcomes:\n", plan.Description)
	for _, sr := range result.Steps {
		switch sr.Status {
		case domain.StepDone:
			fmt.Fprintf(&sb, "- step %d: %s\n", sr.StepIndex, sr.Output)
		default:
			fmt.Fprintf(&sb, "- step %d: %s (%s)\n", sr.StepIndex, sr.Status, sr.Error)
		}
	}

	resp, err := w.client.Complete(ctx, llm.CompletionRequest{
		Model:    w.model,
		System:   "Summarize the task outcome for the user in at most three sentences. Report only what the step outcomes say.",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: sb.String()}},
	})
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		return fallbackSummary(result)
	}
	return strings.TrimSpace(resp.Content)
}

// fallbackSummary reports step counts and the last successful output.
func fallbackSummary(result *domain.TaskResult) string {
	done, failed := 0, 0
	var lastOut string
	for _, sr := range result.Steps {
		switch sr.Status {
		case domain.StepDone:
			done++
			if sr.Output != "" {
				lastOut = sr.Output
			}
		case domain.StepFailed:
			failed++
		}
	}
	switch result.Status {
	case domain.TaskSuccess:
		if lastOut != "" {
			return lastOut
		}
		return fmt.Sprintf("Completed all %d steps.", done)
	case domain.TaskPartial:
		return fmt.Sprintf("Completed %d of %d steps; %d failed. Last result: %s", done, len(result.Steps), failed, lastOut)
	default:
		return fmt.Sprintf("The task failed: none of the %d steps completed.", len(result.Steps))
	}
}

// blocked reports whether any dependency of the step did not finish done.
func blocked(step domain.Step, statuses map[int]domain.StepStatus) bool {
	for _, dep := range step.DependsOn {
		if statuses[dep] != domain.StepDone {
			return true
		}
	}
	return false
}

// aggregate derives the overall status: success when every step is done,
// failed when none are, partial otherwise.
func aggregate(steps []domain.StepResult) domain.TaskStatus {
	done := 0
	for _, sr := range steps {
		if sr.Status == domain.StepDone {
			done++
		}
	}
	switch {
	case done == len(steps):
		return domain.TaskSuccess
	case done == 0:
		return domain.TaskFailed
	default:
		return domain.TaskPartial
	}
}

// resolveArgs substitutes {step_N_result} placeholders in string argument
// values with earlier outputs and injects the session id.
func resolveArgs(args map[string]any, outputs map[int]string, sessionID string) map[string]any {
	resolved := make(map[string]any, len(args)+1)
	for k, v := range args {
		if s, ok := v.(string); ok {
			resolved[k] = resolvePlaceholders(s, outputs)
		} else {
			resolved[k] = v
		}
	}
	if sessionID != "" {
		if _, ok := resolved["session_id"]; !ok {
			resolved["session_id"] = sessionID
		}
	}
	return resolved
}

// resolvePlaceholders replaces every {step_N_result} token present in s.
func resolvePlaceholders(s string, outputs map[int]string) string {
	for idx, out := range outputs {
		s = strings.ReplaceAll(s, fmt.Sprintf("{step_%d_result}", idx), out)
	}
	return s
}

// resolveCallArguments substitutes placeholders in a tool call's JSON
// arguments. Substitution happens on the decoded string values, not the raw
// JSON text: step outputs are usually JSON themselves, and splicing them
// into a string literal would break the document. Arguments that do not
// decode as an object get raw substitution as a last resort.
func resolveCallArguments(arguments string, outputs map[int]string) string {
	var obj map[string]any
	if err := json.Unmarshal([]byte(arguments), &obj); err != nil {
		return resolvePlaceholders(arguments, outputs)
	}
	changed := false
	for k, v := range obj {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if r := resolvePlaceholders(s, outputs); r != s {
			obj[k] = r
			changed = true
		}
	}
	if !changed {
		return arguments
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return arguments
	}
	return string(out)
}

// injectSessionID sets session_id in a tool-call argument object when the
// model omitted it. Non-object arguments pass through untouched.
func injectSessionID(arguments, sessionID string) string {
	if sessionID == "" {
		return arguments
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(arguments), &obj); err != nil {
		return arguments
	}
	if _, ok := obj["session_id"]; ok {
		return arguments
	}
	obj["session_id"] = sessionID
	out, err := json.Marshal(obj)
	if err != nil {
		return arguments
	}
	return string(out)
}

// draftFromArgs builds the reviewable payload for an irreversible send step.
func draftFromArgs(args map[string]any, planID string) *domain.DraftAction {
	str := func(key string) string {
		if v, ok := args[key].(string); ok {
			return v
		}
		return ""
	}
	return &domain.DraftAction{
		To:      str("to"),
		Subject: str("subject"),
		Body:    str("body"),
		TaskID:  planID,
	}
}
