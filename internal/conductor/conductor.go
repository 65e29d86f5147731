// Package conductor is the top-level decision loop. Every inbound turn,
// whether typed by the user or synthesized by the scheduler, passes through
// Handle, which classifies it, delegates task work to the planner and
// worker, deduplicates outbound content, and gates irreversible sends
// behind explicit confirmation.
package conductor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/valet/internal/domain"
	"github.com/soyeahso/valet/internal/llm"
	"github.com/soyeahso/valet/internal/logging"
	"github.com/soyeahso/valet/internal/planner"
	"github.com/soyeahso/valet/internal/store"
	"github.com/soyeahso/valet/internal/tool"
	"github.com/soyeahso/valet/internal/worker"
)

// Options bound the conductor's windows and loops. Zero values take defaults.
type Options struct {
	DedupWindow       int // assistant messages compared for outbound dedup
	SuppressWindow    int // history entries compared for trigger re-delivery
	MaxToolIterations int // direct-reply tool loop bound
	HistoryLimit      int // messages given to the model for direct replies
	SummarizeAfter    int // messages beyond the reply window before compaction
}

// Conductor routes turns between direct replies and delegated task work.
type Conductor struct {
	store    *store.ConversationStore
	planner  *planner.Planner
	worker   *worker.Worker
	registry *tool.Registry
	client   llm.Client
	model    string
	log      *logging.Logger
	opts     Options

	// now is replaceable in tests.
	now func() time.Time

	mu      sync.Mutex
	pending map[string]*domain.DraftAction // session id → unconfirmed draft
}

// New creates a conductor.
func New(cs *store.ConversationStore, p *planner.Planner, w *worker.Worker, reg *tool.Registry, client llm.Client, model string, opts Options, log *logging.Logger) *Conductor {
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = 10
	}
	if opts.SuppressWindow <= 0 {
		opts.SuppressWindow = 20
	}
	if opts.MaxToolIterations <= 0 {
		opts.MaxToolIterations = 8
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 30
	}
	if opts.SummarizeAfter <= 0 {
		opts.SummarizeAfter = 40
	}
	return &Conductor{
		store:    cs,
		planner:  p,
		worker:   w,
		registry: reg,
		client:   client,
		model:    model,
		log:      log.Sub("conductor"),
		opts:     opts,
		now:      time.Now,
		pending:  make(map[string]*domain.DraftAction),
	}
}

// Handle processes one inbound turn to completion and returns the final
// action. DirectReply and PresentDraft actions carry user-visible text in
// Reply and have already been stored; Suppress stores nothing.
func (c *Conductor) Handle(ctx context.Context, turn domain.InboundTurn) (domain.ConductorAction, error) {
	if turn.Kind == domain.TurnTrigger {
		return c.handleTrigger(turn)
	}
	return c.handleUser(ctx, turn)
}

// handleTrigger delivers a fired-trigger notification. Re-delivery of
// content already present in the recent history window is suppressed before
// anything is stored, so a scheduler re-poll is a no-op by construction.
func (c *Conductor) handleTrigger(turn domain.InboundTurn) (domain.ConductorAction, error) {
	recent, err := c.store.Recent(turn.SessionID, c.opts.SuppressWindow)
	if err != nil {
		return domain.ConductorAction{}, fmt.Errorf("reading history: %w", err)
	}
	norm := normalize(turn.Body)
	for _, msg := range recent {
		prev := normalize(msg.Content)
		if prev == norm || (norm != "" && strings.Contains(prev, norm)) {
			c.log.Debug().Str("triggerId", turn.TriggerID).Msg("duplicate trigger notification suppressed")
			return domain.Suppress("duplicate trigger notification"), nil
		}
	}

	if _, err := c.store.Append(turn.SessionID, domain.Message{
		Role:    domain.RoleSpecialist,
		Content: turn.Body,
	}); err != nil {
		return domain.ConductorAction{}, err
	}
	if _, err := c.store.Append(turn.SessionID, domain.Message{
		Role:    domain.RoleAssistant,
		Content: turn.Body,
	}); err != nil {
		return domain.ConductorAction{}, err
	}
	return domain.DirectReply(turn.Body), nil
}

// HandleTaskTrigger runs a deferred task that came due. The task re-enters
// the planner and worker, and its result is delivered like a notification.
func (c *Conductor) HandleTaskTrigger(ctx context.Context, sessionID, description string) (domain.ConductorAction, error) {
	if _, err := c.store.Append(sessionID, domain.Message{
		Role:    domain.RoleSpecialist,
		Content: "Scheduled task due: " + description,
	}); err != nil {
		return domain.ConductorAction{}, err
	}
	action := c.executeDelegate(ctx, domain.TaskRequest{
		Description: description,
		SessionID:   sessionID,
	})
	return c.emit(sessionID, action)
}

// handleUser stores the user turn, resolves any pending draft confirmation,
// then classifies the input as delegate or direct reply.
func (c *Conductor) handleUser(ctx context.Context, turn domain.InboundTurn) (domain.ConductorAction, error) {
	stored, err := c.store.Append(turn.SessionID, domain.Message{
		Role:    domain.RoleUser,
		Content: turn.Body,
	})
	if err != nil {
		return domain.ConductorAction{}, fmt.Errorf("storing user turn: %w", err)
	}
	c.maybeSummarize(ctx, turn.SessionID)

	if action, handled := c.resolvePendingDraft(ctx, turn); handled {
		return c.emit(turn.SessionID, action)
	}

	var action domain.ConductorAction
	decision := c.classify(turn, stored.ID)
	if decision.Kind == domain.ActionDelegate {
		action = c.executeDelegate(ctx, *decision.Task)
	} else {
		action = c.directReply(ctx, turn.SessionID)
	}
	return c.emit(turn.SessionID, action)
}

// classify decides between delegation and a direct reply. Delegated
// descriptions get relative times clarified against the wall clock so the
// planner and capabilities agree on the instant.
func (c *Conductor) classify(turn domain.InboundTurn, messageID string) domain.ConductorAction {
	if desc, ok := classifyTask(turn.Body); ok {
		return domain.Delegate(domain.TaskRequest{
			Description:          clarify(desc, c.now()),
			SessionID:            turn.SessionID,
			OriginatingMessageID: messageID,
		})
	}
	return domain.ConductorAction{Kind: domain.ActionDirectReply}
}

// resolvePendingDraft consumes the session's unconfirmed draft, if any.
// An affirmative turn sends it; anything else discards it. Only an
// affirmative or explicitly negative turn is answered here; an unrelated
// turn falls through to normal classification with the draft dropped.
func (c *Conductor) resolvePendingDraft(ctx context.Context, turn domain.InboundTurn) (domain.ConductorAction, bool) {
	c.mu.Lock()
	draft := c.pending[turn.SessionID]
	delete(c.pending, turn.SessionID)
	c.mu.Unlock()
	if draft == nil {
		return domain.ConductorAction{}, false
	}

	switch {
	case isAffirmative(turn.Body):
		if _, err := c.worker.ExecuteConfirmed(ctx, draft); err != nil {
			c.log.Error().Err(err).Str("to", draft.To).Msg("confirmed send failed")
			return domain.DirectReply(fmt.Sprintf("I couldn't send the email to %s: %v", draft.To, err)), true
		}
		return domain.DirectReply(fmt.Sprintf("Sent the email to %s.", draft.To)), true
	case isNegative(turn.Body):
		return domain.DirectReply("Okay, I won't send it. The draft has been discarded."), true
	default:
		c.log.Debug().Str("session", turn.SessionID).Msg("pending draft discarded by unrelated turn")
		return domain.ConductorAction{}, false
	}
}

// executeDelegate runs planner and worker for a task request. Any planning
// or execution failure comes back as a plain-language direct reply; retry
// is a new user turn, never automatic.
func (c *Conductor) executeDelegate(ctx context.Context, req domain.TaskRequest) domain.ConductorAction {
	plan, err := c.planner.Plan(ctx, req, c.registry.Definitions())
	if err != nil {
		c.log.Warn().Err(err).Msg("planning failed")
		return domain.DirectReply("I couldn't work out how to do that. Could you rephrase or give me more detail?")
	}
	if plan.IsAskUser() {
		return domain.DirectReply(plan.Steps[0].Instruction)
	}

	result, err := c.worker.Execute(ctx, plan, req.SessionID)
	if err != nil {
		c.log.Warn().Err(err).Str("planId", plan.ID).Msg("execution failed")
		return domain.DirectReply("I ran into a problem carrying that out and have stopped. Ask again if you'd like me to retry.")
	}

	if result.Draft != nil {
		c.mu.Lock()
		c.pending[req.SessionID] = result.Draft
		c.mu.Unlock()
		action := domain.PresentDraft(*result.Draft)
		action.Reply = formatDraft(result.Draft)
		return action
	}

	switch result.Status {
	case domain.TaskFailed:
		return domain.DirectReply("I wasn't able to complete that: " + result.Summary)
	default:
		return domain.DirectReply(result.Summary)
	}
}

// directReply answers from history alone, with read-only tools available
// for lookups. The loop is bounded; exhausting it degrades to the last
// model text rather than erroring the turn.
func (c *Conductor) directReply(ctx context.Context, sessionID string) domain.ConductorAction {
	history, err := c.store.Recent(sessionID, c.opts.HistoryLimit)
	if err != nil {
		c.log.Error().Err(err).Msg("reading history for reply")
		return domain.DirectReply("Sorry, I couldn't read our conversation just now. Please try again.")
	}

	// Recent is newest-first; the model wants chronological order.
	messages := make([]llm.Message, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		role := llm.RoleUser
		if history[i].Role == domain.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: history[i].Content})
	}

	system := directReplySystemPrompt
	if summary, _, err := c.store.Summary(sessionID); err == nil && summary != "" {
		system += "\n\nEarlier conversation summary:\n" + summary
	}

	tools := c.readOnlyTools()
	for i := 0; i < c.opts.MaxToolIterations; i++ {
		resp, err := c.client.Complete(ctx, llm.CompletionRequest{
			Model:    c.model,
			System:   system,
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			c.log.Error().Err(err).Msg("direct reply completion failed")
			return domain.DirectReply("Sorry, I'm having trouble answering right now. Please try again in a moment.")
		}
		if len(resp.ToolCalls) == 0 {
			if wantsWait(resp.Content) {
				return domain.Suppress("model chose to wait")
			}
			return domain.DirectReply(strings.TrimSpace(resp.Content))
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			out, invErr := c.registry.Invoke(ctx, call.Name, call.Arguments)
			if invErr != nil {
				out = "error: " + invErr.Error()
			}
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    out,
				ToolCallID: call.ID,
			})
		}
	}
	return domain.DirectReply("I couldn't finish looking that up. Please try again.")
}

const directReplySystemPrompt = `You are a personal assistant answering from the conversation so far. Answer only from the conversation and tool results. Never invent task results or claim work was done unless it appears above. If nothing needs to be said, reply with exactly WAIT.`

// readOnlyTools exposes only side-effect-free capabilities to the
// direct-reply loop. Mutations always go through a delegated plan.
func (c *Conductor) readOnlyTools() []llm.ToolDefinition {
	var defs []llm.ToolDefinition
	for _, d := range c.registry.Definitions() {
		if d.SideEffect == tool.SideEffectReadOnly {
			defs = append(defs, llm.ToolDefinition{
				Name:        d.Name,
				Description: d.Description,
				InputSchema: d.InputSchema,
			})
		}
	}
	return defs
}

// emit applies outbound dedup, stores the visible reply, and returns the
// final action. A reply whose normalized form matches a recent assistant
// message becomes a Suppress instead.
func (c *Conductor) emit(sessionID string, action domain.ConductorAction) (domain.ConductorAction, error) {
	if action.Kind == domain.ActionSuppress || action.Reply == "" {
		return action, nil
	}

	recent, err := c.store.RecentAssistant(sessionID, c.opts.DedupWindow)
	if err != nil {
		return domain.ConductorAction{}, fmt.Errorf("dedup check: %w", err)
	}
	norm := normalize(action.Reply)
	for _, msg := range recent {
		if normalize(msg.Content) == norm {
			c.log.Debug().Str("session", sessionID).Msg("duplicate outbound reply suppressed")
			return domain.Suppress("duplicate of recent assistant message"), nil
		}
	}

	if _, err := c.store.Append(sessionID, domain.Message{
		Role:    domain.RoleAssistant,
		Content: action.Reply,
	}); err != nil {
		return domain.ConductorAction{}, fmt.Errorf("storing reply: %w", err)
	}
	return action, nil
}

// formatDraft renders the confirmation prompt shown for an unsent draft.
func formatDraft(d *domain.DraftAction) string {
	return fmt.Sprintf(
		"Here's the email I've drafted:\n\nTo: %s\nSubject: %s\n\n%s\n\nShould I send it?",
		d.To, d.Subject, d.Body,
	)
}
