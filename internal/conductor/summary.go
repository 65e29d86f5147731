package conductor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/valet/internal/llm"
)

const summarySystemPrompt = `You are a conversation summarizer for a personal assistant. Compact the transcript into a concise structured summary that preserves the user's preferences, active tasks and reminders, important contacts, and email threads. Report only what the transcript says.`

// maybeSummarize compacts history older than the reply window into a stored
// summary once enough new messages accumulate. The summary is folded into
// later summarization rounds, so coverage only ever grows. Failures are
// logged and never fail the turn.
func (c *Conductor) maybeSummarize(ctx context.Context, sessionID string) {
	total, err := c.store.Count(sessionID)
	if err != nil {
		c.log.Warn().Err(err).Msg("counting messages for summarization")
		return
	}
	prev, covered, err := c.store.Summary(sessionID)
	if err != nil {
		c.log.Warn().Err(err).Msg("reading stored summary")
		return
	}
	if total-covered < c.opts.SummarizeAfter {
		return
	}
	// Keep the reply window out of the summary; it is passed verbatim.
	cut := total - c.opts.HistoryLimit
	if cut <= covered {
		return
	}

	msgs, err := c.store.List(sessionID, time.Time{})
	if err != nil || len(msgs) < cut {
		return
	}

	var sb strings.Builder
	if prev != "" {
		sb.WriteString("Previous summary:\n" + prev + "\n\nNew messages:\n")
	}
	for _, m := range msgs[covered:cut] {
		fmt.Fprintf(&sb, "[%s] %s\n", m.Role, m.Content)
	}

	resp, err := c.client.Complete(ctx, llm.CompletionRequest{
		Model:    c.model,
		System:   summarySystemPrompt,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: sb.String()}},
	})
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		c.log.Warn().Err(err).Str("session", sessionID).Msg("summarization call failed")
		return
	}
	if err := c.store.SaveSummary(sessionID, strings.TrimSpace(resp.Content), cut); err != nil {
		c.log.Warn().Err(err).Str("session", sessionID).Msg("storing summary")
		return
	}
	c.log.Info().Str("session", sessionID).Int("covered", cut).Msg("conversation history compacted")
}
