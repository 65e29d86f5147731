// Package monitor watches the mailbox in the background and surfaces
// important new mail as notifications. It reuses the conductor's trigger
// path, so delivery gets the same suppression and dedup as reminders.
package monitor

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/soyeahso/valet/internal/domain"
	"github.com/soyeahso/valet/internal/logging"
	"github.com/soyeahso/valet/internal/tool/email"
)

// Deliverer is the conductor-side surface notifications fire into.
type Deliverer interface {
	Handle(ctx context.Context, turn domain.InboundTurn) (domain.ConductorAction, error)
}

// Notifier pushes text out-of-band, independent of history polling.
type Notifier interface {
	Push(sessionID, text string)
}

// Options tune the check loop. Zero values take defaults.
type Options struct {
	CheckInterval time.Duration
	SessionID     string
	// VIPSenders are address substrings whose mail is always important.
	VIPSenders []string
	// FetchLimit caps how many recent messages one check inspects.
	FetchLimit int
}

// Monitor periodically checks for unread mail and notifies about the
// important ones. Each message is considered once per process lifetime.
type Monitor struct {
	provider  email.Provider
	deliverer Deliverer
	notifier  Notifier // may be nil
	log       *logging.Logger
	opts      Options

	seen      map[string]struct{}
	seenOrder []string
}

// seenCap bounds the seen set; the oldest half is dropped when exceeded.
const seenCap = 1000

// New creates a monitor. The notifier may be nil when no out-of-band
// channel exists.
func New(p email.Provider, d Deliverer, n Notifier, opts Options, log *logging.Logger) *Monitor {
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = 5 * time.Minute
	}
	if opts.SessionID == "" {
		opts.SessionID = "default"
	}
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = 50
	}
	return &Monitor{
		provider:  p,
		deliverer: d,
		notifier:  n,
		log:       log.Sub("monitor"),
		opts:      opts,
		seen:      make(map[string]struct{}),
	}
}

// Run checks until the context is cancelled. Errors in a check are logged
// and the loop continues on the next tick.
func (m *Monitor) Run(ctx context.Context) {
	m.log.Info().Dur("interval", m.opts.CheckInterval).Msg("email monitor started")
	ticker := time.NewTicker(m.opts.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("email monitor stopped")
			return
		case <-ticker.C:
			if err := m.CheckOnce(ctx); err != nil {
				m.log.Error().Err(err).Msg("mailbox check error")
			}
		}
	}
}

// CheckOnce inspects recent mail once. Every fetched message is marked seen
// whether or not it was important, so the next check only reacts to new
// arrivals. Exposed so tests can drive checks without the ticker.
func (m *Monitor) CheckOnce(ctx context.Context) error {
	emails, err := m.provider.Fetch(ctx, "", m.opts.FetchLimit)
	if err != nil {
		return fmt.Errorf("fetching mail: %w", err)
	}

	for _, e := range emails {
		if _, ok := m.seen[e.ID]; ok {
			continue
		}
		m.markSeen(e.ID)

		if !e.Unread || !m.important(e) {
			continue
		}
		if err := m.notify(ctx, e); err != nil {
			m.log.Warn().Err(err).Str("emailId", e.ID).Msg("email notification failed")
		}
	}
	return nil
}

// importantRe matches the subject and snippet cues that warrant
// interrupting the user.
var importantRe = regexp.MustCompile(`(?i)\b(urgent|asap|emergency|important|critical|meeting|call|zoom|conference|action required|please review|approval needed)\b`)

func (m *Monitor) important(e email.Email) bool {
	if importantRe.MatchString(e.Subject + " " + e.Snippet) {
		return true
	}
	from := strings.ToLower(e.From)
	for _, vip := range m.opts.VIPSenders {
		if vip != "" && strings.Contains(from, strings.ToLower(vip)) {
			return true
		}
	}
	return false
}

// notify routes one email through the conductor as a trigger turn and
// pushes the visible result out-of-band.
func (m *Monitor) notify(ctx context.Context, e email.Email) error {
	action, err := m.deliverer.Handle(ctx, domain.InboundTurn{
		SessionID: m.opts.SessionID,
		Body:      notificationText(e),
		Kind:      domain.TurnTrigger,
		Timestamp: time.Now(),
	})
	if err != nil {
		return err
	}
	if m.notifier != nil && action.Kind != domain.ActionSuppress && action.Reply != "" {
		m.notifier.Push(m.opts.SessionID, action.Reply)
	}
	return nil
}

func (m *Monitor) markSeen(id string) {
	m.seen[id] = struct{}{}
	m.seenOrder = append(m.seenOrder, id)
	if len(m.seenOrder) > seenCap {
		drop := m.seenOrder[:seenCap/2]
		m.seenOrder = append([]string(nil), m.seenOrder[seenCap/2:]...)
		for _, old := range drop {
			delete(m.seen, old)
		}
	}
}

// notificationText is the fire message shape for new mail.
func notificationText(e email.Email) string {
	snippet := e.Snippet
	if len(snippet) > 100 {
		snippet = snippet[:100] + "..."
	}
	text := fmt.Sprintf("New email from %s: %s", e.From, e.Subject)
	if snippet != "" {
		text += "\n" + snippet
	}
	return text + "\n(email " + e.ID + ")"
}
