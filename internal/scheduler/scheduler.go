// Package scheduler polls the trigger store and fires due triggers into the
// conductor. A trigger is claimed atomically, so concurrent wake cycles
// fire it exactly once; delivery failures leave it claimed for bounded
// retry on later cycles.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/soyeahso/valet/internal/domain"
	"github.com/soyeahso/valet/internal/logging"
	"github.com/soyeahso/valet/internal/store"
)

// DeliveryError reports a trigger whose fire could not be handed to the
// conductor. The trigger stays claimed and is retried on a later cycle.
type DeliveryError struct {
	TriggerID string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivering trigger %s: %v", e.TriggerID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Deliverer is the conductor-side surface the scheduler fires into.
type Deliverer interface {
	Handle(ctx context.Context, turn domain.InboundTurn) (domain.ConductorAction, error)
	HandleTaskTrigger(ctx context.Context, sessionID, description string) (domain.ConductorAction, error)
}

// Notifier pushes text out-of-band, independent of history polling.
type Notifier interface {
	Push(sessionID, text string)
}

// Options tune the wake loop. Zero values take defaults.
type Options struct {
	PollInterval        time.Duration
	MaxDeliveryAttempts int
}

// Scheduler owns the trigger wake loop.
type Scheduler struct {
	triggers  *store.TriggerStore
	deliverer Deliverer
	notifier  Notifier // may be nil
	log       *logging.Logger
	opts      Options

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a scheduler. The notifier may be nil when no out-of-band
// channel exists (one-shot CLI use).
func New(ts *store.TriggerStore, d Deliverer, n Notifier, opts Options, log *logging.Logger) *Scheduler {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Minute
	}
	if opts.MaxDeliveryAttempts <= 0 {
		opts.MaxDeliveryAttempts = 3
	}
	return &Scheduler{
		triggers:  ts,
		deliverer: d,
		notifier:  n,
		log:       log.Sub("scheduler"),
		opts:      opts,
		now:       time.Now,
	}
}

// Run polls until the context is cancelled. Errors in a cycle are logged
// and the loop continues on the next tick.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info().Dur("interval", s.opts.PollInterval).Msg("scheduler started")
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.log.Error().Err(err).Msg("wake cycle error")
			}
		}
	}
}

// RunOnce claims and fires every currently due trigger. Exposed so tests
// and the one-shot CLI path can drive cycles without the ticker.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	for {
		t, err := s.triggers.ClaimDue(s.now())
		if err != nil {
			return err
		}
		if t == nil {
			return nil
		}
		if err := s.fire(ctx, t); err != nil {
			s.log.Warn().Err(err).Str("triggerId", t.ID).Int("attempts", t.Attempts).Msg("trigger delivery failed")
			if t.Attempts >= s.opts.MaxDeliveryAttempts {
				s.log.Error().Str("triggerId", t.ID).Msg("delivery retries exhausted, deactivating trigger")
				if derr := s.triggers.Deactivate(t.ID); derr != nil {
					return derr
				}
				continue
			}
			// Stay claimed; the next cycle reclaims and retries. Ending the
			// cycle here keeps a failing trigger from being hammered in a
			// tight loop.
			return nil
		}
	}
}

// fire hands one claimed trigger to the conductor and settles its state.
// Bare reminders deliver a notification; task triggers re-enter the
// planner and worker. Suppression of a re-delivered notification still
// counts as delivered.
func (s *Scheduler) fire(ctx context.Context, t *domain.Trigger) error {
	var action domain.ConductorAction
	var err error

	if t.IsTask {
		action, err = s.deliverer.HandleTaskTrigger(ctx, t.SessionID, t.Description)
	} else {
		action, err = s.deliverer.Handle(ctx, domain.InboundTurn{
			SessionID: t.SessionID,
			Body:      notificationText(t),
			Kind:      domain.TurnTrigger,
			TriggerID: t.ID,
			Timestamp: s.now(),
		})
	}
	if err != nil {
		return &DeliveryError{TriggerID: t.ID, Err: err}
	}

	if s.notifier != nil && action.Kind != domain.ActionSuppress && action.Reply != "" {
		s.notifier.Push(t.SessionID, action.Reply)
	}

	if t.Kind == domain.TriggerRecurring {
		next := NextOccurrence(t.Recurrence, t.ScheduledTime, s.now())
		if err := s.triggers.Reschedule(t.ID, next); err != nil {
			return err
		}
		s.log.Info().Str("triggerId", t.ID).Time("next", next).Msg("recurring trigger advanced")
		return nil
	}

	if err := s.triggers.Complete(t.ID); err != nil {
		return err
	}
	s.log.Info().Str("triggerId", t.ID).Msg("one-time trigger completed")
	return nil
}

// notificationText is the fire message shape: title, description, id.
func notificationText(t *domain.Trigger) string {
	text := "Reminder: " + t.Title
	if t.Description != "" {
		text += "\n" + t.Description
	}
	return text + "\n(trigger " + t.ID + ")"
}
