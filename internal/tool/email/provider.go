// Package email exposes mailbox capabilities (fetch, search, profile, send)
// over a pluggable provider so the orchestration core stays independent of
// the mail transport.
package email

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Email is a normalized message summary returned by providers.
type Email struct {
	ID      string    `json:"id"`
	From    string    `json:"from"`
	To      string    `json:"to,omitempty"`
	Subject string    `json:"subject"`
	Snippet string    `json:"snippet,omitempty"`
	Date    time.Time `json:"date"`
	Unread  bool      `json:"unread,omitempty"`
}

// Profile describes the connected mailbox.
type Profile struct {
	Address      string `json:"address"`
	MessageCount int    `json:"messageCount"`
}

// Provider is the transport behind the email capabilities.
type Provider interface {
	// Fetch returns up to max recent messages matching the query
	// (empty query means most recent).
	Fetch(ctx context.Context, query string, max int) ([]Email, error)

	// Search returns messages matching the query.
	Search(ctx context.Context, query string) ([]Email, error)

	// Profile returns mailbox metadata.
	Profile(ctx context.Context) (*Profile, error)

	// Send delivers a message. Irreversible; only the worker's confirmed
	// execution path reaches this.
	Send(ctx context.Context, to, subject, body string) error
}

// FakeProvider is an in-memory Provider for tests.
type FakeProvider struct {
	mu       sync.Mutex
	Inbox    []Email
	Sent     []Email
	Addr     string
	SendErr  error
	FetchErr error
}

func (f *FakeProvider) Fetch(ctx context.Context, query string, max int) ([]Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	out := f.match(query)
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func (f *FakeProvider) Search(ctx context.Context, query string) ([]Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}
	return f.match(query), nil
}

func (f *FakeProvider) Profile(ctx context.Context) (*Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	addr := f.Addr
	if addr == "" {
		addr = "fake@example.com"
	}
	return &Profile{Address: addr, MessageCount: len(f.Inbox)}, nil
}

func (f *FakeProvider) Send(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return f.SendErr
	}
	f.Sent = append(f.Sent, Email{To: to, Subject: subject, Snippet: body, Date: time.Now()})
	return nil
}

func (f *FakeProvider) match(query string) []Email {
	if query == "" {
		return append([]Email(nil), f.Inbox...)
	}
	q := strings.ToLower(query)
	var out []Email
	for _, e := range f.Inbox {
		if strings.Contains(strings.ToLower(e.Subject), q) ||
			strings.Contains(strings.ToLower(e.From), q) ||
			strings.Contains(strings.ToLower(e.Snippet), q) {
			out = append(out, e)
		}
	}
	return out
}
