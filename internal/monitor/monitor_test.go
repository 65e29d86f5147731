package monitor

import (
	"context"
	"errors"
	"io"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/valet/internal/domain"
	"github.com/soyeahso/valet/internal/logging"
	"github.com/soyeahso/valet/internal/tool/email"
)

func silentLog() *logging.Logger {
	return logging.New(io.Discard, "silent")
}

type fakeDeliverer struct {
	turns  []domain.InboundTurn
	action domain.ConductorAction
	err    error
}

func (f *fakeDeliverer) Handle(ctx context.Context, turn domain.InboundTurn) (domain.ConductorAction, error) {
	f.turns = append(f.turns, turn)
	if f.err != nil {
		return domain.ConductorAction{}, f.err
	}
	if f.action.Kind != "" {
		return f.action, nil
	}
	return domain.DirectReply(turn.Body), nil
}

type fakeNotifier struct {
	pushes []string
}

func (f *fakeNotifier) Push(sessionID, text string) {
	f.pushes = append(f.pushes, text)
}

func TestCheckOnceNotifiesImportantUnreadOnly(t *testing.T) {
	mailbox := &email.FakeProvider{Inbox: []email.Email{
		{ID: "e1", From: "boss@corp.com", Subject: "URGENT: server down", Snippet: "please look", Unread: true},
		{ID: "e2", From: "list@news.com", Subject: "weekly digest", Snippet: "stories", Unread: true},
		{ID: "e3", From: "boss@corp.com", Subject: "urgent follow-up", Snippet: "", Unread: false},
	}}
	d := &fakeDeliverer{}
	n := &fakeNotifier{}
	m := New(mailbox, d, n, Options{SessionID: "s1"}, silentLog())

	require.NoError(t, m.CheckOnce(context.Background()))

	require.Len(t, d.turns, 1)
	assert.Equal(t, "s1", d.turns[0].SessionID)
	assert.Equal(t, domain.TurnTrigger, d.turns[0].Kind)
	assert.Contains(t, d.turns[0].Body, "URGENT: server down")
	require.Len(t, n.pushes, 1)

	// Nothing new arrived; a later check stays quiet.
	require.NoError(t, m.CheckOnce(context.Background()))
	assert.Len(t, d.turns, 1)
}

func TestVIPSenderIsAlwaysImportant(t *testing.T) {
	mailbox := &email.FakeProvider{Inbox: []email.Email{
		{ID: "e1", From: "Alice <alice@family.org>", Subject: "lunch?", Snippet: "saturday", Unread: true},
	}}
	d := &fakeDeliverer{}
	m := New(mailbox, d, nil, Options{VIPSenders: []string{"@family.org"}}, silentLog())

	require.NoError(t, m.CheckOnce(context.Background()))
	require.Len(t, d.turns, 1)
	assert.Contains(t, d.turns[0].Body, "lunch?")
}

func TestSuppressedDeliveryIsNotPushed(t *testing.T) {
	mailbox := &email.FakeProvider{Inbox: []email.Email{
		{ID: "e1", From: "boss@corp.com", Subject: "critical issue", Unread: true},
	}}
	d := &fakeDeliverer{action: domain.Suppress("duplicate trigger notification")}
	n := &fakeNotifier{}
	m := New(mailbox, d, n, Options{}, silentLog())

	require.NoError(t, m.CheckOnce(context.Background()))
	assert.Len(t, d.turns, 1)
	assert.Empty(t, n.pushes)
}

func TestCheckOnceSurfacesFetchError(t *testing.T) {
	mailbox := &email.FakeProvider{FetchErr: errors.New("imap down")}
	m := New(mailbox, &fakeDeliverer{}, nil, Options{}, silentLog())

	err := m.CheckOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "imap down")
}

func TestSeenSetStaysBounded(t *testing.T) {
	m := New(&email.FakeProvider{}, &fakeDeliverer{}, nil, Options{}, silentLog())
	for i := 0; i < seenCap+10; i++ {
		m.markSeen("id-" + strconv.Itoa(i))
	}
	assert.LessOrEqual(t, len(m.seen), seenCap)
	assert.Equal(t, len(m.seen), len(m.seenOrder))
}
