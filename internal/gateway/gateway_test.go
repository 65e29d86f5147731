package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/valet/internal/domain"
	"github.com/soyeahso/valet/internal/logging"
	"github.com/soyeahso/valet/internal/store"
)

func silentLog() *logging.Logger {
	return logging.New(io.Discard, "silent")
}

type fakeConductor struct {
	turns  []domain.InboundTurn
	action domain.ConductorAction
	err    error
}

func (f *fakeConductor) Handle(ctx context.Context, turn domain.InboundTurn) (domain.ConductorAction, error) {
	f.turns = append(f.turns, turn)
	return f.action, f.err
}

func testServer(t *testing.T, cond TurnHandler) (*Server, *store.ConversationStore) {
	t.Helper()
	db, err := store.Open(":memory:", silentLog())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cs := store.NewConversationStore(db)
	return New("127.0.0.1:0", cond, cs, NewHub(silentLog()), silentLog()), cs
}

func (s *Server) handler() http.Handler { return s.http.Handler }

func TestChatEndpoint(t *testing.T) {
	cond := &fakeConductor{action: domain.DirectReply("hello!")}
	srv, _ := testServer(t, cond)

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"sessionId":"s1","message":"hi"}`))
	rec := httptest.NewRecorder()
	srv.handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hello!", resp.Reply)
	assert.Equal(t, string(domain.ActionDirectReply), resp.Kind)

	require.Len(t, cond.turns, 1)
	assert.Equal(t, "s1", cond.turns[0].SessionID)
	assert.Equal(t, domain.TurnUser, cond.turns[0].Kind)
}

func TestChatEndpointRejectsEmptyMessage(t *testing.T) {
	srv, _ := testServer(t, &fakeConductor{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"sessionId":"s1"}`))
	rec := httptest.NewRecorder()
	srv.handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatEndpointDraftResponse(t *testing.T) {
	action := domain.PresentDraft(domain.DraftAction{To: "a@b.c", Subject: "hi", Body: "text"})
	action.Reply = "Should I send it?"
	srv, _ := testServer(t, &fakeConductor{action: action})

	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"sessionId":"s1","message":"email a@b.c"}`))
	rec := httptest.NewRecorder()
	srv.handler().ServeHTTP(rec, req)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.ActionPresentDraft), resp.Kind)
	require.NotNil(t, resp.Draft)
	assert.Equal(t, "a@b.c", resp.Draft.To)
}

func TestHistoryEndpoints(t *testing.T) {
	srv, cs := testServer(t, &fakeConductor{})

	_, err := cs.Append("s1", domain.Message{Role: domain.RoleUser, Content: "question"})
	require.NoError(t, err)
	_, err = cs.Append("s1", domain.Message{Role: domain.RoleAssistant, Content: "answer"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/history?session_id=s1", nil)
	rec := httptest.NewRecorder()
	srv.handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "question")
	assert.Contains(t, rec.Body.String(), "answer")

	req = httptest.NewRequest(http.MethodDelete, "/api/history?session_id=s1", nil)
	rec = httptest.NewRecorder()
	srv.handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	msgs, err := cs.List("s1", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSessionsEndpoint(t *testing.T) {
	srv, cs := testServer(t, &fakeConductor{})

	_, err := cs.Append("s1", domain.Message{Role: domain.RoleUser, Content: "a"})
	require.NoError(t, err)
	_, err = cs.Append("s2", domain.Message{Role: domain.RoleUser, Content: "b"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	srv.handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "s1")
	assert.Contains(t, rec.Body.String(), "s2")
}

func TestNotificationsEndpointFiltersToAssistantSince(t *testing.T) {
	srv, cs := testServer(t, &fakeConductor{})

	base := time.Now().Add(-time.Minute)
	_, err := cs.Append("s1", domain.Message{Role: domain.RoleAssistant, Content: "old news", Timestamp: base})
	require.NoError(t, err)
	_, err = cs.Append("s1", domain.Message{Role: domain.RoleUser, Content: "user words", Timestamp: base.Add(time.Second)})
	require.NoError(t, err)
	_, err = cs.Append("s1", domain.Message{Role: domain.RoleAssistant, Content: "fresh reminder", Timestamp: base.Add(2 * time.Second)})
	require.NoError(t, err)

	since := base.Add(time.Second).UTC().Format(time.RFC3339Nano)
	req := httptest.NewRequest(http.MethodGet, "/api/notifications?session_id=s1&since="+since, nil)
	rec := httptest.NewRecorder()
	srv.handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "fresh reminder")
	assert.NotContains(t, body, "old news")
	assert.NotContains(t, body, "user words")
}

func TestNotificationsEndpointRejectsBadSince(t *testing.T) {
	srv, _ := testServer(t, &fakeConductor{})

	req := httptest.NewRequest(http.MethodGet, "/api/notifications?since=lastweek", nil)
	rec := httptest.NewRecorder()
	srv.handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHubPushReachesMatchingSession(t *testing.T) {
	hub := NewHub(silentLog())
	c1 := &wsClient{sessionID: "s1", send: make(chan notification, 1)}
	c2 := &wsClient{sessionID: "s2", send: make(chan notification, 1)}
	hub.add(c1)
	hub.add(c2)

	hub.Push("s1", "reminder text")

	select {
	case n := <-c1.send:
		assert.Equal(t, "reminder text", n.Text)
	default:
		t.Fatal("expected a notification for s1")
	}
	select {
	case <-c2.send:
		t.Fatal("s2 must not receive s1 notifications")
	default:
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub(silentLog())
	c := &wsClient{sessionID: "s1", send: make(chan notification)} // no buffer, never drained
	hub.add(c)

	hub.Push("s1", "one")

	hub.mu.Lock()
	_, present := hub.clients[c]
	hub.mu.Unlock()
	assert.False(t, present)
}
