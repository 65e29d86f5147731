// Package gateway is the request/response boundary: a small HTTP API for
// chat turns, history, and notification polling, plus a websocket channel
// for out-of-band pushes.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/valet/internal/domain"
	"github.com/soyeahso/valet/internal/logging"
	"github.com/soyeahso/valet/internal/store"
)

// TurnHandler is the conductor surface the gateway drives.
type TurnHandler interface {
	Handle(ctx context.Context, turn domain.InboundTurn) (domain.ConductorAction, error)
}

// Server serves the HTTP and websocket API.
type Server struct {
	conductor TurnHandler
	store     *store.ConversationStore
	hub       *Hub
	log       *logging.Logger
	http      *http.Server
	upgrader  websocket.Upgrader
}

// New creates a gateway server bound to addr (e.g. "127.0.0.1:8780").
func New(addr string, conductor TurnHandler, cs *store.ConversationStore, hub *Hub, log *logging.Logger) *Server {
	s := &Server{
		conductor: conductor,
		store:     cs,
		hub:       hub,
		log:       log.Sub("gateway"),
		upgrader:  websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/sessions", s.handleSessions)
	mux.HandleFunc("DELETE /api/history", s.handleClear)
	mux.HandleFunc("GET /api/notifications", s.handleNotifications)
	mux.HandleFunc("GET /ws", s.handleWS)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("gateway listening")
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string              `json:"sessionId"`
	Reply     string              `json:"reply,omitempty"`
	Kind      string              `json:"kind"`
	Draft     *domain.DraftAction `json:"draft,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}

	action, err := s.conductor.Handle(r.Context(), domain.InboundTurn{
		SessionID: req.SessionID,
		Body:      req.Message,
		Kind:      domain.TurnUser,
		Timestamp: time.Now(),
	})
	if err != nil {
		s.log.Error().Err(err).Msg("turn handling failed")
		s.writeError(w, http.StatusInternalServerError, "turn handling failed")
		return
	}

	s.writeJSON(w, http.StatusOK, chatResponse{
		SessionID: req.SessionID,
		Reply:     action.Reply,
		Kind:      string(action.Kind),
		Draft:     action.Draft,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionParam(r)
	since, err := sinceParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid since timestamp")
		return
	}

	msgs, err := s.store.List(sessionID, since)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "reading history failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": sessionID,
		"messages":  msgs,
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.Sessions()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "listing sessions failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": ids})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionParam(r)
	if err := s.store.Clear(sessionID); err != nil {
		s.writeError(w, http.StatusInternalServerError, "clearing history failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessionId": sessionID, "cleared": true})
}

// handleNotifications returns assistant messages since a timestamp: the
// polling side-channel for clients without a websocket.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionParam(r)
	since, err := sinceParam(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid since timestamp")
		return
	}

	msgs, err := s.store.List(sessionID, since)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "reading notifications failed")
		return
	}
	var out []domain.Message
	for _, m := range msgs {
		if m.Role == domain.RoleAssistant {
			out = append(out, m)
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"sessionId":     sessionID,
		"notifications": out,
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &wsClient{
		sessionID: sessionParam(r),
		conn:      conn,
		send:      make(chan notification, 16),
	}
	s.hub.add(c)
	go c.writeLoop()
	go c.readLoop(s.hub)
}

func sessionParam(r *http.Request) string {
	if id := r.URL.Query().Get("session_id"); id != "" {
		return id
	}
	return "default"
}

func sinceParam(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("encoding response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
