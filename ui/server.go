// Package ui serves the chat page and its JSON API. Conversations live
// in process memory keyed by a session cookie; nothing is persisted.
package ui

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"opschat/shared"
)

//go:embed index.html
var indexHTML []byte

const sessionCookie = "opschat_session"

// Responder answers one chat query; *orchestrator.Orchestrator satisfies it.
type Responder interface {
	Handle(ctx context.Context, query string, history []shared.ConversationTurn) string
}

// Server is the chat web server.
type Server struct {
	responder Responder

	mu       sync.Mutex
	sessions map[string]*shared.Conversation
}

func NewServer(responder Responder) *Server {
	return &Server{
		responder: responder,
		sessions:  make(map[string]*shared.Conversation),
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Get("/", s.handleIndex)
	r.Post("/api/chat", s.handleChat)
	r.Get("/api/history", s.handleHistory)
	return r
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		http.Error(w, `{"error":"message is required"}`, http.StatusBadRequest)
		return
	}

	conv := s.session(w, r)
	reply := s.responder.Handle(r.Context(), req.Message, conv.Turns())
	conv.Append(req.Message, reply)

	log.Debug().Int("turns", conv.Len()).Msg("chat turn completed")
	writeJSON(w, chatResponse{Reply: reply})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	conv := s.session(w, r)
	turns := conv.Turns()
	if turns == nil {
		turns = []shared.ConversationTurn{}
	}
	writeJSON(w, turns)
}

// session finds or creates the conversation for this request's cookie.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *shared.Conversation {
	var id string
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		id = c.Value
	} else {
		id = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.sessions[id]
	if !ok {
		conv = shared.NewConversation()
		s.sessions[id] = conv
	}
	return conv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("writing response")
	}
}
