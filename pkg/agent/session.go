package agent

import (
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// Session holds the conversation history for one conversation identifier.
// It is an explicit object passed into the loop by the caller; there is no
// process-wide conversation state.
type Session struct {
	mu      sync.Mutex
	id      string
	history []llms.MessageContent
}

func (s *Session) ID() string { return s.id }

// History returns a copy of the accumulated turns.
func (s *Session) History() []llms.MessageContent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llms.MessageContent, len(s.history))
	copy(out, s.history)
	return out
}

// Append records one completed exchange.
func (s *Session) Append(query, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history,
		llms.TextParts(llms.ChatMessageTypeHuman, query),
		llms.TextParts(llms.ChatMessageTypeAI, answer),
	)
}

// Len returns the number of stored turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// Clear resets the conversation.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// SessionStore keys sessions by conversation identifier.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// Get returns the session for id, creating it on first use.
func (st *SessionStore) Get(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		s = &Session{id: id}
		st.sessions[id] = s
	}
	return s
}

// Clear drops the conversation history for id.
func (st *SessionStore) Clear(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok {
		s.Clear()
	}
}
