package session

import (
	"errors"
	"strings"
	"sync"

	"github.com/amadou/relais/pkg/transport"
)

var (
	// ErrConflict indicates the identity already has an active session.
	ErrConflict = errors.New("session already active for this identity")

	// ErrNotFound indicates no session or context exists for the identity.
	ErrNotFound = errors.New("session not found")

	// ErrNotReady indicates the session exists but has not finished
	// pairing yet.
	ErrNotReady = errors.New("session transport not ready")
)

// State is a session's lifecycle state. An identity absent from the
// registry is unregistered; there is no terminated state, process restart
// is the only teardown path.
type State string

const (
	// StatePendingAuth: transport client created, device pairing not yet
	// confirmed.
	StatePendingAuth State = "pending_auth"

	// StateReady: pairing complete, messages flow in both directions.
	StateReady State = "ready"
)

// Session is one tenant's live messaging identity.
type Session struct {
	ID           string
	SystemPrompt string
	Client       transport.Client

	mu    sync.Mutex
	state State
}

// NewSession creates a session in the given lifecycle state.
func NewSession(id string, state State) *Session {
	return &Session{ID: id, state: state}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// SetSystemPrompt swaps the prompt used to seed or repair this session's
// context.
func (s *Session) SetSystemPrompt(prompt string) {
	s.mu.Lock()
	s.SystemPrompt = prompt
	s.mu.Unlock()
}

// Prompt returns the session's current system prompt.
func (s *Session) Prompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.SystemPrompt
}

// Registry is the in-memory table of active sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add claims the identity for the session. Fails with ErrConflict if the
// identity is already registered; the check and insert are atomic so two
// concurrent creations cannot both win.
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.ID]; exists {
		return ErrConflict
	}
	r.sessions[s.ID] = s
	return nil
}

// Get returns the session for an identity.
func (r *Registry) Get(sessionID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Has reports whether the identity is registered.
func (r *Registry) Has(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[sessionID]
	return ok
}

// Remove drops the identity from the registry.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
}

// List returns the registered sessions.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// NormalizeID derives a session ID from a phone-number-like string by
// stripping non-essential punctuation. Total and stable: the same input
// always yields the same ID.
func NormalizeID(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		switch r {
		case '+', ' ', '-', '(', ')', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
