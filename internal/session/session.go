// Package session tracks per-conversation history for the assistant. Each
// session holds a bounded FIFO of query/answer exchanges; when the bound is
// exceeded the oldest exchange is evicted. Sessions live in memory only and
// do not survive restarts.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxHistory is the number of exchanges retained per session when the
// caller passes a non-positive bound.
const DefaultMaxHistory = 2

// Exchange is one completed query/answer pair.
type Exchange struct {
	// UserMessage is the user's query text.
	UserMessage string

	// AssistantMessage is the assistant's final answer.
	AssistantMessage string
}

// entry is the mutable state of one session. Its mutex serializes writes to
// that session only, so concurrent traffic on different sessions never
// contends.
type entry struct {
	mu        sync.Mutex
	exchanges []Exchange
	updatedAt time.Time
}

// Store holds all live sessions. Safe for concurrent use.
type Store struct {
	// mu guards the session map itself, not the per-session state.
	mu sync.RWMutex

	sessions   map[string]*entry
	maxHistory int
}

// NewStore constructs a Store retaining up to maxHistory exchanges per
// session.
func NewStore(maxHistory int) *Store {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Store{
		sessions:   make(map[string]*entry),
		maxHistory: maxHistory,
	}
}

// Create registers a new empty session and returns its generated ID.
func (s *Store) Create() string {
	id := uuid.NewString()

	s.mu.Lock()
	s.sessions[id] = &entry{updatedAt: time.Now()}
	s.mu.Unlock()

	return id
}

// get returns the session entry, creating it when the ID is unknown. Unknown
// IDs are treated as fresh sessions rather than errors so a restarted server
// degrades to empty history instead of breaking clients.
func (s *Store) get(id string) *entry {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		return e
	}
	e = &entry{updatedAt: time.Now()}
	s.sessions[id] = e
	return e
}

// AddExchange appends a completed exchange to the session, evicting the
// oldest exchange when the history bound is exceeded.
func (s *Store) AddExchange(id, userMessage, assistantMessage string) {
	e := s.get(id)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.exchanges = append(e.exchanges, Exchange{
		UserMessage:      userMessage,
		AssistantMessage: assistantMessage,
	})
	if len(e.exchanges) > s.maxHistory {
		e.exchanges = e.exchanges[len(e.exchanges)-s.maxHistory:]
	}
	e.updatedAt = time.Now()
}

// History returns a copy of the session's retained exchanges, oldest first.
// An unknown ID yields an empty history.
func (s *Store) History(id string) []Exchange {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Exchange, len(e.exchanges))
	copy(out, e.exchanges)
	return out
}

// Clear drops the session's history but keeps the session alive.
func (s *Store) Clear(id string) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return
	}

	e.mu.Lock()
	e.exchanges = nil
	e.updatedAt = time.Now()
	e.mu.Unlock()
}
