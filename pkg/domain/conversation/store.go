package conversation

import (
	"sync"

	"github.com/lotbot/lotbot/pkg/domain"
)

// ---------------------------------------------------------------------------
// In-memory conversation store
// ---------------------------------------------------------------------------

// Store holds at most one active conversation state per chat. Access to a
// single chat's state is serialized: WithChat runs its function under that
// chat's lock, so two near-simultaneous inputs for the same chat can never
// lose an update. Different chats proceed concurrently.
type Store struct {
	mu     sync.Mutex
	states map[domain.ChatID]State
	locks  map[domain.ChatID]*sync.Mutex
}

// NewStore creates an empty conversation store.
func NewStore() *Store {
	return &Store{
		states: make(map[domain.ChatID]State),
		locks:  make(map[domain.ChatID]*sync.Mutex),
	}
}

// Get returns the chat's current state, Idle if none.
func (s *Store) Get(chatID domain.ChatID) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[chatID]; ok {
		return state
	}
	return Idle{}
}

// Set replaces the chat's state.
func (s *Store) Set(chatID domain.ChatID, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := state.(Idle); ok {
		delete(s.states, chatID)
		return
	}
	s.states[chatID] = state
}

// Clear resets the chat to Idle.
func (s *Store) Clear(chatID domain.ChatID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, chatID)
}

// WithChat runs fn while holding the chat's lock. All state handling for an
// inbound event runs inside WithChat, giving per-chat linearizability.
func (s *Store) WithChat(chatID domain.ChatID, fn func()) {
	lock := s.chatLock(chatID)
	lock.Lock()
	defer lock.Unlock()
	fn()
}

func (s *Store) chatLock(chatID domain.ChatID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[chatID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[chatID] = lock
	}
	return lock
}
