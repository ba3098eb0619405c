// Package contextstore implements the bounded, append-only message log
// (spec §4.1) with O(1) tail access and FIFO eviction.
package contextstore

import (
	"sync"

	"github.com/hrygo/swarmchat/core/chatmodel"
)

// DefaultMaxMessages is MAX_MESSAGES from the configuration enumeration.
const DefaultMaxMessages = 100

// Store is a bounded, append-only sequence of ContextMessages per room.
// A single Store instance is scoped to one room; the Orchestrator owns one
// Store per room it has seen traffic for.
type Store struct {
	mu         sync.RWMutex
	maxMessages int
	messages    []chatmodel.ContextMessage
}

// New creates a Store bounded to maxMessages entries. maxMessages <= 0
// falls back to DefaultMaxMessages.
func New(maxMessages int) *Store {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &Store{maxMessages: maxMessages}
}

// Append pushes m to the tail, evicting the oldest entry if the store is at
// capacity (I1). Appending a message with an empty ID is a programming
// error and panics rather than silently corrupting the log.
func (s *Store) Append(m chatmodel.ContextMessage) {
	if m.ID == "" {
		panic("contextstore: append of message with empty id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, m)
	if len(s.messages) > s.maxMessages {
		// Evict from the head; re-slice rather than copy-shift every append.
		overflow := len(s.messages) - s.maxMessages
		s.messages = s.messages[overflow:]
	}
}

// Tail returns the last n messages in insertion order. n >= Size() returns
// everything.
func (s *Store) Tail(n int) []chatmodel.ContextMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	if n >= len(s.messages) {
		out := make([]chatmodel.ContextMessage, len(s.messages))
		copy(out, s.messages)
		return out
	}
	start := len(s.messages) - n
	out := make([]chatmodel.ContextMessage, n)
	copy(out, s.messages[start:])
	return out
}

// LastMessage returns the most recently appended message, or the zero value
// and false if the store is empty.
func (s *Store) LastMessage() (chatmodel.ContextMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) == 0 {
		return chatmodel.ContextMessage{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// Clear removes all entries.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

// Size returns the current number of stored messages.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}
