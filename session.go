package digest

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Session is the message log of a single run.
// The single-stage pipeline appends the assistant reply; the three-stage
// pipeline records the prompt and reply of every stage.
//
// Sessions are safe for concurrent use by multiple goroutines.
type Session struct {
	id       string
	messages []Message
	usage    TokenUsage
	mu       sync.RWMutex
}

// NewSession creates an empty log with a unique ID.
func NewSession() *Session {
	return &Session{
		id:       uuid.New().String(),
		messages: make([]Message, 0),
	}
}

// ID returns the unique identifier for this session.
func (s *Session) ID() string {
	return s.id
}

// Messages returns a copy of all messages in the session.
func (s *Session) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]Message, len(s.messages))
	copy(messages, s.messages)
	return messages
}

// Append adds a message to the log.
func (s *Session) Append(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, Message{
		Role:    role,
		Content: content,
	})
}

// Len returns the number of messages in the session.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// At returns the message at the given index.
func (s *Session) At(index int) (Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.messages) {
		return Message{}, fmt.Errorf("index %d out of bounds (len=%d)", index, len(s.messages))
	}
	return s.messages[index], nil
}

// Last returns the most recent message with the given role.
func (s *Session) Last(role string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == role {
			return s.messages[i], true
		}
	}
	return Message{}, false
}

// AddUsage accumulates token counts from a provider response.
func (s *Session) AddUsage(u TokenUsage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.usage.Prompt += u.Prompt
	s.usage.Completion += u.Completion
	s.usage.Total += u.Total
}

// Usage returns the accumulated token counts.
func (s *Session) Usage() TokenUsage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usage
}
