package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/autovoyce/voyce/internal/api"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in the conversation. Messages are immutable once
// appended and are never deleted within a session.
type Message struct {
	ID      string
	Role    Role
	Content string
	At      time.Time
	Sources []api.Source
	Context []string
}

// NewMessage stamps a message with an id and the current time.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:      uuid.NewString(),
		Role:    role,
		Content: content,
		At:      time.Now(),
	}
}

// Transcript is an append-only, time-ordered message list with short-term
// duplicate suppression. The dedupe guards against double-submission races,
// e.g. the same text arriving once from a manual send and once from an
// automated voice-triggered send.
type Transcript struct {
	messages []Message
	recent   *recentWindow
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{recent: newRecentWindow(recentWindowSize, recentWindowTTL, time.Now)}
}

// Append adds a message unless an entry with the same role and byte-identical
// content was appended within the dedupe window; duplicates are dropped and
// Append reports false.
func (t *Transcript) Append(m Message) bool {
	if !t.recent.observe(m.Role, m.Content) {
		return false
	}
	t.messages = append(t.messages, m)
	return true
}

// ForceAppend bypasses duplicate suppression. Synthetic failure messages use
// it so a repeated error is still visible each time it happens.
func (t *Transcript) ForceAppend(m Message) {
	t.recent.observe(m.Role, m.Content)
	t.messages = append(t.messages, m)
}

// Messages returns the transcript in insertion order.
func (t *Transcript) Messages() []Message {
	return t.messages
}

// Len reports the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Last returns the newest message, if any.
func (t *Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}
