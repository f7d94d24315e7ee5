// Package conversation keeps per-session chat logs and turns them into the
// history handed to the language model.
package conversation

import (
	"errors"
	"fmt"

	"github.com/ragdesk/ragdesk/internal/adapter"
)

// ErrOutOfOrder is returned when a turn would break user/assistant alternation.
var ErrOutOfOrder = errors.New("conversation: turns must alternate starting with user")

// Turn is one message in a conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Log is the ordered turn history of one session.
type Log struct {
	ID    string
	Turns []Turn
}

// Append adds t to the log. Turns alternate, beginning with a user turn.
func (l *Log) Append(t Turn) error {
	want := adapter.RoleUser
	if len(l.Turns)%2 == 1 {
		want = adapter.RoleAssistant
	}
	if t.Role != want {
		return fmt.Errorf("%w: got %q at position %d", ErrOutOfOrder, t.Role, len(l.Turns))
	}
	l.Turns = append(l.Turns, t)
	return nil
}

// AddExchange appends a user question and the assistant's answer.
func (l *Log) AddExchange(question, answer string) error {
	if err := l.Append(Turn{Role: adapter.RoleUser, Content: question}); err != nil {
		return err
	}
	return l.Append(Turn{Role: adapter.RoleAssistant, Content: answer})
}

// Clear removes every turn.
func (l *Log) Clear() {
	l.Turns = nil
}

// Memory is the chat history replayed to the model, oldest first.
type Memory []adapter.Message

// BuildMemory replays turns in order. Nothing is reordered or deduplicated.
func BuildMemory(turns []Turn) Memory {
	m := make(Memory, len(turns))
	for i, t := range turns {
		m[i] = adapter.Message{Role: t.Role, Content: t.Content}
	}
	return m
}
