package contextstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/swarmchat/core/chatmodel"
)

func msg(id string) chatmodel.ContextMessage {
	return chatmodel.ContextMessage{Message: chatmodel.Message{ID: id, Content: id}}
}

func TestAppendEvictsOverCapacity(t *testing.T) {
	s := New(3)
	s.Append(msg("1"))
	s.Append(msg("2"))
	s.Append(msg("3"))
	s.Append(msg("4"))

	require.Equal(t, 3, s.Size())
	tail := s.Tail(10)
	assert.Equal(t, []string{"2", "3", "4"}, ids(tail))
}

func TestAppendEmptyIDPanics(t *testing.T) {
	s := New(3)
	assert.Panics(t, func() {
		s.Append(chatmodel.ContextMessage{})
	})
}

func TestTailClampsToSize(t *testing.T) {
	s := New(100)
	s.Append(msg("1"))
	s.Append(msg("2"))

	assert.Len(t, s.Tail(10), 2)
	assert.Len(t, s.Tail(1), 1)
	assert.Equal(t, "2", s.Tail(1)[0].ID)
}

func TestLastMessage(t *testing.T) {
	s := New(10)
	_, ok := s.LastMessage()
	assert.False(t, ok)

	s.Append(msg("a"))
	s.Append(msg("b"))
	last, ok := s.LastMessage()
	require.True(t, ok)
	assert.Equal(t, "b", last.ID)
}

func TestClearResetsSize(t *testing.T) {
	s := New(10)
	s.Append(msg("a"))
	s.Clear()
	assert.Equal(t, 0, s.Size())
}

func TestDefaultMaxMessages(t *testing.T) {
	s := New(0)
	for i := 0; i < DefaultMaxMessages+5; i++ {
		s.Append(msg(string(rune('a' + i%26))))
	}
	assert.Equal(t, DefaultMaxMessages, s.Size())
}

func ids(msgs []chatmodel.ContextMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}
