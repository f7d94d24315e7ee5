package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragdesk/ragdesk/internal/adapter"
)

func TestLog_Append(t *testing.T) {
	t.Run("alternates starting with user", func(t *testing.T) {
		log := &Log{}
		require.NoError(t, log.Append(Turn{Role: "user", Content: "hi"}))
		require.NoError(t, log.Append(Turn{Role: "assistant", Content: "hello"}))
		assert.Len(t, log.Turns, 2)
	})

	t.Run("rejects assistant first", func(t *testing.T) {
		log := &Log{}
		err := log.Append(Turn{Role: "assistant", Content: "hello"})
		assert.ErrorIs(t, err, ErrOutOfOrder)
		assert.Empty(t, log.Turns)
	})

	t.Run("rejects two user turns", func(t *testing.T) {
		log := &Log{}
		require.NoError(t, log.Append(Turn{Role: "user", Content: "a"}))
		assert.ErrorIs(t, log.Append(Turn{Role: "user", Content: "b"}), ErrOutOfOrder)
	})
}

func TestLog_ClearThenReuse(t *testing.T) {
	log := &Log{}
	require.NoError(t, log.AddExchange("q1", "a1"))
	require.NoError(t, log.AddExchange("q2", "a2"))

	log.Clear()
	assert.Empty(t, BuildMemory(log.Turns))

	require.NoError(t, log.AddExchange("q3", "a3"))
	assert.Equal(t, []Turn{{Role: "user", Content: "q3"}, {Role: "assistant", Content: "a3"}}, log.Turns)
}

func TestBuildMemory(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, BuildMemory(nil))
	})

	t.Run("preserves order and duplicates", func(t *testing.T) {
		turns := []Turn{
			{Role: "user", Content: "same"},
			{Role: "assistant", Content: "answer"},
			{Role: "user", Content: "same"},
			{Role: "assistant", Content: "answer"},
		}
		m := BuildMemory(turns)
		require.Len(t, m, 4)
		for i, turn := range turns {
			assert.Equal(t, adapter.Message{Role: turn.Role, Content: turn.Content}, m[i])
		}
	})
}
