package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatbird/chatbird-bridge/internal/domain"
)

func msg(id, text string) domain.Message {
	return domain.Message{ID: id, ConversationID: "conv-1", Text: text, Type: domain.MessageTypeText}
}

func TestAppend(t *testing.T) {
	t.Parallel()

	t.Run("appends in arrival order", func(t *testing.T) {
		s := New()
		require.True(t, s.Append(msg("a", "first")))
		require.True(t, s.Append(msg("b", "second")))
		require.True(t, s.Append(msg("c", "third")))

		got := s.Messages()
		require.Len(t, got, 3)
		assert.Equal(t, "a", got[0].ID)
		assert.Equal(t, "b", got[1].ID)
		assert.Equal(t, "c", got[2].ID)
	})

	t.Run("drops duplicate ids", func(t *testing.T) {
		s := New()
		require.True(t, s.Append(msg("a", "original")))
		assert.False(t, s.Append(msg("a", "duplicate")))

		got := s.Messages()
		require.Len(t, got, 1)
		assert.Equal(t, "original", got[0].Text)
	})

	t.Run("duplicate after replace is still dropped", func(t *testing.T) {
		s := New()
		s.Replace([]domain.Message{msg("a", "from history")})
		assert.False(t, s.Append(msg("a", "live echo of same message")))
		assert.Equal(t, 1, s.Len())
	})
}

func TestReplace(t *testing.T) {
	t.Parallel()

	t.Run("overwrites existing contents verbatim", func(t *testing.T) {
		s := New()
		s.Append(msg("live-1", "arrived before history"))

		s.Replace([]domain.Message{msg("h1", "one"), msg("h2", "two")})

		got := s.Messages()
		require.Len(t, got, 2)
		assert.Equal(t, "h1", got[0].ID)
		assert.Equal(t, "h2", got[1].ID)
	})

	t.Run("clears the loading flag", func(t *testing.T) {
		s := New()
		s.SetLoading(true)
		s.Replace(nil)
		assert.False(t, s.Loading())
	})

	t.Run("preserves server order without sorting", func(t *testing.T) {
		s := New()
		// Deliberately not sorted by any timestamp; delivery order wins.
		in := []domain.Message{msg("z", ""), msg("a", ""), msg("m", "")}
		s.Replace(in)

		got := s.Messages()
		assert.Equal(t, "z", got[0].ID)
		assert.Equal(t, "a", got[1].ID)
		assert.Equal(t, "m", got[2].ID)
	})
}

func TestRemove(t *testing.T) {
	t.Parallel()

	t.Run("removes by id and frees the id for reuse", func(t *testing.T) {
		s := New()
		s.Append(msg("a", ""))
		s.Append(msg("b", ""))

		assert.True(t, s.Remove("a"))
		assert.Equal(t, 1, s.Len())

		// The id no longer counts as seen
		assert.True(t, s.Append(msg("a", "resent")))
	})

	t.Run("unknown id is a no-op", func(t *testing.T) {
		s := New()
		s.Append(msg("a", ""))
		assert.False(t, s.Remove("missing"))
		assert.Equal(t, 1, s.Len())
	})
}

func TestReset(t *testing.T) {
	t.Parallel()

	s := New()
	for i := 0; i < 5; i++ {
		s.Append(msg(fmt.Sprintf("m%d", i), ""))
	}
	s.SetLoading(true)

	s.Reset()

	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Loading())
	assert.True(t, s.Append(msg("m0", "ids usable again")))
}

func TestMessagesReturnsCopy(t *testing.T) {
	t.Parallel()

	s := New()
	s.Append(msg("a", "original"))

	got := s.Messages()
	got[0].Text = "mutated"

	assert.Equal(t, "original", s.Messages()[0].Text)
}
