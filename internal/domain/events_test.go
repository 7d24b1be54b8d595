package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusFiltering(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	typingOnly := bus.Subscribe([]EventType{EventTypeTypingUpdated})
	everything := bus.Subscribe(nil)

	bus.Publish(MessageReceivedEvent{Message: &Message{ID: "m1"}, EventTime: time.Now()})
	bus.Publish(TypingUpdatedEvent{UserID: "u1", IsTyping: true, EventTime: time.Now()})

	evt := <-typingOnly
	typing, ok := evt.(TypingUpdatedEvent)
	require.True(t, ok, "filtered subscriber must only see typing events")
	assert.True(t, typing.IsTyping)

	first := <-everything
	assert.Equal(t, EventTypeMessageReceived, first.Type())
	second := <-everything
	assert.Equal(t, EventTypeTypingUpdated, second.Type())
}

func TestEventBusUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	ch := bus.Subscribe([]EventType{EventTypeServerError})
	bus.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)

	// Publishing after unsubscribe must not panic
	bus.Publish(ServerErrorEvent{Message: "late", EventTime: time.Now()})
}

func TestPublishNeverBlocks(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	bus.Subscribe([]EventType{EventTypeMessageReceived}) // never drained

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			bus.Publish(MessageReceivedEvent{Message: &Message{ID: "m"}, EventTime: time.Now()})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestSessionLanguageDefault(t *testing.T) {
	t.Parallel()

	var nilSession *Session
	assert.Equal(t, "en", nilSession.Language())
	assert.Equal(t, "en", (&Session{}).Language())
	assert.Equal(t, "fr", (&Session{PreferredLanguage: "fr"}).Language())
}

func TestMessagePreview(t *testing.T) {
	t.Parallel()

	text := NewTextMessage("m1", "c1", "u1", "Alice", "hello", "en", time.Now(), false)
	assert.Equal(t, "hello", text.Preview())
	assert.False(t, text.IsMedia())

	img := NewMediaMessage("m2", "c1", "u1", "Alice", MessageTypeImage,
		&Media{URL: "https://cdn/x.jpg"}, "", time.Now(), false)
	assert.Equal(t, "[image]", img.Preview())
	assert.True(t, img.IsMedia())
}
