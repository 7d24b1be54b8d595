package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatbird/chatbird-bridge/internal/domain"
	"github.com/chatbird/chatbird-bridge/internal/socket"
)

type emitRecord struct {
	event   string
	payload interface{}
}

// fakeConn stands in for the socket client: tests flip its state and
// deliver inbound events by hand.
type fakeConn struct {
	mu              sync.Mutex
	state           domain.ConnectionState
	handlers        map[string][]socket.Handler
	connectHooks    []func()
	disconnectHooks []func(reason string)
	emitted         []emitRecord
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		state:    domain.StateDisconnected,
		handlers: map[string][]socket.Handler{},
	}
}

func (f *fakeConn) On(event string, h socket.Handler) {
	f.handlers[event] = append(f.handlers[event], h)
}
func (f *fakeConn) OnConnect(fn func())                { f.connectHooks = append(f.connectHooks, fn) }
func (f *fakeConn) OnDisconnect(fn func(reason string)) {
	f.disconnectHooks = append(f.disconnectHooks, fn)
}

func (f *fakeConn) State() domain.ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeConn) Emit(event string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != domain.StateConnected {
		return socket.ErrNotConnected
	}
	f.emitted = append(f.emitted, emitRecord{event: event, payload: payload})
	return nil
}

func (f *fakeConn) connect() {
	f.mu.Lock()
	f.state = domain.StateConnected
	f.mu.Unlock()
	for _, fn := range f.connectHooks {
		fn()
	}
}

func (f *fakeConn) drop(reason string) {
	f.mu.Lock()
	f.state = domain.StateDisconnected
	f.mu.Unlock()
	for _, fn := range f.disconnectHooks {
		fn(reason)
	}
}

func (f *fakeConn) deliver(t *testing.T, event string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	for _, h := range f.handlers[event] {
		h(data)
	}
}

func (f *fakeConn) events(name string) []emitRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emitRecord
	for _, e := range f.emitted {
		if e.event == name {
			out = append(out, e)
		}
	}
	return out
}

type fakeAPI struct {
	mu           sync.Mutex
	participants []*domain.Participant
	langCalls    []string
}

func (f *fakeAPI) ConversationDetails(ctx context.Context, conversationID string) ([]*domain.Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.participants, nil
}

func (f *fakeAPI) UpdateLanguage(ctx context.Context, conversationID, language string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.langCalls = append(f.langCalls, language)
	return nil
}

func newTestController(conn *fakeConn, restAPI RestAPI, bus domain.EventBus) *Controller {
	return NewController(
		Config{
			TypingQuietPeriod:   30 * time.Millisecond,
			TypingDisplayExpiry: 50 * time.Millisecond,
			HistoryTimeout:      2 * time.Second,
			MaxUploadSize:       10 * 1024 * 1024,
		},
		conn,
		restAPI,
		bus,
		&domain.Session{UserID: "me", Name: "Me", Token: "tok", PreferredLanguage: "en"},
		Archive{},
		zerolog.Nop(),
	)
}

func wire(id, sender, text string) socket.WireMessage {
	return socket.WireMessage{
		MessageID:  id,
		Sender:     sender,
		SenderName: sender,
		Text:       text,
		CreatedAt:  time.Now(),
	}
}

func waitEvent(t *testing.T, ch <-chan domain.Event) domain.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestRegisterOnEveryConnect(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	ctrl := newTestController(conn, &fakeAPI{}, domain.NewEventBus())
	defer ctrl.Close()

	conn.connect()
	conn.drop("network")
	conn.connect()

	registers := conn.events(socket.EventRegister)
	require.Len(t, registers, 2)
	assert.Equal(t, socket.RegisterPayload{UserID: "me"}, registers[0].payload)
}

func TestSelectIssuesJoinAndHistoryRequest(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	ctrl := newTestController(conn, &fakeAPI{}, domain.NewEventBus())
	defer ctrl.Close()
	conn.connect()

	require.NoError(t, ctrl.Select(context.Background(), "conv-1"))

	joins := conn.events(socket.EventJoinConversation)
	require.Len(t, joins, 1)
	assert.Equal(t, socket.JoinConversationPayload{ConversationID: "conv-1"}, joins[0].payload)

	loads := conn.events(socket.EventLoadChatHistory)
	require.Len(t, loads, 1)
	assert.Equal(t, socket.ChatHistoryRequest{ConversationID: "conv-1", UserID: "me"}, loads[0].payload)

	assert.True(t, ctrl.Loading())
}

func TestSelectSameConversationIsNoop(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	ctrl := newTestController(conn, &fakeAPI{}, domain.NewEventBus())
	defer ctrl.Close()
	conn.connect()

	require.NoError(t, ctrl.Select(context.Background(), "conv-1"))
	require.NoError(t, ctrl.Select(context.Background(), "conv-1"))

	assert.Len(t, conn.events(socket.EventJoinConversation), 1)
	assert.Len(t, conn.events(socket.EventLoadChatHistory), 1)
}

func TestSelectBeforeConnectDefersJoinOnce(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	ctrl := newTestController(conn, &fakeAPI{}, domain.NewEventBus())
	defer ctrl.Close()

	// Disconnected: the selection is recorded, nothing goes out
	require.NoError(t, ctrl.Select(context.Background(), "conv-1"))
	assert.Empty(t, conn.events(socket.EventJoinConversation))

	conn.connect()
	assert.Len(t, conn.events(socket.EventJoinConversation), 1)
	assert.Len(t, conn.events(socket.EventLoadChatHistory), 1)
}

func TestReconnectReplaysActiveJoin(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	ctrl := newTestController(conn, &fakeAPI{}, domain.NewEventBus())
	defer ctrl.Close()
	conn.connect()

	require.NoError(t, ctrl.Select(context.Background(), "conv-1"))
	conn.drop("network")
	conn.connect()

	joins := conn.events(socket.EventJoinConversation)
	require.Len(t, joins, 2)
	assert.Equal(t, socket.JoinConversationPayload{ConversationID: "conv-1"}, joins[1].payload)
}

func TestStaleHistoryForSupersededJoinIsDropped(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	ctrl := newTestController(conn, &fakeAPI{}, domain.NewEventBus())
	defer ctrl.Close()
	conn.connect()

	require.NoError(t, ctrl.Select(context.Background(), "conv-A"))
	require.NoError(t, ctrl.Select(context.Background(), "conv-B"))

	// Reply to the conv-A request arrives first and must be discarded
	conn.deliver(t, socket.EventChatHistory, socket.ChatHistoryPayload{
		Messages: []socket.WireMessage{wire("a1", "other", "from A")},
	})
	assert.Empty(t, ctrl.Messages())
	assert.True(t, ctrl.Loading())

	// Reply to the conv-B request lands in the store
	conn.deliver(t, socket.EventChatHistory, socket.ChatHistoryPayload{
		Messages: []socket.WireMessage{wire("b1", "other", "from B"), wire("b2", "me", "mine")},
	})

	got := ctrl.Messages()
	require.Len(t, got, 2)
	assert.Equal(t, "b1", got[0].ID)
	assert.Equal(t, "conv-B", got[0].ConversationID)
	assert.False(t, got[0].IsMine)
	assert.True(t, got[1].IsMine)
	assert.False(t, ctrl.Loading())
}

func TestUnsolicitedHistoryIsIgnored(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	ctrl := newTestController(conn, &fakeAPI{}, domain.NewEventBus())
	defer ctrl.Close()
	conn.connect()

	conn.deliver(t, socket.EventChatHistory, socket.ChatHistoryPayload{
		Messages: []socket.WireMessage{wire("x", "other", "ghost")},
	})
	assert.Empty(t, ctrl.Messages())
}

func TestReceiveMessageDedupAndEvents(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	bus := domain.NewEventBus()
	ctrl := newTestController(conn, &fakeAPI{}, bus)
	defer ctrl.Close()
	conn.connect()
	require.NoError(t, ctrl.Select(context.Background(), "conv-1"))

	events := bus.Subscribe([]domain.EventType{domain.EventTypeMessageReceived})

	conn.deliver(t, socket.EventReceiveMessage, wire("m1", "other", "hello"))
	conn.deliver(t, socket.EventReceiveMessage, wire("m1", "other", "hello"))

	require.Len(t, ctrl.Messages(), 1)

	evt := waitEvent(t, events)
	received, ok := evt.(domain.MessageReceivedEvent)
	require.True(t, ok)
	assert.Equal(t, "m1", received.Message.ID)

	select {
	case extra := <-events:
		t.Fatalf("duplicate produced a second event: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestOwnEchoIsMarkedMine(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	ctrl := newTestController(conn, &fakeAPI{}, domain.NewEventBus())
	defer ctrl.Close()
	conn.connect()
	require.NoError(t, ctrl.Select(context.Background(), "conv-1"))

	conn.deliver(t, socket.EventReceiveMessage, wire("m1", "me", "sent by me"))

	got := ctrl.Messages()
	require.Len(t, got, 1)
	assert.True(t, got[0].IsMine)
}

func TestMediaMessageClearsTypingIndicator(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	ctrl := newTestController(conn, &fakeAPI{}, domain.NewEventBus())
	defer ctrl.Close()
	conn.connect()
	require.NoError(t, ctrl.Select(context.Background(), "conv-1"))

	conn.deliver(t, socket.EventUserTyping, socket.UserTypingPayload{UserID: "other", IsTyping: true})
	require.True(t, ctrl.RemoteTyping())

	media := wire("m1", "other", "")
	media.MessageType = "image"
	media.Media = &socket.WireMedia{URL: "https://cdn/x.jpg", Size: 1234, OriginalName: "x.jpg"}
	conn.deliver(t, socket.EventReceiveMediaMessage, media)

	assert.False(t, ctrl.RemoteTyping())
	got := ctrl.Messages()
	require.Len(t, got, 1)
	assert.Equal(t, domain.MessageTypeImage, got[0].Type)
	require.NotNil(t, got[0].Media)
	assert.Equal(t, "x.jpg", got[0].Media.OriginalName)
}

func TestMessageDeletedScopedToActiveConversation(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	ctrl := newTestController(conn, &fakeAPI{}, domain.NewEventBus())
	defer ctrl.Close()
	conn.connect()
	require.NoError(t, ctrl.Select(context.Background(), "conv-1"))

	conn.deliver(t, socket.EventReceiveMessage, wire("m1", "other", "hello"))

	// Deletion for another conversation must not touch the store
	conn.deliver(t, socket.EventMessageDeleted, socket.MessageDeletedPayload{
		MessageID: "m1", ConversationID: "conv-other",
	})
	assert.Len(t, ctrl.Messages(), 1)

	conn.deliver(t, socket.EventMessageDeleted, socket.MessageDeletedPayload{
		MessageID: "m1", ConversationID: "conv-1",
	})
	assert.Empty(t, ctrl.Messages())
}

func TestSendText(t *testing.T) {
	t.Parallel()

	t.Run("emits without local append", func(t *testing.T) {
		conn := newFakeConn()
		ctrl := newTestController(conn, &fakeAPI{}, domain.NewEventBus())
		defer ctrl.Close()
		conn.connect()
		require.NoError(t, ctrl.Select(context.Background(), "conv-1"))

		require.NoError(t, ctrl.SendText("  hello there  "))

		sends := conn.events(socket.EventSendMessage)
		require.Len(t, sends, 1)
		payload, ok := sends[0].payload.(socket.SendMessagePayload)
		require.True(t, ok)
		assert.Equal(t, "hello there", payload.Text)
		assert.Equal(t, "conv-1", payload.ConversationID)
		assert.Equal(t, "me", payload.SenderID)
		assert.Equal(t, "en", payload.Language)

		assert.Empty(t, ctrl.Messages(), "message appears only on server echo")
	})

	t.Run("rejects empty text", func(t *testing.T) {
		conn := newFakeConn()
		ctrl := newTestController(conn, &fakeAPI{}, domain.NewEventBus())
		defer ctrl.Close()
		conn.connect()
		require.NoError(t, ctrl.Select(context.Background(), "conv-1"))

		assert.ErrorIs(t, ctrl.SendText("   "), ErrEmptyMessage)
		assert.Empty(t, conn.events(socket.EventSendMessage))
	})

	t.Run("requires an active conversation", func(t *testing.T) {
		conn := newFakeConn()
		ctrl := newTestController(conn, &fakeAPI{}, domain.NewEventBus())
		defer ctrl.Close()
		conn.connect()

		assert.ErrorIs(t, ctrl.SendText("hello"), ErrNoConversation)
	})

	t.Run("fails fast while disconnected", func(t *testing.T) {
		conn := newFakeConn()
		ctrl := newTestController(conn, &fakeAPI{}, domain.NewEventBus())
		defer ctrl.Close()
		conn.connect()
		require.NoError(t, ctrl.Select(context.Background(), "conv-1"))
		conn.drop("network")

		assert.ErrorIs(t, ctrl.SendText("hello"), socket.ErrNotConnected)
	})
}

func TestHistoryTimeoutSurfacesError(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	bus := domain.NewEventBus()
	ctrl := NewController(
		Config{
			TypingQuietPeriod:   30 * time.Millisecond,
			TypingDisplayExpiry: 50 * time.Millisecond,
			HistoryTimeout:      40 * time.Millisecond,
			MaxUploadSize:       10 * 1024 * 1024,
		},
		conn, &fakeAPI{}, bus,
		&domain.Session{UserID: "me"},
		Archive{},
		zerolog.Nop(),
	)
	defer ctrl.Close()
	conn.connect()

	events := bus.Subscribe([]domain.EventType{domain.EventTypeServerError})

	require.NoError(t, ctrl.Select(context.Background(), "conv-1"))
	require.True(t, ctrl.Loading())

	evt := waitEvent(t, events)
	srvErr, ok := evt.(domain.ServerErrorEvent)
	require.True(t, ok)
	assert.Contains(t, srvErr.Message, "timed out")
	assert.False(t, ctrl.Loading())
}

func TestSetLanguageReloadsHistory(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	restAPI := &fakeAPI{}
	ctrl := newTestController(conn, restAPI, domain.NewEventBus())
	defer ctrl.Close()
	conn.connect()
	require.NoError(t, ctrl.Select(context.Background(), "conv-1"))

	require.NoError(t, ctrl.SetLanguage(context.Background(), "es"))

	restAPI.mu.Lock()
	assert.Equal(t, []string{"es"}, restAPI.langCalls)
	restAPI.mu.Unlock()

	reloads := conn.events(socket.EventReloadChatHistory)
	require.Len(t, reloads, 1)
	assert.Equal(t, socket.ChatHistoryRequest{ConversationID: "conv-1", UserID: "me"}, reloads[0].payload)
	assert.True(t, ctrl.Loading())
	assert.Equal(t, "es", ctrl.Session().Language())
}

func TestSetLanguageRequiresActiveConversation(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	ctrl := newTestController(conn, &fakeAPI{}, domain.NewEventBus())
	defer ctrl.Close()
	conn.connect()

	assert.ErrorIs(t, ctrl.SetLanguage(context.Background(), "es"), ErrNoConversation)
}

func TestSwitchResetsStoreAndTyping(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	restAPI := &fakeAPI{participants: []*domain.Participant{
		{ID: "me", Name: "Me"},
		{ID: "other", Name: "Other"},
	}}
	ctrl := newTestController(conn, restAPI, domain.NewEventBus())
	defer ctrl.Close()
	conn.connect()

	require.NoError(t, ctrl.Select(context.Background(), "conv-A"))
	conn.deliver(t, socket.EventChatHistory, socket.ChatHistoryPayload{
		Messages: []socket.WireMessage{wire("a1", "other", "old")},
	})
	conn.deliver(t, socket.EventUserTyping, socket.UserTypingPayload{UserID: "other", IsTyping: true})
	require.Len(t, ctrl.Messages(), 1)
	require.True(t, ctrl.RemoteTyping())

	require.NoError(t, ctrl.Select(context.Background(), "conv-B"))

	assert.Empty(t, ctrl.Messages())
	assert.False(t, ctrl.RemoteTyping())
	assert.True(t, ctrl.Loading())
	assert.Equal(t, "conv-B", ctrl.ActiveConversation())

	assert.Eventually(t, func() bool {
		r := ctrl.Recipient()
		return r != nil && r.ID == "other"
	}, time.Second, 10*time.Millisecond)
}

func TestValidateUpload(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	ctrl := newTestController(conn, &fakeAPI{}, domain.NewEventBus())
	defer ctrl.Close()

	t.Run("accepts images and videos", func(t *testing.T) {
		msgType, err := ctrl.ValidateUpload("photo.JPG", 1024)
		require.NoError(t, err)
		assert.Equal(t, domain.MessageTypeImage, msgType)

		msgType, err = ctrl.ValidateUpload("clip.mp4", 1024)
		require.NoError(t, err)
		assert.Equal(t, domain.MessageTypeVideo, msgType)
	})

	t.Run("rejects other file types", func(t *testing.T) {
		_, err := ctrl.ValidateUpload("notes.pdf", 1024)
		assert.ErrorIs(t, err, ErrUnsupportedMedia)
	})

	t.Run("rejects oversized files", func(t *testing.T) {
		_, err := ctrl.ValidateUpload("big.mp4", 11*1024*1024)
		assert.ErrorIs(t, err, ErrFileTooLarge)
	})
}

func TestTypingSignalSentOnlyWithActiveConversation(t *testing.T) {
	t.Parallel()

	conn := newFakeConn()
	ctrl := newTestController(conn, &fakeAPI{}, domain.NewEventBus())
	defer ctrl.Close()
	conn.connect()

	ctrl.InputChanged("draft without a conversation")
	assert.Empty(t, conn.events(socket.EventTyping))

	require.NoError(t, ctrl.Select(context.Background(), "conv-1"))
	ctrl.InputChanged("hello")

	typings := conn.events(socket.EventTyping)
	require.NotEmpty(t, typings)
	payload, ok := typings[0].payload.(socket.TypingPayload)
	require.True(t, ok)
	assert.True(t, payload.IsTyping)
	assert.Equal(t, "conv-1", payload.ConversationID)
	assert.Equal(t, "me", payload.UserID)
}
