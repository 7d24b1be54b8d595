// Package session binds the active conversation to the socket
// connection, the message store and the presence coordinator, and
// exposes the composed state to presentation layers.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/chatbird/chatbird-bridge/internal/domain"
	"github.com/chatbird/chatbird-bridge/internal/presence"
	"github.com/chatbird/chatbird-bridge/internal/repository"
	"github.com/chatbird/chatbird-bridge/internal/socket"
	"github.com/chatbird/chatbird-bridge/internal/store"
)

var (
	ErrNoConversation   = errors.New("session: no active conversation")
	ErrEmptyMessage     = errors.New("session: message text is empty")
	ErrUnsupportedMedia = errors.New("session: only image and video files can be shared")
	ErrFileTooLarge     = errors.New("session: file exceeds the upload size limit")
)

// Conn is the slice of the socket client the controller drives.
type Conn interface {
	On(event string, h socket.Handler)
	OnConnect(fn func())
	OnDisconnect(fn func(reason string))
	Emit(event string, payload interface{}) error
	State() domain.ConnectionState
}

// RestAPI covers the REST collaborators the controller consumes.
// Metadata fetch failures never block message display.
type RestAPI interface {
	ConversationDetails(ctx context.Context, conversationID string) ([]*domain.Participant, error)
	UpdateLanguage(ctx context.Context, conversationID, language string) error
}

type Config struct {
	TypingQuietPeriod   time.Duration
	TypingDisplayExpiry time.Duration
	HistoryTimeout      time.Duration
	MaxUploadSize       int64
}

// Archive groups the optional local persistence collaborators. A zero
// Archive disables persistence; live sync is unaffected.
type Archive struct {
	Messages      repository.MessageRepository
	Conversations repository.ConversationRepository
	Participants  repository.ParticipantRepository
}

// Controller owns the active-conversation selection and sequences the
// side effects of switching it: store reset, presence reset, join and
// history request issued exactly once as soon as the connection is
// ready, and an independent recipient metadata fetch.
type Controller struct {
	cfg      Config
	conn     Conn
	api      RestAPI
	bus      domain.EventBus
	session  *domain.Session
	archive  Archive
	store    *store.MessageStore
	presence *presence.Coordinator
	validate *validator.Validate
	log      zerolog.Logger

	mu           sync.Mutex
	active       string
	epoch        int
	joinPending  bool
	historyQueue []int
	historyTimer *time.Timer
	recipient    *domain.Participant
}

func NewController(
	cfg Config,
	conn Conn,
	restAPI RestAPI,
	bus domain.EventBus,
	sess *domain.Session,
	archive Archive,
	log zerolog.Logger,
) *Controller {
	c := &Controller{
		cfg:      cfg,
		conn:     conn,
		api:      restAPI,
		bus:      bus,
		session:  sess,
		archive:  archive,
		store:    store.New(),
		validate: validator.New(),
		log:      log,
	}

	c.presence = presence.NewCoordinator(presence.Config{
		QuietPeriod:   cfg.TypingQuietPeriod,
		DisplayExpiry: cfg.TypingDisplayExpiry,
	}, sess.UserID, c.emitTyping)
	c.presence.SetDisplayHandler(c.publishTyping)

	conn.OnConnect(c.handleConnected)
	conn.OnDisconnect(c.handleDisconnected)
	conn.On(socket.EventChatHistory, c.handleChatHistory)
	conn.On(socket.EventReceiveMessage, c.handleReceiveMessage)
	conn.On(socket.EventReceiveMediaMessage, c.handleReceiveMessage)
	conn.On(socket.EventUserTyping, c.handleUserTyping)
	conn.On(socket.EventMessageDeleted, c.handleMessageDeleted)
	conn.On(socket.EventError, c.handleServerError)

	return c
}

// Select switches the active conversation. Same id is a no-op.
// Otherwise the store and the remote typing display are cleared
// atomically, a join + history request is issued once the connection
// is ready (deferred, never dropped, never duplicated), and recipient
// metadata is fetched over REST in the background.
func (c *Controller) Select(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return ErrNoConversation
	}

	c.mu.Lock()
	if conversationID == c.active {
		c.mu.Unlock()
		return nil
	}

	c.active = conversationID
	c.epoch++
	epoch := c.epoch
	c.recipient = nil
	c.store.Reset()
	c.presence.Reset()
	c.stopHistoryTimerLocked()

	if c.conn.State() == domain.StateConnected {
		c.issueHistoryRequestLocked(socket.EventLoadChatHistory, true)
		c.joinPending = false
	} else {
		c.joinPending = true
	}
	c.mu.Unlock()

	go c.fetchRecipient(ctx, conversationID, epoch)
	return nil
}

// SendText emits a sendMessage event. The message is not appended
// locally; it becomes visible when the server echoes it back through
// the regular inbound path.
func (c *Controller) SendText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	conversationID := c.active
	recipient := c.recipient
	c.mu.Unlock()

	if conversationID == "" {
		return ErrNoConversation
	}
	if c.conn.State() != domain.StateConnected {
		return socket.ErrNotConnected
	}

	c.presence.MessageSubmitted()

	payload := socket.SendMessagePayload{
		ConversationID: conversationID,
		SenderID:       c.session.UserID,
		Text:           text,
		Language:       c.session.Language(),
		Recipients:     []string{},
	}
	if recipient != nil {
		payload.Recipients = []string{recipient.ID}
	}
	if err := c.validate.Struct(&struct {
		ConversationID string `validate:"required"`
		SenderID       string `validate:"required"`
		Text           string `validate:"required"`
	}{payload.ConversationID, payload.SenderID, payload.Text}); err != nil {
		return err
	}

	return c.conn.Emit(socket.EventSendMessage, payload)
}

// InputChanged forwards a composer change into the outbound typing
// debounce. Ignored when no conversation is active or the connection
// is down.
func (c *Controller) InputChanged(value string) {
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()

	if active == "" || c.conn.State() != domain.StateConnected {
		return
	}
	c.presence.InputChanged(value)
}

// SetLanguage updates the preference over REST and asks the server to
// re-push re-rendered history for the active conversation.
func (c *Controller) SetLanguage(ctx context.Context, language string) error {
	c.mu.Lock()
	conversationID := c.active
	c.mu.Unlock()

	if conversationID == "" {
		return ErrNoConversation
	}

	if err := c.api.UpdateLanguage(ctx, conversationID, language); err != nil {
		return err
	}
	c.session.PreferredLanguage = language

	return c.ReloadHistory()
}

// ReloadHistory requests the active conversation's history again.
func (c *Controller) ReloadHistory() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == "" {
		return ErrNoConversation
	}
	if c.conn.State() != domain.StateConnected {
		return socket.ErrNotConnected
	}
	c.issueHistoryRequestLocked(socket.EventReloadChatHistory, false)
	return nil
}

// ValidateUpload applies the client-side pre-upload checks: image or
// video by extension, bounded size. It returns the inferred message
// type for the upload form.
func (c *Controller) ValidateUpload(filename string, size int64) (domain.MessageType, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	var msgType domain.MessageType
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		msgType = domain.MessageTypeImage
	case ".mp4", ".mov", ".webm", ".avi", ".mkv":
		msgType = domain.MessageTypeVideo
	default:
		return "", ErrUnsupportedMedia
	}

	if size > c.cfg.MaxUploadSize {
		return "", ErrFileTooLarge
	}
	return msgType, nil
}

func (c *Controller) Messages() []domain.Message { return c.store.Messages() }
func (c *Controller) Loading() bool              { return c.store.Loading() }
func (c *Controller) RemoteTyping() bool         { return c.presence.RemoteTyping() }

func (c *Controller) ConnectionState() domain.ConnectionState { return c.conn.State() }

func (c *Controller) ActiveConversation() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) Recipient() *domain.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recipient
}

func (c *Controller) Session() *domain.Session { return c.session }
func (c *Controller) Events() domain.EventBus  { return c.bus }

// Close cancels pending timers. The socket connection is owned and
// closed by the caller.
func (c *Controller) Close() {
	c.mu.Lock()
	c.stopHistoryTimerLocked()
	c.mu.Unlock()
	c.presence.Reset()
}

// issueHistoryRequestLocked emits the join (for fresh selections) and
// the history request, recording the request's epoch so the matching
// chatHistory reply can be told apart from replies to superseded
// joins. Replies arrive in request order on one connection, so a FIFO
// match is sound.
func (c *Controller) issueHistoryRequestLocked(event string, join bool) {
	if join {
		if err := c.conn.Emit(socket.EventJoinConversation, socket.JoinConversationPayload{
			ConversationID: c.active,
		}); err != nil {
			c.log.Warn().Err(err).Str("conversation", c.active).Msg("join emit failed")
		}
	}

	if err := c.conn.Emit(event, socket.ChatHistoryRequest{
		ConversationID: c.active,
		UserID:         c.session.UserID,
	}); err != nil {
		c.log.Warn().Err(err).Str("conversation", c.active).Msg("history request failed")
		return
	}

	c.historyQueue = append(c.historyQueue, c.epoch)
	c.store.SetLoading(true)

	epoch := c.epoch
	c.stopHistoryTimerLocked()
	c.historyTimer = time.AfterFunc(c.cfg.HistoryTimeout, func() {
		c.historyTimedOut(epoch)
	})
}

func (c *Controller) historyTimedOut(epoch int) {
	c.mu.Lock()
	stale := epoch != c.epoch || !c.store.Loading()
	c.mu.Unlock()
	if stale {
		return
	}

	c.store.SetLoading(false)
	c.log.Warn().Msg("history load timed out")
	c.bus.Publish(domain.ServerErrorEvent{
		Message:   "timed out loading conversation history",
		EventTime: time.Now(),
	})
}

func (c *Controller) handleConnected() {
	if err := c.conn.Emit(socket.EventRegister, socket.RegisterPayload{
		UserID: c.session.UserID,
	}); err != nil {
		c.log.Warn().Err(err).Msg("register emit failed")
	}

	c.mu.Lock()
	if c.joinPending && c.active != "" {
		c.issueHistoryRequestLocked(socket.EventLoadChatHistory, true)
	}
	c.joinPending = false
	c.mu.Unlock()

	c.bus.Publish(domain.ConnectionStatusEvent{
		State:     domain.StateConnected,
		EventTime: time.Now(),
	})
}

func (c *Controller) handleDisconnected(reason string) {
	c.mu.Lock()
	// Requests died with the connection; the active join is replayed
	// once on the next successful connect.
	c.historyQueue = nil
	c.joinPending = c.active != ""
	c.stopHistoryTimerLocked()
	c.mu.Unlock()

	c.store.SetLoading(false)
	c.bus.Publish(domain.ConnectionStatusEvent{
		State:     domain.StateDisconnected,
		Reason:    reason,
		EventTime: time.Now(),
	})
}

func (c *Controller) handleChatHistory(raw json.RawMessage) {
	var payload socket.ChatHistoryPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.log.Warn().Err(err).Msg("malformed chatHistory payload")
		return
	}

	c.mu.Lock()
	if len(c.historyQueue) == 0 {
		c.mu.Unlock()
		c.log.Debug().Msg("unsolicited chatHistory dropped")
		return
	}
	reqEpoch := c.historyQueue[0]
	c.historyQueue = c.historyQueue[1:]
	if reqEpoch != c.epoch {
		c.mu.Unlock()
		c.log.Debug().Msg("stale chatHistory for superseded join dropped")
		return
	}

	conversationID := c.active
	messages := make([]domain.Message, len(payload.Messages))
	for i, wm := range payload.Messages {
		messages[i] = c.toDomain(wm, conversationID)
	}
	c.store.Replace(messages)
	c.stopHistoryTimerLocked()
	c.mu.Unlock()

	c.bus.Publish(domain.HistoryLoadedEvent{
		ConversationID: conversationID,
		Count:          len(messages),
		EventTime:      time.Now(),
	})

	if c.archive.Messages != nil {
		ctx := context.Background()
		for i := range messages {
			if err := c.archive.Messages.CreateOrIgnore(ctx, &messages[i]); err != nil {
				c.log.Warn().Err(err).Msg("failed to archive history message")
				break
			}
		}
	}
}

// handleReceiveMessage covers both receiveMessage and
// receiveMediaMessage; the payloads differ only in optional fields.
func (c *Controller) handleReceiveMessage(raw json.RawMessage) {
	var wm socket.WireMessage
	if err := json.Unmarshal(raw, &wm); err != nil {
		c.log.Warn().Err(err).Msg("malformed message payload")
		return
	}

	c.mu.Lock()
	conversationID := c.active
	c.mu.Unlock()
	if conversationID == "" {
		return
	}

	// A message implies typing has stopped.
	c.presence.MessageArrived()

	msg := c.toDomain(wm, conversationID)
	if !c.store.Append(msg) {
		c.log.Debug().Str("id", msg.ID).Msg("duplicate message dropped")
		return
	}

	c.bus.Publish(domain.MessageReceivedEvent{
		Message:   &msg,
		EventTime: time.Now(),
	})

	ctx := context.Background()
	if c.archive.Messages != nil {
		if err := c.archive.Messages.CreateOrIgnore(ctx, &msg); err != nil {
			c.log.Warn().Err(err).Msg("failed to archive message")
		}
	}
	if c.archive.Conversations != nil {
		sender := msg.SenderName
		if msg.IsMine {
			sender = "me"
		}
		if err := c.archive.Conversations.UpdateLastMessage(ctx, conversationID, msg.Preview(), sender, msg.CreatedAt); err != nil {
			c.log.Warn().Err(err).Msg("failed to update conversation preview")
		}
	}
}

func (c *Controller) handleUserTyping(raw json.RawMessage) {
	var payload socket.UserTypingPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.log.Warn().Err(err).Msg("malformed userTyping payload")
		return
	}
	c.presence.HandleRemoteTyping(payload.UserID, payload.IsTyping)
}

func (c *Controller) handleMessageDeleted(raw json.RawMessage) {
	var payload socket.MessageDeletedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.log.Warn().Err(err).Msg("malformed messageDeleted payload")
		return
	}

	c.mu.Lock()
	active := c.active
	c.mu.Unlock()

	// Stale events for other conversations must not touch the store.
	if payload.ConversationID != active {
		return
	}
	if !c.store.Remove(payload.MessageID) {
		return
	}

	c.bus.Publish(domain.MessageDeletedEvent{
		MessageID:      payload.MessageID,
		ConversationID: payload.ConversationID,
		EventTime:      time.Now(),
	})

	if c.archive.Messages != nil {
		if err := c.archive.Messages.Delete(context.Background(), payload.MessageID); err != nil {
			c.log.Warn().Err(err).Msg("failed to delete archived message")
		}
	}
}

func (c *Controller) handleServerError(raw json.RawMessage) {
	var payload socket.ErrorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.log.Warn().Err(err).Msg("malformed error payload")
		return
	}
	c.log.Warn().Str("message", payload.Message).Msg("server rejected an operation")
	c.bus.Publish(domain.ServerErrorEvent{
		Message:   payload.Message,
		EventTime: time.Now(),
	})
}

func (c *Controller) fetchRecipient(ctx context.Context, conversationID string, epoch int) {
	participants, err := c.api.ConversationDetails(ctx, conversationID)
	if err != nil {
		c.log.Warn().Err(err).Str("conversation", conversationID).Msg("recipient metadata fetch failed")
		return
	}

	var recipient *domain.Participant
	for _, p := range participants {
		if p.ID != c.session.UserID {
			recipient = p
			break
		}
	}

	c.mu.Lock()
	if c.epoch == epoch && recipient != nil {
		c.recipient = recipient
	}
	c.mu.Unlock()

	if c.archive.Participants != nil {
		for _, p := range participants {
			if err := c.archive.Participants.Upsert(ctx, p); err != nil {
				c.log.Warn().Err(err).Msg("failed to cache participant")
			}
		}
	}
	if c.archive.Conversations != nil && recipient != nil {
		existing, err := c.archive.Conversations.GetByID(ctx, conversationID)
		if err == nil && existing == nil {
			existing = domain.NewConversation(conversationID, recipient.ID, recipient.DisplayName())
		}
		if existing != nil {
			existing.RecipientID = recipient.ID
			existing.RecipientName = recipient.DisplayName()
			if err := c.archive.Conversations.Upsert(ctx, existing); err != nil {
				c.log.Warn().Err(err).Msg("failed to cache conversation")
			}
		}
	}
}

func (c *Controller) emitTyping(isTyping bool) {
	c.mu.Lock()
	conversationID := c.active
	c.mu.Unlock()

	if conversationID == "" || c.conn.State() != domain.StateConnected {
		return
	}
	if err := c.conn.Emit(socket.EventTyping, socket.TypingPayload{
		ConversationID: conversationID,
		UserID:         c.session.UserID,
		IsTyping:       isTyping,
	}); err != nil {
		c.log.Debug().Err(err).Msg("typing emit failed")
	}
}

func (c *Controller) publishTyping(userID string, visible bool) {
	c.mu.Lock()
	conversationID := c.active
	c.mu.Unlock()

	c.bus.Publish(domain.TypingUpdatedEvent{
		ConversationID: conversationID,
		UserID:         userID,
		IsTyping:       visible,
		EventTime:      time.Now(),
	})
}

func (c *Controller) toDomain(wm socket.WireMessage, conversationID string) domain.Message {
	msgType := domain.MessageType(wm.MessageType)
	if msgType == "" {
		msgType = domain.MessageTypeText
	}

	msg := domain.Message{
		ID:             wm.MessageID,
		ConversationID: conversationID,
		Sender:         wm.Sender,
		SenderName:     wm.SenderName,
		Type:           msgType,
		Text:           wm.Text,
		Lang:           wm.Lang,
		CreatedAt:      wm.CreatedAt,
		IsMine:         wm.Sender == c.session.UserID,
	}
	if wm.Media != nil {
		msg.Media = &domain.Media{
			URL:          wm.Media.URL,
			Size:         wm.Media.Size,
			OriginalName: wm.Media.OriginalName,
		}
	}
	return msg
}

func (c *Controller) stopHistoryTimerLocked() {
	if c.historyTimer != nil {
		c.historyTimer.Stop()
		c.historyTimer = nil
	}
}
