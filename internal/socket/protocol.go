package socket

import (
	"encoding/json"
	"time"
)

// Event names of the ChatBird socket contract. Names are exact; the
// server routes on them verbatim.
const (
	// Outbound
	EventRegister          = "register"
	EventJoinConversation  = "joinConversation"
	EventLoadChatHistory   = "loadChatHistory"
	EventReloadChatHistory = "reloadChatHistory"
	EventTyping            = "typing"
	EventSendMessage       = "sendMessage"

	// Inbound
	EventChatHistory         = "chatHistory"
	EventReceiveMessage      = "receiveMessage"
	EventReceiveMediaMessage = "receiveMediaMessage"
	EventUserTyping          = "userTyping"
	EventMessageDeleted      = "messageDeleted"
	EventError               = "error"
)

// Envelope frames every message on the wire in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type RegisterPayload struct {
	UserID string `json:"userId"`
}

type JoinConversationPayload struct {
	ConversationID string `json:"conversationId"`
}

// ChatHistoryRequest is the payload of both loadChatHistory and
// reloadChatHistory. The reload variant makes the server re-render
// message text after a language-preference change.
type ChatHistoryRequest struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

type SendMessagePayload struct {
	ConversationID string   `json:"conversationId"`
	SenderID       string   `json:"senderId"`
	Text           string   `json:"text"`
	Language       string   `json:"language"`
	Recipients     []string `json:"recipients"`
}

type WireMedia struct {
	URL          string `json:"url"`
	Size         int64  `json:"size"`
	OriginalName string `json:"originalName"`
}

type WireMessage struct {
	MessageID   string     `json:"messageId"`
	Text        string     `json:"text,omitempty"`
	Sender      string     `json:"sender"`
	SenderName  string     `json:"senderName"`
	Lang        string     `json:"lang,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	MessageType string     `json:"messageType,omitempty"`
	Media       *WireMedia `json:"media,omitempty"`
}

type ChatHistoryPayload struct {
	Messages []WireMessage `json:"messages"`
}

type UserTypingPayload struct {
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type MessageDeletedPayload struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
