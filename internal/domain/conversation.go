package domain

import "time"

// Conversation is a two-party message thread identified by an opaque id.
type Conversation struct {
	ID                string
	RecipientID       string
	RecipientName     string
	LastMessageTime   time.Time
	LastMessageText   string
	LastMessageSender string
	UnreadCount       int
}

func NewConversation(id, recipientID, recipientName string) *Conversation {
	return &Conversation{
		ID:            id,
		RecipientID:   recipientID,
		RecipientName: recipientName,
	}
}

// ConnectionState reflects the transport-level state of the single live
// socket connection. Transitions are driven solely by the transport,
// never by application logic.
type ConnectionState string

const (
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateDisconnected ConnectionState = "disconnected"
)
