package domain

import "time"

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeVideo MessageType = "video"
)

// Media describes the attachment of an image or video message.
type Media struct {
	URL          string
	Size         int64
	OriginalName string
}

// Message is a single chat entry. MessageID is stable across delivery
// paths (history bulk, live push, echo of own sends) and is the sole
// de-duplication key within a conversation.
type Message struct {
	ID             string
	ConversationID string
	Sender         string
	SenderName     string
	Type           MessageType
	Text           string
	Media          *Media
	Lang           string
	CreatedAt      time.Time
	IsMine         bool
}

func (m *Message) IsMedia() bool {
	return m.Type == MessageTypeImage || m.Type == MessageTypeVideo
}

// Preview returns a short text representation for conversation lists.
func (m *Message) Preview() string {
	if m.Text != "" {
		return m.Text
	}
	return "[" + string(m.Type) + "]"
}

func NewTextMessage(id, conversationID, sender, senderName, text, lang string, createdAt time.Time, isMine bool) *Message {
	return &Message{
		ID:             id,
		ConversationID: conversationID,
		Sender:         sender,
		SenderName:     senderName,
		Type:           MessageTypeText,
		Text:           text,
		Lang:           lang,
		CreatedAt:      createdAt,
		IsMine:         isMine,
	}
}

func NewMediaMessage(id, conversationID, sender, senderName string, msgType MessageType, media *Media, text string, createdAt time.Time, isMine bool) *Message {
	return &Message{
		ID:             id,
		ConversationID: conversationID,
		Sender:         sender,
		SenderName:     senderName,
		Type:           msgType,
		Media:          media,
		Text:           text,
		CreatedAt:      createdAt,
		IsMine:         isMine,
	}
}
