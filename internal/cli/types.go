package cli

import "time"

// Mode represents the CLI operation mode
type Mode string

const (
	ModeInteractive Mode = "interactive"
	ModeHeadless    Mode = "headless"
)

// Request represents a JSON request in headless mode
type Request struct {
	ID      string                 `json:"id,omitempty"`
	Command string                 `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Response represents a JSON response in headless mode
type Response struct {
	ID      string      `json:"id,omitempty"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Event represents a real-time event in headless mode
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ConversationInfo represents conversation information for responses
type ConversationInfo struct {
	ID              string    `json:"id"`
	RecipientID     string    `json:"recipient_id"`
	RecipientName   string    `json:"recipient_name"`
	LastMessageText string    `json:"last_message_text,omitempty"`
	LastMessageTime time.Time `json:"last_message_time,omitempty"`
	UnreadCount     int       `json:"unread_count,omitempty"`
}

// MessageInfo represents message information for responses
type MessageInfo struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Sender         string    `json:"sender"`
	SenderName     string    `json:"sender_name"`
	Type           string    `json:"type"`
	Text           string    `json:"text,omitempty"`
	MediaURL       string    `json:"media_url,omitempty"`
	Lang           string    `json:"lang,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	IsMine         bool      `json:"is_mine"`
}

// UserInfo represents a user account for responses
type UserInfo struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	PreferredLanguage string `json:"preferred_language,omitempty"`
}

// ConnectionStatus represents connection status for responses
type ConnectionStatus struct {
	Connected          bool   `json:"connected"`
	State              string `json:"state"`
	UserID             string `json:"user_id,omitempty"`
	ActiveConversation string `json:"active_conversation,omitempty"`
	Loading            bool   `json:"loading"`
	RemoteTyping       bool   `json:"remote_typing"`
}
