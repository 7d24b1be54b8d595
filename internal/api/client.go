// Package api is the HTTP client for the ChatBird REST API: auth,
// conversation metadata, media upload and language preference. Media
// delivery itself always happens over the socket channel; the upload
// response only acknowledges the transfer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatbird/chatbird-bridge/internal/domain"
)

type Client struct {
	baseURL string
	http    *http.Client
	session *domain.Session
	log     zerolog.Logger
}

func NewClient(baseURL string, session *domain.Session, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		session: session,
		log:     log,
	}
}

// Error is a non-success response from the API. The message comes
// from the server verbatim and is safe to show to the user.
type Error struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s: server returned status %d", e.Op, e.StatusCode)
}

type wireUser struct {
	ID                string `json:"_id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	PreferredLanguage string `json:"preferredLanguage"`
}

func (u wireUser) toDomain() *domain.User {
	return &domain.User{
		ID:                u.ID,
		Name:              u.Name,
		Email:             u.Email,
		PreferredLanguage: u.PreferredLanguage,
	}
}

type wireConnectedUser struct {
	ConversationID  string    `json:"conversationId"`
	User            wireUser  `json:"user"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
}

// FileInfo is an entry of the shared-media listing.
type FileInfo struct {
	URL            string    `json:"url"`
	OriginalName   string    `json:"originalName"`
	Size           int64     `json:"size"`
	MessageType    string    `json:"messageType"`
	ConversationID string    `json:"conversationId"`
	UploadedAt     time.Time `json:"uploadedAt"`
}

// Login authenticates and fills the shared session identity in place.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var out struct {
		Success bool     `json:"success"`
		Message string   `json:"message"`
		Token   string   `json:"token"`
		User    wireUser `json:"user"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login",
		map[string]string{"email": email, "password": password}, &out); err != nil {
		return err
	}
	if !out.Success {
		return &Error{Op: "login", Message: out.Message}
	}

	c.session.UserID = out.User.ID
	c.session.Name = out.User.Name
	c.session.Token = out.Token
	c.session.PreferredLanguage = out.User.PreferredLanguage
	return nil
}

func (c *Client) Signup(ctx context.Context, name, email, password, preferredLanguage string) error {
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/signup", map[string]string{
		"name":              name,
		"email":             email,
		"password":          password,
		"preferredLanguage": preferredLanguage,
	}, &out); err != nil {
		return err
	}
	if !out.Success {
		return &Error{Op: "signup", Message: out.Message}
	}
	return nil
}

// AllUsers lists every account, for starting new conversations.
func (c *Client) AllUsers(ctx context.Context) ([]*domain.User, error) {
	var out struct {
		Success bool       `json:"success"`
		Message string     `json:"message"`
		Users   []wireUser `json:"users"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/chats/getAllUser", nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &Error{Op: "list users", Message: out.Message}
	}

	users := make([]*domain.User, len(out.Users))
	for i, u := range out.Users {
		users[i] = u.toDomain()
	}
	return users, nil
}

// ConnectedUsers lists the conversations the local user belongs to.
func (c *Client) ConnectedUsers(ctx context.Context) ([]*domain.Conversation, error) {
	var out struct {
		Success        bool                `json:"success"`
		Message        string              `json:"message"`
		ConnectedUsers []wireConnectedUser `json:"connectedUsers"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/chats/getConnectedUser",
		map[string]string{"userId": c.session.UserID}, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &Error{Op: "list conversations", Message: out.Message}
	}

	conversations := make([]*domain.Conversation, len(out.ConnectedUsers))
	for i, cu := range out.ConnectedUsers {
		conversations[i] = &domain.Conversation{
			ID:              cu.ConversationID,
			RecipientID:     cu.User.ID,
			RecipientName:   cu.User.Name,
			LastMessageText: cu.LastMessage,
			LastMessageTime: cu.LastMessageTime,
		}
	}
	return conversations, nil
}

// StartConversation opens a thread with another user and returns its id.
func (c *Client) StartConversation(ctx context.Context, otherUserID string) (string, error) {
	var out struct {
		Success      bool   `json:"success"`
		Message      string `json:"message"`
		Conversation struct {
			ID string `json:"_id"`
		} `json:"conversation"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/chats/startConvo", map[string]string{
		"userAId": c.session.UserID,
		"userBId": otherUserID,
	}, &out); err != nil {
		return "", err
	}
	if !out.Success {
		return "", &Error{Op: "start conversation", Message: out.Message}
	}
	return out.Conversation.ID, nil
}

// ConversationDetails fetches the participant list of a conversation.
func (c *Client) ConversationDetails(ctx context.Context, conversationID string) ([]*domain.Participant, error) {
	var out struct {
		Participants []wireUser `json:"participants"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/chats/conversation/"+conversationID, nil, &out); err != nil {
		return nil, err
	}

	participants := make([]*domain.Participant, len(out.Participants))
	for i, p := range out.Participants {
		participants[i] = &domain.Participant{
			ID:                p.ID,
			ConversationID:    conversationID,
			Name:              p.Name,
			Email:             p.Email,
			PreferredLanguage: p.PreferredLanguage,
		}
	}
	return participants, nil
}

// UpdateLanguage changes the preferred language server-side. Callers
// follow up with a reloadChatHistory socket emit so translated history
// is re-pushed.
func (c *Client) UpdateLanguage(ctx context.Context, conversationID, language string) error {
	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := c.doJSON(ctx, http.MethodPatch, "/chats/update-lang", map[string]string{
		"preferredLanguage": language,
		"conversationId":    conversationID,
	}, &out); err != nil {
		return err
	}
	if !out.Success {
		return &Error{Op: "update language", Message: out.Message}
	}
	c.session.PreferredLanguage = language
	return nil
}

// UploadMedia posts a multipart upload. The resulting message is
// delivered via the socket, not this response; there is no automatic
// retry on failure.
func (c *Client) UploadMedia(ctx context.Context, conversationID string, messageType domain.MessageType, filename string, r io.Reader) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("failed to read upload source: %w", err)
	}
	w.WriteField("conversationId", conversationID)
	w.WriteField("messageType", string(messageType))
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/conv-media/upload", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return &Error{Op: "upload media", StatusCode: resp.StatusCode}
	}
	if !out.Success {
		return &Error{Op: "upload media", StatusCode: resp.StatusCode, Message: out.Message}
	}
	return nil
}

// Files lists the media shared across the user's conversations.
func (c *Client) Files(ctx context.Context) ([]FileInfo, error) {
	var out struct {
		Success bool       `json:"success"`
		Message string     `json:"message"`
		Files   []FileInfo `json:"files"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/conv-media/files", nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &Error{Op: "list files", Message: out.Message}
	}
	return out.Files, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &Error{Op: method + " " + path, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.session != nil && c.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}
}
