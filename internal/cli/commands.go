package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chatbird/chatbird-bridge/internal/api"
	"github.com/chatbird/chatbird-bridge/internal/domain"
	"github.com/chatbird/chatbird-bridge/internal/repository"
	"github.com/chatbird/chatbird-bridge/internal/session"
)

// CommandHandler handles CLI commands
type CommandHandler struct {
	ctrl     *session.Controller
	api      *api.Client
	messages repository.MessageRepository
	convs    repository.ConversationRepository
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(ctrl *session.Controller, apiClient *api.Client, messages repository.MessageRepository, convs repository.ConversationRepository) *CommandHandler {
	return &CommandHandler{
		ctrl:     ctrl,
		api:      apiClient,
		messages: messages,
		convs:    convs,
	}
}

// Command represents a parsed command
type Command struct {
	Name string
	Args []string
}

// ParseCommand parses a command string (e.g., "/select 64f1a2b3c4")
func ParseCommand(input string) (*Command, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty command")
	}

	if !strings.HasPrefix(input, "/") {
		return nil, fmt.Errorf("commands must start with /")
	}

	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	name := strings.TrimPrefix(parts[0], "/")
	args := parts[1:]

	return &Command{Name: name, Args: args}, nil
}

// Execute executes a command and returns the result
func (h *CommandHandler) Execute(ctx context.Context, cmd *Command) (interface{}, error) {
	switch cmd.Name {
	case "help", "h":
		return h.cmdHelp()
	case "status", "s":
		return h.cmdStatus()
	case "login":
		return h.cmdLogin(ctx, cmd.Args)
	case "signup":
		return h.cmdSignup(ctx, cmd.Args)
	case "users":
		return h.cmdUsers(ctx)
	case "chats", "ls":
		return h.cmdChats(ctx)
	case "connect", "c":
		return h.cmdConnect(ctx, cmd.Args)
	case "select", "open":
		return h.cmdSelect(ctx, cmd.Args)
	case "messages", "msg":
		return h.cmdMessages(cmd.Args)
	case "send":
		return h.cmdSend(cmd.Args)
	case "input":
		return h.cmdInput(cmd.Args)
	case "history":
		return h.cmdHistory(ctx, cmd.Args)
	case "reload":
		return h.cmdReload()
	case "search":
		return h.cmdSearch(ctx, cmd.Args)
	case "lang":
		return h.cmdLang(ctx, cmd.Args)
	case "upload", "up":
		return h.cmdUpload(ctx, cmd.Args)
	case "files":
		return h.cmdFiles(ctx)
	case "quit", "exit", "q":
		return map[string]bool{"quit": true}, nil
	default:
		return nil, fmt.Errorf("unknown command: %s. Type /help for available commands", cmd.Name)
	}
}

// SendText routes plain (non-slash) input as a message to the active
// conversation.
func (h *CommandHandler) SendText(text string) error {
	return h.ctrl.SendText(text)
}

func (h *CommandHandler) cmdHelp() (interface{}, error) {
	help := `Available commands:

Account:
  /login <email> <password>         Log in and store the session token
  /signup <name> <email> <password> [lang]  Create an account
  /lang <code>                      Change preferred language (reloads history)

Conversations:
  /users                            List all users
  /chats, /ls                       List your conversations
  /connect, /c <user_id>            Start a conversation with a user
  /select, /open <conversation_id>  Make a conversation active
  /messages, /msg [limit]           Show messages of the active conversation
  /reload                           Re-request history from the server

Messaging:
  <text>                            Any non-slash input is sent as a message
  /send <text>                      Send a message explicitly
  /input <text>                     Report composer contents (typing signal)
  /upload, /up <path>               Share an image or video file
  /files                            List shared media

Archive:
  /history <conversation_id> [limit]  Browse the local archive
  /search <query> [limit]             Search archived messages

Other:
  /status, /s                       Show connection status
  /help, /h                         Show this help
  /quit, /exit, /q                  Exit the CLI`

	return map[string]string{"help": help}, nil
}

func (h *CommandHandler) cmdStatus() (interface{}, error) {
	state := h.ctrl.ConnectionState()

	return ConnectionStatus{
		Connected:          state == domain.StateConnected,
		State:              string(state),
		UserID:             h.ctrl.Session().UserID,
		ActiveConversation: h.ctrl.ActiveConversation(),
		Loading:            h.ctrl.Loading(),
		RemoteTyping:       h.ctrl.RemoteTyping(),
	}, nil
}

func (h *CommandHandler) cmdLogin(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("usage: /login <email> <password>")
	}

	if err := h.api.Login(ctx, args[0], args[1]); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	sess := h.ctrl.Session()
	return map[string]string{
		"message": fmt.Sprintf("Logged in as %s (%s)", sess.Name, sess.UserID),
	}, nil
}

func (h *CommandHandler) cmdSignup(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("usage: /signup <name> <email> <password> [lang]")
	}

	lang := "en"
	if len(args) > 3 {
		lang = args[3]
	}

	if err := h.api.Signup(ctx, args[0], args[1], args[2], lang); err != nil {
		return nil, fmt.Errorf("signup failed: %w", err)
	}
	return map[string]string{"message": "Account created. Use /login to sign in."}, nil
}

func (h *CommandHandler) cmdUsers(ctx context.Context) (interface{}, error) {
	users, err := h.api.AllUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	result := make([]UserInfo, len(users))
	for i, u := range users {
		result[i] = UserInfo{
			ID:                u.ID,
			Name:              u.Name,
			Email:             u.Email,
			PreferredLanguage: u.PreferredLanguage,
		}
	}
	return map[string]interface{}{"users": result, "count": len(result)}, nil
}

func (h *CommandHandler) cmdChats(ctx context.Context) (interface{}, error) {
	conversations, err := h.api.ConnectedUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	result := make([]ConversationInfo, len(conversations))
	for i, conv := range conversations {
		result[i] = ConversationInfo{
			ID:              conv.ID,
			RecipientID:     conv.RecipientID,
			RecipientName:   conv.RecipientName,
			LastMessageText: conv.LastMessageText,
			LastMessageTime: conv.LastMessageTime,
			UnreadCount:     conv.UnreadCount,
		}
	}
	return map[string]interface{}{"chats": result, "count": len(result)}, nil
}

func (h *CommandHandler) cmdConnect(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /connect <user_id>")
	}

	conversationID, err := h.api.StartConversation(ctx, args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to start conversation: %w", err)
	}

	if err := h.ctrl.Select(ctx, conversationID); err != nil {
		return nil, err
	}
	return map[string]string{
		"message":         "Conversation started and selected",
		"conversation_id": conversationID,
	}, nil
}

func (h *CommandHandler) cmdSelect(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /select <conversation_id>")
	}

	if err := h.ctrl.Select(ctx, args[0]); err != nil {
		return nil, err
	}
	return map[string]string{
		"message":         "Conversation selected, loading history",
		"conversation_id": args[0],
	}, nil
}

func (h *CommandHandler) cmdMessages(args []string) (interface{}, error) {
	messages := h.ctrl.Messages()

	limit := len(messages)
	if len(args) > 0 {
		if l, err := strconv.Atoi(args[0]); err == nil && l > 0 && l < limit {
			limit = l
		}
	}

	// Tail of the conversation, delivery order preserved.
	tail := messages[len(messages)-limit:]
	result := make([]MessageInfo, len(tail))
	for i := range tail {
		result[i] = toMessageInfo(&tail[i])
	}

	return map[string]interface{}{
		"messages": result,
		"count":    len(result),
		"loading":  h.ctrl.Loading(),
	}, nil
}

func (h *CommandHandler) cmdSend(args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /send <text>")
	}

	text := strings.Join(args, " ")
	if err := h.ctrl.SendText(text); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	// No local echo: the message shows up when the server pushes it
	// back through the socket.
	return map[string]string{"message": "Message sent, awaiting server echo"}, nil
}

func (h *CommandHandler) cmdInput(args []string) (interface{}, error) {
	value := strings.Join(args, " ")
	h.ctrl.InputChanged(value)
	return map[string]string{"message": "input recorded"}, nil
}

func (h *CommandHandler) cmdHistory(ctx context.Context, args []string) (interface{}, error) {
	if h.messages == nil {
		return nil, fmt.Errorf("local archive is disabled")
	}

	conversationID := h.ctrl.ActiveConversation()
	if len(args) > 0 {
		conversationID = args[0]
	}
	if conversationID == "" {
		return nil, fmt.Errorf("usage: /history <conversation_id> [limit]")
	}

	limit := 50
	if len(args) > 1 {
		if l, err := strconv.Atoi(args[1]); err == nil && l > 0 {
			limit = l
		}
	}

	messages, err := h.messages.GetByConversation(ctx, conversationID, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	result := make([]MessageInfo, len(messages))
	for i, msg := range messages {
		result[i] = toMessageInfo(msg)
	}
	return map[string]interface{}{"messages": result, "count": len(result)}, nil
}

func (h *CommandHandler) cmdReload() (interface{}, error) {
	if err := h.ctrl.ReloadHistory(); err != nil {
		return nil, err
	}
	return map[string]string{"message": "History requested"}, nil
}

func (h *CommandHandler) cmdSearch(ctx context.Context, args []string) (interface{}, error) {
	if h.messages == nil {
		return nil, fmt.Errorf("local archive is disabled")
	}
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /search <query> [limit]")
	}

	query := args[0]
	limit := 20

	if len(args) > 1 {
		if l, err := strconv.Atoi(args[len(args)-1]); err == nil && l > 0 {
			limit = l
			query = strings.Join(args[:len(args)-1], " ")
		} else {
			query = strings.Join(args, " ")
		}
	}

	messages, err := h.messages.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	result := make([]MessageInfo, len(messages))
	for i, msg := range messages {
		result[i] = toMessageInfo(msg)
	}
	return map[string]interface{}{
		"query":    query,
		"messages": result,
		"count":    len(result),
	}, nil
}

func (h *CommandHandler) cmdLang(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /lang <code> (e.g., /lang es)")
	}

	if err := h.ctrl.SetLanguage(ctx, args[0]); err != nil {
		return nil, fmt.Errorf("failed to update language: %w", err)
	}
	return map[string]string{
		"message": fmt.Sprintf("Language set to %s, history reloading", args[0]),
	}, nil
}

func (h *CommandHandler) cmdUpload(ctx context.Context, args []string) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: /upload <path>")
	}

	conversationID := h.ctrl.ActiveConversation()
	if conversationID == "" {
		return nil, session.ErrNoConversation
	}

	path := strings.Join(args, " ")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("cannot stat file: %w", err)
	}

	msgType, err := h.ctrl.ValidateUpload(info.Name(), info.Size())
	if err != nil {
		return nil, err
	}

	if err := h.api.UploadMedia(ctx, conversationID, msgType, info.Name(), f); err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	return map[string]string{
		"message": fmt.Sprintf("Uploaded %s (%s), awaiting server echo", info.Name(), msgType),
	}, nil
}

func (h *CommandHandler) cmdFiles(ctx context.Context) (interface{}, error) {
	files, err := h.api.Files(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return map[string]interface{}{"files": files, "count": len(files)}, nil
}

// SubscribeEvents bridges domain events into CLI event frames.
func (h *CommandHandler) SubscribeEvents(eventTypes []domain.EventType) <-chan Event {
	if len(eventTypes) == 0 {
		eventTypes = []domain.EventType{
			domain.EventTypeMessageReceived,
			domain.EventTypeMessageDeleted,
			domain.EventTypeHistoryLoaded,
			domain.EventTypeTypingUpdated,
			domain.EventTypeConnectionStatus,
			domain.EventTypeServerError,
		}
	}

	domainChan := h.ctrl.Events().Subscribe(eventTypes)
	resultChan := make(chan Event)

	go func() {
		defer close(resultChan)
		for evt := range domainChan {
			var eventType string
			var data interface{}

			switch e := evt.(type) {
			case domain.MessageReceivedEvent:
				eventType = "message_received"
				data = toMessageInfo(e.Message)
			case domain.MessageDeletedEvent:
				eventType = "message_deleted"
				data = map[string]string{
					"message_id":      e.MessageID,
					"conversation_id": e.ConversationID,
				}
			case domain.HistoryLoadedEvent:
				eventType = "history_loaded"
				data = map[string]interface{}{
					"conversation_id": e.ConversationID,
					"count":           e.Count,
				}
			case domain.TypingUpdatedEvent:
				eventType = "typing"
				data = map[string]interface{}{
					"conversation_id": e.ConversationID,
					"user_id":         e.UserID,
					"is_typing":       e.IsTyping,
				}
			case domain.ConnectionStatusEvent:
				eventType = "connection_status"
				data = map[string]interface{}{
					"connected": e.State == domain.StateConnected,
					"state":     string(e.State),
					"reason":    e.Reason,
				}
			case domain.ServerErrorEvent:
				eventType = "server_error"
				data = map[string]string{"message": e.Message}
			default:
				continue
			}

			resultChan <- Event{
				Type:      eventType,
				Timestamp: time.Now(),
				Data:      data,
			}
		}
	}()

	return resultChan
}

func toMessageInfo(msg *domain.Message) MessageInfo {
	info := MessageInfo{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Sender:         msg.Sender,
		SenderName:     msg.SenderName,
		Type:           string(msg.Type),
		Text:           msg.Text,
		Lang:           msg.Lang,
		Timestamp:      msg.CreatedAt,
		IsMine:         msg.IsMine,
	}
	if msg.Media != nil {
		info.MediaURL = msg.Media.URL
	}
	return info
}
