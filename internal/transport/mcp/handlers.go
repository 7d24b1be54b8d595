package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/chatbird/chatbird-bridge/internal/domain"
)

func (s *Server) handleListConversations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversations, err := s.api.ConnectedUsers(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list conversations: %v", err)), nil
	}

	if len(conversations) == 0 {
		return mcp.NewToolResultText("No conversations found."), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Found %d conversation(s):\n\n", len(conversations)))

	for i, conv := range conversations {
		result.WriteString(fmt.Sprintf("%d. %s\n", i+1, conv.RecipientName))
		result.WriteString(fmt.Sprintf("   ID: %s\n", conv.ID))

		if conv.LastMessageText != "" {
			preview := conv.LastMessageText
			if len(preview) > 60 {
				preview = preview[:60] + "..."
			}
			result.WriteString(fmt.Sprintf("   Last: %s\n", preview))
			if !conv.LastMessageTime.IsZero() {
				result.WriteString(fmt.Sprintf("   Time: %s\n", conv.LastMessageTime.Format("2006-01-02 15:04")))
			}
		}
		result.WriteString("\n")
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (s *Server) handleGetMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID := s.ctrl.ActiveConversation()
	if conversationID == "" {
		return mcp.NewToolResultError("No active conversation. Use chatbird_select_conversation first."), nil
	}

	limit := request.GetInt("limit", 50)
	if limit > 200 {
		limit = 200
	}
	if limit <= 0 {
		limit = 50
	}

	messages := s.ctrl.Messages()
	if s.ctrl.Loading() {
		return mcp.NewToolResultText("History is still loading, try again shortly."), nil
	}
	if len(messages) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No messages in conversation %s", conversationID)), nil
	}

	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Messages from %s (%d):\n\n", conversationID, len(messages)))

	for _, msg := range messages {
		sender := msg.SenderName
		if msg.IsMine {
			sender = "Me"
		}

		result.WriteString(fmt.Sprintf("[%s] %s:\n", msg.CreatedAt.Format("2006-01-02 15:04"), sender))

		switch msg.Type {
		case domain.MessageTypeText:
			result.WriteString(fmt.Sprintf("  %s\n", msg.Text))
		case domain.MessageTypeImage:
			result.WriteString(fmt.Sprintf("  [Image] %s\n", mediaName(&msg)))
		case domain.MessageTypeVideo:
			result.WriteString(fmt.Sprintf("  [Video] %s\n", mediaName(&msg)))
		default:
			result.WriteString(fmt.Sprintf("  [%s]\n", msg.Type))
		}

		result.WriteString(fmt.Sprintf("  ID: %s\n\n", msg.ID))
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (s *Server) handleSelectConversation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	conversationID := request.GetString("conversation_id", "")
	if conversationID == "" {
		return mcp.NewToolResultError("conversation_id is required"), nil
	}

	if err := s.ctrl.Select(ctx, conversationID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to select conversation: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Conversation %s selected, history loading", conversationID)), nil
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := request.GetString("text", "")
	if text == "" {
		return mcp.NewToolResultError("text is required"), nil
	}

	if err := s.ctrl.SendText(text); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to send message: %v", err)), nil
	}

	return mcp.NewToolResultText("Message sent. It will appear in the conversation once the server echoes it back."), nil
}

func (s *Server) handleSearchMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.messages == nil {
		return mcp.NewToolResultError("Local archive is disabled; search is unavailable."), nil
	}

	query := request.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	limit := request.GetInt("limit", 20)
	if limit > 100 {
		limit = 100
	}
	if limit <= 0 {
		limit = 20
	}

	messages, err := s.messages.Search(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Search failed: %v", err)), nil
	}

	if len(messages) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No messages found matching '%s'", query)), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Search results for '%s' (%d found):\n\n", query, len(messages)))

	for i, msg := range messages {
		sender := msg.SenderName
		if msg.IsMine {
			sender = "Me"
		}

		result.WriteString(fmt.Sprintf("%d. [%s] %s:\n", i+1, msg.CreatedAt.Format("2006-01-02 15:04"), sender))
		result.WriteString(fmt.Sprintf("   Conversation: %s\n", msg.ConversationID))

		text := msg.Text
		if len(text) > 100 {
			text = text[:100] + "..."
		}
		result.WriteString(fmt.Sprintf("   %s\n", text))
		result.WriteString(fmt.Sprintf("   ID: %s\n\n", msg.ID))
	}

	return mcp.NewToolResultText(result.String()), nil
}

func (s *Server) handleConnectionStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state := s.ctrl.ConnectionState()
	active := s.ctrl.ActiveConversation()
	if active == "" {
		active = "(none)"
	}

	return mcp.NewToolResultText(fmt.Sprintf("ChatBird Status: %s\nActive conversation: %s\nHistory loading: %v\nRemote typing: %v",
		state, active, s.ctrl.Loading(), s.ctrl.RemoteTyping())), nil
}

func (s *Server) handleUpdateLanguage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code := request.GetString("code", "")
	if code == "" {
		return mcp.NewToolResultError("code is required"), nil
	}

	if err := s.ctrl.SetLanguage(ctx, code); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update language: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Language set to %s; the conversation history is reloading.", code)), nil
}

func (s *Server) handleReloadHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.ctrl.ReloadHistory(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to reload history: %v", err)), nil
	}
	return mcp.NewToolResultText("History requested from the server."), nil
}

func mediaName(msg *domain.Message) string {
	if msg.Media == nil {
		return "(no file info)"
	}
	if msg.Media.OriginalName != "" {
		return msg.Media.OriginalName
	}
	return msg.Media.URL
}
