package mcp

import (
	"context"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/chatbird/chatbird-bridge/internal/api"
	"github.com/chatbird/chatbird-bridge/internal/repository"
	"github.com/chatbird/chatbird-bridge/internal/session"
)

type ServerConfig struct {
	Address string
}

type Server struct {
	mcpServer  *server.MCPServer
	sseServer  *server.SSEServer
	httpServer *http.Server
	ctrl       *session.Controller
	api        *api.Client
	messages   repository.MessageRepository
	config     ServerConfig
}

func NewServer(
	ctrl *session.Controller,
	apiClient *api.Client,
	messages repository.MessageRepository,
	config ServerConfig,
) *Server {
	s := &Server{
		ctrl:     ctrl,
		api:      apiClient,
		messages: messages,
		config:   config,
	}

	s.mcpServer = server.NewMCPServer(
		"chatbird-bridge",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	s.sseServer = server.NewSSEServer(s.mcpServer,
		server.WithKeepAliveInterval(30*time.Second),
	)

	return s
}

func (s *Server) registerTools() {
	// List conversations tool
	s.mcpServer.AddTool(
		mcp.NewTool("chatbird_list_conversations",
			mcp.WithDescription("List the user's conversations sorted by most recent activity"),
		),
		s.handleListConversations,
	)

	// Get messages tool
	s.mcpServer.AddTool(
		mcp.NewTool("chatbird_get_messages",
			mcp.WithDescription("Get the messages of the active conversation as currently synchronized"),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of messages to return, from the end (default 50, max 200)"),
			),
		),
		s.handleGetMessages,
	)

	// Select conversation tool
	s.mcpServer.AddTool(
		mcp.NewTool("chatbird_select_conversation",
			mcp.WithDescription("Make a conversation active: join it and load its history"),
			mcp.WithString("conversation_id",
				mcp.Required(),
				mcp.Description("ID of the conversation to select"),
			),
		),
		s.handleSelectConversation,
	)

	// Send message tool
	s.mcpServer.AddTool(
		mcp.NewTool("chatbird_send_message",
			mcp.WithDescription("Send a text message to the active conversation. The message appears once the server echoes it back."),
			mcp.WithString("text",
				mcp.Required(),
				mcp.Description("Message text to send"),
			),
		),
		s.handleSendMessage,
	)

	// Search messages tool
	s.mcpServer.AddTool(
		mcp.NewTool("chatbird_search_messages",
			mcp.WithDescription("Search archived messages across all conversations by text content"),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Search query text"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum results to return (default 20, max 100)"),
			),
		),
		s.handleSearchMessages,
	)

	// Connection status tool
	s.mcpServer.AddTool(
		mcp.NewTool("chatbird_connection_status",
			mcp.WithDescription("Get the current socket connection status and active conversation"),
		),
		s.handleConnectionStatus,
	)

	// Update language tool
	s.mcpServer.AddTool(
		mcp.NewTool("chatbird_update_language",
			mcp.WithDescription("Change the preferred language and reload the active conversation's history in it"),
			mcp.WithString("code",
				mcp.Required(),
				mcp.Description("Language code (e.g., 'en', 'es', 'fr')"),
			),
		),
		s.handleUpdateLanguage,
	)

	// Reload history tool
	s.mcpServer.AddTool(
		mcp.NewTool("chatbird_reload_history",
			mcp.WithDescription("Ask the server to push the active conversation's history again"),
		),
		s.handleReloadHistory,
	)
}

func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.Handle("/sse", s.sseServer.SSEHandler())
	mux.Handle("/message", s.sseServer.MessageHandler())

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.httpServer = &http.Server{
		Addr:    s.config.Address,
		Handler: mux,
	}

	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
