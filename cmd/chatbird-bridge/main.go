package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/chatbird/chatbird-bridge/internal/api"
	"github.com/chatbird/chatbird-bridge/internal/cli"
	"github.com/chatbird/chatbird-bridge/internal/config"
	"github.com/chatbird/chatbird-bridge/internal/domain"
	"github.com/chatbird/chatbird-bridge/internal/logger"
	"github.com/chatbird/chatbird-bridge/internal/repository"
	"github.com/chatbird/chatbird-bridge/internal/session"
	"github.com/chatbird/chatbird-bridge/internal/socket"
	mcpTransport "github.com/chatbird/chatbird-bridge/internal/transport/mcp"
)

// RunMode defines how the application runs
type RunMode string

const (
	RunModeServer      RunMode = "server"
	RunModeInteractive RunMode = "interactive"
	RunModeHeadless    RunMode = "headless"
)

func main() {
	// Optional .env for local development
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Keep stdout quiet in CLI modes; JSON frames and the prompt own it
	level := cfg.LogLevel
	if RunMode(cfg.Mode) != RunModeServer && level == "info" {
		level = "warn"
	}
	logger.Init(level)

	db, err := initDatabase(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	msgRepo := repository.NewMessageRepository(db)
	convRepo := repository.NewConversationRepository(db)
	partRepo := repository.NewParticipantRepository(db)

	eventBus := domain.NewEventBus()

	sess := &domain.Session{
		UserID: cfg.UserID,
		Token:  cfg.Token,
	}
	apiClient := api.NewClient(cfg.APIURL, sess, logger.Module("api"))

	ctx := context.Background()

	// Identity: a ready token from the environment, or a login with
	// credentials. The socket register event needs the user id either way.
	if sess.Token == "" || sess.UserID == "" {
		if cfg.Email == "" || cfg.Password == "" {
			log.Fatalf("No identity: set CHATBIRD_TOKEN and CHATBIRD_USER_ID, or CHATBIRD_EMAIL and CHATBIRD_PASSWORD")
		}
		if err := apiClient.Login(ctx, cfg.Email, cfg.Password); err != nil {
			log.Fatalf("Login failed: %v", err)
		}
	}

	sock := socket.NewClient(socket.Config{
		URL:               cfg.SocketURL,
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:    cfg.ReconnectDelay,
	}, logger.Module("socket"))

	ctrl := session.NewController(
		session.Config{
			TypingQuietPeriod:   cfg.TypingQuietPeriod,
			TypingDisplayExpiry: cfg.TypingDisplayExpiry,
			HistoryTimeout:      cfg.HistoryTimeout,
			MaxUploadSize:       cfg.MaxUploadSize,
		},
		sock,
		apiClient,
		eventBus,
		sess,
		session.Archive{
			Messages:      msgRepo,
			Conversations: convRepo,
			Participants:  partRepo,
		},
		logger.Module("session"),
	)

	if err := sock.Connect(ctx); err != nil {
		// The CLI still works for REST and archive commands; the socket
		// client retries on its own once the server comes back.
		mainLog := logger.Module("main")
		mainLog.Warn().Err(err).Msg("initial socket connect failed")
	}

	switch RunMode(cfg.Mode) {
	case RunModeInteractive:
		runInteractiveMode(ctx, ctrl, apiClient, msgRepo, convRepo, sock)
	case RunModeHeadless:
		runHeadlessMode(ctx, ctrl, apiClient, msgRepo, convRepo, sock)
	default:
		runServerMode(ctx, cfg, ctrl, apiClient, msgRepo, sock)
	}
}

func runServerMode(ctx context.Context, cfg *config.Config, ctrl *session.Controller, apiClient *api.Client, msgRepo repository.MessageRepository, sock *socket.Client) {
	log.Printf("ChatBird Bridge starting...")
	log.Printf("Database: %s", cfg.DatabasePath)
	log.Printf("Socket: %s", cfg.SocketURL)
	log.Printf("MCP address: %s", cfg.MCPAddress)

	mcpServer := mcpTransport.NewServer(
		ctrl,
		apiClient,
		msgRepo,
		mcpTransport.ServerConfig{
			Address: cfg.MCPAddress,
		},
	)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting MCP SSE server on %s", cfg.MCPAddress)
		if err := mcpServer.Start(); err != nil {
			errCh <- fmt.Errorf("MCP server error: %w", err)
		}
	}()

	// Print ready message for subprocess coordination
	fmt.Println("ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Printf("Server error: %v", err)
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Printf("Closing socket connection...")
	ctrl.Close()
	sock.Close()

	log.Printf("Stopping MCP server...")
	if err := mcpServer.Stop(shutdownCtx); err != nil {
		log.Printf("MCP server stop error: %v", err)
	}

	log.Printf("Shutdown complete")
}

func runInteractiveMode(ctx context.Context, ctrl *session.Controller, apiClient *api.Client, msgRepo repository.MessageRepository, convRepo repository.ConversationRepository, sock *socket.Client) {
	handler := cli.NewCommandHandler(ctrl, apiClient, msgRepo, convRepo)
	interactiveCLI := cli.NewInteractiveCLI(handler)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	if err := interactiveCLI.Run(ctx); err != nil && err != context.Canceled {
		log.Printf("CLI error: %v", err)
	}

	ctrl.Close()
	sock.Close()
}

func runHeadlessMode(ctx context.Context, ctrl *session.Controller, apiClient *api.Client, msgRepo repository.MessageRepository, convRepo repository.ConversationRepository, sock *socket.Client) {
	handler := cli.NewCommandHandler(ctrl, apiClient, msgRepo, convRepo)
	headlessCLI := cli.NewHeadlessCLI(handler)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	if err := headlessCLI.Run(ctx); err != nil && err != context.Canceled {
		log.Printf("CLI error: %v", err)
	}

	ctrl.Close()
	sock.Close()
}

func initDatabase(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.NewGormLogger("gorm"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	db.Exec("PRAGMA journal_mode=WAL")

	err = db.AutoMigrate(
		&repository.MessageModel{},
		&repository.ConversationModel{},
		&repository.ParticipantModel{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}
