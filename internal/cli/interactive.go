package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chatbird/chatbird-bridge/internal/session"
)

// InteractiveCLI handles interactive command-line interface
type InteractiveCLI struct {
	handler *CommandHandler
	reader  *bufio.Reader
	writer  io.Writer
}

// NewInteractiveCLI creates a new interactive CLI
func NewInteractiveCLI(handler *CommandHandler) *InteractiveCLI {
	return &InteractiveCLI{
		handler: handler,
		reader:  bufio.NewReader(os.Stdin),
		writer:  os.Stdout,
	}
}

// Run starts the interactive CLI loop
func (cli *InteractiveCLI) Run(ctx context.Context) error {
	cli.printWelcome()

	// Subscribe to events in background
	eventChan := cli.handler.SubscribeEvents(nil)
	go cli.handleEvents(eventChan)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			cli.print("\n> ")
			line, err := cli.reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			if err := cli.processInput(ctx, line); err != nil {
				if err.Error() == "quit" {
					cli.println("Goodbye!")
					return nil
				}
				cli.printf("Error: %s\n", err)
			}
		}
	}
}

func (cli *InteractiveCLI) printWelcome() {
	cli.println("===========================================")
	cli.println("  ChatBird Bridge CLI")
	cli.println("===========================================")
	cli.println("Type /help for commands. Plain text is sent")
	cli.println("to the active conversation.")
	cli.println("")

	status, _ := cli.handler.cmdStatus()
	if s, ok := status.(ConnectionStatus); ok {
		cli.printf("Status: %s\n", s.State)
	}
}

func (cli *InteractiveCLI) processInput(ctx context.Context, input string) error {
	// Anything that isn't a command goes to the active conversation.
	if !strings.HasPrefix(input, "/") {
		if err := cli.handler.SendText(input); err != nil {
			switch err {
			case session.ErrNoConversation:
				return fmt.Errorf("no active conversation. Use /select first")
			default:
				return err
			}
		}
		return nil
	}

	cmd, err := ParseCommand(input)
	if err != nil {
		return err
	}

	result, err := cli.handler.Execute(ctx, cmd)
	if err != nil {
		return err
	}

	if m, ok := result.(map[string]bool); ok && m["quit"] {
		return fmt.Errorf("quit")
	}

	cli.displayResult(cmd.Name, result)
	return nil
}

func (cli *InteractiveCLI) displayResult(cmdName string, result interface{}) {
	switch cmdName {
	case "help", "h":
		if m, ok := result.(map[string]string); ok {
			cli.println(m["help"])
		}

	case "status", "s":
		if s, ok := result.(ConnectionStatus); ok {
			cli.printf("Connection: %s\n", s.State)
			if s.UserID != "" {
				cli.printf("  User: %s\n", s.UserID)
			}
			if s.ActiveConversation != "" {
				cli.printf("  Conversation: %s\n", s.ActiveConversation)
				cli.printf("  Loading: %v\n", s.Loading)
				if s.RemoteTyping {
					cli.println("  The other user is typing...")
				}
			}
		}

	case "chats", "ls":
		if m, ok := result.(map[string]interface{}); ok {
			chats, _ := m["chats"].([]ConversationInfo)
			cli.printf("Found %d conversation(s):\n\n", len(chats))
			for i, chat := range chats {
				cli.printf("%d. %s\n", i+1, chat.RecipientName)
				cli.printf("   ID: %s\n", chat.ID)
				if chat.LastMessageText != "" {
					preview := chat.LastMessageText
					if len(preview) > 50 {
						preview = preview[:50] + "..."
					}
					cli.printf("   Last: %s\n", preview)
				}
			}
		}

	case "users":
		if m, ok := result.(map[string]interface{}); ok {
			users, _ := m["users"].([]UserInfo)
			cli.printf("Found %d user(s):\n\n", len(users))
			for i, u := range users {
				cli.printf("%d. %s <%s>\n", i+1, u.Name, u.Email)
				cli.printf("   ID: %s\n", u.ID)
			}
		}

	case "messages", "msg", "history":
		if m, ok := result.(map[string]interface{}); ok {
			messages, _ := m["messages"].([]MessageInfo)
			if loading, _ := m["loading"].(bool); loading {
				cli.println("(history still loading)")
			}
			cli.printf("%d message(s):\n\n", len(messages))
			for _, msg := range messages {
				cli.printMessage(msg)
			}
		}

	case "search":
		if m, ok := result.(map[string]interface{}); ok {
			query, _ := m["query"].(string)
			messages, _ := m["messages"].([]MessageInfo)
			cli.printf("Search results for '%s' (%d found):\n\n", query, len(messages))
			for i, msg := range messages {
				text := msg.Text
				if len(text) > 80 {
					text = text[:80] + "..."
				}
				cli.printf("%d. [%s] %s: %s\n", i+1, msg.Timestamp.Format("2006-01-02 15:04"), msg.SenderName, text)
				cli.printf("   Conversation: %s | ID: %s\n\n", msg.ConversationID, msg.ID)
			}
		}

	case "files":
		if m, ok := result.(map[string]interface{}); ok {
			data, _ := json.MarshalIndent(m["files"], "", "  ")
			cli.println(string(data))
		}

	default:
		if m, ok := result.(map[string]string); ok {
			if msg, exists := m["message"]; exists {
				cli.println(msg)
				return
			}
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		cli.println(string(data))
	}
}

func (cli *InteractiveCLI) printMessage(msg MessageInfo) {
	sender := msg.SenderName
	if msg.IsMine {
		sender = "Me"
	}
	timestamp := msg.Timestamp.Format("2006-01-02 15:04")
	cli.printf("[%s] %s:\n", timestamp, sender)
	switch {
	case msg.Text != "":
		cli.printf("  %s\n", msg.Text)
	case msg.MediaURL != "":
		cli.printf("  [%s] %s\n", msg.Type, msg.MediaURL)
	default:
		cli.printf("  [%s]\n", msg.Type)
	}
	cli.printf("  ID: %s\n\n", msg.ID)
}

func (cli *InteractiveCLI) handleEvents(eventChan <-chan Event) {
	for event := range eventChan {
		switch event.Type {
		case "message_received":
			if msg, ok := event.Data.(MessageInfo); ok {
				sender := msg.SenderName
				if msg.IsMine {
					sender = "Me"
				}
				cli.printf("\n[%s] ", sender)
				if msg.Text != "" {
					cli.printf("%s\n", msg.Text)
				} else {
					cli.printf("[%s]\n", msg.Type)
				}
				cli.print("> ")
			}

		case "message_deleted":
			cli.println("\n[A message was deleted]")
			cli.print("> ")

		case "history_loaded":
			if data, ok := event.Data.(map[string]interface{}); ok {
				count, _ := data["count"].(int)
				cli.printf("\n[History loaded: %d message(s)]\n", count)
				cli.print("> ")
			}

		case "typing":
			if data, ok := event.Data.(map[string]interface{}); ok {
				if isTyping, _ := data["is_typing"].(bool); isTyping {
					cli.println("\n[The other user is typing...]")
				} else {
					cli.println("\n[Typing stopped]")
				}
				cli.print("> ")
			}

		case "connection_status":
			if data, ok := event.Data.(map[string]interface{}); ok {
				connected, _ := data["connected"].(bool)
				if connected {
					cli.println("\n[Connected to ChatBird]")
				} else {
					reason, _ := data["reason"].(string)
					cli.printf("\n[Disconnected: %s]\n", reason)
				}
				cli.print("> ")
			}

		case "server_error":
			if data, ok := event.Data.(map[string]string); ok {
				cli.printf("\n[Server error: %s]\n", data["message"])
				cli.print("> ")
			}
		}
	}
}

func (cli *InteractiveCLI) print(s string) {
	fmt.Fprint(cli.writer, s)
}

func (cli *InteractiveCLI) println(s string) {
	fmt.Fprintln(cli.writer, s)
}

func (cli *InteractiveCLI) printf(format string, args ...interface{}) {
	fmt.Fprintf(cli.writer, format, args...)
}
