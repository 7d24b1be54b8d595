package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// HeadlessCLI handles JSON-based headless operation. A line-oriented
// frontend drives it over stdin/stdout; the "input" command carries
// composer changes so the typing debounce works without a terminal.
type HeadlessCLI struct {
	handler *CommandHandler
	reader  *bufio.Reader
	writer  io.Writer
	mu      sync.Mutex
}

// NewHeadlessCLI creates a new headless CLI
func NewHeadlessCLI(handler *CommandHandler) *HeadlessCLI {
	return &HeadlessCLI{
		handler: handler,
		reader:  bufio.NewReader(os.Stdin),
		writer:  os.Stdout,
	}
}

// Run starts the headless JSON processing loop
func (cli *HeadlessCLI) Run(ctx context.Context) error {
	cli.sendResponse(Response{
		Success: true,
		Data:    map[string]string{"status": "ready", "mode": "headless"},
	})

	eventChan := cli.handler.SubscribeEvents(nil)
	go cli.streamEvents(eventChan)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			line, err := cli.reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					return nil
				}
				cli.sendError("", fmt.Sprintf("read error: %v", err))
				continue
			}

			cli.processRequest(ctx, line)
		}
	}
}

func (cli *HeadlessCLI) processRequest(ctx context.Context, line string) {
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		cli.sendError("", fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	if req.Command == "" {
		cli.sendError(req.ID, "missing command field")
		return
	}

	switch req.Command {
	case "subscribe":
		// Already subscribed, just acknowledge
		cli.sendResponse(Response{
			ID:      req.ID,
			Success: true,
			Data:    map[string]string{"message": "subscribed to events"},
		})
		return
	case "quit", "exit":
		cli.sendResponse(Response{
			ID:      req.ID,
			Success: true,
			Data:    map[string]string{"message": "goodbye"},
		})
		os.Exit(0)
		return
	}

	cmd := &Command{
		Name: req.Command,
		Args: cli.paramsToArgs(req.Command, req.Params),
	}

	result, err := cli.handler.Execute(ctx, cmd)
	if err != nil {
		cli.sendError(req.ID, err.Error())
		return
	}

	cli.sendResponse(Response{
		ID:      req.ID,
		Success: true,
		Data:    result,
	})
}

func (cli *HeadlessCLI) paramsToArgs(command string, params map[string]interface{}) []string {
	if params == nil {
		return nil
	}

	var args []string
	str := func(key string) {
		if v, ok := params[key].(string); ok {
			args = append(args, v)
		}
	}
	num := func(key string) {
		if v, ok := params[key].(float64); ok {
			args = append(args, fmt.Sprintf("%d", int(v)))
		}
	}

	switch command {
	case "login":
		str("email")
		str("password")

	case "signup":
		str("name")
		str("email")
		str("password")
		str("lang")

	case "connect", "c":
		str("user_id")

	case "select", "open":
		str("conversation_id")

	case "messages", "msg":
		num("limit")

	case "send":
		str("text")

	case "input":
		str("value")

	case "history":
		str("conversation_id")
		num("limit")

	case "search":
		str("query")
		num("limit")

	case "lang":
		str("code")

	case "upload", "up":
		str("path")
	}

	return args
}

func (cli *HeadlessCLI) streamEvents(eventChan <-chan Event) {
	for event := range eventChan {
		cli.sendEvent(event)
	}
}

func (cli *HeadlessCLI) sendResponse(resp Response) {
	cli.mu.Lock()
	defer cli.mu.Unlock()

	data, _ := json.Marshal(resp)
	fmt.Fprintln(cli.writer, string(data))
}

func (cli *HeadlessCLI) sendError(id, message string) {
	cli.sendResponse(Response{
		ID:      id,
		Success: false,
		Error:   message,
	})
}

func (cli *HeadlessCLI) sendEvent(event Event) {
	cli.mu.Lock()
	defer cli.mu.Unlock()

	data, _ := json.Marshal(map[string]interface{}{
		"type":      "event",
		"event":     event.Type,
		"timestamp": event.Timestamp,
		"data":      event.Data,
	})
	fmt.Fprintln(cli.writer, string(data))
}
